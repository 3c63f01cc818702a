// Package token provides the concrete reset token generator.
package token

import (
	"crypto/rand"
	"encoding/hex"

	"passport/internal/domain/service"

	"github.com/pkg/errors"
)

// tokenBytes is the entropy of a reset token. 32 bytes yields a 64
// character hex string.
const tokenBytes = 32

type hexGenerator struct{}

// NewHexGenerator is the constructor for hexGenerator.
// It returns the implementation as a service.ResetTokenGenerator interface.
func NewHexGenerator() service.ResetTokenGenerator {
	return &hexGenerator{}
}

// Generate returns 32 bytes of CSPRNG output encoded as hex.
func (g *hexGenerator) Generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to read random bytes")
	}

	return hex.EncodeToString(buf), nil
}
