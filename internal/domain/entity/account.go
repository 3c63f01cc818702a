// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Account is the core entity in the system, representing a registered user
// identified by a unique username and email address.
type Account struct {
	ID               uuid.UUID  // The Global Unique Identifier (GUID) for the account.
	Username         string     // Unique display name, also used as the login identifier.
	Email            string     // The account's unique email, target of password reset mails.
	PasswordHash     string     // Bcrypt hash of the account password. Never the plaintext.
	ResetToken       *string    // Pending password reset token. Nil when no reset is in flight.
	ResetTokenExpiry *time.Time // Expiry of ResetToken. Set and cleared together with it.
	CreatedAt        time.Time  // Timestamp of when this account was created.
	UpdatedAt        time.Time  // Timestamp of the last modification to this account.
}

// SetResetToken arms a pending password reset. Both fields are always
// written together so the pair stays consistent.
func (a *Account) SetResetToken(token string, expiry time.Time) {
	a.ResetToken = &token
	a.ResetTokenExpiry = &expiry
}

// ClearResetToken disarms any pending password reset.
func (a *Account) ClearResetToken() {
	a.ResetToken = nil
	a.ResetTokenExpiry = nil
}
