package service

// ResetTokenGenerator produces opaque, unguessable tokens for password resets.
// Abstracting it keeps the domain free of crypto details and makes token
// values controllable in tests.
type ResetTokenGenerator interface {
	// Generate returns a new random token as a hex string.
	Generate() (string, error)
}
