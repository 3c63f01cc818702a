package service

import "context"

// Mailer defines the interface for outbound transactional mail.
// The domain only ever sends one kind of message, so the interface stays narrow.
type Mailer interface {
	// SendPasswordReset delivers a password reset link to the given address.
	SendPasswordReset(ctx context.Context, to string, link string) error
}
