// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import "context"

// --- Input DTOs ---

// SignUpInput defines the data required to register a new account.
// IsGoogle marks a federated signup, which tolerates an existing email and
// derives a free username instead of failing on collisions.
type SignUpInput struct {
	Username string `validate:"required"`
	Email    string `validate:"required"`
	Password string `validate:"required"`
	IsGoogle bool
}

// LoginInput defines the data required for an account to log in.
type LoginInput struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// ForgotPasswordInput identifies the account requesting a password reset.
type ForgotPasswordInput struct {
	Email string `validate:"required"`
}

// ResetPasswordInput carries a reset token and the replacement password.
type ResetPasswordInput struct {
	Token       string `validate:"required"`
	NewPassword string `validate:"required"`
}

// --- Output DTOs ---

// SignUpOutput returns the stored username. Existing is true when a Google
// signup matched an already registered email and no new account was created.
type SignUpOutput struct {
	Username string
	Existing bool
}

// LoginOutput returns the authenticated account's username.
type LoginOutput struct {
	Username string
}

// AccountUsecase defines the interface for account-related business operations.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
type AccountUsecase interface {
	SignUp(ctx context.Context, input SignUpInput) (*SignUpOutput, error)
	Login(ctx context.Context, input LoginInput) (*LoginOutput, error)
	ForgotPassword(ctx context.Context, input ForgotPasswordInput) error
	ResetPassword(ctx context.Context, input ResetPasswordInput) error
}
