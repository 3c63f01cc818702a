// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"
	"time"

	"passport/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrAccountNotFound is a domain-specific error returned when an account is not found.
var ErrAccountNotFound = errors.New("account not found")

// AccountRepository defines the standard operations for account persistence.
// The application layer will depend on this interface, not the concrete implementation.
type AccountRepository interface {
	// FindByID retrieves a single account by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error)

	// FindByEmail retrieves a single account by its email address.
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)

	// FindByUsername retrieves a single account by its username.
	FindByUsername(ctx context.Context, username string) (*entity.Account, error)

	// FindByResetToken retrieves the account holding the given reset token,
	// provided the token has not expired as of now.
	FindByResetToken(ctx context.Context, token string, now time.Time) (*entity.Account, error)

	// Create persists a new account entity to the storage. Uniqueness of
	// username and email is enforced by the storage itself.
	Create(ctx context.Context, account *entity.Account) error

	// Update modifies an existing account entity in the storage.
	Update(ctx context.Context, account *entity.Account) error
}
