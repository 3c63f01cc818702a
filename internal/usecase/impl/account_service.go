// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"passport/config"
	deliverycontext "passport/internal/delivery/context"
	"passport/internal/domain/entity"
	domainerrors "passport/internal/domain/errors"
	"passport/internal/domain/repository"
	"passport/internal/domain/service"
	"passport/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	defaultResetTokenTTL    = 30 * time.Minute
	defaultResetLinkBaseURL = "http://localhost:3000"

	// maxSequentialSuffixes bounds the username search for Google signups.
	// Past this the service switches to a random suffix instead of probing on.
	maxSequentialSuffixes = 50

	// randomSuffixLen is how many hex characters of a generated token are
	// appended when the sequential search is exhausted.
	randomSuffixLen = 8
)

// accountService implements the AccountUsecase interface.
type accountService struct {
	txManager     repository.TransactionManager
	accountRepo   repository.AccountRepository
	hasher        service.PasswordHasher
	tokens        service.ResetTokenGenerator
	mailer        service.Mailer
	resetTokenTTL time.Duration
	resetLinkBase string
	logger        *slog.Logger
}

// AccountServiceParams holds dependencies for AccountService, injected by Fx.
type AccountServiceParams struct {
	fx.In

	TxManager   repository.TransactionManager
	AccountRepo repository.AccountRepository
	Hasher      service.PasswordHasher
	Tokens      service.ResetTokenGenerator
	Mailer      service.Mailer
	Config      *config.Config
	Logger      *slog.Logger
}

// NewAccountService is the constructor for accountService. It receives all dependencies as interfaces.
func NewAccountService(params AccountServiceParams) usecase.AccountUsecase {
	resetTokenTTL := defaultResetTokenTTL
	resetLinkBase := defaultResetLinkBaseURL
	if params.Config != nil && params.Config.Reset != nil {
		if params.Config.Reset.TokenTTL > 0 {
			resetTokenTTL = params.Config.Reset.TokenTTL
		}
		if params.Config.Reset.LinkBaseURL != "" {
			resetLinkBase = params.Config.Reset.LinkBaseURL
		}
	}

	return &accountService{
		txManager:     params.TxManager,
		accountRepo:   params.AccountRepo,
		hasher:        params.Hasher,
		tokens:        params.Tokens,
		mailer:        params.Mailer,
		resetTokenTTL: resetTokenTTL,
		resetLinkBase: resetLinkBase,
		logger:        params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *accountService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// SignUp orchestrates the complete account registration process.
// Regular signups fail on any email or username collision. Google signups
// are idempotent on email and derive a free username on collision.
func (srv *accountService) SignUp(ctx context.Context, input usecase.SignUpInput) (*usecase.SignUpOutput, error) {
	if input.Username == "" || input.Email == "" || input.Password == "" {
		return nil, domainerrors.ErrMissingFields.WrapMessage("signup requires username, email and password")
	}

	srv.log(ctx).Info("Starting signup", slog.String("email", input.Email), slog.Bool("isGoogle", input.IsGoogle))

	var output *usecase.SignUpOutput
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		accountRepo := repoFactory.NewAccountRepository()

		existing, err := accountRepo.FindByEmail(ctx, input.Email)
		if err == nil {
			if input.IsGoogle {
				// Google signups are idempotent: the stored account wins.
				srv.log(ctx).Debug("Google signup matched existing email", slog.Any("accountID", existing.ID))
				output = &usecase.SignUpOutput{Username: existing.Username, Existing: true}

				return nil
			}

			return domainerrors.ErrEmailExists.WrapMessage("signup email collision")
		}
		if !errors.Is(err, repository.ErrAccountNotFound) {
			return errors.Wrap(err, "failed to find account by email")
		}

		username, err := srv.resolveUsername(ctx, accountRepo, input.Username, input.IsGoogle)
		if err != nil {
			return err
		}

		hashedPassword, err := srv.hasher.Hash(input.Password)
		if err != nil {
			srv.log(ctx).Error("Failed to hash password during signup", slog.Any("error", err))

			return domainerrors.ErrPasswordHashFailed.WrapMessage("failed to hash password during signup")
		}

		newAccount := &entity.Account{
			Username:     username,
			Email:        input.Email,
			PasswordHash: hashedPassword,
		}

		if err := accountRepo.Create(ctx, newAccount); err != nil {
			return errors.Wrap(err, "failed to create account during signup")
		}

		output = &usecase.SignUpOutput{Username: newAccount.Username}

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Signup failed", slog.String("email", input.Email), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute signup transaction")
	}

	srv.log(ctx).Debug("Signup completed", slog.String("username", output.Username), slog.Bool("existing", output.Existing))

	return output, nil
}

// resolveUsername returns a username that is free at the time of the check.
// For regular signups any collision is an error. Google signups probe
// base_1, base_2, ... up to the sequential cap, then fall back to a random
// suffix. The unique index on accounts.username still backstops races.
func (srv *accountService) resolveUsername(
	ctx context.Context,
	accountRepo repository.AccountRepository,
	base string,
	isGoogle bool,
) (string, error) {
	taken, err := srv.usernameTaken(ctx, accountRepo, base)
	if err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}

	if !isGoogle {
		return "", domainerrors.ErrUsernameExists.WrapMessage("signup username collision")
	}

	for counter := 1; counter <= maxSequentialSuffixes; counter++ {
		candidate := fmt.Sprintf("%s_%d", base, counter)

		taken, err := srv.usernameTaken(ctx, accountRepo, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			srv.log(ctx).Debug("Derived username for Google signup", slog.String("username", candidate))

			return candidate, nil
		}
	}

	// Sequential space is crowded, switch to a random suffix.
	tokenSuffix, err := srv.tokens.Generate()
	if err != nil {
		return "", errors.Wrap(err, "failed to generate username suffix")
	}
	candidate := fmt.Sprintf("%s_%s", base, tokenSuffix[:randomSuffixLen])

	taken, err = srv.usernameTaken(ctx, accountRepo, candidate)
	if err != nil {
		return "", err
	}
	if taken {
		return "", domainerrors.ErrUsernameExists.WrapMessage("exhausted username candidates")
	}

	return candidate, nil
}

func (srv *accountService) usernameTaken(ctx context.Context, accountRepo repository.AccountRepository, username string) (bool, error) {
	_, err := accountRepo.FindByUsername(ctx, username)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repository.ErrAccountNotFound) {
		return false, nil
	}

	return false, errors.Wrap(err, "failed to find account by username")
}

// Login verifies the username and password pair.
func (srv *accountService) Login(ctx context.Context, input usecase.LoginInput) (*usecase.LoginOutput, error) {
	if input.Username == "" || input.Password == "" {
		return nil, domainerrors.ErrMissingFields.WrapMessage("login requires username and password")
	}

	srv.log(ctx).Debug("Starting login", slog.String("username", input.Username))

	// Single read, no transaction needed.
	account, err := srv.accountRepo.FindByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			srv.log(ctx).Warn("Login failed, unknown username", slog.String("username", input.Username))

			return nil, domainerrors.ErrAccountNotFound.WrapMessage("login failed")
		}

		return nil, errors.Wrap(err, "failed to find account by username")
	}

	// Check password outside any transaction (bcrypt is CPU-bound).
	if !srv.hasher.Check(input.Password, account.PasswordHash) {
		srv.log(ctx).Warn("Login failed, password mismatch", slog.String("username", input.Username))

		return nil, domainerrors.ErrIncorrectPassword.WrapMessage("login failed")
	}

	srv.log(ctx).Debug("Login succeeded", slog.Any("accountID", account.ID))

	return &usecase.LoginOutput{Username: account.Username}, nil
}

// ForgotPassword issues a reset token, persists it on the account and mails
// the reset link. A repeated request overwrites the previous token.
func (srv *accountService) ForgotPassword(ctx context.Context, input usecase.ForgotPasswordInput) error {
	if input.Email == "" {
		return domainerrors.ErrMissingFields.WrapMessage("forgot password requires an email")
	}

	srv.log(ctx).Info("Starting password reset request", slog.String("email", input.Email))

	var to, link string
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		accountRepo := repoFactory.NewAccountRepository()

		account, err := accountRepo.FindByEmail(ctx, input.Email)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return domainerrors.ErrEmailNotFound.WrapMessage("password reset for unknown email")
			}

			return errors.Wrap(err, "failed to find account by email")
		}

		resetToken, err := srv.tokens.Generate()
		if err != nil {
			return errors.Wrap(err, "failed to generate reset token")
		}

		account.SetResetToken(resetToken, time.Now().Add(srv.resetTokenTTL))

		if err := accountRepo.Update(ctx, account); err != nil {
			return errors.Wrap(err, "failed to store reset token")
		}

		to = account.Email
		link = srv.resetLink(resetToken)

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Password reset request failed", slog.String("email", input.Email), slog.Any("error", err))

		return errors.Wrap(err, "failed to execute password reset transaction")
	}

	// Mail outside the transaction. The token is already persisted, so a
	// delivery failure surfaces as an error without poisoning the commit.
	if err := srv.mailer.SendPasswordReset(ctx, to, link); err != nil {
		srv.log(ctx).Error("Failed to send reset mail", slog.String("email", to), slog.Any("error", err))

		return domainerrors.ErrMailDeliveryFailed.WrapMessage("failed to send reset mail")
	}

	srv.log(ctx).Debug("Password reset link sent", slog.String("email", to))

	return nil
}

func (srv *accountService) resetLink(token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", strings.TrimSuffix(srv.resetLinkBase, "/"), token)
}

// ResetPassword consumes a reset token and replaces the account password.
// The token pair is cleared in the same transaction, making it single-use.
func (srv *accountService) ResetPassword(ctx context.Context, input usecase.ResetPasswordInput) error {
	if input.Token == "" || input.NewPassword == "" {
		return domainerrors.ErrMissingFields.WrapMessage("password reset requires token and new password")
	}

	srv.log(ctx).Info("Starting password reset")

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		accountRepo := repoFactory.NewAccountRepository()

		account, err := accountRepo.FindByResetToken(ctx, input.Token, time.Now())
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return domainerrors.ErrResetTokenInvalid.WrapMessage("reset token unknown or expired")
			}

			return errors.Wrap(err, "failed to find account by reset token")
		}

		hashedPassword, err := srv.hasher.Hash(input.NewPassword)
		if err != nil {
			srv.log(ctx).Error("Failed to hash password during reset", slog.Any("error", err))

			return domainerrors.ErrPasswordHashFailed.WrapMessage("failed to hash password during reset")
		}

		account.PasswordHash = hashedPassword
		account.ClearResetToken()

		if err := accountRepo.Update(ctx, account); err != nil {
			return errors.Wrap(err, "failed to update account password")
		}

		srv.log(ctx).Debug("Password reset completed", slog.Any("accountID", account.ID))

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Password reset failed", slog.Any("error", err))

		return errors.Wrap(err, "failed to execute password reset transaction")
	}

	return nil
}
