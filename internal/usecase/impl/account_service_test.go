package impl

import (
	"context"
	"fmt"
	"testing"
	"time"

	"passport/internal/domain/entity"
	domainerrors "passport/internal/domain/errors"
	"passport/internal/domain/repository"
	mockRepo "passport/internal/mocks/repository"
	mockSvc "passport/internal/mocks/service"
	"passport/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// accountServiceFixtures holds all test dependencies for account service tests.
type accountServiceFixtures struct {
	service     usecase.AccountUsecase
	txManager   *mockRepo.MockTransactionManager
	accountRepo *mockRepo.MockAccountRepository
	hasher      *mockSvc.MockPasswordHasher
	tokens      *mockSvc.MockResetTokenGenerator
	mailer      *mockSvc.MockMailer
}

func createTestAccountService(t *testing.T) accountServiceFixtures {
	txManager := mockRepo.NewMockTransactionManager(t)
	accountRepo := mockRepo.NewMockAccountRepository(t)
	hasher := mockSvc.NewMockPasswordHasher(t)
	tokens := mockSvc.NewMockResetTokenGenerator(t)
	mailer := mockSvc.NewMockMailer(t)

	service := NewAccountService(AccountServiceParams{
		TxManager:   txManager,
		AccountRepo: accountRepo,
		Hasher:      hasher,
		Tokens:      tokens,
		Mailer:      mailer,
		Config:      newTestConfig("https://passport.example.com"),
		Logger:      newDiscardLogger(),
	})

	return accountServiceFixtures{
		service:     service,
		txManager:   txManager,
		accountRepo: accountRepo,
		hasher:      hasher,
		tokens:      tokens,
		mailer:      mailer,
	}
}

// expectTransaction wires the transaction manager mock so the callback runs
// against a factory that hands out the given repository.
func expectTransaction(t *testing.T, fx accountServiceFixtures, txRepo *mockRepo.MockAccountRepository) {
	fx.txManager.EXPECT().
		Execute(mock.Anything, mock.AnythingOfType("func(repository.RepositoryFactory) error")).
		RunAndReturn(func(_ context.Context, fn func(repository.RepositoryFactory) error) error {
			mockFactory := mockRepo.NewMockRepositoryFactory(t)
			mockFactory.EXPECT().NewAccountRepository().Return(txRepo)

			return fn(mockFactory)
		})
}

func TestAccountService_SignUp_Success(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()
	input := usecase.SignUpInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "Password123!",
	}

	txRepo := mockRepo.NewMockAccountRepository(t)
	expectTransaction(t, fx, txRepo)

	txRepo.EXPECT().
		FindByEmail(ctx, input.Email).
		Return(nil, repository.ErrAccountNotFound)
	txRepo.EXPECT().
		FindByUsername(ctx, input.Username).
		Return(nil, repository.ErrAccountNotFound)

	fx.hasher.EXPECT().Hash(input.Password).Return("hashed_password", nil)

	txRepo.EXPECT().
		Create(ctx, mock.AnythingOfType("*entity.Account")).
		Run(func(ctx context.Context, account *entity.Account) {
			assert.Equal(t, input.Username, account.Username)
			assert.Equal(t, input.Email, account.Email)
			assert.Equal(t, "hashed_password", account.PasswordHash)
			account.ID = uuid.New()
		}).
		Return(nil)

	output, err := fx.service.SignUp(ctx, input)

	require.NoError(t, err)
	require.NotNil(t, output)
	assert.Equal(t, input.Username, output.Username)
	assert.False(t, output.Existing)
}

func TestAccountService_SignUp_MissingFields(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()

	output, err := fx.service.SignUp(ctx, usecase.SignUpInput{
		Username: "alice",
		Email:    "alice@example.com",
	})

	assert.Nil(t, output)
	assert.True(t, errors.Is(err, domainerrors.ErrMissingFields))
}

func TestAccountService_SignUp_EmailExists(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()
	input := usecase.SignUpInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "Password123!",
	}

	txRepo := mockRepo.NewMockAccountRepository(t)
	expectTransaction(t, fx, txRepo)

	txRepo.EXPECT().
		FindByEmail(ctx, input.Email).
		Return(&entity.Account{ID: uuid.New(), Username: "someone", Email: input.Email}, nil)

	output, err := fx.service.SignUp(ctx, input)

	assert.Nil(t, output)
	assert.True(t, errors.Is(err, domainerrors.ErrEmailExists))
}

func TestAccountService_SignUp_GoogleExistingEmailIsIdempotent(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()
	input := usecase.SignUpInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "google-sub-token",
		IsGoogle: true,
	}

	txRepo := mockRepo.NewMockAccountRepository(t)
	expectTransaction(t, fx, txRepo)

	txRepo.EXPECT().
		FindByEmail(ctx, input.Email).
		Return(&entity.Account{ID: uuid.New(), Username: "alice_3", Email: input.Email}, nil)

	output, err := fx.service.SignUp(ctx, input)

	require.NoError(t, err)
	require.NotNil(t, output)
	assert.Equal(t, "alice_3", output.Username)
	assert.True(t, output.Existing)
}

func TestAccountService_SignUp_UsernameExists(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()
	input := usecase.SignUpInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "Password123!",
	}

	txRepo := mockRepo.NewMockAccountRepository(t)
	expectTransaction(t, fx, txRepo)

	txRepo.EXPECT().
		FindByEmail(ctx, input.Email).
		Return(nil, repository.ErrAccountNotFound)
	txRepo.EXPECT().
		FindByUsername(ctx, input.Username).
		Return(&entity.Account{ID: uuid.New(), Username: input.Username}, nil)

	output, err := fx.service.SignUp(ctx, input)

	assert.Nil(t, output)
	assert.True(t, errors.Is(err, domainerrors.ErrUsernameExists))
}

func TestAccountService_SignUp_GoogleSuffixesTakenUsername(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()
	input := usecase.SignUpInput{
		Username: "alice",
		Email:    "alice@gmail.com",
		Password: "google-sub-token",
		IsGoogle: true,
	}

	txRepo := mockRepo.NewMockAccountRepository(t)
	expectTransaction(t, fx, txRepo)

	txRepo.EXPECT().
		FindByEmail(ctx, input.Email).
		Return(nil, repository.ErrAccountNotFound)
	txRepo.EXPECT().
		FindByUsername(ctx, "alice").
		Return(&entity.Account{ID: uuid.New(), Username: "alice"}, nil)
	txRepo.EXPECT().
		FindByUsername(ctx, "alice_1").
		Return(&entity.Account{ID: uuid.New(), Username: "alice_1"}, nil)
	txRepo.EXPECT().
		FindByUsername(ctx, "alice_2").
		Return(nil, repository.ErrAccountNotFound)

	fx.hasher.EXPECT().Hash(input.Password).Return("hashed_password", nil)

	txRepo.EXPECT().
		Create(ctx, mock.AnythingOfType("*entity.Account")).
		Run(func(ctx context.Context, account *entity.Account) {
			assert.Equal(t, "alice_2", account.Username)
		}).
		Return(nil)

	output, err := fx.service.SignUp(ctx, input)

	require.NoError(t, err)
	require.NotNil(t, output)
	assert.Equal(t, "alice_2", output.Username)
	assert.False(t, output.Existing)
}

func TestAccountService_SignUp_GoogleFallsBackToRandomSuffix(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()
	input := usecase.SignUpInput{
		Username: "alice",
		Email:    "alice@gmail.com",
		Password: "google-sub-token",
		IsGoogle: true,
	}

	txRepo := mockRepo.NewMockAccountRepository(t)
	expectTransaction(t, fx, txRepo)

	txRepo.EXPECT().
		FindByEmail(ctx, input.Email).
		Return(nil, repository.ErrAccountNotFound)
	txRepo.EXPECT().
		FindByUsername(ctx, "alice").
		Return(&entity.Account{ID: uuid.New(), Username: "alice"}, nil)
	for counter := 1; counter <= maxSequentialSuffixes; counter++ {
		candidate := fmt.Sprintf("alice_%d", counter)
		txRepo.EXPECT().
			FindByUsername(ctx, candidate).
			Return(&entity.Account{ID: uuid.New(), Username: candidate}, nil)
	}

	fx.tokens.EXPECT().Generate().Return("deadbeefcafe0123456789", nil)
	txRepo.EXPECT().
		FindByUsername(ctx, "alice_deadbeef").
		Return(nil, repository.ErrAccountNotFound)

	fx.hasher.EXPECT().Hash(input.Password).Return("hashed_password", nil)

	txRepo.EXPECT().
		Create(ctx, mock.AnythingOfType("*entity.Account")).
		Return(nil)

	output, err := fx.service.SignUp(ctx, input)

	require.NoError(t, err)
	require.NotNil(t, output)
	assert.Equal(t, "alice_deadbeef", output.Username)
}

func TestAccountService_Login_Success(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()
	account := &entity.Account{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hashed_password",
	}

	fx.accountRepo.EXPECT().
		FindByUsername(ctx, "alice").
		Return(account, nil)
	fx.hasher.EXPECT().Check("Password123!", account.PasswordHash).Return(true)

	output, err := fx.service.Login(ctx, usecase.LoginInput{Username: "alice", Password: "Password123!"})

	require.NoError(t, err)
	require.NotNil(t, output)
	assert.Equal(t, "alice", output.Username)
}

func TestAccountService_Login_UnknownUsername(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()

	fx.accountRepo.EXPECT().
		FindByUsername(ctx, "ghost").
		Return(nil, repository.ErrAccountNotFound)

	output, err := fx.service.Login(ctx, usecase.LoginInput{Username: "ghost", Password: "whatever"})

	assert.Nil(t, output)
	assert.True(t, errors.Is(err, domainerrors.ErrAccountNotFound))
}

func TestAccountService_Login_WrongPassword(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()
	account := &entity.Account{
		ID:           uuid.New(),
		Username:     "alice",
		PasswordHash: "hashed_password",
	}

	fx.accountRepo.EXPECT().
		FindByUsername(ctx, "alice").
		Return(account, nil)
	fx.hasher.EXPECT().Check("wrong", account.PasswordHash).Return(false)

	output, err := fx.service.Login(ctx, usecase.LoginInput{Username: "alice", Password: "wrong"})

	assert.Nil(t, output)
	assert.True(t, errors.Is(err, domainerrors.ErrIncorrectPassword))
}

func TestAccountService_Login_MissingFields(t *testing.T) {
	fx := createTestAccountService(t)

	output, err := fx.service.Login(context.Background(), usecase.LoginInput{Username: "alice"})

	assert.Nil(t, output)
	assert.True(t, errors.Is(err, domainerrors.ErrMissingFields))
}

func TestAccountService_ForgotPassword_Success(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()
	account := &entity.Account{
		ID:       uuid.New(),
		Username: "alice",
		Email:    "alice@example.com",
	}

	txRepo := mockRepo.NewMockAccountRepository(t)
	expectTransaction(t, fx, txRepo)

	txRepo.EXPECT().
		FindByEmail(ctx, account.Email).
		Return(account, nil)
	fx.tokens.EXPECT().Generate().Return("reset-token-hex", nil)

	txRepo.EXPECT().
		Update(ctx, mock.AnythingOfType("*entity.Account")).
		Run(func(ctx context.Context, updated *entity.Account) {
			require.NotNil(t, updated.ResetToken)
			assert.Equal(t, "reset-token-hex", *updated.ResetToken)
			require.NotNil(t, updated.ResetTokenExpiry)
			assert.WithinDuration(t, time.Now().Add(30*time.Minute), *updated.ResetTokenExpiry, 5*time.Second)
		}).
		Return(nil)

	fx.mailer.EXPECT().
		SendPasswordReset(ctx, account.Email, "https://passport.example.com/reset-password?token=reset-token-hex").
		Return(nil)

	err := fx.service.ForgotPassword(ctx, usecase.ForgotPasswordInput{Email: account.Email})

	require.NoError(t, err)
}

func TestAccountService_ForgotPassword_UnknownEmail(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()

	txRepo := mockRepo.NewMockAccountRepository(t)
	expectTransaction(t, fx, txRepo)

	txRepo.EXPECT().
		FindByEmail(ctx, "ghost@example.com").
		Return(nil, repository.ErrAccountNotFound)

	err := fx.service.ForgotPassword(ctx, usecase.ForgotPasswordInput{Email: "ghost@example.com"})

	assert.True(t, errors.Is(err, domainerrors.ErrEmailNotFound))
}

func TestAccountService_ForgotPassword_MailFailure(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()
	account := &entity.Account{
		ID:       uuid.New(),
		Username: "alice",
		Email:    "alice@example.com",
	}

	txRepo := mockRepo.NewMockAccountRepository(t)
	expectTransaction(t, fx, txRepo)

	txRepo.EXPECT().
		FindByEmail(ctx, account.Email).
		Return(account, nil)
	fx.tokens.EXPECT().Generate().Return("reset-token-hex", nil)
	txRepo.EXPECT().
		Update(ctx, mock.AnythingOfType("*entity.Account")).
		Return(nil)

	fx.mailer.EXPECT().
		SendPasswordReset(ctx, account.Email, mock.AnythingOfType("string")).
		Return(errors.New("smtp connection refused"))

	err := fx.service.ForgotPassword(ctx, usecase.ForgotPasswordInput{Email: account.Email})

	assert.True(t, errors.Is(err, domainerrors.ErrMailDeliveryFailed))
}

func TestAccountService_ResetPassword_Success(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()
	token := "reset-token-hex"
	expiry := time.Now().Add(10 * time.Minute)
	account := &entity.Account{
		ID:               uuid.New(),
		Username:         "alice",
		Email:            "alice@example.com",
		PasswordHash:     "old_hash",
		ResetToken:       &token,
		ResetTokenExpiry: &expiry,
	}

	txRepo := mockRepo.NewMockAccountRepository(t)
	expectTransaction(t, fx, txRepo)

	txRepo.EXPECT().
		FindByResetToken(ctx, token, mock.AnythingOfType("time.Time")).
		Return(account, nil)
	fx.hasher.EXPECT().Hash("NewPassword123!").Return("new_hash", nil)

	txRepo.EXPECT().
		Update(ctx, mock.AnythingOfType("*entity.Account")).
		Run(func(ctx context.Context, updated *entity.Account) {
			assert.Equal(t, "new_hash", updated.PasswordHash)
			assert.Nil(t, updated.ResetToken)
			assert.Nil(t, updated.ResetTokenExpiry)
		}).
		Return(nil)

	err := fx.service.ResetPassword(ctx, usecase.ResetPasswordInput{Token: token, NewPassword: "NewPassword123!"})

	require.NoError(t, err)
}

func TestAccountService_ResetPassword_InvalidToken(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()

	txRepo := mockRepo.NewMockAccountRepository(t)
	expectTransaction(t, fx, txRepo)

	txRepo.EXPECT().
		FindByResetToken(ctx, "expired-token", mock.AnythingOfType("time.Time")).
		Return(nil, repository.ErrAccountNotFound)

	err := fx.service.ResetPassword(ctx, usecase.ResetPasswordInput{Token: "expired-token", NewPassword: "NewPassword123!"})

	assert.True(t, errors.Is(err, domainerrors.ErrResetTokenInvalid))
}

func TestAccountService_ResetPassword_LookupFiltersOnCurrentTime(t *testing.T) {
	fx := createTestAccountService(t)

	ctx := context.Background()
	before := time.Now()

	txRepo := mockRepo.NewMockAccountRepository(t)
	expectTransaction(t, fx, txRepo)

	// The expiry comparison lives in the lookup, so the service has to pass
	// wall-clock time. A stored token whose expiry has passed then misses
	// even on an exact string match.
	txRepo.EXPECT().
		FindByResetToken(ctx, "stale-token", mock.AnythingOfType("time.Time")).
		Run(func(_ context.Context, _ string, now time.Time) {
			assert.False(t, now.Before(before))
			assert.WithinDuration(t, time.Now(), now, 5*time.Second)
		}).
		Return(nil, repository.ErrAccountNotFound)

	err := fx.service.ResetPassword(ctx, usecase.ResetPasswordInput{Token: "stale-token", NewPassword: "NewPassword123!"})

	assert.True(t, errors.Is(err, domainerrors.ErrResetTokenInvalid))
}

func TestAccountService_ResetPassword_MissingFields(t *testing.T) {
	fx := createTestAccountService(t)

	err := fx.service.ResetPassword(context.Background(), usecase.ResetPasswordInput{Token: "only-token"})

	assert.True(t, errors.Is(err, domainerrors.ErrMissingFields))
}
