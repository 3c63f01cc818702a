package handler_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"passport/internal/delivery/http/middleware"
	"passport/internal/delivery/http/router"
	"passport/internal/delivery/http/router/handler"
	"passport/internal/delivery/http/validator"
	domainerrors "passport/internal/domain/errors"
	mockUC "passport/internal/mocks/usecase"
	"passport/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// newTestServer wires a full Echo instance the way the production server
// does: validator, error handler and the account routes.
func newTestServer(t *testing.T) (*echo.Echo, *mockUC.MockAccountUsecase) {
	uc := mockUC.NewMockAccountUsecase(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	e := echo.New()
	e.Validator = validator.New()
	e.HTTPErrorHandler = middleware.NewErrorMiddleware(logger).HandleHTTPError

	r := router.NewRouter(router.RouterParams{
		AccountHandler: handler.NewAccountHandler(uc, logger),
	})
	r.RegisterRoutes(e)

	return e, uc
}

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec
}

func TestAccountHandler_SignUp_Created(t *testing.T) {
	e, uc := newTestServer(t)

	uc.EXPECT().
		SignUp(mock.Anything, usecase.SignUpInput{
			Username: "alice",
			Email:    "alice@example.com",
			Password: "Password123!",
		}).
		Return(&usecase.SignUpOutput{Username: "alice"}, nil)

	rec := postJSON(e, "/signup", `{"username":"alice","email":"alice@example.com","password":"Password123!"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "Signup successful!")
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
}

func TestAccountHandler_SignUp_GoogleExistingAccount(t *testing.T) {
	e, uc := newTestServer(t)

	uc.EXPECT().
		SignUp(mock.Anything, usecase.SignUpInput{
			Username: "alice",
			Email:    "alice@gmail.com",
			Password: "google-sub-token",
			IsGoogle: true,
		}).
		Return(&usecase.SignUpOutput{Username: "alice_2", Existing: true}, nil)

	rec := postJSON(e, "/signup", `{"username":"alice","email":"alice@gmail.com","password":"google-sub-token","isGoogle":true}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "User already exists, logged in")
	assert.Contains(t, rec.Body.String(), `"username":"alice_2"`)
}

func TestAccountHandler_SignUp_MissingFields(t *testing.T) {
	e, _ := newTestServer(t)

	rec := postJSON(e, "/signup", `{"username":"alice","email":"alice@example.com"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "All fields are required.")
	assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
}

func TestAccountHandler_SignUp_EmailExists(t *testing.T) {
	e, uc := newTestServer(t)

	uc.EXPECT().
		SignUp(mock.Anything, mock.AnythingOfType("usecase.SignUpInput")).
		Return(nil, domainerrors.ErrEmailExists)

	rec := postJSON(e, "/signup", `{"username":"alice","email":"alice@example.com","password":"Password123!"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email already exists.")
	assert.Contains(t, rec.Body.String(), "EMAIL_EXISTS")
}

func TestAccountHandler_SignUp_MalformedJSON(t *testing.T) {
	e, _ := newTestServer(t)

	rec := postJSON(e, "/signup", `{"username":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountHandler_Login_Success(t *testing.T) {
	e, uc := newTestServer(t)

	uc.EXPECT().
		Login(mock.Anything, usecase.LoginInput{Username: "alice", Password: "Password123!"}).
		Return(&usecase.LoginOutput{Username: "alice"}, nil)

	rec := postJSON(e, "/login", `{"username":"alice","password":"Password123!"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Login successful!")
}

func TestAccountHandler_Login_IncorrectPassword(t *testing.T) {
	e, uc := newTestServer(t)

	uc.EXPECT().
		Login(mock.Anything, usecase.LoginInput{Username: "alice", Password: "wrong"}).
		Return(nil, domainerrors.ErrIncorrectPassword)

	rec := postJSON(e, "/login", `{"username":"alice","password":"wrong"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Incorrect password.")
}

func TestAccountHandler_Login_UnknownUsername(t *testing.T) {
	e, uc := newTestServer(t)

	uc.EXPECT().
		Login(mock.Anything, usecase.LoginInput{Username: "ghost", Password: "whatever"}).
		Return(nil, domainerrors.ErrAccountNotFound)

	rec := postJSON(e, "/login", `{"username":"ghost","password":"whatever"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "User not found.")
}

func TestAccountHandler_ForgotPassword_Success(t *testing.T) {
	e, uc := newTestServer(t)

	uc.EXPECT().
		ForgotPassword(mock.Anything, usecase.ForgotPasswordInput{Email: "alice@example.com"}).
		Return(nil)

	rec := postJSON(e, "/forgot-password", `{"email":"alice@example.com"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Reset link sent to your email.")
}

func TestAccountHandler_ForgotPassword_UnknownEmail(t *testing.T) {
	e, uc := newTestServer(t)

	uc.EXPECT().
		ForgotPassword(mock.Anything, usecase.ForgotPasswordInput{Email: "ghost@example.com"}).
		Return(domainerrors.ErrEmailNotFound)

	rec := postJSON(e, "/forgot-password", `{"email":"ghost@example.com"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "User not found.")
}

func TestAccountHandler_ResetPassword_Success(t *testing.T) {
	e, uc := newTestServer(t)

	uc.EXPECT().
		ResetPassword(mock.Anything, usecase.ResetPasswordInput{Token: "reset-token-hex", NewPassword: "NewPassword123!"}).
		Return(nil)

	rec := postJSON(e, "/reset-password", `{"token":"reset-token-hex","newPassword":"NewPassword123!"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Password reset successful.")
}

func TestAccountHandler_ResetPassword_InvalidToken(t *testing.T) {
	e, uc := newTestServer(t)

	uc.EXPECT().
		ResetPassword(mock.Anything, usecase.ResetPasswordInput{Token: "expired", NewPassword: "NewPassword123!"}).
		Return(domainerrors.ErrResetTokenInvalid)

	rec := postJSON(e, "/reset-password", `{"token":"expired","newPassword":"NewPassword123!"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid or expired token.")
}

func TestAccountHandler_InfrastructureErrorStaysGeneric(t *testing.T) {
	e, uc := newTestServer(t)

	uc.EXPECT().
		Login(mock.Anything, usecase.LoginInput{Username: "alice", Password: "Password123!"}).
		Return(nil, errors.New("pq: connection refused host=10.0.0.7 user=passport"))

	rec := postJSON(e, "/login", `{"username":"alice","password":"Password123!"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.Contains(t, rec.Body.String(), "Internal server error")
	assert.NotContains(t, rec.Body.String(), "pq:")
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestAccountHandler_HealthCheck(t *testing.T) {
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
