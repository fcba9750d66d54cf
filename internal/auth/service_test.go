package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-eventmap/internal/shared/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"golang.org/x/crypto/bcrypt"
)

var pgErr = errors.New("db error")

var userColumns = []string{"id", "username", "role", "password_hash", "created_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(hash)
}

func TestCreateUserAndLogin(t *testing.T) {
	mock := newMock(t)
	createdAt := time.Now().Add(-time.Minute)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "curator", pgxmock.AnyArg(), "admin").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	svc := NewService("test-secret", mock)
	user, err := svc.CreateUser(context.Background(), " curator ", "password123", "admin")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.ID == "" || user.Username != "curator" || user.PasswordHash == "password123" {
		t.Fatalf("unexpected user %+v", user)
	}

	mock.ExpectQuery(`SELECT id, username, role, password_hash, created_at`).
		WithArgs("curator").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(user.ID, user.Username, "admin", user.PasswordHash, createdAt))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), user.ID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, tokens, err := svc.Login(context.Background(), LoginRequest{Username: "curator", Password: "password123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := svc.ValidateAccessToken(tokens.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != "admin" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateUserValidationAndConflict(t *testing.T) {
	mock := newMock(t)
	svc := NewService("test-secret", mock)

	if _, err := svc.CreateUser(context.Background(), "", "", "admin"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "curator", pgxmock.AnyArg(), "admin").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	if _, err := svc.CreateUser(context.Background(), "curator", "pw", "admin"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateUserHashError(t *testing.T) {
	oldHash := hashPasswordFn
	hashPasswordFn = func(_ []byte, _ int) ([]byte, error) {
		return nil, pgErr
	}
	defer func() { hashPasswordFn = oldHash }()

	svc := NewService("test-secret", nil)
	if _, err := svc.CreateUser(context.Background(), "curator", "pw", "admin"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	mock := newMock(t)
	svc := NewService("test-secret", mock)

	mock.ExpectQuery(`SELECT id, username, role, password_hash, created_at`).
		WithArgs("curator").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow("user-1", "curator", "admin", hashOf(t, "correct"), time.Now()))
	_, _, err := svc.Login(context.Background(), LoginRequest{Username: "curator", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	mock.ExpectQuery(`SELECT id, username, role, password_hash, created_at`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)
	_, _, err = svc.Login(context.Background(), LoginRequest{Username: "ghost", Password: "x"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user must look like a bad password, got %v", err)
	}

	mock.ExpectQuery(`SELECT id, username, role, password_hash, created_at`).
		WithArgs("curator").
		WillReturnError(pgErr)
	_, _, err = svc.Login(context.Background(), LoginRequest{Username: "curator", Password: "x"})
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestConsumeRefreshToken(t *testing.T) {
	mock := newMock(t)
	svc := NewService("test-secret", mock)

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	tokens, err := svc.GenerateTokens(context.Background(), "user-1", "editor")
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	mock.ExpectQuery(`UPDATE refresh_tokens rt SET revoked_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "role", "expires_at"}).
			AddRow("user-1", "admin", time.Now().Add(5*time.Minute)))

	claims, err := svc.ConsumeRefreshToken(context.Background(), tokens.RefreshToken)
	if err != nil {
		t.Fatalf("consume refresh: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "admin" {
		t.Fatalf("refresh must pick up the stored role, got %+v", claims)
	}

	mock.ExpectQuery(`UPDATE refresh_tokens rt SET revoked_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnError(pgx.ErrNoRows)
	if _, err := svc.ConsumeRefreshToken(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected second use to be rejected, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestConsumeRefreshTokenRejected(t *testing.T) {
	mock := newMock(t)
	svc := NewService("test-secret", mock)

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-2", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	tokens, err := svc.GenerateTokens(context.Background(), "user-2", "admin")
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	mock.ExpectQuery(`UPDATE refresh_tokens rt SET revoked_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "role", "expires_at"}).
			AddRow("user-2", "admin", time.Now().Add(-time.Minute)))
	if _, err := svc.ConsumeRefreshToken(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}

	mock.ExpectQuery(`UPDATE refresh_tokens rt SET revoked_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "role", "expires_at"}).
			AddRow("user-9", "admin", time.Now().Add(time.Minute)))
	if _, err := svc.ConsumeRefreshToken(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected token of another user to be rejected, got %v", err)
	}

	mock.ExpectQuery(`UPDATE refresh_tokens rt SET revoked_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnError(pgErr)
	_, err = svc.ConsumeRefreshToken(context.Background(), tokens.RefreshToken)
	if err == nil || errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected storage error, got %v", err)
	}

	if _, err := svc.ConsumeRefreshToken(context.Background(), "not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected bad signature to be rejected, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGenerateTokensErrors(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgErr)
	if _, err := NewService("test-secret", mock).GenerateTokens(context.Background(), "user-1", "admin"); err == nil {
		t.Fatalf("expected save error")
	}

	oldSign := signTokenFn
	defer func() { signTokenFn = oldSign }()
	for failOn := 1; failOn <= 2; failOn++ {
		call := 0
		signTokenFn = func(_ *Service, _, _ string, _ time.Duration) (string, error) {
			call++
			if call == failOn {
				return "", pgErr
			}
			return "token", nil
		}
		if _, err := NewService("test-secret", nil).GenerateTokens(context.Background(), "user-1", "admin"); err == nil {
			t.Fatalf("expected sign error on call %d", failOn)
		}
	}
}

func TestParseTokenInvalid(t *testing.T) {
	oldParse := parseWithClaimsFn
	parseWithClaimsFn = func(_ string, _ jwt.Claims, _ jwt.Keyfunc, _ ...jwt.ParserOption) (*jwt.Token, error) {
		return &jwt.Token{Valid: false, Claims: &Claims{}}, nil
	}
	defer func() { parseWithClaimsFn = oldParse }()

	if _, err := NewService("test-secret", nil).parseToken("token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestValidateAccessTokenWrongSecret(t *testing.T) {
	token, err := NewService("other-secret", nil).signToken("user-1", "admin", accessTokenTTL)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewService("test-secret", nil).ValidateAccessToken(token); err == nil {
		t.Fatalf("expected signature mismatch")
	}
}
