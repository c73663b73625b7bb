package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/config"
	"github.com/spec-kit/task-service/internal/domain"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

type mockUserRepo struct {
	createFn     func(ctx context.Context, user *domain.User) error
	updateFn     func(ctx context.Context, user *domain.User) error
	getByIDFn    func(ctx context.Context, id string) (*domain.User, error)
	getByEmailFn func(ctx context.Context, email string) (*domain.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	user.ID = "user-1"
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *domain.User) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, pgx.ErrNoRows
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, pgx.ErrNoRows
}

func newAuthService(repo *mockUserRepo) *AuthService {
	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            bcrypt.MinCost,
		},
	}
	return NewAuthService(cfg, repo)
}

func assertDomainError(t *testing.T, err error, code string, status int) {
	t.Helper()
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
	assert.Equal(t, status, domainErr.HTTPStatus)
}

func TestRegisterSuccess(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newAuthService(repo)

	user, token, _, err := svc.Register(context.Background(), "Alice", "Alice@Example.com ", "secret123")
	require.NoError(t, err)

	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "secret123", user.PasswordHash)
	assert.NoError(t, auth.ComparePassword(user.PasswordHash, "secret123"))

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		email    string
		password string
	}{
		{"empty name", "", "alice@example.com", "secret123"},
		{"invalid email", "Alice", "not-an-email", "secret123"},
		{"short password", "Alice", "alice@example.com", "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := false
			repo := &mockUserRepo{
				createFn: func(ctx context.Context, user *domain.User) error {
					created = true
					return nil
				},
			}
			svc := newAuthService(repo)

			_, _, _, err := svc.Register(context.Background(), tt.userName, tt.email, tt.password)
			assertDomainError(t, err, "VALIDATION_FAILED", 400)
			assert.False(t, created, "no record should be created")
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "user-1", Email: email}, nil
		},
	}
	svc := newAuthService(repo)

	_, _, _, err := svc.Register(context.Background(), "Alice", "alice@example.com", "secret123")
	assertDomainError(t, err, "CONFLICT", 409)
}

func TestLoginSuccess(t *testing.T) {
	hash, err := auth.HashPassword("secret123", bcrypt.MinCost)
	require.NoError(t, err)

	repo := &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "user-1", Name: "Alice", Email: email, PasswordHash: hash}, nil
		},
	}
	svc := newAuthService(repo)

	user, token, _, err := svc.Login(context.Background(), "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := auth.HashPassword("secret123", bcrypt.MinCost)
	require.NoError(t, err)

	repo := &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "user-1", Email: email, PasswordHash: hash}, nil
		},
	}
	svc := newAuthService(repo)

	_, _, _, err = svc.Login(context.Background(), "alice@example.com", "wrong-password")
	assertDomainError(t, err, "UNAUTHORIZED", 401)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newAuthService(&mockUserRepo{})

	_, _, _, err := svc.Login(context.Background(), "ghost@example.com", "secret123")
	assertDomainError(t, err, "UNAUTHORIZED", 401)
}

func TestLoginValidation(t *testing.T) {
	svc := newAuthService(&mockUserRepo{})

	_, _, _, err := svc.Login(context.Background(), "not-an-email", "secret123")
	assertDomainError(t, err, "VALIDATION_FAILED", 400)

	_, _, _, err = svc.Login(context.Background(), "alice@example.com", "")
	assertDomainError(t, err, "VALIDATION_FAILED", 400)
}

func TestGetCurrentUserNotFound(t *testing.T) {
	svc := newAuthService(&mockUserRepo{})

	_, err := svc.GetCurrentUser(context.Background(), "gone")
	assertDomainError(t, err, "NOT_FOUND", 404)
}

func TestUpdateProfilePartialName(t *testing.T) {
	stored := &domain.User{ID: "user-1", Name: "Alice", Email: "alice@example.com"}
	var updated *domain.User
	repo := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.User, error) {
			clone := *stored
			return &clone, nil
		},
		updateFn: func(ctx context.Context, user *domain.User) error {
			updated = user
			return nil
		},
	}
	svc := newAuthService(repo)

	name := "Alice B"
	user, err := svc.UpdateProfile(context.Background(), "user-1", ProfileUpdateInput{Name: &name})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Alice B", user.Name)
	assert.Equal(t, "alice@example.com", user.Email, "email unchanged")
}

func TestUpdateProfileValidation(t *testing.T) {
	repo := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.User, error) {
			return &domain.User{ID: id, Name: "Alice", Email: "alice@example.com"}, nil
		},
	}
	svc := newAuthService(repo)

	empty := "  "
	_, err := svc.UpdateProfile(context.Background(), "user-1", ProfileUpdateInput{Name: &empty})
	assertDomainError(t, err, "VALIDATION_FAILED", 400)

	bad := "not-an-email"
	_, err = svc.UpdateProfile(context.Background(), "user-1", ProfileUpdateInput{Email: &bad})
	assertDomainError(t, err, "VALIDATION_FAILED", 400)
}

func TestUpdateProfileEmailConflict(t *testing.T) {
	repo := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.User, error) {
			return &domain.User{ID: id, Name: "Alice", Email: "alice@example.com"}, nil
		},
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "user-2", Email: email}, nil
		},
	}
	svc := newAuthService(repo)

	taken := "bob@example.com"
	_, err := svc.UpdateProfile(context.Background(), "user-1", ProfileUpdateInput{Email: &taken})
	assertDomainError(t, err, "CONFLICT", 409)
}

func TestRegisterStoreFailureSurfacesInternal(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *domain.User) error {
			return errors.New("connection refused")
		},
	}
	svc := newAuthService(repo)

	_, _, _, err := svc.Register(context.Background(), "Alice", "alice@example.com", "secret123")
	assertDomainError(t, err, "INTERNAL_ERROR", 500)
}
