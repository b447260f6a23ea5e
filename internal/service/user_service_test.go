package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"risk-sentinel/internal/domain"
	"risk-sentinel/internal/repository"
)

type mockUserRepo struct {
	byUsername map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byUsername: make(map[string]domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()
	m.byUsername[user.Username] = user
	return user, nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	user, ok := m.byUsername[username]
	if !ok {
		return domain.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func newTestUserService() (*UserService, *mockUserRepo) {
	repo := newMockUserRepo()
	return NewUserService(zap.NewNop(), repo), repo
}

func TestUserService_CreateAndAuthenticate(t *testing.T) {
	svc, repo := newTestUserService()
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateUserInput{
		Username: "Counsellor1",
		Password: "Care@2026",
		Name:     "Dr. Sibanda, N.",
		Role:     domain.RoleCounsellor,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Username != "counsellor1" {
		t.Errorf("username not normalized: %q", user.Username)
	}
	if user.RoleLabel != "Counsellor" {
		t.Errorf("role label = %q", user.RoleLabel)
	}
	if stored := repo.byUsername["counsellor1"]; stored.PasswordHash == "Care@2026" || stored.PasswordHash == "" {
		t.Fatal("password was not hashed")
	}

	got, err := svc.Authenticate(ctx, "counsellor1", "Care@2026")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.Role != domain.RoleCounsellor {
		t.Errorf("role = %q", got.Role)
	}
}

func TestUserService_AuthenticateFailuresLookAlike(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, CreateUserInput{
		Username: "welfare1", Password: "Welfare@2026", Role: domain.RoleWelfare,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	// Usuario inexistente y contraseña incorrecta devuelven el mismo error.
	_, errUnknown := svc.Authenticate(ctx, "ghost", "whatever")
	_, errWrongPass := svc.Authenticate(ctx, "welfare1", "wrong")
	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrongPass, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", errUnknown, errWrongPass)
	}
}

func TestUserService_CreateUserValidation(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, CreateUserInput{Username: "x", Password: "y", Role: "superuser"}); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, CreateUserInput{Username: "", Password: "y", Role: domain.RoleAdmin}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for empty username, got %v", err)
	}
}
