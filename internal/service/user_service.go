package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"risk-sentinel/internal/domain"
	"risk-sentinel/internal/repository"
)

// Etiquetas de rol mostradas en el frontend.
var roleLabels = map[string]string{
	domain.RoleCounsellor: "Counsellor",
	domain.RoleWelfare:    "Welfare Officer",
	domain.RoleAdmin:      "Administrator",
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
)

// UserService coordina autenticación y alta de cuentas del personal.
type UserService struct {
	logger *zap.Logger
	users  repository.UserRepository
}

func NewUserService(logger *zap.Logger, users repository.UserRepository) *UserService {
	return &UserService{logger: logger, users: users}
}

type CreateUserInput struct {
	Username string
	Password string
	Name     string
	Role     string
}

// CreateUser da de alta una cuenta con la contraseña hasheada con bcrypt.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (domain.User, error) {
	username := strings.TrimSpace(strings.ToLower(input.Username))
	if username == "" || input.Password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if _, ok := roleLabels[input.Role]; !ok {
		return domain.User{}, ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(input.Name),
		Role:         input.Role,
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	user.RoleLabel = roleLabels[user.Role]

	s.logger.Info("user created", zap.String("username", user.Username), zap.String("role", user.Role))
	return user, nil
}

// Authenticate valida usuario y contraseña. Un username inexistente y una
// contraseña incorrecta devuelven el mismo error para no filtrar cuáles
// cuentas existen.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}

	user.RoleLabel = roleLabels[user.Role]
	return user, nil
}
