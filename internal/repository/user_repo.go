package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"risk-sentinel/internal/domain"
)

// ErrUserNotFound se devuelve cuando el username no existe.
var ErrUserNotFound = errors.New("repository: user not found")

// UserRepository maneja las cuentas del personal (counsellor, welfare, admin).
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
}

type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO users (id, username, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		user.ID, user.Username, user.PasswordHash, user.Name, user.Role,
	).Scan(&user.CreatedAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *PgUserRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	const query = `
		SELECT id, username, password_hash, name, role, created_at
		FROM users WHERE username = $1
	`
	var u domain.User
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
