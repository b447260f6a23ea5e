package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"risk-sentinel/internal/domain"
)

// AuditRepository registra cada acceso a datos sensibles de estudiantes.
// Las escrituras son append-only; la lectura existe solo para el panel admin.
type AuditRepository interface {
	Insert(ctx context.Context, entry domain.AuditEntry) error
	ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

type PgAuditRepository struct {
	pool *pgxpool.Pool
}

func NewPgAuditRepository(pool *pgxpool.Pool) *PgAuditRepository {
	return &PgAuditRepository{pool: pool}
}

func (r *PgAuditRepository) Insert(ctx context.Context, entry domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO audit_logs (id, username, action, target, level)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.pool.Exec(ctx, query,
		entry.ID, entry.Username, entry.Action, entry.Target, entry.Level,
	); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *PgAuditRepository) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	const query = `
		SELECT id, username, action, target, level, created_at
		FROM audit_logs ORDER BY created_at DESC LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.Action, &e.Target, &e.Level, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
