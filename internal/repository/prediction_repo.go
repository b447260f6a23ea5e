package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"risk-sentinel/internal/domain"
)

// RiskStats agrega los resultados vigentes para el dashboard.
type RiskStats struct {
	Total       int            `json:"total"`
	TierCounts  map[string]int `json:"risk_counts"`
	AverageRisk float64        `json:"average_risk"`
}

// PredictionRepository persiste el último resultado por estudiante junto con
// el vector de features canónico usado para predecir. El vector habilita la
// búsqueda de perfiles de riesgo comparables por distancia.
type PredictionRepository interface {
	Upsert(ctx context.Context, result domain.PredictionResult, features []float64) error
	GetByStudent(ctx context.Context, studentID string) (domain.PredictionResult, error)
	Similar(ctx context.Context, studentID string, limit int) ([]domain.PredictionResult, error)
	Stats(ctx context.Context) (RiskStats, error)
}

// ErrPredictionNotFound se devuelve cuando el estudiante no tiene resultado.
var ErrPredictionNotFound = errors.New("repository: prediction not found")

type PgPredictionRepository struct {
	pool *pgxpool.Pool
}

func NewPgPredictionRepository(pool *pgxpool.Pool) *PgPredictionRepository {
	return &PgPredictionRepository{pool: pool}
}

func (r *PgPredictionRepository) Upsert(ctx context.Context, result domain.PredictionResult, features []float64) error {
	shap, err := json.Marshal(result.Attributions)
	if err != nil {
		return fmt.Errorf("marshal attributions: %w", err)
	}
	intervention, err := json.Marshal(result.Intervention)
	if err != nil {
		return fmt.Errorf("marshal interventions: %w", err)
	}
	vec := make([]float32, len(features))
	for i, v := range features {
		vec[i] = float32(v)
	}
	const query = `
		INSERT INTO predictions (student_id, name, risk, tier, prediction, shap, explanation, intervention, features, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (student_id) DO UPDATE SET
			name = EXCLUDED.name,
			risk = EXCLUDED.risk,
			tier = EXCLUDED.tier,
			prediction = EXCLUDED.prediction,
			shap = EXCLUDED.shap,
			explanation = EXCLUDED.explanation,
			intervention = EXCLUDED.intervention,
			features = EXCLUDED.features,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.pool.Exec(ctx, query,
		result.StudentID, result.Name, result.Risk, result.Tier, result.RawClass,
		shap, result.Explanation, intervention,
		pgvector.NewVector(vec), result.UpdatedAt,
	)
	return err
}

const predictionColumns = `student_id, name, risk, tier, prediction, shap, explanation, intervention, updated_at`

func scanPrediction(row pgx.Row) (domain.PredictionResult, error) {
	var p domain.PredictionResult
	var shap, intervention []byte
	err := row.Scan(&p.StudentID, &p.Name, &p.Risk, &p.Tier, &p.RawClass,
		&shap, &p.Explanation, &intervention, &p.UpdatedAt)
	if err != nil {
		return domain.PredictionResult{}, err
	}
	if len(shap) > 0 {
		if err := json.Unmarshal(shap, &p.Attributions); err != nil {
			return domain.PredictionResult{}, fmt.Errorf("decode attributions: %w", err)
		}
	}
	if len(intervention) > 0 {
		if err := json.Unmarshal(intervention, &p.Intervention); err != nil {
			return domain.PredictionResult{}, fmt.Errorf("decode interventions: %w", err)
		}
	}
	return p, nil
}

func (r *PgPredictionRepository) GetByStudent(ctx context.Context, studentID string) (domain.PredictionResult, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE student_id = $1`
	p, err := scanPrediction(r.pool.QueryRow(ctx, query, studentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PredictionResult{}, ErrPredictionNotFound
	}
	return p, err
}

// Similar devuelve los estudiantes con vector de features más cercano al del
// estudiante dado, excluyéndolo, ordenados por distancia L2.
func (r *PgPredictionRepository) Similar(ctx context.Context, studentID string, limit int) ([]domain.PredictionResult, error) {
	query := `SELECT ` + predictionColumns + `
		FROM predictions
		WHERE student_id <> $1
		ORDER BY features <-> (SELECT features FROM predictions WHERE student_id = $1)
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PredictionResult
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PgPredictionRepository) Stats(ctx context.Context) (RiskStats, error) {
	const query = `SELECT tier, count(*), coalesce(avg(risk), 0) FROM predictions GROUP BY tier`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return RiskStats{}, err
	}
	defer rows.Close()

	stats := RiskStats{TierCounts: map[string]int{}}
	var weighted float64
	for rows.Next() {
		var tier string
		var count int
		var avg float64
		if err := rows.Scan(&tier, &count, &avg); err != nil {
			return RiskStats{}, err
		}
		stats.TierCounts[tier] = count
		stats.Total += count
		weighted += avg * float64(count)
	}
	if stats.Total > 0 {
		stats.AverageRisk = weighted / float64(stats.Total)
	}
	return stats, rows.Err()
}
