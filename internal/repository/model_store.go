package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"risk-sentinel/internal/ml"
)

// ErrModelNotFound indica que no hay modelo persistido.
var ErrModelNotFound = errors.New("repository: no persisted model")

// ModelMetadata es el sidecar que viaja con el ensamble serializado: la
// lista canónica de features en orden, el timestamp de entrenamiento y el
// flag de entrenado. Un round-trip save/load debe reproducir la lista
// idéntica en contenido y orden.
type ModelMetadata struct {
	FeatureNames []string  `json:"feature_names"`
	TrainedAt    time.Time `json:"last_trained"`
	Trained      bool      `json:"is_trained"`
}

// ModelStore persiste el modelo entrenado y su sidecar.
type ModelStore interface {
	Save(ctx context.Context, ens *ml.Ensemble, meta ModelMetadata) error
	Load(ctx context.Context) (*ml.Ensemble, ModelMetadata, error)
}

// PgModelStore guarda el modelo vigente como blob JSON en Postgres. Se
// mantiene una sola fila: cada Save reemplaza la anterior.
type PgModelStore struct {
	pool *pgxpool.Pool
}

func NewPgModelStore(pool *pgxpool.Pool) *PgModelStore {
	return &PgModelStore{pool: pool}
}

func (s *PgModelStore) Save(ctx context.Context, ens *ml.Ensemble, meta ModelMetadata) error {
	blob, err := json.Marshal(ens)
	if err != nil {
		return fmt.Errorf("marshal ensemble: %w", err)
	}
	sidecar, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal model metadata: %w", err)
	}
	const query = `
		INSERT INTO ml_models (id, ensemble, metadata, updated_at)
		VALUES (1, $1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET ensemble = EXCLUDED.ensemble, metadata = EXCLUDED.metadata, updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, blob, sidecar); err != nil {
		return fmt.Errorf("persist model: %w", err)
	}
	return nil
}

func (s *PgModelStore) Load(ctx context.Context) (*ml.Ensemble, ModelMetadata, error) {
	const query = `SELECT ensemble, metadata FROM ml_models WHERE id = 1`
	var blob, sidecar []byte
	err := s.pool.QueryRow(ctx, query).Scan(&blob, &sidecar)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ModelMetadata{}, ErrModelNotFound
	}
	if err != nil {
		return nil, ModelMetadata{}, fmt.Errorf("load model: %w", err)
	}
	var ens ml.Ensemble
	if err := json.Unmarshal(blob, &ens); err != nil {
		return nil, ModelMetadata{}, fmt.Errorf("decode ensemble: %w", err)
	}
	var meta ModelMetadata
	if err := json.Unmarshal(sidecar, &meta); err != nil {
		return nil, ModelMetadata{}, fmt.Errorf("decode model metadata: %w", err)
	}
	return &ens, meta, nil
}

// MemoryModelStore respalda tests y entornos sin base de datos. Serializa
// igual que el store real para que el round-trip sea representativo.
type MemoryModelStore struct {
	mu      sync.Mutex
	blob    []byte
	sidecar []byte
}

func NewMemoryModelStore() *MemoryModelStore {
	return &MemoryModelStore{}
}

func (s *MemoryModelStore) Save(ctx context.Context, ens *ml.Ensemble, meta ModelMetadata) error {
	blob, err := json.Marshal(ens)
	if err != nil {
		return fmt.Errorf("marshal ensemble: %w", err)
	}
	sidecar, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal model metadata: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob, s.sidecar = blob, sidecar
	return nil
}

func (s *MemoryModelStore) Load(ctx context.Context) (*ml.Ensemble, ModelMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blob == nil {
		return nil, ModelMetadata{}, ErrModelNotFound
	}
	var ens ml.Ensemble
	if err := json.Unmarshal(s.blob, &ens); err != nil {
		return nil, ModelMetadata{}, err
	}
	var meta ModelMetadata
	if err := json.Unmarshal(s.sidecar, &meta); err != nil {
		return nil, ModelMetadata{}, err
	}
	return &ens, meta, nil
}
