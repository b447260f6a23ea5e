package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"risk-sentinel/internal/domain"
	"risk-sentinel/internal/feature"
	"risk-sentinel/internal/ml"
	"risk-sentinel/internal/notify"
	"risk-sentinel/internal/repository"
)

// Orden de clases del clasificador; el índice es la codificación numérica
// del target.
var riskClasses = []string{domain.TierLow, domain.TierMedium, domain.TierHigh}

const topFeatureCount = 5

// Status describe el estado del pipeline para el endpoint de monitoreo.
type Status struct {
	Trained      bool      `json:"is_trained"`
	Running      bool      `json:"training_in_progress"`
	LastTrained  time.Time `json:"last_trained,omitzero"`
	FeatureCount int       `json:"features_count"`
	Features     []string  `json:"features"`
}

// Trainer entrena el ensamble a partir de filas etiquetadas, lo instala como
// modelo vigente y lo persiste. Solo un entrenamiento puede correr a la vez.
type Trainer struct {
	store    repository.ModelStore
	holder   *ModelHolder
	notifier notify.Broadcaster
	log      *zap.Logger
	params   ml.Params

	mu      sync.Mutex
	running bool
}

func NewTrainer(store repository.ModelStore, holder *ModelHolder, notifier notify.Broadcaster, params ml.Params, log *zap.Logger) *Trainer {
	return &Trainer{store: store, holder: holder, notifier: notifier, params: params, log: log}
}

// Train corre un entrenamiento completo de forma síncrona: ingeniería de
// features, boosting, importancias por SHAP, swap atómico del modelo vigente
// y persistencia (si persist es true). Devuelve el reporte del entrenamiento.
func (t *Trainer) Train(ctx context.Context, rows []domain.TrainingRow, persist bool) (domain.TrainingReport, error) {
	if len(rows) == 0 {
		return domain.TrainingReport{}, &ConfigurationError{Column: "risk_label", Reason: "no labelled rows to train on"}
	}

	records := make([]domain.StudentRecord, len(rows))
	y := make([]int, len(rows))
	for i, row := range rows {
		records[i] = row.StudentRecord
		class := -1
		for k, name := range riskClasses {
			if row.RiskLabel == name {
				class = k
				break
			}
		}
		if class < 0 {
			return domain.TrainingReport{}, &ConfigurationError{
				Column: "risk_label",
				Reason: fmt.Sprintf("unknown risk label %q for student %s", row.RiskLabel, row.ID),
			}
		}
		y[i] = class
	}

	engineered := feature.Engineer(feature.FromRecords(records))
	names := feature.CanonicalList(engineered)
	if len(names) == 0 {
		return domain.TrainingReport{}, &ConfigurationError{Reason: "no usable feature columns in training data"}
	}
	X := feature.Select(engineered, names)

	started := time.Now()
	ens, err := ml.Train(X, y, riskClasses, names, t.params)
	if err != nil {
		return domain.TrainingReport{}, fmt.Errorf("train ensemble: %w", err)
	}
	explainer := ml.NewTreeExplainer(ens)

	correct := 0
	for i := range X {
		if ens.PredictClass(X[i]) == y[i] {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(X))

	report := domain.TrainingReport{
		Samples:       len(rows),
		FeatureCount:  len(names),
		TrainAccuracy: accuracy,
		Importance:    featureImportance(explainer, X, names, len(riskClasses)),
		TrainedAt:     ens.TrainedAt,
	}
	top := report.Importance
	if len(top) > topFeatureCount {
		top = top[:topFeatureCount]
	}
	report.TopFeatures = top

	t.holder.Swap(&LoadedModel{Ensemble: ens, Explainer: explainer, TrainedAt: ens.TrainedAt})

	if persist {
		meta := repository.ModelMetadata{FeatureNames: names, TrainedAt: ens.TrainedAt, Trained: true}
		if err := t.store.Save(ctx, ens, meta); err != nil {
			return domain.TrainingReport{}, fmt.Errorf("persist trained model: %w", err)
		}
	}

	t.log.Info("model trained",
		zap.Int("samples", report.Samples),
		zap.Int("features", report.FeatureCount),
		zap.Float64("train_accuracy", report.TrainAccuracy),
		zap.Duration("elapsed", time.Since(started)),
	)
	t.notifier.Publish(ctx, notify.EventModelTrained, report)

	return report, nil
}

// ErrTrainingInProgress indica que ya hay un entrenamiento corriendo.
var ErrTrainingInProgress = errors.New("pipeline: training already in progress")

// TrainAsync lanza el entrenamiento en segundo plano. Devuelve error solo si
// ya hay uno corriendo; el resultado del entrenamiento se observa vía Status
// y el evento de broadcast.
func (t *Trainer) TrainAsync(rows []domain.TrainingRow, persist bool) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return ErrTrainingInProgress
	}
	t.running = true
	t.mu.Unlock()

	go func() {
		defer func() {
			t.mu.Lock()
			t.running = false
			t.mu.Unlock()
		}()
		if _, err := t.Train(context.Background(), rows, persist); err != nil {
			t.log.Error("background training failed", zap.Error(err))
		}
	}()
	return nil
}

// Running indica si hay un entrenamiento en curso.
func (t *Trainer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Status arma el estado del pipeline a partir del modelo vigente.
func (t *Trainer) Status() Status {
	s := Status{Running: t.Running()}
	if m, ok := t.holder.Current(); ok {
		s.Trained = true
		s.LastTrained = m.TrainedAt
		s.FeatureCount = len(m.Ensemble.FeatureNames)
		s.Features = m.Ensemble.FeatureNames
	}
	return s
}

// featureImportance calcula la magnitud media de atribución por feature sobre
// el set de entrenamiento, promediando filas y clases, ordenada descendente.
func featureImportance(ex *ml.TreeExplainer, X [][]float64, names []string, classes int) []domain.FeatureImportance {
	sums := make([]float64, len(names))
	for class := 0; class < classes; class++ {
		for i := range X {
			phi := ex.ShapValues(X[i], class)
			for j, v := range phi {
				sums[j] += math.Abs(v)
			}
		}
	}
	total := float64(len(X) * classes)
	out := make([]domain.FeatureImportance, len(names))
	for j, name := range names {
		out[j] = domain.FeatureImportance{Feature: name, Importance: sums[j] / total}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	return out
}
