package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"risk-sentinel/internal/domain"
	"risk-sentinel/internal/feature"
	"risk-sentinel/internal/ml"
	"risk-sentinel/internal/repository"
)

// Umbrales del tier sobre el score continuo.
const (
	tierHighAt   = 0.7
	tierMediumAt = 0.4
)

// Prediction es el resultado completo de una predicción más el vector de
// features canónico que la produjo, para quien quiera persistirlo.
type Prediction struct {
	domain.PredictionResult
	Features []float64 `json:"-"`
}

// Predictor resuelve predicciones con el modelo vigente. Si no hay modelo
// residente intenta cargar el persistido una sola vez; sin ninguno de los
// dos, la predicción falla con ErrModelNotTrained.
type Predictor struct {
	holder *ModelHolder
	store  repository.ModelStore

	loadMu sync.Mutex
}

func NewPredictor(holder *ModelHolder, store repository.ModelStore) *Predictor {
	return &Predictor{holder: holder, store: store}
}

// ensureModel devuelve el modelo vigente, cargándolo del store si hace falta.
func (p *Predictor) ensureModel(ctx context.Context) (*LoadedModel, error) {
	if m, ok := p.holder.Current(); ok {
		return m, nil
	}
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	if m, ok := p.holder.Current(); ok {
		return m, nil
	}

	ens, meta, err := p.store.Load(ctx)
	if errors.Is(err, repository.ErrModelNotFound) {
		return nil, ErrModelNotTrained
	}
	if err != nil {
		return nil, fmt.Errorf("load persisted model: %w", err)
	}
	if !slices.Equal(meta.FeatureNames, ens.FeatureNames) {
		return nil, &FeatureSkewError{Want: ens.FeatureNames, Got: meta.FeatureNames}
	}

	m := &LoadedModel{Ensemble: ens, Explainer: ml.NewTreeExplainer(ens), TrainedAt: meta.TrainedAt}
	p.holder.Swap(m)
	return m, nil
}

// PredictOne predice el riesgo de un estudiante.
func (p *Predictor) PredictOne(ctx context.Context, rec domain.StudentRecord) (Prediction, error) {
	out, err := p.PredictMany(ctx, []domain.StudentRecord{rec})
	if err != nil {
		return Prediction{}, err
	}
	return out[0], nil
}

// PredictMany predice el riesgo de un lote de estudiantes. Determinista dado
// un modelo fijo: sin aleatoriedad en inferencia.
func (p *Predictor) PredictMany(ctx context.Context, recs []domain.StudentRecord) ([]Prediction, error) {
	m, err := p.ensureModel(ctx)
	if err != nil {
		return nil, err
	}

	engineered := feature.Engineer(feature.FromRecords(recs))
	names := m.Ensemble.FeatureNames
	X := feature.Select(engineered, names)

	now := time.Now()
	out := make([]Prediction, len(recs))
	for i, rec := range recs {
		x := X[i]
		probs := m.Ensemble.Probabilities(x)
		risk := clip01(probs[2] + 0.5*probs[1])
		tier := tierFor(risk)
		class := m.Ensemble.PredictClass(x)

		phi := m.Explainer.ShapValues(x, class)
		values := rowValues(engineered, i)

		out[i] = Prediction{
			PredictionResult: domain.PredictionResult{
				StudentID:    rec.ID,
				Name:         rec.Name,
				Risk:         risk,
				Tier:         tier,
				RawClass:     m.Ensemble.Classes[class],
				Attributions: rankAttributions(phi, names, x, values),
				Explanation:  explanationFor(rec.Name, tier),
				Intervention: interventionsFor(tier),
				UpdatedAt:    now,
			},
			Features: x,
		}
	}
	return out, nil
}

func tierFor(risk float64) string {
	switch {
	case risk >= tierHighAt:
		return domain.TierHigh
	case risk >= tierMediumAt:
		return domain.TierMedium
	default:
		return domain.TierLow
	}
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
