package pipeline

import (
	"sync/atomic"
	"time"

	"risk-sentinel/internal/ml"
)

// LoadedModel agrupa el ensamble residente con su explainer y metadatos.
// Es inmutable: reentrenar construye un LoadedModel nuevo y lo intercambia.
type LoadedModel struct {
	Ensemble  *ml.Ensemble
	Explainer *ml.TreeExplainer
	TrainedAt time.Time
}

// ModelHolder es la referencia compartida al modelo vigente. Muchas
// predicciones concurrentes leen el puntero; el swap tras reentrenar es
// atómico, así que ninguna predicción en vuelo observa un modelo a medias.
type ModelHolder struct {
	current atomic.Pointer[LoadedModel]
}

func NewModelHolder() *ModelHolder {
	return &ModelHolder{}
}

// Current devuelve el modelo vigente, o false si todavía no hay ninguno.
func (h *ModelHolder) Current() (*LoadedModel, bool) {
	m := h.current.Load()
	return m, m != nil
}

// Swap instala un modelo nuevo como vigente.
func (h *ModelHolder) Swap(m *LoadedModel) {
	h.current.Store(m)
}
