// Package ml implementa el ensamble de árboles con gradient boosting que usa
// el pipeline de riesgo: entrenamiento multiclase con log-loss softmax,
// predicción determinista y atribuciones exactas estilo TreeExplainer.
package ml

import (
	"math"
	"time"
)

// Node es un nodo de un árbol de regresión. Los árboles se guardan como
// slice plano; Left/Right son índices dentro de ese slice.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
	Cover     float64 `json:"c"` // training rows that reached this node
	Leaf      bool    `json:"leaf"`
}

// Tree es un árbol de regresión entrenado sobre gradientes de una clase.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict devuelve el valor de hoja para la instancia. Las instancias con
// valor menor al umbral bajan a la izquierda.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// expectedValue es el promedio de hojas ponderado por cobertura: la salida
// esperada del árbol sobre la distribución de entrenamiento.
func (t *Tree) expectedValue() float64 {
	var walk func(i int) float64
	walk = func(i int) float64 {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		l, r := t.Nodes[n.Left], t.Nodes[n.Right]
		return (walk(n.Left)*l.Cover + walk(n.Right)*r.Cover) / n.Cover
	}
	return walk(0)
}

// Params son los hiperparámetros del boosting.
type Params struct {
	Rounds         int     `json:"rounds"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	Subsample      float64 `json:"subsample"`
	ColSample      float64 `json:"colsample"`
	Lambda         float64 `json:"lambda"`
	MinChildWeight float64 `json:"min_child_weight"`
	Seed           int64   `json:"seed"`
}

// DefaultParams replica la configuración de referencia del clasificador de
// riesgo: profundidad acotada, tasa de aprendizaje 0.1 y muestreo 0.8 sobre
// filas y columnas con semilla fija para reproducibilidad.
func DefaultParams() Params {
	return Params{
		Rounds:         100,
		MaxDepth:       5,
		LearningRate:   0.1,
		Subsample:      0.8,
		ColSample:      0.8,
		Lambda:         1.0,
		MinChildWeight: 1.0,
		Seed:           42,
	}
}

// Ensemble es un modelo entrenado: K listas de árboles (una por clase), la
// lista canónica de features y los metadatos de entrenamiento. Es inmutable
// una vez construido; reentrenar produce un Ensemble nuevo.
type Ensemble struct {
	Classes      []string  `json:"classes"`
	FeatureNames []string  `json:"feature_names"`
	Trees        [][]Tree  `json:"trees"` // Trees[k] belongs to Classes[k]
	Params       Params    `json:"params"`
	TrainedAt    time.Time `json:"trained_at"`
}

// NumFeatures devuelve el largo del vector de entrada esperado.
func (e *Ensemble) NumFeatures() int { return len(e.FeatureNames) }

// RawScores devuelve el margen (pre-softmax) por clase para la instancia.
func (e *Ensemble) RawScores(x []float64) []float64 {
	scores := make([]float64, len(e.Classes))
	for k := range e.Trees {
		for i := range e.Trees[k] {
			scores[k] += e.Trees[k][i].Predict(x)
		}
	}
	return scores
}

// Probabilities aplica softmax sobre los márgenes.
func (e *Ensemble) Probabilities(x []float64) []float64 {
	return softmax(e.RawScores(x))
}

// PredictClass devuelve el índice de la clase con mayor probabilidad.
func (e *Ensemble) PredictClass(x []float64) int {
	scores := e.RawScores(x)
	best := 0
	for k := 1; k < len(scores); k++ {
		if scores[k] > scores[best] {
			best = k
		}
	}
	return best
}

func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	probs := make([]float64, len(scores))
	var sum float64
	for k, s := range scores {
		probs[k] = math.Exp(s - max)
		sum += probs[k]
	}
	for k := range probs {
		probs[k] /= sum
	}
	return probs
}
