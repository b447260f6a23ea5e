package ml

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// ErrEmptyTrainingSet se devuelve cuando no hay filas para entrenar.
var ErrEmptyTrainingSet = errors.New("ml: empty training set")

const minSplitGain = 1e-6

// Train ajusta un ensamble multiclase por gradient boosting sobre la matriz
// X (filas × features) contra etiquetas ordinales y ∈ [0, len(classes)).
// En cada ronda se ajusta un árbol por clase sobre los gradientes de la
// log-loss softmax, con submuestreo de filas y columnas gobernado por la
// semilla de Params: dos entrenamientos con los mismos datos y parámetros
// producen el mismo modelo.
func Train(X [][]float64, y []int, classes []string, featureNames []string, p Params) (*Ensemble, error) {
	n := len(X)
	if n == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(y) != n {
		return nil, fmt.Errorf("ml: %d rows but %d labels", n, len(y))
	}
	k := len(classes)
	for i, label := range y {
		if label < 0 || label >= k {
			return nil, fmt.Errorf("ml: label %d out of range at row %d", label, i)
		}
	}

	rng := rand.New(rand.NewSource(p.Seed))

	// Márgenes acumulados por fila y clase; arrancan en cero.
	raw := make([][]float64, n)
	for i := range raw {
		raw[i] = make([]float64, k)
	}

	trees := make([][]Tree, k)
	grad := make([]float64, n)
	hess := make([]float64, n)

	for round := 0; round < p.Rounds; round++ {
		// Probabilidades con los márgenes actuales, una vez por ronda.
		probs := make([][]float64, n)
		for i := range raw {
			probs[i] = softmax(raw[i])
		}

		for class := 0; class < k; class++ {
			for i := range probs {
				target := 0.0
				if y[i] == class {
					target = 1.0
				}
				grad[i] = probs[i][class] - target
				hess[i] = probs[i][class] * (1 - probs[i][class])
			}

			rows := sampleRows(n, p.Subsample, rng)
			cols := sampleCols(len(featureNames), p.ColSample, rng)

			b := &treeBuilder{X: X, grad: grad, hess: hess, cols: cols, params: p}
			tree := b.build(rows)
			trees[class] = append(trees[class], tree)

			for i := range X {
				raw[i][class] += tree.Predict(X[i])
			}
		}
	}

	return &Ensemble{
		Classes:      classes,
		FeatureNames: featureNames,
		Trees:        trees,
		Params:       p,
		TrainedAt:    time.Now().UTC(),
	}, nil
}

func sampleRows(n int, fraction float64, rng *rand.Rand) []int {
	m := int(float64(n) * fraction)
	if m < 1 {
		m = 1
	}
	if m >= n {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	rows := rng.Perm(n)[:m]
	sort.Ints(rows)
	return rows
}

func sampleCols(total int, fraction float64, rng *rand.Rand) []int {
	m := int(float64(total) * fraction)
	if m < 1 {
		m = 1
	}
	if m >= total {
		cols := make([]int, total)
		for i := range cols {
			cols[i] = i
		}
		return cols
	}
	cols := rng.Perm(total)[:m]
	sort.Ints(cols)
	return cols
}

// treeBuilder construye un árbol de regresión con búsqueda exacta de splits
// sobre la ganancia de segundo orden (estilo XGBoost).
type treeBuilder struct {
	X      [][]float64
	grad   []float64
	hess   []float64
	cols   []int
	params Params
}

func (b *treeBuilder) build(rows []int) Tree {
	t := Tree{}
	b.grow(&t, rows, 0)
	return t
}

// grow agrega el subárbol para rows y devuelve su índice de nodo.
func (b *treeBuilder) grow(t *Tree, rows []int, depth int) int {
	var sumG, sumH float64
	for _, r := range rows {
		sumG += b.grad[r]
		sumH += b.hess[r]
	}

	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Cover: float64(len(rows))})

	leaf := func() int {
		t.Nodes[idx].Leaf = true
		t.Nodes[idx].Value = -sumG / (sumH + b.params.Lambda) * b.params.LearningRate
		return idx
	}

	if depth >= b.params.MaxDepth || len(rows) < 2 {
		return leaf()
	}

	feat, threshold, ok := b.bestSplit(rows, sumG, sumH)
	if !ok {
		return leaf()
	}

	var left, right []int
	for _, r := range rows {
		if b.X[r][feat] < threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	t.Nodes[idx].Feature = feat
	t.Nodes[idx].Threshold = threshold
	t.Nodes[idx].Left = b.grow(t, left, depth+1)
	t.Nodes[idx].Right = b.grow(t, right, depth+1)
	return idx
}

func (b *treeBuilder) bestSplit(rows []int, sumG, sumH float64) (int, float64, bool) {
	parentScore := sumG * sumG / (sumH + b.params.Lambda)

	bestGain := minSplitGain
	bestFeat := -1
	bestThreshold := 0.0

	sorted := make([]int, len(rows))
	for _, feat := range b.cols {
		copy(sorted, rows)
		f := feat
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.X[sorted[i]][f] < b.X[sorted[j]][f]
		})

		var leftG, leftH float64
		for i := 0; i < len(sorted)-1; i++ {
			r := sorted[i]
			leftG += b.grad[r]
			leftH += b.hess[r]

			cur, next := b.X[r][f], b.X[sorted[i+1]][f]
			if cur == next {
				continue
			}
			rightG, rightH := sumG-leftG, sumH-leftH
			if leftH < b.params.MinChildWeight || rightH < b.params.MinChildWeight {
				continue
			}
			gain := leftG*leftG/(leftH+b.params.Lambda) +
				rightG*rightG/(rightH+b.params.Lambda) - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeat = f
				bestThreshold = (cur + next) / 2
			}
		}
	}

	if bestFeat < 0 {
		return 0, 0, false
	}
	return bestFeat, bestThreshold, true
}
