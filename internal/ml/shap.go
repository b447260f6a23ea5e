package ml

// TreeExplainer calcula atribuciones SHAP exactas para ensambles de árboles
// (algoritmo polinomial de Lundberg et al. sobre la estructura del árbol,
// ponderado por las coberturas de entrenamiento). Las atribuciones son
// aditivas: para cualquier instancia y clase, la suma de los phi más el
// valor esperado de la clase reproduce el margen crudo del modelo.
type TreeExplainer struct {
	ens  *Ensemble
	base []float64 // expected raw score per class over the training distribution
}

// NewTreeExplainer precalcula los valores esperados por clase.
func NewTreeExplainer(e *Ensemble) *TreeExplainer {
	base := make([]float64, len(e.Classes))
	for k := range e.Trees {
		for i := range e.Trees[k] {
			base[k] += e.Trees[k][i].expectedValue()
		}
	}
	return &TreeExplainer{ens: e, base: base}
}

// ExpectedValue devuelve la línea base (margen esperado) de la clase.
func (ex *TreeExplainer) ExpectedValue(class int) float64 {
	return ex.base[class]
}

// ShapValues devuelve una atribución por feature para el margen de la clase
// indicada en la instancia x. Invariante comprobable:
//
//	sum(phi) + ExpectedValue(class) == RawScores(x)[class]
func (ex *TreeExplainer) ShapValues(x []float64, class int) []float64 {
	phi := make([]float64, ex.ens.NumFeatures())
	for i := range ex.ens.Trees[class] {
		treeShap(&ex.ens.Trees[class][i], x, phi)
	}
	return phi
}

// pathElement es un elemento del camino único de features: la feature que
// dividió, la fracción de caminos "cero" (sin la feature) y "uno" (con la
// feature) que llegan hasta acá, y el peso de permutaciones acumulado.
type pathElement struct {
	feature int
	zero    float64
	one     float64
	weight  float64
}

// treeShap acumula en phi las atribuciones de un árbol para la instancia x.
func treeShap(t *Tree, x []float64, phi []float64) {
	var recurse func(node int, path []pathElement, pz, po float64, pf int)
	recurse = func(node int, path []pathElement, pz, po float64, pf int) {
		path = extendPath(path, pz, po, pf)
		n := t.Nodes[node]

		if n.Leaf {
			for i := 1; i < len(path); i++ {
				w := pathSum(unwindPath(path, i))
				phi[path[i].feature] += w * (path[i].one - path[i].zero) * n.Value
			}
			return
		}

		hot, cold := n.Left, n.Right
		if !(x[n.Feature] < n.Threshold) {
			hot, cold = n.Right, n.Left
		}

		iz, io := 1.0, 1.0
		for k := 1; k < len(path); k++ {
			if path[k].feature == n.Feature {
				iz, io = path[k].zero, path[k].one
				path = unwindPath(path, k)
				break
			}
		}

		recurse(hot, path, iz*t.Nodes[hot].Cover/n.Cover, io, n.Feature)
		recurse(cold, path, iz*t.Nodes[cold].Cover/n.Cover, 0, n.Feature)
	}

	recurse(0, nil, 1, 1, -1)
}

// extendPath agrega una feature al camino y reparte los pesos de todas las
// permutaciones de subconjuntos que el camino representa.
func extendPath(path []pathElement, pz, po float64, pf int) []pathElement {
	l := len(path)
	out := make([]pathElement, l+1)
	copy(out, path)
	out[l] = pathElement{feature: pf, zero: pz, one: po}
	if l == 0 {
		out[l].weight = 1
	}
	for i := l - 1; i >= 0; i-- {
		out[i+1].weight += po * out[i].weight * float64(i+1) / float64(l+1)
		out[i].weight = pz * out[i].weight * float64(l-i) / float64(l+1)
	}
	return out
}

// unwindPath deshace extendPath para el elemento i, devolviendo el camino
// que se habría obtenido sin esa feature.
func unwindPath(path []pathElement, i int) []pathElement {
	l := len(path) - 1
	out := make([]pathElement, l)
	copy(out, path[:l])
	n := path[l].weight

	if path[i].one != 0 {
		for j := l - 1; j >= 0; j-- {
			t := out[j].weight
			out[j].weight = n * float64(l+1) / (float64(j+1) * path[i].one)
			n = t - out[j].weight*path[i].zero*float64(l-j)/float64(l+1)
		}
	} else {
		for j := l - 1; j >= 0; j-- {
			out[j].weight = out[j].weight * float64(l+1) / (path[i].zero * float64(l-j))
		}
	}
	for j := i; j < l; j++ {
		out[j].feature = path[j+1].feature
		out[j].zero = path[j+1].zero
		out[j].one = path[j+1].one
	}
	return out
}

func pathSum(path []pathElement) float64 {
	var total float64
	for i := range path {
		total += path[i].weight
	}
	return total
}
