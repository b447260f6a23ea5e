package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModelNotTrained indica que se pidió una predicción sin modelo residente
// ni persistido. Se recupera entrenando primero.
var ErrModelNotTrained = errors.New("pipeline: model not trained")

// ConfigurationError indica un insumo requerido ausente (típicamente la
// columna objetivo). El caller debe corregir la entrada; no es reintentable.
type ConfigurationError struct {
	Column string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("pipeline: configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("pipeline: required column %q missing", e.Column)
}

// FeatureSkewError indica que la lista canónica de features en inferencia no
// coincide con la registrada al entrenar. Es fatal: seguir con un vector
// truncado o reordenado produciría predicciones silenciosamente corruptas.
type FeatureSkewError struct {
	Want []string
	Got  []string
}

func (e *FeatureSkewError) Error() string {
	return fmt.Sprintf("pipeline: feature skew: model expects [%s], sidecar lists [%s]",
		strings.Join(e.Want, " "), strings.Join(e.Got, " "))
}
