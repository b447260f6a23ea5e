package pipeline

import (
	"fmt"
	"math"
	"sort"

	"risk-sentinel/internal/domain"
	"risk-sentinel/internal/feature"
)

// Máximo de atribuciones que viajan al caller por predicción.
const maxAttributions = 6

// Etiquetas legibles para las features técnicas. Las que no figuran acá se
// devuelven con su nombre crudo.
var featureLabels = map[string]string{
	feature.ColGPADecline:            "GPA decline over semesters",
	feature.ColGPASem1:               "First semester GPA",
	feature.ColGPASem2:               "Second semester GPA",
	feature.ColGPASem3:               "Third semester GPA",
	feature.ColAttendance:            "Attendance percentage",
	feature.ColAttendanceCritical:    "Critical attendance level",
	feature.ColLMSLogins:             "LMS logins this week",
	feature.ColLMSVeryLow:            "Very low LMS engagement",
	feature.ColFacilityAccess:        "Campus facility access",
	feature.ColLibraryVisits:         "Library visits",
	feature.ColCampusEngagement:      "Overall campus engagement",
	feature.ColAfterHoursSessions:    "After-hours WiFi usage",
	feature.ColAssignmentSubmissions: "Assignment submissions",
	feature.ColBehavioralRiskScore:   "Behavioral risk indicators",
}

// formatFeatureLabel convierte el nombre técnico en una etiqueta legible.
// Para un subconjunto de features la etiqueta interpola el valor observado,
// que comunica mucho más que el nombre solo.
func formatFeatureLabel(name string, values map[string]float64) string {
	if v, ok := values[name]; ok {
		switch name {
		case feature.ColGPADecline:
			return fmt.Sprintf("GPA decline (−%.1f pts)", math.Abs(v))
		case feature.ColAttendance:
			return fmt.Sprintf("Attendance at %d%%", int(v))
		case feature.ColLMSLogins:
			declinePct := math.Max(0, (20-v)/20*100)
			return fmt.Sprintf("LMS logins: %d (−%.0f%%)", int(v), declinePct)
		case feature.ColFacilityAccess:
			if v == 0 {
				return "Zero facility access this month"
			}
			return fmt.Sprintf("Facility access: %d visits", int(v))
		}
	}
	if label, ok := featureLabels[name]; ok {
		return label
	}
	return name
}

// rankAttributions arma la lista de contribuciones para el caller: una por
// feature con su phi, dirección y valor crudo, ordenadas por magnitud
// descendente (orden estable para empates) y truncadas al tope.
func rankAttributions(phi []float64, names []string, x []float64, values map[string]float64) []domain.Attribution {
	out := make([]domain.Attribution, len(phi))
	for i, v := range phi {
		dir := -1
		if v > 0 {
			dir = 1
		}
		out[i] = domain.Attribution{
			Feature:      formatFeatureLabel(names[i], values),
			Value:        v,
			Direction:    dir,
			FeatureValue: x[i],
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Value) > math.Abs(out[j].Value)
	})
	if len(out) > maxAttributions {
		out = out[:maxAttributions]
	}
	return out
}

// rowValues materializa una fila de la tabla como mapa nombre a valor, el
// insumo de las etiquetas interpoladas.
func rowValues(f *feature.Frame, row int) map[string]float64 {
	values := make(map[string]float64)
	for _, name := range f.Columns() {
		values[name] = f.Col(name)[row]
	}
	return values
}
