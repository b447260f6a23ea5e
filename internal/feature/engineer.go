package feature

import "math"

// Engineered column names.
const (
	ColGPADecline          = "gpa_decline"
	ColGPASem2Decline      = "gpa_sem2_decline"
	ColGPASem3Decline      = "gpa_sem3_decline"
	ColAttendanceCritical  = "attendance_critical"
	ColAttendanceLow       = "attendance_low"
	ColLMSVeryLow          = "lms_very_low"
	ColCampusEngagement    = "campus_engagement"
	ColCampusIsolated      = "campus_isolated"
	ColHighAfterHours      = "high_after_hours"
	ColLowAssignments      = "low_assignments"
	ColBehavioralRiskScore = "behavioral_risk_score"
)

// Umbrales de dominio para los flags binarios de riesgo.
const (
	attendanceCriticalBelow = 50.0
	attendanceLowBelow      = 70.0
	lmsVeryLowAtMost        = 5.0
	campusIsolatedBelow     = 3.0
	afterHoursHighAbove     = 10.0
	lowAssignmentsBelow     = 5.0
)

// Engineer deriva las columnas de riesgo a partir de la tabla cruda y devuelve
// una tabla nueva. Es una transformación pura: cada feature derivada se calcula
// solo si sus insumos existen, y la ausencia de una columna opcional omite la
// derivada en silencio en lugar de fallar.
func Engineer(raw *Frame) *Frame {
	f := raw.Clone()
	n := f.Rows()

	// GPA: caída total (sem1 - sem3) y deltas consecutivos absolutos.
	if f.Has(ColGPASem1) && f.Has(ColGPASem3) {
		s1, s3 := f.Col(ColGPASem1), f.Col(ColGPASem3)
		decline := make([]float64, n)
		for i := range decline {
			decline[i] = s1[i] - s3[i]
		}
		f.Set(ColGPADecline, decline)
	}
	if f.Has(ColGPASem1) && f.Has(ColGPASem2) {
		s1, s2 := f.Col(ColGPASem1), f.Col(ColGPASem2)
		d := make([]float64, n)
		for i := range d {
			d[i] = math.Abs(s1[i] - s2[i])
		}
		f.Set(ColGPASem2Decline, d)
	}
	if f.Has(ColGPASem2) && f.Has(ColGPASem3) {
		s2, s3 := f.Col(ColGPASem2), f.Col(ColGPASem3)
		d := make([]float64, n)
		for i := range d {
			d[i] = math.Abs(s2[i] - s3[i])
		}
		f.Set(ColGPASem3Decline, d)
	}

	// Asistencia: crítico (<50) y bajo ([50,70)).
	if f.Has(ColAttendance) {
		att := f.Col(ColAttendance)
		critical := make([]float64, n)
		low := make([]float64, n)
		for i, v := range att {
			if v < attendanceCriticalBelow {
				critical[i] = 1
			} else if v < attendanceLowBelow {
				low[i] = 1
			}
		}
		f.Set(ColAttendanceCritical, critical)
		f.Set(ColAttendanceLow, low)
	}

	// Uso del LMS.
	if f.Has(ColLMSLogins) {
		logins := f.Col(ColLMSLogins)
		veryLow := make([]float64, n)
		for i, v := range logins {
			if v <= lmsVeryLowAtMost {
				veryLow[i] = 1
			}
		}
		f.Set(ColLMSVeryLow, veryLow)
	}

	// Compromiso con el campus: suma de accesos a instalaciones y biblioteca.
	// Basta con una de las dos señales; la ausente aporta 0.
	if f.Has(ColFacilityAccess) || f.Has(ColLibraryVisits) {
		engagement := make([]float64, n)
		if fac := f.Col(ColFacilityAccess); fac != nil {
			for i, v := range fac {
				engagement[i] += v
			}
		}
		if lib := f.Col(ColLibraryVisits); lib != nil {
			for i, v := range lib {
				engagement[i] += v
			}
		}
		isolated := make([]float64, n)
		for i, v := range engagement {
			if v < campusIsolatedBelow {
				isolated[i] = 1
			}
		}
		f.Set(ColCampusEngagement, engagement)
		f.Set(ColCampusIsolated, isolated)
	}

	// Sesiones de red fuera de horario como indicador de estrés.
	if f.Has(ColAfterHoursSessions) {
		sessions := f.Col(ColAfterHoursSessions)
		high := make([]float64, n)
		for i, v := range sessions {
			if v > afterHoursHighAbove {
				high[i] = 1
			}
		}
		f.Set(ColHighAfterHours, high)
	}

	if f.Has(ColAssignmentSubmissions) {
		subs := f.Col(ColAssignmentSubmissions)
		low := make([]float64, n)
		for i, v := range subs {
			if v < lowAssignmentsBelow {
				low[i] = 1
			}
		}
		f.Set(ColLowAssignments, low)
	}

	// Score compuesto: promedio ponderado de los flags que sí se pudieron
	// calcular. El divisor es la cantidad de flags presentes, no un valor
	// fijo, para no castigar tablas con menos señales recolectadas.
	weighted := []struct {
		col    string
		weight float64
	}{
		{ColAttendanceCritical, 3},
		{ColLMSVeryLow, 2},
		{ColCampusIsolated, 2},
		{ColHighAfterHours, 1},
		{ColLowAssignments, 1},
	}
	var contributing []struct {
		values []float64
		weight float64
	}
	for _, w := range weighted {
		if f.Has(w.col) {
			contributing = append(contributing, struct {
				values []float64
				weight float64
			}{f.Col(w.col), w.weight})
		}
	}
	if len(contributing) > 0 {
		score := make([]float64, n)
		for i := range score {
			var sum float64
			for _, c := range contributing {
				sum += c.values[i] * c.weight
			}
			score[i] = sum / float64(len(contributing))
		}
		f.Set(ColBehavioralRiskScore, score)
	}

	return f
}
