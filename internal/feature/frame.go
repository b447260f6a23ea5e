package feature

import (
	"risk-sentinel/internal/domain"
)

// Frame es una tabla columnar en memoria: columnas de float64 con orden
// estable. La presencia de una columna es a nivel de tabla; las celdas sin
// dato se rellenan con 0 al construir (el contrato de ingeniería documenta
// ese default).
type Frame struct {
	order []string
	cols  map[string][]float64
	rows  int
}

// NewFrame crea una tabla vacía con el número de filas indicado.
func NewFrame(rows int) *Frame {
	return &Frame{cols: make(map[string][]float64), rows: rows}
}

// Rows devuelve la cantidad de filas.
func (f *Frame) Rows() int { return f.rows }

// Has indica si la columna existe en la tabla.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Col devuelve la columna por nombre, o nil si no existe.
func (f *Frame) Col(name string) []float64 {
	return f.cols[name]
}

// Set agrega o reemplaza una columna completa. El largo debe coincidir con
// el número de filas de la tabla.
func (f *Frame) Set(name string, values []float64) {
	if len(values) != f.rows {
		panic("feature: column length mismatch")
	}
	if _, ok := f.cols[name]; !ok {
		f.order = append(f.order, name)
	}
	f.cols[name] = values
}

// Columns devuelve los nombres de columna en orden de inserción.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Clone devuelve una copia profunda de la tabla.
func (f *Frame) Clone() *Frame {
	out := NewFrame(f.rows)
	for _, name := range f.order {
		col := make([]float64, f.rows)
		copy(col, f.cols[name])
		out.Set(name, col)
	}
	return out
}

// Raw column names shared between ingestion and engineering.
const (
	ColGPASem1               = "gpa_sem1"
	ColGPASem2               = "gpa_sem2"
	ColGPASem3               = "gpa_sem3"
	ColAttendance            = "attendance"
	ColLMSLogins             = "lms_logins"
	ColFacilityAccess        = "facility_access"
	ColLibraryVisits         = "library_visits"
	ColAfterHoursSessions    = "after_hours_wifi"
	ColAssignmentSubmissions = "assignment_submissions"
)

// FromRecords construye la tabla cruda a partir de registros de estudiantes.
// Una columna opcional existe si al menos un registro trae la señal; las
// celdas de los registros que no la traen quedan en 0.
func FromRecords(records []domain.StudentRecord) *Frame {
	f := NewFrame(len(records))

	gpaDepth := 0
	for _, r := range records {
		if len(r.GPA) > gpaDepth {
			gpaDepth = len(r.GPA)
		}
	}
	gpaCols := []string{ColGPASem1, ColGPASem2, ColGPASem3}
	for sem := 0; sem < gpaDepth && sem < len(gpaCols); sem++ {
		col := make([]float64, len(records))
		for i, r := range records {
			if sem < len(r.GPA) {
				col[i] = r.GPA[sem]
			}
		}
		f.Set(gpaCols[sem], col)
	}

	setOptional := func(name string, get func(domain.StudentRecord) *float64) {
		present := false
		for _, r := range records {
			if get(r) != nil {
				present = true
				break
			}
		}
		if !present {
			return
		}
		col := make([]float64, len(records))
		for i, r := range records {
			if v := get(r); v != nil {
				col[i] = *v
			}
		}
		f.Set(name, col)
	}

	setOptional(ColAttendance, func(r domain.StudentRecord) *float64 { return r.Attendance })
	setOptional(ColLMSLogins, func(r domain.StudentRecord) *float64 { return r.LMSLogins })
	setOptional(ColFacilityAccess, func(r domain.StudentRecord) *float64 { return r.FacilityAccess })
	setOptional(ColLibraryVisits, func(r domain.StudentRecord) *float64 { return r.LibraryVisits })
	setOptional(ColAfterHoursSessions, func(r domain.StudentRecord) *float64 { return r.AfterHoursSessions })
	setOptional(ColAssignmentSubmissions, func(r domain.StudentRecord) *float64 { return r.AssignmentSubmissions })

	return f
}
