package domain

import "time"

// Risk tiers derived from the continuous risk score via fixed thresholds.
const (
	TierLow    = "low"
	TierMedium = "medium"
	TierHigh   = "high"
)

// Roles conocidos del sistema.
const (
	RoleCounsellor = "counsellor"
	RoleWelfare    = "welfare"
	RoleAdmin      = "admin"
)

// StudentRecord es la unidad de entrada del pipeline: una fila cruda por
// estudiante y semestre. Los campos opcionales usan punteros; nil significa
// que la señal no fue recolectada para este estudiante.
type StudentRecord struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Programme             string    `json:"programme,omitempty"`
	Year                  int       `json:"year,omitempty"`
	GPA                   []float64 `json:"gpa,omitempty"` // up to 3 semesters, oldest first
	Attendance            *float64  `json:"attendance,omitempty"`
	LMSLogins             *float64  `json:"lms_logins,omitempty"`
	FacilityAccess        *float64  `json:"facility_access,omitempty"`
	LibraryVisits         *float64  `json:"library_visits,omitempty"`
	AfterHoursSessions    *float64  `json:"after_hours_wifi,omitempty"`
	AssignmentSubmissions *float64  `json:"assignment_submissions,omitempty"`
}

// TrainingRow es un StudentRecord etiquetado, usado solo en entrenamiento.
type TrainingRow struct {
	StudentRecord
	RiskLabel string `json:"risk_label"`
}

// Attribution es la contribución de una feature a una predicción concreta.
// Value es la atribución SHAP con signo; Direction es +1 si empuja hacia la
// clase predicha y -1 en caso contrario; FeatureValue es el valor crudo de la
// feature en esta instancia.
type Attribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Direction    int     `json:"dir"`
	FeatureValue float64 `json:"feature_value"`
}

// PredictionResult es el objeto efímero devuelto al caller por cada predicción.
type PredictionResult struct {
	StudentID    string        `json:"student_id"`
	Name         string        `json:"name,omitempty"`
	Risk         float64       `json:"risk"`
	Tier         string        `json:"tier"`
	RawClass     string        `json:"prediction"` // argmax class, may disagree with Tier near boundaries
	Attributions []Attribution `json:"shap,omitempty"`
	Explanation  string        `json:"explanation,omitempty"`
	Intervention []string      `json:"intervention,omitempty"`
	UpdatedAt    time.Time     `json:"last_updated"`
}

// FeatureImportance es la magnitud media de atribución de una feature sobre
// el set de entrenamiento.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// TrainingReport resume un entrenamiento completado.
type TrainingReport struct {
	Samples       int                 `json:"training_samples"`
	FeatureCount  int                 `json:"features_used"`
	TrainAccuracy float64             `json:"train_accuracy"`
	Importance    []FeatureImportance `json:"feature_importance"`
	TopFeatures   []FeatureImportance `json:"top_features"`
	TrainedAt     time.Time           `json:"last_trained"`
}

// User es un usuario del sistema (counsellor, welfare, admin).
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	RoleLabel    string    `json:"role_label,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditEntry registra una acción sensible sobre datos de estudiantes.
type AuditEntry struct {
	ID        string    `json:"id"`
	Username  string    `json:"user"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"time"`
}
