package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"risk-sentinel/internal/domain"
)

// ErrStudentNotFound se devuelve cuando el estudiante no existe.
var ErrStudentNotFound = errors.New("repository: student not found")

// StudentRepository expone los registros crudos por estudiante. El core no
// depende de dónde vienen las filas, solo de las columnas documentadas.
type StudentRepository interface {
	List(ctx context.Context) ([]domain.StudentRecord, error)
	GetByID(ctx context.Context, id string) (domain.StudentRecord, error)
	ListLabelled(ctx context.Context) ([]domain.TrainingRow, error)
}

type PgStudentRepository struct {
	pool *pgxpool.Pool
}

func NewPgStudentRepository(pool *pgxpool.Pool) *PgStudentRepository {
	return &PgStudentRepository{pool: pool}
}

const studentColumns = `
	student_id, name, programme, year,
	gpa_sem1, gpa_sem2, gpa_sem3,
	attendance, lms_logins, facility_access, library_visits,
	after_hours_wifi, assignment_submissions
`

func scanStudent(row pgx.Row) (domain.StudentRecord, error) {
	var rec domain.StudentRecord
	var gpa1, gpa2, gpa3 *float64
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Programme, &rec.Year,
		&gpa1, &gpa2, &gpa3,
		&rec.Attendance, &rec.LMSLogins, &rec.FacilityAccess, &rec.LibraryVisits,
		&rec.AfterHoursSessions, &rec.AssignmentSubmissions,
	)
	if err != nil {
		return domain.StudentRecord{}, err
	}
	// Los GPA se guardan en columnas por semestre; el slice toma el prefijo
	// de semestres realmente cursados.
	for _, g := range []*float64{gpa1, gpa2, gpa3} {
		if g == nil {
			break
		}
		rec.GPA = append(rec.GPA, *g)
	}
	return rec, nil
}

func (r *PgStudentRepository) List(ctx context.Context) ([]domain.StudentRecord, error) {
	query := `SELECT ` + studentColumns + ` FROM students ORDER BY student_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.StudentRecord
	for rows.Next() {
		rec, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PgStudentRepository) GetByID(ctx context.Context, id string) (domain.StudentRecord, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE student_id = $1`
	rec, err := scanStudent(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StudentRecord{}, ErrStudentNotFound
	}
	return rec, err
}

// ListLabelled devuelve solo los estudiantes con etiqueta de riesgo revisada,
// el insumo del entrenamiento.
func (r *PgStudentRepository) ListLabelled(ctx context.Context) ([]domain.TrainingRow, error) {
	query := `SELECT ` + studentColumns + `, risk_label
		FROM students WHERE risk_label IS NOT NULL ORDER BY student_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TrainingRow
	for rows.Next() {
		var tr domain.TrainingRow
		var gpa1, gpa2, gpa3 *float64
		err := rows.Scan(
			&tr.ID, &tr.Name, &tr.Programme, &tr.Year,
			&gpa1, &gpa2, &gpa3,
			&tr.Attendance, &tr.LMSLogins, &tr.FacilityAccess, &tr.LibraryVisits,
			&tr.AfterHoursSessions, &tr.AssignmentSubmissions,
			&tr.RiskLabel,
		)
		if err != nil {
			return nil, err
		}
		for _, g := range []*float64{gpa1, gpa2, gpa3} {
			if g == nil {
				break
			}
			tr.GPA = append(tr.GPA, *g)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}
