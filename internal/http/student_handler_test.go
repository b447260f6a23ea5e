package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"risk-sentinel/internal/domain"
	"risk-sentinel/internal/notify"
	"risk-sentinel/internal/pipeline"
	"risk-sentinel/internal/repository"
	"risk-sentinel/internal/service"
)

type mockStudentRepo struct {
	students map[string]domain.StudentRecord
}

func (m *mockStudentRepo) List(_ context.Context) ([]domain.StudentRecord, error) {
	var out []domain.StudentRecord
	for _, rec := range m.students {
		out = append(out, rec)
	}
	return out, nil
}

func (m *mockStudentRepo) GetByID(_ context.Context, id string) (domain.StudentRecord, error) {
	rec, ok := m.students[id]
	if !ok {
		return domain.StudentRecord{}, repository.ErrStudentNotFound
	}
	return rec, nil
}

func (m *mockStudentRepo) ListLabelled(_ context.Context) ([]domain.TrainingRow, error) {
	return nil, nil
}

type mockPredictionRepo struct {
	byStudent map[string]domain.PredictionResult
}

func (m *mockPredictionRepo) Upsert(_ context.Context, result domain.PredictionResult, _ []float64) error {
	m.byStudent[result.StudentID] = result
	return nil
}

func (m *mockPredictionRepo) GetByStudent(_ context.Context, id string) (domain.PredictionResult, error) {
	pred, ok := m.byStudent[id]
	if !ok {
		return domain.PredictionResult{}, repository.ErrPredictionNotFound
	}
	return pred, nil
}

func (m *mockPredictionRepo) Similar(_ context.Context, _ string, _ int) ([]domain.PredictionResult, error) {
	return nil, nil
}

func (m *mockPredictionRepo) Stats(_ context.Context) (repository.RiskStats, error) {
	return repository.RiskStats{}, nil
}

type mockAuditRepo struct {
	entries []domain.AuditEntry
}

func (m *mockAuditRepo) Insert(_ context.Context, entry domain.AuditEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListRecent(_ context.Context, _ int) ([]domain.AuditEntry, error) {
	return m.entries, nil
}

type studentFixture struct {
	router *gin.Engine
	jwt    *service.JWTService
	audit  *mockAuditRepo
}

func newStudentFixture(t *testing.T) studentFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	students := &mockStudentRepo{students: map[string]domain.StudentRecord{
		"STU001": {ID: "STU001", Name: "Tinashe M."},
	}}
	predictions := &mockPredictionRepo{byStudent: map[string]domain.PredictionResult{
		"STU001": {
			StudentID: "STU001",
			Name:      "Tinashe M.",
			Risk:      0.85,
			Tier:      domain.TierHigh,
			RawClass:  domain.TierHigh,
			Attributions: []domain.Attribution{
				{Feature: "Attendance at 30%", Value: 1.4, Direction: 1, FeatureValue: 30},
			},
			Explanation:  "Tinashe M. shows a critical risk profile.",
			Intervention: []string{"URGENT: Same-day counsellor contact required"},
			UpdatedAt:    time.Now().UTC(),
		},
	}}
	audit := &mockAuditRepo{}

	// Predictor sin modelo: los endpoints de consulta no lo tocan y los de
	// predicción deben responder 409.
	predictor := pipeline.NewPredictor(pipeline.NewModelHolder(), repository.NewMemoryModelStore())

	jwtSvc := service.NewJWTService("secret", time.Hour)
	logger := zap.NewNop()
	studentH := NewStudentHandler(logger, students, predictions, audit, predictor, notify.NopBroadcaster{})
	pipelineH := NewPipelineHandler(logger, students, predictions, audit, pipeline.NewTrainer(repository.NewMemoryModelStore(), pipeline.NewModelHolder(), notify.NopBroadcaster{}, pipelineTestParams(), logger))
	authH := NewAuthHandler(logger, service.NewUserService(logger, mockEmptyUserRepo{}), jwtSvc)

	return studentFixture{
		router: NewRouter(logger, jwtSvc, authH, studentH, pipelineH),
		jwt:    jwtSvc,
		audit:  audit,
	}
}

type mockEmptyUserRepo struct{}

func (mockEmptyUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	return user, nil
}

func (mockEmptyUserRepo) GetByUsername(_ context.Context, _ string) (domain.User, error) {
	return domain.User{}, repository.ErrUserNotFound
}

func (f studentFixture) get(t *testing.T, path, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, f.jwt, role))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestGetStudent_CounsellorSeesFullAssessment(t *testing.T) {
	f := newStudentFixture(t)

	rec := f.get(t, "/students/STU001", domain.RoleCounsellor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"shap"`) || !strings.Contains(body, `"explanation"`) {
		t.Fatalf("counsellor response missing shap/explanation: %s", body)
	}
	if len(f.audit.entries) == 0 || f.audit.entries[0].Action != "viewed student record" {
		t.Fatalf("expected an audit entry for the view, got %+v", f.audit.entries)
	}
}

func TestGetStudent_WelfareSeesSummaryOnly(t *testing.T) {
	f := newStudentFixture(t)

	rec := f.get(t, "/students/STU001", domain.RoleWelfare)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, `"shap"`) || strings.Contains(body, `"explanation"`) {
		t.Fatalf("welfare response leaks shap/explanation: %s", body)
	}
	if !strings.Contains(body, `"risk":0.85`) || !strings.Contains(body, `"tier":"high"`) {
		t.Fatalf("welfare response missing summary fields: %s", body)
	}
}

func TestGetStudent_NotFound(t *testing.T) {
	f := newStudentFixture(t)

	rec := f.get(t, "/students/NOPE", domain.RoleCounsellor)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPredictStudent_ModelNotTrained(t *testing.T) {
	f := newStudentFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/students/STU001/predict", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, f.jwt, domain.RoleCounsellor))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPredictStudent_WelfareForbidden(t *testing.T) {
	f := newStudentFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/students/STU001/predict", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, f.jwt, domain.RoleWelfare))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAuditLogs_AdminOnly(t *testing.T) {
	f := newStudentFixture(t)

	if rec := f.get(t, "/audit-logs", domain.RoleCounsellor); rec.Code != http.StatusForbidden {
		t.Fatalf("counsellor on audit-logs: expected 403, got %d", rec.Code)
	}
	rec := f.get(t, "/audit-logs", domain.RoleAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin on audit-logs: expected 200, got %d", rec.Code)
	}
	var entries []domain.AuditEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode audit entries: %v", err)
	}
}
