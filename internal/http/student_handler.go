package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"risk-sentinel/internal/domain"
	"risk-sentinel/internal/notify"
	"risk-sentinel/internal/pipeline"
	"risk-sentinel/internal/repository"
)

// StudentHandler maneja consulta y predicción por estudiante.
type StudentHandler struct {
	logger      *zap.Logger
	students    repository.StudentRepository
	predictions repository.PredictionRepository
	audit       repository.AuditRepository
	predictor   *pipeline.Predictor
	notifier    notify.Broadcaster
}

func NewStudentHandler(
	logger *zap.Logger,
	students repository.StudentRepository,
	predictions repository.PredictionRepository,
	audit repository.AuditRepository,
	predictor *pipeline.Predictor,
	notifier notify.Broadcaster,
) *StudentHandler {
	return &StudentHandler{
		logger:      logger,
		students:    students,
		predictions: predictions,
		audit:       audit,
		predictor:   predictor,
		notifier:    notifier,
	}
}

// filterByRole recorta el resultado según el rol: welfare ve el resumen
// (score, tier, intervenciones) pero no las atribuciones ni la narrativa.
func filterByRole(pred domain.PredictionResult, role string) domain.PredictionResult {
	if role == domain.RoleWelfare {
		pred.Attributions = nil
		pred.Explanation = ""
	}
	return pred
}

func (h *StudentHandler) auditLog(c *gin.Context, action, target, level string) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		return
	}
	entry := domain.AuditEntry{Username: claims.Username, Action: action, Target: target, Level: level}
	if err := h.audit.Insert(c.Request.Context(), entry); err != nil {
		h.logger.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

type studentView struct {
	domain.StudentRecord
	Prediction *domain.PredictionResult `json:"risk_assessment,omitempty"`
}

// ListStudents maneja GET /students.
func (h *StudentHandler) ListStudents(c *gin.Context) {
	claims, _ := GetAuthClaims(c)

	records, err := h.students.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list students failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list students"})
		return
	}

	views := make([]studentView, len(records))
	for i, rec := range records {
		views[i] = studentView{StudentRecord: rec}
		pred, err := h.predictions.GetByStudent(c.Request.Context(), rec.ID)
		if err == nil {
			filtered := filterByRole(pred, claims.Role)
			views[i].Prediction = &filtered
		} else if !errors.Is(err, repository.ErrPredictionNotFound) {
			h.logger.Warn("load prediction failed", zap.String("student_id", rec.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, views)
}

// GetStudent maneja GET /students/:id.
func (h *StudentHandler) GetStudent(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	id := c.Param("id")

	rec, err := h.students.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrStudentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	if err != nil {
		h.logger.Error("get student failed", zap.String("student_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load student"})
		return
	}

	view := studentView{StudentRecord: rec}
	if pred, err := h.predictions.GetByStudent(c.Request.Context(), id); err == nil {
		filtered := filterByRole(pred, claims.Role)
		view.Prediction = &filtered
	}

	h.auditLog(c, "viewed student record", id, "info")
	c.JSON(http.StatusOK, view)
}

// PredictStudent maneja POST /students/:id/predict: corre el pipeline de
// inferencia para un estudiante, persiste el resultado y lo difunde.
func (h *StudentHandler) PredictStudent(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	id := c.Param("id")

	rec, err := h.students.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrStudentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	if err != nil {
		h.logger.Error("get student failed", zap.String("student_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load student"})
		return
	}

	pred, err := h.predictor.PredictOne(c.Request.Context(), rec)
	if err != nil {
		respondPipelineError(c, h.logger, err)
		return
	}

	if err := h.predictions.Upsert(c.Request.Context(), pred.PredictionResult, pred.Features); err != nil {
		h.logger.Error("persist prediction failed", zap.String("student_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not persist prediction"})
		return
	}

	h.notifier.Publish(c.Request.Context(), notify.EventStudentUpdate, gin.H{
		"student_id": pred.StudentID,
		"risk":       pred.Risk,
		"tier":       pred.Tier,
	})

	level := "info"
	if pred.Tier == domain.TierHigh {
		level = "warning"
	}
	h.auditLog(c, "generated risk prediction", id, level)

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"prediction": filterByRole(pred.PredictionResult, claims.Role),
	})
}

// BatchPredict maneja POST /students/batch: repredice todos los estudiantes.
func (h *StudentHandler) BatchPredict(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	started := time.Now()

	records, err := h.students.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list students failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list students"})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "success", "processed": 0})
		return
	}

	preds, err := h.predictor.PredictMany(c.Request.Context(), records)
	if err != nil {
		respondPipelineError(c, h.logger, err)
		return
	}

	results := make([]domain.PredictionResult, len(preds))
	for i, pred := range preds {
		if err := h.predictions.Upsert(c.Request.Context(), pred.PredictionResult, pred.Features); err != nil {
			h.logger.Error("persist prediction failed", zap.String("student_id", pred.StudentID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not persist predictions"})
			return
		}
		results[i] = filterByRole(pred.PredictionResult, claims.Role)
	}

	h.notifier.Publish(c.Request.Context(), notify.EventBatchPredictions, gin.H{"processed": len(preds)})
	h.auditLog(c, "ran batch predictions", "all students", "info")

	c.JSON(http.StatusOK, gin.H{
		"status":          "success",
		"processed":       len(preds),
		"elapsed_seconds": time.Since(started).Seconds(),
		"predictions":     results,
	})
}

// SimilarStudents maneja GET /students/:id/similar: perfiles de riesgo más
// cercanos por distancia entre vectores de features.
func (h *StudentHandler) SimilarStudents(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	id := c.Param("id")

	limit := 5
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 50 {
			limit = v
		}
	}

	similar, err := h.predictions.Similar(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Error("similar lookup failed", zap.String("student_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not find similar students"})
		return
	}

	for i := range similar {
		similar[i] = filterByRole(similar[i], claims.Role)
	}
	c.JSON(http.StatusOK, gin.H{"student_id": id, "similar": similar})
}

// respondPipelineError traduce los errores del core a respuestas HTTP.
func respondPipelineError(c *gin.Context, logger *zap.Logger, err error) {
	var cfgErr *pipeline.ConfigurationError
	var skewErr *pipeline.FeatureSkewError
	switch {
	case errors.Is(err, pipeline.ErrModelNotTrained):
		c.JSON(http.StatusConflict, gin.H{"error": "model not trained, run training first"})
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": cfgErr.Error()})
	case errors.As(err, &skewErr):
		logger.Error("feature skew detected", zap.Error(skewErr))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "model feature mismatch, retrain required"})
	default:
		logger.Error("prediction failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed"})
	}
}
