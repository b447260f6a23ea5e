package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"risk-sentinel/internal/pipeline"
	"risk-sentinel/internal/repository"
)

// PipelineHandler maneja entrenamiento, estado y estadísticas.
type PipelineHandler struct {
	logger      *zap.Logger
	students    repository.StudentRepository
	predictions repository.PredictionRepository
	audit       repository.AuditRepository
	trainer     *pipeline.Trainer
}

func NewPipelineHandler(
	logger *zap.Logger,
	students repository.StudentRepository,
	predictions repository.PredictionRepository,
	audit repository.AuditRepository,
	trainer *pipeline.Trainer,
) *PipelineHandler {
	return &PipelineHandler{
		logger:      logger,
		students:    students,
		predictions: predictions,
		audit:       audit,
		trainer:     trainer,
	}
}

// Train maneja POST /pipeline/train: lanza el reentrenamiento en segundo
// plano con las filas etiquetadas vigentes. El progreso se sigue por
// /pipeline/status y el evento model_trained.
func (h *PipelineHandler) Train(c *gin.Context) {
	rows, err := h.students.ListLabelled(c.Request.Context())
	if err != nil {
		h.logger.Error("load training rows failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load training data"})
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no labelled training data found"})
		return
	}

	if err := h.trainer.TrainAsync(rows, true); err != nil {
		if errors.Is(err, pipeline.ErrTrainingInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "training already in progress"})
			return
		}
		h.logger.Error("start training failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start training"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"message": "training started",
		"samples": len(rows),
	})
}

// Status maneja GET /pipeline/status.
func (h *PipelineHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.trainer.Status())
}

// Stats maneja GET /stats: conteos por tier y score promedio.
func (h *PipelineHandler) Stats(c *gin.Context) {
	stats, err := h.predictions.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("load stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load stats"})
		return
	}

	status := h.trainer.Status()
	c.JSON(http.StatusOK, gin.H{
		"total_students": stats.Total,
		"risk_counts":    stats.TierCounts,
		"average_risk":   stats.AverageRisk,
		"model_info": gin.H{
			"is_trained":     status.Trained,
			"last_trained":   status.LastTrained,
			"features_count": status.FeatureCount,
		},
	})
}

// AuditLogs maneja GET /audit-logs (solo admin).
func (h *PipelineHandler) AuditLogs(c *gin.Context) {
	entries, err := h.audit.ListRecent(c.Request.Context(), 200)
	if err != nil {
		h.logger.Error("load audit logs failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load audit logs"})
		return
	}
	c.JSON(http.StatusOK, entries)
}
