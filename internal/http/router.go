package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"risk-sentinel/internal/domain"
	"risk-sentinel/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	authH *AuthHandler,
	studentH *StudentHandler,
	pipelineH *PipelineHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/login", authH.Login)

	auth := r.Group("/", JWTAuthMiddleware(jwtSvc))

	students := auth.Group("/students")
	students.GET("", studentH.ListStudents)
	students.GET("/:id", studentH.GetStudent)
	students.GET("/:id/similar", studentH.SimilarStudents)
	students.POST("/:id/predict", RequireRole(domain.RoleCounsellor, domain.RoleAdmin), studentH.PredictStudent)
	students.POST("/batch", RequireRole(domain.RoleCounsellor, domain.RoleAdmin), studentH.BatchPredict)

	pipe := auth.Group("/pipeline")
	pipe.POST("/train", RequireRole(domain.RoleCounsellor, domain.RoleAdmin), pipelineH.Train)
	pipe.GET("/status", pipelineH.Status)

	auth.GET("/stats", pipelineH.Stats)

	admin := auth.Group("/", RequireRole(domain.RoleAdmin))
	admin.GET("/audit-logs", pipelineH.AuditLogs)
	admin.POST("/users", authH.CreateUser)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
