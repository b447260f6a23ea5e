package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"risk-sentinel/internal/service"
)

// AuthHandler maneja login y alta de cuentas.
type AuthHandler struct {
	logger *zap.Logger
	users  *service.UserService
	jwt    *service.JWTService
}

func NewAuthHandler(logger *zap.Logger, users *service.UserService, jwt *service.JWTService) *AuthHandler {
	return &AuthHandler{logger: logger, users: users, jwt: jwt}
}

// Login maneja POST /login. El rol pedido debe coincidir con el de la cuenta:
// un counsellor no puede entrar al panel de admin con sus credenciales.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil || user.Role != req.Role {
		h.logger.Warn("login rejected", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect username, password, or role"})
		return
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		h.logger.Error("sign token failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int64(h.jwt.TTL().Seconds()),
		"user": gin.H{
			"username":   user.Username,
			"name":       user.Name,
			"role":       user.Role,
			"role_label": user.RoleLabel,
		},
	})
}

// CreateUser maneja POST /users (solo admin).
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name"`
		Role     string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), service.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidRole) || errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("create user failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}
