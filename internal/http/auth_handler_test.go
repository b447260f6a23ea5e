package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"risk-sentinel/internal/domain"
	"risk-sentinel/internal/ml"
	"risk-sentinel/internal/repository"
	"risk-sentinel/internal/service"
)

func pipelineTestParams() ml.Params {
	p := ml.DefaultParams()
	p.Rounds = 5
	return p
}

func newAuthFixture(t *testing.T) (*gin.Engine, *service.UserService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	users := service.NewUserService(logger, newMockCredentialRepo())
	jwtSvc := service.NewJWTService("secret", time.Hour)
	authH := NewAuthHandler(logger, users, jwtSvc)

	r := gin.New()
	r.POST("/login", authH.Login)
	return r, users
}

type mockCredentialRepo struct {
	byUsername map[string]domain.User
}

func newMockCredentialRepo() *mockCredentialRepo {
	return &mockCredentialRepo{byUsername: make(map[string]domain.User)}
}

func (m *mockCredentialRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		user.ID = "id-" + user.Username
	}
	m.byUsername[user.Username] = user
	return user, nil
}

func (m *mockCredentialRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	user, ok := m.byUsername[username]
	if !ok {
		return domain.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func postLogin(t *testing.T, r *gin.Engine, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLogin_Success(t *testing.T) {
	r, users := newAuthFixture(t)
	if _, err := users.CreateUser(context.Background(), service.CreateUserInput{
		Username: "counsellor1", Password: "Care@2026", Name: "Dr. Sibanda, N.", Role: domain.RoleCounsellor,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	rec := postLogin(t, r, gin.H{"username": "counsellor1", "password": "Care@2026", "role": domain.RoleCounsellor})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		User        struct {
			Role      string `json:"role"`
			RoleLabel string `json:"role_label"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("expected an access token")
	}
	if resp.User.Role != domain.RoleCounsellor || resp.User.RoleLabel != "Counsellor" {
		t.Fatalf("unexpected user payload: %+v", resp.User)
	}
}

func TestLogin_RoleMismatch(t *testing.T) {
	r, users := newAuthFixture(t)
	if _, err := users.CreateUser(context.Background(), service.CreateUserInput{
		Username: "counsellor1", Password: "Care@2026", Role: domain.RoleCounsellor,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	// Credenciales correctas pero rol equivocado: mismo 401 que una
	// contraseña incorrecta.
	rec := postLogin(t, r, gin.H{"username": "counsellor1", "password": "Care@2026", "role": domain.RoleAdmin})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLogin_BadRequest(t *testing.T) {
	r, _ := newAuthFixture(t)

	rec := postLogin(t, r, gin.H{"username": "counsellor1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
