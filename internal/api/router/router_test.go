package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"medic-workbook/backend/config"
	"medic-workbook/backend/internal/api/handler"
	"medic-workbook/backend/internal/service"
	"medic-workbook/backend/pkg/jwt"
)

func setupTestRouter(t *testing.T) (*jwt.Manager, http.Handler) {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{BodyLimitBytes: 1 << 20},
		Auth:   config.AuthConfig{JWTSecret: "router-test-secret-0123", Issuer: "medic-workbook", AccessTokenTTL: time.Minute},
	}
	mgr := jwt.NewManager(&cfg.Auth)
	h := handler.NewHandler(&service.Service{}, nil)
	return mgr, Setup(cfg, h, mgr, nil, zap.NewNop())
}

func TestSetup_Health(t *testing.T) {
	_, r := setupTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestSetup_RequiresToken(t *testing.T) {
	_, r := setupTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/progress/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestSetup_StudentCannotReachStaffRoutes(t *testing.T) {
	mgr, r := setupTestRouter(t)
	token, err := mgr.GenerateAccessToken("stu-1", jwt.RoleStudent)
	if err != nil {
		t.Fatal(err)
	}

	for _, route := range []struct{ method, path string }{
		{"GET", "/api/v1/students/stu-2/progress"},
		{"POST", "/api/v1/students/stu-2/fix"},
		{"POST", "/api/v1/admin/recalculate"},
		{"GET", "/api/v1/export/progress"},
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(route.method, route.path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("%s %s: expected 403, got %d", route.method, route.path, w.Code)
		}
	}
}

func TestSetup_CoordinatorCannotRecalculate(t *testing.T) {
	mgr, r := setupTestRouter(t)
	token, _ := mgr.GenerateAccessToken("coord-1", jwt.RoleCoordinator)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/admin/recalculate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}
