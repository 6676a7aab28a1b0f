package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/admin-console/internal/api/http/handlers"
	"github.com/spec-kit/admin-console/internal/auth"
	"github.com/spec-kit/admin-console/internal/config"
	"github.com/spec-kit/admin-console/internal/events"
	"github.com/spec-kit/admin-console/internal/observability"
	"github.com/spec-kit/admin-console/internal/persistence"
	"github.com/spec-kit/admin-console/internal/repository"
	"github.com/spec-kit/admin-console/internal/service"
)

const (
	rootEmail    = "root@casino.local"
	rootPassword = "bootstrap-pass"
)

type testServer struct {
	app   *fiber.App
	redis *miniredis.Miniredis
}

func newTestServer(t *testing.T, attemptsPerMinute int) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.AuthConfig{
		JWTSecret:              "secret",
		TokenLifetimeHours:     12,
		BcryptCost:             4,
		LoginAttemptsPerMinute: attemptsPerMinute,
		BootstrapAdminEmail:    rootEmail,
		BootstrapAdminName:     "Root",
		BootstrapAdminPassword: rootPassword,
	}
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	admins := repository.NewMemoryAdminRepository()
	authService := service.NewAuthService(cfg, service.AuthDependencies{
		AdminRepo:   admins,
		Revocations: auth.NewRedisRevocations(client),
		Dispatcher:  events.NewInMemoryDispatcher(),
		Logger:      logger,
	})
	if err := authService.EnsureBootstrapAdmin(context.Background(), cfg); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("admin-console-api", "test", nil, &persistence.Redis{Client: client}),
		Auth:           handlers.NewAuthHandler(authService, metrics),
		Admins:         handlers.NewAdminsHandler(authService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), admins, authService.Revocations(), logger),
		LoginLimiter:   LoginRateLimit(client, cfg.LoginAttemptsPerMinute, metrics),
		Metrics:        metrics,
	})
	return &testServer{app: app, redis: mr}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := s.do(t, "POST", "/api/auth/login", "", map[string]string{"email": email, "password": password})
	if status != fiber.StatusOK {
		t.Fatalf("login %s: status %d body %v", email, status, body)
	}
	return body["data"].(map[string]any)["token"].(string)
}

func errorMessage(body map[string]any) string {
	errObj, _ := body["error"].(map[string]any)
	msg, _ := errObj["message"].(string)
	return msg
}

func TestLoginReturnsFlatProfile(t *testing.T) {
	s := newTestServer(t, 10)
	status, body := s.do(t, "POST", "/api/auth/login", "", map[string]string{"email": rootEmail, "password": rootPassword})
	if status != fiber.StatusOK {
		t.Fatalf("status = %d body = %v", status, body)
	}
	data := body["data"].(map[string]any)
	for _, key := range []string{"token", "expires_at", "id", "name", "email", "role", "permissions"} {
		if _, ok := data[key]; !ok {
			t.Fatalf("login response missing %q: %v", key, data)
		}
	}
	if data["role"] != "superadmin" {
		t.Fatalf("role = %v", data["role"])
	}
	if perms := data["permissions"].([]any); len(perms) != 9 {
		t.Fatalf("permissions = %v", perms)
	}
}

func TestLoginFailure(t *testing.T) {
	s := newTestServer(t, 10)
	status, body := s.do(t, "POST", "/api/auth/login", "", map[string]string{"email": rootEmail, "password": "nope"})
	if status != fiber.StatusUnauthorized {
		t.Fatalf("status = %d", status)
	}
	if msg := errorMessage(body); msg != "Login failed" {
		t.Fatalf("message = %q", msg)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	s := newTestServer(t, 10)

	if status, _ := s.do(t, "GET", "/api/auth/profile", "", nil); status != fiber.StatusUnauthorized {
		t.Fatalf("anonymous profile status = %d", status)
	}

	token := s.login(t, rootEmail, rootPassword)
	status, body := s.do(t, "GET", "/api/auth/profile", token, nil)
	if status != fiber.StatusOK || body["data"].(map[string]any)["email"] != rootEmail {
		t.Fatalf("profile status = %d body = %v", status, body)
	}

	status, body = s.do(t, "PUT", "/api/auth/profile", token, map[string]string{"name": "Pit Boss"})
	if status != fiber.StatusOK || body["data"].(map[string]any)["name"] != "Pit Boss" {
		t.Fatalf("update status = %d body = %v", status, body)
	}

	status, _ = s.do(t, "PUT", "/api/auth/profile", token, map[string]string{"name": " "})
	if status != fiber.StatusBadRequest {
		t.Fatalf("blank name status = %d", status)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t, 10)
	token := s.login(t, rootEmail, rootPassword)

	if status, _ := s.do(t, "POST", "/api/auth/logout", token, nil); status != fiber.StatusNoContent {
		t.Fatalf("logout status = %d", status)
	}
	if status, _ := s.do(t, "GET", "/api/auth/profile", token, nil); status != fiber.StatusUnauthorized {
		t.Fatalf("profile after logout status = %d", status)
	}
}

func TestSystemAdminsRequiresCapability(t *testing.T) {
	s := newTestServer(t, 10)
	root := s.login(t, rootEmail, rootPassword)

	status, body := s.do(t, "POST", "/api/system/admins", root, map[string]any{
		"name": "Floor", "email": "floor@casino.local", "password": "password1", "role": "operator",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create status = %d body = %v", status, body)
	}

	status, body = s.do(t, "GET", "/api/system/admins", root, nil)
	if status != fiber.StatusOK || len(body["data"].([]any)) != 2 {
		t.Fatalf("list status = %d body = %v", status, body)
	}

	operator := s.login(t, "floor@casino.local", "password1")
	status, body = s.do(t, "GET", "/api/system/admins", operator, nil)
	if status != fiber.StatusForbidden {
		t.Fatalf("operator list status = %d", status)
	}
	if code := body["error"].(map[string]any)["code"]; code != "FORBIDDEN" {
		t.Fatalf("code = %v", code)
	}

	status, _ = s.do(t, "POST", "/api/system/admins", root, map[string]any{
		"name": "Floor", "email": "floor@casino.local", "password": "password1", "role": "operator",
	})
	if status != fiber.StatusConflict {
		t.Fatalf("duplicate status = %d", status)
	}
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	creds := map[string]string{"email": rootEmail, "password": "nope"}

	for i := 0; i < 2; i++ {
		if status, _ := s.do(t, "POST", "/api/auth/login", "", creds); status != fiber.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i+1, status)
		}
	}
	if status, _ := s.do(t, "POST", "/api/auth/login", "", creds); status != fiber.StatusTooManyRequests {
		t.Fatalf("third attempt status = %d", status)
	}

	s.redis.FastForward(time.Minute + time.Second)
	if status, _ := s.do(t, "POST", "/api/auth/login", "", map[string]string{"email": rootEmail, "password": rootPassword}); status != fiber.StatusOK {
		t.Fatalf("after window status = %d", status)
	}
}

func TestLoginRateLimitFailsOpen(t *testing.T) {
	s := newTestServer(t, 1)
	s.redis.Close()
	for i := 0; i < 3; i++ {
		status, _ := s.do(t, "POST", "/api/auth/login", "", map[string]string{"email": rootEmail, "password": "nope"})
		if status != fiber.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i+1, status)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, 10)
	if status, body := s.do(t, "GET", "/health/live", "", nil); status != fiber.StatusOK || body["status"] != "alive" {
		t.Fatalf("live = %d %v", status, body)
	}
	status, body := s.do(t, "GET", "/health/ready", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("ready = %d %v", status, body)
	}
	storage, _ := body["storage"].(map[string]any)
	if storage["admins"] != "memory" || storage["revocations"] != "redis" {
		t.Fatalf("storage = %v", body["storage"])
	}
	deps, _ := body["dependencies"].(map[string]any)
	if deps["postgres"] != "disabled" || deps["redis"] != "ok" {
		t.Fatalf("dependencies = %v", body["dependencies"])
	}

	s.login(t, rootEmail, rootPassword)
	resp, err := s.app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), `admin_console_logins_total{outcome="succeeded"} 1`) {
		t.Fatalf("metrics missing login counter:\n%s", raw)
	}
}

func TestReadyReportsRedisOutage(t *testing.T) {
	s := newTestServer(t, 10)
	s.redis.Close()

	status, body := s.do(t, "GET", "/health/ready", "", nil)
	if status != fiber.StatusServiceUnavailable {
		t.Fatalf("ready = %d %v", status, body)
	}
	errObj, _ := body["error"].(map[string]any)
	details, _ := errObj["details"].(map[string]any)
	deps, _ := details["dependencies"].(map[string]any)
	if deps["redis"] == "ok" || deps["redis"] == nil {
		t.Fatalf("redis outage not reported: %v", body)
	}
}

func TestUnauthorizedCarriesBearerChallenge(t *testing.T) {
	s := newTestServer(t, 10)

	resp, err := s.app.Test(httptest.NewRequest("GET", "/api/auth/profile", nil), -1)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("WWW-Authenticate"); got != `Bearer realm="admin-console"` {
		t.Fatalf("challenge without token = %q", got)
	}

	req := httptest.NewRequest("GET", "/api/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err = s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if got := resp.Header.Get("WWW-Authenticate"); got != `Bearer realm="admin-console", error="invalid_token"` {
		t.Fatalf("challenge with bad token = %q", got)
	}
}

func TestRequestIDIsEchoedOrMinted(t *testing.T) {
	s := newTestServer(t, 10)

	req := httptest.NewRequest("GET", "/health/live", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("live: %v", err)
	}
	if got := resp.Header.Get(HeaderRequestID); got != "req-123" {
		t.Fatalf("request id = %q, want req-123", got)
	}

	resp, err = s.app.Test(httptest.NewRequest("GET", "/health/live", nil), -1)
	if err != nil {
		t.Fatalf("live: %v", err)
	}
	if got := resp.Header.Get(HeaderRequestID); len(got) != 36 {
		t.Fatalf("expected a minted uuid, got %q", got)
	}
}

func TestLoginRateLimitIsPerClient(t *testing.T) {
	s := newTestServer(t, 2)

	// Another client has exhausted its attempts against the same account.
	s.redis.Set(loginRateKeyPrefix+"acct:"+rootEmail+"|203.0.113.9", "50")
	if status, _ := s.do(t, "POST", "/api/auth/login", "", map[string]string{"email": rootEmail, "password": rootPassword}); status != fiber.StatusOK {
		t.Fatalf("operator locked out by another client: status %d", status)
	}
}

func TestLoginRateLimitStopsAccountSpraying(t *testing.T) {
	s := newTestServer(t, 2)
	for i := 0; i < 2*ipBurstFactor; i++ {
		creds := map[string]string{"email": fmt.Sprintf("op%d@casino.local", i), "password": "nope"}
		if status, _ := s.do(t, "POST", "/api/auth/login", "", creds); status != fiber.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i+1, status)
		}
	}
	creds := map[string]string{"email": "another@casino.local", "password": "nope"}
	if status, _ := s.do(t, "POST", "/api/auth/login", "", creds); status != fiber.StatusTooManyRequests {
		t.Fatalf("per-client limit not enforced: status %d", status)
	}
}
