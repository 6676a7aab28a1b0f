package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/admin-console/internal/domain"
	"github.com/spec-kit/admin-console/internal/repository"
	apperrors "github.com/spec-kit/admin-console/pkg/util/errorutil"
)

type fixture struct {
	app         *fiber.App
	tokens      *TokenManager
	admins      repository.AdminRepository
	revocations Revocations
}

func newFixture(t *testing.T, revocations Revocations) *fixture {
	t.Helper()
	f := &fixture{
		tokens:      NewTokenManager("secret", time.Hour),
		admins:      repository.NewMemoryAdminRepository(),
		revocations: revocations,
	}
	mw := NewAuthMiddleware(f.tokens, f.admins, revocations, nil)

	f.app = fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	f.app.Get("/me", mw.Handle, RequireAuthenticated(), func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.Admin.Email)
	})
	f.app.Get("/finance", mw.Handle, RequireCapability(domain.CapabilityFinance), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return f
}

func (f *fixture) admin(t *testing.T, role domain.AdminRole, status domain.AdminStatus) (*domain.AdminUser, string, domain.Token) {
	t.Helper()
	admin := &domain.AdminUser{
		Name:   "Op",
		Email:  string(role) + "@casino.local",
		Role:   role,
		Status: status,
	}
	if err := f.admins.Create(context.Background(), admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	raw, meta, err := f.tokens.GenerateToken(admin)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return admin, raw, meta
}

func (f *fixture) status(t *testing.T, path, header string) int {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp.StatusCode
}

func TestAuthMiddlewareHeaders(t *testing.T) {
	f := newFixture(t, nil)
	_, raw, _ := f.admin(t, domain.RoleOperator, domain.AdminStatusActive)

	cases := map[string]int{
		"":                 fiber.StatusUnauthorized,
		"Basic abc":        fiber.StatusUnauthorized,
		"Bearer ":          fiber.StatusUnauthorized,
		"Bearer not-a-jwt": fiber.StatusUnauthorized,
		"Bearer " + raw:    fiber.StatusOK,
		"bearer " + raw:    fiber.StatusOK,
	}
	for header, want := range cases {
		if got := f.status(t, "/me", header); got != want {
			t.Errorf("header %q: status = %d, want %d", header, got, want)
		}
	}
}

func TestAuthMiddlewareRejectsDisabledAdmin(t *testing.T) {
	f := newFixture(t, nil)
	_, raw, _ := f.admin(t, domain.RoleOperator, domain.AdminStatusDisabled)
	if got := f.status(t, "/me", "Bearer "+raw); got != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", got)
	}
}

func TestRequireCapability(t *testing.T) {
	f := newFixture(t, nil)
	_, operator, _ := f.admin(t, domain.RoleOperator, domain.AdminStatusActive)
	_, finance, _ := f.admin(t, domain.RoleFinance, domain.AdminStatusActive)

	if got := f.status(t, "/finance", "Bearer "+operator); got != fiber.StatusForbidden {
		t.Fatalf("operator status = %d, want 403", got)
	}
	if got := f.status(t, "/finance", "Bearer "+finance); got != fiber.StatusNoContent {
		t.Fatalf("finance status = %d, want 204", got)
	}
}

func TestAuthMiddlewareRevokedToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, NewRedisRevocations(client))
	_, raw, meta := f.admin(t, domain.RoleOperator, domain.AdminStatusActive)

	if got := f.status(t, "/me", "Bearer "+raw); got != fiber.StatusOK {
		t.Fatalf("before revoke status = %d", got)
	}
	if err := f.revocations.Revoke(context.Background(), meta.ID, meta.ExpiresAt); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if got := f.status(t, "/me", "Bearer "+raw); got != fiber.StatusUnauthorized {
		t.Fatalf("after revoke status = %d, want 401", got)
	}
	if ttl := mr.TTL(revokedKeyPrefix + meta.ID); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("revocation ttl = %s", ttl)
	}
}

func TestAuthMiddlewareFailsOpenWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, NewRedisRevocations(client))
	_, raw, _ := f.admin(t, domain.RoleOperator, domain.AdminStatusActive)
	mr.Close()

	if got := f.status(t, "/me", "Bearer "+raw); got != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", got)
	}
}

func TestMemoryRevocations(t *testing.T) {
	ctx := context.Background()
	revs := NewMemoryRevocations().(*memoryRevocations)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	revs.now = func() time.Time { return now }

	_ = revs.Revoke(ctx, "live", now.Add(time.Minute))
	_ = revs.Revoke(ctx, "stale", now.Add(-time.Minute))

	if ok, _ := revs.IsRevoked(ctx, "live"); !ok {
		t.Fatalf("live token should be revoked")
	}
	if ok, _ := revs.IsRevoked(ctx, "stale"); ok {
		t.Fatalf("already expired token needs no revocation entry")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := revs.IsRevoked(ctx, "live"); ok {
		t.Fatalf("revocation should lapse with the token")
	}
}
