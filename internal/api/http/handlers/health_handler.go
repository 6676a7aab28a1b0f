package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/admin-console/internal/persistence"
)

const readinessTimeout = 2 * time.Second

// HealthHandler answers liveness and readiness checks.
type HealthHandler struct {
	serviceName string
	version     string
	started     time.Time
	postgres    *persistence.Postgres
	redis       *persistence.Redis
}

// NewHealthHandler returns a new handler instance. A nil postgres or redis
// means the API runs that concern in memory.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		started:     time.Now(),
		postgres:    postgres,
		redis:       redis,
	}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "alive",
		"service":        h.serviceName,
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Ready reports service readiness by checking dependencies. It also names
// where operator accounts and revoked tokens are kept, so an API that
// silently fell back to memory is visible to operators.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	hasPostgres := h.postgres != nil && h.postgres.Pool != nil
	hasRedis := h.redis != nil && h.redis.Client != nil

	depStatus := fiber.Map{}
	ready := true
	for name, dep := range map[string]struct {
		enabled bool
		check   pinger
	}{
		"postgres": {hasPostgres, h.postgres},
		"redis":    {hasRedis, h.redis},
	} {
		switch {
		case !dep.enabled:
			depStatus[name] = "disabled"
		default:
			if err := dep.check.Ping(ctx); err != nil {
				depStatus[name] = err.Error()
				ready = false
			} else {
				depStatus[name] = "ok"
			}
		}
	}

	storage := fiber.Map{"admins": "memory", "revocations": "memory"}
	if hasPostgres {
		storage["admins"] = "postgres"
	}
	if hasRedis {
		storage["revocations"] = "redis"
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
			"storage":      storage,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": fiber.Map{"dependencies": depStatus, "storage": storage},
		},
	})
}
