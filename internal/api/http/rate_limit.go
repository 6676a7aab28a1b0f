package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/admin-console/internal/observability"
)

const (
	loginRateKeyPrefix = "admin_console:rl:login:"
	// ipBurstFactor scales the per-account limit into the per-client limit,
	// which only has to stop one client spraying many accounts.
	ipBurstFactor = 5
)

type rateBucket struct {
	key   string
	limit int64
}

// LoginRateLimit limits login attempts per account and client address, plus a
// looser per-address bucket, using Redis if available. Keying accounts on
// email and address together keeps a third party from locking an operator
// out by spamming their email.
func LoginRateLimit(cache *redis.Client, maxPerMin int, metrics *observability.Metrics) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			Email string `json:"email"`
		}
		_ = c.BodyParser(&req)

		buckets := loginBuckets(strings.ToLower(strings.TrimSpace(req.Email)), c.IP(), int64(maxPerMin))
		for _, b := range buckets {
			exceeded, err := b.hit(c.UserContext(), cache)
			if err != nil {
				return c.Next() // fail open
			}
			if exceeded {
				metrics.RecordLogin(observability.LoginThrottled)
				return fiber.NewError(http.StatusTooManyRequests, "too many login attempts, try again later")
			}
		}
		return c.Next()
	}
}

func loginBuckets(email, ip string, limit int64) []rateBucket {
	buckets := []rateBucket{{key: loginRateKeyPrefix + "ip:" + ip, limit: limit * ipBurstFactor}}
	if email != "" {
		buckets = append(buckets, rateBucket{key: loginRateKeyPrefix + "acct:" + email + "|" + ip, limit: limit})
	}
	return buckets
}

func (b rateBucket) hit(ctx context.Context, cache *redis.Client) (bool, error) {
	cnt, err := cache.Incr(ctx, b.key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		cache.Expire(ctx, b.key, time.Minute)
	}
	return cnt > b.limit, nil
}
