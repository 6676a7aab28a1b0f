package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/admin-console/internal/config"
)

func TestNewPostgresWithoutDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	if pg.PoolHandle() != nil {
		t.Fatalf("expected no pool without DSN")
	}
	if err := pg.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error without pool")
	}
	if err := RunMigrations(context.Background(), pg.PoolHandle(), "migrations", zap.NewNop()); err != nil {
		t.Fatalf("migrations without pool should be skipped: %v", err)
	}
	pg.Close()
}

func TestRedisPing(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	defer r.Close()

	if err := r.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	var missing *Redis
	if err := missing.Ping(context.Background()); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestRedisUnreachableStillReturnsClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	start := time.Now()
	r := NewRedis(context.Background(), config.RedisConfig{Addr: addr, PingTimeoutSeconds: 1}, zap.NewNop())
	defer r.Close()
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("initial ping not bounded by timeout: %s", elapsed)
	}
	if r.Client == nil {
		t.Fatalf("client must be returned even when redis is down")
	}
	if err := r.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error for closed server")
	}
}
