package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage/memory"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage/postgres"
	"github.com/redis/go-redis/v9"
)

type storeBackend struct {
	store  storage.Store
	events outbox.Source
	close  func()
}

// openStore picks the backend from STORE (postgres or memory). Postgres is
// the default whenever DATABASE_URL is set.
func openStore(ctx context.Context, logger *slog.Logger, lockTimeout time.Duration) (storeBackend, error) {
	kind := strings.ToLower(config.String("STORE", ""))
	if kind == "" {
		kind = "memory"
		if config.String("DATABASE_URL", "") != "" {
			kind = "postgres"
		}
	}

	switch kind {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		st := memory.New(lockTimeout)
		return storeBackend{store: st, events: st, close: func() {}}, nil
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return storeBackend{}, err
		}
		pool, err := db.Open(ctx, dbURL, db.Options{
			MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
			MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
		})
		if err != nil {
			return storeBackend{}, fmt.Errorf("db connection failed: %w", err)
		}
		if config.Bool("MIGRATE_ON_START", true) {
			applied, err := postgres.Migrate(ctx, pool)
			if err != nil {
				pool.Close()
				return storeBackend{}, fmt.Errorf("migrations failed: %w", err)
			}
			if len(applied) > 0 {
				logger.Info("migrations applied", "versions", applied)
			}
		}
		outboxRepo := outbox.NewRepository(pool)
		return storeBackend{
			store:  postgres.New(pool, outboxRepo, lockTimeout),
			events: outboxRepo,
			close:  pool.Close,
		}, nil
	}
	return storeBackend{}, fmt.Errorf("STORE must be postgres or memory (got %q)", kind)
}

// rateLimiter limits API calls per caller. It uses Redis when REDIS_ADDR is
// set and falls back to an in-process limiter otherwise.
func rateLimiter(logger *slog.Logger) (httpx.Middleware, *redis.Client) {
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limit)
		return httpx.NewRateLimiter(limit, time.Minute, identity.RateLimitKey).Middleware(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
	rl := httpx.NewRedisRateLimiter(rdb, limit, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl:booking"), identity.RateLimitKey)
	logger.Info("rate limiting enabled (redis)", "per_minute", limit, "redis_addr", addr)
	return rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)), rdb
}
