package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/salonagenda/libs/config"
	"github.com/md-rashed-zaman/salonagenda/libs/httpx"
)

// publicRateLimit limits the unauthenticated endpoints per client. Redis gives a limit shared
// by all replicas; without it each replica enforces its own.
func publicRateLimit(rdb *redis.Client, logger *slog.Logger) func(http.Handler) http.Handler {
	limit, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil || limit <= 0 {
		return nil
	}
	var l httpx.Limiter = httpx.NewMemoryLimiter(limit, time.Minute)
	if rdb != nil {
		l = httpx.NewRedisLimiter(rdb, limit, time.Minute, "booking:ratelimit")
	}
	return httpx.RateLimit(l, time.Minute, logger, true)
}
