package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/shiftbd/agenthub/internal/config"
	"go.uber.org/zap"
)

const keySubmitOwner = "agenthub:submit:%s:%d"

// SubmitLimiter throttles request creation per owner with a fixed
// redis window. A nil limiter (no redis configured) allows everything,
// and redis failures fail open: throttling is protection, not a
// correctness invariant.
type SubmitLimiter struct {
	client *redis.Client
	log    *zap.Logger
	limit  int
	window time.Duration
}

func NewSubmitLimiter(cfg config.Config, log *zap.Logger) *SubmitLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" || cfg.SubmitLimitPerWindow <= 0 {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})

	return &SubmitLimiter{
		client: client,
		log:    log.Named("ratelimit.submit"),
		limit:  cfg.SubmitLimitPerWindow,
		window: cfg.SubmitLimitWindow,
	}
}

func (l *SubmitLimiter) Enabled() bool {
	return l != nil && l.client != nil
}

func (l *SubmitLimiter) Allow(ctx context.Context, ownerID string) bool {
	if !l.Enabled() {
		return true
	}

	bucket := time.Now().Unix() / int64(l.window.Seconds())
	key := fmt.Sprintf(keySubmitOwner, ownerID, bucket)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.log.Warn("redis incr failed, allowing request", zap.Error(err))
		return true
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			l.log.Warn("redis expire failed", zap.Error(err))
		}
	}
	return count <= int64(l.limit)
}
