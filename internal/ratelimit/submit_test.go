package ratelimit

import (
	"context"
	"testing"

	"github.com/shiftbd/agenthub/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNilLimiterAllowsEverything(t *testing.T) {
	var limiter *SubmitLimiter
	require.False(t, limiter.Enabled())
	require.True(t, limiter.Allow(context.Background(), "42"))
}

func TestNewSubmitLimiterDisabledWithoutRedis(t *testing.T) {
	limiter := NewSubmitLimiter(config.Config{SubmitLimitPerWindow: 10}, zap.NewNop())
	require.Nil(t, limiter)

	limiter = NewSubmitLimiter(config.Config{RedisAddr: "localhost:6379"}, zap.NewNop())
	require.Nil(t, limiter)
}
