package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	cfg := LoadRateLimitConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 60, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, time.Second, cfg.RefillInterval)
	assert.Equal(t, "ip_route", cfg.KeyStrategy)
	assert.Equal(t, "rl", cfg.Prefix)
}

func TestLoadWebhookRateLimitConfigDefaults(t *testing.T) {
	cfg := LoadWebhookRateLimitConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 600, cfg.Capacity)
	assert.Equal(t, 10, cfg.RefillTokens)
	assert.Equal(t, "route", cfg.KeyStrategy)
	assert.Equal(t, "rlwh", cfg.Prefix)
}

// The webhook bucket must stay independent of the customer-facing one:
// shrinking the public bucket may not affect webhook throughput, and the
// two must never share Redis keys.
func TestWebhookBucketIndependent(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "5")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "1")

	pub := LoadRateLimitConfig()
	wh := LoadWebhookRateLimitConfig()

	assert.Equal(t, 5, pub.Capacity)
	assert.Equal(t, 600, wh.Capacity)
	assert.NotEqual(t, pub.Prefix, wh.Prefix)
}

func TestWebhookRateLimitConfigOverrides(t *testing.T) {
	t.Setenv("WEBHOOK_RATE_LIMIT_CAPACITY", "1200")
	t.Setenv("WEBHOOK_RATE_LIMIT_REFILL_TOKENS", "20")
	t.Setenv("WEBHOOK_RATE_LIMIT_REFILL_INTERVAL", "500ms")
	t.Setenv("WEBHOOK_RATE_LIMIT_ENABLED", "false")

	cfg := LoadWebhookRateLimitConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1200, cfg.Capacity)
	assert.Equal(t, 20, cfg.RefillTokens)
	assert.Equal(t, 500*time.Millisecond, cfg.RefillInterval)
	assert.GreaterOrEqual(t, cfg.TTL, 5*cfg.RefillInterval)
}
