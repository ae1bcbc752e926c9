package config

import (
    "os"
    "strconv"
    "time"
)

// RateLimitConfig controls the token-bucket limiter applied to the public
// booking and webhook-facing routes.  When Enabled is false or no Redis
// client is available, the limiter middleware becomes a pass-through.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    Debug          bool
}

// LoadRateLimitConfig reads environment variables to build a RateLimitConfig.
// Defaults are used when variables are not set.
func LoadRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
        def.Capacity = b
    }
    if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
        def.RefillTokens = 1
        def.RefillInterval = every
    }
    if def.Capacity < 1 {
        def.Capacity = 1
    }
    if def.RefillTokens < 1 {
        def.RefillTokens = 1
    }
    if def.RefillInterval <= 0 {
        def.RefillInterval = time.Second
    }
    minTTL := 5 * def.RefillInterval
    if def.TTL < minTTL {
        def.TTL = minTTL
    }
    return def
}

// LoadWebhookRateLimitConfig builds the limiter configuration for the
// payment-provider callback routes.  Providers retry aggressively after an
// incident, so the bucket is larger than the customer-facing one and keyed
// by route alone; a 429 here would only delay reconciliation.
func LoadWebhookRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        envBool("WEBHOOK_RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("WEBHOOK_RATE_LIMIT_CAPACITY", 600),
		RefillTokens:   envInt("WEBHOOK_RATE_LIMIT_REFILL_TOKENS", 10),
		RefillInterval: envDur("WEBHOOK_RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("WEBHOOK_RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("WEBHOOK_RATE_LIMIT_KEY_STRATEGY", "route"),
		Prefix:         envStr("WEBHOOK_RATE_LIMIT_PREFIX", "rlwh"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	minTTL := 5 * def.RefillInterval
	if def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}

// AvailabilityCacheTTL returns how long availability and session-list
// responses may be served from Redis before being recomputed.  Zero
// disables the cache.  The value stays small: a stale read here only
// widens the window the booking transaction already closes with its
// row lock.
func AvailabilityCacheTTL() time.Duration {
    return envDur("AVAILABILITY_CACHE_TTL", 5*time.Second)
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    switch v {
    case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
        return true
    case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if dur, err := time.ParseDuration(v); err == nil {
        return dur
    }
    return d
}
