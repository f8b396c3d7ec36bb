package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_BOOL", "off")
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "250ms")

	assert.False(t, envBool("X_BOOL", true))
	assert.True(t, envBool("X_MISSING", true))
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.Equal(t, 250*time.Millisecond, envDur("X_DUR", time.Second))
	assert.Equal(t, "d", envStr("X_MISSING", "d"))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("ACCESS_TOKEN_SECRET", "a")
	t.Setenv("REFRESH_TOKEN_SECRET", "r")
	t.Setenv("MINIO_ENDPOINT", "minio:9000")

	cfg := Load()
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 240*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.Equal(t, ScopeAll, cfg.AdminResponsesScope)
	assert.True(t, cfg.StrictMessageStatus)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, "http://minio:9000", cfg.MinIO.PublicURL)
	assert.EqualValues(t, 10<<20, cfg.MaxUploadBytes)
}

func TestRateLimitBurstOverride(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	rl := LoadRateLimitConfig()
	assert.Equal(t, 5, rl.Capacity)
	assert.Equal(t, 1, rl.RefillTokens)
	assert.Equal(t, 2*time.Second, rl.RefillInterval)
	assert.Equal(t, 10*time.Second, rl.TTL)
}
