package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// baseEnv sets the minimum environment for a valid memory-backed config.
func baseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$04$abcdefghijklmnopqrstuu1234567890123456789012345678901")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("R2_ACCOUNT_ID", "acct")
	t.Setenv("R2_BUCKET", "videos")
}

func TestLoadDefaults(t *testing.T) {
	baseEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, TransportDirect, cfg.Notify.Transport)
	assert.Equal(t, "ledwall.notifications", cfg.Notify.Queue)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, "Europe/Rome", cfg.Policy.Location.String())
	assert.Equal(t, 5, cfg.Policy.SlotCapacity)
	assert.Equal(t, 9, cfg.Policy.OpenHour)
	assert.Equal(t, 18, cfg.Policy.CloseHour)
	assert.Equal(t, 5, cfg.Policy.MaxLivePerClient)
	assert.Equal(t, 5*time.Minute, cfg.Policy.UploadGrace)
	assert.Equal(t, 15*time.Minute, cfg.Policy.UploadURLTTL)
	assert.Equal(t, 30, cfg.Policy.MaxDaysAhead)
	assert.Equal(t, 500, cfg.Policy.SweepBatch)
	assert.True(t, cfg.Development())
}

func TestLoadOverrides(t *testing.T) {
	baseEnv(t)
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("SLOT_CAPACITY", "3")
	t.Setenv("OPEN_HOUR", "8")
	t.Setenv("CLOSE_HOUR", "22")
	t.Setenv("UPLOAD_GRACE", "90s")
	t.Setenv("SWEEP_INTERVAL", "0")
	t.Setenv("NOTIFY_TRANSPORT", "AMQP")
	t.Setenv("RABBITMQ_URL", "amqp://u:p@broker:5672/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.UTC.String(), cfg.Policy.Location.String())
	assert.Equal(t, 3, cfg.Policy.SlotCapacity)
	assert.Equal(t, 8, cfg.Policy.OpenHour)
	assert.Equal(t, 22, cfg.Policy.CloseHour)
	assert.Equal(t, 90*time.Second, cfg.Policy.UploadGrace)
	assert.Zero(t, cfg.SweepInterval)
	assert.Equal(t, TransportAMQP, cfg.Notify.Transport)
	assert.Equal(t, "amqp://u:p@broker:5672/", cfg.Notify.AMQPURL)
}

func TestLoadHashesPlainPassword(t *testing.T) {
	baseEnv(t)
	t.Setenv("ADMIN_PASSWORD_HASH", "")
	t.Setenv("ADMIN_PASSWORD", "s3cret")
	t.Setenv("BCRYPT_COST", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(cfg.Admin.PasswordHash), []byte("s3cret")))
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	baseEnv(t)
	t.Setenv("SLOT_CAPACITY", "five")
	t.Setenv("UPLOAD_GRACE", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SLOT_CAPACITY")
	assert.Contains(t, err.Error(), "UPLOAD_GRACE")
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	baseEnv(t)
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	_, err := Load()
	assert.ErrorContains(t, err, "APP_TIMEZONE")
}

func TestValidate(t *testing.T) {
	baseEnv(t)
	valid, err := Load()
	require.NoError(t, err)

	cases := map[string]func(*Config){
		"hours inverted":   func(c *Config) { c.Policy.OpenHour, c.Policy.CloseHour = 18, 9 },
		"hour too large":   func(c *Config) { c.Policy.CloseHour = 25 },
		"zero capacity":    func(c *Config) { c.Policy.SlotCapacity = 0 },
		"no jwt secret":    func(c *Config) { c.Admin.JWTSecret = "" },
		"no admin secret":  func(c *Config) { c.Admin.PasswordHash = "" },
		"unknown driver":   func(c *Config) { c.StoreDriver = "sqlite" },
		"unknown notifier": func(c *Config) { c.Notify.Transport = "pigeon" },
		"mysql without db": func(c *Config) { c.StoreDriver = DriverMySQL; c.DB.User = "" },
		"zero batch":       func(c *Config) { c.Policy.SweepBatch = 0 },
		"no bucket":        func(c *Config) { c.Storage.Bucket = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
	assert.NoError(t, valid.Validate())
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "3s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 7, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 3*time.Second, cfg.RefillInterval)
	assert.Equal(t, 15*time.Second, cfg.TTL)
}

func TestLoadRedisConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	assert.Equal(t, "cache:6380", LoadRedisConfig().Addr)

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("REDIS_TLS", "1")
	cfg := LoadRedisConfig()
	assert.Equal(t, "redis:6379", cfg.Addr)
	assert.True(t, cfg.TLS)

	assert.Nil(t, NewRedisClient(RedisConfig{Enabled: false}))
}
