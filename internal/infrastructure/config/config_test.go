package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "test",
			Password: "test",
			Database: "test_db",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Gateway: GatewayConfig{
			Enabled:        true,
			APIKey:         "test-key",
			BaseURL:        "https://webgate.bank.example",
			RequestTimeout: 15 * time.Second,
		},
		Cache:     CacheConfig{ValidationTTL: 300 * time.Second},
		RateLimit: RateLimitConfig{MaxAttempts: 5, Window: 60 * time.Second},
	}
}

func TestConfig_Validate_Success(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestConfig_Validate_InvalidServerPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"port too low", 0},
		{"port negative", -1},
		{"port too high", 99999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port

			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "server.port")
		})
	}
}

func TestConfig_Validate_InvalidGatewayBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Gateway.BaseURL = "not a url"

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "gateway.base_url")
}

func TestConfig_Validate_InvalidValidationTTL(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.ValidationTTL = 0

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cache.validation_ttl")
}

func TestConfig_Validate_InvalidRateLimit(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.MaxAttempts = 0

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit.max_attempts")

	cfg = validConfig()
	cfg.RateLimit.Window = 0

	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit.window")
}

func TestConfig_Validate_ShortJWTSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.JWTSecret = "tooshort"

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 300*time.Second, cfg.Cache.ValidationTTL)
	assert.Equal(t, 5, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 15*time.Second, cfg.Gateway.RequestTimeout)
	assert.Equal(t, "/checkout", cfg.Store.CheckoutURL)
	assert.Equal(t, "/orders/%d/receipt", cfg.Store.ReceiptURLTemplate)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p",
		Database: "paygate", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=u password=p dbname=paygate sslmode=disable",
		cfg.DatabaseDSN())
}

func TestRedisAddr(t *testing.T) {
	cfg := &RedisConfig{Host: "cache", Port: 6379}
	assert.Equal(t, "cache:6379", cfg.RedisAddr())
}
