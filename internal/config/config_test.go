package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageConfigDefaults(t *testing.T) {
	tests := []struct {
		name      string
		cfg       StorageConfig
		wantType  string
		wantPath  string
		wantTable string
		wantTTL   time.Duration
	}{
		{"zero value", StorageConfig{}, "file", ".", "documents", 0},
		{"sqlite default path", StorageConfig{Type: "SQLite"}, "sqlite", "listingkit.db", "documents", 0},
		{"explicit", StorageConfig{Type: "file", Path: "docs", Table: "t", CacheTTL: "30s"}, "file", "docs", "t", 30 * time.Second},
		{"invalid ttl", StorageConfig{CacheTTL: "soon"}, "file", ".", "documents", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.cfg.GetType())
			assert.Equal(t, tt.wantPath, tt.cfg.GetPath())
			assert.Equal(t, tt.wantTable, tt.cfg.GetTable())
			assert.Equal(t, tt.wantTTL, tt.cfg.GetCacheTTL())
		})
	}
}

func TestStorageConfigGetDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://fallback")
	t.Setenv("PG_PASS", "s3cret")

	assert.Equal(t, "postgres://fallback", StorageConfig{}.GetDSN())
	assert.Equal(t, "postgres://u:s3cret@db/listings", StorageConfig{DSN: "postgres://u:${PG_PASS}@db/listings"}.GetDSN())
}

func TestAIConfigDefaults(t *testing.T) {
	var cfg AIConfig
	assert.Equal(t, "gemini", cfg.GetProvider())
	assert.Equal(t, "gemini-2.0-flash", cfg.GetModel())
	assert.Equal(t, 60*time.Second, cfg.GetTimeout())
	assert.Equal(t, 2, cfg.GetMaxAttempts())
	assert.Equal(t, 1, cfg.GetVariants())
	assert.Equal(t, 3, cfg.GetRetryMaxRetries())
	assert.Equal(t, 500*time.Millisecond, cfg.GetRetryBaseDelay())
	assert.Equal(t, 10*time.Second, cfg.GetRetryMaxDelay())
	assert.Equal(t, 5, cfg.GetCircuitFailureThreshold())
	assert.Equal(t, 2, cfg.GetCircuitSuccessThreshold())
	assert.Equal(t, 30*time.Second, cfg.GetCircuitTimeout())
	assert.Zero(t, cfg.GetRateLimitRPS())
	assert.Equal(t, 1, cfg.GetRateLimitBurst())
}

func TestAIConfigOverrides(t *testing.T) {
	cfg := AIConfig{
		Provider:    "OpenAI",
		BaseURL:     "https://text.pollinations.ai/openai",
		Timeout:     "5s",
		MaxAttempts: 4,
		Variants:    3,
		Retry:       &RetryConfig{MaxRetries: 0, BaseDelay: "1s", MaxDelay: "bogus"},
		Circuit:     &CircuitConfig{FailureThreshold: 2, Timeout: "1m"},
		RateLimit:   &RateLimitConfig{RPS: 0.5, Burst: 3},
	}
	assert.Equal(t, "openai", cfg.GetProvider())
	assert.Equal(t, "gpt-4o-mini", cfg.GetModel())
	assert.Equal(t, 5*time.Second, cfg.GetTimeout())
	assert.Equal(t, 4, cfg.GetMaxAttempts())
	assert.Equal(t, 3, cfg.GetVariants())
	assert.Equal(t, 0, cfg.GetRetryMaxRetries())
	assert.Equal(t, time.Second, cfg.GetRetryBaseDelay())
	assert.Equal(t, 10*time.Second, cfg.GetRetryMaxDelay())
	assert.Equal(t, 2, cfg.GetCircuitFailureThreshold())
	assert.Equal(t, 2, cfg.GetCircuitSuccessThreshold())
	assert.Equal(t, time.Minute, cfg.GetCircuitTimeout())
	assert.Equal(t, 0.5, cfg.GetRateLimitRPS())
	assert.Equal(t, 3, cfg.GetRateLimitBurst())
}

func TestAIConfigGetAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	t.Setenv("MY_KEY", "expanded")

	assert.Equal(t, "from-env", AIConfig{Provider: "anthropic"}.GetAPIKey())
	assert.Equal(t, "expanded", AIConfig{Provider: "anthropic", APIKey: "${MY_KEY}"}.GetAPIKey())
	assert.Equal(t, "literal", AIConfig{APIKey: "literal"}.GetAPIKey())
}

func TestAPIConfigGetters(t *testing.T) {
	var nilCfg *APIConfig
	assert.Nil(t, nilCfg.GetCORSOrigins())
	assert.Equal(t, float64(10), nilCfg.GetRateLimitRPS())
	assert.Equal(t, 20, nilCfg.GetRateLimitBurst())
	assert.False(t, nilCfg.IsAuthEnabled())

	t.Setenv("LK_API_KEY", "k")
	cfg := &APIConfig{
		CORSOrigins: []string{"*"},
		RateLimit:   &RateLimitConfig{RPS: 2.5, Burst: 5},
		Auth:        &AuthConfig{APIKey: "$LK_API_KEY"},
	}
	assert.Equal(t, []string{"*"}, cfg.GetCORSOrigins())
	assert.Equal(t, 2.5, cfg.GetRateLimitRPS())
	assert.Equal(t, 5, cfg.GetRateLimitBurst())
	assert.True(t, cfg.IsAuthEnabled())
	assert.Equal(t, "X-API-Key", cfg.Auth.GetHeaderName())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad storage", func(c *Config) { c.Storage.Type = "redis" }, "storage.type"},
		{"bad provider", func(c *Config) { c.AI.Provider = "llama" }, "ai.provider"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	yaml := `
title: Shop
server:
  port: 9090
storage:
  type: sqlite
  path: shop.db
ai:
  provider: anthropic
  max_attempts: 3
  rate_limit:
    rps: 2
    burst: 4
api:
  enabled: true
  rate_limit:
    rps: 5
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "listingkit.yml"), []byte(yaml), 0644))

	cfg, err = LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "Shop", cfg.Title)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host, "defaults survive partial files")
	assert.Equal(t, "sqlite", cfg.Storage.GetType())
	assert.Equal(t, "shop.db", cfg.Storage.GetPath())
	assert.Equal(t, "anthropic", cfg.AI.GetProvider())
	assert.Equal(t, 3, cfg.AI.GetMaxAttempts())
	assert.Equal(t, float64(2), cfg.AI.GetRateLimitRPS())
	assert.Equal(t, 4, cfg.AI.GetRateLimitBurst())
	assert.True(t, cfg.IsAPIEnabled())
	assert.Equal(t, float64(5), cfg.API.GetRateLimitRPS())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Features.Editing)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "listingkit.yaml")

	require.NoError(t, os.WriteFile(path, []byte("storage: [not, a, map]"), 0644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")

	require.NoError(t, os.WriteFile(path, []byte("storage:\n  type: mongo\n"), 0644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "storage.type")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listingkit.yaml")
	cfg := DefaultConfig()
	cfg.AI.Model = "gemini-2.5-pro"
	cfg.API = &APIConfig{Enabled: true}

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
