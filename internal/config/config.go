package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the listingkit configuration
type Config struct {
	Title    string         `yaml:"title"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	AI       AIConfig       `yaml:"ai"`
	Features FeaturesConfig `yaml:"features"`
	API      *APIConfig     `yaml:"api,omitempty"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port  int    `yaml:"port"`
	Host  string `yaml:"host"`
	Debug bool   `yaml:"debug"`
}

// StorageConfig selects where documents are persisted.
type StorageConfig struct {
	Type     string `yaml:"type"`                // "file", "sqlite" or "postgres". Default: file
	Path     string `yaml:"path,omitempty"`      // file: documents directory; sqlite: database file
	DSN      string `yaml:"dsn,omitempty"`       // postgres: connection string (env vars expanded, falls back to DATABASE_URL)
	Table    string `yaml:"table,omitempty"`     // sqlite/postgres: table name. Default: documents
	CacheTTL string `yaml:"cache_ttl,omitempty"` // Read cache TTL (e.g. "30s"). Default: disabled
}

// AIConfig configures document generation.
type AIConfig struct {
	Provider    string         `yaml:"provider"`               // "gemini", "anthropic" or "openai". Default: gemini
	Model       string         `yaml:"model,omitempty"`        // Provider model name. Default depends on provider
	APIKey      string         `yaml:"api_key,omitempty"`      // Supports ${ENV}; falls back to the provider's usual variable
	BaseURL     string         `yaml:"base_url,omitempty"`     // openai: alternative endpoint (e.g. Pollinations)
	Timeout     string         `yaml:"timeout,omitempty"`      // Per-call timeout. Default: 60s
	MaxAttempts int            `yaml:"max_attempts,omitempty"` // Re-prompts after invalid output. Default: 2
	Variants    int            `yaml:"variants,omitempty"`     // Documents per generate request. Default: 1
	Retry       *RetryConfig   `yaml:"retry,omitempty"`
	Circuit     *CircuitConfig `yaml:"circuit,omitempty"`

	// RateLimit caps provider calls per second across all requests.
	// Unset means no limit.
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RetryConfig configures retry behavior for provider calls
type RetryConfig struct {
	MaxRetries int    `yaml:"max_retries,omitempty"` // Maximum retry attempts (default: 3)
	BaseDelay  string `yaml:"base_delay,omitempty"`  // Initial delay (e.g., "500ms"). Default: 500ms
	MaxDelay   string `yaml:"max_delay,omitempty"`   // Maximum delay (e.g., "10s"). Default: 10s
}

// CircuitConfig configures the provider circuit breaker
type CircuitConfig struct {
	FailureThreshold int    `yaml:"failure_threshold,omitempty"` // Failures before opening (default: 5)
	SuccessThreshold int    `yaml:"success_threshold,omitempty"` // Half-open successes before closing (default: 2)
	Timeout          string `yaml:"timeout,omitempty"`           // Open duration before a probe (default: 30s)
}

// FeaturesConfig holds feature flags
type FeaturesConfig struct {
	HotReload bool `yaml:"hot_reload"`
	Editing   bool `yaml:"editing"` // Serve /d/{id}/edit (default: true)
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// APIConfig is the api section. The REST endpoints are mounted only when
// Enabled is set.
type APIConfig struct {
	Enabled     bool             `yaml:"enabled"`
	CORSOrigins []string         `yaml:"cors_origins,omitempty"` // "*" allows any origin
	RateLimit   *RateLimitConfig `yaml:"rate_limit,omitempty"`
	Auth        *AuthConfig      `yaml:"auth,omitempty"`
}

// AuthConfig requires a shared key on API requests. APIKey may reference
// the environment ("${LISTINGKIT_API_KEY}"). With Header "Authorization"
// the key is sent as a Bearer token.
type AuthConfig struct {
	APIKey     string `yaml:"api_key,omitempty"`
	HeaderName string `yaml:"header,omitempty"`
}

// RateLimitConfig is the per-client token bucket.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps,omitempty"`
	Burst int     `yaml:"burst,omitempty"`
}

var (
	storageTypes = map[string]bool{"file": true, "sqlite": true, "postgres": true}
	providers    = map[string]bool{"gemini": true, "anthropic": true, "openai": true}
	logFormats   = map[string]bool{"": true, "json": true, "console": true, "text": true}
)

// defaultModels are used when ai.model is empty.
var defaultModels = map[string]string{
	"gemini":    "gemini-2.0-flash",
	"anthropic": "claude-3-5-haiku-latest",
	"openai":    "gpt-4o-mini",
}

// apiKeyEnv are consulted when ai.api_key is empty.
var apiKeyEnv = map[string]string{
	"gemini":    "GEMINI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
}

// GetType returns the storage backend (default: "file")
func (c StorageConfig) GetType() string {
	if c.Type == "" {
		return "file"
	}
	return strings.ToLower(c.Type)
}

// GetPath returns the storage path, defaulted per backend
func (c StorageConfig) GetPath() string {
	if c.Path != "" {
		return c.Path
	}
	if c.GetType() == "sqlite" {
		return "listingkit.db"
	}
	return "."
}

// GetDSN returns the postgres DSN with environment variable expansion
func (c StorageConfig) GetDSN() string {
	if c.DSN == "" {
		return os.Getenv("DATABASE_URL")
	}
	return os.ExpandEnv(c.DSN)
}

// GetTable returns the table name (default: "documents")
func (c StorageConfig) GetTable() string {
	if c.Table == "" {
		return "documents"
	}
	return c.Table
}

// GetCacheTTL returns the read cache TTL (0 if caching is disabled)
func (c StorageConfig) GetCacheTTL() time.Duration {
	return parseDuration(c.CacheTTL, 0)
}

// GetProvider returns the AI provider (default: "gemini")
func (c AIConfig) GetProvider() string {
	if c.Provider == "" {
		return "gemini"
	}
	return strings.ToLower(c.Provider)
}

// GetModel returns the configured model or the provider default
func (c AIConfig) GetModel() string {
	if c.Model != "" {
		return c.Model
	}
	return defaultModels[c.GetProvider()]
}

// GetAPIKey returns the API key with environment variable expansion
func (c AIConfig) GetAPIKey() string {
	if c.APIKey != "" {
		return os.ExpandEnv(c.APIKey)
	}
	return os.Getenv(apiKeyEnv[c.GetProvider()])
}

// GetBaseURL returns the base URL with environment variable expansion
func (c AIConfig) GetBaseURL() string {
	return os.ExpandEnv(c.BaseURL)
}

// GetTimeout returns the per-call timeout (default: 60s)
func (c AIConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 60*time.Second)
}

// GetMaxAttempts returns how many times a generation may be attempted (default: 2)
func (c AIConfig) GetMaxAttempts() int {
	if c.MaxAttempts <= 0 {
		return 2
	}
	return c.MaxAttempts
}

// GetVariants returns the default number of variants (default: 1)
func (c AIConfig) GetVariants() int {
	if c.Variants <= 0 {
		return 1
	}
	return c.Variants
}

// GetRetryMaxRetries returns the max retries (default: 3, set to 0 to disable retries)
func (c AIConfig) GetRetryMaxRetries() int {
	if c.Retry == nil || c.Retry.MaxRetries < 0 {
		return 3
	}
	return c.Retry.MaxRetries
}

// GetRetryBaseDelay returns the base delay (default: 500ms)
func (c AIConfig) GetRetryBaseDelay() time.Duration {
	if c.Retry == nil {
		return 500 * time.Millisecond
	}
	return parseDuration(c.Retry.BaseDelay, 500*time.Millisecond)
}

// GetRetryMaxDelay returns the max delay (default: 10s)
func (c AIConfig) GetRetryMaxDelay() time.Duration {
	if c.Retry == nil {
		return 10 * time.Second
	}
	return parseDuration(c.Retry.MaxDelay, 10*time.Second)
}

// GetCircuitFailureThreshold returns failures before the circuit opens (default: 5)
func (c AIConfig) GetCircuitFailureThreshold() int {
	if c.Circuit == nil || c.Circuit.FailureThreshold <= 0 {
		return 5
	}
	return c.Circuit.FailureThreshold
}

// GetCircuitSuccessThreshold returns half-open successes needed to close (default: 2)
func (c AIConfig) GetCircuitSuccessThreshold() int {
	if c.Circuit == nil || c.Circuit.SuccessThreshold <= 0 {
		return 2
	}
	return c.Circuit.SuccessThreshold
}

// GetCircuitTimeout returns how long the circuit stays open (default: 30s)
func (c AIConfig) GetCircuitTimeout() time.Duration {
	if c.Circuit == nil {
		return 30 * time.Second
	}
	return parseDuration(c.Circuit.Timeout, 30*time.Second)
}

// GetRateLimitRPS returns provider calls allowed per second (default: 0, unlimited)
func (c AIConfig) GetRateLimitRPS() float64 {
	if c.RateLimit == nil || c.RateLimit.RPS <= 0 {
		return 0
	}
	return c.RateLimit.RPS
}

// GetRateLimitBurst returns the provider call burst (default: 1)
func (c AIConfig) GetRateLimitBurst() int {
	if c.RateLimit == nil || c.RateLimit.Burst <= 0 {
		return 1
	}
	return c.RateLimit.Burst
}

const (
	defaultRateLimitRPS   = 10
	defaultRateLimitBurst = 20
	defaultAuthHeader     = "X-API-Key"
)

// GetCORSOrigins returns the allowed origins; nil disables CORS.
func (c *APIConfig) GetCORSOrigins() []string {
	if c == nil {
		return nil
	}
	return c.CORSOrigins
}

// GetRateLimitRPS defaults to 10 requests per second.
func (c *APIConfig) GetRateLimitRPS() float64 {
	if rl := c.rateLimit(); rl.RPS > 0 {
		return rl.RPS
	}
	return defaultRateLimitRPS
}

// GetRateLimitBurst defaults to 20.
func (c *APIConfig) GetRateLimitBurst() int {
	if rl := c.rateLimit(); rl.Burst > 0 {
		return rl.Burst
	}
	return defaultRateLimitBurst
}

func (c *APIConfig) rateLimit() RateLimitConfig {
	if c == nil || c.RateLimit == nil {
		return RateLimitConfig{}
	}
	return *c.RateLimit
}

// IsAuthEnabled reports whether a (non-empty, expanded) key is configured.
func (c *APIConfig) IsAuthEnabled() bool {
	return c != nil && c.Auth.GetAPIKey() != ""
}

// GetAPIKey expands environment references in the key.
func (c *AuthConfig) GetAPIKey() string {
	if c == nil {
		return ""
	}
	return os.ExpandEnv(c.APIKey)
}

// GetHeaderName defaults to X-API-Key.
func (c *AuthConfig) GetHeaderName() string {
	if c == nil || c.HeaderName == "" {
		return defaultAuthHeader
	}
	return c.HeaderName
}

// IsAPIEnabled reports whether the REST API is mounted.
func (c *Config) IsAPIEnabled() bool {
	return c.API != nil && c.API.Enabled
}

// Validate rejects unknown enum values.
func (c *Config) Validate() error {
	if !storageTypes[c.Storage.GetType()] {
		return fmt.Errorf("storage.type %q: want file, sqlite or postgres", c.Storage.Type)
	}
	if !providers[c.AI.GetProvider()] {
		return fmt.Errorf("ai.provider %q: want gemini, anthropic or openai", c.AI.Provider)
	}
	if !logFormats[strings.ToLower(c.Log.Format)] {
		return fmt.Errorf("log.format %q: want json or console", c.Log.Format)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Title: "Listing Builder",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Type: "file",
		},
		AI: AIConfig{
			Provider: "gemini",
		},
		Features: FeaturesConfig{
			HotReload: true,
			Editing:   true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML config over DefaultConfig. An empty path or a
// missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// configNames are tried in order by LoadFromDir.
var configNames = []string{"listingkit.yaml", "listingkit.yml"}

// LoadFromDir loads the first config file in dir, or the defaults.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return DefaultConfig(), nil
}

// Save writes c as YAML, replacing configPath atomically.
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp := configPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, configPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
