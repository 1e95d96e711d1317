// Package config provides application configuration management with environment
// variable loading, validation, and sensible defaults. It supports .env files
// for local development and validates all required settings on startup.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//
//	server := &http.Server{
//	    Addr: ":" + cfg.Server.Port,
//	}
package config

import (
	"crypto/rand"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// DefaultFormattingPrompt is the system instruction sent ahead of every
// text-path user message unless FORMATTING_PROMPT overrides it.
const DefaultFormattingPrompt = `You are a helpful assistant. Format every answer in GitHub-flavored markdown:
- use headings (##, ###) to structure longer answers
- use bullet or numbered lists for steps and enumerations
- put code in fenced blocks with a language tag
- use **bold** for key terms and tables for tabular data
Keep answers clear and well organized.`

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Gateway   GatewayConfig
	OAuth     OAuthConfig
	Session   SessionConfig
	Usage     UsageConfig
	Cache     CacheConfig
	Redis     RedisConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Upload    UploadConfig
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Port        string
	Environment string
	DevMode     bool   // Verbose logging and non-Secure cookies
	Version     string // Shown on the chat page
}

// GatewayConfig describes the upstream LiteLLM gateway.
type GatewayConfig struct {
	BaseURL          string
	APIKey           string
	ImageModels      []string // Substrings that mark a model as image-generating
	FormattingPrompt string
	ModelsCacheTTL   time.Duration
	ChatTimeout      time.Duration
	ImageTimeout     time.Duration
	ModelsTimeout    time.Duration
}

// OAuthConfig holds Google OAuth 2.0 configuration and the optional
// access allow-lists.
type OAuthConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	UserInfoURL   string
	AllowedEmails []string
	AllowedDomain string
}

// SessionConfig controls the signed web-session cookie and chat transcript lifetime.
type SessionConfig struct {
	Secret         []byte
	Lifetime       time.Duration // Web session cookie and identity record lifetime
	ChatSessionTTL time.Duration // Idle lifetime of a chat transcript
}

// UsageConfig holds the demo quota policy.
type UsageConfig struct {
	AdminEmail      string
	RequestLimit    int
	TokenLimit      int
	ChargeCacheHits bool
}

// CacheConfig sizes the response cache.
type CacheConfig struct {
	MaxEntries int
	EvictBatch int
}

// RedisConfig holds Redis configuration. Redis backs rate-limit counters
// only and is optional.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

// CORSConfig holds Cross-Origin Resource Sharing (CORS) configuration.
type CORSConfig struct {
	AllowedOrigins []string
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int
	WindowDuration    time.Duration
}

// UploadConfig bounds /api/upload-file.
type UploadConfig struct {
	MaxBytes int64
}

// Load reads and validates configuration from environment variables.
// It attempts to load a .env file if present but doesn't fail if the file
// is missing.
//
// Required environment variables:
//   - GOOGLE_CLIENT_ID: Google OAuth client ID
//   - GOOGLE_CLIENT_SECRET: Google OAuth client secret
//
// When SECRET_KEY is unset a random signing key is generated, which logs
// every user out on restart.
func Load() (*Config, error) {
	_ = godotenv.Load()

	googleClientID, err := getEnvRequired("GOOGLE_CLIENT_ID")
	if err != nil {
		return nil, err
	}

	googleClientSecret, err := getEnvRequired("GOOGLE_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}

	secret := []byte(os.Getenv("SECRET_KEY"))
	if len(secret) == 0 {
		secret, err = randomSecret()
		if err != nil {
			return nil, err
		}
		log.Warn().Msg("SECRET_KEY is not set, using a random session key")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8000"),
			Environment: getEnv("ENVIRONMENT", "development"),
			DevMode:     getEnvAsBool("DEV_MODE", false),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
		Gateway: GatewayConfig{
			BaseURL:          strings.TrimRight(getEnv("LITELLM_API_BASE", "http://localhost:4000"), "/"),
			APIKey:           getEnv("LITELLM_API_KEY", ""),
			ImageModels:      getEnvAsSlice("IMAGE_MODELS", []string{"dall-e-3", "dall-e-2", "dall-e", "midjourney", "stable-diffusion", "sdxl", "kandinsky", "deepfloyd"}),
			FormattingPrompt: getEnv("FORMATTING_PROMPT", DefaultFormattingPrompt),
			ModelsCacheTTL:   getEnvAsDuration("MODELS_CACHE_TTL", 5*time.Minute),
			ChatTimeout:      getEnvAsDuration("GATEWAY_CHAT_TIMEOUT", 15*time.Second),
			ImageTimeout:     getEnvAsDuration("GATEWAY_IMAGE_TIMEOUT", 30*time.Second),
			ModelsTimeout:    getEnvAsDuration("GATEWAY_MODELS_TIMEOUT", 10*time.Second),
		},
		OAuth: OAuthConfig{
			ClientID:      googleClientID,
			ClientSecret:  googleClientSecret,
			RedirectURL:   getEnv("GOOGLE_REDIRECT_URI", "http://localhost:8000/auth/callback"),
			UserInfoURL:   getEnv("GOOGLE_USER_INFO", "https://www.googleapis.com/oauth2/v2/userinfo"),
			AllowedEmails: getEnvAsSlice("ALLOWED_EMAILS", nil),
			AllowedDomain: getEnv("ALLOWED_DOMAIN", ""),
		},
		Session: SessionConfig{
			Secret:         secret,
			Lifetime:       getEnvAsDuration("SESSION_LIFETIME", 24*time.Hour),
			ChatSessionTTL: getEnvAsDuration("CHAT_SESSION_TTL", 24*time.Hour),
		},
		Usage: UsageConfig{
			AdminEmail:      getEnv("ADMIN_EMAIL", ""),
			RequestLimit:    getEnvAsInt("DEMO_REQUEST_LIMIT", 2),
			TokenLimit:      getEnvAsInt("DEMO_TOKEN_LIMIT", 100),
			ChargeCacheHits: getEnvAsBool("USAGE_CHARGE_CACHE_HITS", false),
		},
		Cache: CacheConfig{
			MaxEntries: getEnvAsInt("CACHE_MAX_ENTRIES", 100),
			EvictBatch: getEnvAsInt("CACHE_EVICT_BATCH", 20),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 20),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:8000"}),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 30),
			WindowDuration:    getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Upload: UploadConfig{
			MaxBytes: int64(getEnvAsInt("UPLOAD_MAX_BYTES", 10<<20)),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks if all required configuration is present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server port must be a valid integer: %w", err)
	}

	if c.Redis.Enabled {
		if _, err := strconv.Atoi(c.Redis.Port); err != nil {
			return fmt.Errorf("redis port must be a valid integer: %w", err)
		}
	}

	if c.OAuth.ClientID == "" {
		return fmt.Errorf("google OAuth client ID is required")
	}
	if c.OAuth.ClientSecret == "" {
		return fmt.Errorf("google OAuth client secret is required")
	}
	if _, err := url.ParseRequestURI(c.OAuth.RedirectURL); err != nil {
		return fmt.Errorf("invalid OAuth redirect URL: %w", err)
	}
	if _, err := url.ParseRequestURI(c.OAuth.UserInfoURL); err != nil {
		return fmt.Errorf("invalid OAuth user info URL: %w", err)
	}

	if _, err := url.ParseRequestURI(c.Gateway.BaseURL); err != nil {
		return fmt.Errorf("invalid LiteLLM API base URL: %w", err)
	}

	if len(c.Session.Secret) < 16 {
		return fmt.Errorf("session secret must be at least 16 bytes")
	}

	if c.Usage.RequestLimit < 0 || c.Usage.TokenLimit < 0 {
		return fmt.Errorf("demo limits must not be negative")
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"gateway chat timeout", c.Gateway.ChatTimeout},
		{"gateway image timeout", c.Gateway.ImageTimeout},
		{"gateway models timeout", c.Gateway.ModelsTimeout},
		{"models cache TTL", c.Gateway.ModelsCacheTTL},
		{"session lifetime", c.Session.Lifetime},
		{"chat session TTL", c.Session.ChatSessionTTL},
		{"rate limit window", c.RateLimit.WindowDuration},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate limit requests per minute must be positive")
	}

	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive")
	}
	if c.Cache.EvictBatch <= 0 || c.Cache.EvictBatch > c.Cache.MaxEntries {
		return fmt.Errorf("cache evict batch must be between 1 and %d", c.Cache.MaxEntries)
	}

	return nil
}

// IsProduction reports whether cookies should be marked Secure.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production" && !c.DevMode
}

// Address returns the Redis server address in "host:port" format.
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func randomSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	return b, nil
}

// Helper functions for environment variable parsing

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvRequired retrieves a required environment variable.
// Returns an error if the variable is not set or is empty.
func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an integer with a default fallback.
// If the variable is not set or cannot be parsed as an integer, returns defaultValue.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool accepts the usual strconv.ParseBool spellings ("true", "1", "false", ...).
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strings.ToLower(valueStr))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a time.Duration with a default fallback.
// Supports Go duration format: "300ms", "1.5h", "2h45m", etc.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice retrieves an environment variable as a string slice with a default fallback.
// Parses comma-separated values, trimming whitespace and dropping empty items.
//
// Example:
//
//	// ALLOWED_EMAILS=alice@example.com, bob@example.com
//	emails := getEnvAsSlice("ALLOWED_EMAILS", nil)
//	// Returns: ["alice@example.com", "bob@example.com"]
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
