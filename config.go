// Package aishield wires the response cache, per-client rate limiters,
// circuit breakers, and upstream AI clients into a single gateway object.
package aishield

// Config holds the configuration for the AI Shield gateway.
//
// Values come from a JSON/YAML file loaded with LoadConfig; any SHIELD_*
// environment variable set at startup overrides the corresponding field.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	RateLimits RateLimitsConfig `json:"rate_limits" yaml:"rate_limits"`
	Upstreams  UpstreamsConfig  `json:"upstreams" yaml:"upstreams"`
	RequestLog RequestLogConfig `json:"request_log" yaml:"request_log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" env:"SHIELD_HOST"`
	Port int    `json:"port" yaml:"port" env:"SHIELD_PORT"`
	// CORSAllowedOrigins lists the origins allowed to call the API from a
	// browser. Empty means same-origin only.
	CORSAllowedOrigins []string `json:"cors_allowed_origins,omitempty" yaml:"cors_allowed_origins,omitempty" env:"SHIELD_CORS_ALLOWED_ORIGINS"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"SHIELD_LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"SHIELD_LOG_FORMAT"`
}

// Cache storage backends.
const (
	CacheStorageNone  = "none"
	CacheStorageFile  = "file"
	CacheStorageRedis = "redis"
)

// CacheConfig controls the response cache.
type CacheConfig struct {
	MaxEntries           int    `json:"max_entries" yaml:"max_entries" env:"SHIELD_CACHE_MAX_ENTRIES"`
	DefaultTTLSeconds    int    `json:"default_ttl_seconds" yaml:"default_ttl_seconds" env:"SHIELD_CACHE_TTL_SECONDS"`
	SweepIntervalSeconds int    `json:"sweep_interval_seconds" yaml:"sweep_interval_seconds" env:"SHIELD_CACHE_SWEEP_SECONDS"`
	Storage              string `json:"storage" yaml:"storage" env:"SHIELD_CACHE_STORAGE"`
	// Dir is the persistence directory for the file backend.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" env:"SHIELD_CACHE_DIR"`
	// Redis settings for the redis backend.
	RedisAddr     string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty" env:"SHIELD_CACHE_REDIS_ADDR"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty" env:"SHIELD_CACHE_REDIS_PASSWORD"`
	RedisDB       int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty" env:"SHIELD_CACHE_REDIS_DB"`
	RedisPrefix   string `json:"redis_prefix,omitempty" yaml:"redis_prefix,omitempty" env:"SHIELD_CACHE_REDIS_PREFIX"`
}

// RateLimitRule is one fixed-window admission rule.
type RateLimitRule struct {
	WindowSeconds int    `json:"window_seconds" yaml:"window_seconds"`
	MaxRequests   int    `json:"max_requests" yaml:"max_requests"`
	Message       string `json:"message,omitempty" yaml:"message,omitempty"`
}

// RateLimitsConfig holds the per-class admission rules.
type RateLimitsConfig struct {
	Global     RateLimitRule `json:"global" yaml:"global"`
	Speech     RateLimitRule `json:"speech" yaml:"speech"`
	Text       RateLimitRule `json:"text" yaml:"text"`
	VoiceClone RateLimitRule `json:"voice_clone" yaml:"voice_clone"`
}

// Upstream modes.
const (
	UpstreamModeLive    = "live"
	UpstreamModeSandbox = "sandbox"
)

// Text generation providers.
const (
	TextProviderOpenAI  = "openai"
	TextProviderBedrock = "bedrock"
)

// UpstreamsConfig selects and configures the external AI services.
type UpstreamsConfig struct {
	// Mode is "live" or "sandbox". Sandbox swaps every upstream for a
	// deterministic local mock.
	Mode    string               `json:"mode" yaml:"mode" env:"SHIELD_UPSTREAM_MODE"`
	Speech  SpeechUpstreamConfig `json:"speech" yaml:"speech"`
	Text    TextUpstreamConfig   `json:"text" yaml:"text"`
	Breaker BreakerConfig        `json:"breaker" yaml:"breaker"`
}

// SpeechUpstreamConfig configures the Volcengine speech client.
type SpeechUpstreamConfig struct {
	AppID   string `json:"app_id" yaml:"app_id" env:"SHIELD_SPEECH_APP_ID"`
	Token   string `json:"token" yaml:"token" env:"SHIELD_SPEECH_TOKEN"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" env:"SHIELD_SPEECH_BASE_URL"`
}

// TextUpstreamConfig configures the text-generation client.
type TextUpstreamConfig struct {
	Provider string `json:"provider" yaml:"provider" env:"SHIELD_TEXT_PROVIDER"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"SHIELD_TEXT_API_KEY"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty" env:"SHIELD_TEXT_BASE_URL"`
	// Region applies to the bedrock provider.
	Region string `json:"region,omitempty" yaml:"region,omitempty" env:"SHIELD_TEXT_REGION"`
}

// BreakerConfig controls the per-upstream circuit breakers.
type BreakerConfig struct {
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold" env:"SHIELD_BREAKER_FAILURES"`
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold" env:"SHIELD_BREAKER_SUCCESSES"`
	OpenSeconds      int `json:"open_seconds" yaml:"open_seconds" env:"SHIELD_BREAKER_OPEN_SECONDS"`
}

// Request log backends.
const (
	RequestLogNone     = "none"
	RequestLogSQLite   = "sqlite"
	RequestLogPostgres = "postgres"
)

// RequestLogConfig controls the durable request audit log.
type RequestLogConfig struct {
	Backend string `json:"backend" yaml:"backend" env:"SHIELD_REQUEST_LOG_BACKEND"`
	DSN     string `json:"dsn,omitempty" yaml:"dsn,omitempty" env:"SHIELD_REQUEST_LOG_DSN"`
}

// DefaultConfig returns the documented defaults: a 100-entry cache with a
// one-hour TTL and file persistence, plus the standard admission presets
// (global 1000 per 15 minutes, speech 20 per minute, text 15 per minute,
// voice clone 5 per hour).
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			MaxEntries:           100,
			DefaultTTLSeconds:    3600,
			SweepIntervalSeconds: 600,
			Storage:              CacheStorageFile,
			Dir:                  "data/cache",
			RedisPrefix:          "shield",
		},
		RateLimits: RateLimitsConfig{
			Global: RateLimitRule{
				WindowSeconds: 900,
				MaxRequests:   1000,
				Message:       "too many requests, please try again later",
			},
			Speech: RateLimitRule{
				WindowSeconds: 60,
				MaxRequests:   20,
				Message:       "speech synthesis limit reached, please slow down",
			},
			Text: RateLimitRule{
				WindowSeconds: 60,
				MaxRequests:   15,
				Message:       "text generation limit reached, please slow down",
			},
			VoiceClone: RateLimitRule{
				WindowSeconds: 3600,
				MaxRequests:   5,
				Message:       "voice clone training limit reached, try again in an hour",
			},
		},
		Upstreams: UpstreamsConfig{
			Mode: UpstreamModeSandbox,
			Text: TextUpstreamConfig{
				Provider: TextProviderOpenAI,
			},
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 1,
				OpenSeconds:      30,
			},
		},
		RequestLog: RequestLogConfig{
			Backend: RequestLogNone,
		},
	}
}
