package aishield

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// LoadConfig builds the effective configuration: documented defaults,
// overlaid with the config file at path (if path is non-empty), overlaid
// with SHIELD_* environment variables.
// Supported file formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing YAML config: %w", err)
			}
		case ".json":
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing JSON config: %w", err)
			}
		default:
			return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig validates a Config for correctness.
func ValidateConfig(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", cfg.Server.Port)
	}

	switch cfg.Cache.Storage {
	case CacheStorageNone, CacheStorageFile, CacheStorageRedis:
	default:
		return fmt.Errorf("unknown cache storage %q: use none, file, or redis", cfg.Cache.Storage)
	}
	if cfg.Cache.Storage == CacheStorageFile && cfg.Cache.Dir == "" {
		return fmt.Errorf("cache storage %q requires dir", CacheStorageFile)
	}
	if cfg.Cache.Storage == CacheStorageRedis && cfg.Cache.RedisAddr == "" {
		return fmt.Errorf("cache storage %q requires redis_addr", CacheStorageRedis)
	}
	if cfg.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max_entries must be positive")
	}
	if cfg.Cache.DefaultTTLSeconds <= 0 {
		return fmt.Errorf("cache default_ttl_seconds must be positive")
	}

	for name, rule := range map[string]RateLimitRule{
		"global":      cfg.RateLimits.Global,
		"speech":      cfg.RateLimits.Speech,
		"text":        cfg.RateLimits.Text,
		"voice_clone": cfg.RateLimits.VoiceClone,
	} {
		if rule.WindowSeconds <= 0 {
			return fmt.Errorf("rate limit %s: window_seconds must be positive", name)
		}
		if rule.MaxRequests <= 0 {
			return fmt.Errorf("rate limit %s: max_requests must be positive", name)
		}
	}

	switch cfg.Upstreams.Mode {
	case UpstreamModeLive, UpstreamModeSandbox:
	default:
		return fmt.Errorf("unknown upstream mode %q: use live or sandbox", cfg.Upstreams.Mode)
	}
	if cfg.Upstreams.Mode == UpstreamModeLive {
		if cfg.Upstreams.Speech.Token == "" {
			return fmt.Errorf("live upstream mode requires a speech token")
		}
		switch cfg.Upstreams.Text.Provider {
		case TextProviderOpenAI:
			if cfg.Upstreams.Text.APIKey == "" {
				return fmt.Errorf("text provider %q requires api_key", TextProviderOpenAI)
			}
		case TextProviderBedrock:
		default:
			return fmt.Errorf("unknown text provider %q: use openai or bedrock", cfg.Upstreams.Text.Provider)
		}
	}

	switch cfg.RequestLog.Backend {
	case RequestLogNone, RequestLogSQLite:
	case RequestLogPostgres:
		if cfg.RequestLog.DSN == "" {
			return fmt.Errorf("request log backend %q requires dsn", RequestLogPostgres)
		}
	default:
		return fmt.Errorf("unknown request log backend %q: use none, sqlite, or postgres", cfg.RequestLog.Backend)
	}

	return nil
}
