// Package config loads the gateway's runtime configuration from the
// environment. Every knob has a default suitable for local development except
// the upstream wiki URL, which must be set.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is the full runtime configuration for the gateway process.
type Config struct {
	// ListenAddr is the HTTP bind address. ENV: LISTEN_ADDR
	ListenAddr string `env:"LISTEN_ADDR,default=:8080"`
	// BasePath is the protocol endpoint path. ENV: BASE_PATH
	BasePath string `env:"BASE_PATH,default=/mcp"`

	// UpstreamURL is the base URL of the wiki REST API. ENV: WIKI_BASE_URL
	UpstreamURL string `env:"WIKI_BASE_URL"`
	// UpstreamToken is the bearer token for upstream calls. ENV: WIKI_API_TOKEN
	UpstreamToken string `env:"WIKI_API_TOKEN"`
	// UpstreamTimeout bounds each upstream HTTP call. ENV: WIKI_TIMEOUT
	UpstreamTimeout time.Duration `env:"WIKI_TIMEOUT,default=30s"`

	// PageSize is the upstream page size when a tool call does not set one.
	// ENV: PAGE_SIZE
	PageSize int `env:"PAGE_SIZE,default=25"`
	// MaxPages is the aggregator's page-fetch ceiling per tool call.
	// ENV: MAX_PAGES
	MaxPages int `env:"MAX_PAGES,default=20"`
	// ResultBudget caps accumulated list results per tool call (0 = unbounded).
	// ENV: RESULT_BUDGET
	ResultBudget int `env:"RESULT_BUDGET,default=250"`

	// SessionStore selects the session backend: "memory" or "redis".
	// ENV: SESSION_STORE
	SessionStore string `env:"SESSION_STORE,default=memory"`
	// SessionTTL is the idle lifetime of a session record. ENV: SESSIONS_TTL
	SessionTTL time.Duration `env:"SESSIONS_TTL,default=30m"`
	// RedisAddr is used when SessionStore is "redis". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`

	// KeepAliveInterval paces keep-alive comments on GET streams.
	// ENV: SSE_KEEPALIVE_INTERVAL
	KeepAliveInterval time.Duration `env:"SSE_KEEPALIVE_INTERVAL,default=15s"`

	// LogLevel is one of debug, info, warn, error. ENV: LOG_LEVEL
	LogLevel string `env:"LOG_LEVEL,default=info"`
	// LogFormat is "text" or "json". ENV: LOG_FORMAT
	LogFormat string `env:"LOG_FORMAT,default=text"`
}

// Load populates a Config from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that envdecode cannot express.
func (c *Config) Validate() error {
	if c.UpstreamURL == "" {
		return fmt.Errorf("WIKI_BASE_URL is required")
	}
	switch c.SessionStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("SESSION_STORE must be memory or redis, got %q", c.SessionStore)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("MAX_PAGES must be positive, got %d", c.MaxPages)
	}
	if c.ResultBudget < 0 {
		return fmt.Errorf("RESULT_BUDGET must not be negative, got %d", c.ResultBudget)
	}
	return nil
}
