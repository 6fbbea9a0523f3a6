// Package config provides configuration management for the tvgate server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// ServerConfig holds server-level configuration. Values are loaded from an
// optional YAML file first, then overridden by environment variables.
type ServerConfig struct {
	Environment Environment `yaml:"environment"`
	ListenAddr  string      `yaml:"listen_addr"`
	DatabaseURL string      `yaml:"database_url"`

	// Whop commerce platform credentials.
	WhopAPIKey  string `yaml:"whop_api_key"`
	WhopAppID   string `yaml:"whop_app_id"`
	WhopAPIBase string `yaml:"whop_api_base"`

	// TradingViewBaseURL is the indicator host. Overridable for tests only.
	TradingViewBaseURL string `yaml:"tradingview_base_url"`

	AllowedOrigins    []string `yaml:"allowed_origins"`
	RateLimitRequests int64    `yaml:"rate_limit_requests"`
	RateLimitPeriod   string   `yaml:"rate_limit_period"`
	RedisURL          string   `yaml:"redis_url"`

	// WebhookRetentionDays controls how long processed webhook events are
	// kept in the audit log before the retention job purges them.
	WebhookRetentionDays int `yaml:"webhook_retention_days"`

	// OutboundTimeout bounds every call to Whop and TradingView.
	OutboundTimeout time.Duration `yaml:"outbound_timeout"`

	Proxy *ProxyConfig `yaml:"proxy,omitempty"`
}

// ProxyConfig holds outbound proxy settings for the integration clients.
type ProxyConfig struct {
	HTTPProxy   string `yaml:"http_proxy"`
	HTTPSProxy  string `yaml:"https_proxy"`
	SOCKS5Proxy string `yaml:"socks5_proxy"`
	NoProxy     string `yaml:"no_proxy"`
}

// HasProxy reports whether any proxy is configured.
func (p *ProxyConfig) HasProxy() bool {
	if p == nil {
		return false
	}
	return p.HTTPProxy != "" || p.HTTPSProxy != "" || p.SOCKS5Proxy != ""
}

// DefaultServerConfig returns a config with development defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Environment:          EnvDevelopment,
		ListenAddr:           ":8080",
		WhopAPIBase:          "https://api.whop.com/api/v2",
		TradingViewBaseURL:   "https://www.tradingview.com",
		RateLimitRequests:    100,
		RateLimitPeriod:      "1m",
		WebhookRetentionDays: 90,
		OutboundTimeout:      30 * time.Second,
	}
}

// LoadServerConfig builds the server configuration. If CONFIG_FILE is set
// (or config.yaml exists in the working directory) it is parsed first;
// environment variables always win.
func LoadServerConfig() (ServerConfig, error) {
	cfg := DefaultServerConfig()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	switch cfg.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		cfg.Environment = EnvDevelopment
	}

	if cfg.WebhookRetentionDays < 0 {
		cfg.WebhookRetentionDays = 0
	}
	if cfg.OutboundTimeout <= 0 {
		cfg.OutboundTimeout = 30 * time.Second
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *ServerConfig) {
	if v := os.Getenv("ENV"); v != "" {
		cfg.Environment = Environment(v)
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	} else if port := os.Getenv("PORT"); port != "" {
		cfg.ListenAddr = ":" + port
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("WHOP_API_KEY"); v != "" {
		cfg.WhopAPIKey = v
	}
	if v := os.Getenv("WHOP_APP_ID"); v != "" {
		cfg.WhopAppID = v
	}
	if v := os.Getenv("WHOP_API_BASE"); v != "" {
		cfg.WhopAPIBase = v
	}
	if v := os.Getenv("TRADINGVIEW_BASE_URL"); v != "" {
		cfg.TradingViewBaseURL = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitAndTrim(v)
	}
	if v := getEnvInt64("RATE_LIMIT_REQUESTS", 0); v > 0 {
		cfg.RateLimitRequests = v
	}
	if v := os.Getenv("RATE_LIMIT_PERIOD"); v != "" {
		cfg.RateLimitPeriod = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := getEnvInt64("WEBHOOK_RETENTION_DAYS", -1); v >= 0 {
		cfg.WebhookRetentionDays = int(v)
	}
	if v := os.Getenv("OUTBOUND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.OutboundTimeout = d
		}
	}

	proxy := ProxyConfig{
		HTTPProxy:   os.Getenv("HTTP_PROXY"),
		HTTPSProxy:  os.Getenv("HTTPS_PROXY"),
		SOCKS5Proxy: os.Getenv("SOCKS5_PROXY"),
		NoProxy:     os.Getenv("NO_PROXY"),
	}
	if proxy.HasProxy() {
		cfg.Proxy = &proxy
	}
}

// Verify reports which required settings are missing. Used by the
// config-verification endpoint; values themselves are never exposed.
func (c ServerConfig) Verify() (valid bool, missing []string) {
	if c.WhopAPIKey == "" {
		missing = append(missing, "WHOP_API_KEY")
	}
	if c.WhopAppID == "" {
		missing = append(missing, "WHOP_APP_ID")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	return len(missing) == 0, missing
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvInt64 reads an integer from an environment variable, returning the
// default if unset or invalid.
func getEnvInt64(key string, defaultVal int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultVal
	}
	return n
}
