package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "DOCREV"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultAllowedOrigins = "*"
	defaultDatabaseDriver = "sqlite"
	defaultDatabaseDSN    = "docrev.db"
	defaultLogLevel       = "info"
	defaultSessionIssuer  = "docrev-auth"
	defaultCookieName     = "app_session"
	defaultSessionTTL     = 60
	defaultCacheTTL       = 600
)

// AppConfig captures runtime configuration for the API server and CLI.
type AppConfig struct {
	HTTPAddress            string
	AllowedOrigins         []string
	DatabaseDriver         string
	DatabaseDSN            string
	LogLevel               string
	SessionSigningSecret   string
	SessionIssuer          string
	SessionCookieName      string
	SessionTTL             time.Duration
	RedisURL               string
	CacheTTL               time.Duration
	RejectStaleSuggestions bool
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", defaultAllowedOrigins)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.issuer", defaultSessionIssuer)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.ttl_minutes", defaultSessionTTL)
	configViper.SetDefault("cache.redis_url", "")
	configViper.SetDefault("cache.ttl_seconds", defaultCacheTTL)
	configViper.SetDefault("suggestions.reject_stale", false)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:            configViper.GetString("http.address"),
		AllowedOrigins:         splitList(configViper.GetString("http.allowed_origins")),
		DatabaseDriver:         strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:            configViper.GetString("database.dsn"),
		LogLevel:               configViper.GetString("log.level"),
		SessionSigningSecret:   configViper.GetString("session.signing_secret"),
		SessionIssuer:          configViper.GetString("session.issuer"),
		SessionCookieName:      configViper.GetString("session.cookie_name"),
		SessionTTL:             time.Duration(configViper.GetInt("session.ttl_minutes")) * time.Minute,
		RedisURL:               strings.TrimSpace(configViper.GetString("cache.redis_url")),
		CacheTTL:               time.Duration(configViper.GetInt("cache.ttl_seconds")) * time.Second,
		RejectStaleSuggestions: configViper.GetBool("suggestions.reject_stale"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// CacheEnabled reports whether a Redis version cache was configured.
func (c AppConfig) CacheEnabled() bool {
	return c.RedisURL != ""
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if strings.TrimSpace(c.SessionIssuer) == "" {
		return fmt.Errorf("session.issuer is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session.ttl_minutes must be positive")
	}
	if c.CacheEnabled() && c.CacheTTL <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be positive when cache.redis_url is set")
	}
	return nil
}

func splitList(raw string) []string {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
