package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/sirupsen/logrus"
)

// internalHost is the service name other containers use to reach the backend.
const internalHost = "backend"

// Config holds all application configuration.
type Config struct {
	AppPort      string   `yaml:"app_port" env:"APP_PORT" env-default:"8080"`
	Debug        bool     `yaml:"debug" env:"DEBUG" env-default:"false"`
	LogLevel     string   `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	AllowedHosts []string `yaml:"allowed_hosts" env:"ALLOWED_HOSTS" env-separator:" " env-default:"localhost 127.0.0.1"`
	// TrustedProxies are the addresses or CIDRs whose X-Forwarded-For header
	// is believed. Empty means the client IP is always the peer address.
	TrustedProxies []string        `yaml:"trusted_proxies" env:"TRUSTED_PROXIES" env-separator:" "`
	CORS           CORSConfig      `yaml:"cors"`
	Database       DatabaseConfig  `yaml:"database"`
	JWT            JWTConfig       `yaml:"jwt"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	RedisURL       string          `yaml:"redis_url" env:"REDIS_URL"`
}

// CORSConfig lists the browser origins allowed to call the API with credentials.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:" " env-default:"http://localhost:3000 http://127.0.0.1:3000 http://localhost:8080 http://127.0.0.1:8080"`
}

// DatabaseConfig holds database specific configuration.
type DatabaseConfig struct {
	URL             string        `yaml:"url" env:"DATABASE_URL" env-required:"true"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"25"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"10m"`
	ConnectRetries  int           `yaml:"connect_retries" env:"DB_CONNECT_RETRIES" env-default:"10"`
	RetryDelay      time.Duration `yaml:"retry_delay" env:"DB_RETRY_DELAY" env-default:"2s"`
	QueryTimeout    time.Duration `yaml:"query_timeout" env:"DB_QUERY_TIMEOUT" env-default:"5s"`
}

// JWTConfig controls token lifetimes, claim names and the refresh rotation policy.
type JWTConfig struct {
	SecretKey              string        `yaml:"secret_key" env:"SECRET_KEY" env-required:"true"`
	AccessTokenLifetime    time.Duration `yaml:"access_token_lifetime" env:"ACCESS_TOKEN_LIFETIME" env-default:"60m"`
	RefreshTokenLifetime   time.Duration `yaml:"refresh_token_lifetime" env:"REFRESH_TOKEN_LIFETIME" env-default:"168h"`
	RotateRefreshTokens    bool          `yaml:"rotate_refresh_tokens" env:"ROTATE_REFRESH_TOKENS" env-default:"false"`
	BlacklistAfterRotation bool          `yaml:"blacklist_after_rotation" env:"BLACKLIST_AFTER_ROTATION" env-default:"true"`
	BlacklistEnabled       bool          `yaml:"blacklist_enabled" env:"TOKEN_BLACKLIST_ENABLED" env-default:"false"`
	UpdateLastLogin        bool          `yaml:"update_last_login" env:"UPDATE_LAST_LOGIN" env-default:"true"`
	UserIDClaim            string        `yaml:"user_id_claim" env:"USER_ID_CLAIM" env-default:"user_id"`
	TokenTypeClaim         string        `yaml:"token_type_claim" env:"TOKEN_TYPE_CLAIM" env-default:"token_type"`
}

// RateLimitConfig bounds requests per client IP on the token endpoints. A zero limit disables it.
type RateLimitConfig struct {
	Requests int           `yaml:"requests" env:"LOGIN_RATE_LIMIT" env-default:"20"`
	Interval time.Duration `yaml:"interval" env:"LOGIN_RATE_INTERVAL" env-default:"1m"`
}

// LoadConfig reads the YAML file at path when one is given, then overlays environment variables.
// An empty path falls back to CONFIG_PATH, and to environment only when that is unset too.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := read(resolvePath(path), &cfg); err != nil {
		return nil, err
	}

	if !slices.Contains(cfg.AllowedHosts, internalHost) {
		cfg.AllowedHosts = append(cfg.AllowedHosts, internalHost)
	}
	if cfg.Debug {
		cfg.LogLevel = logrus.DebugLevel.String()
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadDatabaseConfig reads only the database section, for tools that never sign tokens.
func LoadDatabaseConfig(path string) (*DatabaseConfig, error) {
	var cfg struct {
		Database DatabaseConfig `yaml:"database"`
	}
	if err := read(resolvePath(path), &cfg); err != nil {
		return nil, err
	}
	return &cfg.Database, nil
}

func resolvePath(path string) string {
	if path != "" {
		return path
	}
	return os.Getenv("CONFIG_PATH")
}

func read(path string, cfg any) error {
	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return fmt.Errorf("failed to read config from environment: %w", err)
		}
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file %q: %w", path, err)
	}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return fmt.Errorf("failed to read config %q: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch {
	case c.JWT.SecretKey == "":
		return errors.New("SECRET_KEY must not be empty")
	case c.JWT.AccessTokenLifetime <= 0:
		return errors.New("ACCESS_TOKEN_LIFETIME must be positive")
	case c.JWT.RefreshTokenLifetime <= 0:
		return errors.New("REFRESH_TOKEN_LIFETIME must be positive")
	case c.JWT.UserIDClaim == "" || c.JWT.TokenTypeClaim == "":
		return errors.New("claim names must not be empty")
	case c.JWT.UserIDClaim == c.JWT.TokenTypeClaim:
		return errors.New("USER_ID_CLAIM and TOKEN_TYPE_CLAIM must differ")
	case c.RateLimit.Requests < 0:
		return errors.New("LOGIN_RATE_LIMIT must not be negative")
	case c.RateLimit.Requests > 0 && c.RateLimit.Interval <= 0:
		return errors.New("LOGIN_RATE_INTERVAL must be positive")
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}
