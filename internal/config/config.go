package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. STOREADMIN_SERVER_PORT.
const EnvPrefix = "STOREADMIN"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	SecretKey string          `mapstructure:"secretKey"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Mail      MailConfig      `mapstructure:"mail"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	BaseURL         string        `mapstructure:"baseURL"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	AllowedOrigins  []string      `mapstructure:"allowedOrigins"`
}

type DatabaseConfig struct {
	Type         string `mapstructure:"type"` // sqlite or postgres
	Path         string `mapstructure:"path"`
	DSN          string `mapstructure:"dsn"`
	MaxRetries   int    `mapstructure:"maxRetries"`
	RetryDelay   int    `mapstructure:"retryDelay"` // seconds
	MaxOpenConns int    `mapstructure:"maxOpenConns"`
}

type SessionsConfig struct {
	Store            string        `mapstructure:"store"` // database or redis
	Lifetime         time.Duration `mapstructure:"lifetime"`
	RememberLifetime time.Duration `mapstructure:"rememberLifetime"`
	CleanupInterval  time.Duration `mapstructure:"cleanupInterval"`
	SecureCookie     bool          `mapstructure:"secureCookie"`
	RedisAddr        string        `mapstructure:"redisAddr"`
	RedisPassword    string        `mapstructure:"redisPassword"`
	RedisDB          int           `mapstructure:"redisDB"`
}

type AuthConfig struct {
	HashAlgorithm string        `mapstructure:"hashAlgorithm"` // pbkdf2, bcrypt or argon2id
	ResetMaxAge   time.Duration `mapstructure:"resetMaxAge"`
}

type MailConfig struct {
	Mode     string `mapstructure:"mode"` // log or smtp
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"fromName"`
}

// StorageConfig points at an S3-compatible bucket holding product images.
// An empty Bucket disables image URLs.
type StorageConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	Region        string        `mapstructure:"region"`
	Bucket        string        `mapstructure:"bucket"`
	AccessKey     string        `mapstructure:"accessKey"`
	SecretKey     string        `mapstructure:"secretKey"`
	PresignExpiry time.Duration `mapstructure:"presignExpiry"`
}

type AnalyticsConfig struct {
	RequireAuth bool `mapstructure:"requireAuth"`
}

// MetricsConfig places the Prometheus endpoint on its own listener, apart
// from the panel. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.baseURL", "http://localhost:5000")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.allowedOrigins", []string{})
	v.SetDefault("secretKey", "")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "data/storeadmin.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.maxRetries", 5)
	v.SetDefault("database.retryDelay", 2)
	v.SetDefault("database.maxOpenConns", 0)

	v.SetDefault("sessions.store", "database")
	v.SetDefault("sessions.lifetime", 24*time.Hour)
	v.SetDefault("sessions.rememberLifetime", 365*24*time.Hour)
	v.SetDefault("sessions.cleanupInterval", time.Hour)
	v.SetDefault("sessions.redisAddr", "localhost:6379")
	v.SetDefault("sessions.redisPassword", "")
	v.SetDefault("sessions.redisDB", 0)

	v.SetDefault("auth.hashAlgorithm", "pbkdf2")
	v.SetDefault("auth.resetMaxAge", time.Hour)

	v.SetDefault("mail.mode", "log")
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.user", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "noreply@storeadmin.local")
	v.SetDefault("mail.fromName", "Store Admin")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.accessKey", "")
	v.SetDefault("storage.secretKey", "")
	v.SetDefault("storage.presignExpiry", 15*time.Minute)

	v.SetDefault("analytics.requireAuth", false)

	v.SetDefault("metrics.addr", "127.0.0.1:9100")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig loads the configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.SecretKey == "" {
		if os.Getenv("STOREADMIN_ENV") == "prod" {
			return nil, errors.New("secretKey must be set in production")
		}
		key, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.SecretKey = key
		slog.Warn("secretKey not specified, generated an ephemeral one; reset links will not survive a restart")
	}

	// sessions.secureCookie has no default so IsSet only sees the file and
	// the environment. Unmarshal skips env-only keys, hence GetBool.
	if v.IsSet("sessions.secureCookie") {
		cfg.Sessions.SecureCookie = v.GetBool("sessions.secureCookie")
	} else {
		cfg.Sessions.SecureCookie = strings.HasPrefix(cfg.Server.BaseURL, "https://")
		slog.Info("session cookie security not specified, derived from base URL", "secure", cfg.Sessions.SecureCookie)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"database", cfg.Database.Type,
		"sessions", cfg.Sessions.Store,
		"hash", cfg.Auth.HashAlgorithm,
		"mail", cfg.Mail.Mode,
	)
	return &cfg, nil
}

// Validate rejects option values the rest of the application cannot act on.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}
	switch c.Sessions.Store {
	case "database", "redis":
	default:
		return fmt.Errorf("unsupported sessions.store %q", c.Sessions.Store)
	}
	switch c.Auth.HashAlgorithm {
	case "pbkdf2", "bcrypt", "argon2id":
	default:
		return fmt.Errorf("unsupported auth.hashAlgorithm %q", c.Auth.HashAlgorithm)
	}
	switch c.Mail.Mode {
	case "log", "smtp":
	default:
		return fmt.Errorf("unsupported mail.mode %q", c.Mail.Mode)
	}
	if c.Sessions.Lifetime <= 0 || c.Sessions.RememberLifetime <= 0 {
		return errors.New("session lifetimes must be positive")
	}
	if c.Auth.ResetMaxAge <= 0 {
		return errors.New("auth.resetMaxAge must be positive")
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
