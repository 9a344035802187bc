package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env     string
	Port    string
	GinMode string

	Database DatabaseConfig
	Auth     AuthConfig
	Log      LogConfig
	CORS     CORSConfig
	Sessions SessionConfig
}

type DatabaseConfig struct {
	// URL selects Postgres when set; otherwise SQLite at Path is used.
	URL  string
	Path string
}

type AuthConfig struct {
	JWTSecret        string
	JWTExpiration    time.Duration
	APIMasterSecret  string
	AdminUsername    string
	AdminPassword    string
	DefaultRateLimit int
}

type LogConfig struct {
	Level  string
	Format string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// SessionConfig tunes assignment editing sessions.
type SessionConfig struct {
	TTL           time.Duration
	PruneInterval time.Duration
	CommitTimeout time.Duration
}

// Load reads configuration from the environment and an optional .env file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env", "../.env", "../../.env"}
	}
	for _, p := range envFiles {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := &Config{
		Env:     v.GetString("ENV"),
		Port:    v.GetString("PORT"),
		GinMode: v.GetString("GIN_MODE"),
	}

	cfg.Database = DatabaseConfig{
		URL:  v.GetString("DATABASE_URL"),
		Path: v.GetString("DATA_PATH"),
	}

	cfg.Auth = AuthConfig{
		JWTSecret:        v.GetString("JWT_SECRET"),
		JWTExpiration:    parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		APIMasterSecret:  v.GetString("API_MASTER_SECRET"),
		AdminUsername:    v.GetString("ADMIN_USERNAME"),
		AdminPassword:    v.GetString("ADMIN_PASSWORD"),
		DefaultRateLimit: v.GetInt("DEFAULT_RATE_LIMIT"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Sessions = SessionConfig{
		TTL:           parseDuration(v.GetString("SESSION_TTL"), 2*time.Hour),
		PruneInterval: parseDuration(v.GetString("SESSION_PRUNE_INTERVAL"), 10*time.Minute),
		CommitTimeout: parseDuration(v.GetString("COMMIT_TIMEOUT"), 10*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Env == EnvProduction {
		if c.Auth.JWTSecret == "" {
			return errors.New("JWT_SECRET is required in production")
		}
		if c.Auth.APIMasterSecret == "" {
			return errors.New("API_MASTER_SECRET is required in production")
		}
	}
	if c.Auth.DefaultRateLimit <= 0 {
		return errors.New("DEFAULT_RATE_LIMIT must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", "8000")
	v.SetDefault("GIN_MODE", "")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATA_PATH", "homestay.db")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("API_MASTER_SECRET", "")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "admin123")
	v.SetDefault("DEFAULT_RATE_LIMIT", 10000)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ALLOWED_ORIGINS", "")

	v.SetDefault("SESSION_TTL", "2h")
	v.SetDefault("SESSION_PRUNE_INTERVAL", "10m")
	v.SetDefault("COMMIT_TIMEOUT", "10s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
