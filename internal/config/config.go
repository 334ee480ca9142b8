package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	ServerPort     int
	DatabaseDriver string // sqlite, pgx or memory
	DatabaseDSN    string

	SecretKey string
	Algorithm string
	TokenTTL  time.Duration

	// Demo principal seeded at start-up when username and password are set.
	DemoUsername string
	DemoPassword string
	DemoEmail    string

	PasswordScheme string
	BcryptCost     int

	AllowedOrigins []string
	LogLevel       string
	Env            string
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("database_dsn", "./listings.db")
	v.SetDefault("api_algorithm", "HS256")
	v.SetDefault("api_access_token_expire_seconds", "900")
	v.SetDefault("password_scheme", "bcrypt")
	v.SetDefault("bcrypt_cost", "10")
	v.SetDefault("cors_allowed_origins", "*")
	v.SetDefault("log_level", "info")
	v.SetDefault("app_env", "development")
}

// Load loads configuration from environment variables, an optional .env
// file in the working directory, and defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	port, err := getInt(v, "port")
	if err != nil {
		return nil, err
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("PORT out of range: %d", port)
	}

	ttlSeconds, err := getInt(v, "api_access_token_expire_seconds")
	if err != nil {
		return nil, err
	}
	if ttlSeconds <= 0 {
		return nil, fmt.Errorf("API_ACCESS_TOKEN_EXPIRE_SECONDS must be positive, got %d", ttlSeconds)
	}

	bcryptCost, err := getInt(v, "bcrypt_cost")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:     port,
		DatabaseDriver: v.GetString("database_driver"),
		DatabaseDSN:    v.GetString("database_dsn"),
		SecretKey:      v.GetString("api_secret_key"),
		Algorithm:      v.GetString("api_algorithm"),
		TokenTTL:       time.Duration(ttlSeconds) * time.Second,
		DemoUsername:   v.GetString("api_username"),
		DemoPassword:   v.GetString("api_password"),
		DemoEmail:      v.GetString("api_user_email"),
		PasswordScheme: v.GetString("password_scheme"),
		BcryptCost:     bcryptCost,
		AllowedOrigins: splitList(v.GetString("cors_allowed_origins")),
		LogLevel:       v.GetString("log_level"),
		Env:            v.GetString("app_env"),
	}

	switch cfg.DatabaseDriver {
	case "sqlite", "pgx", "memory":
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if cfg.DemoUsername != "" && cfg.DemoEmail == "" {
		cfg.DemoEmail = cfg.DemoUsername + "@localhost"
	}

	return cfg, nil
}

func getInt(v *viper.Viper, key string) (int, error) {
	raw := v.GetString(key)
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", strings.ToUpper(key), raw)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
