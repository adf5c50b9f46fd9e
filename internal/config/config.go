package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultAdminPassword must be overridden through ADMIN_PASSWORD in any real deployment.
const DefaultAdminPassword = "changeme"

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	Port                   int
	AdminPassword          string
	StoreBackend           string
	RedisURL               string
	DatabaseURL            string
	SessionTTLSeconds      int
	RoundTTLSeconds        int
	PIDCookieDays          int
	JanitorIntervalSeconds int
	SecureCookies          bool
	LogFile                string
	LogVerbose             bool
	Env                    string
}

func Default() Config {
	return Config{
		Port:                   8080,
		AdminPassword:          DefaultAdminPassword,
		StoreBackend:           "memory",
		SessionTTLSeconds:      7200,
		RoundTTLSeconds:        3600,
		PIDCookieDays:          7,
		JanitorIntervalSeconds: 600,
		Env:                    "dev",
	}
}

// UsesDefaultPassword reports whether the admin password was left at its default.
func (c Config) UsesDefaultPassword() bool {
	return c.AdminPassword == DefaultAdminPassword
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("PORT"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.Port = value
		}
	}
	if raw := os.Getenv("ADMIN_PASSWORD"); raw != "" {
		cfg.AdminPassword = raw
	}
	if raw := os.Getenv("STORE_BACKEND"); raw != "" {
		cfg.StoreBackend = raw
	}
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		cfg.RedisURL = raw
	}
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		cfg.DatabaseURL = raw
	}
	if raw := os.Getenv("SESSION_TTL_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.SessionTTLSeconds = value
		}
	}
	if raw := os.Getenv("ROUND_TTL_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.RoundTTLSeconds = value
		}
	}
	if raw := os.Getenv("PID_COOKIE_DAYS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.PIDCookieDays = value
		}
	}
	if raw := os.Getenv("JANITOR_INTERVAL_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.JanitorIntervalSeconds = value
		}
	}
	if raw := os.Getenv("SECURE_COOKIES"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.SecureCookies = value
		}
	}
	if raw := os.Getenv("LOG_FILE"); raw != "" {
		cfg.LogFile = raw
	}
	if raw := os.Getenv("LOG_VERBOSE"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.LogVerbose = value
		}
	}
	if raw := os.Getenv("APP_ENV"); raw != "" {
		cfg.Env = raw
	}
	return cfg
}
