package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/silencie/silencie/internal/utils"
)

const devSecret = "silencie-dev-secret"

type Config struct {
	Addr           string
	DatabaseURL    string
	MigrationsDir  string
	JWTSecret      string
	TokenTTL       time.Duration
	LoginInterval  time.Duration
	TrustProxy     bool
	AllowedOrigins []string
	LogLevel       slog.Level
	DefaultLocale  string
	Commit         string
	BuildTime      string
}

// Load reads an optional .env file and then the SILENCIE_* environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return FromEnv(), nil
}

func FromEnv() *Config {
	cfg := &Config{
		Addr:           utils.SafeEnv("SILENCIE_ADDR", ":8080"),
		DatabaseURL:    utils.SafeEnv("SILENCIE_DATABASE_URL", "silencie.db"),
		MigrationsDir:  utils.SafeEnv("SILENCIE_MIGRATIONS_DIR", ""),
		JWTSecret:      utils.SafeEnv("SILENCIE_JWT_SECRET", devSecret),
		TokenTTL:       utils.DurationEnv("SILENCIE_TOKEN_TTL", 720*time.Hour),
		LoginInterval:  utils.DurationEnv("SILENCIE_LOGIN_INTERVAL", 6*time.Second),
		TrustProxy:     utils.BoolEnv("SILENCIE_TRUST_PROXY", false),
		AllowedOrigins: utils.ListEnv("SILENCIE_ALLOWED_ORIGINS"),
		LogLevel:       parseLevel(utils.SafeEnv("SILENCIE_LOG_LEVEL", "info")),
		DefaultLocale:  strings.ToLower(utils.SafeEnv("SILENCIE_DEFAULT_LOCALE", "pt")),
		Commit:         utils.SafeEnv("SILENCIE_COMMIT", "dev"),
		BuildTime:      utils.SafeEnv("SILENCIE_BUILD_TIME", ""),
	}
	if !supported(cfg.DefaultLocale) {
		cfg.DefaultLocale = utils.SupportedLocales[0]
	}
	return cfg
}

// UsesDevSecret reports whether tokens are signed with the built-in
// development secret.
func (c *Config) UsesDevSecret() bool { return c.JWTSecret == devSecret }

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func supported(locale string) bool {
	for _, l := range utils.SupportedLocales {
		if l == locale {
			return true
		}
	}
	return false
}

// NewLogger returns the JSON logger every command uses.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel}))
}
