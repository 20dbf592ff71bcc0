package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"reelcraft/pkg/utils"
)

// Config is the process configuration, loaded once at startup and provided through fx.
type Config struct {
	Port        string
	PostgresURL string
	AutoMigrate bool

	JWTSecret           string
	StripeWebhookSecret string

	LogLevel  string
	LogFormat string

	LedgerMaxRetries  int
	IdempotencyTTL    time.Duration
	AnalyticsTimezone string
}

func Load() (Config, error) {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		Port:        getEnvWithDefault("PORT", "8080"),
		PostgresURL: os.Getenv("POSTGRES_URL"),
		AutoMigrate: envBool("AUTO_MIGRATE", true),

		JWTSecret:           os.Getenv("JWT_SECRET"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "json"),

		LedgerMaxRetries:  envInt("LEDGER_MAX_RETRIES", 3),
		IdempotencyTTL:    envDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		AnalyticsTimezone: getEnvWithDefault("ANALYTICS_TIMEZONE", "UTC"),
	}

	// Both verifiers are HMAC based; an empty key accepts forged signatures.
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, fmt.Errorf("%w: JWT_SECRET", utils.ErrMissingSecret)
	}
	if strings.TrimSpace(cfg.StripeWebhookSecret) == "" {
		return Config{}, fmt.Errorf("%w: STRIPE_WEBHOOK_SECRET", utils.ErrMissingSecret)
	}
	return cfg, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
