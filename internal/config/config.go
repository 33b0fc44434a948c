package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBSource   string
	Port       string
	Env        string
	JWTSecret  string
	SessionTTL time.Duration

	// Gateway settings for the payment/telco clients.
	PaystackSecret string
	VTUAPIKey      string
	WebhookBaseURL string

	// EventsURL, when set, receives fire-and-forget operational event
	// notifications (settlements, reconciliation mismatches).
	EventsURL string
}

// Load reads .env when present (absent in production is fine) and then
// the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on environment")
	}

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	ttl := 24 * time.Hour
	if raw := os.Getenv("SESSION_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TTL %q: %w", raw, err)
		}
		ttl = parsed
	}

	return &Config{
		DBSource:       dbSource,
		Port:           getEnv("SERVER_PORT", "8080"),
		Env:            getEnv("ENVIRONMENT", "development"),
		JWTSecret:      secret,
		SessionTTL:     ttl,
		PaystackSecret: os.Getenv("PAYSTACK_SECRET_KEY"),
		VTUAPIKey:      os.Getenv("VTU_API_KEY"),
		WebhookBaseURL: os.Getenv("WEBHOOK_BASE_URL"),
		EventsURL:      os.Getenv("EVENTS_URL"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
