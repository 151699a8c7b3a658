// Package config reads the order service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/gamestore-orders/internal/pkg/locator"
)

// Collaborators lists the logical services the order service calls.
var Collaborators = []string{"catalog", "identity", "licensing", "library", "reviews"}

type Config struct {
	Port     string
	GRPCPort string
	LogLevel string

	// DatabaseURL selects the order store: postgres:// or postgresql:// uses
	// pgx, anything else is a SQLite file path.
	DatabaseURL string
	SagaLogPath string

	// RedisAddr empty disables idempotent create.
	RedisAddr      string
	IdempotencyTTL time.Duration

	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
	TaxRate         decimal.Decimal

	PricingConcurrency int
	SummaryConcurrency int

	ServiceName  string
	OTelEndpoint string
	OTelEnabled  bool

	Services []locator.Service
}

// UsesPostgres reports whether DatabaseURL points at a postgres server.
func (c Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// Load reads the environment. Unset variables take their defaults; malformed
// ones are reported together.
func Load() (Config, error) {
	var errs []error

	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		GRPCPort:     getEnv("GRPC_PORT", "9090"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DatabaseURL:  getEnv("DATABASE_URL", "./data/orders.db"),
		SagaLogPath:  getEnv("SAGA_LOG_PATH", "./data/saga.db"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "order-service"),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	cfg.IdempotencyTTL = getDuration("IDEMPOTENCY_TTL", 24*time.Hour, &errs)
	cfg.ConnectTimeout = getDuration("CONNECT_TIMEOUT", 10*time.Second, &errs)
	cfg.ResponseTimeout = getDuration("RESPONSE_TIMEOUT", 30*time.Second, &errs)
	cfg.PricingConcurrency = getInt("PRICING_CONCURRENCY", 4, &errs)
	cfg.SummaryConcurrency = getInt("SUMMARY_CONCURRENCY", 8, &errs)
	cfg.OTelEnabled = getBool("OTEL_ENABLED", false, &errs)

	rate, err := decimal.NewFromString(getEnv("TAX_RATE", "0.12"))
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("TAX_RATE: %w", err))
	case rate.IsNegative():
		errs = append(errs, errors.New("TAX_RATE: must not be negative"))
	default:
		cfg.TaxRate = rate
	}

	for _, name := range Collaborators {
		prefix := strings.ToUpper(name)
		cfg.Services = append(cfg.Services, locator.Service{
			Name: name,
			Candidates: []string{
				os.Getenv(prefix + "_REGISTRY_URL"),
				os.Getenv(prefix + "_DIRECT_URL"),
			},
		})
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: want a positive duration, got %q", key, raw))
		return fallback
	}
	return d
}

func getInt(key string, fallback int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		*errs = append(*errs, fmt.Errorf("%s: want a positive integer, got %q", key, raw))
		return fallback
	}
	return n
}

func getBool(key string, fallback bool, errs *[]error) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}
