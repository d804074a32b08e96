package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the server process configuration, read from the environment.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":18080"`

	LedgerMode        string `env:"LEDGER_MODE" envDefault:"auto"`
	LedgerSQLitePath  string `env:"LEDGER_SQLITE_PATH" envDefault:"./data/darts.db"`
	LedgerDatabaseURL string `env:"LEDGER_DATABASE_URL"`
	LedgerQueueSize   int    `env:"LEDGER_QUEUE_SIZE" envDefault:"1024"`

	NATSURL           string `env:"NATS_URL"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"darts"`

	// Some boards report the scored value (60 for T20) instead of the face.
	DartboardSendsActualScore bool `env:"DARTBOARD_SENDS_ACTUAL_SCORE" envDefault:"false"`

	SessionIdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"6h"`

	LogDev          bool   `env:"LOG_DEV" envDefault:"false"`
	OTelEnabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"darts-lite"`
}

// Load parses the environment into a Config and resolves the ledger mode.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	mode, err := resolveLedgerMode(cfg.LedgerMode, cfg.LedgerDatabaseURL)
	if err != nil {
		return Config{}, err
	}
	cfg.LedgerMode = mode
	if cfg.LedgerQueueSize <= 0 {
		return Config{}, fmt.Errorf("LEDGER_QUEUE_SIZE must be positive, got %d", cfg.LedgerQueueSize)
	}
	return cfg, nil
}

// auto picks postgres when a database url is configured and sqlite otherwise.
func resolveLedgerMode(mode, dsn string) (string, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case "", "auto":
		if strings.TrimSpace(dsn) != "" {
			return "postgres", nil
		}
		return "sqlite", nil
	case "noop", "memory":
		return "noop", nil
	case "sqlite", "local":
		return "sqlite", nil
	case "postgres":
		if strings.TrimSpace(dsn) == "" {
			return "", fmt.Errorf("LEDGER_MODE=postgres requires LEDGER_DATABASE_URL")
		}
		return "postgres", nil
	default:
		return "", fmt.Errorf("unknown LEDGER_MODE %q", mode)
	}
}
