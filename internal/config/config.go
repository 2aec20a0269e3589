package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath            string
	ServerPort        string
	LogLevel          string
	IngestWorkers     int
	ReconcileSchedule string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	workers, err := strconv.Atoi(getEnv("INGEST_WORKERS", "8"))
	if err != nil || workers < 1 {
		return nil, fmt.Errorf("INGEST_WORKERS must be a positive integer")
	}

	cfg := &Config{
		DBPath:            getEnv("DB_PATH", "tournament.db"),
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		IngestWorkers:     workers,
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@every 5m"),
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Int("ingest_workers", cfg.IngestWorkers).
		Str("reconcile_schedule", cfg.ReconcileSchedule).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
