package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds application configuration loaded from environment variables.
// It is constructed once at process start and passed into component
// constructors; there is no ambient global.
type Config struct {
	PGURL string

	// Quality gate thresholds.
	QCMinScore   float64 // minimum composite score to accept a batch
	QCMaxNullPct float64 // advisory: max % of null required cells
	QCMaxDupPct  float64 // advisory: max % of duplicate rows

	ChunkSize    int // price upsert chunk size
	RefreshEvery int // trigger gold refresh after this many successful loads
	MaxWorkers   int // bulk dispatcher parallelism

	LogLevel string
	Port     string // read API only
}

// Load reads configuration from the environment, consulting a .env file
// first if one exists.
func Load() (*Config, error) {
	// Missing .env is fine; explicit env vars win either way.
	_ = godotenv.Load()

	pgURL := os.Getenv("PG_URL")
	if pgURL == "" {
		return nil, fmt.Errorf("PG_URL environment variable is required")
	}

	cfg := &Config{
		PGURL:        pgURL,
		QCMinScore:   75.0,
		QCMaxNullPct: 5.0,
		QCMaxDupPct:  1.0,
		ChunkSize:    10000,
		RefreshEvery: 100,
		MaxWorkers:   4,
		LogLevel:     "info",
		Port:         "8080",
	}

	var err error
	if cfg.QCMinScore, err = floatEnv("QC_MIN_SCORE", cfg.QCMinScore); err != nil {
		return nil, err
	}
	if cfg.QCMaxNullPct, err = floatEnv("QC_MAX_NULL_PCT", cfg.QCMaxNullPct); err != nil {
		return nil, err
	}
	if cfg.QCMaxDupPct, err = floatEnv("QC_MAX_DUPLICATE_PCT", cfg.QCMaxDupPct); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = intEnv("CHUNK_SIZE", cfg.ChunkSize); err != nil {
		return nil, err
	}
	if cfg.RefreshEvery, err = intEnv("REFRESH_EVERY", cfg.RefreshEvery); err != nil {
		return nil, err
	}
	if cfg.MaxWorkers, err = intEnv("MAX_WORKERS", cfg.MaxWorkers); err != nil {
		return nil, err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}

	if cfg.QCMinScore < 0 || cfg.QCMinScore > 100 {
		return nil, fmt.Errorf("QC_MIN_SCORE must be between 0 and 100, got %v", cfg.QCMinScore)
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("CHUNK_SIZE must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.RefreshEvery <= 0 {
		return nil, fmt.Errorf("REFRESH_EVERY must be positive, got %d", cfg.RefreshEvery)
	}
	if cfg.MaxWorkers <= 0 {
		return nil, fmt.Errorf("MAX_WORKERS must be positive, got %d", cfg.MaxWorkers)
	}

	return cfg, nil
}

// SetupLogging configures the process-wide log level. Unknown levels fall
// back to info with a warning rather than failing startup.
func SetupLogging(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
