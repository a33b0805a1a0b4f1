package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by WELLSPRING_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("WELLSPRING_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// DatabaseURL is optional. Without it assessment history is kept in memory.
func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// ModelPath points at a YAML or JSON network definition.
// Empty means the embedded borehole network.
func ModelPath() string {
	return os.Getenv("MODEL_PATH")
}

// ModelReloadInterval is how often MODEL_PATH is checked for changes.
// Defaults to 30s; 0 disables polling.
func ModelReloadInterval() time.Duration {
	v := os.Getenv("MODEL_RELOAD_INTERVAL")
	if v == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 30 * time.Second
	}
	return d
}

// EliminationHeuristic returns the variable elimination ordering heuristic.
// Valid values: min-neighbors, min-weight, min-fill
func EliminationHeuristic() string {
	h := os.Getenv("ELIMINATION_HEURISTIC")
	if h == "" {
		return "min-neighbors"
	}
	return h
}

// HistoryRetentionDays returns how long assessments are kept.
// Defaults to 90; 0 keeps everything.
func HistoryRetentionDays() int {
	v := os.Getenv("HISTORY_RETENTION_DAYS")
	if v == "" {
		return 90
	}
	days, err := strconv.Atoi(v)
	if err != nil || days < 0 {
		return 90
	}
	return days
}

// HistoryLimit caps the number of assessments returned by a listing or export.
func HistoryLimit() int {
	limit, err := strconv.Atoi(os.Getenv("HISTORY_LIMIT"))
	if err != nil || limit <= 0 {
		return 500
	}
	return limit
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// APIKey enables bearer authentication on /v1 when set.
func APIKey() string {
	return os.Getenv("API_KEY")
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
