package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Vector store backends.
const (
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort string
	DBPath  string

	VectorBackend    string
	QdrantURL        string
	QdrantCollection string

	EmbeddingProvider  string
	EmbeddingModelName string
	EmbeddingBaseURL   string
	EmbeddingAPIKey    string
	EmbeddingCacheDir  string
	EmbeddingCacheSize int
	EmbeddingMaxChars  int
	// EmbeddingDimension overrides the dimension derived from the model name. Zero means derive.
	EmbeddingDimension int
	EmbeddingAutoLoad  bool

	IngestTimeout       time.Duration
	MaxUploadBytes      int64
	ReplaceOnIngest     bool
	UploadRatePerMinute int

	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the rest.
// If a .env file exists in the current directory or up to five parent
// directories, it is loaded first. Environment variables already set take
// precedence over .env file values.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "9000"),
		DBPath:             getEnv("DB_PATH", "./data/studyrag.db"),
		VectorBackend:      strings.ToLower(getEnv("VECTOR_BACKEND", BackendSQLite)),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "chunks"),
		EmbeddingProvider:  strings.ToLower(getEnv("EMBEDDING_PROVIDER", "fastembed")),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "sentence-transformers/all-MiniLM-L6-v2"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", "dummy-key"),
		EmbeddingCacheDir:  getEnv("EMBEDDING_CACHE_DIR", "./data/models"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	var err error
	if cfg.EmbeddingCacheSize, err = getInt("EMBEDDING_CACHE_SIZE", 1024, 0); err != nil {
		return nil, err
	}
	if cfg.EmbeddingMaxChars, err = getInt("EMBEDDING_MAX_CHARS", 2000, 1); err != nil {
		return nil, err
	}
	if cfg.EmbeddingDimension, err = getInt("EMBEDDING_DIMENSION", 0, 0); err != nil {
		return nil, err
	}
	if cfg.UploadRatePerMinute, err = getInt("UPLOAD_RATE_PER_MINUTE", 30, 0); err != nil {
		return nil, err
	}
	maxUpload, err := getInt("MAX_UPLOAD_BYTES", 20<<20, 1)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	if cfg.IngestTimeout, err = getDuration("INGEST_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReplaceOnIngest, err = getBool("REPLACE_ON_INGEST", false); err != nil {
		return nil, err
	}
	if cfg.EmbeddingAutoLoad, err = getBool("EMBEDDING_AUTO_LOAD", false); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = parseLogLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Create the database directory if it doesn't exist
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.VectorBackend {
	case BackendSQLite, BackendQdrant:
	default:
		return fmt.Errorf("VECTOR_BACKEND must be %q or %q, got %q", BackendSQLite, BackendQdrant, c.VectorBackend)
	}

	switch c.EmbeddingProvider {
	case "fastembed", "http", "hashing":
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be fastembed, http or hashing, got %q", c.EmbeddingProvider)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}

	if port, err := strconv.Atoi(c.APIPort); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("API_PORT must be a port number, got %q", c.APIPort)
	}
	return nil
}

// loadDotEnv loads .env from the current directory, then the first .env found
// walking up at most five parent directories. Errors are ignored.
func loadDotEnv() {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ { // Limit search depth
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return // Reached filesystem root
		}
		dir = parent
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt parses an integer environment variable no smaller than minValue.
func getInt(key string, defaultValue, minValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if n < minValue {
		return 0, fmt.Errorf("%s must be at least %d, got %d", key, minValue, n)
	}
	return n, nil
}

// getDuration parses a positive Go duration environment variable.
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return d, nil
}

// getBool parses a boolean environment variable.
func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error: %w", err)
	}
	return level, nil
}
