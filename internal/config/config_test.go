package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envVars = []string{
	"API_PORT", "DB_PATH", "VECTOR_BACKEND", "QDRANT_URL", "QDRANT_COLLECTION",
	"EMBEDDING_PROVIDER", "EMBEDDING_MODEL_NAME", "EMBEDDING_BASE_URL", "EMBEDDING_API_KEY",
	"EMBEDDING_CACHE_DIR", "EMBEDDING_CACHE_SIZE", "EMBEDDING_MAX_CHARS", "EMBEDDING_DIMENSION",
	"EMBEDDING_AUTO_LOAD", "INGEST_TIMEOUT", "MAX_UPLOAD_BYTES", "REPLACE_ON_INGEST",
	"UPLOAD_RATE_PER_MINUTE", "LOG_LEVEL", "LOG_FORMAT",
}

// isolate clears every variable Load reads and moves into a directory
// without a .env file.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*testing.T, *Config)
	}{
		{
			name:     "defaults",
			setupEnv: func(t *testing.T) {},
			checkConfig: func(t *testing.T, cfg *Config) {
				if cfg.APIPort != "9000" || cfg.VectorBackend != BackendSQLite {
					t.Errorf("APIPort/VectorBackend = %q/%q, want 9000/sqlite", cfg.APIPort, cfg.VectorBackend)
				}
				if cfg.EmbeddingProvider != "fastembed" || cfg.EmbeddingModelName != "sentence-transformers/all-MiniLM-L6-v2" {
					t.Errorf("embedding = %q/%q, want fastembed/all-MiniLM-L6-v2", cfg.EmbeddingProvider, cfg.EmbeddingModelName)
				}
				if cfg.EmbeddingCacheSize != 1024 || cfg.EmbeddingMaxChars != 2000 {
					t.Errorf("cache/max chars = %d/%d, want 1024/2000", cfg.EmbeddingCacheSize, cfg.EmbeddingMaxChars)
				}
				if cfg.IngestTimeout != 2*time.Minute {
					t.Errorf("IngestTimeout = %v, want 2m", cfg.IngestTimeout)
				}
				if cfg.MaxUploadBytes != 20971520 {
					t.Errorf("MaxUploadBytes = %d, want 20971520", cfg.MaxUploadBytes)
				}
				if cfg.ReplaceOnIngest {
					t.Error("ReplaceOnIngest = true, want false")
				}
				if cfg.LogLevel != slog.LevelInfo || cfg.LogFormat != "text" {
					t.Errorf("log = %v/%q, want INFO/text", cfg.LogLevel, cfg.LogFormat)
				}
				if cfg.QdrantCollection != "chunks" {
					t.Errorf("QdrantCollection = %q, want chunks", cfg.QdrantCollection)
				}
			},
		},
		{
			name: "overrides",
			setupEnv: func(t *testing.T) {
				t.Setenv("VECTOR_BACKEND", "QDRANT")
				t.Setenv("EMBEDDING_PROVIDER", "http")
				t.Setenv("EMBEDDING_DIMENSION", "768")
				t.Setenv("INGEST_TIMEOUT", "45s")
				t.Setenv("REPLACE_ON_INGEST", "true")
				t.Setenv("LOG_LEVEL", "debug")
				t.Setenv("LOG_FORMAT", "json")
				t.Setenv("UPLOAD_RATE_PER_MINUTE", "0")
			},
			checkConfig: func(t *testing.T, cfg *Config) {
				if cfg.VectorBackend != BackendQdrant || cfg.EmbeddingProvider != "http" {
					t.Errorf("backend/provider = %q/%q, want qdrant/http", cfg.VectorBackend, cfg.EmbeddingProvider)
				}
				if cfg.EmbeddingDimension != 768 || cfg.IngestTimeout != 45*time.Second {
					t.Errorf("dimension/timeout = %d/%v, want 768/45s", cfg.EmbeddingDimension, cfg.IngestTimeout)
				}
				if !cfg.ReplaceOnIngest || cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "json" {
					t.Errorf("replace/level/format = %v/%v/%q", cfg.ReplaceOnIngest, cfg.LogLevel, cfg.LogFormat)
				}
				if cfg.UploadRatePerMinute != 0 {
					t.Errorf("UploadRatePerMinute = %d, want 0", cfg.UploadRatePerMinute)
				}
			},
		},
		{name: "unknown backend", setupEnv: func(t *testing.T) { t.Setenv("VECTOR_BACKEND", "chroma") }, wantErr: true},
		{name: "unknown provider", setupEnv: func(t *testing.T) { t.Setenv("EMBEDDING_PROVIDER", "openai") }, wantErr: true},
		{name: "invalid cache size", setupEnv: func(t *testing.T) { t.Setenv("EMBEDDING_CACHE_SIZE", "lots") }, wantErr: true},
		{name: "negative cache size", setupEnv: func(t *testing.T) { t.Setenv("EMBEDDING_CACHE_SIZE", "-1") }, wantErr: true},
		{name: "zero max chars", setupEnv: func(t *testing.T) { t.Setenv("EMBEDDING_MAX_CHARS", "0") }, wantErr: true},
		{name: "invalid timeout", setupEnv: func(t *testing.T) { t.Setenv("INGEST_TIMEOUT", "120") }, wantErr: true},
		{name: "non-positive timeout", setupEnv: func(t *testing.T) { t.Setenv("INGEST_TIMEOUT", "0s") }, wantErr: true},
		{name: "invalid upload limit", setupEnv: func(t *testing.T) { t.Setenv("MAX_UPLOAD_BYTES", "0") }, wantErr: true},
		{name: "invalid bool", setupEnv: func(t *testing.T) { t.Setenv("REPLACE_ON_INGEST", "sometimes") }, wantErr: true},
		{name: "invalid log level", setupEnv: func(t *testing.T) { t.Setenv("LOG_LEVEL", "verbose") }, wantErr: true},
		{name: "invalid log format", setupEnv: func(t *testing.T) { t.Setenv("LOG_FORMAT", "xml") }, wantErr: true},
		{name: "invalid port", setupEnv: func(t *testing.T) { t.Setenv("API_PORT", "http") }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			tt.setupEnv(t)

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			tt.checkConfig(t, cfg)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	content := "API_PORT=9100\nQDRANT_COLLECTION=from_file\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("API_PORT", "9200")
	// godotenv does not override variables that are already set, so clear
	// the one the file should provide.
	os.Unsetenv("QDRANT_COLLECTION")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "9200" {
		t.Errorf("APIPort = %q, want environment value 9200", cfg.APIPort)
	}
	if cfg.QdrantCollection != "from_file" {
		t.Errorf("QdrantCollection = %q, want from_file", cfg.QdrantCollection)
	}
}

func TestLoad_CreatesDataDirectory(t *testing.T) {
	isolate(t)
	dbPath := filepath.Join(t.TempDir(), "test", "db.db")
	t.Setenv("DB_PATH", dbPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Errorf("Load() should create data directory: %v", err)
	}
	if cfg.DBPath != dbPath {
		t.Errorf("Load() DBPath = %v, want %v", cfg.DBPath, dbPath)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue string
		want         string
	}{
		{name: "env var set", value: "set-value", defaultValue: "default", want: "set-value"},
		{name: "empty env var uses default", value: "", defaultValue: "default", want: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_VAR", tt.value)
			got := getEnv("TEST_ENV_VAR", tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", "TEST_ENV_VAR", tt.defaultValue, got, tt.want)
			}
		})
	}
}
