package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// Content generation service.
	ContentGenAPIKey  string
	ContentGenBaseURL string
	ContentGenModel   string

	// Image generation service.
	ImageGenAPIKey  string
	ImageGenBaseURL string
	ImageGenModel   string

	// Object storage. When SupabaseURL is empty the service falls back to a
	// local filesystem store rooted at StoragePath.
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string
	StoragePath        string
	StorageBaseURL     string

	// Pipeline knobs.
	ChunkSize              int
	ChunkParallelism       int
	ImageGenConcurrency    int
	ImageUploadConcurrency int
	ProgressRetention      time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	DBMaxConns       int

	// HTTP surface knobs.
	AllowedOrigins  []string
	BatchRateLimit  int
	BatchRateWindow time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		ContentGenAPIKey:  os.Getenv("CONTENTGEN_API_KEY"),
		ContentGenBaseURL: getEnv("CONTENTGEN_BASE_URL", "https://api.contentgen.example.com/v1"),
		ContentGenModel:   getEnv("CONTENTGEN_MODEL", "chef-large"),

		ImageGenAPIKey:  os.Getenv("IMAGEGEN_API_KEY"),
		ImageGenBaseURL: getEnv("IMAGEGEN_BASE_URL", "https://api.imagegen.example.com/v1"),
		ImageGenModel:   getEnv("IMAGEGEN_MODEL", "plate-v2"),

		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		SupabaseBucket:     getEnv("SUPABASE_BUCKET", "recipe-images"),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:     getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),

		ChunkSize:              getEnvInt("BATCH_CHUNK_SIZE", 5),
		ChunkParallelism:       getEnvInt("BATCH_CHUNK_PARALLELISM", 3),
		ImageGenConcurrency:    getEnvInt("IMAGE_GEN_CONCURRENCY", 3),
		ImageUploadConcurrency: getEnvInt("IMAGE_UPLOAD_CONCURRENCY", 5),
		ProgressRetention:      time.Minute * time.Duration(getEnvInt("PROGRESS_RETENTION_MINUTES", 30)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		DBMaxConns:       getEnvInt("DB_MAX_CONNS", 10),

		AllowedOrigins:  splitEnvList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		BatchRateLimit:  getEnvInt("BATCH_RATE_LIMIT", 10),
		BatchRateWindow: time.Second * time.Duration(getEnvInt("BATCH_RATE_WINDOW_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_SERVICE_KEY is required when SUPABASE_URL is set")
	}
	if cfg.ChunkSize < 1 {
		return nil, fmt.Errorf("BATCH_CHUNK_SIZE must be at least 1")
	}

	return cfg, nil
}

func splitEnvList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
