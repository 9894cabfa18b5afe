package infra

import (
	"testing"
	"time"
)

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig without DATABASE_URL returned nil error")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.ChunkSize != 5 {
		t.Fatalf("ChunkSize = %d, want 5", cfg.ChunkSize)
	}
	if cfg.ChunkParallelism != 3 {
		t.Fatalf("ChunkParallelism = %d, want 3", cfg.ChunkParallelism)
	}
	if cfg.ProgressRetention != 30*time.Minute {
		t.Fatalf("ProgressRetention = %v, want 30m", cfg.ProgressRetention)
	}
	// Streaming endpoints need an unbounded write window.
	if cfg.HTTPWriteTimeout != 0 {
		t.Fatalf("HTTPWriteTimeout = %v, want 0", cfg.HTTPWriteTimeout)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("AllowedOrigins = %#v, want wildcard default", cfg.AllowedOrigins)
	}
}

func TestLoadConfigSupabaseNeedsServiceKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig with SUPABASE_URL but no key returned nil error")
	}
}

func TestLoadConfigRejectsBadChunkSize(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("BATCH_CHUNK_SIZE", "0")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig with zero chunk size returned nil error")
	}
}

func TestLoadConfigParsesOriginList(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %#v, want %#v", cfg.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Fatalf("AllowedOrigins[%d] = %q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}
}
