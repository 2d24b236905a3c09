package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kpieval.yaml")
	content := []byte("addr: \":9090\"\ndatabaseUrl: postgres://file\nrateLimitPerMinute: 30\ntokenTtl: 1h\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("KPIEVAL_CONFIG", path)
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("APP_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("expected addr from file, got %q", cfg.Addr)
	}
	if cfg.DatabaseURL != "postgres://env" {
		t.Fatalf("expected env to override file, got %q", cfg.DatabaseURL)
	}
	if cfg.RateLimitPerMinute != 30 {
		t.Fatalf("expected rate limit 30, got %d", cfg.RateLimitPerMinute)
	}
	if cfg.TokenTTL != time.Hour {
		t.Fatalf("expected token ttl 1h, got %v", cfg.TokenTTL)
	}
	if !cfg.RunMigrations {
		t.Fatal("expected default RunMigrations to survive the file overlay")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("KPIEVAL_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}

	cfg.DatabaseURL = "postgres://localhost/kpi"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Environment = "production"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for production without JWT secret")
	}

	cfg.JWTSecret = "s3cret"
	cfg.RunSeed = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.MaxBodyBytes = 10
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for tiny body limit")
	}
}
