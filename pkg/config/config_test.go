package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":8081" {
		t.Errorf("expected default listen addr :8081, got %s", cfg.ListenAddr)
	}
	if cfg.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Workers)
	}
	if cfg.RetryBase.Std() != 100*time.Millisecond {
		t.Errorf("expected 100ms retry base, got %s", cfg.RetryBase.Std())
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
listen_addr: ":9000"
workers: 8
max_retries: 5
retry_base: 250ms
rate_limit:
  rate: 100
  burst: 200
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("expected :9000, got %s", cfg.ListenAddr)
	}
	if cfg.Workers != 8 || cfg.MaxRetries != 5 {
		t.Errorf("expected workers=8 retries=5, got %d/%d", cfg.Workers, cfg.MaxRetries)
	}
	if cfg.RetryBase.Std() != 250*time.Millisecond {
		t.Errorf("expected 250ms retry base, got %s", cfg.RetryBase.Std())
	}
	if cfg.RateLimit.Rate != 100 || cfg.RateLimit.Burst != 200 {
		t.Errorf("expected rate 100 burst 200, got %+v", cfg.RateLimit)
	}
	// Unset fields keep their defaults.
	if cfg.RedisAddr != "127.0.0.1:6379" {
		t.Errorf("expected default redis addr, got %s", cfg.RedisAddr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TASKINDEX_LISTEN_ADDR", ":7777")
	t.Setenv("TASKINDEX_WORKERS", "2")
	t.Setenv("API_KEY", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":7777" {
		t.Errorf("expected env override :7777, got %s", cfg.ListenAddr)
	}
	if cfg.Workers != 2 {
		t.Errorf("expected env override workers=2, got %d", cfg.Workers)
	}
	if cfg.APIKey != "secret" {
		t.Errorf("expected env override api key, got %q", cfg.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("workers: 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for workers: 0")
	}
}
