package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 8080 || c.Storage.Backend != "clickhouse" || c.PhaseStore.Backend != "redis" {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if c.Classifier.SentimentWindow != time.Hour || c.Classifier.SentimentEnabled {
		t.Fatalf("unexpected classifier defaults %+v", c.Classifier)
	}
	if len(c.Scheduler.Tickers) != 2 || c.Tickers.Aliases["BTC"] != "BTC-USD" {
		t.Fatalf("unexpected ticker defaults %+v %+v", c.Scheduler, c.Tickers)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	p := writeFile(t, "config.yaml", `
environment: test
storage:
  backend: memory
phase_store:
  backend: memory
scheduler:
  enabled: false
classifier:
  sentiment_enabled: true
  sentiment_window: 30m
`)
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Environment != "test" || c.Storage.Backend != "memory" || c.Scheduler.Enabled {
		t.Fatalf("yaml not applied: %+v", c)
	}
	if !c.Classifier.SentimentEnabled || c.Classifier.SentimentWindow != 30*time.Minute {
		t.Fatalf("classifier not applied: %+v", c.Classifier)
	}
	if c.Server.Port != 8080 {
		t.Fatalf("defaults should survive partial yaml")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	p := writeFile(t, "config.yaml", "storage:\n  backend: postgres\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("TFT_ENABLE_SENTIMENT", "true")
	t.Setenv("TFT_SENTIMENT_WINDOW", "45m")
	t.Setenv("TFT_REDIS_HOST", "redis.internal")
	t.Setenv("TFT_INGEST_TICKERS", "aapl, msft")

	c, err := LoadWithEnv("", filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.Classifier.SentimentEnabled || c.Classifier.SentimentWindow != 45*time.Minute {
		t.Fatalf("sentiment overrides not applied: %+v", c.Classifier)
	}
	if c.Redis.Host != "redis.internal" {
		t.Fatalf("redis host not applied: %s", c.Redis.Host)
	}
	if len(c.Scheduler.Tickers) != 2 || c.Scheduler.Tickers[1] != "msft" {
		t.Fatalf("tickers not applied: %v", c.Scheduler.Tickers)
	}
}

func TestLoadWithEnvReadsDotEnv(t *testing.T) {
	env := writeFile(t, ".env", "TFT_STORAGE_BACKEND=memory\n")
	t.Cleanup(func() { os.Unsetenv("TFT_STORAGE_BACKEND") })

	c, err := LoadWithEnv("", env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Storage.Backend != "memory" {
		t.Fatalf("expected memory backend from .env, got %s", c.Storage.Backend)
	}
}

func TestLoadWithEnvRejectsBadBool(t *testing.T) {
	t.Setenv("TFT_KAFKA_ENABLED", "sometimes")
	if _, err := LoadWithEnv("", filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected error")
	}
}
