package config

import (
	"testing"
	"time"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "secret")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is empty")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/rivo")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLMModel != "gpt-4o-mini" {
		t.Fatalf("expected default model gpt-4o-mini, got %q", cfg.LLMModel)
	}
	if cfg.LLMTimeout != 30*time.Second {
		t.Fatalf("expected 30s LLM timeout, got %s", cfg.LLMTimeout)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected CORS origins: %v", cfg.CORSOrigins)
	}
	if cfg.IsSummarizerEnabled() {
		t.Fatal("summarizer should be disabled without an API key")
	}
}

func TestWildcardOriginConflictsWithCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/rivo")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")

	if _, err := Load(); err == nil {
		t.Fatal("expected wildcard CORS with credentials to be rejected")
	}
}

func TestLoadDatabaseIgnoresServerSettings(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/rivo")
	t.Setenv("JWT_ACCESS_SECRET", "")

	cfg, err := LoadDatabase()
	if err != nil {
		t.Fatalf("LoadDatabase returned error: %v", err)
	}
	if cfg.GetDatabaseURL() != "postgres://localhost/rivo" {
		t.Fatalf("unexpected database url %q", cfg.GetDatabaseURL())
	}
}
