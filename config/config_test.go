package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MAILPILOT_CONFIG_DIR", dir)
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("MAILPILOT_LLM_API_KEY", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Poll.Interval != time.Minute || cfg.Poll.BatchSize != 3 || cfg.Poll.Query != "is:unread" {
		t.Fatalf("unexpected poll defaults: %+v", cfg.Poll)
	}
	if cfg.Poll.Lookback != 24*time.Hour {
		t.Fatalf("lookback = %s", cfg.Poll.Lookback)
	}
	if cfg.FiltersFile != filepath.Join(dir, "filters.json") {
		t.Fatalf("filters file not resolved against config dir: %s", cfg.FiltersFile)
	}
	if cfg.LLM.APIKey != "" || cfg.LLM.APIKeySource != "" {
		t.Fatalf("unexpected api key %q from %q", cfg.LLM.APIKey, cfg.LLM.APIKeySource)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadConfigWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MAILPILOT_CONFIG_DIR", dir)
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("MAILPILOT_LLM_API_KEY", "")

	cfg := DefaultConfig()
	cfg.Poll.Interval = 2 * time.Minute
	cfg.LLM.Model = "file-model"
	cfg.LLM.APIKey = "from-file"

	if _, err := Save("", cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	t.Setenv("MAILPILOT_LLM_MODEL", "env-model")

	loaded, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if loaded.LLM.Model != "env-model" {
		t.Fatalf("expected env override, got %q", loaded.LLM.Model)
	}
	if loaded.Poll.Interval != 2*time.Minute {
		t.Fatalf("expected interval from file, got %s", loaded.Poll.Interval)
	}
	if loaded.LLM.APIKey != "from-file" || loaded.LLM.APIKeySource != "config" {
		t.Fatalf("api key %q from %q", loaded.LLM.APIKey, loaded.LLM.APIKeySource)
	}
}

func TestLoadAPIKeyFromGroqEnv(t *testing.T) {
	t.Setenv("MAILPILOT_CONFIG_DIR", t.TempDir())
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("MAILPILOT_LLM_API_KEY", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "gsk-test" || cfg.LLM.APIKeySource != "env" {
		t.Fatalf("api key %q from %q", cfg.LLM.APIKey, cfg.LLM.APIKeySource)
	}
}

func TestLoadExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	body := "poll:\n  interval: 15s\n  batch_size: 10\ngmail:\n  token_store: file\n  token_file: /abs/token.json\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Poll.Interval != 15*time.Second || cfg.Poll.BatchSize != 10 {
		t.Fatalf("poll = %+v", cfg.Poll)
	}
	if cfg.Gmail.TokenFile != "/abs/token.json" {
		t.Fatalf("absolute path rewritten: %s", cfg.Gmail.TokenFile)
	}
	if cfg.Gmail.CredentialsFile != filepath.Join(dir, "credentials.json") {
		t.Fatalf("credentials file = %s", cfg.Gmail.CredentialsFile)
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("poll: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero interval", func(c *Config) { c.Poll.Interval = 0 }, "poll.interval"},
		{"zero batch", func(c *Config) { c.Poll.BatchSize = 0 }, "poll.batch_size"},
		{"negative lookback", func(c *Config) { c.Poll.Lookback = -time.Hour }, "poll.lookback"},
		{"blank query", func(c *Config) { c.Poll.Query = " " }, "poll.query"},
		{"token store", func(c *Config) { c.Gmail.TokenStore = "vault" }, "gmail.token_store"},
		{"file store without path", func(c *Config) { c.Gmail.TokenStore = TokenStoreFile; c.Gmail.TokenFile = "" }, "gmail.token_file"},
		{"log level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"model", func(c *Config) { c.LLM.Model = "" }, "llm.model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error mentioning %s", err, tt.want)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "secret"
	if got := Redact(cfg).LLM.APIKey; got != "****" {
		t.Fatalf("redacted key = %q", got)
	}
	if cfg.LLM.APIKey != "secret" {
		t.Fatal("Redact modified its input")
	}
}
