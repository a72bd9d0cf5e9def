package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// --- Helpers ---

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// clearEnv blanks every variable the loader binds so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envBindings {
		t.Setenv(name, "")
	}
}

// --- Load tests ---

func TestLoad_Defaults_WhenNoFiles(t *testing.T) {
	clearEnv(t)
	cm := NewConfigurationManager(t.TempDir())

	cfg, err := cm.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := DefaultConfig()
	if *cfg != *want {
		t.Errorf("Load() = %+v, want %+v", *cfg, *want)
	}
	if cfg.Generation.Enabled() {
		t.Error("generation should be disabled without an API key")
	}
}

func TestLoad_ReadsFactoryconfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".factoryconfig.yaml", `
vault:
  root: /srv/vault
  board: Board.md
watcher:
  debounce: 250ms
  rescan_interval: 1m
agent:
  interval: 10s
  max_read_attempts: 5
generation:
  model: llama-3.1-8b-instant
  max_tokens: 512
  temperature: 0.2
  timeout: 30s
alerts:
  pending_hours: 48
  max_pending: 3
log:
  level: DEBUG
`)

	cfg, err := NewConfigurationManager(dir).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Vault.Root != "/srv/vault" {
		t.Errorf("Vault.Root = %q, want %q", cfg.Vault.Root, "/srv/vault")
	}
	if cfg.Vault.Board != "Board.md" {
		t.Errorf("Vault.Board = %q, want %q", cfg.Vault.Board, "Board.md")
	}
	if cfg.Watcher.Debounce != 250*time.Millisecond {
		t.Errorf("Watcher.Debounce = %s, want 250ms", cfg.Watcher.Debounce)
	}
	if cfg.Watcher.RescanInterval != time.Minute {
		t.Errorf("Watcher.RescanInterval = %s, want 1m", cfg.Watcher.RescanInterval)
	}
	if cfg.Agent.Interval != 10*time.Second {
		t.Errorf("Agent.Interval = %s, want 10s", cfg.Agent.Interval)
	}
	if cfg.Agent.MaxReadAttempts != 5 {
		t.Errorf("Agent.MaxReadAttempts = %d, want 5", cfg.Agent.MaxReadAttempts)
	}
	if cfg.Generation.Model != "llama-3.1-8b-instant" {
		t.Errorf("Generation.Model = %q", cfg.Generation.Model)
	}
	if cfg.Generation.MaxTokens != 512 {
		t.Errorf("Generation.MaxTokens = %d, want 512", cfg.Generation.MaxTokens)
	}
	if cfg.Generation.Temperature != 0.2 {
		t.Errorf("Generation.Temperature = %g, want 0.2", cfg.Generation.Temperature)
	}
	if cfg.Generation.Timeout != 30*time.Second {
		t.Errorf("Generation.Timeout = %s, want 30s", cfg.Generation.Timeout)
	}
	if cfg.Generation.BaseURL != DefaultConfig().Generation.BaseURL {
		t.Errorf("Generation.BaseURL = %q, want default", cfg.Generation.BaseURL)
	}
	if cfg.Alerts.PendingHours != 48 || cfg.Alerts.MaxPending != 3 {
		t.Errorf("Alerts = %+v", cfg.Alerts)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
}

func TestLoad_MalformedFactoryconfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".factoryconfig.yaml", "vault: [unterminated\n")

	if _, err := NewConfigurationManager(dir).Load(); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".factoryconfig.yaml", `
generation:
  model: from-file
  max_tokens: 100
`)
	t.Setenv("GROQ_API_KEY", "gsk_env")
	t.Setenv("GROQ_MODEL", "from-env")
	t.Setenv("MAX_TOKENS", "4096")
	t.Setenv("TEMPERATURE", "1.1")

	cfg, err := NewConfigurationManager(dir).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Generation.APIKey != "gsk_env" {
		t.Errorf("APIKey = %q, want %q", cfg.Generation.APIKey, "gsk_env")
	}
	if cfg.Generation.Model != "from-env" {
		t.Errorf("Model = %q, want %q", cfg.Generation.Model, "from-env")
	}
	if cfg.Generation.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", cfg.Generation.MaxTokens)
	}
	if cfg.Generation.Temperature != 1.1 {
		t.Errorf("Temperature = %g, want 1.1", cfg.Generation.Temperature)
	}
	if !cfg.Generation.Enabled() {
		t.Error("generation should be enabled with an API key")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".env", "GROQ_API_KEY=gsk_dotenv\nGROQ_MODEL=dotenv-model\n")
	writeFile(t, dir, ".factoryconfig.yaml", "generation:\n  model: file-model\n")

	cfg, err := NewConfigurationManager(dir).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Generation.APIKey != "gsk_dotenv" {
		t.Errorf("APIKey = %q, want %q", cfg.Generation.APIKey, "gsk_dotenv")
	}
	if cfg.Generation.Model != "dotenv-model" {
		t.Errorf("Model = %q, want %q", cfg.Generation.Model, "dotenv-model")
	}
}

func TestLoad_EnvironmentBeatsDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".env", "GROQ_API_KEY=gsk_dotenv\n")
	t.Setenv("GROQ_API_KEY", "gsk_process")

	cfg, err := NewConfigurationManager(dir).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Generation.APIKey != "gsk_process" {
		t.Errorf("APIKey = %q, want %q", cfg.Generation.APIKey, "gsk_process")
	}
}

// --- ValidateConfig tests ---

func TestValidateConfig_Defaults(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	if err := cm.ValidateConfig(DefaultConfig()); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	if err := cm.ValidateConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestValidateConfig_CollectsAllErrors(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	cfg := DefaultConfig()
	cfg.Vault.Board = "sub/Board.md"
	cfg.Agent.Interval = 0
	cfg.Generation.Temperature = 3
	cfg.Log.Level = "verbose"

	err := cm.ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("error should wrap ErrConfiguration: %v", err)
	}
	for _, want := range []string{"vault.board", "agent.interval", "generation.temperature", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

// Feature: configuration, Property 1: Temperatures in [0, 2] validate, all others fail.
func TestProperty_TemperatureRange(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	rapid.Check(t, func(rt *rapid.T) {
		temp := rapid.Float64Range(-5, 5).Draw(rt, "temperature")
		cfg := DefaultConfig()
		cfg.Generation.Temperature = temp

		err := cm.ValidateConfig(cfg)
		inRange := temp >= 0 && temp <= 2
		if inRange && err != nil {
			rt.Fatalf("temperature %g should validate: %v", temp, err)
		}
		if !inRange && err == nil {
			rt.Fatalf("temperature %g should be rejected", temp)
		}
	})
}

// Feature: configuration, Property 2: Values written to .factoryconfig are read back unchanged.
func TestProperty_FactoryconfigRoundTrip(t *testing.T) {
	clearEnv(t)
	rapid.Check(t, func(rt *rapid.T) {
		dir, err := os.MkdirTemp("", "factoryconfig-*")
		if err != nil {
			rt.Fatalf("mkdir temp: %v", err)
		}
		defer os.RemoveAll(dir)

		root := rapid.StringMatching(`[a-z]{1,12}`).Draw(rt, "root")
		model := rapid.StringMatching(`[a-z][a-z0-9-]{0,20}`).Draw(rt, "model")
		maxTokens := rapid.IntRange(1, 100000).Draw(rt, "maxTokens")
		attempts := rapid.IntRange(0, 20).Draw(rt, "attempts")

		content := fmt.Sprintf("vault:\n  root: %q\nagent:\n  max_read_attempts: %d\ngeneration:\n  model: %q\n  max_tokens: %d\n",
			root, attempts, model, maxTokens)
		if err := os.WriteFile(filepath.Join(dir, ".factoryconfig.yaml"), []byte(content), 0644); err != nil {
			rt.Fatalf("write: %v", err)
		}

		cfg, err := NewConfigurationManager(dir).Load()
		if err != nil {
			rt.Fatalf("Load: %v", err)
		}
		if cfg.Vault.Root != root || cfg.Generation.Model != model ||
			cfg.Generation.MaxTokens != maxTokens || cfg.Agent.MaxReadAttempts != attempts {
			rt.Fatalf("round trip mismatch: got %+v", *cfg)
		}
	})
}
