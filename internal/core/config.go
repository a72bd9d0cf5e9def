// Package core contains the pipeline engine for Agent Factory: the intake
// watcher, the triage agent, classification and configuration.
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// ConfigFileName is the YAML settings file looked up in the base path.
const ConfigFileName = ".factoryconfig"

// envBindings maps configuration keys to the environment variables that
// override them. The same names are honoured in a .env file.
var envBindings = map[string]string{
	"vault.root":             "FACTORY_VAULT",
	"generation.api_key":     "GROQ_API_KEY",
	"generation.base_url":    "GROQ_BASE_URL",
	"generation.model":       "GROQ_MODEL",
	"generation.max_tokens":  "MAX_TOKENS",
	"generation.temperature": "TEMPERATURE",
	"alerts.slack_webhook":   "SLACK_WEBHOOK_URL",
	"log.level":              "FACTORY_LOG_LEVEL",
}

// ConfigurationManager loads and validates settings from .factoryconfig,
// an optional .env file and the environment.
type ConfigurationManager interface {
	Load() (*models.Config, error)
	ValidateConfig(cfg *models.Config) error
}

// viperConfigManager implements ConfigurationManager using Viper.
type viperConfigManager struct {
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads files
// relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *models.Config {
	return &models.Config{
		Vault: models.VaultConfig{
			Root:  "Vault",
			Board: "Dashboard.md",
		},
		Watcher: models.WatcherConfig{
			Debounce:       100 * time.Millisecond,
			RescanInterval: 30 * time.Second,
		},
		Agent: models.AgentConfig{
			Interval:        DefaultAgentInterval,
			MaxReadAttempts: 3,
		},
		Generation: models.GenerationConfig{
			BaseURL:     "https://api.groq.com/openai/v1/",
			Model:       "llama-3.3-70b-versatile",
			MaxTokens:   2048,
			Temperature: 0.7,
			Timeout:     60 * time.Second,
		},
		Alerts: models.AlertsConfig{
			PendingHours: 24,
			MaxPending:   10,
		},
		Log: models.LogConfig{Level: "info"},
	}
}

// Load reads the configuration. Precedence: environment > .env >
// .factoryconfig > defaults. Missing files are not an error.
func (cm *viperConfigManager) Load() (*models.Config, error) {
	def := DefaultConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	v.SetDefault("vault.root", def.Vault.Root)
	v.SetDefault("vault.board", def.Vault.Board)
	v.SetDefault("watcher.debounce", def.Watcher.Debounce)
	v.SetDefault("watcher.rescan_interval", def.Watcher.RescanInterval)
	v.SetDefault("agent.interval", def.Agent.Interval)
	v.SetDefault("agent.max_read_attempts", def.Agent.MaxReadAttempts)
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.base_url", def.Generation.BaseURL)
	v.SetDefault("generation.model", def.Generation.Model)
	v.SetDefault("generation.max_tokens", def.Generation.MaxTokens)
	v.SetDefault("generation.temperature", def.Generation.Temperature)
	v.SetDefault("generation.timeout", def.Generation.Timeout)
	v.SetDefault("alerts.pending_hours", def.Alerts.PendingHours)
	v.SetDefault("alerts.max_pending", def.Alerts.MaxPending)
	v.SetDefault("alerts.slack_webhook", "")
	v.SetDefault("log.level", def.Log.Level)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	if err := cm.applyDotEnv(v); err != nil {
		return nil, err
	}

	return &models.Config{
		Vault: models.VaultConfig{
			Root:  v.GetString("vault.root"),
			Board: v.GetString("vault.board"),
		},
		Watcher: models.WatcherConfig{
			Debounce:       v.GetDuration("watcher.debounce"),
			RescanInterval: v.GetDuration("watcher.rescan_interval"),
		},
		Agent: models.AgentConfig{
			Interval:        v.GetDuration("agent.interval"),
			MaxReadAttempts: v.GetInt("agent.max_read_attempts"),
		},
		Generation: models.GenerationConfig{
			APIKey:      v.GetString("generation.api_key"),
			BaseURL:     v.GetString("generation.base_url"),
			Model:       v.GetString("generation.model"),
			MaxTokens:   v.GetInt("generation.max_tokens"),
			Temperature: v.GetFloat64("generation.temperature"),
			Timeout:     v.GetDuration("generation.timeout"),
		},
		Alerts: models.AlertsConfig{
			PendingHours: v.GetInt("alerts.pending_hours"),
			MaxPending:   v.GetInt("alerts.max_pending"),
			SlackWebhook: v.GetString("alerts.slack_webhook"),
		},
		Log: models.LogConfig{Level: strings.ToLower(v.GetString("log.level"))},
	}, nil
}

// applyDotEnv copies values from basePath/.env for variables that are empty
// in the process environment.
func (cm *viperConfigManager) applyDotEnv(v *viper.Viper) error {
	path := filepath.Join(cm.basePath, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return fmt.Errorf("reading .env: %w", err)
	}

	for key, name := range envBindings {
		if os.Getenv(name) != "" {
			continue
		}
		if val := env.GetString(strings.ToLower(name)); val != "" {
			v.Set(key, val)
		}
	}
	return nil
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// ValidateConfig checks every setting and reports all problems at once.
func (cm *viperConfigManager) ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.Vault.Root == "" {
		errs = append(errs, "vault.root must not be empty")
	}
	if cfg.Vault.Board == "" || strings.ContainsAny(cfg.Vault.Board, `/\`) {
		errs = append(errs, fmt.Sprintf("vault.board %q must be a plain file name", cfg.Vault.Board))
	}
	if cfg.Watcher.Debounce < 0 {
		errs = append(errs, fmt.Sprintf("watcher.debounce must be non-negative, got %s", cfg.Watcher.Debounce))
	}
	if cfg.Watcher.RescanInterval < 0 {
		errs = append(errs, fmt.Sprintf("watcher.rescan_interval must be non-negative, got %s", cfg.Watcher.RescanInterval))
	}
	if cfg.Agent.Interval <= 0 {
		errs = append(errs, fmt.Sprintf("agent.interval must be positive, got %s", cfg.Agent.Interval))
	}
	if cfg.Agent.MaxReadAttempts < 0 {
		errs = append(errs, fmt.Sprintf("agent.max_read_attempts must be non-negative, got %d", cfg.Agent.MaxReadAttempts))
	}
	if cfg.Generation.Model == "" {
		errs = append(errs, "generation.model must not be empty")
	}
	if cfg.Generation.MaxTokens <= 0 {
		errs = append(errs, fmt.Sprintf("generation.max_tokens must be positive, got %d", cfg.Generation.MaxTokens))
	}
	if cfg.Generation.Temperature < 0 || cfg.Generation.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("generation.temperature %g is invalid, must be between 0 and 2", cfg.Generation.Temperature))
	}
	if cfg.Generation.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("generation.timeout must be non-negative, got %s", cfg.Generation.Timeout))
	}
	if cfg.Alerts.PendingHours <= 0 {
		errs = append(errs, fmt.Sprintf("alerts.pending_hours must be positive, got %d", cfg.Alerts.PendingHours))
	}
	if cfg.Alerts.MaxPending < 0 {
		errs = append(errs, fmt.Sprintf("alerts.max_pending must be non-negative, got %d", cfg.Alerts.MaxPending))
	}
	if !validLogLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error", cfg.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: config validation failed:\n  - %s", ErrConfiguration, strings.Join(errs, "\n  - "))
	}
	return nil
}
