package models

import "time"

// VaultConfig locates the staging directories and the status board.
type VaultConfig struct {
	Root  string `yaml:"root" mapstructure:"root"`
	Board string `yaml:"board" mapstructure:"board"`
}

// WatcherConfig tunes the intake watcher.
type WatcherConfig struct {
	Debounce       time.Duration `yaml:"debounce" mapstructure:"debounce"`
	RescanInterval time.Duration `yaml:"rescan_interval" mapstructure:"rescan_interval"`
}

// AgentConfig tunes the triage agent loop.
type AgentConfig struct {
	Interval        time.Duration `yaml:"interval" mapstructure:"interval"`
	MaxReadAttempts int           `yaml:"max_read_attempts" mapstructure:"max_read_attempts"`
}

// GenerationConfig holds the text-generation service settings.
type GenerationConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Enabled reports whether a live generation service is configured.
func (g GenerationConfig) Enabled() bool {
	return g.APIKey != ""
}

// AlertsConfig holds alert thresholds and the optional Slack webhook.
type AlertsConfig struct {
	PendingHours int    `yaml:"pending_hours" mapstructure:"pending_hours"`
	MaxPending   int    `yaml:"max_pending" mapstructure:"max_pending"`
	SlackWebhook string `yaml:"slack_webhook,omitempty" mapstructure:"slack_webhook"`
}

// LogConfig controls process logging.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// Config is the full configuration read from .factoryconfig, .env and the
// environment.
type Config struct {
	Vault      VaultConfig      `yaml:"vault" mapstructure:"vault"`
	Watcher    WatcherConfig    `yaml:"watcher" mapstructure:"watcher"`
	Agent      AgentConfig      `yaml:"agent" mapstructure:"agent"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Alerts     AlertsConfig     `yaml:"alerts" mapstructure:"alerts"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}
