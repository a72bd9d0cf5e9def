// Package internal provides the App struct that wires all components of the
// Agent Factory pipeline together and initializes the CLI layer.
package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/agent-factory/internal/cli"
	"github.com/valter-silva-au/agent-factory/internal/core"
	"github.com/valter-silva-au/agent-factory/internal/integration"
	"github.com/valter-silva-au/agent-factory/internal/observability"
	"github.com/valter-silva-au/agent-factory/internal/storage"
	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// generationRetries is how often the client retries a failed completion
// request before the agent falls back.
const generationRetries = 2

// App holds all service dependencies for the Agent Factory pipeline.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.Config
	Logger    *slog.Logger

	// Storage layer
	Staging storage.StagingManager
	Board   storage.BoardStore

	// Integration services
	Docs      integration.DocumentStore
	Generator core.ResponseGenerator

	// Core services
	Watcher core.IntakeWatcher

	// Observability
	EventLog    observability.EventLog
	Events      core.EventLogger
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components of the pipeline. basePath is the
// directory holding .factoryconfig; relative vault paths resolve against it.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg
	app.Logger = NewLogger(cfg.Log.Level, os.Stderr)

	// --- Storage layer ---
	vaultRoot := resolvePath(basePath, cfg.Vault.Root)
	app.Staging = storage.NewStagingManager(vaultRoot)
	app.Board = storage.NewBoardStore(resolvePath(vaultRoot, cfg.Vault.Board))

	// --- Integration services ---
	app.Docs = integration.NewDocumentStore()
	if cfg.Generation.Enabled() {
		gen, err := integration.NewGroqGenerator(integration.GroqConfig{
			APIKey:     cfg.Generation.APIKey,
			BaseURL:    cfg.Generation.BaseURL,
			Timeout:    cfg.Generation.Timeout,
			MaxRetries: generationRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
		}
		app.Generator = &generatorAdapter{
			gen: gen,
			opts: integration.GenerateOptions{
				Model:       cfg.Generation.Model,
				MaxTokens:   cfg.Generation.MaxTokens,
				Temperature: cfg.Generation.Temperature,
			},
		}
	}

	// --- Observability ---
	// The event log lives in the vault, so it is unavailable until
	// "factory init" has created the vault.
	eventLogPath := filepath.Join(vaultRoot, observability.EventLogFile)
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: run without the event trail.
		app.Logger.Debug("event log disabled", "path", eventLogPath, "error", err)
		app.EventLog = nil
	}
	if app.EventLog != nil {
		app.Events = observability.NewRecorder(app.EventLog)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	app.AlertEngine = observability.NewAlertEngine(app.Board, app.EventLog, observability.AlertThresholds{
		PendingHours: cfg.Alerts.PendingHours,
		MaxPending:   cfg.Alerts.MaxPending,
	})
	if cfg.Alerts.SlackWebhook != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Alerts.SlackWebhook)
	}

	// --- Core services ---
	app.Watcher = core.NewIntakeWatcher(app.Staging, app.Board, subscribeInbox, app.Events, app.Logger, core.WatcherOptions{
		Debounce:       cfg.Watcher.Debounce,
		RescanInterval: cfg.Watcher.RescanInterval,
	})

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Cfg = cfg
	cli.Logger = app.Logger
	cli.Staging = app.Staging
	cli.Board = app.Board
	cli.Watcher = app.Watcher
	cli.NewAgent = app.NewAgent
	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// NewAgent builds a triage agent from the configuration. A zero interval
// keeps agent.interval.
func (a *App) NewAgent(interval time.Duration) core.TriageAgent {
	if interval <= 0 {
		interval = a.Config.Agent.Interval
	}
	if a.Generator == nil {
		a.Logger.Warn("GROQ_API_KEY not set, responses will use fallback text")
	}
	return core.NewTriageAgent(a.Staging, a.Board, a.Docs, a.Generator, a.Events, a.Logger, core.AgentOptions{
		Interval:        interval,
		MaxReadAttempts: a.Config.Agent.MaxReadAttempts,
	})
}

// Close releases resources held by the App.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// NewLogger returns a text logger writing to w at the named level. Unknown
// levels fall back to info.
func NewLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// ResolveBasePath determines the directory holding the factory
// configuration. It checks the FACTORY_HOME env var, then walks up from the
// current directory looking for .factoryconfig, then falls back to the
// current directory.
func ResolveBasePath() string {
	if home := os.Getenv("FACTORY_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if hasConfig(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}

func hasConfig(dir string) bool {
	for _, name := range []string{core.ConfigFileName, core.ConfigFileName + ".yaml", core.ConfigFileName + ".yml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// --- Adapters ---

// generatorAdapter adapts integration.Generator to core.ResponseGenerator,
// binding the configured model parameters.
type generatorAdapter struct {
	gen  integration.Generator
	opts integration.GenerateOptions
}

func (a *generatorAdapter) Generate(ctx context.Context, content string, label models.Classification) (string, error) {
	return a.gen.Generate(ctx, content, label, a.opts)
}

// subscribeInbox adapts integration.SubscribeDir to core.SubscribeFunc.
func subscribeInbox(dir string) (core.DirSource, error) {
	sub, err := integration.SubscribeDir(dir)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
