package cli

import (
	"log/slog"
	"time"

	"github.com/valter-silva-au/agent-factory/internal/core"
	"github.com/valter-silva-au/agent-factory/internal/observability"
	"github.com/valter-silva-au/agent-factory/internal/storage"
	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// Pipeline service instances, set during app initialization in app.go.
var (
	BasePath string
	Cfg      *models.Config
	Logger   *slog.Logger

	Staging storage.StagingManager
	Board   storage.BoardStore
	Watcher core.IntakeWatcher

	// NewAgent builds a triage agent; a zero interval keeps the configured
	// one.
	NewAgent func(interval time.Duration) core.TriageAgent
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
