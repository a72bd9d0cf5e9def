package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valter-silva-au/agent-factory/internal/storage"
	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// pausingStaging holds the first Inbox to Needs_Action move after it lands,
// until released.
type pausingStaging struct {
	storage.StagingManager
	paused  chan struct{}
	release chan struct{}
	once    sync.Once
}

func newPausingStaging(inner storage.StagingManager) *pausingStaging {
	return &pausingStaging{
		StagingManager: inner,
		paused:         make(chan struct{}),
		release:        make(chan struct{}),
	}
}

func (p *pausingStaging) Relocate(name string, from, to models.Stage) error {
	err := p.StagingManager.Relocate(name, from, to)
	if err == nil && from == models.StageInbox && to == models.StageNeedsAction {
		p.once.Do(func() {
			close(p.paused)
			<-p.release
		})
	}
	return err
}

// requireOneStage asserts the file is present in exactly the given stage.
func requireOneStage(t *testing.T, staging storage.StagingManager, name string, want models.Stage) {
	t.Helper()
	stages, err := staging.Locate(models.TaskName(name))
	require.NoError(t, err)
	require.Equal(t, []models.Stage{want}, stages, "%s should live only in %s", name, want)
}

func TestPipeline_AgentAdoptsDuringIntake(t *testing.T) {
	staging, board := newVault(t)
	pausing := newPausingStaging(staging)
	w := newTestWatcher(pausing, board, nil, nil)
	docs := &fakeDocs{}
	agent := newTestAgent(staging, board, docs, nil, nil, 3)
	writeDoc(t, staging, models.StageInbox, "report.md", "Please review the quarterly numbers.")

	accepted := make(chan IntakeResult, 1)
	go func() { accepted <- w.Accept("report.md") }()

	select {
	case <-pausing.paused:
	case <-time.After(5 * time.Second):
		t.Fatal("intake never moved the file")
	}
	requireOneStage(t, staging, "report.md", models.StageNeedsAction)
	assert.Empty(t, snapshot(t, board).Tasks, "intake has not recorded the row yet")

	// The agent finds a file without a row, adopts it and finishes it.
	res, err := agent.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, CycleCompleted, res.Outcome, "agent error: %v", res.Err)
	requireOneStage(t, staging, "report.md", models.StageDone)

	close(pausing.release)
	var intake IntakeResult
	select {
	case intake = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("intake did not finish")
	}
	assert.Equal(t, IntakeAccepted, intake.Outcome, "intake error: %v", intake.Err)
	assert.Equal(t, "report", intake.Task.Name)
	requireOneStage(t, staging, "report.md", models.StageDone)

	b := snapshot(t, board)
	require.Len(t, b.Tasks, 1)
	assert.Equal(t, models.StatusCompleted, b.Tasks[0].Status)
	assert.Equal(t, "Done/report.md", b.Tasks[0].Link)
	assert.Equal(t, models.Counters{Total: 1, Completed: 1}, b.Counters)
	assert.NoError(t, b.Counters.Check())

	// Nothing is left for either side.
	results, err := w.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	res, err = agent.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleIdle, res.Outcome)
	assert.Len(t, docs.responses, 1)
}

func TestPipeline_StepwiseKeepsOneStage(t *testing.T) {
	staging, board := newVault(t)
	w := newTestWatcher(staging, board, nil, nil)
	agent := newTestAgent(staging, board, &fakeDocs{}, nil, nil, 3)

	writeDoc(t, staging, models.StageInbox, "first.md", "What is 6 times 7?")
	requireOneStage(t, staging, "first.md", models.StageInbox)

	require.Equal(t, IntakeAccepted, w.Accept("first.md").Outcome)
	requireOneStage(t, staging, "first.md", models.StageNeedsAction)
	assert.Equal(t, models.StatusPending, snapshot(t, board).Tasks[0].Status)

	// A second file arrives between agent cycles.
	writeDoc(t, staging, models.StageInbox, "second.txt", "Write a haiku about rain.")
	res, err := agent.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first.md", res.File)
	requireOneStage(t, staging, "first.md", models.StageDone)
	requireOneStage(t, staging, "second.txt", models.StageInbox)

	require.Equal(t, IntakeAccepted, w.Accept("second.txt").Outcome)
	requireOneStage(t, staging, "second.txt", models.StageNeedsAction)
	b := snapshot(t, board)
	assert.Equal(t, models.Counters{Total: 2, Completed: 1, Pending: 1}, b.Counters)

	res, err = agent.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second.txt", res.File)
	requireOneStage(t, staging, "second.txt", models.StageDone)

	b = snapshot(t, board)
	assert.Equal(t, models.Counters{Total: 2, Completed: 2}, b.Counters)
	for _, row := range b.Tasks {
		assert.Equal(t, models.StatusCompleted, row.Status, row.Name)
	}
}
