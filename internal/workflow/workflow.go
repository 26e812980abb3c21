// Package workflow sequences the deployment lifecycle: deploy, update,
// cleanup and status. Each mutating workflow owns one rollback manager and
// records one audit row; state is always derived from the runtime at the
// moment of asking.
package workflow

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid"

	"github.com/openclaw/openclaw-deploy/internal/config"
	"github.com/openclaw/openclaw-deploy/internal/history"
	"github.com/openclaw/openclaw-deploy/internal/logging"
	"github.com/openclaw/openclaw-deploy/internal/rollback"
	"github.com/openclaw/openclaw-deploy/internal/runtime"
)

// Step names a phase of a workflow run.
type Step string

const (
	StepValidating     Step = "validating"
	StepProvisioning   Step = "provisioning"
	StepBuilding       Step = "building"
	StepStarting       Step = "starting"
	StepStopping       Step = "stopping"
	StepHealthChecking Step = "health-checking"
)

// Result is the outcome of one mutating workflow run.
type Result struct {
	RunID     string
	Success   bool
	Completed []Step
	// FailedStep is empty on success.
	FailedStep Step
	Err        error
	Rollback   rollback.Outcome
	// Unverified is set when the deployment is up but its health could not
	// be confirmed within the polling budget.
	Unverified bool
}

// BuildError marks an image build failure so the CLI can map it to its own
// exit code.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string { return fmt.Sprintf("image build failed: %v", e.Err) }
func (e *BuildError) Unwrap() error { return e.Err }

// Engine runs workflows against one resolved configuration. The history
// store may be nil, in which case runs are simply not recorded.
type Engine struct {
	snap   *config.Snapshot
	rt     runtime.Runtime
	logger *logging.Logger
	store  *history.Store
}

func NewEngine(snap *config.Snapshot, rt runtime.Runtime, logger *logging.Logger, store *history.Store) *Engine {
	return &Engine{snap: snap, rt: rt, logger: logger, store: store}
}

// NewRunID returns a lexically sortable unique run identifier.
func NewRunID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// record writes one audit row. History is advisory, so failures only warn.
func (e *Engine) record(workflow string, result *Result, startedAt time.Time) {
	if e.store == nil {
		return
	}
	outcome := "success"
	switch {
	case result.Unverified:
		outcome = "unverified"
	case !result.Success:
		outcome = "failed:" + string(result.FailedStep)
	}
	detail := ""
	if result.Err != nil {
		detail = result.Err.Error()
	}
	err := e.store.Record(history.Run{
		RunID:      result.RunID,
		Workflow:   workflow,
		Outcome:    outcome,
		Detail:     detail,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	})
	if err != nil {
		e.logger.Warn(fmt.Sprintf("Failed to record run history: %v", err))
	}
}

func (e *Engine) newManager() *rollback.Manager {
	return rollback.NewManager(e.logger, e.snap.RollbackEnabled)
}

// fail finalizes a result for a failed step, unwinding the manager unless
// the caller already decided otherwise.
func fail(result *Result, mgr *rollback.Manager, step Step, err error) *Result {
	result.FailedStep = step
	result.Err = err
	result.Rollback = mgr.UnwindAll()
	return result
}
