// Package rollback tracks compensating actions for partially completed
// deployments. Workflows push an undo action immediately after each side
// effect succeeds; on failure the manager unwinds them in reverse order.
package rollback

import (
	"context"
	"fmt"
	"time"

	"github.com/openclaw/openclaw-deploy/internal/logging"
)

// Action is a single compensating step. Run must be safe to call even when
// the state it undoes was already removed by someone else.
type Action struct {
	Label string
	Run   func(ctx context.Context) error
}

// Status summarizes how an unwind ended.
type Status string

const (
	StatusFullyRecovered     Status = "fully-recovered"
	StatusPartiallyRecovered Status = "partially-recovered"
	StatusSkipped            Status = "skipped"
)

// Outcome reports what the unwind accomplished. LeftBehind lists the labels
// of actions that did not run or did not succeed, so the operator knows what
// to clean up by hand.
type Outcome struct {
	Status     Status
	Failed     []string
	LeftBehind []string
}

const actionTimeout = 2 * time.Minute

// Manager accumulates compensating actions for one workflow run. It is not
// safe for concurrent use; workflows are sequential by construction.
type Manager struct {
	logger  *logging.Logger
	enabled bool
	actions []Action
	spent   bool
}

func NewManager(logger *logging.Logger, enabled bool) *Manager {
	return &Manager{logger: logger, enabled: enabled}
}

func (m *Manager) Push(label string, run func(ctx context.Context) error) {
	m.actions = append(m.actions, Action{Label: label, Run: run})
}

func (m *Manager) Enabled() bool { return m.enabled }

// Discard drops all recorded actions. Called when the workflow completes, at
// which point the new state is the desired one and must not be undone.
func (m *Manager) Discard() {
	m.actions = nil
	m.spent = true
}

// UnwindAll runs the recorded actions newest-first. A failing action is
// reported and skipped; the remaining actions still run. The unwind uses a
// fresh context so a cancelled deployment can still clean up after itself.
func (m *Manager) UnwindAll() Outcome {
	if m.spent {
		return Outcome{Status: StatusSkipped}
	}
	m.spent = true

	if !m.enabled {
		outcome := Outcome{Status: StatusSkipped}
		for i := len(m.actions) - 1; i >= 0; i-- {
			outcome.LeftBehind = append(outcome.LeftBehind, m.actions[i].Label)
		}
		m.actions = nil
		return outcome
	}

	var outcome Outcome
	for i := len(m.actions) - 1; i >= 0; i-- {
		action := m.actions[i]
		m.logger.Info(fmt.Sprintf("Rolling back: %s", action.Label))

		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		err := action.Run(ctx)
		cancel()
		if err != nil {
			m.logger.Error(fmt.Sprintf("Rollback step failed: %s", action.Label), err)
			outcome.Failed = append(outcome.Failed, action.Label)
			outcome.LeftBehind = append(outcome.LeftBehind, action.Label)
		}
	}
	m.actions = nil

	if len(outcome.Failed) == 0 {
		outcome.Status = StatusFullyRecovered
	} else {
		outcome.Status = StatusPartiallyRecovered
	}
	return outcome
}
