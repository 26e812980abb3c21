package workflow

import (
	"context"
	"fmt"

	"github.com/openclaw/openclaw-deploy/internal/config"
	"github.com/openclaw/openclaw-deploy/internal/history"
	"github.com/openclaw/openclaw-deploy/internal/runtime"
)

// State is the derived deployment state: what the runtime reports right now,
// never a stored record.
type State struct {
	ContainerExists bool
	Running         bool
	Health          runtime.Health
	GatewayURL      string
	Config          config.Summary
	// RecentRuns is populated for verbose status when history is available.
	RecentRuns []history.Run
}

const recentRunLimit = 10

// Status derives the current deployment state. It is read-only: no rollback
// stack, no history row.
func (e *Engine) Status(ctx context.Context, verbose bool) (*State, error) {
	state := &State{
		GatewayURL: e.snap.GatewayURL(),
		Config:     e.snap.Summary(),
		Health:     runtime.HealthUnknown,
	}

	if err := e.rt.Ping(ctx); err != nil {
		return nil, fmt.Errorf("cannot derive deployment state: %w", err)
	}

	exists, err := e.rt.ContainerExists(ctx, e.snap.ContainerName)
	if err != nil {
		return nil, err
	}
	state.ContainerExists = exists
	if !exists {
		return state, nil
	}

	running, err := e.rt.ContainerRunning(ctx, e.snap.ContainerName)
	if err != nil {
		return nil, err
	}
	state.Running = running

	health, err := e.rt.HealthStatus(ctx, e.snap.ContainerName)
	if err != nil {
		return nil, err
	}
	state.Health = health

	if verbose && e.store != nil {
		runs, err := e.store.Recent(recentRunLimit)
		if err != nil {
			e.logger.Warn(fmt.Sprintf("Failed to read run history: %v", err))
		} else {
			state.RecentRuns = runs
		}
	}
	return state, nil
}
