package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/openclaw/openclaw-deploy/internal/validate"
)

type UpdateOptions struct {
	NoCache         bool
	SkipHealthCheck bool
}

// Update rebuilds the gateway image and restarts the service group. It
// requires an existing deployment; the compensator for the stop is a restart
// of the previous services, so a failed rebuild falls back to what was
// running before.
func (e *Engine) Update(ctx context.Context, opts UpdateOptions) *Result {
	startedAt := time.Now()
	result := &Result{RunID: NewRunID()}
	defer e.record("update", result, startedAt)

	mgr := e.newManager()

	e.logger.Info("Validating prerequisites")
	if _, err := validate.New(e.snap, e.rt).Run(ctx); err != nil {
		return fail(result, mgr, StepValidating, err)
	}
	exists, err := e.rt.ContainerExists(ctx, e.snap.ContainerName)
	if err != nil {
		return fail(result, mgr, StepValidating, err)
	}
	if !exists {
		return fail(result, mgr, StepValidating,
			fmt.Errorf("no existing deployment found, run deploy first"))
	}
	result.Completed = append(result.Completed, StepValidating)

	e.logger.Info("Stopping gateway services")
	if err := e.rt.Stop(ctx); err != nil {
		return fail(result, mgr, StepStopping, err)
	}
	mgr.Push("start previous gateway services", func(ctx context.Context) error {
		return e.rt.Start(ctx)
	})
	result.Completed = append(result.Completed, StepStopping)

	e.logger.Info(fmt.Sprintf("Rebuilding image %s", e.snap.ImageName))
	if err := e.rt.Build(ctx, opts.NoCache); err != nil {
		return fail(result, mgr, StepBuilding, &BuildError{Err: err})
	}
	result.Completed = append(result.Completed, StepBuilding)

	e.logger.Info("Starting gateway services")
	if err := e.rt.Start(ctx); err != nil {
		// The rebuild succeeded but the services would not come up. The
		// fail-back start below runs against the same image, so a failure
		// here usually means the deployment is down until fixed.
		return fail(result, mgr, StepStarting, err)
	}
	result.Completed = append(result.Completed, StepStarting)

	if opts.SkipHealthCheck {
		e.logger.Warn("Skipping health check on request")
	} else {
		e.logger.Info("Checking gateway health")
		if err := e.waitHealthy(ctx); err != nil {
			return e.failHealth(result, mgr, err)
		}
		result.Completed = append(result.Completed, StepHealthChecking)
	}

	mgr.Discard()
	result.Success = true
	e.logger.Success(fmt.Sprintf("Gateway updated, running at %s", e.snap.GatewayURL()))
	return result
}
