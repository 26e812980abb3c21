package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/openclaw/openclaw-deploy/internal/envops"
	"github.com/openclaw/openclaw-deploy/internal/rollback"
	"github.com/openclaw/openclaw-deploy/internal/validate"
)

type DeployOptions struct {
	NoCache         bool
	SkipHealthCheck bool
}

// Deploy provisions the host, builds the gateway image and starts the
// service group. Deploying over a running deployment is safe: provisioning
// skips what exists and the runtime reconciles the service group in place.
func (e *Engine) Deploy(ctx context.Context, opts DeployOptions) *Result {
	startedAt := time.Now()
	result := &Result{RunID: NewRunID()}
	defer e.record("deploy", result, startedAt)

	mgr := e.newManager()

	e.logger.Info("Validating prerequisites")
	if _, err := validate.New(e.snap, e.rt).Run(ctx); err != nil {
		return fail(result, mgr, StepValidating, err)
	}
	result.Completed = append(result.Completed, StepValidating)

	e.logger.Info("Provisioning host environment")
	createdDirs, err := envops.EnsureDirectories(e.snap, e.logger)
	for _, dir := range createdDirs {
		dir := dir
		mgr.Push("remove directory "+dir, func(context.Context) error {
			return envops.RemoveIfEmpty(dir)
		})
	}
	if err != nil {
		return fail(result, mgr, StepProvisioning, err)
	}

	createdEnv, err := envops.EnsureEnvFile(e.snap, e.logger)
	if createdEnv {
		envPath := e.snap.EnvFilePath()
		mgr.Push("remove generated env file", func(context.Context) error {
			return os.Remove(envPath)
		})
	}
	if err != nil {
		return fail(result, mgr, StepProvisioning, err)
	}
	result.Completed = append(result.Completed, StepProvisioning)

	e.logger.Info(fmt.Sprintf("Building image %s", e.snap.ImageName))
	if err := e.rt.Build(ctx, opts.NoCache); err != nil {
		return fail(result, mgr, StepBuilding, &BuildError{Err: err})
	}
	mgr.Push("remove built image "+e.snap.ImageName, func(ctx context.Context) error {
		return e.rt.RemoveImages(ctx, []string{e.snap.ImageName})
	})
	result.Completed = append(result.Completed, StepBuilding)

	e.logger.Info("Starting gateway services")
	if err := e.rt.Start(ctx); err != nil {
		return fail(result, mgr, StepStarting, err)
	}
	mgr.Push("stop and remove gateway containers", func(ctx context.Context) error {
		return e.rt.RemoveContainers(ctx)
	})
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
	e.logger.Success(fmt.Sprintf("Gateway is up at %s", e.snap.GatewayURL()))
	return result
}

// failHealth applies the unverified policy: a timeout leaves the deployment
// in place unless rollback-on-unverified is forced, while any other health
// failure (container exited) unwinds normally.
func (e *Engine) failHealth(result *Result, mgr *rollback.Manager, err error) *Result {
	var timeoutErr *HealthTimeoutError
	if errors.As(err, &timeoutErr) && !e.snap.ForceRollbackOnUnverified {
		e.logger.Warn("Health unverified, leaving deployment in place")
		mgr.Discard()
		result.FailedStep = StepHealthChecking
		result.Err = err
		result.Unverified = true
		result.Rollback = rollback.Outcome{Status: rollback.StatusSkipped}
		return result
	}
	result.Unverified = errors.As(err, &timeoutErr)
	return fail(result, mgr, StepHealthChecking, err)
}
