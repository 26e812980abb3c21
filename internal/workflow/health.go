package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/openclaw/openclaw-deploy/internal/runtime"
)

// HealthTimeoutError means the container is up but never reported healthy
// within the polling budget. The deployment is left in place as unverified.
type HealthTimeoutError struct {
	Polls      int
	LastStatus runtime.Health
	Waited     time.Duration
}

func (e *HealthTimeoutError) Error() string {
	return fmt.Sprintf("health check did not pass after %d poll(s) over %s (last status %q)",
		e.Polls, e.Waited.Round(time.Second), e.LastStatus)
}

// waitHealthy polls the container's health after the start-period grace. The
// budget is Retries polls spaced Interval apart; a container that stopped
// running fails immediately.
func (e *Engine) waitHealthy(ctx context.Context) error {
	e.logger.Info(fmt.Sprintf("Waiting %s before health checks", e.snap.HealthStartPeriod))
	if err := sleepCtx(ctx, e.snap.HealthStartPeriod); err != nil {
		return err
	}

	started := time.Now()
	last := runtime.HealthUnknown
	for poll := 1; poll <= e.snap.HealthRetries; poll++ {
		running, err := e.rt.ContainerRunning(ctx, e.snap.ContainerName)
		if err != nil {
			return err
		}
		if !running {
			return fmt.Errorf("container %s stopped during startup", e.snap.ContainerName)
		}

		last, err = e.rt.HealthStatus(ctx, e.snap.ContainerName)
		if err != nil {
			return err
		}
		switch last {
		case runtime.HealthHealthy:
			return nil
		case runtime.HealthUnknown:
			// No healthcheck configured. Running is the best signal we get.
			e.logger.Warn("Container reports no health status, treating running as healthy")
			return nil
		}

		e.logger.Debug(fmt.Sprintf("Health poll %d/%d: %s", poll, e.snap.HealthRetries, last))
		if poll < e.snap.HealthRetries {
			if err := sleepCtx(ctx, e.snap.HealthInterval); err != nil {
				return err
			}
		}
	}
	return &HealthTimeoutError{
		Polls:      e.snap.HealthRetries,
		LastStatus: last,
		Waited:     time.Since(started) + e.snap.HealthStartPeriod,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
