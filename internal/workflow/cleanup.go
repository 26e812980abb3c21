package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/openclaw/openclaw-deploy/internal/validate"
)

type CleanupOptions struct {
	RemoveVolumes bool
	RemoveImages  bool
	RemoveEnvFile bool
}

// CleanupReport lists what cleanup removed and what it could not. Steps are
// independent: a failed removal never stops the later ones.
type CleanupReport struct {
	RunID   string
	Removed []string
	Failed  []string
	Errs    []error
}

func (r *CleanupReport) Err() error {
	return errors.Join(r.Errs...)
}

// Cleanup tears the deployment down. Containers always go; volumes, images
// and the generated env file only on request.
func (e *Engine) Cleanup(ctx context.Context, opts CleanupOptions) *CleanupReport {
	startedAt := time.Now()
	report := &CleanupReport{RunID: NewRunID()}
	defer e.recordCleanup(report, startedAt)

	if err := e.rt.Ping(ctx); err != nil {
		report.Failed = append(report.Failed, "docker daemon")
		report.Errs = append(report.Errs, err)
		return report
	}

	step := func(label string, run func() error) {
		if err := run(); err != nil {
			e.logger.Error(fmt.Sprintf("Failed to remove %s", label), err)
			report.Failed = append(report.Failed, label)
			report.Errs = append(report.Errs, err)
			return
		}
		e.logger.Info(fmt.Sprintf("Removed %s", label))
		report.Removed = append(report.Removed, label)
	}

	step("gateway containers", func() error {
		return e.rt.RemoveContainers(ctx)
	})

	if opts.RemoveVolumes {
		step("volumes", func() error {
			return e.rt.RemoveVolumes(ctx, e.volumeNames(ctx))
		})
	}
	if opts.RemoveImages {
		step("image "+e.snap.ImageName, func() error {
			return e.rt.RemoveImages(ctx, []string{e.snap.ImageName})
		})
	}
	if opts.RemoveEnvFile {
		step("env file", func() error {
			err := os.Remove(e.snap.EnvFilePath())
			if os.IsNotExist(err) {
				return nil
			}
			return err
		})
	}
	return report
}

// volumeNames prefers the manifest's declared volumes and falls back to the
// configured home volume when the manifest cannot be read.
func (e *Engine) volumeNames(ctx context.Context) []string {
	project, err := validate.LoadManifest(ctx, e.snap.ComposeFilePath(), e.snap.ServiceName)
	if err != nil {
		e.logger.Debug(fmt.Sprintf("Falling back to configured volume: %v", err))
		return []string{e.snap.HomeVolume}
	}
	names := validate.VolumeNames(project)
	if len(names) == 0 {
		return []string{e.snap.HomeVolume}
	}
	return names
}

func (e *Engine) recordCleanup(report *CleanupReport, startedAt time.Time) {
	if e.store == nil {
		return
	}
	result := &Result{RunID: report.RunID, Success: len(report.Failed) == 0}
	if !result.Success {
		result.FailedStep = StepStopping
		result.Err = report.Err()
	}
	e.record("cleanup", result, startedAt)
}
