package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"github.com/openclaw/openclaw-deploy/internal/config"
	"github.com/openclaw/openclaw-deploy/internal/helpers"
	"github.com/openclaw/openclaw-deploy/internal/logging"
)

// Per-call timeouts. A call that exceeds its budget is reported as a runtime
// failure, not left hanging.
const (
	BuildTimeout   = 20 * time.Minute
	StartTimeout   = 2 * time.Minute
	StopTimeout    = time.Minute
	RestartTimeout = 2 * time.Minute
	probeTimeout   = 10 * time.Second
	versionTimeout = 5 * time.Second
)

// Engine is the concrete Runtime. Compose lifecycle operations shell out to
// the external compose tool; container probes and artifact removal go through
// the Docker SDK client.
type Engine struct {
	cli     *client.Client
	snap    *config.Snapshot
	logger  *logging.Logger
	verbose bool
}

func NewEngine(snap *config.Snapshot, logger *logging.Logger, verbose bool) (*Engine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return &Engine{cli: cli, snap: snap, logger: logger, verbose: verbose}, nil
}

func (e *Engine) Close() error {
	return e.cli.Close()
}

func (e *Engine) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := e.cli.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to Docker daemon: %w", err)
	}
	return nil
}

func (e *Engine) ComposeVersion(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "docker", "compose", "version", "--short").Output()
	if err != nil {
		return "", fmt.Errorf("docker compose is not available: %w", err)
	}
	return string(bytes.TrimSpace(out)), nil
}

func (e *Engine) Build(ctx context.Context, noCache bool) error {
	args := []string{"build"}
	if noCache {
		args = append(args, "--no-cache")
	}
	return e.compose(ctx, "build", BuildTimeout, args...)
}

func (e *Engine) Start(ctx context.Context) error {
	return e.compose(ctx, "start", StartTimeout, "up", "-d")
}

func (e *Engine) Stop(ctx context.Context) error {
	return e.compose(ctx, "stop", StopTimeout, "down")
}

func (e *Engine) Restart(ctx context.Context) error {
	return e.compose(ctx, "restart", RestartTimeout, "restart")
}

// RemoveContainers tears down the service group, leaving volumes in place.
func (e *Engine) RemoveContainers(ctx context.Context) error {
	return e.compose(ctx, "remove-containers", StopTimeout, "down", "--remove-orphans")
}

func (e *Engine) RemoveVolumes(ctx context.Context, names []string) error {
	var errs []error
	for _, name := range names {
		if err := e.cli.VolumeRemove(ctx, name, true); err != nil {
			if client.IsErrNotFound(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("failed to remove volume %s: %w", name, err))
		} else {
			e.logger.Debug(fmt.Sprintf("Removed volume %s", name))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) RemoveImages(ctx context.Context, refs []string) error {
	var errs []error
	for _, ref := range refs {
		if _, err := e.cli.ImageRemove(ctx, ref, image.RemoveOptions{Force: true, PruneChildren: true}); err != nil {
			if client.IsErrNotFound(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("failed to remove image %s: %w", ref, err))
		} else {
			e.logger.Debug(fmt.Sprintf("Removed image %s", ref))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) ContainerExists(ctx context.Context, name string) (bool, error) {
	_, err := e.inspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (e *Engine) ContainerRunning(ctx context.Context, name string) (bool, error) {
	info, err := e.inspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return info.State != nil && info.State.Running, nil
}

// HealthStatus maps the runtime's health report onto the Health enum. A
// container without a configured healthcheck, or no container at all, is
// "unknown" rather than an error.
func (e *Engine) HealthStatus(ctx context.Context, name string) (Health, error) {
	info, err := e.inspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return HealthUnknown, nil
		}
		return HealthUnknown, err
	}
	if info.State == nil || info.State.Health == nil {
		return HealthUnknown, nil
	}
	switch info.State.Health.Status {
	case container.Starting:
		return HealthStarting, nil
	case container.Healthy:
		return HealthHealthy, nil
	case container.Unhealthy:
		return HealthUnhealthy, nil
	default:
		return HealthUnknown, nil
	}
}

func (e *Engine) inspect(ctx context.Context, name string) (container.InspectResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return e.cli.ContainerInspect(ctx, name)
}

func (e *Engine) Logs(ctx context.Context, tail int, follow bool, out io.Writer) error {
	args := []string{"compose", "-f", e.snap.ComposeFilePath(), "logs", "--tail", strconv.Itoa(tail)}
	if follow {
		args = append(args, "-f")
	}
	args = append(args, e.snap.ServiceName)

	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Dir = e.snap.ProjectDir
	cmd.Env = e.composeEnv()
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Run(); err != nil {
		return wrapExecError("logs", err, "")
	}
	return nil
}

// compose runs one compose subcommand with a bounded timeout. Output is
// streamed with a line prefix in verbose mode; stderr is always captured so
// failures carry an excerpt of the cause.
func (e *Engine) compose(ctx context.Context, op string, timeout time.Duration, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := append([]string{"compose", "-f", e.snap.ComposeFilePath()}, args...)
	e.logger.Debug(fmt.Sprintf("Running docker %v", full))

	cmd := exec.CommandContext(ctx, "docker", full...)
	cmd.Dir = e.snap.ProjectDir
	cmd.Env = e.composeEnv()

	var stderr bytes.Buffer
	if e.verbose {
		pw := helpers.NewPrefixWriter(os.Stdout, "compose | ")
		cmd.Stdout = pw
		cmd.Stderr = io.MultiWriter(&stderr, pw)
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return &Error{Op: op, ExitCode: -1, Stderr: fmt.Sprintf("timed out after %s", timeout)}
	}
	return wrapExecError(op, err, stderr.String())
}

func (e *Engine) composeEnv() []string {
	env := os.Environ()
	for k, v := range e.snap.EnvMap() {
		env = append(env, k+"="+v)
	}
	return env
}

func wrapExecError(op string, err error, stderr string) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out := stderr
		if out == "" {
			out = string(exitErr.Stderr)
		}
		return &Error{Op: op, ExitCode: exitErr.ExitCode(), Stderr: excerpt(out)}
	}
	return &Error{Op: op, ExitCode: -1, Stderr: excerpt(err.Error())}
}
