// Package runtime wraps the container runtime and the compose tool behind a
// narrow interface so the workflow engine and the rollback manager stay
// testable without a Docker daemon.
package runtime

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Health is the runtime-reported readiness of a container, distinct from
// process liveness.
type Health string

const (
	HealthStarting  Health = "starting"
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
	HealthUnknown   Health = "unknown"
)

// Runtime is the capability set the workflow engine needs from the container
// runtime. The one concrete implementation is Engine; tests substitute fakes.
type Runtime interface {
	// Ping reports whether the daemon is reachable with the caller's
	// permissions. Purely observational.
	Ping(ctx context.Context) error
	// ComposeVersion returns the version string of the compose plugin.
	ComposeVersion(ctx context.Context) (string, error)

	Build(ctx context.Context, noCache bool) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error

	ContainerExists(ctx context.Context, name string) (bool, error)
	ContainerRunning(ctx context.Context, name string) (bool, error)
	HealthStatus(ctx context.Context, name string) (Health, error)

	Logs(ctx context.Context, tail int, follow bool, out io.Writer) error

	RemoveContainers(ctx context.Context) error
	RemoveVolumes(ctx context.Context, names []string) error
	RemoveImages(ctx context.Context, refs []string) error
}

// Error reports a failed runtime operation with enough context for a
// remediation hint: which operation, the subprocess exit code (-1 when the
// call timed out or never ran) and a capped stderr excerpt.
type Error struct {
	Op       string
	ExitCode int
	Stderr   string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("runtime operation %q failed (exit code %d)", e.Op, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

const stderrExcerptLimit = 2048

// excerpt keeps the tail of stderr, which is where build and compose tools
// put the actual cause.
func excerpt(stderr string) string {
	s := strings.TrimSpace(stderr)
	if len(s) > stderrExcerptLimit {
		s = "..." + s[len(s)-stderrExcerptLimit:]
	}
	return s
}
