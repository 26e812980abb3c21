// Package validate runs the deploy prerequisite checks: toolchain, daemon,
// project files, port and disk. Every check runs even after one fails, so a
// single invocation reports everything the operator has to fix.
package validate

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/openclaw/openclaw-deploy/internal/config"
	"github.com/openclaw/openclaw-deploy/internal/constants"
	"github.com/openclaw/openclaw-deploy/internal/runtime"
)

// CheckResult is the outcome of one prerequisite check.
type CheckResult struct {
	Name        string
	Passed      bool
	Detail      string
	Remediation string
}

// Error aggregates the failed checks of one validation run.
type Error struct {
	Failed []CheckResult
}

func (e *Error) Error() string {
	names := make([]string, len(e.Failed))
	for i, check := range e.Failed {
		names[i] = check.Name
	}
	return fmt.Sprintf("%d prerequisite check(s) failed: %s", len(e.Failed), strings.Join(names, ", "))
}

const portProbeTimeout = 2 * time.Second

// Validator holds the dependencies the checks probe against.
type Validator struct {
	snap *config.Snapshot
	rt   runtime.Runtime
}

func New(snap *config.Snapshot, rt runtime.Runtime) *Validator {
	return &Validator{snap: snap, rt: rt}
}

// Run executes all checks and returns every result. The error is non-nil
// exactly when at least one check failed, and carries the failed subset.
func (v *Validator) Run(ctx context.Context) ([]CheckResult, error) {
	results := []CheckResult{
		v.checkDockerBinary(),
		v.checkComposePlugin(ctx),
	}
	results = append(results, v.checkDaemon(ctx)...)
	results = append(results, v.checkProjectFiles()...)
	results = append(results, v.checkManifest(ctx))
	results = append(results, v.checkPortFree(ctx), v.checkDiskSpace())

	var failed []CheckResult
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	if len(failed) > 0 {
		return results, &Error{Failed: failed}
	}
	return results, nil
}

func (v *Validator) checkDockerBinary() CheckResult {
	result := CheckResult{Name: "docker binary"}
	path, err := exec.LookPath("docker")
	if err != nil {
		result.Detail = "docker was not found on PATH"
		result.Remediation = "install Docker Engine (https://docs.docker.com/engine/install/)"
		return result
	}
	result.Passed = true
	result.Detail = path
	return result
}

func (v *Validator) checkComposePlugin(ctx context.Context) CheckResult {
	result := CheckResult{Name: "docker compose plugin"}
	version, err := v.rt.ComposeVersion(ctx)
	if err != nil {
		result.Detail = "docker compose (v2 plugin) is not available"
		result.Remediation = "install the compose plugin (https://docs.docker.com/compose/install/)"
		return result
	}
	result.Passed = true
	result.Detail = "version " + version
	return result
}

// checkDaemon probes the daemon once and reports reachability and socket
// permission as separate results. A permission-denied ping means the daemon
// is up but the caller cannot use it.
func (v *Validator) checkDaemon(ctx context.Context) []CheckResult {
	reach := CheckResult{Name: "docker daemon"}
	perms := CheckResult{Name: "docker permissions"}

	err := v.rt.Ping(ctx)
	switch {
	case err == nil:
		reach.Passed = true
		reach.Detail = "reachable"
		perms.Passed = true
		perms.Detail = "socket accessible"
	case strings.Contains(err.Error(), "permission denied"):
		reach.Passed = true
		reach.Detail = "reachable, socket access denied"
		perms.Detail = err.Error()
		perms.Remediation = "add your user to the docker group, or run with elevated privileges"
	default:
		reach.Detail = err.Error()
		reach.Remediation = "start the Docker daemon and try again"
		perms.Passed = true
		perms.Detail = "skipped, daemon unreachable"
	}
	return []CheckResult{reach, perms}
}

func (v *Validator) checkProjectFiles() []CheckResult {
	files := []struct {
		name string
		path string
	}{
		{constants.DockerfileName, v.snap.DockerfilePath()},
		{constants.ComposeFileName, v.snap.ComposeFilePath()},
		{constants.EnvExampleFileName, v.snap.EnvExamplePath()},
	}
	results := make([]CheckResult, 0, len(files))
	for _, file := range files {
		result := CheckResult{Name: "project file " + file.name}
		if fileExists(file.path) {
			result.Passed = true
			result.Detail = file.path
		} else {
			result.Detail = fmt.Sprintf("%s is missing from %s", file.name, v.snap.ProjectDir)
			result.Remediation = "run from the project checkout, or pass --project-dir"
		}
		results = append(results, result)
	}
	return results
}

func (v *Validator) checkManifest(ctx context.Context) CheckResult {
	result := CheckResult{Name: "compose manifest"}
	if !fileExists(v.snap.ComposeFilePath()) {
		result.Detail = "skipped, manifest is missing"
		result.Remediation = "restore " + constants.ComposeFileName
		return result
	}
	project, err := LoadManifest(ctx, v.snap.ComposeFilePath(), constants.AppName)
	if err != nil {
		result.Detail = err.Error()
		result.Remediation = "fix the compose manifest syntax"
		return result
	}
	if !HasService(project, v.snap.ServiceName) {
		result.Detail = fmt.Sprintf("service %q is not declared in the manifest", v.snap.ServiceName)
		result.Remediation = "restore the gateway service definition in " + constants.ComposeFileName
		return result
	}
	result.Passed = true
	result.Detail = fmt.Sprintf("declares service %q", v.snap.ServiceName)
	return result
}

// checkPortFree probes the gateway port on the loopback interface. A
// connection that succeeds means something already listens there. The
// container keeping the port between updates is expected, so a running
// gateway container passes.
func (v *Validator) checkPortFree(ctx context.Context) CheckResult {
	result := CheckResult{Name: "gateway port"}
	addr := fmt.Sprintf("127.0.0.1:%d", v.snap.GatewayPort)

	running, err := v.rt.ContainerRunning(ctx, v.snap.ContainerName)
	if err == nil && running {
		result.Passed = true
		result.Detail = fmt.Sprintf("port %d is held by the gateway container", v.snap.GatewayPort)
		return result
	}

	conn, err := net.DialTimeout("tcp", addr, portProbeTimeout)
	if err == nil {
		conn.Close()
		result.Detail = fmt.Sprintf("port %d is already in use", v.snap.GatewayPort)
		result.Remediation = "stop the conflicting process, or set gatewayPort in the config file"
		return result
	}
	result.Passed = true
	result.Detail = fmt.Sprintf("port %d is free", v.snap.GatewayPort)
	return result
}

func (v *Validator) checkDiskSpace() CheckResult {
	result := CheckResult{Name: "disk space"}
	free, err := freeDiskBytes(v.snap.ProjectDir)
	if err != nil {
		result.Detail = fmt.Sprintf("failed to query free disk space: %v", err)
		result.Remediation = "check filesystem health for " + v.snap.ProjectDir
		return result
	}
	if free < uint64(v.snap.MinFreeDisk) {
		result.Detail = fmt.Sprintf("%s free, need at least %s for the image build",
			units.BytesSize(float64(free)), units.BytesSize(float64(v.snap.MinFreeDisk)))
		result.Remediation = "free up disk space, or lower minFreeDisk in the config file"
		return result
	}
	result.Passed = true
	result.Detail = units.BytesSize(float64(free)) + " free"
	return result
}
