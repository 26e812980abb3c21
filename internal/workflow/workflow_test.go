package workflow

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw-deploy/internal/config"
	"github.com/openclaw/openclaw-deploy/internal/history"
	"github.com/openclaw/openclaw-deploy/internal/logging"
	"github.com/openclaw/openclaw-deploy/internal/rollback"
	"github.com/openclaw/openclaw-deploy/internal/runtime"
)

const manifestYAML = `
services:
  openclaw-gateway:
    build: .
    image: openclaw:local
    volumes:
      - openclaw-home:/home/openclaw
volumes:
  openclaw-home:
`

// fakeRuntime scripts runtime behavior per test. Start flips the running
// flag unless the test pins it down with exitAfterStart.
type fakeRuntime struct {
	buildErr            error
	startErr            error
	stopErr             error
	removeContainersErr error
	removeVolumesErr    error

	exists         bool
	running        bool
	exitAfterStart bool
	healthSeq      []runtime.Health
	healthIdx      int

	buildCalls   int
	buildNoCache bool
	startCalls   int
	stopCalls    int
	healthPolls  int

	removedContainers int
	removedVolumes    [][]string
	removedImages     [][]string
}

func (f *fakeRuntime) Ping(context.Context) error                     { return nil }
func (f *fakeRuntime) ComposeVersion(context.Context) (string, error) { return "2.29.0", nil }

func (f *fakeRuntime) Build(_ context.Context, noCache bool) error {
	f.buildCalls++
	f.buildNoCache = noCache
	return f.buildErr
}

func (f *fakeRuntime) Start(context.Context) error {
	f.startCalls++
	if f.startErr != nil {
		return f.startErr
	}
	f.exists = true
	f.running = !f.exitAfterStart
	return nil
}

func (f *fakeRuntime) Stop(context.Context) error {
	f.stopCalls++
	if f.stopErr != nil {
		return f.stopErr
	}
	f.running = false
	return nil
}

func (f *fakeRuntime) Restart(context.Context) error { return nil }

func (f *fakeRuntime) ContainerExists(context.Context, string) (bool, error) {
	return f.exists, nil
}

func (f *fakeRuntime) ContainerRunning(context.Context, string) (bool, error) {
	return f.running, nil
}

func (f *fakeRuntime) HealthStatus(context.Context, string) (runtime.Health, error) {
	f.healthPolls++
	if len(f.healthSeq) == 0 {
		return runtime.HealthHealthy, nil
	}
	status := f.healthSeq[f.healthIdx]
	if f.healthIdx < len(f.healthSeq)-1 {
		f.healthIdx++
	}
	return status, nil
}

func (f *fakeRuntime) Logs(context.Context, int, bool, io.Writer) error { return nil }

func (f *fakeRuntime) RemoveContainers(context.Context) error {
	if f.removeContainersErr != nil {
		return f.removeContainersErr
	}
	f.removedContainers++
	f.exists = false
	f.running = false
	return nil
}

func (f *fakeRuntime) RemoveVolumes(_ context.Context, names []string) error {
	if f.removeVolumesErr != nil {
		return f.removeVolumesErr
	}
	f.removedVolumes = append(f.removedVolumes, names)
	return nil
}

func (f *fakeRuntime) RemoveImages(_ context.Context, refs []string) error {
	f.removedImages = append(f.removedImages, refs)
	return nil
}

func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	return port
}

func testSnapshot(t *testing.T) *config.Snapshot {
	t.Helper()
	snap := config.Defaults(t.TempDir())
	base := t.TempDir()
	snap.ConfigDir = base + "/.openclaw"
	snap.WorkspaceDir = base + "/openclaw/workspace"
	snap.GatewayPort = freePort(t)
	snap.MinFreeDisk = 1
	snap.HealthStartPeriod = 0
	snap.HealthInterval = time.Millisecond
	snap.HealthTimeout = time.Millisecond
	snap.HealthRetries = 3

	require.NoError(t, os.WriteFile(snap.DockerfilePath(), []byte("FROM debian:bookworm-slim\n"), 0o644))
	require.NoError(t, os.WriteFile(snap.ComposeFilePath(), []byte(manifestYAML), 0o644))
	require.NoError(t, os.WriteFile(snap.EnvExamplePath(), []byte("OPENCLAW_GATEWAY_TOKEN=\n"), 0o644))
	return &snap
}

func testEngine(t *testing.T, snap *config.Snapshot, rt *fakeRuntime) *Engine {
	t.Helper()
	logger := logging.NewLogger(logging.ERROR, false)
	return NewEngine(snap, rt, logger, nil)
}

func TestDeploySuccess(t *testing.T) {
	snap := testSnapshot(t)
	rt := &fakeRuntime{}
	engine := testEngine(t, snap, rt)

	result := engine.Deploy(context.Background(), DeployOptions{})
	require.NoError(t, result.Err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, []Step{StepValidating, StepProvisioning, StepBuilding, StepStarting, StepHealthChecking}, result.Completed)
	assert.FileExists(t, snap.EnvFilePath())
	assert.DirExists(t, snap.ConfigDir)
	assert.DirExists(t, snap.WorkspaceDir)
	assert.Equal(t, 1, rt.buildCalls)
	assert.Equal(t, 1, rt.startCalls)
}

func TestDeployIsIdempotent(t *testing.T) {
	snap := testSnapshot(t)
	rt := &fakeRuntime{}
	engine := testEngine(t, snap, rt)

	first := engine.Deploy(context.Background(), DeployOptions{})
	require.True(t, first.Success)

	token, err := os.ReadFile(snap.EnvFilePath())
	require.NoError(t, err)

	second := engine.Deploy(context.Background(), DeployOptions{})
	require.True(t, second.Success)

	// The generated token survives the second deploy untouched.
	tokenAfter, err := os.ReadFile(snap.EnvFilePath())
	require.NoError(t, err)
	assert.Equal(t, string(token), string(tokenAfter))
	assert.Equal(t, 2, rt.buildCalls)
}

func TestDeployBuildFailureRollsBackProvisioning(t *testing.T) {
	snap := testSnapshot(t)
	rt := &fakeRuntime{buildErr: errors.New("compile error in Dockerfile")}
	engine := testEngine(t, snap, rt)

	result := engine.Deploy(context.Background(), DeployOptions{})
	assert.False(t, result.Success)
	assert.Equal(t, StepBuilding, result.FailedStep)

	var buildErr *BuildError
	assert.ErrorAs(t, result.Err, &buildErr)

	assert.Equal(t, rollback.StatusFullyRecovered, result.Rollback.Status)
	assert.NoFileExists(t, snap.EnvFilePath())
	assert.NoDirExists(t, snap.ConfigDir)
	assert.NoDirExists(t, snap.WorkspaceDir)
	// The image was never built, so nothing tries to remove it.
	assert.Empty(t, rt.removedImages)

	state, err := engine.Status(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, state.ContainerExists)
}

func TestDeployStartFailureRemovesImage(t *testing.T) {
	snap := testSnapshot(t)
	rt := &fakeRuntime{startErr: errors.New("port bind failed")}
	engine := testEngine(t, snap, rt)

	result := engine.Deploy(context.Background(), DeployOptions{})
	assert.False(t, result.Success)
	assert.Equal(t, StepStarting, result.FailedStep)
	assert.Equal(t, rollback.StatusFullyRecovered, result.Rollback.Status)
	require.Len(t, rt.removedImages, 1)
	assert.Equal(t, []string{snap.ImageName}, rt.removedImages[0])
}

func TestDeployNoRollbackEnumeratesLeftovers(t *testing.T) {
	snap := testSnapshot(t)
	snap.RollbackEnabled = false
	rt := &fakeRuntime{startErr: errors.New("port bind failed")}
	engine := testEngine(t, snap, rt)

	result := engine.Deploy(context.Background(), DeployOptions{})
	assert.False(t, result.Success)
	assert.Equal(t, rollback.StatusSkipped, result.Rollback.Status)
	assert.NotEmpty(t, result.Rollback.LeftBehind)

	// Everything stays for inspection.
	assert.FileExists(t, snap.EnvFilePath())
	assert.DirExists(t, snap.ConfigDir)
	assert.Empty(t, rt.removedImages)
}

func TestDeployHealthTimeoutLeavesDeploymentUnverified(t *testing.T) {
	snap := testSnapshot(t)
	rt := &fakeRuntime{healthSeq: []runtime.Health{runtime.HealthStarting}}
	engine := testEngine(t, snap, rt)

	result := engine.Deploy(context.Background(), DeployOptions{})
	assert.False(t, result.Success)
	assert.True(t, result.Unverified)
	assert.Equal(t, StepHealthChecking, result.FailedStep)
	assert.Equal(t, rollback.StatusSkipped, result.Rollback.Status)

	var timeoutErr *HealthTimeoutError
	require.ErrorAs(t, result.Err, &timeoutErr)
	assert.Equal(t, snap.HealthRetries, timeoutErr.Polls)

	// Container and image are left running for inspection.
	assert.Equal(t, 0, rt.removedContainers)
	assert.Empty(t, rt.removedImages)
}

func TestDeployHealthTimeoutForcedRollback(t *testing.T) {
	snap := testSnapshot(t)
	snap.ForceRollbackOnUnverified = true
	rt := &fakeRuntime{healthSeq: []runtime.Health{runtime.HealthStarting}}
	engine := testEngine(t, snap, rt)

	result := engine.Deploy(context.Background(), DeployOptions{})
	assert.False(t, result.Success)
	assert.True(t, result.Unverified)
	assert.Equal(t, rollback.StatusFullyRecovered, result.Rollback.Status)
	assert.Equal(t, 1, rt.removedContainers)
	assert.Len(t, rt.removedImages, 1)
}

func TestDeployHealthPollBudget(t *testing.T) {
	snap := testSnapshot(t)
	snap.HealthRetries = 5
	rt := &fakeRuntime{healthSeq: []runtime.Health{runtime.HealthStarting}}
	engine := testEngine(t, snap, rt)

	engine.Deploy(context.Background(), DeployOptions{})
	assert.Equal(t, 5, rt.healthPolls)
}

func TestDeployContainerExitDuringHealthRollsBack(t *testing.T) {
	snap := testSnapshot(t)
	rt := &fakeRuntime{exitAfterStart: true}
	engine := testEngine(t, snap, rt)

	result := engine.Deploy(context.Background(), DeployOptions{})
	assert.False(t, result.Success)
	assert.False(t, result.Unverified)
	assert.Equal(t, StepHealthChecking, result.FailedStep)
	assert.Contains(t, result.Err.Error(), "stopped during startup")
	assert.Equal(t, rollback.StatusFullyRecovered, result.Rollback.Status)
}

func TestDeploySkipHealthCheck(t *testing.T) {
	snap := testSnapshot(t)
	rt := &fakeRuntime{healthSeq: []runtime.Health{runtime.HealthStarting}}
	engine := testEngine(t, snap, rt)

	result := engine.Deploy(context.Background(), DeployOptions{SkipHealthCheck: true})
	assert.True(t, result.Success)
	assert.Equal(t, 0, rt.healthPolls)
	assert.NotContains(t, result.Completed, StepHealthChecking)
}

func TestUpdateRequiresExistingDeployment(t *testing.T) {
	snap := testSnapshot(t)
	rt := &fakeRuntime{exists: false}
	engine := testEngine(t, snap, rt)

	result := engine.Update(context.Background(), UpdateOptions{})
	assert.False(t, result.Success)
	assert.Equal(t, StepValidating, result.FailedStep)
	assert.Contains(t, result.Err.Error(), "deploy first")
	assert.Equal(t, 0, rt.buildCalls)
}

func TestUpdateBuildFailureFallsBackToPreviousServices(t *testing.T) {
	snap := testSnapshot(t)
	rt := &fakeRuntime{exists: true, running: true, buildErr: errors.New("broken layer")}
	engine := testEngine(t, snap, rt)

	result := engine.Update(context.Background(), UpdateOptions{NoCache: true})
	assert.False(t, result.Success)
	assert.True(t, rt.buildNoCache)
	assert.Equal(t, StepBuilding, result.FailedStep)
	assert.Equal(t, rollback.StatusFullyRecovered, result.Rollback.Status)
	// Stop happened, then the fail-back start brought services back.
	assert.Equal(t, 1, rt.stopCalls)
	assert.Equal(t, 1, rt.startCalls)
	assert.True(t, rt.running)
}

func TestUpdateSuccess(t *testing.T) {
	snap := testSnapshot(t)
	rt := &fakeRuntime{exists: true, running: true}
	engine := testEngine(t, snap, rt)

	result := engine.Update(context.Background(), UpdateOptions{})
	require.NoError(t, result.Err)
	assert.True(t, result.Success)
	assert.Equal(t, []Step{StepValidating, StepStopping, StepBuilding, StepStarting, StepHealthChecking}, result.Completed)
	assert.Equal(t, 1, rt.stopCalls)
	assert.Equal(t, 1, rt.startCalls)
}

func TestCleanupPartialFailureIndependence(t *testing.T) {
	snap := testSnapshot(t)
	rt := &fakeRuntime{
		exists:              true,
		removeContainersErr: errors.New("container is restarting"),
	}
	engine := testEngine(t, snap, rt)

	report := engine.Cleanup(context.Background(), CleanupOptions{
		RemoveVolumes: true,
		RemoveImages:  true,
	})
	require.Error(t, report.Err())
	assert.Equal(t, []string{"gateway containers"}, report.Failed)
	// Later removals still ran.
	require.Len(t, rt.removedVolumes, 1)
	assert.Equal(t, []string{"openclaw-home"}, rt.removedVolumes[0])
	assert.Len(t, rt.removedImages, 1)
}

func TestCleanupVolumeFailureDoesNotBlockContainers(t *testing.T) {
	snap := testSnapshot(t)
	rt := &fakeRuntime{
		exists:           true,
		removeVolumesErr: errors.New("volume is in use"),
	}
	engine := testEngine(t, snap, rt)

	report := engine.Cleanup(context.Background(), CleanupOptions{RemoveVolumes: true})
	require.Error(t, report.Err())
	assert.Equal(t, 1, rt.removedContainers)
	assert.Contains(t, report.Removed, "gateway containers")
	assert.Equal(t, []string{"volumes"}, report.Failed)
}

func TestCleanupContainersOnlyByDefault(t *testing.T) {
	snap := testSnapshot(t)
	rt := &fakeRuntime{exists: true}
	engine := testEngine(t, snap, rt)

	report := engine.Cleanup(context.Background(), CleanupOptions{})
	require.NoError(t, report.Err())
	assert.Equal(t, []string{"gateway containers"}, report.Removed)
	assert.Empty(t, rt.removedVolumes)
	assert.Empty(t, rt.removedImages)
}

func TestCleanupRemovesEnvFileOnRequest(t *testing.T) {
	snap := testSnapshot(t)
	require.NoError(t, os.WriteFile(snap.EnvFilePath(), []byte("OPENCLAW_GATEWAY_TOKEN=x\n"), 0o600))
	rt := &fakeRuntime{}
	engine := testEngine(t, snap, rt)

	report := engine.Cleanup(context.Background(), CleanupOptions{RemoveEnvFile: true})
	require.NoError(t, report.Err())
	assert.NoFileExists(t, snap.EnvFilePath())
}

func TestStatusDerivesStateFromRuntime(t *testing.T) {
	snap := testSnapshot(t)

	notDeployed := testEngine(t, snap, &fakeRuntime{})
	state, err := notDeployed.Status(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, state.ContainerExists)
	assert.Equal(t, runtime.HealthUnknown, state.Health)

	deployed := testEngine(t, snap, &fakeRuntime{exists: true, running: true, healthSeq: []runtime.Health{runtime.HealthHealthy}})
	state, err = deployed.Status(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, state.ContainerExists)
	assert.True(t, state.Running)
	assert.Equal(t, runtime.HealthHealthy, state.Health)
	assert.Contains(t, state.GatewayURL, "http://localhost:")
}

func TestWorkflowsRecordHistory(t *testing.T) {
	snap := testSnapshot(t)
	require.NoError(t, os.MkdirAll(snap.ConfigDir, 0o700))
	store, err := history.Open(snap.HistoryDBDir())
	require.NoError(t, err)
	defer store.Close()

	rt := &fakeRuntime{}
	logger := logging.NewLogger(logging.ERROR, false)
	engine := NewEngine(snap, rt, logger, store)

	result := engine.Deploy(context.Background(), DeployOptions{})
	require.True(t, result.Success)

	runs, err := store.Recent(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "deploy", runs[0].Workflow)
	assert.Equal(t, "success", runs[0].Outcome)
	assert.Equal(t, result.RunID, runs[0].RunID)
}
