package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolveDefaults(t *testing.T) {
	dir := t.TempDir()
	snap, err := Resolve(ResolveOptions{ProjectDir: dir})
	require.NoError(t, err)

	assert.Equal(t, dir, snap.ProjectDir)
	assert.Equal(t, "openclaw:local", snap.ImageName)
	assert.Equal(t, "openclaw-gateway", snap.ContainerName)
	assert.Equal(t, 18789, snap.GatewayPort)
	assert.Equal(t, "lan", snap.GatewayBind)
	assert.Equal(t, 30*time.Second, snap.HealthInterval)
	assert.Equal(t, 3, snap.HealthRetries)
	assert.True(t, snap.RollbackEnabled)
	assert.Empty(t, snap.GatewayToken)
}

func TestResolveConfigFileLayer(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "openclaw.yaml", `
gatewayPort: 28789
gatewayBind: loopback
aptPackages: "ffmpeg jq"
minFreeDisk: 10GiB
healthCheck:
  interval: 5s
  retries: 7
`)

	snap, err := Resolve(ResolveOptions{ProjectDir: dir})
	require.NoError(t, err)

	assert.Equal(t, 28789, snap.GatewayPort)
	assert.Equal(t, "loopback", snap.GatewayBind)
	assert.Equal(t, "ffmpeg jq", snap.AptPackages)
	assert.Equal(t, int64(10*1024*1024*1024), snap.MinFreeDisk)
	assert.Equal(t, 5*time.Second, snap.HealthInterval)
	assert.Equal(t, 7, snap.HealthRetries)
	// Unset fields keep defaults.
	assert.Equal(t, 10*time.Second, snap.HealthTimeout)
}

func TestResolveDurationAsSeconds(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "openclaw.yaml", `
healthCheck:
  interval: 15
  startPeriod: "45s"
`)

	snap, err := Resolve(ResolveOptions{ProjectDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, snap.HealthInterval)
	assert.Equal(t, 45*time.Second, snap.HealthStartPeriod)
}

func TestResolveUnknownFieldRejected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "openclaw.yaml", "gatewayPrt: 1234\n")

	_, err := Resolve(ResolveOptions{ProjectDir: dir})
	require.Error(t, err)
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "gatewayPrt")
}

func TestResolveEnvFileOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "openclaw.yaml", "gatewayBind: loopback\ngatewayToken: from-file\n")
	writeFile(t, dir, ".env", "OPENCLAW_GATEWAY_TOKEN=from-env\nOPENCLAW_GATEWAY_BIND=\nUNKNOWN_KEY=kept\n")

	snap, err := Resolve(ResolveOptions{ProjectDir: dir})
	require.NoError(t, err)

	assert.Equal(t, "from-env", snap.GatewayToken)
	// Blank env values never override earlier layers.
	assert.Equal(t, "loopback", snap.GatewayBind)
}

func TestResolveOverridesWinLast(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "OPENCLAW_GATEWAY_TOKEN=from-env\nANTHROPIC_API_KEY=env-key\n")

	disabled := false
	snap, err := Resolve(ResolveOptions{
		ProjectDir: dir,
		Overrides: Overrides{
			GatewayToken:    "from-flag",
			AnthropicAPIKey: "flag-key",
			RollbackEnabled: &disabled,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "from-flag", snap.GatewayToken)
	// An API-key override only fills the slot when nothing else set it.
	assert.Equal(t, "env-key", snap.AnthropicAPIKey)
	assert.False(t, snap.RollbackEnabled)
}

func TestResolveMissingExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Resolve(ResolveOptions{ProjectDir: dir, ConfigFile: filepath.Join(dir, "nope.yaml")})
	require.Error(t, err)
	var cfgErr *Error
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidatePortRange(t *testing.T) {
	tests := []struct {
		name string
		port int
		ok   bool
	}{
		{"lowest valid", 1, true},
		{"highest valid", 65535, true},
		{"zero", 0, false},
		{"too high", 65536, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Defaults(t.TempDir())
			snap.GatewayPort = tt.port
			err := snap.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEnvMapOmitsBlanks(t *testing.T) {
	snap := Defaults(t.TempDir())
	snap.GatewayToken = "tok"
	snap.AnthropicAPIKey = ""

	env := snap.EnvMap()
	assert.Equal(t, "tok", env["OPENCLAW_GATEWAY_TOKEN"])
	_, hasAnthropic := env["ANTHROPIC_API_KEY"]
	assert.False(t, hasAnthropic)
	assert.Equal(t, "openclaw-home", env["OPENCLAW_HOME_VOLUME"])
}

func TestSummaryRedactsKeys(t *testing.T) {
	snap := Defaults(t.TempDir())
	snap.AnthropicAPIKey = "sk-secret"

	out, err := snap.SummaryYAML()
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-secret")
	assert.Contains(t, out, "anthropic: true")
}
