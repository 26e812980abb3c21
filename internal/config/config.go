package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openclaw/openclaw-deploy/internal/constants"
)

// Snapshot is the fully resolved configuration for one invocation. It is
// built once by Resolve and never mutated afterwards; every component
// receives it by value or as a read-only pointer instead of reading ambient
// process state.
type Snapshot struct {
	// Host paths
	ProjectDir   string
	ConfigDir    string // persistent gateway configuration, mounted into the container
	WorkspaceDir string // agent workspace data

	// Docker artifact names
	ImageName     string
	ServiceName   string
	ContainerName string
	HomeVolume    string

	// Gateway settings
	GatewayPort  int
	GatewayBind  string
	GatewayToken string

	// Provider API keys. Blank means the provider is disabled.
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAIAPIKey  string
	OllamaBaseURL   string

	// Build settings
	AptPackages string

	// Validation settings
	MinFreeDisk int64 // bytes

	// Health check settings
	HealthInterval    time.Duration
	HealthTimeout     time.Duration
	HealthStartPeriod time.Duration
	HealthRetries     int

	// Rollback behavior
	RollbackEnabled           bool
	ForceRollbackOnUnverified bool
}

// Error marks configuration problems so callers can map them to a distinct
// exit code without string matching.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func configError(format string, a ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, a...)}
}

// Validate checks type/range constraints on a resolved snapshot.
func (s *Snapshot) Validate() error {
	if s.ProjectDir == "" {
		return configError("project directory is not set")
	}
	if s.GatewayPort < 1 || s.GatewayPort > 65535 {
		return configError("gateway port %d is out of range (1-65535)", s.GatewayPort)
	}
	if s.ImageName == "" {
		return configError("image name cannot be empty")
	}
	if s.ServiceName == "" {
		return configError("service name cannot be empty")
	}
	if s.HealthRetries < 0 {
		return configError("health check retries cannot be negative")
	}
	if s.HealthInterval <= 0 {
		return configError("health check interval must be positive")
	}
	if s.HealthTimeout <= 0 {
		return configError("health check timeout must be positive")
	}
	if s.MinFreeDisk < 0 {
		return configError("minimum free disk cannot be negative")
	}
	return nil
}

func (s *Snapshot) ComposeFilePath() string {
	return filepath.Join(s.ProjectDir, constants.ComposeFileName)
}

func (s *Snapshot) DockerfilePath() string {
	return filepath.Join(s.ProjectDir, constants.DockerfileName)
}

func (s *Snapshot) EnvFilePath() string {
	return filepath.Join(s.ProjectDir, constants.EnvFileName)
}

func (s *Snapshot) EnvExamplePath() string {
	return filepath.Join(s.ProjectDir, constants.EnvExampleFileName)
}

func (s *Snapshot) LogsDir() string {
	return filepath.Join(s.ConfigDir, constants.LogsDirName)
}

func (s *Snapshot) HistoryDBDir() string {
	return s.ConfigDir
}

func (s *Snapshot) GatewayURL() string {
	return fmt.Sprintf("http://localhost:%d", s.GatewayPort)
}

// EnvMap returns the environment passed to the compose tool for builds and
// startups. Blank values are omitted so compose defaults apply.
func (s *Snapshot) EnvMap() map[string]string {
	env := map[string]string{}
	set := func(key, value string) {
		if value != "" {
			env[key] = value
		}
	}
	set(constants.EnvVarGatewayToken, s.GatewayToken)
	set(constants.EnvVarGatewayBind, s.GatewayBind)
	set(constants.EnvVarAnthropicKey, s.AnthropicAPIKey)
	set(constants.EnvVarOpenAIKey, s.OpenAIAPIKey)
	set(constants.EnvVarGoogleAIKey, s.GoogleAIAPIKey)
	set(constants.EnvVarOllamaURL, s.OllamaBaseURL)
	set(constants.EnvVarAptPackages, s.AptPackages)
	set(constants.EnvVarHomeVolume, s.HomeVolume)
	return env
}

// Defaults returns the base layer of the configuration for the given project
// directory. Home-relative paths mirror what the packaged compose manifest
// mounts into the container.
func Defaults(projectDir string) Snapshot {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Snapshot{
		ProjectDir:        projectDir,
		ConfigDir:         filepath.Join(home, ".openclaw"),
		WorkspaceDir:      filepath.Join(home, "openclaw", "workspace"),
		ImageName:         constants.DefaultImageName,
		ServiceName:       constants.GatewayServiceName,
		ContainerName:     constants.GatewayContainerName,
		HomeVolume:        constants.DefaultHomeVolume,
		GatewayPort:       constants.DefaultGatewayPort,
		GatewayBind:       constants.DefaultGatewayBind,
		MinFreeDisk:       defaultMinFreeDiskBytes,
		HealthInterval:    30 * time.Second,
		HealthTimeout:     10 * time.Second,
		HealthStartPeriod: 60 * time.Second,
		HealthRetries:     3,
		RollbackEnabled:   true,
	}
}
