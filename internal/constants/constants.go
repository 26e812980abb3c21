package constants

import "os"

const (
	Version = "0.1.0"

	AppName = "openclaw-deploy"

	// Docker artifact names. The compose manifest is the source of truth for
	// the service name; these are the fallbacks when it cannot be parsed.
	DefaultImageName     = "openclaw:local"
	GatewayServiceName   = "openclaw-gateway"
	GatewayContainerName = "openclaw-gateway"
	DefaultHomeVolume    = "openclaw-home"

	DefaultGatewayPort = 18789
	DefaultGatewayBind = "lan"

	// Required project files checked before any mutation.
	DockerfileName     = "Dockerfile"
	ComposeFileName    = "docker-compose.yml"
	EnvFileName        = ".env"
	EnvExampleFileName = ".env.example"

	// Minimum free disk space required for an image build.
	DefaultMinFreeDisk = "5GiB"

	HistoryDBFileName = "history.db"
	LogsDirName       = "logs"

	// Environment variable names recognized in the .env file.
	EnvVarGatewayToken = "OPENCLAW_GATEWAY_TOKEN"
	EnvVarGatewayBind  = "OPENCLAW_GATEWAY_BIND"
	EnvVarAnthropicKey = "ANTHROPIC_API_KEY"
	EnvVarOpenAIKey    = "OPENAI_API_KEY"
	EnvVarGoogleAIKey  = "GOOGLE_AI_API_KEY"
	EnvVarOllamaURL    = "OLLAMA_BASE_URL"
	EnvVarAptPackages  = "OPENCLAW_DOCKER_APT_PACKAGES"
	EnvVarHomeVolume   = "OPENCLAW_HOME_VOLUME"
)

// File and directory permissions
const (
	ModeFileSecret  os.FileMode = 0o600 // secrets: .env, tokens
	ModeFileDefault os.FileMode = 0o644 // non-secret configs
	ModeDirPrivate  os.FileMode = 0o700 // config dir
	ModeDirDefault  os.FileMode = 0o755 // workspace dir
)
