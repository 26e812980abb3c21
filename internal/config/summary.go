package config

import (
	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// Summary is a redacted view of the snapshot for status output. API keys are
// reported as booleans so status never prints credentials.
type Summary struct {
	ProjectDir    string `yaml:"projectDir"`
	ConfigDir     string `yaml:"configDir"`
	WorkspaceDir  string `yaml:"workspaceDir"`
	ImageName     string `yaml:"imageName"`
	ContainerName string `yaml:"containerName"`
	GatewayPort   int    `yaml:"gatewayPort"`
	GatewayBind   string `yaml:"gatewayBind"`
	HomeVolume    string `yaml:"homeVolume"`
	MinFreeDisk   string `yaml:"minFreeDisk"`

	APIKeys struct {
		Anthropic bool `yaml:"anthropic"`
		OpenAI    bool `yaml:"openai"`
		GoogleAI  bool `yaml:"googleAi"`
		Ollama    bool `yaml:"ollama"`
	} `yaml:"apiKeys"`
}

func (s *Snapshot) Summary() Summary {
	summary := Summary{
		ProjectDir:    s.ProjectDir,
		ConfigDir:     s.ConfigDir,
		WorkspaceDir:  s.WorkspaceDir,
		ImageName:     s.ImageName,
		ContainerName: s.ContainerName,
		GatewayPort:   s.GatewayPort,
		GatewayBind:   s.GatewayBind,
		HomeVolume:    s.HomeVolume,
		MinFreeDisk:   units.BytesSize(float64(s.MinFreeDisk)),
	}
	summary.APIKeys.Anthropic = s.AnthropicAPIKey != ""
	summary.APIKeys.OpenAI = s.OpenAIAPIKey != ""
	summary.APIKeys.GoogleAI = s.GoogleAIAPIKey != ""
	summary.APIKeys.Ollama = s.OllamaBaseURL != ""
	return summary
}

// SummaryYAML renders the redacted summary for verbose status output.
func (s *Snapshot) SummaryYAML() (string, error) {
	out, err := yaml.Marshal(s.Summary())
	if err != nil {
		return "", err
	}
	return string(out), nil
}
