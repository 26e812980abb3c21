package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/go-viper/mapstructure/v2"
	"github.com/jinzhu/copier"
	"github.com/joho/godotenv"
	kjson "github.com/knadh/koanf/parsers/json"
	ktoml "github.com/knadh/koanf/parsers/toml"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/openclaw/openclaw-deploy/internal/constants"
)

var defaultMinFreeDiskBytes, _ = units.RAMInBytes(constants.DefaultMinFreeDisk)

// fileConfig is the schema of the optional openclaw.{yaml,toml,json} file.
// Pointer fields distinguish "unset" from zero values so later layers only
// override what the file actually provides.
type fileConfig struct {
	ConfigDir       *string          `yaml:"configDir" toml:"configDir" json:"configDir"`
	WorkspaceDir    *string          `yaml:"workspaceDir" toml:"workspaceDir" json:"workspaceDir"`
	ImageName       *string          `yaml:"imageName" toml:"imageName" json:"imageName"`
	ServiceName     *string          `yaml:"serviceName" toml:"serviceName" json:"serviceName"`
	ContainerName   *string          `yaml:"containerName" toml:"containerName" json:"containerName"`
	HomeVolume      *string          `yaml:"homeVolume" toml:"homeVolume" json:"homeVolume"`
	GatewayPort     *int             `yaml:"gatewayPort" toml:"gatewayPort" json:"gatewayPort"`
	GatewayBind     *string          `yaml:"gatewayBind" toml:"gatewayBind" json:"gatewayBind"`
	GatewayToken    *string          `yaml:"gatewayToken" toml:"gatewayToken" json:"gatewayToken"`
	AnthropicAPIKey *string          `yaml:"anthropicApiKey" toml:"anthropicApiKey" json:"anthropicApiKey"`
	OpenAIAPIKey    *string          `yaml:"openaiApiKey" toml:"openaiApiKey" json:"openaiApiKey"`
	GoogleAIAPIKey  *string          `yaml:"googleAiApiKey" toml:"googleAiApiKey" json:"googleAiApiKey"`
	OllamaBaseURL   *string          `yaml:"ollamaBaseUrl" toml:"ollamaBaseUrl" json:"ollamaBaseUrl"`
	AptPackages     *string          `yaml:"aptPackages" toml:"aptPackages" json:"aptPackages"`
	MinFreeDisk     *string          `yaml:"minFreeDisk" toml:"minFreeDisk" json:"minFreeDisk"`
	HealthCheck     *fileHealthCheck `yaml:"healthCheck" toml:"healthCheck" json:"healthCheck"`
}

type fileHealthCheck struct {
	Interval    *time.Duration `yaml:"interval" toml:"interval" json:"interval"`
	Timeout     *time.Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
	StartPeriod *time.Duration `yaml:"startPeriod" toml:"startPeriod" json:"startPeriod"`
	Retries     *int           `yaml:"retries" toml:"retries" json:"retries"`
}

// Overrides carries explicit values from the command line, the highest
// precedence layer.
type Overrides struct {
	GatewayToken    string
	AnthropicAPIKey string
	RollbackEnabled *bool
}

// ResolveOptions names the inputs of one resolution.
type ResolveOptions struct {
	ProjectDir string
	ConfigFile string // explicit path; empty means discover in the project dir
	Overrides  Overrides
}

// Resolve merges defaults, the optional config file, the optional .env file
// at the project directory and explicit overrides into one immutable
// snapshot. Later layers strictly override earlier ones. Resolve has no side
// effects on the host.
func Resolve(opts ResolveOptions) (*Snapshot, error) {
	projectDir := opts.ProjectDir
	if projectDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, &Error{Msg: "cannot determine working directory", Err: err}
		}
		projectDir = cwd
	}
	absProject, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, &Error{Msg: fmt.Sprintf("invalid project directory %q", projectDir), Err: err}
	}

	defaults := Defaults(absProject)

	// Copy before layering so the default layer is never mutated.
	snap := &Snapshot{}
	if err := copier.Copy(snap, &defaults); err != nil {
		return nil, &Error{Msg: "failed to copy default configuration", Err: err}
	}

	configFile, err := findConfigFile(absProject, opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if configFile != "" {
		fc, err := parseConfigFile(configFile)
		if err != nil {
			return nil, err
		}
		applyFileConfig(snap, fc)
	}

	if err := applyEnvFile(snap, filepath.Join(absProject, constants.EnvFileName)); err != nil {
		return nil, err
	}

	applyOverrides(snap, opts.Overrides)

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

var (
	supportedExtensions  = []string{".json", ".yaml", ".yml", ".toml"}
	supportedConfigNames = []string{"openclaw.json", "openclaw.yaml", "openclaw.yml", "openclaw.toml"}
)

// findConfigFile returns the config file to load, or "" when none exists and
// none was explicitly requested. An explicitly requested file must exist.
func findConfigFile(projectDir, explicit string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", &Error{Msg: fmt.Sprintf("invalid config path %q", explicit), Err: err}
		}
		if _, err := os.Stat(abs); err != nil {
			return "", configError("config file does not exist: %s", abs)
		}
		if !slices.Contains(supportedExtensions, filepath.Ext(abs)) {
			return "", configError("config file %s must be .json, .yaml, .yml or .toml", abs)
		}
		return abs, nil
	}

	for _, name := range supportedConfigNames {
		candidate := filepath.Join(projectDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

func configFormat(path string) (string, koanf.Parser, error) {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return "yaml", kyaml.Parser(), nil
	case ".toml":
		return "toml", ktoml.Parser(), nil
	case ".json":
		return "json", kjson.Parser(), nil
	}
	return "", nil, configError("unsupported config file extension: %s", filepath.Ext(path))
}

func parseConfigFile(path string) (*fileConfig, error) {
	format, parser, err := configFormat(path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, &Error{Msg: fmt.Sprintf("failed to load config file %s", path), Err: err}
	}

	if err := checkUnknownKeys(reflect.TypeOf(fileConfig{}), k.Keys(), format); err != nil {
		return nil, err
	}

	var fc fileConfig
	decoderConfig := &mapstructure.DecoderConfig{
		TagName:    format,
		Result:     &fc,
		DecodeHook: durationDecodeHook(),
	}
	unmarshalConf := koanf.UnmarshalConf{
		Tag:           format,
		DecoderConfig: decoderConfig,
	}
	if err := k.UnmarshalWithConf("", &fc, unmarshalConf); err != nil {
		return nil, &Error{Msg: fmt.Sprintf("failed to parse config file %s", path), Err: err}
	}
	return &fc, nil
}

// durationDecodeHook accepts durations either as Go duration strings ("30s")
// or as bare integers meaning seconds, matching the original file format.
func durationDecodeHook() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				// Allow plain numbers in string form too.
				if secs, convErr := strconv.Atoi(v); convErr == nil {
					return time.Duration(secs) * time.Second, nil
				}
				return nil, fmt.Errorf("invalid duration %q: %w", v, err)
			}
			return d, nil
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		default:
			return nil, fmt.Errorf("duration must be a string or number, got %T", data)
		}
	}
}

// checkUnknownKeys rejects config-file keys that have no corresponding field,
// so typos fail loudly instead of being silently ignored.
func checkUnknownKeys(t reflect.Type, keys []string, tag string) error {
	allowed := map[string]bool{}
	collectTagPaths(t, tag, "", allowed)

	var unknown []string
	for _, key := range keys {
		if !allowed[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		return configError("unknown config field(s): %s", strings.Join(unknown, ", "))
	}
	return nil
}

func collectTagPaths(t reflect.Type, tag, prefix string, out map[string]bool) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := strings.Split(field.Tag.Get(tag), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		out[path] = true

		ft := field.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft != reflect.TypeOf(time.Duration(0)) {
			collectTagPaths(ft, tag, path, out)
		}
	}
}

func applyFileConfig(snap *Snapshot, fc *fileConfig) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&snap.ConfigDir, fc.ConfigDir)
	setString(&snap.WorkspaceDir, fc.WorkspaceDir)
	setString(&snap.ImageName, fc.ImageName)
	setString(&snap.ServiceName, fc.ServiceName)
	setString(&snap.ContainerName, fc.ContainerName)
	setString(&snap.HomeVolume, fc.HomeVolume)
	setString(&snap.GatewayBind, fc.GatewayBind)
	setString(&snap.GatewayToken, fc.GatewayToken)
	setString(&snap.AnthropicAPIKey, fc.AnthropicAPIKey)
	setString(&snap.OpenAIAPIKey, fc.OpenAIAPIKey)
	setString(&snap.GoogleAIAPIKey, fc.GoogleAIAPIKey)
	setString(&snap.OllamaBaseURL, fc.OllamaBaseURL)
	setString(&snap.AptPackages, fc.AptPackages)
	if fc.GatewayPort != nil {
		snap.GatewayPort = *fc.GatewayPort
	}
	if fc.MinFreeDisk != nil {
		if bytes, err := units.RAMInBytes(*fc.MinFreeDisk); err == nil {
			snap.MinFreeDisk = bytes
		}
	}
	if hc := fc.HealthCheck; hc != nil {
		if hc.Interval != nil {
			snap.HealthInterval = *hc.Interval
		}
		if hc.Timeout != nil {
			snap.HealthTimeout = *hc.Timeout
		}
		if hc.StartPeriod != nil {
			snap.HealthStartPeriod = *hc.StartPeriod
		}
		if hc.Retries != nil {
			snap.HealthRetries = *hc.Retries
		}
	}
}

// applyEnvFile layers the project .env file onto the snapshot. Unknown keys
// are preserved for the compose tool but ignored here; blank values never
// override earlier layers.
func applyEnvFile(snap *Snapshot, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return &Error{Msg: fmt.Sprintf("failed to read env file %s", path), Err: err}
	}

	set := func(dst *string, key string) {
		if v, ok := values[key]; ok && v != "" {
			*dst = v
		}
	}
	set(&snap.GatewayToken, constants.EnvVarGatewayToken)
	set(&snap.GatewayBind, constants.EnvVarGatewayBind)
	set(&snap.AnthropicAPIKey, constants.EnvVarAnthropicKey)
	set(&snap.OpenAIAPIKey, constants.EnvVarOpenAIKey)
	set(&snap.GoogleAIAPIKey, constants.EnvVarGoogleAIKey)
	set(&snap.OllamaBaseURL, constants.EnvVarOllamaURL)
	set(&snap.AptPackages, constants.EnvVarAptPackages)
	set(&snap.HomeVolume, constants.EnvVarHomeVolume)
	return nil
}

func applyOverrides(snap *Snapshot, o Overrides) {
	if o.GatewayToken != "" {
		snap.GatewayToken = o.GatewayToken
	}
	if o.AnthropicAPIKey != "" && snap.AnthropicAPIKey == "" {
		snap.AnthropicAPIKey = o.AnthropicAPIKey
	}
	if o.RollbackEnabled != nil {
		snap.RollbackEnabled = *o.RollbackEnabled
	}
}
