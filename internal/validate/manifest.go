package validate

import (
	"context"
	"fmt"
	"os"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// LoadManifest parses the compose manifest at path. Interpolation is skipped
// because the manifest references gateway secrets that only exist at deploy
// time; the validator cares about structure, not values.
func LoadManifest(ctx context.Context, path, projectName string) (*types.Project, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read compose manifest: %w", err)
	}

	var dict map[string]interface{}
	if err := yaml.Unmarshal(content, &dict); err != nil {
		return nil, fmt.Errorf("compose manifest is not valid YAML: %w", err)
	}
	if dict == nil {
		return nil, fmt.Errorf("compose manifest is empty")
	}

	project, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Filename: path,
				Content:  content,
				Config:   dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName(projectName, false)
		opts.SkipInterpolation = true
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return nil, fmt.Errorf("compose manifest failed to parse: %w", err)
	}
	return project, nil
}

// HasService reports whether the manifest declares the named service.
func HasService(project *types.Project, name string) bool {
	_, ok := project.Services[name]
	return ok
}

// VolumeNames lists the named volumes the manifest declares, for cleanup.
func VolumeNames(project *types.Project) []string {
	names := make([]string, 0, len(project.Volumes))
	for name := range project.Volumes {
		names = append(names, name)
	}
	return names
}
