package adapters

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"loomkit/internal/core"
	"loomkit/internal/ports"
	"loomkit/internal/types"
)

const projectAPIVersion = "loomkit/v1"

// ProjectFileAdapter loads project files. The format follows the file
// extension: .toml is TOML, anything else YAML.
type ProjectFileAdapter struct{}

func NewProjectFileAdapter() ProjectFileAdapter {
	return ProjectFileAdapter{}
}

func (a ProjectFileAdapter) LoadProject(path string) (types.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Project{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("project file %s not found", path)).
			WithCause(err)
	}
	var project types.Project
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&project); err != nil {
			return types.Project{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to parse project toml").
				WithCause(err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&project); err != nil {
			return types.Project{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to parse project yaml").
				WithCause(err)
		}
	}
	if err := normalizeProject(&project); err != nil {
		return types.Project{}, err
	}
	return project, nil
}

func normalizeProject(project *types.Project) error {
	if project.APIVersion != "" && project.APIVersion != projectAPIVersion {
		return invalidProject("unsupported api_version %q", project.APIVersion)
	}
	if strings.TrimSpace(project.Game.Version) == "" {
		return invalidProject("game.version is required")
	}
	switch project.Game.Variant {
	case "":
		project.Game.Variant = types.VariantMerged
	case types.VariantMerged, types.VariantSplit, types.VariantServerOnly:
	default:
		return invalidProject("unknown game.variant %q", project.Game.Variant)
	}
	if len(project.Mappings.Layers) == 0 {
		return invalidProject("mappings.layers is empty")
	}
	for i, layer := range project.Mappings.Layers {
		if strings.TrimSpace(string(layer.Kind)) == "" {
			return invalidProject("mappings.layers[%d] has no kind", i)
		}
	}
	for i, processor := range project.Processors {
		if strings.TrimSpace(string(processor.Kind)) == "" {
			return invalidProject("processors[%d] has no kind", i)
		}
	}
	return nil
}

func invalidProject(format string, args ...any) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg("invalid project: " + fmt.Sprintf(format, args...))
}

var _ ports.ProjectPort = ProjectFileAdapter{}

// ProjectFileLoader resolves processor input paths against baseDir.
func ProjectFileLoader(baseDir string) core.FileLoader {
	return func(path string) ([]byte, error) {
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		return os.ReadFile(path)
	}
}
