package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loomkit/internal/types"
)

const projectYAML = `api_version: loomkit/v1
name: example
game:
  version: "1.20.1"
  variant: split
mappings:
  layers:
    - kind: intermediary
      path: intermediary.jar
    - kind: parchment
      path: parchment.zip
      remove_prefix: true
processors:
  - kind: access-widener
    paths: [example.accesswidener]
decompiler:
  command: [java, -jar, vineflower.jar, "{input}", "{output}"]
  threads: 2
`

const projectTOML = `api_version = "loomkit/v1"
name = "example"

[game]
version = "1.20.1"
variant = "split"

[[mappings.layers]]
kind = "intermediary"
path = "intermediary.jar"

[[mappings.layers]]
kind = "parchment"
path = "parchment.zip"
remove_prefix = true

[[processors]]
kind = "access-widener"
paths = ["example.accesswidener"]

[decompiler]
command = ["java", "-jar", "vineflower.jar", "{input}", "{output}"]
threads = 2
`

func TestProjectFileFormatsAgree(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "loomkit.yaml")
	tomlPath := filepath.Join(dir, "loomkit.toml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(projectYAML), 0o644))
	require.NoError(t, os.WriteFile(tomlPath, []byte(projectTOML), 0o644))

	adapter := NewProjectFileAdapter()
	fromYAML, err := adapter.LoadProject(yamlPath)
	require.NoError(t, err)
	fromTOML, err := adapter.LoadProject(tomlPath)
	require.NoError(t, err)

	if diff := cmp.Diff(fromYAML, fromTOML); diff != "" {
		t.Fatalf("yaml and toml projects differ (-yaml +toml):\n%s", diff)
	}
	assert.Equal(t, types.VariantSplit, fromYAML.Game.Variant)
	require.Len(t, fromYAML.Mappings.Layers, 2)
	assert.True(t, fromYAML.Mappings.Layers[1].RemovePrefix)
	assert.Equal(t, 2, fromYAML.Decompiler.Threads)
}

func TestProjectFileDefaultsVariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loomkit.yml")
	require.NoError(t, os.WriteFile(path, []byte("game:\n  version: \"1.20.1\"\nmappings:\n  layers:\n    - kind: intermediary\n      path: i.jar\n"), 0o644))
	project, err := NewProjectFileAdapter().LoadProject(path)
	require.NoError(t, err)
	assert.Equal(t, types.VariantMerged, project.Game.Variant)
}

func TestProjectFileErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
		code    errbuilder.ErrCode
	}{
		{name: "missing", file: "absent.yaml", code: errbuilder.CodeNotFound},
		{name: "malformed", file: "bad.yaml", content: "game: [", code: errbuilder.CodeInvalidArgument},
		{name: "unknown field", file: "unknown.yaml", content: "game:\n  version: \"1\"\n  colour: red\n", code: errbuilder.CodeInvalidArgument},
		{name: "no version", file: "nover.yaml", content: "mappings:\n  layers:\n    - kind: intermediary\n", code: errbuilder.CodeInvalidArgument},
		{name: "no layers", file: "nolayers.toml", content: "[game]\nversion = \"1.20.1\"\n", code: errbuilder.CodeInvalidArgument},
		{name: "bad variant", file: "variant.yaml", content: "game:\n  version: \"1\"\n  variant: both\nmappings:\n  layers:\n    - kind: intermediary\n", code: errbuilder.CodeInvalidArgument},
		{name: "bad api version", file: "api.yaml", content: "api_version: loomkit/v9\ngame:\n  version: \"1\"\n", code: errbuilder.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if tt.content != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			}
			_, err := NewProjectFileAdapter().LoadProject(path)
			require.Error(t, err)
			assert.Equal(t, tt.code, errbuilder.CodeOf(err))
		})
	}
}
