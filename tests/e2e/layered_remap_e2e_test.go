package e2e

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loomkit/internal/adapters"
	"loomkit/internal/app"
	"loomkit/internal/classfile"
	"loomkit/internal/config"
	"loomkit/internal/types"
	"loomkit/tests/testutil"
)

const seedMappings = "tiny\t2\t0\tofficial\tintermediary\n" +
	"c\ta/b/c\tnet/minecraft/Foo\n" +
	"\tm\t(I)V\tmethod_1\tmethodBar\n"

const overrideMappings = "tiny\t2\t0\tintermediary\tnamed\n" +
	"c\tnet/minecraft/Foo\tnet/minecraft/Foo\n" +
	"\tm\t(I)V\tmethodBar\tdoThing\n"

const parameterOverlay = `{"version":"1.0.0","classes":[{"name":"net/minecraft/Foo","methods":[` +
	`{"name":"doThing","descriptor":"(I)V","parameters":[{"index":0,"name":"pValue"}]}]}]}`

const projectFile = `api_version: loomkit/v1
name: e2e
game:
  version: "1.20.1"
  client: game.jar
  server: game.jar
mappings:
  layers:
    - kind: intermediary
      path: intermediary.jar
    - id: overrides
      kind: file
      path: overrides.tiny
    - kind: parchment
      path: parameters.json
      remove_prefix: true
`

type workspace struct {
	Dir     string
	Project string
	GameJar string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteJar(t, filepath.Join(dir, "intermediary.jar"), map[string][]byte{
		"mappings/mappings.tiny": []byte(seedMappings),
	})

	class := classfile.NewBuilder("a/b/c", "java/lang/Object").SourceFile("c.java")
	class.Method(classfile.AccPublic|classfile.AccStatic, "method_1", "(I)V").
		Local(0, "var0", "I").
		Line(0, 12)
	testutil.WriteJar(t, filepath.Join(dir, "game.jar"), map[string][]byte{
		"a/b/c.class": class.MustBuild(),
	})

	for name, content := range map[string]string{
		"overrides.tiny":  overrideMappings,
		"parameters.json": parameterOverlay,
		"loomkit.yaml":    projectFile,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return workspace{
		Dir:     dir,
		Project: filepath.Join(dir, "loomkit.yaml"),
		GameJar: filepath.Join(dir, "game.jar"),
	}
}

func newService(t *testing.T) app.Service {
	t.Helper()
	root := t.TempDir()
	return app.NewService(config.Config{
		CacheDir: filepath.Join(root, "cache"),
		WorkDir:  filepath.Join(root, "work"),
		Threads:  2,
		Offline:  true,
	})
}

func readClass(t *testing.T, jar string, name string) *classfile.Class {
	t.Helper()
	data, ok, err := adapters.NewJarArchiveAdapter().ReadEntry(jar, name)
	require.NoError(t, err)
	require.True(t, ok, "missing %s in %s", name, jar)
	c, err := classfile.Parse(data)
	require.NoError(t, err)
	return c
}

func assertNamedFoo(t *testing.T, jar string) {
	t.Helper()
	c := readClass(t, jar, "net/minecraft/Foo.class")
	assert.Equal(t, "net/minecraft/Foo", c.Name())
	method := c.FindMethod("doThing", "(I)V")
	require.NotNil(t, method)
	locals := c.LocalVariables(method)
	require.NotEmpty(t, locals)
	assert.Equal(t, "value", locals[0].Name)
	assert.Equal(t, "Foo.java", c.SourceFile())
}

// ----------------------------------------------------------------------------
// Layered composition applied to jars
// ----------------------------------------------------------------------------

func TestThreeLayerRemapE2E(t *testing.T) {
	ws := newWorkspace(t)
	service := newService(t)
	out := filepath.Join(ws.Dir, "out", "named.jar")

	result, err := service.Remap(context.Background(), app.RemapRequest{
		ProjectPath: ws.Project,
		Input:       ws.GameJar,
		Output:      out,
		From:        types.NamespaceOfficial,
		To:          types.NamespaceNamed,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Classes)
	assert.NotEmpty(t, result.MappingsID)
	assertNamedFoo(t, out)
}

func TestSetupProducesNamedGameJarE2E(t *testing.T) {
	ws := newWorkspace(t)
	service := newService(t)

	result, err := service.Setup(context.Background(), app.SetupRequest{
		ProjectPath: ws.Project,
		Target:      types.NamespaceNamed,
	})
	require.NoError(t, err)
	require.Len(t, result.Jars, 1)
	assert.Equal(t, "merged", result.Jars[0].Name)
	assertNamedFoo(t, result.Jars[0].Dest)

	again, err := service.Setup(context.Background(), app.SetupRequest{ProjectPath: ws.Project})
	require.NoError(t, err)
	assert.Equal(t, result.MappingsID, again.MappingsID)
	assert.Equal(t, result.Jars[0].Dest, again.Jars[0].Dest)
}

func TestValidateCommandE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping go run e2e in short mode")
	}
	ws := newWorkspace(t)
	root := testutil.RepoRoot(t)

	cmd := exec.Command("go", "run", "./cmd/loomkit", "validate",
		"--project", ws.Project,
		"--cache-dir", filepath.Join(ws.Dir, "cache"),
		"--work-dir", filepath.Join(ws.Dir, "work"),
	)
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "GO111MODULE=on")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	assert.Contains(t, string(out), "project e2e")
	assert.Contains(t, string(out), "intermediary -> overrides -> parchment")
}
