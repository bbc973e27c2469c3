package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"loomkit/internal/config"
)

const fixtureIntermediary = "tiny\t2\t0\tofficial\tintermediary\n" +
	"c\ta\tnet/minecraft/class_1\n" +
	"\tm\t(I)V\tb\tmethod_1\n" +
	"\tf\tI\tc\tfield_1\n"

const fixtureNames = "tiny\t2\t0\tintermediary\tnamed\n" +
	"c\tnet/minecraft/class_1\tnet/minecraft/Foo\n" +
	"\tm\t(I)V\tmethod_1\tdoThing\n"

const fixtureProject = `name: example
game:
  version: "1.20.1"
mappings:
  layers:
    - id: names
      kind: file
      path: names.tiny
    - kind: intermediary
      path: intermediary.jar
processors:
  - kind: access-widener
    paths: [example.accesswidener]
`

const fixtureWidener = "accessWidener\tv2\tnamed\n" +
	"accessible\tclass\tnet/minecraft/Foo\n" +
	"transitive-accessible\tmethod\tnet/minecraft/Foo\tdoThing\t(I)V\n"

type fixture struct {
	Dir     string
	Project string
}

func writeFixtureFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newFixture(t *testing.T, project string) fixture {
	t.Helper()
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "intermediary.jar"))
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("mappings/mappings.tiny")
	require.NoError(t, err)
	_, err = w.Write([]byte(fixtureIntermediary))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	writeFixtureFile(t, filepath.Join(dir, "names.tiny"), fixtureNames)
	writeFixtureFile(t, filepath.Join(dir, "example.accesswidener"), fixtureWidener)
	writeFixtureFile(t, filepath.Join(dir, "loomkit.yaml"), project)
	return fixture{Dir: dir, Project: filepath.Join(dir, "loomkit.yaml")}
}

func newTestService(t *testing.T, cacheDir string) Service {
	t.Helper()
	return NewService(config.Config{
		CacheDir: cacheDir,
		WorkDir:  filepath.Join(t.TempDir(), "work"),
		Threads:  2,
	})
}

type stubWatcher struct {
	changes []string
}

func (w stubWatcher) Watch(_ context.Context, _ []string, onChange func(path string)) error {
	for _, path := range w.changes {
		onChange(path)
	}
	return nil
}
