package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loomkit/internal/types"
)

func TestRemapAccessWidenerToIntermediary(t *testing.T) {
	fx := newFixture(t, fixtureProject)
	output := filepath.Join(fx.Dir, "out.accesswidener")

	aw, err := newTestService(t, t.TempDir()).RemapAccessWidener(context.Background(), AccessWidenerRemapRequest{
		ProjectPath: fx.Project,
		Input:       filepath.Join(fx.Dir, "example.accesswidener"),
		Output:      output,
	})
	require.NoError(t, err)
	assert.Equal(t, types.NamespaceIntermediary, aw.Namespace)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	want := "accessWidener\tv2\tintermediary\n" +
		"accessible\tclass\tnet/minecraft/class_1\n" +
		"transitive-accessible\tmethod\tnet/minecraft/class_1\tmethod_1\t(I)V\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Fatalf("unexpected access widener (-want +got):\n%s", diff)
	}
}

func TestMergeAccessWideners(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.accesswidener")
	second := filepath.Join(dir, "b.accesswidener")
	writeFixtureFile(t, first, "accessWidener\tv1\tnamed\naccessible\tclass\tnet/minecraft/Foo\n")
	writeFixtureFile(t, second, "accessWidener\tv1\tnamed\naccessible\tclass\tnet/minecraft/Foo\nmutable\tfield\tnet/minecraft/Foo\tcount\tI\n")

	merged, err := newTestService(t, t.TempDir()).MergeAccessWideners(context.Background(), AccessWidenerMergeRequest{
		Inputs: []string{first, second},
		Output: filepath.Join(dir, "merged.accesswidener"),
	})
	require.NoError(t, err)
	assert.Len(t, merged.Entries, 2)
	assert.FileExists(t, filepath.Join(dir, "merged.accesswidener"))
}

func TestMergeAccessWidenersRejectsMixedNamespaces(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.accesswidener")
	second := filepath.Join(dir, "b.accesswidener")
	writeFixtureFile(t, first, "accessWidener\tv1\tnamed\naccessible\tclass\tnet/minecraft/Foo\n")
	writeFixtureFile(t, second, "accessWidener\tv1\tintermediary\naccessible\tclass\tnet/minecraft/class_1\n")

	_, err := newTestService(t, t.TempDir()).MergeAccessWideners(context.Background(), AccessWidenerMergeRequest{
		Inputs: []string{first, second},
		Output: filepath.Join(dir, "merged.accesswidener"),
	})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
	assert.NoFileExists(t, filepath.Join(dir, "merged.accesswidener"))
}
