package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeMappingsWritesAndCaches(t *testing.T) {
	fx := newFixture(t, fixtureProject)
	cacheDir := t.TempDir()
	output := filepath.Join(fx.Dir, "out", "mappings.tiny")

	first, err := newTestService(t, cacheDir).ComposeMappings(context.Background(), MappingsRequest{ProjectPath: fx.Project, Output: output})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 1, first.Classes)
	assert.Equal(t, []string{"intermediary", "names"}, first.LayerOrder)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "c\tnet/minecraft/class_1\ta\tnet/minecraft/Foo")
	assert.Contains(t, string(data), "\tloomkit-id\t"+first.ID)

	second, err := newTestService(t, cacheDir).ComposeMappings(context.Background(), MappingsRequest{ProjectPath: fx.Project})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.ID, second.ID)
}

func TestComposeMappingsIdentifierFollowsInputs(t *testing.T) {
	fx := newFixture(t, fixtureProject)
	svc := newTestService(t, t.TempDir())
	before, err := svc.ComposeMappings(context.Background(), MappingsRequest{ProjectPath: fx.Project})
	require.NoError(t, err)

	writeFixtureFile(t, filepath.Join(fx.Dir, "names.tiny"), strings.Replace(fixtureNames, "doThing", "doOther", 1))
	after, err := svc.ComposeMappings(context.Background(), MappingsRequest{ProjectPath: fx.Project})
	require.NoError(t, err)
	assert.NotEqual(t, before.ID, after.ID)
	assert.False(t, after.CacheHit)
}

func TestWatchMappingsRecomposesOnChange(t *testing.T) {
	fx := newFixture(t, fixtureProject)
	svc := newTestService(t, t.TempDir())
	svc.Watcher = stubWatcher{changes: []string{filepath.Join(fx.Dir, "names.tiny")}}

	var results []MappingsResult
	err := svc.WatchMappings(context.Background(), MappingsRequest{ProjectPath: fx.Project}, func(result MappingsResult, err error) {
		require.NoError(t, err)
		results = append(results, result)
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, results[0].ID, results[1].ID)
}
