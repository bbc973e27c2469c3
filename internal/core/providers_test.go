package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loomkit/internal/mappings"
	"loomkit/internal/ports"
	"loomkit/internal/types"
)

func providerArchive(t *testing.T) *memArchive {
	t.Helper()
	archive := newMemArchive()
	client, server := sideJars()
	require.NoError(t, archive.Write("client.jar", client))
	require.NoError(t, archive.Write("server.jar", server))
	return archive
}

func providerMappings() ComposedMappings {
	tree := mappings.NewTree(string(types.NamespaceIntermediary))
	for _, names := range [][3]string{
		{"a", "net/minecraft/class_1", "net/minecraft/Shared"},
		{"client/Screen", "net/minecraft/class_2", "net/minecraft/client/Screen"},
	} {
		cls := tree.AddClass(names[1])
		cls.SetName(string(types.NamespaceOfficial), names[0])
		cls.SetName(string(types.NamespaceNamed), names[2])
	}
	return ComposedMappings{ID: "test-mappings", Tree: tree}
}

// ---------------------------------------------------------------------------
// GameJarProvider
// ---------------------------------------------------------------------------

func TestGameJarProviderMerged(t *testing.T) {
	archive := providerArchive(t)
	provider := NewGameJarProvider(archive, "work", types.GameSpec{Version: "1.20.1"}, "client.jar", "server.jar")
	require.NoError(t, provider.Provide(context.Background()))

	jars := provider.GameJars()
	require.Len(t, jars, 1)
	assert.Equal(t, "merged", jars[0].Name)
	assert.Equal(t, "merged.jar", filepath.Base(jars[0].Path))
	assert.Equal(t, filepath.Join("work", "game", "1.20.1"), filepath.Dir(filepath.Dir(jars[0].Path)))
	assert.True(t, archive.Exists(jars[0].Path))
	assert.Empty(t, provider.RemappedJars())

	require.NoError(t, provider.Provide(context.Background()))
	assert.Equal(t, 1, archive.writes[jars[0].Path])
}

func TestGameJarProviderRebuildsWhenInputsChange(t *testing.T) {
	archive := providerArchive(t)
	provider := NewGameJarProvider(archive, "work", types.GameSpec{Version: "1.20.1"}, "client.jar", "server.jar")
	require.NoError(t, provider.Provide(context.Background()))
	before := provider.GameJars()[0].Path

	archive.put("client.jar", map[string][]byte{
		"a.class":             classEntry("a"),
		"client/Screen.class": classEntry("client/Screen"),
		"assets/icon.png":     []byte("png v2"),
	})
	require.NoError(t, provider.Provide(context.Background()))
	after := provider.GameJars()[0].Path

	assert.NotEqual(t, before, after)
	data, ok, err := archive.ReadEntry(after, "assets/icon.png")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "png v2", string(data))

	split := NewGameJarProvider(archive, "work", types.GameSpec{Version: "1.20.1", Variant: types.VariantSplit}, "client.jar", "server.jar")
	require.NoError(t, split.Provide(context.Background()))
	assert.Equal(t, filepath.Dir(after), filepath.Dir(split.GameJars()[0].Path))
}

func TestGameJarProviderMissingClientJar(t *testing.T) {
	archive := providerArchive(t)
	provider := NewGameJarProvider(archive, "work", types.GameSpec{Version: "1.20.1"}, "missing.jar", "server.jar")
	err := provider.Provide(context.Background())
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
}

func TestGameJarProviderSplit(t *testing.T) {
	archive := providerArchive(t)
	provider := NewGameJarProvider(archive, "work", types.GameSpec{Version: "1.20.1", Variant: types.VariantSplit}, "client.jar", "server.jar")
	require.NoError(t, provider.Provide(context.Background()))

	jars := provider.GameJars()
	require.Len(t, jars, 2)
	assert.Equal(t, "common", jars[0].Name)
	assert.Equal(t, "clientOnly", jars[1].Name)
	assert.Equal(t, types.SideClient, jars[1].Side)
}

func TestGameJarProviderServerOnly(t *testing.T) {
	archive := providerArchive(t)
	provider := NewGameJarProvider(archive, "work", types.GameSpec{Version: "1.2.5", Variant: types.VariantServerOnly}, "", "server.jar")
	require.NoError(t, provider.Provide(context.Background()))
	assert.Equal(t, []types.GameJar{{Name: "server", Path: "server.jar", Side: types.SideServer}}, provider.GameJars())
}

func TestGameJarProviderRejectsMergeBeforeSplitJars(t *testing.T) {
	archive := providerArchive(t)
	provider := NewGameJarProvider(archive, "work", types.GameSpec{Version: "1.2.5"}, "client.jar", "server.jar")
	err := provider.Provide(context.Background())
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}

// ---------------------------------------------------------------------------
// MappedProvider / ProcessedProvider
// ---------------------------------------------------------------------------

func TestMappedProviderSplitIsolation(t *testing.T) {
	archive := providerArchive(t)
	game := NewGameJarProvider(archive, "work", types.GameSpec{Version: "1.20.1", Variant: types.VariantSplit}, "client.jar", "server.jar")
	provider := &MappedProvider{
		Parent:   game,
		Remapper: NewRemapper(archive),
		Archive:  archive,
		Mappings: providerMappings(),
		Target:   types.NamespaceNamed,
		OutDir:   "out",
	}
	require.NoError(t, provider.Provide(context.Background()))

	jars := provider.RemappedJars()
	require.Len(t, jars, 2)
	common, clientOnly := jars[0], jars[1]
	assert.Equal(t, types.NamespaceOfficial, common.SourceNamespace)
	assert.Contains(t, clientOnly.Classpath, common.Source)
	assert.True(t, clientOnly.ClientOnly)
	assert.False(t, common.ClientOnly)

	commonNames := archive.entryNames(common.Dest)
	assert.Contains(t, commonNames, "net/minecraft/Shared.class")
	for _, name := range archive.entryNames(clientOnly.Dest) {
		assert.NotContains(t, commonNames, name)
	}

	screen := parseEntry(t, archive, clientOnly.Dest, "net/minecraft/client/Screen.class")
	assert.Equal(t, []string{environmentDesc}, screen.AnnotationTypes("RuntimeInvisibleAnnotations"))
	shared := parseEntry(t, archive, common.Dest, "net/minecraft/Shared.class")
	assert.Empty(t, shared.AnnotationTypes("RuntimeInvisibleAnnotations"))
}

func TestMappedProviderSkipsExistingDest(t *testing.T) {
	archive := providerArchive(t)
	game := NewGameJarProvider(archive, "work", types.GameSpec{Version: "1.20.1"}, "client.jar", "server.jar")
	provider := &MappedProvider{
		Parent:   game,
		Remapper: NewRemapper(archive),
		Archive:  archive,
		Mappings: providerMappings(),
		Target:   types.NamespaceNamed,
		OutDir:   "out",
	}
	require.NoError(t, provider.Provide(context.Background()))
	require.NoError(t, provider.Provide(context.Background()))
	dest := provider.RemappedJars()[0].Dest
	assert.Equal(t, 1, archive.writes[dest])
}

func TestProcessedProviderWrapsParent(t *testing.T) {
	archive := providerArchive(t)
	game := NewGameJarProvider(archive, "work", types.GameSpec{Version: "1.20.1"}, "client.jar", "server.jar")
	mapped := &MappedProvider{
		Parent:   game,
		Remapper: NewRemapper(archive),
		Archive:  archive,
		Mappings: providerMappings(),
		Target:   types.NamespaceNamed,
		OutDir:   "out",
	}
	step := &countingProcessor{name: "touch", fingerprint: "1"}
	processed := &ProcessedProvider{Parent: mapped, Archive: archive, Processors: []ports.JarProcessor{step}}
	require.NoError(t, processed.Provide(context.Background()))

	jars := processed.RemappedJars()
	require.Len(t, jars, 1)
	assert.Equal(t, mapped.RemappedJars()[0].Dest, jars[0].Source)
	assert.Contains(t, archive.entryNames(jars[0].Dest), "processed/touch")
	assert.Equal(t, game.GameJars(), processed.GameJars())
}

func TestProcessedProviderRejectsNamespaceMismatch(t *testing.T) {
	archive := providerArchive(t)
	game := NewGameJarProvider(archive, "work", types.GameSpec{Version: "1.20.1"}, "client.jar", "server.jar")
	mapped := &MappedProvider{
		Parent:   game,
		Remapper: NewRemapper(archive),
		Archive:  archive,
		Mappings: providerMappings(),
		Target:   types.NamespaceNamed,
		OutDir:   "out",
	}
	widener, err := NewAccessWidenerProcessor([]ProcessorInput{{Path: "x", Data: []byte("accessWidener\tv1\tintermediary\n")}})
	require.NoError(t, err)
	processed := &ProcessedProvider{Parent: mapped, Archive: archive, Processors: []ports.JarProcessor{widener}}
	err = processed.Provide(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects intermediary names")
}
