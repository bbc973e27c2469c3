package core

import (
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loomkit/internal/ports"
	"loomkit/internal/types"
)

const intermediaryTiny = "tiny\t2\t0\tofficial\tintermediary\n" +
	"c\ta\tnet/minecraft/class_1\n" +
	"\tm\t(I)V\tb\tmethod_1\n" +
	"\tf\tI\tc\tfield_1\n" +
	"c\td\tnet/minecraft/class_2\n"

const namedTiny = "tiny\t2\t0\tintermediary\tnamed\n" +
	"c\tnet/minecraft/class_1\tnet/minecraft/Foo\n" +
	"\tm\t(I)V\tmethod_1\tmethodBar\n"

func intermediaryLayer() *tinyLayer {
	return &tinyLayer{
		id:      "intermediary",
		kind:    types.LayerKindIntermediary,
		src:     types.NamespaceIntermediary,
		content: intermediaryTiny,
	}
}

func namedLayer(id string, content string) *tinyLayer {
	return &tinyLayer{
		id:      id,
		kind:    types.LayerKindFile,
		src:     types.NamespaceIntermediary,
		deps:    []types.LayerKind{types.LayerKindIntermediary},
		dupes:   true,
		content: content,
	}
}

func layerIDs(layers []ports.MappingLayer) []string {
	ids := make([]string, 0, len(layers))
	for _, l := range layers {
		ids = append(ids, l.ID())
	}
	return ids
}

// ---------------------------------------------------------------------------
// SortLayers
// ---------------------------------------------------------------------------

func TestSortLayersPutsDependenciesFirst(t *testing.T) {
	named := namedLayer("named", namedTiny)
	sorted, err := SortLayers([]ports.MappingLayer{named, intermediaryLayer()})
	require.NoError(t, err)
	assert.Equal(t, []string{"intermediary", "named"}, layerIDs(sorted))
}

func TestSortLayersKeepsConfigurationOrderForTies(t *testing.T) {
	first := namedLayer("first", namedTiny)
	second := namedLayer("second", namedTiny)
	third := namedLayer("third", namedTiny)
	sorted, err := SortLayers([]ports.MappingLayer{first, second, intermediaryLayer(), third})
	require.NoError(t, err)
	assert.Equal(t, []string{"intermediary", "first", "second", "third"}, layerIDs(sorted))
}

func TestSortLayersMissingDependency(t *testing.T) {
	_, err := SortLayers([]ports.MappingLayer{namedLayer("named", namedTiny)})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "requires a intermediary layer")
}

func TestSortLayersCycle(t *testing.T) {
	a := &tinyLayer{id: "a", kind: "a", deps: []types.LayerKind{"b"}}
	b := &tinyLayer{id: "b", kind: "b", deps: []types.LayerKind{"a"}}
	_, err := SortLayers([]ports.MappingLayer{a, b})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "depend on each other")
}

func TestSortLayersRejectsDuplicateSingletonKind(t *testing.T) {
	_, err := SortLayers([]ports.MappingLayer{intermediaryLayer(), intermediaryLayer()})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeAlreadyExists, errbuilder.CodeOf(err))
}

// ---------------------------------------------------------------------------
// MergedIdentifier
// ---------------------------------------------------------------------------

func TestMergedIdentifierIsStable(t *testing.T) {
	layers := []ports.MappingLayer{intermediaryLayer(), namedLayer("named", namedTiny)}
	first, err := MergedIdentifier(layers)
	require.NoError(t, err)
	second, err := MergedIdentifier([]ports.MappingLayer{intermediaryLayer(), namedLayer("named", namedTiny)})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestMergedIdentifierChangesWithContent(t *testing.T) {
	base, err := MergedIdentifier([]ports.MappingLayer{intermediaryLayer(), namedLayer("named", namedTiny)})
	require.NoError(t, err)

	changed, err := MergedIdentifier([]ports.MappingLayer{
		intermediaryLayer(),
		namedLayer("named", namedTiny+"c\tnet/minecraft/class_2\tnet/minecraft/Bar\n"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)
}

func TestMergedIdentifierChangesWithOrder(t *testing.T) {
	a := namedLayer("a", namedTiny)
	b := namedLayer("b", "tiny\t2\t0\tintermediary\tnamed\n")
	ab, err := MergedIdentifier([]ports.MappingLayer{a, b})
	require.NoError(t, err)
	ba, err := MergedIdentifier([]ports.MappingLayer{b, a})
	require.NoError(t, err)
	assert.NotEqual(t, ab, ba)
}

// ---------------------------------------------------------------------------
// LayerRegistry
// ---------------------------------------------------------------------------

func TestLayerRegistryUnknownKind(t *testing.T) {
	registry := NewLayerRegistry()
	_, err := registry.Create(types.LayerSpec{Kind: "yarn"}, LayerEnv{})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "unknown mapping layer kind")
}

func TestLayerRegistryCreatesRegisteredKind(t *testing.T) {
	registry := NewLayerRegistry()
	registry.Register(types.LayerKindIntermediary, func(spec types.LayerSpec, env LayerEnv) (ports.MappingLayer, error) {
		layer := intermediaryLayer()
		layer.id = spec.ID
		return layer, nil
	})
	layer, err := registry.Create(types.LayerSpec{ID: "int", Kind: types.LayerKindIntermediary}, LayerEnv{GameVersion: "1.20.1"})
	require.NoError(t, err)
	assert.Equal(t, "int", layer.ID())
	assert.Equal(t, []types.LayerKind{types.LayerKindIntermediary}, registry.Kinds())
}

func TestLayerRegistryChecksRequires(t *testing.T) {
	registry := NewLayerRegistry()
	registry.Register(types.LayerKindIntermediary, func(types.LayerSpec, LayerEnv) (ports.MappingLayer, error) {
		return intermediaryLayer(), nil
	})
	spec := types.LayerSpec{Kind: types.LayerKindIntermediary, Requires: ">=1.20"}

	_, err := registry.Create(spec, LayerEnv{GameVersion: "1.20.1"})
	require.NoError(t, err)

	_, err = registry.Create(spec, LayerEnv{GameVersion: "1.19.4"})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}
