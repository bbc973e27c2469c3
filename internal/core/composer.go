package core

import (
	"context"
	"fmt"
	"sort"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"loomkit/internal/descriptor"
	"loomkit/internal/mappings"
	"loomkit/internal/ports"
	"loomkit/internal/shared"
	"loomkit/internal/types"
)

// ComposedMappings is the result of merging all configured layers.
type ComposedMappings struct {
	ID             string
	Tree           *mappings.Tree
	LayerOrder     []string
	SignatureFixes map[string]string
	CacheHit       bool
}

type LayeredComposer struct {
	Registry *LayerRegistry
	Env      LayerEnv
	Cache    ports.MappingCachePort
	Memo     *shared.Cache
}

func NewLayeredComposer(registry *LayerRegistry, env LayerEnv, cache ports.MappingCachePort, memo *shared.Cache) LayeredComposer {
	return LayeredComposer{Registry: registry, Env: env, Cache: cache, Memo: memo}
}

// Compose instantiates the configured layers and composes them.
func (c LayeredComposer) Compose(ctx context.Context, specs []types.LayerSpec) (ComposedMappings, error) {
	if c.Registry == nil {
		return ComposedMappings{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("no layer registry configured")
	}
	layers, err := c.Registry.CreateAll(specs, c.Env)
	if err != nil {
		return ComposedMappings{}, err
	}
	return c.ComposeLayers(ctx, layers)
}

// ComposeLayers orders the layers, computes the merged identifier and
// returns the cached tree for it, visiting every layer into a fresh tree on
// a miss.
func (c LayeredComposer) ComposeLayers(ctx context.Context, layers []ports.MappingLayer) (ComposedMappings, error) {
	if len(layers) == 0 {
		return ComposedMappings{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one mapping layer is required")
	}
	ordered, err := SortLayers(layers)
	if err != nil {
		return ComposedMappings{}, err
	}
	id, err := MergedIdentifier(ordered)
	if err != nil {
		return ComposedMappings{}, err
	}
	return shared.GetOrCreate(c.Memo, "mappings:"+id, func() (ComposedMappings, error) {
		return c.compose(ctx, id, ordered)
	})
}

func (c LayeredComposer) compose(ctx context.Context, id string, ordered []ports.MappingLayer) (ComposedMappings, error) {
	assert.NotEmpty(ctx, id, "merged mappings id must be set")
	result := ComposedMappings{ID: id}
	for _, layer := range ordered {
		result.LayerOrder = append(result.LayerOrder, layer.ID())
	}

	fixes, err := collectSignatureFixes(ordered)
	if err != nil {
		return ComposedMappings{}, err
	}
	result.SignatureFixes = fixes

	if c.Cache != nil {
		if tree, ok := c.Cache.Load(id); ok {
			log.Ctx(ctx).Debug().Str("id", id).Msg("mappings cache hit")
			result.Tree = tree
			result.CacheHit = true
			return result, nil
		}
	}

	tree := mappings.NewTree(string(types.NamespaceIntermediary))
	for _, layer := range ordered {
		before := tree.Overrides()
		if err := layer.Visit(ctx, tree); err != nil {
			return ComposedMappings{}, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to visit mapping layer %s", layer.ID())).
				WithCause(err)
		}
		if overridden := tree.Overrides() - before; overridden > 0 {
			log.Ctx(ctx).Debug().
				Str("layer", layer.ID()).
				Int("overrides", overridden).
				Msg("mapping layer replaced existing names")
		}
	}
	result.Tree = tree

	if c.Cache != nil {
		if err := c.Cache.Store(id, tree); err != nil {
			return ComposedMappings{}, err
		}
	}
	log.Ctx(ctx).Debug().
		Str("id", id).
		Int("classes", len(tree.Classes())).
		Strs("layers", result.LayerOrder).
		Msg("mappings composed")
	return result, nil
}

func collectSignatureFixes(layers []ports.MappingLayer) (map[string]string, error) {
	fixes := map[string]string{}
	for _, layer := range layers {
		provider, ok := layer.(ports.SignatureFixProvider)
		if !ok {
			continue
		}
		layerFixes, err := provider.Fixes()
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to read signature fixes of layer %s", layer.ID())).
				WithCause(err)
		}
		for name, sig := range layerFixes {
			fixes[name] = sig
		}
	}
	return fixes, nil
}

// SignatureFixesFor converts fixes keyed and written in intermediary into
// fixes keyed by class names in from, with signatures written in to.
func SignatureFixesFor(fixes map[string]string, tree *mappings.Tree, from types.Namespace, to types.Namespace) (map[string]string, error) {
	mapClass := func(name string) string {
		if cls := tree.Class(name); cls != nil {
			return cls.Name(string(to))
		}
		return name
	}
	keys := make([]string, 0, len(fixes))
	for name := range fixes {
		keys = append(keys, name)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(fixes))
	for _, name := range keys {
		key := name
		if cls := tree.Class(name); cls != nil {
			key = cls.Name(string(from))
		}
		sig, err := descriptor.MapSignature(fixes[name], mapClass)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid signature fix for %s", name)).
				WithCause(err)
		}
		out[key] = sig
	}
	return out, nil
}
