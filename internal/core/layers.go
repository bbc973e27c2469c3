package core

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"loomkit/internal/ports"
	"loomkit/internal/types"
)

// mappingsFormatVersion is mixed into every merged identifier. Bump it when
// the composed tree or its serialization changes meaning.
const mappingsFormatVersion = "loomkit-mappings/1"

var (
	// ErrMissingDependency is returned when a layer depends on a kind no
	// configured layer provides.
	ErrMissingDependency = errors.New("missing layer dependency")
	// ErrCycle is returned when layer dependencies form a cycle.
	ErrCycle = errors.New("layer dependency cycle")
)

// LayerEnv is handed to layer factories.
type LayerEnv struct {
	// BaseDir resolves relative layer paths.
	BaseDir string
	// WorkDir is the only directory layers may write to.
	WorkDir     string
	GameVersion string
}

// LayerFactory creates a layer from its configuration.
type LayerFactory func(spec types.LayerSpec, env LayerEnv) (ports.MappingLayer, error)

// LayerRegistry maps layer kinds to factories. Built-in kinds are
// registered by the adapters package; embedders can add their own.
type LayerRegistry struct {
	mu        sync.RWMutex
	factories map[types.LayerKind]LayerFactory
}

func NewLayerRegistry() *LayerRegistry {
	return &LayerRegistry{factories: map[types.LayerKind]LayerFactory{}}
}

func (r *LayerRegistry) Register(kind types.LayerKind, factory LayerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

func (r *LayerRegistry) Kinds() []types.LayerKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.LayerKind, 0, len(r.factories))
	for kind := range r.factories {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Create instantiates one layer, checking its game version constraint.
func (r *LayerRegistry) Create(spec types.LayerSpec, env LayerEnv) (ports.MappingLayer, error) {
	r.mu.RLock()
	factory, ok := r.factories[spec.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown mapping layer kind %q", spec.Kind))
	}
	if spec.Requires != "" {
		if err := CheckRequires(env.GameVersion, spec.Requires); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeOf(err)).
				WithMsg(fmt.Sprintf("layer %s: %s", layerLabel(spec), err.Error())).
				WithCause(err)
		}
	}
	layer, err := factory(spec, env)
	if err != nil {
		return nil, err
	}
	return layer, nil
}

// CreateAll instantiates layers in configuration order.
func (r *LayerRegistry) CreateAll(specs []types.LayerSpec, env LayerEnv) ([]ports.MappingLayer, error) {
	layers := make([]ports.MappingLayer, 0, len(specs))
	for _, spec := range specs {
		layer, err := r.Create(spec, env)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	return layers, nil
}

func layerLabel(spec types.LayerSpec) string {
	if spec.ID != "" {
		return spec.ID
	}
	return string(spec.Kind)
}

// SortLayers orders layers so every layer follows the layers it depends
// on. Layers without an ordering constraint between them keep their
// configuration order.
func SortLayers(layers []ports.MappingLayer) ([]ports.MappingLayer, error) {
	byKind := map[types.LayerKind][]int{}
	for i, layer := range layers {
		byKind[layer.Kind()] = append(byKind[layer.Kind()], i)
	}
	for kind, indices := range byKind {
		if len(indices) < 2 {
			continue
		}
		for _, i := range indices {
			if !layers[i].AllowsDuplicates() {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeAlreadyExists).
					WithMsg(fmt.Sprintf("layer kind %s may only be configured once", kind))
			}
		}
	}

	inDegree := make([]int, len(layers))
	dependents := make([][]int, len(layers))
	for i, layer := range layers {
		for _, dep := range layer.DependsOn() {
			providers, ok := byKind[dep]
			if !ok {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("layer %s requires a %s layer", layer.ID(), dep)).
					WithCause(fmt.Errorf("%w: %s -> %s", ErrMissingDependency, layer.ID(), dep))
			}
			for _, p := range providers {
				if p == i {
					continue
				}
				dependents[p] = append(dependents[p], i)
				inDegree[i]++
			}
		}
	}

	sorted := make([]ports.MappingLayer, 0, len(layers))
	done := make([]bool, len(layers))
	for len(sorted) < len(layers) {
		next := -1
		for i := range layers {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i, layer := range layers {
				if !done[i] {
					stuck = append(stuck, layer.ID())
				}
			}
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("mapping layers depend on each other: %s", strings.Join(stuck, ", "))).
				WithCause(ErrCycle)
		}
		done[next] = true
		sorted = append(sorted, layers[next])
		for _, d := range dependents[next] {
			inDegree[d]--
		}
	}
	return sorted, nil
}

// MergedIdentifier hashes the format version and, per ordered layer, its
// kind, id and input fingerprint.
func MergedIdentifier(layers []ports.MappingLayer) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", mappingsFormatVersion)
	for _, layer := range layers {
		fingerprint, err := layer.Fingerprint()
		if err != nil {
			code := errbuilder.CodeInternal
			if errbuilder.CodeOf(err) == errbuilder.CodeNotFound {
				code = errbuilder.CodeNotFound
			}
			return "", errbuilder.New().
				WithCode(code).
				WithMsg(fmt.Sprintf("failed to fingerprint layer %s", layer.ID())).
				WithCause(err)
		}
		fmt.Fprintf(h, "%s\x00%s\x00%s\n", layer.Kind(), layer.ID(), fingerprint)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
