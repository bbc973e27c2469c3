package ports

import (
	"context"

	"loomkit/internal/mappings"
	"loomkit/internal/types"
)

// MappingLayer is one source of naming data. Layers only write through the
// visitor they are given.
type MappingLayer interface {
	ID() string
	Kind() types.LayerKind
	// SourceNamespace is the namespace the visited data is keyed by.
	SourceNamespace() types.Namespace
	// DependsOn lists layer kinds that must be visited first.
	DependsOn() []types.LayerKind
	AllowsDuplicates() bool
	// Fingerprint identifies the layer's inputs by content.
	Fingerprint() (string, error)
	Visit(ctx context.Context, v mappings.Visitor) error
}

// SignatureFixProvider is implemented by layers that carry corrected
// generic signatures keyed by intermediary class name.
type SignatureFixProvider interface {
	Fixes() (map[string]string, error)
}

// MappingCachePort stores composed trees by merged identifier. A missing or
// mismatched entry is reported as a miss, never as an error.
type MappingCachePort interface {
	Load(id string) (*mappings.Tree, bool)
	Store(id string, tree *mappings.Tree) error
}
