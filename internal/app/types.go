package app

import (
	"loomkit/internal/core"
	"loomkit/internal/types"
)

type ValidateRequest struct {
	ProjectPath string
}

type ValidateResult struct {
	ProjectName string
	GameVersion string
	Variant     types.Variant
	MappingsID  string
	LayerOrder  []string
	Processors  []string
}

type MappingsRequest struct {
	ProjectPath string
	// Output optionally receives the composed tree as tiny v2.
	Output string
}

type MappingsResult struct {
	ID         string
	CacheHit   bool
	LayerOrder []string
	Classes    int
	Output     string
}

type RemapRequest struct {
	ProjectPath string
	Input       string
	Output      string
	From        types.Namespace
	To          types.Namespace
	Classpath   []string
}

type RemapResult struct {
	MappingsID string
	core.RemapResult
}

type SetupRequest struct {
	ProjectPath string
	Target      types.Namespace
}

type SetupResult struct {
	MappingsID string
	GameJars   []types.GameJar
	Jars       []types.RemappedJar
}

type DecompileRequest struct {
	ProjectPath string
	Input       string
	Output      string
	Linemap     string
	Javadoc     string
}

type DecompileResult struct {
	Sources string
	Linemap string
	// LineMapped is the input jar with line numbers matching the sources,
	// empty when the decompiler wrote no linemap.
	LineMapped string
}

type AccessWidenerRemapRequest struct {
	ProjectPath string
	Input       string
	Output      string
	To          types.Namespace
}

type AccessWidenerMergeRequest struct {
	Inputs []string
	Output string
}
