package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"loomkit/internal/core"
)

const mappingsIDProperty = "loomkit-id"

func (s Service) ComposeMappings(ctx context.Context, req MappingsRequest) (MappingsResult, error) {
	p, err := s.loadProject(req.ProjectPath)
	if err != nil {
		return MappingsResult{}, err
	}
	composed, err := s.composeFor(ctx, p)
	if err != nil {
		return MappingsResult{}, err
	}
	result := MappingsResult{
		ID:         composed.ID,
		CacheHit:   composed.CacheHit,
		LayerOrder: composed.LayerOrder,
		Classes:    len(composed.Tree.Classes()),
	}
	if req.Output != "" {
		if err := s.Output.WriteMappings(req.Output, composed.Tree, [2]string{mappingsIDProperty, composed.ID}); err != nil {
			return MappingsResult{}, err
		}
		result.Output = req.Output
	}
	return result, nil
}

// WatchMappings composes once, then again whenever the project file or a
// layer input changes, until ctx is done. Every attempt is passed to
// report; composition errors do not stop the watch.
func (s Service) WatchMappings(ctx context.Context, req MappingsRequest, report func(MappingsResult, error)) error {
	p, err := s.loadProject(req.ProjectPath)
	if err != nil {
		return err
	}
	report(s.ComposeMappings(ctx, req))

	paths := []string{p.Path}
	for _, layer := range p.Mappings.Layers {
		if layer.Path != "" {
			paths = append(paths, p.resolve(layer.Path))
		}
	}
	return s.Watcher.Watch(ctx, paths, func(path string) {
		log.Ctx(ctx).Info().Str("file", path).Msg("mapping input changed, recomposing")
		report(s.ComposeMappings(ctx, req))
	})
}

// composeFor loads the project's mappings, reusing the memo.
func (s Service) composeFor(ctx context.Context, p project) (core.ComposedMappings, error) {
	return s.composer(p).Compose(ctx, p.Mappings.Layers)
}
