package app

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"loomkit/internal/core"
	"loomkit/internal/types"
)

// Validate checks a project without producing anything: layers must be
// known, ordered and readable, and processors must load.
func (s Service) Validate(ctx context.Context, req ValidateRequest) (ValidateResult, error) {
	p, err := s.loadProject(req.ProjectPath)
	if err != nil {
		return ValidateResult{}, err
	}
	if p.Game.Variant != types.VariantServerOnly {
		split, err := core.SupportsSplit(p.Game.Version)
		if err != nil {
			return ValidateResult{}, err
		}
		if !split {
			return ValidateResult{}, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("game version %s only supports the server-only variant", p.Game.Version))
		}
	}
	layers, err := s.Layers.CreateAll(p.Mappings.Layers, s.layerEnv(p))
	if err != nil {
		return ValidateResult{}, err
	}
	ordered, err := core.SortLayers(layers)
	if err != nil {
		return ValidateResult{}, err
	}
	id, err := core.MergedIdentifier(ordered)
	if err != nil {
		return ValidateResult{}, err
	}
	processors, err := s.processors(p)
	if err != nil {
		return ValidateResult{}, err
	}
	order := make([]string, 0, len(ordered))
	for _, layer := range ordered {
		order = append(order, layer.ID())
	}
	log.Ctx(ctx).Debug().Str("hash", id).Strs("layers", order).Msg("project is valid")
	return ValidateResult{
		ProjectName: p.Name,
		GameVersion: p.Game.Version,
		Variant:     p.Game.Variant,
		MappingsID:  id,
		LayerOrder:  order,
		Processors:  core.ProcessorNames(processors),
	}, nil
}
