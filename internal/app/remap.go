package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"loomkit/internal/core"
	"loomkit/internal/types"
)

// Remap renames one jar between two namespaces of the project's mappings.
func (s Service) Remap(ctx context.Context, req RemapRequest) (RemapResult, error) {
	if strings.TrimSpace(req.Input) == "" || strings.TrimSpace(req.Output) == "" {
		return RemapResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("input and output jars are required")
	}
	p, err := s.loadProject(req.ProjectPath)
	if err != nil {
		return RemapResult{}, err
	}
	from := namespaceOr(req.From, types.NamespaceOfficial)
	to := namespaceOr(req.To, types.NamespaceNamed)
	composed, err := s.composeFor(ctx, p)
	if err != nil {
		return RemapResult{}, err
	}
	remapping, err := composed.Tree.Remapping(string(from), string(to))
	if err != nil {
		return RemapResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(err.Error()).
			WithCause(err)
	}
	fixes, err := core.SignatureFixesFor(composed.SignatureFixes, composed.Tree, from, to)
	if err != nil {
		return RemapResult{}, err
	}
	classpath := append(append([]string(nil), req.Classpath...), p.libraries()...)
	result, err := core.NewRemapper(s.Archive).RemapJar(ctx, core.RemapRequest{
		Input:             req.Input,
		Output:            req.Output,
		Classpath:         classpath,
		Mapping:           remapping,
		SignatureFixes:    fixes,
		RebuildSourceFile: true,
		Threads:           s.threads(),
	})
	if err != nil {
		return RemapResult{}, err
	}
	log.Ctx(ctx).Debug().
		Str("jar", req.Output).
		Str("from", string(from)).
		Str("to", string(to)).
		Int("classes", result.Classes).
		Msg("remapped jar")
	return RemapResult{MappingsID: composed.ID, RemapResult: result}, nil
}
