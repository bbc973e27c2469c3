package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"loomkit/internal/adapters"
	"loomkit/internal/core"
	"loomkit/internal/types"
)

// RemapAccessWidener rewrites an access widener into another namespace of
// the project's mappings.
func (s Service) RemapAccessWidener(ctx context.Context, req AccessWidenerRemapRequest) (types.AccessWidener, error) {
	if strings.TrimSpace(req.Output) == "" {
		return types.AccessWidener{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output path is required")
	}
	p, err := s.loadProject(req.ProjectPath)
	if err != nil {
		return types.AccessWidener{}, err
	}
	aw, err := readAccessWidener(req.Input)
	if err != nil {
		return types.AccessWidener{}, err
	}
	to := namespaceOr(req.To, types.NamespaceIntermediary)
	composed, err := s.composeFor(ctx, p)
	if err != nil {
		return types.AccessWidener{}, err
	}
	remapping, err := composed.Tree.Remapping(string(aw.Namespace), string(to))
	if err != nil {
		return types.AccessWidener{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(err.Error()).
			WithCause(err)
	}
	remapped, err := core.RemapAccessWidener(aw, remapping)
	if err != nil {
		return types.AccessWidener{}, err
	}
	if err := s.writeAccessWidener(req.Output, remapped); err != nil {
		return types.AccessWidener{}, err
	}
	return remapped, nil
}

// MergeAccessWideners combines access wideners of one namespace.
func (s Service) MergeAccessWideners(ctx context.Context, req AccessWidenerMergeRequest) (types.AccessWidener, error) {
	if len(req.Inputs) == 0 || strings.TrimSpace(req.Output) == "" {
		return types.AccessWidener{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one input and an output path are required")
	}
	wideners := make([]types.AccessWidener, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		aw, err := readAccessWidener(input)
		if err != nil {
			return types.AccessWidener{}, err
		}
		wideners = append(wideners, aw)
	}
	merged, err := core.MergeAccessWideners(wideners)
	if err != nil {
		return types.AccessWidener{}, err
	}
	if err := s.writeAccessWidener(req.Output, merged); err != nil {
		return types.AccessWidener{}, err
	}
	return merged, nil
}

func readAccessWidener(path string) (types.AccessWidener, error) {
	data, err := adapters.ProjectFileLoader("")(path)
	if err != nil {
		return types.AccessWidener{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("access widener %s not found", path)).
			WithCause(err)
	}
	aw, err := core.ParseAccessWidener(bytes.NewReader(data))
	if err != nil {
		return types.AccessWidener{}, errbuilder.New().
			WithCode(errbuilder.CodeOf(err)).
			WithMsg(fmt.Sprintf("%s: %s", path, err.Error())).
			WithCause(err)
	}
	return aw, nil
}

func (s Service) writeAccessWidener(path string, aw types.AccessWidener) error {
	return s.Output.WriteFile(path, func(w io.Writer) error {
		return core.WriteAccessWidener(w, aw)
	})
}
