package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"loomkit/internal/adapters"
	"loomkit/internal/core"
	"loomkit/internal/types"
)

// Decompile runs the project's decompiler over a remapped jar. When the
// decompiler writes a linemap, a copy of the input with line numbers
// matching the sources is produced next to the input.
func (s Service) Decompile(ctx context.Context, req DecompileRequest) (DecompileResult, error) {
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return DecompileResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("input jar is required")
	}
	p, err := s.loadProject(req.ProjectPath)
	if err != nil {
		return DecompileResult{}, err
	}
	base := strings.TrimSuffix(input, ".jar")
	result := DecompileResult{
		Sources: req.Output,
		Linemap: req.Linemap,
	}
	if result.Sources == "" {
		result.Sources = base + "-sources.jar"
	}
	if result.Linemap == "" {
		result.Linemap = base + ".linemap"
	}
	threads := p.Decompiler.Threads
	if threads <= 0 {
		threads = s.threads()
	}
	decompiler := s.NewDecompiler(p.Decompiler)
	err = decompiler.Decompile(ctx, types.DecompileRequest{
		Compiled:   input,
		SourcesOut: result.Sources,
		LinemapOut: result.Linemap,
		Metadata: types.DecompileMetadata{
			Threads:   threads,
			Javadoc:   p.resolve(req.Javadoc),
			Libraries: p.libraries(),
			Options:   p.Decompiler.Options,
		},
	})
	if err != nil {
		return DecompileResult{}, err
	}
	if !s.Archive.Exists(result.Linemap) {
		result.Linemap = ""
		return result, nil
	}

	processors, err := core.BuildProcessors([]types.ProcessorSpec{
		{Kind: types.ProcessorKindLineMap, Paths: []string{result.Linemap}},
	}, adapters.ProjectFileLoader(""))
	if err != nil {
		return DecompileResult{}, err
	}
	result.LineMapped = base + "-linemapped.jar"
	chain := core.NewProcessorChain(s.Archive, base+"-linemap-steps", processors)
	if _, err := chain.Run(ctx, input, result.LineMapped); err != nil {
		return DecompileResult{}, err
	}
	log.Ctx(ctx).Debug().Str("jar", result.LineMapped).Msg("applied decompiler linemap")
	return result, nil
}
