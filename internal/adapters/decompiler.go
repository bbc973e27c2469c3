package adapters

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"loomkit/internal/ports"
	"loomkit/internal/shared"
	"loomkit/internal/types"
)

// ExternalDecompiler runs a decompiler as a child process. Command is a
// template; the placeholders {input}, {output}, {linemap}, {threads},
// {javadoc} and {libraries} are substituted per request. An argument that
// is exactly {libraries} expands to one argument per library. Options are
// appended as -key=value in key order, before any argument containing
// {input}.
type ExternalDecompiler struct {
	Command []string
	Options map[string]string
}

func NewExternalDecompiler(spec types.DecompilerSpec) ExternalDecompiler {
	return ExternalDecompiler{Command: spec.Command, Options: spec.Options}
}

func (d ExternalDecompiler) Decompile(ctx context.Context, req types.DecompileRequest) error {
	if len(d.Command) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("decompiler command is empty")
	}
	if strings.TrimSpace(req.Compiled) == "" || strings.TrimSpace(req.SourcesOut) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("decompile request needs an input jar and a sources output")
	}
	if _, err := os.Stat(req.Compiled); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("compiled jar %s not found", req.Compiled)).
			WithCause(err)
	}
	if err := ensurePath(req.SourcesOut); err != nil {
		return err
	}
	if req.LinemapOut != "" {
		if err := ensurePath(req.LinemapOut); err != nil {
			return err
		}
	}
	args := d.arguments(req)
	log.Debug().Str("jar", req.Compiled).Strs("args", args).Msg("running decompiler")
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("decompiler failed for %s", filepath.Base(req.Compiled))).
			WithCause(shared.CommandError(output, err))
	}
	if _, err := os.Stat(req.SourcesOut); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("decompiler produced no sources at %s", req.SourcesOut)).
			WithCause(err)
	}
	if req.LinemapOut != "" {
		if _, err := os.Stat(req.LinemapOut); err != nil {
			log.Warn().Str("jar", req.Compiled).Msg("decompiler wrote no linemap, line numbers stay unchanged")
		}
	}
	return nil
}

func (d ExternalDecompiler) arguments(req types.DecompileRequest) []string {
	threads := req.Metadata.Threads
	if threads <= 0 {
		threads = 1
	}
	replacer := strings.NewReplacer(
		"{input}", req.Compiled,
		"{output}", req.SourcesOut,
		"{linemap}", req.LinemapOut,
		"{threads}", strconv.Itoa(threads),
		"{javadoc}", req.Metadata.Javadoc,
		"{libraries}", strings.Join(req.Metadata.Libraries, string(os.PathListSeparator)),
	)
	options := mergedOptions(d.Options, req.Metadata.Options)
	args := make([]string, 0, len(d.Command)+len(options)+len(req.Metadata.Libraries))
	optionsPlaced := false
	for i, arg := range d.Command {
		if i > 0 && !optionsPlaced && strings.Contains(arg, "{input}") {
			args = append(args, options...)
			optionsPlaced = true
		}
		if arg == "{libraries}" {
			args = append(args, req.Metadata.Libraries...)
			continue
		}
		args = append(args, replacer.Replace(arg))
	}
	if !optionsPlaced {
		args = append(args, options...)
	}
	return args
}

func mergedOptions(base map[string]string, extra map[string]string) []string {
	merged := map[string]string{}
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range extra {
		merged[key] = value
	}
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	options := make([]string, 0, len(keys))
	for _, key := range keys {
		options = append(options, fmt.Sprintf("-%s=%s", key, merged[key]))
	}
	return options
}

var _ ports.DecompilerPort = ExternalDecompiler{}
