package core

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"loomkit/internal/ports"
	"loomkit/internal/types"
)

const markerDir = "META-INF/loomkit/"

type StepResult struct {
	Name   string
	Path   string
	Digest string
	State  types.StepState
	Ran    bool
}

type ChainResult struct {
	Steps     []StepResult
	Published bool
}

// ProcessorChain runs jar processors one after another. Each step writes
// its own work jar carrying a digest marker, so unchanged steps are
// skipped on the next run.
type ProcessorChain struct {
	Archive    ports.JarArchivePort
	WorkDir    string
	Processors []ports.JarProcessor
}

func NewProcessorChain(archive ports.JarArchivePort, workDir string, processors []ports.JarProcessor) ProcessorChain {
	return ProcessorChain{Archive: archive, WorkDir: workDir, Processors: processors}
}

// StepDigest chains the previous digest with a processor's identity.
func StepDigest(previous string, name string, fingerprint string) string {
	h := xxhash.New()
	_, _ = h.WriteString(previous)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(name)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(fingerprint)
	return strconv.FormatUint(h.Sum64(), 16)
}

func stepID(index int, name string) string {
	return fmt.Sprintf("%02d-%s", index, name)
}

func markerEntry(id string) string {
	return markerDir + id + ".digest"
}

func (c ProcessorChain) Run(ctx context.Context, input string, output string) (ChainResult, error) {
	if len(c.Processors) == 0 {
		return c.copyThrough(ctx, input, output)
	}
	digest, err := c.Archive.Digest(input)
	if err != nil {
		return ChainResult{}, err
	}

	steps := make([]StepResult, len(c.Processors))
	for i, processor := range c.Processors {
		fingerprint, err := processor.Fingerprint()
		if err != nil {
			return ChainResult{}, errbuilder.New().
				WithCode(errbuilder.CodeOf(err)).
				WithMsg(fmt.Sprintf("failed to fingerprint processor %s", processor.Name())).
				WithCause(err)
		}
		digest = StepDigest(digest, processor.Name(), fingerprint)
		id := stepID(i, processor.Name())
		steps[i] = StepResult{
			Name:   processor.Name(),
			Path:   filepath.Join(c.WorkDir, id+".jar"),
			Digest: digest,
			State:  types.StepNotChecked,
		}
	}

	ran := false
	previous := input
	for i, processor := range c.Processors {
		step := &steps[i]
		marker := markerEntry(stepID(i, step.Name))
		current, err := c.hasMarker(step.Path, marker, step.Digest)
		if err != nil {
			return ChainResult{}, err
		}
		if current && !ran {
			step.State = types.StepSkip
		} else {
			step.State = types.StepRun
			if err := c.runStep(ctx, processor, previous, step.Path, marker, step.Digest); err != nil {
				return ChainResult{}, err
			}
			ran = true
			step.Ran = true
		}
		log.Ctx(ctx).Debug().
			Str("processor", step.Name).
			Str("state", string(step.State)).
			Str("digest", step.Digest).
			Msg("processor step")
		step.State = types.StepDone
		previous = step.Path
	}

	result := ChainResult{Steps: steps}
	last := steps[len(steps)-1]
	publish := ran
	if !publish {
		current, err := c.hasMarker(output, markerEntry(stepID(len(steps)-1, last.Name)), last.Digest)
		if err != nil {
			return ChainResult{}, err
		}
		publish = !current
	}
	if publish {
		if err := c.Archive.Copy(last.Path, output); err != nil {
			return ChainResult{}, err
		}
		result.Published = true
	}
	return result, nil
}

func (c ProcessorChain) runStep(ctx context.Context, processor ports.JarProcessor, input string, path string, marker string, digest string) error {
	jar, err := c.Archive.Read(input)
	if err != nil {
		return err
	}
	if err := processor.Process(ctx, jar); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeOf(err)).
			WithMsg(fmt.Sprintf("processor %s failed", processor.Name())).
			WithCause(err)
	}
	jar.Put(marker, []byte(digest))
	return c.Archive.Write(path, jar)
}

func (c ProcessorChain) hasMarker(path string, marker string, digest string) (bool, error) {
	if !c.Archive.Exists(path) {
		return false, nil
	}
	data, ok, err := c.Archive.ReadEntry(path, marker)
	if err != nil {
		return false, err
	}
	return ok && bytes.Equal(data, []byte(digest)), nil
}

func (c ProcessorChain) copyThrough(ctx context.Context, input string, output string) (ChainResult, error) {
	if c.Archive.Exists(output) {
		want, err := c.Archive.Digest(input)
		if err != nil {
			return ChainResult{}, err
		}
		have, err := c.Archive.Digest(output)
		if err != nil {
			return ChainResult{}, err
		}
		if want == have {
			return ChainResult{}, nil
		}
	}
	log.Ctx(ctx).Debug().Str("output", output).Msg("no processors configured, copying jar")
	if err := c.Archive.Copy(input, output); err != nil {
		return ChainResult{}, err
	}
	return ChainResult{Published: true}, nil
}
