package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loomkit/internal/ports"
	"loomkit/internal/types"
)

// countingProcessor appends one resource per run.
type countingProcessor struct {
	name        string
	fingerprint string
	runs        int
	err         error
}

func (p *countingProcessor) Name() string                 { return p.name }
func (p *countingProcessor) Fingerprint() (string, error) { return p.fingerprint, nil }

func (p *countingProcessor) Process(_ context.Context, jar *types.JarContents) error {
	p.runs++
	if p.err != nil {
		return p.err
	}
	jar.Put("processed/"+p.name, []byte(p.fingerprint))
	return nil
}

func newChainArchive() *memArchive {
	archive := newMemArchive()
	archive.put("in.jar", map[string][]byte{"a.txt": []byte("a")})
	return archive
}

// ---------------------------------------------------------------------------
// ProcessorChain.Run
// ---------------------------------------------------------------------------

func TestProcessorChainRunsStepsInOrder(t *testing.T) {
	archive := newChainArchive()
	first := &countingProcessor{name: "first", fingerprint: "1"}
	second := &countingProcessor{name: "second", fingerprint: "2"}
	chain := NewProcessorChain(archive, "work", []ports.JarProcessor{first, second})

	result, err := chain.Run(context.Background(), "in.jar", "out.jar")
	require.NoError(t, err)
	assert.True(t, result.Published)
	require.Len(t, result.Steps, 2)
	for _, step := range result.Steps {
		assert.True(t, step.Ran)
		assert.Equal(t, types.StepDone, step.State)
	}
	assert.Equal(t, "work/00-first.jar", result.Steps[0].Path)
	assert.Contains(t, archive.entryNames("out.jar"), "processed/first")
	assert.Contains(t, archive.entryNames("out.jar"), "processed/second")
	assert.Contains(t, archive.entryNames("out.jar"), "META-INF/loomkit/01-second.digest")
}

func TestProcessorChainSkipsUpToDateSteps(t *testing.T) {
	archive := newChainArchive()
	first := &countingProcessor{name: "first", fingerprint: "1"}
	second := &countingProcessor{name: "second", fingerprint: "2"}
	chain := NewProcessorChain(archive, "work", []ports.JarProcessor{first, second})

	_, err := chain.Run(context.Background(), "in.jar", "out.jar")
	require.NoError(t, err)
	result, err := chain.Run(context.Background(), "in.jar", "out.jar")
	require.NoError(t, err)

	assert.False(t, result.Published)
	assert.Equal(t, 1, first.runs)
	assert.Equal(t, 1, second.runs)
	assert.Equal(t, 1, archive.writes["out.jar"])
}

func TestProcessorChainRerunsFromChangedStep(t *testing.T) {
	archive := newChainArchive()
	first := &countingProcessor{name: "first", fingerprint: "1"}
	second := &countingProcessor{name: "second", fingerprint: "2"}
	chain := NewProcessorChain(archive, "work", []ports.JarProcessor{first, second})
	_, err := chain.Run(context.Background(), "in.jar", "out.jar")
	require.NoError(t, err)

	second.fingerprint = "2b"
	result, err := chain.Run(context.Background(), "in.jar", "out.jar")
	require.NoError(t, err)
	assert.True(t, result.Published)
	assert.False(t, result.Steps[0].Ran)
	assert.True(t, result.Steps[1].Ran)
	assert.Equal(t, 1, first.runs)
	assert.Equal(t, 2, second.runs)
}

func TestProcessorChainRepublishesMissingOutput(t *testing.T) {
	archive := newChainArchive()
	step := &countingProcessor{name: "only", fingerprint: "1"}
	chain := NewProcessorChain(archive, "work", []ports.JarProcessor{step})
	_, err := chain.Run(context.Background(), "in.jar", "out.jar")
	require.NoError(t, err)

	delete(archive.jars, "out.jar")
	result, err := chain.Run(context.Background(), "in.jar", "out.jar")
	require.NoError(t, err)
	assert.True(t, result.Published)
	assert.Equal(t, 1, step.runs)
	assert.True(t, archive.Exists("out.jar"))
}

func TestProcessorChainInputChangeInvalidatesSteps(t *testing.T) {
	archive := newChainArchive()
	step := &countingProcessor{name: "only", fingerprint: "1"}
	chain := NewProcessorChain(archive, "work", []ports.JarProcessor{step})
	_, err := chain.Run(context.Background(), "in.jar", "out.jar")
	require.NoError(t, err)

	archive.put("in.jar", map[string][]byte{"a.txt": []byte("changed")})
	_, err = chain.Run(context.Background(), "in.jar", "out.jar")
	require.NoError(t, err)
	assert.Equal(t, 2, step.runs)
}

func TestProcessorChainFailureDoesNotPublish(t *testing.T) {
	archive := newChainArchive()
	failing := &countingProcessor{name: "broken", fingerprint: "1", err: errors.New("bad input")}
	chain := NewProcessorChain(archive, "work", []ports.JarProcessor{failing})

	_, err := chain.Run(context.Background(), "in.jar", "out.jar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.False(t, archive.Exists("out.jar"))
}

func TestProcessorChainEmptyCopiesInput(t *testing.T) {
	archive := newChainArchive()
	chain := NewProcessorChain(archive, "work", nil)

	result, err := chain.Run(context.Background(), "in.jar", "out.jar")
	require.NoError(t, err)
	assert.True(t, result.Published)

	result, err = chain.Run(context.Background(), "in.jar", "out.jar")
	require.NoError(t, err)
	assert.False(t, result.Published)
	assert.Equal(t, 1, archive.writes["out.jar"])
}

func TestStepDigestDependsOnEveryPart(t *testing.T) {
	base := StepDigest("d0", "aw", "f1")
	assert.Equal(t, base, StepDigest("d0", "aw", "f1"))
	assert.NotEqual(t, base, StepDigest("d1", "aw", "f1"))
	assert.NotEqual(t, base, StepDigest("d0", "at", "f1"))
	assert.NotEqual(t, base, StepDigest("d0", "aw", "f2"))
}
