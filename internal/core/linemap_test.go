package core

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loomkit/internal/types"
)

const sampleLineMap = "net/minecraft/Foo\t20\t40\n" +
	"\t3\t7\n" +
	"\t10\t21\n" +
	"\n" +
	"net/minecraft/Bar\t5\t9\n" +
	"\t1\t2\n"

// ---------------------------------------------------------------------------
// ParseLineMap / WriteLineMap
// ---------------------------------------------------------------------------

func TestParseLineMap(t *testing.T) {
	lm, err := ParseLineMap(strings.NewReader(sampleLineMap))
	require.NoError(t, err)
	assert.Equal(t, types.LineMap{
		"net/minecraft/Foo": {MaxSource: 20, MaxDest: 40, Lines: map[int]int{3: 7, 10: 21}},
		"net/minecraft/Bar": {MaxSource: 5, MaxDest: 9, Lines: map[int]int{1: 2}},
	}, lm)
}

func TestParseLineMapDuplicateClass(t *testing.T) {
	_, err := ParseLineMap(strings.NewReader("a\t1\t1\n\na\t2\t2\n"))
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeAlreadyExists, errbuilder.CodeOf(err))
}

func TestParseLineMapRejectsOrphanLine(t *testing.T) {
	_, err := ParseLineMap(strings.NewReader("\t1\t2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside of a class block")
}

func TestWriteLineMapSortsOutput(t *testing.T) {
	lm, err := ParseLineMap(strings.NewReader(sampleLineMap))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteLineMap(&buf, lm))
	assert.Equal(t, "net/minecraft/Bar\t5\t9\n\t1\t2\n\n"+
		"net/minecraft/Foo\t20\t40\n\t3\t7\n\t10\t21\n\n", buf.String())
}

// ---------------------------------------------------------------------------
// MapLine
// ---------------------------------------------------------------------------

func TestMapLine(t *testing.T) {
	cls := types.ClassLines{MaxSource: 20, MaxDest: 40, Lines: map[int]int{3: 7, 10: 21}}
	assert.Equal(t, 7, MapLine(cls, 3))
	assert.Equal(t, 21, MapLine(cls, 4))
	assert.Equal(t, 40, MapLine(cls, 15))
}

func TestMergeLineMapsRejectsOverlap(t *testing.T) {
	a := types.LineMap{"a": {MaxSource: 1, MaxDest: 1}}
	_, err := MergeLineMaps(a, a)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeAlreadyExists, errbuilder.CodeOf(err))
}
