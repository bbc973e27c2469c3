package mappings

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTinyV2 = "tiny\t2\t0\tofficial\tintermediary\tnamed\n" +
	"c\ta\tnet/minecraft/class_1\tnet/minecraft/Foo\n" +
	"\tc\tA class.\\nSecond line.\n" +
	"\tf\tI\tb\tfield_1\tcount\n" +
	"\tm\t(I)V\tc\tmethod_1\t\n" +
	"\t\tc\tDoes things.\n" +
	"\t\tp\t1\t\t\tvalue\n" +
	"\t\t\tc\tThe value.\n"

func TestReadTinyV2(t *testing.T) {
	tree := NewTree("official")
	require.NoError(t, ReadTiny(strings.NewReader(sampleTinyV2), tree))

	c := tree.Class("a")
	require.NotNil(t, c)
	assert.Equal(t, "net/minecraft/Foo", c.Name("named"))
	assert.Equal(t, "A class.\nSecond line.", c.Comment)
	f := c.Field("b", "I")
	require.NotNil(t, f)
	assert.Equal(t, "count", f.Name("named"))
	m := c.Method("c", "(I)V")
	require.NotNil(t, m)
	assert.Equal(t, "method_1", m.Name("intermediary"))
	assert.Equal(t, "", m.ExplicitName("named"))
	assert.Equal(t, "Does things.", m.Comment)
	require.NotNil(t, m.Arg(1))
	assert.Equal(t, "value", m.Arg(1).Name("named"))
	assert.Equal(t, "The value.", m.Arg(1).Comment)
}

func TestReadTinyV1(t *testing.T) {
	input := "v1\tofficial\tintermediary\n" +
		"# comment\n" +
		"CLASS\ta\tnet/minecraft/class_1\n" +
		"FIELD\ta\tI\tb\tfield_1\n" +
		"METHOD\ta\t(La;)V\tc\tmethod_1\n"
	tree := NewTree("official")
	require.NoError(t, ReadTiny(strings.NewReader(input), tree))
	c := tree.Class("a")
	require.NotNil(t, c)
	assert.Equal(t, "net/minecraft/class_1", c.Name("intermediary"))
	assert.Equal(t, "field_1", c.Field("b", "I").Name("intermediary"))
	assert.Equal(t, "method_1", c.Method("c", "(La;)V").Name("intermediary"))
}

func TestReadTinyRejectsUnknownHeader(t *testing.T) {
	err := ReadTiny(strings.NewReader("tsrg2 left right\n"), NewTree("official"))
	require.Error(t, err)
	err = ReadTiny(strings.NewReader(""), NewTree("official"))
	require.Error(t, err)
}

func TestTinyV2RoundTripIsStable(t *testing.T) {
	tree := NewTree("official")
	require.NoError(t, ReadTiny(strings.NewReader(sampleTinyV2), tree))

	var first bytes.Buffer
	require.NoError(t, tree.Accept(NewTinyV2Writer(&first, [2]string{"loomkit-id", "abc"}), "official"))

	reread := NewTree("official")
	require.NoError(t, ReadTiny(bytes.NewReader(first.Bytes()), reread))
	var second bytes.Buffer
	require.NoError(t, reread.Accept(NewTinyV2Writer(&second, [2]string{"loomkit-id", "abc"}), "official"))

	if diff := cmp.Diff(first.String(), second.String()); diff != "" {
		t.Fatalf("round trip mismatch (-first +second):\n%s", diff)
	}
	assert.True(t, strings.HasPrefix(first.String(), "tiny\t2\t0\tofficial\tintermediary\tnamed\n\tloomkit-id\tabc\n"))
	assert.Contains(t, first.String(), "\tc\tA class.\\nSecond line.\n")
}

func TestTinyEscaping(t *testing.T) {
	raw := "a\\b\tc\nd\x00"
	assert.Equal(t, raw, unescapeTiny(escapeTiny(raw)))
	assert.Equal(t, `a\\b\tc\nd\0`, escapeTiny(raw))
}
