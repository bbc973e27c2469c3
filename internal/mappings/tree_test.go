package mappings

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTree(t *testing.T) *Tree {
	t.Helper()
	tree := NewTree("official")
	c := tree.AddClass("a")
	c.SetName("intermediary", "net/minecraft/class_1")
	m := c.AddMethod("b", "(La;)V")
	m.SetName("intermediary", "method_1")
	f := c.AddField("c", "I")
	f.SetName("intermediary", "field_1")
	m.AddArg(1).SetName("intermediary", "arg1")
	inner := tree.AddClass("a$d")
	inner.SetName("intermediary", "net/minecraft/class_1$class_2")
	return tree
}

func TestTreeNamesFallBackToSource(t *testing.T) {
	tree := seedTree(t)
	c := tree.Class("a")
	require.NotNil(t, c)
	assert.Equal(t, "net/minecraft/class_1", c.Name("intermediary"))
	assert.Equal(t, "a", c.Name("named"))
	assert.Equal(t, "", c.ExplicitName("named"))
	assert.Equal(t, []string{"official", "intermediary"}, tree.Namespaces())
}

func TestTreeClassByName(t *testing.T) {
	tree := seedTree(t)
	c := tree.ClassByName("intermediary", "net/minecraft/class_1")
	require.NotNil(t, c)
	assert.Equal(t, "a", c.SrcName)

	tree.AddClass("e")
	assert.NotNil(t, tree.ClassByName("intermediary", "e"))

	c.SetName("intermediary", "net/minecraft/class_9")
	assert.Nil(t, tree.ClassByName("intermediary", "net/minecraft/class_1"))
	assert.Equal(t, c, tree.ClassByName("intermediary", "net/minecraft/class_9"))
}

func TestTreeMemberLookupByDestination(t *testing.T) {
	tree := seedTree(t)
	c := tree.Class("a")
	m := c.MethodByName("intermediary", "method_1", "(Lnet/minecraft/class_1;)V")
	require.NotNil(t, m)
	assert.Equal(t, "b", m.SrcName)
	assert.NotNil(t, c.FieldByName("intermediary", "field_1", ""))
	assert.Nil(t, c.FieldByName("intermediary", "field_1", "J"))
}

func TestTreeCountsOverrides(t *testing.T) {
	tree := seedTree(t)
	m := tree.Class("a").Method("b", "(La;)V")
	m.SetName("intermediary", "method_1")
	assert.Equal(t, 0, tree.Overrides())
	m.SetName("intermediary", "method_2")
	assert.Equal(t, 1, tree.Overrides())
}

func TestTreeAcceptSwitchesSourceNamespace(t *testing.T) {
	tree := seedTree(t)
	out := NewTree("intermediary")
	require.NoError(t, tree.Accept(out, "intermediary"))

	c := out.Class("net/minecraft/class_1")
	require.NotNil(t, c)
	assert.Equal(t, "a", c.Name("official"))
	m := c.Method("method_1", "(Lnet/minecraft/class_1;)V")
	require.NotNil(t, m)
	assert.Equal(t, "b", m.Name("official"))
	assert.Equal(t, "arg1", m.Arg(1).Name("intermediary"))
	assert.NotNil(t, out.Class("net/minecraft/class_1$class_2"))
}

func TestTreeAcceptUnknownNamespace(t *testing.T) {
	tree := seedTree(t)
	err := tree.Accept(NewTree("named"), "named")
	require.Error(t, err)
}

func TestTreeVisitByDestinationDoesNotCreate(t *testing.T) {
	tree := seedTree(t)
	require.NoError(t, tree.VisitNamespaces("intermediary", []string{"named"}))
	ok, err := tree.VisitClass("net/minecraft/class_404")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = tree.VisitClass("net/minecraft/class_1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tree.VisitDstName(KindClass, "named", "net/minecraft/Foo"))
	ok, err = tree.VisitMethod("method_404", "()V")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, tree.VisitEnd())

	assert.Len(t, tree.Classes(), 2)
	assert.Equal(t, "net/minecraft/Foo", tree.Class("a").Name("named"))
}

func TestRemappingNestedClassFollowsOuter(t *testing.T) {
	tree := NewTree("official")
	tree.AddClass("a").SetName("named", "Foo")
	tree.AddClass("a$c").SetName("named", "Foo$Explicit")
	r, err := tree.Remapping("official", "named")
	require.NoError(t, err)

	assert.Equal(t, "Foo$b", r.MapClass("a$b"))
	assert.Equal(t, "Foo$Explicit", r.MapClass("a$c"))
	assert.Equal(t, "Foo$Explicit$1", r.MapClass("a$c$1"))
	assert.Equal(t, "x", r.MapClass("x"))
	assert.Equal(t, "([LFoo;Lx;)LFoo$b;", r.MapDesc("([La;Lx;)La$b;"))
}

func TestRemappingNestedClassFollowsRenamedOuter(t *testing.T) {
	tree := NewTree("official")
	outer := tree.AddClass("a")
	outer.SetName("intermediary", "net/minecraft/class_1")
	outer.SetName("named", "net/minecraft/Foo")
	inner := tree.AddClass("a$b")
	inner.SetName("intermediary", "net/minecraft/class_1$class_2")
	inner.SetName("named", "net/minecraft/class_1$class_2")
	inner.AddField("f", "La$b;").SetName("named", "self")
	own := tree.AddClass("a$c")
	own.SetName("named", "net/minecraft/Foo$Own")

	r, err := tree.Remapping("official", "named")
	require.NoError(t, err)
	assert.Equal(t, "net/minecraft/Foo$class_2", r.MapClass("a$b"))
	assert.Equal(t, "net/minecraft/Foo$Own", r.MapClass("a$c"))

	r, err = tree.Remapping("intermediary", "named")
	require.NoError(t, err)
	assert.Equal(t, "net/minecraft/Foo$class_2", r.MapClass("net/minecraft/class_1$class_2"))
	name, ok := r.Field("net/minecraft/class_1$class_2", "f", "Lnet/minecraft/class_1$class_2;")
	require.True(t, ok)
	assert.Equal(t, "self", name)
}

func TestRemappingMembersKeyedByFromNamespace(t *testing.T) {
	tree := seedTree(t)
	r, err := tree.Remapping("intermediary", "official")
	require.NoError(t, err)
	name, ok := r.Method("net/minecraft/class_1", "method_1", "(Lnet/minecraft/class_1;)V")
	require.True(t, ok)
	assert.Equal(t, "b", name)
	name, ok = r.Field("net/minecraft/class_1", "field_1", "I")
	require.True(t, ok)
	assert.Equal(t, "c", name)

	r, err = tree.Remapping("official", "intermediary")
	require.NoError(t, err)
	arg, ok := r.Arg("a", "b", "(La;)V", 1)
	require.True(t, ok)
	assert.Equal(t, "arg1", arg)
	assert.Equal(t, 2, r.ClassCount())
}

func TestNamespaceCompleterFillsMissingNames(t *testing.T) {
	src := seedTree(t)
	src.Class("a").SetName("named", "net/minecraft/Foo")

	out := NewTree("intermediary")
	completer := NewNamespaceCompleter(out, map[string]string{"named": "intermediary"})
	require.NoError(t, src.Accept(completer, "intermediary"))

	got := map[string]string{}
	for _, c := range out.Classes() {
		got[c.SrcName] = c.ExplicitName("named")
		for _, m := range c.Methods() {
			got[m.SrcName] = m.ExplicitName("named")
		}
		for _, f := range c.Fields() {
			got[f.SrcName] = f.ExplicitName("named")
		}
	}
	want := map[string]string{
		"net/minecraft/class_1":         "net/minecraft/Foo",
		"net/minecraft/class_1$class_2": "net/minecraft/Foo$class_2",
		"method_1":                      "method_1",
		"field_1":                       "field_1",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("named names mismatch (-want +got):\n%s", diff)
	}
}

func TestNamespaceRenamer(t *testing.T) {
	tree := NewTree("source")
	tree.AddClass("a").SetName("target", "Foo")

	out := NewTree("intermediary")
	renamer := NewNamespaceRenamer(out, map[string]string{"source": "intermediary", "target": "named"})
	require.NoError(t, tree.Accept(renamer, "source"))
	assert.Equal(t, "Foo", out.Class("a").Name("named"))
	assert.Equal(t, []string{"named"}, out.DstNamespaces())
}
