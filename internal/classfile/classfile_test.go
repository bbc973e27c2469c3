package classfile

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapMapper struct {
	classes map[string]string
	members map[string]string
	args    map[string]string
}

func (m mapMapper) MapClass(name string) string {
	if mapped, ok := m.classes[name]; ok {
		return mapped
	}
	return name
}

func (m mapMapper) MapField(owner string, name string, desc string) string {
	if mapped, ok := m.members[owner+"."+name+":"+desc]; ok {
		return mapped
	}
	return name
}

func (m mapMapper) MapMethod(owner string, name string, desc string) string {
	if mapped, ok := m.members[owner+"."+name+desc]; ok {
		return mapped
	}
	return name
}

func (m mapMapper) MapArg(owner string, name string, desc string, lvIndex int) (string, bool) {
	mapped, ok := m.args[owner+"."+name+desc+"#"+strconv.Itoa(lvIndex)]
	return mapped, ok
}

func sampleMapper() mapMapper {
	return mapMapper{
		classes: map[string]string{
			"a":   "net/minecraft/Foo",
			"b":   "net/minecraft/Bar",
			"a$c": "net/minecraft/Foo$Inner",
		},
		members: map[string]string{
			"a.f:I":     "count",
			"a.m(Lb;)V": "doThing",
			"b.g()V":    "run",
			"b.h:La;":   "foo",
		},
		args: map[string]string{
			"a.m(Lb;)V#1": "bar",
		},
	}
}

func sampleClass(t *testing.T) []byte {
	t.Helper()
	b := NewBuilder("a", "java/lang/Object").
		SourceFile("SourceFile").
		Signature("Ljava/lang/Object;Ljava/util/function/Supplier<La$c;>;").
		Interfaces("java/util/function/Supplier").
		InnerClass("a$c", "a", "c", AccPublic|AccStatic).
		Field(AccPrivate, "f", "I")
	b.Method(AccPublic, "m", "(Lb;)V").
		Invoke(OpInvokeVirtual, "b", "g", "()V").
		FieldInsn(OpGetField, "b", "h", "La;").
		Local(0, "this", "La;").
		Local(1, "arg1", "Lb;").
		Parameters("arg1").
		Line(0, 10)
	data, err := b.Build()
	require.NoError(t, err)
	return data
}

// ------------------------------------------------------------------
// Parsing
// ------------------------------------------------------------------

func TestParseBytesRoundTrip(t *testing.T) {
	data := sampleClass(t)
	c, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "a", c.Name())
	assert.Equal(t, "java/lang/Object", c.SuperName())
	assert.Equal(t, []string{"java/util/function/Supplier"}, c.InterfaceNames())

	out, err := c.Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte{0xCA, 0xFE})
	require.Error(t, err)
	_, err = Parse([]byte("PK\x03\x04 not a class"))
	require.Error(t, err)

	data := sampleClass(t)
	_, err = Parse(append(data, 0))
	require.Error(t, err)
}

func TestModifiedUTF8(t *testing.T) {
	for _, s := range []string{"plain", "nul\x00byte", "ümlaut", "snow☃man", "emoji😀"} {
		encoded := encodeModifiedUTF8(s)
		assert.Equal(t, s, decodeModifiedUTF8(encoded), s)
		assert.NotContains(t, string(encoded), "\x00")
	}
	assert.Equal(t, []byte{0xC0, 0x80}, encodeModifiedUTF8("\x00"))
	assert.Len(t, encodeModifiedUTF8("😀"), 6)
}

func TestConstantPoolOverflow(t *testing.T) {
	p := NewConstantPool()
	for i := 0; i < maxPoolSize+10; i++ {
		p.AddUtf8(strconv.Itoa(i))
	}
	require.Error(t, p.Err())
}

func TestConstantPoolDeduplicates(t *testing.T) {
	p := NewConstantPool()
	first := p.AddNameAndType("a", "()V")
	assert.Equal(t, first, p.AddNameAndType("a", "()V"))
	assert.Equal(t, p.AddUtf8("a"), p.AddUtf8("a"))
	assert.Equal(t, 4, p.Len())
}

// ------------------------------------------------------------------
// Remapping
// ------------------------------------------------------------------

func TestRemapRenamesDeclarationsAndReferences(t *testing.T) {
	name, out, err := Remap(sampleClass(t), sampleMapper(), RemapOptions{RebuildSourceFile: true})
	require.NoError(t, err)
	assert.Equal(t, "net/minecraft/Foo", name)

	c, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "net/minecraft/Foo", c.Name())
	require.NotNil(t, c.FindField("count", "I"))
	m := c.FindMethod("doThing", "(Lnet/minecraft/Bar;)V")
	require.NotNil(t, m)

	refs := c.MemberRefs()
	want := []MemberRef{
		{Tag: TagMethodref, Owner: "net/minecraft/Bar", Name: "run", Desc: "()V"},
		{Tag: TagFieldref, Owner: "net/minecraft/Bar", Name: "foo", Desc: "Lnet/minecraft/Foo;"},
	}
	if diff := cmp.Diff(want, refs); diff != "" {
		t.Fatalf("member refs mismatch (-want +got):\n%s", diff)
	}

	locals := c.LocalVariables(m)
	require.Len(t, locals, 2)
	assert.Equal(t, "this", locals[0].Name)
	assert.Equal(t, "Lnet/minecraft/Foo;", locals[0].Desc)
	assert.Equal(t, "bar", locals[1].Name)
	assert.Equal(t, "Lnet/minecraft/Bar;", locals[1].Desc)
	assert.Equal(t, []string{"bar"}, c.ParameterNames(m))

	assert.Equal(t, "Foo.java", c.SourceFile())
	assert.Equal(t, "Ljava/lang/Object;Ljava/util/function/Supplier<Lnet/minecraft/Foo$Inner;>;", c.Signature())
	inner := c.InnerClasses()
	require.Len(t, inner, 1)
	assert.Equal(t, InnerClass{Inner: "net/minecraft/Foo$Inner", Outer: "net/minecraft/Foo", SimpleName: "Inner", Access: AccPublic | AccStatic}, inner[0])
	assert.Equal(t, []LineNumber{{PC: 0, Line: 10}}, c.LineNumbers(m))
}

func TestRemapIsDeterministic(t *testing.T) {
	data := sampleClass(t)
	_, first, err := Remap(data, sampleMapper(), RemapOptions{})
	require.NoError(t, err)
	_, second, err := Remap(data, sampleMapper(), RemapOptions{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRemapKeepsStringConstants(t *testing.T) {
	b := NewBuilder("a", "java/lang/Object")
	b.pool.AddString("a")
	data, err := b.Build()
	require.NoError(t, err)

	_, out, err := Remap(data, sampleMapper(), RemapOptions{})
	require.NoError(t, err)
	c, err := Parse(out)
	require.NoError(t, err)
	found := false
	for i := 1; i < c.Pool.Len(); i++ {
		if e := c.Pool.Get(uint16(i)); e.Tag == TagString {
			assert.Equal(t, "a", c.Pool.Utf8(e.A))
			found = true
		}
	}
	assert.True(t, found)
}

func TestRemapLambdaInterfaceMethod(t *testing.T) {
	b := NewBuilder("a", "java/lang/Object")
	b.Method(AccPublic|AccStatic, "make", "()V").
		Lambda("b", "g", "()V", "a", "lambda$make$0", "()V")
	b.Method(AccPrivate|AccStatic|AccSynthetic, "lambda$make$0", "()V")
	data, err := b.Build()
	require.NoError(t, err)

	_, out, err := Remap(data, sampleMapper(), RemapOptions{})
	require.NoError(t, err)
	c, err := Parse(out)
	require.NoError(t, err)

	var sites []MemberRef
	for _, ref := range c.MemberRefs() {
		if ref.Tag == TagInvokeDynamic {
			sites = append(sites, ref)
		}
	}
	require.Len(t, sites, 1)
	assert.Equal(t, "run", sites[0].Name)
	assert.Equal(t, "()Lnet/minecraft/Bar;", sites[0].Desc)
}

func TestRemapAppliesSignatureFix(t *testing.T) {
	data, err := NewBuilder("a", "java/lang/Record").Build()
	require.NoError(t, err)
	_, out, err := Remap(data, sampleMapper(), RemapOptions{SignatureFix: "Ljava/lang/Record;Lnet/minecraft/Bar;"})
	require.NoError(t, err)
	c, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "Ljava/lang/Record;Lnet/minecraft/Bar;", c.Signature())
}

func TestRemapNestedFollowsOuterWithoutMapping(t *testing.T) {
	mapper := sampleMapper()
	b := NewBuilder("a$d", "java/lang/Object").
		InnerClass("a$d", "a", "d", AccPublic).
		InnerClass("a$1Local", "", "Local", 0)
	data, err := b.Build()
	require.NoError(t, err)

	wrapped := outerFallbackMapper{mapMapper: mapper}
	name, out, err := Remap(data, wrapped, RemapOptions{})
	require.NoError(t, err)
	assert.Equal(t, "net/minecraft/Foo$d", name)
	c, err := Parse(out)
	require.NoError(t, err)
	inner := c.InnerClasses()
	require.Len(t, inner, 2)
	assert.Equal(t, "d", inner[0].SimpleName)
	assert.Equal(t, "net/minecraft/Foo$1Local", inner[1].Inner)
	assert.Equal(t, "Local", inner[1].SimpleName)
}

type outerFallbackMapper struct {
	mapMapper
}

func (m outerFallbackMapper) MapClass(name string) string {
	if mapped, ok := m.classes[name]; ok {
		return mapped
	}
	for i := len(name) - 1; i > 0; i-- {
		if name[i] == '$' {
			return m.MapClass(name[:i]) + name[i:]
		}
	}
	return name
}

func TestInnerSimpleName(t *testing.T) {
	assert.Equal(t, "Inner", innerSimpleName("pkg/Foo$Inner", "pkg/Foo"))
	assert.Equal(t, "Local", innerSimpleName("pkg/Foo$1Local", ""))
	assert.Equal(t, "Deep", innerSimpleName("pkg/Foo$Inner$Deep", "pkg/Foo$Inner"))
	assert.Equal(t, "", innerSimpleName("pkg/Foo$1", ""))
}

// ------------------------------------------------------------------
// Edits
// ------------------------------------------------------------------

func TestAddInvisibleEnumAnnotation(t *testing.T) {
	c, err := Parse(sampleClass(t))
	require.NoError(t, err)
	const env = "Lnet/fabricmc/api/Environment;"
	require.NoError(t, c.AddInvisibleEnumAnnotation(env, "value", "Lnet/fabricmc/api/EnvType;", "CLIENT"))
	require.NoError(t, c.AddInvisibleEnumAnnotation(env, "value", "Lnet/fabricmc/api/EnvType;", "CLIENT"))
	assert.Equal(t, []string{env}, c.AnnotationTypes("RuntimeInvisibleAnnotations"))

	out, err := c.Bytes()
	require.NoError(t, err)
	reparsed, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, []string{env}, reparsed.AnnotationTypes("RuntimeInvisibleAnnotations"))
}

func TestRemapAnnotationsAndEnumConstants(t *testing.T) {
	c, err := Parse(sampleClass(t))
	require.NoError(t, err)
	require.NoError(t, c.AddInvisibleEnumAnnotation("La;", "m", "Lb;", "h"))
	data, err := c.Bytes()
	require.NoError(t, err)

	mapper := sampleMapper()
	mapper.members["a.m()Lb;"] = "side"
	mapper.members["b.h:Lb;"] = "CLIENT"
	_, out, err := Remap(data, mapper, RemapOptions{})
	require.NoError(t, err)
	remapped, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lnet/minecraft/Foo;"}, remapped.AnnotationTypes("RuntimeInvisibleAnnotations"))

	a := remapped.Attribute("RuntimeInvisibleAnnotations")
	require.NotNil(t, a)
	assert.Equal(t, "side", remapped.Pool.Utf8(getU2(a.Data, 6)))
	assert.Equal(t, "Lnet/minecraft/Bar;", remapped.Pool.Utf8(getU2(a.Data, 9)))
	assert.Equal(t, "CLIENT", remapped.Pool.Utf8(getU2(a.Data, 11)))
}

func TestRemapLines(t *testing.T) {
	c, err := Parse(sampleClass(t))
	require.NoError(t, err)
	changed, err := c.RemapLines(func(line int) int { return line + 5 })
	require.NoError(t, err)
	assert.True(t, changed)
	m := c.FindMethod("m", "(Lb;)V")
	assert.Equal(t, []LineNumber{{PC: 0, Line: 15}}, c.LineNumbers(m))

	changed, err = c.RemapLines(func(line int) int { return line })
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSetInnerClassAccess(t *testing.T) {
	c, err := Parse(sampleClass(t))
	require.NoError(t, err)
	assert.True(t, c.SetInnerClassAccess("a$c", func(flags uint16) uint16 { return flags | AccFinal }))
	assert.Equal(t, AccPublic|AccStatic|AccFinal, c.InnerClasses()[0].Access)
	assert.False(t, c.SetInnerClassAccess("missing", func(flags uint16) uint16 { return 0 }))
}
