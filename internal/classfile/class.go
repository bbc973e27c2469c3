// Package classfile reads, edits and writes JVM class files. Edits never
// rewrite existing constant pool entries; new entries are appended and the
// referencing indices are repointed, so untouched bytes stay identical.
package classfile

import (
	"fmt"
)

const magic = 0xCAFEBABE

const (
	AccPublic     uint16 = 0x0001
	AccPrivate    uint16 = 0x0002
	AccProtected  uint16 = 0x0004
	AccStatic     uint16 = 0x0008
	AccFinal      uint16 = 0x0010
	AccSuper      uint16 = 0x0020
	AccBridge     uint16 = 0x0040
	AccVarargs    uint16 = 0x0080
	AccInterface  uint16 = 0x0200
	AccAbstract   uint16 = 0x0400
	AccSynthetic  uint16 = 0x1000
	AccAnnotation uint16 = 0x2000
	AccEnum       uint16 = 0x4000
)

// VisibilityMask covers the public, private and protected bits.
const VisibilityMask = AccPublic | AccPrivate | AccProtected

type Attribute struct {
	NameIndex uint16
	Data      []byte
}

type Member struct {
	Access     uint16
	NameIndex  uint16
	DescIndex  uint16
	Attributes []*Attribute
}

type Class struct {
	Minor      uint16
	Major      uint16
	Pool       *ConstantPool
	Access     uint16
	ThisClass  uint16
	SuperClass uint16
	Interfaces []uint16
	Fields     []*Member
	Methods    []*Member
	Attributes []*Attribute
}

// Parse decodes a class file. The returned class owns copies of all bytes.
func Parse(data []byte) (*Class, error) {
	r := &reader{buf: data}
	if r.u4() != magic {
		if r.err != nil {
			return nil, r.err
		}
		return nil, fmt.Errorf("not a class file")
	}
	c := &Class{Minor: r.u2(), Major: r.u2()}
	pool, err := parseConstantPool(r)
	if err != nil {
		return nil, err
	}
	c.Pool = pool
	c.Access = r.u2()
	c.ThisClass = r.u2()
	c.SuperClass = r.u2()
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		c.Interfaces = append(c.Interfaces, r.u2())
	}
	c.Fields = parseMembers(r)
	c.Methods = parseMembers(r)
	c.Attributes = parseAttributes(r)
	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(data) {
		return nil, fmt.Errorf("%d trailing bytes after class file", len(data)-r.off)
	}
	return c, nil
}

func parseMembers(r *reader) []*Member {
	n := int(r.u2())
	out := make([]*Member, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		m := &Member{Access: r.u2(), NameIndex: r.u2(), DescIndex: r.u2()}
		m.Attributes = parseAttributes(r)
		out = append(out, m)
	}
	return out
}

func parseAttributes(r *reader) []*Attribute {
	n := int(r.u2())
	out := make([]*Attribute, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		a := &Attribute{NameIndex: r.u2()}
		a.Data = r.bytes(int(r.u4()))
		out = append(out, a)
	}
	return out
}

// Bytes encodes the class file.
func (c *Class) Bytes() ([]byte, error) {
	if err := c.Pool.Err(); err != nil {
		return nil, err
	}
	w := &writer{}
	w.u4(magic)
	w.u2(c.Minor)
	w.u2(c.Major)
	c.Pool.write(w)
	w.u2(c.Access)
	w.u2(c.ThisClass)
	w.u2(c.SuperClass)
	w.u2(uint16(len(c.Interfaces)))
	for _, i := range c.Interfaces {
		w.u2(i)
	}
	writeMembers(w, c.Fields)
	writeMembers(w, c.Methods)
	writeAttributes(w, c.Attributes)
	return w.buf, nil
}

func writeMembers(w *writer, members []*Member) {
	w.u2(uint16(len(members)))
	for _, m := range members {
		w.u2(m.Access)
		w.u2(m.NameIndex)
		w.u2(m.DescIndex)
		writeAttributes(w, m.Attributes)
	}
}

func writeAttributes(w *writer, attrs []*Attribute) {
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		w.u2(a.NameIndex)
		w.u4(uint32(len(a.Data)))
		w.bytes(a.Data)
	}
}

func (c *Class) Name() string {
	return c.Pool.ClassName(c.ThisClass)
}

// SuperName returns "" for java/lang/Object and module-info.
func (c *Class) SuperName() string {
	if c.SuperClass == 0 {
		return ""
	}
	return c.Pool.ClassName(c.SuperClass)
}

func (c *Class) InterfaceNames() []string {
	out := make([]string, 0, len(c.Interfaces))
	for _, i := range c.Interfaces {
		out = append(out, c.Pool.ClassName(i))
	}
	return out
}

func (c *Class) MemberName(m *Member) string {
	return c.Pool.Utf8(m.NameIndex)
}

func (c *Class) MemberDesc(m *Member) string {
	return c.Pool.Utf8(m.DescIndex)
}

// FindField finds a declared field; an empty desc matches any descriptor.
func (c *Class) FindField(name string, desc string) *Member {
	for _, f := range c.Fields {
		if c.MemberName(f) == name && (desc == "" || c.MemberDesc(f) == desc) {
			return f
		}
	}
	return nil
}

func (c *Class) FindMethod(name string, desc string) *Member {
	for _, m := range c.Methods {
		if c.MemberName(m) == name && (desc == "" || c.MemberDesc(m) == desc) {
			return m
		}
	}
	return nil
}

func (c *Class) attribute(attrs []*Attribute, name string) *Attribute {
	for _, a := range attrs {
		if c.Pool.Utf8(a.NameIndex) == name {
			return a
		}
	}
	return nil
}

// Attribute returns the first class attribute with the given name.
func (c *Class) Attribute(name string) *Attribute {
	return c.attribute(c.Attributes, name)
}

// MemberAttribute returns the first attribute of m with the given name.
func (c *Class) MemberAttribute(m *Member, name string) *Attribute {
	return c.attribute(m.Attributes, name)
}

// IsInterface reports whether the class is an interface.
func (c *Class) IsInterface() bool {
	return c.Access&AccInterface != 0
}
