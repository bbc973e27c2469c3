package classfile

type MemberRef struct {
	Tag   uint8
	Owner string
	Name  string
	Desc  string
}

type LocalVariable struct {
	StartPC int
	Length  int
	Index   int
	Name    string
	Desc    string
}

type LineNumber struct {
	PC   int
	Line int
}

type InnerClass struct {
	Inner      string
	Outer      string
	SimpleName string
	Access     uint16
}

// ClassRefs lists the names of all Class constants.
func (c *Class) ClassRefs() []string {
	var out []string
	for i := 1; i < c.Pool.Len(); i++ {
		if e := c.Pool.Get(uint16(i)); e.Tag == TagClass {
			out = append(out, c.Pool.Utf8(e.A))
		}
	}
	return out
}

// MemberRefs lists field, method and interface method references, and
// (invoke)dynamic call sites with an empty owner.
func (c *Class) MemberRefs() []MemberRef {
	var out []MemberRef
	for i := 1; i < c.Pool.Len(); i++ {
		e := c.Pool.Get(uint16(i))
		switch e.Tag {
		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			name, desc := c.Pool.NameAndType(e.B)
			out = append(out, MemberRef{Tag: e.Tag, Owner: c.Pool.ClassName(e.A), Name: name, Desc: desc})
		case TagInvokeDynamic, TagDynamic:
			name, desc := c.Pool.NameAndType(e.B)
			out = append(out, MemberRef{Tag: e.Tag, Name: name, Desc: desc})
		}
	}
	return out
}

func (c *Class) LocalVariables(m *Member) []LocalVariable {
	code := c.MemberAttribute(m, "Code")
	if code == nil {
		return nil
	}
	nested, err := c.codeAttributes(code.Data)
	if err != nil {
		return nil
	}
	var out []LocalVariable
	for _, a := range nested {
		if a.name != "LocalVariableTable" {
			continue
		}
		data := code.Data[a.off : a.off+a.len]
		n := int(getU2(data, 0))
		for i := 0; i < n; i++ {
			off := 2 + i*10
			out = append(out, LocalVariable{
				StartPC: int(getU2(data, off)),
				Length:  int(getU2(data, off+2)),
				Name:    c.Pool.Utf8(getU2(data, off+4)),
				Desc:    c.Pool.Utf8(getU2(data, off+6)),
				Index:   int(getU2(data, off+8)),
			})
		}
	}
	return out
}

func (c *Class) LineNumbers(m *Member) []LineNumber {
	code := c.MemberAttribute(m, "Code")
	if code == nil {
		return nil
	}
	nested, err := c.codeAttributes(code.Data)
	if err != nil {
		return nil
	}
	var out []LineNumber
	for _, a := range nested {
		if a.name != "LineNumberTable" {
			continue
		}
		data := code.Data[a.off : a.off+a.len]
		n := int(getU2(data, 0))
		for i := 0; i < n; i++ {
			out = append(out, LineNumber{PC: int(getU2(data, 2+i*4)), Line: int(getU2(data, 2+i*4+2))})
		}
	}
	return out
}

// ParameterNames returns the MethodParameters names of m.
func (c *Class) ParameterNames(m *Member) []string {
	a := c.MemberAttribute(m, "MethodParameters")
	if a == nil || len(a.Data) == 0 {
		return nil
	}
	n := int(a.Data[0])
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, c.Pool.Utf8(getU2(a.Data, 1+i*4)))
	}
	return out
}

func (c *Class) InnerClasses() []InnerClass {
	a := c.Attribute("InnerClasses")
	if a == nil {
		return nil
	}
	n := int(getU2(a.Data, 0))
	out := make([]InnerClass, 0, n)
	for i := 0; i < n; i++ {
		off := 2 + i*8
		out = append(out, InnerClass{
			Inner:      c.Pool.ClassName(getU2(a.Data, off)),
			Outer:      c.Pool.ClassName(getU2(a.Data, off+2)),
			SimpleName: c.Pool.Utf8(getU2(a.Data, off+4)),
			Access:     getU2(a.Data, off+6),
		})
	}
	return out
}

func (c *Class) SourceFile() string {
	if a := c.Attribute("SourceFile"); a != nil && len(a.Data) >= 2 {
		return c.Pool.Utf8(getU2(a.Data, 0))
	}
	return ""
}

func (c *Class) Signature() string {
	if a := c.Attribute("Signature"); a != nil && len(a.Data) >= 2 {
		return c.Pool.Utf8(getU2(a.Data, 0))
	}
	return ""
}

func (c *Class) MemberSignature(m *Member) string {
	if a := c.MemberAttribute(m, "Signature"); a != nil && len(a.Data) >= 2 {
		return c.Pool.Utf8(getU2(a.Data, 0))
	}
	return ""
}

// AnnotationTypes lists the type descriptors of the annotations stored in
// the named class attribute, such as "RuntimeInvisibleAnnotations".
func (c *Class) AnnotationTypes(attrName string) []string {
	a := c.Attribute(attrName)
	if a == nil {
		return nil
	}
	n := int(getU2(a.Data, 0))
	var out []string
	off := 2
	for i := 0; i < n; i++ {
		out = append(out, c.Pool.Utf8(getU2(a.Data, off)))
		next, err := skipAnnotation(a.Data, off)
		if err != nil {
			return out
		}
		off = next
	}
	return out
}

// SetInnerClassAccess updates the InnerClasses flags recorded for inner.
func (c *Class) SetInnerClassAccess(inner string, fn func(uint16) uint16) bool {
	a := c.Attribute("InnerClasses")
	if a == nil {
		return false
	}
	changed := false
	n := int(getU2(a.Data, 0))
	for i := 0; i < n; i++ {
		off := 2 + i*8
		if c.Pool.ClassName(getU2(a.Data, off)) != inner {
			continue
		}
		access := getU2(a.Data, off+6)
		if updated := fn(access); updated != access {
			putU2(a.Data, off+6, updated)
			changed = true
		}
	}
	return changed
}
