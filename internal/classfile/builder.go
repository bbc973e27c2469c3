package classfile

import (
	"loomkit/internal/descriptor"
)

const (
	OpGetStatic       byte = 0xB2
	OpPutStatic       byte = 0xB3
	OpGetField        byte = 0xB4
	OpPutField        byte = 0xB5
	OpInvokeVirtual   byte = 0xB6
	OpInvokeSpecial   byte = 0xB7
	OpInvokeStatic    byte = 0xB8
	OpInvokeInterface byte = 0xB9
	OpInvokeDynamic   byte = 0xBA
	OpNew             byte = 0xBB
	opPop             byte = 0x57
)

const refInvokeStatic uint8 = 6

const metafactoryDesc = "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;" +
	"Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;"

// Builder assembles small class files. It covers the structures the
// remapper rewrites and is used to produce fixtures without a JDK.
type Builder struct {
	pool        *ConstantPool
	access      uint16
	name        string
	super       string
	interfaces  []string
	fields      []*Member
	methods     []*MethodBuilder
	sourceFile  string
	signature   string
	inner       []InnerClass
	annotations []string
	bootstraps  [][]uint16
}

type MethodBuilder struct {
	owner     *Builder
	access    uint16
	name      string
	desc      string
	signature string
	code      []byte
	locals    []LocalVariable
	lines     []LineNumber
	params    []string
}

func NewBuilder(name string, super string) *Builder {
	return &Builder{pool: NewConstantPool(), access: AccPublic | AccSuper, name: name, super: super}
}

func (b *Builder) Access(flags uint16) *Builder {
	b.access = flags
	return b
}

func (b *Builder) Interfaces(names ...string) *Builder {
	b.interfaces = append(b.interfaces, names...)
	return b
}

func (b *Builder) Field(access uint16, name string, desc string) *Builder {
	b.fields = append(b.fields, &Member{Access: access, NameIndex: b.pool.AddUtf8(name), DescIndex: b.pool.AddUtf8(desc)})
	return b
}

func (b *Builder) Method(access uint16, name string, desc string) *MethodBuilder {
	m := &MethodBuilder{owner: b, access: access, name: name, desc: desc}
	b.methods = append(b.methods, m)
	return m
}

func (b *Builder) SourceFile(name string) *Builder {
	b.sourceFile = name
	return b
}

func (b *Builder) Signature(sig string) *Builder {
	b.signature = sig
	return b
}

func (b *Builder) InnerClass(inner string, outer string, simple string, access uint16) *Builder {
	b.inner = append(b.inner, InnerClass{Inner: inner, Outer: outer, SimpleName: simple, Access: access})
	return b
}

// Annotation adds a runtime-visible class annotation without elements.
func (b *Builder) Annotation(desc string) *Builder {
	b.annotations = append(b.annotations, desc)
	return b
}

func (m *MethodBuilder) Invoke(op byte, owner string, name string, desc string) *MethodBuilder {
	tag := TagMethodref
	if op == OpInvokeInterface {
		tag = TagInterfaceMethodref
	}
	idx := m.owner.pool.AddMemberRef(tag, owner, name, desc)
	m.code = append(m.code, op, byte(idx>>8), byte(idx))
	if op == OpInvokeInterface {
		slots, _ := descriptor.ArgSlots(desc, false)
		m.code = append(m.code, byte(len(slots)+1), 0)
	}
	return m
}

func (m *MethodBuilder) FieldInsn(op byte, owner string, name string, desc string) *MethodBuilder {
	idx := m.owner.pool.AddMemberRef(TagFieldref, owner, name, desc)
	m.code = append(m.code, op, byte(idx>>8), byte(idx))
	return m
}

func (m *MethodBuilder) New(class string) *MethodBuilder {
	idx := m.owner.pool.AddClass(class)
	m.code = append(m.code, OpNew, byte(idx>>8), byte(idx), opPop)
	return m
}

// Lambda emits an invokedynamic call site bootstrapped by
// LambdaMetafactory.metafactory that implements iface.samName with the
// static method implOwner.implName.
func (m *MethodBuilder) Lambda(iface string, samName string, samDesc string, implOwner string, implName string, implDesc string) *MethodBuilder {
	b := m.owner
	bsm := b.pool.AddMethodHandle(refInvokeStatic, b.pool.AddMemberRef(TagMethodref, lambdaMetafactory, "metafactory", metafactoryDesc))
	impl := b.pool.AddMethodHandle(refInvokeStatic, b.pool.AddMemberRef(TagMethodref, implOwner, implName, implDesc))
	sam := b.pool.AddMethodType(samDesc)
	b.bootstraps = append(b.bootstraps, []uint16{bsm, sam, impl, sam})
	idx := b.pool.AddInvokeDynamic(uint16(len(b.bootstraps)-1), samName, "()L"+iface+";")
	m.code = append(m.code, OpInvokeDynamic, byte(idx>>8), byte(idx), 0, 0, opPop)
	return m
}

// Local declares a local variable live for the whole method body.
func (m *MethodBuilder) Local(index int, name string, desc string) *MethodBuilder {
	m.locals = append(m.locals, LocalVariable{Index: index, Name: name, Desc: desc})
	return m
}

func (m *MethodBuilder) Line(pc int, line int) *MethodBuilder {
	m.lines = append(m.lines, LineNumber{PC: pc, Line: line})
	return m
}

func (m *MethodBuilder) Parameters(names ...string) *MethodBuilder {
	m.params = names
	return m
}

func (m *MethodBuilder) Signature(sig string) *MethodBuilder {
	m.signature = sig
	return m
}

// Class returns the builder that owns the method for chaining.
func (m *MethodBuilder) Class() *Builder {
	return m.owner
}

func returnInsn(desc string) []byte {
	switch ret := descriptor.ReturnType(desc); {
	case ret == "V":
		return []byte{0xB1}
	case ret == "J":
		return []byte{0x09, 0xAD}
	case ret == "F":
		return []byte{0x0B, 0xAE}
	case ret == "D":
		return []byte{0x0E, 0xAF}
	case ret == "" || ret[0] == 'L' || ret[0] == '[':
		return []byte{0x01, 0xB0}
	default:
		return []byte{0x03, 0xAC}
	}
}

func (m *MethodBuilder) build() (*Member, error) {
	p := m.owner.pool
	member := &Member{Access: m.access, NameIndex: p.AddUtf8(m.name), DescIndex: p.AddUtf8(m.desc)}
	if m.signature != "" {
		member.Attributes = append(member.Attributes, u2Attribute(p, "Signature", p.AddUtf8(m.signature)))
	}
	if len(m.params) > 0 {
		w := &writer{}
		w.u1(uint8(len(m.params)))
		for _, name := range m.params {
			w.u2(p.AddUtf8(name))
			w.u2(0)
		}
		member.Attributes = append(member.Attributes, &Attribute{NameIndex: p.AddUtf8("MethodParameters"), Data: w.buf})
	}
	if m.access&AccAbstract != 0 {
		return member, nil
	}
	slots, err := descriptor.ArgSlots(m.desc, m.access&AccStatic != 0)
	if err != nil {
		return nil, err
	}
	maxLocals := 0
	if m.access&AccStatic == 0 {
		maxLocals = 1
	}
	if len(slots) > 0 {
		maxLocals = slots[len(slots)-1] + 2
	}
	for _, l := range m.locals {
		if l.Index+2 > maxLocals {
			maxLocals = l.Index + 2
		}
	}
	code := append(append([]byte(nil), m.code...), returnInsn(m.desc)...)

	var nested []*Attribute
	if len(m.lines) > 0 {
		w := &writer{}
		w.u2(uint16(len(m.lines)))
		for _, l := range m.lines {
			w.u2(uint16(l.PC))
			w.u2(uint16(l.Line))
		}
		nested = append(nested, &Attribute{NameIndex: p.AddUtf8("LineNumberTable"), Data: w.buf})
	}
	if len(m.locals) > 0 {
		w := &writer{}
		w.u2(uint16(len(m.locals)))
		for _, l := range m.locals {
			w.u2(0)
			w.u2(uint16(len(code)))
			w.u2(p.AddUtf8(l.Name))
			w.u2(p.AddUtf8(l.Desc))
			w.u2(uint16(l.Index))
		}
		nested = append(nested, &Attribute{NameIndex: p.AddUtf8("LocalVariableTable"), Data: w.buf})
	}
	w := &writer{}
	w.u2(16)
	w.u2(uint16(maxLocals))
	w.u4(uint32(len(code)))
	w.bytes(code)
	w.u2(0)
	writeAttributes(w, nested)
	member.Attributes = append(member.Attributes, &Attribute{NameIndex: p.AddUtf8("Code"), Data: w.buf})
	return member, nil
}

func u2Attribute(p *ConstantPool, name string, value uint16) *Attribute {
	data := make([]byte, 2)
	putU2(data, 0, value)
	return &Attribute{NameIndex: p.AddUtf8(name), Data: data}
}

// Build encodes the class file for Java 8 (major version 52).
func (b *Builder) Build() ([]byte, error) {
	p := b.pool
	c := &Class{Major: 52, Pool: p, Access: b.access, ThisClass: p.AddClass(b.name)}
	if b.super != "" {
		c.SuperClass = p.AddClass(b.super)
	}
	for _, i := range b.interfaces {
		c.Interfaces = append(c.Interfaces, p.AddClass(i))
	}
	c.Fields = b.fields
	for _, m := range b.methods {
		member, err := m.build()
		if err != nil {
			return nil, err
		}
		c.Methods = append(c.Methods, member)
	}
	if b.sourceFile != "" {
		c.Attributes = append(c.Attributes, u2Attribute(p, "SourceFile", p.AddUtf8(b.sourceFile)))
	}
	if b.signature != "" {
		c.Attributes = append(c.Attributes, u2Attribute(p, "Signature", p.AddUtf8(b.signature)))
	}
	if len(b.inner) > 0 {
		w := &writer{}
		w.u2(uint16(len(b.inner)))
		for _, ic := range b.inner {
			w.u2(p.AddClass(ic.Inner))
			if ic.Outer != "" {
				w.u2(p.AddClass(ic.Outer))
			} else {
				w.u2(0)
			}
			if ic.SimpleName != "" {
				w.u2(p.AddUtf8(ic.SimpleName))
			} else {
				w.u2(0)
			}
			w.u2(ic.Access)
		}
		c.Attributes = append(c.Attributes, &Attribute{NameIndex: p.AddUtf8("InnerClasses"), Data: w.buf})
	}
	if len(b.annotations) > 0 {
		w := &writer{}
		w.u2(uint16(len(b.annotations)))
		for _, desc := range b.annotations {
			w.u2(p.AddUtf8(desc))
			w.u2(0)
		}
		c.Attributes = append(c.Attributes, &Attribute{NameIndex: p.AddUtf8("RuntimeVisibleAnnotations"), Data: w.buf})
	}
	if len(b.bootstraps) > 0 {
		w := &writer{}
		w.u2(uint16(len(b.bootstraps)))
		for _, bm := range b.bootstraps {
			w.u2(bm[0])
			w.u2(uint16(len(bm) - 1))
			for _, arg := range bm[1:] {
				w.u2(arg)
			}
		}
		c.Attributes = append(c.Attributes, &Attribute{NameIndex: p.AddUtf8("BootstrapMethods"), Data: w.buf})
	}
	return c.Bytes()
}

// MustBuild is Build for fixtures; it panics on error.
func (b *Builder) MustBuild() []byte {
	data, err := b.Build()
	if err != nil {
		panic(err)
	}
	return data
}
