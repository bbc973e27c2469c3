package classfile

import (
	"fmt"
	"strings"

	"loomkit/internal/descriptor"
)

// Mapper resolves names from the class file's current namespace. Owners,
// names and descriptors passed in are always the original ones.
type Mapper interface {
	MapClass(name string) string
	MapField(owner string, name string, desc string) string
	MapMethod(owner string, name string, desc string) string
	// MapArg returns the name of the parameter stored in local variable
	// slot lvIndex, if one is known.
	MapArg(owner string, name string, desc string, lvIndex int) (string, bool)
}

type RemapOptions struct {
	// SignatureFix replaces the class Signature after renaming. It is
	// expressed in the target namespace.
	SignatureFix string
	// RebuildSourceFile derives SourceFile from the outermost class name.
	RebuildSourceFile bool
}

const (
	lambdaMetafactory = "java/lang/invoke/LambdaMetafactory"
)

// Remap renames every symbol of a class file and returns the new internal
// class name with the encoded bytes.
func Remap(data []byte, m Mapper, opts RemapOptions) (string, []byte, error) {
	c, err := Parse(data)
	if err != nil {
		return "", nil, err
	}
	if err := RemapClass(c, m, opts); err != nil {
		return "", nil, err
	}
	out, err := c.Bytes()
	if err != nil {
		return "", nil, err
	}
	return c.Name(), out, nil
}

// RemapClass renames c in place.
func RemapClass(c *Class, m Mapper, opts RemapOptions) error {
	r := &remapper{c: c, orig: c.Pool.Clone(), m: m, opts: opts}
	r.this = r.orig.ClassName(c.ThisClass)
	if err := r.run(); err != nil {
		return fmt.Errorf("remap %s: %w", r.this, err)
	}
	return c.Pool.Err()
}

type remapper struct {
	c    *Class
	orig *ConstantPool
	m    Mapper
	opts RemapOptions
	this string
}

type methodContext struct {
	name  string
	desc  string
	slots []int
}

func (r *remapper) utf8(idx uint16) string {
	return r.orig.Utf8(idx)
}

func (r *remapper) mapDesc(desc string) string {
	return descriptor.MapDesc(desc, r.m.MapClass)
}

func (r *remapper) repointUtf8(data []byte, off int, mapped string, original string) {
	if mapped != original && mapped != "" {
		putU2(data, off, r.c.Pool.AddUtf8(mapped))
	}
}

func (r *remapper) run() error {
	bootstraps, err := r.bootstrapMethods()
	if err != nil {
		return err
	}
	if err := r.remapPool(bootstraps); err != nil {
		return err
	}
	for _, f := range r.c.Fields {
		name, desc := r.utf8(f.NameIndex), r.utf8(f.DescIndex)
		if mapped := r.m.MapField(r.this, name, desc); mapped != name {
			f.NameIndex = r.c.Pool.AddUtf8(mapped)
		}
		if mapped := r.mapDesc(desc); mapped != desc {
			f.DescIndex = r.c.Pool.AddUtf8(mapped)
		}
		if err := r.remapAttributes(f.Attributes, nil); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	for _, method := range r.c.Methods {
		name, desc := r.utf8(method.NameIndex), r.utf8(method.DescIndex)
		if name != "<init>" && name != "<clinit>" {
			if mapped := r.m.MapMethod(r.this, name, desc); mapped != name {
				method.NameIndex = r.c.Pool.AddUtf8(mapped)
			}
		}
		if mapped := r.mapDesc(desc); mapped != desc {
			method.DescIndex = r.c.Pool.AddUtf8(mapped)
		}
		slots, err := descriptor.ArgSlots(desc, method.Access&AccStatic != 0)
		if err != nil {
			return err
		}
		ctx := &methodContext{name: name, desc: desc, slots: slots}
		if err := r.remapAttributes(method.Attributes, ctx); err != nil {
			return fmt.Errorf("method %s%s: %w", name, desc, err)
		}
	}
	if err := r.remapAttributes(r.c.Attributes, nil); err != nil {
		return err
	}
	if r.opts.SignatureFix != "" {
		r.applySignatureFix()
	}
	return nil
}

type bootstrapMethod struct {
	ref  uint16
	args []uint16
}

func (r *remapper) bootstrapMethods() ([]bootstrapMethod, error) {
	a := r.c.Attribute("BootstrapMethods")
	if a == nil {
		return nil, nil
	}
	rd := &reader{buf: a.Data}
	n := int(rd.u2())
	out := make([]bootstrapMethod, 0, n)
	for i := 0; i < n && rd.err == nil; i++ {
		bm := bootstrapMethod{ref: rd.u2()}
		argc := int(rd.u2())
		for j := 0; j < argc && rd.err == nil; j++ {
			bm.args = append(bm.args, rd.u2())
		}
		out = append(out, bm)
	}
	if rd.err != nil {
		return nil, fmt.Errorf("BootstrapMethods: %w", rd.err)
	}
	return out, nil
}

func (r *remapper) remapPool(bootstraps []bootstrapMethod) error {
	pool := r.c.Pool
	for i := 1; i < r.orig.Len(); i++ {
		idx := uint16(i)
		e := r.orig.Get(idx)
		switch e.Tag {
		case TagClass:
			name := r.orig.Utf8(e.A)
			if mapped := descriptor.MapType(name, r.m.MapClass); mapped != name {
				e.A = pool.AddUtf8(mapped)
				pool.Set(idx, e)
			}
		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			owner := r.orig.ClassName(e.A)
			name, desc := r.orig.NameAndType(e.B)
			var mappedName string
			if e.Tag == TagFieldref {
				mappedName = r.m.MapField(owner, name, desc)
			} else if name == "<init>" || name == "<clinit>" {
				mappedName = name
			} else {
				mappedName = r.m.MapMethod(owner, name, desc)
			}
			mappedDesc := r.mapDesc(desc)
			if mappedName != name || mappedDesc != desc {
				e.B = pool.AddNameAndType(mappedName, mappedDesc)
				pool.Set(idx, e)
			}
		case TagMethodType:
			desc := r.orig.Utf8(e.A)
			if mapped := r.mapDesc(desc); mapped != desc {
				e.A = pool.AddUtf8(mapped)
				pool.Set(idx, e)
			}
		case TagInvokeDynamic, TagDynamic:
			name, desc := r.orig.NameAndType(e.B)
			mappedName := name
			if e.Tag == TagInvokeDynamic && int(e.A) < len(bootstraps) {
				mappedName = r.lambdaName(bootstraps[e.A], name, desc)
			}
			mappedDesc := r.mapDesc(desc)
			if mappedName != name || mappedDesc != desc {
				e.B = pool.AddNameAndType(mappedName, mappedDesc)
				pool.Set(idx, e)
			}
		}
	}
	return nil
}

// lambdaName maps the functional interface method name of a
// LambdaMetafactory call site. The interface is the call site's return type
// and the erased method type is the first bootstrap argument.
func (r *remapper) lambdaName(bm bootstrapMethod, name string, desc string) string {
	handle := r.orig.Get(bm.ref)
	if handle.Tag != TagMethodHandle || len(bm.args) == 0 {
		return name
	}
	ref := r.orig.Get(handle.A)
	bsmName, _ := r.orig.NameAndType(ref.B)
	if r.orig.ClassName(ref.A) != lambdaMetafactory || (bsmName != "metafactory" && bsmName != "altMetafactory") {
		return name
	}
	samType := r.orig.Get(bm.args[0])
	if samType.Tag != TagMethodType {
		return name
	}
	ret := descriptor.ReturnType(desc)
	if !strings.HasPrefix(ret, "L") {
		return name
	}
	iface := ret[1 : len(ret)-1]
	return r.m.MapMethod(iface, name, r.orig.Utf8(samType.A))
}

func (r *remapper) remapAttributes(attrs []*Attribute, ctx *methodContext) error {
	for _, a := range attrs {
		name := r.utf8(a.NameIndex)
		if err := r.remapAttribute(name, a.Data, ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (r *remapper) remapAttribute(name string, data []byte, ctx *methodContext) error {
	switch name {
	case "Signature":
		if len(data) < 2 {
			return errMalformed
		}
		sig := r.utf8(getU2(data, 0))
		mapped, err := descriptor.MapSignature(sig, r.m.MapClass)
		if err != nil {
			return err
		}
		r.repointUtf8(data, 0, mapped, sig)
	case "SourceFile":
		if r.opts.RebuildSourceFile && len(data) >= 2 {
			orig := r.utf8(getU2(data, 0))
			r.repointUtf8(data, 0, r.sourceFileName(orig), orig)
		}
	case "InnerClasses":
		return r.remapInnerClasses(data)
	case "EnclosingMethod":
		return r.remapEnclosingMethod(data)
	case "Record":
		return r.remapRecord(data)
	case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
		w := &annotationWalker{data: data, remap: r}
		_, err := w.annotations(0)
		return err
	case "RuntimeVisibleParameterAnnotations", "RuntimeInvisibleParameterAnnotations":
		w := &annotationWalker{data: data, remap: r}
		return w.parameterAnnotations()
	case "RuntimeVisibleTypeAnnotations", "RuntimeInvisibleTypeAnnotations":
		w := &annotationWalker{data: data, remap: r}
		return w.typeAnnotations()
	case "AnnotationDefault":
		w := &annotationWalker{data: data, remap: r}
		_, err := w.elementValue(0)
		return err
	case "Code":
		return r.remapCode(data, ctx)
	case "MethodParameters":
		return r.remapMethodParameters(data, ctx)
	case "LocalVariableTable", "LocalVariableTypeTable":
		return r.remapLocals(name, data, ctx)
	}
	return nil
}

func (r *remapper) sourceFileName(orig string) string {
	ext := ".java"
	if dot := strings.LastIndexByte(orig, '.'); dot > 0 {
		ext = orig[dot:]
	}
	return descriptor.SimpleName(descriptor.OuterClass(r.c.Name())) + ext
}

func (r *remapper) remapCode(data []byte, ctx *methodContext) error {
	nested, err := r.c.codeAttributes(data)
	if err != nil {
		return err
	}
	for _, a := range nested {
		if err := r.remapAttribute(a.name, data[a.off:a.off+a.len], ctx); err != nil {
			return fmt.Errorf("%s: %w", a.name, err)
		}
	}
	return nil
}

func (r *remapper) isParamSlot(ctx *methodContext, slot int) bool {
	if ctx == nil {
		return false
	}
	for _, s := range ctx.slots {
		if s == slot {
			return true
		}
	}
	return false
}

func (r *remapper) remapLocals(kind string, data []byte, ctx *methodContext) error {
	if len(data) < 2 {
		return errMalformed
	}
	n := int(getU2(data, 0))
	if len(data) < 2+n*10 {
		return errMalformed
	}
	for i := 0; i < n; i++ {
		off := 2 + i*10
		slot := int(getU2(data, off+8))
		name := r.utf8(getU2(data, off+4))
		if r.isParamSlot(ctx, slot) {
			if mapped, ok := r.m.MapArg(r.this, ctx.name, ctx.desc, slot); ok {
				r.repointUtf8(data, off+4, mapped, name)
			}
		}
		typ := r.utf8(getU2(data, off+6))
		if kind == "LocalVariableTable" {
			r.repointUtf8(data, off+6, r.mapDesc(typ), typ)
			continue
		}
		mapped, err := descriptor.MapSignature(typ, r.m.MapClass)
		if err != nil {
			return err
		}
		r.repointUtf8(data, off+6, mapped, typ)
	}
	return nil
}

func (r *remapper) remapMethodParameters(data []byte, ctx *methodContext) error {
	if len(data) < 1 {
		return errMalformed
	}
	n := int(data[0])
	if len(data) < 1+n*4 {
		return errMalformed
	}
	for i := 0; i < n && ctx != nil && i < len(ctx.slots); i++ {
		off := 1 + i*4
		if mapped, ok := r.m.MapArg(r.this, ctx.name, ctx.desc, ctx.slots[i]); ok {
			r.repointUtf8(data, off, mapped, r.utf8(getU2(data, off)))
		}
	}
	return nil
}

func (r *remapper) remapInnerClasses(data []byte) error {
	if len(data) < 2 {
		return errMalformed
	}
	n := int(getU2(data, 0))
	if len(data) < 2+n*8 {
		return errMalformed
	}
	for i := 0; i < n; i++ {
		off := 2 + i*8
		simpleIdx := getU2(data, off+4)
		if simpleIdx == 0 {
			continue
		}
		innerIdx, outerIdx := getU2(data, off), getU2(data, off+2)
		mappedInner := r.c.Pool.ClassName(innerIdx)
		if mappedInner == r.orig.ClassName(innerIdx) {
			continue
		}
		mappedOuter := ""
		if outerIdx != 0 {
			mappedOuter = r.c.Pool.ClassName(outerIdx)
		}
		if simple := innerSimpleName(mappedInner, mappedOuter); simple != "" {
			r.repointUtf8(data, off+4, simple, r.utf8(simpleIdx))
		}
	}
	return nil
}

// innerSimpleName derives the simple name of a nested class from its binary
// name. Local classes drop their numeric prefix ("Outer$1Local" -> "Local").
func innerSimpleName(inner string, outer string) string {
	if outer != "" && strings.HasPrefix(inner, outer+"$") {
		return inner[len(outer)+1:]
	}
	simple := descriptor.SimpleName(inner)
	if idx := strings.LastIndexByte(simple, '$'); idx >= 0 {
		simple = simple[idx+1:]
	}
	return strings.TrimLeft(simple, "0123456789")
}

func (r *remapper) remapEnclosingMethod(data []byte) error {
	if len(data) < 4 {
		return errMalformed
	}
	natIdx := getU2(data, 2)
	if natIdx == 0 {
		return nil
	}
	owner := r.orig.ClassName(getU2(data, 0))
	name, desc := r.orig.NameAndType(natIdx)
	mappedName := name
	if name != "<init>" && name != "<clinit>" {
		mappedName = r.m.MapMethod(owner, name, desc)
	}
	mappedDesc := r.mapDesc(desc)
	if mappedName != name || mappedDesc != desc {
		putU2(data, 2, r.c.Pool.AddNameAndType(mappedName, mappedDesc))
	}
	return nil
}

func (r *remapper) remapRecord(data []byte) error {
	rd := &reader{buf: data}
	n := int(rd.u2())
	for i := 0; i < n && rd.err == nil; i++ {
		nameOff := rd.off
		name, desc := r.utf8(rd.u2()), r.utf8(rd.u2())
		if rd.err != nil {
			break
		}
		r.repointUtf8(data, nameOff, r.m.MapField(r.this, name, desc), name)
		r.repointUtf8(data, nameOff+2, r.mapDesc(desc), desc)
		attrs := int(rd.u2())
		for j := 0; j < attrs && rd.err == nil; j++ {
			attrName := r.utf8(rd.u2())
			length := int(rd.u4())
			start := rd.off
			rd.skip(length)
			if rd.err != nil {
				break
			}
			if err := r.remapAttribute(attrName, data[start:start+length], nil); err != nil {
				return fmt.Errorf("component %s: %s: %w", name, attrName, err)
			}
		}
	}
	return rd.err
}

func (r *remapper) applySignatureFix() {
	idx := r.c.Pool.AddUtf8(r.opts.SignatureFix)
	if a := r.c.Attribute("Signature"); a != nil && len(a.Data) >= 2 {
		putU2(a.Data, 0, idx)
		return
	}
	data := make([]byte, 2)
	putU2(data, 0, idx)
	r.c.Attributes = append(r.c.Attributes, &Attribute{NameIndex: r.c.Pool.AddUtf8("Signature"), Data: data})
}
