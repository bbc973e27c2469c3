package classfile

import (
	"errors"
	"strings"
)

var errMalformed = errors.New("malformed attribute")

// annotationWalker steps through annotation structures. With a nil remap
// it only measures them.
type annotationWalker struct {
	data  []byte
	remap *remapper
}

func (w *annotationWalker) check(off int, n int) error {
	if off+n > len(w.data) {
		return errMalformed
	}
	return nil
}

func (w *annotationWalker) annotations(off int) (int, error) {
	if err := w.check(off, 2); err != nil {
		return 0, err
	}
	n := int(getU2(w.data, off))
	off += 2
	var err error
	for i := 0; i < n; i++ {
		if off, err = w.annotation(off); err != nil {
			return 0, err
		}
	}
	return off, nil
}

func (w *annotationWalker) annotation(off int) (int, error) {
	if err := w.check(off, 4); err != nil {
		return 0, err
	}
	var owner string
	if w.remap != nil {
		typeDesc := w.remap.utf8(getU2(w.data, off))
		owner = strings.TrimSuffix(strings.TrimPrefix(typeDesc, "L"), ";")
		w.remap.repointUtf8(w.data, off, w.remap.mapDesc(typeDesc), typeDesc)
	}
	n := int(getU2(w.data, off+2))
	off += 4
	var err error
	for i := 0; i < n; i++ {
		if err := w.check(off, 3); err != nil {
			return 0, err
		}
		if w.remap != nil {
			name := w.remap.utf8(getU2(w.data, off))
			if valueDesc := w.elementDesc(off + 2); valueDesc != "" {
				w.remap.repointUtf8(w.data, off, w.remap.m.MapMethod(owner, name, "()"+valueDesc), name)
			}
		}
		if off, err = w.elementValue(off + 2); err != nil {
			return 0, err
		}
	}
	return off, nil
}

// elementDesc derives the return descriptor of the annotation method an
// element value belongs to. Empty arrays give no hint and yield "".
func (w *annotationWalker) elementDesc(off int) string {
	if off+3 > len(w.data) {
		return ""
	}
	switch tag := w.data[off]; tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return string(tag)
	case 's':
		return "Ljava/lang/String;"
	case 'c':
		return "Ljava/lang/Class;"
	case 'e', '@':
		return w.remap.utf8(getU2(w.data, off+1))
	case '[':
		if getU2(w.data, off+1) == 0 {
			return ""
		}
		if inner := w.elementDesc(off + 3); inner != "" {
			return "[" + inner
		}
	}
	return ""
}

func (w *annotationWalker) elementValue(off int) (int, error) {
	if err := w.check(off, 3); err != nil {
		return 0, err
	}
	switch w.data[off] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		return off + 3, nil
	case 'e':
		if err := w.check(off, 5); err != nil {
			return 0, err
		}
		if w.remap != nil {
			typeDesc := w.remap.utf8(getU2(w.data, off+1))
			constName := w.remap.utf8(getU2(w.data, off+3))
			owner := strings.TrimSuffix(strings.TrimPrefix(typeDesc, "L"), ";")
			w.remap.repointUtf8(w.data, off+3, w.remap.m.MapField(owner, constName, typeDesc), constName)
			w.remap.repointUtf8(w.data, off+1, w.remap.mapDesc(typeDesc), typeDesc)
		}
		return off + 5, nil
	case 'c':
		if w.remap != nil {
			desc := w.remap.utf8(getU2(w.data, off+1))
			w.remap.repointUtf8(w.data, off+1, w.remap.mapDesc(desc), desc)
		}
		return off + 3, nil
	case '@':
		return w.annotation(off + 1)
	case '[':
		n := int(getU2(w.data, off+1))
		off += 3
		var err error
		for i := 0; i < n; i++ {
			if off, err = w.elementValue(off); err != nil {
				return 0, err
			}
		}
		return off, nil
	default:
		return 0, errMalformed
	}
}

func (w *annotationWalker) parameterAnnotations() error {
	if err := w.check(0, 1); err != nil {
		return err
	}
	n := int(w.data[0])
	off := 1
	var err error
	for i := 0; i < n; i++ {
		if off, err = w.annotations(off); err != nil {
			return err
		}
	}
	return nil
}

func (w *annotationWalker) typeAnnotations() error {
	if err := w.check(0, 2); err != nil {
		return err
	}
	n := int(getU2(w.data, 0))
	off := 2
	for i := 0; i < n; i++ {
		if err := w.check(off, 1); err != nil {
			return err
		}
		target := w.data[off]
		off++
		switch {
		case target == 0x00 || target == 0x01 || target == 0x16:
			off++
		case target == 0x10 || target == 0x17 || target == 0x42 || (target >= 0x43 && target <= 0x46):
			off += 2
		case target == 0x11 || target == 0x12:
			off += 2
		case target >= 0x13 && target <= 0x15:
		case target == 0x40 || target == 0x41:
			if err := w.check(off, 2); err != nil {
				return err
			}
			off += 2 + int(getU2(w.data, off))*6
		case target >= 0x47 && target <= 0x4B:
			off += 3
		default:
			return errMalformed
		}
		if err := w.check(off, 1); err != nil {
			return err
		}
		off += 1 + int(w.data[off])*2
		var err error
		if off, err = w.annotation(off); err != nil {
			return err
		}
	}
	return nil
}

func skipAnnotation(data []byte, off int) (int, error) {
	w := &annotationWalker{data: data}
	return w.annotation(off)
}

// AddInvisibleEnumAnnotation adds a runtime-invisible class annotation with
// one enum valued element, e.g. @Environment(EnvType.CLIENT). It does
// nothing when an annotation of the same type is already present.
func (c *Class) AddInvisibleEnumAnnotation(annotationDesc string, element string, enumDesc string, constant string) error {
	const attrName = "RuntimeInvisibleAnnotations"
	for _, existing := range c.AnnotationTypes(attrName) {
		if existing == annotationDesc {
			return nil
		}
	}
	w := &writer{}
	w.u2(c.Pool.AddUtf8(annotationDesc))
	w.u2(1)
	w.u2(c.Pool.AddUtf8(element))
	w.u1('e')
	w.u2(c.Pool.AddUtf8(enumDesc))
	w.u2(c.Pool.AddUtf8(constant))
	if a := c.Attribute(attrName); a != nil {
		if len(a.Data) < 2 {
			return errMalformed
		}
		count := getU2(a.Data, 0)
		data := append(append([]byte(nil), a.Data...), w.buf...)
		putU2(data, 0, count+1)
		a.Data = data
	} else {
		data := append([]byte{0, 1}, w.buf...)
		c.Attributes = append(c.Attributes, &Attribute{NameIndex: c.Pool.AddUtf8(attrName), Data: data})
	}
	return c.Pool.Err()
}
