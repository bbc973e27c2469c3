package classfile

import "fmt"

// nestedAttr locates an attribute inside a Code attribute's data.
type nestedAttr struct {
	name string
	off  int
	len  int
}

// codeAttributes returns the attributes nested in a Code attribute.
func (c *Class) codeAttributes(code []byte) ([]nestedAttr, error) {
	r := &reader{buf: code}
	r.skip(4)
	r.skip(int(r.u4()))
	r.skip(int(r.u2()) * 8)
	n := int(r.u2())
	out := make([]nestedAttr, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		name := c.Pool.Utf8(r.u2())
		length := int(r.u4())
		out = append(out, nestedAttr{name: name, off: r.off, len: length})
		r.skip(length)
	}
	if r.err != nil {
		return nil, fmt.Errorf("malformed Code attribute: %w", r.err)
	}
	return out, nil
}

// instructions returns the bytecode array of a Code attribute.
func codeBytes(code []byte) []byte {
	if len(code) < 8 {
		return nil
	}
	n := int(uint32(code[4])<<24 | uint32(code[5])<<16 | uint32(code[6])<<8 | uint32(code[7]))
	if 8+n > len(code) {
		return nil
	}
	return code[8 : 8+n]
}

// RemapLines rewrites every LineNumberTable entry of the class through fn.
// It reports whether any line changed.
func (c *Class) RemapLines(fn func(line int) int) (bool, error) {
	changed := false
	for _, m := range c.Methods {
		code := c.MemberAttribute(m, "Code")
		if code == nil {
			continue
		}
		nested, err := c.codeAttributes(code.Data)
		if err != nil {
			return false, fmt.Errorf("method %s%s: %w", c.MemberName(m), c.MemberDesc(m), err)
		}
		for _, a := range nested {
			if a.name != "LineNumberTable" {
				continue
			}
			data := code.Data[a.off : a.off+a.len]
			n := int(getU2(data, 0))
			for i := 0; i < n; i++ {
				off := 2 + i*4 + 2
				line := int(getU2(data, off))
				if mapped := fn(line); mapped != line {
					putU2(data, off, uint16(mapped))
					changed = true
				}
			}
		}
	}
	return changed, nil
}
