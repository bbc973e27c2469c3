package classfile

import (
	"fmt"
	"unicode/utf16"
)

const (
	TagUtf8               uint8 = 1
	TagInteger            uint8 = 3
	TagFloat              uint8 = 4
	TagLong               uint8 = 5
	TagDouble             uint8 = 6
	TagClass              uint8 = 7
	TagString             uint8 = 8
	TagFieldref           uint8 = 9
	TagMethodref          uint8 = 10
	TagInterfaceMethodref uint8 = 11
	TagNameAndType        uint8 = 12
	TagMethodHandle       uint8 = 15
	TagMethodType         uint8 = 16
	TagDynamic            uint8 = 17
	TagInvokeDynamic      uint8 = 18
	TagModule             uint8 = 19
	TagPackage            uint8 = 20
)

const maxPoolSize = 0xFFFF

// Constant is one constant pool entry. A and B hold the referenced indices:
// Class/String/MethodType/Module/Package use A; member refs use A for the
// class and B for the NameAndType; NameAndType uses A for the name and B for
// the descriptor; MethodHandle uses Kind and A; (Invoke)Dynamic uses A for
// the bootstrap method and B for the NameAndType.
type Constant struct {
	Tag  uint8
	Kind uint8
	A    uint16
	B    uint16
	Str  string
	Raw  []byte
}

// ConstantPool keeps entries at their class file indices. Index 0 and the
// second slot of long/double entries hold a zero Constant.
type ConstantPool struct {
	entries []Constant
	utf8    map[string]uint16
	pairs   map[[3]uint16]uint16
	err     error
}

func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: make([]Constant, 1)}
}

// Len is the constant_pool_count value.
func (p *ConstantPool) Len() int {
	return len(p.entries)
}

func (p *ConstantPool) Get(idx uint16) Constant {
	if int(idx) >= len(p.entries) {
		return Constant{}
	}
	return p.entries[idx]
}

// Set replaces an entry. Lookup caches stay valid for every other entry.
func (p *ConstantPool) Set(idx uint16, c Constant) {
	old := p.entries[idx]
	p.entries[idx] = c
	if old.Tag == TagUtf8 || c.Tag == TagUtf8 {
		p.utf8 = nil
	}
	if p.pairs == nil {
		return
	}
	if key := [3]uint16{uint16(old.Tag), old.A, old.B}; p.pairs[key] == idx {
		delete(p.pairs, key)
	}
	if isPairTag(c.Tag) {
		if key := [3]uint16{uint16(c.Tag), c.A, c.B}; p.pairs[key] == 0 {
			p.pairs[key] = idx
		}
	}
}

func isPairTag(tag uint8) bool {
	switch tag {
	case TagClass, TagString, TagMethodType, TagNameAndType, TagFieldref, TagMethodref, TagInterfaceMethodref:
		return true
	}
	return false
}

// Err reports the first overflow encountered while adding entries.
func (p *ConstantPool) Err() error {
	return p.err
}

// Utf8 returns the string of a Utf8 entry or "" for any other index.
func (p *ConstantPool) Utf8(idx uint16) string {
	c := p.Get(idx)
	if c.Tag != TagUtf8 {
		return ""
	}
	return c.Str
}

// ClassName returns the name of a Class entry.
func (p *ConstantPool) ClassName(idx uint16) string {
	c := p.Get(idx)
	if c.Tag != TagClass {
		return ""
	}
	return p.Utf8(c.A)
}

// NameAndType returns the name and descriptor of a NameAndType entry.
func (p *ConstantPool) NameAndType(idx uint16) (string, string) {
	c := p.Get(idx)
	if c.Tag != TagNameAndType {
		return "", ""
	}
	return p.Utf8(c.A), p.Utf8(c.B)
}

// Clone copies the entries so later additions do not affect the copy.
func (p *ConstantPool) Clone() *ConstantPool {
	return &ConstantPool{entries: append([]Constant(nil), p.entries...)}
}

func (p *ConstantPool) add(c Constant) uint16 {
	width := 1
	if c.Tag == TagLong || c.Tag == TagDouble {
		width = 2
	}
	if len(p.entries)+width > maxPoolSize {
		if p.err == nil {
			p.err = fmt.Errorf("constant pool exceeds %d entries", maxPoolSize)
		}
		return 0
	}
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	if width == 2 {
		p.entries = append(p.entries, Constant{})
	}
	return idx
}

// AddUtf8 returns the index of a Utf8 entry holding s, appending one when
// the pool has none.
func (p *ConstantPool) AddUtf8(s string) uint16 {
	if p.utf8 == nil {
		p.utf8 = make(map[string]uint16, len(p.entries))
		for i, c := range p.entries {
			if c.Tag == TagUtf8 {
				if _, ok := p.utf8[c.Str]; !ok {
					p.utf8[c.Str] = uint16(i)
				}
			}
		}
	}
	if idx, ok := p.utf8[s]; ok {
		return idx
	}
	idx := p.add(Constant{Tag: TagUtf8, Str: s})
	if idx != 0 {
		p.utf8[s] = idx
	}
	return idx
}

func (p *ConstantPool) addPair(tag uint8, a uint16, b uint16) uint16 {
	if p.pairs == nil {
		p.pairs = map[[3]uint16]uint16{}
		for i, c := range p.entries {
			if !isPairTag(c.Tag) {
				continue
			}
			key := [3]uint16{uint16(c.Tag), c.A, c.B}
			if _, ok := p.pairs[key]; !ok {
				p.pairs[key] = uint16(i)
			}
		}
	}
	key := [3]uint16{uint16(tag), a, b}
	if idx, ok := p.pairs[key]; ok {
		return idx
	}
	idx := p.add(Constant{Tag: tag, A: a, B: b})
	if idx != 0 {
		p.pairs[key] = idx
	}
	return idx
}

func (p *ConstantPool) AddClass(name string) uint16 {
	return p.addPair(TagClass, p.AddUtf8(name), 0)
}

func (p *ConstantPool) AddString(s string) uint16 {
	return p.addPair(TagString, p.AddUtf8(s), 0)
}

func (p *ConstantPool) AddMethodType(desc string) uint16 {
	return p.addPair(TagMethodType, p.AddUtf8(desc), 0)
}

func (p *ConstantPool) AddNameAndType(name string, desc string) uint16 {
	return p.addPair(TagNameAndType, p.AddUtf8(name), p.AddUtf8(desc))
}

// AddMemberRef adds a Fieldref, Methodref or InterfaceMethodref.
func (p *ConstantPool) AddMemberRef(tag uint8, owner string, name string, desc string) uint16 {
	return p.addPair(tag, p.AddClass(owner), p.AddNameAndType(name, desc))
}

func (p *ConstantPool) AddMethodHandle(kind uint8, ref uint16) uint16 {
	return p.add(Constant{Tag: TagMethodHandle, Kind: kind, A: ref})
}

func (p *ConstantPool) AddInvokeDynamic(bootstrap uint16, name string, desc string) uint16 {
	return p.add(Constant{Tag: TagInvokeDynamic, A: bootstrap, B: p.AddNameAndType(name, desc)})
}

func parseConstantPool(r *reader) (*ConstantPool, error) {
	count := int(r.u2())
	p := &ConstantPool{entries: make([]Constant, 1, count)}
	for len(p.entries) < count {
		tag := r.u1()
		c := Constant{Tag: tag}
		switch tag {
		case TagUtf8:
			n := int(r.u2())
			c.Raw = r.bytes(n)
			c.Str = decodeModifiedUTF8(c.Raw)
		case TagInteger, TagFloat:
			c.Raw = r.bytes(4)
		case TagLong, TagDouble:
			c.Raw = r.bytes(8)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			c.A = r.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			c.A = r.u2()
			c.B = r.u2()
		case TagMethodHandle:
			c.Kind = r.u1()
			c.A = r.u2()
		default:
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, len(p.entries))
		}
		if r.err != nil {
			return nil, r.err
		}
		p.entries = append(p.entries, c)
		if tag == TagLong || tag == TagDouble {
			p.entries = append(p.entries, Constant{})
		}
	}
	return p, nil
}

func (p *ConstantPool) write(w *writer) {
	w.u2(uint16(len(p.entries)))
	for i := 1; i < len(p.entries); i++ {
		c := p.entries[i]
		if c.Tag == 0 {
			continue
		}
		w.u1(c.Tag)
		switch c.Tag {
		case TagUtf8:
			raw := c.Raw
			if raw == nil {
				raw = encodeModifiedUTF8(c.Str)
			}
			w.u2(uint16(len(raw)))
			w.bytes(raw)
		case TagInteger, TagFloat, TagLong, TagDouble:
			w.bytes(c.Raw)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			w.u2(c.A)
		case TagMethodHandle:
			w.u1(c.Kind)
			w.u2(c.A)
		default:
			w.u2(c.A)
			w.u2(c.B)
		}
	}
}

func decodeModifiedUTF8(b []byte) string {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			units = append(units, uint16(c))
			i++
		}
	}
	return string(utf16.Decode(units))
}

func encodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, u := range utf16.Encode([]rune(s)) {
		switch {
		case u != 0 && u < 0x80:
			out = append(out, byte(u))
		case u < 0x800:
			out = append(out, byte(0xC0|u>>6), byte(0x80|u&0x3F))
		default:
			out = append(out, byte(0xE0|u>>12), byte(0x80|(u>>6)&0x3F), byte(0x80|u&0x3F))
		}
	}
	return out
}
