package mappings

import (
	"fmt"
	"strings"

	"loomkit/internal/descriptor"
)

// Remapping is a flattened, read-only view of a tree for one
// (from, to) namespace pair. Member keys are owner, name and descriptor in
// the from namespace.
type Remapping struct {
	From string
	To   string

	classes map[string]string
	fields  map[string]map[memberKey]string
	methods map[string]map[memberKey]string
	args    map[string]map[memberKey]map[int]string
}

func NewRemapping(from string, to string) *Remapping {
	return &Remapping{
		From:    from,
		To:      to,
		classes: map[string]string{},
		fields:  map[string]map[memberKey]string{},
		methods: map[string]map[memberKey]string{},
		args:    map[string]map[memberKey]map[int]string{},
	}
}

// Remapping flattens the tree into a from -> to view.
func (t *Tree) Remapping(from string, to string) (*Remapping, error) {
	if !t.HasNamespace(from) {
		return nil, fmt.Errorf("unknown source namespace %q", from)
	}
	if !t.HasNamespace(to) {
		return nil, fmt.Errorf("unknown target namespace %q", to)
	}
	fromNames := t.classNames(from)
	toNames := t.classNames(to)
	mapDesc := func(desc string) string {
		return descriptor.MapDesc(desc, func(name string) string {
			if mapped, ok := fromNames[name]; ok {
				return mapped
			}
			return name
		})
	}
	r := NewRemapping(from, to)
	for _, c := range t.Classes() {
		owner := fromNames[c.SrcName]
		r.PutClass(owner, toNames[c.SrcName])
		for _, f := range c.Fields() {
			r.PutField(owner, f.Name(from), mapDesc(f.SrcDesc), f.Name(to))
		}
		for _, m := range c.Methods() {
			name := m.Name(from)
			desc := mapDesc(m.SrcDesc)
			r.PutMethod(owner, name, desc, m.Name(to))
			for _, a := range m.Args() {
				if n := a.Name(to); n != "" {
					r.PutArg(owner, name, desc, a.LvIndex, n)
				}
			}
		}
	}
	return r, nil
}

// classNames returns the name in ns of every class, keyed by source name.
// A nested class whose name still starts with a former name of its outer
// class follows the outer class's current name, so renaming "class_1" to
// "Foo" turns "class_1$class_2" into "Foo$class_2".
func (t *Tree) classNames(ns string) map[string]string {
	names := make(map[string]string, len(t.classes))
	var resolve func(c *ClassMapping) string
	resolve = func(c *ClassMapping) string {
		if name, ok := names[c.SrcName]; ok {
			return name
		}
		name := c.Name(ns)
		if idx := strings.LastIndexByte(c.SrcName, '$'); idx > 0 {
			if outer := t.classes[c.SrcName[:idx]]; outer != nil {
				outerName := resolve(outer)
				if cut := strings.LastIndexByte(name, '$'); cut > 0 {
					if prefix := name[:cut]; prefix != outerName && outer.knownAs(prefix) {
						name = outerName + name[cut:]
					}
				}
			}
		}
		names[c.SrcName] = name
		return name
	}
	for _, c := range t.classes {
		resolve(c)
	}
	return names
}

// knownAs reports whether name is the class's name in any namespace.
func (c *ClassMapping) knownAs(name string) bool {
	if name == c.SrcName {
		return true
	}
	for _, n := range c.names {
		if n == name {
			return true
		}
	}
	return false
}

func (r *Remapping) PutClass(name string, mapped string) {
	r.classes[name] = mapped
}

func (r *Remapping) PutField(owner string, name string, desc string, mapped string) {
	byOwner, ok := r.fields[owner]
	if !ok {
		byOwner = map[memberKey]string{}
		r.fields[owner] = byOwner
	}
	byOwner[memberKey{name, desc}] = mapped
}

func (r *Remapping) PutMethod(owner string, name string, desc string, mapped string) {
	byOwner, ok := r.methods[owner]
	if !ok {
		byOwner = map[memberKey]string{}
		r.methods[owner] = byOwner
	}
	byOwner[memberKey{name, desc}] = mapped
}

func (r *Remapping) PutArg(owner string, name string, desc string, lvIndex int, mapped string) {
	byOwner, ok := r.args[owner]
	if !ok {
		byOwner = map[memberKey]map[int]string{}
		r.args[owner] = byOwner
	}
	key := memberKey{name, desc}
	if byOwner[key] == nil {
		byOwner[key] = map[int]string{}
	}
	byOwner[key][lvIndex] = mapped
}

// Class returns the explicit mapping of a class.
func (r *Remapping) Class(name string) (string, bool) {
	mapped, ok := r.classes[name]
	return mapped, ok
}

// MapClass maps a class name. Nested classes without an explicit mapping
// follow their outer class, so "a$b" becomes "Foo$b" when "a" maps to "Foo".
func (r *Remapping) MapClass(name string) string {
	if mapped, ok := r.classes[name]; ok {
		return mapped
	}
	if idx := strings.LastIndexByte(name, '$'); idx > 0 {
		return r.MapClass(name[:idx]) + name[idx:]
	}
	return name
}

func (r *Remapping) MapDesc(desc string) string {
	return descriptor.MapDesc(desc, r.MapClass)
}

func (r *Remapping) Field(owner string, name string, desc string) (string, bool) {
	mapped, ok := r.fields[owner][memberKey{name, desc}]
	return mapped, ok
}

func (r *Remapping) Method(owner string, name string, desc string) (string, bool) {
	mapped, ok := r.methods[owner][memberKey{name, desc}]
	return mapped, ok
}

func (r *Remapping) Arg(owner string, name string, desc string, lvIndex int) (string, bool) {
	mapped, ok := r.args[owner][memberKey{name, desc}][lvIndex]
	return mapped, ok
}

// ClassCount reports how many classes the view maps.
func (r *Remapping) ClassCount() int {
	return len(r.classes)
}
