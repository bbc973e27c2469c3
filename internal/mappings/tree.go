package mappings

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"loomkit/internal/descriptor"
)

type memberKey struct {
	name string
	desc string
}

// Tree is an in-memory mapping tree keyed by names in its source namespace.
// Identity keys never change; visiting adds names in other namespaces.
//
// A Tree is also a Visitor. Visits whose source namespace is the tree's
// source namespace create missing elements. Visits keyed by one of the
// destination namespaces only augment elements that already exist.
type Tree struct {
	src     string
	dst     []string
	classes map[string]*ClassMapping

	// index caches class lookups by destination name; reset on change.
	index     map[string]map[string]*ClassMapping
	overrides int
	visit     visitState
}

type ClassMapping struct {
	tree    *Tree
	SrcName string
	names   map[string]string
	Comment string
	fields  map[memberKey]*FieldMapping
	methods map[memberKey]*MethodMapping
}

type FieldMapping struct {
	Owner   *ClassMapping
	SrcName string
	SrcDesc string
	names   map[string]string
	Comment string
}

type MethodMapping struct {
	Owner   *ClassMapping
	SrcName string
	SrcDesc string
	names   map[string]string
	Comment string
	args    map[int]*ArgMapping
}

// ArgMapping is keyed by local variable index. Args have no identity name;
// every namespace, the source one included, is stored in the name table.
type ArgMapping struct {
	Method  *MethodMapping
	LvIndex int
	names   map[string]string
	Comment string
}

func NewTree(srcNamespace string) *Tree {
	return &Tree{
		src:     srcNamespace,
		classes: map[string]*ClassMapping{},
	}
}

func (t *Tree) SrcNamespace() string {
	return t.src
}

func (t *Tree) DstNamespaces() []string {
	return append([]string(nil), t.dst...)
}

// Namespaces returns the source namespace followed by the destinations.
func (t *Tree) Namespaces() []string {
	return append([]string{t.src}, t.dst...)
}

func (t *Tree) HasNamespace(ns string) bool {
	return ns == t.src || slices.Contains(t.dst, ns)
}

// AddNamespace registers a destination namespace.
func (t *Tree) AddNamespace(ns string) {
	if ns == "" || t.HasNamespace(ns) {
		return
	}
	t.dst = append(t.dst, ns)
}

// Overrides counts how many existing names were replaced by later visits.
func (t *Tree) Overrides() int {
	return t.overrides
}

func (t *Tree) Class(srcName string) *ClassMapping {
	return t.classes[srcName]
}

// Classes returns all classes sorted by source name.
func (t *Tree) Classes() []*ClassMapping {
	out := make([]*ClassMapping, 0, len(t.classes))
	for _, c := range t.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SrcName < out[j].SrcName })
	return out
}

func (t *Tree) AddClass(srcName string) *ClassMapping {
	if c, ok := t.classes[srcName]; ok {
		return c
	}
	c := &ClassMapping{
		tree:    t,
		SrcName: srcName,
		names:   map[string]string{},
		fields:  map[memberKey]*FieldMapping{},
		methods: map[memberKey]*MethodMapping{},
	}
	t.classes[srcName] = c
	t.index = nil
	return c
}

// ClassByName finds a class by its name in any namespace of the tree.
func (t *Tree) ClassByName(ns string, name string) *ClassMapping {
	if ns == t.src {
		return t.classes[name]
	}
	if t.index == nil {
		t.index = map[string]map[string]*ClassMapping{}
	}
	byName, ok := t.index[ns]
	if !ok {
		byName = make(map[string]*ClassMapping, len(t.classes))
		for _, c := range t.classes {
			if _, taken := byName[c.SrcName]; !taken && c.names[ns] == "" {
				byName[c.SrcName] = c
			}
		}
		for _, c := range t.classes {
			if n := c.names[ns]; n != "" {
				byName[n] = c
			}
		}
		t.index[ns] = byName
	}
	return byName[name]
}

// MapDesc rewrites a source-namespace descriptor into ns.
func (t *Tree) MapDesc(desc string, ns string) string {
	if ns == t.src {
		return desc
	}
	return descriptor.MapDesc(desc, func(name string) string {
		if c, ok := t.classes[name]; ok {
			return c.Name(ns)
		}
		return name
	})
}

func (t *Tree) setName(names map[string]string, ns string, name string) {
	if name == "" {
		return
	}
	if prev, ok := names[ns]; ok && prev != name {
		t.overrides++
	}
	names[ns] = name
}

// Name returns the class name in ns, falling back to the source name.
func (c *ClassMapping) Name(ns string) string {
	if n := c.ExplicitName(ns); n != "" {
		return n
	}
	return c.SrcName
}

// ExplicitName returns the class name in ns or "" when it has none.
func (c *ClassMapping) ExplicitName(ns string) string {
	if ns == c.tree.src {
		return c.SrcName
	}
	return c.names[ns]
}

func (c *ClassMapping) SetName(ns string, name string) {
	if ns == c.tree.src {
		return
	}
	c.tree.AddNamespace(ns)
	c.tree.setName(c.names, ns, name)
	c.tree.index = nil
}

func (c *ClassMapping) Field(srcName string, srcDesc string) *FieldMapping {
	return c.fields[memberKey{srcName, srcDesc}]
}

func (c *ClassMapping) Method(srcName string, srcDesc string) *MethodMapping {
	return c.methods[memberKey{srcName, srcDesc}]
}

func (c *ClassMapping) AddField(srcName string, srcDesc string) *FieldMapping {
	key := memberKey{srcName, srcDesc}
	if f, ok := c.fields[key]; ok {
		return f
	}
	f := &FieldMapping{Owner: c, SrcName: srcName, SrcDesc: srcDesc, names: map[string]string{}}
	c.fields[key] = f
	return f
}

func (c *ClassMapping) AddMethod(srcName string, srcDesc string) *MethodMapping {
	key := memberKey{srcName, srcDesc}
	if m, ok := c.methods[key]; ok {
		return m
	}
	m := &MethodMapping{Owner: c, SrcName: srcName, SrcDesc: srcDesc, names: map[string]string{}, args: map[int]*ArgMapping{}}
	c.methods[key] = m
	return m
}

// Fields returns fields sorted by source name and descriptor.
func (c *ClassMapping) Fields() []*FieldMapping {
	out := make([]*FieldMapping, 0, len(c.fields))
	for _, f := range c.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SrcName != out[j].SrcName {
			return out[i].SrcName < out[j].SrcName
		}
		return out[i].SrcDesc < out[j].SrcDesc
	})
	return out
}

// Methods returns methods sorted by source name and descriptor.
func (c *ClassMapping) Methods() []*MethodMapping {
	out := make([]*MethodMapping, 0, len(c.methods))
	for _, m := range c.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SrcName != out[j].SrcName {
			return out[i].SrcName < out[j].SrcName
		}
		return out[i].SrcDesc < out[j].SrcDesc
	})
	return out
}

// FieldByName finds a field by name and descriptor given in ns.
func (c *ClassMapping) FieldByName(ns string, name string, desc string) *FieldMapping {
	if ns == c.tree.src {
		return c.fields[memberKey{name, desc}]
	}
	for _, f := range c.fields {
		if f.Name(ns) == name && (desc == "" || c.tree.MapDesc(f.SrcDesc, ns) == desc) {
			return f
		}
	}
	return nil
}

// MethodByName finds a method by name and descriptor given in ns.
func (c *ClassMapping) MethodByName(ns string, name string, desc string) *MethodMapping {
	if ns == c.tree.src {
		return c.methods[memberKey{name, desc}]
	}
	for _, m := range c.methods {
		if m.Name(ns) == name && c.tree.MapDesc(m.SrcDesc, ns) == desc {
			return m
		}
	}
	return nil
}

func (f *FieldMapping) Name(ns string) string {
	if n := f.ExplicitName(ns); n != "" {
		return n
	}
	return f.SrcName
}

func (f *FieldMapping) ExplicitName(ns string) string {
	if ns == f.Owner.tree.src {
		return f.SrcName
	}
	return f.names[ns]
}

func (f *FieldMapping) SetName(ns string, name string) {
	if ns == f.Owner.tree.src {
		return
	}
	f.Owner.tree.AddNamespace(ns)
	f.Owner.tree.setName(f.names, ns, name)
}

func (m *MethodMapping) Name(ns string) string {
	if n := m.ExplicitName(ns); n != "" {
		return n
	}
	return m.SrcName
}

func (m *MethodMapping) ExplicitName(ns string) string {
	if ns == m.Owner.tree.src {
		return m.SrcName
	}
	return m.names[ns]
}

func (m *MethodMapping) SetName(ns string, name string) {
	if ns == m.Owner.tree.src {
		return
	}
	m.Owner.tree.AddNamespace(ns)
	m.Owner.tree.setName(m.names, ns, name)
}

func (m *MethodMapping) Arg(lvIndex int) *ArgMapping {
	return m.args[lvIndex]
}

func (m *MethodMapping) AddArg(lvIndex int) *ArgMapping {
	if a, ok := m.args[lvIndex]; ok {
		return a
	}
	a := &ArgMapping{Method: m, LvIndex: lvIndex, names: map[string]string{}}
	m.args[lvIndex] = a
	return a
}

// Args returns args sorted by local variable index.
func (m *MethodMapping) Args() []*ArgMapping {
	out := make([]*ArgMapping, 0, len(m.args))
	for _, a := range m.args {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LvIndex < out[j].LvIndex })
	return out
}

func (a *ArgMapping) Name(ns string) string {
	return a.names[ns]
}

func (a *ArgMapping) SetName(ns string, name string) {
	a.Method.Owner.tree.AddNamespace(ns)
	a.Method.Owner.tree.setName(a.names, ns, name)
}

// Accept emits the whole tree to v with srcNs as the source namespace.
// Elements without a name in srcNs are skipped; args are always emitted.
func (t *Tree) Accept(v Visitor, srcNs string) error {
	if srcNs == "" {
		srcNs = t.src
	}
	if !t.HasNamespace(srcNs) {
		return fmt.Errorf("namespace %q is not part of the tree (%s)", srcNs, strings.Join(t.Namespaces(), ", "))
	}
	var dsts []string
	for _, ns := range t.Namespaces() {
		if ns != srcNs {
			dsts = append(dsts, ns)
		}
	}
	if err := v.VisitNamespaces(srcNs, dsts); err != nil {
		return err
	}
	for _, c := range t.Classes() {
		name := c.ExplicitName(srcNs)
		if name == "" {
			continue
		}
		ok, err := v.VisitClass(name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := acceptNames(v, KindClass, dsts, c.ExplicitName, c.Comment); err != nil {
			return err
		}
		for _, f := range c.Fields() {
			name := f.ExplicitName(srcNs)
			if name == "" {
				continue
			}
			ok, err := v.VisitField(name, t.MapDesc(f.SrcDesc, srcNs))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := acceptNames(v, KindField, dsts, f.ExplicitName, f.Comment); err != nil {
				return err
			}
		}
		for _, m := range c.Methods() {
			name := m.ExplicitName(srcNs)
			if name == "" {
				continue
			}
			ok, err := v.VisitMethod(name, t.MapDesc(m.SrcDesc, srcNs))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := acceptNames(v, KindMethod, dsts, m.ExplicitName, m.Comment); err != nil {
				return err
			}
			for _, a := range m.Args() {
				ok, err := v.VisitMethodArg(a.LvIndex, a.Name(srcNs))
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if err := acceptNames(v, KindMethodArg, dsts, a.Name, a.Comment); err != nil {
					return err
				}
			}
		}
	}
	return v.VisitEnd()
}

func acceptNames(v Visitor, kind ElementKind, dsts []string, name func(string) string, comment string) error {
	for _, ns := range dsts {
		if n := name(ns); n != "" {
			if err := v.VisitDstName(kind, ns, n); err != nil {
				return err
			}
		}
	}
	if comment != "" {
		return v.VisitComment(kind, comment)
	}
	return nil
}
