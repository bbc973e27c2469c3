package mappings

import (
	"slices"
	"strings"
)

// NamespaceRenamer forwards events with namespace names replaced.
type NamespaceRenamer struct {
	next    Visitor
	renames map[string]string
}

func NewNamespaceRenamer(next Visitor, renames map[string]string) *NamespaceRenamer {
	return &NamespaceRenamer{next: next, renames: renames}
}

func (r *NamespaceRenamer) rename(ns string) string {
	if renamed, ok := r.renames[ns]; ok && renamed != "" {
		return renamed
	}
	return ns
}

func (r *NamespaceRenamer) VisitNamespaces(src string, dst []string) error {
	renamed := make([]string, 0, len(dst))
	for _, ns := range dst {
		renamed = append(renamed, r.rename(ns))
	}
	return r.next.VisitNamespaces(r.rename(src), renamed)
}

func (r *NamespaceRenamer) VisitClass(name string) (bool, error) {
	return r.next.VisitClass(name)
}

func (r *NamespaceRenamer) VisitField(name string, desc string) (bool, error) {
	return r.next.VisitField(name, desc)
}

func (r *NamespaceRenamer) VisitMethod(name string, desc string) (bool, error) {
	return r.next.VisitMethod(name, desc)
}

func (r *NamespaceRenamer) VisitMethodArg(lvIndex int, name string) (bool, error) {
	return r.next.VisitMethodArg(lvIndex, name)
}

func (r *NamespaceRenamer) VisitDstName(kind ElementKind, namespace string, name string) error {
	return r.next.VisitDstName(kind, r.rename(namespace), name)
}

func (r *NamespaceRenamer) VisitComment(kind ElementKind, comment string) error {
	return r.next.VisitComment(kind, comment)
}

func (r *NamespaceRenamer) VisitEnd() error {
	return r.next.VisitEnd()
}

// NamespaceCompleter fills missing names: for every (target, from) pair in
// fills, an element without a name in target receives its name in from.
// Elements visited with an empty source name (args) are completed only
// from destination names.
type NamespaceCompleter struct {
	next  Visitor
	fills map[string]string

	srcNs   string
	pending *pendingElement

	// outer class names per target namespace, keyed by the fill namespace name
	classTargets map[string]map[string]string
}

type pendingElement struct {
	kind  ElementKind
	names map[string]string
}

func NewNamespaceCompleter(next Visitor, fills map[string]string) *NamespaceCompleter {
	return &NamespaceCompleter{next: next, fills: fills, classTargets: map[string]map[string]string{}}
}

func (c *NamespaceCompleter) VisitNamespaces(src string, dst []string) error {
	c.srcNs = src
	all := append([]string(nil), dst...)
	targets := make([]string, 0, len(c.fills))
	for target := range c.fills {
		targets = append(targets, target)
	}
	slices.Sort(targets)
	for _, target := range targets {
		if target != src && !slices.Contains(all, target) {
			all = append(all, target)
		}
	}
	return c.next.VisitNamespaces(src, all)
}

func (c *NamespaceCompleter) begin(kind ElementKind, name string, accepted bool) {
	if !accepted {
		c.pending = nil
		return
	}
	c.pending = &pendingElement{kind: kind, names: map[string]string{c.srcNs: name}}
}

func (c *NamespaceCompleter) flush() error {
	p := c.pending
	c.pending = nil
	if p == nil {
		return nil
	}
	targets := make([]string, 0, len(c.fills))
	for target := range c.fills {
		targets = append(targets, target)
	}
	slices.Sort(targets)
	for _, target := range targets {
		from := p.names[c.fills[target]]
		if name := p.names[target]; name != "" {
			c.rememberClass(p.kind, target, from, name)
			continue
		}
		if from == "" {
			continue
		}
		value := from
		if p.kind == KindClass {
			value = c.nestedClassName(target, from)
		}
		if err := c.next.VisitDstName(p.kind, target, value); err != nil {
			return err
		}
		c.rememberClass(p.kind, target, from, value)
	}
	return nil
}

func (c *NamespaceCompleter) rememberClass(kind ElementKind, target string, from string, name string) {
	if kind != KindClass || from == "" {
		return
	}
	if c.classTargets[target] == nil {
		c.classTargets[target] = map[string]string{}
	}
	c.classTargets[target][from] = name
}

// nestedClassName completes a nested class from its outer class's target
// name, so "class_1$class_2" becomes "Foo$class_2" once "class_1" is "Foo".
// Outer classes sort before their nested classes and are seen first.
func (c *NamespaceCompleter) nestedClassName(target string, from string) string {
	idx := strings.LastIndexByte(from, '$')
	if idx <= 0 {
		return from
	}
	outer, ok := c.classTargets[target][from[:idx]]
	if !ok {
		return from
	}
	return outer + from[idx:]
}

func (c *NamespaceCompleter) VisitClass(name string) (bool, error) {
	if err := c.flush(); err != nil {
		return false, err
	}
	ok, err := c.next.VisitClass(name)
	c.begin(KindClass, name, ok && err == nil)
	return ok, err
}

func (c *NamespaceCompleter) VisitField(name string, desc string) (bool, error) {
	if err := c.flush(); err != nil {
		return false, err
	}
	ok, err := c.next.VisitField(name, desc)
	c.begin(KindField, name, ok && err == nil)
	return ok, err
}

func (c *NamespaceCompleter) VisitMethod(name string, desc string) (bool, error) {
	if err := c.flush(); err != nil {
		return false, err
	}
	ok, err := c.next.VisitMethod(name, desc)
	c.begin(KindMethod, name, ok && err == nil)
	return ok, err
}

func (c *NamespaceCompleter) VisitMethodArg(lvIndex int, name string) (bool, error) {
	if err := c.flush(); err != nil {
		return false, err
	}
	ok, err := c.next.VisitMethodArg(lvIndex, name)
	c.begin(KindMethodArg, name, ok && err == nil)
	return ok, err
}

func (c *NamespaceCompleter) VisitDstName(kind ElementKind, namespace string, name string) error {
	if c.pending != nil && c.pending.kind == kind {
		c.pending.names[namespace] = name
	}
	return c.next.VisitDstName(kind, namespace, name)
}

func (c *NamespaceCompleter) VisitComment(kind ElementKind, comment string) error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.next.VisitComment(kind, comment)
}

func (c *NamespaceCompleter) VisitEnd() error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.next.VisitEnd()
}
