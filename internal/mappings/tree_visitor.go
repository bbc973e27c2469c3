package mappings

import (
	"fmt"
	"slices"
)

type visitState struct {
	srcNs  string
	byDst  bool
	class  *ClassMapping
	field  *FieldMapping
	method *MethodMapping
	arg    *ArgMapping
}

var _ Visitor = (*Tree)(nil)

func (t *Tree) VisitNamespaces(src string, dst []string) error {
	if t.src == "" {
		t.src = src
	}
	switch {
	case src == t.src:
		t.visit = visitState{srcNs: src}
	case slices.Contains(t.dst, src):
		t.visit = visitState{srcNs: src, byDst: true}
	default:
		return fmt.Errorf("source namespace %q is not part of the tree", src)
	}
	for _, ns := range dst {
		t.AddNamespace(ns)
	}
	return nil
}

func (t *Tree) VisitClass(name string) (bool, error) {
	t.visit.field, t.visit.method, t.visit.arg = nil, nil, nil
	if t.visit.byDst {
		t.visit.class = t.ClassByName(t.visit.srcNs, name)
	} else {
		t.visit.class = t.AddClass(name)
	}
	return t.visit.class != nil, nil
}

func (t *Tree) VisitField(name string, desc string) (bool, error) {
	t.visit.field, t.visit.method, t.visit.arg = nil, nil, nil
	if t.visit.class == nil {
		return false, nil
	}
	if t.visit.byDst {
		t.visit.field = t.visit.class.FieldByName(t.visit.srcNs, name, desc)
	} else {
		t.visit.field = t.visit.class.AddField(name, desc)
	}
	return t.visit.field != nil, nil
}

func (t *Tree) VisitMethod(name string, desc string) (bool, error) {
	t.visit.field, t.visit.method, t.visit.arg = nil, nil, nil
	if t.visit.class == nil {
		return false, nil
	}
	if t.visit.byDst {
		t.visit.method = t.visit.class.MethodByName(t.visit.srcNs, name, desc)
	} else {
		t.visit.method = t.visit.class.AddMethod(name, desc)
	}
	return t.visit.method != nil, nil
}

func (t *Tree) VisitMethodArg(lvIndex int, name string) (bool, error) {
	t.visit.arg = nil
	if t.visit.method == nil {
		return false, nil
	}
	t.visit.arg = t.visit.method.AddArg(lvIndex)
	t.visit.arg.SetName(t.visit.srcNs, name)
	return true, nil
}

func (t *Tree) VisitDstName(kind ElementKind, namespace string, name string) error {
	switch kind {
	case KindClass:
		if t.visit.class != nil {
			t.visit.class.SetName(namespace, name)
		}
	case KindField:
		if t.visit.field != nil {
			t.visit.field.SetName(namespace, name)
		}
	case KindMethod:
		if t.visit.method != nil {
			t.visit.method.SetName(namespace, name)
		}
	case KindMethodArg:
		if t.visit.arg != nil {
			t.visit.arg.SetName(namespace, name)
		}
	}
	return nil
}

func (t *Tree) VisitComment(kind ElementKind, comment string) error {
	switch kind {
	case KindClass:
		if t.visit.class != nil {
			t.visit.class.Comment = comment
		}
	case KindField:
		if t.visit.field != nil {
			t.visit.field.Comment = comment
		}
	case KindMethod:
		if t.visit.method != nil {
			t.visit.method.Comment = comment
		}
	case KindMethodArg:
		if t.visit.arg != nil {
			t.visit.arg.Comment = comment
		}
	}
	return nil
}

func (t *Tree) VisitEnd() error {
	t.visit = visitState{}
	return nil
}
