// Package mappings holds the namespace-indexed mapping tree, the visitor
// contract layers use to populate it, and readers/writers for the mapping
// file formats.
package mappings

type ElementKind int

const (
	KindClass ElementKind = iota
	KindField
	KindMethod
	KindMethodArg
)

func (k ElementKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindField:
		return "field"
	case KindMethod:
		return "method"
	case KindMethodArg:
		return "arg"
	default:
		return "unknown"
	}
}

// Visitor receives mapping data as a stream of events.
//
// VisitNamespaces comes first. Each element visit (class, field, method,
// arg) makes that element current; the following VisitDstName and
// VisitComment calls apply to it. Fields and methods belong to the last
// visited class, args to the last visited method. Names passed to the
// element visits are in the source namespace announced by VisitNamespaces;
// descriptors as well. A false return skips the element's content.
type Visitor interface {
	VisitNamespaces(src string, dst []string) error
	VisitClass(name string) (bool, error)
	VisitField(name string, desc string) (bool, error)
	VisitMethod(name string, desc string) (bool, error)
	VisitMethodArg(lvIndex int, name string) (bool, error)
	VisitDstName(kind ElementKind, namespace string, name string) error
	VisitComment(kind ElementKind, comment string) error
	VisitEnd() error
}
