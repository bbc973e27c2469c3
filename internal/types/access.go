package types

type AccessKind string

const (
	AccessAccessible AccessKind = "accessible"
	AccessExtendable AccessKind = "extendable"
	AccessMutable    AccessKind = "mutable"
)

type AccessTarget string

const (
	AccessTargetClass  AccessTarget = "class"
	AccessTargetMethod AccessTarget = "method"
	AccessTargetField  AccessTarget = "field"
)

// AccessWidener is a parsed access widener file. Names are internal
// (slash separated) names in Namespace.
type AccessWidener struct {
	Version   int
	Namespace Namespace
	Entries   []AccessEntry
}

type AccessEntry struct {
	Access     AccessKind
	Transitive bool
	Target     AccessTarget
	Owner      string
	Name       string
	Desc       string
}

type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
	VisibilityDefault   Visibility = "default"
	VisibilityPrivate   Visibility = "private"
)

type FinalChange string

const (
	FinalKeep   FinalChange = ""
	FinalRemove FinalChange = "-f"
	FinalAdd    FinalChange = "+f"
)

// AccessTransform is one access transformer directive. An empty Name targets
// the class itself; Name "*" with an empty Desc targets every field and "*"
// with Desc "()" every method.
type AccessTransform struct {
	Visibility Visibility
	Final      FinalChange
	Owner      string
	Name       string
	Desc       string
}

type AccessTransformer struct {
	Entries []AccessTransform
}
