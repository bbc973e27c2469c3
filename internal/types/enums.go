package types

// Namespace names one column of symbol names.
type Namespace string

const (
	NamespaceOfficial     Namespace = "official"
	NamespaceIntermediary Namespace = "intermediary"
	NamespaceNamed        Namespace = "named"

	// Placeholders used by mapping formats without namespace headers.
	NamespaceSource Namespace = "source"
	NamespaceTarget Namespace = "target"
)

type LayerKind string

const (
	LayerKindIntermediary LayerKind = "intermediary"
	LayerKindFile         LayerKind = "file"
	LayerKindParchment    LayerKind = "parchment"
	LayerKindSignatureFix LayerKind = "signature-fix"
	LayerKindMojang       LayerKind = "mojang"
)

type MappingFormat string

const (
	MappingFormatTiny     MappingFormat = "tiny"
	MappingFormatTinyV1   MappingFormat = "tinyv1"
	MappingFormatEnigma   MappingFormat = "enigma"
	MappingFormatProguard MappingFormat = "proguard"
)

type Variant string

const (
	VariantMerged     Variant = "merged"
	VariantSplit      Variant = "split"
	VariantServerOnly Variant = "server-only"
)

type Side string

const (
	SideClient Side = "client"
	SideServer Side = "server"
)

type ProcessorKind string

const (
	ProcessorKindAccessWidener     ProcessorKind = "access-widener"
	ProcessorKindAccessTransformer ProcessorKind = "access-transformer"
	ProcessorKindEnumWidener       ProcessorKind = "enum-widener"
	ProcessorKindLineMap           ProcessorKind = "linemap"
	ProcessorKindClientOnlyMarker  ProcessorKind = "client-only-marker"
)

type StepState string

const (
	StepNotChecked StepState = "not-checked"
	StepSkip       StepState = "skip"
	StepRun        StepState = "run"
	StepDone       StepState = "done"
)
