package types

// Project describes one modding workspace: which game version and variant
// to set up, which mapping layers to compose and which jar processors to
// run on the named jars.
type Project struct {
	APIVersion string          `yaml:"api_version" toml:"api_version"`
	Name       string          `yaml:"name" toml:"name"`
	Game       GameSpec        `yaml:"game" toml:"game"`
	Mappings   MappingsSpec    `yaml:"mappings" toml:"mappings"`
	Processors []ProcessorSpec `yaml:"processors,omitempty" toml:"processors,omitempty"`
	Decompiler DecompilerSpec  `yaml:"decompiler,omitempty" toml:"decompiler,omitempty"`
}

type GameSpec struct {
	Version string  `yaml:"version" toml:"version"`
	Variant Variant `yaml:"variant,omitempty" toml:"variant,omitempty"`

	// Client and Server point at local jars. When empty the jars are
	// downloaded using the version metadata.
	Client string `yaml:"client,omitempty" toml:"client,omitempty"`
	Server string `yaml:"server,omitempty" toml:"server,omitempty"`

	// Metadata is a path or URL to the version's metadata JSON.
	Metadata string `yaml:"metadata,omitempty" toml:"metadata,omitempty"`

	// Libraries are extra jars placed on the remap classpath.
	Libraries []string `yaml:"libraries,omitempty" toml:"libraries,omitempty"`
}

type MappingsSpec struct {
	Layers []LayerSpec `yaml:"layers" toml:"layers"`
}

// LayerSpec configures one mapping layer. Only the fields relevant to the
// layer's kind are read.
type LayerSpec struct {
	ID              string            `yaml:"id,omitempty" toml:"id,omitempty"`
	Kind            LayerKind         `yaml:"kind" toml:"kind"`
	Path            string            `yaml:"path,omitempty" toml:"path,omitempty"`
	ZipEntry        string            `yaml:"zip_entry,omitempty" toml:"zip_entry,omitempty"`
	Format          MappingFormat     `yaml:"format,omitempty" toml:"format,omitempty"`
	SourceNamespace Namespace         `yaml:"source_namespace,omitempty" toml:"source_namespace,omitempty"`
	FallbackSource  Namespace         `yaml:"fallback_source,omitempty" toml:"fallback_source,omitempty"`
	FallbackTarget  Namespace         `yaml:"fallback_target,omitempty" toml:"fallback_target,omitempty"`
	RemovePrefix    bool              `yaml:"remove_prefix,omitempty" toml:"remove_prefix,omitempty"`
	Requires        string            `yaml:"requires,omitempty" toml:"requires,omitempty"`
	Options         map[string]string `yaml:"options,omitempty" toml:"options,omitempty"`
}

type ProcessorSpec struct {
	Kind ProcessorKind `yaml:"kind" toml:"kind"`
	// Paths lists input files (access widener/transformer files, linemaps).
	Paths []string `yaml:"paths,omitempty" toml:"paths,omitempty"`
}

type DecompilerSpec struct {
	// Command is the decompiler invocation. The placeholders {input},
	// {output}, {linemap}, {threads}, {javadoc} and {libraries} are
	// substituted before running.
	Command []string          `yaml:"command,omitempty" toml:"command,omitempty"`
	Options map[string]string `yaml:"options,omitempty" toml:"options,omitempty"`
	Threads int               `yaml:"threads,omitempty" toml:"threads,omitempty"`
}
