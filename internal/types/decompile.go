package types

// DecompileRequest is the contract handed to decompiler back-ends.
type DecompileRequest struct {
	Compiled   string
	SourcesOut string
	LinemapOut string
	Metadata   DecompileMetadata
}

type DecompileMetadata struct {
	Threads   int
	Javadoc   string
	Libraries []string
	Options   map[string]string
}
