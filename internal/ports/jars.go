package ports

import (
	"context"

	"loomkit/internal/types"
)

// JarArchivePort reads and writes jars. Writes are atomic: readers never
// observe a partially written file.
type JarArchivePort interface {
	Read(path string) (*types.JarContents, error)
	Write(path string, jar *types.JarContents) error
	Copy(src string, dst string) error
	Exists(path string) bool
	// ReadEntry reads one entry without loading the whole jar. A missing
	// jar or entry is reported with ok false.
	ReadEntry(path string, name string) (data []byte, ok bool, err error)
	// Digest is the hex sha256 of the file's bytes.
	Digest(path string) (string, error)
}

// JarProcessor is one step of a processor chain.
type JarProcessor interface {
	Name() string
	// Fingerprint changes whenever the processor's inputs change.
	Fingerprint() (string, error)
	Process(ctx context.Context, jar *types.JarContents) error
}

// Provider produces the remapped jars of one variant for one target
// namespace. Provide must be idempotent.
type Provider interface {
	Provide(ctx context.Context) error
	RemappedJars() []types.RemappedJar
	GameJars() []types.GameJar
}
