package ports

import (
	"io"

	"loomkit/internal/mappings"
)

// OutputPort writes command results. Every write replaces the destination
// atomically.
type OutputPort interface {
	WriteMappings(path string, tree *mappings.Tree, properties ...[2]string) error
	WriteFile(path string, write func(w io.Writer) error) error
}
