package adapters

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"loomkit/internal/mappings"
	"loomkit/internal/ports"
)

// OutputFileAdapter writes outputs below Dir. Absolute paths are used
// as given.
type OutputFileAdapter struct {
	Dir string
}

func NewOutputFileAdapter(dir string) OutputFileAdapter {
	return OutputFileAdapter{Dir: dir}
}

func (a OutputFileAdapter) resolve(path string) (string, error) {
	if path == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output path is empty")
	}
	if filepath.IsAbs(path) || a.Dir == "" {
		return path, nil
	}
	return filepath.Join(a.Dir, path), nil
}

// WriteMappings writes tree as tiny v2 keyed by its source namespace.
func (a OutputFileAdapter) WriteMappings(path string, tree *mappings.Tree, properties ...[2]string) error {
	return a.WriteFile(path, func(w io.Writer) error {
		return tree.Accept(mappings.NewTinyV2Writer(w, properties...), "")
	})
}

func (a OutputFileAdapter) WriteFile(path string, write func(w io.Writer) error) error {
	resolved, err := a.resolve(path)
	if err != nil {
		return err
	}
	return writeAtomic(resolved, write)
}

func ensurePath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create directory %s", dir)).
			WithCause(err)
	}
	return nil
}

var _ ports.OutputPort = OutputFileAdapter{}
