package adapters

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"loomkit/internal/mappings"
	"loomkit/internal/ports"
	"loomkit/internal/types"
)

const cacheIDProperty = "loomkit-id"

// MappingCacheAdapter stores composed trees as tiny v2 files named after
// their merged identifier. The identifier is also written as a header
// property and checked on load.
type MappingCacheAdapter struct {
	Dir string
}

func NewMappingCacheAdapter(cacheDir string) MappingCacheAdapter {
	return MappingCacheAdapter{Dir: filepath.Join(cacheDir, "mappings")}
}

func (a MappingCacheAdapter) path(id string) string {
	return filepath.Join(a.Dir, id+".tiny")
}

func (a MappingCacheAdapter) Load(id string) (*mappings.Tree, bool) {
	data, err := os.ReadFile(a.path(id))
	if err != nil {
		return nil, false
	}
	if cachedID(data) != id {
		log.Debug().Str("id", id).Msg("mapping cache entry does not match, ignoring")
		return nil, false
	}
	tree := mappings.NewTree(string(types.NamespaceIntermediary))
	if err := mappings.ReadTiny(bytes.NewReader(data), tree); err != nil {
		log.Debug().Err(err).Str("id", id).Msg("mapping cache entry unreadable, ignoring")
		return nil, false
	}
	return tree, true
}

// cachedID reads the identifier property from the header block.
func cachedID(data []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(data))
	if !sc.Scan() {
		return ""
	}
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "\t\t") {
			return ""
		}
		if value, ok := strings.CutPrefix(line, "\t"+cacheIDProperty+"\t"); ok {
			return value
		}
	}
	return ""
}

func (a MappingCacheAdapter) Store(id string, tree *mappings.Tree) error {
	return writeAtomic(a.path(id), func(w io.Writer) error {
		return tree.Accept(mappings.NewTinyV2Writer(w, [2]string{cacheIDProperty, id}), "")
	})
}

var _ ports.MappingCachePort = MappingCacheAdapter{}
