package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"loomkit/internal/mappings"
	"loomkit/internal/types"
)

// memArchive keeps jars in memory. Writes are counted per path.
type memArchive struct {
	mu     sync.Mutex
	jars   map[string]*types.JarContents
	writes map[string]int
}

func newMemArchive() *memArchive {
	return &memArchive{jars: map[string]*types.JarContents{}, writes: map[string]int{}}
}

func cloneJar(jar *types.JarContents) *types.JarContents {
	out := &types.JarContents{Entries: make([]types.JarEntry, len(jar.Entries))}
	for i, entry := range jar.Entries {
		out.Entries[i] = types.JarEntry{Name: entry.Name, Data: append([]byte(nil), entry.Data...)}
	}
	return out
}

func (a *memArchive) put(path string, entries map[string][]byte) {
	jar := &types.JarContents{}
	for name, data := range entries {
		jar.Put(name, data)
	}
	jar.Sort()
	a.mu.Lock()
	a.jars[path] = jar
	a.mu.Unlock()
}

func (a *memArchive) Read(path string) (*types.JarContents, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	jar, ok := a.jars[path]
	if !ok {
		return nil, fmt.Errorf("no jar at %s", path)
	}
	return cloneJar(jar), nil
}

func (a *memArchive) Write(path string, jar *types.JarContents) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := cloneJar(jar)
	out.Sort()
	a.jars[path] = out
	a.writes[path]++
	return nil
}

func (a *memArchive) Copy(src string, dst string) error {
	jar, err := a.Read(src)
	if err != nil {
		return err
	}
	return a.Write(dst, jar)
}

func (a *memArchive) Exists(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.jars[path]
	return ok
}

func (a *memArchive) ReadEntry(path string, name string) ([]byte, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	jar, ok := a.jars[path]
	if !ok {
		return nil, false, nil
	}
	data, ok := jar.Get(name)
	return data, ok, nil
}

func (a *memArchive) Digest(path string) (string, error) {
	jar, err := a.Read(path)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, entry := range jar.Entries {
		h.Write([]byte(entry.Name))
		h.Write([]byte{0})
		h.Write(entry.Data)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (a *memArchive) entryNames(path string) []string {
	jar, err := a.Read(path)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(jar.Entries))
	for _, entry := range jar.Entries {
		names = append(names, entry.Name)
	}
	sort.Strings(names)
	return names
}

// tinyLayer visits a tiny v2 document.
type tinyLayer struct {
	id       string
	kind     types.LayerKind
	src      types.Namespace
	deps     []types.LayerKind
	dupes    bool
	content  string
	fixes    map[string]string
	visits   int
	visitErr error
}

func (l *tinyLayer) ID() string                       { return l.id }
func (l *tinyLayer) Kind() types.LayerKind            { return l.kind }
func (l *tinyLayer) SourceNamespace() types.Namespace { return l.src }
func (l *tinyLayer) DependsOn() []types.LayerKind     { return l.deps }
func (l *tinyLayer) AllowsDuplicates() bool           { return l.dupes }

func (l *tinyLayer) Fingerprint() (string, error) {
	sum := sha256.Sum256([]byte(l.content))
	return hex.EncodeToString(sum[:]), nil
}

func (l *tinyLayer) Visit(_ context.Context, v mappings.Visitor) error {
	l.visits++
	if l.visitErr != nil {
		return l.visitErr
	}
	tmp := mappings.NewTree("")
	if err := mappings.ReadTiny(strings.NewReader(l.content), tmp); err != nil {
		return err
	}
	return tmp.Accept(v, string(l.src))
}

type fixLayer struct {
	tinyLayer
}

func (l *fixLayer) Fixes() (map[string]string, error) { return l.fixes, nil }

type memMappingCache struct {
	trees  map[string]*mappings.Tree
	stores int
}

func newMemMappingCache() *memMappingCache {
	return &memMappingCache{trees: map[string]*mappings.Tree{}}
}

func (c *memMappingCache) Load(id string) (*mappings.Tree, bool) {
	tree, ok := c.trees[id]
	return tree, ok
}

func (c *memMappingCache) Store(id string, tree *mappings.Tree) error {
	c.trees[id] = tree
	c.stores++
	return nil
}
