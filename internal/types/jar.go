package types

import "sort"

type JarEntry struct {
	Name string
	Data []byte
}

// JarContents is an in-memory jar. Entry order is not significant until the
// jar is written, at which point entries are sorted by name.
type JarContents struct {
	Entries []JarEntry
}

func (j *JarContents) Get(name string) ([]byte, bool) {
	for _, entry := range j.Entries {
		if entry.Name == name {
			return entry.Data, true
		}
	}
	return nil, false
}

func (j *JarContents) Put(name string, data []byte) {
	for i := range j.Entries {
		if j.Entries[i].Name == name {
			j.Entries[i].Data = data
			return
		}
	}
	j.Entries = append(j.Entries, JarEntry{Name: name, Data: data})
}

func (j *JarContents) Delete(name string) {
	kept := j.Entries[:0]
	for _, entry := range j.Entries {
		if entry.Name != name {
			kept = append(kept, entry)
		}
	}
	j.Entries = kept
}

func (j *JarContents) Sort() {
	sort.Slice(j.Entries, func(a, b int) bool {
		return j.Entries[a].Name < j.Entries[b].Name
	})
}

// GameJar is one raw game artifact of a variant, for example "common" and
// "clientOnly" for split variants.
type GameJar struct {
	Name string
	Path string
	Side Side
}

// RemappedJar describes a single remap unit produced by a provider.
type RemappedJar struct {
	Name            string
	Source          string
	Dest            string
	SourceNamespace Namespace
	TargetNamespace Namespace
	Classpath       []string
	ClientOnly      bool
}
