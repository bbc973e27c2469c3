package core

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"loomkit/internal/classfile"
	"loomkit/internal/mappings"
	"loomkit/internal/ports"
	"loomkit/internal/types"
)

const multiReleasePrefix = "META-INF/versions/"

type RemapRequest struct {
	Input     string
	Output    string
	Classpath []string
	Mapping   *mappings.Remapping
	// SignatureFixes is keyed by input class name; values are written in
	// the target namespace.
	SignatureFixes    map[string]string
	RebuildSourceFile bool
	Threads           int
	PostProcess       []ports.JarProcessor
}

type RemapResult struct {
	Classes   int
	Resources int
	Dropped   []string
}

type Remapper struct {
	Archive ports.JarArchivePort
}

func NewRemapper(archive ports.JarArchivePort) Remapper {
	return Remapper{Archive: archive}
}

// RemapJar renames every class of the input jar and writes the result.
// Classpath jars only contribute inheritance information.
func (r Remapper) RemapJar(ctx context.Context, req RemapRequest) (RemapResult, error) {
	if req.Mapping == nil {
		return RemapResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("remap requires a mapping")
	}
	input, err := r.Archive.Read(req.Input)
	if err != nil {
		return RemapResult{}, err
	}
	hierarchy := newClassHierarchy()
	if err := hierarchy.addJar(input); err != nil {
		return RemapResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid class in %s", req.Input)).
			WithCause(err)
	}
	for _, path := range req.Classpath {
		jar, err := r.Archive.Read(path)
		if err != nil {
			return RemapResult{}, err
		}
		if err := hierarchy.addJar(jar); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("jar", path).Msg("skipping unreadable classpath classes")
		}
	}

	out, result, err := remapContents(ctx, input, newHierarchyMapper(req.Mapping, hierarchy), req)
	if err != nil {
		return RemapResult{}, err
	}
	for _, processor := range req.PostProcess {
		if err := processor.Process(ctx, out); err != nil {
			return RemapResult{}, errbuilder.New().
				WithCode(errbuilder.CodeOf(err)).
				WithMsg(fmt.Sprintf("processor %s failed on %s", processor.Name(), req.Output)).
				WithCause(err)
		}
	}
	if err := r.Archive.Write(req.Output, out); err != nil {
		return RemapResult{}, err
	}
	log.Ctx(ctx).Debug().
		Str("input", req.Input).
		Str("output", req.Output).
		Int("classes", result.Classes).
		Int("resources", result.Resources).
		Msg("jar remapped")
	return result, nil
}

func remapContents(ctx context.Context, input *types.JarContents, mapper classfile.Mapper, req RemapRequest) (*types.JarContents, RemapResult, error) {
	threads := req.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	entries := make([]types.JarEntry, len(input.Entries))
	keep := make([]bool, len(input.Entries))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(threads)
	for i, entry := range input.Entries {
		if isSignatureFile(entry.Name) {
			continue
		}
		keep[i] = true
		if !strings.HasSuffix(entry.Name, ".class") {
			entries[i] = entry
			continue
		}
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			prefix, className := splitVersionedClass(entry.Name)
			opts := classfile.RemapOptions{
				SignatureFix:      req.SignatureFixes[className],
				RebuildSourceFile: req.RebuildSourceFile,
			}
			name, data, err := classfile.Remap(entry.Data, mapper, opts)
			if err != nil {
				return errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("failed to remap %s", entry.Name)).
					WithCause(err)
			}
			entries[i] = types.JarEntry{Name: prefix + name + ".class", Data: data}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, RemapResult{}, err
	}

	out := &types.JarContents{}
	result := RemapResult{}
	seen := map[string]string{}
	for i, entry := range entries {
		if !keep[i] {
			result.Dropped = append(result.Dropped, input.Entries[i].Name)
			continue
		}
		if prev, ok := seen[entry.Name]; ok {
			return nil, RemapResult{}, errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg(fmt.Sprintf("%s and %s both map to %s", prev, input.Entries[i].Name, entry.Name))
		}
		seen[entry.Name] = input.Entries[i].Name
		if strings.HasSuffix(entry.Name, ".class") {
			result.Classes++
		} else {
			result.Resources++
		}
		out.Entries = append(out.Entries, entry)
	}
	out.Sort()
	return out, result, nil
}

// isSignatureFile reports jar signing files, which no longer match once
// classes are rewritten.
func isSignatureFile(name string) bool {
	if !strings.HasPrefix(name, "META-INF/") || strings.Count(name, "/") != 1 {
		return false
	}
	upper := strings.ToUpper(name)
	for _, ext := range []string{".SF", ".RSA", ".DSA", ".EC"} {
		if strings.HasSuffix(upper, ext) {
			return true
		}
	}
	return false
}

// splitVersionedClass separates a multi-release prefix from the internal
// class name of a class entry.
func splitVersionedClass(entry string) (string, string) {
	name := strings.TrimSuffix(entry, ".class")
	if strings.HasPrefix(name, multiReleasePrefix) {
		rest := name[len(multiReleasePrefix):]
		if idx := strings.IndexByte(rest, '/'); idx > 0 {
			cut := len(multiReleasePrefix) + idx + 1
			return name[:cut], name[cut:]
		}
	}
	return "", name
}

type classInfo struct {
	super      string
	interfaces []string
	fields     map[string]uint16
	methods    map[string]uint16
}

type classHierarchy struct {
	classes map[string]*classInfo
}

func newClassHierarchy() *classHierarchy {
	return &classHierarchy{classes: map[string]*classInfo{}}
}

func (h *classHierarchy) addJar(jar *types.JarContents) error {
	for _, entry := range jar.Entries {
		if !strings.HasSuffix(entry.Name, ".class") || isSignatureFile(entry.Name) {
			continue
		}
		if strings.HasPrefix(entry.Name, multiReleasePrefix) {
			continue
		}
		c, err := classfile.Parse(entry.Data)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Name, err)
		}
		h.add(c)
	}
	return nil
}

func (h *classHierarchy) add(c *classfile.Class) {
	name := c.Name()
	if _, ok := h.classes[name]; ok {
		return
	}
	info := &classInfo{
		super:      c.SuperName(),
		interfaces: c.InterfaceNames(),
		fields:     map[string]uint16{},
		methods:    map[string]uint16{},
	}
	for _, f := range c.Fields {
		info.fields[c.MemberName(f)+":"+c.MemberDesc(f)] = f.Access
	}
	for _, m := range c.Methods {
		info.methods[c.MemberName(m)+c.MemberDesc(m)] = m.Access
	}
	h.classes[name] = info
}

// ancestors lists owner followed by its super classes and interfaces,
// breadth first, each class once.
func (h *classHierarchy) ancestors(owner string) []string {
	out := []string{owner}
	seen := map[string]bool{owner: true}
	for i := 0; i < len(out); i++ {
		info, ok := h.classes[out[i]]
		if !ok {
			continue
		}
		next := append([]string{info.super}, info.interfaces...)
		for _, name := range next {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// hierarchyMapper resolves member mappings through inheritance: a
// reference to B.foo finds the mapping declared on B's ancestor A.
type hierarchyMapper struct {
	mapping   *mappings.Remapping
	hierarchy *classHierarchy

	mu      sync.Mutex
	fields  map[string]string
	methods map[string]string
}

func newHierarchyMapper(mapping *mappings.Remapping, hierarchy *classHierarchy) *hierarchyMapper {
	return &hierarchyMapper{
		mapping:   mapping,
		hierarchy: hierarchy,
		fields:    map[string]string{},
		methods:   map[string]string{},
	}
}

func (m *hierarchyMapper) MapClass(name string) string {
	return m.mapping.MapClass(name)
}

func (m *hierarchyMapper) MapField(owner string, name string, desc string) string {
	key := owner + "." + name + ":" + desc
	m.mu.Lock()
	mapped, ok := m.fields[key]
	m.mu.Unlock()
	if ok {
		return mapped
	}
	mapped = name
	for _, cls := range m.hierarchy.ancestors(owner) {
		if n, ok := m.mapping.Field(cls, name, desc); ok {
			mapped = n
			break
		}
		if info, ok := m.hierarchy.classes[cls]; ok {
			if _, declared := info.fields[name+":"+desc]; declared {
				break
			}
		}
	}
	m.mu.Lock()
	m.fields[key] = mapped
	m.mu.Unlock()
	return mapped
}

func (m *hierarchyMapper) MapMethod(owner string, name string, desc string) string {
	if strings.HasPrefix(name, "<") {
		return name
	}
	key := owner + "." + name + desc
	m.mu.Lock()
	mapped, ok := m.methods[key]
	m.mu.Unlock()
	if ok {
		return mapped
	}
	mapped = name
	if cls, ok := m.methodOwner(owner, name, desc); ok {
		mapped, _ = m.mapping.Method(cls, name, desc)
	}
	m.mu.Lock()
	m.methods[key] = mapped
	m.mu.Unlock()
	return mapped
}

// methodOwner finds the class whose mapping applies to owner.name desc.
// Private methods of ancestors are not inherited and are skipped.
func (m *hierarchyMapper) methodOwner(owner string, name string, desc string) (string, bool) {
	for i, cls := range m.hierarchy.ancestors(owner) {
		if i > 0 {
			if info, ok := m.hierarchy.classes[cls]; ok {
				if access, declared := info.methods[name+desc]; declared && access&classfile.AccPrivate != 0 {
					continue
				}
			}
		}
		if _, ok := m.mapping.Method(cls, name, desc); ok {
			return cls, true
		}
	}
	return "", false
}

func (m *hierarchyMapper) MapArg(owner string, name string, desc string, lvIndex int) (string, bool) {
	if mapped, ok := m.mapping.Arg(owner, name, desc, lvIndex); ok {
		return mapped, true
	}
	if cls, ok := m.methodOwner(owner, name, desc); ok && cls != owner {
		return m.mapping.Arg(cls, name, desc, lvIndex)
	}
	return "", false
}
