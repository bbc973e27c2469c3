package adapters

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"loomkit/internal/core"
	"loomkit/internal/mappings"
	"loomkit/internal/ports"
	"loomkit/internal/types"
)

const (
	defaultIntermediaryEntry = "mappings/mappings.tiny"
	defaultParchmentEntry    = "parchment.json"
	defaultSignatureEntry    = "extras/record_signatures.json"

	tinySourcePlaceholder = "source"
	tinyTargetPlaceholder = "target"
)

// layerInput is a mapping file, optionally an entry inside a zip or jar.
type layerInput struct {
	Path     string
	ZipEntry string
}

func newLayerInput(spec types.LayerSpec, env core.LayerEnv, defaultEntry string) (layerInput, error) {
	if strings.TrimSpace(spec.Path) == "" {
		return layerInput{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s layer needs a path", spec.Kind))
	}
	path := spec.Path
	if !filepath.IsAbs(path) && env.BaseDir != "" {
		path = filepath.Join(env.BaseDir, path)
	}
	entry := spec.ZipEntry
	if entry == "" && isArchivePath(path) {
		entry = defaultEntry
	}
	return layerInput{Path: path, ZipEntry: entry}, nil
}

func isArchivePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".jar":
		return true
	default:
		return false
	}
}

func (in layerInput) read() ([]byte, error) {
	if in.ZipEntry != "" {
		return readZipEntry(in.Path, in.ZipEntry)
	}
	data, err := os.ReadFile(in.Path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("mapping input %s not found", in.Path)).
			WithCause(err)
	}
	return data, nil
}

// fingerprint hashes the input bytes. Directories hash every file below
// them in path order.
func (in layerInput) fingerprint() (string, error) {
	info, err := os.Stat(in.Path)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("mapping input %s not found", in.Path)).
			WithCause(err)
	}
	h := sha256.New()
	if !info.IsDir() {
		sum, err := fileDigest(in.Path)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s\x00%s", sum, in.ZipEntry)
		return hex.EncodeToString(h.Sum(nil)), nil
	}
	files, err := walkFiles(in.Path, "")
	if err != nil {
		return "", err
	}
	for _, file := range files {
		sum, err := fileDigest(file)
		if err != nil {
			return "", err
		}
		rel, _ := filepath.Rel(in.Path, file)
		fmt.Fprintf(h, "%s\x00%s\n", filepath.ToSlash(rel), sum)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func walkFiles(root string, ext string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || (ext != "" && filepath.Ext(path) != ext) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to scan %s", root)).
			WithCause(err)
	}
	sort.Strings(files)
	return files, nil
}

func layerID(spec types.LayerSpec) string {
	if spec.ID != "" {
		return spec.ID
	}
	return string(spec.Kind)
}

func nsOr(value types.Namespace, fallback types.Namespace) types.Namespace {
	if value != "" {
		return value
	}
	return fallback
}

// IntermediaryLayer visits the intermediary tiny file keyed by intermediary
// names. Elements without a named name take their intermediary name.
type IntermediaryLayer struct {
	id    string
	input layerInput
}

func NewIntermediaryLayer(spec types.LayerSpec, env core.LayerEnv) (ports.MappingLayer, error) {
	input, err := newLayerInput(spec, env, defaultIntermediaryEntry)
	if err != nil {
		return nil, err
	}
	return IntermediaryLayer{id: layerID(spec), input: input}, nil
}

func (l IntermediaryLayer) ID() string                       { return l.id }
func (l IntermediaryLayer) Kind() types.LayerKind            { return types.LayerKindIntermediary }
func (l IntermediaryLayer) SourceNamespace() types.Namespace { return types.NamespaceIntermediary }
func (l IntermediaryLayer) DependsOn() []types.LayerKind     { return nil }
func (l IntermediaryLayer) AllowsDuplicates() bool           { return false }
func (l IntermediaryLayer) Fingerprint() (string, error)     { return l.input.fingerprint() }

func (l IntermediaryLayer) Visit(ctx context.Context, v mappings.Visitor) error {
	data, err := l.input.read()
	if err != nil {
		return err
	}
	tree := mappings.NewTree("")
	if err := mappings.ReadTiny(bytes.NewReader(data), tree); err != nil {
		return invalidLayer(l.id, fmt.Sprintf("invalid tiny mappings in %s", l.input.Path), err)
	}
	if !tree.HasNamespace(string(types.NamespaceIntermediary)) {
		return invalidLayer(l.id, fmt.Sprintf("%s has no intermediary namespace", l.input.Path), nil)
	}
	completer := mappings.NewNamespaceCompleter(v, map[string]string{
		string(types.NamespaceNamed): string(types.NamespaceIntermediary),
	})
	log.Ctx(ctx).Debug().Str("layer", l.id).Int("classes", len(tree.Classes())).Msg("visiting intermediary mappings")
	return tree.Accept(completer, string(types.NamespaceIntermediary))
}

// FileLayer visits a tiny, enigma or proguard file. Formats without
// namespace names use the layer's fallback namespaces.
type FileLayer struct {
	id             string
	input          layerInput
	format         types.MappingFormat
	source         types.Namespace
	fallbackSource types.Namespace
	fallbackTarget types.Namespace
}

func NewFileLayer(spec types.LayerSpec, env core.LayerEnv) (ports.MappingLayer, error) {
	input, err := newLayerInput(spec, env, defaultIntermediaryEntry)
	if err != nil {
		return nil, err
	}
	format := spec.Format
	if format == "" {
		format = detectFormat(input.Path)
	}
	switch format {
	case types.MappingFormatTiny, types.MappingFormatTinyV1, types.MappingFormatEnigma, types.MappingFormatProguard:
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown mapping format %q", format))
	}
	fallbackSource := nsOr(spec.FallbackSource, types.NamespaceIntermediary)
	return FileLayer{
		id:             layerID(spec),
		input:          input,
		format:         format,
		source:         nsOr(spec.SourceNamespace, fallbackSource),
		fallbackSource: fallbackSource,
		fallbackTarget: nsOr(spec.FallbackTarget, types.NamespaceNamed),
	}, nil
}

func detectFormat(path string) types.MappingFormat {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return types.MappingFormatEnigma
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mapping", ".mappings":
		return types.MappingFormatEnigma
	case ".txt":
		return types.MappingFormatProguard
	default:
		return types.MappingFormatTiny
	}
}

func (l FileLayer) ID() string                       { return l.id }
func (l FileLayer) Kind() types.LayerKind            { return types.LayerKindFile }
func (l FileLayer) SourceNamespace() types.Namespace { return l.source }
func (l FileLayer) AllowsDuplicates() bool           { return true }

// Fingerprint covers the format and namespace settings as well as the input.
func (l FileLayer) Fingerprint() (string, error) {
	sum, err := l.input.fingerprint()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s", sum, l.format, l.source, l.fallbackSource, l.fallbackTarget), nil
}

func (l FileLayer) DependsOn() []types.LayerKind {
	return []types.LayerKind{types.LayerKindIntermediary}
}

func (l FileLayer) Visit(ctx context.Context, v mappings.Visitor) error {
	tree, srcNs, renames, err := l.load()
	if err != nil {
		return err
	}
	renamer := mappings.NewNamespaceRenamer(v, renames)
	log.Ctx(ctx).Debug().
		Str("layer", l.id).
		Str("format", string(l.format)).
		Int("classes", len(tree.Classes())).
		Msg("visiting mapping file")
	return tree.Accept(renamer, srcNs)
}

// load reads the file into a scratch tree and returns the namespace the
// tree must be visited from, plus the renames from the file's namespace
// names to the tree's. Proguard files map named to obfuscated names, so
// they are visited from their right-hand side.
func (l FileLayer) load() (*mappings.Tree, string, map[string]string, error) {
	switch l.format {
	case types.MappingFormatEnigma:
		tree := mappings.NewTree(mappings.EnigmaSource)
		files := []string{l.input.Path}
		if info, err := os.Stat(l.input.Path); err == nil && info.IsDir() {
			found, err := walkFiles(l.input.Path, ".mapping")
			if err != nil {
				return nil, "", nil, err
			}
			files = found
		}
		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, "", nil, errbuilder.New().
					WithCode(errbuilder.CodeNotFound).
					WithMsg(fmt.Sprintf("layer %s: mapping input %s not found", l.id, file)).
					WithCause(err)
			}
			if err := mappings.ReadEnigma(bytes.NewReader(data), tree); err != nil {
				return nil, "", nil, invalidLayer(l.id, fmt.Sprintf("invalid enigma mappings in %s", file), err)
			}
		}
		return tree, mappings.EnigmaSource, map[string]string{
			mappings.EnigmaSource: string(l.fallbackSource),
			mappings.EnigmaTarget: string(l.fallbackTarget),
		}, nil
	case types.MappingFormatProguard:
		data, err := l.input.read()
		if err != nil {
			return nil, "", nil, err
		}
		tree := mappings.NewTree(mappings.ProguardSource)
		if err := mappings.ReadProguard(bytes.NewReader(data), tree); err != nil {
			return nil, "", nil, invalidLayer(l.id, fmt.Sprintf("invalid proguard mappings in %s", l.input.Path), err)
		}
		return tree, mappings.ProguardTarget, map[string]string{
			mappings.ProguardTarget: string(l.fallbackSource),
			mappings.ProguardSource: string(l.fallbackTarget),
		}, nil
	default:
		data, err := l.input.read()
		if err != nil {
			return nil, "", nil, err
		}
		tree := mappings.NewTree("")
		if err := mappings.ReadTiny(bytes.NewReader(data), tree); err != nil {
			return nil, "", nil, invalidLayer(l.id, fmt.Sprintf("invalid tiny mappings in %s", l.input.Path), err)
		}
		renames := l.tinyRenames(tree)
		for _, ns := range tree.Namespaces() {
			if nsOrSelf(renames, ns) == string(l.source) {
				return tree, ns, renames, nil
			}
		}
		return nil, "", nil, invalidLayer(l.id, fmt.Sprintf("%s has no %s namespace", l.input.Path, l.source), nil)
	}
}

// tinyRenames maps the placeholder namespaces "source" and "target" to the
// layer's fallback namespaces unless the file already uses those names.
func (l FileLayer) tinyRenames(tree *mappings.Tree) map[string]string {
	renames := map[string]string{}
	for placeholder, ns := range map[string]types.Namespace{
		tinySourcePlaceholder: l.fallbackSource,
		tinyTargetPlaceholder: l.fallbackTarget,
	} {
		if tree.HasNamespace(placeholder) && !tree.HasNamespace(string(ns)) {
			renames[placeholder] = string(ns)
		}
	}
	return renames
}

func nsOrSelf(renames map[string]string, ns string) string {
	if renamed, ok := renames[ns]; ok {
		return renamed
	}
	return ns
}

func invalidLayer(id string, msg string, cause error) error {
	if cause == nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("layer %s: %s", id, msg))
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("layer %s: %s", id, msg)).
		WithCause(cause)
}

// ParchmentLayer adds parameter names and javadoc keyed by named names.
type ParchmentLayer struct {
	id           string
	input        layerInput
	removePrefix bool
}

func NewParchmentLayer(spec types.LayerSpec, env core.LayerEnv) (ports.MappingLayer, error) {
	input, err := newLayerInput(spec, env, defaultParchmentEntry)
	if err != nil {
		return nil, err
	}
	return ParchmentLayer{id: layerID(spec), input: input, removePrefix: spec.RemovePrefix}, nil
}

func (l ParchmentLayer) ID() string                       { return l.id }
func (l ParchmentLayer) Kind() types.LayerKind            { return types.LayerKindParchment }
func (l ParchmentLayer) SourceNamespace() types.Namespace { return types.NamespaceNamed }
func (l ParchmentLayer) AllowsDuplicates() bool           { return true }

func (l ParchmentLayer) DependsOn() []types.LayerKind {
	return []types.LayerKind{types.LayerKindIntermediary}
}

func (l ParchmentLayer) Fingerprint() (string, error) {
	sum, err := l.input.fingerprint()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%t", sum, l.removePrefix), nil
}

func (l ParchmentLayer) Visit(ctx context.Context, v mappings.Visitor) error {
	raw, err := l.input.read()
	if err != nil {
		return err
	}
	data, err := mappings.ReadParchment(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	log.Ctx(ctx).Debug().Str("layer", l.id).Str("version", data.Version).Msg("visiting parchment data")
	return data.Accept(v, string(types.NamespaceNamed), l.removePrefix)
}

// SignatureFixLayer contributes no names; it carries generic signatures
// for classes whose compiled Signature attribute is wrong.
type SignatureFixLayer struct {
	id    string
	input layerInput
}

var _ ports.SignatureFixProvider = SignatureFixLayer{}

func NewSignatureFixLayer(spec types.LayerSpec, env core.LayerEnv) (ports.MappingLayer, error) {
	input, err := newLayerInput(spec, env, defaultSignatureEntry)
	if err != nil {
		return nil, err
	}
	return SignatureFixLayer{id: layerID(spec), input: input}, nil
}

func (l SignatureFixLayer) ID() string                       { return l.id }
func (l SignatureFixLayer) Kind() types.LayerKind            { return types.LayerKindSignatureFix }
func (l SignatureFixLayer) SourceNamespace() types.Namespace { return types.NamespaceIntermediary }
func (l SignatureFixLayer) DependsOn() []types.LayerKind     { return nil }
func (l SignatureFixLayer) AllowsDuplicates() bool           { return false }
func (l SignatureFixLayer) Fingerprint() (string, error)     { return l.input.fingerprint() }

func (l SignatureFixLayer) Visit(context.Context, mappings.Visitor) error {
	return nil
}

func (l SignatureFixLayer) Fixes() (map[string]string, error) {
	data, err := l.input.read()
	if err != nil {
		return nil, err
	}
	fixes := map[string]string{}
	if err := json.Unmarshal(data, &fixes); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid signature fixes in %s", l.input.Path)).
			WithCause(err)
	}
	return fixes, nil
}

// MojangLayer names elements by the official Mojang mappings. The file is
// keyed by obfuscated names, so only elements already known to the tree
// are named.
type MojangLayer struct {
	id    string
	input layerInput
}

func NewMojangLayer(spec types.LayerSpec, env core.LayerEnv) (ports.MappingLayer, error) {
	input, err := newLayerInput(spec, env, "")
	if err != nil {
		return nil, err
	}
	return MojangLayer{id: layerID(spec), input: input}, nil
}

func (l MojangLayer) ID() string                       { return l.id }
func (l MojangLayer) Kind() types.LayerKind            { return types.LayerKindMojang }
func (l MojangLayer) SourceNamespace() types.Namespace { return types.NamespaceOfficial }
func (l MojangLayer) AllowsDuplicates() bool           { return false }
func (l MojangLayer) Fingerprint() (string, error)     { return l.input.fingerprint() }

func (l MojangLayer) DependsOn() []types.LayerKind {
	return []types.LayerKind{types.LayerKindIntermediary}
}

func (l MojangLayer) Visit(ctx context.Context, v mappings.Visitor) error {
	data, err := l.input.read()
	if err != nil {
		return err
	}
	tree := mappings.NewTree(mappings.ProguardSource)
	if err := mappings.ReadProguard(bytes.NewReader(data), tree); err != nil {
		return err
	}
	renamer := mappings.NewNamespaceRenamer(v, map[string]string{
		mappings.ProguardSource: string(types.NamespaceNamed),
		mappings.ProguardTarget: string(types.NamespaceOfficial),
	})
	log.Ctx(ctx).Debug().Str("layer", l.id).Int("classes", len(tree.Classes())).Msg("visiting mojang mappings")
	return tree.Accept(renamer, mappings.ProguardTarget)
}

// RegisterBuiltinLayers adds the layer kinds shipped with loomkit.
func RegisterBuiltinLayers(registry *core.LayerRegistry) {
	registry.Register(types.LayerKindIntermediary, NewIntermediaryLayer)
	registry.Register(types.LayerKindFile, NewFileLayer)
	registry.Register(types.LayerKindParchment, NewParchmentLayer)
	registry.Register(types.LayerKindSignatureFix, NewSignatureFixLayer)
	registry.Register(types.LayerKindMojang, NewMojangLayer)
}
