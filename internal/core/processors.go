package core

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"loomkit/internal/classfile"
	"loomkit/internal/descriptor"
	"loomkit/internal/ports"
	"loomkit/internal/shared"
	"loomkit/internal/types"
)

const (
	environmentDesc = "Lnet/fabricmc/api/Environment;"
	envTypeDesc     = "Lnet/fabricmc/api/EnvType;"
)

// FileLoader reads processor inputs.
type FileLoader func(path string) ([]byte, error)

// BuildProcessors instantiates the configured processors in order.
func BuildProcessors(specs []types.ProcessorSpec, load FileLoader) ([]ports.JarProcessor, error) {
	processors := make([]ports.JarProcessor, 0, len(specs))
	for _, spec := range specs {
		inputs, err := loadInputs(spec.Paths, load)
		if err != nil {
			return nil, err
		}
		var processor ports.JarProcessor
		switch spec.Kind {
		case types.ProcessorKindAccessWidener:
			processor, err = NewAccessWidenerProcessor(inputs)
		case types.ProcessorKindAccessTransformer:
			processor, err = NewAccessTransformerProcessor(inputs)
		case types.ProcessorKindEnumWidener:
			processor = NewEnumWidenerProcessor(inputs)
		case types.ProcessorKindLineMap:
			processor, err = NewLineMapProcessor(inputs)
		case types.ProcessorKindClientOnlyMarker:
			processor = NewEnvironmentMarker(types.SideClient)
		default:
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("unknown processor kind %q", spec.Kind))
		}
		if err != nil {
			return nil, err
		}
		processors = append(processors, processor)
	}
	return processors, nil
}

// ProcessorInput is one file handed to a processor.
type ProcessorInput struct {
	Path string
	Data []byte
}

func loadInputs(paths []string, load FileLoader) ([]ProcessorInput, error) {
	inputs := make([]ProcessorInput, 0, len(paths))
	for _, path := range paths {
		data, err := load(path)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("failed to read processor input %s", path)).
				WithCause(err)
		}
		inputs = append(inputs, ProcessorInput{Path: path, Data: data})
	}
	return inputs, nil
}

func inputsFingerprint(kind string, inputs []ProcessorInput) string {
	h := sha256.New()
	h.Write([]byte(kind))
	for _, input := range inputs {
		sum := sha256.Sum256(input.Data)
		fmt.Fprintf(h, "\x00%x", sum)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// transformClasses parses every class of the jar, hands it to fn and
// re-encodes the classes fn reports as changed.
func transformClasses(ctx context.Context, jar *types.JarContents, fn func(c *classfile.Class) (bool, error)) error {
	for i, entry := range jar.Entries {
		if !strings.HasSuffix(entry.Name, ".class") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := classfile.Parse(entry.Data)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Name, err)
		}
		changed, err := fn(c)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Name, err)
		}
		if !changed {
			continue
		}
		data, err := c.Bytes()
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Name, err)
		}
		jar.Entries[i].Data = data
	}
	return nil
}

func visibilityRank(access uint16) int {
	switch {
	case access&classfile.AccPublic != 0:
		return 3
	case access&classfile.AccProtected != 0:
		return 2
	case access&classfile.AccPrivate != 0:
		return 0
	default:
		return 1
	}
}

func visibilityFlag(v types.Visibility) (uint16, int) {
	switch v {
	case types.VisibilityPublic:
		return classfile.AccPublic, 3
	case types.VisibilityProtected:
		return classfile.AccProtected, 2
	case types.VisibilityPrivate:
		return classfile.AccPrivate, 0
	default:
		return 0, 1
	}
}

// widen raises access to v. Access is never narrowed.
func widen(access uint16, v types.Visibility) uint16 {
	flag, rank := visibilityFlag(v)
	if visibilityRank(access) >= rank {
		return access
	}
	return access&^classfile.VisibilityMask | flag
}

func makePublic(access uint16) uint16 {
	return widen(access, types.VisibilityPublic)
}

func makeProtected(access uint16) uint16 {
	return widen(access, types.VisibilityProtected)
}

func removeFinal(access uint16) uint16 {
	return access &^ classfile.AccFinal
}

type memberRule struct {
	accessible bool
	extendable bool
	mutable    bool
}

// AccessWidenerProcessor applies access widener entries to a jar whose
// names are in the wideners' namespace.
type AccessWidenerProcessor struct {
	widener     types.AccessWidener
	fingerprint string
	classes     map[string]*memberRule
	members     map[string]map[string]*memberRule
}

func NewAccessWidenerProcessor(inputs []ProcessorInput) (*AccessWidenerProcessor, error) {
	wideners := make([]types.AccessWidener, 0, len(inputs))
	for _, input := range inputs {
		aw, err := ParseAccessWidener(bytes.NewReader(input.Data))
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid access widener %s", input.Path)).
				WithCause(err)
		}
		wideners = append(wideners, aw)
	}
	p := &AccessWidenerProcessor{
		fingerprint: inputsFingerprint("access-widener", inputs),
		classes:     map[string]*memberRule{},
		members:     map[string]map[string]*memberRule{},
	}
	if len(wideners) > 0 {
		merged, err := MergeAccessWideners(wideners)
		if err != nil {
			return nil, err
		}
		p.widener = merged
	}
	for _, entry := range p.widener.Entries {
		p.add(entry)
	}
	return p, nil
}

func (p *AccessWidenerProcessor) classRule(owner string) *memberRule {
	rule, ok := p.classes[owner]
	if !ok {
		rule = &memberRule{}
		p.classes[owner] = rule
	}
	return rule
}

func (p *AccessWidenerProcessor) add(entry types.AccessEntry) {
	if entry.Target == types.AccessTargetClass {
		rule := p.classRule(entry.Owner)
		rule.accessible = rule.accessible || entry.Access == types.AccessAccessible
		rule.extendable = rule.extendable || entry.Access == types.AccessExtendable
		return
	}
	owner := p.classRule(entry.Owner)
	if entry.Target == types.AccessTargetMethod && entry.Access == types.AccessExtendable {
		owner.extendable = true
	} else {
		owner.accessible = true
	}
	byName, ok := p.members[entry.Owner]
	if !ok {
		byName = map[string]*memberRule{}
		p.members[entry.Owner] = byName
	}
	key := string(entry.Target) + ":" + entry.Name + entry.Desc
	rule, ok := byName[key]
	if !ok {
		rule = &memberRule{}
		byName[key] = rule
	}
	switch entry.Access {
	case types.AccessAccessible:
		rule.accessible = true
	case types.AccessExtendable:
		rule.extendable = true
	case types.AccessMutable:
		rule.mutable = true
	}
}

func (p *AccessWidenerProcessor) Name() string { return string(types.ProcessorKindAccessWidener) }

func (p *AccessWidenerProcessor) Namespace() types.Namespace { return p.widener.Namespace }

func (p *AccessWidenerProcessor) Fingerprint() (string, error) { return p.fingerprint, nil }

func classAccessFor(rule *memberRule) func(uint16) uint16 {
	return func(access uint16) uint16 {
		if rule.accessible || rule.extendable {
			access = makePublic(access)
		}
		if rule.extendable {
			access = removeFinal(access)
		}
		return access
	}
}

func (p *AccessWidenerProcessor) Process(ctx context.Context, jar *types.JarContents) error {
	return transformClasses(ctx, jar, func(c *classfile.Class) (bool, error) {
		changed := false
		name := c.Name()
		if rule, ok := p.classes[name]; ok {
			if updated := classAccessFor(rule)(c.Access); updated != c.Access {
				c.Access = updated
				changed = true
			}
		}
		for inner, rule := range p.classes {
			if c.SetInnerClassAccess(inner, classAccessFor(rule)) {
				changed = true
			}
		}
		members := p.members[name]
		if len(members) == 0 {
			return changed, nil
		}
		for _, f := range c.Fields {
			rule, ok := members[string(types.AccessTargetField)+":"+c.MemberName(f)+c.MemberDesc(f)]
			if !ok {
				continue
			}
			access := f.Access
			if rule.accessible {
				access = makePublic(access)
			}
			if rule.mutable {
				access = removeFinal(access)
			}
			if access != f.Access {
				f.Access = access
				changed = true
			}
		}
		for _, m := range c.Methods {
			methodName := c.MemberName(m)
			rule, ok := members[string(types.AccessTargetMethod)+":"+methodName+c.MemberDesc(m)]
			if !ok {
				continue
			}
			access := m.Access
			if rule.accessible {
				if access&classfile.AccPrivate != 0 && methodName != "<init>" &&
					access&classfile.AccStatic == 0 && !c.IsInterface() {
					access |= classfile.AccFinal
				}
				access = makePublic(access)
			}
			if rule.extendable {
				access = removeFinal(makeProtected(access))
			}
			if access != m.Access {
				m.Access = access
				changed = true
			}
		}
		return changed, nil
	})
}

// AccessTransformerProcessor applies access transformer directives.
type AccessTransformerProcessor struct {
	fingerprint string
	byOwner     map[string][]types.AccessTransform
}

func NewAccessTransformerProcessor(inputs []ProcessorInput) (*AccessTransformerProcessor, error) {
	p := &AccessTransformerProcessor{
		fingerprint: inputsFingerprint("access-transformer", inputs),
		byOwner:     map[string][]types.AccessTransform{},
	}
	for _, input := range inputs {
		at, err := ParseAccessTransformer(bytes.NewReader(input.Data))
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid access transformer %s", input.Path)).
				WithCause(err)
		}
		for _, entry := range at.Entries {
			p.byOwner[entry.Owner] = append(p.byOwner[entry.Owner], entry)
		}
	}
	return p, nil
}

func (p *AccessTransformerProcessor) Name() string {
	return string(types.ProcessorKindAccessTransformer)
}

func (p *AccessTransformerProcessor) Fingerprint() (string, error) { return p.fingerprint, nil }

func applyTransform(access uint16, t types.AccessTransform) uint16 {
	access = widen(access, t.Visibility)
	switch t.Final {
	case types.FinalRemove:
		access = removeFinal(access)
	case types.FinalAdd:
		access |= classfile.AccFinal
	}
	return access
}

func (p *AccessTransformerProcessor) Process(ctx context.Context, jar *types.JarContents) error {
	return transformClasses(ctx, jar, func(c *classfile.Class) (bool, error) {
		changed := false
		for _, t := range p.byOwner[c.Name()] {
			switch {
			case t.Name == "":
				if updated := applyTransform(c.Access, t); updated != c.Access {
					c.Access = updated
					changed = true
				}
			case t.Desc == "":
				for _, f := range c.Fields {
					if t.Name != "*" && c.MemberName(f) != t.Name {
						continue
					}
					if updated := applyTransform(f.Access, t); updated != f.Access {
						f.Access = updated
						changed = true
					}
				}
			default:
				for _, m := range c.Methods {
					if t.Name == "*" && t.Desc == "()" {
						if strings.HasPrefix(c.MemberName(m), "<") {
							continue
						}
					} else if c.MemberName(m) != t.Name || c.MemberDesc(m) != t.Desc {
						continue
					}
					if updated := applyTransform(m.Access, t); updated != m.Access {
						m.Access = updated
						changed = true
					}
				}
			}
		}
		return changed, nil
	})
}

// EnumWidenerProcessor opens enums for extension: the class becomes public
// and non-final and its constructors public. Without inputs every enum of
// the jar is widened; otherwise inputs list class names one per line.
type EnumWidenerProcessor struct {
	fingerprint string
	targets     map[string]bool
}

func NewEnumWidenerProcessor(inputs []ProcessorInput) *EnumWidenerProcessor {
	p := &EnumWidenerProcessor{fingerprint: inputsFingerprint("enum-widener", inputs)}
	if len(inputs) == 0 {
		return p
	}
	p.targets = map[string]bool{}
	for _, input := range inputs {
		sc := bufio.NewScanner(bytes.NewReader(input.Data))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			p.targets[shared.InternalClassName(line)] = true
		}
	}
	return p
}

func (p *EnumWidenerProcessor) Name() string { return string(types.ProcessorKindEnumWidener) }

func (p *EnumWidenerProcessor) Fingerprint() (string, error) { return p.fingerprint, nil }

func (p *EnumWidenerProcessor) Process(ctx context.Context, jar *types.JarContents) error {
	return transformClasses(ctx, jar, func(c *classfile.Class) (bool, error) {
		if c.Access&classfile.AccEnum == 0 {
			return false, nil
		}
		if p.targets != nil && !p.targets[c.Name()] {
			return false, nil
		}
		changed := false
		if updated := removeFinal(makePublic(c.Access)); updated != c.Access {
			c.Access = updated
			changed = true
		}
		for _, m := range c.Methods {
			if c.MemberName(m) != "<init>" {
				continue
			}
			if updated := makePublic(m.Access); updated != m.Access {
				m.Access = updated
				changed = true
			}
		}
		return changed, nil
	})
}

// EnvironmentMarker annotates every class of a jar with
// @Environment(EnvType.<side>).
type EnvironmentMarker struct {
	side types.Side
}

func NewEnvironmentMarker(side types.Side) *EnvironmentMarker {
	return &EnvironmentMarker{side: side}
}

func (p *EnvironmentMarker) Name() string {
	if p.side == types.SideClient {
		return string(types.ProcessorKindClientOnlyMarker)
	}
	return "environment-" + string(p.side)
}

func (p *EnvironmentMarker) Fingerprint() (string, error) { return string(p.side), nil }

func (p *EnvironmentMarker) Process(ctx context.Context, jar *types.JarContents) error {
	return transformClasses(ctx, jar, func(c *classfile.Class) (bool, error) {
		return true, markEnvironment(c, p.side)
	})
}

func markEnvironment(c *classfile.Class, side types.Side) error {
	return c.AddInvisibleEnumAnnotation(environmentDesc, "value", envTypeDesc, strings.ToUpper(string(side)))
}

// LineMapProcessor rewrites LineNumberTables so stack traces point at the
// decompiled sources.
type LineMapProcessor struct {
	fingerprint string
	lines       types.LineMap
}

func NewLineMapProcessor(inputs []ProcessorInput) (*LineMapProcessor, error) {
	maps := make([]types.LineMap, 0, len(inputs))
	for _, input := range inputs {
		lm, err := ParseLineMap(bytes.NewReader(input.Data))
		if err != nil {
			return nil, err
		}
		maps = append(maps, lm)
	}
	merged, err := MergeLineMaps(maps...)
	if err != nil {
		return nil, err
	}
	return &LineMapProcessor{fingerprint: inputsFingerprint("linemap", inputs), lines: merged}, nil
}

func (p *LineMapProcessor) Name() string { return string(types.ProcessorKindLineMap) }

func (p *LineMapProcessor) Fingerprint() (string, error) { return p.fingerprint, nil }

func (p *LineMapProcessor) Process(ctx context.Context, jar *types.JarContents) error {
	return transformClasses(ctx, jar, func(c *classfile.Class) (bool, error) {
		cls, ok := p.lines[descriptor.OuterClass(c.Name())]
		if !ok {
			return false, nil
		}
		return c.RemapLines(func(line int) int { return MapLine(cls, line) })
	})
}

// ProcessorNames lists processor names in chain order.
func ProcessorNames(processors []ports.JarProcessor) []string {
	names := make([]string, 0, len(processors))
	for _, p := range processors {
		names = append(names, p.Name())
	}
	return names
}
