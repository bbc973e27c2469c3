package core

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"loomkit/internal/mappings"
	"loomkit/internal/types"
)

const accessWidenerHeader = "accessWidener"

func ParseAccessWidener(r io.Reader) (types.AccessWidener, error) {
	sc := bufio.NewScanner(r)
	aw := types.AccessWidener{}
	lineNo := 0
	headerSeen := false
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if !headerSeen {
			if len(fields) != 3 || fields[0] != accessWidenerHeader {
				return types.AccessWidener{}, awError(lineNo, "invalid access widener header")
			}
			switch fields[1] {
			case "v1":
				aw.Version = 1
			case "v2":
				aw.Version = 2
			default:
				return types.AccessWidener{}, awError(lineNo, fmt.Sprintf("unsupported access widener version %s", fields[1]))
			}
			aw.Namespace = types.Namespace(fields[2])
			headerSeen = true
			continue
		}
		entry, err := parseAccessEntry(fields, aw.Version)
		if err != nil {
			return types.AccessWidener{}, awError(lineNo, err.Error())
		}
		aw.Entries = append(aw.Entries, entry)
	}
	if err := sc.Err(); err != nil {
		return types.AccessWidener{}, err
	}
	if !headerSeen {
		return types.AccessWidener{}, awError(lineNo, "missing access widener header")
	}
	return aw, nil
}

func awError(line int, msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("access widener line %d: %s", line, msg))
}

func parseAccessEntry(fields []string, version int) (types.AccessEntry, error) {
	entry := types.AccessEntry{}
	access := fields[0]
	if rest, ok := strings.CutPrefix(access, "transitive-"); ok {
		if version < 2 {
			return entry, fmt.Errorf("transitive entries require v2")
		}
		entry.Transitive = true
		access = rest
	}
	switch types.AccessKind(access) {
	case types.AccessAccessible, types.AccessExtendable, types.AccessMutable:
		entry.Access = types.AccessKind(access)
	default:
		return entry, fmt.Errorf("unknown access %q", access)
	}
	if len(fields) < 2 {
		return entry, fmt.Errorf("missing target")
	}
	entry.Target = types.AccessTarget(fields[1])
	switch entry.Target {
	case types.AccessTargetClass:
		if len(fields) != 3 {
			return entry, fmt.Errorf("class entries take exactly one name")
		}
		if entry.Access == types.AccessMutable {
			return entry, fmt.Errorf("classes cannot be mutable")
		}
	case types.AccessTargetMethod, types.AccessTargetField:
		if len(fields) != 5 {
			return entry, fmt.Errorf("%s entries take owner, name and descriptor", entry.Target)
		}
		if entry.Target == types.AccessTargetMethod && entry.Access == types.AccessMutable {
			return entry, fmt.Errorf("methods cannot be mutable")
		}
		if entry.Target == types.AccessTargetField && entry.Access == types.AccessExtendable {
			return entry, fmt.Errorf("fields cannot be extendable")
		}
		entry.Name = fields[3]
		entry.Desc = fields[4]
	default:
		return entry, fmt.Errorf("unknown target %q", fields[1])
	}
	entry.Owner = fields[2]
	return entry, nil
}

func WriteAccessWidener(w io.Writer, aw types.AccessWidener) error {
	version := aw.Version
	for _, entry := range aw.Entries {
		if entry.Transitive && version < 2 {
			version = 2
		}
	}
	if version == 0 {
		version = 1
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\tv%d\t%s\n", accessWidenerHeader, version, aw.Namespace)
	for _, entry := range aw.Entries {
		access := string(entry.Access)
		if entry.Transitive {
			access = "transitive-" + access
		}
		if entry.Target == types.AccessTargetClass {
			fmt.Fprintf(bw, "%s\t%s\t%s\n", access, entry.Target, entry.Owner)
			continue
		}
		fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%s\n", access, entry.Target, entry.Owner, entry.Name, entry.Desc)
	}
	return bw.Flush()
}

// RemapAccessWidener rewrites every entry from the remapping's source
// namespace into its target namespace.
func RemapAccessWidener(aw types.AccessWidener, remapping *mappings.Remapping) (types.AccessWidener, error) {
	if string(aw.Namespace) != remapping.From {
		return types.AccessWidener{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("access widener namespace %s does not match %s", aw.Namespace, remapping.From))
	}
	out := types.AccessWidener{Version: aw.Version, Namespace: types.Namespace(remapping.To)}
	for _, entry := range aw.Entries {
		mapped := entry
		mapped.Owner = remapping.MapClass(entry.Owner)
		switch entry.Target {
		case types.AccessTargetField:
			if name, ok := remapping.Field(entry.Owner, entry.Name, entry.Desc); ok {
				mapped.Name = name
			}
			mapped.Desc = remapping.MapDesc(entry.Desc)
		case types.AccessTargetMethod:
			if name, ok := remapping.Method(entry.Owner, entry.Name, entry.Desc); ok {
				mapped.Name = name
			}
			mapped.Desc = remapping.MapDesc(entry.Desc)
		}
		out.Entries = append(out.Entries, mapped)
	}
	return out, nil
}

type accessKey struct {
	access types.AccessKind
	target types.AccessTarget
	owner  string
	name   string
	desc   string
}

// MergeAccessWideners unions entries in first-seen order. A repeated entry
// is transitive when any of its occurrences is.
func MergeAccessWideners(wideners []types.AccessWidener) (types.AccessWidener, error) {
	if len(wideners) == 0 {
		return types.AccessWidener{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("nothing to merge")
	}
	out := types.AccessWidener{Version: 1, Namespace: wideners[0].Namespace}
	index := map[accessKey]int{}
	for _, aw := range wideners {
		if aw.Namespace != out.Namespace {
			return types.AccessWidener{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("cannot merge access wideners in %s and %s", out.Namespace, aw.Namespace))
		}
		if aw.Version > out.Version {
			out.Version = aw.Version
		}
		for _, entry := range aw.Entries {
			key := accessKey{entry.Access, entry.Target, entry.Owner, entry.Name, entry.Desc}
			if i, ok := index[key]; ok {
				out.Entries[i].Transitive = out.Entries[i].Transitive || entry.Transitive
				continue
			}
			index[key] = len(out.Entries)
			out.Entries = append(out.Entries, entry)
		}
	}
	return out, nil
}

func ParseAccessTransformer(r io.Reader) (types.AccessTransformer, error) {
	sc := bufio.NewScanner(r)
	at := types.AccessTransformer{}
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) > 3 {
			return types.AccessTransformer{}, atError(lineNo, "too many columns")
		}
		if len(fields) < 2 {
			return types.AccessTransformer{}, atError(lineNo, "missing class name")
		}
		entry := types.AccessTransform{}
		modifier := fields[0]
		switch {
		case strings.HasSuffix(modifier, string(types.FinalRemove)):
			entry.Final = types.FinalRemove
		case strings.HasSuffix(modifier, string(types.FinalAdd)):
			entry.Final = types.FinalAdd
		}
		modifier = strings.TrimSuffix(modifier, string(entry.Final))
		switch types.Visibility(modifier) {
		case types.VisibilityPublic, types.VisibilityProtected, types.VisibilityDefault, types.VisibilityPrivate:
			entry.Visibility = types.Visibility(modifier)
		default:
			return types.AccessTransformer{}, atError(lineNo, fmt.Sprintf("unknown modifier %q", fields[0]))
		}
		entry.Owner = strings.ReplaceAll(fields[1], ".", "/")
		if len(fields) == 3 {
			member := fields[2]
			if idx := strings.IndexByte(member, '('); idx >= 0 {
				entry.Name, entry.Desc = member[:idx], member[idx:]
			} else {
				entry.Name = member
			}
		}
		at.Entries = append(at.Entries, entry)
	}
	if err := sc.Err(); err != nil {
		return types.AccessTransformer{}, err
	}
	return at, nil
}

func atError(line int, msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("access transformer line %d: %s", line, msg))
}
