package mappings

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"loomkit/internal/shared"
)

// ProGuard files map deobfuscated names (left) to obfuscated names (right).
const (
	ProguardSource = "source"
	ProguardTarget = "target"
)

var primitiveDescs = map[string]string{
	"void":    "V",
	"boolean": "Z",
	"byte":    "B",
	"char":    "C",
	"short":   "S",
	"int":     "I",
	"long":    "J",
	"float":   "F",
	"double":  "D",
}

// ReadProguard parses a ProGuard/R8 mapping file into tree. Descriptors are
// expressed in the deobfuscated namespace, which is the tree source.
func ReadProguard(r io.Reader, tree *Tree) error {
	if tree.SrcNamespace() != ProguardSource {
		return fmt.Errorf("proguard tree must use %q as source namespace", ProguardSource)
	}
	tree.AddNamespace(ProguardTarget)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	var current *ClassMapping
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := strings.TrimRight(sc.Text(), "\r")
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		left, right, ok := strings.Cut(line, " -> ")
		if !ok {
			return fmt.Errorf("line %d: missing ' -> ' separator", lineNo)
		}
		if raw[0] != ' ' && raw[0] != '\t' {
			right = strings.TrimSuffix(right, ":")
			current = tree.AddClass(shared.InternalClassName(left))
			current.SetName(ProguardTarget, shared.InternalClassName(right))
			continue
		}
		if current == nil {
			return fmt.Errorf("line %d: member outside of a class", lineNo)
		}
		left = stripLineInfo(left)
		typ, rest, ok := strings.Cut(left, " ")
		if !ok {
			return fmt.Errorf("line %d: malformed member %q", lineNo, left)
		}
		open := strings.IndexByte(rest, '(')
		if open < 0 {
			f := current.AddField(rest, javaTypeToDesc(typ))
			f.SetName(ProguardTarget, right)
			continue
		}
		closing := strings.IndexByte(rest, ')')
		if closing < open {
			return fmt.Errorf("line %d: malformed method %q", lineNo, left)
		}
		name := rest[:open]
		if strings.Contains(name, ".") {
			// inlined frame from another class
			continue
		}
		var desc strings.Builder
		desc.WriteByte('(')
		if params := rest[open+1 : closing]; params != "" {
			for _, p := range strings.Split(params, ",") {
				desc.WriteString(javaTypeToDesc(strings.TrimSpace(p)))
			}
		}
		desc.WriteByte(')')
		desc.WriteString(javaTypeToDesc(typ))
		m := current.AddMethod(name, desc.String())
		m.SetName(ProguardTarget, right)
	}
	return sc.Err()
}

// stripLineInfo drops "12:34:" prefixes in front of R8 member lines and the
// ":56:78" original line suffix after the parameter list.
func stripLineInfo(s string) string {
	for {
		idx := strings.IndexByte(s, ':')
		if idx <= 0 || !isDigits(s[:idx]) {
			break
		}
		s = s[idx+1:]
	}
	if closing := strings.IndexByte(s, ')'); closing >= 0 {
		s = s[:closing+1]
	}
	return s
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func javaTypeToDesc(t string) string {
	dims := 0
	for strings.HasSuffix(t, "[]") {
		dims++
		t = strings.TrimSuffix(t, "[]")
	}
	base, ok := primitiveDescs[t]
	if !ok {
		base = "L" + shared.InternalClassName(t) + ";"
	}
	return strings.Repeat("[", dims) + base
}
