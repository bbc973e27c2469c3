package mappings

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Enigma files carry one source and one target namespace.
const (
	EnigmaSource = "source"
	EnigmaTarget = "target"
)

type enigmaFrame struct {
	kind   ElementKind
	obf    string
	named  string // effective target name, explicit or derived
	class  *ClassMapping
	field  *FieldMapping
	method *MethodMapping
	arg    *ArgMapping
}

// ReadEnigma adds the entries of one enigma file to tree. The tree's
// source namespace must be EnigmaSource. Nested CLASS entries are relative
// to their enclosing class.
func ReadEnigma(r io.Reader, tree *Tree) error {
	if tree.SrcNamespace() != EnigmaSource {
		return fmt.Errorf("enigma tree must use %q as source namespace", EnigmaSource)
	}
	tree.AddNamespace(EnigmaTarget)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	var stack []enigmaFrame
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		depth := 0
		for depth < len(line) && line[depth] == '\t' {
			depth++
		}
		if depth > len(stack) {
			return fmt.Errorf("line %d: unexpected indentation", lineNo)
		}
		stack = stack[:depth]
		content := line[depth:]
		if strings.HasPrefix(content, "COMMENT") {
			if depth == 0 {
				return fmt.Errorf("line %d: comment outside of an element", lineNo)
			}
			appendEnigmaComment(stack[depth-1], strings.TrimPrefix(strings.TrimPrefix(content, "COMMENT"), " "))
			continue
		}
		var tokens []string
		for _, tok := range strings.Fields(content) {
			if !strings.HasPrefix(tok, "ACC:") {
				tokens = append(tokens, tok)
			}
		}
		if strings.HasPrefix(tokens[0], "#") {
			continue
		}
		var parent *enigmaFrame
		if depth > 0 {
			parent = &stack[depth-1]
		}
		switch tokens[0] {
		case "CLASS":
			if len(tokens) < 2 || len(tokens) > 3 {
				return fmt.Errorf("line %d: malformed CLASS entry", lineNo)
			}
			if parent != nil && parent.kind != KindClass {
				return fmt.Errorf("line %d: CLASS nested in %s", lineNo, parent.kind)
			}
			obf := tokens[1]
			named := ""
			if len(tokens) == 3 {
				named = tokens[2]
			}
			explicit := named != ""
			if parent != nil && !strings.HasPrefix(obf, parent.obf+"$") {
				if named == "" {
					named = obf
				}
				obf = parent.obf + "$" + obf
				named = parent.named + "$" + named
			} else if named == "" {
				named = obf
			}
			c := tree.AddClass(obf)
			if explicit || named != obf {
				c.SetName(EnigmaTarget, named)
			}
			stack = append(stack, enigmaFrame{kind: KindClass, obf: obf, named: named, class: c})
		case "FIELD", "METHOD":
			if parent == nil || parent.kind != KindClass {
				return fmt.Errorf("line %d: %s outside of a class", lineNo, tokens[0])
			}
			var name, named, desc string
			switch len(tokens) {
			case 3:
				name, desc = tokens[1], tokens[2]
			case 4:
				name, named, desc = tokens[1], tokens[2], tokens[3]
			default:
				return fmt.Errorf("line %d: malformed %s entry", lineNo, tokens[0])
			}
			if tokens[0] == "FIELD" {
				f := parent.class.AddField(name, desc)
				f.SetName(EnigmaTarget, named)
				stack = append(stack, enigmaFrame{kind: KindField, field: f})
			} else {
				m := parent.class.AddMethod(name, desc)
				m.SetName(EnigmaTarget, named)
				stack = append(stack, enigmaFrame{kind: KindMethod, method: m})
			}
		case "ARG":
			if parent == nil || parent.kind != KindMethod || len(tokens) != 3 {
				return fmt.Errorf("line %d: malformed ARG entry", lineNo)
			}
			lv, err := strconv.Atoi(tokens[1])
			if err != nil {
				return fmt.Errorf("line %d: invalid arg index %q", lineNo, tokens[1])
			}
			a := parent.method.AddArg(lv)
			a.SetName(EnigmaTarget, tokens[2])
			stack = append(stack, enigmaFrame{kind: KindMethodArg, arg: a})
		default:
			return fmt.Errorf("line %d: unknown enigma entry %q", lineNo, tokens[0])
		}
	}
	return sc.Err()
}

func appendEnigmaComment(frame enigmaFrame, text string) {
	join := func(existing string) string {
		if existing == "" {
			return text
		}
		return existing + "\n" + text
	}
	switch frame.kind {
	case KindClass:
		frame.class.Comment = join(frame.class.Comment)
	case KindField:
		frame.field.Comment = join(frame.field.Comment)
	case KindMethod:
		frame.method.Comment = join(frame.method.Comment)
	case KindMethodArg:
		frame.arg.Comment = join(frame.arg.Comment)
	}
}
