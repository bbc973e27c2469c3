package mappings

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const maxLineSize = 4 << 20

// ReadTiny reads a tiny v1 or v2 file and emits it to v.
func ReadTiny(r io.Reader, v Visitor) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return err
		}
		return fmt.Errorf("empty tiny file")
	}
	header := strings.Split(strings.TrimRight(sc.Text(), "\r"), "\t")
	switch {
	case len(header) >= 5 && header[0] == "tiny" && header[1] == "2":
		return readTinyV2(sc, header[3:], v)
	case len(header) >= 3 && header[0] == "v1":
		return readTinyV1(sc, header[1:], v)
	default:
		return fmt.Errorf("unsupported tiny header %q", sc.Text())
	}
}

func readTinyV2(sc *bufio.Scanner, namespaces []string, v Visitor) error {
	if err := v.VisitNamespaces(namespaces[0], namespaces[1:]); err != nil {
		return err
	}
	dsts := namespaces[1:]
	var (
		inHeader   = true
		escaped    bool
		classOK    bool
		memberOK   bool
		memberKind ElementKind
		argOK      bool
	)
	unescapeName := func(s string) string {
		if escaped {
			return unescapeTiny(s)
		}
		return s
	}
	visitDst := func(kind ElementKind, names []string) error {
		for i, name := range names {
			if i >= len(dsts) || name == "" {
				continue
			}
			if err := v.VisitDstName(kind, dsts[i], unescapeName(name)); err != nil {
				return err
			}
		}
		return nil
	}
	lineNo := 1
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
		parts := strings.Split(line[depth:], "\t")
		if inHeader && depth == 1 {
			if parts[0] == "escaped-names" {
				escaped = true
			}
			continue
		}
		inHeader = false
		var err error
		switch {
		case depth == 0 && parts[0] == "c":
			if len(parts) < 2 {
				return fmt.Errorf("line %d: class without name", lineNo)
			}
			memberOK, argOK = false, false
			classOK, err = v.VisitClass(unescapeName(parts[1]))
			if err == nil && classOK {
				err = visitDst(KindClass, parts[2:])
			}
		case depth == 1 && (parts[0] == "f" || parts[0] == "m"):
			if !classOK {
				continue
			}
			if len(parts) < 3 {
				return fmt.Errorf("line %d: member without descriptor or name", lineNo)
			}
			argOK = false
			if parts[0] == "f" {
				memberKind = KindField
				memberOK, err = v.VisitField(unescapeName(parts[2]), unescapeName(parts[1]))
			} else {
				memberKind = KindMethod
				memberOK, err = v.VisitMethod(unescapeName(parts[2]), unescapeName(parts[1]))
			}
			if err == nil && memberOK {
				err = visitDst(memberKind, parts[3:])
			}
		case depth == 1 && parts[0] == "c":
			if classOK && len(parts) > 1 {
				err = v.VisitComment(KindClass, unescapeTiny(parts[1]))
			}
		case depth == 2 && parts[0] == "p":
			if !classOK || !memberOK || memberKind != KindMethod {
				continue
			}
			if len(parts) < 3 {
				return fmt.Errorf("line %d: arg without index or name", lineNo)
			}
			lv, convErr := strconv.Atoi(parts[1])
			if convErr != nil {
				return fmt.Errorf("line %d: invalid arg index %q", lineNo, parts[1])
			}
			argOK, err = v.VisitMethodArg(lv, unescapeName(parts[2]))
			if err == nil && argOK {
				err = visitDst(KindMethodArg, parts[3:])
			}
		case depth == 2 && parts[0] == "v":
			argOK = false
		case depth == 2 && parts[0] == "c":
			if classOK && memberOK && len(parts) > 1 {
				err = v.VisitComment(memberKind, unescapeTiny(parts[1]))
			}
		case depth == 3 && parts[0] == "c":
			if classOK && memberOK && argOK && len(parts) > 1 {
				err = v.VisitComment(KindMethodArg, unescapeTiny(parts[1]))
			}
		}
		if err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return v.VisitEnd()
}

// readTinyV1 buffers the flat v1 layout into a tree since members are not
// grouped under their class.
func readTinyV1(sc *bufio.Scanner, namespaces []string, v Visitor) error {
	tree := NewTree(namespaces[0])
	for _, ns := range namespaces[1:] {
		tree.AddNamespace(ns)
	}
	setNames := func(set func(string, string), names []string) {
		for i, name := range names {
			if i == 0 || i >= len(namespaces) {
				continue
			}
			set(namespaces[i], name)
		}
	}
	lineNo := 1
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		switch parts[0] {
		case "CLASS":
			if len(parts) < 2 {
				return fmt.Errorf("line %d: class without name", lineNo)
			}
			c := tree.AddClass(parts[1])
			setNames(c.SetName, parts[1:])
		case "FIELD", "METHOD":
			if len(parts) < 4 {
				return fmt.Errorf("line %d: incomplete %s entry", lineNo, strings.ToLower(parts[0]))
			}
			c := tree.AddClass(parts[1])
			if parts[0] == "FIELD" {
				setNames(c.AddField(parts[3], parts[2]).SetName, parts[3:])
			} else {
				setNames(c.AddMethod(parts[3], parts[2]).SetName, parts[3:])
			}
		default:
			return fmt.Errorf("line %d: unknown tiny v1 entry %q", lineNo, parts[0])
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return tree.Accept(v, namespaces[0])
}

// TinyV2Writer serializes visitor events as a tiny v2 file.
type TinyV2Writer struct {
	w          *bufio.Writer
	properties [][2]string
	dsts       []string
	pending    []string
	pendingPre string
}

// NewTinyV2Writer writes to w; properties are emitted after the header in
// the given order.
func NewTinyV2Writer(w io.Writer, properties ...[2]string) *TinyV2Writer {
	return &TinyV2Writer{w: bufio.NewWriter(w), properties: properties}
}

var _ Visitor = (*TinyV2Writer)(nil)

func (t *TinyV2Writer) VisitNamespaces(src string, dst []string) error {
	t.dsts = dst
	if _, err := t.w.WriteString("tiny\t2\t0\t" + strings.Join(append([]string{src}, dst...), "\t") + "\n"); err != nil {
		return err
	}
	for _, prop := range t.properties {
		line := "\t" + prop[0]
		if prop[1] != "" {
			line += "\t" + prop[1]
		}
		if _, err := t.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func (t *TinyV2Writer) begin(prefix string, name string) (bool, error) {
	if err := t.flush(); err != nil {
		return false, err
	}
	t.pendingPre = prefix
	t.pending = make([]string, len(t.dsts)+1)
	t.pending[0] = name
	return true, nil
}

func (t *TinyV2Writer) flush() error {
	if t.pending == nil {
		return nil
	}
	_, err := t.w.WriteString(t.pendingPre + strings.Join(t.pending, "\t") + "\n")
	t.pending = nil
	return err
}

func (t *TinyV2Writer) VisitClass(name string) (bool, error) {
	return t.begin("c\t", name)
}

func (t *TinyV2Writer) VisitField(name string, desc string) (bool, error) {
	return t.begin("\tf\t"+desc+"\t", name)
}

func (t *TinyV2Writer) VisitMethod(name string, desc string) (bool, error) {
	return t.begin("\tm\t"+desc+"\t", name)
}

func (t *TinyV2Writer) VisitMethodArg(lvIndex int, name string) (bool, error) {
	return t.begin("\t\tp\t"+strconv.Itoa(lvIndex)+"\t", name)
}

func (t *TinyV2Writer) VisitDstName(_ ElementKind, namespace string, name string) error {
	for i, ns := range t.dsts {
		if ns == namespace && t.pending != nil {
			t.pending[i+1] = name
		}
	}
	return nil
}

func (t *TinyV2Writer) VisitComment(kind ElementKind, comment string) error {
	if err := t.flush(); err != nil {
		return err
	}
	indent := "\t"
	switch kind {
	case KindField, KindMethod:
		indent = "\t\t"
	case KindMethodArg:
		indent = "\t\t\t"
	}
	_, err := t.w.WriteString(indent + "c\t" + escapeTiny(comment) + "\n")
	return err
}

func (t *TinyV2Writer) VisitEnd() error {
	if err := t.flush(); err != nil {
		return err
	}
	return t.w.Flush()
}

var tinyEscaper = strings.NewReplacer("\\", "\\\\", "\n", "\\n", "\r", "\\r", "\t", "\\t", "\x00", "\\0")

func escapeTiny(s string) string {
	return tinyEscaper.Replace(s)
}

func unescapeTiny(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '0':
			b.WriteByte(0)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
