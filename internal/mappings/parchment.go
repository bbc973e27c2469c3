package mappings

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParchmentData is the parameter and javadoc export of a Parchment release.
type ParchmentData struct {
	Version string           `json:"version"`
	Classes []ParchmentClass `json:"classes"`
}

type ParchmentClass struct {
	Name    string            `json:"name"`
	Javadoc []string          `json:"javadoc,omitempty"`
	Fields  []ParchmentField  `json:"fields,omitempty"`
	Methods []ParchmentMethod `json:"methods,omitempty"`
}

type ParchmentField struct {
	Name       string   `json:"name"`
	Descriptor string   `json:"descriptor"`
	Javadoc    []string `json:"javadoc,omitempty"`
}

type ParchmentMethod struct {
	Name       string               `json:"name"`
	Descriptor string               `json:"descriptor"`
	Javadoc    []string             `json:"javadoc,omitempty"`
	Parameters []ParchmentParameter `json:"parameters,omitempty"`
}

type ParchmentParameter struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Javadoc string `json:"javadoc,omitempty"`
}

func ReadParchment(r io.Reader) (ParchmentData, error) {
	var data ParchmentData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return ParchmentData{}, fmt.Errorf("decode parchment data: %w", err)
	}
	return data, nil
}

// Accept emits the data keyed by names in ns. Parchment only contributes
// parameter names and comments, so no destination class or member names
// are produced; param names go to the arg's ns name.
func (d ParchmentData) Accept(v Visitor, ns string, removePrefix bool) error {
	if err := v.VisitNamespaces(ns, nil); err != nil {
		return err
	}
	for _, c := range d.Classes {
		ok, err := v.VisitClass(c.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := visitJavadoc(v, KindClass, c.Javadoc); err != nil {
			return err
		}
		for _, f := range c.Fields {
			ok, err := v.VisitField(f.Name, f.Descriptor)
			if err != nil {
				return err
			}
			if ok {
				if err := visitJavadoc(v, KindField, f.Javadoc); err != nil {
					return err
				}
			}
		}
		for _, m := range c.Methods {
			ok, err := v.VisitMethod(m.Name, m.Descriptor)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := visitJavadoc(v, KindMethod, m.Javadoc); err != nil {
				return err
			}
			for _, p := range m.Parameters {
				name := p.Name
				if removePrefix {
					name = StripParamPrefix(name)
				}
				ok, err := v.VisitMethodArg(p.Index, name)
				if err != nil {
					return err
				}
				if ok && p.Javadoc != "" {
					if err := v.VisitComment(KindMethodArg, p.Javadoc); err != nil {
						return err
					}
				}
			}
		}
	}
	return v.VisitEnd()
}

func visitJavadoc(v Visitor, kind ElementKind, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	return v.VisitComment(kind, strings.Join(lines, "\n"))
}

// StripParamPrefix turns "pName" into "name". Names that do not follow the
// p-prefix convention are returned unchanged.
func StripParamPrefix(name string) string {
	if len(name) < 2 || name[0] != 'p' {
		return name
	}
	r, size := utf8.DecodeRuneInString(name[1:])
	if !unicode.IsUpper(r) {
		return name
	}
	return string(unicode.ToLower(r)) + name[1+size:]
}
