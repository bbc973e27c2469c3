package descriptor

import (
	"fmt"
	"strings"
)

type signatureMapper struct {
	sig      string
	pos      int
	out      strings.Builder
	mapClass ClassMapper
}

// MapSignature rewrites the class names of a class, method or field generic
// signature. Nested types ("Outer<T>.Inner") keep their simple names in sync
// with the mapped nested class.
func MapSignature(sig string, mapClass ClassMapper) (string, error) {
	if sig == "" {
		return sig, nil
	}
	m := &signatureMapper{sig: sig, mapClass: mapClass}
	m.out.Grow(len(sig))
	if err := m.parse(); err != nil {
		return "", fmt.Errorf("invalid signature %q: %w", sig, err)
	}
	return m.out.String(), nil
}

func (m *signatureMapper) parse() error {
	if m.peek() == '<' {
		if err := m.typeParameters(); err != nil {
			return err
		}
	}
	if m.peek() == '(' {
		m.copy()
		for m.peek() != ')' {
			if m.eof() {
				return fmt.Errorf("unterminated parameters")
			}
			if err := m.javaType(); err != nil {
				return err
			}
		}
		m.copy()
		if m.peek() == 'V' {
			m.copy()
		} else if err := m.javaType(); err != nil {
			return err
		}
		for m.peek() == '^' {
			m.copy()
			if err := m.referenceType(); err != nil {
				return err
			}
		}
	} else {
		for !m.eof() {
			if err := m.referenceType(); err != nil {
				return err
			}
		}
	}
	if !m.eof() {
		return fmt.Errorf("trailing data at %d", m.pos)
	}
	return nil
}

func (m *signatureMapper) typeParameters() error {
	m.copy()
	for m.peek() != '>' {
		if m.eof() {
			return fmt.Errorf("unterminated type parameters")
		}
		idx := strings.IndexByte(m.sig[m.pos:], ':')
		if idx <= 0 {
			return fmt.Errorf("missing type parameter bound")
		}
		m.out.WriteString(m.sig[m.pos : m.pos+idx])
		m.pos += idx
		m.copy()
		if c := m.peek(); c != ':' && c != '>' {
			if err := m.referenceType(); err != nil {
				return err
			}
		}
		for m.peek() == ':' {
			m.copy()
			if err := m.referenceType(); err != nil {
				return err
			}
		}
	}
	m.copy()
	return nil
}

func (m *signatureMapper) javaType() error {
	switch m.peek() {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		m.copy()
		return nil
	default:
		return m.referenceType()
	}
}

func (m *signatureMapper) referenceType() error {
	switch m.peek() {
	case 'L':
		return m.classType()
	case 'T':
		idx := strings.IndexByte(m.sig[m.pos:], ';')
		if idx < 0 {
			return fmt.Errorf("unterminated type variable")
		}
		m.out.WriteString(m.sig[m.pos : m.pos+idx+1])
		m.pos += idx + 1
		return nil
	case '[':
		m.copy()
		return m.javaType()
	default:
		return fmt.Errorf("unexpected %q at %d", m.peek(), m.pos)
	}
}

func (m *signatureMapper) classType() error {
	m.copy()
	name := m.identifier()
	if name == "" {
		return fmt.Errorf("empty class name at %d", m.pos)
	}
	mapped := m.mapClass(name)
	m.out.WriteString(mapped)
	for {
		switch m.peek() {
		case '<':
			if err := m.typeArguments(); err != nil {
				return err
			}
		case '.':
			m.copy()
			inner := m.identifier()
			if inner == "" {
				return fmt.Errorf("empty nested class name at %d", m.pos)
			}
			name = name + "$" + inner
			mappedInner := m.mapClass(name)
			m.out.WriteString(nestedSimpleName(mapped, mappedInner))
			mapped = mappedInner
		case ';':
			m.copy()
			return nil
		default:
			return fmt.Errorf("unterminated class type")
		}
	}
}

func (m *signatureMapper) typeArguments() error {
	m.copy()
	for m.peek() != '>' {
		switch m.peek() {
		case 0:
			return fmt.Errorf("unterminated type arguments")
		case '*':
			m.copy()
		case '+', '-':
			m.copy()
			if err := m.referenceType(); err != nil {
				return err
			}
		default:
			if err := m.referenceType(); err != nil {
				return err
			}
		}
	}
	m.copy()
	return nil
}

func (m *signatureMapper) identifier() string {
	start := m.pos
	for !m.eof() {
		switch m.sig[m.pos] {
		case '<', '.', ';':
			return m.sig[start:m.pos]
		}
		m.pos++
	}
	return m.sig[start:m.pos]
}

func (m *signatureMapper) peek() byte {
	if m.eof() {
		return 0
	}
	return m.sig[m.pos]
}

func (m *signatureMapper) copy() {
	m.out.WriteByte(m.sig[m.pos])
	m.pos++
}

func (m *signatureMapper) eof() bool {
	return m.pos >= len(m.sig)
}

// nestedSimpleName returns the simple name of a nested class relative to its
// mapped outer class.
func nestedSimpleName(outer string, inner string) string {
	if strings.HasPrefix(inner, outer+"$") {
		return inner[len(outer)+1:]
	}
	if idx := strings.LastIndexByte(inner, '$'); idx >= 0 {
		return inner[idx+1:]
	}
	return SimpleName(inner)
}
