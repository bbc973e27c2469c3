// Package descriptor rewrites class names inside JVM field/method
// descriptors and generic signatures.
package descriptor

import (
	"fmt"
	"strings"
)

// ClassMapper maps an internal class name such as "a/b/c" to its new name.
type ClassMapper func(name string) string

// MapDesc rewrites every class reference of a field or method descriptor.
func MapDesc(desc string, mapClass ClassMapper) string {
	if !strings.ContainsRune(desc, 'L') {
		return desc
	}
	var b strings.Builder
	b.Grow(len(desc))
	for i := 0; i < len(desc); {
		c := desc[i]
		if c != 'L' {
			b.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(desc[i:], ';')
		if end < 0 {
			b.WriteString(desc[i:])
			break
		}
		b.WriteByte('L')
		b.WriteString(mapClass(desc[i+1 : i+end]))
		b.WriteByte(';')
		i += end + 1
	}
	return b.String()
}

// MapType maps a CONSTANT_Class name, which is an internal name or an array
// descriptor.
func MapType(name string, mapClass ClassMapper) string {
	if strings.HasPrefix(name, "[") {
		return MapDesc(name, mapClass)
	}
	return mapClass(name)
}

// ArgSlots returns the local variable index of every parameter of a method
// descriptor. Instance methods start at slot 1.
func ArgSlots(desc string, static bool) ([]int, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, fmt.Errorf("invalid method descriptor %q", desc)
	}
	slot := 0
	if !static {
		slot = 1
	}
	var slots []int
	i := 1
	for i < len(desc) && desc[i] != ')' {
		start := i
		for i < len(desc) && desc[i] == '[' {
			i++
		}
		if i >= len(desc) {
			return nil, fmt.Errorf("invalid method descriptor %q", desc)
		}
		if desc[i] == 'L' {
			end := strings.IndexByte(desc[i:], ';')
			if end < 0 {
				return nil, fmt.Errorf("invalid method descriptor %q", desc)
			}
			i += end
		}
		i++
		slots = append(slots, slot)
		if i-start == 1 && (desc[start] == 'J' || desc[start] == 'D') {
			slot += 2
		} else {
			slot++
		}
	}
	if i >= len(desc) {
		return nil, fmt.Errorf("invalid method descriptor %q", desc)
	}
	return slots, nil
}

// ReturnType returns the return descriptor of a method descriptor.
func ReturnType(desc string) string {
	idx := strings.LastIndexByte(desc, ')')
	if idx < 0 {
		return ""
	}
	return desc[idx+1:]
}

// OuterClass returns the outermost class of a nested class name.
func OuterClass(name string) string {
	slash := strings.LastIndexByte(name, '/')
	if idx := strings.IndexByte(name[slash+1:], '$'); idx > 0 {
		return name[:slash+1+idx]
	}
	return name
}

// SimpleName returns the part of an internal name after the package.
func SimpleName(name string) string {
	return name[strings.LastIndexByte(name, '/')+1:]
}
