package templates

import (
	"fmt"
	"go/token"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field is one generated property.
type Field struct {
	Name string
	Type string
}

// Storage is the unexported struct field backing the property.
func (f Field) Storage() string {
	r, n := utf8.DecodeRuneInString(f.Name)
	return string(unicode.ToLower(r)) + f.Name[n:]
}

// Comparable reports whether values of the field can be compared with ==.
// Slices, maps and funcs go through notify.SetIfChanged instead.
func (f Field) Comparable() bool {
	return !strings.HasPrefix(f.Type, "[]") &&
		!strings.HasPrefix(f.Type, "map[") &&
		!strings.HasPrefix(f.Type, "func(")
}

// Spec describes the accessors generated for one type.
type Spec struct {
	Package string
	Type    string
	Fields  []Field

	// Steps also emits a chain.Member step per field.
	Steps bool
}

func (s Spec) Receiver() string {
	r, _ := utf8.DecodeRuneInString(s.Type)
	return string(unicode.ToLower(r))
}

// ParseFields reads "Name:type,Other:type".
func ParseFields(s string) ([]Field, error) {
	var fields []Field
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, typ, ok := strings.Cut(part, ":")
		name, typ = strings.TrimSpace(name), strings.TrimSpace(typ)
		if !ok || typ == "" {
			return nil, fmt.Errorf("field %q: want Name:type", part)
		}
		if !token.IsIdentifier(name) || !token.IsExported(name) {
			return nil, fmt.Errorf("field %q: %q is not an exported identifier", part, name)
		}
		fields = append(fields, Field{Name: name, Type: typ})
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields in %q", s)
	}
	return fields, nil
}
