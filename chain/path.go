// Package chain observes a value reached through a path of member and index
// steps, re-resolving the path whenever any link along it changes.
package chain

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// IndexerName is the property a subject announces when the content behind
// one of its index steps changes.
const IndexerName = "Item[]"

type stepKind uint8

const (
	memberStep stepKind = iota
	indexStep
)

// Step is one hop of a Path.
type Step struct {
	kind stepKind
	name string
	arg  Arg

	// get reads the step from its owner. ok is false when the step has no
	// value, e.g. an index out of range.
	get func(owner any) (v any, ok bool, err error)
}

// Name is what the step's owner announces when the step changes.
func (s Step) Name() string {
	if s.kind == indexStep {
		return IndexerName
	}
	return s.name
}

func (s Step) String() string {
	if s.kind == indexStep {
		if c, ok := s.arg.(constArg); ok {
			return fmt.Sprintf("[%v]", c.v)
		}
		return "[?]"
	}
	return s.name
}

// Member reads name from an owner of type *S with get.
func Member[S, V any](name string, get func(*S) V) Step {
	return Step{
		kind: memberStep,
		name: name,
		get: func(owner any) (any, bool, error) {
			s, ok := owner.(*S)
			if !ok {
				return nil, false, &TypeMismatchError{Step: name, Want: typeOf[*S](), Got: reflect.TypeOf(owner)}
			}
			return get(s), true, nil
		},
	}
}

// Field reads the exported struct field name through reflection. The owner
// may be a struct or a pointer to one.
func Field(name string) Step {
	return Step{
		kind: memberStep,
		name: name,
		get: func(owner any) (any, bool, error) {
			rv := reflect.Indirect(reflect.ValueOf(owner))
			if rv.Kind() != reflect.Struct {
				return nil, false, &TypeMismatchError{Step: name, Want: typeOf[struct{}](), Got: reflect.TypeOf(owner)}
			}
			f := rv.FieldByName(name)
			if !f.IsValid() || !f.CanInterface() {
				return nil, false, fmt.Errorf("chain: %v has no exported field %s", rv.Type(), name)
			}
			return f.Interface(), true, nil
		},
	}
}

// Arg is the argument of an index step.
type Arg interface {
	value() any
}

type constArg struct {
	v any
}

func (c constArg) value() any { return c.v }

type dynamicArg struct {
	fn func() any
}

func (d dynamicArg) value() any { return d.fn() }

// Const is an index argument fixed when the path is built.
func Const(v any) Arg {
	return constArg{v: v}
}

// Dynamic is an index argument computed on every read. Paths using one are
// rejected by NewPath.
func Dynamic(fn func() any) Arg {
	return dynamicArg{fn: fn}
}

// Index reads an element of the owner: an Indexer, a slice, an array or a
// map.
func Index(arg Arg) Step {
	return Step{
		kind: indexStep,
		arg:  arg,
		get: func(owner any) (any, bool, error) {
			return index(owner, arg.value())
		},
	}
}

// Indexer is implemented by owners that resolve index steps themselves.
// Such owners announce content changes as IndexerName.
type Indexer interface {
	Item(key any) (v any, ok bool)
}

func index(owner, key any) (any, bool, error) {
	if ix, ok := owner.(Indexer); ok {
		v, found := ix.Item(key)
		return v, found, nil
	}
	rv := reflect.Indirect(reflect.ValueOf(owner))
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		i, ok := key.(int)
		if !ok {
			return nil, false, fmt.Errorf("chain: %v index must be int, got %T", rv.Type(), key)
		}
		if i < 0 || i >= rv.Len() {
			return nil, false, nil
		}
		return rv.Index(i).Interface(), true, nil
	case reflect.Map:
		k := reflect.ValueOf(key)
		if !k.IsValid() || !k.Type().AssignableTo(rv.Type().Key()) {
			return nil, false, fmt.Errorf("chain: %v key must be %v, got %T", rv.Type(), rv.Type().Key(), key)
		}
		v := rv.MapIndex(k)
		if !v.IsValid() {
			return nil, false, nil
		}
		return v.Interface(), true, nil
	default:
		return nil, false, fmt.Errorf("chain: %T is not indexable", owner)
	}
}

// Path is a validated sequence of steps. The zero value is not usable.
type Path struct {
	steps []Step
}

// NewPath validates steps. Index steps must use a Const argument.
func NewPath(steps ...Step) (Path, error) {
	if len(steps) == 0 {
		return Path{}, &PathShapeError{Err: ErrEmptyPath}
	}
	for i, s := range steps {
		if s.get == nil {
			return Path{}, &PathShapeError{Step: i, Name: "<zero step>", Err: ErrEmptyPath}
		}
		if s.kind != indexStep {
			continue
		}
		if _, ok := s.arg.(constArg); !ok {
			return Path{}, &PathShapeError{Step: i, Name: s.String(), Err: ErrDynamicIndex}
		}
	}
	return Path{steps: append([]Step(nil), steps...)}, nil
}

// MustPath is NewPath for paths known to be valid; it panics otherwise.
func MustPath(steps ...Step) Path {
	p, err := NewPath(steps...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) Len() int {
	return len(p.steps)
}

func (p Path) String() string {
	var sb strings.Builder
	for i, s := range p.steps {
		if i > 0 && s.kind == memberStep {
			sb.WriteByte('.')
		}
		sb.WriteString(s.String())
	}
	return sb.String()
}

// Key fingerprints the textual form of the path.
func (p Path) Key() uint64 {
	return xxhash.Sum64String(p.String())
}
