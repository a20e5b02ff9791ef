package chain

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrDynamicIndex rejects an index step whose argument is computed at
	// evaluation time. Such an argument has no change source to observe.
	ErrDynamicIndex = errors.New("index argument is not a constant")
	ErrEmptyPath    = errors.New("path has no steps")
)

// PathShapeError is returned by NewPath for a path using an access form that
// cannot be observed.
type PathShapeError struct {
	Step int
	Name string
	Err  error
}

func (e *PathShapeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("chain: invalid path: %v", e.Err)
	}
	return fmt.Sprintf("chain: invalid path at step %d (%s): %v", e.Step, e.Name, e.Err)
}

func (e *PathShapeError) Unwrap() error {
	return e.Err
}

// TypeMismatchError is the stream error of an observation whose value does
// not have the expected type.
type TypeMismatchError struct {
	Path string
	Step string
	Want reflect.Type
	Got  reflect.Type
}

func (e *TypeMismatchError) Error() string {
	at := e.Path
	if e.Step != "" {
		at = e.Step + " of " + e.Path
	}
	return fmt.Sprintf("chain: %s: want %v, got %v", at, e.Want, e.Got)
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
