package rx

import (
	"log"
	"reflect"
	"sync/atomic"
)

// UnhandledError is what the default sink panics with.
type UnhandledError struct {
	Err error
}

func (e *UnhandledError) Error() string {
	return "rx: unhandled error: " + e.Err.Error()
}

func (e *UnhandledError) Unwrap() error {
	return e.Err
}

type handlerBox struct {
	fn func(error)
}

var unhandled atomic.Pointer[handlerBox]

func init() {
	unhandled.Store(&handlerBox{fn: defaultUnhandled})
}

// defaultUnhandled logs err and then panics with it on the main thread, so a
// fault nobody listens to cannot go unnoticed.
func defaultUnhandled(err error) {
	log.Printf("rx: unhandled error: %v", err)
	MainThread().Schedule(func() {
		panic(&UnhandledError{Err: err})
	})
}

// ReportUnhandled hands err to the process-wide unhandled error sink.
func ReportUnhandled(err error) {
	if err == nil {
		return
	}
	unhandled.Load().fn(err)
}

// SetUnhandledErrorHandler replaces the process-wide sink and returns a func
// restoring the previous one. A nil fn restores the default.
func SetUnhandledErrorHandler(fn func(error)) (restore func()) {
	if fn == nil {
		fn = defaultUnhandled
	}
	prev := unhandled.Swap(&handlerBox{fn: fn})
	return func() { unhandled.Store(prev) }
}

// Equal compares with == when the dynamic type allows it and falls back to
// reflect.DeepEqual otherwise.
func Equal[T any](a, b T) (eq bool) {
	av, bv := any(a), any(b)
	if av == nil || bv == nil {
		return av == nil && bv == nil
	}
	ta := reflect.TypeOf(av)
	if ta != reflect.TypeOf(bv) {
		return false
	}
	if !ta.Comparable() {
		return reflect.DeepEqual(av, bv)
	}
	defer func() {
		// comparable struct holding an incomparable interface value
		if recover() != nil {
			eq = reflect.DeepEqual(av, bv)
		}
	}()
	return av == bv
}
