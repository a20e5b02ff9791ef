package chain

import (
	"log/slog"
	"reflect"

	"github.com/delaneyj/bindparty/rx"
)

// Logger is the logging surface chain writes to.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type config struct {
	skipInitial bool
	before      bool
	logger      Logger
}

type Option func(*config)

// SkipInitial drops the value resolved at subscription time.
func SkipInitial() Option {
	return func(c *config) { c.skipInitial = true }
}

// BeforeChange observes the Before phase of every link instead of the After
// phase. Owners offering only ChangedNotifier fall back to a one-shot read.
func BeforeChange() Option {
	return func(c *config) { c.before = true }
}

func WithLogger(l Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Change is one resolved state of an observed path. OK is false when some
// link of the path has no value; Value is then the zero value.
type Change[T any] struct {
	// Sender owns the last step that was reached.
	Sender any
	Path   Path
	Value  T
	OK     bool
}

// Observe streams the value at path starting from root. The stream emits the
// current value on subscription, then again whenever a link along the path
// changes such that the resolved value differs from the previous one.
func Observe[T any](root any, path Path, opts ...Option) rx.Observable[Change[T]] {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(path.steps) == 0 {
		return rx.Throw[Change[T]](&PathShapeError{Err: ErrEmptyPath})
	}

	o := &observer[T]{path: path, cfg: cfg}
	var out rx.Observable[Change[T]]
	if isNil(root) {
		out = rx.Just(Change[T]{Path: path})
	} else {
		out = o.from(root, 0)
	}
	if cfg.skipInitial {
		out = rx.Skip(out, 1)
	}
	return rx.DistinctFunc(out, func(a, b Change[T]) bool {
		return a.OK == b.OK && rx.Equal(a.Value, b.Value)
	})
}

// Values is Observe without the envelope. A path without a value yields the
// zero value of T.
func Values[T any](root any, path Path, opts ...Option) rx.Observable[T] {
	return rx.DistinctUntilChanged(rx.Map(Observe[T](root, path, opts...), func(c Change[T]) T {
		return c.Value
	}))
}

type observer[T any] struct {
	path Path
	cfg  config
}

// from watches step k on owner and switches to the chain below it every time
// that step changes.
func (o *observer[T]) from(owner any, k int) rx.Observable[Change[T]] {
	step := o.path.steps[k]
	src := sources.forOwner(owner, step.Name(), o.cfg.before)
	if src == fallback {
		o.cfg.logger.Warn("chain: owner cannot announce changes, value is read once",
			"owner", reflect.TypeOf(owner).String(),
			"property", step.Name(),
			"path", o.path.String(),
		)
	}
	ticks := rx.StartWith(src.Changes(owner, step.Name(), o.cfg.before), struct{}{})
	return rx.Switch(rx.Map(ticks, func(struct{}) rx.Observable[Change[T]] {
		return o.resolve(owner, k)
	}))
}

func (o *observer[T]) resolve(owner any, k int) rx.Observable[Change[T]] {
	step := o.path.steps[k]
	v, ok, err := step.get(owner)
	if err != nil {
		if tm, isTM := err.(*TypeMismatchError); isTM {
			tm.Path = o.path.String()
		}
		return rx.Throw[Change[T]](err)
	}
	last := k == len(o.path.steps)-1
	if !ok || (!last && isNil(v)) {
		return rx.Just(Change[T]{Sender: owner, Path: o.path})
	}
	if !last {
		return o.from(v, k+1)
	}

	if v == nil {
		return rx.Just(Change[T]{Sender: owner, Path: o.path, OK: true})
	}
	typed, isT := v.(T)
	if !isT {
		return rx.Throw[Change[T]](&TypeMismatchError{
			Path: o.path.String(),
			Want: typeOf[T](),
			Got:  reflect.TypeOf(v),
		})
	}
	return rx.Just(Change[T]{Sender: owner, Path: o.path, Value: typed, OK: true})
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// WhenAny2 combines the values at two paths of root with fn.
func WhenAny2[A, B, R any](root any, a, b Path, fn func(A, B) R, opts ...Option) rx.Observable[R] {
	return rx.DistinctUntilChanged(rx.CombineLatest2(
		Values[A](root, a, opts...),
		Values[B](root, b, opts...),
		fn,
	))
}

func WhenAny3[A, B, C, R any](root any, a, b, c Path, fn func(A, B, C) R, opts ...Option) rx.Observable[R] {
	return rx.DistinctUntilChanged(rx.CombineLatest3(
		Values[A](root, a, opts...),
		Values[B](root, b, opts...),
		Values[C](root, c, opts...),
		fn,
	))
}
