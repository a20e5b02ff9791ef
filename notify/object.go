package notify

import (
	"reflect"
	"runtime"
	"sync"
	"weak"

	"github.com/delaneyj/bindparty/rx"
	"github.com/delaneyj/bindparty/weakevent"
)

// Notifier is a subject whose property changes are observable.
type Notifier interface {
	ChangeTracker() *Tracker
}

// Object gives the embedding type two-phase change notification. The zero
// value is ready to use; the Tracker is created on first access.
type Object struct {
	once    sync.Once
	tracker *Tracker
}

func (o *Object) ChangeTracker() *Tracker {
	o.once.Do(func() { o.tracker = newTracker() })
	return o.tracker
}

func (o *Object) Changing() rx.Observable[Event] {
	return o.ChangeTracker().Changing()
}

func (o *Object) Changed() rx.Observable[Event] {
	return o.ChangeTracker().Changed()
}

func (o *Object) ThrownExceptions() rx.Observable[error] {
	return o.ChangeTracker().Faults()
}

func (o *Object) SuppressChangeNotifications() *Guard {
	return o.ChangeTracker().Suppress()
}

func (o *Object) DelayChangeNotifications() *Guard {
	return o.ChangeTracker().Delay()
}

func (o *Object) AreChangeNotificationsEnabled() bool {
	return o.ChangeTracker().Enabled()
}

func (o *Object) AreChangeNotificationsDelayed() bool {
	return o.ChangeTracker().Delayed()
}

type attached[T any] struct {
	ref     weak.Pointer[T]
	tracker *Tracker
}

func (a *attached[T]) ChangeTracker() *Tracker {
	return a.tracker
}

// Sender is the value events are attributed to, nil once it is collected.
func (a *attached[T]) Sender() any {
	if v := a.ref.Value(); v != nil {
		return v
	}
	return nil
}

var (
	sideTable sync.Map // weak.Pointer[T] -> *attached[T]
	lookups   sync.Map // reflect.Type of *T -> func(any) (Notifier, bool)
)

// Attach returns the Notifier for a value that does not embed Object. The
// tracking state is kept in a weak-keyed side table and dropped when v is
// collected. Values that already are a Notifier are returned as is.
func Attach[T any](v *T) Notifier {
	if n, ok := any(v).(Notifier); ok {
		return n
	}
	key := weak.Make(v)
	if got, ok := sideTable.Load(key); ok {
		return got.(*attached[T])
	}
	lookups.LoadOrStore(reflect.TypeFor[*T](), lookupAttached[T])
	a := &attached[T]{ref: key, tracker: newTracker()}
	got, loaded := sideTable.LoadOrStore(key, a)
	if !loaded {
		runtime.AddCleanup(v, forget[T], key)
	}
	return got.(*attached[T])
}

func forget[T any](key weak.Pointer[T]) {
	sideTable.Delete(key)
}

func lookupAttached[T any](v any) (Notifier, bool) {
	p, ok := v.(*T)
	if !ok || p == nil {
		return nil, false
	}
	got, ok := sideTable.Load(weak.Make(p))
	if !ok {
		return nil, false
	}
	return got.(*attached[T]), true
}

// Lookup returns the Notifier of v: v itself when it is one, or the tracker
// Attach gave it. Unlike Attach it never creates tracking state.
func Lookup(v any) (Notifier, bool) {
	if n, ok := v.(Notifier); ok {
		return n, true
	}
	if v == nil {
		return nil, false
	}
	fn, ok := lookups.Load(reflect.TypeOf(v))
	if !ok {
		return nil, false
	}
	return fn.(func(any) (Notifier, bool))(v)
}

func senderOf(n Notifier) any {
	if s, ok := n.(interface{ Sender() any }); ok {
		return s.Sender()
	}
	return n
}

func RaisePropertyChanging(n Notifier, name string) {
	n.ChangeTracker().Raise(senderOf(n), name, Before)
}

func RaisePropertyChanged(n Notifier, name string) {
	n.ChangeTracker().Raise(senderOf(n), name, After)
}

// RaiseAndSetIfChanged assigns value to *field and announces it, unless
// *field already equals value. Interface values holding slices or maps are
// compared with reflect.DeepEqual instead of panicking.
func RaiseAndSetIfChanged[T comparable](n Notifier, field *T, value T, name string) T {
	if rx.Equal(*field, value) {
		return value
	}
	RaisePropertyChanging(n, name)
	*field = value
	RaisePropertyChanged(n, name)
	return value
}

// SetIfChanged is RaiseAndSetIfChanged for types compared with eq. A nil eq
// uses rx.Equal.
func SetIfChanged[T any](n Notifier, field *T, value T, name string, eq func(a, b T) bool) T {
	if eq == nil {
		eq = rx.Equal[T]
	}
	if eq(*field, value) {
		return value
	}
	RaisePropertyChanging(n, name)
	*field = value
	RaisePropertyChanged(n, name)
	return value
}

func Changing(n Notifier) rx.Observable[Event] {
	return n.ChangeTracker().Changing()
}

func Changed(n Notifier) rx.Observable[Event] {
	return n.ChangeTracker().Changed()
}

// Property narrows src down to the events of one property.
func Property(src rx.Observable[Event], name string) rx.Observable[Event] {
	return rx.Filter(src, func(e Event) bool { return e.PropertyName == name })
}

func Faults(n Notifier) rx.Observable[error] {
	return n.ChangeTracker().Faults()
}

func Suppress(n Notifier) *Guard {
	return n.ChangeTracker().Suppress()
}

func Delay(n Notifier) *Guard {
	return n.ChangeTracker().Delay()
}

func Enabled(n Notifier) bool {
	return n.ChangeTracker().Enabled()
}

func Delayed(n Notifier) bool {
	return n.ChangeTracker().Delayed()
}

func SetScheduler(n Notifier, s rx.Scheduler) {
	n.ChangeTracker().SetScheduler(s)
}

// AddChangingHandler registers a classic Before handler. Neither n nor owner
// is kept alive by the registration; see package weakevent.
func AddChangingHandler[O any](n Notifier, owner *O, fn func(owner *O, e Event)) weakevent.Handle {
	return weakevent.Add(changingHandlers, n.ChangeTracker(), owner, func(o *O, _ *Tracker, e Event) {
		fn(o, e)
	})
}

// AddChangedHandler registers a classic After handler.
func AddChangedHandler[O any](n Notifier, owner *O, fn func(owner *O, e Event)) weakevent.Handle {
	return weakevent.Add(changedHandlers, n.ChangeTracker(), owner, func(o *O, _ *Tracker, e Event) {
		fn(o, e)
	})
}
