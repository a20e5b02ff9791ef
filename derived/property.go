// Package derived presents the latest value of a stream as a read-only
// property that is always readable and announces each distinct value once.
package derived

import (
	"sync"
	"sync/atomic"

	"github.com/delaneyj/bindparty/notify"
	"github.com/delaneyj/bindparty/rx"
)

type config[T any] struct {
	initial    T
	onChanging []func(next T)
	onChanged  []func(current T)
	scheduler  rx.Scheduler
	eager      bool
	equal      func(a, b T) bool
}

type Option[T any] func(*config[T])

// WithInitial is the value read before the source first emits. The default is
// the zero value of T.
func WithInitial[T any](v T) Option[T] {
	return func(c *config[T]) { c.initial = v }
}

// WithOnChanging runs fn with the incoming value before Value reflects it.
func WithOnChanging[T any](fn func(next T)) Option[T] {
	return func(c *config[T]) { c.onChanging = append(c.onChanging, fn) }
}

// WithOnChanged runs fn once Value reflects the new value.
func WithOnChanged[T any](fn func(current T)) Option[T] {
	return func(c *config[T]) { c.onChanged = append(c.onChanged, fn) }
}

// WithScheduler picks where values are applied and callbacks run.
func WithScheduler[T any](s rx.Scheduler) Option[T] {
	return func(c *config[T]) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// Eager subscribes to the source in New instead of on first access.
func Eager[T any]() Option[T] {
	return func(c *config[T]) { c.eager = true }
}

func WithEqual[T any](eq func(a, b T) bool) Option[T] {
	return func(c *config[T]) {
		if eq != nil {
			c.equal = eq
		}
	}
}

// Property is a read-only value fed by a source stream. Every reader shares
// one subscription to the source.
type Property[T any] struct {
	source rx.Observable[T]
	cfg    config[T]

	mu    sync.RWMutex
	value T

	connected atomic.Bool
	upstream  rx.Serial
	disposed  atomic.Bool

	changes *rx.Subject[T]
	readers atomic.Int32
	faults  *rx.FaultSubject
}

func New[T any](source rx.Observable[T], opts ...Option[T]) *Property[T] {
	cfg := config[T]{scheduler: rx.Immediate, equal: rx.Equal[T]}
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &Property[T]{
		source:  source,
		cfg:     cfg,
		value:   cfg.initial,
		changes: rx.NewSubject[T](),
		faults:  rx.NewFaultSubject(cfg.scheduler),
	}
	if cfg.eager {
		p.Connect()
	}
	return p
}

// ToProperty is New with the callbacks raising name on n.
func ToProperty[T any](n notify.Notifier, name string, source rx.Observable[T], opts ...Option[T]) *Property[T] {
	opts = append(opts,
		WithOnChanging(func(T) { notify.RaisePropertyChanging(n, name) }),
		WithOnChanged(func(T) { notify.RaisePropertyChanged(n, name) }),
	)
	return New(source, opts...)
}

// Connect subscribes to the source if that has not happened yet.
func (p *Property[T]) Connect() {
	if p.disposed.Load() || !p.connected.CompareAndSwap(false, true) {
		return
	}
	p.upstream.Set(p.source.Subscribe(rx.Observer[T]{
		Next:  p.receive,
		Error: p.faults.OnNext,
	}))
}

func (p *Property[T]) receive(v T) {
	p.cfg.scheduler.Schedule(func() { p.apply(v) })
}

func (p *Property[T]) apply(v T) {
	if p.disposed.Load() {
		return
	}
	p.mu.RLock()
	same := p.cfg.equal(p.value, v)
	p.mu.RUnlock()
	if same {
		return
	}

	for _, fn := range p.cfg.onChanging {
		fn(v)
	}
	p.mu.Lock()
	p.value = v
	p.mu.Unlock()
	p.changes.OnNext(v)
	for _, fn := range p.cfg.onChanged {
		fn(v)
	}
}

// Value returns the current value, connecting to the source on first use.
func (p *Property[T]) Value() T {
	p.Connect()
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Changes streams every distinct value applied after subscription.
func (p *Property[T]) Changes() rx.Observable[T] {
	return rx.Create(func(o rx.Observer[T]) rx.Subscription {
		p.readers.Add(1)
		sub := p.changes.Subscribe(o)
		p.Connect()
		return rx.NewSubscription(func() {
			sub.Unsubscribe()
			p.readers.Add(-1)
		})
	})
}

// Readers is the number of live Changes subscriptions.
func (p *Property[T]) Readers() int {
	return int(p.readers.Load())
}

// Faults carries the errors of the source.
func (p *Property[T]) Faults() rx.Observable[error] {
	return p.faults
}

// Dispose releases the source subscription and completes Changes. Value
// keeps returning the last applied value.
func (p *Property[T]) Dispose() {
	if p.disposed.Swap(true) {
		return
	}
	p.upstream.Unsubscribe()
	p.changes.OnCompleted()
}
