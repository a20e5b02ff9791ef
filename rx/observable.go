// Package rx is the push-based stream substrate shared by the property,
// derived-value and command packages. It only carries the operators those
// packages need.
package rx

import (
	"sync"
	"sync/atomic"
)

// Observer receives the notifications of an Observable. Nil funcs are skipped,
// except Error: an error nobody handles goes to the unhandled error sink.
type Observer[T any] struct {
	Next     func(T)
	Error    func(error)
	Complete func()
}

func (o Observer[T]) next(v T) {
	if o.Next != nil {
		o.Next(v)
	}
}

func (o Observer[T]) error(err error) {
	if o.Error != nil {
		o.Error(err)
		return
	}
	ReportUnhandled(err)
}

func (o Observer[T]) complete() {
	if o.Complete != nil {
		o.Complete()
	}
}

type Observable[T any] interface {
	Subscribe(o Observer[T]) Subscription
}

// Func adapts a subscribe function to Observable.
type Func[T any] func(o Observer[T]) Subscription

func (f Func[T]) Subscribe(o Observer[T]) Subscription {
	return f(o)
}

func Create[T any](fn func(o Observer[T]) Subscription) Observable[T] {
	return Func[T](fn)
}

// Subscribe is shorthand for subscribing with only a Next func.
func Subscribe[T any](src Observable[T], next func(T)) Subscription {
	return src.Subscribe(Observer[T]{Next: next})
}

// safeObserver drops everything after the first terminal notification.
type safeObserver[T any] struct {
	o    Observer[T]
	done atomic.Bool
}

func guard[T any](o Observer[T]) *safeObserver[T] {
	return &safeObserver[T]{o: o}
}

func (s *safeObserver[T]) next(v T) {
	if s.done.Load() {
		return
	}
	s.o.next(v)
}

func (s *safeObserver[T]) error(err error) {
	if s.done.Swap(true) {
		return
	}
	s.o.error(err)
}

func (s *safeObserver[T]) complete() {
	if s.done.Swap(true) {
		return
	}
	s.o.complete()
}

func (s *safeObserver[T]) observer() Observer[T] {
	return Observer[T]{Next: s.next, Error: s.error, Complete: s.complete}
}

func Just[T any](values ...T) Observable[T] {
	return Func[T](func(o Observer[T]) Subscription {
		for _, v := range values {
			o.next(v)
		}
		o.complete()
		return Nop
	})
}

func Empty[T any]() Observable[T] {
	return Func[T](func(o Observer[T]) Subscription {
		o.complete()
		return Nop
	})
}

// Never emits nothing and never terminates.
func Never[T any]() Observable[T] {
	return Func[T](func(o Observer[T]) Subscription {
		return Nop
	})
}

func Throw[T any](err error) Observable[T] {
	return Func[T](func(o Observer[T]) Subscription {
		o.error(err)
		return Nop
	})
}

// Subscription releases whatever a Subscribe call acquired. Unsubscribe must be
// safe to call more than once.
type Subscription interface {
	Unsubscribe()
}

type nopSubscription struct{}

func (nopSubscription) Unsubscribe() {}

// Nop is a Subscription holding nothing.
var Nop Subscription = nopSubscription{}

type funcSubscription struct {
	once sync.Once
	fn   func()
}

func (s *funcSubscription) Unsubscribe() {
	s.once.Do(s.fn)
}

// NewSubscription wraps fn so that it runs at most once.
func NewSubscription(fn func()) Subscription {
	if fn == nil {
		return Nop
	}
	return &funcSubscription{fn: fn}
}

// Serial holds one subscription at a time; Set releases the previous one.
type Serial struct {
	mu       sync.Mutex
	current  Subscription
	disposed bool
}

func (s *Serial) Set(sub Subscription) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
		return
	}
	prev := s.current
	s.current = sub
	s.mu.Unlock()
	if prev != nil {
		prev.Unsubscribe()
	}
}

func (s *Serial) Unsubscribe() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	prev := s.current
	s.current = nil
	s.mu.Unlock()
	if prev != nil {
		prev.Unsubscribe()
	}
}

// Composite releases all of its subscriptions together.
type Composite struct {
	mu       sync.Mutex
	subs     []Subscription
	disposed bool
}

func NewComposite(subs ...Subscription) *Composite {
	return &Composite{subs: subs}
}

func (c *Composite) Add(sub Subscription) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
}

func (c *Composite) Unsubscribe() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}
