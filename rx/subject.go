package rx

import (
	"sync"
	"sync/atomic"
)

type subscriber[T any] struct {
	o       Observer[T]
	removed atomic.Bool
}

// Subject multicasts every value to the observers subscribed at the time it
// is pushed. The observer list is copy-on-write, so pushing never blocks
// concurrent Subscribe or Unsubscribe calls.
type Subject[T any] struct {
	mu        sync.Mutex
	observers atomic.Pointer[[]*subscriber[T]]
	count     atomic.Int32
	stopped   bool
	err       error
}

func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

func (s *Subject[T]) snapshot() []*subscriber[T] {
	if p := s.observers.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *Subject[T]) OnNext(v T) {
	for _, sub := range s.snapshot() {
		if !sub.removed.Load() {
			sub.o.next(v)
		}
	}
}

func (s *Subject[T]) OnError(err error) {
	for _, sub := range s.stop(err) {
		sub.o.error(err)
	}
}

func (s *Subject[T]) OnCompleted() {
	for _, sub := range s.stop(nil) {
		sub.o.complete()
	}
}

func (s *Subject[T]) stop(err error) []*subscriber[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	s.err = err
	subs := s.snapshot()
	s.observers.Store(nil)
	s.count.Store(0)
	return subs
}

func (s *Subject[T]) Subscribe(o Observer[T]) Subscription {
	s.mu.Lock()
	if s.stopped {
		err := s.err
		s.mu.Unlock()
		if err != nil {
			o.error(err)
		} else {
			o.complete()
		}
		return Nop
	}
	sub := &subscriber[T]{o: o}
	old := s.snapshot()
	next := make([]*subscriber[T], len(old), len(old)+1)
	copy(next, old)
	next = append(next, sub)
	s.observers.Store(&next)
	s.count.Add(1)
	s.mu.Unlock()

	return NewSubscription(func() { s.remove(sub) })
}

func (s *Subject[T]) remove(sub *subscriber[T]) {
	sub.removed.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.snapshot()
	next := make([]*subscriber[T], 0, len(old))
	for _, o := range old {
		if o != sub {
			next = append(next, o)
		}
	}
	if len(next) == len(old) {
		return
	}
	s.observers.Store(&next)
	s.count.Add(-1)
}

// HasObservers reports whether anyone is currently subscribed.
func (s *Subject[T]) HasObservers() bool {
	return s.count.Load() > 0
}

func (s *Subject[T]) Count() int {
	return int(s.count.Load())
}

// BehaviorSubject is a Subject with a current value that is replayed to every
// new observer and is always readable with Value.
type BehaviorSubject[T any] struct {
	Subject[T]
	vmu   sync.RWMutex
	value T
}

func NewBehaviorSubject[T any](initial T) *BehaviorSubject[T] {
	return &BehaviorSubject[T]{value: initial}
}

func (b *BehaviorSubject[T]) Value() T {
	b.vmu.RLock()
	defer b.vmu.RUnlock()
	return b.value
}

func (b *BehaviorSubject[T]) OnNext(v T) {
	b.vmu.Lock()
	b.value = v
	b.vmu.Unlock()
	b.Subject.OnNext(v)
}

func (b *BehaviorSubject[T]) Subscribe(o Observer[T]) Subscription {
	o.next(b.Value())
	return b.Subject.Subscribe(o)
}

// FaultSubject carries errors of one owner. Errors pushed while nobody
// observes it go to the unhandled error sink instead of being dropped.
type FaultSubject struct {
	subject   *Subject[error]
	scheduler Scheduler
}

func NewFaultSubject(s Scheduler) *FaultSubject {
	if s == nil {
		s = Immediate
	}
	return &FaultSubject{subject: NewSubject[error](), scheduler: s}
}

func (f *FaultSubject) OnNext(err error) {
	if err == nil {
		return
	}
	f.scheduler.Schedule(func() {
		if !f.subject.HasObservers() {
			ReportUnhandled(err)
			return
		}
		f.subject.OnNext(err)
	})
}

func (f *FaultSubject) Subscribe(o Observer[error]) Subscription {
	return f.subject.Subscribe(o)
}

func (f *FaultSubject) HasObservers() bool {
	return f.subject.HasObservers()
}
