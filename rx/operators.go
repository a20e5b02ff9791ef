package rx

import "sync"

func Map[T, U any](src Observable[T], fn func(T) U) Observable[U] {
	return Func[U](func(o Observer[U]) Subscription {
		return src.Subscribe(Observer[T]{
			Next:     func(v T) { o.next(fn(v)) },
			Error:    o.error,
			Complete: o.complete,
		})
	})
}

func Filter[T any](src Observable[T], keep func(T) bool) Observable[T] {
	return Func[T](func(o Observer[T]) Subscription {
		return src.Subscribe(Observer[T]{
			Next: func(v T) {
				if keep(v) {
					o.next(v)
				}
			},
			Error:    o.error,
			Complete: o.complete,
		})
	})
}

// Do runs fn for every value before passing it on.
func Do[T any](src Observable[T], fn func(T)) Observable[T] {
	return Map(src, func(v T) T {
		fn(v)
		return v
	})
}

func Skip[T any](src Observable[T], n int) Observable[T] {
	return Func[T](func(o Observer[T]) Subscription {
		var mu sync.Mutex
		remaining := n
		return src.Subscribe(Observer[T]{
			Next: func(v T) {
				mu.Lock()
				if remaining > 0 {
					remaining--
					mu.Unlock()
					return
				}
				mu.Unlock()
				o.next(v)
			},
			Error:    o.error,
			Complete: o.complete,
		})
	})
}

func StartWith[T any](src Observable[T], values ...T) Observable[T] {
	return Func[T](func(o Observer[T]) Subscription {
		for _, v := range values {
			o.next(v)
		}
		return src.Subscribe(o)
	})
}

// DistinctUntilChanged drops values Equal to the previous one.
func DistinctUntilChanged[T any](src Observable[T]) Observable[T] {
	return DistinctFunc(src, Equal[T])
}

func DistinctFunc[T any](src Observable[T], eq func(a, b T) bool) Observable[T] {
	return Func[T](func(o Observer[T]) Subscription {
		var (
			mu   sync.Mutex
			last T
			seen bool
		)
		return src.Subscribe(Observer[T]{
			Next: func(v T) {
				mu.Lock()
				if seen && eq(last, v) {
					mu.Unlock()
					return
				}
				last, seen = v, true
				mu.Unlock()
				o.next(v)
			},
			Error:    o.error,
			Complete: o.complete,
		})
	})
}

// ObserveOn moves every notification onto s.
func ObserveOn[T any](src Observable[T], s Scheduler) Observable[T] {
	if s == nil || s == Immediate {
		return src
	}
	return Func[T](func(o Observer[T]) Subscription {
		return src.Subscribe(Observer[T]{
			Next:     func(v T) { s.Schedule(func() { o.next(v) }) },
			Error:    func(err error) { s.Schedule(func() { o.error(err) }) },
			Complete: func() { s.Schedule(o.complete) },
		})
	})
}

// Switch mirrors the most recent inner observable. The previous inner
// subscription is released before the next one is subscribed.
func Switch[T any](src Observable[Observable[T]]) Observable[T] {
	return Func[T](func(o Observer[T]) Subscription {
		s := guard(o)
		inner := &Serial{}

		var (
			mu          sync.Mutex
			gen         uint64
			outerDone   bool
			innerActive bool
		)
		current := func(id uint64) bool {
			mu.Lock()
			defer mu.Unlock()
			return id == gen
		}

		outer := src.Subscribe(Observer[Observable[T]]{
			Next: func(next Observable[T]) {
				mu.Lock()
				gen++
				id := gen
				innerActive = true
				mu.Unlock()

				inner.Set(nil)
				sub := next.Subscribe(Observer[T]{
					Next: func(v T) {
						if current(id) {
							s.next(v)
						}
					},
					Error: func(err error) {
						if current(id) {
							s.error(err)
						}
					},
					Complete: func() {
						mu.Lock()
						if id != gen {
							mu.Unlock()
							return
						}
						innerActive = false
						done := outerDone
						mu.Unlock()
						if done {
							s.complete()
						}
					},
				})
				if current(id) {
					inner.Set(sub)
				} else {
					sub.Unsubscribe()
				}
			},
			Error: s.error,
			Complete: func() {
				mu.Lock()
				outerDone = true
				active := innerActive
				mu.Unlock()
				if !active {
					s.complete()
				}
			},
		})
		return NewComposite(outer, inner)
	})
}

func Merge[T any](srcs ...Observable[T]) Observable[T] {
	return Func[T](func(o Observer[T]) Subscription {
		s := guard(o)
		subs := NewComposite()
		var mu sync.Mutex
		remaining := len(srcs)
		if remaining == 0 {
			s.complete()
			return Nop
		}
		for _, src := range srcs {
			subs.Add(src.Subscribe(Observer[T]{
				Next:  s.next,
				Error: s.error,
				Complete: func() {
					mu.Lock()
					remaining--
					last := remaining == 0
					mu.Unlock()
					if last {
						s.complete()
					}
				},
			}))
		}
		return subs
	})
}

// CombineLatest2 emits fn of the latest values once both sources have produced.
func CombineLatest2[A, B, R any](a Observable[A], b Observable[B], fn func(A, B) R) Observable[R] {
	return Func[R](func(o Observer[R]) Subscription {
		s := guard(o)
		var (
			mu         sync.Mutex
			va         A
			vb         B
			hasA, hasB bool
			open       = 2
		)
		emit := func() {
			if hasA && hasB {
				r := fn(va, vb)
				mu.Unlock()
				s.next(r)
				return
			}
			mu.Unlock()
		}
		done := func() {
			mu.Lock()
			open--
			last := open == 0
			mu.Unlock()
			if last {
				s.complete()
			}
		}
		subs := NewComposite()
		subs.Add(a.Subscribe(Observer[A]{
			Next: func(v A) {
				mu.Lock()
				va, hasA = v, true
				emit()
			},
			Error:    s.error,
			Complete: done,
		}))
		subs.Add(b.Subscribe(Observer[B]{
			Next: func(v B) {
				mu.Lock()
				vb, hasB = v, true
				emit()
			},
			Error:    s.error,
			Complete: done,
		}))
		return subs
	})
}

func CombineLatest3[A, B, C, R any](a Observable[A], b Observable[B], c Observable[C], fn func(A, B, C) R) Observable[R] {
	type pair struct {
		a A
		b B
	}
	ab := CombineLatest2(a, b, func(x A, y B) pair { return pair{x, y} })
	return CombineLatest2(ab, c, func(p pair, z C) R { return fn(p.a, p.b, z) })
}
