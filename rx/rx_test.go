package rx_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/delaneyj/bindparty/rx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect[T any](src rx.Observable[T]) (*[]T, rx.Subscription) {
	got := &[]T{}
	sub := rx.Subscribe(src, func(v T) { *got = append(*got, v) })
	return got, sub
}

func TestSubjectMulticast(t *testing.T) {
	s := rx.NewSubject[int]()
	a, subA := collect[int](s)
	b, _ := collect[int](s)
	assert.Equal(t, 2, s.Count())

	s.OnNext(1)
	subA.Unsubscribe()
	subA.Unsubscribe()
	s.OnNext(2)

	assert.Equal(t, []int{1}, *a)
	assert.Equal(t, []int{1, 2}, *b)
	assert.Equal(t, 1, s.Count())
}

func TestSubjectTerminal(t *testing.T) {
	s := rx.NewSubject[int]()
	var gotErr error
	s.Subscribe(rx.Observer[int]{Error: func(err error) { gotErr = err }})

	boom := errors.New("boom")
	s.OnError(boom)
	s.OnNext(1)
	assert.ErrorIs(t, gotErr, boom)
	assert.False(t, s.HasObservers())

	var late error
	s.Subscribe(rx.Observer[int]{Error: func(err error) { late = err }})
	assert.ErrorIs(t, late, boom)
}

func TestBehaviorSubjectReplaysCurrent(t *testing.T) {
	b := rx.NewBehaviorSubject("a")
	assert.Equal(t, "a", b.Value())
	b.OnNext("b")

	got, _ := collect[string](b)
	b.OnNext("c")
	assert.Equal(t, []string{"b", "c"}, *got)
	assert.Equal(t, "c", b.Value())
}

func TestOperators(t *testing.T) {
	t.Run("map filter skip", func(t *testing.T) {
		src := rx.Just(1, 2, 3, 4, 5, 6)
		even := rx.Filter(src, func(v int) bool { return v%2 == 0 })
		doubled := rx.Map(even, func(v int) int { return v * 2 })
		got, _ := collect(rx.Skip(doubled, 1))
		assert.Equal(t, []int{8, 12}, *got)
	})

	t.Run("distinct", func(t *testing.T) {
		got, _ := collect(rx.DistinctUntilChanged(rx.Just(1, 1, 2, 2, 1)))
		assert.Equal(t, []int{1, 2, 1}, *got)
	})

	t.Run("distinct slices", func(t *testing.T) {
		got, _ := collect(rx.DistinctUntilChanged(rx.Just([]int{1}, []int{1}, []int{2})))
		assert.Len(t, *got, 2)
	})

	t.Run("start with", func(t *testing.T) {
		got, _ := collect(rx.StartWith(rx.Just(3), 1, 2))
		assert.Equal(t, []int{1, 2, 3}, *got)
	})

	t.Run("merge", func(t *testing.T) {
		completed := false
		var got []int
		rx.Merge(rx.Just(1), rx.Just(2)).Subscribe(rx.Observer[int]{
			Next:     func(v int) { got = append(got, v) },
			Complete: func() { completed = true },
		})
		assert.Equal(t, []int{1, 2}, got)
		assert.True(t, completed)
	})

	t.Run("combine latest", func(t *testing.T) {
		a := rx.NewSubject[int]()
		b := rx.NewSubject[string]()
		got, _ := collect(rx.CombineLatest2(a, b, func(x int, y string) string {
			return y + string(rune('0'+x))
		}))
		a.OnNext(1)
		assert.Empty(t, *got)
		b.OnNext("x")
		a.OnNext(2)
		assert.Equal(t, []string{"x1", "x2"}, *got)
	})
}

func TestSwitchReleasesPreviousInner(t *testing.T) {
	outer := rx.NewSubject[*rx.Subject[int]]()
	first := rx.NewSubject[int]()
	second := rx.NewSubject[int]()

	switched := rx.Switch(rx.Map[*rx.Subject[int], rx.Observable[int]](outer, func(s *rx.Subject[int]) rx.Observable[int] { return s }))
	got, sub := collect(switched)

	outer.OnNext(first)
	first.OnNext(1)
	outer.OnNext(second)
	assert.False(t, first.HasObservers())
	first.OnNext(99)
	second.OnNext(2)
	assert.Equal(t, []int{1, 2}, *got)

	sub.Unsubscribe()
	assert.False(t, second.HasObservers())
	assert.False(t, outer.HasObservers())
}

func TestFaultSubjectFallsThroughWhenUnobserved(t *testing.T) {
	var sunk []error
	restore := rx.SetUnhandledErrorHandler(func(err error) { sunk = append(sunk, err) })
	defer restore()

	f := rx.NewFaultSubject(rx.Immediate)
	boom := errors.New("boom")
	f.OnNext(boom)
	require.Len(t, sunk, 1)
	assert.ErrorIs(t, sunk[0], boom)

	var seen []error
	sub := rx.Subscribe[error](f, func(err error) { seen = append(seen, err) })
	f.OnNext(boom)
	assert.Len(t, seen, 1)
	assert.Len(t, sunk, 1)
	sub.Unsubscribe()
}

func TestDefaultSinkPanicsOnMainThread(t *testing.T) {
	main := rx.NewManualScheduler()
	restore := rx.SetMainThread(main)
	defer restore()

	rx.ReportUnhandled(errors.New("lost"))
	require.Equal(t, 1, main.Pending())
	assert.PanicsWithError(t, "rx: unhandled error: lost", func() { main.Flush() })
}

func TestObserverWithoutErrorFuncReportsUnhandled(t *testing.T) {
	var sunk error
	restore := rx.SetUnhandledErrorHandler(func(err error) { sunk = err })
	defer restore()

	rx.Subscribe(rx.Throw[int](errors.New("nobody")), func(int) {})
	assert.EqualError(t, sunk, "nobody")
}

func TestObserveOnManual(t *testing.T) {
	m := rx.NewManualScheduler()
	got, _ := collect(rx.ObserveOn(rx.Just(1, 2), m))
	assert.Empty(t, *got)
	assert.Equal(t, 3, m.Flush())
	assert.Equal(t, []int{1, 2}, *got)
}

func TestEventLoopRunsInOrder(t *testing.T) {
	loop := rx.NewEventLoop(4)
	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 10; i++ {
		loop.Schedule(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, loop.Stop(ctx))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	assert.ErrorIs(t, loop.Stop(ctx), rx.ErrLoopStopped)
}

func TestEqual(t *testing.T) {
	type withIface struct{ v any }
	assert.True(t, rx.Equal(1, 1))
	assert.False(t, rx.Equal[any](1, "1"))
	assert.True(t, rx.Equal[any](nil, nil))
	assert.True(t, rx.Equal(withIface{[]int{1}}, withIface{[]int{1}}))
	p := &withIface{}
	assert.True(t, rx.Equal(p, p))
	assert.False(t, rx.Equal(p, &withIface{}))
}
