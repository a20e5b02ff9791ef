package notify_test

import (
	"errors"
	"runtime"
	"sync"
	"testing"
	"weak"

	"github.com/delaneyj/bindparty/notify"
	"github.com/delaneyj/bindparty/rx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	notify.Object
	name string
	age  int
	tags []string
}

func (p *person) SetName(v string) { notify.RaiseAndSetIfChanged(p, &p.name, v, "Name") }
func (p *person) SetAge(v int)     { notify.RaiseAndSetIfChanged(p, &p.age, v, "Age") }
func (p *person) SetTags(v []string) {
	notify.SetIfChanged(p, &p.tags, v, "Tags", nil)
}

func record(src rx.Observable[notify.Event]) *[]string {
	var got []string
	rx.Subscribe(src, func(e notify.Event) {
		got = append(got, e.Phase.String()+":"+e.PropertyName)
	})
	return &got
}

func TestRaiseAndSetIfChanged(t *testing.T) {
	p := &person{}
	var all []string
	rx.Subscribe(rx.Merge(p.Changing(), p.Changed()), func(e notify.Event) {
		all = append(all, e.Phase.String()+":"+e.PropertyName)
		assert.Same(t, p, e.Sender)
	})

	p.SetName("ada")
	p.SetName("ada")
	p.SetAge(36)

	assert.Equal(t, []string{"before:Name", "after:Name", "before:Age", "after:Age"}, all)
	assert.Equal(t, "ada", p.name)
}

func TestSetIfChangedDeepEqual(t *testing.T) {
	p := &person{}
	got := record(p.Changed())
	p.SetTags([]string{"a"})
	p.SetTags([]string{"a"})
	p.SetTags([]string{"a", "b"})
	assert.Equal(t, []string{"after:Tags", "after:Tags"}, *got)
}

func TestSuppress(t *testing.T) {
	p := &person{}
	got := record(p.Changed())

	g := p.SuppressChangeNotifications()
	assert.False(t, p.AreChangeNotificationsEnabled())
	p.SetName("a")
	p.SetAge(1)
	p.SetName("b")
	assert.Empty(t, *got)
	g.Release()
	g.Release()

	assert.True(t, p.AreChangeNotificationsEnabled())
	assert.Equal(t, "b", p.name)
	assert.Equal(t, 1, p.age)

	p.SetAge(2)
	assert.Equal(t, []string{"after:Age"}, *got)
}

func TestDelayDedupesInFirstSeenOrder(t *testing.T) {
	p := &person{}
	got := record(p.Changed())
	before := record(p.Changing())

	outer := notify.Delay(p)
	inner := notify.Delay(p)
	p.SetName("a")
	p.SetAge(1)
	p.SetName("b")
	assert.True(t, notify.Delayed(p))

	inner.Release()
	assert.Empty(t, *got)
	outer.Release()

	assert.False(t, notify.Delayed(p))
	assert.Equal(t, []string{"after:Name", "after:Age"}, *got)
	assert.Equal(t, []string{"before:Name", "before:Age"}, *before)
}

func TestDelayKeepsLatestEvent(t *testing.T) {
	p := &person{}
	var senders []any
	rx.Subscribe(p.Changed(), func(e notify.Event) { senders = append(senders, e.Sender) })

	tr := p.ChangeTracker()
	g := tr.Delay()
	tr.Raise("first", "Name", notify.After)
	tr.Raise("other", "Age", notify.After)
	tr.Raise("second", "Name", notify.After)
	g.Release()

	assert.Equal(t, []any{"second", "other"}, senders)
}

func TestSuppressInsideDelayDropsEvents(t *testing.T) {
	p := &person{}
	got := record(p.Changed())
	d := p.DelayChangeNotifications()
	s := p.SuppressChangeNotifications()
	p.SetName("hidden")
	s.Release()
	p.SetAge(3)
	d.Release()
	assert.Equal(t, []string{"after:Age"}, *got)
}

func TestHandlerPanicGoesToFaults(t *testing.T) {
	p := &person{}
	var faults []error
	rx.Subscribe(p.ThrownExceptions(), func(err error) { faults = append(faults, err) })

	boom := errors.New("binding broke")
	rx.Subscribe(p.Changed(), func(notify.Event) { panic(boom) })

	assert.NotPanics(t, func() { p.SetName("x") })
	require.Len(t, faults, 1)

	var hf *notify.HandlerFault
	require.ErrorAs(t, faults[0], &hf)
	assert.Equal(t, "Name", hf.Event.PropertyName)
	assert.Equal(t, notify.After, hf.Event.Phase)
	assert.ErrorIs(t, faults[0], boom)
	assert.NotEmpty(t, hf.Stack)
	assert.Equal(t, "x", p.name)
}

func TestPanickingSubscriberDoesNotStarveOthers(t *testing.T) {
	p := &person{}
	var faults []error
	rx.Subscribe(p.ThrownExceptions(), func(err error) { faults = append(faults, err) })

	rx.Subscribe(p.Changed(), func(notify.Event) { panic("first") })
	got := record(p.Changed())

	p.SetName("x")
	p.SetName("y")
	assert.Equal(t, []string{"after:Name", "after:Name"}, *got)
	assert.Len(t, faults, 2)
}

func TestRaiseAndSetIfChangedInterfaceHoldingSlice(t *testing.T) {
	p := &person{}
	got := record(p.Changed())
	var field any = []int{1}
	assert.NotPanics(t, func() {
		notify.RaiseAndSetIfChanged(p, &field, any([]int{1}), "Field")
		notify.RaiseAndSetIfChanged(p, &field, any([]int{2}), "Field")
	})
	assert.Equal(t, []string{"after:Field"}, *got)
	assert.Equal(t, []int{2}, field)
}

func TestUnobservedFaultReachesDefaultSink(t *testing.T) {
	var sunk []error
	restore := rx.SetUnhandledErrorHandler(func(err error) { sunk = append(sunk, err) })
	defer restore()

	p := &person{}
	rx.Subscribe(p.Changing(), func(notify.Event) { panic("nope") })
	p.SetAge(9)

	require.Len(t, sunk, 1)
	assert.Contains(t, sunk[0].Error(), `before handler for "Age" panicked: nope`)
}

type listener struct {
	seen *[]string
	pad  *int
}

func (l *listener) onChanged(e notify.Event) {
	*l.seen = append(*l.seen, e.PropertyName)
}

func TestClassicHandlers(t *testing.T) {
	p := &person{}
	var seen []string
	l := &listener{seen: &seen}
	h := notify.AddChangedHandler(p, l, (*listener).onChanged)
	notify.AddChangingHandler(p, l, func(l *listener, e notify.Event) {
		*l.seen = append(*l.seen, "~"+e.PropertyName)
	})

	p.SetName("n")
	h.Remove()
	p.SetAge(1)
	assert.Equal(t, []string{"~Name", "Name", "~Age"}, seen)
	runtime.KeepAlive(l)
}

func TestClassicHandlerPanicIsCaptured(t *testing.T) {
	p := &person{}
	var faults []error
	rx.Subscribe(notify.Faults(p), func(err error) { faults = append(faults, err) })
	l := &listener{}
	notify.AddChangedHandler(p, l, func(*listener, notify.Event) { panic("classic") })

	assert.NotPanics(t, func() { p.SetName("z") })
	assert.Len(t, faults, 1)
	runtime.KeepAlive(l)
}

func TestClassicHandlerOfCollectedOwnerIsSkipped(t *testing.T) {
	p := &person{}
	var seen []string
	ref := func() weak.Pointer[listener] {
		l := &listener{seen: &seen}
		notify.AddChangedHandler(p, l, (*listener).onChanged)
		return weak.Make(l)
	}()
	for i := 0; i < 3; i++ {
		runtime.GC()
	}
	require.Nil(t, ref.Value())

	assert.NotPanics(t, func() { p.SetName("after gc") })
	assert.Empty(t, seen)
}

type plain struct {
	Title string
	next  *plain
}

func TestAttachSideTable(t *testing.T) {
	v := &plain{}
	n := notify.Attach(v)
	assert.Same(t, n, notify.Attach(v))

	var senders []any
	rx.Subscribe(notify.Changed(n), func(e notify.Event) { senders = append(senders, e.Sender) })
	notify.RaiseAndSetIfChanged(n, &v.Title, "hello", "Title")

	require.Len(t, senders, 1)
	assert.Same(t, v, senders[0])

	p := &person{}
	assert.Same(t, notify.Notifier(p), notify.Attach(p))

	found, ok := notify.Lookup(v)
	require.True(t, ok)
	assert.Same(t, n, found)
	_, ok = notify.Lookup(&plain{})
	assert.False(t, ok)
	_, ok = notify.Lookup(42)
	assert.False(t, ok)
	runtime.KeepAlive(v)
}

func TestSchedulerDefersDelivery(t *testing.T) {
	p := &person{}
	m := rx.NewManualScheduler()
	notify.SetScheduler(p, m)
	got := record(p.Changed())

	p.SetName("later")
	assert.Empty(t, *got)
	m.Flush()
	assert.Equal(t, []string{"after:Name"}, *got)
}

func TestPropertyFilter(t *testing.T) {
	p := &person{}
	got := record(notify.Property(notify.Changed(p), "Age"))
	p.SetName("a")
	p.SetAge(4)
	assert.Equal(t, []string{"after:Age"}, *got)
}

func TestConcurrentGuards(t *testing.T) {
	p := &person{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			notify.Suppress(p).Release()
			notify.Delay(p).Release()
		}()
	}
	wg.Wait()
	assert.True(t, notify.Enabled(p))
	assert.False(t, notify.Delayed(p))
}
