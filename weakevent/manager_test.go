package weakevent_test

import (
	"runtime"
	"testing"
	"weak"

	"github.com/delaneyj/bindparty/weakevent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type button struct {
	name string
	next *button
}

type view struct {
	label string
	hits  *[]string
	pad   [4]int64
}

func (v *view) onClick(_ *button, args string) {
	*v.hits = append(*v.hits, v.label+":"+args)
}

func collectGarbage() {
	for i := 0; i < 3; i++ {
		runtime.GC()
	}
}

func TestDeliverInRegistrationOrder(t *testing.T) {
	m := weakevent.NewManager[button, string]()
	src := &button{name: "ok"}
	var hits []string
	a := &view{label: "a", hits: &hits}
	b := &view{label: "b", hits: &hits}

	weakevent.Add(m, src, a, (*view).onClick)
	hb := weakevent.Add(m, src, b, (*view).onClick)
	assert.Equal(t, 2, m.Count(src))

	m.Deliver(src, "1")
	hb.Remove()
	hb.Remove()
	m.Deliver(src, "2")

	assert.Equal(t, []string{"a:1", "b:1", "a:2"}, hits)
	assert.Equal(t, 1, m.Count(src))
	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
}

func TestDeliverToUnknownSourceIsNoop(t *testing.T) {
	m := weakevent.NewManager[button, string]()
	assert.NotPanics(t, func() {
		m.Deliver(&button{}, "x")
		m.Deliver(nil, "x")
	})
}

func TestMutationDuringDeliveryDoesNotAffectInFlight(t *testing.T) {
	m := weakevent.NewManager[button, string]()
	src := &button{}
	var order []string
	var late weakevent.Handle

	first := weakevent.AddFunc(m, src, func(_ *button, args string) {
		order = append(order, "first:"+args)
		if args == "1" {
			late = weakevent.AddFunc(m, src, func(_ *button, args string) {
				order = append(order, "late:"+args)
			})
		}
	})
	second := weakevent.AddFunc(m, src, func(_ *button, args string) {
		order = append(order, "second:"+args)
	})
	_ = weakevent.AddFunc(m, src, func(_ *button, args string) {
		if args == "1" {
			second.Remove()
		}
	})

	m.Deliver(src, "1")
	m.Deliver(src, "2")
	first.Remove()
	late.Remove()

	assert.Equal(t, []string{"first:1", "second:1", "first:2", "late:2"}, order)
	assert.Equal(t, 1, m.Count(src))
}

func registerShortLived(m *weakevent.Manager[button, string], src *button, hits *[]string) weak.Pointer[view] {
	v := &view{label: "gone", hits: hits}
	weakevent.Add(m, src, v, (*view).onClick)
	return weak.Make(v)
}

func TestCollectedOwnerIsSkippedAndPurged(t *testing.T) {
	m := weakevent.NewManager[button, string]()
	src := &button{}
	var hits []string
	keep := &view{label: "kept", hits: &hits}
	weakevent.Add(m, src, keep, (*view).onClick)
	ref := registerShortLived(m, src, &hits)

	collectGarbage()
	require.Nil(t, ref.Value())

	assert.NotPanics(t, func() { m.Deliver(src, "x") })
	assert.Equal(t, []string{"kept:x"}, hits)
	assert.Equal(t, 1, m.Count(src))

	m.Purge()
	m.Deliver(src, "y")
	assert.Equal(t, []string{"kept:x", "kept:y"}, hits)
	runtime.KeepAlive(keep)
}

func TestRegistrationDoesNotKeepSourceAlive(t *testing.T) {
	m := weakevent.NewManager[button, string]()
	var hits []string
	owner := &view{hits: &hits}
	ref := func() weak.Pointer[button] {
		src := &button{name: "temp"}
		weakevent.Add(m, src, owner, (*view).onClick)
		return weak.Make(src)
	}()

	collectGarbage()
	assert.Nil(t, ref.Value())
	m.Purge()
	assert.Equal(t, 0, m.Sources())
	runtime.KeepAlive(owner)
}

func TestRemoveOwner(t *testing.T) {
	m := weakevent.NewManager[button, string]()
	a, b := &button{}, &button{}
	var hits []string
	v := &view{label: "v", hits: &hits}
	weakevent.Add(m, a, v, (*view).onClick)
	weakevent.Add(m, b, v, (*view).onClick)

	weakevent.RemoveOwner(m, v)
	m.Deliver(a, "1")
	m.Deliver(b, "1")
	assert.Empty(t, hits)
	assert.Equal(t, 0, m.Sources())
}

func TestPanicHandlerKeepsDelivering(t *testing.T) {
	var recovered []any
	m := weakevent.NewManager[button, string](weakevent.WithPanicHandler[button, string](func(_ *button, _ string, r any) {
		recovered = append(recovered, r)
	}))
	src := &button{}
	calls := 0
	weakevent.AddFunc(m, src, func(*button, string) { panic("bad handler") })
	weakevent.AddFunc(m, src, func(*button, string) { calls++ })

	m.Deliver(src, "x")
	assert.Equal(t, []any{"bad handler"}, recovered)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, m.Count(src))
}

func TestPanicWithoutHandlerPropagates(t *testing.T) {
	m := weakevent.NewManager[button, string]()
	src := &button{}
	weakevent.AddFunc(m, src, func(*button, string) { panic("loud") })
	assert.PanicsWithValue(t, "loud", func() { m.Deliver(src, "x") })

	// the in-flight counter was released, so mutations no longer clone
	weakevent.AddFunc(m, src, func(*button, string) {})
	assert.Equal(t, 2, m.Count(src))
}
