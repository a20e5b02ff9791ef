package chain

import (
	"reflect"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/delaneyj/bindparty/notify"
	"github.com/delaneyj/bindparty/rx"
)

// ChangeSource knows how to watch one property of some kind of owner. The
// source with the highest Affinity for an owner type wins; zero or less
// means it cannot serve that owner at all.
type ChangeSource interface {
	Affinity(t reflect.Type, property string, before bool) int
	Changes(owner any, property string, before bool) rx.Observable[struct{}]
}

// ChangedNotifier is the minimal capability of a type that only announces
// completed changes.
type ChangedNotifier interface {
	OnPropertyChanged(fn func(name string)) (cancel func())
}

var (
	notifierType        = typeOf[notify.Notifier]()
	changedNotifierType = typeOf[ChangedNotifier]()
)

type notifierSource struct{}

func (notifierSource) Affinity(t reflect.Type, _ string, _ bool) int {
	if t.Implements(notifierType) {
		return 10
	}
	return 0
}

func (notifierSource) Changes(owner any, property string, before bool) rx.Observable[struct{}] {
	n, ok := notify.Lookup(owner)
	if !ok {
		return rx.Never[struct{}]()
	}
	events := notify.Changed(n)
	if before {
		events = notify.Changing(n)
	}
	return rx.Map(notify.Property(events, property), func(notify.Event) struct{} { return struct{}{} })
}

type changedSource struct{}

func (changedSource) Affinity(t reflect.Type, _ string, before bool) int {
	if before || !t.Implements(changedNotifierType) {
		return 0
	}
	return 5
}

func (changedSource) Changes(owner any, property string, _ bool) rx.Observable[struct{}] {
	n := owner.(ChangedNotifier)
	return rx.Create(func(o rx.Observer[struct{}]) rx.Subscription {
		return rx.NewSubscription(n.OnPropertyChanged(func(name string) {
			if name == property && o.Next != nil {
				o.Next(struct{}{})
			}
		}))
	})
}

// pocoSource serves owners with no notification capability: the current
// value is read once and never again.
type pocoSource struct{}

func (pocoSource) Affinity(reflect.Type, string, bool) int {
	return 1
}

func (pocoSource) Changes(any, string, bool) rx.Observable[struct{}] {
	return rx.Never[struct{}]()
}

var fallback ChangeSource = pocoSource{}

type cached struct {
	t        reflect.Type
	property string
	before   bool
	src      ChangeSource
}

type registry struct {
	mu      sync.RWMutex
	sources []ChangeSource
	cache   sync.Map // uint64 -> cached
}

var sources = &registry{sources: []ChangeSource{notifierSource{}, changedSource{}, fallback}}

// Register adds src to the sources competing for every owner type.
func Register(src ChangeSource) {
	sources.mu.Lock()
	sources.sources = append(sources.sources, src)
	sources.mu.Unlock()
	sources.cache.Clear()
}

func affinityKey(t reflect.Type, property string, before bool) uint64 {
	d := xxhash.New()
	d.WriteString(t.String())
	d.WriteString(t.PkgPath())
	d.Write([]byte{0})
	d.WriteString(property)
	if before {
		d.Write([]byte{1})
	}
	return d.Sum64()
}

func (r *registry) resolve(t reflect.Type, property string, before bool) ChangeSource {
	key := affinityKey(t, property, before)
	if v, ok := r.cache.Load(key); ok {
		c := v.(cached)
		if c.t == t && c.property == property && c.before == before {
			return c.src
		}
	}

	r.mu.RLock()
	best, bestScore := fallback, 0
	for _, src := range r.sources {
		if score := src.Affinity(t, property, before); score > bestScore {
			best, bestScore = src, score
		}
	}
	r.mu.RUnlock()

	r.cache.LoadOrStore(key, cached{t: t, property: property, before: before, src: best})
	return best
}

// forOwner is resolve for one owner value. Owners whose type has nothing
// better than the read-once fallback are still served by their tracker when
// notify.Attach gave them one.
func (r *registry) forOwner(owner any, property string, before bool) ChangeSource {
	src := r.resolve(reflect.TypeOf(owner), property, before)
	if src == fallback {
		if _, ok := notify.Lookup(owner); ok {
			return notifierSource{}
		}
	}
	return src
}
