// Package weakevent routes classic event callbacks without keeping either the
// event source or the handler's owner alive.
//
// Handlers are registered with an owner pointer and a func that receives the
// owner as an argument. The func must not capture the owner itself (method
// expressions such as (*View).onChanged are the usual choice), otherwise the
// owner is reachable through the registry and never collected.
package weakevent

import (
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"weak"

	mapset "github.com/deckarep/golang-set/v2"
)

// PanicHandler receives the value recovered from a handler that panicked.
type PanicHandler[S, A any] func(source *S, args A, recovered any)

type entry[S, A any] struct {
	id     uint64
	owner  any // weak.Pointer[O] of the owner, nil for ownerless handlers
	alive  func() bool
	invoke func(source *S, args A) bool
	stale  atomic.Bool
}

// handlers is the ordered list of one source. While delivering is non-zero the
// slice is treated as shared and mutations clone it first.
type handlers[S, A any] struct {
	entries    []*entry[S, A]
	delivering int
	needsPurge bool
}

func (h *handlers[S, A]) mutable() []*entry[S, A] {
	if h.delivering > 0 {
		h.entries = slices.Clone(h.entries)
	}
	return h.entries
}

func (h *handlers[S, A]) purge() {
	h.entries = slices.DeleteFunc(h.mutable(), func(e *entry[S, A]) bool {
		return e.stale.Load()
	})
	h.needsPurge = false
}

type Manager[S, A any] struct {
	mu      sync.Mutex
	sources map[weak.Pointer[S]]*handlers[S, A]
	owners  map[any]mapset.Set[uint64]
	byID    map[uint64]weak.Pointer[S]
	nextID  atomic.Uint64
	onPanic PanicHandler[S, A]
}

type Option[S, A any] func(*Manager[S, A])

// WithPanicHandler recovers handler panics and reports them to fn. Without it
// a panicking handler panics through Deliver.
func WithPanicHandler[S, A any](fn PanicHandler[S, A]) Option[S, A] {
	return func(m *Manager[S, A]) {
		m.onPanic = fn
	}
}

func NewManager[S, A any](opts ...Option[S, A]) *Manager[S, A] {
	m := &Manager[S, A]{
		sources: make(map[weak.Pointer[S]]*handlers[S, A]),
		owners:  make(map[any]mapset.Set[uint64]),
		byID:    make(map[uint64]weak.Pointer[S]),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle identifies one registration.
type Handle struct {
	id     uint64
	remove func()
}

func (h Handle) ID() uint64 {
	return h.id
}

// Remove unregisters the handler. Removing twice is harmless.
func (h Handle) Remove() {
	if h.remove != nil {
		h.remove()
	}
}

// Add registers fn for events of source on behalf of owner.
func Add[S, A, O any](m *Manager[S, A], source *S, owner *O, fn func(owner *O, source *S, args A)) Handle {
	if source == nil || owner == nil || fn == nil {
		return Handle{}
	}
	ownerRef := weak.Make(owner)
	e := &entry[S, A]{
		id:    m.nextID.Add(1),
		owner: ownerRef,
		alive: func() bool { return ownerRef.Value() != nil },
		invoke: func(src *S, args A) bool {
			o := ownerRef.Value()
			if o == nil {
				return false
			}
			fn(o, src, args)
			return true
		},
	}

	m.mu.Lock()
	m.insert(source, e)
	ids, ok := m.owners[e.owner]
	if !ok {
		ids = mapset.NewThreadUnsafeSet[uint64]()
		m.owners[e.owner] = ids
		runtime.AddCleanup(owner, m.dropOwner, e.owner)
	}
	ids.Add(e.id)
	m.mu.Unlock()

	return m.handle(e.id)
}

// AddFunc registers a handler without an owner. It stays registered until it
// is removed or the source is collected.
func AddFunc[S, A any](m *Manager[S, A], source *S, fn func(source *S, args A)) Handle {
	if source == nil || fn == nil {
		return Handle{}
	}
	e := &entry[S, A]{
		id:    m.nextID.Add(1),
		alive: func() bool { return true },
		invoke: func(src *S, args A) bool {
			fn(src, args)
			return true
		},
	}
	m.mu.Lock()
	m.insert(source, e)
	m.mu.Unlock()
	return m.handle(e.id)
}

func (m *Manager[S, A]) handle(id uint64) Handle {
	return Handle{id: id, remove: func() { m.remove(id) }}
}

// insert must be called with m.mu held.
func (m *Manager[S, A]) insert(source *S, e *entry[S, A]) {
	key := weak.Make(source)
	h, ok := m.sources[key]
	if !ok {
		h = &handlers[S, A]{}
		m.sources[key] = h
		runtime.AddCleanup(source, m.dropSource, key)
	}
	h.entries = append(h.mutable(), e)
	m.byID[e.id] = key
}

// Remove unregisters the handler behind h.
func (m *Manager[S, A]) Remove(h Handle) {
	m.remove(h.id)
}

func (m *Manager[S, A]) remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.byID[id]
	if !ok {
		return
	}
	delete(m.byID, id)
	h := m.sources[key]
	if h == nil {
		return
	}
	var removed *entry[S, A]
	h.entries = slices.DeleteFunc(h.mutable(), func(e *entry[S, A]) bool {
		if e.id == id {
			removed = e
			return true
		}
		return false
	})
	if removed != nil {
		m.forgetOwner(removed)
	}
	if len(h.entries) == 0 && h.delivering == 0 {
		delete(m.sources, key)
	}
}

// RemoveOwner unregisters every handler owner registered with m.
func RemoveOwner[S, A, O any](m *Manager[S, A], owner *O) {
	if owner == nil {
		return
	}
	m.mu.Lock()
	ids, ok := m.owners[any(weak.Make(owner))]
	m.mu.Unlock()
	if !ok {
		return
	}
	for _, id := range ids.ToSlice() {
		m.remove(id)
	}
}

// forgetOwner must be called with m.mu held.
func (m *Manager[S, A]) forgetOwner(e *entry[S, A]) {
	if e.owner == nil {
		return
	}
	ids, ok := m.owners[e.owner]
	if !ok {
		return
	}
	ids.Remove(e.id)
	if ids.Cardinality() == 0 {
		delete(m.owners, e.owner)
	}
}

func (m *Manager[S, A]) dropSource(key weak.Pointer[S]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.sources[key]
	if !ok {
		return
	}
	delete(m.sources, key)
	for _, e := range h.entries {
		delete(m.byID, e.id)
		m.forgetOwner(e)
	}
}

func (m *Manager[S, A]) dropOwner(owner any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.owners[owner]
	if !ok {
		return
	}
	delete(m.owners, owner)
	for _, id := range ids.ToSlice() {
		key, ok := m.byID[id]
		if !ok {
			continue
		}
		h := m.sources[key]
		if h == nil {
			continue
		}
		for _, e := range h.entries {
			if e.id == id {
				e.stale.Store(true)
			}
		}
		h.needsPurge = true
	}
}

// Deliver invokes every live handler of source in registration order.
// Handlers whose owner or source is gone are marked stale and purged once no
// delivery for source is in flight anymore.
func (m *Manager[S, A]) Deliver(source *S, args A) {
	if source == nil {
		return
	}
	key := weak.Make(source)

	m.mu.Lock()
	h, ok := m.sources[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	snapshot := h.entries
	h.delivering++
	m.mu.Unlock()

	staleSeen := false
	defer func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		h.delivering--
		if staleSeen {
			h.needsPurge = true
		}
		if h.delivering == 0 && h.needsPurge {
			for _, e := range h.entries {
				if e.stale.Load() {
					delete(m.byID, e.id)
					m.forgetOwner(e)
				}
			}
			h.purge()
		}
	}()

	for _, e := range snapshot {
		if e.stale.Load() {
			continue
		}
		if !m.call(e, source, args) {
			e.stale.Store(true)
			staleSeen = true
		}
	}
}

func (m *Manager[S, A]) call(e *entry[S, A], source *S, args A) (alive bool) {
	if m.onPanic != nil {
		defer func() {
			if r := recover(); r != nil {
				alive = true
				m.onPanic(source, args, r)
			}
		}()
	}
	return e.invoke(source, args)
}

// Count returns how many handlers of source still have a live owner.
func (m *Manager[S, A]) Count(source *S) int {
	if source == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.sources[weak.Make(source)]
	if !ok {
		return 0
	}
	n := 0
	for _, e := range h.entries {
		if !e.stale.Load() && e.alive() {
			n++
		}
	}
	return n
}

// Purge drops every handler whose source or owner has been collected.
func (m *Manager[S, A]) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, h := range m.sources {
		sourceGone := key.Value() == nil
		for _, e := range h.entries {
			if sourceGone || !e.alive() {
				e.stale.Store(true)
			}
		}
		if h.delivering > 0 {
			h.needsPurge = true
			continue
		}
		for _, e := range h.entries {
			if e.stale.Load() {
				delete(m.byID, e.id)
				m.forgetOwner(e)
			}
		}
		h.purge()
		if len(h.entries) == 0 {
			delete(m.sources, key)
		}
	}
}

// Sources returns how many sources currently have a handler list.
func (m *Manager[S, A]) Sources() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources)
}
