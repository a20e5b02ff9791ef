// Package notify turns property mutations into Before/After change events.
//
// Every subject owns exactly one Tracker. Types embed Object to get one;
// foreign types get a side-table Tracker from Attach that lives exactly as long
// as the value it is attached to.
package notify

import (
	"sync"
	"sync/atomic"

	"github.com/delaneyj/bindparty/rx"
	"github.com/delaneyj/bindparty/weakevent"
)

type Phase uint8

const (
	Before Phase = iota
	After
)

func (p Phase) String() string {
	switch p {
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Event is one property change announcement.
type Event struct {
	Sender       any    `json:"-"`
	PropertyName string `json:"property"`
	Phase        Phase  `json:"phase"`
}

var (
	changingHandlers = weakevent.NewManager[Tracker, Event](
		weakevent.WithPanicHandler[Tracker, Event](reportHandlerPanic),
	)
	changedHandlers = weakevent.NewManager[Tracker, Event](
		weakevent.WithPanicHandler[Tracker, Event](reportHandlerPanic),
	)
)

func handlersFor(p Phase) *weakevent.Manager[Tracker, Event] {
	if p == Before {
		return changingHandlers
	}
	return changedHandlers
}

func reportHandlerPanic(t *Tracker, e Event, recovered any) {
	t.faults.OnNext(newHandlerFault(e, recovered))
}

type schedulerBox struct {
	s rx.Scheduler
}

// Tracker is the change tracking state of one subject.
type Tracker struct {
	changing *rx.Subject[Event]
	changed  *rx.Subject[Event]
	faults   *rx.FaultSubject

	scheduler atomic.Pointer[schedulerBox]

	suppressed atomic.Int32
	delayed    atomic.Int32

	mu      sync.Mutex
	pending [2][]Event
}

func newTracker() *Tracker {
	t := &Tracker{
		changing: rx.NewSubject[Event](),
		changed:  rx.NewSubject[Event](),
		faults:   rx.NewFaultSubject(rx.Immediate),
	}
	t.scheduler.Store(&schedulerBox{s: rx.Immediate})
	return t
}

func (t *Tracker) subject(p Phase) *rx.Subject[Event] {
	if p == Before {
		return t.changing
	}
	return t.changed
}

// SetScheduler picks where this subject's deliveries run. The default is
// rx.Immediate.
func (t *Tracker) SetScheduler(s rx.Scheduler) {
	if s == nil {
		s = rx.Immediate
	}
	t.scheduler.Store(&schedulerBox{s: s})
}

func (t *Tracker) Changing() rx.Observable[Event] {
	return t.recovering(t.changing)
}

func (t *Tracker) Changed() rx.Observable[Event] {
	return t.recovering(t.changed)
}

// recovering subscribes to s with a recover around each observer, so a
// panicking subscriber becomes a fault and the rest still get the event.
func (t *Tracker) recovering(s *rx.Subject[Event]) rx.Observable[Event] {
	return rx.Create(func(o rx.Observer[Event]) rx.Subscription {
		if next := o.Next; next != nil {
			o.Next = func(e Event) {
				defer func() {
					if r := recover(); r != nil {
						t.faults.OnNext(newHandlerFault(e, r))
					}
				}()
				next(e)
			}
		}
		return s.Subscribe(o)
	})
}

// Faults carries the panics recovered from change subscribers.
func (t *Tracker) Faults() rx.Observable[error] {
	return t.faults
}

// Enabled reports whether notifications are currently emitted at all.
func (t *Tracker) Enabled() bool {
	return t.suppressed.Load() == 0
}

// Delayed reports whether notifications are currently being batched.
func (t *Tracker) Delayed() bool {
	return t.delayed.Load() > 0
}

// Raise announces a change of name on behalf of sender.
func (t *Tracker) Raise(sender any, name string, phase Phase) {
	if t.suppressed.Load() > 0 {
		return
	}
	e := Event{Sender: sender, PropertyName: name, Phase: phase}
	if t.delayed.Load() > 0 {
		t.mu.Lock()
		if t.delayed.Load() > 0 {
			t.pending[phase] = append(t.pending[phase], e)
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()
	}
	t.deliver(e)
}

func (t *Tracker) deliver(e Event) {
	t.scheduler.Load().s.Schedule(func() {
		handlersFor(e.Phase).Deliver(t, e)
		t.subject(e.Phase).OnNext(e)
	})
}

// Guard ends a Suppress or Delay scope. Release is idempotent.
type Guard struct {
	once    sync.Once
	release func()
}

func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.once.Do(g.release)
}

// Suppress silences every notification until the guard is released. Field
// mutations keep happening, they are just not announced.
func (t *Tracker) Suppress() *Guard {
	t.suppressed.Add(1)
	return &Guard{release: func() { t.suppressed.Add(-1) }}
}

// Delay batches notifications until the last outstanding guard is released.
// The batch then holds only the latest event per property name, in the order
// each name was first raised, Before events ahead of After events.
func (t *Tracker) Delay() *Guard {
	t.mu.Lock()
	t.delayed.Add(1)
	t.mu.Unlock()
	return &Guard{release: t.endDelay}
}

func (t *Tracker) endDelay() {
	t.mu.Lock()
	if t.delayed.Add(-1) != 0 {
		t.mu.Unlock()
		return
	}
	batches := t.pending
	t.pending = [2][]Event{}
	t.mu.Unlock()

	for _, batch := range batches {
		for _, e := range distinctByName(batch) {
			t.deliver(e)
		}
	}
}

func distinctByName(events []Event) []Event {
	if len(events) < 2 {
		return events
	}
	index := make(map[string]int, len(events))
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if i, ok := index[e.PropertyName]; ok {
			out[i] = e
			continue
		}
		index[e.PropertyName] = len(out)
		out = append(out, e)
	}
	return out
}
