package rx

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Scheduler is the execution context deliveries run on.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a plain function to Scheduler.
type SchedulerFunc func(fn func())

func (f SchedulerFunc) Schedule(fn func()) {
	f(fn)
}

type immediate struct{}

func (immediate) Schedule(fn func()) {
	fn()
}

// Immediate runs work inline on the calling goroutine.
var Immediate Scheduler = immediate{}

type schedulerBox struct {
	s Scheduler
}

var mainThread atomic.Pointer[schedulerBox]

func init() {
	mainThread.Store(&schedulerBox{s: Immediate})
}

// MainThread returns the designated main execution context. It is Immediate
// until SetMainThread installs something else, typically a UI loop.
func MainThread() Scheduler {
	return mainThread.Load().s
}

// SetMainThread installs s as the main execution context and returns a func
// restoring the previous one.
func SetMainThread(s Scheduler) (restore func()) {
	if s == nil {
		s = Immediate
	}
	prev := mainThread.Swap(&schedulerBox{s: s})
	return func() { mainThread.Store(prev) }
}

var ErrLoopStopped = errors.New("event loop is stopped")

// EventLoop runs scheduled work one item at a time on its own goroutine.
// A panic in scheduled work is not recovered and takes the process down.
type EventLoop struct {
	queue   chan func()
	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

func NewEventLoop(queueSize int) *EventLoop {
	if queueSize <= 0 {
		queueSize = 1024
	}
	l := &EventLoop{
		queue: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *EventLoop) run() {
	defer close(l.done)
	for fn := range l.queue {
		fn()
	}
}

// Schedule enqueues fn, blocking while the queue is full. Work scheduled after
// Stop is discarded.
func (l *EventLoop) Schedule(fn func()) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.stopped {
		return
	}
	l.queue <- fn
}

// Stop drains the queued work and waits for the loop goroutine to exit.
func (l *EventLoop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrLoopStopped
	}
	l.stopped = true
	close(l.queue)
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ManualScheduler queues work until Flush is called. Tests use it to decide
// exactly when deliveries happen.
type ManualScheduler struct {
	mu    sync.Mutex
	queue []func()
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) Schedule(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Flush runs queued work, including work queued while flushing, and returns
// how many items ran.
func (m *ManualScheduler) Flush() int {
	ran := 0
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return ran
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		fn()
		ran++
	}
}
