// Package command runs user actions behind an observable availability gate.
//
// A Command is Idle or Executing. It can execute while it is Idle and the
// latest value of its can-execute source is true. If that source fails the
// command latches closed for good; a failing body only reports the failure.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/delaneyj/bindparty/rx"
	"github.com/google/uuid"
)

// Logger is the logging surface commands write to.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Unit is the parameter and result type of commands that have none.
type Unit struct{}

type config struct {
	canExecute rx.Observable[bool]
	scheduler  rx.Scheduler
	concurrent bool
	logger     Logger
}

type Option func(*config)

// WithCanExecute gates the command on src. The command is closed until src
// first emits.
func WithCanExecute(src rx.Observable[bool]) Option {
	return func(c *config) { c.canExecute = src }
}

// WithScheduler picks where results, faults and state changes are delivered.
func WithScheduler(s rx.Scheduler) Option {
	return func(c *config) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// AllowConcurrent lets executions overlap. CanExecute then ignores whether
// the command is already executing.
func AllowConcurrent() Option {
	return func(c *config) { c.concurrent = true }
}

func WithLogger(l Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Command executes body with a parameter of type P and publishes results of
// type R.
type Command[P, R any] struct {
	body func(ctx context.Context, p P) (R, error)
	cfg  config
	gate *gate

	executing atomic.Int32
	predicate atomic.Bool
	latched   atomic.Bool
	disposed  atomic.Bool
	lastCan   atomic.Bool
	ready     atomic.Bool

	// early holds a PredicateFault raised before New returned, until the
	// first Faults subscriber takes it.
	early atomic.Pointer[PredicateFault]

	stateMu  sync.Mutex
	pending  []state
	draining bool

	source      rx.Serial
	isExecuting *rx.BehaviorSubject[bool]
	canExecute  *rx.BehaviorSubject[bool]
	results     *rx.Subject[R]
	faults      *rx.FaultSubject
}

func New[P, R any](body func(ctx context.Context, p P) (R, error), opts ...Option) *Command[P, R] {
	cfg := config{scheduler: rx.Immediate, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Command[P, R]{
		body:        body,
		cfg:         cfg,
		isExecuting: rx.NewBehaviorSubject(false),
		results:     rx.NewSubject[R](),
		faults:      rx.NewFaultSubject(cfg.scheduler),
	}
	c.gate = &gate{id: uuid.New(), faults: c.faults}

	if cfg.canExecute == nil {
		c.predicate.Store(true)
	}
	can := c.canExecuteNow()
	c.lastCan.Store(can)
	c.canExecute = rx.NewBehaviorSubject(can)

	if cfg.canExecute != nil {
		c.source.Set(cfg.canExecute.Subscribe(rx.Observer[bool]{
			Next:  c.predicateChanged,
			Error: c.predicateFailed,
		}))
	}
	c.ready.Store(true)
	return c
}

// NewAction is New for bodies without parameter or result.
func NewAction(body func(ctx context.Context) error, opts ...Option) *Command[Unit, Unit] {
	return New(func(ctx context.Context, _ Unit) (Unit, error) {
		return Unit{}, body(ctx)
	}, opts...)
}

func (c *Command[P, R]) predicateChanged(v bool) {
	if c.latched.Load() {
		return
	}
	c.predicate.Store(v)
	c.publishState()
}

func (c *Command[P, R]) predicateFailed(err error) {
	if c.latched.Swap(true) {
		return
	}
	c.source.Unsubscribe()
	c.cfg.logger.Warn("command: can-execute source failed, command latched closed", "command", c.gate.id, "error", err)
	f := &PredicateFault{Err: err}
	if !c.ready.Load() {
		c.early.Store(f)
	} else {
		c.faults.OnNext(f)
	}
	c.publishState()
}

func (c *Command[P, R]) canExecuteNow() bool {
	if c.disposed.Load() || c.latched.Load() || !c.predicate.Load() {
		return false
	}
	return c.cfg.concurrent || c.executing.Load() == 0
}

// CanExecute reports whether Execute with p would run the body now.
func (c *Command[P, R]) CanExecute(P) bool {
	return c.canExecuteNow()
}

func (c *Command[P, R]) IsExecuting() bool {
	return c.executing.Load() > 0
}

// Executing streams the executing flag, starting with its current value.
func (c *Command[P, R]) Executing() rx.Observable[bool] {
	return rx.DistinctUntilChanged[bool](c.isExecuting)
}

// CanExecuteChanges streams availability, starting with its current value.
func (c *Command[P, R]) CanExecuteChanges() rx.Observable[bool] {
	return rx.DistinctUntilChanged[bool](c.canExecute)
}

// Results carries the result of every successful execution to the observers
// subscribed when it is published.
func (c *Command[P, R]) Results() rx.Observable[R] {
	return c.results
}

// Faults carries PredicateFault and BodyFault values. Nothing is ever
// returned to the caller of Execute. A can-execute source that failed while
// New was subscribing to it is reported to the first subscriber.
func (c *Command[P, R]) Faults() rx.Observable[error] {
	return rx.Create(func(o rx.Observer[error]) rx.Subscription {
		sub := c.faults.Subscribe(o)
		if f := c.early.Swap(nil); f != nil {
			c.faults.OnNext(f)
		}
		return sub
	})
}

type state struct {
	executing, can bool
}

// publishState snapshots the state now and delivers the snapshots in the
// order they were taken, however late the scheduler runs them.
func (c *Command[P, R]) publishState() {
	c.stateMu.Lock()
	c.pending = append(c.pending, state{executing: c.IsExecuting(), can: c.canExecuteNow()})
	c.stateMu.Unlock()
	c.cfg.scheduler.Schedule(c.drainState)
}

func (c *Command[P, R]) drainState() {
	c.stateMu.Lock()
	if c.draining {
		c.stateMu.Unlock()
		return
	}
	c.draining = true
	c.stateMu.Unlock()

	drained := false
	defer func() {
		if !drained {
			c.stateMu.Lock()
			c.draining = false
			c.stateMu.Unlock()
		}
	}()
	for {
		c.stateMu.Lock()
		if len(c.pending) == 0 {
			c.draining = false
			c.stateMu.Unlock()
			drained = true
			return
		}
		st := c.pending[0]
		c.pending = c.pending[1:]
		c.stateMu.Unlock()

		c.isExecuting.OnNext(st.executing)
		c.canExecute.OnNext(st.can)
		if c.lastCan.Swap(st.can) != st.can {
			canExecuteHandlers.Deliver(c.gate, st.can)
		}
	}
}

func (c *Command[P, R]) begin() bool {
	if c.disposed.Load() || c.latched.Load() || !c.predicate.Load() {
		return false
	}
	if c.cfg.concurrent {
		c.executing.Add(1)
	} else if !c.executing.CompareAndSwap(0, 1) {
		return false
	}
	c.publishState()
	return true
}

// Execute runs the body on the calling goroutine when the command can
// execute and reports whether it did.
func (c *Command[P, R]) Execute(ctx context.Context, p P) bool {
	if !c.begin() {
		return false
	}
	c.run(ctx, uuid.New(), p)
	return true
}

// ExecuteAsync is Execute with the body running on its own goroutine. The
// command is Executing by the time ExecuteAsync returns.
func (c *Command[P, R]) ExecuteAsync(ctx context.Context, p P) *Execution {
	e := &Execution{id: uuid.New(), done: make(chan struct{})}
	if !c.begin() {
		close(e.done)
		return e
	}
	e.started = true
	go func() {
		defer close(e.done)
		c.run(ctx, e.id, p)
	}()
	return e
}

func (c *Command[P, R]) run(ctx context.Context, id uuid.UUID, p P) {
	c.cfg.logger.Debug("command: executing", "command", c.gate.id, "execution", id)
	defer c.finish(id)
	defer func() {
		if r := recover(); r != nil {
			c.fail(&BodyFault{ExecutionID: id, Err: ErrBodyPanic, Value: r, Stack: string(debug.Stack())})
		}
	}()

	r, err := c.body(ctx, p)
	if err != nil {
		c.fail(&BodyFault{ExecutionID: id, Err: err})
		return
	}
	c.cfg.scheduler.Schedule(func() { c.results.OnNext(r) })
}

func (c *Command[P, R]) fail(f *BodyFault) {
	c.cfg.logger.Error("command: execution failed", "command", c.gate.id, "execution", f.ExecutionID, "error", f)
	c.faults.OnNext(f)
}

func (c *Command[P, R]) finish(id uuid.UUID) {
	c.executing.Add(-1)
	c.cfg.logger.Debug("command: finished", "command", c.gate.id, "execution", id)
	c.publishState()
}

// Dispose closes the command for good and completes Results. Executions in
// flight run to completion.
func (c *Command[P, R]) Dispose() {
	if c.disposed.Swap(true) {
		return
	}
	c.source.Unsubscribe()
	c.publishState()
	c.cfg.scheduler.Schedule(c.results.OnCompleted)
}

// Execution tracks one ExecuteAsync call.
type Execution struct {
	id      uuid.UUID
	started bool
	done    chan struct{}
}

func (e *Execution) ID() uuid.UUID {
	return e.id
}

// Started reports whether the body was run at all.
func (e *Execution) Started() bool {
	return e.started
}

// Done is closed when the body has returned, or right away when it never
// started.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the body has returned or ctx is done.
func (e *Execution) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for execution %s: %w", e.id, ctx.Err())
	}
}

// Invoke executes c with every value of src the command can accept at the
// time it arrives.
func Invoke[P, R any](ctx context.Context, src rx.Observable[P], c *Command[P, R]) rx.Subscription {
	return rx.Subscribe(src, func(p P) {
		if c.CanExecute(p) {
			c.Execute(ctx, p)
		}
	})
}
