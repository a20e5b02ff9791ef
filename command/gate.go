package command

import (
	"fmt"

	"github.com/delaneyj/bindparty/rx"
	"github.com/delaneyj/bindparty/weakevent"
	"github.com/google/uuid"
)

// gate is the untyped identity of a command that classic handlers are
// registered against.
type gate struct {
	id     uuid.UUID
	faults *rx.FaultSubject
}

var canExecuteHandlers = weakevent.NewManager[gate, bool](
	weakevent.WithPanicHandler[gate, bool](func(g *gate, can bool, recovered any) {
		g.faults.OnNext(fmt.Errorf("command: can-execute handler panicked (can=%t): %v", can, recovered))
	}),
)

// Gated is implemented by every Command regardless of its type parameters.
type Gated interface {
	gated() *gate
}

func (c *Command[P, R]) gated() *gate {
	return c.gate
}

// AddCanExecuteChangedHandler calls fn whenever the availability of c flips.
// Neither c nor owner is kept alive by the registration.
func AddCanExecuteChangedHandler[O any](c Gated, owner *O, fn func(owner *O, can bool)) weakevent.Handle {
	return weakevent.Add(canExecuteHandlers, c.gated(), owner, func(o *O, _ *gate, can bool) {
		fn(o, can)
	})
}
