package notify

import (
	"fmt"
	"runtime/debug"
)

// HandlerFault is a panic recovered from a change subscriber.
type HandlerFault struct {
	Event Event

	// Value is what the handler panicked with.
	Value any

	Stack string
}

func newHandlerFault(e Event, recovered any) *HandlerFault {
	return &HandlerFault{Event: e, Value: recovered, Stack: string(debug.Stack())}
}

func (f *HandlerFault) Error() string {
	return fmt.Sprintf("notify: %s handler for %q panicked: %v", f.Event.Phase, f.Event.PropertyName, f.Value)
}

// Unwrap returns the panic value when it was an error.
func (f *HandlerFault) Unwrap() error {
	if err, ok := f.Value.(error); ok {
		return err
	}
	return nil
}
