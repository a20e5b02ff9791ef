package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/delaneyj/bindparty/chain"
	"github.com/delaneyj/bindparty/command"
	"github.com/delaneyj/bindparty/derived"
	"github.com/delaneyj/bindparty/notify"
	"github.com/delaneyj/bindparty/rx"
)

// bench is one prepared w*h graph. step performs the i-th timed mutation.
type bench struct {
	step    func(i int)
	updates *int64
}

type scenario func(w, h int) bench

var scenarios = map[string]scenario{
	"chain":   chainScenario,
	"derived": derivedScenario,
	"command": commandScenario,
}

type node struct {
	notify.Object
	next  *node
	value int
}

func (n *node) SetValue(v int) { notify.RaiseAndSetIfChanged(n, &n.value, v, "Value") }

var (
	nextStep  = chain.Member("Next", func(n *node) *node { return n.next })
	valueStep = chain.Member("Value", func(n *node) int { return n.value })
)

// chainScenario observes the leaf of an h deep list from w subscribers and
// mutates the leaf.
func chainScenario(w, h int) bench {
	root := &node{}
	leaf := root
	steps := make([]chain.Step, 0, h)
	for j := 1; j < h; j++ {
		leaf.next = &node{}
		leaf = leaf.next
		steps = append(steps, nextStep)
	}
	path := chain.MustPath(append(steps, valueStep)...)

	updates := new(int64)
	for i := 0; i < w; i++ {
		rx.Subscribe(chain.Values[int](root, path), func(int) { *updates++ })
	}
	*updates = 0 // initial values
	return bench{
		step:    func(i int) { leaf.SetValue(i + 1) },
		updates: updates,
	}
}

func addOne(v int) int {
	return v + 1
}

// derivedScenario feeds w derived properties through h map stages each.
func derivedScenario(w, h int) bench {
	src := rx.NewSubject[int]()
	updates := new(int64)
	props := make([]*derived.Property[int], 0, w)
	for i := 0; i < w; i++ {
		var last rx.Observable[int] = src
		for j := 0; j < h; j++ {
			last = rx.Map(last, addOne)
		}
		p := derived.New(last, derived.WithOnChanged(func(int) { *updates++ }))
		p.Connect()
		props = append(props, p)
	}
	return bench{
		step: func(i int) {
			src.OnNext(i + 1)
			_ = props[i%len(props)].Value()
		},
		updates: updates,
	}
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// commandScenario executes w commands gated on one source, each with h
// result subscribers.
func commandScenario(w, h int) bench {
	ctx := context.Background()
	gate := rx.NewBehaviorSubject(true)
	updates := new(int64)
	cmds := make([]*command.Command[int, int], 0, w)
	for i := 0; i < w; i++ {
		c := command.New(func(_ context.Context, n int) (int, error) {
			return n + 1, nil
		}, command.WithCanExecute(gate), command.WithLogger(quiet))
		for j := 0; j < h; j++ {
			rx.Subscribe(c.Results(), func(int) { *updates++ })
		}
		cmds = append(cmds, c)
	}
	return bench{
		step: func(i int) {
			for _, c := range cmds {
				if !c.Execute(ctx, i) {
					panic("command refused to execute")
				}
			}
		},
		updates: updates,
	}
}
