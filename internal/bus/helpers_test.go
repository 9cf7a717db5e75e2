package bus

import (
	"io"
	"log/slog"
)

// tick is a counter message: each subscriber reads then increments Value.
type tick struct {
	Value int
}

// probe records the order in which subscribers saw a message.
type probe struct {
	Visits []string
}

// named is a test owner with a fixed name and priority.
type named struct {
	name     string
	priority int
}

func (n *named) Name() string  { return n.name }
func (n *named) Priority() int { return n.priority }

// visit returns a reaction appending the owner's name to the probe.
func (n *named) visit(p *probe) {
	p.Visits = append(p.Visits, n.name)
}

func newOwner(name string, priority int) *named {
	return &named{name: name, priority: priority}
}

// quietEngine creates an engine whose failure log is discarded.
func quietEngine(opts ...Option) *Engine {
	base := []Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	return New(append(base, opts...)...)
}

// mustRegister registers owner.visit for *probe.
func mustRegister(e *Engine, n *named) {
	if err := e.Register(n, On(n.visit)); err != nil {
		panic(err)
	}
}
