package topology

import (
	"fmt"
	"math"

	"github.com/dshills/cascade/internal/bus"
)

// Probe is the message sent by Tree.Probe.
type Probe struct {
	// Visits lists the engines reached, in dispatch order.
	Visits []string
}

// prober marks one engine during a probe.
type prober struct {
	engine string
}

func (p *prober) Name() string { return "probe:" + p.engine }

func (p *prober) React(msg *Probe) {
	msg.Visits = append(msg.Visits, p.engine)
}

// Probe sends a Probe from the engine called root and returns the order in
// which engines were reached. Each engine reports on entry, ahead of its own
// subscribers and children. Existing registrations are left untouched.
func (t *Tree) Probe(root string) ([]string, error) {
	start, ok := t.engines[root]
	if !ok {
		return nil, fmt.Errorf("%s: %w", root, ErrUnknownEngine)
	}

	probers := make(map[*bus.Engine]*prober, len(t.engines))
	for name, e := range t.engines {
		p := &prober{engine: name}
		if _, err := bus.Listen[*Probe](e, p, bus.WithPriority(math.MinInt)); err != nil {
			for e, p := range probers {
				e.Unregister(p)
			}
			return nil, err
		}
		probers[e] = p
	}
	defer func() {
		for e, p := range probers {
			e.Unregister(p)
		}
	}()

	msg := &Probe{}
	bus.Send(start, msg)
	return msg.Visits, nil
}
