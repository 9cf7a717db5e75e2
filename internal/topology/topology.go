// Package topology builds a named engine tree from configuration.
//
// Engines are created in declaration order and attached to their parents
// in the same order, so siblings of equal priority are visited in the order
// they appear in the config file.
package topology

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/dshills/cascade/internal/bus"
	"github.com/dshills/cascade/internal/config"
)

// ErrUnknownEngine is returned when a name does not match any engine.
var ErrUnknownEngine = errors.New("unknown engine")

// Option configures Build.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	recorder  bus.Recorder
	onFailure bus.FailureHandler
}

// WithLogger sets the logger passed to every engine.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRecorder attaches r to every engine.
func WithRecorder(r bus.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithFailureHandler sets the failure handler of every engine.
func WithFailureHandler(h bus.FailureHandler) Option {
	return func(o *options) {
		o.onFailure = h
	}
}

// Tree is a built engine tree.
type Tree struct {
	specs   []config.EngineSpec
	engines map[string]*bus.Engine
	roots   []string
}

// Build validates cfg and creates its engines.
func Build(cfg *config.Config, opts ...Option) (*Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	specs := slices.Clone(cfg.Engines())
	t := &Tree{
		specs:   specs,
		engines: make(map[string]*bus.Engine, len(specs)),
	}

	for _, spec := range specs {
		engineOpts := []bus.Option{
			bus.WithEngineName(spec.Name),
			bus.WithStrict(cfg.IsStrict(spec)),
			bus.WithDefaultPriority(cfg.Engine.DefaultPriority),
			bus.WithPoolCapacity(cfg.Engine.PoolCapacity),
			bus.WithEnginePriority(spec.Priority),
		}
		if o.logger != nil {
			engineOpts = append(engineOpts, bus.WithLogger(o.logger.With("engine", spec.Name)))
		}
		if o.recorder != nil {
			engineOpts = append(engineOpts, bus.WithRecorder(o.recorder))
		}
		if o.onFailure != nil {
			engineOpts = append(engineOpts, bus.WithFailureHandler(o.onFailure))
		}
		t.engines[spec.Name] = bus.New(engineOpts...)
	}

	for _, spec := range specs {
		if spec.Parent == "" {
			t.roots = append(t.roots, spec.Name)
			continue
		}
		parent, child := t.engines[spec.Parent], t.engines[spec.Name]
		if err := parent.RegisterChild(child, bus.WithPriority(spec.Priority)); err != nil {
			t.Close()
			return nil, err
		}
	}

	if o.logger != nil {
		o.logger.Debug("topology built", "engines", len(specs), "roots", len(t.roots))
	}
	return t, nil
}

// Engine returns the engine called name.
func (t *Tree) Engine(name string) (*bus.Engine, bool) {
	e, ok := t.engines[name]
	return e, ok
}

// MustEngine returns the engine called name, panicking if there is none.
func (t *Tree) MustEngine(name string) *bus.Engine {
	e, ok := t.engines[name]
	if !ok {
		panic(fmt.Sprintf("topology: %s: %v", name, ErrUnknownEngine))
	}
	return e
}

// Names returns the engine names in declaration order.
func (t *Tree) Names() []string {
	names := make([]string, len(t.specs))
	for i, spec := range t.specs {
		names[i] = spec.Name
	}
	return names
}

// Roots returns the names of the engines without a parent, in declaration order.
func (t *Tree) Roots() []string {
	return slices.Clone(t.roots)
}

// Children returns the names of the engines attached to name, in
// declaration order.
func (t *Tree) Children(name string) []string {
	var out []string
	for _, spec := range t.specs {
		if spec.Parent == name {
			out = append(out, spec.Name)
		}
	}
	return out
}

// Close closes every engine, children before parents.
func (t *Tree) Close() {
	for i := len(t.specs) - 1; i >= 0; i-- {
		if e, ok := t.engines[t.specs[i].Name]; ok {
			e.Close()
		}
	}
}

// Describe writes the tree, one engine per line, indented by depth.
func (t *Tree) Describe(w io.Writer) error {
	for _, root := range t.roots {
		if err := t.describe(w, root, 0); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) describe(w io.Writer, name string, depth int) error {
	e := t.engines[name]
	st := e.Stats()
	_, err := fmt.Fprintf(w, "%s%s priority=%d strict=%t subscribers=%d\n",
		strings.Repeat("  ", depth), name, e.Priority(), e.Strict(), st.Subscribers)
	if err != nil {
		return err
	}
	for _, child := range t.Children(name) {
		if err := t.describe(w, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
