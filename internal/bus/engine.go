package bus

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/google/uuid"
)

// Engine is one dispatch engine: a subscriber registry plus the attached
// child engines. Engines are created explicitly with New and torn down with
// Close; there is no global instance.
//
// An Engine is not safe for concurrent use. All engines in one tree must be
// driven from a single goroutine, or serialized by the caller. Reactions may
// call back into the engine (send, register, unregister) while a dispatch is
// in progress.
type Engine struct {
	id        string
	cfg       engineConfig
	reg       registry
	bufs      [][]ref
	onFailure FailureHandler
	closed    bool

	dispatches atomic.Uint64
	deliveries atomic.Uint64
	failures   atomic.Uint64
}

// New creates an engine with the given options.
func New(opts ...Option) *Engine {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	id := uuid.NewString()
	if cfg.name == "" {
		cfg.name = "engine-" + id[:8]
	}

	e := &Engine{
		id:  id,
		cfg: cfg,
		reg: newRegistry(cfg.poolCapacity),
	}
	e.onFailure = cfg.failureHandler
	if e.onFailure == nil {
		e.onFailure = logFailure(cfg.logger)
	}
	return e
}

// ID returns the unique engine identifier.
func (e *Engine) ID() string {
	return e.id
}

// Name returns the diagnostic engine name.
func (e *Engine) Name() string {
	return e.cfg.name
}

// Priority returns the priority the engine takes when attached as a child.
func (e *Engine) Priority() int {
	return e.cfg.priority
}

// Strict reports whether subscriber panics propagate out of dispatch.
func (e *Engine) Strict() bool {
	return e.cfg.strict
}

// String returns the engine name.
func (e *Engine) String() string {
	return e.cfg.name
}

// Register registers owner for each capability. With no capabilities the
// owner must implement Reactor. Either every capability is registered or,
// on error, none is.
func (e *Engine) Register(owner any, caps ...Capability) error {
	if len(caps) == 0 {
		if r, ok := owner.(Reactor); ok {
			caps = r.Reactions()
		}
	}
	_, err := e.register(owner, caps)
	return err
}

// Unregister removes every registration of owner. It reports whether
// anything was removed; unregistering an unknown owner is a no-op.
func (e *Engine) Unregister(owner any) bool {
	if owner == nil || !isComparable(owner) {
		return false
	}
	if e.reg.removeOwner(owner) == 0 {
		return false
	}
	e.recordSubscribers()
	return true
}

// Cancel removes the single registration identified by h.
// Stale handles are ignored.
func (e *Engine) Cancel(h Handle) bool {
	if !e.reg.removeSubscriber(h) {
		return false
	}
	e.recordSubscribers()
	return true
}

// IsRegistered reports whether owner has at least one registration.
func (e *Engine) IsRegistered(owner any) bool {
	if owner == nil || !isComparable(owner) {
		return false
	}
	return e.reg.hasOwner(owner)
}

// RegisterChild attaches child so it receives everything dispatched on e,
// merged into e's order by priority. Without WithPriority the child's own
// priority applies. Engine cycles are not detected and recurse forever.
func (e *Engine) RegisterChild(child *Engine, opts ...SubscribeOption) error {
	if child == nil {
		return ErrNilEngine
	}
	if child == e {
		return ErrSelfChild
	}
	if e.closed {
		return ErrEngineClosed
	}

	sc := subscribeConfig{priority: child.Priority(), name: child.Name()}
	for _, opt := range opts {
		opt(&sc)
	}

	if _, err := e.reg.addChild(child, sc.priority, sc.name); err != nil {
		return fmt.Errorf("attach %s to %s: %w", child.Name(), e.cfg.name, err)
	}
	return nil
}

// UnregisterChild detaches child. It reports whether child was attached.
func (e *Engine) UnregisterChild(child *Engine) bool {
	if child == nil {
		return false
	}
	return e.reg.removeChild(child)
}

// Dispatch sends msg under key through inv. A nil invoker delivers to everyone.
func (e *Engine) Dispatch(key Key, msg any, inv Invoker) {
	if inv == nil {
		inv = DefaultInvoker{}
	}
	e.dispatch(key, msg, inv)
}

// Close releases every registration and detaches every child.
// A closed engine ignores dispatches and rejects registrations.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.reg.reset()
	e.bufs = nil
	e.recordSubscribers()
}

// SubscriberInfo describes one registration for diagnostics.
type SubscriberInfo struct {
	// Key is the message key. Zero for child engines.
	Key Key

	// Name is the diagnostic name.
	Name string

	// Owner is the registered owner, or the child *Engine.
	Owner any

	// Priority is the registration priority.
	Priority int

	// Index is the registration index used to break priority ties.
	Index uint64

	// Child is true for attached engines.
	Child bool
}

// Subscribers lists every registration, grouped by key in dispatch order,
// followed by the attached children in dispatch order.
func (e *Engine) Subscribers() []SubscriberInfo {
	infos := make([]SubscriberInfo, 0, e.reg.subscriberCount()+e.reg.children.len())
	for _, key := range e.reg.keys() {
		for _, r := range e.reg.subs[key].refs {
			infos = append(infos, SubscriberInfo{
				Key:      key,
				Name:     r.e.name,
				Owner:    r.e.owner,
				Priority: r.priority,
				Index:    r.index,
			})
		}
	}
	for _, r := range e.reg.children.refs {
		infos = append(infos, SubscriberInfo{
			Name:     r.e.name,
			Owner:    r.e.owner,
			Priority: r.priority,
			Index:    r.index,
			Child:    true,
		})
	}
	return infos
}

// Stats contains engine statistics.
type Stats struct {
	// Dispatches is the number of walks that visited at least one entry.
	Dispatches uint64

	// Deliveries is the number of subscriber reactions that ran to completion.
	// Targets skipped by an invoker are not counted.
	Deliveries uint64

	// Failures is the number of subscriber panics caught.
	Failures uint64

	// Subscribers is the current number of subscriber registrations.
	Subscribers int

	// Children is the current number of attached engines.
	Children int

	// Keys is the number of message keys with at least one subscriber.
	Keys int

	// PoolSize is the number of entry records allocated.
	PoolSize int

	// PoolFree is the number of entry records waiting for reuse.
	PoolFree int
}

// Stats returns current engine statistics. The counters may be read from
// any goroutine; the registry figures follow the Engine concurrency rules.
func (e *Engine) Stats() Stats {
	return Stats{
		Dispatches:  e.dispatches.Load(),
		Deliveries:  e.deliveries.Load(),
		Failures:    e.failures.Load(),
		Subscribers: e.reg.subscriberCount(),
		Children:    e.reg.children.len(),
		Keys:        len(e.reg.subs),
		PoolSize:    e.reg.pool.size(),
		PoolFree:    e.reg.pool.available(),
	}
}

// register binds every capability first so a failure leaves the registry untouched.
func (e *Engine) register(owner any, caps []Capability) ([]Handle, error) {
	if owner == nil {
		return nil, ErrNilOwner
	}
	if !isComparable(owner) {
		return nil, fmt.Errorf("%T: %w", owner, ErrInvalidOwner)
	}
	if e.closed {
		return nil, ErrEngineClosed
	}
	if len(caps) == 0 {
		return nil, ErrNoCapabilities
	}

	bindings := make([]binding, 0, len(caps))
	for _, c := range caps {
		if c == nil {
			return nil, ErrNoCapabilities
		}
		b, err := c.bind(owner)
		if err != nil {
			return nil, registrationError(ownerName(owner), Key{}, err)
		}
		if e.reg.subscribersFor(b.key).contains(owner) {
			return nil, registrationError(ownerName(owner), b.key, ErrAlreadyRegistered)
		}
		for _, prev := range bindings {
			if prev.key == b.key {
				return nil, registrationError(ownerName(owner), b.key, ErrAlreadyRegistered)
			}
		}
		bindings = append(bindings, b)
	}

	handles := make([]Handle, 0, len(bindings))
	for _, b := range bindings {
		sc := e.subscribeDefaults(owner)
		for _, opt := range b.opts {
			opt(&sc)
		}

		h, err := e.reg.addSubscriber(owner, b.key, b.target, sc.priority, sc.name)
		if err != nil {
			for _, added := range handles {
				e.reg.removeSubscriber(added)
			}
			return nil, registrationError(sc.name, b.key, err)
		}
		handles = append(handles, h)

		if e.cfg.logger.Enabled(context.Background(), slog.LevelDebug) {
			e.cfg.logger.Debug("subscriber registered",
				"engine", e.cfg.name,
				"subscriber", sc.name,
				"key", b.key.String(),
				"priority", sc.priority,
			)
		}
	}

	e.recordSubscribers()
	return handles, nil
}

// subscribeDefaults resolves priority and name from the owner before options apply.
func (e *Engine) subscribeDefaults(owner any) subscribeConfig {
	sc := subscribeConfig{priority: e.cfg.defaultPriority}
	if p, ok := owner.(Prioritized); ok {
		sc.priority = p.Priority()
	}
	sc.name = ownerName(owner)
	return sc
}

func (e *Engine) recordSubscribers() {
	if e.cfg.recorder != nil {
		e.cfg.recorder.Subscribers(e.cfg.name, e.reg.subscriberCount())
	}
}

// ownerName returns the owner's chosen name, or its type name.
func ownerName(owner any) string {
	if n, ok := owner.(Named); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	return fmt.Sprintf("%T", owner)
}

// isComparable reports whether owner can be used as an identity key.
// A comparable static type may still hold an unhashable value in an
// interface field, so the value itself is compared too.
func isComparable(owner any) (ok bool) {
	if !reflect.TypeOf(owner).Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	other := owner
	return owner == other
}
