package bus

// Capability binds an owner to one message key. An owner that reacts to
// several message types registers one capability per type.
type Capability interface {
	bind(owner any) (binding, error)
}

// binding is a capability resolved against a concrete owner.
type binding struct {
	key    Key
	target deliverer
	opts   []SubscribeOption
}

// Listener is implemented by owners that react to messages of type T.
type Listener[T any] interface {
	React(msg T)
}

// Reactor is implemented by owners that declare their own capabilities.
// Register uses Reactions when no capabilities are passed explicitly.
type Reactor interface {
	Reactions() []Capability
}

// On returns a capability that calls fn for every message of type T.
//
//	func (p *Player) Reactions() []bus.Capability {
//		return []bus.Capability{
//			bus.On(p.onDamage),
//			bus.On(p.onHeal, bus.WithPriority(-10)),
//		}
//	}
func On[T any](fn func(T), opts ...SubscribeOption) Capability {
	return &reaction[T]{fn: fn, opts: opts}
}

type reaction[T any] struct {
	fn   func(T)
	opts []SubscribeOption
}

func (r *reaction[T]) bind(any) (binding, error) {
	if r.fn == nil {
		return binding{}, ErrNoCapabilities
	}
	return binding{key: KeyOf[T](), target: r, opts: r.opts}, nil
}

func (r *reaction[T]) deliver(msg any) {
	// A message of another type is skipped silently.
	if m, ok := msg.(T); ok {
		r.fn(m)
	}
}

// Listens returns a capability registering the owner as a Listener[T].
func Listens[T any](opts ...SubscribeOption) Capability {
	return listens[T]{opts: opts}
}

type listens[T any] struct {
	opts []SubscribeOption
}

func (c listens[T]) bind(owner any) (binding, error) {
	l, ok := owner.(Listener[T])
	if !ok {
		return binding{}, ErrCapabilityMismatch
	}
	return binding{key: KeyOf[T](), target: listenerTarget[T]{l: l}, opts: c.opts}, nil
}

type listenerTarget[T any] struct {
	l Listener[T]
}

func (t listenerTarget[T]) deliver(msg any) {
	if m, ok := msg.(T); ok {
		t.l.React(m)
	}
}

// Handles returns a capability registering the owner as a target of
// SendAction[H]. The owner must implement H.
func Handles[H any](opts ...SubscribeOption) Capability {
	return handles[H]{opts: opts}
}

type handles[H any] struct {
	opts []SubscribeOption
}

func (c handles[H]) bind(owner any) (binding, error) {
	h, ok := owner.(H)
	if !ok {
		return binding{}, ErrCapabilityMismatch
	}
	return binding{key: KeyOf[action[H]](), target: handleTarget[H]{h: h}, opts: c.opts}, nil
}

type handleTarget[H any] struct {
	h H
}

func (t handleTarget[H]) deliver(msg any) {
	if a, ok := msg.(action[H]); ok && a.fn != nil {
		a.fn(t.h)
	}
}
