package bus

// entryKind distinguishes leaf subscribers from attached child engines.
type entryKind uint8

const (
	kindSubscriber entryKind = iota
	kindChild
)

// deliverer hands a type-erased message to a subscriber's reaction.
type deliverer interface {
	deliver(msg any)
}

// Target is one subscriber visited by a dispatch walk. Invokers receive
// targets and decide whether to deliver the message to them.
type Target interface {
	// Owner returns the registered owner. Equality of owners is identity.
	Owner() any

	// Name returns the diagnostic name of the subscriber.
	Name() string

	// Priority returns the subscriber priority. Lower values run first.
	Priority() int

	// Key returns the message key the subscriber registered for.
	Key() Key

	// React delivers msg to the subscriber.
	React(msg any)
}

// entry wraps one subscriber or child engine. Entries live in the engine's
// pool and are recycled; gen changes every time the slot is released.
type entry struct {
	owner    any
	key      Key
	target   deliverer
	child    *Engine
	name     string
	priority int
	index    uint64
	kind     entryKind
	active   bool
	gen      uint32
	slot     int32

	// reactions counts React calls over the life of the slot. It survives
	// reset so dispatch can tell whether an invoker delivered.
	reactions uint32
}

// Owner implements Target.
func (e *entry) Owner() any { return e.owner }

// Name implements Target.
func (e *entry) Name() string { return e.name }

// Priority implements Target.
func (e *entry) Priority() int { return e.priority }

// Key implements Target.
func (e *entry) Key() Key { return e.key }

// React implements Target.
func (e *entry) React(msg any) {
	e.reactions++
	if e.target != nil {
		e.target.deliver(msg)
	}
}

// handle returns the external handle for the entry's current generation.
func (e *entry) handle() Handle {
	return Handle{slot: e.slot, gen: e.gen}
}

// ref returns a point-in-time reference to the entry.
func (e *entry) ref() ref {
	return ref{e: e, gen: e.gen, priority: e.priority, index: e.index}
}

// reset drops every reference held by the entry.
func (e *entry) reset() {
	e.owner = nil
	e.key = Key{}
	e.target = nil
	e.child = nil
	e.name = ""
	e.priority = 0
	e.index = 0
	e.kind = kindSubscriber
	e.active = false
}

// ref is a generation-stamped pointer to an entry. Containers and dispatch
// snapshots hold refs so that a recycled slot is never confused with the
// entry it used to hold.
type ref struct {
	e        *entry
	gen      uint32
	priority int
	index    uint64
}

// before reports whether r is ordered before o: by priority, then by
// registration index.
func (r ref) before(o ref) bool {
	if r.priority != o.priority {
		return r.priority < o.priority
	}
	return r.index < o.index
}

// live reports whether the referenced entry is still the same active entry.
func (r ref) live() bool {
	return r.e.gen == r.gen && r.e.active
}

// Handle identifies one registration. A handle goes stale as soon as the
// registration is removed; stale handles are ignored.
type Handle struct {
	slot int32
	gen  uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.gen == 0
}
