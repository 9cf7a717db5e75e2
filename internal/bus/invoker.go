package bus

// Invoker decides how a dispatch walk delivers a message.
//
// Invokers may mutate the message (approve a request, accumulate data) but
// must never change the registry. Structural changes during a walk go through
// Register and Unregister, which are safe to call from a reaction.
type Invoker interface {
	// Halted reports whether the walk must stop before visiting the next entry.
	Halted(msg any) bool

	// Invoke delivers msg to target.
	Invoke(msg any, target Target)
}

// DefaultInvoker delivers every message to every target.
type DefaultInvoker struct{}

// Halted implements Invoker.
func (DefaultInvoker) Halted(any) bool { return false }

// Invoke implements Invoker.
func (DefaultInvoker) Invoke(msg any, target Target) {
	target.React(msg)
}

// RequestInvoker stops the walk once the message has been approved.
// Messages that do not implement Approver are delivered like DefaultInvoker.
type RequestInvoker struct{}

// Halted implements Invoker.
func (RequestInvoker) Halted(msg any) bool {
	a, ok := msg.(Approver)
	return ok && a.Approved()
}

// Invoke implements Invoker.
func (RequestInvoker) Invoke(msg any, target Target) {
	target.React(msg)
}

// FilteredInvoker skips targets rejected by Accept and delegates the rest.
// Skipping a target does not stop the walk.
type FilteredInvoker struct {
	// Next receives accepted targets. Nil means DefaultInvoker.
	Next Invoker

	// Accept reports whether target should receive the message.
	// Nil accepts everything.
	Accept TargetFilter
}

// Halted implements Invoker.
func (f FilteredInvoker) Halted(msg any) bool {
	if f.Next == nil {
		return false
	}
	return f.Next.Halted(msg)
}

// Invoke implements Invoker.
func (f FilteredInvoker) Invoke(msg any, target Target) {
	if f.Accept != nil && !f.Accept(target) {
		return
	}
	if f.Next == nil {
		target.React(msg)
		return
	}
	f.Next.Invoke(msg, target)
}

// ExcludeOwner returns a predicate rejecting targets registered by owner.
// It is typically used so a sender does not receive its own message.
func ExcludeOwner(owner any) TargetFilter {
	return func(t Target) bool {
		return t.Owner() != owner
	}
}

// OnlyOwners returns a predicate accepting only targets registered by one
// of owners.
func OnlyOwners(owners ...any) TargetFilter {
	return func(t Target) bool {
		o := t.Owner()
		for _, want := range owners {
			if o == want {
				return true
			}
		}
		return false
	}
}
