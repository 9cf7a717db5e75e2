package bus

import (
	"runtime/debug"
)

// dispatch walks the subscribers of key and the attached children as one
// sequence ordered by (priority, index).
//
// Both sides are snapshotted before the walk. Entries registered during the
// walk are not visited; entries removed during the walk are skipped because
// they are deactivated (and their generation bumped) before removal.
func (e *Engine) dispatch(key Key, msg any, inv Invoker) {
	subs := e.reg.subscribersFor(key)
	nsubs, nkids := subs.len(), e.reg.children.len()
	if nsubs == 0 && nkids == 0 {
		return
	}

	e.dispatches.Add(1)
	if e.cfg.recorder != nil {
		e.cfg.recorder.Dispatched(e.cfg.name)
	}

	var local, kids []ref
	if nsubs > 0 {
		local = subs.snapshot(e.takeBuf())
	}
	if nkids > 0 {
		kids = e.reg.children.snapshot(e.takeBuf())
	}

	e.walk(key, msg, inv, local, kids)

	// Buffers are not returned if a strict engine panics out of the walk.
	if local != nil {
		e.putBuf(local)
	}
	if kids != nil {
		e.putBuf(kids)
	}
}

// walk merges two sorted snapshots. Registration indices come from one
// counter, so no two refs tie and the merged order is total.
func (e *Engine) walk(key Key, msg any, inv Invoker, local, kids []ref) {
	i, j := 0, 0
	for i < len(local) || j < len(kids) {
		var r ref
		if j >= len(kids) || (i < len(local) && local[i].before(kids[j])) {
			r = local[i]
			i++
		} else {
			r = kids[j]
			j++
		}

		if !r.live() {
			continue
		}
		if inv.Halted(msg) {
			return
		}

		if r.e.kind == kindChild {
			e.forward(r.e, key, msg, inv)
		} else {
			e.deliver(r.e, key, msg, inv)
		}
	}
}

// deliver hands msg to one subscriber through inv, recovering a panic
// unless the engine is strict.
func (e *Engine) deliver(en *entry, key Key, msg any, inv Invoker) {
	before := en.reactions
	if e.cfg.strict {
		inv.Invoke(msg, en)
		e.delivered(en, before)
		return
	}

	// The entry may be released by its own reaction; keep the name for reporting.
	name := en.name
	defer func() {
		if v := recover(); v != nil {
			e.fail(name, key, v)
		}
	}()

	inv.Invoke(msg, en)
	e.delivered(en, before)
}

// forward runs the child's own dispatch with the same invoker.
func (e *Engine) forward(en *entry, key Key, msg any, inv Invoker) {
	child := en.child
	if e.cfg.strict {
		child.dispatch(key, msg, inv)
		return
	}

	name := en.name
	defer func() {
		if v := recover(); v != nil {
			e.fail(name, key, v)
		}
	}()

	child.dispatch(key, msg, inv)
}

// delivered counts a reaction if the invoker reached React on en.
func (e *Engine) delivered(en *entry, before uint32) {
	if en.reactions == before {
		return
	}
	e.deliveries.Add(1)
	if e.cfg.recorder != nil {
		e.cfg.recorder.Delivered(e.cfg.name)
	}
}

// fail reports a recovered subscriber panic.
func (e *Engine) fail(name string, key Key, value any) {
	e.failures.Add(1)
	if e.cfg.recorder != nil {
		e.cfg.recorder.Failed(e.cfg.name, key)
	}

	err := &SubscriberError{
		Engine:     e.cfg.name,
		Subscriber: name,
		Key:        key,
		Value:      value,
		Stack:      string(debug.Stack()),
	}

	// A panicking failure handler must not abort the walk.
	defer func() {
		_ = recover()
	}()
	e.onFailure(err)
}

// takeBuf returns a spare snapshot buffer, or nil.
func (e *Engine) takeBuf() []ref {
	n := len(e.bufs)
	if n == 0 {
		return nil
	}
	buf := e.bufs[n-1]
	e.bufs[n-1] = nil
	e.bufs = e.bufs[:n-1]
	return buf
}

// putBuf keeps buf for the next dispatch.
func (e *Engine) putBuf(buf []ref) {
	if e.closed {
		return
	}
	e.bufs = append(e.bufs, buf[:0])
}
