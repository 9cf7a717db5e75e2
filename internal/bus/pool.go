package bus

// pool is an arena of entry records with a free list of slot indices.
// It grows to the high-water mark of live registrations and never shrinks.
type pool struct {
	slots []*entry
	free  []int32
}

// newPool creates a pool with room for capacity entries.
func newPool(capacity int) pool {
	p := pool{}
	if capacity > 0 {
		p.slots = make([]*entry, 0, capacity)
		p.free = make([]int32, 0, capacity)
		for i := 0; i < capacity; i++ {
			p.slots = append(p.slots, &entry{slot: int32(i), gen: 1})
			p.free = append(p.free, int32(capacity-1-i))
		}
	}
	return p
}

// acquire pops a recycled entry or allocates a new one and initializes it
// for owner. Every field is overwritten; nothing leaks from a previous use.
func (p *pool) acquire(owner any, key Key, priority int) *entry {
	var e *entry
	if n := len(p.free); n > 0 {
		e = p.slots[p.free[n-1]]
		p.free = p.free[:n-1]
	} else {
		e = &entry{slot: int32(len(p.slots)), gen: 1}
		p.slots = append(p.slots, e)
	}

	e.reset()
	e.owner = owner
	e.key = key
	e.priority = priority
	e.active = true
	return e
}

// release clears e and returns its slot to the free list. Releasing an
// entry that is already free is a no-op.
func (p *pool) release(e *entry) {
	if e.owner == nil && !e.active {
		return
	}
	e.reset()
	e.gen++
	if e.gen == 0 {
		// Zero is reserved for the zero Handle.
		e.gen = 1
	}
	p.free = append(p.free, e.slot)
}

// lookup resolves h to its entry if h is still current.
func (p *pool) lookup(h Handle) (*entry, bool) {
	if h.IsZero() || h.slot < 0 || int(h.slot) >= len(p.slots) {
		return nil, false
	}
	e := p.slots[h.slot]
	if e.gen != h.gen || !e.active {
		return nil, false
	}
	return e, true
}

// size returns the number of slots ever allocated.
func (p *pool) size() int {
	return len(p.slots)
}

// available returns the number of free slots.
func (p *pool) available() int {
	return len(p.free)
}
