package bus

// container keeps refs sorted ascending by (priority, index).
// Order is established at insert time, never at read time.
type container struct {
	refs []ref
}

// insert places r before the first ref that sorts strictly after it,
// or appends it. Equal priorities keep registration order.
func (c *container) insert(r ref) {
	pos := len(c.refs)
	for i := range c.refs {
		if r.before(c.refs[i]) {
			pos = i
			break
		}
	}

	c.refs = append(c.refs, ref{})
	copy(c.refs[pos+1:], c.refs[pos:])
	c.refs[pos] = r
}

// find returns the position of the ref owned by owner, or -1.
func (c *container) find(owner any) int {
	if c == nil {
		return -1
	}
	for i := range c.refs {
		if c.refs[i].e.owner == owner {
			return i
		}
	}
	return -1
}

// contains reports whether owner has a ref in the container.
func (c *container) contains(owner any) bool {
	return c.find(owner) >= 0
}

// remove removes the ref owned by owner and returns it.
// Removing an owner that is not present is a no-op.
func (c *container) remove(owner any) (ref, bool) {
	i := c.find(owner)
	if i < 0 {
		return ref{}, false
	}
	return c.removeAt(i), true
}

// removeAt removes and returns the ref at position i.
func (c *container) removeAt(i int) ref {
	r := c.refs[i]
	copy(c.refs[i:], c.refs[i+1:])
	c.refs[len(c.refs)-1] = ref{}
	c.refs = c.refs[:len(c.refs)-1]
	return r
}

// snapshot copies the current refs into buf and returns it.
// Dispatch walks the copy so that reactions can subscribe and unsubscribe
// without disturbing the walk in progress.
func (c *container) snapshot(buf []ref) []ref {
	if c == nil {
		return buf[:0]
	}
	return append(buf[:0], c.refs...)
}

// len returns the number of refs. A nil container is empty.
func (c *container) len() int {
	if c == nil {
		return 0
	}
	return len(c.refs)
}

// clear drops every ref while keeping capacity.
func (c *container) clear() {
	clear(c.refs)
	c.refs = c.refs[:0]
}
