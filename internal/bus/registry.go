package bus

import (
	"cmp"
	"slices"
)

// registry groups subscriber entries by message key and keeps the child
// engines in one container. Subscribers and children draw registration
// indices from the same counter, so together they form one total order.
//
// A registry is owned by exactly one Engine and is not safe for concurrent use.
type registry struct {
	pool      pool
	subs      map[Key]*container
	children  container
	owners    map[any][]Handle
	nextIndex uint64
	count     int

	// Emptied containers and owner slices are kept for reuse.
	spareContainers []*container
	spareHandles    [][]Handle
}

// newRegistry creates an empty registry with a pre-sized pool.
func newRegistry(poolCapacity int) registry {
	return registry{
		pool:   newPool(poolCapacity),
		subs:   make(map[Key]*container),
		owners: make(map[any][]Handle),
	}
}

// next returns the next registration index.
func (r *registry) next() uint64 {
	r.nextIndex++
	return r.nextIndex
}

// addSubscriber registers owner for key. A second registration of the same
// owner for the same key is rejected.
func (r *registry) addSubscriber(owner any, key Key, target deliverer, priority int, name string) (Handle, error) {
	c := r.subs[key]
	if c.contains(owner) {
		return Handle{}, ErrAlreadyRegistered
	}
	if c == nil {
		c = r.takeContainer()
		r.subs[key] = c
	}

	e := r.pool.acquire(owner, key, priority)
	e.kind = kindSubscriber
	e.target = target
	e.name = name
	e.index = r.next()
	c.insert(e.ref())
	r.count++

	h := e.handle()
	hs, ok := r.owners[owner]
	if !ok {
		hs = r.takeHandles()
	}
	r.owners[owner] = append(hs, h)
	return h, nil
}

// removeSubscriber removes the registration identified by h.
// Stale or unknown handles are ignored.
func (r *registry) removeSubscriber(h Handle) bool {
	e, ok := r.pool.lookup(h)
	if !ok || e.kind != kindSubscriber {
		return false
	}

	owner := e.owner
	if hs, ok := r.owners[owner]; ok {
		if i := slices.Index(hs, h); i >= 0 {
			hs = slices.Delete(hs, i, i+1)
		}
		if len(hs) == 0 {
			delete(r.owners, owner)
			r.spareHandles = append(r.spareHandles, hs)
		} else {
			r.owners[owner] = hs
		}
	}

	r.dropSubscriber(e)
	return true
}

// removeOwner removes every subscriber registration of owner and returns
// how many were removed.
func (r *registry) removeOwner(owner any) int {
	hs, ok := r.owners[owner]
	if !ok {
		return 0
	}
	delete(r.owners, owner)

	removed := 0
	for _, h := range hs {
		if e, ok := r.pool.lookup(h); ok {
			r.dropSubscriber(e)
			removed++
		}
	}

	clear(hs)
	r.spareHandles = append(r.spareHandles, hs[:0])
	return removed
}

// dropSubscriber deactivates e, removes it from its container and returns
// it to the pool. The entry is marked inactive first so a walk holding a
// snapshot that includes it skips it.
func (r *registry) dropSubscriber(e *entry) {
	e.active = false

	key := e.key
	if c := r.subs[key]; c != nil {
		if i := c.find(e.owner); i >= 0 {
			c.removeAt(i)
		}
		if c.len() == 0 {
			delete(r.subs, key)
			r.spareContainers = append(r.spareContainers, c)
		}
	}

	r.count--
	r.pool.release(e)
}

// addChild attaches child as a child engine.
func (r *registry) addChild(child *Engine, priority int, name string) (Handle, error) {
	if r.children.contains(child) {
		return Handle{}, ErrAlreadyRegistered
	}

	e := r.pool.acquire(child, Key{}, priority)
	e.kind = kindChild
	e.child = child
	e.name = name
	e.index = r.next()
	r.children.insert(e.ref())
	return e.handle(), nil
}

// removeChild detaches child. Detaching an engine that is not attached is a no-op.
func (r *registry) removeChild(child *Engine) bool {
	i := r.children.find(child)
	if i < 0 {
		return false
	}

	e := r.children.refs[i].e
	e.active = false
	r.children.removeAt(i)
	r.pool.release(e)
	return true
}

// subscribersFor returns the container for key, or nil. It never allocates.
func (r *registry) subscribersFor(key Key) *container {
	return r.subs[key]
}

// hasOwner reports whether owner has at least one subscriber registration.
func (r *registry) hasOwner(owner any) bool {
	_, ok := r.owners[owner]
	return ok
}

// subscriberCount returns the number of subscriber registrations.
func (r *registry) subscriberCount() int {
	return r.count
}

// keys returns the registered message keys sorted by name.
func (r *registry) keys() []Key {
	keys := make([]Key, 0, len(r.subs))
	for k := range r.subs {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int {
		return cmp.Compare(a.String(), b.String())
	})
	return keys
}

// reset releases every entry and empties the registry.
func (r *registry) reset() {
	for key, c := range r.subs {
		for _, rf := range c.refs {
			rf.e.active = false
			r.pool.release(rf.e)
		}
		c.clear()
		delete(r.subs, key)
		r.spareContainers = append(r.spareContainers, c)
	}
	for _, rf := range r.children.refs {
		rf.e.active = false
		r.pool.release(rf.e)
	}
	r.children.clear()
	clear(r.owners)
	r.count = 0
}

func (r *registry) takeContainer() *container {
	if n := len(r.spareContainers); n > 0 {
		c := r.spareContainers[n-1]
		r.spareContainers[n-1] = nil
		r.spareContainers = r.spareContainers[:n-1]
		return c
	}
	return &container{refs: make([]ref, 0, 4)}
}

func (r *registry) takeHandles() []Handle {
	if n := len(r.spareHandles); n > 0 {
		hs := r.spareHandles[n-1]
		r.spareHandles[n-1] = nil
		r.spareHandles = r.spareHandles[:n-1]
		return hs[:0]
	}
	return make([]Handle, 0, 2)
}
