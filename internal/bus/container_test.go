package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRef(owner any, priority int, index uint64) ref {
	e := &entry{owner: owner, priority: priority, index: index, active: true, gen: 1}
	return e.ref()
}

func refOwners(refs []ref) []any {
	owners := make([]any, len(refs))
	for i, r := range refs {
		owners[i] = r.e.owner
	}
	return owners
}

func TestContainer_InsertOrder(t *testing.T) {
	var c container

	c.insert(testRef("c", 100, 3))
	c.insert(testRef("a", 0, 1))
	c.insert(testRef("d", -5, 4))
	c.insert(testRef("b", 0, 2))
	c.insert(testRef("e", 0, 5))

	assert.Equal(t, []any{"d", "a", "b", "e", "c"}, refOwners(c.refs))
}

func TestContainer_InsertEqualPriorityIsFIFO(t *testing.T) {
	var c container
	for i := uint64(1); i <= 5; i++ {
		c.insert(testRef(i, 7, i))
	}
	assert.Equal(t, []any{uint64(1), uint64(2), uint64(3), uint64(4), uint64(5)}, refOwners(c.refs))
}

func TestContainer_Remove(t *testing.T) {
	var c container
	c.insert(testRef("a", 0, 1))
	c.insert(testRef("b", 0, 2))
	c.insert(testRef("c", 0, 3))

	r, ok := c.remove("b")
	require.True(t, ok)
	assert.Equal(t, "b", r.e.owner)
	assert.Equal(t, []any{"a", "c"}, refOwners(c.refs))

	_, ok = c.remove("b")
	assert.False(t, ok, "removing an absent owner is a no-op")
	assert.Equal(t, 2, c.len())
}

func TestContainer_SnapshotIsIndependent(t *testing.T) {
	var c container
	c.insert(testRef("a", 0, 1))
	c.insert(testRef("b", 0, 2))

	snap := c.snapshot(nil)
	c.insert(testRef("c", -1, 3))
	c.remove("a")

	assert.Equal(t, []any{"a", "b"}, refOwners(snap))
	assert.Equal(t, []any{"c", "b"}, refOwners(c.refs))
}

func TestContainer_SnapshotReusesBuffer(t *testing.T) {
	var c container
	c.insert(testRef("a", 0, 1))

	buf := make([]ref, 0, 8)
	snap := c.snapshot(buf)
	require.Len(t, snap, 1)
	assert.Equal(t, cap(buf), cap(snap))
}

func TestContainer_NilIsEmpty(t *testing.T) {
	var c *container
	assert.Equal(t, 0, c.len())
	assert.False(t, c.contains("a"))
	assert.Empty(t, c.snapshot(nil))
}
