package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/loxie/internal/value"
)

func TestAllocateStringInterns(t *testing.T) {
	c := New()
	a := c.AllocateString("hello")
	b := c.AllocateString("hello")
	assert.Same(t, a, b, "equal byte sequences must intern to the same object")

	other := c.AllocateString("world")
	assert.NotSame(t, a, other)
}

func TestAllocateArrayTracksBytes(t *testing.T) {
	c := New()
	arr := c.AllocateArray([]value.Value{value.Number(1), value.Number(2)})
	require.NotNil(t, arr)
	assert.Equal(t, 2, len(arr.Elements))
	assert.Equal(t, 24+16*2, c.bytesAllocated)
}

// fakeRoot marks only the objects listed in marks, so when it is the
// only root every other object is collected on the next Collect.
type fakeRoot struct{ marks []value.Object }

func (f *fakeRoot) MarkRoots(c *Collector) {
	for _, o := range f.marks {
		c.MarkObject(o)
	}
}

func TestCollectSweepsUnreachableStrings(t *testing.T) {
	c := New()
	root := &fakeRoot{}
	c.AddRoot(root)

	kept := c.AllocateString("kept")
	root.marks = []value.Object{kept}
	c.AllocateString("garbage")

	c.Collect()

	// The interned copy of "kept" must still resolve to the same
	// object; "garbage" must no longer be found by FindString since its
	// intern-table entry was dropped during sweepStrings.
	assert.Same(t, kept, c.AllocateString("kept"))
	assert.Nil(t, c.strings.FindString("garbage", value.HashFNV1a("garbage")))
}

func TestLockDefersCollection(t *testing.T) {
	c := New()
	c.nextGC = 0 // force every allocation past threshold
	root := &fakeRoot{}
	c.AddRoot(root)

	c.Lock()
	s := c.AllocateString("inside-lock")
	// Collection never runs while locked, so the intern-table entry
	// survives even though nothing roots it yet.
	found := c.strings.FindString("inside-lock", value.HashFNV1a("inside-lock"))
	require.NotNil(t, found)
	c.Unlock()

	assert.Same(t, s, found)
}
