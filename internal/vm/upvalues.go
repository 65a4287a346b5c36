package vm

import "github.com/kristofer/loxie/internal/value"

// captureUpvalue returns the open upvalue already watching stack slot
// idx, or allocates and splices in a new one. openUpvalues is kept
// sorted by descending stack index so the scan can stop as soon as it
// passes idx (spec §4.4.4).
func (v *VM) captureUpvalue(idx int) *value.Upvalue {
	var prev *value.Upvalue
	cur := v.openUpvalues
	for cur != nil && cur.StackIdx > idx {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && cur.StackIdx == idx {
		return cur
	}

	created := v.GC.AllocateUpvalue(idx, &v.stack[idx])
	created.Next = cur
	if prev == nil {
		v.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above stack index
// from, copying each one's live value inline and unlinking it from the
// open list (spec §4.4.4). Called on OpCloseUpvalue and on return.
func (v *VM) closeUpvalues(from int) {
	for v.openUpvalues != nil && v.openUpvalues.StackIdx >= from {
		uv := v.openUpvalues
		uv.Close()
		v.openUpvalues = uv.Next
	}
}
