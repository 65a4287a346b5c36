// Package gc implements loxie's tri-colour mark-and-sweep collector
// (spec §5): every heap object is allocated through a Collector, which
// owns the intrusive allocation list, the string intern table, and the
// gray worklist used to trace live references.
package gc

import (
	"github.com/kristofer/loxie/internal/chunk"
	"github.com/kristofer/loxie/internal/value"
)

const heapGrowFactor = 2

// initialNextGC is the byte threshold before the very first
// collection; chosen generously so short scripts and most test
// programs never trigger a collection at all, matching the reference
// collector's "collect rarely until pressure is real" posture.
const initialNextGC = 1 << 20

// RootProvider is implemented by the VM and the compiler so the
// collector can mark their live roots (spec §6.6, §5.2) without gc
// importing either package back (which would cycle, since both import
// gc for allocation).
type RootProvider interface {
	MarkRoots(c *Collector)
}

// Collector owns every heap object's lifetime: allocation, string
// interning, and mark-sweep collection triggered by allocation
// pressure (original_source/src/gc.c, src/memory.c).
type Collector struct {
	objects        value.Object
	strings        *value.Table
	gray           []value.Object
	bytesAllocated int
	nextGC         int
	locked         int
	roots          []RootProvider

	// Log, when non-nil, receives one line per collection describing
	// bytes freed; nil by default (spec's DEBUG_LOG_GC is opt-in).
	Log func(format string, args ...any)
}

// New returns a collector with an empty heap.
func New() *Collector {
	return &Collector{
		strings: value.NewTable(),
		nextGC:  initialNextGC,
	}
}

// AddRoot registers a component whose MarkRoots must run on every
// collection. The VM and the compiler each call this once at
// construction.
func (c *Collector) AddRoot(r RootProvider) {
	c.roots = append(c.roots, r)
}

// Lock defers collection while multi-step allocations are in
// progress (e.g. building a Closure's Upvalues slice element by
// element), matching the reference VM's is_locked discipline so a
// collection can never run while a partially-built object holds
// references the gray walk can't yet see. Unlock must be called
// exactly once for every Lock.
func (c *Collector) Lock()   { c.locked++ }
func (c *Collector) Unlock() { c.locked-- }

func (c *Collector) track(o value.Object, size int) {
	o.SetNextObj(c.objects)
	c.objects = o
	c.bytesAllocated += size
	if c.bytesAllocated > c.nextGC && c.locked == 0 {
		c.Collect()
	}
}

// AllocateString interns chars: if an equal string already exists it
// is returned, otherwise a fresh *value.String is allocated, tracked,
// and interned (spec §3.3's "one live String per distinct sequence").
func (c *Collector) AllocateString(chars string) *value.String {
	hash := value.HashFNV1a(chars)
	if s := c.strings.FindString(chars, hash); s != nil {
		return s
	}
	s := value.NewStringRaw(chars, hash)
	c.Lock()
	c.strings.Set(s, value.Nil)
	c.Unlock()
	c.track(s, len(chars)+16)
	return s
}

// AllocateFunction returns a fresh, empty Function.
func (c *Collector) AllocateFunction() *value.Function {
	fn := value.NewFunction()
	c.track(fn, 64)
	return fn
}

// AllocateNative wraps fn as a Native object bound to name/arity.
func (c *Collector) AllocateNative(name string, arity int, fn value.NativeFn) *value.Native {
	n := value.NewNative(name, arity, fn)
	c.track(n, 32)
	return n
}

// AllocateClosure binds fn's upvalue descriptors to fresh slots.
func (c *Collector) AllocateClosure(fn *value.Function) *value.Closure {
	cl := value.NewClosure(fn)
	c.track(cl, 32+8*len(cl.Upvalues))
	return cl
}

// AllocateClass returns a fresh class named name with an empty method
// table.
func (c *Collector) AllocateClass(name *value.String) *value.Class {
	cls := value.NewClass(name)
	c.track(cls, 48)
	c.track(cls.Methods, 24)
	return cls
}

// AllocateInstance returns a fresh instance of class with an empty
// field table.
func (c *Collector) AllocateInstance(class *value.Class) *value.Instance {
	inst := value.NewInstance(class)
	c.track(inst, 40)
	c.track(inst.Fields, 24)
	return inst
}

// AllocateBoundMethod pairs receiver with method.
func (c *Collector) AllocateBoundMethod(receiver value.Value, method *value.Closure) *value.BoundMethod {
	bm := value.NewBoundMethod(receiver, method)
	c.track(bm, 32)
	return bm
}

// AllocateRange returns a fresh, normalized Range.
func (c *Collector) AllocateRange(start, end float64) *value.Range {
	r := value.NewRange(start, end)
	c.track(r, 24)
	return r
}

// AllocateArray wraps elements as an Array object.
func (c *Collector) AllocateArray(elements []value.Value) *value.Array {
	a := value.NewArray(elements)
	c.track(a, 24+16*len(elements))
	return a
}

// AllocateTable returns a fresh, empty user-visible Table.
func (c *Collector) AllocateTable() *value.Table {
	t := value.NewTable()
	c.track(t, 24)
	return t
}

// AllocateUpvalue returns a fresh open upvalue watching the stack slot
// at idx.
func (c *Collector) AllocateUpvalue(idx int, loc *value.Value) *value.Upvalue {
	u := value.NewUpvalue(idx, loc)
	c.track(u, 24)
	return u
}

// MarkValue marks v's underlying object, if it has one.
func (c *Collector) MarkValue(v value.Value) {
	if v.IsObject() {
		c.MarkObject(v.Obj)
	}
}

// MarkObject grays o if it isn't already marked.
func (c *Collector) MarkObject(o value.Object) {
	if o == nil || o.IsMarked() {
		return
	}
	o.SetMarked(true)
	c.gray = append(c.gray, o)
}

func (c *Collector) markTable(t *value.Table) {
	if t == nil {
		return
	}
	t.EachEntry(func(key *value.String, val value.Value) {
		c.MarkObject(key)
		c.MarkValue(val)
	})
}

// Collect runs one full mark-sweep cycle: mark every registered
// root's live references, trace the gray worklist to blacken
// everything reachable, drop dead entries from the intern table, and
// free every unmarked heap object (original_source/src/gc.c).
func (c *Collector) Collect() {
	before := c.bytesAllocated

	for _, r := range c.roots {
		r.MarkRoots(c)
	}
	c.traceReferences()
	c.sweepStrings()
	c.sweepObjects()

	c.nextGC = c.bytesAllocated * heapGrowFactor
	if c.Log != nil {
		c.Log("gc: collected %d bytes (%d -> %d), next at %d",
			before-c.bytesAllocated, before, c.bytesAllocated, c.nextGC)
	}
}

func (c *Collector) traceReferences() {
	for len(c.gray) > 0 {
		n := len(c.gray) - 1
		obj := c.gray[n]
		c.gray = c.gray[:n]
		c.blacken(obj)
	}
}

// blacken marks every object directly reachable from obj, per variant
// (original_source/src/gc.c:_blackenObject). Strings and natives have
// no outgoing references.
func (c *Collector) blacken(obj value.Object) {
	switch o := obj.(type) {
	case *value.Upvalue:
		c.MarkValue(o.Get())
	case *value.Function:
		c.MarkObject(o.Name)
		if ch, ok := o.Chunk.(*chunk.Chunk); ok {
			for _, v := range ch.Constants {
				c.MarkValue(v)
			}
		}
	case *value.Closure:
		c.MarkObject(o.Function)
		for _, uv := range o.Upvalues {
			c.MarkObject(uv)
		}
	case *value.Class:
		c.MarkObject(o.Name)
		c.markTable(o.Methods)
		if o.Super != nil {
			c.MarkObject(o.Super)
		}
		if o.Constructor != nil {
			c.MarkObject(o.Constructor)
		}
	case *value.Instance:
		c.MarkObject(o.Class)
		c.markTable(o.Fields)
	case *value.BoundMethod:
		c.MarkValue(o.Receiver)
		c.MarkObject(o.Method)
	case *value.Range:
		// Start/End are plain float64, nothing to mark.
	case *value.Array:
		for _, el := range o.Elements {
			c.MarkValue(el)
		}
	case *value.Table:
		c.markTable(o)
	}
}

// sweepStrings drops any intern-table entry whose string wasn't
// reached during tracing, mirroring tableRemoveWhite in the reference
// collector: a string can be alive only via the intern table itself
// plus outstanding references, so once nothing marks it, drop it so
// the table doesn't pin it forever.
func (c *Collector) sweepStrings() {
	dead := make([]*value.String, 0)
	c.strings.EachEntry(func(key *value.String, _ value.Value) {
		if !key.IsMarked() {
			dead = append(dead, key)
		}
	})
	for _, s := range dead {
		c.strings.Delete(s)
	}
}

func (c *Collector) sweepObjects() {
	var prev value.Object
	obj := c.objects
	for obj != nil {
		if obj.IsMarked() {
			obj.SetMarked(false)
			prev = obj
			obj = obj.NextObj()
			continue
		}
		unreached := obj
		obj = obj.NextObj()
		if prev != nil {
			prev.SetNextObj(obj)
		} else {
			c.objects = obj
		}
		c.bytesAllocated -= approxSize(unreached)
	}
}

func approxSize(o value.Object) int {
	switch v := o.(type) {
	case *value.String:
		return len(v.Chars) + 16
	case *value.Array:
		return 24 + 16*len(v.Elements)
	case *value.Closure:
		return 32 + 8*len(v.Upvalues)
	default:
		return 24
	}
}
