package value

// ObjKind discriminates the heap-object variants of spec §3.2.
type ObjKind uint8

const (
	ObjStringKind ObjKind = iota
	ObjUpvalueKind
	ObjFunctionKind
	ObjNativeKind
	ObjClosureKind
	ObjClassKind
	ObjInstanceKind
	ObjBoundMethodKind
	ObjRangeKind
	ObjArrayKind
	ObjTableKind
)

// Object is satisfied by every heap-allocated variant. Every
// implementation embeds Header, so the header methods below are
// promoted automatically.
type Object interface {
	ObjTag() ObjKind
	IsMarked() bool
	SetMarked(bool)
	NextObj() Object
	SetNextObj(Object)
}

// Header is the common object prefix spec §3.2 requires: a variant
// tag, a GC mark bit, and the intrusive "next" link of the collector's
// allocation list.
type Header struct {
	Tag    ObjKind
	Marked bool
	Next   Object
}

func (h *Header) ObjTag() ObjKind       { return h.Tag }
func (h *Header) IsMarked() bool        { return h.Marked }
func (h *Header) SetMarked(m bool)      { h.Marked = m }
func (h *Header) NextObj() Object       { return h.Next }
func (h *Header) SetNextObj(o Object)   { h.Next = o }

// String is an interned, immutable byte sequence (spec §3.2). The
// collector's intern table guarantees at most one live String per
// distinct byte sequence.
type String struct {
	Header
	Chars string
	Hash  uint32
}

// NewStringRaw constructs a String object without interning. Only the
// gc package's allocator (which owns the intern table) should normally
// call this; it is exported so gc can live in its own package.
func NewStringRaw(chars string, hash uint32) *String {
	return &String{Header: Header{Tag: ObjStringKind}, Chars: chars, Hash: hash}
}

// HashFNV1a implements the 32-bit FNV-1a hash spec §2 (C2) and
// original_source/inc/object.h mandate for strings: offset basis
// 2166136261, prime 16777619.
func HashFNV1a(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Upvalue references a variable captured by a closure. While open, it
// points into a live stack slot (a raw pointer to that slot, plus its
// StackIdx); once closed, it owns its value inline. Next links the
// VM's descending-address open-upvalue list (spec §4.4.4).
type Upvalue struct {
	Header
	location *Value // points into VM stack while open, or &closed while closed
	closed   Value
	Next     *Upvalue
	StackIdx int // absolute stack index this upvalue watches while open
}

// NewUpvalue creates an open upvalue watching the stack slot at idx;
// loc must point at that live slot.
func NewUpvalue(idx int, loc *Value) *Upvalue {
	u := &Upvalue{Header: Header{Tag: ObjUpvalueKind}, StackIdx: idx}
	u.location = loc
	return u
}

// Get reads the upvalue's current value, open or closed.
func (u *Upvalue) Get() Value { return *u.location }

// Set writes through the upvalue, open or closed.
func (u *Upvalue) Set(v Value) { *u.location = v }

// IsOpen reports whether the upvalue still points into the stack.
func (u *Upvalue) IsOpen() bool { return u.location != &u.closed }

// Close copies the current value inline and retargets the location
// pointer at the upvalue's own slot (spec §4.4.4).
func (u *Upvalue) Close() {
	u.closed = *u.location
	u.location = &u.closed
}

// UpvalueDescriptor records, at compile time, where a closure's Nth
// upvalue comes from: a local slot in the immediately enclosing
// function, or an upvalue already captured by it.
type UpvalueDescriptor struct {
	Index   int
	IsLocal bool
}

// Function is a compiled function: its arity, the upvalues it
// captures, its name (nil for the top-level script), and its chunk.
// Chunk is typed as `interface{}` here to break the value<->chunk
// import cycle; compiler and vm both assert it back to *chunk.Chunk.
type Function struct {
	Header
	Arity        int
	UpvalueDescs []UpvalueDescriptor
	Name         *String
	Chunk        interface{}
}

// NewFunction allocates a Function object (uninterned; functions are
// not deduplicated).
func NewFunction() *Function {
	return &Function{Header: Header{Tag: ObjFunctionKind}}
}

// NativeFn is the signature of a host-provided procedure (spec §6.2).
// Go natives may return a descriptive error in place of the original
// "return the empty sentinel" convention; the VM translates either
// into a runtime error.
type NativeFn func(args []Value) (Value, error)

// Native wraps a host callback registered as a global (spec C8).
// Arity -1 means variadic.
type Native struct {
	Header
	Name  string
	Arity int
	Fn    NativeFn
}

func NewNative(name string, arity int, fn NativeFn) *Native {
	return &Native{Header: Header{Tag: ObjNativeKind}, Name: name, Arity: arity, Fn: fn}
}

// Closure binds a Function to the upvalues it captured at creation
// time.
type Closure struct {
	Header
	Function *Function
	Upvalues []*Upvalue
}

func NewClosure(fn *Function) *Closure {
	return &Closure{
		Header:   Header{Tag: ObjClosureKind},
		Function: fn,
		Upvalues: make([]*Upvalue, len(fn.UpvalueDescs)),
	}
}

// Class is a single-inheritance class: its name, its method table
// (name -> *Closure, stored as Value(Obj(*Closure))), and an optional
// constructor closure (the method whose name equals the class name).
type Class struct {
	Header
	Name        *String
	Methods     *Table
	Constructor *Closure
	Super       *Class
}

func NewClass(name *String) *Class {
	return &Class{Header: Header{Tag: ObjClassKind}, Name: name, Methods: NewTable()}
}

// Instance is an object of a Class: the class pointer plus a fields
// table.
type Instance struct {
	Header
	Class  *Class
	Fields *Table
}

func NewInstance(class *Class) *Instance {
	return &Instance{Header: Header{Tag: ObjInstanceKind}, Class: class, Fields: NewTable()}
}

// BoundMethod pairs a receiver value with the closure a property
// lookup resolved to, so that calling it later supplies `this`
// implicitly.
type BoundMethod struct {
	Header
	Receiver Value
	Method   *Closure
}

func NewBoundMethod(receiver Value, method *Closure) *BoundMethod {
	return &BoundMethod{Header: Header{Tag: ObjBoundMethodKind}, Receiver: receiver, Method: method}
}

// Range is a normalized ascending half-open interval [Start, End)
// (spec §9 open question #1: do not replicate the original's swap).
type Range struct {
	Header
	Start float64
	End   float64
}

func NewRange(start, end float64) *Range {
	if start > end {
		start, end = end, start
	}
	return &Range{Header: Header{Tag: ObjRangeKind}, Start: start, End: end}
}

// Array is a growable value array, the user-visible collection type.
type Array struct {
	Header
	Elements []Value
}

func NewArray(elements []Value) *Array {
	return &Array{Header: Header{Tag: ObjArrayKind}, Elements: elements}
}
