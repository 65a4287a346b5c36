package vm

import "github.com/kristofer/loxie/internal/value"

// Globals is the VM's indexed global-variable store (spec §4.3.2,
// §4.4.1): a name -> slot-index table populated once, at compile
// time, by whichever compiler shares this VM instance, plus a
// slot-indexed value array populated at run time as `def-global`/
// `def-const` instructions execute. Splitting name resolution
// (compile time) from storage (run time) lets get/set-global opcodes
// carry a plain integer operand instead of re-hashing a name string on
// every access.
type Globals struct {
	Names  *value.Table // interned name -> Value(Number(slot index))
	Values []value.Value
	Consts []bool // Consts[i] true once slot i has been defined via def-const
}

// NewGlobals returns an empty global table.
func NewGlobals() *Globals {
	return &Globals{Names: value.NewTable()}
}

// Resolve returns the slot index for name, allocating a fresh
// uninitialised (`empty`) slot the first time a given name is seen.
// Called by the compiler while resolving an identifier as a global
// (spec §4.3.2 step 3).
func (g *Globals) Resolve(name *value.String) int {
	if v, ok := g.Names.Get(name); ok {
		return int(v.Number)
	}
	idx := len(g.Values)
	g.Names.Set(name, value.Number(float64(idx)))
	g.Values = append(g.Values, value.Empty)
	g.Consts = append(g.Consts, false)
	return idx
}

// Define stores v into slot idx (a `def-global`/`def-const`
// instruction), marking the slot constant when isConst is set.
func (g *Globals) Define(idx int, v value.Value, isConst bool) {
	g.Values[idx] = v
	g.Consts[idx] = isConst
}

// Get reads slot idx. The second result is false if the slot has
// never been defined (still `empty`), per spec §4.4.7.
func (g *Globals) Get(idx int) (value.Value, bool) {
	v := g.Values[idx]
	if v.IsEmpty() {
		return value.Nil, false
	}
	return v, true
}

// Set overwrites slot idx, rejecting assignment to an undefined or
// constant slot (spec §4.4.7).
func (g *Globals) Set(idx int, v value.Value) error {
	if g.Values[idx].IsEmpty() {
		return errUndefinedGlobalSlot
	}
	if g.Consts[idx] {
		return errAssignToConstGlobal
	}
	g.Values[idx] = v
	return nil
}
