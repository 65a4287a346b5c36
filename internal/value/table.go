package value

// entry is a single slot in a Table. A nil Key marks the slot
// unoccupied; among unoccupied slots, Tombstone distinguishes "never
// used" (Value.IsEmpty, i.e. plain empty) from "deleted"
// (Value == Bool(true), per spec §3.4's `{empty, true}` tombstone
// encoding, mirrored here as Tombstone bool for clarity).
type entry struct {
	Key       *String
	Val       Value
	Tombstone bool
}

// Table is an open-addressing hash table with linear probing, FNV-1a
// string hashing, and tombstone deletion (spec §3.4, §4.5). It backs
// the VM's global-name table, string intern table, class method
// tables, instance field tables, and the user-visible Table object —
// all of loxie's key/value storage is this one structure, keyed always
// by interned strings.
type Table struct {
	Header
	entries []entry
	count   int // live entries + tombstones
}

const tableMaxLoad = 0.75

// NewTable returns an empty table. Capacity grows lazily on first
// insert.
func NewTable() *Table {
	return &Table{Header: Header{Tag: ObjTableKind}}
}

// Len reports the number of live (non-tombstone, non-empty) entries.
func (t *Table) Len() int {
	n := 0
	for _, e := range t.entries {
		if e.Key != nil && !e.Tombstone {
			n++
		}
	}
	return n
}

// Get returns the value stored under key, and whether it was present.
func (t *Table) Get(key *String) (Value, bool) {
	if len(t.entries) == 0 {
		return Empty, false
	}
	e := t.find(key)
	if e.Key == nil {
		return Empty, false
	}
	return e.Val, true
}

// Set inserts or overwrites key -> val. Returns true if this created a
// brand new key (as opposed to overwriting one already present).
func (t *Table) Set(key *String, val Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		t.grow(growCapacity(len(t.entries)))
	}

	idx := t.findIndex(key)
	e := &t.entries[idx]
	isNewKey := e.Key == nil
	if isNewKey && !e.Tombstone {
		t.count++
	}
	e.Key = key
	e.Val = val
	e.Tombstone = false
	return isNewKey
}

// Delete removes key, leaving a tombstone so the probe chain for keys
// that follow it is preserved.
func (t *Table) Delete(key *String) bool {
	if len(t.entries) == 0 {
		return false
	}
	idx := t.findIndex(key)
	e := &t.entries[idx]
	if e.Key == nil {
		return false
	}
	e.Key = nil
	e.Val = Bool(true)
	e.Tombstone = true
	return true
}

// FindString is the specialized interning lookup of spec §4.5: it
// compares length, hash, and finally bytes without requiring a *String
// to already exist for the query.
func (t *Table) FindString(chars string, hash uint32) *String {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	idx := hash & mask
	for {
		e := &t.entries[idx]
		if e.Key == nil {
			if !e.Tombstone {
				return nil
			}
		} else if e.Key.Hash == hash && e.Key.Chars == chars {
			return e.Key
		}
		idx = (idx + 1) & mask
	}
}

// Each iterates live entries in storage order. Order is not
// significant to the language semantics and may change across inserts.
func (t *Table) Each(fn func(key string, val Value)) {
	for _, e := range t.entries {
		if e.Key != nil && !e.Tombstone {
			fn(e.Key.Chars, e.Val)
		}
	}
}

// EachEntry iterates live entries exposing the actual interned *String
// key object, rather than a copy of its bytes — the collector's mark
// phase needs the real pointer so marking a key also marks the one
// live String object behind it.
func (t *Table) EachEntry(fn func(key *String, val Value)) {
	for _, e := range t.entries {
		if e.Key != nil && !e.Tombstone {
			fn(e.Key, e.Val)
		}
	}
}

// CopyInto copies every live entry of t into dst, reusing the same
// interned key pointers (no re-hashing or re-interning), used by
// `inherit` to seed a subclass's method table from its superclass
// (spec §4.3.4).
func (t *Table) CopyInto(dst *Table) {
	t.EachEntry(func(key *String, val Value) {
		dst.Set(key, val)
	})
}

func (t *Table) find(key *String) entry {
	idx := t.findIndex(key)
	return t.entries[idx]
}

// findIndex walks the probe sequence starting at hash mod capacity,
// remembering the first tombstone seen, and stops at the first truly
// empty slot or a key-equal slot (spec §4.5).
func (t *Table) findIndex(key *String) uint32 {
	mask := uint32(len(t.entries) - 1)
	idx := key.Hash & mask
	var tombstone uint32
	foundTombstone := false
	for {
		e := &t.entries[idx]
		if e.Key == nil {
			if !e.Tombstone {
				if foundTombstone {
					return tombstone
				}
				return idx
			}
			if !foundTombstone {
				tombstone = idx
				foundTombstone = true
			}
		} else if e.Key == key || (e.Key.Hash == key.Hash && e.Key.Chars == key.Chars) {
			return idx
		}
		idx = (idx + 1) & mask
	}
}

func growCapacity(old int) int {
	if old < 8 {
		return 8
	}
	return old * 2
}

// grow resizes to newCap, rehashing only live entries; tombstones
// disappear (spec §3.4).
func (t *Table) grow(newCap int) {
	fresh := make([]entry, newCap)
	old := t.entries
	t.entries = fresh
	t.count = 0
	for _, e := range old {
		if e.Key == nil {
			continue
		}
		idx := t.findIndex(e.Key)
		fresh[idx] = entry{Key: e.Key, Val: e.Val}
		t.count++
	}
}

// children returns every Value reachable directly from this table, for
// the GC's blacken step.
func (t *Table) children(visit func(Value)) {
	for _, e := range t.entries {
		if e.Key != nil && !e.Tombstone {
			visit(Obj(e.Key))
			visit(e.Val)
		}
	}
}

// Children exposes the GC hook above to the gc package.
func (t *Table) Children(visit func(Value)) { t.children(visit) }
