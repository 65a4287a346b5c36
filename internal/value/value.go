// Package value implements loxie's polymorphic value representation and
// heap-object model (spec §3): a tagged scalar Value plus the set of
// heap Object variants it can reference, a FNV-1a open-addressed Table,
// and value-level arithmetic/printing helpers.
//
// This is the tagged-union encoding spec.md §9 calls out as the modern
// default; the NaN-boxed 64-bit alternative it also permits is not
// implemented here.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the discriminant of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObject
	// KindEmpty is the sentinel used by Table to distinguish an unused
	// slot from a real value, and by natives to signal an error
	// (spec §6.2, §3.1).
	KindEmpty
)

// Value is loxie's polymorphic scalar: nil, bool, number, object
// reference, or the internal "empty" sentinel. Const marks a value
// stored in a global slot as immutable (spec §3.1's "constant marker
// bit").
type Value struct {
	Kind   Kind
	Const  bool
	Bool   bool
	Number float64
	Obj    Object
}

// Nil is the singleton nil value.
var Nil = Value{Kind: KindNil}

// Empty is the hash-table "unused slot" / native-error sentinel.
var Empty = Value{Kind: KindEmpty}

// Bool constructs a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Number constructs a numeric value.
func Number(n float64) Value { return Value{Kind: KindNumber, Number: n} }

// Obj constructs an object-reference value.
func Obj(o Object) Value { return Value{Kind: KindObject, Obj: o} }

// AsConst returns v marked as a constant (used when defining `const`
// globals).
func (v Value) AsConst() Value {
	v.Const = true
	return v
}

// IsNil, IsBool, IsNumber, IsObject, IsEmpty test the Value's Kind.
func (v Value) IsNil() bool    { return v.Kind == KindNil }
func (v Value) IsBool() bool   { return v.Kind == KindBool }
func (v Value) IsNumber() bool { return v.Kind == KindNumber }
func (v Value) IsObject() bool { return v.Kind == KindObject }
func (v Value) IsEmpty() bool  { return v.Kind == KindEmpty }

// IsFalsy reports whether v is falsy: nil or false are falsy, every
// other value (including 0 and "") is truthy (spec §4.4.5).
func (v Value) IsFalsy() bool {
	return v.Kind == KindNil || (v.Kind == KindBool && !v.Bool)
}

// ObjKind reports the underlying object tag, or false if v is not an
// object.
func (v Value) ObjKind() (ObjKind, bool) {
	if v.Kind != KindObject || v.Obj == nil {
		return 0, false
	}
	return v.Obj.ObjTag(), true
}

// String returns the *String object backing v, or nil if v is not a
// string value.
func (v Value) String() *String {
	if s, ok := v.Obj.(*String); ok {
		return s
	}
	return nil
}

// Equal implements spec §3.1's value-equality rule: numbers compare
// numerically, every other kind compares by tag+payload identity, and
// objects compare by reference except interned strings, whose equality
// reduces to pointer equality by construction (so no special case is
// needed here beyond plain pointer comparison).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil, KindEmpty:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindNumber:
		return a.Number == b.Number
	case KindObject:
		return a.Obj == b.Obj
	default:
		return false
	}
}

// Print renders v the way the `print` statement does: numbers without
// a trailing ".0" when integral, strings raw (no quotes), and compound
// objects recursively.
func Print(v Value) string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.Number)
	case KindEmpty:
		return "<empty>"
	case KindObject:
		return printObject(v.Obj)
	default:
		return "<invalid>"
	}
}

func formatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if math.IsNaN(n) {
		return "nan"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func printObject(o Object) string {
	switch obj := o.(type) {
	case *String:
		return obj.Chars
	case *Function:
		if obj.Name == nil {
			return "<script>"
		}
		return fmt.Sprintf("<func %s>", obj.Name.Chars)
	case *Native:
		return fmt.Sprintf("<native %s>", obj.Name)
	case *Closure:
		return printObject(obj.Function)
	case *Class:
		return fmt.Sprintf("<class %s>", obj.Name.Chars)
	case *Instance:
		return fmt.Sprintf("<instance %s>", obj.Class.Name.Chars)
	case *BoundMethod:
		return printObject(obj.Method)
	case *Range:
		return fmt.Sprintf("%s..%s", formatNumber(obj.Start), formatNumber(obj.End))
	case *Array:
		parts := make([]string, len(obj.Elements))
		for i, e := range obj.Elements {
			parts[i] = Print(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Table:
		var b strings.Builder
		b.WriteByte('{')
		first := true
		obj.Each(func(key string, val Value) {
			if !first {
				b.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&b, "%q: %s", key, Print(val))
		})
		b.WriteByte('}')
		return b.String()
	case *Upvalue:
		return Print(obj.Get())
	default:
		return "<object>"
	}
}

// TypeName returns a short human-readable type name for error messages.
func TypeName(v Value) string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindEmpty:
		return "empty"
	case KindObject:
		switch v.Obj.(type) {
		case *String:
			return "string"
		case *Function, *Closure, *Native:
			return "function"
		case *Class:
			return "class"
		case *Instance:
			return "instance"
		case *BoundMethod:
			return "bound method"
		case *Range:
			return "range"
		case *Array:
			return "array"
		case *Table:
			return "table"
		case *Upvalue:
			return "upvalue"
		}
	}
	return "value"
}
