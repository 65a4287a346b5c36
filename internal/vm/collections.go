package vm

import "github.com/kristofer/loxie/internal/value"

// getSubscript implements `a[i]` for arrays (numeric, negative-from-end
// index), tables (string key), and strings (numeric index producing a
// fresh 1-byte interned string) — spec §4.4.6.
func (v *VM) getSubscript() error {
	idx := v.pop()
	target := v.pop()
	if !target.IsObject() {
		return errNotSubscriptable
	}
	switch obj := target.Obj.(type) {
	case *value.Array:
		i, err := arrayIndex(len(obj.Elements), idx)
		if err != nil {
			return err
		}
		v.push(obj.Elements[i])
		return nil
	case *value.Table:
		key := idx.String()
		if key == nil {
			return errNonStringTableKey
		}
		val, ok := obj.Get(key)
		if !ok {
			return errUndefinedProperty
		}
		v.push(val)
		return nil
	case *value.String:
		i, err := arrayIndex(len(obj.Chars), idx)
		if err != nil {
			return err
		}
		v.push(value.Obj(v.GC.AllocateString(string(obj.Chars[i]))))
		return nil
	default:
		return errNotSubscriptable
	}
}

// setSubscript implements `a[i] = v`: arrays and tables are mutable in
// place; strings are immutable, so indexed assignment into one is
// always a runtime error.
func (v *VM) setSubscript() error {
	val := v.pop()
	idx := v.pop()
	target := v.pop()
	if !target.IsObject() {
		return errNotSubscriptable
	}
	switch obj := target.Obj.(type) {
	case *value.Array:
		i, err := arrayIndex(len(obj.Elements), idx)
		if err != nil {
			return err
		}
		obj.Elements[i] = val
	case *value.Table:
		key := idx.String()
		if key == nil {
			return errNonStringTableKey
		}
		obj.Set(key, val)
	case *value.String:
		return errImmutableString
	default:
		return errNotSubscriptable
	}
	v.push(val)
	return nil
}

// arrayIndex normalizes a Value index against length n: negative
// indices count from the end, and anything outside [0, n) is a
// runtime error.
func arrayIndex(n int, idx value.Value) (int, error) {
	if !idx.IsNumber() {
		return 0, errOperandMustBeNumber
	}
	i := int(idx.Number)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, errIndexOutOfRange
	}
	return i, nil
}
