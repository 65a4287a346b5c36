package vm

import "github.com/kristofer/loxie/internal/value"

// getProperty implements `a.name`: field lookup on an instance first,
// falling back to a bound method from the instance's class. Only
// instances have properties (spec §7).
func (v *VM) getProperty(name *value.String) error {
	receiver := v.peek(0)
	inst, ok := receiver.Obj.(*value.Instance)
	if !receiver.IsObject() || !ok {
		return errNotInstance
	}
	if fv, ok := inst.Fields.Get(name); ok {
		v.pop()
		v.push(fv)
		return nil
	}
	return v.bindMethod(inst.Class, name)
}

// setProperty implements `a.name = v`: only instances may have fields
// set on them.
func (v *VM) setProperty(name *value.String) error {
	receiver := v.peek(1)
	inst, ok := receiver.Obj.(*value.Instance)
	if !receiver.IsObject() || !ok {
		return errNotInstance
	}
	val := v.pop()
	inst.Fields.Set(name, val)
	v.pop()
	v.push(val)
	return nil
}

// bindMethod resolves name in class.Methods (inherited methods are
// found there because inheritance copies them in), wraps
// it with the current receiver as a BoundMethod, and pushes it.
func (v *VM) bindMethod(class *value.Class, name *value.String) error {
	mv, ok := class.Methods.Get(name)
	if !ok {
		return errUndefinedProperty
	}
	receiver := v.pop()
	bound := v.GC.AllocateBoundMethod(receiver, mv.Obj.(*value.Closure))
	v.push(value.Obj(bound))
	return nil
}

// defineMethod pops a just-compiled closure off the stack and installs
// it into the class beneath it under name; a method whose name equals
// the class name is additionally recorded as the constructor (spec
// §4.3.4).
func (v *VM) defineMethod(name *value.String) {
	method := v.pop().Obj.(*value.Closure)
	class := v.peek(0).Obj.(*value.Class)
	class.Methods.Set(name, value.Obj(method))
	if class.Name != nil && class.Name.Chars == name.Chars {
		class.Constructor = method
	}
}

// invoke fuses `a.name(...)` into one opcode: look up the method
// directly and call it, skipping the intermediate BoundMethod
// allocation getProperty+call would otherwise require.
func (v *VM) invoke(name *value.String, argc int) error {
	receiver := v.peek(argc)
	inst, ok := receiver.Obj.(*value.Instance)
	if !receiver.IsObject() || !ok {
		return errNotInstance
	}
	if fv, ok := inst.Fields.Get(name); ok {
		v.stack[v.stackTop-argc-1] = fv
		return v.callValue(fv, argc)
	}
	mv, ok := inst.Class.Methods.Get(name)
	if !ok {
		return errUndefinedProperty
	}
	return v.call(mv.Obj.(*value.Closure), argc)
}

// inherit copies every method of the superclass on the stack into the
// subclass above it (spec §4.3.4); the superclass operand must indeed
// be a class.
func (v *VM) inherit() error {
	superVal := v.peek(1)
	super, ok := superVal.Obj.(*value.Class)
	if !superVal.IsObject() || !ok {
		return errSuperclassNotClass
	}
	sub := v.peek(0).Obj.(*value.Class)
	super.Methods.CopyInto(sub.Methods)
	sub.Super = super
	sub.Constructor = super.Constructor

	subVal := v.pop()
	v.pop() // discard the superclass operand, keeping only the subclass
	v.push(subVal)
	return nil
}

// getSuper resolves name against the lexically enclosing superclass
// (pushed onto the stack by the compiler ahead of this opcode) against
// the current `this` receiver, producing a BoundMethod.
func (v *VM) getSuper(name *value.String) error {
	super := v.pop().Obj.(*value.Class)
	return v.bindMethod(super, name)
}

// superInvoke fuses `super.name(...)` the same way invoke fuses
// `a.name(...)`.
func (v *VM) superInvoke(name *value.String, argc int) error {
	super := v.pop().Obj.(*value.Class)
	mv, ok := super.Methods.Get(name)
	if !ok {
		return errUndefinedProperty
	}
	return v.call(mv.Obj.(*value.Closure), argc)
}
