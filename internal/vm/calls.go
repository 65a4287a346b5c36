package vm

import "github.com/kristofer/loxie/internal/value"

// callValue dispatches on the callee's kind (spec §4.4.3): closures
// push a new frame, natives invoke synchronously, classes instantiate
// (and call a constructor if one exists), bound methods rebind the
// receiver and call through to the underlying closure.
func (v *VM) callValue(callee value.Value, argc int) error {
	if !callee.IsObject() {
		return errNotCallable
	}
	switch callee := callee.Obj.(type) {
	case *value.Closure:
		return v.call(callee, argc)
	case *value.Native:
		return v.callNative(callee, argc)
	case *value.Class:
		return v.instantiate(callee, argc)
	case *value.BoundMethod:
		v.stack[v.stackTop-argc-1] = callee.Receiver
		return v.call(callee.Method, argc)
	default:
		return errNotCallable
	}
}

func (v *VM) call(closure *value.Closure, argc int) error {
	if argc != closure.Function.Arity {
		return errWrongArgCount
	}
	if v.frameCount == FramesMax {
		return errStackOverflow
	}
	base := v.stackTop - argc - 1
	v.frames[v.frameCount] = frame{closure: closure, ip: 0, base: base}
	v.frameCount++
	return nil
}

func (v *VM) callNative(n *value.Native, argc int) error {
	if n.Arity != -1 && n.Arity != argc {
		return errWrongArgCount
	}
	args := make([]value.Value, argc)
	copy(args, v.stack[v.stackTop-argc:v.stackTop])
	result, err := n.Fn(args)
	if err != nil {
		return err
	}
	if result.IsEmpty() {
		return errNativeFailed
	}
	v.stackTop -= argc + 1
	v.push(result)
	return nil
}

func (v *VM) instantiate(class *value.Class, argc int) error {
	inst := v.GC.AllocateInstance(class)
	v.stack[v.stackTop-argc-1] = value.Obj(inst)
	if class.Constructor != nil {
		return v.call(class.Constructor, argc)
	}
	if argc != 0 {
		return errWrongArgCount
	}
	return nil
}

// makeClosure executes the `closure` opcode: allocate a Closure around
// the function constant at idx, then for each upvalue descriptor
// either capture the enclosing frame's live stack slot or inherit the
// enclosing closure's already-captured upvalue (spec §4.4.4). The
// descriptors themselves are NOT read from fn.UpvalueDescs — the
// compiler also emits one {is-local byte, 24-bit index} pair per
// upvalue into the code stream right after this opcode's pool index
// (statements.go's function), and the dispatch loop's ip must advance
// past those bytes exactly as it does for any other operand.
func (v *VM) makeClosure(idx int) error {
	fn := v.constant(idx).Obj.(*value.Function)
	enclosing := v.currentFrame().closure
	v.GC.Lock()
	cl := v.GC.AllocateClosure(fn)
	for i := range fn.UpvalueDescs {
		isLocal := v.readByte() != 0
		index := v.readU24()
		if isLocal {
			cl.Upvalues[i] = v.captureUpvalue(v.currentFrame().base + index)
		} else {
			cl.Upvalues[i] = enclosing.Upvalues[index]
		}
	}
	v.GC.Unlock()
	v.push(value.Obj(cl))
	return nil
}
