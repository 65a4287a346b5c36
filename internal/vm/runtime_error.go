package vm

import "github.com/kristofer/loxie/internal/chunk"

// runtimeError builds a RuntimeError carrying a full stack trace
// (stored outermost frame first; RuntimeError.Error prints it
// innermost first), then resets VM state per spec §7: frames, stack, and
// open upvalues are all cleared so a REPL session can keep going
// after a runtime error.
func (v *VM) runtimeError(cause error) error {
	trace := make([]Frame, 0, v.frameCount)
	for i := 0; i < v.frameCount; i++ {
		fr := &v.frames[i]
		fn := fr.closure.Function
		name := "<script>"
		if fn.Name != nil {
			name = fn.Name.Chars
		}
		ch := fr.closure.Function.Chunk.(*chunk.Chunk)
		line := ch.LineOf(fr.ip - 1)
		trace = append(trace, Frame{FuncName: name, Line: line})
	}

	rerr := newRuntimeError(cause.Error(), trace)

	v.frameCount = 0
	v.stackTop = 0
	v.openUpvalues = nil

	return rerr
}
