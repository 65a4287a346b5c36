package compiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/loxie/internal/vm"
)

// run compiles and executes source against a fresh VM, returning
// everything `print` wrote. It mirrors the wiring cmd/loxie performs
// (compile, EnsureStack, wrap in a closure, Interpret), so these tests
// exercise the same compiler/vm seam the CLI boundary does.
func run(t *testing.T, source string) string {
	t.Helper()
	var out bytes.Buffer
	v := vm.New(vm.Options{Stdout: &out})
	c := New(v.Globals, v.GC)

	fn, err := c.Compile(source)
	require.NoError(t, err, "compile error for:\n%s", source)

	v.EnsureStack(c.MaxStackHeight())
	closure := v.GC.AllocateClosure(fn)
	err = v.Interpret(closure)
	require.NoError(t, err, "runtime error for:\n%s", source)
	return out.String()
}

func runErr(t *testing.T, source string) error {
	t.Helper()
	v := vm.New(vm.Options{Stdout: &bytes.Buffer{}})
	c := New(v.Globals, v.GC)
	fn, err := c.Compile(source)
	if err != nil {
		return err
	}
	v.EnsureStack(c.MaxStackHeight())
	closure := v.GC.AllocateClosure(fn)
	return v.Interpret(closure)
}

func lines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestArithmeticAndPrecedence(t *testing.T) {
	out := run(t, `print 1 + 2 * 3;`)
	assert.Equal(t, []string{"7"}, lines(out))
}

func TestStringConcatenation(t *testing.T) {
	out := run(t, `print "foo" + "bar";`)
	assert.Equal(t, []string{"foobar"}, lines(out))
}

func TestGlobalsAndConst(t *testing.T) {
	out := run(t, `
let x = 1;
const y = 2;
print x + y;
`)
	assert.Equal(t, []string{"3"}, lines(out))
}

func TestConstAssignmentIsRuntimeError(t *testing.T) {
	err := runErr(t, `
const x = 1;
x = 2;
`)
	assert.Error(t, err)
}

func TestIfElse(t *testing.T) {
	out := run(t, `
if (1 < 2) { print "yes"; } else { print "no"; }
`)
	assert.Equal(t, []string{"yes"}, lines(out))
}

func TestWhileLoop(t *testing.T) {
	out := run(t, `
let i = 0;
while (i < 3) {
  print i;
  i = i + 1;
}
`)
	assert.Equal(t, []string{"0", "1", "2"}, lines(out))
}

func TestForLoopWithBreakAndContinue(t *testing.T) {
	out := run(t, `
for (let i = 0; i < 5; i = i + 1) {
  if (i == 1) { continue; }
  if (i == 3) { break; }
  print i;
}
`)
	assert.Equal(t, []string{"0", "2"}, lines(out))
}

func TestSwitchCaseWithArrayLiteralPatchesBreakCorrectly(t *testing.T) {
	// An array literal's 3-byte element-count operand sits in the case
	// body that precedes the implicit break; PatchBreaks' instruction-
	// aware scan must step over it rather than misreading one of its
	// bytes as OpBreak (or missing the real one).
	out := run(t, `
let x = 1;
switch (x) {
  case 1:
    let a = [1, 2, 3];
    print a[2];
    break;
  default:
    print "other";
}
`)
	assert.Equal(t, []string{"3"}, lines(out))
}

func TestSwitchNoFallthrough(t *testing.T) {
	out := run(t, `
let n = 2;
switch (n) {
  case 1: print "one"; break;
  case 2: print "two"; break;
  default: print "other";
}
`)
	assert.Equal(t, []string{"two"}, lines(out))
}

func TestFunctionAndRecursion(t *testing.T) {
	out := run(t, `
func fib(n) {
  if (n < 2) { return n; }
  return fib(n - 1) + fib(n - 2);
}
print fib(10);
`)
	assert.Equal(t, []string{"55"}, lines(out))
}

func TestClosureCapturesUpvalue(t *testing.T) {
	out := run(t, `
func makeCounter() {
  let count = 0;
  func increment() {
    count = count + 1;
    return count;
  }
  return increment;
}
let counter = makeCounter();
print counter();
print counter();
print counter();
`)
	assert.Equal(t, []string{"1", "2", "3"}, lines(out))
}

func TestNestedClosureCapturesOuterParameter(t *testing.T) {
	out := run(t, `
func make(n) {
  func inner() {
    return n;
  }
  return inner;
}
print make(1)();
print make(2)();
`)
	assert.Equal(t, []string{"1", "2"}, lines(out))
}

func TestClassesAndMethods(t *testing.T) {
	out := run(t, `
class Greeter {
  Greeter(name) {
    this.name = name;
  }
  greet() {
    print "hello " + this.name;
  }
}
let g = Greeter("loxie");
g.greet();
`)
	assert.Equal(t, []string{"hello loxie"}, lines(out))
}

func TestSingleInheritanceAndSuper(t *testing.T) {
	out := run(t, `
class Animal {
  speak() {
    print "...";
  }
}
class Dog < Animal {
  speak() {
    super.speak();
    print "woof";
  }
}
let d = Dog();
d.speak();
`)
	assert.Equal(t, []string{"...", "woof"}, lines(out))
}

func TestArraysAndSubscript(t *testing.T) {
	out := run(t, `
let a = [1, 2, 3];
a[1] = 9;
print a[0];
print a[1];
print a;
`)
	assert.Equal(t, []string{"1", "9", "[1, 9, 3]"}, lines(out))
}

func TestTablesAndSubscript(t *testing.T) {
	out := run(t, `
let t = {name: "loxie", version: 1};
print t["name"];
`)
	assert.Equal(t, []string{"loxie"}, lines(out))
}

func TestRangeLiteral(t *testing.T) {
	out := run(t, `print 1..5;`)
	assert.Equal(t, []string{"1..5"}, lines(out))
}

func TestRangeNormalizesDescendingOperands(t *testing.T) {
	out := run(t, `print 5..1;`)
	assert.Equal(t, []string{"1..5"}, lines(out))
}

func TestLogicalAndOrShortCircuit(t *testing.T) {
	out := run(t, `
func loud(v) {
  print v;
  return v;
}
print loud(false) and loud(true);
print loud(true) or loud(false);
`)
	// The second operand of `and` is never evaluated when the first is
	// falsy, and the second operand of `or` is never evaluated when the
	// first is truthy.
	assert.Equal(t, []string{"false", "false", "true", "true"}, lines(out))
}

func TestConditionalExpression(t *testing.T) {
	out := run(t, `print (1 < 2) ? "a" : "b";`)
	assert.Equal(t, []string{"a"}, lines(out))
}

func TestUndefinedGlobalIsRuntimeError(t *testing.T) {
	err := runErr(t, `print undefinedThing;`)
	assert.Error(t, err)
}

func TestCompileErrorReturnsErrCompile(t *testing.T) {
	v := vm.New(vm.Options{})
	c := New(v.Globals, v.GC)
	_, err := c.Compile(`let = 1;`)
	assert.ErrorIs(t, err, errCompile)
}
