package vm

import (
	"testing"

	"github.com/dr8co/periwinkle/builtin"
	"github.com/dr8co/periwinkle/compiler"
	"github.com/dr8co/periwinkle/lexer"
	"github.com/dr8co/periwinkle/object"
	"github.com/dr8co/periwinkle/parser"
)

// run lexes, parses, compiles, and executes src end to end, failing the
// test immediately on any parse or compile error. It returns the VM so
// callers can inspect globals afterward.
func run(t *testing.T, src string) *VM {
	t.Helper()
	l := lexer.New(src)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}

	comp := compiler.New(builtin.Names())
	co := comp.Compile(program)
	if len(comp.Errors()) != 0 {
		t.Fatalf("compile errors: %v", comp.Errors())
	}

	machine := New(co)
	if exc := machine.Run(); exc != nil {
		t.Fatalf("uncaught exception: %s", exc.Inspect())
	}
	return machine
}

func global(t *testing.T, vm *VM, name string) object.Value {
	t.Helper()
	v, ok := vm.Globals()[name]
	if !ok {
		t.Fatalf("global %q not set", name)
	}
	return v
}

func wantInt(t *testing.T, v object.Value, want int64) {
	t.Helper()
	i, ok := v.(*object.Integer)
	if !ok {
		t.Fatalf("expected Integer, got %T (%s)", v, v.Inspect())
	}
	if i.Value != want {
		t.Fatalf("expected %d, got %d", want, i.Value)
	}
}

// Fibonacci via closure. A generator closure captures and mutates two
// counters across calls; successive calls must observe the previous
// call's mutation through the shared cells.
func TestFibonacciClosure(t *testing.T) {
	src := `
функція зробити_лічильник() {
	x = 0
	y = 1
	функція далі() {
		t = x
		x = y
		y = t + y
		повернути t
	}
	повернути далі
}
фн = зробити_лічильник()
а = фн()
б = фн()
д = фн()
г = фн()
`
	vm := run(t, src)
	wantInt(t, global(t, vm, "а"), 0)
	wantInt(t, global(t, vm, "б"), 1)
	wantInt(t, global(t, vm, "д"), 1)
	wantInt(t, global(t, vm, "г"), 2)
}

// A function can call itself through its own name: the call prologue
// binds the closure to its self slot on every invocation.
func TestSelfRecursion(t *testing.T) {
	src := `
функція факторіал(н) {
	якщо (н менше 2) {
		повернути 1
	}
	повернути н * факторіал(н - 1)
}
а = факторіал(5)
`
	vm := run(t, src)
	wantInt(t, global(t, vm, "а"), 120)
}

// Self-recursion also works for a nested function whose name lives in an
// enclosing function's scope rather than in the globals.
func TestNestedFunctionSelfRecursion(t *testing.T) {
	src := `
функція зовнішня(н) {
	функція сума_до(к) {
		якщо (к == 0) {
			повернути 0
		}
		повернути к + сума_до(к - 1)
	}
	повернути сума_до(н)
}
а = зовнішня(4)
`
	vm := run(t, src)
	wantInt(t, global(t, vm, "а"), 10)
}

// Try/catch/finally ordering.
func TestTryCatchFinallyOrdering(t *testing.T) {
	src := `
а = 0
б = 0
спробувати {
	а = 1
	кинути ПомилкаЗначення("погано")
} піймати ПомилкаЗначення як е {
	а = 2
} нарешті {
	б = а
}
`
	vm := run(t, src)
	wantInt(t, global(t, vm, "а"), 2)
	wantInt(t, global(t, vm, "б"), 2)
}

// runExpectingException is run's counterpart for programs whose exception
// is meant to escape: it returns the VM and the uncaught exception.
func runExpectingException(t *testing.T, src string) (*VM, *object.Exception) {
	t.Helper()
	l := lexer.New(src)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}

	comp := compiler.New(builtin.Names())
	co := comp.Compile(program)
	if len(comp.Errors()) != 0 {
		t.Fatalf("compile errors: %v", comp.Errors())
	}

	machine := New(co)
	exc := machine.Run()
	if exc == nil {
		t.Fatal("expected an uncaught exception, got none")
	}
	return machine, exc
}

// An exception raised inside a catch body still runs the region's finally
// block before resuming its unwind.
func TestCatchBodyRaiseStillRunsFinally(t *testing.T) {
	src := `
а = 0
б = 0
спробувати {
	спробувати {
		кинути ПомилкаЗначення("перша")
	} піймати ПомилкаЗначення {
		а = 1
		кинути ПомилкаТипу("друга")
	} нарешті {
		б = 1
	}
} піймати ПомилкаТипу як е {
	а = 2
}
`
	vm := run(t, src)
	wantInt(t, global(t, vm, "а"), 2)
	wantInt(t, global(t, vm, "б"), 1)
}

// A finally block runs even when no catch clause matches, and the
// exception keeps unwinding afterward.
func TestFinallyRunsWhenNoCatchMatches(t *testing.T) {
	src := `
б = 0
спробувати {
	кинути ПомилкаЗначення("повз")
} піймати ПомилкаТипу {
	б = 100
} нарешті {
	б = 1
}
`
	vm, exc := runExpectingException(t, src)
	if !exc.IsA(object.ValueErrorType) {
		t.Fatalf("expected the original ValueError to keep unwinding, got %s", exc.Exc.Name)
	}
	wantInt(t, global(t, vm, "б"), 1)
}

// An exception raised in a finally block replaces the one that was
// pending and propagates in its place.
func TestExceptionInFinallyReplacesPending(t *testing.T) {
	src := `
спробувати {
	кинути ПомилкаЗначення("стара")
} нарешті {
	кинути ПомилкаТипу("нова")
}
`
	_, exc := runExpectingException(t, src)
	if !exc.IsA(object.TypeErrorType) {
		t.Fatalf("expected the finally's TypeError to win, got %s", exc.Exc.Name)
	}
}

// The catch binding is deleted when its handler body completes, so a later
// read of the name is a NameError rather than the stale exception.
func TestCatchBindingIsDeletedAfterHandler(t *testing.T) {
	src := `
спробувати {
	кинути ПомилкаЗначення("тимчасова")
} піймати ПомилкаЗначення як е {
	а = 1
}
е
`
	_, exc := runExpectingException(t, src)
	if !exc.IsA(object.NameErrorType) {
		t.Fatalf("expected NameError reading the deleted binding, got %s", exc.Exc.Name)
	}
}

// for-each over an empty iterable runs the body zero times.
func TestForEachEmptyIterable(t *testing.T) {
	src := `
н = 0
для кожного х в [] {
	н = н + 1
}
`
	vm := run(t, src)
	wantInt(t, global(t, vm, "н"), 0)
}

// for-each visits list elements in order.
func TestForEachAccumulates(t *testing.T) {
	src := `
сума = 0
для кожного х в [1, 2, 3, 4] {
	сума = сума + х
}
`
	vm := run(t, src)
	wantInt(t, global(t, vm, "сума"), 10)
}

func wantBool(t *testing.T, v object.Value, want bool) {
	t.Helper()
	b, ok := v.(*object.Boolean)
	if !ok {
		t.Fatalf("expected Boolean, got %T (%s)", v, v.Inspect())
	}
	if b.Value != want {
		t.Fatalf("expected %v, got %v", want, b.Value)
	}
}

// завершити inside for-each leaves the loop (and pops the iterator).
func TestForEachBreak(t *testing.T) {
	src := `
сума = 0
для кожного х в [1, 2, 3, 4, 5] {
	якщо (х == 4) {
		завершити
	}
	сума = сума + х
}
`
	vm := run(t, src)
	wantInt(t, global(t, vm, "сума"), 6)
}

// A for-each broken out of on every iteration of an enclosing while must
// not leave anything behind on the operand stack; run it more times than
// the stack has slots so any leak would overflow.
func TestForEachBreakRepeatedStaysBalanced(t *testing.T) {
	src := `
сума = 0
і = 0
поки (і менше 3000) {
	і = і + 1
	для кожного х в [1, 2, 3, 4] {
		якщо (х == 3) {
			завершити
		}
		сума = сума + х
	}
}
`
	vm := run(t, src)
	wantInt(t, global(t, vm, "сума"), 9000)
}

// Tuples compare by element value, not element identity: two tuples built
// from equal but distinct values are equal.
func TestTupleEqualityIsElementwiseByValue(t *testing.T) {
	src := `
а = кортеж(1, 2) == кортеж(1, 2)
б = кортеж(1, 2) == кортеж(1, 3)
д = кортеж(1, "х") == кортеж(1, "х")
г = кортеж(1) != кортеж(1)
`
	vm := run(t, src)
	wantBool(t, global(t, vm, "а"), true)
	wantBool(t, global(t, vm, "б"), false)
	wantBool(t, global(t, vm, "д"), true)
	wantBool(t, global(t, vm, "г"), false)
}

// Named arguments + defaults.
func TestNamedArgumentsAndDefaults(t *testing.T) {
	src := `
функція f(x, y = 10, z = 20) {
	повернути x + y + z
}
а = f(1, z: 5)
б = f(1, 2, 3)
`
	vm := run(t, src)
	wantInt(t, global(t, vm, "а"), 16)
	wantInt(t, global(t, vm, "б"), 6)
}

// A named argument targeting a parameter already filled positionally is a
// runtime TypeError.
func TestNamedArgumentCollidesWithPositional(t *testing.T) {
	src := `
функція f(x, y = 10, z = 20) {
	повернути x + y + z
}
f(1, 2, y: 3)
`
	l := lexer.New(src)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	comp := compiler.New(builtin.Names())
	co := comp.Compile(program)
	if len(comp.Errors()) != 0 {
		t.Fatalf("compile errors: %v", comp.Errors())
	}
	machine := New(co)
	exc := machine.Run()
	if exc == nil {
		t.Fatal("expected an uncaught TypeError, got none")
	}
	if !exc.IsA(object.TypeErrorType) {
		t.Fatalf("expected TypeError, got %s", exc.Exc.Name)
	}
}

// A repeated named argument at the same call site is a compile-time error.
func TestRepeatedNamedArgumentIsCompileError(t *testing.T) {
	src := `
функція f(x, y = 1, z = 1) {
	повернути x
}
f(1, y: 2, y: 3)
`
	l := lexer.New(src)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	comp := compiler.New(builtin.Names())
	comp.Compile(program)
	if len(comp.Errors()) == 0 {
		t.Fatal("expected a compile error for a repeated named argument")
	}
}

// Sorting a list whose elements have no common ordering raises TypeError
// from впорядкувати() rather than panicking or silently producing garbage
// order.
func TestListSortHeterogeneousRaises(t *testing.T) {
	src := `
л = [3, "a", 2]
л.впорядкувати()
`
	l := lexer.New(src)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	comp := compiler.New(builtin.Names())
	co := comp.Compile(program)
	if len(comp.Errors()) != 0 {
		t.Fatalf("compile errors: %v", comp.Errors())
	}
	machine := New(co)
	exc := machine.Run()
	if exc == nil {
		t.Fatal("expected an uncaught TypeError from sorting a heterogeneous list")
	}
	if !exc.IsA(object.TypeErrorType) {
		t.Fatalf("expected TypeError, got %s", exc.Exc.Name)
	}
}

// Integer floor division rounds toward negative infinity.
func TestIntegerFloorDivision(t *testing.T) {
	src := `
а = 0 - 9
б = а \ 2
`
	vm := run(t, src)
	wantInt(t, global(t, vm, "б"), -5)
}

func TestDivisionByZeroRaises(t *testing.T) {
	src := `
а = 1 \ 0
`
	l := lexer.New(src)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	comp := compiler.New(builtin.Names())
	co := comp.Compile(program)
	if len(comp.Errors()) != 0 {
		t.Fatalf("compile errors: %v", comp.Errors())
	}
	machine := New(co)
	exc := machine.Run()
	if exc == nil {
		t.Fatal("expected DivisionByZeroError")
	}
	if !exc.IsA(object.DivisionByZeroErrorType) {
		t.Fatalf("expected DivisionByZeroError, got %s", exc.Exc.Name)
	}
}

// While loops with break/continue.
func TestWhileBreakContinue(t *testing.T) {
	src := `
і = 0
сума = 0
поки (і менше 10) {
	і = і + 1
	якщо (і == 5) {
		продовжити
	}
	якщо (і == 8) {
		завершити
	}
	сума = сума + і
}
`
	vm := run(t, src)
	// 1+2+3+4 (skip 5) + 6+7 = 23, stop before adding 8.
	wantInt(t, global(t, vm, "сума"), 23)
}

// A missing required argument is a runtime TypeError.
func TestMissingRequiredArgumentRaises(t *testing.T) {
	src := `
функція f(x, y) {
	повернути x + y
}
f(1)
`
	l := lexer.New(src)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	comp := compiler.New(builtin.Names())
	co := comp.Compile(program)
	if len(comp.Errors()) != 0 {
		t.Fatalf("compile errors: %v", comp.Errors())
	}
	machine := New(co)
	exc := machine.Run()
	if exc == nil {
		t.Fatal("expected TypeError for a missing required argument")
	}
	if !exc.IsA(object.TypeErrorType) {
		t.Fatalf("expected TypeError, got %s", exc.Exc.Name)
	}
}

// An uncaught exception accumulates one trace entry per frame it unwinds
// through, innermost first.
func TestUncaughtExceptionAccumulatesTrace(t *testing.T) {
	src := `
функція внутрішня() {
	кинути ПомилкаЗначення("бум")
}
функція зовнішня() {
	внутрішня()
}
зовнішня()
`
	l := lexer.New(src)
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	comp := compiler.New(builtin.Names())
	co := comp.Compile(program)
	if len(comp.Errors()) != 0 {
		t.Fatalf("compile errors: %v", comp.Errors())
	}
	machine := New(co)
	exc := machine.Run()
	if exc == nil {
		t.Fatal("expected an uncaught exception")
	}
	if len(exc.Trace) < 2 {
		t.Fatalf("expected at least 2 trace entries (внутрішня, зовнішня), got %d: %v", len(exc.Trace), exc.Trace)
	}
}

// Variadic parameters collect every positional argument beyond the
// declared arity into a tuple.
func TestVariadicParameterCollectsExcess(t *testing.T) {
	src := `
функція довжина_решти(перший, *решта) {
	повернути довжина(решта)
}
а = довжина_решти(1, 2, 3, 4)
б = довжина_решти(1)
`
	vm := run(t, src)
	wantInt(t, global(t, vm, "а"), 3)
	wantInt(t, global(t, vm, "б"), 0)
}
