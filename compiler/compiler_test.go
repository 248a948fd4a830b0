package compiler

import (
	"bytes"
	"testing"

	"github.com/dr8co/periwinkle/builtin"
	"github.com/dr8co/periwinkle/code"
	"github.com/dr8co/periwinkle/lexer"
	"github.com/dr8co/periwinkle/object"
	"github.com/dr8co/periwinkle/parser"
)

// compile lowers src to its root code object, failing the test on any
// parse or compile error.
func compile(t *testing.T, src string) *object.CodeObject {
	t.Helper()
	p := parser.New(lexer.New(src))
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	c := New(builtin.Names())
	co := c.Compile(program)
	if len(c.Errors()) != 0 {
		t.Fatalf("compile errors: %v", c.Errors())
	}
	return co
}

// compileExpectingErrors compiles src and fails unless at least one
// compile error was collected.
func compileExpectingErrors(t *testing.T, src string) []string {
	t.Helper()
	p := parser.New(lexer.New(src))
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	c := New(builtin.Names())
	c.Compile(program)
	if len(c.Errors()) == 0 {
		t.Fatal("expected compile errors, got none")
	}
	return c.Errors()
}

func TestBreakOutsideLoopIsCompileError(t *testing.T) {
	compileExpectingErrors(t, `завершити`)
}

func TestContinueOutsideLoopIsCompileError(t *testing.T) {
	compileExpectingErrors(t, `продовжити`)
}

func TestDuplicateParameterNameIsCompileError(t *testing.T) {
	tests := []string{
		`функція ф(а, а) { повернути а }`,
		`функція ф(а, а = 1) { повернути а }`,
		`функція ф(а, *а) { повернути а }`,
	}
	for _, src := range tests {
		compileExpectingErrors(t, src)
	}
}

func TestBreakInsideLoopBodyIsAccepted(t *testing.T) {
	compile(t, `
поки (істина) {
	завершити
}
`)
}

// Every jump operand must land inside the instruction stream, in the
// root code object and every nested one.
func TestJumpTargetsAreInBounds(t *testing.T) {
	co := compile(t, `
і = 0
поки (і менше 10) {
	і = і + 1
	якщо (і == 5) {
		продовжити
	} або якщо (і більше 7) {
		завершити
	} інакше {
		друк(і)
	}
}
функція ф(а) {
	для кожного х в [1, 2, 3] {
		якщо (х є не нич та а або хиба) {
			повернути х
		}
	}
}
`)
	checkJumpTargets(t, co)
}

func checkJumpTargets(t *testing.T, co *object.CodeObject) {
	t.Helper()
	ins := co.Instructions
	i := 0
	for i < len(ins) {
		def, err := code.Lookup(ins[i])
		if err != nil {
			t.Fatalf("%s: undecodable instruction at %d: %v", co.Name, i, err)
		}
		operands, read := code.ReadOperands(def, ins[i+1:])
		switch code.Opcode(ins[i]) {
		case code.OpJump, code.OpJumpIfTrue, code.OpJumpIfFalse,
			code.OpJumpIfTrueOrPop, code.OpJumpIfFalseOrPop,
			code.OpForEach, code.OpCatch:
			target := operands[0]
			if target < 0 || target >= len(ins) {
				t.Errorf("%s: %s at %d jumps out of bounds: %d (size %d)", co.Name, def.Name, i, target, len(ins))
			}
		}
		i += read + 1
	}
	for _, c := range co.Constants {
		if nested, ok := c.(*object.CodeObject); ok {
			checkJumpTargets(t, nested)
		}
	}
}

// Protected regions must satisfy Start < FirstHandler <= End, with the
// finally address (when present) between them.
func TestProtectedRegionInvariants(t *testing.T) {
	co := compile(t, `
спробувати {
	спробувати {
		а = 1
	} піймати ПомилкаЗначення {
		а = 2
	}
} піймати ПомилкаТипу як е {
	а = 3
} нарешті {
	б = 4
}
`)
	if len(co.Regions) != 2 {
		t.Fatalf("expected 2 protected regions, got %d", len(co.Regions))
	}
	for i, r := range co.Regions {
		if !(r.Start < r.FirstHandler && r.FirstHandler <= r.End) {
			t.Errorf("region %d violates Start < FirstHandler <= End: %+v", i, r)
		}
		if r.End >= len(co.Instructions) {
			t.Errorf("region %d End %d outside instructions (size %d)", i, r.End, len(co.Instructions))
		}
		if r.Finally != 0 && !(r.FirstHandler <= r.Finally && r.Finally <= r.End) {
			t.Errorf("region %d finally address out of order: %+v", i, r)
		}
	}
	// Inner regions are recorded before the outer ones that enclose them.
	if !(co.Regions[0].Start > co.Regions[1].Start) {
		t.Errorf("expected the inner region first: %+v", co.Regions)
	}
}

// A function that closes over an outer local compiles to a nested code
// object capturing one free variable, with the owning function holding
// the promoted cell.
func TestClosureCaptureLayout(t *testing.T) {
	co := compile(t, `
функція зовнішня() {
	х = 1
	функція внутрішня() {
		повернути х
	}
	повернути внутрішня
}
`)
	outer := findCode(t, co, "зовнішня")
	if outer.NumCells != 1 {
		t.Errorf("expected зовнішня to own 1 cell, got %d", outer.NumCells)
	}
	inner := findCode(t, outer, "внутрішня")
	if inner.NumFree != 1 {
		t.Errorf("expected внутрішня to capture 1 free variable, got %d", inner.NumFree)
	}
	if outer.Self == nil || inner.Self == nil {
		t.Error("expected every function code object to carry a self slot")
	}
	if co.Self != nil {
		t.Error("expected the program root to have no self slot")
	}
}

func findCode(t *testing.T, co *object.CodeObject, name string) *object.CodeObject {
	t.Helper()
	for _, c := range co.Constants {
		if nested, ok := c.(*object.CodeObject); ok && nested.Name == name {
			return nested
		}
	}
	t.Fatalf("code object %q not found among %s's constants", name, co.Name)
	return nil
}

// Parameters promoted to cells appear in ParamLayout as cell slots, so
// the call prologue copies their initial argument values into cells.
func TestCapturedParameterBecomesCellSlot(t *testing.T) {
	co := compile(t, `
функція зовнішня(а, б) {
	функція внутрішня() {
		повернути а
	}
	повернути внутрішня
}
`)
	outer := findCode(t, co, "зовнішня")
	if len(outer.ParamLayout) != 2 {
		t.Fatalf("expected 2 parameter slots, got %d", len(outer.ParamLayout))
	}
	if !outer.ParamLayout[0].Cell {
		t.Error("expected captured parameter а to be a cell slot")
	}
	if outer.ParamLayout[1].Cell {
		t.Error("expected uncaptured parameter б to stay a local slot")
	}
}

// Two compilations of the same source are byte-identical: constant-pool
// order, name-table order, and instruction assignment are deterministic.
func TestCompilationIsDeterministic(t *testing.T) {
	src := `
функція ф(х, у = 2, *решта) {
	спробувати {
		повернути х + у
	} піймати ПомилкаТипу як е {
		друк(е)
	} нарешті {
		друк("готово")
	}
}
а = ф(1, у: 3)
`
	first := compile(t, src)
	second := compile(t, src)
	if !bytes.Equal(first.Instructions, second.Instructions) {
		t.Error("two compilations produced different instruction streams")
	}
	if len(first.Constants) != len(second.Constants) {
		t.Errorf("constant pools differ in size: %d vs %d", len(first.Constants), len(second.Constants))
	}
}

// The line table is sparse and monotone: instructions compiled from one
// source line share the entry keyed at the run's first instruction.
func TestLineTableCoversFirstInstruction(t *testing.T) {
	co := compile(t, `
а = 1
б = 2
`)
	if co.LineForIP(0) == 0 {
		t.Error("expected a line recorded at or before instruction 0")
	}
	if got := co.LineForIP(len(co.Instructions) - 1); got < co.LineForIP(0) {
		t.Errorf("line table not monotone: line %d at end before line %d at start", got, co.LineForIP(0))
	}
}
