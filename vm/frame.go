package vm

import (
	"github.com/dr8co/periwinkle/code"
	"github.com/dr8co/periwinkle/object"
)

// Frame represents one active call's execution state. Generalizes
// Kong's Frame (cl, ip, basePointer into a shared stack) with
// Periwinkle's richer storage: locals and cells live in frame-owned
// slices rather than inline stack slots, since Go's garbage collector
// already traces them without needing the original's contiguous
// bp/freevars stack addressing. The shared operand stack (vm.stack) is still used for
// expression evaluation and argument passing, exactly as in Kong.
type Frame struct {
	cl *object.Closure
	ip int

	// locals holds this call's positional, variadic, and default
	// parameter slots not promoted to a cell, plus every other declared
	// local, indexed the way the compiler assigned local slots.
	locals []object.Value

	// cells holds the Cell objects this frame's own code owns (declared
	// locals captured by a nested closure); free holds the Cell objects
	// captured from an enclosing frame, supplied by the closure at
	// OpMakeFunction time. Index i < len(cells) resolves to cells[i];
	// i >= len(cells) resolves to free[i-len(cells)], matching the
	// compiler's combined cellIndex/freeIndex addressing.
	cells []*object.Cell
	free  []*object.Cell

	// regionStackTops holds, for each of cl.Code.Regions (by index), the
	// operand-stack height TRY captured on entry, so a nested try inside
	// a handler or finally block never clobbers an enclosing region's
	// saved height.
	regionStackTops []int

	// pendingReraise records, by region index, an exception that fell
	// through every catch clause (or found none to try) and must resume
	// unwinding once that region's finally block (compiled to run at the
	// same address as a settled completion, see compiler.compileTryCatch)
	// finishes executing. Absence of an entry at END_TRY means the region
	// completed normally or was fully handled.
	pendingReraise map[int]*object.Exception
}

// markPendingReraise records that region idx's exception was not caught
// and must resume unwinding after its finally block runs.
func (f *Frame) markPendingReraise(idx int, exc *object.Exception) {
	if f.pendingReraise == nil {
		f.pendingReraise = make(map[int]*object.Exception)
	}
	f.pendingReraise[idx] = exc
}

// takePendingReraise reports and clears any exception left pending for
// region idx, for OpEndTry to consult once finally has run.
func (f *Frame) takePendingReraise(idx int) (*object.Exception, bool) {
	if f.pendingReraise == nil {
		return nil, false
	}
	exc, ok := f.pendingReraise[idx]
	if ok {
		delete(f.pendingReraise, idx)
	}
	return exc, ok
}

// NewFrame creates a new execution frame for a function call, with cl's
// own cell slots freshly allocated and its captured free-variable cells
// installed by reference from the closure.
func NewFrame(cl *object.Closure, locals []object.Value) *Frame {
	cells := make([]*object.Cell, cl.Code.NumCells)
	for i := range cells {
		cells[i] = &object.Cell{}
	}
	return &Frame{
		cl:              cl,
		ip:              -1,
		locals:          locals,
		cells:           cells,
		free:            cl.Free,
		regionStackTops: make([]int, len(cl.Code.Regions)),
	}
}

// Instructions retrieves the bytecode instructions of the compiled function associated with the current frame.
func (f *Frame) Instructions() code.Instructions {
	return f.cl.Code.Instructions
}

// cellAt resolves a combined cell/freevar slot index to its backing Cell.
func (f *Frame) cellAt(idx int) *object.Cell {
	if idx < len(f.cells) {
		return f.cells[idx]
	}
	return f.free[idx-len(f.cells)]
}
