// Package vm implements Periwinkle's bytecode execution engine: the stack
// machine that walks a compiled object.CodeObject's instructions,
// dispatches operators through each operand's TypeDescriptor, implements
// the calling convention (positional/named/default/variadic arguments),
// and drives protected-region unwinding for try/catch/finally.
//
// The architecture follows what frame.go, code.go, and compiler.go
// already commit to (a flat operand stack, fixed-width instructions,
// absolute jump targets, one Frame per active call): a Monkey-style
// bytecode VM — an infinite fetch-decode-dispatch loop over a byte
// slice, indexed by a per-frame instruction pointer, with frames kept
// in a preallocated slice rather than a Go call stack so a deeply
// recursive Periwinkle program doesn't recurse the host Go runtime one
// frame per call.
package vm

import (
	"fmt"

	"github.com/dr8co/periwinkle/builtin"
	"github.com/dr8co/periwinkle/code"
	"github.com/dr8co/periwinkle/gc"
	"github.com/dr8co/periwinkle/object"
)

const (
	// StackSize bounds the shared operand stack. Unlike frame-owned
	// locals and cells, the operand stack is shared across every active
	// frame, exactly as in Kong's vm.
	StackSize = 2048

	// MaxFrames bounds call depth; exceeding it raises ВнутрішняПомилка
	// rather than overflowing the host Go stack, since frames are
	// allocated up front in a flat slice rather than via Go recursion.
	MaxFrames = 1024
)

// Rough per-allocation sizes fed to the collector's byte-budget
// threshold; exact values don't matter, only relative weight between a
// small fixed record (Cell) and a larger one (Closure).
const (
	cellTrackSize    = 32
	closureTrackSize = 96
	listBaseSize     = 24
	listElemSize     = 8
)

func listTrackSize(n int) int64 { return int64(listBaseSize + n*listElemSize) }

// VM executes one compiled program against a shared operand stack, global
// namespace, and garbage collector.
type VM struct {
	stack []object.Value
	sp    int

	globals map[string]object.Value

	frames      []*Frame
	framesIndex int

	gc *gc.GC

	halted   bool
	uncaught *object.Exception
}

// NewGlobals builds a fresh global namespace seeded with every built-in
// function and exception type, per package builtin's registry. The REPL
// keeps one of these alive across lines and hands it to a new VM for each
// line, so top-level bindings persist between evaluations without
// keeping stale frames or stack state around.
func NewGlobals() map[string]object.Value {
	m := make(map[string]object.Value, len(builtin.Registered))
	for _, e := range builtin.Registered {
		m[e.Name] = e.Value
	}
	return m
}

// New creates a VM for a single, one-shot run of mainCode with a fresh
// global namespace.
func New(mainCode *object.CodeObject) *VM {
	return NewWithGlobals(mainCode, NewGlobals())
}

// NewWithGlobals creates a VM for mainCode sharing an existing global
// namespace (the REPL's persistence mechanism).
func NewWithGlobals(mainCode *object.CodeObject, globals map[string]object.Value) *VM {
	vm := &VM{
		stack:   make([]object.Value, StackSize),
		globals: globals,
		frames:  make([]*Frame, MaxFrames),
		gc:      gc.New(),
	}
	root := &object.Closure{Code: mainCode}
	vm.frames[0] = NewFrame(root, makeLocals(mainCode.NumLocals))
	return vm
}

// Globals exposes the VM's global namespace, for the REPL to thread into
// the next line's VM.
func (vm *VM) Globals() map[string]object.Value { return vm.globals }

func makeLocals(n int) []object.Value {
	locals := make([]object.Value, n)
	for i := range locals {
		locals[i] = object.None
	}
	return locals
}

func (vm *VM) currentFrame() *Frame { return vm.frames[vm.framesIndex] }

func (vm *VM) pushFrame(f *Frame) {
	vm.framesIndex++
	vm.frames[vm.framesIndex] = f
}

func (vm *VM) popFrame() *Frame {
	f := vm.frames[vm.framesIndex]
	vm.framesIndex--
	return f
}

func (vm *VM) push(v object.Value) {
	if vm.sp >= StackSize {
		panic(object.NewException(object.InternalErrorType, "переповнення стеку"))
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() object.Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek() object.Value { return vm.stack[vm.sp-1] }

// LastPoppedStackElem returns the value most recently removed from the
// stack: popping only decrements sp, so the slot still holds it. The
// REPL uses this to display a top-level expression statement's value,
// since the compiler always follows one with OpPop.
func (vm *VM) LastPoppedStackElem() object.Value { return vm.stack[vm.sp] }

// Run executes until OpHalt or an uncaught exception, returning the
// latter (nil on a clean halt).
func (vm *VM) Run() (result *object.Exception) {
	defer func() {
		if r := recover(); r != nil {
			if exc, ok := r.(*object.Exception); ok {
				result = exc
				return
			}
			panic(r)
		}
	}()

	for !vm.halted {
		vm.gc.CollectIfDue(vm.gcRoots)

		f := vm.currentFrame()
		ins := f.Instructions()
		if f.ip+1 >= len(ins) {
			return nil
		}
		f.ip++
		ip := f.ip
		co := f.cl.Code

		op := code.Opcode(ins[ip])
		switch op {
		case code.OpHalt:
			return nil

		case code.OpPop:
			vm.pop()

		case code.OpDup:
			vm.push(vm.peek())

		case code.OpLoadConst:
			idx := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			vm.push(co.Constants[idx])

		case code.OpLoadGlobal:
			idx := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			name := co.Constants[idx].(*object.String).Value
			v, ok := vm.globals[name]
			if !ok {
				if vm.raiseAndCheck(object.NewExceptionf(object.NameErrorType, "ім'я %q не визначено", name)) {
					return vm.uncaught
				}
				continue
			}
			vm.push(v)

		case code.OpStoreGlobal:
			idx := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			name := co.Constants[idx].(*object.String).Value
			vm.globals[name] = vm.pop()

		case code.OpDeleteGlobal:
			idx := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			name := co.Constants[idx].(*object.String).Value
			delete(vm.globals, name)

		case code.OpLoadLocal:
			idx := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			vm.push(f.locals[idx])

		case code.OpStoreLocal:
			idx := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			f.locals[idx] = vm.pop()

		case code.OpDeleteLocal:
			idx := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			f.locals[idx] = object.None

		case code.OpGetCell:
			idx := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			vm.push(f.cellAt(idx))

		case code.OpLoadCell:
			idx := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			vm.push(f.cellAt(idx).Value)

		case code.OpStoreCell:
			idx := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			f.cellAt(idx).Value = vm.pop()

		case code.OpGetAttr:
			idx := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			name := co.Constants[idx].(*object.String).Value
			obj := vm.pop()
			v, ok := obj.Type().GetAttr(name)
			if !ok {
				if vm.raiseAndCheck(object.NewExceptionf(object.AttributeErrorType, "об'єкт типу %s не має атрибута %q", obj.Type().Name, name)) {
					return vm.uncaught
				}
				continue
			}
			vm.push(v)

		case code.OpLoadMethod:
			idx := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			name := co.Constants[idx].(*object.String).Value
			obj := vm.pop()
			resolved, ok := obj.Type().GetAttr(name)
			if !ok {
				if vm.raiseAndCheck(object.NewExceptionf(object.AttributeErrorType, "об'єкт типу %s не має атрибута %q", obj.Type().Name, name)) {
					return vm.uncaught
				}
				continue
			}
			switch resolved.(type) {
			case *object.NativeCallable, *object.Closure:
				vm.push(&object.BoundMethod{Receiver: obj, Method: resolved})
			default:
				vm.push(resolved)
			}

		case code.OpMakeFunction:
			numFree := int(ins[ip+1])
			numDefaults := int(ins[ip+2])
			f.ip += 2

			codeObj := vm.pop().(*object.CodeObject)
			defaults := make([]object.Value, numDefaults)
			for i := numDefaults - 1; i >= 0; i-- {
				defaults[i] = vm.pop()
			}
			free := make([]*object.Cell, numFree)
			for i := numFree - 1; i >= 0; i-- {
				free[i] = vm.pop().(*object.Cell)
			}
			cl := &object.Closure{Code: codeObj, Free: free, Defaults: defaults}
			vm.gc.Track(cl, closureTrackSize)
			vm.push(cl)

		case code.OpNot:
			v := vm.pop()
			vm.push(object.Bool(!object.Truthy(v)))

		case code.OpIs:
			b := vm.pop()
			a := vm.pop()
			vm.push(object.Bool(a == b))

		case code.OpIsNot:
			b := vm.pop()
			a := vm.pop()
			vm.push(object.Bool(a != b))

		case code.OpUnaryOp:
			slot := object.OperatorSlot(ins[ip+1])
			f.ip++
			v := vm.pop()
			fn, ok := v.Type().Unary[slot]
			if !ok {
				if vm.raiseAndCheck(object.NewExceptionf(object.TypeErrorType, "непідтримувана унарна операція для типу %s", v.Type().Name)) {
					return vm.uncaught
				}
				continue
			}
			result := fn(v)
			if exc, ok := result.(*object.Exception); ok {
				if vm.raiseAndCheck(exc) {
					return vm.uncaught
				}
				continue
			}
			vm.push(result)

		case code.OpBinaryOp:
			slot := object.OperatorSlot(ins[ip+1])
			f.ip++
			b := vm.pop()
			a := vm.pop()
			result := dispatchBinary(a, b, slot)
			if exc, ok := result.(*object.Exception); ok {
				if vm.raiseAndCheck(exc) {
					return vm.uncaught
				}
				continue
			}
			vm.push(result)

		case code.OpCompare:
			cmpOp := object.CompareOp(ins[ip+1])
			f.ip++
			b := vm.pop()
			a := vm.pop()
			result := dispatchCompare(a, b, cmpOp)
			if exc, ok := result.(*object.Exception); ok {
				if vm.raiseAndCheck(exc) {
					return vm.uncaught
				}
				continue
			}
			vm.push(result)

		case code.OpJump:
			target := int(code.ReadUint16(ins[ip+1:]))
			f.ip = target - 1

		case code.OpJumpIfTrue:
			target := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			if object.Truthy(vm.pop()) {
				f.ip = target - 1
			}

		case code.OpJumpIfFalse:
			target := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			if !object.Truthy(vm.pop()) {
				f.ip = target - 1
			}

		case code.OpJumpIfTrueOrPop:
			target := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			if object.Truthy(vm.peek()) {
				f.ip = target - 1
			} else {
				vm.pop()
			}

		case code.OpJumpIfFalseOrPop:
			target := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			if !object.Truthy(vm.peek()) {
				f.ip = target - 1
			} else {
				vm.pop()
			}

		case code.OpForEach:
			exitTarget := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			iterVal := vm.peek()
			next, ok := iterVal.Type().GetAttr("наступний")
			if !ok {
				if vm.raiseAndCheck(object.NewExceptionf(object.TypeErrorType, "об'єкт типу %s не є ітератором", iterVal.Type().Name)) {
					return vm.uncaught
				}
				continue
			}
			nc := next.(*object.NativeCallable)
			result := nc.Fn([]object.Value{iterVal}, nil)
			switch {
			case result == object.StopIterationSingleton:
				vm.pop()
				f.ip = exitTarget - 1
			default:
				if exc, ok := result.(*object.Exception); ok {
					if vm.raiseAndCheck(exc) {
						return vm.uncaught
					}
					continue
				}
				vm.push(result)
			}

		case code.OpCall:
			argc := int(ins[ip+1])
			f.ip++
			vm.doCall(argc)
			if vm.halted {
				return vm.uncaught
			}

		case code.OpCallMethod:
			argc := int(ins[ip+1])
			f.ip++
			vm.doCall(argc)
			if vm.halted {
				return vm.uncaught
			}

		case code.OpCallNA:
			argc := int(ins[ip+1])
			namesIdx := int(code.ReadUint16(ins[ip+2:]))
			f.ip += 3
			vm.doCallNA(co, argc, namesIdx)
			if vm.halted {
				return vm.uncaught
			}

		case code.OpCallMethodNA:
			argc := int(ins[ip+1])
			namesIdx := int(code.ReadUint16(ins[ip+2:]))
			f.ip += 3
			vm.doCallNA(co, argc, namesIdx)
			if vm.halted {
				return vm.uncaught
			}

		case code.OpReturn:
			retVal := vm.pop()
			vm.popFrame()
			vm.push(retVal)

		case code.OpTry:
			idx := regionByStart(co.Regions, ip)
			f.regionStackTops[idx] = vm.sp
			// A region abandoned mid-unwind on a previous pass through this
			// try (an exception raised in its finally block) may have left a
			// reraise pending; re-entering the region settles it.
			f.takePendingReraise(idx)

		case code.OpCatch:
			target := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			typVal := vm.pop()
			typ, isType := typVal.(*object.TypeDescriptor)
			if !isType {
				if vm.raiseAndCheck(object.NewExceptionf(object.TypeErrorType, "у 'піймати' очікується тип винятку, отримано %s", typVal.Type().Name)) {
					return vm.uncaught
				}
				continue
			}
			top := vm.peek()
			exc, isExc := top.(*object.Exception)
			if isExc && exc.IsA(typ) {
				if idx, ok := regionByHandlerRange(co.Regions, ip); ok {
					f.takePendingReraise(idx)
				}
			} else {
				f.ip = target - 1
			}

		case code.OpEndTry:
			idx, _ := regionByEnd(co.Regions, ip)
			if exc, pending := f.takePendingReraise(idx); pending {
				if vm.raiseAndCheck(exc) {
					return vm.uncaught
				}
				continue
			}

		case code.OpBuildList:
			n := int(code.ReadUint16(ins[ip+1:]))
			f.ip += 2
			elems := make([]object.Value, n)
			copy(elems, vm.stack[vm.sp-n:vm.sp])
			vm.sp -= n
			lst := &object.List{Elements: elems}
			vm.gc.Track(lst, listTrackSize(n))
			vm.push(lst)

		case code.OpRaise:
			v := vm.pop()
			exc, ok := v.(*object.Exception)
			if !ok {
				exc = object.NewException(object.TypeErrorType, "підняти можна лише екземпляр винятку")
			}
			if vm.raiseAndCheck(exc) {
				return vm.uncaught
			}
			continue

		default:
			if vm.raiseAndCheck(object.NewExceptionf(object.InternalErrorType, "невідомий код операції %d", op)) {
				return vm.uncaught
			}
			continue
		}
	}
	return vm.uncaught
}

// doCall implements OpCall/OpCallMethod: both leave [callee, arg1..argN]
// on the stack with no named arguments.
func (vm *VM) doCall(argc int) {
	args := make([]object.Value, argc)
	copy(args, vm.stack[vm.sp-argc:vm.sp])
	vm.sp -= argc
	callee := vm.pop()
	if exc := vm.call(callee, args, nil, nil); exc != nil {
		vm.raiseAndCheck(exc)
	}
}

// doCallNA implements OpCallNA/OpCallMethodNA: the stack holds
// [callee, positional args..., named arg values...], and namesIdx points
// at a Tuple of parameter-name Strings, one per trailing named value.
func (vm *VM) doCallNA(co *object.CodeObject, argc, namesIdx int) {
	names := co.Constants[namesIdx].(*object.Tuple).Elements
	m := len(names)

	combined := make([]object.Value, argc)
	copy(combined, vm.stack[vm.sp-argc:vm.sp])
	vm.sp -= argc
	callee := vm.pop()

	positional := combined[:argc-m]
	namedValues := combined[argc-m:]
	namedNames := make([]string, m)
	for i, n := range names {
		namedNames[i] = n.(*object.String).Value
	}

	if exc := vm.call(callee, positional, namedNames, namedValues); exc != nil {
		vm.raiseAndCheck(exc)
	}
}

// call dispatches a resolved callee against already-evaluated arguments.
// A Closure push a new Frame and returns nil — the caller's current frame
// simply becomes that new frame on the next loop iteration. Every other
// callable kind completes synchronously and pushes its result directly.
//
// A *object.TypeDescriptor's Constructor result is pushed unconditionally,
// never treated as a raise: constructing an exception instance (e.g.
// "ПомилкаТипу(\"повідомлення\")") is the intended value, not a call
// failure, unlike every other dispatch path in this VM where an
// *object.Exception result means "raise this".
func (vm *VM) call(callee object.Value, args []object.Value, namedNames []string, namedValues []object.Value) *object.Exception {
	switch fn := callee.(type) {
	case *object.Closure:
		return vm.callClosure(fn, args, namedNames, namedValues)

	case *object.NativeCallable:
		result := fn.Fn(args, buildNamedMap(namedNames, namedValues))
		if exc, ok := result.(*object.Exception); ok {
			return exc
		}
		vm.push(result)
		return nil

	case *object.TypeDescriptor:
		if fn.Constructor == nil {
			return object.NewExceptionf(object.TypeErrorType, "тип %s не викликається", fn.Name)
		}
		vm.push(fn.Constructor(args, buildNamedMap(namedNames, namedValues)))
		return nil

	case *object.BoundMethod:
		full := make([]object.Value, 0, len(args)+1)
		full = append(full, fn.Receiver)
		full = append(full, args...)
		return vm.call(fn.Method, full, namedNames, namedValues)

	default:
		return object.NewExceptionf(object.TypeErrorType, "об'єкт типу %s не викликається", callee.Type().Name)
	}
}

func buildNamedMap(names []string, values []object.Value) map[string]object.Value {
	if len(names) == 0 {
		return nil
	}
	m := make(map[string]object.Value, len(names))
	for i, n := range names {
		m[n] = values[i]
	}
	return m
}

// callClosure implements the full calling-convention validation: positional
// arguments fill declared parameters in order, named arguments fill
// whatever remains (by name), unfilled parameters with a default take it,
// and any leftover positional arguments collect into the variadic
// parameter. An unfilled required parameter, an unknown named argument, or
// leftover positional arguments with no variadic parameter are each an
// arity error.
func (vm *VM) callClosure(cl *object.Closure, args []object.Value, namedNames []string, namedValues []object.Value) *object.Exception {
	co := cl.Code
	numDeclared := len(co.ParameterNames)

	filled := make([]bool, numDeclared)
	values := make([]object.Value, numDeclared)

	n := len(args)
	if n > numDeclared {
		n = numDeclared
	}
	for i := 0; i < n; i++ {
		values[i] = args[i]
		filled[i] = true
	}
	leftover := args[n:]

	for i, name := range namedNames {
		idx := indexOfName(co.ParameterNames, name)
		if idx == -1 {
			return object.NewExceptionf(object.TypeErrorType, "невідомий іменований аргумент %q у виклику %s", name, co.Name)
		}
		if filled[idx] {
			return object.NewExceptionf(object.TypeErrorType, "кілька значень для аргументу %q у виклику %s", name, co.Name)
		}
		values[idx] = namedValues[i]
		filled[idx] = true
	}

	defaultStart := numDeclared - co.DefaultCount
	for i := 0; i < numDeclared; i++ {
		if filled[i] {
			continue
		}
		if i >= defaultStart {
			values[i] = cl.Defaults[i-defaultStart]
			filled[i] = true
		}
	}

	for i := 0; i < numDeclared; i++ {
		if !filled[i] {
			return object.NewExceptionf(object.TypeErrorType, "відсутній обов'язковий аргумент %q у виклику %s", co.ParameterNames[i], co.Name)
		}
	}

	if co.Variadic == "" && len(leftover) > 0 {
		return object.NewExceptionf(object.TypeErrorType, "забагато аргументів у виклику %s", co.Name)
	}

	if vm.framesIndex+1 >= len(vm.frames) {
		return object.NewException(object.InternalErrorType, "занадто глибока рекурсія")
	}

	locals := makeLocals(co.NumLocals)
	cellWrites := make(map[int]object.Value)
	if co.Self != nil {
		// Bound first so a parameter sharing the function's name shadows it.
		if co.Self.Cell {
			cellWrites[co.Self.Index] = cl
		} else {
			locals[co.Self.Index] = cl
		}
	}
	for i, slot := range co.ParamLayout {
		if slot.Cell {
			cellWrites[slot.Index] = values[i]
		} else {
			locals[slot.Index] = values[i]
		}
	}
	if co.Variadic != "" {
		tup := &object.Tuple{Elements: append([]object.Value(nil), leftover...)}
		if co.VariadicSlot.Cell {
			cellWrites[co.VariadicSlot.Index] = tup
		} else {
			locals[co.VariadicSlot.Index] = tup
		}
	}

	frame := NewFrame(cl, locals)
	for idx, v := range cellWrites {
		frame.cells[idx].Value = v
	}
	for _, c := range frame.cells {
		vm.gc.Track(c, cellTrackSize)
	}
	vm.pushFrame(frame)
	return nil
}

func indexOfName(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// dispatchBinary tries a's operator slot first, then b's, matching the
// "try left, fall back to right" protocol every built-in BinaryFunc
// already assumes when it type-switches on both operands rather than
// just the receiver.
func dispatchBinary(a, b object.Value, slot object.OperatorSlot) object.Value {
	if fn, ok := a.Type().Operators[slot]; ok {
		if r := fn(a, b); r != object.NotImplemented {
			return r
		}
	}
	if fn, ok := b.Type().Operators[slot]; ok {
		if r := fn(a, b); r != object.NotImplemented {
			return r
		}
	}
	return object.NewExceptionf(object.TypeErrorType, "непідтримувана операція для типів %s і %s", a.Type().Name, b.Type().Name)
}

func dispatchCompare(a, b object.Value, op object.CompareOp) object.Value {
	if a.Type().Compare != nil {
		if r := a.Type().Compare(a, b, op); r != object.NotImplemented {
			return r
		}
	}
	if b.Type().Compare != nil {
		if r := b.Type().Compare(a, b, op); r != object.NotImplemented {
			return r
		}
	}
	// Equality between values neither side knows how to compare falls
	// back to reference identity; only ordering is a type error.
	switch op {
	case object.CompareEQ:
		return object.Bool(a == b)
	case object.CompareNE:
		return object.Bool(a != b)
	}
	return object.NewExceptionf(object.TypeErrorType, "непідтримуване порівняння типів %s і %s", a.Type().Name, b.Type().Name)
}

// --- protected-region lookups --------------------------------------------

// regionByStart finds the region whose TRY instruction sits at ip.
func regionByStart(regions []object.ProtectedRegion, ip int) int {
	for i, r := range regions {
		if r.Start == ip {
			return i
		}
	}
	return -1
}

// regionByHandlerRange finds the region whose catch chain contains ip.
func regionByHandlerRange(regions []object.ProtectedRegion, ip int) (int, bool) {
	for i, r := range regions {
		if ip >= r.FirstHandler && ip < r.End {
			return i, true
		}
	}
	return 0, false
}

// regionByEnd finds the region whose END_TRY instruction sits at ip.
func regionByEnd(regions []object.ProtectedRegion, ip int) (int, bool) {
	for i, r := range regions {
		if r.End == ip {
			return i, true
		}
	}
	return 0, false
}

// raiseAndCheck begins unwinding exc and reports whether the VM halted
// with it uncaught (the caller should then return vm.uncaught).
func (vm *VM) raiseAndCheck(exc *object.Exception) bool {
	vm.raise(exc)
	return vm.halted
}

// raise searches outward from the current frame for a protected region
// that can intercept exc at the current instruction pointer. A frame with
// no such region contributes a trace entry and is popped; exhausting
// every frame leaves the VM halted with exc as the uncaught result.
func (vm *VM) raise(exc *object.Exception) {
	for {
		f := vm.currentFrame()
		if vm.landInRegion(f, exc) {
			return
		}

		exc.Trace = append(exc.Trace, frameTraceEntry(f))
		if vm.framesIndex == 0 {
			vm.uncaught = exc
			vm.halted = true
			return
		}
		vm.popFrame()
	}
}

// landInRegion searches f's protected regions, innermost first, for one
// still able to intercept an exception raised at f.ip. A raise inside a
// try body restores the region's recorded stack depth and lands on its
// first catch test with the exception pushed. A raise inside the catch
// chain of a region that has a finally block lands directly on the
// finally with the exception left pending, so the block runs before
// unwinding resumes at END_TRY. A region whose catch chain has no finally
// to run, or whose finally is itself the raise site, cannot intercept —
// the search moves on to the enclosing region.
func (vm *VM) landInRegion(f *Frame, exc *object.Exception) bool {
	regions := f.cl.Code.Regions
	if len(regions) == 0 {
		return false
	}
	ip := f.ip
	rejected := make(map[int]bool, len(regions))
	for {
		idx := -1
		for i, r := range regions {
			if rejected[i] || ip < r.Start || ip >= r.End {
				continue
			}
			if idx == -1 || regions[idx].Start < r.Start {
				idx = i
			}
		}
		if idx == -1 {
			return false
		}
		r := regions[idx]
		switch {
		case ip < r.FirstHandler:
			vm.sp = f.regionStackTops[idx]
			f.markPendingReraise(idx, exc)
			vm.push(exc)
			f.ip = r.FirstHandler - 1
			return true
		case r.Finally != 0 && ip < r.Finally:
			vm.sp = f.regionStackTops[idx]
			f.markPendingReraise(idx, exc)
			f.ip = r.Finally - 1
			return true
		default:
			// An exception raised in the finally replaces any reraise the
			// region had pending; it never runs this finally again.
			f.takePendingReraise(idx)
			rejected[idx] = true
		}
	}
}

func frameTraceEntry(f *Frame) string {
	co := f.cl.Code
	name := co.Name
	if name == "" {
		name = "<анонімна>"
	}
	return fmt.Sprintf("  у %s, рядок %d", name, co.LineForIP(f.ip))
}

// gcRoots visits every live reference: globals, every active frame's
// locals/cells/free vars and its closure, and the live portion of the
// shared operand stack.
func (vm *VM) gcRoots(visit func(object.Value)) {
	for i := 0; i < vm.sp; i++ {
		if vm.stack[i] != nil {
			visit(vm.stack[i])
		}
	}
	for _, v := range vm.globals {
		visit(v)
	}
	for i := 0; i <= vm.framesIndex; i++ {
		f := vm.frames[i]
		visit(f.cl)
		for _, l := range f.locals {
			if l != nil {
				visit(l)
			}
		}
		for _, c := range f.cells {
			visit(c)
		}
		for _, c := range f.free {
			visit(c)
		}
	}
}
