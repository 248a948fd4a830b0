// Package code provides bytecode instruction definitions and utilities for the compiler and virtual machine.
//
// Periwinkle's instruction set generalizes Kong's per-operator
// opcodes (OpAdd, OpSub, OpGreaterThan, ...) into two dispatch opcodes,
// UnaryOp and BinaryOp, each carrying a one-byte operator-slot operand
// that the VM uses to index into a type's operator table (see package
// object). This mirrors the data-driven dispatch the original C++ VM
// performs via offsetof into its Operators struct, translated to an
// idiomatic Go enum-indexed lookup instead of raw pointer arithmetic.
package code

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Instructions is a slice of bytes representing a sequence of instructions.
type Instructions []byte

// Opcode represents a single bytecode instruction used by the compiler and virtual machine.
type Opcode byte

// Bytecode instruction opcodes. Each opcode may have zero or more operands
// encoded after the opcode byte; widths are declared in definitions below.
const (
	// OpPop discards the top-of-stack value.
	OpPop Opcode = iota

	// OpDup duplicates the top-of-stack value.
	OpDup

	// OpUnaryOp applies the unary operator at the given operator-table slot
	// to the top-of-stack value, replacing it with the result.
	//
	// Operands: [slot:1]
	OpUnaryOp

	// OpBinaryOp applies the binary operator at the given operator-table
	// slot to the two values below the top of the stack.
	//
	// Operands: [slot:1]
	//
	// Stack: [a, b] -> [a OP b]
	OpBinaryOp

	// OpCompare applies a three-way comparison (EQ, NE, GT, GE, LT, LE) to
	// the top two stack values.
	//
	// Operands: [cmpOp:1]
	OpCompare

	// OpIs pushes whether the top two stack values are the same object (reference identity).
	OpIs

	// OpIsNot pushes the negation of OpIs.
	OpIsNot

	// OpNot pops a value, applies logical negation, and pushes the boolean result.
	OpNot

	// OpJump unconditionally jumps to the given absolute instruction index.
	//
	// Operands: [target:2]
	OpJump

	// OpJumpIfTrue pops the top value and jumps to target if it is truthy.
	//
	// Operands: [target:2]
	OpJumpIfTrue

	// OpJumpIfFalse pops the top value and jumps to target if it is falsy.
	//
	// Operands: [target:2]
	OpJumpIfFalse

	// OpJumpIfTrueOrPop jumps to target, leaving the value on the stack, if
	// it is truthy; otherwise pops it and falls through. Used for "та"/"або"
	// short-circuit evaluation.
	//
	// Operands: [target:2]
	OpJumpIfTrueOrPop

	// OpJumpIfFalseOrPop is the falsy-preserving counterpart of OpJumpIfTrueOrPop.
	//
	// Operands: [target:2]
	OpJumpIfFalseOrPop

	// OpCall calls the callable argc below the top of stack with argc
	// positional arguments on top of it.
	//
	// Operands: [argc:1]
	//
	// Stack: [callable, arg1, ..., argN] -> [result]
	OpCall

	// OpCallNA is OpCall with additional named arguments. argc counts the
	// positional and named values together; namesConstIdx indexes a
	// constant pool Tuple of parameter names, one per trailing named
	// value, in order.
	//
	// Operands: [argc:1, namesConstIdx:2]
	OpCallNA

	// OpCallMethod invokes an already-resolved bound method (pushed by
	// OpLoadMethod) with argc positional arguments.
	//
	// Operands: [argc:1]
	OpCallMethod

	// OpCallMethodNA is OpCallMethod with named arguments, symmetric to OpCallNA.
	//
	// Operands: [argc:1, namesConstIdx:2]
	OpCallMethodNA

	// OpForEach reads the top-of-stack iterator and invokes its next
	// method directly (bypassing the general call path). On exhaustion it
	// pops the iterator and jumps to exitTarget; otherwise it leaves the
	// next value on top and falls through.
	//
	// Operands: [exitTarget:2]
	OpForEach

	// OpReturn pops the current frame and pushes the top-of-stack value
	// onto the caller's stack; the compiler pushes Null first for a bare
	// return.
	OpReturn

	// OpLoadConst pushes constants[index].
	//
	// Operands: [index:2]
	OpLoadConst

	// OpLoadGlobal pushes the value of the global named by names[index].
	//
	// Operands: [index:2]
	OpLoadGlobal

	// OpStoreGlobal pops the top value and stores it as the global named by names[index].
	//
	// Operands: [index:2]
	OpStoreGlobal

	// OpDeleteGlobal removes the global named by names[index].
	//
	// Operands: [index:2]
	OpDeleteGlobal

	// OpLoadLocal pushes frame-local slot index.
	//
	// Operands: [index:2]
	OpLoadLocal

	// OpStoreLocal pops the top value into frame-local slot index.
	//
	// Operands: [index:2]
	OpStoreLocal

	// OpDeleteLocal clears frame-local slot index.
	//
	// Operands: [index:2]
	OpDeleteLocal

	// OpGetCell pushes the Cell object itself (not its contents) at free-variable index.
	//
	// Operands: [index:2]
	OpGetCell

	// OpLoadCell pushes the contents of the Cell at free-variable index.
	//
	// Operands: [index:2]
	OpLoadCell

	// OpStoreCell pops the top value into the Cell at free-variable index.
	//
	// Operands: [index:2]
	OpStoreCell

	// OpGetAttr pops an object and pushes the attribute named by names[index].
	//
	// Operands: [index:2]
	OpGetAttr

	// OpLoadMethod pops an object and pushes a resolved bound-method value
	// (wrapping native methods in a callable) for names[index].
	//
	// Operands: [index:2]
	OpLoadMethod

	// OpMakeFunction builds a closure from the code-object constant on top
	// of the stack, the numDefaults default values beneath it, and the
	// numFree captured cells beneath those (the compiler pushes the cells,
	// then the defaults in declaration order, then the code object).
	//
	// Operands: [numFree:1, numDefaults:1]
	OpMakeFunction

	// OpTry marks the start of a protected region; the VM records the
	// current stack depth so it can unwind to it on a raised exception.
	OpTry

	// OpCatch pops the exception type on top of the stack and tests whether
	// the value now on top is an exception instance of that type; on a
	// match it falls through into the handler body with the exception left
	// on top, otherwise it jumps to the next handler test (or to finally).
	//
	// Operands: [nextHandlerOrFinally:2]
	OpCatch

	// OpEndTry closes the protected region started by the matching OpTry.
	OpEndTry

	// OpRaise pops a value, which must be an exception instance, and
	// begins unwinding to the nearest enclosing handler that matches it.
	OpRaise

	// OpHalt stops the virtual machine.
	OpHalt

	// OpBuildList pops n values (in the order they were pushed, left to
	// right) and pushes a new List holding them, for a "[e1, e2, ...]"
	// literal.
	//
	// Operands: [n:2]
	OpBuildList
)

// Definition represents an instruction definition with its name and operand widths.
type Definition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*Definition{
	OpPop:              {"OpPop", []int{}},
	OpDup:              {"OpDup", []int{}},
	OpUnaryOp:          {"OpUnaryOp", []int{1}},
	OpBinaryOp:         {"OpBinaryOp", []int{1}},
	OpCompare:          {"OpCompare", []int{1}},
	OpIs:               {"OpIs", []int{}},
	OpIsNot:            {"OpIsNot", []int{}},
	OpNot:              {"OpNot", []int{}},
	OpJump:             {"OpJump", []int{2}},
	OpJumpIfTrue:       {"OpJumpIfTrue", []int{2}},
	OpJumpIfFalse:      {"OpJumpIfFalse", []int{2}},
	OpJumpIfTrueOrPop:  {"OpJumpIfTrueOrPop", []int{2}},
	OpJumpIfFalseOrPop: {"OpJumpIfFalseOrPop", []int{2}},
	OpCall:             {"OpCall", []int{1}},
	OpCallNA:           {"OpCallNA", []int{1, 2}},
	OpCallMethod:       {"OpCallMethod", []int{1}},
	OpCallMethodNA:     {"OpCallMethodNA", []int{1, 2}},
	OpForEach:          {"OpForEach", []int{2}},
	OpReturn:           {"OpReturn", []int{}},
	OpLoadConst:        {"OpLoadConst", []int{2}},
	OpLoadGlobal:       {"OpLoadGlobal", []int{2}},
	OpStoreGlobal:      {"OpStoreGlobal", []int{2}},
	OpDeleteGlobal:     {"OpDeleteGlobal", []int{2}},
	OpLoadLocal:        {"OpLoadLocal", []int{2}},
	OpStoreLocal:       {"OpStoreLocal", []int{2}},
	OpDeleteLocal:      {"OpDeleteLocal", []int{2}},
	OpGetCell:          {"OpGetCell", []int{2}},
	OpLoadCell:         {"OpLoadCell", []int{2}},
	OpStoreCell:        {"OpStoreCell", []int{2}},
	OpGetAttr:          {"OpGetAttr", []int{2}},
	OpLoadMethod:       {"OpLoadMethod", []int{2}},
	OpMakeFunction:     {"OpMakeFunction", []int{1, 1}},
	OpTry:              {"OpTry", []int{}},
	OpCatch:            {"OpCatch", []int{2}},
	OpEndTry:           {"OpEndTry", []int{}},
	OpRaise:            {"OpRaise", []int{}},
	OpHalt:             {"OpHalt", []int{}},
	OpBuildList:        {"OpBuildList", []int{2}},
}

// Lookup returns the [Definition] for the given opcode byte.
func Lookup(op byte) (*Definition, error) {
	def, ok := definitions[Opcode(op)]
	if !ok {
		return nil, fmt.Errorf("opcode %d undefined", op)
	}
	return def, nil
}

// Make creates a byte slice representing an instruction using the provided opcode and operands.
func Make(op Opcode, operands ...int) []byte {
	def, ok := definitions[op]
	if !ok {
		return []byte{}
	}
	instructionLen := 1
	for _, w := range def.OperandWidths {
		instructionLen += w
	}
	instruction := make([]byte, instructionLen)
	instruction[0] = byte(op)
	offset := 1
	for i, operand := range operands {
		width := def.OperandWidths[i]
		switch width {
		case 1:
			instruction[offset] = byte(operand)
		case 2:
			binary.BigEndian.PutUint16(instruction[offset:], uint16(operand))
		}
		offset += width
	}
	return instruction
}

// String provides a human-readable string representation of the [Instructions], formatted with opcodes and operands.
func (ins Instructions) String() string {
	var out strings.Builder

	i := 0
	for i < len(ins) {
		def, err := Lookup(ins[i])
		if err != nil {
			_, _ = fmt.Fprintf(&out, "ERROR: %s\n", err)
			i++
			continue
		}
		operands, read := ReadOperands(def, ins[i+1:])
		_, _ = fmt.Fprintf(&out, "%04d %s\n", i, ins.fmtInstruction(def, operands))
		i += read + 1
	}

	return out.String()
}

func (ins Instructions) fmtInstruction(def *Definition, operands []int) string {
	operandCount := len(def.OperandWidths)

	if len(operands) != operandCount {
		return fmt.Sprintf("ERROR: operand len %d does not match defined %d\n", len(operands), operandCount)
	}

	switch operandCount {
	case 0:
		return def.Name
	case 1:
		return fmt.Sprintf("%s %d", def.Name, operands[0])
	case 2:
		return fmt.Sprintf("%s %d %d", def.Name, operands[0], operands[1])
	}
	return fmt.Sprintf("ERROR: unhandled operandCount for %s\n", def.Name)
}

// ReadOperands decodes operands from the specified instructions based
// on the definition and returns them with the total bytes read.
func ReadOperands(def *Definition, ins Instructions) ([]int, int) {
	operands := make([]int, len(def.OperandWidths))
	offset := 0

	for i, width := range def.OperandWidths {
		switch width {
		case 1:
			operands[i] = int(ReadUint8(ins[offset:]))
		case 2:
			operands[i] = int(ReadUint16(ins[offset:]))
		}
		offset += width
	}
	return operands, offset
}

// ReadUint16 decodes the first two bytes of the provided [Instructions] as uint16 in big-endian format.
func ReadUint16(ins Instructions) uint16 {
	return binary.BigEndian.Uint16(ins)
}

// ReadUint8 extracts the first byte from the provided [Instructions] slice and returns it as uint8.
func ReadUint8(ins Instructions) uint8 { return ins[0] }
