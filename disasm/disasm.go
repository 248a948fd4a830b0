// Package disasm formats a compiled object.CodeObject as human-readable
// bytecode listings, for the launcher's -а/--асемблер diagnostic flag.
//
// Builds on code.Instructions.String()'s opcode/operand decode loop but
// reproduces the original disassembler's richer per-instruction layout
// instead of that bare "%04d OPCODE operands" line: a fixed-width IP
// column, a
// mnemonic padded to a fixed width, parenthesized human-readable
// operands for name/constant/comparison/operator-carrying opcodes, a
// bare line-number row whenever the source line changes, and a
// recursive dump of every nested CodeObject constant afterward.
// The column layout and the "Disassemble <name>:" nested-dump
// convention follow the original disassembler.
package disasm

import (
	"fmt"
	"strings"

	"github.com/dr8co/periwinkle/code"
	"github.com/dr8co/periwinkle/object"
)

const mnemonicWidth = 20

// Disassemble renders co's instructions, then recursively every nested
// CodeObject found in its constant pool, in constant-pool order — the
// same deterministic traversal on every run, since constant pool order
// is fixed at compile time.
func Disassemble(co *object.CodeObject) string {
	var out strings.Builder
	disassembleOne(&out, co)
	return out.String()
}

func disassembleOne(out *strings.Builder, co *object.CodeObject) {
	ins := co.Instructions
	lastLine := -1
	i := 0
	for i < len(ins) {
		def, err := code.Lookup(ins[i])
		if err != nil {
			fmt.Fprintf(out, "%04d ERROR: %s\n", i, err)
			i++
			continue
		}

		if line, ok := co.LineTable[i]; ok && line != lastLine {
			fmt.Fprintf(out, "%d\n", line)
			lastLine = line
		}

		operands, read := code.ReadOperands(def, ins[i+1:])
		fmt.Fprintf(out, "%04d %s\n", i, formatInstruction(co, def, operands))
		i += read + 1
	}

	for _, c := range co.Constants {
		if nested, ok := c.(*object.CodeObject); ok {
			fmt.Fprintf(out, "Disassemble %s:\n", nested.Name)
			disassembleOne(out, nested)
		}
	}
}

func formatInstruction(co *object.CodeObject, def *code.Definition, operands []int) string {
	mnemonic := def.Name
	if len(mnemonic) < mnemonicWidth {
		mnemonic += strings.Repeat(" ", mnemonicWidth-len(mnemonic))
	}

	var fields []string
	for _, o := range operands {
		fields = append(fields, fmt.Sprintf("%d", o))
	}
	base := mnemonic + strings.Join(fields, " ")

	annotation := annotate(co, def, operands)
	if annotation == "" {
		return strings.TrimRight(base, " ")
	}
	return base + " (" + annotation + ")"
}

// annotate renders the human-readable form for opcodes whose operand
// indexes a constant, a name, an operator slot, or a comparison op.
func annotate(co *object.CodeObject, def *code.Definition, operands []int) string {
	switch def.Name {
	case "OpLoadConst":
		return constRepr(co, operands[0])

	case "OpLoadGlobal", "OpStoreGlobal", "OpDeleteGlobal", "OpGetAttr", "OpLoadMethod":
		return nameRepr(co, operands[0])

	case "OpCallNA", "OpCallMethodNA":
		return "names=" + nameTupleRepr(co, operands[1])

	case "OpUnaryOp", "OpBinaryOp":
		return operatorSlotName(object.OperatorSlot(operands[0]))

	case "OpCompare":
		return compareOpName(object.CompareOp(operands[0]))
	}
	return ""
}

func constRepr(co *object.CodeObject, idx int) string {
	if idx < 0 || idx >= len(co.Constants) {
		return "?"
	}
	v := co.Constants[idx]
	if s, ok := v.(interface{ Repr() string }); ok {
		return s.Repr()
	}
	if nested, ok := v.(*object.CodeObject); ok {
		return "код " + nested.Name
	}
	return v.Inspect()
}

func nameRepr(co *object.CodeObject, idx int) string {
	if idx < 0 || idx >= len(co.Constants) {
		return "?"
	}
	if s, ok := co.Constants[idx].(*object.String); ok {
		return s.Value
	}
	return co.Constants[idx].Inspect()
}

func nameTupleRepr(co *object.CodeObject, idx int) string {
	if idx < 0 || idx >= len(co.Constants) {
		return "?"
	}
	tup, ok := co.Constants[idx].(*object.Tuple)
	if !ok {
		return "?"
	}
	parts := make([]string, len(tup.Elements))
	for i, e := range tup.Elements {
		if s, ok := e.(*object.String); ok {
			parts[i] = s.Value
		} else {
			parts[i] = e.Inspect()
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func operatorSlotName(slot object.OperatorSlot) string {
	switch slot {
	case object.SlotAdd:
		return "+"
	case object.SlotSub:
		return "-"
	case object.SlotMul:
		return "*"
	case object.SlotDiv:
		return "/"
	case object.SlotFloorDiv:
		return "\\"
	case object.SlotMod:
		return "%"
	case object.SlotPos:
		return "унарний +"
	case object.SlotNeg:
		return "унарний -"
	case object.SlotGetIter:
		return "ітератор"
	case object.SlotToString:
		return "у_рядок"
	case object.SlotToInteger:
		return "у_ціле"
	case object.SlotToReal:
		return "у_дійсне"
	case object.SlotToBool:
		return "у_логічне"
	default:
		return "?"
	}
}

func compareOpName(op object.CompareOp) string {
	switch op {
	case object.CompareEQ:
		return "=="
	case object.CompareNE:
		return "!="
	case object.CompareGT:
		return ">"
	case object.CompareGE:
		return ">="
	case object.CompareLT:
		return "<"
	case object.CompareLE:
		return "<="
	default:
		return "?"
	}
}
