// Package object implements Periwinkle's dynamic object model.
//
// Every runtime value is a Value. Instead of a type switch over concrete
// Go types (the shape Kong's flat Object interface used), dispatch
// for operators and calls goes through a per-type TypeDescriptor — a small
// table of function values describing how that type implements each
// operator. This generalizes Kong's Type()/Inspect() pair into the
// data-driven dispatch protocol the original virtual machine performs
// through offsetof-indexed function pointers into an ObjectOperators
// struct: a Go enum (OperatorSlot) indexing into a map of functions is
// this project's translation of that mechanism, since Go has no portable
// offsetof. See DESIGN.md for the deviation note.
package object

import (
	"fmt"
	"math"
)

// Value is implemented by every Periwinkle runtime value.
type Value interface {
	// Type returns the value's TypeDescriptor.
	Type() *TypeDescriptor

	// Inspect returns a human-readable representation, used by the "друк"
	// builtin and the REPL's result display.
	Inspect() string
}

// OperatorSlot names one operator a type may implement. The VM's
// OpUnaryOp/OpBinaryOp instructions carry one of these (as a byte) to
// select which table entry to invoke, mirroring (in spirit) the original
// VM's offsetof-based ObjectOperatorOffset.
type OperatorSlot byte

const (
	SlotAdd OperatorSlot = iota
	SlotSub
	SlotMul
	SlotDiv
	SlotFloorDiv
	SlotMod
	SlotPos
	SlotNeg
	SlotGetIter
	SlotToString
	SlotToInteger
	SlotToReal
	SlotToBool
)

// CompareOp names a three-way comparison the VM's OpCompare instruction
// may request.
type CompareOp byte

const (
	CompareEQ CompareOp = iota
	CompareNE
	CompareGT
	CompareGE
	CompareLT
	CompareLE
)

// NotImplemented is the sentinel an operator function returns to say "I
// don't know how to do this with the given operand(s)". The VM's
// dispatcher falls back to the other operand's implementation (for binary
// operators) before raising a type error.
var NotImplemented Value = &notImplementedType{}

type notImplementedType struct{}

func (n *notImplementedType) Type() *TypeDescriptor { return notImplementedDescriptor }
func (n *notImplementedType) Inspect() string       { return "<НеРеалізовано>" }

var notImplementedDescriptor = &TypeDescriptor{Name: "НеРеалізовано", Base: ObjectType}

// UnaryFunc implements a unary operator.
type UnaryFunc func(v Value) Value

// BinaryFunc implements a binary operator; it returns NotImplemented if it
// cannot handle the combination of operand types.
type BinaryFunc func(a, b Value) Value

// CompareFunc implements three-way comparison for a type; it returns
// NotImplemented if it cannot compare against the other operand.
type CompareFunc func(a, b Value, op CompareOp) Value

// TraverseFunc is invoked by the garbage collector for every Value a type
// instance references, so the collector can mark them reachable. visit
// must be called once per referenced Value.
type TraverseFunc func(v Value, visit func(Value))

// TypeDescriptor is the runtime type of a Value: its name, operator
// table, attribute table, and GC traversal hook. Built-in types declare a
// package-level *TypeDescriptor and share it across every instance, the
// same way the original's TypeObject instances are process-wide statics.
type TypeDescriptor struct {
	Name string

	// Operators holds this type's binary operator-slot implementations. A
	// slot absent from the map behaves as if it returned NotImplemented.
	Operators map[OperatorSlot]BinaryFunc
	Unary     map[OperatorSlot]UnaryFunc
	Compare   CompareFunc

	// Attributes holds methods and class-level fields shared by every
	// instance of this type; instance-level state lives on the Go struct,
	// not here.
	Attributes map[string]Value

	// Traverse reports every Value this type's instances reference, for
	// the garbage collector's mark phase. Nil for types with no Value
	// fields (Integer, Boolean, ...).
	Traverse TraverseFunc

	// Base is the type this type descends from in the single-inheritance
	// chain rooted at Object (every type except Object has a non-null
	// Base). The VM's attribute lookup walks
	// this chain on a miss, and Exception.IsA walks it to test a caught
	// type against a raised one.
	Base *TypeDescriptor

	// Constructor builds a new instance when this type descriptor itself
	// is called (e.g. "ПомилкаТипу(\"...\")" constructing an exception
	// instance of that built-in type). Nil for types with no such sugar.
	Constructor func(args []Value, named map[string]Value) Value
}

func (t *TypeDescriptor) Type() *TypeDescriptor { return typeDescriptorType }
func (t *TypeDescriptor) Inspect() string       { return "<тип " + t.Name + ">" }

var typeDescriptorType = &TypeDescriptor{Name: "Тип", Base: ObjectType}

// ObjectType is the root of the type hierarchy: it has no operators and no
// attributes, and every other built-in type's Base chain terminates here.
var ObjectType = &TypeDescriptor{Name: "Об'єкт"}

// IsSubtype reports whether t is sub, or descends from sub along the Base
// chain rooted at Object.
func (t *TypeDescriptor) IsSubtype(sub *TypeDescriptor) bool {
	for cur := t; cur != nil; cur = cur.Base {
		if cur == sub {
			return true
		}
	}
	return false
}

// GetAttr resolves name in t's own Attributes table, falling back to each
// ancestor in the Base chain in turn.
func (t *TypeDescriptor) GetAttr(name string) (Value, bool) {
	for cur := t; cur != nil; cur = cur.Base {
		if cur.Attributes != nil {
			if v, ok := cur.Attributes[name]; ok {
				return v, ok
			}
		}
	}
	return nil, false
}

// Integer is a 64-bit signed integer value.
type Integer struct{ Value int64 }

func (i *Integer) Type() *TypeDescriptor { return IntegerType }
func (i *Integer) Inspect() string       { return fmt.Sprintf("%d", i.Value) }

// Real is a 64-bit floating point value.
type Real struct{ Value float64 }

func (r *Real) Type() *TypeDescriptor { return RealType }
func (r *Real) Inspect() string       { return fmt.Sprintf("%g", r.Value) }

// Boolean is істина/хиба.
type Boolean struct{ Value bool }

func (b *Boolean) Type() *TypeDescriptor { return BooleanType }
func (b *Boolean) Inspect() string {
	if b.Value {
		return "істина"
	}
	return "хиба"
}

// Null is the sole нич value; like True/False it is shared, never allocated per use.
type Null struct{}

func (n *Null) Type() *TypeDescriptor { return NullType }
func (n *Null) Inspect() string       { return "нич" }

var (
	True  = &Boolean{Value: true}
	False = &Boolean{Value: false}
	None  = &Null{}
)

// Bool returns the shared True or False value for v.
func Bool(v bool) *Boolean {
	if v {
		return True
	}
	return False
}

// Truthy reports whether v is considered true in a boolean context:
// хиба/нич/0/0.0/"" and empty collections are falsy, everything else is
// truthy.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case *Boolean:
		return x.Value
	case *Null:
		return false
	case *Integer:
		return x.Value != 0
	case *Real:
		return x.Value != 0
	case *String:
		return len(x.Value) > 0
	case *List:
		return len(x.Elements) > 0
	case *Tuple:
		return len(x.Elements) > 0
	default:
		return true
	}
}

var (
	IntegerType = &TypeDescriptor{
		Name: "Ціле",
		Base: ObjectType,
		Operators: map[OperatorSlot]BinaryFunc{
			SlotAdd:      func(a, b Value) Value { return intArith(a, b, func(x, y int64) int64 { return x + y }) },
			SlotSub:      func(a, b Value) Value { return intArith(a, b, func(x, y int64) int64 { return x - y }) },
			SlotMul:      func(a, b Value) Value { return intArith(a, b, func(x, y int64) int64 { return x * y }) },
			SlotDiv:      intDivide,
			SlotFloorDiv: intFloorDivide,
			SlotMod:      intModulo,
		},
		Unary: map[OperatorSlot]UnaryFunc{
			SlotPos:       func(v Value) Value { return v },
			SlotNeg:       func(v Value) Value { return &Integer{-v.(*Integer).Value} },
			SlotToString:  func(v Value) Value { return &String{Value: v.Inspect()} },
			SlotToInteger: func(v Value) Value { return v },
			SlotToReal:    func(v Value) Value { return &Real{Value: float64(v.(*Integer).Value)} },
			SlotToBool:    func(v Value) Value { return Bool(v.(*Integer).Value != 0) },
		},
		Compare: numericCompare,
	}

	RealType = &TypeDescriptor{
		Name: "Дійсне",
		Base: ObjectType,
		Operators: map[OperatorSlot]BinaryFunc{
			SlotAdd:      realBinary(func(a, b float64) float64 { return a + b }),
			SlotSub:      realBinary(func(a, b float64) float64 { return a - b }),
			SlotMul:      realBinary(func(a, b float64) float64 { return a * b }),
			SlotDiv:      realDivide,
			SlotFloorDiv: realFloorDivide,
			SlotMod:      realModulo,
		},
		Unary: map[OperatorSlot]UnaryFunc{
			SlotPos:       func(v Value) Value { return v },
			SlotNeg:       func(v Value) Value { return &Real{-toFloat(v)} },
			SlotToString:  func(v Value) Value { return &String{Value: v.Inspect()} },
			SlotToInteger: func(v Value) Value { return &Integer{Value: int64(v.(*Real).Value)} },
			SlotToReal:    func(v Value) Value { return v },
			SlotToBool:    func(v Value) Value { return Bool(v.(*Real).Value != 0) },
		},
		Compare: numericCompare,
	}

	BooleanType = &TypeDescriptor{
		Name: "Логічне",
		Base: ObjectType,
		Unary: map[OperatorSlot]UnaryFunc{
			SlotToString: func(v Value) Value { return &String{Value: v.Inspect()} },
			SlotToBool:   func(v Value) Value { return v },
		},
		Compare: referenceCompare,
	}

	NullType = &TypeDescriptor{
		Name: "Нич",
		Base: ObjectType,
		Unary: map[OperatorSlot]UnaryFunc{
			SlotToString: func(v Value) Value { return &String{Value: "нич"} },
			SlotToBool:   func(v Value) Value { return False },
		},
		Compare: referenceCompare,
	}
)

func toFloat(v Value) float64 {
	switch x := v.(type) {
	case *Integer:
		return float64(x.Value)
	case *Real:
		return x.Value
	default:
		return 0
	}
}

func isNumeric(v Value) bool {
	switch v.(type) {
	case *Integer, *Real:
		return true
	default:
		return false
	}
}

func intArith(a, b Value, fn func(x, y int64) int64) Value {
	ai, aok := a.(*Integer)
	bi, bok := b.(*Integer)
	if !aok || !bok {
		return NotImplemented
	}
	return &Integer{fn(ai.Value, bi.Value)}
}

func realBinary(fn func(a, b float64) float64) BinaryFunc {
	return func(a, b Value) Value {
		if !isNumeric(a) || !isNumeric(b) {
			return NotImplemented
		}
		return &Real{fn(toFloat(a), toFloat(b))}
	}
}

func intDivide(a, b Value) Value {
	ai, aok := a.(*Integer)
	bi, bok := b.(*Integer)
	if !aok || !bok {
		if isNumeric(a) && isNumeric(b) {
			return &Real{toFloat(a) / toFloat(b)}
		}
		return NotImplemented
	}
	if bi.Value == 0 {
		return raiseDivisionByZero()
	}
	return &Real{float64(ai.Value) / float64(bi.Value)}
}

func intFloorDivide(a, b Value) Value {
	ai, aok := a.(*Integer)
	bi, bok := b.(*Integer)
	if !aok || !bok {
		return NotImplemented
	}
	if bi.Value == 0 {
		return raiseDivisionByZero()
	}
	q := ai.Value / bi.Value
	if (ai.Value%bi.Value != 0) && ((ai.Value < 0) != (bi.Value < 0)) {
		q--
	}
	return &Integer{q}
}

func intModulo(a, b Value) Value {
	ai, aok := a.(*Integer)
	bi, bok := b.(*Integer)
	if !aok || !bok {
		return NotImplemented
	}
	if bi.Value == 0 {
		return raiseDivisionByZero()
	}
	m := ai.Value % bi.Value
	if m != 0 && ((m < 0) != (bi.Value < 0)) {
		m += bi.Value
	}
	return &Integer{m}
}

func realFloorDivide(a, b Value) Value {
	if !isNumeric(a) || !isNumeric(b) {
		return NotImplemented
	}
	bf := toFloat(b)
	if bf == 0 {
		return raiseDivisionByZero()
	}
	return &Real{math.Floor(toFloat(a) / bf)}
}

func realModulo(a, b Value) Value {
	if !isNumeric(a) || !isNumeric(b) {
		return NotImplemented
	}
	bf := toFloat(b)
	if bf == 0 {
		return raiseDivisionByZero()
	}
	m := math.Mod(toFloat(a), bf)
	if m != 0 && (m < 0) != (bf < 0) {
		m += bf
	}
	return &Real{m}
}

func realDivide(a, b Value) Value {
	if !isNumeric(a) || !isNumeric(b) {
		return NotImplemented
	}
	bf := toFloat(b)
	if bf == 0 {
		return raiseDivisionByZero()
	}
	return &Real{toFloat(a) / bf}
}

// raiseDivisionByZero is called directly by arithmetic operators rather
// than threading an error return through every BinaryFunc; the VM checks
// whether an operator's result is an *Exception immediately after
// dispatch and begins unwinding if so, same as any other raised exception.
func raiseDivisionByZero() Value {
	return NewException(DivisionByZeroErrorType, "ділення на нуль")
}

func numericCompare(a, b Value, op CompareOp) Value {
	if !isNumeric(a) || !isNumeric(b) {
		return NotImplemented
	}
	af, bf := toFloat(a), toFloat(b)
	var result bool
	switch op {
	case CompareEQ:
		result = af == bf
	case CompareNE:
		result = af != bf
	case CompareGT:
		result = af > bf
	case CompareGE:
		result = af >= bf
	case CompareLT:
		result = af < bf
	case CompareLE:
		result = af <= bf
	}
	return Bool(result)
}

// referenceCompare supports only EQ/NE via Go pointer/value identity; used
// by types that have no natural ordering (Boolean, Null).
func referenceCompare(a, b Value, op CompareOp) Value {
	switch op {
	case CompareEQ:
		return Bool(a == b)
	case CompareNE:
		return Bool(a != b)
	default:
		return NotImplemented
	}
}
