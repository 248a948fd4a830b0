package object

import (
	"sort"
	"strings"
)

// List is Periwinkle's mutable, ordered, growable collection.
type List struct {
	Elements []Value
}

func (l *List) Type() *TypeDescriptor { return ListType }
func (l *List) Inspect() string       { return inspectElements("[", l.Elements, "]") }

var ListType = &TypeDescriptor{
	Name: "Список",
	Base: ObjectType,
	Operators: map[OperatorSlot]BinaryFunc{
		SlotAdd: func(a, b Value) Value {
			al, aok := a.(*List)
			bl, bok := b.(*List)
			if !aok || !bok {
				return NotImplemented
			}
			elems := make([]Value, 0, len(al.Elements)+len(bl.Elements))
			elems = append(elems, al.Elements...)
			elems = append(elems, bl.Elements...)
			return &List{Elements: elems}
		},
	},
	Unary: map[OperatorSlot]UnaryFunc{
		SlotGetIter:  func(v Value) Value { return newSliceIterator(append([]Value(nil), v.(*List).Elements...)) },
		SlotToString: func(v Value) Value { return &String{Value: v.Inspect()} },
		SlotToBool:   func(v Value) Value { return Bool(len(v.(*List).Elements) > 0) },
	},
	Compare: func(a, b Value, op CompareOp) Value {
		al, aok := a.(*List)
		bl, bok := b.(*List)
		if !aok || !bok {
			return NotImplemented
		}
		return lexicographicCompare(al.Elements, bl.Elements, op)
	},
	Attributes: map[string]Value{
		"додати":      &NativeCallable{Name: "додати", Fn: listPush},
		"вилучити":    &NativeCallable{Name: "вилучити", Fn: listPop},
		"впорядкувати": &NativeCallable{Name: "впорядкувати", Fn: listSort},
		"копія":       &NativeCallable{Name: "копія", Fn: listCopy},
	},
	Traverse: func(v Value, visit func(Value)) {
		for _, e := range v.(*List).Elements {
			visit(e)
		}
	},
}

// listPush appends every argument after the receiver to the list in place,
// returning the list itself.
func listPush(args []Value, _ map[string]Value) Value {
	l := args[0].(*List)
	l.Elements = append(l.Elements, args[1:]...)
	return l
}

// listPop removes and returns the list's last element, or raises
// IndexError on an empty list.
func listPop(args []Value, _ map[string]Value) Value {
	l := args[0].(*List)
	if len(l.Elements) == 0 {
		return NewException(IndexErrorType, "вилучення з порожнього списку")
	}
	last := l.Elements[len(l.Elements)-1]
	l.Elements = l.Elements[:len(l.Elements)-1]
	return last
}

// listSort orders the list in place by the built-in ordering comparison of
// its elements; a heterogeneous list (no total order between two of its
// elements) raises TypeError and leaves the list's observable position
// unchanged before the error is reported.
func listSort(args []Value, _ map[string]Value) Value {
	l := args[0].(*List)
	sorted := append([]Value(nil), l.Elements...)
	var sortErr Value
	sort.SliceStable(sorted, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		lt := sorted[i].Type().Compare
		if lt == nil {
			sortErr = NewExceptionf(TypeErrorType, "непідтримуване порівняння типів %s і %s", sorted[i].Type().Name, sorted[j].Type().Name)
			return false
		}
		r := lt(sorted[i], sorted[j], CompareLT)
		if r == NotImplemented {
			sortErr = NewExceptionf(TypeErrorType, "непідтримуване порівняння типів %s і %s", sorted[i].Type().Name, sorted[j].Type().Name)
			return false
		}
		return Truthy(r)
	})
	if sortErr != nil {
		return sortErr
	}
	l.Elements = sorted
	return l
}

// listCopy returns a shallow copy: a new outer List sharing element
// identity with the original.
func listCopy(args []Value, _ map[string]Value) Value {
	l := args[0].(*List)
	return &List{Elements: append([]Value(nil), l.Elements...)}
}

func lexicographicCompare(a, b []Value, op CompareOp) Value {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		cmp := a[i].Type().Compare
		if cmp == nil {
			return NotImplemented
		}
		if lt := cmp(a[i], b[i], CompareLT); lt == NotImplemented {
			return NotImplemented
		} else if Truthy(lt) {
			return boolForOrder(-1, op)
		}
		if gt := cmp(a[i], b[i], CompareGT); gt == NotImplemented {
			return NotImplemented
		} else if Truthy(gt) {
			return boolForOrder(1, op)
		}
	}
	return boolForOrder(compareInt(len(a), len(b)), op)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func boolForOrder(cmp int, op CompareOp) Value {
	switch op {
	case CompareEQ:
		return Bool(cmp == 0)
	case CompareNE:
		return Bool(cmp != 0)
	case CompareGT:
		return Bool(cmp > 0)
	case CompareGE:
		return Bool(cmp >= 0)
	case CompareLT:
		return Bool(cmp < 0)
	case CompareLE:
		return Bool(cmp <= 0)
	}
	return NotImplemented
}

// Tuple is Periwinkle's immutable fixed-size ordered collection.
type Tuple struct {
	Elements []Value
}

func (t *Tuple) Type() *TypeDescriptor { return TupleType }
func (t *Tuple) Inspect() string       { return inspectElements("(", t.Elements, ")") }

var TupleType = &TypeDescriptor{
	Name: "Кортеж",
	Base: ObjectType,
	Unary: map[OperatorSlot]UnaryFunc{
		SlotGetIter:  func(v Value) Value { return newSliceIterator(append([]Value(nil), v.(*Tuple).Elements...)) },
		SlotToString: func(v Value) Value { return &String{Value: v.Inspect()} },
		SlotToBool:   func(v Value) Value { return Bool(len(v.(*Tuple).Elements) > 0) },
	},
	Compare: func(a, b Value, op CompareOp) Value {
		at, aok := a.(*Tuple)
		bt, bok := b.(*Tuple)
		if !aok || !bok {
			return NotImplemented
		}
		switch op {
		case CompareEQ:
			return Bool(tupleEqual(at, bt))
		case CompareNE:
			return Bool(!tupleEqual(at, bt))
		default:
			return NotImplemented
		}
	},
	Traverse: func(v Value, visit func(Value)) {
		for _, e := range v.(*Tuple).Elements {
			visit(e)
		}
	},
}

func tupleEqual(a, b *Tuple) bool {
	if len(a.Elements) != len(b.Elements) {
		return false
	}
	for i := range a.Elements {
		if !valuesEqual(a.Elements[i], b.Elements[i]) {
			return false
		}
	}
	return true
}

// valuesEqual compares two values through their types' comparison
// functions, falling back to reference identity when neither side can
// compare — the same fallback the VM's OpCompare applies for EQ.
func valuesEqual(a, b Value) bool {
	if cmp := a.Type().Compare; cmp != nil {
		if r := cmp(a, b, CompareEQ); r != NotImplemented {
			return Truthy(r)
		}
	}
	if cmp := b.Type().Compare; cmp != nil {
		if r := cmp(a, b, CompareEQ); r != NotImplemented {
			return Truthy(r)
		}
	}
	return a == b
}

func inspectElements(open string, elems []Value, end string) string {
	var out strings.Builder
	out.WriteString(open)
	for i, e := range elems {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(e.Inspect())
	}
	out.WriteString(end)
	return out.String()
}

// Cell is a heap-allocated box shared between a function scope that owns
// a captured variable and every closure capturing it, per the scope
// package's Local-to-Cell promotion. Mirrors the original cell_object: a
// one-field indirection so that writes through OpStoreCell are visible
// to every closure sharing it.
type Cell struct {
	Value Value
}

func (c *Cell) Type() *TypeDescriptor { return CellType }

func (c *Cell) Inspect() string {
	if c.Value == nil {
		return "<комірка>"
	}
	return "<комірка " + c.Value.Inspect() + ">"
}

var CellType = &TypeDescriptor{
	Name: "Комірка",
	Base: ObjectType,
	Traverse: func(v Value, visit func(Value)) {
		visit(v.(*Cell).Value)
	},
}
