package object

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// stringCollator orders String comparisons (GT/GE/LT/LE) using Unicode
// collation rather than raw byte comparison, so that Cyrillic string
// literals sort the way a Ukrainian-locale reader expects rather than by
// UTF-8 byte value. Every built-in string's ordering comparisons route
// through it.
var stringCollator = collate.New(language.Ukrainian)

// String is an immutable Periwinkle string value.
type String struct {
	Value string
}

func (s *String) Type() *TypeDescriptor { return StringType }
func (s *String) Inspect() string       { return s.Value }

var StringType = &TypeDescriptor{
	Name: "Рядок",
	Base: ObjectType,
	Operators: map[OperatorSlot]BinaryFunc{
		SlotAdd: func(a, b Value) Value {
			as, aok := a.(*String)
			bs, bok := b.(*String)
			if !aok || !bok {
				return NotImplemented
			}
			return &String{Value: as.Value + bs.Value}
		},
		SlotMul: func(a, b Value) Value {
			as, aok := a.(*String)
			bi, bok := b.(*Integer)
			if !aok || !bok {
				return NotImplemented
			}
			if bi.Value <= 0 {
				return &String{Value: ""}
			}
			return &String{Value: strings.Repeat(as.Value, int(bi.Value))}
		},
	},
	Unary: map[OperatorSlot]UnaryFunc{
		SlotGetIter: func(v Value) Value {
			runes := []rune(v.(*String).Value)
			elems := make([]Value, len(runes))
			for i, r := range runes {
				elems[i] = &String{Value: string(r)}
			}
			return newSliceIterator(elems)
		},
		SlotToString:  func(v Value) Value { return v },
		SlotToInteger: stringToInteger,
		SlotToReal:    stringToReal,
		SlotToBool:    func(v Value) Value { return Bool(len(v.(*String).Value) > 0) },
	},
	Compare: stringCompare,
	Attributes: map[string]Value{
		"замінити":     &NativeCallable{Name: "замінити", Fn: stringReplace},
		"верхній":      &NativeCallable{Name: "верхній", Fn: stringUpper},
		"нижній":       &NativeCallable{Name: "нижній", Fn: stringLower},
		"розділити":    &NativeCallable{Name: "розділити", Fn: stringSplit},
	},
}

// stringToInteger converts a base-10 string to Integer, raising ValueError
// on malformed input.
func stringToInteger(v Value) Value {
	s := v.(*String)
	n, err := strconv.ParseInt(strings.TrimSpace(s.Value), 10, 64)
	if err != nil {
		return NewExceptionf(ValueErrorType, "неможливо перетворити %q на ціле", s.Value)
	}
	return &Integer{Value: n}
}

func stringToReal(v Value) Value {
	s := v.(*String)
	f, err := strconv.ParseFloat(strings.TrimSpace(s.Value), 64)
	if err != nil {
		return NewExceptionf(ValueErrorType, "неможливо перетворити %q на дійсне", s.Value)
	}
	return &Real{Value: f}
}

// stringReplace(a, b) returns the receiver with every occurrence of a
// replaced by b; replace(a, a) is the identity for non-empty a.
func stringReplace(args []Value, _ map[string]Value) Value {
	s := args[0].(*String)
	if len(args) != 3 {
		return NewExceptionf(TypeErrorType, "замінити() очікує 2 аргументи, отримано %d", len(args)-1)
	}
	old, ok1 := args[1].(*String)
	nw, ok2 := args[2].(*String)
	if !ok1 || !ok2 {
		return NewException(TypeErrorType, "замінити() очікує рядкові аргументи")
	}
	return &String{Value: strings.ReplaceAll(s.Value, old.Value, nw.Value)}
}

func stringUpper(args []Value, _ map[string]Value) Value {
	return &String{Value: strings.ToUpper(args[0].(*String).Value)}
}

func stringLower(args []Value, _ map[string]Value) Value {
	return &String{Value: strings.ToLower(args[0].(*String).Value)}
}

func stringSplit(args []Value, _ map[string]Value) Value {
	s := args[0].(*String)
	sep := ""
	if len(args) > 1 {
		if sv, ok := args[1].(*String); ok {
			sep = sv.Value
		}
	}
	var parts []string
	if sep == "" {
		parts = strings.Fields(s.Value)
	} else {
		parts = strings.Split(s.Value, sep)
	}
	elems := make([]Value, len(parts))
	for i, p := range parts {
		elems[i] = &String{Value: p}
	}
	return &List{Elements: elems}
}

func stringCompare(a, b Value, op CompareOp) Value {
	as, aok := a.(*String)
	bs, bok := b.(*String)
	if !aok || !bok {
		return NotImplemented
	}
	if op == CompareEQ {
		return Bool(as.Value == bs.Value)
	}
	if op == CompareNE {
		return Bool(as.Value != bs.Value)
	}
	c := stringCollator.CompareString(as.Value, bs.Value)
	var result bool
	switch op {
	case CompareGT:
		result = c > 0
	case CompareGE:
		result = c >= 0
	case CompareLT:
		result = c < 0
	case CompareLE:
		result = c <= 0
	}
	return Bool(result)
}

// Repr is used by the disassembler and the REPL to render a string
// constant back as a Periwinkle source literal, quotes and all.
func (s *String) Repr() string { return fmt.Sprintf("%q", s.Value) }
