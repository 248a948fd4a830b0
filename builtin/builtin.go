// Package builtin registers Periwinkle's native functions and the
// built-in exception hierarchy as globals the compiler's scope pass and
// the VM's global namespace both resolve against.
//
// Follows Kong's object.Builtins table
// (name/Builtin-pair slice plus GetBuiltinByName lookup), adapted from
// Monkey's arity-fixed, unnamed-argument-only builtins (len, first, rest,
// last, push, puts) to Periwinkle's named-argument-aware calling
// convention and Ukrainian spelling, and relocated to its own package per
// this repo's layout since built-ins now also own the exception-type
// globals (include/vm/builtins.hpp), not just a handful of collection
// helpers.
package builtin

import (
	"bufio"
	"fmt"
	"os"

	"github.com/dr8co/periwinkle/object"
)

// Registered is a predefined list of global names this package installs
// into a fresh VM: every native function plus every built-in exception
// type and the end-of-iteration type, in declaration order.
var Registered = buildRegistry()

type entry struct {
	Name  string
	Value object.Value
}

func buildRegistry() []entry {
	var reg []entry
	for _, nc := range nativeFunctions {
		reg = append(reg, entry{Name: nc.Name, Value: nc})
	}
	for _, exc := range object.BuiltinExceptionTypes {
		reg = append(reg, entry{Name: exc.Name, Value: exc})
	}
	reg = append(reg, entry{Name: object.StopIterationType.Name, Value: object.StopIterationType})
	return reg
}

// Names reports every name this package installs as a global, for the
// scope package's builtins set (so a user variable never shadows a
// built-in name into a Local by accident of resolution order).
func Names() map[string]bool {
	names := make(map[string]bool, len(Registered))
	for _, e := range Registered {
		names[e.Name] = true
	}
	return names
}

var stdin = bufio.NewReader(os.Stdin)

var nativeFunctions = []*object.NativeCallable{
	{Name: "друк", Fn: builtinPrint},
	{Name: "рядок_вводу", Fn: builtinReadLine},
	{Name: "довжина", Fn: builtinLen},
	{Name: "тип", Fn: builtinType},
	{Name: "ітератор", Fn: builtinIterator},
	{Name: "кортеж", Fn: builtinTuple},
}

func builtinPrint(args []object.Value, _ map[string]object.Value) object.Value {
	parts := make([]any, len(args))
	for i, a := range args {
		parts[i] = a.Inspect()
	}
	fmt.Println(parts...)
	return object.None
}

func builtinReadLine(args []object.Value, _ map[string]object.Value) object.Value {
	if len(args) == 1 {
		if prompt, ok := args[0].(*object.String); ok {
			fmt.Print(prompt.Value)
		}
	}
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return object.None
	}
	line = trimNewline(line)
	return &object.String{Value: line}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func builtinLen(args []object.Value, _ map[string]object.Value) object.Value {
	if len(args) != 1 {
		return object.NewExceptionf(object.TypeErrorType, "довжина() очікує 1 аргумент, отримано %d", len(args))
	}
	switch v := args[0].(type) {
	case *object.String:
		return &object.Integer{Value: int64(len([]rune(v.Value)))}
	case *object.List:
		return &object.Integer{Value: int64(len(v.Elements))}
	case *object.Tuple:
		return &object.Integer{Value: int64(len(v.Elements))}
	default:
		return object.NewExceptionf(object.TypeErrorType, "об'єкт типу %s не має довжини", v.Type().Name)
	}
}

func builtinType(args []object.Value, _ map[string]object.Value) object.Value {
	if len(args) != 1 {
		return object.NewExceptionf(object.TypeErrorType, "тип() очікує 1 аргумент, отримано %d", len(args))
	}
	return args[0].Type()
}

// builtinIterator exposes the same dispatch OpUnaryOp(getIter) performs
// internally for "для кожного", so user code can build manual iteration
// loops without a for-each statement.
func builtinIterator(args []object.Value, _ map[string]object.Value) object.Value {
	if len(args) != 1 {
		return object.NewExceptionf(object.TypeErrorType, "ітератор() очікує 1 аргумент, отримано %d", len(args))
	}
	v := args[0]
	fn, ok := v.Type().Unary[object.SlotGetIter]
	if !ok {
		return object.NewExceptionf(object.TypeErrorType, "об'єкт типу %s не ітерований", v.Type().Name)
	}
	return fn(v)
}

// builtinTuple builds an immutable Tuple from its positional arguments.
// The calling convention's variadic collection already produces Tuple
// values internally; this gives user code the same constructor the way
// the built-in exception types are called to construct instances.
func builtinTuple(args []object.Value, _ map[string]object.Value) object.Value {
	elems := append([]object.Value(nil), args...)
	return &object.Tuple{Elements: elems}
}
