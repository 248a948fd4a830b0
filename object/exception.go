package object

import "fmt"

// Exception is a raised Periwinkle exception: a typed value carrying a
// message and, once unwinding begins, the call stack it passed through.
// Translated from the original's C++ subclass-per-error-kind hierarchy
// into one struct whose Exc field names which member of the built-in
// hierarchy it is —
// idiomatic Go favors composition over the original's class hierarchy,
// and the VM only ever needs to compare an exception's type against a
// caught type, never dispatch virtually on it.
type Exception struct {
	Exc     *TypeDescriptor
	Message string

	// Trace holds one formatted frame description per call level active
	// when the exception was raised, innermost first. Populated by the VM
	// as it unwinds, not at construction time.
	Trace []string
}

func (e *Exception) Type() *TypeDescriptor { return e.Exc }
func (e *Exception) Inspect() string       { return fmt.Sprintf("%s: %s", e.Exc.Name, e.Message) }

// NewException builds an exception of kind exc with a formatted message.
func NewException(exc *TypeDescriptor, message string) *Exception {
	return &Exception{Exc: exc, Message: message}
}

// NewExceptionf is NewException with fmt.Sprintf-style formatting.
func NewExceptionf(exc *TypeDescriptor, format string, args ...any) *Exception {
	return &Exception{Exc: exc, Message: fmt.Sprintf(format, args...)}
}

// IsA reports whether e is an instance of exc or one of exc's descendants
// in the built-in exception hierarchy, following the Base chain the same
// way the VM's OpCatch instruction tests a raised exception against a
// caught type.
func (e *Exception) IsA(exc *TypeDescriptor) bool {
	return e.Exc.IsSubtype(exc)
}

// The built-in exception hierarchy. ExceptionType is the common root
// every other built-in exception type descends from, matching
// include/object/exception_object.hpp's base class.
var (
	ExceptionType           = newExceptionType("Виняток", ObjectType)
	TypeErrorType           = newExceptionType("ПомилкаТипу", ExceptionType)
	ValueErrorType          = newExceptionType("ПомилкаЗначення", ExceptionType)
	NameErrorType           = newExceptionType("ПомилкаІменування", ExceptionType)
	AttributeErrorType      = newExceptionType("ПомилкаАтрибута", ExceptionType)
	IndexErrorType          = newExceptionType("ПомилкаІндексу", ExceptionType)
	DivisionByZeroErrorType = newExceptionType("ПомилкаДіленняНаНуль", ExceptionType)
	InternalErrorType       = newExceptionType("ВнутрішняПомилка", ExceptionType)

	// NotImplementedErrorType is user-raisable (it sits alongside the other
	// built-in exceptions for catch clauses to name) but the VM never raises it
	// itself — operator fallback uses the distinct NotImplemented sentinel
	// value instead, which is never wrapped as an exception.
	NotImplementedErrorType = newExceptionType("ПомилкаНеРеалізовано", ExceptionType)
)

func newExceptionType(name string, base *TypeDescriptor) *TypeDescriptor {
	t := &TypeDescriptor{Name: name, Base: base, Compare: referenceCompare}
	t.Constructor = func(args []Value, _ map[string]Value) Value {
		msg := ""
		if len(args) > 0 {
			if s, ok := args[0].(*String); ok {
				msg = s.Value
			} else {
				msg = args[0].Inspect()
			}
		}
		return NewException(t, msg)
	}
	return t
}

// BuiltinExceptionTypes lists the exception hierarchy exposed as globals
// by package builtin, in declaration order (root first).
var BuiltinExceptionTypes = []*TypeDescriptor{
	ExceptionType,
	TypeErrorType,
	ValueErrorType,
	NameErrorType,
	AttributeErrorType,
	IndexErrorType,
	DivisionByZeroErrorType,
	InternalErrorType,
	NotImplementedErrorType,
}
