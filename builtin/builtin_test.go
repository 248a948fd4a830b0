package builtin

import (
	"testing"

	"github.com/dr8co/periwinkle/object"
)

func callNative(t *testing.T, name string, args []object.Value) object.Value {
	t.Helper()
	for _, nc := range nativeFunctions {
		if nc.Name == name {
			return nc.Fn(args, nil)
		}
	}
	t.Fatalf("no native function registered under %q", name)
	return nil
}

func TestLenOverStringListAndTuple(t *testing.T) {
	tests := []struct {
		name string
		v    object.Value
		want int64
	}{
		{"string", &object.String{Value: "привіт"}, 6},
		{"list", &object.List{Elements: []object.Value{&object.Integer{Value: 1}, &object.Integer{Value: 2}}}, 2},
		{"tuple", &object.Tuple{Elements: []object.Value{&object.Integer{Value: 1}}}, 1},
	}
	for _, tt := range tests {
		got := callNative(t, "довжина", []object.Value{tt.v})
		i, ok := got.(*object.Integer)
		if !ok || i.Value != tt.want {
			t.Errorf("%s: довжина() = %v, want Integer(%d)", tt.name, got, tt.want)
		}
	}
}

func TestLenRejectsWrongArity(t *testing.T) {
	got := callNative(t, "довжина", []object.Value{&object.Integer{Value: 1}, &object.Integer{Value: 2}})
	exc, ok := got.(*object.Exception)
	if !ok || !exc.IsA(object.TypeErrorType) {
		t.Fatalf("expected TypeError for wrong arity, got %v", got)
	}
}

func TestTypeReturnsTypeDescriptor(t *testing.T) {
	got := callNative(t, "тип", []object.Value{&object.Integer{Value: 1}})
	if got != object.IntegerType {
		t.Fatalf("тип(1) = %v, want IntegerType", got)
	}
}

func TestIteratorOverList(t *testing.T) {
	lst := &object.List{Elements: []object.Value{&object.Integer{Value: 1}, &object.Integer{Value: 2}}}
	got := callNative(t, "ітератор", []object.Value{lst})
	iter, ok := got.(*object.Iterator)
	if !ok {
		t.Fatalf("expected an Iterator, got %T", got)
	}
	next, ok := iter.Type().Attributes["наступний"].(*object.NativeCallable)
	if !ok {
		t.Fatal("expected Iterator to expose a наступний native method")
	}
	first := next.Fn([]object.Value{iter}, nil)
	i, ok := first.(*object.Integer)
	if !ok || i.Value != 1 {
		t.Fatalf("first наступний() = %v, want Integer(1)", first)
	}
}

func TestIteratorRejectsNonIterable(t *testing.T) {
	got := callNative(t, "ітератор", []object.Value{&object.Integer{Value: 1}})
	exc, ok := got.(*object.Exception)
	if !ok || !exc.IsA(object.TypeErrorType) {
		t.Fatalf("expected TypeError for a non-iterable argument, got %v", got)
	}
}

func TestTupleBuiltinConstructsTuple(t *testing.T) {
	got := callNative(t, "кортеж", []object.Value{&object.Integer{Value: 1}, &object.Integer{Value: 2}})
	tup, ok := got.(*object.Tuple)
	if !ok || len(tup.Elements) != 2 {
		t.Fatalf("кортеж(1, 2) = %v, want a 2-element Tuple", got)
	}
}

func TestNamesIncludesEveryNativeFunction(t *testing.T) {
	names := Names()
	for _, nc := range nativeFunctions {
		if !names[nc.Name] {
			t.Errorf("expected Names() to include %q", nc.Name)
		}
	}
}
