package object

// StopIterationSingleton is a distinct value (not an Exception) an
// iterator's "наступний" method returns to signal exhaustion. OpForEach
// checks for it by identity.
var StopIterationSingleton Value = &stopIteration{}

type stopIteration struct{}

func (s *stopIteration) Type() *TypeDescriptor { return StopIterationType }
func (s *stopIteration) Inspect() string       { return "<кінець ітерації>" }

// StopIterationType names the end-of-iteration singleton's type. It is not
// part of the exception hierarchy (Base is Object, not Exception): reaching
// it through OpForEach is normal loop termination, never an unwind.
var StopIterationType = &TypeDescriptor{Name: "КінецьІтерації", Base: ObjectType}

// Iterator is the built-in sequence iterator produced by SlotGetIter for
// List, Tuple, and String. It exposes one attribute, "наступний", a native
// method the VM's OpForEach instruction resolves and calls directly rather
// than going through the general call path.
type Iterator struct {
	Elements []Value
	Index    int
}

func (it *Iterator) Type() *TypeDescriptor { return IteratorType }
func (it *Iterator) Inspect() string       { return "<ітератор>" }

var IteratorType = &TypeDescriptor{
	Name: "Ітератор",
	Base: ObjectType,
	Attributes: map[string]Value{
		"наступний": &NativeCallable{Name: "наступний", Fn: iteratorNext},
	},
	Traverse: func(v Value, visit func(Value)) {
		for _, e := range v.(*Iterator).Elements {
			visit(e)
		}
	},
}

// iteratorNext is registered as an instance method: args[0] is always the
// receiving *Iterator, matching the calling convention OpCallMethod uses
// for every native method (see object.BoundMethod).
func iteratorNext(args []Value, _ map[string]Value) Value {
	it := args[0].(*Iterator)
	if it.Index >= len(it.Elements) {
		return StopIterationSingleton
	}
	v := it.Elements[it.Index]
	it.Index++
	return v
}

func newSliceIterator(elems []Value) *Iterator {
	return &Iterator{Elements: elems}
}
