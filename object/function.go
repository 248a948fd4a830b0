package object

import (
	"fmt"

	"github.com/dr8co/periwinkle/code"
)

// CodeObject is a compiled function body: its bytecode plus the static
// facts the compiler and scope pass worked out about it. Generalizes
// Kong's CompiledFunction with the additional bookkeeping Periwinkle's
// richer calling convention needs (named/default parameters, the cell
// slots a function owns versus the free variables it captures).
type CodeObject struct {
	Name         string
	Instructions code.Instructions

	NumLocals     int
	NumParameters int

	// ParameterNames lists declared parameter names in order, including
	// those with defaults; used to match named-argument calls (OpCallNA)
	// to local slots.
	ParameterNames []string

	// DefaultCount is how many trailing parameters have a default
	// expression; the compiler emits their value-producing bytecode
	// ahead of the code-object load that precedes OpMakeFunction, in
	// declaration order.
	DefaultCount int

	// Variadic is the name of the trailing *-parameter collecting extra
	// positional arguments, or "" if the function has none.
	Variadic string

	// NumCells is how many of this function's own locals are promoted to
	// Cells (captured by a nested closure); NumFree is how many Cells it
	// in turn captures from an enclosing function.
	NumCells int
	NumFree  int

	// Constants holds literal values baked into this function's bytecode,
	// including the string constants OpLoadGlobal/OpGetAttr/OpLoadMethod
	// resolve names through and the name-tuples OpCallNA/OpCallMethodNA use.
	Constants []Value

	// ParamLayout records, for each entry in ParameterNames (same order),
	// where the call prologue must deposit that parameter's resolved
	// value: a plain local slot, or a freshly allocated Cell when the
	// scope pass promoted the parameter to a captured cell.
	ParamLayout []ParamSlot

	// VariadicSlot is ParamLayout's counterpart for the variadic
	// parameter; only meaningful when Variadic != "".
	VariadicSlot ParamSlot

	// Self is where the call prologue installs the closure being invoked,
	// so the body can refer to the function's own name for recursion no
	// matter what the enclosing scope later rebinds that name to. Nil for
	// the program root. A parameter sharing the function's name shadows it:
	// the prologue deposits parameters after the self binding.
	Self *ParamSlot

	// LineTable maps instruction index to source line, sparse: a run of
	// instructions compiled from the same source line shares one entry,
	// keyed at the first instruction of the run.
	LineTable map[int]int

	// Regions lists this code object's protected (try/catch/finally) regions.
	Regions []ProtectedRegion
}

// ParamSlot says where one declared parameter's initial value lives once
// the call prologue has run.
type ParamSlot struct {
	Cell  bool // true: Index is a cell slot; false: Index is a local slot
	Index int
}

// ProtectedRegion is one try/catch/finally construct's instruction range.
// FirstHandler is the IP of the first CATCH test; Finally is the start of
// the finally block, or 0 if the construct has none.
type ProtectedRegion struct {
	Start        int
	FirstHandler int
	End          int
	Finally      int
}

// LineForIP returns the source line recorded for ip, per the invariant
// that ipToLineno is defined for some IP no greater than ip: the greatest
// entry whose key does not exceed ip.
func (c *CodeObject) LineForIP(ip int) int {
	best, bestIP := 0, -1
	for k, v := range c.LineTable {
		if k <= ip && k > bestIP {
			bestIP, best = k, v
		}
	}
	return best
}

func (c *CodeObject) Type() *TypeDescriptor { return CodeObjectType }
func (c *CodeObject) Inspect() string       { return fmt.Sprintf("<код %s>", c.Name) }

var CodeObjectType = &TypeDescriptor{Name: "Код", Base: ObjectType}

// Closure pairs a CodeObject with the Cells it captured from enclosing
// scopes at the point it was created, and the already-evaluated default
// values for parameters that have one. Follows Kong's Closure
// (object/object.go), extended with Defaults for Periwinkle's
// default-parameter support.
type Closure struct {
	Code     *CodeObject
	Free     []*Cell
	Defaults []Value
}

func (c *Closure) Type() *TypeDescriptor { return ClosureType }
func (c *Closure) Inspect() string       { return fmt.Sprintf("<функція %s>", c.Code.Name) }

var ClosureType = &TypeDescriptor{
	Name: "Функція",
	Base: ObjectType,
	Traverse: func(v Value, visit func(Value)) {
		cl := v.(*Closure)
		for _, cell := range cl.Free {
			visit(cell)
		}
		for _, d := range cl.Defaults {
			visit(d)
		}
	},
}

// NativeCallable wraps a Go function as a Periwinkle callable, for
// built-ins (друк, рядок_вводу, довжина, ...) registered by package
// builtin. Follows Kong's Builtin/BuiltinFunction, with named
// arguments added to match user-defined functions' calling convention.
type NativeCallable struct {
	Name string
	Fn   func(args []Value, named map[string]Value) Value
}

func (n *NativeCallable) Type() *TypeDescriptor { return NativeCallableType }
func (n *NativeCallable) Inspect() string       { return fmt.Sprintf("<вбудована %s>", n.Name) }

var NativeCallableType = &TypeDescriptor{Name: "ВбудованаФункція", Base: ObjectType}

// BoundMethod pairs a receiver with a method value resolved from its
// type's attribute table (by OpLoadMethod), so a subsequent OpCallMethod
// can invoke it without the receiver having to be re-pushed as the first
// argument by the compiler.
type BoundMethod struct {
	Receiver Value
	Method   Value // either *Closure or *NativeCallable
}

func (b *BoundMethod) Type() *TypeDescriptor { return BoundMethodType }
func (b *BoundMethod) Inspect() string       { return "<метод>" }

var BoundMethodType = &TypeDescriptor{
	Name: "Метод",
	Base: ObjectType,
	Traverse: func(v Value, visit func(Value)) {
		bm := v.(*BoundMethod)
		visit(bm.Receiver)
		visit(bm.Method)
	},
}
