// Package scope implements Periwinkle's scope analysis pass.
//
// Unlike Kong's Monkey compiler, which resolves variable scope and
// assigns storage indices in the same pass as code emission, Periwinkle
// runs scope analysis as a separate walk over the AST before compilation
// (mirroring the original C++ implementation's ScopeAnalyzer). The pass
// decides, for every name referenced anywhere in a function, whether that
// name lives in a local slot, a global slot, or a shared "cell" — a
// variable captured by a nested function closure, and therefore promoted
// to a heap-allocated box so both the defining scope and the capturing
// closure see writes to it.
//
// The analyzer visits every name reference once and lets resolution walk
// outward through the parent chain, promoting a variable to a cell the
// moment a reference to it is found in a scope other than the one that
// defines it.
package scope

import "github.com/dr8co/periwinkle/ast"

// Kind classifies how a variable is stored at runtime.
type Kind int

const (
	// Global variables live in the VM's global namespace, resolved by name.
	Global Kind = iota
	// Local variables live in the current frame's local slots, resolved by index.
	Local
	// Cell variables live in a heap-allocated Cell shared with closures that
	// capture them; a function that merely uses one it doesn't own sees it
	// as a free variable resolved through its closure's captured cells.
	Cell
)

// Scope tracks the variable bindings visible within one function or the
// top-level program, plus a link to the enclosing scope for resolution.
type Scope struct {
	Kind   ScopeKind
	Parent *Scope

	variableKind map[string]Kind

	Locals []string // names backed by a local slot, in definition order
	Cells  []string // names this scope owns as a Cell, in definition order
	Free   []string // names this scope captures from an enclosing scope, in order
}

// ScopeKind distinguishes the top-level program scope from a function's.
type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopeFunction
)

func newScope(kind ScopeKind, parent *Scope) *Scope {
	return &Scope{Kind: kind, Parent: parent, variableKind: make(map[string]Kind)}
}

// addLocal declares name as a local (or global, at top level) binding
// owned by this scope.
func (s *Scope) addLocal(name string) {
	s.Locals = append(s.Locals, name)
	if s.Kind == ScopeGlobal {
		s.variableKind[name] = Global
	} else {
		s.variableKind[name] = Local
	}
}

// addCell declares name as a Cell owned by this scope.
func (s *Scope) addCell(name string) {
	s.Cells = append(s.Cells, name)
	s.variableKind[name] = Cell
}

// addFree records that this scope captures name from an enclosing scope.
func (s *Scope) addFree(name string) {
	s.Free = append(s.Free, name)
	s.variableKind[name] = Cell
}

// KindOf returns how name is stored within this scope, having already run
// through maybePromote for every reference to it.
func (s *Scope) KindOf(name string) Kind {
	return s.variableKind[name]
}

// promote turns name, currently a Local owned by owner, into a Cell, and
// threads a Free capture through every scope between the referencing
// scope (the receiver) and owner.
func (s *Scope) promote(name string, owner *Scope) {
	owner.addCell(name)
	for cur := s; cur != owner; cur = cur.Parent {
		cur.addFree(name)
	}
}

// maybePromote is called on every use (read, write, or capture) of name
// from scope s. If resolving name upward lands on a Local owned by an
// enclosing function scope, that binding is promoted to a Cell and every
// intermediate scope records it as a free variable.
func (s *Scope) maybePromote(name string, builtins map[string]bool) {
	kind, known := s.variableKind[name]
	if !known {
		kind = Local
		if s.Kind == ScopeGlobal {
			kind = Global
		}
	}
	if kind == Cell {
		return
	}

	owner, resolved := s.resolve(name, kind, builtins)
	s.variableKind[name] = resolved
	if resolved == Cell {
		s.promote(name, owner)
	}
}

// resolve walks outward from s looking for name, returning the scope that
// owns it and the Kind it should be treated as from s's perspective.
// A name not found anywhere short of the global scope, or one that names
// a builtin, resolves as Global. A name owned by an enclosing function
// scope resolves as Cell (it must be captured).
func (s *Scope) resolve(name string, kind Kind, builtins map[string]bool) (*Scope, Kind) {
	if builtins[name] || s.Kind == ScopeGlobal {
		return nil, Global
	}
	if _, ok := s.variableKind[name]; ok {
		return s, kind
	}
	if s.Kind == ScopeFunction {
		kind = Cell
	}
	if s.Parent == nil {
		return nil, Global
	}
	if s.Parent.Kind == ScopeGlobal {
		return s.Parent, Global
	}
	return s.Parent.resolve(name, kind, builtins)
}

// Info maps every AST node that opens a new scope (the program itself, and
// every FunctionDeclaration) to the Scope analysis produced for it.
type Info map[ast.Node]*Scope

// Analyze walks program and returns the scope assigned to it and to every
// function declared within it, promoting captured variables to cells
// along the way. builtins names identifiers that always resolve as
// globals regardless of any local shadowing analysis finds, matching the
// original's treatment of names registered in the builtin table.
func Analyze(program *ast.Program, builtins map[string]bool) Info {
	info := make(Info)
	root := newScope(ScopeGlobal, nil)
	info[program] = root

	a := &analyzer{info: info, builtins: builtins}
	for _, stmt := range program.Statements {
		a.statement(stmt, root)
	}
	return info
}

type analyzer struct {
	info     Info
	builtins map[string]bool
}

func (a *analyzer) statement(node ast.Statement, s *Scope) {
	switch n := node.(type) {
	case *ast.BlockStatement:
		for _, stmt := range n.Statements {
			a.statement(stmt, s)
		}
	case *ast.ExpressionStatement:
		a.expression(n.Expression, s)
	case *ast.WhileStatement:
		a.expression(n.Condition, s)
		a.statement(n.Body, s)
	case *ast.BreakStatement, *ast.ContinueStatement:
		// no names referenced
	case *ast.IfStatement:
		a.expression(n.Condition, s)
		a.statement(n.Consequence, s)
		if n.Else != nil {
			a.statement(n.Else, s)
		}
	case *ast.FunctionDeclaration:
		s.addLocal(n.Name.Value)

		fnScope := newScope(ScopeFunction, s)
		a.info[n] = fnScope
		fnScope.addLocal(n.Name.Value)

		for _, p := range n.Parameters {
			fnScope.addLocal(p.Value)
		}
		for _, d := range n.DefaultParameters {
			fnScope.addLocal(d.Name.Value)
		}
		if n.VariadicParameter != nil {
			fnScope.addLocal(n.VariadicParameter.Value)
		}
		for _, d := range n.DefaultParameters {
			a.expression(d.Default, s)
		}

		a.statement(n.Body, fnScope)
	case *ast.ReturnStatement:
		if n.ReturnValue != nil {
			a.expression(n.ReturnValue, s)
		}
	case *ast.ForEachStatement:
		s.addLocal(n.Variable.Value)
		a.expression(n.Iterable, s)
		a.statement(n.Body, s)
	case *ast.TryCatchStatement:
		a.statement(n.Body, s)
		for _, c := range n.CatchClauses {
			s.maybePromote(c.ExceptionName.Value, a.builtins)
			if c.Binding != nil {
				s.addLocal(c.Binding.Value)
			}
			a.statement(c.Body, s)
		}
		if n.Finally != nil {
			a.statement(n.Finally, s)
		}
	case *ast.RaiseStatement:
		a.expression(n.Exception, s)
	}
}

func (a *analyzer) expression(node ast.Expression, s *Scope) {
	switch n := node.(type) {
	case *ast.AssignmentExpression:
		// An assignment inside a function to a name that no enclosing
		// function scope binds introduces a local of this function.
		if _, known := s.variableKind[n.Name.Value]; !known && s.Kind == ScopeFunction && !a.builtins[n.Name.Value] {
			if owner, _ := s.resolve(n.Name.Value, Local, a.builtins); owner == nil || owner.Kind == ScopeGlobal {
				s.addLocal(n.Name.Value)
			}
		}
		s.maybePromote(n.Name.Value, a.builtins)
		a.expression(n.Value, s)
	case *ast.BinaryExpression:
		a.expression(n.Right, s)
		a.expression(n.Left, s)
	case *ast.UnaryExpression:
		a.expression(n.Operand, s)
	case *ast.ParenthesizedExpression:
		a.expression(n.Expression, s)
	case *ast.Identifier:
		s.maybePromote(n.Value, a.builtins)
	case *ast.AttributeExpression:
		a.expression(n.Object, s)
	case *ast.LiteralExpression:
		// no names referenced
	case *ast.ListLiteral:
		for _, e := range n.Elements {
			a.expression(e, s)
		}
	case *ast.CallExpression:
		a.expression(n.Callable, s)
		for _, arg := range n.Arguments {
			a.expression(arg, s)
		}
		for _, na := range n.NamedArguments {
			a.expression(na.Value, s)
		}
	}
}
