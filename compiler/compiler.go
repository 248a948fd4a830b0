// Package compiler lowers a Periwinkle AST into a tree of object.CodeObject
// values, consuming the scope package's name classifications.
//
// Kong's Monkey compiler resolved variable scope and emitted
// bytecode in the same walk, using a SymbolTable it owned itself. Here
// that job is split: the scope package runs first and hands back, per
// function-declaration node (plus the program root), which names are
// Global, Local, or Cell. This file's job shrinks to turning that
// classification plus the AST into code.Instructions, constant pools, and
// the per-function layout (CodeObject.ParamLayout, LineTable, Regions) the
// virtual machine needs at call and unwind time. The control-flow lowering
// rules (while/if/for-each/try-catch/function), jump back-patching via
// recorded instruction positions, and compile-time error collection all
// follow Kong's compiler.go shape.
package compiler

import (
	"fmt"

	"github.com/dr8co/periwinkle/ast"
	"github.com/dr8co/periwinkle/code"
	"github.com/dr8co/periwinkle/object"
	"github.com/dr8co/periwinkle/scope"
	"github.com/dr8co/periwinkle/token"
)

// Compiler walks an *ast.Program and produces its root *object.CodeObject.
type Compiler struct {
	builtins map[string]bool
	errors   []string

	fs *funcState // current function being compiled
}

// loopContext collects the jump sites a break/continue inside the loop
// body must patch once the loop's header and exit addresses are known.
type loopContext struct {
	headerPos  int
	breakSites []int
}

// funcState holds everything being accumulated for one code object
// (the program root, or one function declaration) while it compiles,
// plus a link to the enclosing funcState for nested function declarations.
type funcState struct {
	outer *funcState

	name      string
	scope     *scope.Scope
	lastLine  int
	lineTable map[int]int

	instructions code.Instructions
	constants    []object.Value

	localIndex map[string]int // name -> local slot index (Kind == Local only)
	cellIndex  map[string]int // name -> owned cell index (Kind == Cell, owner == this scope)
	freeIndex  map[string]int // name -> combined cell-region index (numCells + position in Free)
	numLocals  int
	numCells   int
	numFree    int

	loops   []*loopContext
	regions []object.ProtectedRegion
}

// New creates a Compiler. builtins names every global package builtin
// installs, so the scope pass never mistakes one for a local by accident
// of resolution order.
func New(builtins map[string]bool) *Compiler {
	return &Compiler{builtins: builtins}
}

// Errors returns every compile-time error collected so far (duplicate
// parameter names, repeated named arguments, break/continue outside a
// loop). A non-empty result means Compile's bytecode must not be run.
func (c *Compiler) Errors() []string { return c.errors }

func (c *Compiler) errorf(line int, format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf("рядок %d: %s", line, fmt.Sprintf(format, args...)))
}

// Compile lowers program into its root code object. Check Errors()
// afterward; a non-empty slice means compilation failed and the returned
// code object must be discarded.
func (c *Compiler) Compile(program *ast.Program) *object.CodeObject {
	info := scope.Analyze(program, c.builtins)
	root := info[program]

	fs := c.newFuncState(nil, "<головна>", root)
	c.fs = fs
	for _, stmt := range program.Statements {
		c.compileStatement(stmt, info)
	}
	c.emit(code.OpHalt)
	return c.finish(fs, 0, "", nil)
}

func (c *Compiler) newFuncState(outer *funcState, name string, s *scope.Scope) *funcState {
	fs := &funcState{outer: outer, name: name, scope: s, lineTable: make(map[int]int), lastLine: -1}

	cellSet := make(map[string]bool, len(s.Cells))
	for _, n := range s.Cells {
		cellSet[n] = true
	}
	fs.localIndex = make(map[string]int)
	for _, n := range s.Locals {
		if cellSet[n] {
			continue
		}
		if _, ok := fs.localIndex[n]; ok {
			continue
		}
		fs.localIndex[n] = len(fs.localIndex)
	}
	fs.numLocals = len(fs.localIndex)

	fs.cellIndex = make(map[string]int, len(s.Cells))
	for i, n := range s.Cells {
		fs.cellIndex[n] = i
	}
	fs.numCells = len(s.Cells)

	fs.freeIndex = make(map[string]int, len(s.Free))
	for i, n := range s.Free {
		fs.freeIndex[n] = fs.numCells + i
	}
	fs.numFree = len(s.Free)

	return fs
}

func (c *Compiler) finish(fs *funcState, numParams int, variadic string, paramNames []string) *object.CodeObject {
	return &object.CodeObject{
		Name:           fs.name,
		Instructions:   fs.instructions,
		NumLocals:      fs.numLocals,
		NumParameters:  numParams,
		ParameterNames: paramNames,
		Variadic:       variadic,
		NumCells:       fs.numCells,
		NumFree:        fs.numFree,
		Constants:      fs.constants,
		LineTable:      fs.lineTable,
		Regions:        fs.regions,
	}
}

// --- emission helpers -------------------------------------------------

func (c *Compiler) emitLine(fs *funcState, line int) {
	if line != fs.lastLine {
		fs.lineTable[len(fs.instructions)] = line
		fs.lastLine = line
	}
}

func (c *Compiler) emit(op code.Opcode, operands ...int) int {
	fs := c.fs
	pos := len(fs.instructions)
	fs.instructions = append(fs.instructions, code.Make(op, operands...)...)
	return pos
}

func (c *Compiler) emitAt(fs *funcState, line int, op code.Opcode, operands ...int) int {
	c.emitLine(fs, line)
	return c.emit(op, operands...)
}

func (c *Compiler) changeOperand(fs *funcState, pos int, operand int) {
	op := code.Opcode(fs.instructions[pos])
	newInst := code.Make(op, operand)
	copy(fs.instructions[pos:], newInst)
}

func (c *Compiler) addConstant(fs *funcState, v object.Value) int {
	fs.constants = append(fs.constants, v)
	return len(fs.constants) - 1
}

func (c *Compiler) nameConstant(fs *funcState, name string) int {
	return c.addConstant(fs, &object.String{Value: name})
}

// --- statements ---------------------------------------------------------

func (c *Compiler) compileStatement(stmt ast.Statement, info scope.Info) {
	fs := c.fs
	switch n := stmt.(type) {
	case *ast.BlockStatement:
		for _, s := range n.Statements {
			c.compileStatement(s, info)
		}

	case *ast.ExpressionStatement:
		if n.Expression == nil {
			return
		}
		if ae, ok := n.Expression.(*ast.AssignmentExpression); ok {
			c.compileAssignment(ae, info)
			return
		}
		c.compileExpression(n.Expression, info)
		c.emit(code.OpPop)

	case *ast.WhileStatement:
		c.compileWhile(n, info)

	case *ast.BreakStatement:
		if len(fs.loops) == 0 {
			c.errorf(n.Token.Line, "'завершити' поза циклом")
			return
		}
		lp := fs.loops[len(fs.loops)-1]
		pos := c.emitAt(fs, n.Token.Line, code.OpJump, 0)
		lp.breakSites = append(lp.breakSites, pos)

	case *ast.ContinueStatement:
		if len(fs.loops) == 0 {
			c.errorf(n.Token.Line, "'продовжити' поза циклом")
			return
		}
		lp := fs.loops[len(fs.loops)-1]
		c.emitAt(fs, n.Token.Line, code.OpJump, lp.headerPos)

	case *ast.IfStatement:
		c.compileIf(n, info)

	case *ast.FunctionDeclaration:
		c.compileFunctionDeclaration(n, info)

	case *ast.ReturnStatement:
		if n.ReturnValue != nil {
			c.compileExpression(n.ReturnValue, info)
		} else {
			c.emitAt(fs, n.Token.Line, code.OpLoadConst, c.addConstant(fs, object.None))
		}
		c.emit(code.OpReturn)

	case *ast.ForEachStatement:
		c.compileForEach(n, info)

	case *ast.TryCatchStatement:
		c.compileTryCatch(n, info)

	case *ast.RaiseStatement:
		c.compileExpression(n.Exception, info)
		c.emitAt(fs, n.Token.Line, code.OpRaise)
	}
}

func (c *Compiler) compileWhile(n *ast.WhileStatement, info scope.Info) {
	fs := c.fs
	headerPos := len(fs.instructions)
	c.compileExpression(n.Condition, info)
	exitJump := c.emitAt(fs, n.Token.Line, code.OpJumpIfFalse, 0)

	fs.loops = append(fs.loops, &loopContext{headerPos: headerPos})
	c.compileStatement(n.Body, info)
	lp := fs.loops[len(fs.loops)-1]
	fs.loops = fs.loops[:len(fs.loops)-1]

	c.emit(code.OpJump, headerPos)
	exitPos := len(fs.instructions)
	c.changeOperand(fs, exitJump, exitPos)
	for _, site := range lp.breakSites {
		c.changeOperand(fs, site, exitPos)
	}
}

func (c *Compiler) compileIf(n *ast.IfStatement, info scope.Info) {
	fs := c.fs
	c.compileExpression(n.Condition, info)
	elseJump := c.emitAt(fs, n.Token.Line, code.OpJumpIfFalse, 0)

	c.compileStatement(n.Consequence, info)

	if n.Else == nil {
		c.changeOperand(fs, elseJump, len(fs.instructions))
		return
	}

	endJump := c.emit(code.OpJump, 0)
	c.changeOperand(fs, elseJump, len(fs.instructions))
	c.compileStatement(n.Else, info)
	c.changeOperand(fs, endJump, len(fs.instructions))
}

func (c *Compiler) compileForEach(n *ast.ForEachStatement, info scope.Info) {
	fs := c.fs
	c.compileExpression(n.Iterable, info)
	c.emitAt(fs, n.Token.Line, code.OpUnaryOp, int(object.SlotGetIter))

	headerPos := len(fs.instructions)
	exitJump := c.emit(code.OpForEach, 0)
	c.storeName(fs, n.Variable.Value, n.Token.Line)

	fs.loops = append(fs.loops, &loopContext{headerPos: headerPos})
	c.compileStatement(n.Body, info)
	lp := fs.loops[len(fs.loops)-1]
	fs.loops = fs.loops[:len(fs.loops)-1]

	c.emit(code.OpJump, headerPos)
	// OpForEach pops the iterator itself on exhaustion; a break jumps out
	// with it still on the stack, so break sites land on a pop of their
	// own before falling through to the exit.
	if len(lp.breakSites) > 0 {
		popPos := len(fs.instructions)
		c.emit(code.OpPop)
		for _, site := range lp.breakSites {
			c.changeOperand(fs, site, popPos)
		}
	}
	exitPos := len(fs.instructions)
	c.changeOperand(fs, exitJump, exitPos)
}

// compileTryCatch lowers a protected region so that the normal-completion
// path, every catch clause's completion, and the no-catch-matched
// fallthrough all converge on the same address: the start of the finally
// block (or END_TRY, if there is none). This is the fix for an earlier
// defect where those paths jumped past finally instead of into it — the
// VM tells an unwind-in-progress reraise apart from a settled completion
// by its own pending-reraise bookkeeping (see vm.Frame), not by address,
// since both cases must run finally before doing anything else.
func (c *Compiler) compileTryCatch(n *ast.TryCatchStatement, info scope.Info) {
	fs := c.fs
	region := object.ProtectedRegion{Start: len(fs.instructions)}
	c.emitAt(fs, n.Token.Line, code.OpTry)

	c.compileStatement(n.Body, info)
	var convergeJumps []int
	convergeJumps = append(convergeJumps, c.emit(code.OpJump, 0))

	region.FirstHandler = len(fs.instructions)
	for _, clause := range n.CatchClauses {
		c.loadName(fs, clause.ExceptionName.Value, clause.Token.Line)
		catchJump := c.emit(code.OpCatch, 0)

		if clause.Binding != nil {
			c.storeName(fs, clause.Binding.Value, clause.Token.Line)
		} else {
			c.emit(code.OpPop)
		}
		c.compileStatement(clause.Body, info)
		if clause.Binding != nil {
			c.deleteName(fs, clause.Binding.Value)
		}
		convergeJumps = append(convergeJumps, c.emit(code.OpJump, 0))
		c.changeOperand(fs, catchJump, len(fs.instructions))
	}

	// No catch clause matched: fall through here with the still-unhandled
	// exception recorded by the VM, then run finally before the VM
	// resumes its unwind search.
	afterCatchChain := len(fs.instructions)
	for _, j := range convergeJumps {
		c.changeOperand(fs, j, afterCatchChain)
	}

	if n.Finally != nil {
		region.Finally = afterCatchChain
		c.compileStatement(n.Finally, info)
	}

	region.End = len(fs.instructions)
	c.emit(code.OpEndTry)
	fs.regions = append(fs.regions, region)
}

func (c *Compiler) compileFunctionDeclaration(n *ast.FunctionDeclaration, info scope.Info) {
	outer := c.fs
	names := make(map[string]bool)
	dup := false
	checkDup := func(name string) {
		if names[name] {
			dup = true
		}
		names[name] = true
	}
	for _, p := range n.Parameters {
		checkDup(p.Value)
	}
	for _, d := range n.DefaultParameters {
		checkDup(d.Name.Value)
	}
	if n.VariadicParameter != nil {
		checkDup(n.VariadicParameter.Value)
	}
	if dup {
		c.errorf(n.Token.Line, "повторюване ім'я параметра у функції %s", n.Name.Value)
	}

	fnScope := info[n]
	fs := c.newFuncState(outer, n.Name.Value, fnScope)
	c.fs = fs

	var paramNames []string
	var layout []object.ParamSlot
	for _, p := range n.Parameters {
		paramNames = append(paramNames, p.Value)
		layout = append(layout, c.paramSlot(fs, p.Value))
	}
	for _, d := range n.DefaultParameters {
		paramNames = append(paramNames, d.Name.Value)
		layout = append(layout, c.paramSlot(fs, d.Name.Value))
	}
	var variadicSlot object.ParamSlot
	if n.VariadicParameter != nil {
		variadicSlot = c.paramSlot(fs, n.VariadicParameter.Value)
	}

	c.compileStatement(n.Body, info)
	c.emitAt(fs, n.Token.Line, code.OpLoadConst, c.addConstant(fs, object.None))
	c.emit(code.OpReturn)

	numParams := len(paramNames)
	variadicName := ""
	if n.VariadicParameter != nil {
		variadicName = n.VariadicParameter.Value
	}
	co := c.finish(fs, numParams, variadicName, paramNames)
	co.ParamLayout = layout
	co.VariadicSlot = variadicSlot
	co.DefaultCount = len(n.DefaultParameters)
	selfSlot := c.paramSlot(fs, n.Name.Value)
	co.Self = &selfSlot

	c.fs = outer

	codeIdx := c.addConstant(outer, co)
	for _, freeName := range fnScope.Free {
		c.loadCellRef(outer, freeName, n.Token.Line)
	}
	for _, d := range n.DefaultParameters {
		c.compileExpression(d.Default, info)
	}
	c.emitAt(outer, n.Token.Line, code.OpLoadConst, codeIdx)
	c.emit(code.OpMakeFunction, len(fnScope.Free), len(n.DefaultParameters))
	c.storeName(outer, n.Name.Value, n.Token.Line)
}

func (c *Compiler) paramSlot(fs *funcState, name string) object.ParamSlot {
	if idx, ok := fs.cellIndex[name]; ok {
		return object.ParamSlot{Cell: true, Index: idx}
	}
	return object.ParamSlot{Cell: false, Index: fs.localIndex[name]}
}

// --- expressions ----------------------------------------------------------

func (c *Compiler) compileExpression(expr ast.Expression, info scope.Info) {
	fs := c.fs
	switch n := expr.(type) {
	case *ast.LiteralExpression:
		c.compileLiteral(n)

	case *ast.Identifier:
		c.loadName(fs, n.Value, n.Token.Line)

	case *ast.AssignmentExpression:
		c.compileAssignment(n, info)
		// An assignment used as a subexpression re-reads the stored name,
		// since storing pops rather than leaving a value on the stack.
		c.loadName(fs, n.Name.Value, n.Token.Line)

	case *ast.ParenthesizedExpression:
		c.compileExpression(n.Expression, info)

	case *ast.UnaryExpression:
		c.compileExpression(n.Operand, info)
		switch n.Operator {
		case string(token.NOT):
			c.emitAt(fs, n.Token.Line, code.OpNot)
		case string(token.MINUS):
			c.emitAt(fs, n.Token.Line, code.OpUnaryOp, int(object.SlotNeg))
		case string(token.PLUS):
			c.emitAt(fs, n.Token.Line, code.OpUnaryOp, int(object.SlotPos))
		}

	case *ast.BinaryExpression:
		c.compileBinary(n, info)

	case *ast.AttributeExpression:
		c.compileExpression(n.Object, info)
		c.emitAt(fs, n.Token.Line, code.OpGetAttr, c.nameConstant(fs, n.Attribute.Value))

	case *ast.CallExpression:
		c.compileCall(n, info)

	case *ast.ListLiteral:
		for _, e := range n.Elements {
			c.compileExpression(e, info)
		}
		c.emitAt(fs, n.Token.Line, code.OpBuildList, len(n.Elements))
	}
}

func (c *Compiler) compileLiteral(n *ast.LiteralExpression) {
	fs := c.fs
	var v object.Value
	switch n.Type {
	case ast.IntegerLiteral:
		v = &object.Integer{Value: n.IntValue}
	case ast.RealLiteral:
		v = &object.Real{Value: n.RealValue}
	case ast.BooleanLiteral:
		v = object.Bool(n.BoolValue)
	case ast.NullLiteral:
		v = object.None
	case ast.StringLiteralType:
		var s string
		for _, p := range n.StringParts {
			s += p.Value
		}
		v = &object.String{Value: s}
	}
	c.emitAt(fs, n.Token.Line, code.OpLoadConst, c.addConstant(fs, v))
}

func (c *Compiler) compileBinary(n *ast.BinaryExpression, info scope.Info) {
	fs := c.fs
	switch n.Operator {
	case string(token.AND):
		c.compileExpression(n.Left, info)
		jump := c.emitAt(fs, n.Token.Line, code.OpJumpIfFalseOrPop, 0)
		c.compileExpression(n.Right, info)
		c.changeOperand(fs, jump, len(fs.instructions))
		return
	case string(token.OR):
		c.compileExpression(n.Left, info)
		jump := c.emitAt(fs, n.Token.Line, code.OpJumpIfTrueOrPop, 0)
		c.compileExpression(n.Right, info)
		c.changeOperand(fs, jump, len(fs.instructions))
		return
	}

	c.compileExpression(n.Left, info)
	c.compileExpression(n.Right, info)

	switch n.Operator {
	case string(token.IS):
		c.emitAt(fs, n.Token.Line, code.OpIs)
	case string(token.IS_NOT):
		c.emitAt(fs, n.Token.Line, code.OpIsNot)
	case "==":
		c.emitAt(fs, n.Token.Line, code.OpCompare, int(object.CompareEQ))
	case "!=":
		c.emitAt(fs, n.Token.Line, code.OpCompare, int(object.CompareNE))
	case string(token.GT):
		c.emitAt(fs, n.Token.Line, code.OpCompare, int(object.CompareGT))
	case string(token.GT_EQ):
		c.emitAt(fs, n.Token.Line, code.OpCompare, int(object.CompareGE))
	case string(token.LT):
		c.emitAt(fs, n.Token.Line, code.OpCompare, int(object.CompareLT))
	case string(token.LT_EQ):
		c.emitAt(fs, n.Token.Line, code.OpCompare, int(object.CompareLE))
	default:
		c.emitAt(fs, n.Token.Line, code.OpBinaryOp, int(binarySlot(n.Operator)))
	}
}

func (c *Compiler) compileCall(n *ast.CallExpression, info scope.Info) {
	fs := c.fs
	method, isMethod := n.Callable.(*ast.AttributeExpression)
	if isMethod {
		c.compileExpression(method.Object, info)
		c.emitAt(fs, n.Token.Line, code.OpLoadMethod, c.nameConstant(fs, method.Attribute.Value))
	} else {
		c.compileExpression(n.Callable, info)
	}

	for _, arg := range n.Arguments {
		c.compileExpression(arg, info)
	}

	if len(n.NamedArguments) == 0 {
		if isMethod {
			c.emitAt(fs, n.Token.Line, code.OpCallMethod, len(n.Arguments))
		} else {
			c.emitAt(fs, n.Token.Line, code.OpCall, len(n.Arguments))
		}
		return
	}

	seen := make(map[string]bool, len(n.NamedArguments))
	names := make([]object.Value, len(n.NamedArguments))
	for i, na := range n.NamedArguments {
		if seen[na.Name.Value] {
			c.errorf(n.Token.Line, "повторюваний іменований аргумент %s", na.Name.Value)
		}
		seen[na.Name.Value] = true
		c.compileExpression(na.Value, info)
		names[i] = &object.String{Value: na.Name.Value}
	}
	namesIdx := c.addConstant(fs, &object.Tuple{Elements: names})
	total := len(n.Arguments) + len(n.NamedArguments)
	if isMethod {
		c.emitAt(fs, n.Token.Line, code.OpCallMethodNA, total, namesIdx)
	} else {
		c.emitAt(fs, n.Token.Line, code.OpCallNA, total, namesIdx)
	}
}

func (c *Compiler) compileAssignment(n *ast.AssignmentExpression, info scope.Info) {
	fs := c.fs
	if n.Operator == token.ASSIGN {
		c.compileExpression(n.Value, info)
		c.storeName(fs, n.Name.Value, n.Token.Line)
		return
	}
	c.loadName(fs, n.Name.Value, n.Token.Line)
	c.compileExpression(n.Value, info)
	c.emitAt(fs, n.Token.Line, code.OpBinaryOp, int(compoundSlot(n.Operator)))
	c.storeName(fs, n.Name.Value, n.Token.Line)
}

// --- name resolution --------------------------------------------------

func (c *Compiler) loadName(fs *funcState, name string, line int) {
	switch fs.scope.KindOf(name) {
	case scope.Global:
		c.emitAt(fs, line, code.OpLoadGlobal, c.nameConstant(fs, name))
	case scope.Local:
		c.emitAt(fs, line, code.OpLoadLocal, fs.localIndex[name])
	case scope.Cell:
		c.emitAt(fs, line, code.OpLoadCell, c.cellSlot(fs, name))
	}
}

func (c *Compiler) storeName(fs *funcState, name string, line int) {
	switch fs.scope.KindOf(name) {
	case scope.Global:
		c.emitAt(fs, line, code.OpStoreGlobal, c.nameConstant(fs, name))
	case scope.Local:
		c.emitAt(fs, line, code.OpStoreLocal, fs.localIndex[name])
	case scope.Cell:
		c.emitAt(fs, line, code.OpStoreCell, c.cellSlot(fs, name))
	}
}

// deleteName emits the catch-binding cleanup the scope analyzer requires;
// a Cell-classified binding is left to the garbage collector instead of
// given a dedicated delete opcode, since its storage isn't a stack slot.
func (c *Compiler) deleteName(fs *funcState, name string) {
	switch fs.scope.KindOf(name) {
	case scope.Global:
		c.emit(code.OpDeleteGlobal, c.nameConstant(fs, name))
	case scope.Local:
		c.emit(code.OpDeleteLocal, fs.localIndex[name])
	}
}

// loadCellRef pushes, from fs's own perspective, the Cell object backing
// name — used while assembling a nested closure's captured-cell vector.
func (c *Compiler) loadCellRef(fs *funcState, name string, line int) {
	c.emitAt(fs, line, code.OpGetCell, c.cellSlot(fs, name))
}

func (c *Compiler) cellSlot(fs *funcState, name string) int {
	if idx, ok := fs.cellIndex[name]; ok {
		return idx
	}
	return fs.freeIndex[name]
}

// --- operator tables ----------------------------------------------------

func binarySlot(op string) object.OperatorSlot {
	switch op {
	case string(token.PLUS):
		return object.SlotAdd
	case string(token.MINUS):
		return object.SlotSub
	case string(token.STAR):
		return object.SlotMul
	case string(token.SLASH):
		return object.SlotDiv
	case string(token.BACKSLASH):
		return object.SlotFloorDiv
	case string(token.PERCENT):
		return object.SlotMod
	}
	return object.SlotAdd
}

func compoundSlot(op token.Kind) object.OperatorSlot {
	switch op {
	case token.PLUS_EQ:
		return object.SlotAdd
	case token.MINUS_EQ:
		return object.SlotSub
	case token.STAR_EQ:
		return object.SlotMul
	case token.SLASH_EQ:
		return object.SlotDiv
	case token.BACKSLASH_EQ:
		return object.SlotFloorDiv
	case token.PERCENT_EQ:
		return object.SlotMod
	}
	return object.SlotAdd
}
