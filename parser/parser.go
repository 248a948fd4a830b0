// Package parser implements Periwinkle's syntactic analyzer.
//
// It is a recursive-descent parser with Pratt (precedence-climbing)
// expression parsing, the same architecture as Kong's Monkey
// parser (a table of prefix/infix parse functions keyed by token kind,
// current/peek token lookahead, a flat []string of error messages), built
// over Periwinkle's own token/ast packages instead of Monkey's. Grammar
// shapes (block delimiters, parenthesized conditions, named-argument call
// syntax) are this repo's own concrete syntax choices, built around the
// fixed keyword and operator spelling table in token/token.go.
package parser

import (
	"fmt"
	"strconv"

	"github.com/dr8co/periwinkle/ast"
	"github.com/dr8co/periwinkle/lexer"
	"github.com/dr8co/periwinkle/token"
)

// Operator precedence levels, lowest to highest.
const (
	_ int = iota
	Lowest
	Or          // або
	And         // та
	Equality    // == != є є_не
	Comparison  // більше менше більше= менше=
	Sum         // + -
	Product     // * / \ %
	Prefix      // -x +x не x
	Call        // f(x), obj.attr
)

var precedences = map[token.Kind]int{
	token.OR:         Or,
	token.AND:        And,
	token.EQ:         Equality,
	token.NOT_EQ:     Equality,
	token.IS:         Equality,
	token.IS_NOT:     Equality,
	token.GT:         Comparison,
	token.GT_EQ:      Comparison,
	token.LT:         Comparison,
	token.LT_EQ:      Comparison,
	token.PLUS:       Sum,
	token.MINUS:      Sum,
	token.STAR:       Product,
	token.SLASH:      Product,
	token.BACKSLASH:  Product,
	token.PERCENT:    Product,
	token.LPAREN:     Call,
	token.DOT:        Call,
}

var assignOps = map[token.Kind]bool{
	token.ASSIGN:       true,
	token.PLUS_EQ:      true,
	token.MINUS_EQ:     true,
	token.STAR_EQ:      true,
	token.SLASH_EQ:     true,
	token.BACKSLASH_EQ: true,
	token.PERCENT_EQ:   true,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser consumes a lexer.Lexer and builds an ast.Program.
type Parser struct {
	l      *lexer.Lexer
	errors []string

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.Kind]prefixParseFn
	infixParseFns  map[token.Kind]infixParseFn
}

// New creates a Parser over l, primes the two-token lookahead, and
// registers the prefix/infix parse function tables.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixParseFns = make(map[token.Kind]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseLiteral)
	p.registerPrefix(token.REAL, p.parseLiteral)
	p.registerPrefix(token.STRING, p.parseLiteral)
	p.registerPrefix(token.TRUE, p.parseLiteral)
	p.registerPrefix(token.FALSE, p.parseLiteral)
	p.registerPrefix(token.NULL, p.parseLiteral)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.PLUS, p.parsePrefixExpression)
	p.registerPrefix(token.NOT, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseParenthesizedExpression)
	p.registerPrefix(token.LBRACKET, p.parseListLiteral)

	p.infixParseFns = make(map[token.Kind]infixParseFn)
	for _, k := range []token.Kind{
		token.PLUS, token.MINUS, token.STAR, token.SLASH, token.BACKSLASH, token.PERCENT,
		token.EQ, token.NOT_EQ, token.GT, token.GT_EQ, token.LT, token.LT_EQ,
		token.AND, token.OR, token.IS, token.IS_NOT,
	} {
		p.registerInfix(k, p.parseBinaryExpression)
	}
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.DOT, p.parseAttributeExpression)

	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) registerPrefix(k token.Kind, fn prefixParseFn) { p.prefixParseFns[k] = fn }
func (p *Parser) registerInfix(k token.Kind, fn infixParseFn)   { p.infixParseFns[k] = fn }

// Errors returns every parse error collected so far.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curIs(k token.Kind) bool  { return p.curToken.Kind == k }
func (p *Parser) peekIs(k token.Kind) bool { return p.peekToken.Kind == k }

func (p *Parser) expectPeek(k token.Kind) bool {
	if p.peekIs(k) {
		p.nextToken()
		return true
	}
	p.errorf("рядок %d: очікував %s, отримав %s (%q)", p.peekToken.Line, k, p.peekToken.Kind, p.peekToken.Literal)
	return false
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Kind]; ok {
		return pr
	}
	return Lowest
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curToken.Kind]; ok {
		return pr
	}
	return Lowest
}

// ParseProgram parses a complete source file into an *ast.Program. Check
// Errors() afterward to see if anything went wrong.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	for !p.curIs(token.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}
	return program
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Kind {
	case token.WHILE:
		return p.parseWhileStatement()
	case token.BREAK:
		return p.parseBreakStatement()
	case token.CONTINUE:
		return p.parseContinueStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.FUNCTION:
		return p.parseFunctionDeclaration()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.FOR:
		return p.parseForEachStatement()
	case token.TRY:
		return p.parseTryCatchStatement()
	case token.RAISE:
		return p.parseRaiseStatement()
	case token.LBRACE:
		return p.parseBlockStatement()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}
	if !p.curIs(token.LBRACE) {
		p.errorf("рядок %d: очікував '{', отримав %q", p.curToken.Line, p.curToken.Literal)
		return block
	}
	p.nextToken()
	for !p.curIs(token.RBRACE) && !p.curIs(token.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}
	return block
}

func (p *Parser) parseWhileStatement() *ast.WhileStatement {
	stmt := &ast.WhileStatement{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return stmt
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(Lowest)
	if !p.expectPeek(token.RPAREN) {
		return stmt
	}
	if !p.expectPeek(token.LBRACE) {
		return stmt
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseBreakStatement() *ast.BreakStatement {
	stmt := &ast.BreakStatement{Token: p.curToken}
	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseContinueStatement() *ast.ContinueStatement {
	stmt := &ast.ContinueStatement{Token: p.curToken}
	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseIfStatement() *ast.IfStatement {
	stmt := &ast.IfStatement{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return stmt
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(Lowest)
	if !p.expectPeek(token.RPAREN) {
		return stmt
	}
	if !p.expectPeek(token.LBRACE) {
		return stmt
	}
	stmt.Consequence = p.parseBlockStatement()

	if p.peekIs(token.ELSE_IF) {
		p.nextToken()
		stmt.Else = p.parseIfStatement()
	} else if p.peekIs(token.ELSE) {
		p.nextToken()
		if !p.expectPeek(token.LBRACE) {
			return stmt
		}
		stmt.Else = p.parseBlockStatement()
	}
	return stmt
}

func (p *Parser) parseFunctionDeclaration() *ast.FunctionDeclaration {
	fd := &ast.FunctionDeclaration{Token: p.curToken}
	if !p.expectPeek(token.IDENT) {
		return fd
	}
	fd.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(token.LPAREN) {
		return fd
	}
	p.parseParameterList(fd)

	if !p.expectPeek(token.LBRACE) {
		return fd
	}
	fd.Body = p.parseBlockStatement()
	return fd
}

// parseParameterList parses "(a, b = 2, *c)", enforcing that a variadic
// parameter (if present) comes last. Assumes curToken is LPAREN on entry
// and leaves curToken on RPAREN.
func (p *Parser) parseParameterList(fd *ast.FunctionDeclaration) {
	if p.peekIs(token.RPAREN) {
		p.nextToken()
		return
	}
	for {
		p.nextToken()
		if p.curIs(token.STAR) {
			if !p.expectPeek(token.IDENT) {
				return
			}
			fd.VariadicParameter = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
			if p.peekIs(token.COMMA) {
				p.errorf("рядок %d: параметр *%s має бути останнім", p.curToken.Line, p.curToken.Literal)
				return
			}
		} else if p.curIs(token.IDENT) {
			name := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
			if p.peekIs(token.ASSIGN) {
				p.nextToken()
				p.nextToken()
				def := p.parseExpression(Lowest)
				fd.DefaultParameters = append(fd.DefaultParameters, ast.DefaultParameter{Name: name, Default: def})
			} else {
				fd.Parameters = append(fd.Parameters, name)
			}
		} else {
			p.errorf("рядок %d: неочікуваний параметр %q", p.curToken.Line, p.curToken.Literal)
			return
		}
		if p.peekIs(token.COMMA) {
			p.nextToken()
			continue
		}
		break
	}
	p.expectPeek(token.RPAREN)
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	stmt := &ast.ReturnStatement{Token: p.curToken}
	if p.peekIs(token.SEMICOLON) || p.peekIs(token.RBRACE) {
		if p.peekIs(token.SEMICOLON) {
			p.nextToken()
		}
		return stmt
	}
	p.nextToken()
	stmt.ReturnValue = p.parseExpression(Lowest)
	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseForEachStatement() *ast.ForEachStatement {
	stmt := &ast.ForEachStatement{Token: p.curToken}
	if !p.expectPeek(token.EACH) {
		return stmt
	}
	if !p.expectPeek(token.IDENT) {
		return stmt
	}
	stmt.Variable = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	if !p.expectPeek(token.IN) {
		return stmt
	}
	p.nextToken()
	stmt.Iterable = p.parseExpression(Lowest)
	if !p.expectPeek(token.LBRACE) {
		return stmt
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseTryCatchStatement() *ast.TryCatchStatement {
	stmt := &ast.TryCatchStatement{Token: p.curToken}
	if !p.expectPeek(token.LBRACE) {
		return stmt
	}
	stmt.Body = p.parseBlockStatement()

	for p.peekIs(token.CATCH) {
		p.nextToken()
		clause := &ast.CatchClause{Token: p.curToken}
		if !p.expectPeek(token.IDENT) {
			return stmt
		}
		clause.ExceptionName = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
		if p.peekIs(token.AS) {
			p.nextToken()
			if !p.expectPeek(token.IDENT) {
				return stmt
			}
			clause.Binding = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
		}
		if !p.expectPeek(token.LBRACE) {
			return stmt
		}
		clause.Body = p.parseBlockStatement()
		stmt.CatchClauses = append(stmt.CatchClauses, clause)
	}

	if p.peekIs(token.FINALLY) {
		p.nextToken()
		if !p.expectPeek(token.LBRACE) {
			return stmt
		}
		stmt.Finally = p.parseBlockStatement()
	}
	return stmt
}

func (p *Parser) parseRaiseStatement() *ast.RaiseStatement {
	stmt := &ast.RaiseStatement{Token: p.curToken}
	p.nextToken()
	stmt.Exception = p.parseExpression(Lowest)
	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseExpressionStatement() *ast.ExpressionStatement {
	stmt := &ast.ExpressionStatement{Token: p.curToken}
	if p.curIs(token.IDENT) && assignOps[p.peekToken.Kind] {
		stmt.Expression = p.parseAssignmentExpression()
	} else {
		stmt.Expression = p.parseExpression(Lowest)
	}
	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseAssignmentExpression() ast.Expression {
	name := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	p.nextToken() // now on the assignment operator
	ae := &ast.AssignmentExpression{Token: p.curToken, Name: name, Operator: p.curToken.Kind}
	p.nextToken()
	ae.Value = p.parseExpression(Lowest)
	return ae
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Kind]
	if prefix == nil {
		p.errorf("рядок %d: немає префіксного розбору для %s (%q)", p.curToken.Line, p.curToken.Kind, p.curToken.Literal)
		return nil
	}
	left := prefix()

	for !p.peekIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Kind]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseLiteral() ast.Expression {
	lit := &ast.LiteralExpression{Token: p.curToken}
	switch p.curToken.Kind {
	case token.INT:
		v, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
		if err != nil {
			p.errorf("рядок %d: неправильне ціле число %q", p.curToken.Line, p.curToken.Literal)
			return nil
		}
		lit.Type = ast.IntegerLiteral
		lit.IntValue = v
	case token.REAL:
		v, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			p.errorf("рядок %d: неправильне дійсне число %q", p.curToken.Line, p.curToken.Literal)
			return nil
		}
		lit.Type = ast.RealLiteral
		lit.RealValue = v
	case token.TRUE, token.FALSE:
		lit.Type = ast.BooleanLiteral
		lit.BoolValue = p.curIs(token.TRUE)
	case token.NULL:
		lit.Type = ast.NullLiteral
	case token.STRING:
		lit.Type = ast.StringLiteralType
		lit.StringParts = []ast.StringPart{{Token: p.curToken, Value: p.curToken.Literal}}
	}
	return lit
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	ue := &ast.UnaryExpression{Token: p.curToken, Operator: p.curToken.Literal}
	p.nextToken()
	ue.Operand = p.parseExpression(Prefix)
	return ue
}

func (p *Parser) parseParenthesizedExpression() ast.Expression {
	tok := p.curToken
	p.nextToken()
	expr := p.parseExpression(Lowest)
	if !p.expectPeek(token.RPAREN) {
		return expr
	}
	return &ast.ParenthesizedExpression{Token: tok, Expression: expr}
}

// parseListLiteral parses "[e1, e2, ...]". curToken is LBRACKET on entry;
// leaves curToken on RBRACKET.
func (p *Parser) parseListLiteral() ast.Expression {
	ll := &ast.ListLiteral{Token: p.curToken}
	if p.peekIs(token.RBRACKET) {
		p.nextToken()
		return ll
	}
	for {
		p.nextToken()
		ll.Elements = append(ll.Elements, p.parseExpression(Lowest))
		if p.peekIs(token.COMMA) {
			p.nextToken()
			continue
		}
		break
	}
	p.expectPeek(token.RBRACKET)
	return ll
}

func (p *Parser) parseBinaryExpression(left ast.Expression) ast.Expression {
	be := &ast.BinaryExpression{Token: p.curToken, Operator: p.curToken.Literal, Left: left}
	precedence := p.curPrecedence()
	p.nextToken()
	be.Right = p.parseExpression(precedence)
	return be
}

func (p *Parser) parseAttributeExpression(left ast.Expression) ast.Expression {
	ae := &ast.AttributeExpression{Token: p.curToken, Object: left}
	if !p.expectPeek(token.IDENT) {
		return ae
	}
	ae.Attribute = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	return ae
}

func (p *Parser) parseCallExpression(callable ast.Expression) ast.Expression {
	ce := &ast.CallExpression{Token: p.curToken, Callable: callable}
	p.parseArgumentList(ce)
	return ce
}

// parseArgumentList parses "(arg, arg, name: arg, ...)". curToken is LPAREN
// on entry; leaves curToken on RPAREN.
func (p *Parser) parseArgumentList(ce *ast.CallExpression) {
	if p.peekIs(token.RPAREN) {
		p.nextToken()
		return
	}
	for {
		p.nextToken()
		if p.curIs(token.IDENT) && p.peekIs(token.COLON) {
			name := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
			p.nextToken() // colon
			p.nextToken()
			ce.NamedArguments = append(ce.NamedArguments, ast.NamedArgument{Name: name, Value: p.parseExpression(Lowest)})
		} else {
			ce.Arguments = append(ce.Arguments, p.parseExpression(Lowest))
		}
		if p.peekIs(token.COMMA) {
			p.nextToken()
			continue
		}
		break
	}
	p.expectPeek(token.RPAREN)
}
