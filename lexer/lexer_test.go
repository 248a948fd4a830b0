package lexer

import (
	"testing"

	"github.com/dr8co/periwinkle/token"
)

// TestNextToken tests the functionality of the NextToken method in the Lexer to ensure all tokens are correctly identified.
func TestNextToken(t *testing.T) {
	input := `функція додати(x, y) {
    повернути x + y;
}
змінна = додати(5, 10);
!-/ *5;
5 менше 10 та 10 більше 5;

якщо (5 менше 10) {
    повернути істина;
} інакше {
    повернути хиба;
}

10 == 10;
10 != 9;
5 є не нич;

"привіт"
"foo bar"
[1, 2];
`
	tests := []struct {
		expectedKind    token.Kind
		expectedLiteral string
	}{
		{token.FUNCTION, "функція"},
		{token.IDENT, "додати"},
		{token.LPAREN, "("},
		{token.IDENT, "x"},
		{token.COMMA, ","},
		{token.IDENT, "y"},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.RETURN, "повернути"},
		{token.IDENT, "x"},
		{token.PLUS, "+"},
		{token.IDENT, "y"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},
		{token.IDENT, "змінна"},
		{token.ASSIGN, "="},
		{token.IDENT, "додати"},
		{token.LPAREN, "("},
		{token.INT, "5"},
		{token.COMMA, ","},
		{token.INT, "10"},
		{token.RPAREN, ")"},
		{token.SEMICOLON, ";"},
		{token.BANG, "!"},
		{token.MINUS, "-"},
		{token.SLASH, "/"},
		{token.STAR, "*"},
		{token.INT, "5"},
		{token.SEMICOLON, ";"},
		{token.INT, "5"},
		{token.LT, "менше"},
		{token.INT, "10"},
		{token.AND, "та"},
		{token.INT, "10"},
		{token.GT, "більше"},
		{token.INT, "5"},
		{token.SEMICOLON, ";"},
		{token.IF, "якщо"},
		{token.LPAREN, "("},
		{token.INT, "5"},
		{token.LT, "менше"},
		{token.INT, "10"},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.RETURN, "повернути"},
		{token.TRUE, "істина"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},
		{token.ELSE, "інакше"},
		{token.LBRACE, "{"},
		{token.RETURN, "повернути"},
		{token.FALSE, "хиба"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},
		{token.INT, "10"},
		{token.EQ, "=="},
		{token.INT, "10"},
		{token.SEMICOLON, ";"},
		{token.INT, "10"},
		{token.NOT_EQ, "!="},
		{token.INT, "9"},
		{token.SEMICOLON, ";"},
		{token.INT, "5"},
		{token.IS_NOT, "є не"},
		{token.NULL, "нич"},
		{token.SEMICOLON, ";"},
		{token.STRING, "привіт"},
		{token.STRING, "foo bar"},
		{token.LBRACKET, "["},
		{token.INT, "1"},
		{token.COMMA, ","},
		{token.INT, "2"},
		{token.RBRACKET, "]"},
		{token.SEMICOLON, ";"},
		{token.EOF, ""},
	}

	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Kind != tt.expectedKind {
			t.Fatalf("tests[%d] - kind wrong. expected=%q, got=%q",
				i, tt.expectedKind, tok.Kind)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

// TestElseIfIsOneToken ensures "або якщо" folds into a single ELSE_IF token
// rather than being split into OR + IF.
func TestElseIfIsOneToken(t *testing.T) {
	input := `якщо x {
} або якщо y {
} інакше {
}`
	tests := []struct {
		expectedKind    token.Kind
		expectedLiteral string
	}{
		{token.IF, "якщо"},
		{token.IDENT, "x"},
		{token.LBRACE, "{"},
		{token.RBRACE, "}"},
		{token.ELSE_IF, "або якщо"},
		{token.IDENT, "y"},
		{token.LBRACE, "{"},
		{token.RBRACE, "}"},
		{token.ELSE, "інакше"},
		{token.LBRACE, "{"},
		{token.RBRACE, "}"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Kind != tt.expectedKind {
			t.Fatalf("tests[%d] - kind wrong. expected=%q, got=%q", i, tt.expectedKind, tok.Kind)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

// TestBareOrIsNotElseIf makes sure a standalone "або" followed by something
// other than "якщо" stays a plain OR token.
func TestBareOrIsNotElseIf(t *testing.T) {
	input := `істина або хиба`
	tests := []struct {
		expectedKind    token.Kind
		expectedLiteral string
	}{
		{token.TRUE, "істина"},
		{token.OR, "або"},
		{token.FALSE, "хиба"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Kind != tt.expectedKind {
			t.Fatalf("tests[%d] - kind wrong. expected=%q, got=%q", i, tt.expectedKind, tok.Kind)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

// TestBareIsIsNotIsNot makes sure a standalone "є" followed by something
// other than "не" stays a plain IS token.
func TestBareIsIsNotIsNot(t *testing.T) {
	input := `x є нич`
	tests := []struct {
		expectedKind    token.Kind
		expectedLiteral string
	}{
		{token.IDENT, "x"},
		{token.IS, "є"},
		{token.NULL, "нич"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Kind != tt.expectedKind {
			t.Fatalf("tests[%d] - kind wrong. expected=%q, got=%q", i, tt.expectedKind, tok.Kind)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

// TestCompoundAssignment exercises all six compound-assignment operators.
func TestCompoundAssignment(t *testing.T) {
	input := `x += 1; x -= 1; x *= 2; x /= 2; x \= 2; x %= 2;`

	tests := []struct {
		expectedKind    token.Kind
		expectedLiteral string
	}{
		{token.IDENT, "x"}, {token.PLUS_EQ, "+="}, {token.INT, "1"}, {token.SEMICOLON, ";"},
		{token.IDENT, "x"}, {token.MINUS_EQ, "-="}, {token.INT, "1"}, {token.SEMICOLON, ";"},
		{token.IDENT, "x"}, {token.STAR_EQ, "*="}, {token.INT, "2"}, {token.SEMICOLON, ";"},
		{token.IDENT, "x"}, {token.SLASH_EQ, "/="}, {token.INT, "2"}, {token.SEMICOLON, ";"},
		{token.IDENT, "x"}, {token.BACKSLASH_EQ, "\\="}, {token.INT, "2"}, {token.SEMICOLON, ";"},
		{token.IDENT, "x"}, {token.PERCENT_EQ, "%="}, {token.INT, "2"}, {token.SEMICOLON, ";"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Kind != tt.expectedKind {
			t.Fatalf("tests[%d] - kind wrong. expected=%q, got=%q", i, tt.expectedKind, tok.Kind)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

// TestOrderingOperators checks the word-spelled ordering operators,
// including the '='-suffixed forms folded into a single token.
func TestOrderingOperators(t *testing.T) {
	input := `а більше 1; а менше 2; а більше= 3; а менше= 4;`

	tests := []struct {
		expectedKind    token.Kind
		expectedLiteral string
	}{
		{token.IDENT, "а"}, {token.GT, "більше"}, {token.INT, "1"}, {token.SEMICOLON, ";"},
		{token.IDENT, "а"}, {token.LT, "менше"}, {token.INT, "2"}, {token.SEMICOLON, ";"},
		{token.IDENT, "а"}, {token.GT_EQ, "більше="}, {token.INT, "3"}, {token.SEMICOLON, ";"},
		{token.IDENT, "а"}, {token.LT_EQ, "менше="}, {token.INT, "4"}, {token.SEMICOLON, ";"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Kind != tt.expectedKind {
			t.Fatalf("tests[%d] - kind wrong. expected=%q, got=%q", i, tt.expectedKind, tok.Kind)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

// TestRealLiterals makes sure a fractional part turns a number into REAL,
// while a trailing dot not followed by a digit does not consume the dot.
func TestRealLiterals(t *testing.T) {
	input := `3.14 2.0 5.x`

	tests := []struct {
		expectedKind    token.Kind
		expectedLiteral string
	}{
		{token.REAL, "3.14"},
		{token.REAL, "2.0"},
		{token.INT, "5"},
		{token.DOT, "."},
		{token.IDENT, "x"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Kind != tt.expectedKind {
			t.Fatalf("tests[%d] - kind wrong. expected=%q, got=%q", i, tt.expectedKind, tok.Kind)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

// TestComments ensures that // line comments and /* */ block comments are
// ignored by the lexer.
func TestComments(t *testing.T) {
	input := `x = 1; // comment
// full line comment
y = 2; /* block
спанований на кілька рядків */ z = 3;`

	tests := []struct {
		expectedKind    token.Kind
		expectedLiteral string
	}{
		{token.IDENT, "x"},
		{token.ASSIGN, "="},
		{token.INT, "1"},
		{token.SEMICOLON, ";"},
		{token.IDENT, "y"},
		{token.ASSIGN, "="},
		{token.INT, "2"},
		{token.SEMICOLON, ";"},
		{token.IDENT, "z"},
		{token.ASSIGN, "="},
		{token.INT, "3"},
		{token.SEMICOLON, ";"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Kind != tt.expectedKind {
			t.Fatalf("tests[%d] - kind wrong. expected=%q, got=%q", i, tt.expectedKind, tok.Kind)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

// TestStringEscapesLatinAndCyrillic exercises both the Latin and Cyrillic
// spellings of each escape letter.
func TestStringEscapesLatinAndCyrillic(t *testing.T) {
	input := `"tab:\tend" "tab:\тend" "nl:\nend" "nl:\нend" "quote:\"inner\"" "bs:\\"`

	tests := []struct {
		expectedKind    token.Kind
		expectedLiteral string
	}{
		{token.STRING, "tab:\tend"},
		{token.STRING, "tab:\tend"},
		{token.STRING, "nl:\nend"},
		{token.STRING, "nl:\nend"},
		{token.STRING, "quote:\"inner\""},
		{token.STRING, "bs:\\"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Kind != tt.expectedKind {
			t.Fatalf("tests[%d] - kind wrong. expected=%q, got=%q", i, tt.expectedKind, tok.Kind)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestUnterminatedString(t *testing.T) {
	input := `"немає кінця`

	l := New(input)

	tok := l.NextToken()
	if tok.Kind != token.ILLEGAL {
		t.Fatalf("expected ILLEGAL token for unterminated string, got %q", tok.Kind)
	}
}

func TestUnknownEscape(t *testing.T) {
	input := `"bad:\qend"`

	l := New(input)

	tok := l.NextToken()
	if tok.Kind != token.ILLEGAL {
		t.Fatalf("expected ILLEGAL token for unknown escape, got %q", tok.Kind)
	}
}

// TestLineAndColumnTracking checks that the lexer advances line numbers
// across newlines and resets column on each new line.
func TestLineAndColumnTracking(t *testing.T) {
	input := "x\ny"

	l := New(input)

	tok := l.NextToken()
	if tok.Line != 1 {
		t.Fatalf("expected line 1, got %d", tok.Line)
	}

	tok = l.NextToken()
	if tok.Line != 2 {
		t.Fatalf("expected line 2, got %d", tok.Line)
	}
	if tok.Column != 1 {
		t.Fatalf("expected column 1 on the new line, got %d", tok.Column)
	}
}
