// Package repl implements the Read-Eval-Print Loop for Periwinkle.
//
// The REPL provides an interactive interface for users to enter
// Periwinkle code, have it compiled and run, and see the result
// immediately. It uses the Charm libraries (Bubbletea, Bubbles, and
// Lipgloss) to create a modern terminal interface with syntax
// highlighting and command history. Each entered line is compiled and
// run on a fresh VM rather than walked by a tree evaluator.
//
// Because each line is its own compilation unit, variable persistence
// across lines is a property of the VM's globals map, not of any one
// VM or frame: one globals map is created per session and handed to a
// fresh vm.VM for every line, so a name a previous line declared is
// still a global the next line's compiled code object can resolve.
package repl

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dr8co/periwinkle/builtin"
	"github.com/dr8co/periwinkle/compiler"
	"github.com/dr8co/periwinkle/lexer"
	"github.com/dr8co/periwinkle/object"
	"github.com/dr8co/periwinkle/parser"
	"github.com/dr8co/periwinkle/token"
	"github.com/dr8co/periwinkle/vm"
)

const (
	// Prompt is the default prompt for the REPL.
	Prompt = ">> "

	// ContPrompt is the continuation prompt used in multiline input mode.
	ContPrompt = ".. "
)

// Options contains configuration options for the REPL.
type Options struct {
	NoColor bool // Disable syntax highlighting and colored output
	Debug   bool // Debug mode flag; no REPL code path reads it
}

// Start initializes and runs the REPL with the given username and options.
func Start(username string, options Options) {
	p := tea.NewProgram(initialModel(username, options))
	if _, err := p.Run(); err != nil {
		fmt.Println("Помилка запуску:", err)
	}
}

// Styling
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	parseErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)

	runtimeErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF8700")).
				Bold(true)

	historyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))

	keywordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF79C6")).
			Bold(true)

	identifierStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8F8F2"))

	literalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	operatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	delimiterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#BD93F9"))

	stringStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))
)

// ErrorType represents the type of error that occurred.
type ErrorType int

const (
	NoError ErrorType = iota
	ParseError
	RuntimeError
)

// evalResultMsg is the async message carrying one line's evaluation result.
type evalResultMsg struct {
	output    string
	isError   bool
	errorType ErrorType
	elapsed   time.Duration
}

type model struct {
	textInput       textinput.Model
	history         []historyEntry
	globals         map[string]object.Value
	username        string
	evaluating      bool
	currentInput    string
	multilineBuffer string
	isMultiline     bool
	spinner         spinner.Model
	options         Options
}

func (m model) applyStyle(style lipgloss.Style, text string) string {
	if m.options.NoColor {
		return text
	}
	return style.Render(text)
}

type historyEntry struct {
	input          string
	output         string
	isError        bool
	errorType      ErrorType
	evaluationTime time.Duration
}

func initialModel(username string, options Options) model {
	ti := textinput.New()
	ti.Placeholder = "Введіть код Барвінку"
	ti.Focus()
	ti.Width = 80
	ti.Prompt = promptStyle.Render(Prompt)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return model{
		textInput:  ti,
		history:    []historyEntry{},
		globals:    vm.NewGlobals(),
		username:   username,
		evaluating: false,
		spinner:    s,
		options:    options,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// isBalanced checks if brackets, braces, and parentheses are balanced.
func isBalanced(input string) bool {
	var stack []rune
	for _, char := range input {
		switch char {
		case '(', '{', '[':
			stack = append(stack, char)
		case ')':
			if len(stack) == 0 || stack[len(stack)-1] != '(' {
				return false
			}
			stack = stack[:len(stack)-1]
		case '}':
			if len(stack) == 0 || stack[len(stack)-1] != '{' {
				return false
			}
			stack = stack[:len(stack)-1]
		case ']':
			if len(stack) == 0 || stack[len(stack)-1] != '[' {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

// evalCmd compiles and runs one line against the session's shared
// globals map, returning a tea.Msg once execution finishes.
func evalCmd(input string, globals map[string]object.Value) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()

		l := lexer.New(input)
		p := parser.New(l)
		program := p.ParseProgram()

		if len(p.Errors()) != 0 {
			return evalResultMsg{
				output:    formatParseErrors(p.Errors()),
				isError:   true,
				errorType: ParseError,
				elapsed:   time.Since(start),
			}
		}

		comp := compiler.New(builtin.Names())
		co := comp.Compile(program)
		if len(comp.Errors()) != 0 {
			return evalResultMsg{
				output:    formatParseErrors(comp.Errors()),
				isError:   true,
				errorType: ParseError,
				elapsed:   time.Since(start),
			}
		}

		machine := vm.NewWithGlobals(co, globals)
		if exc := machine.Run(); exc != nil {
			return evalResultMsg{
				output:    formatRuntimeError(exc),
				isError:   true,
				errorType: RuntimeError,
				elapsed:   time.Since(start),
			}
		}

		result := machine.LastPoppedStackElem()
		output := "нич"
		if result != nil {
			output = result.Inspect()
		}
		return evalResultMsg{output: output, elapsed: time.Since(start)}
	}
}

func (m model) formatError(errorStyle *lipgloss.Style, entry *historyEntry, s *strings.Builder) {
	parts := strings.Split(entry.output, "\nПоради:")
	if len(parts) > 1 {
		if m.options.NoColor {
			s.WriteString(parts[0])
			s.WriteString("\nПоради:" + parts[1])
		} else {
			s.WriteString(errorStyle.Render(parts[0]))
			s.WriteString("\n")
			s.WriteString(historyStyle.Render("Поради:" + parts[1]))
		}
	} else if m.options.NoColor {
		s.WriteString(entry.output)
	} else {
		s.WriteString(errorStyle.Render(entry.output))
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.evaluating {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case evalResultMsg:
		m.evaluating = false
		m.history = append(m.history, historyEntry{
			input:          m.currentInput,
			output:         msg.output,
			isError:        msg.isError,
			errorType:      msg.errorType,
			evaluationTime: msg.elapsed,
		})
		m.currentInput = ""
		return m, nil

	case tea.KeyMsg:
		if m.evaluating && msg.Type != tea.KeyCtrlC {
			return m, m.spinner.Tick
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			input := m.textInput.Value()
			if input == "" {
				if m.isMultiline {
					if m.multilineBuffer == "" {
						m.isMultiline = false
						return m, nil
					}
					m.evaluating = true
					m.currentInput = m.multilineBuffer
					m.textInput.SetValue("")
					m.isMultiline = false
					buffer := m.multilineBuffer
					m.multilineBuffer = ""
					return m, evalCmd(buffer, m.globals)
				}
				return m, nil
			}

			if m.isMultiline {
				m.multilineBuffer += "\n" + input
				m.textInput.SetValue("")
				if isBalanced(m.multilineBuffer) {
					m.evaluating = true
					m.currentInput = m.multilineBuffer
					m.isMultiline = false
					buffer := m.multilineBuffer
					m.multilineBuffer = ""
					return m, evalCmd(buffer, m.globals)
				}
				return m, nil
			}

			if !isBalanced(input) {
				m.isMultiline = true
				m.multilineBuffer = input
				m.textInput.SetValue("")
				return m, nil
			}

			m.evaluating = true
			m.currentInput = input
			m.textInput.SetValue("")
			return m, evalCmd(input, m.globals)
		}
	}

	if !m.evaluating {
		m.textInput, cmd = m.textInput.Update(msg)
	}
	if m.evaluating {
		return m, m.spinner.Tick
	}
	return m, cmd
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(m.applyStyle(titleStyle, " Барвінок REPL "))
	s.WriteString("\n")

	if m.username != "" {
		s.WriteString(fmt.Sprintf("\nВітаю, %s! Вводьте код Барвінку\n", m.username))
	}
	s.WriteString("\n")

	for _, entry := range m.history {
		lines := strings.Split(entry.input, "\n")
		for i, line := range lines {
			if i == 0 {
				s.WriteString(m.applyStyle(promptStyle, Prompt))
			} else {
				s.WriteString(m.applyStyle(promptStyle, ContPrompt))
			}
			s.WriteString(m.highlightCode(line))
			s.WriteString("\n")
		}

		if entry.isError {
			switch entry.errorType {
			case ParseError:
				m.formatError(&parseErrorStyle, &entry, &s)
			case RuntimeError:
				m.formatError(&runtimeErrorStyle, &entry, &s)
			default:
				s.WriteString(m.applyStyle(errorStyle, entry.output))
			}
		} else {
			s.WriteString(m.applyStyle(resultStyle, entry.output))
		}

		if entry.evaluationTime > 10*time.Millisecond {
			timeStr := fmt.Sprintf(" (%.2fс)", entry.evaluationTime.Seconds())
			s.WriteString(m.applyStyle(historyStyle, timeStr))
		}

		s.WriteString("\n\n")
	}

	if m.evaluating {
		s.WriteString(m.applyStyle(promptStyle, Prompt))
		s.WriteString(m.highlightCode(m.currentInput))
		s.WriteString("\n")
		s.WriteString(m.spinner.View())
		s.WriteString(" Виконання...")
		s.WriteString("\n\n")
	}

	if m.isMultiline && !m.evaluating {
		s.WriteString(m.applyStyle(historyStyle, "Поточний багаторядковий ввід:\n"))
		s.WriteString(m.highlightCode(m.multilineBuffer))
		s.WriteString("\n")
	}

	if !m.evaluating {
		if m.isMultiline {
			m.textInput.Prompt = m.applyStyle(promptStyle, ContPrompt)
		} else {
			m.textInput.Prompt = m.applyStyle(promptStyle, Prompt)
		}
		s.WriteString(m.textInput.View())
		s.WriteString("\n")
	}

	helpText := "\nEsc або Ctrl+C/D для виходу"
	if m.isMultiline {
		helpText += " | Порожній рядок завершує багаторядковий ввід"
	} else {
		helpText += " | Незбалансовані дужки вмикають багаторядковий ввід"
	}
	s.WriteString(m.applyStyle(historyStyle, helpText))

	return s.String()
}

func formatParseErrors(errors []string) string {
	var s strings.Builder
	s.WriteString("Помилки розбору:\n")
	for i, msg := range errors {
		s.WriteString(fmt.Sprintf("  %d. %s\n", i+1, msg))
	}
	return s.String()
}

func formatRuntimeError(exc *object.Exception) string {
	var s strings.Builder
	s.WriteString(exc.Inspect())
	s.WriteString("\n")
	for _, frame := range exc.Trace {
		s.WriteString(frame)
		s.WriteString("\n")
	}
	return s.String()
}

// highlightCode applies basic syntax highlighting to one line of
// Periwinkle source, by walking the lexer's own token stream rather
// than re-implementing tokenization rules here.
func (m model) highlightCode(code string) string {
	l := lexer.New(code)
	var s strings.Builder

	for {
		tok := l.NextToken()
		if tok.Kind == token.EOF {
			break
		}
		switch {
		case isKeywordKind(tok.Kind):
			s.WriteString(m.applyStyle(keywordStyle, tok.Literal))
		case tok.Kind == token.IDENT:
			s.WriteString(m.applyStyle(identifierStyle, tok.Literal))
		case tok.Kind == token.INT || tok.Kind == token.REAL:
			s.WriteString(m.applyStyle(literalStyle, tok.Literal))
		case tok.Kind == token.STRING:
			s.WriteString(m.applyStyle(stringStyle, "\""+tok.Literal+"\""))
		case isOperatorKind(tok.Kind):
			s.WriteString(m.applyStyle(operatorStyle, tok.Literal))
		case isDelimiterKind(tok.Kind):
			s.WriteString(m.applyStyle(delimiterStyle, tok.Literal))
		default:
			s.WriteString(tok.Literal)
		}
		s.WriteString(" ")
	}

	return strings.TrimRight(s.String(), " ")
}

func isKeywordKind(k token.Kind) bool {
	switch k {
	case token.TRUE, token.FALSE, token.NULL, token.FUNCTION, token.RETURN,
		token.IF, token.ELSE_IF, token.ELSE, token.WHILE, token.BREAK,
		token.CONTINUE, token.END, token.FOR, token.EACH, token.IN,
		token.TRY, token.CATCH, token.FINALLY, token.RAISE, token.AS:
		return true
	}
	return false
}

func isOperatorKind(k token.Kind) bool {
	switch k {
	case token.ASSIGN, token.PLUS, token.PLUS_EQ, token.MINUS, token.MINUS_EQ,
		token.STAR, token.STAR_EQ, token.SLASH, token.SLASH_EQ,
		token.BACKSLASH, token.BACKSLASH_EQ, token.PERCENT, token.PERCENT_EQ,
		token.EQ, token.NOT_EQ, token.BANG,
		token.AND, token.OR, token.NOT, token.IS, token.IS_NOT,
		token.GT, token.GT_EQ, token.LT, token.LT_EQ:
		return true
	}
	return false
}

func isDelimiterKind(k token.Kind) bool {
	switch k {
	case token.COMMA, token.SEMICOLON, token.COLON, token.DOT,
		token.LPAREN, token.RPAREN, token.LBRACKET, token.RBRACKET,
		token.LBRACE, token.RBRACE:
		return true
	}
	return false
}
