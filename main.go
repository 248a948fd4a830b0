// Command periwinkle compiles and runs Periwinkle source files, and
// without a file argument starts the interactive REPL.
package main

import (
	"fmt"
	"os"
	"os/user"

	"github.com/dr8co/periwinkle/builtin"
	"github.com/dr8co/periwinkle/compiler"
	"github.com/dr8co/periwinkle/disasm"
	"github.com/dr8co/periwinkle/lexer"
	"github.com/dr8co/periwinkle/object"
	"github.com/dr8co/periwinkle/parser"
	"github.com/dr8co/periwinkle/repl"
	"github.com/dr8co/periwinkle/vm"
)

const version = "0.1.0"

func printUsage() {
	fmt.Printf(`Барвінок v%s

ВИКОРИСТАННЯ:
    %s [ПРАПОРЦІ] [ФАЙЛ] [АРГУМЕНТИ...]

ОПИС:
    Без аргументів запускає інтерактивний REPL.
    З файлом — компілює та виконує його, передаючи АРГУМЕНТИ програмі.

ПРАПОРЦІ:
    -д, --допомога    показати цю довідку і завершити роботу
    -а, --асемблер    показати дизасембльований код програми і завершити роботу

ПРИКЛАДИ:
    %s
    %s програма.барв
    %s -а програма.барв
`, version, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	args := os.Args[1:]

	disassemble := false
	var rest []string
	for i := 0; i < len(args); i++ {
		if len(rest) > 0 {
			rest = append(rest, args[i])
			continue
		}
		switch args[i] {
		case "-д", "--допомога":
			printUsage()
			os.Exit(0)
		case "-а", "--асемблер":
			disassemble = true
		default:
			rest = append(rest, args[i])
		}
	}

	if len(rest) == 0 {
		username := "незнайомцю"
		if usr, err := user.Current(); err == nil && usr.Username != "" {
			username = usr.Username
		}
		repl.Start(username, repl.Options{})
		return
	}

	path := rest[0]
	programArgs := rest[1:]

	//nolint:gosec // the path comes from the user's own command line
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "не вдалося прочитати файл: %s\n", err)
		os.Exit(1)
	}

	l := lexer.New(string(content))
	p := parser.New(l)
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		printErrors("Помилки розбору:", p.Errors())
		os.Exit(1)
	}

	comp := compiler.New(builtin.Names())
	co := comp.Compile(program)
	if len(comp.Errors()) != 0 {
		printErrors("Помилки компіляції:", comp.Errors())
		os.Exit(1)
	}

	if disassemble {
		fmt.Print(disasm.Disassemble(co))
		os.Exit(0)
	}

	globals := vm.NewGlobals()
	globals["аргументи"] = argsList(programArgs)

	machine := vm.NewWithGlobals(co, globals)
	if exc := machine.Run(); exc != nil {
		printException(exc)
		os.Exit(1)
	}
}

func argsList(args []string) *object.List {
	elems := make([]object.Value, len(args))
	for i, a := range args {
		elems[i] = &object.String{Value: a}
	}
	return &object.List{Elements: elems}
}

func printErrors(header string, errors []string) {
	_, _ = fmt.Fprintln(os.Stderr, header)
	for _, msg := range errors {
		_, _ = fmt.Fprintln(os.Stderr, "  "+msg)
	}
}

func printException(exc *object.Exception) {
	_, _ = fmt.Fprintln(os.Stderr, exc.Inspect())
	for _, frame := range exc.Trace {
		_, _ = fmt.Fprintln(os.Stderr, frame)
	}
}
