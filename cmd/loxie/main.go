// Command loxie is the CLI boundary for the compiler and VM (spec
// §6.5): file-mode execution, a REPL, and a disassembler, grounded in
// kristofer-smog's cmd/smog/main.go (subcommand dispatch, REPL loop
// shape) and original_source's error.c ANSI color codes / main.c exit
// codes.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"

	"github.com/kristofer/loxie/internal/chunk"
	"github.com/kristofer/loxie/internal/compiler"
	"github.com/kristofer/loxie/internal/gc"
	"github.com/kristofer/loxie/internal/native"
	"github.com/kristofer/loxie/internal/vm"
)

const version = "0.1.0"

// Exit codes per spec §6.5 (REDESIGN FLAG #3's corrected form) and
// original_source/src/main.c.
const (
	exitOK           = 0
	exitUsage        = 64
	exitCompileError = 65
	exitOutOfMemory  = 69
	exitRuntimeError = 70
	exitIOError      = 74
)

// ANSI escapes lifted verbatim from original_source/inc/error.h;
// diagnostics on stderr are always wrapped in them, whether or not
// the output is a terminal.
const (
	colorRed    = "\033[0;31m"
	colorYellow = "\033[0;33m"
	colorReset  = "\033[0m"
)

func main() {
	if len(os.Args) < 2 {
		runREPL()
		return
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		fmt.Printf("loxie version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	case "repl":
		runREPL()
	case "run":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "error: no file specified")
			printUsage()
			os.Exit(exitUsage)
		}
		os.Exit(runFile(os.Args[2]))
	case "disassemble", "disasm":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "error: no file specified")
			os.Exit(exitUsage)
		}
		os.Exit(disassembleFile(os.Args[2]))
	default:
		os.Exit(runFile(os.Args[1]))
	}
}

func printUsage() {
	fmt.Println("loxie - a small dynamically-typed scripting language")
	fmt.Println("\nUsage:")
	fmt.Println("  loxie                    start interactive REPL")
	fmt.Println("  loxie [file]             run a .lox source file")
	fmt.Println("  loxie run [file]         run a .lox source file")
	fmt.Println("  loxie disassemble [file] print a file's compiled bytecode")
	fmt.Println("  loxie repl               start interactive REPL")
	fmt.Println("  loxie version            show version")
	fmt.Println("  loxie help               show this help")
}

// newEngine wires one VM, sharing its GC and Globals with a fresh
// compiler and registering the native library (spec §6.6's compiler/
// GC hook and §6.1's native registration happen here, at the one
// place both halves of the runtime are constructed together).
func newEngine() (*vm.VM, *compiler.Compiler) {
	v := vm.New(vm.Options{})
	c := compiler.New(v.Globals, v.GC)
	native.New(v.GC).RegisterAll(v.Globals)
	return v, c
}

// runFile compiles and runs a source file, translating every failure
// tier into its spec §6.5 exit code. A panic escaping the compiler or
// VM (the only way this Go implementation can observe a host
// allocation failure) is treated as out-of-memory, since neither the
// compiler nor the VM returns a distinct OOM error today.
func runFile(filename string) (code int) {
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%serror reading %q: %v%s\n", colorRed, filename, err, colorReset)
		return exitIOError
	}

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "%sfatal: %v%s\n", colorRed, r, colorReset)
			code = exitOutOfMemory
		}
	}()

	v, c := newEngine()
	fn, cerr := c.Compile(string(data))
	if cerr != nil {
		fmt.Fprintf(os.Stderr, "%scompile error%s\n", colorRed, colorReset)
		return exitCompileError
	}

	v.EnsureStack(c.MaxStackHeight())
	closure := v.GC.AllocateClosure(fn)
	if rerr := v.Interpret(closure); rerr != nil {
		fmt.Fprintf(os.Stderr, "%s%v%s\n", colorYellow, rerr, colorReset)
		return exitRuntimeError
	}
	return exitOK
}

func disassembleFile(filename string) int {
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading %q: %v\n", filename, err)
		return exitIOError
	}

	v, c := newEngine()
	fn, cerr := c.Compile(string(data))
	if cerr != nil {
		fmt.Fprintln(os.Stderr, "compile error")
		return exitCompileError
	}
	_ = v
	fmt.Print(fn.Chunk.(*chunk.Chunk).Disassemble(filename))
	return exitOK
}

// runREPL starts an interactive read-compile-run loop over a
// persistent VM and compiler so globals and classes defined on one
// line remain visible to the next, mirroring kristofer-smog's REPL
// (a persistent vm.VM + compiler.Compiler pair across inputs).
func runREPL() {
	fmt.Printf("loxie %s\n", version)
	fmt.Println("Type :quit or :exit to leave.")

	v, c := newEngine()
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("loxie> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		switch line {
		case ":quit", ":exit":
			return
		case "":
			continue
		}
		evalREPL(v, c, line)
	}
	if err := scanner.Err(); err != nil {
		log.Printf("error reading stdin: %v", err)
	}
}

func evalREPL(v *vm.VM, c *compiler.Compiler, input string) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "%sfatal: %v%s\n", colorRed, r, colorReset)
		}
	}()

	fn, err := c.Compile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%scompile error%s\n", colorRed, colorReset)
		return
	}
	v.EnsureStack(c.MaxStackHeight())
	closure := v.GC.AllocateClosure(fn)
	if err := v.Interpret(closure); err != nil {
		fmt.Fprintf(os.Stderr, "%s%v%s\n", colorYellow, err, colorReset)
	}
}
