// Command valp is the language's CLI front-end: run a script, drop
// into a REPL, or disassemble a compiled chunk without running it.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/valp-lang/valp/pkg/chunk"
	"github.com/valp-lang/valp/pkg/compiler"
	"github.com/valp-lang/valp/pkg/object"
	"github.com/valp-lang/valp/pkg/value"
	"github.com/valp-lang/valp/pkg/vm"
)

const version = "0.1.0"

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	verboseFlag := &cli.BoolFlag{
		Name:  "verbose",
		Usage: "log GC cycles to stderr",
	}
	stressFlag := &cli.BoolFlag{
		Name:  "stress-gc",
		Usage: "collect on every allocation",
	}

	return &cli.Command{
		Name:    "valp",
		Usage:   "run and inspect valp programs",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "compile and run a script file",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{verboseFlag, stressFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.Args().First()
					if path == "" {
						return cli.Exit("usage: valp run <path>", 64)
					}
					src, err := os.ReadFile(path)
					if err != nil {
						return cli.Exit(err, 74)
					}
					return runSource(string(src), cmd.Bool("verbose"), cmd.Bool("stress-gc"))
				},
			},
			{
				Name:  "repl",
				Usage: "start an interactive read-eval-print loop",
				Flags: []cli.Flag{verboseFlag, stressFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runREPL(cmd.Bool("verbose"), cmd.Bool("stress-gc"))
				},
			},
			{
				Name:      "disassemble",
				Usage:     "compile a script and print its bytecode, without running it",
				ArgsUsage: "<path>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.Args().First()
					if path == "" {
						return cli.Exit("usage: valp disassemble <path>", 64)
					}
					src, err := os.ReadFile(path)
					if err != nil {
						return cli.Exit(err, 74)
					}
					return disassembleSource(string(src), path)
				},
			},
			{
				Name:  "version",
				Usage: "print the interpreter version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Printf("valp %s\n", version)
					return nil
				},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return runREPL(cmd.Bool("verbose"), cmd.Bool("stress-gc"))
			}
			path := cmd.Args().First()
			src, err := os.ReadFile(path)
			if err != nil {
				return cli.Exit(err, 74)
			}
			return runSource(string(src), cmd.Bool("verbose"), cmd.Bool("stress-gc"))
		},
	}
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func runSource(src string, verbose, stress bool) error {
	logger := newLogger(verbose)
	defer logger.Sync()

	machine := vm.New(vm.WithLogger(logger), vm.WithStdout(os.Stdout), vm.WithStress(stress))
	result, err := machine.Interpret(src)
	if err != nil {
		printRuntimeDiagnostic(err)
	}
	switch result {
	case vm.ResultCompileError:
		return cli.Exit("", 65)
	case vm.ResultRuntimeError:
		return cli.Exit("", 70)
	}
	return nil
}

// printRuntimeDiagnostic renders a compile or runtime error: the
// message in red, the call-stack frames (if any) dimmed underneath.
func printRuntimeDiagnostic(err error) {
	red := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)

	if rerr, ok := err.(*vm.RuntimeError); ok {
		red.Fprintln(os.Stderr, rerr.Message)
		for _, frame := range rerr.StackTrace {
			dim.Fprintf(os.Stderr, "[line %d] in %s\n", frame.Line, frame.Name)
		}
		return
	}
	red.Fprintln(os.Stderr, err)
}

// runREPL reads a line at a time, interpreting each on the same VM so
// globals persist across lines; readline supplies history and editing.
func runREPL(verbose, stress bool) error {
	logger := newLogger(verbose)
	defer logger.Sync()

	rl, err := readline.New("valp> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	machine := vm.New(vm.WithLogger(logger), vm.WithStdout(os.Stdout), vm.WithStress(stress))
	fmt.Printf("valp %s\n", version)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := machine.Interpret(line); err != nil {
			printRuntimeDiagnostic(err)
		}
	}
}

func disassembleSource(src, name string) error {
	heap := object.NewHeap()
	fn, err := compiler.Compile(src, heap, nopRoots{})
	if err != nil {
		return cli.Exit(err, 65)
	}
	disassembleFunction(fn, filepath.Base(name))
	return nil
}

// disassembleFunction recurses into every nested function's own chunk,
// since the top-level chunk only holds OP_CLOSURE constants pointing
// at them.
func disassembleFunction(fn *object.Function, name string) {
	chunk.Disassemble(os.Stdout, &fn.Chunk, name)
	for _, c := range fn.Chunk.Constants {
		if nested, ok := c.Obj.(*object.Function); ok {
			nestedName := "script"
			if nested.Name != nil {
				nestedName = nested.Name.Go()
			}
			fmt.Println()
			disassembleFunction(nested, nestedName)
		}
	}
}

// nopRoots satisfies compiler.Roots for disassemble-only compiles,
// which never run a VM and so never need a GC-reachable value stack.
type nopRoots struct{}

func (nopRoots) Push(v value.Value) {}
func (nopRoots) Pop() value.Value   { return value.Value{} }
