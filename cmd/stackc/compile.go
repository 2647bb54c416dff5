package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/stackscript/internal/cli"
	"github.com/orizon-lang/stackscript/internal/compilation"
	"github.com/orizon-lang/stackscript/internal/compiler"
	"github.com/orizon-lang/stackscript/internal/lexer"
	"github.com/orizon-lang/stackscript/internal/position"
	"github.com/orizon-lang/stackscript/internal/symbols"
)

func runCompile(args []string, stdout, stderr io.Writer) error {
	fs, s := newFlagSet("compile", stderr)
	outPath := fs.String("o", "", "write the program to this file instead of stdout")
	withVars := fs.Bool("vars", false, "print the variable table after the program")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	files := fs.Args()
	if len(files) == 0 {
		return usageError(stderr, "compile")
	}

	cfg, err := s.resolve(fs)
	if err != nil {
		return err
	}

	limit := cfg.Workers
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	// Every file is compiled even when an earlier one fails, so all
	// diagnostics reach the log; Wait reports the first failure.
	results := make([]string, len(files))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, file := range files {
		g.Go(func() error {
			ctx, err := compileFile(file, cfg, stderr, compiler.StageCleanup)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			results[i] = render(ctx, *withVars)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var b strings.Builder
	for i, file := range files {
		if len(files) > 1 {
			fmt.Fprintf(&b, "# %s\n", file)
		}
		b.WriteString(results[i])
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(b.String()), 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	_, err = io.WriteString(stdout, b.String())
	return err
}

// compileFile reads path and runs it through the pipeline up to stop,
// logging diagnostics to w as they happen.
func compileFile(path string, cfg *cli.Config, w io.Writer, stop compiler.Stage) (*compilation.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return compileSource(path, string(data), cfg, w, stop)
}

func compileSource(name, source string, cfg *cli.Config, w io.Writer, stop compiler.Stage) (*compilation.Context, error) {
	logger := newLogger(cfg, w)
	logger.Source = position.NewSourceFile(name, source)

	opts := cfg.Options()
	opts.Sink = logger
	return compiler.Compile(name, source, opts, stop)
}

// render prints one statement per line, optionally followed by the
// variable table.
func render(ctx *compilation.Context, withVars bool) string {
	var b strings.Builder

	for _, st := range ctx.Statements() {
		b.WriteString(ctx.Tree.Format(st))
		b.WriteByte('\n')
	}
	if withVars {
		b.WriteString(formatVariables(ctx.Variables))
	}

	return b.String()
}

func formatVariables(table *symbols.Table) string {
	var b strings.Builder

	for _, v := range table.Variables() {
		role := "local"
		switch {
		case v.IsConstant:
			role = "const"
		case v.IsInput && v.IsOutput:
			role = "inout"
		case v.IsInput:
			role = "input"
		case v.IsOutput:
			role = "output"
		}
		fmt.Fprintf(&b, "# %3d %-16s %-6s %s vec%d\n", v.ID, v.Name, role, v.DataType, v.VectorSize)
	}

	return b.String()
}

func runTokens(args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		return usageError(stderr, "tokens")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	res, err := lexer.Tokenize(string(data), args[0])
	if err != nil {
		return err
	}

	_, err = io.WriteString(stdout, formatTokens(res))
	return err
}

func formatTokens(res *lexer.Result) string {
	var b strings.Builder

	for _, m := range res.Inputs {
		fmt.Fprintf(&b, "input  %-12s offset=%d %s vec%d\n", m.Name, m.Offset, m.DataType, m.VectorSize)
	}
	for _, m := range res.Outputs {
		fmt.Fprintf(&b, "output %-12s offset=%d %s vec%d\n", m.Name, m.Offset, m.DataType, m.VectorSize)
	}
	for _, v := range res.Validations {
		fmt.Fprintf(&b, "validate %s %s\n", v.Name, v.Value)
	}
	for _, t := range res.Tokens {
		fmt.Fprintf(&b, "%d:%d\t%s\n", t.Pos.Line, t.Pos.Column, t)
	}

	return b.String()
}

func runAST(args []string, stdout, stderr io.Writer) error {
	fs, s := newFlagSet("ast", stderr)
	stageName := fs.String("stage", "cleanup", "parse|analyze|transform|flatten|cleanup")
	dump := fs.Bool("dump", false, "print the node tree instead of source form")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return usageError(stderr, "ast")
	}

	stage, err := compiler.ParseStage(*stageName)
	if err != nil {
		return err
	}
	cfg, err := s.resolve(fs)
	if err != nil {
		return err
	}

	ctx, err := compileFile(fs.Arg(0), cfg, stderr, stage)
	if err != nil {
		return err
	}

	out := render(ctx, false)
	if *dump {
		out = ctx.Tree.Dump(ctx.Tree.Root())
	}
	_, err = io.WriteString(stdout, out)
	return err
}
