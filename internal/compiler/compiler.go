// Package compiler drives one script through every stage of the pipeline:
// tokenize, parse, analyze, transform, flatten and cleanup. Each stage
// rewrites the same tree in place and the driver stops at the first stage
// that fails.
package compiler

import (
	"fmt"
	"os"
	"strings"

	"github.com/orizon-lang/stackscript/internal/analysis"
	"github.com/orizon-lang/stackscript/internal/ast"
	"github.com/orizon-lang/stackscript/internal/compilation"
	"github.com/orizon-lang/stackscript/internal/flatten"
	"github.com/orizon-lang/stackscript/internal/lexer"
	"github.com/orizon-lang/stackscript/internal/parser"
	"github.com/orizon-lang/stackscript/internal/symbols"
	"github.com/orizon-lang/stackscript/internal/transform"
)

// Stage names a point of the pipeline a compilation may stop after.
type Stage int

const (
	StageParse Stage = iota
	StageAnalyze
	StageTransform
	StageFlatten
	StageCleanup
)

var stageNames = [...]string{
	StageParse:     "parse",
	StageAnalyze:   "analyze",
	StageTransform: "transform",
	StageFlatten:   "flatten",
	StageCleanup:   "cleanup",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ParseStage maps a stage name to its Stage.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if strings.EqualFold(n, name) {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q (expected one of %s)", name, strings.Join(stageNames[:], ", "))
}

// Compile runs source through the pipeline up to and including stop. The
// context is returned even on failure so its diagnostics can be shown.
func Compile(filename, source string, opts compilation.Options, stop Stage) (*compilation.Context, error) {
	ctx, err := compilation.New(filename, source, opts)
	if err != nil {
		return nil, err
	}

	res, err := lexer.Tokenize(source, filename)
	if err != nil {
		return ctx, ctx.Fail(err, ast.NoNode)
	}
	ctx.Load(res)
	ctx.Diagnostics.Tracef("lexer: %d tokens, %d inputs, %d outputs", len(res.Tokens), len(res.Inputs), len(res.Outputs))

	stages := []func(*compilation.Context) error{
		StageParse:     parser.Parse,
		StageAnalyze:   analysis.Analyze,
		StageTransform: transform.Transform,
		StageFlatten:   flatten.Flatten,
		StageCleanup:   Cleanup,
	}
	for s, run := range stages {
		if err := run(ctx); err != nil {
			return ctx, fmt.Errorf("%s: %w", Stage(s), err)
		}
		if !ctx.IsOK() {
			return ctx, fmt.Errorf("%s: %s", Stage(s), ctx.Diagnostics.Summary())
		}
		if Stage(s) == stop {
			break
		}
	}

	return ctx, nil
}

// CompileFile reads path and compiles it through every stage.
func CompileFile(path string, opts compilation.Options) (*compilation.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Compile(path, string(data), opts, StageCleanup)
}

// Cleanup drops the constants no statement refers to any more and numbers
// the remaining variables densely: inputs and outputs in pragma order, then
// everything else by first occurrence in the tree. Names given to #validate
// that match no variable are reported as warnings.
func Cleanup(ctx *compilation.Context) error {
	removed := 0
	for _, v := range ctx.Variables.Variables() {
		if v.IsConstant && v.ReferenceCount() == 0 {
			ctx.Variables.Remove(v)
			removed++
		}
	}

	rank := make(map[*symbols.Variable]int)
	next := 0
	place := func(v *symbols.Variable) {
		if v == nil {
			return
		}
		if _, ok := rank[v]; !ok {
			rank[v] = next
			next++
		}
	}
	for _, m := range ctx.Inputs {
		v, _ := ctx.Variables.Lookup(m.Name)
		place(v)
	}
	for _, m := range ctx.Outputs {
		v, _ := ctx.Variables.Lookup(m.Name)
		place(v)
	}
	ctx.Tree.Walk(ctx.Tree.Root(), func(id ast.NodeID) bool {
		place(ctx.Tree.Node(id).Variable)
		return true
	})
	ctx.Variables.Renumber(func(v *symbols.Variable) (int, bool) {
		r, ok := rank[v]
		return r, ok
	})

	for _, val := range ctx.Validations {
		if _, ok := ctx.Variables.Lookup(val.Name); !ok {
			ctx.Diagnostics.Warningf(val.Line, "#validate names unknown variable '%s'", val.Name)
		}
	}

	ctx.Diagnostics.Tracef("cleanup: %d constants removed, %d variables", removed, ctx.Variables.Len())
	return nil
}
