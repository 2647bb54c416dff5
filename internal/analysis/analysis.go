// Package analysis normalizes the expressions of assignments after parsing:
// multiplication and division are regrouped below addition and subtraction,
// same-operator compounds are merged, divisions by constants become
// multiplications by the reciprocal and doubled minus signs collapse.
//
// The rewrites run to a fixpoint per top level statement. The number of
// passes that still rewrite something is bounded by
// Options.MaxAnalysisIterations; a statement that has not converged by then
// fails the compilation.
package analysis

import (
	"fmt"

	"github.com/orizon-lang/stackscript/internal/ast"
	"github.com/orizon-lang/stackscript/internal/compilation"
	serrors "github.com/orizon-lang/stackscript/internal/errors"
	"github.com/orizon-lang/stackscript/internal/symbols"
)

// Rewrite is one normalization applied to an expression run.
type Rewrite interface {
	// Name returns a short name used in traces.
	Name() string

	// Apply rewrites the run held by seq in place and returns the number
	// of changes made.
	Apply(a *Analyzer, seq ast.NodeID) (int, error)
}

// Stats counts what one analysis run did.
type Stats struct {
	Statements int
	Iterations int
	Changes    map[string]int
}

// Total returns the number of changes over all rewrites.
func (s Stats) Total() int {
	total := 0
	for _, n := range s.Changes {
		total += n
	}
	return total
}

func (s Stats) String() string {
	return fmt.Sprintf("statements: %d, iterations: %d, changes: %d", s.Statements, s.Iterations, s.Total())
}

// Analyzer carries the state of one analysis run.
type Analyzer struct {
	ctx      *compilation.Context
	tree     *ast.Tree
	vars     *symbols.Table
	rewrites []Rewrite
	stats    Stats

	// divisions by zero already warned about
	warned map[ast.NodeID]bool
}

// NewAnalyzer creates an analyzer with the default rewrite order.
func NewAnalyzer(ctx *compilation.Context) *Analyzer {
	return &Analyzer{
		ctx:  ctx,
		tree: ctx.Tree,
		vars: ctx.Variables,
		rewrites: []Rewrite{
			regroup{},
			merge{},
			reciprocal{},
			doubleMinus{},
		},
		stats:  Stats{Changes: make(map[string]int)},
		warned: make(map[ast.NodeID]bool),
	}
}

// Analyze normalizes every statement of ctx.
func Analyze(ctx *compilation.Context) error {
	_, err := Run(ctx)
	return err
}

// Run normalizes every statement of ctx and reports what changed.
func Run(ctx *compilation.Context) (Stats, error) {
	a := NewAnalyzer(ctx)
	for _, st := range ctx.Statements() {
		if err := a.Statement(st); err != nil {
			return a.stats, err
		}
	}
	ctx.Diagnostics.Tracef("analysis: %s", a.stats)
	return a.stats, nil
}

// Statement runs the rewrites on st until nothing changes. Only passes that
// rewrite something count toward the bound; the closing pass that confirms
// the fixpoint is free.
func (a *Analyzer) Statement(st ast.NodeID) error {
	a.stats.Statements++
	a.noteCalls(st)

	limit := a.ctx.Options.MaxAnalysisIterations
	for rewriting := 0; ; rewriting++ {
		a.stats.Iterations++

		changes, err := a.iterate(st)
		if err != nil {
			return a.ctx.Fail(err, st)
		}
		if changes == 0 {
			return nil
		}
		if rewriting >= limit {
			return a.ctx.Fail(&serrors.BoundExceededError{Stage: "analysis", Limit: limit}, st)
		}
	}
}

// iterate applies every rewrite once to every assignment below st.
func (a *Analyzer) iterate(st ast.NodeID) (int, error) {
	var assignments []ast.NodeID
	a.tree.Walk(st, func(id ast.NodeID) bool {
		if a.tree.Kind(id) == ast.KindAssignment {
			assignments = append(assignments, id)
		}
		return true
	})

	total := 0
	for _, as := range assignments {
		for _, rw := range a.rewrites {
			for _, seq := range a.sequences(as) {
				n, err := rw.Apply(a, seq)
				if err != nil {
					return total, err
				}
				a.stats.Changes[rw.Name()] += n
				total += n
			}
		}
	}
	return total, nil
}

// sequences returns id and every compound reachable from it through
// compound children only. Function arguments and index expressions are not
// part of the run.
func (a *Analyzer) sequences(id ast.NodeID) []ast.NodeID {
	out := []ast.NodeID{id}
	for _, c := range a.tree.Children(id) {
		if a.tree.Kind(c) == ast.KindCompound {
			out = append(out, a.sequences(c)...)
		}
	}
	return out
}

// noteCalls logs the calls below st whose arguments are expressions; those
// are not normalized.
func (a *Analyzer) noteCalls(st ast.NodeID) {
	a.tree.Walk(st, func(id ast.NodeID) bool {
		n := a.tree.Node(id)
		if n.Kind != ast.KindFunction || n.IsPush() || n.IsPop() {
			return true
		}
		for _, c := range a.tree.Children(id) {
			if a.tree.Node(c).IsScalarCompound() {
				a.ctx.Diagnostics.Todof(n.Line, "arguments of %s are not normalized", n.Identifier)
				break
			}
		}
		return true
	})
}

func (a *Analyzer) isOperation(id ast.NodeID) bool {
	return a.tree.Kind(id) == ast.KindOperation
}

// isUnary reports whether the operation at position i of children is a
// prefix operator rather than a binary one.
func (a *Analyzer) isUnary(children []ast.NodeID, i int) bool {
	return i == 0 || a.isOperation(children[i-1])
}
