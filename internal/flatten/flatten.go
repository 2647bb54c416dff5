// Package flatten schedules the values of nested expressions on the
// interpreter stack and linearizes every statement list.
//
// A nested compound, a non-trivial vector literal or a call used as an
// argument is moved into a push and its slot replaced by a pop linked to
// that push. Until reconstruction the push is owned by its pop as a
// dependency. Reconstruction then emits every push ahead of its consumer,
// last pushed first popped, and the statement list is replaced by the
// emitted sequence. Pushes feeding a condition end up in the condition's
// dependencies; loop initializers are emitted before their loop.
package flatten

import (
	"github.com/orizon-lang/stackscript/internal/ast"
	"github.com/orizon-lang/stackscript/internal/compilation"
	serrors "github.com/orizon-lang/stackscript/internal/errors"
	"github.com/orizon-lang/stackscript/internal/registry"
)

// Stats counts what one run produced.
type Stats struct {
	Statements int
	Pushes     int
}

type flattener struct {
	ctx  *compilation.Context
	tree *ast.Tree

	push  *registry.Function
	pushv *registry.Function
	pop   *registry.Function

	stats Stats
}

// Flatten linearizes every statement list of ctx.Tree.
func Flatten(ctx *compilation.Context) error {
	_, err := Run(ctx)
	return err
}

// Run linearizes ctx.Tree and reports what it scheduled.
func Run(ctx *compilation.Context) (Stats, error) {
	f := &flattener{
		ctx:   ctx,
		tree:  ctx.Tree,
		push:  ctx.Registry.ByOp(registry.OpPush),
		pushv: ctx.Registry.ByOp(registry.OpPushVector),
		pop:   ctx.Registry.ByOp(registry.OpPop),
	}
	if f.push == nil || f.pushv == nil || f.pop == nil {
		return f.stats, ctx.Fail(serrors.Invariant(serrors.CodePushPop,
			"function table lacks the push and pop primitives"), ast.NoNode)
	}

	if err := f.Statements(ctx.Tree.Root()); err != nil {
		return f.stats, err
	}
	ctx.Diagnostics.Tracef("flatten: %d statements, %d pushes", f.stats.Statements, f.stats.Pushes)
	return f.stats, nil
}

// Statements replaces the children of holder by their emission ordered
// sequence.
func (f *flattener) Statements(holder ast.NodeID) error {
	var out []ast.NodeID
	for _, st := range f.tree.TakeChildren(holder) {
		seq, err := f.statement(st)
		if err != nil {
			return err
		}
		out = append(out, seq...)
	}
	for _, id := range out {
		f.tree.AppendChild(holder, id)
	}
	return nil
}

func (f *flattener) statement(st ast.NodeID) ([]ast.NodeID, error) {
	f.stats.Statements++
	n := f.tree.Node(st)

	switch n.Kind {
	case ast.KindAssignment, ast.KindFunction:
		if err := f.settle(st); err != nil {
			return nil, f.ctx.Fail(err, st)
		}
		seq, err := f.emit(st)
		if err != nil {
			return nil, f.ctx.Fail(err, st)
		}
		return seq, nil

	case ast.KindWhile:
		return f.whileLoop(st)

	case ast.KindIfThenElse:
		return f.ifThenElse(st)

	case ast.KindYield, ast.KindJumpTo, ast.KindLabel:
		return []ast.NodeID{st}, nil
	}

	return nil, f.ctx.Fail(serrors.Invariant(serrors.CodeUnexpectedNode,
		"unexpected %s statement on line %d", n.Kind, n.Line), st)
}

// whileLoop emits the loop initializers followed by the loop itself, with
// its condition and body flattened.
func (f *flattener) whileLoop(w ast.NodeID) ([]ast.NodeID, error) {
	var out []ast.NodeID
	for _, d := range f.tree.TakeDependencies(w) {
		seq, err := f.statement(d)
		if err != nil {
			return nil, err
		}
		out = append(out, seq...)
	}

	children := f.tree.Children(w)
	if len(children) != 2 ||
		f.tree.Kind(children[0]) != ast.KindCondition ||
		f.tree.Kind(children[1]) != ast.KindWhileBody {
		return nil, f.ctx.Fail(serrors.Invariant(serrors.CodeUnexpectedNode,
			"while on line %d needs a condition and a body", f.tree.Node(w).Line), w)
	}
	cond, body := children[0], children[1]

	if err := f.condition(cond); err != nil {
		return nil, err
	}
	if err := f.Statements(body); err != nil {
		return nil, err
	}

	f.tree.Node(w).Identifier = f.ctx.UniqueName("while")
	f.tree.Node(cond).Identifier = f.ctx.UniqueName("condition")
	f.tree.Node(body).Identifier = f.ctx.UniqueName("body")

	return append(out, w), nil
}

// ifThenElse rebuilds ite with the children condition, then and else, in
// that order. A missing then block is created empty and marked to be
// skipped by the emitter.
func (f *flattener) ifThenElse(ite ast.NodeID) ([]ast.NodeID, error) {
	line := f.tree.Node(ite).Line
	cond, then, els := ast.NoNode, ast.NoNode, ast.NoNode

	for _, c := range f.tree.TakeChildren(ite) {
		var slot *ast.NodeID
		switch f.tree.Kind(c) {
		case ast.KindCondition:
			slot = &cond
		case ast.KindIfThen:
			slot = &then
		case ast.KindIfElse:
			slot = &els
		}
		if slot == nil || *slot != ast.NoNode {
			return nil, f.ctx.Fail(serrors.Invariant(serrors.CodeUnexpectedNode,
				"unexpected %s in if on line %d", f.tree.Kind(c), line), c)
		}
		*slot = c
	}
	if cond == ast.NoNode {
		return nil, f.ctx.Fail(serrors.Invariant(serrors.CodeUnexpectedNode,
			"if on line %d has no condition", line), ite)
	}
	if then == ast.NoNode {
		then = f.tree.New(ast.KindIfThen)
		f.tree.Node(then).Line = line
		f.tree.Node(then).SkipCompilation = true
	}

	f.tree.AppendChild(ite, cond)
	f.tree.AppendChild(ite, then)
	if els != ast.NoNode {
		f.tree.AppendChild(ite, els)
	}

	if err := f.condition(cond); err != nil {
		return nil, err
	}
	if err := f.Statements(then); err != nil {
		return nil, err
	}
	f.tree.Node(ite).Identifier = f.ctx.UniqueName("if")
	f.tree.Node(cond).Identifier = f.ctx.UniqueName("condition")
	f.tree.Node(then).Identifier = f.ctx.UniqueName("then")
	if els != ast.NoNode {
		if err := f.Statements(els); err != nil {
			return nil, err
		}
		f.tree.Node(els).Identifier = f.ctx.UniqueName("else")
	}

	return []ast.NodeID{ite}, nil
}

// condition flattens cond and parks the pushes it needs in its dependency
// list, in emission order.
func (f *flattener) condition(cond ast.NodeID) error {
	if err := f.settle(cond); err != nil {
		return f.ctx.Fail(err, cond)
	}
	seq, err := f.emit(cond)
	if err != nil {
		return f.ctx.Fail(err, cond)
	}
	for _, p := range seq[:len(seq)-1] {
		f.tree.AppendDependency(cond, p)
	}
	return nil
}
