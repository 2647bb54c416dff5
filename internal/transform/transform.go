// Package transform reduces the control flow of a tree to if and while:
// switch statements become chains of ifs jumping to a shared end label, for
// loops become while loops carrying their initializer as a dependency, and
// compounds wrapping a single compound are collapsed.
package transform

import (
	"github.com/orizon-lang/stackscript/internal/ast"
	"github.com/orizon-lang/stackscript/internal/compilation"
	serrors "github.com/orizon-lang/stackscript/internal/errors"
	"github.com/orizon-lang/stackscript/internal/lexer"
	"github.com/orizon-lang/stackscript/internal/symbols"
)

// Stats counts the rewrites of one run.
type Stats struct {
	Switches  int
	Loops     int
	Collapsed int
}

type transformer struct {
	ctx   *compilation.Context
	tree  *ast.Tree
	vars  *symbols.Table
	stats Stats
}

// Transform desugars every switch and for below the root of ctx.Tree.
func Transform(ctx *compilation.Context) error {
	_, err := Run(ctx)
	return err
}

// Run desugars ctx.Tree and reports what changed.
func Run(ctx *compilation.Context) (Stats, error) {
	t := &transformer{ctx: ctx, tree: ctx.Tree, vars: ctx.Variables}
	if err := t.visit(ctx.Tree.Root()); err != nil {
		return t.stats, err
	}
	ctx.Diagnostics.Tracef("transform: %d switches, %d loops, %d compounds collapsed",
		t.stats.Switches, t.stats.Loops, t.stats.Collapsed)
	return t.stats, nil
}

// visit walks everything owned by id in pre-order. A child slot is read
// again after it was rewritten, so generated nodes are visited too.
func (t *transformer) visit(id ast.NodeID) error {
	for _, d := range t.tree.DependsOn(id) {
		if err := t.visit(d); err != nil {
			return err
		}
	}
	for _, x := range t.tree.Indexers(id) {
		if err := t.visit(x); err != nil {
			return err
		}
	}

	for i := 0; i < t.tree.ChildCount(id); i++ {
		c := t.tree.Child(id, i)

		switch t.tree.Kind(c) {
		case ast.KindSwitch:
			if err := t.switchToIf(c); err != nil {
				return err
			}
			i--
			continue

		case ast.KindFor:
			if err := t.forToWhile(c); err != nil {
				return err
			}
			i--
			continue

		case ast.KindCompound:
			if t.collapse(c) {
				i--
				continue
			}
		}

		if err := t.visit(c); err != nil {
			return err
		}
	}

	return nil
}

// switchToIf replaces sw in its statement list by one if per case followed
// by the default statements and the end label:
//
//	switch (x) (case 1: a = 1; case 2: a = 2; default: a = 3;)
//
// becomes
//
//	if (x = 1) then (a = 1; jump end)
//	if (x = 2) then (a = 2; jump end)
//	a = 3
//	end:
func (t *transformer) switchToIf(sw ast.NodeID) error {
	n := t.tree.Node(sw)
	children := t.tree.Children(sw)
	if len(children) < 2 || t.tree.Kind(children[0]) != ast.KindCondition {
		return t.ctx.Fail(serrors.Invariant(serrors.CodeMalformedSwitch,
			"switch on line %d has no case and no default", n.Line), sw)
	}
	cond, arms := children[0], children[1:]

	var out []ast.NodeID
	label := ""
	for k, arm := range arms {
		last := k == len(arms)-1

		switch t.tree.Kind(arm) {
		case ast.KindCase:
			value := ast.NoNode
			if t.tree.ChildCount(arm) > 0 {
				value = t.tree.Child(arm, 0)
			}
			if value == ast.NoNode || t.tree.Kind(value) != ast.KindCondition {
				return t.ctx.Fail(serrors.Invariant(serrors.CodeMalformedSwitch,
					"case on line %d has no value", t.tree.Node(arm).Line), sw)
			}

			ite := t.tree.New(ast.KindIfThenElse)
			t.tree.Node(ite).Line = t.tree.Node(arm).Line

			test := t.tree.New(ast.KindCondition)
			t.tree.Node(test).Line = t.tree.Node(arm).Line
			t.appendSide(test, cond, true)
			t.tree.AppendChild(test, t.tree.NewOperation(lexer.TokenEquals, t.tree.Node(arm).Line))
			t.appendSide(test, value, false)
			t.tree.AppendChild(ite, test)

			then := t.tree.New(ast.KindIfThen)
			t.tree.Node(then).Line = t.tree.Node(arm).Line
			for _, s := range t.tree.Children(arm)[1:] {
				t.tree.AppendChild(then, s)
			}
			if !last {
				if label == "" {
					label = t.ctx.NewLabel("switch_end")
				}
				jump := t.tree.New(ast.KindJumpTo)
				t.tree.Node(jump).Identifier = label
				t.tree.Node(jump).Line = t.tree.Node(arm).Line
				t.ctx.AddJump(label)
				t.tree.AppendChild(then, jump)
			}
			t.tree.AppendChild(ite, then)
			out = append(out, ite)

		case ast.KindDefault:
			if !last {
				return t.ctx.Fail(serrors.Invariant(serrors.CodeMalformedSwitch,
					"default on line %d is not the last arm", t.tree.Node(arm).Line), sw)
			}
			out = append(out, t.tree.TakeChildren(arm)...)

		default:
			return t.ctx.Fail(serrors.Invariant(serrors.CodeMalformedSwitch,
				"unexpected %s in switch", t.tree.Kind(arm)), sw)
		}
	}

	if label != "" {
		end := t.tree.New(ast.KindLabel)
		t.tree.Node(end).Identifier = label
		t.tree.Node(end).Line = n.Line
		out = append(out, end)
	}

	parent := t.tree.Parent(sw)
	at := t.tree.IndexInParent(sw)
	for k, s := range out {
		t.tree.InsertChild(parent, at+k, s)
	}
	t.releaseVariables(cond)
	t.tree.Detach(sw)

	t.stats.Switches++
	return nil
}

// appendSide appends the value of condition src to dst, wrapped in a
// compound when it is more than one operand. With clone set the value is
// cloned and its variables touched; otherwise it is moved.
func (t *transformer) appendSide(dst, src ast.NodeID, clone bool) {
	children := t.tree.Children(src)
	take := func(id ast.NodeID) ast.NodeID {
		if clone {
			return t.tree.Clone(id, t.vars.Touch)
		}
		return id
	}

	if len(children) == 1 {
		t.tree.AppendChild(dst, take(children[0]))
		return
	}
	group := t.tree.New(ast.KindCompound)
	t.tree.Node(group).Line = t.tree.Node(src).Line
	for _, c := range children {
		t.tree.AppendChild(group, take(c))
	}
	t.tree.AppendChild(dst, group)
}

func (t *transformer) releaseVariables(id ast.NodeID) {
	t.tree.Walk(id, func(c ast.NodeID) bool {
		if v := t.tree.Node(c).Variable; v != nil {
			t.vars.Release(v)
		}
		return true
	})
}

// forToWhile replaces "for (init; cond; iter) (body)" by a while loop on
// cond whose body ends with iter. init becomes the first dependency of the
// loop so it is emitted once, before it.
func (t *transformer) forToWhile(f ast.NodeID) error {
	n := t.tree.Node(f)
	children := t.tree.Children(f)
	if len(children) != 4 ||
		t.tree.Kind(children[1]) != ast.KindCondition ||
		t.tree.Kind(children[3]) != ast.KindWhileBody {
		return t.ctx.Fail(serrors.Invariant(serrors.CodeMalformedFor,
			"for on line %d needs initializer, condition, iterator and body, found %d parts",
			n.Line, len(children)), f)
	}
	initializer, cond, iter, body := children[0], children[1], children[2], children[3]

	w := t.tree.New(ast.KindWhile)
	t.tree.Node(w).Line = n.Line
	t.tree.ReplaceWith(f, w)

	for _, d := range t.tree.TakeDependencies(f) {
		t.tree.AppendDependency(w, d)
	}
	t.tree.AppendDependency(w, initializer)
	t.tree.AppendChild(w, cond)
	t.tree.AppendChild(w, body)
	t.tree.AppendChild(body, iter)

	t.stats.Loops++
	return nil
}

// collapse replaces a compound whose only child is a compound by that child
// and moves its dependencies over. It reports whether it did.
func (t *transformer) collapse(id ast.NodeID) bool {
	if t.tree.ChildCount(id) != 1 || len(t.tree.Indexers(id)) > 0 {
		return false
	}
	inner := t.tree.Child(id, 0)
	if t.tree.Kind(inner) != ast.KindCompound {
		return false
	}

	deps := t.tree.TakeDependencies(id)
	t.tree.ReplaceWith(id, inner)
	for k, d := range deps {
		t.tree.SetDependency(inner, k, d)
	}

	t.stats.Collapsed++
	return true
}
