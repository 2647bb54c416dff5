package flatten

import (
	"github.com/orizon-lang/stackscript/internal/ast"
	serrors "github.com/orizon-lang/stackscript/internal/errors"
	"github.com/orizon-lang/stackscript/internal/registry"
)

// settle flattens id until it reports itself flat, then flattens each child
// still failing the deep test. Both loops are bounded by
// Options.MaxFlattenIterations.
func (f *flattener) settle(id ast.NodeID) error {
	limit := f.ctx.Options.MaxFlattenIterations

	for iteration := 0; !f.isShallowFlat(id); iteration++ {
		if iteration >= limit {
			return &serrors.BoundExceededError{Stage: "flatten", Limit: limit}
		}
		f.flattenNode(id)
	}

	for iteration := 0; ; iteration++ {
		var pending []ast.NodeID
		for _, c := range f.tree.Children(id) {
			if !f.isFlatNode(c) {
				pending = append(pending, c)
			}
		}
		if len(pending) == 0 {
			return nil
		}
		if iteration >= limit {
			return &serrors.BoundExceededError{Stage: "flatten", Limit: limit}
		}
		for _, c := range pending {
			f.flattenNode(c)
		}
	}
}

// isRun reports whether the children of id are an operand/operator run
// rather than call arguments. A bracket index holds a run.
func (f *flattener) isRun(id ast.NodeID) bool {
	n := f.tree.Node(id)
	switch n.Kind {
	case ast.KindAssignment, ast.KindCondition, ast.KindIndex:
		return true
	case ast.KindFunction:
		return n.Function != nil && n.Function.Op == registry.OpPush
	}
	return false
}

// isShallowFlat reports whether the direct children of id need no push.
func (f *flattener) isShallowFlat(id ast.NodeID) bool {
	children := f.tree.Children(id)
	if f.isRun(id) && f.isPushWrapper(id) {
		return false
	}
	if !f.indexersFlat(id) {
		return false
	}
	for _, c := range children {
		if !f.indexersFlat(c) {
			return false
		}
		n := f.tree.Node(c)
		switch {
		case n.IsScalarCompound():
			return false
		case n.IsVectorLiteral():
			if len(children) != 1 || !f.isFlatVector(c) {
				return false
			}
		case n.Kind == ast.KindFunction && !f.isRun(id) && !n.IsPop():
			return false
		}
	}
	return true
}

// isFlatNode reports whether id can be emitted as is: no nested compound
// and no call used as an argument anywhere below it.
func (f *flattener) isFlatNode(id ast.NodeID) bool {
	n := f.tree.Node(id)
	switch {
	case n.Kind == ast.KindOperation:
		return true
	case n.Kind == ast.KindParameter, n.IsPop():
		return f.indexersFlat(id)
	case n.Kind == ast.KindCompound:
		return n.IsVectorLiteral() && f.isFlatVector(id) && f.indexersFlat(id)
	case n.Kind != ast.KindFunction && !f.isRun(id):
		return true
	}

	if !f.isShallowFlat(id) {
		return false
	}
	if f.isRun(id) {
		for _, c := range f.tree.Children(id) {
			if !f.tree.Node(c).IsVectorLiteral() && !f.isFlatNode(c) {
				return false
			}
		}
	}
	return true
}

// isFlatVector reports whether the vector literal id only holds plain
// operands.
func (f *flattener) isFlatVector(id ast.NodeID) bool {
	for _, c := range f.tree.Children(id) {
		n := f.tree.Node(c)
		if n.Kind != ast.KindParameter && !n.IsPop() {
			return false
		}
		if !f.indexersFlat(c) {
			return false
		}
	}
	return true
}

// indexersFlat reports whether every bracket index of id holds a flat run.
func (f *flattener) indexersFlat(id ast.NodeID) bool {
	for _, x := range f.tree.Indexers(id) {
		if f.tree.ChildCount(x) > 0 && !f.isFlatNode(x) {
			return false
		}
	}
	return true
}

// isPushWrapper reports whether id is a push whose single argument is a
// parenthesized run, as in push((a + b)).
func (f *flattener) isPushWrapper(id ast.NodeID) bool {
	n := f.tree.Node(id)
	if n.Kind != ast.KindFunction || !n.IsPush() || f.tree.ChildCount(id) != 1 {
		return false
	}
	only := f.tree.Child(id, 0)
	return f.tree.Node(only).IsScalarCompound() && len(f.tree.Indexers(only)) == 0
}

func (f *flattener) flattenNode(id ast.NodeID) {
	switch {
	case f.isRun(id):
		f.flattenSequence(id)
	case f.tree.Kind(id) == ast.KindFunction:
		f.flattenFunction(id)
	default:
		f.flattenIndexers(id)
	}
}

// flattenIndexers flattens the run of every bracket index of id.
func (f *flattener) flattenIndexers(id ast.NodeID) {
	for _, x := range f.tree.Indexers(id) {
		if f.tree.ChildCount(x) > 0 {
			f.flattenSequence(x)
		}
	}
}

// flattenSequence pushes every nested compound of the run held by holder
// and flattens the calls that appear in it.
func (f *flattener) flattenSequence(holder ast.NodeID) {
	if f.isPushWrapper(holder) {
		only := f.tree.Child(holder, 0)
		for _, c := range f.tree.TakeChildren(only) {
			f.tree.AppendChild(holder, c)
		}
		f.tree.Detach(only)
	}
	f.flattenIndexers(holder)

	children := f.tree.Children(holder)
	for _, c := range children {
		n := f.tree.Node(c)
		slot := c
		switch {
		case n.IsScalarCompound():
			slot = f.pushCompound(c)

		case n.IsVectorLiteral():
			if len(children) != 1 || !f.isFlatVector(c) {
				slot = f.pushVector(c)
			}

		case n.Kind == ast.KindFunction && !n.IsPop():
			f.flattenFunction(c)
		}
		f.flattenIndexers(slot)
	}
}

// flattenFunction makes every argument of fn a plain operand or a pop. A
// vector literal of plain operands passed as the only argument stays.
func (f *flattener) flattenFunction(fn ast.NodeID) {
	n := f.tree.Node(fn)
	if n.IsPop() {
		return
	}
	if f.isRun(fn) {
		f.flattenSequence(fn)
		return
	}
	f.flattenIndexers(fn)

	args := f.tree.Children(fn)
	for _, a := range args {
		an := f.tree.Node(a)
		slot := a
		switch {
		case an.Kind == ast.KindParameter, an.IsPop():

		case an.IsVectorLiteral():
			if len(args) != 1 || !f.isFlatVector(a) {
				slot = f.pushVector(a)
			}

		case an.IsScalarCompound():
			slot = f.pushCompound(a)

		case an.Kind == ast.KindFunction:
			f.flattenFunction(a)
			push := f.tree.NewFunction(f.push, an.Line)
			slot = f.replaceWithPop(a, push)
			f.tree.AppendChild(push, a)
			if an.IsVector {
				f.tree.SetIsVector(slot, true, an.VectorSize)
			}
		}
		f.flattenIndexers(slot)
	}
}

// pushCompound moves the run of the compound id into a new push and puts a
// pop in its slot.
func (f *flattener) pushCompound(id ast.NodeID) ast.NodeID {
	push := f.tree.NewFunction(f.push, f.tree.Node(id).Line)
	for _, c := range f.tree.TakeChildren(id) {
		f.tree.AppendChild(push, c)
	}
	f.flattenSequence(push)
	return f.replaceWithPop(id, push)
}

// pushVector moves the elements of the vector literal id into a new pushv
// and puts a vector pop in its slot.
func (f *flattener) pushVector(id ast.NodeID) ast.NodeID {
	n := f.tree.Node(id)
	pushv := f.tree.NewFunction(f.pushv, n.Line)
	for _, c := range f.tree.TakeChildren(id) {
		f.tree.AppendChild(pushv, c)
	}
	f.flattenFunction(pushv)
	pop := f.replaceWithPop(id, pushv)
	f.tree.SetIsVector(pop, true, n.VectorSize)
	return pop
}

// replaceWithPop puts a pop linked to push in the slot of id. The pop owns
// push until reconstruction and takes over the indexers of id.
func (f *flattener) replaceWithPop(id, push ast.NodeID) ast.NodeID {
	pop := f.tree.NewFunction(f.pop, f.tree.Node(id).Line)
	for _, x := range f.tree.Indexers(id) {
		f.tree.AppendIndexer(pop, x)
	}
	f.tree.ReplaceWith(id, pop)
	f.tree.AppendDependency(pop, push)
	f.tree.Node(pop).LinkedPush = push

	f.stats.Pushes++
	return pop
}

// emit returns the emission order of id: the pushes feeding it, each
// preceded by its own feeders, then id itself. Pops are collected left to
// right, an operand before its bracket indexes and the target indexes of id
// last; pushes are emitted in reverse order of their pops so the leftmost
// pop receives the last pushed value.
func (f *flattener) emit(id ast.NodeID) ([]ast.NodeID, error) {
	pops := f.collectPops(id, nil)
	pops = f.indexerPops(id, pops)

	var out []ast.NodeID
	for k := len(pops) - 1; k >= 0; k-- {
		pop := f.tree.Node(pops[k])
		push := pop.LinkedPush
		f.tree.Detach(push)
		pop.LinkedPush = ast.NoNode

		seq, err := f.emit(push)
		if err != nil {
			return nil, err
		}
		out = append(out, seq...)
	}

	if leftover := f.tree.Find(id, func(n *ast.Node) bool {
		return n.IsPop() && (n.LinkedPush != ast.NoNode || len(f.tree.DependsOn(n.ID())) > 0)
	}); leftover != ast.NoNode {
		return nil, serrors.Invariant(serrors.CodePushPop,
			"pop on line %d is fed by a push that was never scheduled", f.tree.Node(leftover).Line)
	}

	return append(out, id), nil
}

// collectPops appends the linked pops found below the children of id. Pushes
// hang off pops as dependencies, so the walk never enters another statement.
func (f *flattener) collectPops(id ast.NodeID, pops []ast.NodeID) []ast.NodeID {
	for _, c := range f.tree.Children(id) {
		if f.linked(c) {
			pops = append(pops, c)
		} else {
			pops = f.collectPops(c, pops)
		}
		pops = f.indexerPops(c, pops)
	}
	return pops
}

func (f *flattener) indexerPops(id ast.NodeID, pops []ast.NodeID) []ast.NodeID {
	for _, x := range f.tree.Indexers(id) {
		pops = f.collectPops(x, pops)
	}
	return pops
}

func (f *flattener) linked(id ast.NodeID) bool {
	n := f.tree.Node(id)
	return n.IsPop() && n.LinkedPush != ast.NoNode
}
