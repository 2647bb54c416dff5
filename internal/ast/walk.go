package ast

import (
	"fmt"

	"github.com/orizon-lang/stackscript/internal/symbols"
)

// Walk visits id and everything it owns in pre-order: the node, its
// dependencies, its indexers, then its children. Returning false from fn
// skips whatever the node owns.
func (t *Tree) Walk(id NodeID, fn func(id NodeID) bool) {
	if !fn(id) {
		return
	}
	n := t.Node(id)
	for _, d := range clone(n.depends) {
		t.Walk(d, fn)
	}
	for _, x := range clone(n.indexers) {
		t.Walk(x, fn)
	}
	for _, c := range clone(n.children) {
		t.Walk(c, fn)
	}
}

// Clone deep copies the subtree at id inside the same arena and returns the
// detached copy. onVariable, when not nil, is called for every bound
// variable of the copy so the caller can account for the new references.
func (t *Tree) Clone(id NodeID, onVariable func(v *symbols.Variable)) NodeID {
	return t.copyFrom(t, id, onVariable)
}

// Graft copies the subtree at id of src into t and returns the detached
// copy. Parser workers build statements in private arenas and graft them
// into the shared tree in source order.
func (t *Tree) Graft(src *Tree, id NodeID) NodeID {
	return t.copyFrom(src, id, nil)
}

func (t *Tree) copyFrom(src *Tree, id NodeID, onVariable func(v *symbols.Variable)) NodeID {
	s := src.Node(id)
	payload := *s

	out := t.New(s.Kind)
	n := t.Node(out)
	n.Identifier = payload.Identifier
	n.Function = payload.Function
	n.Token = payload.Token
	n.Variable = payload.Variable
	n.Negated = payload.Negated
	n.Line = payload.Line
	n.IsConstant = payload.IsConstant
	n.ConstantOp = payload.ConstantOp
	n.IsVector = payload.IsVector
	n.VectorSize = payload.VectorSize
	n.SkipCompilation = payload.SkipCompilation

	if n.Variable != nil && onVariable != nil {
		onVariable(n.Variable)
	}

	for _, d := range clone(payload.depends) {
		t.AppendDependency(out, t.copyFrom(src, d, onVariable))
	}
	for _, x := range clone(payload.indexers) {
		t.AppendIndexer(out, t.copyFrom(src, x, onVariable))
	}
	for _, c := range clone(payload.children) {
		t.AppendChild(out, t.copyFrom(src, c, onVariable))
	}

	return out
}

// Validate checks the ownership invariant for everything reachable from the
// root: each node is held by exactly one list, and that list belongs to the
// node its parent field names.
func (t *Tree) Validate() error {
	seen := make(map[NodeID]bool)
	var check func(owner NodeID, rel relation, id NodeID) error
	check = func(owner NodeID, rel relation, id NodeID) error {
		if seen[id] {
			return fmt.Errorf("node %d (%s) is owned more than once", id, t.Node(id))
		}
		seen[id] = true

		n := t.Node(id)
		if n.parent != owner {
			return fmt.Errorf("node %d (%s) names parent %d but is held by %d", id, n, n.parent, owner)
		}
		if owner != NoNode && n.rel != rel {
			return fmt.Errorf("node %d (%s) is held in the wrong list of %d", id, n, owner)
		}

		for _, d := range n.depends {
			if err := check(id, relDependency, d); err != nil {
				return err
			}
		}
		for _, x := range n.indexers {
			if err := check(id, relIndexer, x); err != nil {
				return err
			}
		}
		for _, c := range n.children {
			if err := check(id, relChild, c); err != nil {
				return err
			}
		}
		return nil
	}

	return check(NoNode, relDetached, t.root)
}

// Find returns the first node below id (id included) for which match is
// true, in Walk order.
func (t *Tree) Find(id NodeID, match func(n *Node) bool) NodeID {
	found := NoNode
	t.Walk(id, func(c NodeID) bool {
		if found != NoNode {
			return false
		}
		if match(t.Node(c)) {
			found = c
			return false
		}
		return true
	})
	return found
}

// Count returns the number of nodes below id (id included) for which match
// is true.
func (t *Tree) Count(id NodeID, match func(n *Node) bool) int {
	count := 0
	t.Walk(id, func(c NodeID) bool {
		if match(t.Node(c)) {
			count++
		}
		return true
	})
	return count
}
