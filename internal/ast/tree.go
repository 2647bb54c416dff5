package ast

import (
	"fmt"

	"github.com/orizon-lang/stackscript/internal/lexer"
	"github.com/orizon-lang/stackscript/internal/registry"
)

const (
	chunkBits = 7
	chunkSize = 1 << chunkBits
	chunkMask = chunkSize - 1
)

// Tree is an arena of nodes. Nodes are stored in fixed size chunks so a
// *Node obtained from Node stays valid while the arena grows. Detached nodes
// are never reclaimed; a tree lives for one compilation.
type Tree struct {
	chunks [][]Node
	count  int
	root   NodeID
}

// NewTree creates an arena holding a single root node.
func NewTree() *Tree {
	t := &Tree{}
	t.root = t.New(KindRoot)
	return t
}

// Root returns the root handle.
func (t *Tree) Root() NodeID {
	return t.root
}

// Len returns the number of nodes ever allocated, detached ones included.
func (t *Tree) Len() int {
	return t.count
}

// New allocates a detached node of the given kind.
func (t *Tree) New(kind Kind) NodeID {
	if t.count&chunkMask == 0 {
		t.chunks = append(t.chunks, make([]Node, chunkSize))
	}
	id := NodeID(t.count)
	t.count++

	n := t.Node(id)
	n.Kind = kind
	n.id = id
	n.parent = NoNode
	n.LinkedPush = NoNode

	return id
}

// NewOperation allocates a detached operator node.
func (t *Tree) NewOperation(tt lexer.TokenType, line int) NodeID {
	id := t.New(KindOperation)
	n := t.Node(id)
	n.Token = tt
	n.Line = line
	return id
}

// NewFunction allocates a detached call of f.
func (t *Tree) NewFunction(f *registry.Function, line int) NodeID {
	id := t.New(KindFunction)
	n := t.Node(id)
	n.Function = f
	n.Identifier = f.Name
	n.Line = line
	if f.ReturnsVectorSize > 1 {
		n.IsVector = true
		n.VectorSize = f.ReturnsVectorSize
	}
	return id
}

// Node returns the node addressed by id. It panics on NoNode or a handle
// from another arena.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= t.count {
		panic(fmt.Sprintf("ast: invalid node handle %d (arena holds %d)", id, t.count))
	}
	return &t.chunks[id>>chunkBits][id&chunkMask]
}

// Kind returns the kind of id.
func (t *Tree) Kind(id NodeID) Kind {
	return t.Node(id).Kind
}

// Parent returns the owner of id, NoNode for the root and detached nodes.
func (t *Tree) Parent(id NodeID) NodeID {
	return t.Node(id).parent
}

// Children returns a copy of the child list of id.
func (t *Tree) Children(id NodeID) []NodeID {
	return clone(t.Node(id).children)
}

// Child returns the i-th child of id.
func (t *Tree) Child(id NodeID, i int) NodeID {
	return t.Node(id).children[i]
}

// ChildCount returns the number of children of id.
func (t *Tree) ChildCount(id NodeID) int {
	return len(t.Node(id).children)
}

// DependsOn returns a copy of the dependency list of id.
func (t *Tree) DependsOn(id NodeID) []NodeID {
	return clone(t.Node(id).depends)
}

// Indexers returns a copy of the indexer chain of id.
func (t *Tree) Indexers(id NodeID) []NodeID {
	return clone(t.Node(id).indexers)
}

// IsChild reports whether id is held in its parent's child list.
func (t *Tree) IsChild(id NodeID) bool {
	return t.Node(id).rel == relChild
}

// IndexInParent returns the position of id in whichever list of its parent
// holds it, -1 when detached.
func (t *Tree) IndexInParent(id NodeID) int {
	n := t.Node(id)
	if n.parent == NoNode {
		return -1
	}
	list := t.list(n.parent, n.rel)
	for i, c := range *list {
		if c == id {
			return i
		}
	}
	panic(fmt.Sprintf("ast: node %d not found in its parent %d", id, n.parent))
}

func (t *Tree) list(owner NodeID, rel relation) *[]NodeID {
	o := t.Node(owner)
	switch rel {
	case relChild:
		return &o.children
	case relDependency:
		return &o.depends
	case relIndexer:
		return &o.indexers
	}
	panic("ast: detached node has no owning list")
}

// Detach removes id from its owner. Detaching a detached node is a no-op.
func (t *Tree) Detach(id NodeID) {
	n := t.Node(id)
	if n.parent == NoNode {
		return
	}
	list := t.list(n.parent, n.rel)
	for i, c := range *list {
		if c == id {
			*list = append((*list)[:i], (*list)[i+1:]...)
			break
		}
	}
	n.parent = NoNode
	n.rel = relDetached
}

// attach inserts id into the rel list of owner at index, detaching it first.
func (t *Tree) attach(owner NodeID, rel relation, index int, id NodeID) {
	if id == t.root {
		panic("ast: the root cannot be attached")
	}
	for p := owner; p != NoNode; p = t.Node(p).parent {
		if p == id {
			panic(fmt.Sprintf("ast: attaching node %d below itself", id))
		}
	}
	t.Detach(id)

	list := t.list(owner, rel)
	if index < 0 || index > len(*list) {
		panic(fmt.Sprintf("ast: index %d out of range [0,%d]", index, len(*list)))
	}
	*list = append(*list, NoNode)
	copy((*list)[index+1:], (*list)[index:])
	(*list)[index] = id

	n := t.Node(id)
	n.parent = owner
	n.rel = rel
}

// AppendChild makes child the last child of parent.
func (t *Tree) AppendChild(parent, child NodeID) {
	t.attach(parent, relChild, len(t.Node(parent).children), child)
}

// InsertChild makes child the i-th child of parent. The index is taken
// after child has been detached from its current owner.
func (t *Tree) InsertChild(parent NodeID, i int, child NodeID) {
	t.attach(parent, relChild, i, child)
}

// SetChild replaces the i-th child of parent with child and returns the
// detached previous occupant.
func (t *Tree) SetChild(parent NodeID, i int, child NodeID) NodeID {
	old := t.Node(parent).children[i]
	if old == child {
		return old
	}
	t.ReplaceWith(old, child)
	return old
}

// ReplaceWith puts replacement in the slot held by id, whichever list that
// is, and leaves id detached.
func (t *Tree) ReplaceWith(id, replacement NodeID) {
	if id == replacement {
		return
	}
	t.Detach(replacement)
	n := t.Node(id)
	parent, rel := n.parent, n.rel
	if parent == NoNode {
		panic(fmt.Sprintf("ast: replacing detached node %d", id))
	}
	idx := t.IndexInParent(id)
	t.Detach(id)
	t.attach(parent, rel, idx, replacement)
}

// InsertParent puts newParent in the slot held by id and makes id its last
// child.
func (t *Tree) InsertParent(id, newParent NodeID) {
	t.Detach(newParent)
	t.ReplaceWith(id, newParent)
	t.AppendChild(newParent, id)
}

// AppendDependency makes dep the last dependency of owner.
func (t *Tree) AppendDependency(owner, dep NodeID) {
	t.attach(owner, relDependency, len(t.Node(owner).depends), dep)
}

// SetDependency inserts dep at position i of the dependency list of owner;
// i may equal the current length to append.
func (t *Tree) SetDependency(owner NodeID, i int, dep NodeID) {
	t.attach(owner, relDependency, i, dep)
}

// TakeDependencies detaches and returns every dependency of owner.
func (t *Tree) TakeDependencies(owner NodeID) []NodeID {
	deps := t.DependsOn(owner)
	for _, d := range deps {
		t.Detach(d)
	}
	return deps
}

// TakeChildren detaches and returns every child of owner.
func (t *Tree) TakeChildren(owner NodeID) []NodeID {
	children := t.Children(owner)
	for _, c := range children {
		t.Detach(c)
	}
	return children
}

// AppendIndexer appends idx to the indexer chain of owner.
func (t *Tree) AppendIndexer(owner, idx NodeID) {
	t.attach(owner, relIndexer, len(t.Node(owner).indexers), idx)
}

// SetIsVector marks id as a vector of the given size (or as scalar). It
// refuses, returning false and leaving the node untouched, when the size
// contradicts the function contract of id itself or of the function that
// takes id as an argument. A size of 0 means unknown.
func (t *Tree) SetIsVector(id NodeID, isVector bool, size int) bool {
	n := t.Node(id)
	if !isVector {
		size = 1
	}

	if n.Kind == KindFunction && n.Function != nil {
		if r := n.Function.ReturnsVectorSize; r != 0 && size != 0 && r != size {
			return false
		}
	}
	if n.parent != NoNode && n.rel == relChild {
		p := t.Node(n.parent)
		if p.Kind == KindFunction && p.Function != nil {
			if a := p.Function.AcceptsVectorSize; a != 0 && size != 0 && a != size {
				return false
			}
		}
	}

	n.IsVector = isVector
	n.VectorSize = size
	return true
}

func clone(ids []NodeID) []NodeID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]NodeID, len(ids))
	copy(out, ids)
	return out
}
