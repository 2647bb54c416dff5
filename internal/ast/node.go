// Package ast is the mutable tree intermediate representation shared by the
// parser and every rewriting pass.
//
// Nodes live in a Tree arena and are addressed by NodeID handles. Structural
// relations (parent, children, dependencies, indexers) are private and only
// change through Tree methods, each of which detaches a node from its current
// owner before attaching it elsewhere. A node is therefore always held by at
// most one list.
package ast

import (
	"fmt"

	"github.com/orizon-lang/stackscript/internal/lexer"
	"github.com/orizon-lang/stackscript/internal/registry"
	"github.com/orizon-lang/stackscript/internal/symbols"
)

// NodeID is a handle into a Tree arena.
type NodeID int32

// NoNode is the absent handle.
const NoNode NodeID = -1

// Kind is the tag of a node.
type Kind int

const (
	KindNone Kind = iota
	KindRoot
	KindFunction
	KindAssignment
	KindParameter
	KindIndex
	KindOperation
	KindCompound
	KindYield
	KindIfThenElse
	KindIfThen
	KindIfElse
	KindCondition
	KindWhile
	KindWhileBody
	KindSwitch
	KindCase
	KindDefault
	KindFor
	KindJumpTo
	KindLabel
)

var kindNames = [...]string{
	KindNone:       "none",
	KindRoot:       "root",
	KindFunction:   "function",
	KindAssignment: "assignment",
	KindParameter:  "parameter",
	KindIndex:      "index",
	KindOperation:  "operation",
	KindCompound:   "compound",
	KindYield:      "yield",
	KindIfThenElse: "if_then_else",
	KindIfThen:     "if_then",
	KindIfElse:     "if_else",
	KindCondition:  "condition",
	KindWhile:      "while",
	KindWhileBody:  "while_body",
	KindSwitch:     "switch",
	KindCase:       "case",
	KindDefault:    "default",
	KindFor:        "for",
	KindJumpTo:     "jump_to",
	KindLabel:      "label",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsStatementList reports whether nodes of kind k hold a list of statements
// as their children.
func (k Kind) IsStatementList() bool {
	switch k {
	case KindRoot, KindIfThen, KindIfElse, KindWhileBody, KindCase, KindDefault:
		return true
	}
	return false
}

// relation says which list of its parent holds a node.
type relation uint8

const (
	relDetached relation = iota
	relChild
	relDependency
	relIndexer
)

// Node is one tree node. Exported fields are payload and may be set freely;
// which of them are meaningful depends on Kind:
//
//	function    Function, Identifier (lowercase name)
//	assignment  Identifier, Variable (target); Indexers for the target chain
//	parameter   Identifier, Negated, Variable or ConstantOp
//	index       Identifier for ".x", children for "[expr]"
//	operation   Token
//	jump_to     Identifier (label)
//	label       Identifier
type Node struct {
	Kind       Kind
	Identifier string
	Function   *registry.Function
	Token      lexer.TokenType
	Variable   *symbols.Variable
	Negated    bool
	Line       int

	IsConstant      bool
	ConstantOp      registry.Op
	IsVector        bool
	VectorSize      int
	SkipCompilation bool

	// LinkedPush pairs a pop with the push producing its value while
	// flattening. It is NoNode outside of that stage.
	LinkedPush NodeID

	id       NodeID
	parent   NodeID
	rel      relation
	children []NodeID
	depends  []NodeID
	indexers []NodeID
}

// ID returns the handle of n.
func (n *Node) ID() NodeID { return n.id }

// IsOperand reports whether n yields a value inside an expression sequence.
func (n *Node) IsOperand() bool {
	switch n.Kind {
	case KindParameter, KindFunction, KindCompound:
		return true
	}
	return false
}

// IsOperation reports whether n is an operator of the given token type.
func (n *Node) IsOperation(tt lexer.TokenType) bool {
	return n.Kind == KindOperation && n.Token == tt
}

// IsPush reports whether n calls one of the push variants.
func (n *Node) IsPush() bool {
	return n.Kind == KindFunction && n.Function.IsPush()
}

// IsPop reports whether n is a pop marker.
func (n *Node) IsPop() bool {
	return n.Kind == KindFunction && n.Function.IsPop()
}

// IsScalarCompound reports whether n is a parenthesized run rather than a
// vector literal.
func (n *Node) IsScalarCompound() bool {
	return n.Kind == KindCompound && !n.IsVector
}

// IsVectorLiteral reports whether n is a vector literal compound.
func (n *Node) IsVectorLiteral() bool {
	return n.Kind == KindCompound && n.IsVector
}

// ConstantValue returns the value of a constant parameter, honouring its sign.
func (n *Node) ConstantValue() (float64, bool) {
	if !n.IsConstant {
		return 0, false
	}
	if n.ConstantOp != registry.OpNop {
		v, ok := registry.ConstantValue(n.ConstantOp)
		if n.Negated {
			v = -v
		}
		return v, ok
	}
	if n.Variable != nil && n.Variable.IsConstant {
		return n.Variable.Value, true
	}
	return 0, false
}

func (n *Node) String() string {
	switch n.Kind {
	case KindOperation:
		return n.Token.Symbol()
	case KindParameter:
		if n.Negated {
			return "-" + n.Identifier
		}
		return n.Identifier
	case KindFunction, KindAssignment, KindJumpTo, KindLabel, KindIndex:
		return fmt.Sprintf("%s %s", n.Kind, n.Identifier)
	}
	return n.Kind.String()
}
