package parser

import (
	"strconv"

	"github.com/orizon-lang/stackscript/internal/ast"
	"github.com/orizon-lang/stackscript/internal/compilation"
	serrors "github.com/orizon-lang/stackscript/internal/errors"
	"github.com/orizon-lang/stackscript/internal/lexer"
	"github.com/orizon-lang/stackscript/internal/registry"
	"github.com/orizon-lang/stackscript/internal/symbols"
)

// MapIdentifiers binds the subtree at id to the variable table:
//
//   - a numeric literal whose magnitude has a constant opcode uses the opcode;
//     its sign becomes an explicit '-' operation
//   - any other numeric literal uses a constant variable keyed by its signed
//     canonical text
//   - a named constant (pi, inf, ...) uses its opcode
//   - everything else is a variable, created on first use
//
// Every bound variable has its reference count touched. Assignment targets
// that are constants are rejected.
func MapIdentifiers(tree *ast.Tree, id ast.NodeID, vars *symbols.Table) error {
	var params, targets []ast.NodeID
	tree.Walk(id, func(c ast.NodeID) bool {
		switch tree.Kind(c) {
		case ast.KindParameter:
			params = append(params, c)
		case ast.KindAssignment:
			targets = append(targets, c)
		}
		return true
	})

	for _, t := range targets {
		if err := mapTarget(tree, t, vars); err != nil {
			return err
		}
	}
	for _, p := range params {
		if err := mapParameter(tree, p, vars); err != nil {
			return err
		}
	}

	return nil
}

func mapTarget(tree *ast.Tree, id ast.NodeID, vars *symbols.Table) error {
	n := tree.Node(id)
	if n.Variable != nil {
		return nil
	}

	_, named := registry.ConstantByName(n.Identifier)
	if named || lexer.IsNumericLiteral(n.Identifier) {
		name := n.Identifier
		if n.Negated {
			name = "-" + name
		}
		return serrors.Semantic(serrors.CodeConstantTarget, n.Line, "cannot assign to constant '%s'", name)
	}

	v, _ := vars.GetOrCreate(n.Identifier)
	vars.Touch(v)
	n.Variable = v

	return nil
}

func mapParameter(tree *ast.Tree, id ast.NodeID, vars *symbols.Table) error {
	n := tree.Node(id)
	if n.Variable != nil || n.ConstantOp != registry.OpNop {
		return nil
	}

	if lexer.IsNumericLiteral(n.Identifier) {
		magnitude, err := strconv.ParseFloat(n.Identifier, 64)
		if err != nil {
			return serrors.Lexical(serrors.CodeMalformedNumber, n.Line,
				"malformed numeric literal '%s'", n.Identifier)
		}

		n.IsConstant = true
		if op, ok := registry.ConstantByValue(magnitude); ok {
			n.ConstantOp = op
			if n.Negated {
				n.Negated = false
				negate(tree, id)
			}
			return nil
		}

		value := magnitude
		if n.Negated {
			value = -value
		}
		v := vars.GetOrCreateConstant(value)
		vars.Touch(v)
		n.Variable = v
		return nil
	}

	if op, ok := registry.ConstantByName(n.Identifier); ok {
		n.IsConstant = true
		n.ConstantOp = op
		return nil
	}

	v, _ := vars.GetOrCreate(n.Identifier)
	vars.Touch(v)
	n.Variable = v

	if v.VectorSize > 1 && len(tree.Indexers(id)) == 0 {
		if !tree.SetIsVector(id, true, v.VectorSize) {
			return serrors.Semantic(serrors.CodeVectorSize, n.Line,
				"'%s' holds %d elements, which its consumer does not accept", n.Identifier, v.VectorSize)
		}
	}

	return nil
}

// negate puts an explicit '-' in front of id: as a sibling operation when
// id sits in an expression run, inside a new compound when id is a lone
// call argument or vector element.
func negate(tree *ast.Tree, id ast.NodeID) {
	n := tree.Node(id)
	parent := tree.Parent(id)
	minus := tree.NewOperation(lexer.TokenSubstract, n.Line)

	if parent != ast.NoNode && tree.IsChild(id) {
		switch pn := tree.Node(parent); pn.Kind {
		case ast.KindAssignment, ast.KindCondition, ast.KindIndex:
			tree.InsertChild(parent, tree.IndexInParent(id), minus)
			return
		case ast.KindCompound:
			if !pn.IsVector {
				tree.InsertChild(parent, tree.IndexInParent(id), minus)
				return
			}
		}
	}

	if parent == ast.NoNode {
		n.Negated = true
		return
	}
	group := tree.New(ast.KindCompound)
	tree.Node(group).Line = n.Line
	tree.InsertParent(id, group)
	tree.InsertChild(group, 0, minus)
}

// CheckUnresolved looks at every variable read below id that is neither a
// constant nor an input. A variable that is never assigned anywhere is
// created on first use and keeps its initial value, which only rates a
// Warning on its first read. An operand naming a function cannot be bound
// at all and is an error.
func CheckUnresolved(ctx *compilation.Context, id ast.NodeID) error {
	tree := ctx.Tree
	assigned := make(map[*symbols.Variable]bool)
	tree.Walk(id, func(c ast.NodeID) bool {
		n := tree.Node(c)
		if n.Kind == ast.KindAssignment && n.Variable != nil {
			assigned[n.Variable] = true
		}
		return true
	})

	var err error
	warned := make(map[*symbols.Variable]bool)
	tree.Walk(id, func(c ast.NodeID) bool {
		if err != nil {
			return false
		}
		n := tree.Node(c)
		if n.Kind != ast.KindParameter || n.Variable == nil {
			return true
		}
		v := n.Variable
		if v.IsConstant || v.IsInput || assigned[v] {
			return true
		}
		if _, ok := ctx.Registry.Lookup(n.Identifier); ok {
			err = serrors.Semantic(serrors.CodeUnresolved, n.Line,
				"unresolved identifier '%s': a function needs an argument list", n.Identifier)
			return false
		}
		if !warned[v] {
			warned[v] = true
			ctx.Diagnostics.Warningf(n.Line, "identifier '%s' is never assigned", n.Identifier)
		}
		return true
	})

	return err
}
