package analysis

import (
	"math"

	"github.com/orizon-lang/stackscript/internal/ast"
	"github.com/orizon-lang/stackscript/internal/lexer"
	"github.com/orizon-lang/stackscript/internal/registry"
	"github.com/orizon-lang/stackscript/internal/symbols"
)

// regroup wraps every run of multiplications and divisions that follows an
// addition or subtraction in its own compound, so a strict left to right
// evaluation honours precedence. Relational and boolean operators end the
// scan: they bind loosest and their operands are left alone.
type regroup struct{}

func (regroup) Name() string { return "regroup" }

func (regroup) Apply(a *Analyzer, seq ast.NodeID) (int, error) {
	changes := 0
	children := a.tree.Children(seq)
	additive := false

	for i := 0; i < len(children); i++ {
		n := a.tree.Node(children[i])
		if n.Kind != ast.KindOperation {
			continue
		}
		if n.Token.IsRelationalOrBoolean() {
			return changes, nil
		}
		if a.isUnary(children, i) {
			continue
		}
		if n.Token.IsAdditive() {
			additive = true
			continue
		}
		if !n.Token.IsMultiplicative() || !additive {
			continue
		}

		start := i - 1
		for start > 0 && a.isUnaryMinus(children, start-1) {
			start--
		}
		end := i - 1
		for j := i; j < len(children) && a.isMultiplicative(children[j]); {
			k := j + 1
			for k < len(children) && a.tree.Node(children[k]).IsOperation(lexer.TokenSubstract) {
				k++
			}
			if k >= len(children) {
				break
			}
			end = k
			j = k + 1
		}

		if start == 0 && end == len(children)-1 {
			continue
		}

		group := a.tree.New(ast.KindCompound)
		a.tree.Node(group).Line = n.Line
		a.tree.InsertChild(seq, start, group)
		for _, c := range children[start : end+1] {
			a.tree.AppendChild(group, c)
		}
		changes++

		children = a.tree.Children(seq)
		i = start
	}

	return changes, nil
}

func (a *Analyzer) isUnaryMinus(children []ast.NodeID, i int) bool {
	return a.tree.Node(children[i]).IsOperation(lexer.TokenSubstract) && a.isUnary(children, i)
}

func (a *Analyzer) isMultiplicative(id ast.NodeID) bool {
	n := a.tree.Node(id)
	return n.Kind == ast.KindOperation && n.Token.IsMultiplicative()
}

// merge splices nested compounds into their run when both use the same
// single operator, and unwraps an assignment whose whole value is one
// compound. For - and / only a leading compound may be spliced; a compound
// holding a single operand is always spliced.
type merge struct{}

func (merge) Name() string { return "merge" }

func (merge) Apply(a *Analyzer, seq ast.NodeID) (int, error) {
	changes := 0

	if a.tree.Kind(seq) == ast.KindAssignment && a.tree.ChildCount(seq) == 1 {
		only := a.tree.Child(seq, 0)
		if a.spliceable(only) {
			a.splice(only)
			changes++
		}
	}

	for {
		spliced := false
		op, uniform := a.soleOperator(seq)
		for i, c := range a.tree.Children(seq) {
			if !a.spliceable(c) {
				continue
			}
			if a.tree.ChildCount(c) != 1 {
				if !uniform || !mergeable(op) {
					continue
				}
				if (op == lexer.TokenSubstract || op == lexer.TokenDivide) && i != 0 {
					continue
				}
				if inner, ok := a.soleOperator(c); !ok || inner != op {
					continue
				}
			}
			a.splice(c)
			changes++
			spliced = true
			break
		}
		if !spliced {
			return changes, nil
		}
	}
}

func mergeable(tt lexer.TokenType) bool {
	return tt.IsArithmetic()
}

// spliceable reports whether id is a plain parenthesized run.
func (a *Analyzer) spliceable(id ast.NodeID) bool {
	n := a.tree.Node(id)
	return n.IsScalarCompound() &&
		a.tree.ChildCount(id) > 0 &&
		len(a.tree.DependsOn(id)) == 0 &&
		len(a.tree.Indexers(id)) == 0
}

// soleOperator returns the operator of a run whose operators are all binary
// and all the same. The boolean is false for a run with a prefix operator,
// mixed operators or no operator at all.
func (a *Analyzer) soleOperator(seq ast.NodeID) (lexer.TokenType, bool) {
	children := a.tree.Children(seq)
	op := lexer.TokenNop
	for i, c := range children {
		n := a.tree.Node(c)
		if n.Kind != ast.KindOperation {
			continue
		}
		if a.isUnary(children, i) {
			return lexer.TokenNop, false
		}
		if op == lexer.TokenNop {
			op = n.Token
		} else if op != n.Token {
			return lexer.TokenNop, false
		}
	}
	return op, op != lexer.TokenNop
}

// splice moves the children of id into the slot id holds.
func (a *Analyzer) splice(id ast.NodeID) {
	parent := a.tree.Parent(id)
	at := a.tree.IndexInParent(id)
	for k, c := range a.tree.TakeChildren(id) {
		a.tree.InsertChild(parent, at+k, c)
	}
	a.tree.Detach(id)
}

// reciprocal turns "/ c" into "* 1/c" for every constant operand c. The
// reciprocal uses a constant opcode when one exists, a constant variable
// otherwise. Division by zero is reported and left as written.
type reciprocal struct{}

func (reciprocal) Name() string { return "reciprocal" }

func (reciprocal) Apply(a *Analyzer, seq ast.NodeID) (int, error) {
	changes := 0
	children := a.tree.Children(seq)

	for i := 0; i+1 < len(children); i++ {
		div := a.tree.Node(children[i])
		if !div.IsOperation(lexer.TokenDivide) || a.isUnary(children, i) {
			continue
		}

		j := i + 1
		minus := ast.NoNode
		if a.tree.Node(children[j]).IsOperation(lexer.TokenSubstract) {
			minus = children[j]
			j++
		}
		if j >= len(children) {
			continue
		}

		p := a.tree.Node(children[j])
		if p.Kind != ast.KindParameter || !p.IsConstant || len(a.tree.Indexers(children[j])) > 0 {
			continue
		}
		value, ok := p.ConstantValue()
		if !ok || math.IsNaN(value) {
			continue
		}
		if minus != ast.NoNode {
			value = -value
		}
		if value == 0 {
			if !a.warned[children[j]] {
				a.warned[children[j]] = true
				a.ctx.Diagnostics.Warningf(p.Line, "division by zero")
			}
			continue
		}

		r := 1 / value
		if p.Variable != nil {
			a.vars.Release(p.Variable)
			p.Variable = nil
		}
		if minus != ast.NoNode {
			a.tree.Detach(minus)
		}
		div.Token = lexer.TokenMultiply

		magnitude := math.Abs(r)
		p.Identifier = symbols.FormatConstant(magnitude)
		p.Negated = false
		p.ConstantOp = registry.OpNop
		if op, ok := registry.ConstantByValue(magnitude); ok {
			p.ConstantOp = op
			if r < 0 {
				a.tree.InsertChild(seq, a.tree.IndexInParent(children[j]), a.tree.NewOperation(lexer.TokenSubstract, p.Line))
			}
		} else {
			v := a.vars.GetOrCreateConstant(r)
			a.vars.Touch(v)
			p.Variable = v
			p.Negated = r < 0
		}
		changes++

		children = a.tree.Children(seq)
	}

	return changes, nil
}

// doubleMinus collapses "- -x" and "- c" where c is a negative constant.
// A binary minus becomes a plus; a prefix minus disappears.
type doubleMinus struct{}

func (doubleMinus) Name() string { return "double_minus" }

func (doubleMinus) Apply(a *Analyzer, seq ast.NodeID) (int, error) {
	changes := 0
	children := a.tree.Children(seq)

	for i := 0; i+1 < len(children); i++ {
		n := a.tree.Node(children[i])
		if !n.IsOperation(lexer.TokenSubstract) {
			continue
		}
		binary := !a.isUnary(children, i)
		next := a.tree.Node(children[i+1])

		switch {
		case next.IsOperation(lexer.TokenSubstract):
			a.tree.Detach(children[i+1])
			if binary {
				n.Token = lexer.TokenAdd
			} else {
				a.tree.Detach(children[i])
			}

		case next.Kind == ast.KindParameter && next.IsConstant && next.Negated &&
			next.Variable != nil && len(a.tree.Indexers(children[i+1])) == 0:
			value := -next.Variable.Value
			a.vars.Release(next.Variable)
			v := a.vars.GetOrCreateConstant(value)
			a.vars.Touch(v)
			next.Variable = v
			next.Negated = false
			next.Identifier = symbols.FormatConstant(value)
			if binary {
				n.Token = lexer.TokenAdd
			} else {
				a.tree.Detach(children[i])
			}

		default:
			continue
		}

		changes++
		children = a.tree.Children(seq)
		i = -1
	}

	return changes, nil
}
