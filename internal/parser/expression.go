package parser

import (
	"github.com/orizon-lang/stackscript/internal/ast"
	serrors "github.com/orizon-lang/stackscript/internal/errors"
	"github.com/orizon-lang/stackscript/internal/lexer"
)

// parseSequence appends the operands and operators of tokens to holder as a
// flat, left to right run. No precedence is applied.
func (p *Parser) parseSequence(holder ast.NodeID, tokens []lexer.Token) error {
	for i := 0; i < len(tokens); {
		tok := tokens[i]

		switch {
		case tok.Type.IsOperator():
			p.tree.AppendChild(holder, p.tree.NewOperation(tok.Type, tok.Pos.Line))
			i++

		case tok.Type == lexer.TokenIdentifier:
			id, next, err := p.scanAndParseIdentifier(tokens, i)
			if id != ast.NoNode {
				p.tree.AppendChild(holder, id)
			}
			if err != nil {
				return err
			}
			i = next

		case tok.Type == lexer.TokenOpenParenthesis:
			id, next, err := p.scanAndParseGroup(tokens, i)
			if id != ast.NoNode {
				p.tree.AppendChild(holder, id)
			}
			if err != nil {
				return err
			}
			i = next

		default:
			return serrors.Syntax(serrors.CodeMalformedStatement, tok.Pos.Line,
				"unexpected '%s' in expression", tok.Type.Symbol())
		}
	}

	return p.checkSequence(holder)
}

// checkSequence rejects runs that cannot be an expression: two operands in
// a row, a trailing operator, or a binary operator where an operand is
// expected. Only '-' and '!' may lead a run or follow another operator.
func (p *Parser) checkSequence(holder ast.NodeID) error {
	children := p.tree.Children(holder)
	if len(children) == 0 {
		return serrors.Syntax(serrors.CodeOperatorSequence, p.tree.Node(holder).Line, "empty expression")
	}

	first := p.tree.Node(children[0])
	if first.Kind == ast.KindOperation && !isPrefix(first.Token) {
		return serrors.Syntax(serrors.CodeOperatorSequence, first.Line,
			"expression starts with operator '%s'", first.Token.Symbol())
	}

	last := p.tree.Node(children[len(children)-1])
	if last.Kind == ast.KindOperation {
		return serrors.Syntax(serrors.CodeOperatorSequence, last.Line,
			"expression ends with operator '%s'", last.Token.Symbol())
	}

	for i := 1; i < len(children); i++ {
		prev, cur := p.tree.Node(children[i-1]), p.tree.Node(children[i])
		if prev.Kind == ast.KindOperation && cur.Kind == ast.KindOperation && !isPrefix(cur.Token) {
			return serrors.Syntax(serrors.CodeOperatorSequence, cur.Line,
				"operator '%s' cannot follow '%s'", cur.Token.Symbol(), prev.Token.Symbol())
		}
		if prev.IsOperand() && cur.IsOperand() {
			return serrors.Syntax(serrors.CodeOperatorSequence, cur.Line,
				"missing operator between '%s' and '%s'",
				p.tree.Format(children[i-1]), p.tree.Format(children[i]))
		}
	}

	return nil
}

func isPrefix(tt lexer.TokenType) bool {
	return tt == lexer.TokenSubstract || tt == lexer.TokenNot
}

// scanAndParseIdentifier parses the identifier at i: a call when followed
// by '(', a parameter leaf otherwise, plus any index chain.
func (p *Parser) scanAndParseIdentifier(tokens []lexer.Token, i int) (ast.NodeID, int, error) {
	if i+1 < len(tokens) && tokens[i+1].Type == lexer.TokenOpenParenthesis {
		return p.scanAndParseFunction(tokens, i)
	}

	tok := tokens[i]
	id := p.tree.New(ast.KindParameter)
	n := p.tree.Node(id)
	n.Identifier = tok.Literal
	n.Negated = tok.Negative
	n.Line = tok.Pos.Line

	next, err := p.growIndexChain(id, tokens, i+1)
	return id, next, err
}

// scanAndParseFunction parses "name(arg, ...)" at i. The function is
// resolved immediately so unknown names, arity and target version errors
// are reported here. Each argument becomes one child: the operand itself
// when it is a single operand, a compound otherwise.
func (p *Parser) scanAndParseFunction(tokens []lexer.Token, i int) (ast.NodeID, int, error) {
	tok := tokens[i]

	f, err := p.registry.Resolve(tok.Literal)
	if err != nil {
		return ast.NoNode, 0, serrors.Syntax(serrors.CodeUnknownFunction, tok.Pos.Line, "%v", err)
	}

	id := p.tree.NewFunction(f, tok.Pos.Line)

	closing, err := matching(tokens, i+1)
	if err != nil {
		return id, 0, err
	}

	inner := tokens[i+2 : closing]
	count := 0
	if len(inner) > 0 {
		for _, arg := range splitTopLevel(inner, lexer.TokenComma) {
			if len(arg) == 0 {
				return id, 0, serrors.Syntax(serrors.CodeMalformedStatement, tok.Pos.Line,
					"empty argument in call of %s", f.Name)
			}
			a, err := p.parseOperand(arg, tok.Pos.Line)
			if a != ast.NoNode {
				p.tree.AppendChild(id, a)
			}
			if err != nil {
				return id, 0, err
			}
			count++

			an := p.tree.Node(a)
			if an.IsVector && !p.tree.SetIsVector(a, true, an.VectorSize) {
				return id, 0, serrors.Syntax(serrors.CodeVectorSize, tok.Pos.Line,
					"%s does not accept a vector of %d elements", f.Name, an.VectorSize)
			}
		}
	}

	if count < f.MinParams || count > f.MaxParams {
		if f.MinParams == f.MaxParams {
			return id, 0, serrors.Syntax(serrors.CodeArity, tok.Pos.Line,
				"%s expects %d parameter(s), got %d", f.Name, f.MinParams, count)
		}
		return id, 0, serrors.Syntax(serrors.CodeArity, tok.Pos.Line,
			"%s expects %d to %d parameters, got %d", f.Name, f.MinParams, f.MaxParams, count)
	}

	next, err := p.growIndexChain(id, tokens, closing+1)
	return id, next, err
}

// scanAndParseGroup parses the parenthesized group at i. A group with top
// level commas is a vector literal whose children are its elements.
func (p *Parser) scanAndParseGroup(tokens []lexer.Token, i int) (ast.NodeID, int, error) {
	line := tokens[i].Pos.Line
	closing, err := matching(tokens, i)
	if err != nil {
		return ast.NoNode, 0, err
	}

	inner := tokens[i+1 : closing]
	if len(inner) == 0 {
		return ast.NoNode, 0, serrors.Syntax(serrors.CodeMalformedStatement, line, "empty parentheses")
	}

	id := p.tree.New(ast.KindCompound)
	p.tree.Node(id).Line = line

	parts := splitTopLevel(inner, lexer.TokenComma)
	if len(parts) == 1 {
		if err := p.parseSequence(id, inner); err != nil {
			return id, 0, err
		}
	} else {
		for _, part := range parts {
			if len(part) == 0 {
				return id, 0, serrors.Syntax(serrors.CodeMalformedStatement, line, "empty vector element")
			}
			el, err := p.parseOperand(part, line)
			if el != ast.NoNode {
				p.tree.AppendChild(id, el)
			}
			if err != nil {
				return id, 0, err
			}
		}
		p.tree.SetIsVector(id, true, len(parts))
	}

	next, err := p.growIndexChain(id, tokens, closing+1)
	return id, next, err
}

// parseOperand parses tokens as one value: the operand itself when the
// tokens hold a single operand, a compound around the run otherwise.
func (p *Parser) parseOperand(tokens []lexer.Token, line int) (ast.NodeID, error) {
	group := p.tree.New(ast.KindCompound)
	p.tree.Node(group).Line = line

	if err := p.parseSequence(group, tokens); err != nil {
		return group, err
	}
	if p.tree.ChildCount(group) == 1 {
		only := p.tree.Child(group, 0)
		p.tree.Detach(only)
		return only, nil
	}
	return group, nil
}

// growIndexChain appends ".name" and "[expr]" postfixes starting at i to
// the indexer chain of owner and returns the index after the chain.
func (p *Parser) growIndexChain(owner ast.NodeID, tokens []lexer.Token, i int) (int, error) {
	for i < len(tokens) {
		tok := tokens[i]

		switch tok.Type {
		case lexer.TokenDot:
			if i+1 >= len(tokens) || tokens[i+1].Type != lexer.TokenIdentifier || tokens[i+1].IsNumeric() {
				return i, serrors.Syntax(serrors.CodeMalformedStatement, tok.Pos.Line,
					"expected a field name after '.'")
			}
			idx := p.tree.New(ast.KindIndex)
			p.tree.Node(idx).Identifier = tokens[i+1].Literal
			p.tree.Node(idx).Line = tok.Pos.Line
			p.tree.AppendIndexer(owner, idx)
			i += 2

		case lexer.TokenOpenBracket:
			closing, err := matching(tokens, i)
			if err != nil {
				return i, err
			}
			if closing == i+1 {
				return i, serrors.Syntax(serrors.CodeMalformedStatement, tok.Pos.Line, "empty index")
			}
			idx := p.tree.New(ast.KindIndex)
			p.tree.Node(idx).Line = tok.Pos.Line
			p.tree.AppendIndexer(owner, idx)
			if err := p.parseSequence(idx, tokens[i+1:closing]); err != nil {
				return i, err
			}
			i = closing + 1

		default:
			return i, nil
		}
	}
	return i, nil
}
