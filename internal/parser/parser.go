// Package parser builds the tree of a script from its tokens.
//
// Statements are located by FindNextStatement and built by one builder per
// statement kind. Expressions are kept as flat operand/operator sequences;
// operator precedence is left to the analysis stage. Function names are
// resolved against the registry while parsing, so arity errors surface here.
// After building, MapIdentifiers binds every parameter leaf to a variable or
// a constant opcode.
//
// The parser stops at the first error; there is no recovery.
package parser

import (
	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/stackscript/internal/ast"
	"github.com/orizon-lang/stackscript/internal/compilation"
	serrors "github.com/orizon-lang/stackscript/internal/errors"
	"github.com/orizon-lang/stackscript/internal/lexer"
	"github.com/orizon-lang/stackscript/internal/registry"
)

// Parser builds statement subtrees into one arena.
type Parser struct {
	tree     *ast.Tree
	registry *registry.Registry
}

// New creates a parser writing into tree.
func New(tree *ast.Tree, reg *registry.Registry) *Parser {
	return &Parser{tree: tree, registry: reg}
}

// Parse builds the statements of ctx.Tokens below the root of ctx.Tree and
// binds their identifiers.
func Parse(ctx *compilation.Context) error {
	statements, err := FindStatements(ctx.Tokens)
	if err != nil {
		return ctx.Fail(err, ast.NoNode)
	}
	ctx.Diagnostics.Tracef("parser: %d statements in %d tokens", len(statements), len(ctx.Tokens))

	if ctx.Options.ConcurrentParse && len(statements) > 1 {
		err = parseConcurrent(ctx, statements)
	} else {
		err = parseSequential(ctx, statements)
	}
	if err != nil {
		return err
	}

	if err := CheckUnresolved(ctx, ctx.Tree.Root()); err != nil {
		return ctx.Fail(err, ast.NoNode)
	}
	return nil
}

func parseSequential(ctx *compilation.Context, statements []Statement) error {
	p := New(ctx.Tree, ctx.Registry)
	root := ctx.Tree.Root()

	for _, st := range statements {
		id, err := p.ParseStatement(ctx.Tokens, st)
		if err == nil {
			err = MapIdentifiers(ctx.Tree, id, ctx.Variables)
		}
		if err != nil {
			return ctx.Fail(err, id)
		}
		ctx.Tree.AppendChild(root, id)
	}

	return nil
}

type parsed struct {
	tree *ast.Tree
	id   ast.NodeID
	err  error
}

// parseConcurrent builds every statement in a private arena on its own
// worker, then grafts the results into the shared tree in source order.
// The first failing statement in source order is the one reported.
func parseConcurrent(ctx *compilation.Context, statements []Statement) error {
	results := make([]parsed, len(statements))

	var g errgroup.Group
	g.SetLimit(ctx.Options.Workers)

	for i, st := range statements {
		g.Go(func() error {
			tree := ast.NewTree()
			id, err := New(tree, ctx.Registry).ParseStatement(ctx.Tokens, st)
			if err == nil {
				err = MapIdentifiers(tree, id, ctx.Variables)
			}
			results[i] = parsed{tree: tree, id: id, err: err}
			return err
		})
	}
	// Errors are taken from results so the first one in source order wins.
	_ = g.Wait()

	for _, r := range results {
		if r.err != nil {
			context := ""
			if r.id != ast.NoNode {
				context = r.tree.Format(r.id)
			}
			ctx.Diagnostics.Report(r.err, context)
			return r.err
		}
	}

	root := ctx.Tree.Root()
	for _, r := range results {
		ctx.Tree.AppendChild(root, ctx.Tree.Graft(r.tree, r.id))
	}

	return nil
}

// ParseStatement builds the statement st of tokens. On failure the
// partially built node is returned with the error.
func (p *Parser) ParseStatement(tokens []lexer.Token, st Statement) (ast.NodeID, error) {
	toks := tokens[st.Start:st.End]

	switch st.Kind {
	case StatementAssignment:
		return p.parseAssignment(toks)
	case StatementCall:
		return p.parseCall(toks)
	case StatementIf:
		return p.parseIf(toks)
	case StatementWhile:
		return p.parseWhile(toks)
	case StatementFor:
		return p.parseFor(toks)
	case StatementSwitch:
		return p.parseSwitch(toks)
	case StatementYield:
		id := p.tree.New(ast.KindYield)
		p.tree.Node(id).Line = toks[0].Pos.Line
		return id, nil
	}

	return ast.NoNode, serrors.Syntax(serrors.CodeMalformedStatement, 0, "no statement to parse")
}

// parseStatementList builds every statement of tokens as children of holder.
func (p *Parser) parseStatementList(holder ast.NodeID, tokens []lexer.Token) error {
	for i := 0; i < len(tokens); {
		st, err := FindNextStatement(tokens, i)
		if err != nil {
			return err
		}
		if st.Kind == StatementNone {
			break
		}
		id, err := p.ParseStatement(tokens, st)
		if id != ast.NoNode {
			p.tree.AppendChild(holder, id)
		}
		if err != nil {
			return err
		}
		i = st.Next
	}
	return nil
}

// parseAssignment builds "name[indexers] = expression".
func (p *Parser) parseAssignment(toks []lexer.Token) (ast.NodeID, error) {
	target := toks[0]
	id := p.tree.New(ast.KindAssignment)
	n := p.tree.Node(id)
	n.Identifier = target.Literal
	n.Negated = target.Negative
	n.Line = target.Pos.Line

	i, err := p.growIndexChain(id, toks, 1)
	if err != nil {
		return id, err
	}
	if i >= len(toks) || toks[i].Type != lexer.TokenEquals {
		return id, serrors.Syntax(serrors.CodeMalformedStatement, target.Pos.Line,
			"expected '=' after '%s'", target.Literal)
	}
	if i+1 >= len(toks) {
		return id, serrors.Syntax(serrors.CodeMalformedStatement, target.Pos.Line,
			"missing expression after '%s ='", target.Literal)
	}

	return id, p.parseSequence(id, toks[i+1:])
}

// parseCall builds a bare function call statement.
func (p *Parser) parseCall(toks []lexer.Token) (ast.NodeID, error) {
	id, next, err := p.scanAndParseFunction(toks, 0)
	if err != nil {
		return id, err
	}
	if next != len(toks) {
		return id, serrors.Syntax(serrors.CodeMalformedStatement, toks[next].Pos.Line,
			"unexpected '%s' after call of %s", toks[next].Type.Symbol(), toks[0].Literal)
	}
	return id, nil
}

// parseSimpleStatement builds the initializer or iterator of a for header.
func (p *Parser) parseSimpleStatement(toks []lexer.Token, line int, what string) (ast.NodeID, error) {
	if len(toks) == 0 || toks[0].Type != lexer.TokenIdentifier {
		return ast.NoNode, serrors.Syntax(serrors.CodeMalformedStatement, line,
			"for %s must be an assignment or a call", what)
	}
	if len(toks) > 1 && toks[1].Type == lexer.TokenOpenParenthesis {
		if closing, err := matching(toks, 1); err == nil && closing == len(toks)-1 {
			return p.parseCall(toks)
		}
	}
	return p.parseAssignment(toks)
}

// condition builds a condition node from the tokens of a parenthesized group.
func (p *Parser) condition(toks []lexer.Token, line int) (ast.NodeID, error) {
	id := p.tree.New(ast.KindCondition)
	p.tree.Node(id).Line = line
	if len(toks) == 0 {
		return id, serrors.Syntax(serrors.CodeMalformedStatement, line, "empty condition")
	}
	return id, p.parseSequence(id, toks)
}

// block builds a statement list node of the given kind from the tokens
// between the parentheses starting at open. It returns the index following
// the closing parenthesis.
func (p *Parser) block(owner ast.NodeID, kind ast.Kind, toks []lexer.Token, open int) (int, error) {
	closing, err := matching(toks, open)
	if err != nil {
		return 0, err
	}
	id := p.tree.New(kind)
	p.tree.Node(id).Line = toks[open].Pos.Line
	p.tree.AppendChild(owner, id)

	return closing + 1, p.parseStatementList(id, toks[open+1:closing])
}

// parseIf builds "if (c) then (..) else (..)" with children condition,
// then-block and else-block; one of the blocks may be missing.
func (p *Parser) parseIf(toks []lexer.Token) (ast.NodeID, error) {
	line := toks[0].Pos.Line
	id := p.tree.New(ast.KindIfThenElse)
	p.tree.Node(id).Line = line

	closing, err := matching(toks, 1)
	if err != nil {
		return id, err
	}
	cond, err := p.condition(toks[2:closing], line)
	p.tree.AppendChild(id, cond)
	if err != nil {
		return id, err
	}

	seenThen, seenElse := false, false
	for i := closing + 1; i < len(toks); {
		switch toks[i].Type {
		case lexer.TokenThen:
			if seenThen || seenElse {
				return id, serrors.Syntax(serrors.CodeMalformedStatement, toks[i].Pos.Line,
					"unexpected then block")
			}
			seenThen = true
			i, err = p.block(id, ast.KindIfThen, toks, i+1)
		case lexer.TokenElse:
			if seenElse {
				return id, serrors.Syntax(serrors.CodeMalformedStatement, toks[i].Pos.Line,
					"if has more than one else block")
			}
			seenElse = true
			i, err = p.block(id, ast.KindIfElse, toks, i+1)
		default:
			return id, serrors.Syntax(serrors.CodeMalformedStatement, toks[i].Pos.Line,
				"expected then or else, found '%s'", toks[i].Type.Symbol())
		}
		if err != nil {
			return id, err
		}
	}

	return id, nil
}

// parseWhile builds "while (c) (..)" with children condition and body.
func (p *Parser) parseWhile(toks []lexer.Token) (ast.NodeID, error) {
	line := toks[0].Pos.Line
	id := p.tree.New(ast.KindWhile)
	p.tree.Node(id).Line = line

	closing, err := matching(toks, 1)
	if err != nil {
		return id, err
	}
	cond, err := p.condition(toks[2:closing], line)
	p.tree.AppendChild(id, cond)
	if err != nil {
		return id, err
	}

	_, err = p.block(id, ast.KindWhileBody, toks, closing+1)
	return id, err
}

// parseFor builds "for (init; cond; iter) (..)" with children initializer,
// condition, iterator and body.
func (p *Parser) parseFor(toks []lexer.Token) (ast.NodeID, error) {
	line := toks[0].Pos.Line
	id := p.tree.New(ast.KindFor)
	p.tree.Node(id).Line = line

	closing, err := matching(toks, 1)
	if err != nil {
		return id, err
	}
	parts := splitTopLevel(toks[2:closing], lexer.TokenDotComma)
	if len(parts) != 3 {
		return id, serrors.Syntax(serrors.CodeMalformedStatement, line,
			"for header needs initializer, condition and iterator separated by ';', found %d parts", len(parts))
	}

	initializer, err := p.parseSimpleStatement(parts[0], line, "initializer")
	if initializer != ast.NoNode {
		p.tree.AppendChild(id, initializer)
	}
	if err != nil {
		return id, err
	}

	cond, err := p.condition(parts[1], line)
	p.tree.AppendChild(id, cond)
	if err != nil {
		return id, err
	}

	iter, err := p.parseSimpleStatement(parts[2], line, "iterator")
	if iter != ast.NoNode {
		p.tree.AppendChild(id, iter)
	}
	if err != nil {
		return id, err
	}

	_, err = p.block(id, ast.KindWhileBody, toks, closing+1)
	return id, err
}

// parseSwitch builds "switch (e) ( case v: stmt ... default: stmt )". Each
// case node holds its value condition followed by its statements; the
// default node holds only statements.
func (p *Parser) parseSwitch(toks []lexer.Token) (ast.NodeID, error) {
	line := toks[0].Pos.Line
	id := p.tree.New(ast.KindSwitch)
	p.tree.Node(id).Line = line

	closing, err := matching(toks, 1)
	if err != nil {
		return id, err
	}
	cond, err := p.condition(toks[2:closing], line)
	p.tree.AppendChild(id, cond)
	if err != nil {
		return id, err
	}

	bodyOpen := closing + 1
	bodyClose, err := matching(toks, bodyOpen)
	if err != nil {
		return id, err
	}
	body := toks[bodyOpen+1 : bodyClose]

	arms, hasDefault := 0, false
	for i := 0; i < len(body); {
		tok := body[i]
		if tok.Type == lexer.TokenDotComma {
			i++
			continue
		}
		if hasDefault {
			return id, serrors.Syntax(serrors.CodeMalformedStatement, tok.Pos.Line,
				"default must be the last arm of a switch")
		}

		var arm ast.NodeID
		switch tok.Type {
		case lexer.TokenCase:
			colon := indexTopLevel(body[i:], lexer.TokenColon)
			if colon <= 1 {
				return id, serrors.Syntax(serrors.CodeMalformedStatement, tok.Pos.Line,
					"case requires a value followed by ':'")
			}
			arm = p.tree.New(ast.KindCase)
			p.tree.AppendChild(id, arm)
			value, err := p.condition(body[i+1:i+colon], tok.Pos.Line)
			p.tree.AppendChild(arm, value)
			if err != nil {
				return id, err
			}
			i += colon + 1

		case lexer.TokenDefault:
			if i+1 >= len(body) || body[i+1].Type != lexer.TokenColon {
				return id, serrors.Syntax(serrors.CodeMalformedStatement, tok.Pos.Line,
					"expected ':' after default")
			}
			arm = p.tree.New(ast.KindDefault)
			p.tree.AppendChild(id, arm)
			hasDefault = true
			i += 2

		default:
			return id, serrors.Syntax(serrors.CodeMalformedStatement, tok.Pos.Line,
				"expected case or default in switch, found '%s'", tok.Type.Symbol())
		}
		p.tree.Node(arm).Line = tok.Pos.Line
		arms++

		if i >= len(body) {
			return id, serrors.Syntax(serrors.CodeMalformedStatement, tok.Pos.Line,
				"missing statement after '%s:'", tok.Type.Symbol())
		}
		if body[i].Type == lexer.TokenOpenParenthesis {
			armClose, err := matching(body, i)
			if err != nil {
				return id, err
			}
			if err := p.parseStatementList(arm, body[i+1:armClose]); err != nil {
				return id, err
			}
			i = armClose + 1
			continue
		}

		st, err := FindNextStatement(body, i)
		if err != nil {
			return id, err
		}
		if st.Kind == StatementNone {
			return id, serrors.Syntax(serrors.CodeMalformedStatement, tok.Pos.Line,
				"missing statement after '%s:'", tok.Type.Symbol())
		}
		stmt, err := p.ParseStatement(body, st)
		if stmt != ast.NoNode {
			p.tree.AppendChild(arm, stmt)
		}
		if err != nil {
			return id, err
		}
		i = st.Next
	}

	if arms == 0 {
		return id, serrors.Syntax(serrors.CodeMalformedStatement, line,
			"switch requires at least one case or a default")
	}
	return id, nil
}
