package parser

import (
	serrors "github.com/orizon-lang/stackscript/internal/errors"
	"github.com/orizon-lang/stackscript/internal/lexer"
)

// StatementKind classifies a statement by its leading token.
type StatementKind int

const (
	StatementNone StatementKind = iota
	StatementAssignment
	StatementCall
	StatementIf
	StatementWhile
	StatementFor
	StatementSwitch
	StatementYield
)

var statementKindNames = map[StatementKind]string{
	StatementNone:       "none",
	StatementAssignment: "assignment",
	StatementCall:       "call",
	StatementIf:         "if",
	StatementWhile:      "while",
	StatementFor:        "for",
	StatementSwitch:     "switch",
	StatementYield:      "yield",
}

func (k StatementKind) String() string {
	return statementKindNames[k]
}

// Statement is the token range [Start, End) of one statement. Next is the
// index following the statement and its terminator.
type Statement struct {
	Kind  StatementKind
	Start int
	End   int
	Next  int
}

// FindNextStatement classifies the statement starting at or after start and
// locates its end. Parenthesized groups are skipped as a whole, so a ';' or
// keyword nested inside them never ends the statement. Kind is
// StatementNone when only separators remain.
func FindNextStatement(tokens []lexer.Token, start int) (Statement, error) {
	for start < len(tokens) && tokens[start].Type == lexer.TokenDotComma {
		start++
	}
	if start >= len(tokens) {
		return Statement{Kind: StatementNone, Start: start, End: start, Next: start}, nil
	}

	tok := tokens[start]
	switch tok.Type {
	case lexer.TokenIdentifier:
		return findSimpleStatement(tokens, start)

	case lexer.TokenYield:
		if start+1 >= len(tokens) || tokens[start+1].Type != lexer.TokenDotComma {
			return Statement{}, serrors.Syntax(serrors.CodeMalformedStatement, tok.Pos.Line,
				"expected ';' after yield")
		}
		return Statement{Kind: StatementYield, Start: start, End: start + 1, Next: start + 2}, nil

	case lexer.TokenIf:
		return findBlockStatement(tokens, start, StatementIf)
	case lexer.TokenWhile:
		return findBlockStatement(tokens, start, StatementWhile)
	case lexer.TokenFor:
		return findBlockStatement(tokens, start, StatementFor)
	case lexer.TokenSwitch:
		return findBlockStatement(tokens, start, StatementSwitch)

	case lexer.TokenCloseParenthesis, lexer.TokenCloseBracket:
		return Statement{}, serrors.Syntax(serrors.CodeUnbalanced, tok.Pos.Line,
			"unbalanced '%s'", tok.Type.Symbol())
	}

	return Statement{}, serrors.Syntax(serrors.CodeMalformedStatement, tok.Pos.Line,
		"a statement cannot start with '%s'", tok.Type.Symbol())
}

// findSimpleStatement scans an assignment or a bare call up to its ';'.
func findSimpleStatement(tokens []lexer.Token, start int) (Statement, error) {
	kind := StatementAssignment
	if start+1 < len(tokens) && tokens[start+1].Type == lexer.TokenOpenParenthesis {
		kind = StatementCall
	}

	depth := 0
	for i := start; i < len(tokens); i++ {
		switch tokens[i].Type {
		case lexer.TokenOpenParenthesis, lexer.TokenOpenBracket:
			depth++
		case lexer.TokenCloseParenthesis, lexer.TokenCloseBracket:
			depth--
			if depth < 0 {
				return Statement{}, serrors.Syntax(serrors.CodeUnbalanced, tokens[i].Pos.Line,
					"unbalanced '%s'", tokens[i].Type.Symbol())
			}
		case lexer.TokenDotComma:
			if depth == 0 {
				return Statement{Kind: kind, Start: start, End: i, Next: i + 1}, nil
			}
		}
	}

	if depth > 0 {
		return Statement{}, serrors.Syntax(serrors.CodeUnbalanced, tokens[start].Pos.Line,
			"unbalanced parentheses in statement starting with '%s'", tokens[start].Literal)
	}
	return Statement{}, serrors.Syntax(serrors.CodeMalformedStatement, tokens[len(tokens)-1].Pos.Line,
		"missing ';' after statement starting with '%s'", tokens[start].Literal)
}

// findBlockStatement scans a keyword followed by its parenthesized groups:
//
//	if (c) then (..) else (..)
//	while (c) (..)
//	for (i; c; n) (..)
//	switch (e) (..)
func findBlockStatement(tokens []lexer.Token, start int, kind StatementKind) (Statement, error) {
	keyword := tokens[start].Type.Symbol()
	line := tokens[start].Pos.Line

	i, err := expectGroup(tokens, start+1, line, "after "+keyword)
	if err != nil {
		return Statement{}, err
	}

	if kind == StatementIf {
		blocks := 0
		for i < len(tokens) && (tokens[i].Type == lexer.TokenThen || tokens[i].Type == lexer.TokenElse) {
			i, err = expectGroup(tokens, i+1, tokens[i].Pos.Line, "after "+tokens[i].Type.Symbol())
			if err != nil {
				return Statement{}, err
			}
			blocks++
		}
		if blocks == 0 {
			return Statement{}, serrors.Syntax(serrors.CodeMalformedStatement, line,
				"if requires a then and/or else block")
		}
	} else {
		i, err = expectGroup(tokens, i, line, "as "+keyword+" body")
		if err != nil {
			return Statement{}, err
		}
	}

	next := i
	if next < len(tokens) && tokens[next].Type == lexer.TokenDotComma {
		next++
	}
	return Statement{Kind: kind, Start: start, End: i, Next: next}, nil
}

// expectGroup checks that a parenthesized group starts at i and returns the
// index following its closing parenthesis.
func expectGroup(tokens []lexer.Token, i, line int, where string) (int, error) {
	if i >= len(tokens) || tokens[i].Type != lexer.TokenOpenParenthesis {
		if i < len(tokens) {
			line = tokens[i].Pos.Line
		}
		return 0, serrors.Syntax(serrors.CodeMalformedStatement, line, "expected '(' %s", where)
	}
	closing, err := matching(tokens, i)
	if err != nil {
		return 0, err
	}
	return closing + 1, nil
}

// matching returns the index of the bracket closing the one at i.
func matching(tokens []lexer.Token, i int) (int, error) {
	var stack []lexer.TokenType
	for j := i; j < len(tokens); j++ {
		switch tokens[j].Type {
		case lexer.TokenOpenParenthesis:
			stack = append(stack, lexer.TokenCloseParenthesis)
		case lexer.TokenOpenBracket:
			stack = append(stack, lexer.TokenCloseBracket)
		case lexer.TokenCloseParenthesis, lexer.TokenCloseBracket:
			if len(stack) == 0 || stack[len(stack)-1] != tokens[j].Type {
				return 0, serrors.Syntax(serrors.CodeUnbalanced, tokens[j].Pos.Line,
					"unbalanced '%s'", tokens[j].Type.Symbol())
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return j, nil
			}
		}
	}
	return 0, serrors.Syntax(serrors.CodeUnbalanced, tokens[i].Pos.Line,
		"'%s' is never closed", tokens[i].Type.Symbol())
}

// splitTopLevel splits tokens at every sep outside brackets.
func splitTopLevel(tokens []lexer.Token, sep lexer.TokenType) [][]lexer.Token {
	var parts [][]lexer.Token
	depth, from := 0, 0
	for i, tok := range tokens {
		switch tok.Type {
		case lexer.TokenOpenParenthesis, lexer.TokenOpenBracket:
			depth++
		case lexer.TokenCloseParenthesis, lexer.TokenCloseBracket:
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, tokens[from:i])
				from = i + 1
			}
		}
	}
	return append(parts, tokens[from:])
}

// indexTopLevel returns the first index of tt outside brackets, or -1.
func indexTopLevel(tokens []lexer.Token, tt lexer.TokenType) int {
	depth := 0
	for i, tok := range tokens {
		switch tok.Type {
		case lexer.TokenOpenParenthesis, lexer.TokenOpenBracket:
			depth++
		case lexer.TokenCloseParenthesis, lexer.TokenCloseBracket:
			depth--
		case tt:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// FindStatements splits a token list into its top level statements.
func FindStatements(tokens []lexer.Token) ([]Statement, error) {
	var out []Statement
	for i := 0; i < len(tokens); {
		st, err := FindNextStatement(tokens, i)
		if err != nil {
			return nil, err
		}
		if st.Kind == StatementNone {
			break
		}
		out = append(out, st)
		i = st.Next
	}
	return out, nil
}
