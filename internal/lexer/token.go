package lexer

import (
	"fmt"

	"github.com/orizon-lang/stackscript/internal/position"
)

// TokenType represents the type of a token
type TokenType int

// String returns a string representation of the token type
func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(tt))
}

// Token types
const (
	// TokenNop never appears in a token list; it stands for "start of input"
	// when a token looks at its predecessor.
	TokenNop TokenType = iota

	TokenIdentifier

	// operators
	TokenAdd
	TokenSubstract
	TokenMultiply
	TokenDivide
	TokenEquals
	TokenGreater
	TokenSmaller
	TokenGreaterEquals
	TokenSmallerEquals
	TokenNotEquals
	TokenAnd
	TokenOr
	TokenXor
	TokenNot

	// punctuation
	TokenOpenParenthesis
	TokenCloseParenthesis
	TokenOpenBracket
	TokenCloseBracket
	TokenComma
	TokenDot
	TokenDotComma
	TokenColon

	// keywords
	TokenIf
	TokenThen
	TokenElse
	TokenWhile
	TokenFor
	TokenSwitch
	TokenCase
	TokenDefault
	TokenYield
)

var tokenNames = map[TokenType]string{
	TokenNop:              "Nop",
	TokenIdentifier:       "Identifier",
	TokenAdd:              "Add",
	TokenSubstract:        "Substract",
	TokenMultiply:         "Multiply",
	TokenDivide:           "Divide",
	TokenEquals:           "Equals",
	TokenGreater:          "GreaterThan",
	TokenSmaller:          "SmallerThan",
	TokenGreaterEquals:    "GreaterThanEquals",
	TokenSmallerEquals:    "SmallerThanEquals",
	TokenNotEquals:        "NotEquals",
	TokenAnd:              "And",
	TokenOr:               "Or",
	TokenXor:              "Xor",
	TokenNot:              "Not",
	TokenOpenParenthesis:  "OpenParenthesis",
	TokenCloseParenthesis: "CloseParenthesis",
	TokenOpenBracket:      "OpenBracket",
	TokenCloseBracket:     "CloseBracket",
	TokenComma:            "Comma",
	TokenDot:              "Dot",
	TokenDotComma:         "DotComma",
	TokenColon:            "Colon",
	TokenIf:               "If",
	TokenThen:             "Then",
	TokenElse:             "Else",
	TokenWhile:            "While",
	TokenFor:              "For",
	TokenSwitch:           "Switch",
	TokenCase:             "Case",
	TokenDefault:          "Default",
	TokenYield:            "Yield",
}

var tokenSymbols = map[TokenType]string{
	TokenAdd:              "+",
	TokenSubstract:        "-",
	TokenMultiply:         "*",
	TokenDivide:           "/",
	TokenEquals:           "=",
	TokenGreater:          ">",
	TokenSmaller:          "<",
	TokenGreaterEquals:    ">=",
	TokenSmallerEquals:    "<=",
	TokenNotEquals:        "!=",
	TokenAnd:              "&",
	TokenOr:               "|",
	TokenXor:              "^",
	TokenNot:              "!",
	TokenOpenParenthesis:  "(",
	TokenCloseParenthesis: ")",
	TokenOpenBracket:      "[",
	TokenCloseBracket:     "]",
	TokenComma:            ",",
	TokenDot:              ".",
	TokenDotComma:         ";",
	TokenColon:            ":",
}

// Symbol returns the source text of an operator or punctuation token type,
// or the lowercase keyword.
func (tt TokenType) Symbol() string {
	if s, ok := tokenSymbols[tt]; ok {
		return s
	}
	for k, v := range keywords {
		if v == tt {
			return k
		}
	}
	return tt.String()
}

var keywords = map[string]TokenType{
	"if":      TokenIf,
	"then":    TokenThen,
	"else":    TokenElse,
	"while":   TokenWhile,
	"for":     TokenFor,
	"switch":  TokenSwitch,
	"case":    TokenCase,
	"default": TokenDefault,
	"yield":   TokenYield,
}

// IsOperator reports whether tt is an arithmetic, relational or boolean
// operator.
func (tt TokenType) IsOperator() bool {
	return tt >= TokenAdd && tt <= TokenNot
}

// IsBinaryOperator reports whether tt combines two operands.
func (tt TokenType) IsBinaryOperator() bool {
	return tt >= TokenAdd && tt <= TokenXor
}

// IsArithmetic reports whether tt is one of + - * /.
func (tt TokenType) IsArithmetic() bool {
	return tt >= TokenAdd && tt <= TokenDivide
}

// IsAdditive reports whether tt is + or -.
func (tt TokenType) IsAdditive() bool {
	return tt == TokenAdd || tt == TokenSubstract
}

// IsMultiplicative reports whether tt is * or /.
func (tt TokenType) IsMultiplicative() bool {
	return tt == TokenMultiply || tt == TokenDivide
}

// IsRelationalOrBoolean reports whether tt compares or combines truth values.
// These operators always bind loosest.
func (tt TokenType) IsRelationalOrBoolean() bool {
	return tt >= TokenEquals && tt <= TokenNot
}

// IsKeyword reports whether tt is a control keyword.
func (tt TokenType) IsKeyword() bool {
	return tt >= TokenIf && tt <= TokenYield
}

// Token is a classified lexeme. A numeric literal folded with a preceding
// unary minus keeps its digits in Literal and sets Negative.
type Token struct {
	Type     TokenType
	Literal  string
	Negative bool
	Pos      position.Position
}

// String returns a string representation of the token
func (t Token) String() string {
	if t.Type == TokenIdentifier {
		if t.Negative {
			return fmt.Sprintf("id(-%s)", t.Literal)
		}
		return fmt.Sprintf("id(%s)", t.Literal)
	}
	return t.Type.String()
}

// IsNumeric reports whether the token is a numeric literal.
func (t Token) IsNumeric() bool {
	return t.Type == TokenIdentifier && IsNumericLiteral(t.Literal)
}

// IsNumericLiteral reports whether s starts like a number.
func IsNumericLiteral(s string) bool {
	return s != "" && (isDigit(s[0]) || (s[0] == '.' && len(s) > 1 && isDigit(s[1])))
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}
