// Package lexer turns script text into the token list consumed by the
// parser, and collects the pragma side tables (#define, #validate, #input,
// #output) that precede the first statement.
package lexer

import (
	"strings"

	serrors "github.com/orizon-lang/stackscript/internal/errors"
	"github.com/orizon-lang/stackscript/internal/position"
)

const commentChar = '#'

// Result is the output of Tokenize.
type Result struct {
	Tokens      []Token
	Defines     map[string]Define // keyed by lowercase name
	Validations []Validation
	Inputs      []Mapping
	Outputs     []Mapping
}

// Lexer represents the tokenizer state for one script
type Lexer struct {
	input        string
	filename     string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int  // current line number
	column       int  // current column number

	result *Result

	// identifier or number under construction
	word      strings.Builder
	wordStart position.Position
	negative  bool
}

// New creates a new lexer instance
func New(input, filename string) *Lexer {
	l := &Lexer{
		input:    input,
		filename: filename,
		line:     1,
		result: &Result{
			Defines: make(map[string]Define),
		},
	}
	l.readChar()
	return l
}

// Tokenize lexes src completely.
func Tokenize(src, filename string) (*Result, error) {
	return New(src, filename).Run()
}

// readChar reads the next character and advances position
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

// peekChar returns the next character without advancing position
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) pos() position.Position {
	return position.Position{Filename: l.filename, Line: l.line, Column: l.column, Offset: l.position}
}

func (l *Lexer) atEOF() bool {
	return l.position >= len(l.input)
}

// Run lexes the whole input.
func (l *Lexer) Run() (*Result, error) {
	for !l.atEOF() {
		ch := l.ch

		switch {
		case ch == commentChar:
			if err := l.flush(); err != nil {
				return nil, err
			}
			if err := l.readComment(); err != nil {
				return nil, err
			}
			continue

		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			if err := l.flush(); err != nil {
				return nil, err
			}

		case isLetter(ch) || isDigit(ch):
			if l.word.Len() == 0 {
				l.wordStart = l.pos()
			}
			l.word.WriteByte(ch)

		case ch == '.':
			if err := l.readDot(); err != nil {
				return nil, err
			}

		case ch == '-':
			if err := l.flush(); err != nil {
				return nil, err
			}
			if l.foldsIntoLiteral() {
				l.negative = true
			} else {
				l.emit(TokenSubstract, "-")
			}

		case ch == '=':
			if err := l.flush(); err != nil {
				return nil, err
			}
			l.readEquals()

		default:
			if err := l.flush(); err != nil {
				return nil, err
			}
			tt, ok := singleCharTokens[ch]
			if !ok {
				return nil, serrors.Lexical(serrors.CodeUnexpectedChar, l.line,
					"unexpected character '%c' at %s", ch, l.pos())
			}
			l.emit(tt, string(ch))
		}

		l.readChar()
	}

	if err := l.flush(); err != nil {
		return nil, err
	}
	if l.negative {
		return nil, serrors.Lexical(serrors.CodeMalformedNumber, l.line, "dangling sign at end of input")
	}

	return l.result, nil
}

var singleCharTokens = map[byte]TokenType{
	'+': TokenAdd,
	'*': TokenMultiply,
	'/': TokenDivide,
	'>': TokenGreater,
	'<': TokenSmaller,
	'!': TokenNot,
	'&': TokenAnd,
	'|': TokenOr,
	'^': TokenXor,
	'(': TokenOpenParenthesis,
	')': TokenCloseParenthesis,
	'[': TokenOpenBracket,
	']': TokenCloseBracket,
	',': TokenComma,
	';': TokenDotComma,
	':': TokenColon,
}

// foldAfter lists the token types after which a '-' directly followed by a
// digit is read as the sign of the literal instead of a subtraction.
var foldAfter = map[TokenType]bool{
	TokenAdd:             true,
	TokenSubstract:       true,
	TokenMultiply:        true,
	TokenDivide:          true,
	TokenEquals:          true,
	TokenGreater:         true,
	TokenSmaller:         true,
	TokenGreaterEquals:   true,
	TokenSmallerEquals:   true,
	TokenNotEquals:       true,
	TokenAnd:             true,
	TokenOr:              true,
	TokenXor:             true,
	TokenOpenParenthesis: true,
	TokenComma:           true,
}

func (l *Lexer) foldsIntoLiteral() bool {
	next := l.peekChar()
	if !isDigit(next) {
		return false
	}
	if l.negative {
		return false
	}
	return foldAfter[l.last()]
}

// last returns the type of the previously emitted token, TokenNop at the
// start of input.
func (l *Lexer) last() TokenType {
	if n := len(l.result.Tokens); n > 0 {
		return l.result.Tokens[n-1].Type
	}
	return TokenNop
}

func (l *Lexer) readDot() error {
	word := l.word.String()
	switch {
	case word != "" && IsNumericLiteral(word):
		if strings.IndexByte(word, '.') >= 0 {
			return serrors.Lexical(serrors.CodeMalformedNumber, l.line,
				"multiple decimal points in numeric literal '%s.'", word)
		}
		l.word.WriteByte('.')
		return nil
	case word == "" && isDigit(l.peekChar()):
		l.wordStart = l.pos()
		l.word.WriteByte('.')
		return nil
	}

	if err := l.flush(); err != nil {
		return err
	}
	l.emit(TokenDot, ".")
	return nil
}

// readEquals emits '=' or rewrites the previous single character operator
// into its two character form.
func (l *Lexer) readEquals() {
	if n := len(l.result.Tokens); n > 0 {
		prev := &l.result.Tokens[n-1]
		adjacent := prev.Pos.Offset == l.position-1
		if adjacent {
			switch prev.Type {
			case TokenGreater:
				prev.Type, prev.Literal = TokenGreaterEquals, ">="
				return
			case TokenSmaller:
				prev.Type, prev.Literal = TokenSmallerEquals, "<="
				return
			case TokenNot:
				prev.Type, prev.Literal = TokenNotEquals, "!="
				return
			case TokenEquals:
				// == is the same comparison as =
				return
			}
		}
	}
	l.emit(TokenEquals, "=")
}

func (l *Lexer) emit(tt TokenType, literal string) {
	l.result.Tokens = append(l.result.Tokens, Token{Type: tt, Literal: literal, Pos: l.pos()})
}

// flush emits the pending word as an identifier, keyword or literal.
func (l *Lexer) flush() error {
	if l.word.Len() == 0 {
		return nil
	}
	word := l.word.String()
	start := l.wordStart
	negative := l.negative
	l.word.Reset()
	l.negative = false

	if IsNumericLiteral(word) {
		if err := checkNumber(word, start.Line); err != nil {
			return err
		}
		l.result.Tokens = append(l.result.Tokens, Token{
			Type: TokenIdentifier, Literal: word, Negative: negative, Pos: start,
		})
		return nil
	}

	if negative {
		return serrors.Lexical(serrors.CodeMalformedNumber, start.Line,
			"sign folded into non numeric identifier '%s'", word)
	}

	if kw, ok := keywords[strings.ToLower(word)]; ok {
		l.result.Tokens = append(l.result.Tokens, Token{Type: kw, Literal: word, Pos: start})
		return nil
	}

	tok := Token{Type: TokenIdentifier, Literal: word, Pos: start}
	if def, ok := l.result.Defines[strings.ToLower(word)]; ok {
		tok.Literal = def.Value
		tok.Negative = def.Negative
	}
	l.result.Tokens = append(l.result.Tokens, tok)

	return nil
}

func checkNumber(word string, line int) error {
	dots := 0
	for i := 0; i < len(word); i++ {
		switch {
		case word[i] == '.':
			dots++
		case !isDigit(word[i]):
			return serrors.Lexical(serrors.CodeMalformedNumber, line,
				"malformed numeric literal '%s'", word)
		}
	}
	if dots > 1 {
		return serrors.Lexical(serrors.CodeMalformedNumber, line,
			"multiple decimal points in numeric literal '%s'", word)
	}
	if word == "." {
		return serrors.Lexical(serrors.CodeMalformedNumber, line, "lone decimal point")
	}
	return nil
}

// readComment consumes a comment or pragma up to the end of the line.
func (l *Lexer) readComment() error {
	start := l.position
	line := l.line
	for !l.atEOF() && l.ch != '\n' {
		l.readChar()
	}
	text := strings.TrimRight(l.input[start:l.position], "\r")
	return l.pragma(text, line)
}
