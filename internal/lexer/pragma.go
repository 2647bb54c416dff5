package lexer

import (
	"strconv"
	"strings"

	serrors "github.com/orizon-lang/stackscript/internal/errors"
	"github.com/orizon-lang/stackscript/internal/symbols"
)

// Define is a #define NAME VALUE pragma. Identifiers named NAME are replaced
// by VALUE while tokenizing.
type Define struct {
	Name     string
	Value    string // literal text without sign
	Negative bool
	Line     int
}

// Validation is a #validate NAME VALUE pragma: the expected value of a
// variable after execution, checked by test harnesses.
type Validation struct {
	Name  string
	Value string
	Line  int
}

// Mapping is an #input or #output pragma binding a variable to an offset of
// the host data record.
type Mapping struct {
	Name       string
	Offset     int
	ByteSize   int
	DataType   symbols.DataType
	VectorSize int
	Line       int
}

const (
	pragmaDefine   = "define"
	pragmaValidate = "validate"
	pragmaInput    = "input"
	pragmaOutput   = "output"
)

// pragma interprets a comment line. Lines that do not start with a known
// pragma word are plain comments.
func (l *Lexer) pragma(text string, line int) error {
	fields := strings.Fields(strings.TrimPrefix(text, string(commentChar)))
	if len(fields) == 0 {
		return nil
	}

	kind := strings.ToLower(fields[0])
	switch kind {
	case pragmaDefine, pragmaValidate, pragmaInput, pragmaOutput:
	default:
		return nil
	}

	// text directly after '#' only; "# define" is a comment
	if len(text) < 2 || text[1] == ' ' || text[1] == '\t' {
		return nil
	}

	if len(l.result.Tokens) > 0 {
		return serrors.Lexical(serrors.CodePragmaOrder, line,
			"#%s must precede the first statement", kind)
	}

	switch kind {
	case pragmaDefine:
		return l.define(fields, line)
	case pragmaValidate:
		return l.validate(fields, line)
	default:
		return l.mapping(kind, fields, line)
	}
}

func expectArgs(fields []string, n int, line int) error {
	if len(fields)-1 != n {
		return serrors.Lexical(serrors.CodeMalformedPragma, line,
			"#%s expects %d arguments, found %d", strings.ToLower(fields[0]), n, len(fields)-1)
	}
	return nil
}

func (l *Lexer) define(fields []string, line int) error {
	if err := expectArgs(fields, 2, line); err != nil {
		return err
	}

	name, value := fields[1], fields[2]
	key := strings.ToLower(name)

	if !isIdentifier(name) {
		return serrors.Lexical(serrors.CodeMalformedPragma, line,
			"#define name '%s' is not an identifier", name)
	}
	if existing, ok := l.result.Defines[key]; ok {
		if existing.Value == strings.TrimPrefix(value, "-") && existing.Negative == strings.HasPrefix(value, "-") {
			return serrors.Lexical(serrors.CodeDuplicateDefine, line,
				"duplicate #define '%s' (first defined on line %d)", name, existing.Line)
		}
		return serrors.Lexical(serrors.CodeDuplicateDefine, line,
			"conflicting #define '%s': '%s' here, '%s' on line %d", name, value, existing.Value, existing.Line)
	}

	def := Define{Name: name, Value: value, Line: line}
	if strings.HasPrefix(value, "-") && len(value) > 1 {
		def.Negative = true
		def.Value = value[1:]
	}
	if IsNumericLiteral(def.Value) {
		if err := checkNumber(def.Value, line); err != nil {
			return err
		}
	} else if def.Negative || !isIdentifier(def.Value) {
		return serrors.Lexical(serrors.CodeMalformedPragma, line,
			"#define value '%s' is neither a number nor an identifier", value)
	}

	l.result.Defines[key] = def
	return nil
}

func (l *Lexer) validate(fields []string, line int) error {
	if err := expectArgs(fields, 2, line); err != nil {
		return err
	}
	l.result.Validations = append(l.result.Validations, Validation{
		Name:  fields[1],
		Value: fields[2],
		Line:  line,
	})
	return nil
}

func (l *Lexer) mapping(kind string, fields []string, line int) error {
	if err := expectArgs(fields, 3, line); err != nil {
		return err
	}

	name := fields[1]
	if !isIdentifier(name) {
		return serrors.Lexical(serrors.CodeMalformedPragma, line,
			"#%s name '%s' is not an identifier", kind, name)
	}

	offset, err := strconv.Atoi(fields[2])
	if err != nil || offset < 0 {
		return serrors.Lexical(serrors.CodeMalformedPragma, line,
			"#%s offset '%s' is not a non-negative integer", kind, fields[2])
	}

	m := Mapping{Name: name, Offset: offset, Line: line, VectorSize: 1, ByteSize: 4}
	switch strings.ToUpper(fields[3]) {
	case "NUMERIC":
		m.DataType = symbols.Numeric
	case "ID":
		m.DataType = symbols.ID
	default:
		size, err := strconv.Atoi(fields[3])
		if err != nil || size <= 0 || size%4 != 0 {
			return serrors.Lexical(serrors.CodeMalformedPragma, line,
				"#%s type '%s' must be NUMERIC, ID or a positive multiple of 4 bytes", kind, fields[3])
		}
		m.DataType = symbols.Numeric
		m.ByteSize = size
		m.VectorSize = size / 4
	}

	list := &l.result.Inputs
	if kind == pragmaOutput {
		list = &l.result.Outputs
	}
	for _, other := range *list {
		if strings.EqualFold(other.Name, name) {
			return serrors.Lexical(serrors.CodeMalformedPragma, line,
				"#%s '%s' already mapped on line %d", kind, name, other.Line)
		}
	}
	*list = append(*list, m)

	return nil
}

func isIdentifier(s string) bool {
	if s == "" || !isLetter(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isLetter(s[i]) && !isDigit(s[i]) {
			return false
		}
	}
	return true
}
