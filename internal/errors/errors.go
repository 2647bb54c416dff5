// Package errors provides the typed error taxonomy of the stackscript compiler.
// Every stage reports failures as one of these values after logging a
// diagnostic; callers match them with errors.As.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryLexical   ErrorCategory = "LEXICAL"
	CategorySyntax    ErrorCategory = "SYNTAX"
	CategorySemantic  ErrorCategory = "SEMANTIC"
	CategoryInvariant ErrorCategory = "INVARIANT"
)

// Well known codes. The numeric value travels with the diagnostic.
const (
	CodeMalformedPragma    = 101
	CodeDuplicateDefine    = 102
	CodePragmaOrder        = 103
	CodeMalformedNumber    = 104
	CodeUnexpectedChar     = 105
	CodeUnbalanced         = 201
	CodeMalformedStatement = 202
	CodeArity              = 203
	CodeUnknownFunction    = 204
	CodeOperatorSequence   = 205
	CodeUnresolved         = 301
	CodeConstantTarget     = 302
	CodeVectorSize         = 303
	CodeMalformedSwitch    = 401
	CodeMalformedFor       = 402
	CodePushPop            = 403
	CodeBoundExceeded      = 404
	CodeUnexpectedNode     = 405
)

// StandardError provides a consistent error format
type StandardError struct {
	Category ErrorCategory
	Code     int
	Message  string
	Line     int
	Caller   string
}

// Error implements the error interface
func (e *StandardError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s:%d] line %d: %s", e.Category, e.Code, e.Line, e.Message)
	}
	return fmt.Sprintf("[%s:%d] %s", e.Category, e.Code, e.Message)
}

// NewStandardError creates a new standardized error. The caller tag is
// resolved skip frames above NewStandardError.
func NewStandardError(category ErrorCategory, code, line int, message string, skip int) *StandardError {
	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Line:     line,
		Caller:   CallerTag(skip + 1),
	}
}

// CallerTag returns the short function name skip frames above the caller.
func CallerTag(skip int) string {
	pc, _, _, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Lexical creates a tokenizer error.
func Lexical(code, line int, format string, args ...interface{}) *StandardError {
	return NewStandardError(CategoryLexical, code, line, fmt.Sprintf(format, args...), 1)
}

// Syntax creates a parser error.
func Syntax(code, line int, format string, args ...interface{}) *StandardError {
	return NewStandardError(CategorySyntax, code, line, fmt.Sprintf(format, args...), 1)
}

// Semantic creates a binding/meaning error.
func Semantic(code, line int, format string, args ...interface{}) *StandardError {
	return NewStandardError(CategorySemantic, code, line, fmt.Sprintf(format, args...), 1)
}

// Invariant creates an error for a tree shape that an earlier stage should
// never have produced.
func Invariant(code int, format string, args ...interface{}) *StandardError {
	return NewStandardError(CategoryInvariant, code, 0, fmt.Sprintf(format, args...), 1)
}

// BoundExceededError reports a rewrite loop that did not converge within its
// configured iteration limit.
type BoundExceededError struct {
	Stage string
	Limit int
}

func (e *BoundExceededError) Error() string {
	return fmt.Sprintf("[%s:%d] %s did not converge within %d iterations",
		CategoryInvariant, CodeBoundExceeded, e.Stage, e.Limit)
}

// IsCategory reports whether err wraps a StandardError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Category == category
	}
	var be *BoundExceededError
	if errors.As(err, &be) {
		return category == CategoryInvariant
	}
	return false
}
