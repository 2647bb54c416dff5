// Package diagnostics is the message sink shared by every compiler stage.
// A compilation succeeds exactly when no Error level message was logged;
// warnings, traces and todo notes never block it.
package diagnostics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	serrors "github.com/orizon-lang/stackscript/internal/errors"
)

// DiagnosticLevel represents the severity level of a diagnostic
type DiagnosticLevel int

const (
	DiagnosticError DiagnosticLevel = iota
	DiagnosticWarning
	DiagnosticTrace
	DiagnosticTodo
)

func (dl DiagnosticLevel) String() string {
	switch dl {
	case DiagnosticError:
		return "error"
	case DiagnosticWarning:
		return "warning"
	case DiagnosticTrace:
		return "trace"
	case DiagnosticTodo:
		return "todo"
	default:
		return "unknown"
	}
}

// Diagnostic is a single logged message.
type Diagnostic struct {
	Level   DiagnosticLevel
	Message string
	Code    int    // 0 when the message carries no code
	Line    int    // source line, 0 when unknown
	Caller  string // short name of the reporting function
	Context string // optional rendering of the offending subtree
}

// String renders the diagnostic on one line (plus context lines if any).
func (d Diagnostic) String() string {
	var b strings.Builder

	b.WriteString(d.Level.String())
	if d.Code != 0 {
		fmt.Fprintf(&b, "[%d]", d.Code)
	}
	if d.Line > 0 {
		fmt.Fprintf(&b, " line %d", d.Line)
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	if d.Caller != "" {
		fmt.Fprintf(&b, " (%s)", d.Caller)
	}
	if d.Context != "" {
		b.WriteByte('\n')
		b.WriteString(d.Context)
	}

	return b.String()
}

// Sink receives every diagnostic as it is logged.
type Sink interface {
	Report(d Diagnostic)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(d Diagnostic)

// Report calls f(d).
func (f SinkFunc) Report(d Diagnostic) { f(d) }

// DiagnosticManager collects the diagnostics of one compilation. It is safe
// for use by concurrent parser workers.
type DiagnosticManager struct {
	mu           sync.Mutex
	diagnostics  []Diagnostic
	errorCount   int
	warningCount int
	maxErrors    int
	sink         Sink
}

// NewDiagnosticManager creates a new diagnostic manager
func NewDiagnosticManager() *DiagnosticManager {
	return &DiagnosticManager{
		diagnostics: make([]Diagnostic, 0),
		maxErrors:   100,
	}
}

// SetSink installs a forwarder that sees every diagnostic as it is added.
func (dm *DiagnosticManager) SetSink(sink Sink) {
	dm.mu.Lock()
	dm.sink = sink
	dm.mu.Unlock()
}

// SetErrorLimit sets the maximum number of errors kept; later errors are
// still counted.
func (dm *DiagnosticManager) SetErrorLimit(limit int) {
	dm.mu.Lock()
	dm.maxErrors = limit
	dm.mu.Unlock()
}

// AddDiagnostic adds a new diagnostic to the manager
func (dm *DiagnosticManager) AddDiagnostic(d Diagnostic) {
	dm.mu.Lock()

	switch d.Level {
	case DiagnosticError:
		dm.errorCount++
		if dm.errorCount > dm.maxErrors {
			dm.mu.Unlock()
			return
		}
	case DiagnosticWarning:
		dm.warningCount++
	}

	dm.diagnostics = append(dm.diagnostics, d)
	sink := dm.sink
	dm.mu.Unlock()

	if sink != nil {
		sink.Report(d)
	}
}

// Report logs err as an Error diagnostic. Typed compiler errors contribute
// their code, line and caller tag.
func (dm *DiagnosticManager) Report(err error, context string) {
	if err == nil {
		return
	}

	d := Diagnostic{Level: DiagnosticError, Message: err.Error(), Context: context}

	var se *serrors.StandardError
	var be *serrors.BoundExceededError
	switch {
	case errors.As(err, &se):
		d.Message = se.Message
		d.Code = se.Code
		d.Line = se.Line
		d.Caller = se.Caller
	case errors.As(err, &be):
		d.Code = serrors.CodeBoundExceeded
		d.Caller = be.Stage
	}

	dm.AddDiagnostic(d)
}

// Errorf logs an Error level message.
func (dm *DiagnosticManager) Errorf(line int, format string, args ...interface{}) {
	dm.add(DiagnosticError, line, format, args...)
}

// Warningf logs a Warning level message.
func (dm *DiagnosticManager) Warningf(line int, format string, args ...interface{}) {
	dm.add(DiagnosticWarning, line, format, args...)
}

// Tracef logs a Trace level message.
func (dm *DiagnosticManager) Tracef(format string, args ...interface{}) {
	dm.add(DiagnosticTrace, 0, format, args...)
}

// Todof logs a note about a known, unhandled case.
func (dm *DiagnosticManager) Todof(line int, format string, args ...interface{}) {
	dm.add(DiagnosticTodo, line, format, args...)
}

func (dm *DiagnosticManager) add(level DiagnosticLevel, line int, format string, args ...interface{}) {
	dm.AddDiagnostic(Diagnostic{
		Level:   level,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
		Caller:  serrors.CallerTag(2),
	})
}

// GetDiagnostics returns a copy of all diagnostics in logging order
func (dm *DiagnosticManager) GetDiagnostics() []Diagnostic {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	out := make([]Diagnostic, len(dm.diagnostics))
	copy(out, dm.diagnostics)

	return out
}

// Filter returns the diagnostics of one level.
func (dm *DiagnosticManager) Filter(level DiagnosticLevel) []Diagnostic {
	var out []Diagnostic
	for _, d := range dm.GetDiagnostics() {
		if d.Level == level {
			out = append(out, d)
		}
	}
	return out
}

// GetErrorCount returns the number of errors
func (dm *DiagnosticManager) GetErrorCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.errorCount
}

// GetWarningCount returns the number of warnings
func (dm *DiagnosticManager) GetWarningCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.warningCount
}

// HasErrors returns true if there are any errors
func (dm *DiagnosticManager) HasErrors() bool {
	return dm.GetErrorCount() > 0
}

// IsOK reports compilation success: no Error level message was logged.
func (dm *DiagnosticManager) IsOK() bool {
	return !dm.HasErrors()
}

// SortDiagnostics orders diagnostics by line, errors first on the same line.
func (dm *DiagnosticManager) SortDiagnostics() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	sort.SliceStable(dm.diagnostics, func(i, j int) bool {
		a, b := dm.diagnostics[i], dm.diagnostics[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Level < b.Level
	})
}

// Summary returns a short "N error(s), M warning(s)" line.
func (dm *DiagnosticManager) Summary() string {
	return fmt.Sprintf("%d error(s), %d warning(s)", dm.GetErrorCount(), dm.GetWarningCount())
}
