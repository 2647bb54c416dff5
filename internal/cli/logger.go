package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/orizon-lang/stackscript/internal/diagnostics"
	"github.com/orizon-lang/stackscript/internal/position"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiGray   = "\x1b[90m"
)

// Logger provides leveled logging for the command line tools. It also
// serves as the diagnostics sink of a compilation, so it may be called from
// several parser workers at once.
type Logger struct {
	Verbose   bool
	DebugMode bool
	Color     bool

	// Source, when set, adds an excerpt of the offending line to reported
	// diagnostics.
	Source *position.SourceFile

	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewLoggerTo creates a logger writing to w. Colour is enabled when w is a
// terminal.
func NewLoggerTo(w io.Writer, verbose, debug bool) *Logger {
	l := &Logger{
		Verbose:   verbose,
		DebugMode: debug,
		out:       w,
		now:       time.Now,
	}
	if f, ok := w.(*os.File); ok {
		l.Color = IsTerminal(int(f.Fd()))
	}
	return l
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.Verbose {
		l.write("INFO", ansiCyan, fmt.Sprintf(format, args...))
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.DebugMode {
		l.write("DEBUG", ansiGray, fmt.Sprintf(format, args...))
	}
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write("WARN", ansiYellow, fmt.Sprintf(format, args...))
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("ERROR", ansiRed, fmt.Sprintf(format, args...))
}

// Report implements diagnostics.Sink. Traces go to Debug and todo notes to
// Info, so both stay quiet unless asked for.
func (l *Logger) Report(d diagnostics.Diagnostic) {
	msg := l.describe(d)

	switch d.Level {
	case diagnostics.DiagnosticError:
		l.Error("%s", msg)
	case diagnostics.DiagnosticWarning:
		l.Warn("%s", msg)
	case diagnostics.DiagnosticTrace:
		l.Debug("%s", msg)
	case diagnostics.DiagnosticTodo:
		l.Info("%s", msg)
	}
}

func (l *Logger) describe(d diagnostics.Diagnostic) string {
	var b strings.Builder

	if d.Code != 0 {
		fmt.Fprintf(&b, "[%d] ", d.Code)
	}
	if d.Line > 0 {
		name := ""
		if l.Source != nil {
			name = l.Source.Filename + ":"
		}
		fmt.Fprintf(&b, "%sline %d: ", name, d.Line)
	}
	b.WriteString(d.Message)
	if d.Caller != "" && l.DebugMode {
		fmt.Fprintf(&b, " (%s)", d.Caller)
	}
	if d.Context != "" {
		b.WriteString("\n    in: ")
		b.WriteString(d.Context)
	}
	if l.Source != nil && d.Line > 0 {
		if ex := l.Source.Excerpt(position.Position{Line: d.Line, Column: 1}); ex != "" {
			b.WriteByte('\n')
			b.WriteString(ex)
		}
	}

	return b.String()
}

func (l *Logger) write(level, color, msg string) {
	tag := "[" + level + "]"
	if l.Color {
		tag = color + tag + ansiReset
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s: %s\n", tag, l.now().Format("15:04:05"), msg)
}
