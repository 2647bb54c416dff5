// Package position provides source position tracking for the stackscript
// compiler. Tokens, AST nodes and diagnostics all refer back to the script
// text through these values.
package position

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Position represents a single point in source code
type Position struct {
	Filename string // Source file name
	Line     int    // 1-based line number
	Column   int    // 1-based column number
	Offset   int    // 0-based byte offset in source
}

// IsValid returns true if the position is valid
func (p Position) IsValid() bool {
	return p.Line > 0 && p.Column > 0 && p.Offset >= 0
}

// String returns a string representation of the position
func (p Position) String() string {
	if p.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", filepath.Base(p.Filename), p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// SourceFile holds a script and its split lines for excerpt rendering
type SourceFile struct {
	Filename string
	Content  string
	Lines    []string
}

// NewSourceFile creates a new source file from content
func NewSourceFile(filename, content string) *SourceFile {
	return &SourceFile{
		Filename: filename,
		Content:  content,
		Lines:    strings.Split(content, "\n"),
	}
}

// GetLine returns the specified line (1-based) or empty string if invalid
func (sf *SourceFile) GetLine(lineNum int) string {
	if lineNum < 1 || lineNum > len(sf.Lines) {
		return ""
	}
	return strings.TrimRight(sf.Lines[lineNum-1], "\r")
}

// Excerpt renders the line holding pos with a caret under the column.
// An empty string is returned when the line does not exist.
func (sf *SourceFile) Excerpt(pos Position) string {
	line := sf.GetLine(pos.Line)
	if line == "" {
		return ""
	}

	var b strings.Builder

	gutter := fmt.Sprintf("%4d | ", pos.Line)
	b.WriteString(gutter)
	b.WriteString(line)
	b.WriteByte('\n')

	col := pos.Column
	if col < 1 {
		col = 1
	}
	if col > len(line)+1 {
		col = len(line) + 1
	}

	b.WriteString(strings.Repeat(" ", len(gutter)-2))
	b.WriteString("| ")
	for i := 1; i < col; i++ {
		// keep tabs so the caret lines up with the echoed source
		if line[i-1] == '\t' {
			b.WriteByte('\t')
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteByte('^')

	return b.String()
}
