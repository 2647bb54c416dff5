package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/orizon-lang/stackscript/internal/cli"
	"github.com/orizon-lang/stackscript/internal/compiler"
	"github.com/orizon-lang/stackscript/internal/lexer"
)

const (
	historyFile = ".stackc_history"
	promptMain  = "ss> "
	promptCont  = "... "
)

const replHelp = `Statements are compiled as they are entered and the result of the
selected stage is printed. Pragma lines (#input, #output, #define,
#validate) stay in effect for the rest of the session.

Commands:
  :help            show this text
  :quit            leave the session
  :reset           forget all pragmas
  :load FILE       compile FILE and keep its pragmas
  :stage NAME      print the tree after NAME (parse|analyze|transform|flatten|cleanup)
  :vars            toggle printing of the variable table
  :pragmas         list the pragmas in effect
`

func runREPL(args []string, stdout, stderr io.Writer) error {
	fs, s := newFlagSet("repl", stderr)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	cfg, err := s.resolve(fs)
	if err != nil {
		return err
	}

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	sess := newSession(cfg, stdout, stderr)
	fmt.Fprintf(stdout, "%s %s, :help for commands\n", toolName, cli.Version)

	for {
		input, ok := readStatement(ln)
		if !ok {
			fmt.Fprintln(stdout)
			break
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))
		if sess.exec(input) {
			break
		}
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return nil
}

// readStatement reads lines until parentheses and brackets are balanced. The
// second result is false at end of input.
func readStatement(ln *liner.State) (string, bool) {
	var b strings.Builder

	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl+C drops the pending input.
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if isComplete(b.String()) {
			return b.String(), true
		}
	}
}

// isComplete reports whether src closes every parenthesis and bracket it opens.
// Comments are skipped.
func isComplete(src string) bool {
	depth := 0
	for _, line := range strings.Split(src, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, ch := range line {
			switch ch {
			case '(', '[':
				depth++
			case ')', ']':
				depth--
			}
		}
	}
	return depth <= 0
}

// session is the state of one REPL: the pragma lines entered so far and
// the display settings.
type session struct {
	cfg    *cli.Config
	out    io.Writer
	errOut io.Writer

	pragmas  []string
	stage    compiler.Stage
	showVars bool
}

func newSession(cfg *cli.Config, out, errOut io.Writer) *session {
	return &session{cfg: cfg, out: out, errOut: errOut, stage: compiler.StageCleanup}
}

// exec handles one input and reports whether the session should end.
func (s *session) exec(input string) bool {
	if strings.HasPrefix(strings.TrimSpace(input), ":") {
		return s.command(input)
	}

	var pragmas, body []string
	for _, line := range strings.Split(input, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			pragmas = append(pragmas, strings.TrimSpace(line))
		} else {
			body = append(body, line)
		}
	}

	if len(pragmas) > 0 {
		if err := s.addPragmas(pragmas); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			return false
		}
	}
	if strings.TrimSpace(strings.Join(body, "\n")) == "" {
		return false
	}
	s.compile(strings.Join(body, "\n"))
	return false
}

// addPragmas keeps lines when the header they extend still tokenizes.
func (s *session) addPragmas(lines []string) error {
	header := append(append([]string(nil), s.pragmas...), lines...)
	if _, err := lexer.Tokenize(strings.Join(header, "\n"), "<repl>"); err != nil {
		return err
	}
	s.pragmas = header
	return nil
}

func (s *session) compile(body string) {
	source := body
	if len(s.pragmas) > 0 {
		source = strings.Join(s.pragmas, "\n") + "\n" + body
	}

	ctx, err := compileSource("<repl>", source, s.cfg, s.errOut, s.stage)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	fmt.Fprint(s.out, render(ctx, s.showVars))
}

func (s *session) command(line string) bool {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case ":help":
		fmt.Fprint(s.out, replHelp)
	case ":quit", ":exit":
		return true
	case ":reset":
		s.pragmas = nil
		fmt.Fprintln(s.out, "pragmas cleared.")
	case ":load":
		if len(fields) < 2 {
			fmt.Fprintln(s.out, "usage: :load FILE")
			return false
		}
		s.load(fields[1])
	case ":stage":
		if len(fields) < 2 {
			fmt.Fprintf(s.out, "stage: %s\n", s.stage)
			return false
		}
		stage, err := compiler.ParseStage(fields[1])
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			return false
		}
		s.stage = stage
	case ":vars":
		s.showVars = !s.showVars
		fmt.Fprintf(s.out, "variable table %s.\n", onOff(s.showVars))
	case ":pragmas":
		for _, p := range s.pragmas {
			fmt.Fprintln(s.out, p)
		}
	default:
		fmt.Fprintln(s.out, "unknown command. Type :help for help.")
	}
	return false
}

// load compiles a script file. On success its pragmas replace the
// session's.
func (s *session) load(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(s.out, "cannot read %s: %v\n", path, err)
		return
	}

	ctx, err := compileSource(path, string(data), s.cfg, s.errOut, s.stage)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}

	var pragmas []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if isPragma(line) {
			pragmas = append(pragmas, line)
		}
	}
	s.pragmas = pragmas
	fmt.Fprint(s.out, render(ctx, s.showVars))
}

func isPragma(line string) bool {
	for _, p := range []string{"#input", "#output", "#define", "#validate"} {
		if strings.HasPrefix(strings.ToLower(line), p) {
			return true
		}
	}
	return false
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
