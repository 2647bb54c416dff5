package analysis

import (
	"errors"
	"testing"

	"github.com/orizon-lang/stackscript/internal/ast"
	"github.com/orizon-lang/stackscript/internal/compilation"
	"github.com/orizon-lang/stackscript/internal/diagnostics"
	serrors "github.com/orizon-lang/stackscript/internal/errors"
	"github.com/orizon-lang/stackscript/internal/lexer"
	"github.com/orizon-lang/stackscript/internal/parser"
)

const inputs = "#input b 0 NUMERIC\n#input c 4 NUMERIC\n#input d 8 NUMERIC\n#input e 12 NUMERIC\n#input f 16 NUMERIC\n"

func parse(t *testing.T, source string, opts compilation.Options) *compilation.Context {
	t.Helper()

	res, err := lexer.Tokenize(inputs+source, "test.ss")
	if err != nil {
		t.Fatalf("tokenize %q failed: %v", source, err)
	}
	ctx, err := compilation.New("test.ss", source, opts)
	if err != nil {
		t.Fatalf("context for %q failed: %v", source, err)
	}
	ctx.Load(res)
	if err := parser.Parse(ctx); err != nil {
		t.Fatalf("parse %q failed: %v", source, err)
	}
	return ctx
}

func TestAnalyzeRewrites(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a = 1 + 2 * 3;", "a = 1 + (2 * 3)"},
		{"a = b + c * d - e;", "a = b + (c * d) - e"},
		{"a = b * c + d;", "a = b * c + d"},
		{"a = b - c * d / e;", "a = b - (c * d / e)"},
		{"a = b + c * - d;", "a = b + (c * - d)"},
		{"a = b + c * d * e + f;", "a = b + (c * d * e) + f"},
		{"a = b - 2 * c;", "a = b - (2 * c)"},
		{"a = b = c * d + e;", "a = b = c * d + e"},

		{"a = b / 2;", "a = b * 0.5"},
		{"a = b / 4;", "a = b * 0.25"},
		{"a = b / -4;", "a = b * -0.25"},
		{"a = b / -2;", "a = b * - 0.5"},
		{"a = b / 0.1;", "a = b * 10"},
		{"a = b / c;", "a = b / c"},

		{"a = b - -3;", "a = b + 3"},
		{"a = b - - c;", "a = b + c"},
		{"a = - - b;", "a = b"},

		{"a = (b + c) + d;", "a = b + c + d"},
		{"a = b + (c + d);", "a = b + c + d"},
		{"a = b - (c - d);", "a = b - (c - d)"},
		{"a = (b - c) - d;", "a = b - c - d"},
		{"a = (b * c) * (d * e);", "a = b * c * d * e"},
		{"a = (b + c);", "a = b + c"},
		{"a = b * (c);", "a = b * c"},
		{"a = b + (c + d * e);", "a = b + c + (d * e)"},
		{"a = (b, c);", "a = (b, c)"},
	}

	for i, tt := range tests {
		ctx := parse(t, tt.input, compilation.Options{})
		if err := Analyze(ctx); err != nil {
			t.Fatalf("tests[%d] - Analyze(%q) failed: %v", i, tt.input, err)
		}
		got := ctx.Tree.Format(ctx.Statements()[0])
		if got != tt.expected {
			t.Errorf("tests[%d] - rewrite of %q wrong. expected=%q, got=%q", i, tt.input, tt.expected, got)
		}
		if err := ctx.Tree.Validate(); err != nil {
			t.Errorf("tests[%d] - tree of %q invalid: %v", i, tt.input, err)
		}
	}
}

func TestReciprocalReleasesDivisor(t *testing.T) {
	ctx := parse(t, "a = b / 2;", compilation.Options{})
	if err := Analyze(ctx); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	two, ok := ctx.Variables.Lookup("2")
	if !ok {
		t.Fatalf("constant 2 missing from the table")
	}
	if two.ReferenceCount() != 0 {
		t.Errorf("constant 2 reference count wrong. expected=0, got=%d", two.ReferenceCount())
	}

	ctx = parse(t, "a = b / 8;", compilation.Options{})
	if err := Analyze(ctx); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	r, ok := ctx.Variables.Lookup("0.125")
	if !ok {
		t.Fatalf("reciprocal constant missing from the table")
	}
	if !r.IsConstant || r.Value != 0.125 || r.ReferenceCount() != 1 {
		t.Errorf("reciprocal constant wrong. got=%s value=%g", r, r.Value)
	}
}

func TestDivisionByZeroWarns(t *testing.T) {
	ctx := parse(t, "a = b / 0;", compilation.Options{})
	if err := Analyze(ctx); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if got := ctx.Tree.Format(ctx.Statements()[0]); got != "a = b / 0" {
		t.Errorf("division by zero rewritten. expected=%q, got=%q", "a = b / 0", got)
	}
	warnings := ctx.Diagnostics.Filter(diagnostics.DiagnosticWarning)
	if len(warnings) != 1 {
		t.Fatalf("warning count wrong. expected=1, got=%d", len(warnings))
	}
	if !ctx.IsOK() {
		t.Errorf("a warning must not fail the compilation")
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	sources := []string{
		"a = 1 + 2 * 3;",
		"a = b + (c + d * e) / 4 - - f;",
		"a = (b - c) - d * 2 / 3;",
		"if (b > 0) then (a = b - -1 * c;) else (a = (b + c) + d;);",
		"while (b < 10) (b = b + 1 * 2;);",
	}

	for i, src := range sources {
		ctx := parse(t, src, compilation.Options{})
		if _, err := Run(ctx); err != nil {
			t.Fatalf("tests[%d] - first run of %q failed: %v", i, src, err)
		}
		first := ctx.Tree.Format(ctx.Tree.Root())

		stats, err := Run(ctx)
		if err != nil {
			t.Fatalf("tests[%d] - second run of %q failed: %v", i, src, err)
		}
		if stats.Total() != 0 {
			t.Errorf("tests[%d] - second run of %q changed the tree %d times", i, src, stats.Total())
		}
		if got := ctx.Tree.Format(ctx.Tree.Root()); got != first {
			t.Errorf("tests[%d] - second run wrong. expected=%q, got=%q", i, first, got)
		}
	}
}

func TestNestedAssignmentsAreRewritten(t *testing.T) {
	ctx := parse(t, "while (b > 0) (a = 1 + 2 * 3;);", compilation.Options{})
	if err := Analyze(ctx); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	as := ctx.Tree.Find(ctx.Tree.Root(), func(n *ast.Node) bool { return n.Kind == ast.KindAssignment })
	if as == ast.NoNode {
		t.Fatalf("assignment not found")
	}
	if got := ctx.Tree.Format(as); got != "a = 1 + (2 * 3)" {
		t.Errorf("nested assignment wrong. expected=%q, got=%q", "a = 1 + (2 * 3)", got)
	}

	cond := ctx.Tree.Find(ctx.Tree.Root(), func(n *ast.Node) bool { return n.Kind == ast.KindCondition })
	if got := ctx.Tree.Format(cond); got != "b > 0" {
		t.Errorf("condition changed. expected=%q, got=%q", "b > 0", got)
	}
}

func TestIterationBound(t *testing.T) {
	tests := []struct {
		limit int
		fails bool
	}{
		{1, false},
		{2, false},
		{5, false},
	}

	for i, tt := range tests {
		ctx := parse(t, "a = 1 + 2 * 3;", compilation.Options{MaxAnalysisIterations: tt.limit})
		err := Analyze(ctx)

		var bound *serrors.BoundExceededError
		if got := errors.As(err, &bound); got != tt.fails {
			t.Fatalf("tests[%d] - bound %d wrong. expected failure=%t, got=%v", i, tt.limit, tt.fails, err)
		}
		if tt.fails && (bound.Stage != "analysis" || bound.Limit != tt.limit) {
			t.Errorf("tests[%d] - bound error wrong. got=%+v", i, bound)
		}
		if tt.fails == ctx.IsOK() {
			t.Errorf("tests[%d] - IsOK wrong. expected=%t", i, !tt.fails)
		}
	}
}

// countdown reports a change on each of its first left applications.
type countdown struct{ left *int }

func (countdown) Name() string { return "countdown" }

func (c countdown) Apply(a *Analyzer, seq ast.NodeID) (int, error) {
	if *c.left == 0 {
		return 0, nil
	}
	*c.left--
	return 1, nil
}

func TestBoundCountsRewritingPasses(t *testing.T) {
	tests := []struct {
		passes     int
		fails      bool
		iterations int
	}{
		{0, false, 1},
		{4, false, 5},
		{5, false, 6},
		{6, true, 6},
	}

	for i, tt := range tests {
		ctx := parse(t, "a = b + c;", compilation.Options{MaxAnalysisIterations: 5})
		a := NewAnalyzer(ctx)
		left := tt.passes
		a.rewrites = []Rewrite{countdown{left: &left}}

		err := a.Statement(ctx.Statements()[0])
		var bound *serrors.BoundExceededError
		if got := errors.As(err, &bound); got != tt.fails {
			t.Fatalf("tests[%d] - %d rewriting passes wrong. expected failure=%t, got=%v", i, tt.passes, tt.fails, err)
		}
		if a.stats.Iterations != tt.iterations {
			t.Errorf("tests[%d] - iterations wrong. expected=%d, got=%d", i, tt.iterations, a.stats.Iterations)
		}
	}
}

func TestCallArgumentsLogTodo(t *testing.T) {
	ctx := parse(t, "a = sin(b + c) + cos(d);", compilation.Options{})
	if err := Analyze(ctx); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	todos := ctx.Diagnostics.Filter(diagnostics.DiagnosticTodo)
	if len(todos) != 1 {
		t.Fatalf("todo count wrong. expected=1, got=%d", len(todos))
	}
	if got := ctx.Tree.Format(ctx.Statements()[0]); got != "a = sin((b + c)) + cos(d)" {
		t.Errorf("call arguments rewritten. got=%q", got)
	}
}
