package parser

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/orizon-lang/stackscript/internal/ast"
	"github.com/orizon-lang/stackscript/internal/compilation"
	"github.com/orizon-lang/stackscript/internal/diagnostics"
	serrors "github.com/orizon-lang/stackscript/internal/errors"
	"github.com/orizon-lang/stackscript/internal/lexer"
	"github.com/orizon-lang/stackscript/internal/registry"
)

const inputs = "#input b 0 NUMERIC\n#input c 4 NUMERIC\n#input v 8 16\n"

func parse(source string, opts compilation.Options) (*compilation.Context, error) {
	res, err := lexer.Tokenize(inputs+source, "test.ss")
	if err != nil {
		return nil, err
	}
	ctx, err := compilation.New("test.ss", source, opts)
	if err != nil {
		return nil, err
	}
	ctx.Load(res)
	return ctx, Parse(ctx)
}

func TestFindNextStatement(t *testing.T) {
	res, err := lexer.Tokenize("a = (b; c); ; if (b > 0) then (a = 1;); yield; while (b) (b = 0;) debug(b);", "test.ss")
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}

	tests := []struct {
		kind  StatementKind
		start int
		end   int
		next  int
	}{
		{StatementAssignment, 0, 7, 8},
		{StatementIf, 9, 22, 23},
		{StatementYield, 23, 24, 25},
		{StatementWhile, 25, 35, 35},
		{StatementCall, 35, 39, 40},
		{StatementNone, 40, 40, 40},
	}

	pos := 0
	for i, tt := range tests {
		st, err := FindNextStatement(res.Tokens, pos)
		if err != nil {
			t.Fatalf("tests[%d] - FindNextStatement(%d) failed: %v", i, pos, err)
		}
		if st != (Statement{Kind: tt.kind, Start: tt.start, End: tt.end, Next: tt.next}) {
			t.Fatalf("tests[%d] - statement wrong. expected=%s[%d:%d]->%d, got=%s[%d:%d]->%d",
				i, tt.kind, tt.start, tt.end, tt.next, st.Kind, st.Start, st.End, st.Next)
		}
		pos = st.Next
	}
}

func TestParseShapes(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a = 1 + 2 * 3;", "a = 1 + 2 * 3"},
		{"a = b.x + c[b + 1];", "a = b.x + c[b + 1]"},
		{"a = -2 * b;", "a = -2 * b"},
		{"a = -1 * b;", "a = - 1 * b"},
		{"a = max(-1, b);", "a = max((- 1), b)"},
		{"a = max(sin(b), 3);", "a = max(sin(b), 3)"},
		{"a = sin(b + c);", "a = sin((b + c))"},
		{"a = (b, c);", "a = (b, c)"},
		{"a = PI * b;", "a = PI * b"},
		{"debug(b);", "debug(b)"},
		{"push(b); a = pop();", "push(b); a = pop"},
		{"yield;", "yield"},
		{"if (b > 0) then (a = 1;) else (a = 2;);", "if (b > 0) then (a = 1) else (a = 2)"},
		{"if (b >= c) else (a = 2;);", "if (b >= c) else (a = 2)"},
		{"while (b > 0) (b = b - 1;);", "while (b > 0) (b = b - 1)"},
		{"for (i = 0; i < 10; i = i + 1) (a = i;);", "for (i = 0; i < 10; i = i + 1) (a = i)"},
	}

	for i, tt := range tests {
		ctx, err := parse(tt.input, compilation.Options{})
		if err != nil {
			t.Fatalf("tests[%d] - parse %q failed: %v", i, tt.input, err)
		}
		if got := ctx.Tree.Format(ctx.Tree.Root()); got != tt.expected {
			t.Errorf("tests[%d] - parse of %q wrong.\nexpected=%q\ngot=     %q", i, tt.input, tt.expected, got)
		}
		if err := ctx.Tree.Validate(); err != nil {
			t.Errorf("tests[%d] - tree of %q invalid: %v", i, tt.input, err)
		}
	}
}

func TestAssignmentShape(t *testing.T) {
	ctx, err := parse("a = 1 + 2 * 3;", compilation.Options{})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	stmts := ctx.Statements()
	if len(stmts) != 1 {
		t.Fatalf("statement count wrong. expected=1, got=%d", len(stmts))
	}
	as := ctx.Tree.Node(stmts[0])
	if as.Kind != ast.KindAssignment || as.Identifier != "a" || as.Variable == nil {
		t.Fatalf("assignment wrong. got=%s %q", as.Kind, as.Identifier)
	}

	tests := []struct {
		kind  ast.Kind
		text  string
		op    registry.Op
		isVar bool
	}{
		{ast.KindParameter, "1", registry.OpValue1, false},
		{ast.KindOperation, "+", registry.OpNop, false},
		{ast.KindParameter, "2", registry.OpNop, true},
		{ast.KindOperation, "*", registry.OpNop, false},
		{ast.KindParameter, "3", registry.OpNop, true},
	}
	children := ctx.Tree.Children(stmts[0])
	if len(children) != len(tests) {
		t.Fatalf("children count wrong. expected=%d, got=%d", len(tests), len(children))
	}
	for i, tt := range tests {
		n := ctx.Tree.Node(children[i])
		if n.Kind != tt.kind || ctx.Tree.Format(children[i]) != tt.text {
			t.Errorf("children[%d] wrong. expected=%s %q, got=%s %q", i, tt.kind, tt.text, n.Kind, ctx.Tree.Format(children[i]))
		}
		if n.ConstantOp != tt.op || (n.Variable != nil) != tt.isVar {
			t.Errorf("children[%d] binding wrong. expected op=%s var=%t, got op=%s var=%v", i, tt.op, tt.isVar, n.ConstantOp, n.Variable)
		}
	}

	two, _ := ctx.Variables.Lookup("2")
	if two == nil || !two.IsConstant || two.ReferenceCount() != 1 {
		t.Errorf("constant 2 wrong. got=%v", two)
	}
}

func TestSwitchShape(t *testing.T) {
	ctx, err := parse("switch (b) (case 1: a = 1; case c + 1: (a = 2; a = a * 2;); default: a = 3;);", compilation.Options{})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sw := ctx.Statements()[0]
	kinds := []ast.Kind{ast.KindCondition, ast.KindCase, ast.KindCase, ast.KindDefault}
	children := ctx.Tree.Children(sw)
	if len(children) != len(kinds) {
		t.Fatalf("switch children wrong. expected=%d, got=%d", len(kinds), len(children))
	}
	for i, k := range kinds {
		if got := ctx.Tree.Kind(children[i]); got != k {
			t.Errorf("children[%d] - kind wrong. expected=%s, got=%s", i, k, got)
		}
	}

	second := ctx.Tree.Children(children[2])
	if len(second) != 3 || ctx.Tree.Format(second[0]) != "c + 1" {
		t.Errorf("second case wrong. got=%q", ctx.Tree.Format(children[2]))
	}
	if got := ctx.Tree.ChildCount(children[3]); got != 1 {
		t.Errorf("default statements wrong. expected=1, got=%d", got)
	}
}

func TestVectorBinding(t *testing.T) {
	ctx, err := parse("a = length(v);", compilation.Options{})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	fn := ctx.Tree.Child(ctx.Statements()[0], 0)
	arg := ctx.Tree.Node(ctx.Tree.Child(fn, 0))
	if !arg.IsVector || arg.VectorSize != 4 {
		t.Errorf("vector input wrong. expected vec4, got=%t/%d", arg.IsVector, arg.VectorSize)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input    string
		opts     compilation.Options
		code     int
		category serrors.ErrorCategory
	}{
		{"a = (b;", compilation.Options{}, serrors.CodeUnbalanced, serrors.CategorySyntax},
		{"a = b);", compilation.Options{}, serrors.CodeUnbalanced, serrors.CategorySyntax},
		{") a = b;", compilation.Options{}, serrors.CodeUnbalanced, serrors.CategorySyntax},
		{"a = 1", compilation.Options{}, serrors.CodeMalformedStatement, serrors.CategorySyntax},
		{"yield", compilation.Options{}, serrors.CodeMalformedStatement, serrors.CategorySyntax},
		{"if (b > 0);", compilation.Options{}, serrors.CodeMalformedStatement, serrors.CategorySyntax},
		{"then (a = 1;);", compilation.Options{}, serrors.CodeMalformedStatement, serrors.CategorySyntax},
		{"a = ();", compilation.Options{}, serrors.CodeMalformedStatement, serrors.CategorySyntax},
		{"a = b.;", compilation.Options{}, serrors.CodeMalformedStatement, serrors.CategorySyntax},
		{"for (i = 0; i < 1) (a = i;);", compilation.Options{}, serrors.CodeMalformedStatement, serrors.CategorySyntax},
		{"switch (b) (default: a = 1; case 1: a = 2;);", compilation.Options{}, serrors.CodeMalformedStatement, serrors.CategorySyntax},
		{"switch (b) ();", compilation.Options{}, serrors.CodeMalformedStatement, serrors.CategorySyntax},
		{"a = nosuch(b);", compilation.Options{}, serrors.CodeUnknownFunction, serrors.CategorySyntax},
		{"a = clamp(b, 0, 1);", compilation.Options{TargetVersion: "1.0.0"}, serrors.CodeUnknownFunction, serrors.CategorySyntax},
		{"a = sin(b, c);", compilation.Options{}, serrors.CodeArity, serrors.CategorySyntax},
		{"a = max(b);", compilation.Options{}, serrors.CodeArity, serrors.CategorySyntax},
		{"a = b c;", compilation.Options{}, serrors.CodeOperatorSequence, serrors.CategorySyntax},
		{"a = * b;", compilation.Options{}, serrors.CodeOperatorSequence, serrors.CategorySyntax},
		{"a = b +;", compilation.Options{}, serrors.CodeOperatorSequence, serrors.CategorySyntax},
		{"1 = b;", compilation.Options{}, serrors.CodeConstantTarget, serrors.CategorySemantic},
		{"pi = b;", compilation.Options{}, serrors.CodeConstantTarget, serrors.CategorySemantic},
		{"a = sin;", compilation.Options{}, serrors.CodeUnresolved, serrors.CategorySemantic},
		{"a = b * / c;", compilation.Options{}, serrors.CodeOperatorSequence, serrors.CategorySyntax},
		{"a = b - + c;", compilation.Options{}, serrors.CodeOperatorSequence, serrors.CategorySyntax},
		{"a = b > * c;", compilation.Options{}, serrors.CodeOperatorSequence, serrors.CategorySyntax},
		{"a = sin(b * / c);", compilation.Options{}, serrors.CodeOperatorSequence, serrors.CategorySyntax},
		{"a = c[b + * 1];", compilation.Options{}, serrors.CodeOperatorSequence, serrors.CategorySyntax},
		{"if (b * / c) then (a = 1;);", compilation.Options{}, serrors.CodeOperatorSequence, serrors.CategorySyntax},
		{"a = seed(v);", compilation.Options{}, serrors.CodeVectorSize, serrors.CategorySemantic},
	}

	for i, tt := range tests {
		ctx, err := parse(tt.input, tt.opts)
		var se *serrors.StandardError
		if !errors.As(err, &se) {
			t.Fatalf("tests[%d] - parse %q expected a StandardError, got=%v", i, tt.input, err)
		}
		if se.Code != tt.code || se.Category != tt.category {
			t.Errorf("tests[%d] - error of %q wrong. expected=%s:%d, got=%s", i, tt.input, tt.category, tt.code, se)
		}
		if ctx.IsOK() {
			t.Errorf("tests[%d] - error of %q was not logged", i, tt.input)
		}
	}
}

func TestPrefixOperatorsFollowOperators(t *testing.T) {
	sources := []string{
		"a = b * - c;",
		"a = b - - c;",
		"a = - - b;",
		"a = b & ! c;",
		"a = ! b;",
	}

	for i, src := range sources {
		if _, err := parse(src, compilation.Options{}); err != nil {
			t.Errorf("tests[%d] - parse %q failed: %v", i, src, err)
		}
	}
}

func TestUnassignedIdentifierWarns(t *testing.T) {
	ctx, err := parse("a = w / 2; e = w + 1;", compilation.Options{})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !ctx.IsOK() {
		t.Errorf("an unassigned identifier must not fail the compilation")
	}

	warnings := ctx.Diagnostics.Filter(diagnostics.DiagnosticWarning)
	if len(warnings) != 1 {
		t.Fatalf("warning count wrong. expected=1, got=%d", len(warnings))
	}
	if expected := "identifier 'w' is never assigned"; warnings[0].Message != expected {
		t.Errorf("warning wrong. expected=%q, got=%q", expected, warnings[0].Message)
	}
	if warnings[0].Line != 4 {
		t.Errorf("warning line wrong. expected=4, got=%d", warnings[0].Line)
	}
}

func TestConcurrentParseMatchesSequential(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 64; i++ {
		fmt.Fprintf(&b, "x%d = b * %d + sin(c - x%d);\n", i, i+2, (i+63)%64)
		if i%8 == 0 {
			fmt.Fprintf(&b, "if (x%d > c) then (b = b - 1;) else (c = max(c, %d););\n", i, i)
		}
	}
	source := b.String()

	seq, err := parse(source, compilation.Options{})
	if err != nil {
		t.Fatalf("sequential parse failed: %v", err)
	}
	want := seq.Tree.Format(seq.Tree.Root())

	for run := 0; run < 5; run++ {
		con, err := parse(source, compilation.Options{ConcurrentParse: true, Workers: 8})
		if err != nil {
			t.Fatalf("run %d - concurrent parse failed: %v", run, err)
		}
		if got := con.Tree.Format(con.Tree.Root()); got != want {
			t.Fatalf("run %d - concurrent tree differs.\nexpected=%q\ngot=     %q", run, want, got)
		}
		if err := con.Tree.Validate(); err != nil {
			t.Fatalf("run %d - concurrent tree invalid: %v", run, err)
		}

		for _, sv := range seq.Variables.Variables() {
			cv, ok := con.Variables.Lookup(sv.Name)
			if !ok || cv.ReferenceCount() != sv.ReferenceCount() {
				t.Errorf("run %d - variable %s wrong. expected=%s, got=%v", run, sv.Name, sv, cv)
			}
		}
	}
}

func TestConcurrentParseReportsFirstError(t *testing.T) {
	source := "a = b;\nc = sin(b, b);\nd = q;\n"
	_, err := parse(source, compilation.Options{ConcurrentParse: true, Workers: 4})
	var se *serrors.StandardError
	if !errors.As(err, &se) {
		t.Fatalf("expected a StandardError, got=%v", err)
	}
	if se.Code != serrors.CodeArity {
		t.Errorf("first error wrong. expected code=%d, got=%s", serrors.CodeArity, se)
	}
}
