package transform

import (
	"errors"
	"testing"

	"github.com/orizon-lang/stackscript/internal/ast"
	"github.com/orizon-lang/stackscript/internal/compilation"
	serrors "github.com/orizon-lang/stackscript/internal/errors"
	"github.com/orizon-lang/stackscript/internal/lexer"
	"github.com/orizon-lang/stackscript/internal/parser"
)

const inputs = "#input b 0 NUMERIC\n#input c 4 NUMERIC\n#input d 8 NUMERIC\n"

func parse(t *testing.T, source string) *compilation.Context {
	t.Helper()

	res, err := lexer.Tokenize(inputs+source, "test.ss")
	if err != nil {
		t.Fatalf("tokenize %q failed: %v", source, err)
	}
	ctx, err := compilation.New("test.ss", source, compilation.Options{})
	if err != nil {
		t.Fatalf("context for %q failed: %v", source, err)
	}
	ctx.Load(res)
	if err := parser.Parse(ctx); err != nil {
		t.Fatalf("parse %q failed: %v", source, err)
	}
	return ctx
}

func TestTransform(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{
			"for (i = 0; i < 10; i = i + 1) (a = i;);",
			"{i = 0} while (i < 10) (a = i; i = i + 1)",
		},
		{
			"switch (b) (case 1: a = 1; case 2: a = 2; default: a = 3;);",
			"if (b = 1) then (a = 1; jump switch_end_1); if (b = 2) then (a = 2; jump switch_end_1); a = 3; switch_end_1:",
		},
		{
			"switch (b) (case 1: a = 1; case 2: a = 2;);",
			"if (b = 1) then (a = 1; jump switch_end_1); if (b = 2) then (a = 2); switch_end_1:",
		},
		{
			"switch (b) (case 1: a = 1;);",
			"if (b = 1) then (a = 1)",
		},
		{
			"switch (b) (default: a = 3;);",
			"a = 3",
		},
		{
			"switch (b + c) (case d * 2: (a = 1; a = a + 1;));",
			"if ((b + c) = (d * 2)) then (a = 1; a = a + 1)",
		},
		{
			"while (b > 0) (switch (b) (case 1: b = 0; default: b = b - 1;););",
			"while (b > 0) (if (b = 1) then (b = 0; jump switch_end_1); b = b - 1; switch_end_1:)",
		},
		{
			"switch (b) (case 1: for (i = 0; i < c; i = i + 1) (a = i;););",
			"if (b = 1) then ({i = 0} while (i < c) (a = i; i = i + 1))",
		},
		{
			"a = ((b + c));",
			"a = (b + c)",
		},
		{
			"a = b + c;",
			"a = b + c",
		},
	}

	for i, tt := range tests {
		ctx := parse(t, tt.input)
		if err := Transform(ctx); err != nil {
			t.Fatalf("tests[%d] - Transform(%q) failed: %v", i, tt.input, err)
		}
		if got := ctx.Tree.Format(ctx.Tree.Root()); got != tt.expected {
			t.Errorf("tests[%d] - transform of %q wrong.\nexpected=%q\ngot=     %q", i, tt.input, tt.expected, got)
		}
		if err := ctx.Tree.Validate(); err != nil {
			t.Errorf("tests[%d] - tree of %q invalid: %v", i, tt.input, err)
		}

		left := ctx.Tree.Count(ctx.Tree.Root(), func(n *ast.Node) bool {
			return n.Kind == ast.KindSwitch || n.Kind == ast.KindFor || n.Kind == ast.KindCase || n.Kind == ast.KindDefault
		})
		if left != 0 {
			t.Errorf("tests[%d] - %d switch/for nodes left", i, left)
		}
	}
}

func TestForBecomesWhile(t *testing.T) {
	ctx := parse(t, "for (i = 0; i < 10; i = i + 1) (a = i;);")
	stats, err := Run(ctx)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if stats.Loops != 1 {
		t.Errorf("loop count wrong. expected=1, got=%d", stats.Loops)
	}

	w := ctx.Statements()[0]
	if ctx.Tree.Kind(w) != ast.KindWhile {
		t.Fatalf("statement kind wrong. expected=%s, got=%s", ast.KindWhile, ctx.Tree.Kind(w))
	}

	deps := ctx.Tree.DependsOn(w)
	if len(deps) != 1 || ctx.Tree.Format(deps[0]) != "i = 0" {
		t.Fatalf("while dependencies wrong. got=%d", len(deps))
	}

	children := ctx.Tree.Children(w)
	if len(children) != 2 {
		t.Fatalf("while children wrong. expected=2, got=%d", len(children))
	}
	if got := ctx.Tree.Format(children[0]); got != "i < 10" {
		t.Errorf("condition wrong. expected=%q, got=%q", "i < 10", got)
	}
	body := ctx.Tree.Children(children[1])
	if len(body) != 2 || ctx.Tree.Format(body[1]) != "i = i + 1" {
		t.Errorf("body must end with the iterator. got=%q", ctx.Tree.Format(children[1]))
	}
}

func TestSwitchBookkeeping(t *testing.T) {
	ctx := parse(t, "switch (b) (case 1: a = 1; case 2: a = 2; default: a = 3;);")
	if err := Transform(ctx); err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	if got := ctx.Jumps["switch_end_1"]; got != 2 {
		t.Errorf("jump count wrong. expected=2, got=%d", got)
	}

	b, ok := ctx.Variables.Lookup("b")
	if !ok {
		t.Fatalf("variable b missing")
	}
	if got := b.ReferenceCount(); got != 2 {
		t.Errorf("b reference count wrong. expected=2, got=%d", got)
	}
}

func TestMalformedShapes(t *testing.T) {
	tests := []struct {
		build func(tree *ast.Tree) ast.NodeID
		code  int
	}{
		{
			func(tree *ast.Tree) ast.NodeID {
				sw := tree.New(ast.KindSwitch)
				tree.AppendChild(sw, tree.New(ast.KindCondition))
				return sw
			},
			serrors.CodeMalformedSwitch,
		},
		{
			func(tree *ast.Tree) ast.NodeID {
				sw := tree.New(ast.KindSwitch)
				tree.AppendChild(sw, tree.New(ast.KindCondition))
				tree.AppendChild(sw, tree.New(ast.KindDefault))
				tree.AppendChild(sw, tree.New(ast.KindDefault))
				return sw
			},
			serrors.CodeMalformedSwitch,
		},
		{
			func(tree *ast.Tree) ast.NodeID {
				f := tree.New(ast.KindFor)
				tree.AppendChild(f, tree.New(ast.KindCondition))
				tree.AppendChild(f, tree.New(ast.KindWhileBody))
				return f
			},
			serrors.CodeMalformedFor,
		},
	}

	for i, tt := range tests {
		ctx := parse(t, "a = 1;")
		ctx.Tree.AppendChild(ctx.Tree.Root(), tt.build(ctx.Tree))

		err := Transform(ctx)
		var se *serrors.StandardError
		if !errors.As(err, &se) {
			t.Fatalf("tests[%d] - expected a StandardError, got=%v", i, err)
		}
		if se.Code != tt.code || se.Category != serrors.CategoryInvariant {
			t.Errorf("tests[%d] - error wrong. expected code=%d, got=%s", i, tt.code, se)
		}
		if ctx.IsOK() {
			t.Errorf("tests[%d] - error was not logged", i)
		}
	}
}
