package flatten

import (
	"errors"
	"testing"

	"github.com/orizon-lang/stackscript/internal/analysis"
	"github.com/orizon-lang/stackscript/internal/ast"
	"github.com/orizon-lang/stackscript/internal/compilation"
	serrors "github.com/orizon-lang/stackscript/internal/errors"
	"github.com/orizon-lang/stackscript/internal/lexer"
	"github.com/orizon-lang/stackscript/internal/parser"
	"github.com/orizon-lang/stackscript/internal/registry"
	"github.com/orizon-lang/stackscript/internal/transform"
)

const inputs = "#input b 0 NUMERIC\n#input c 4 NUMERIC\n#input d 8 NUMERIC\n#input e 12 NUMERIC\n"

// prepare runs every stage before flatten on source.
func prepare(t *testing.T, source string) *compilation.Context {
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
	if err := analysis.Analyze(ctx); err != nil {
		t.Fatalf("analysis of %q failed: %v", source, err)
	}
	if err := transform.Transform(ctx); err != nil {
		t.Fatalf("transform of %q failed: %v", source, err)
	}
	return ctx
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a = max(sin(b), 3);", "push(sin(b)); a = max(pop, 3)"},
		{"a = b + c;", "a = b + c"},
		{"a = b * (c + d);", "push(c + d); a = b * pop"},
		{"a = 1 + 2 * 3;", "push(2 * 3); a = 1 + pop"},
		{"a = (b + c) * (d + e);", "push(d + e); push(b + c); a = pop * pop"},
		{"a = sin((b + c) * d);", "push(b + c); push(pop * d); a = sin(pop)"},
		{"a = sin(cos(b));", "push(cos(b)); a = sin(pop)"},
		{"a = max(sin(b), cos(c));", "push(cos(c)); push(sin(b)); a = max(pop, pop)"},
		{"a = length((b, c));", "a = length((b, c))"},
		{"a = length((b + 1, c));", "push(b + 1); pushv(pop, c); a = length(pop)"},
		{"a = (b, c);", "a = (b, c)"},
		{"x = (b, c); a = x.x;", "x = (b, c); a = x.x"},
		{"a = b[(c + 1)] + 1;", "push(c + 1); a = b[pop] + 1"},
		{"a = b[(c + 1)] * (d + e);", "push(d + e); push(c + 1); a = b[pop] * pop"},
		{"a = b[c[(d + 1)]];", "push(d + 1); a = b[c[pop]]"},
		{"a = sin(b[(c + 1)]);", "push(c + 1); a = sin(b[pop])"},
		{"a[(b + 1)] = c;", "push(b + 1); a[pop] = c"},
		{"a = b[sin(c)];", "a = b[sin(c)]"},
		{"push(sin(b)); a = max(pop(), 3);", "push(sin(b)); a = max(pop, 3)"},
		{"debug(b + c);", "push(b + c); debug(pop)"},
		{"yield;", "yield"},
		{
			"if (b + c * 2 > d) then (a = 1;);",
			"if (b + c * 2 > d) then (a = 1)",
		},
		{
			"if ((b + c) > d) then (a = 1;) else (a = sin(cos(b)););",
			"if ({push(b + c)} pop > d) then (a = 1) else (push(cos(b)); a = sin(pop))",
		},
		{
			"if (b > 0) else (a = 2;);",
			"if (b > 0) then () else (a = 2)",
		},
		{
			"for (i = 0; i < 10; i = i + 1) (a = sin(i * 2 + 1););",
			"i = 0; while (i < 10) (push(i * 2 + 1); a = sin(pop); i = i + 1)",
		},
		{
			"switch (b) (case 1: a = 1; default: a = 2;);",
			"if (b = 1) then (a = 1; jump switch_end_1); a = 2; switch_end_1:",
		},
	}

	for i, tt := range tests {
		ctx := prepare(t, tt.input)
		if err := Flatten(ctx); err != nil {
			t.Fatalf("tests[%d] - Flatten(%q) failed: %v", i, tt.input, err)
		}
		if got := ctx.Tree.Format(ctx.Tree.Root()); got != tt.expected {
			t.Errorf("tests[%d] - flatten of %q wrong.\nexpected=%q\ngot=     %q", i, tt.input, tt.expected, got)
		}
		if err := ctx.Tree.Validate(); err != nil {
			t.Errorf("tests[%d] - tree of %q invalid: %v", i, tt.input, err)
		}

		linked := ctx.Tree.Count(ctx.Tree.Root(), func(n *ast.Node) bool { return n.LinkedPush != ast.NoNode })
		if linked != 0 {
			t.Errorf("tests[%d] - %d pops still linked", i, linked)
		}
	}
}

// simulate runs a straight line statement list against a stack depth
// counter: each statement consumes the pops it contains, then a push
// statement adds one value.
func simulate(t *testing.T, tree *ast.Tree, list []ast.NodeID) int {
	t.Helper()

	depth := 0
	for _, id := range list {
		n := tree.Node(id)
		pops := tree.Count(id, func(c *ast.Node) bool { return c.IsPop() })
		nested := tree.Count(id, func(c *ast.Node) bool { return c.IsPush() && c.ID() != id })
		if nested != 0 {
			t.Errorf("statement %q holds %d nested pushes", tree.Format(id), nested)
		}

		depth -= pops
		if depth < 0 {
			t.Errorf("statement %q pops an empty stack", tree.Format(id))
			return depth
		}
		if n.IsPush() {
			depth++
		}
	}
	return depth
}

func TestStackDiscipline(t *testing.T) {
	sources := []string{
		"a = max(sin(b), 3);",
		"a = (b + c) * (d + e) + sin(b * (c + d));",
		"a = sin((b + c) * d) - cos(max(b, (c, d, e)));",
		"a = length((b + 1, c * (d + e), sin(b)));",
		"a = b * (c + d); f = a / (b - (c * d + e));",
		"push(sin(b)); a = max(pop(), 3);",
		"debug(max(b + c, d * (e + 1)));",
		"a = b[(c + 1)] * (d + e) + c[sin(d * (e + 1))];",
		"a[(b + 1)] = max(c[(d + e)], sin(b));",
	}

	for i, src := range sources {
		ctx := prepare(t, src)
		if err := Flatten(ctx); err != nil {
			t.Fatalf("tests[%d] - Flatten(%q) failed: %v", i, src, err)
		}
		if depth := simulate(t, ctx.Tree, ctx.Statements()); depth != 0 {
			t.Errorf("tests[%d] - %q leaves %d values on the stack: %s", i, src, depth, ctx.Tree.Format(ctx.Tree.Root()))
		}
	}
}

func TestConditionPushesStayWithCondition(t *testing.T) {
	ctx := prepare(t, "while ((b + c) > sin(d * (e + 1))) (b = b - 1;);")
	if err := Flatten(ctx); err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}

	stmts := ctx.Statements()
	if len(stmts) != 1 || ctx.Tree.Kind(stmts[0]) != ast.KindWhile {
		t.Fatalf("expected a single while, got=%q", ctx.Tree.Format(ctx.Tree.Root()))
	}
	cond := ctx.Tree.Child(stmts[0], 0)
	deps := ctx.Tree.TakeDependencies(cond)
	if len(deps) != 3 {
		t.Errorf("condition pushes wrong. expected=3, got=%d", len(deps))
	}
	if depth := simulate(t, ctx.Tree, append(deps, cond)); depth != 0 {
		t.Errorf("condition leaves %d values on the stack", depth)
	}

	w := ctx.Tree.Node(stmts[0])
	if w.Identifier == "" || ctx.Tree.Node(cond).Identifier == "" || ctx.Tree.Node(ctx.Tree.Child(stmts[0], 1)).Identifier == "" {
		t.Errorf("loop nodes need unique identifiers")
	}
}

func TestMissingThenIsSkipped(t *testing.T) {
	ctx := prepare(t, "if (b > 0) else (a = 2;);")
	if err := Flatten(ctx); err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}

	ite := ctx.Statements()[0]
	kinds := []ast.Kind{ast.KindCondition, ast.KindIfThen, ast.KindIfElse}
	children := ctx.Tree.Children(ite)
	if len(children) != len(kinds) {
		t.Fatalf("if children wrong. expected=%d, got=%d", len(kinds), len(children))
	}
	for i, k := range kinds {
		if got := ctx.Tree.Kind(children[i]); got != k {
			t.Errorf("children[%d] - kind wrong. expected=%s, got=%s", i, k, got)
		}
	}
	if !ctx.Tree.Node(children[1]).SkipCompilation {
		t.Errorf("generated then block must be skipped")
	}
}

func TestIterationBound(t *testing.T) {
	tests := []struct {
		input string
		fails bool
	}{
		{"a = b * (c + d);", true},
		{"a = b + c;", false},
	}

	for i, tt := range tests {
		ctx := prepare(t, tt.input)
		ctx.Options.MaxFlattenIterations = 0

		err := Flatten(ctx)
		var bound *serrors.BoundExceededError
		if got := errors.As(err, &bound); got != tt.fails {
			t.Fatalf("tests[%d] - %q wrong. expected failure=%t, got=%v", i, tt.input, tt.fails, err)
		}
		if tt.fails && bound.Stage != "flatten" {
			t.Errorf("tests[%d] - stage wrong. expected=%q, got=%q", i, "flatten", bound.Stage)
		}
	}
}

func TestUnexpectedStatement(t *testing.T) {
	ctx := prepare(t, "a = 1;")
	ctx.Tree.AppendChild(ctx.Tree.Root(), ctx.Tree.New(ast.KindSwitch))

	err := Flatten(ctx)
	var se *serrors.StandardError
	if !errors.As(err, &se) {
		t.Fatalf("expected a StandardError, got=%v", err)
	}
	if se.Code != serrors.CodeUnexpectedNode {
		t.Errorf("code wrong. expected=%d, got=%d", serrors.CodeUnexpectedNode, se.Code)
	}
	if ctx.IsOK() {
		t.Errorf("error was not logged")
	}
}

func TestUnscheduledPushFails(t *testing.T) {
	ctx := prepare(t, "a = 1;")
	tree := ctx.Tree
	reg := registry.Default()

	f := &flattener{
		ctx:   ctx,
		tree:  tree,
		push:  reg.ByOp(registry.OpPush),
		pushv: reg.ByOp(registry.OpPushVector),
		pop:   reg.ByOp(registry.OpPop),
	}

	sin, _ := reg.Lookup("sin")
	cos, _ := reg.Lookup("cos")

	as := tree.New(ast.KindAssignment)
	tree.Node(as).Identifier = "a"
	outer := tree.NewFunction(sin, 1)
	inner := tree.NewFunction(cos, 1)
	tree.AppendChild(as, outer)
	tree.AppendChild(outer, inner)

	slot := tree.New(ast.KindParameter)
	tree.Node(slot).Identifier = "b"
	tree.AppendChild(inner, slot)
	push := tree.NewFunction(f.push, 1)
	f.replaceWithPop(slot, push)
	tree.AppendChild(push, slot)

	_, err := f.emit(as)
	var se *serrors.StandardError
	if !errors.As(err, &se) {
		t.Fatalf("expected a StandardError, got=%v", err)
	}
	if se.Code != serrors.CodePushPop {
		t.Errorf("code wrong. expected=%d, got=%d", serrors.CodePushPop, se.Code)
	}
}
