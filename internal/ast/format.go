package ast

import (
	"fmt"
	"strings"

	"github.com/orizon-lang/stackscript/internal/registry"
)

// Format renders the subtree at id as compact source-like text. It is used
// in diagnostics and tests:
//
//	a = 1 + (2 * 3)
//	push(g(x)); a = f(pop, 3)
//	while (i < 10) (i = i + 1)
//
// Dependencies are shown in braces ahead of their owner.
func (t *Tree) Format(id NodeID) string {
	var b strings.Builder
	t.format(&b, id)
	return b.String()
}

func (t *Tree) format(b *strings.Builder, id NodeID) {
	n := t.Node(id)

	if len(n.depends) > 0 {
		b.WriteByte('{')
		t.formatList(b, n.depends, "; ")
		b.WriteString("} ")
	}

	switch n.Kind {
	case KindRoot, KindIfThen, KindIfElse, KindWhileBody, KindDefault:
		t.formatList(b, n.children, "; ")

	case KindAssignment:
		b.WriteString(n.Identifier)
		t.formatIndexers(b, n)
		b.WriteString(" = ")
		t.formatList(b, n.children, " ")

	case KindParameter:
		if n.Negated {
			b.WriteByte('-')
		}
		b.WriteString(n.Identifier)
		t.formatIndexers(b, n)

	case KindOperation:
		b.WriteString(n.Token.Symbol())

	case KindCompound:
		b.WriteByte('(')
		if n.IsVector {
			t.formatList(b, n.children, ", ")
		} else {
			t.formatList(b, n.children, " ")
		}
		b.WriteByte(')')
		t.formatIndexers(b, n)

	case KindFunction:
		b.WriteString(n.Identifier)
		if n.IsPop() && len(n.children) == 0 {
			t.formatIndexers(b, n)
			break
		}
		b.WriteByte('(')
		if n.Function != nil && n.Function.Op == registry.OpPush {
			t.formatList(b, n.children, " ")
		} else {
			t.formatList(b, n.children, ", ")
		}
		b.WriteByte(')')
		t.formatIndexers(b, n)

	case KindIndex:
		if n.Identifier != "" {
			b.WriteByte('.')
			b.WriteString(n.Identifier)
		} else {
			b.WriteByte('[')
			t.formatList(b, n.children, " ")
			b.WriteByte(']')
		}

	case KindCondition:
		t.formatList(b, n.children, " ")

	case KindIfThenElse:
		for _, c := range n.children {
			switch t.Node(c).Kind {
			case KindCondition:
				b.WriteString("if (")
				t.format(b, c)
				b.WriteByte(')')
			case KindIfThen:
				b.WriteString(" then (")
				t.format(b, c)
				b.WriteByte(')')
			case KindIfElse:
				b.WriteString(" else (")
				t.format(b, c)
				b.WriteByte(')')
			default:
				b.WriteString(" ?")
				t.format(b, c)
			}
		}

	case KindWhile:
		b.WriteString("while")
		t.formatBlocks(b, n.children)

	case KindFor:
		b.WriteString("for (")
		last := len(n.children) - 1
		t.formatList(b, n.children[:maxInt(last, 0)], "; ")
		b.WriteString(")")
		if last >= 0 {
			b.WriteString(" (")
			t.format(b, n.children[last])
			b.WriteByte(')')
		}

	case KindSwitch:
		b.WriteString("switch")
		if len(n.children) > 0 {
			b.WriteString(" (")
			t.format(b, n.children[0])
			b.WriteString(") (")
			t.formatList(b, n.children[1:], " ")
			b.WriteByte(')')
		}

	case KindCase:
		b.WriteString("case ")
		if len(n.children) > 0 {
			t.format(b, n.children[0])
			b.WriteString(": ")
			t.formatList(b, n.children[1:], "; ")
		}

	case KindYield:
		b.WriteString("yield")

	case KindJumpTo:
		b.WriteString("jump ")
		b.WriteString(n.Identifier)

	case KindLabel:
		b.WriteString(n.Identifier)
		b.WriteByte(':')

	default:
		b.WriteString(n.Kind.String())
	}
}

func (t *Tree) formatList(b *strings.Builder, ids []NodeID, sep string) {
	for i, c := range ids {
		if i > 0 {
			b.WriteString(sep)
		}
		t.format(b, c)
	}
}

func (t *Tree) formatBlocks(b *strings.Builder, ids []NodeID) {
	for _, c := range ids {
		b.WriteString(" (")
		t.format(b, c)
		b.WriteByte(')')
	}
}

func (t *Tree) formatIndexers(b *strings.Builder, n *Node) {
	for _, x := range n.indexers {
		t.format(b, x)
	}
}

// Dump renders the subtree at id one node per line, indented by depth, with
// the payload that matters for each kind.
func (t *Tree) Dump(id NodeID) string {
	var b strings.Builder
	t.dump(&b, id, 0, "")
	return b.String()
}

func (t *Tree) dump(b *strings.Builder, id NodeID, depth int, role string) {
	n := t.Node(id)

	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(role)
	b.WriteString(n.Kind.String())

	switch n.Kind {
	case KindOperation:
		fmt.Fprintf(b, " %s", n.Token.Symbol())
	case KindParameter:
		fmt.Fprintf(b, " %s", n.String())
	default:
		if n.Identifier != "" {
			fmt.Fprintf(b, " %s", n.Identifier)
		}
	}

	var flags []string
	if n.Variable != nil {
		flags = append(flags, fmt.Sprintf("var=%s#%d", n.Variable.Name, n.Variable.ID))
	}
	if n.ConstantOp != 0 {
		flags = append(flags, "op="+n.ConstantOp.String())
	} else if n.IsConstant {
		flags = append(flags, "const")
	}
	if n.IsVector {
		flags = append(flags, fmt.Sprintf("vec%d", n.VectorSize))
	}
	if n.SkipCompilation {
		flags = append(flags, "skip")
	}
	if n.LinkedPush != NoNode {
		flags = append(flags, fmt.Sprintf("push=%d", n.LinkedPush))
	}
	if len(flags) > 0 {
		fmt.Fprintf(b, " [%s]", strings.Join(flags, " "))
	}
	b.WriteByte('\n')

	for _, d := range n.depends {
		t.dump(b, d, depth+1, "depends: ")
	}
	for _, x := range n.indexers {
		t.dump(b, x, depth+1, "index: ")
	}
	for _, c := range n.children {
		t.dump(b, c, depth+1, "")
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
