// Package printer renders an AST back into pattern text. It is a pure fold
// over the node algebra; printing then re-parsing yields the same tree up
// to positions, which the optimizer's factorization relies on for literal
// subtrees.
package printer

import (
	"fmt"
	"strings"

	"github.com/0x4d5352/regaudit/internal/ast"
	"github.com/0x4d5352/regaudit/internal/groups"
)

// metachars must be escaped when a literal appears outside a class.
const metachars = `\^$.[]|()?*+{}`

// classMetachars must be escaped inside a class.
const classMetachars = `\]^-`

// Print renders a full pattern with delimiters and flags.
func Print(re *ast.Regex) string {
	d := string(re.Delimiter)
	return d + Node(re.Pattern) + d + re.Flags
}

// Node renders a subtree without delimiters.
func Node(n ast.Node) string {
	var b strings.Builder
	write(&b, n, false)
	return b.String()
}

func write(b *strings.Builder, n ast.Node, inClass bool) {
	switch t := n.(type) {
	case *ast.Regex:
		write(b, t.Pattern, false)
	case *ast.Sequence:
		for _, c := range t.Children {
			write(b, c, inClass)
		}
	case *ast.Alternation:
		for i, alt := range t.Alternatives {
			if i > 0 {
				b.WriteByte('|')
			}
			write(b, alt, inClass)
		}
	case *ast.Group:
		writeGroup(b, t)
	case *ast.Quantifier:
		writeQuantifier(b, t)
	case *ast.Literal:
		writeLiteral(b, t, inClass)
	case *ast.CharLiteral:
		b.WriteString(t.OriginalRepr)
	case *ast.CharType:
		b.WriteByte('\\')
		b.WriteByte(t.Value)
	case *ast.Dot:
		b.WriteByte('.')
	case *ast.Anchor:
		b.WriteString(t.Value)
	case *ast.Assertion:
		b.WriteByte('\\')
		b.WriteByte(t.Value)
	case *ast.Keep:
		b.WriteString(`\K`)
	case *ast.ControlChar:
		b.WriteString(`\c`)
		b.WriteByte(t.Char)
	case *ast.CharClass:
		b.WriteByte('[')
		if t.IsNegated {
			b.WriteByte('^')
		}
		write(b, t.Expression, true)
		b.WriteByte(']')
	case *ast.Range:
		write(b, t.Start, true)
		b.WriteByte('-')
		write(b, t.End, true)
	case *ast.ClassOperation:
		write(b, t.Left, true)
		if t.Kind == ast.ClassSubtraction {
			b.WriteString("--")
		} else {
			b.WriteString("&&")
		}
		write(b, t.Right, true)
	case *ast.Backref:
		b.WriteString(t.Ref)
	case *ast.Subroutine:
		writeSubroutine(b, t.Reference)
	case *ast.Conditional:
		b.WriteString("(?(")
		writeCondition(b, t.Condition)
		b.WriteByte(')')
		write(b, t.Yes, false)
		if !isEmptyLiteral(t.No) {
			b.WriteByte('|')
			write(b, t.No, false)
		}
		b.WriteByte(')')
	case *ast.PcreVerb:
		fmt.Fprintf(b, "(*%s)", t.Verb)
	case *ast.LimitMatch:
		fmt.Fprintf(b, "(*LIMIT_MATCH=%d)", t.Limit)
	case *ast.Callout:
		writeCallout(b, t)
	case *ast.Unicode:
		fmt.Fprintf(b, `\x{%s}`, t.Code)
	case *ast.UnicodeProp:
		fmt.Fprintf(b, `\p{%s}`, t.Prop)
	case *ast.UnicodeNamed:
		fmt.Fprintf(b, `\N{%s}`, t.Name)
	case *ast.Define:
		b.WriteString("(?(DEFINE)")
		write(b, t.Content, false)
		b.WriteByte(')')
	case *ast.Comment:
		fmt.Fprintf(b, "(?#%s)", t.Text)
	case *ast.ScriptRun:
		fmt.Fprintf(b, "(*script_run:%s)", t.Script)
	case *ast.VersionCondition:
		fmt.Fprintf(b, "VERSION%s", t.Version)
	case *ast.PosixClass:
		if t.Negated {
			fmt.Fprintf(b, "[:^%s:]", t.Name)
		} else {
			fmt.Fprintf(b, "[:%s:]", t.Name)
		}
	}
}

func writeGroup(b *strings.Builder, g *ast.Group) {
	switch g.Kind {
	case ast.GroupCapturing:
		b.WriteByte('(')
	case ast.GroupNamed:
		fmt.Fprintf(b, "(?<%s>", g.Name)
	case ast.GroupNonCapturing:
		b.WriteString("(?:")
	case ast.GroupAtomic:
		b.WriteString("(?>")
	case ast.GroupLookaheadPos:
		b.WriteString("(?=")
	case ast.GroupLookaheadNeg:
		b.WriteString("(?!")
	case ast.GroupLookbehindPos:
		b.WriteString("(?<=")
	case ast.GroupLookbehindNeg:
		b.WriteString("(?<!")
	case ast.GroupBranchReset:
		b.WriteString("(?|")
	case ast.GroupInlineFlags:
		if isEmptyLiteral(g.Child) {
			fmt.Fprintf(b, "(?%s)", g.LocalFlags)
			return
		}
		fmt.Fprintf(b, "(?%s:", g.LocalFlags)
	}
	write(b, g.Child, false)
	b.WriteByte(')')
}

func writeQuantifier(b *strings.Builder, q *ast.Quantifier) {
	if needsGroup(q.Child) {
		b.WriteString("(?:")
		write(b, q.Child, false)
		b.WriteByte(')')
	} else {
		write(b, q.Child, false)
	}
	b.WriteString(q.Repr)
	switch q.Greediness {
	case ast.Lazy:
		b.WriteByte('?')
	case ast.Possessive:
		b.WriteByte('+')
	}
}

// needsGroup reports whether a quantified child must be parenthesized to
// keep the quantifier binding to the whole of it.
func needsGroup(n ast.Node) bool {
	switch t := n.(type) {
	case *ast.Sequence, *ast.Alternation:
		return true
	case *ast.Literal:
		return !t.IsRaw && len([]rune(t.Value)) > 1
	}
	return false
}

func writeLiteral(b *strings.Builder, l *ast.Literal, inClass bool) {
	if l.IsRaw {
		b.WriteString(l.Value)
		return
	}
	special := metachars
	if inClass {
		special = classMetachars
	}
	for _, r := range l.Value {
		if r < 0x80 && strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
}

func writeSubroutine(b *strings.Builder, ref string) {
	switch {
	case ref == "R" || allDigits(ref):
		fmt.Fprintf(b, "(?%s)", ref)
	case ref[0] == '+' || ref[0] == '-':
		fmt.Fprintf(b, "(?%s)", ref)
	default:
		fmt.Fprintf(b, "(?&%s)", ref)
	}
}

func writeCondition(b *strings.Builder, cond ast.Node) {
	switch t := cond.(type) {
	case *ast.Backref:
		ref := groups.ParseRef(t.Ref)
		switch ref.Kind {
		case groups.RefNamed:
			fmt.Fprintf(b, "<%s>", ref.Name)
		case groups.RefRelative:
			fmt.Fprintf(b, "%+d", ref.Number)
		default:
			fmt.Fprintf(b, "%d", ref.Number)
		}
	case *ast.Subroutine:
		if t.Reference == "R" || strings.HasPrefix(t.Reference, "R") {
			b.WriteString(t.Reference)
		} else {
			fmt.Fprintf(b, "R&%s", t.Reference)
		}
	case *ast.VersionCondition:
		fmt.Fprintf(b, "VERSION%s", t.Version)
	default:
		// Lookaround conditions print as the group they are.
		s := Node(cond)
		// The conditional syntax supplies the outer parentheses.
		b.WriteString(strings.TrimSuffix(strings.TrimPrefix(s, "("), ")"))
	}
}

func writeCallout(b *strings.Builder, c *ast.Callout) {
	switch {
	case c.IsString:
		fmt.Fprintf(b, "(?C%q)", c.Text)
	case c.Number > 0:
		fmt.Fprintf(b, "(?C%d)", c.Number)
	default:
		b.WriteString("(?C)")
	}
}

func isEmptyLiteral(n ast.Node) bool {
	l, ok := n.(*ast.Literal)
	return ok && l.Value == ""
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
