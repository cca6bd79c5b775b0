// Package lint produces best-effort, non-fatal diagnostics about a parsed
// pattern: useless flags, redundant constructs, suspicious classes, and
// quantifier nestings that invite backtracking trouble.
package lint

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/0x4d5352/regaudit/internal/ast"
	"github.com/0x4d5352/regaudit/internal/charset"
	"github.com/0x4d5352/regaudit/internal/flags"
	"github.com/0x4d5352/regaudit/internal/groups"
)

// Stable lint issue codes.
const (
	CodeFlagUselessI         = "regex.lint.flag.useless.i"
	CodeFlagUselessS         = "regex.lint.flag.useless.s"
	CodeFlagUselessM         = "regex.lint.flag.useless.m"
	CodeFlagRedundant        = "regex.lint.flag.redundant"
	CodeFlagOverride         = "regex.lint.flag.override"
	CodeGroupRedundant       = "regex.lint.group.redundant"
	CodeClassRedundant       = "regex.lint.class.redundant"
	CodeClassSuspiciousRange = "regex.lint.class.suspicious_range"
	CodeClassSuspiciousPipe  = "regex.lint.class.suspicious_pipe"
	CodeAltDuplicate         = "regex.lint.alternation.duplicate"
	CodeAltOverlap           = "regex.lint.alternation.overlap"
	CodeQuantifierNested     = "regex.lint.quantifier.nested"
	CodeQuantifierDotStar    = "regex.lint.quantifier.dot_star"
	CodeBackrefMissing       = "regex.lint.backref.missing"
	CodeAnchorImpossible     = "regex.lint.anchor.impossible"
	CodeEscapeSuspicious     = "regex.lint.escape.suspicious"
)

// Issue is one soft diagnostic. Pos is nil for pattern-wide findings.
type Issue struct {
	Code    string
	Message string
	Pos     *ast.Position
	Hint    string
}

// Messages derives the plain warning strings from a list of issues.
func Messages(issues []Issue) []string {
	return lo.Map(issues, func(i Issue, _ int) string { return i.Message })
}

// Lint walks the pattern and returns every issue found, in document order
// with pattern-wide flag findings appended last.
func Lint(re *ast.Regex) []Issue {
	l := &linter{
		flags:    flags.Parse(re.Flags),
		info:     groups.Number(re),
		analyzer: charset.New(flags.Parse(re.Flags)),
	}
	l.visit(re)
	l.flagIssues()
	return l.issues
}

type nothing struct{}

type linter struct {
	ast.Base[nothing]
	flags        flags.Flags
	info         *groups.Info
	analyzer     *charset.Analyzer
	issues       []Issue
	captureIndex int

	// pattern-wide facts for the useless-flag checks. A pattern written
	// entirely in lowercase is taken as already case-normalized, so only
	// uppercase characters count as case-sensitive.
	hasCasedChar bool
	hasBackref   bool
	hasDot       bool
	hasAnchor    bool
}

func (l *linter) visit(n ast.Node) nothing { return ast.Visit[nothing](l, n) }

func (l *linter) report(code string, pos ast.Position, hint, format string, args ...any) {
	p := pos
	l.issues = append(l.issues, Issue{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Pos:     &p,
		Hint:    hint,
	})
}

func (l *linter) reportGlobal(code, hint, format string, args ...any) {
	l.issues = append(l.issues, Issue{Code: code, Message: fmt.Sprintf(format, args...), Hint: hint})
}

// flagIssues runs after traversal, once the pattern-wide facts are known.
func (l *linter) flagIssues() {
	if l.flags.CaseInsensitive && !l.hasCasedChar && !l.hasBackref {
		l.reportGlobal(CodeFlagUselessI, "drop the i flag",
			"the i flag has no effect: the pattern contains no case-sensitive characters")
	}
	if l.flags.DotAll && !l.hasDot {
		l.reportGlobal(CodeFlagUselessS, "drop the s flag",
			"the s flag has no effect: the pattern contains no dot")
	}
	if l.flags.Multiline && !l.hasAnchor {
		l.reportGlobal(CodeFlagUselessM, "drop the m flag",
			"the m flag has no effect: the pattern contains no ^ or $ anchor")
	}
}

func (l *linter) VisitRegex(n *ast.Regex) nothing { return l.visit(n.Pattern) }

func (l *linter) VisitLiteral(n *ast.Literal) nothing {
	if !l.hasCasedChar {
		for _, r := range n.Value {
			if unicode.IsUpper(r) {
				l.hasCasedChar = true
				break
			}
		}
	}
	return nothing{}
}

func (l *linter) VisitCharLiteral(n *ast.CharLiteral) nothing {
	if n.CodePoint >= 0 && unicode.IsUpper(n.CodePoint) {
		l.hasCasedChar = true
	}
	switch n.Kind {
	case ast.CharKindOctal, ast.CharKindOctalLegacy:
		if n.CodePoint < 0 || n.CodePoint > 0xFF {
			l.report(CodeEscapeSuspicious, n.Pos, "",
				"octal escape %s is out of range", n.OriginalRepr)
		}
	case ast.CharKindUnicodeNamed:
		if n.CodePoint < 0 {
			l.report(CodeEscapeSuspicious, n.Pos, "",
				"named escape %s does not resolve", n.OriginalRepr)
		}
	}
	return nothing{}
}

func (l *linter) VisitUnicode(n *ast.Unicode) nothing {
	if _, ok := unicodeValue(n.Code); !ok {
		l.report(CodeEscapeSuspicious, n.Pos, "the maximum code point is 10FFFF",
			"code point \\x{%s} is out of range", n.Code)
	}
	return nothing{}
}

func (l *linter) VisitUnicodeNamed(n *ast.UnicodeNamed) nothing {
	l.report(CodeEscapeSuspicious, n.Pos, `use the \N{U+hhhh} form`,
		"named escape \\N{%s} does not resolve", n.Name)
	return nothing{}
}

func unicodeValue(code string) (rune, bool) {
	var cp int64
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= '0' && c <= '9':
			cp = cp<<4 | int64(c-'0')
		case c >= 'a' && c <= 'f':
			cp = cp<<4 | int64(c-'a'+10)
		case c >= 'A' && c <= 'F':
			cp = cp<<4 | int64(c-'A'+10)
		default:
			return 0, false
		}
		if cp > 0x10FFFF {
			return 0, false
		}
	}
	if code == "" {
		return 0, false
	}
	return rune(cp), true
}

func (l *linter) VisitDot(*ast.Dot) nothing {
	l.hasDot = true
	return nothing{}
}

func (l *linter) VisitAnchor(*ast.Anchor) nothing {
	l.hasAnchor = true
	return nothing{}
}

func (l *linter) VisitBackref(n *ast.Backref) nothing {
	l.hasBackref = true
	ref := groups.ParseRef(n.Ref)
	switch ref.Kind {
	case groups.RefNumeric:
		if ref.Number < 1 || ref.Number > l.info.MaxGroupNumber {
			l.report(CodeBackrefMissing, n.Pos, "",
				"backreference %s refers to a group that does not exist", n.Ref)
		}
	case groups.RefRelative:
		if _, ok := l.info.Resolve(ref.Number, l.captureIndex); !ok {
			l.report(CodeBackrefMissing, n.Pos, "",
				"backreference %s refers to a group that does not exist", n.Ref)
		}
	case groups.RefNamed:
		if !l.info.HasName(ref.Name) {
			l.report(CodeBackrefMissing, n.Pos, "",
				"backreference to unknown group name %q", ref.Name)
		}
	}
	return nothing{}
}

func (l *linter) VisitGroup(n *ast.Group) nothing {
	if n.IsCapturing() {
		l.captureIndex++
	}
	switch n.Kind {
	case ast.GroupNonCapturing:
		if isSingleAtom(n.Child) {
			l.report(CodeGroupRedundant, n.Pos, "remove the group",
				"non-capturing group around a single element is redundant")
		}
	case ast.GroupInlineFlags:
		l.checkInlineFlags(n)
	}
	return l.visit(n.Child)
}

// isSingleAtom reports whether n is one indivisible match element.
func isSingleAtom(n ast.Node) bool {
	switch t := n.(type) {
	case *ast.Literal:
		return len([]rune(t.Value)) == 1
	case *ast.CharLiteral, *ast.CharType, *ast.Dot, *ast.CharClass,
		*ast.Unicode, *ast.UnicodeProp, *ast.ControlChar:
		return true
	}
	return false
}

func (l *linter) checkInlineFlags(n *ast.Group) {
	set, unset, _ := strings.Cut(n.LocalFlags, "-")
	for i := 0; i < len(set); i++ {
		if flags.Has(l.flags.String(), set[i]) {
			l.report(CodeFlagRedundant, n.Pos, "",
				"inline flag %c is already set globally", set[i])
		}
	}
	for i := 0; i < len(unset); i++ {
		if flags.Has(l.flags.String(), unset[i]) {
			l.report(CodeFlagOverride, n.Pos, "",
				"inline modifier unsets the globally set %c flag", unset[i])
		} else {
			l.report(CodeFlagRedundant, n.Pos, "",
				"inline modifier unsets flag %c, which is not set", unset[i])
		}
	}
}

func (l *linter) VisitSequence(n *ast.Sequence) nothing {
	for i, c := range n.Children {
		l.checkAnchorPlacement(n, i)
		l.visit(c)
	}
	return nothing{}
}

// checkAnchorPlacement flags ^ with a non-empty prefix and $ with a
// non-empty tail, both impossible outside multiline mode.
func (l *linter) checkAnchorPlacement(seq *ast.Sequence, i int) {
	anchor, ok := seq.Children[i].(*ast.Anchor)
	if !ok || l.flags.Multiline {
		return
	}
	switch anchor.Value {
	case "^":
		for _, before := range seq.Children[:i] {
			if !charset.Nullable(before) {
				l.report(CodeAnchorImpossible, anchor.Pos, "",
					"^ cannot match: it is preceded by content")
				return
			}
		}
	case "$":
		for _, after := range seq.Children[i+1:] {
			if !charset.Nullable(after) {
				l.report(CodeAnchorImpossible, anchor.Pos, "",
					"$ cannot match: it is followed by content")
				return
			}
		}
	}
}

func (l *linter) VisitAlternation(n *ast.Alternation) nothing {
	l.checkDuplicateBranches(n)
	for _, alt := range n.Alternatives {
		l.visit(alt)
	}
	return nothing{}
}

// checkDuplicateBranches compares literal-only branches for exact repeats.
func (l *linter) checkDuplicateBranches(n *ast.Alternation) {
	seen := map[string]bool{}
	for _, alt := range n.Alternatives {
		lit, ok := alt.(*ast.Literal)
		if !ok {
			continue
		}
		if seen[lit.Value] {
			l.report(CodeAltDuplicate, lit.Pos, "remove the duplicate branch",
				"alternation branch %q is duplicated", lit.Value)
			continue
		}
		seen[lit.Value] = true
	}
}

func (l *linter) VisitQuantifier(n *ast.Quantifier) nothing {
	b := n.Bounds()
	if b.Unbounded {
		l.checkOverlappingBranches(n)
		l.checkDotStar(n)
	}
	if b.Unbounded || b.Min == 0 || b.Max > 1 {
		l.checkNestedQuantifier(n)
	}
	return l.visit(n.Child)
}

// checkOverlappingBranches flags alternation branches with intersecting
// first-character sets under an unbounded quantifier.
func (l *linter) checkOverlappingBranches(n *ast.Quantifier) {
	alt, ok := unwrapGroups(n.Child).(*ast.Alternation)
	if !ok {
		return
	}
	for i := 0; i < len(alt.Alternatives); i++ {
		for j := i + 1; j < len(alt.Alternatives); j++ {
			a, b := alt.Alternatives[i], alt.Alternatives[j]
			fa, fb := l.analyzer.FirstChars(a), l.analyzer.FirstChars(b)
			if fa.IsUnknown() || fb.IsUnknown() {
				continue
			}
			if fa.Intersects(fb) {
				l.report(CodeAltOverlap, alt.Pos,
					"make the alternatives start with distinct characters",
					"alternation branches overlap inside an unbounded quantifier")
				return
			}
		}
	}
}

// checkDotStar flags an unbounded quantifier whose body contains an
// unbounded dot repetition.
func (l *linter) checkDotStar(n *ast.Quantifier) {
	if containsDotStar(n.Child) {
		l.report(CodeQuantifierDotStar, n.Pos,
			"replace .* with a bounded or negated-class repetition",
			"unbounded quantifier wraps an unbounded dot repetition")
	}
}

func containsDotStar(n ast.Node) bool {
	if q, ok := n.(*ast.Quantifier); ok && q.IsUnbounded() {
		if _, isDot := unwrapGroups(q.Child).(*ast.Dot); isDot {
			return true
		}
	}
	for _, c := range ast.Children(n) {
		if containsDotStar(c) {
			return true
		}
	}
	return false
}

// checkNestedQuantifier flags a repeatable quantifier whose immediate body
// holds a variable quantifier. An adjacent sibling whose boundary set is
// provably disjoint from the inner body suppresses the finding.
func (l *linter) checkNestedQuantifier(outer *ast.Quantifier) {
	inner, sep := findInnerQuantifier(unwrapGroups(outer.Child))
	if inner == nil {
		return
	}
	ib := inner.Bounds()
	if !ib.Unbounded && ib.Min == ib.Max {
		return
	}
	if sep != nil && l.isExclusiveSeparator(sep, inner) {
		return
	}
	l.report(CodeQuantifierNested, inner.Pos,
		"use an atomic group or a possessive quantifier",
		"variable quantifier nested inside a repeatable quantifier")
}

// findInnerQuantifier locates the immediate inner quantifier of a
// quantified body, along with the sibling that separates it from the
// repetition boundary, if any.
func findInnerQuantifier(body ast.Node) (*ast.Quantifier, ast.Node) {
	switch t := body.(type) {
	case *ast.Quantifier:
		return t, nil
	case *ast.Sequence:
		for i, c := range t.Children {
			if q, ok := unwrapGroups(c).(*ast.Quantifier); ok {
				var sep ast.Node
				if i+1 < len(t.Children) {
					sep = t.Children[i+1]
				} else if i > 0 {
					sep = t.Children[i-1]
				}
				return q, sep
			}
		}
	}
	return nil, nil
}

func (l *linter) isExclusiveSeparator(sep ast.Node, inner *ast.Quantifier) bool {
	sepFirst := l.analyzer.FirstChars(sep)
	sepLast := l.analyzer.LastChars(sep)
	innerFirst := l.analyzer.FirstChars(inner)
	innerLast := l.analyzer.LastChars(inner)
	if sepFirst.IsUnknown() || sepLast.IsUnknown() || innerFirst.IsUnknown() || innerLast.IsUnknown() {
		return false
	}
	return !innerLast.Intersects(sepFirst) && !sepLast.Intersects(innerFirst)
}

func unwrapGroups(n ast.Node) ast.Node {
	for {
		g, ok := n.(*ast.Group)
		if !ok || g.IsLookaround() {
			return n
		}
		n = g.Child
	}
}

func (l *linter) VisitCharClass(n *ast.CharClass) nothing {
	l.checkClassContents(n)
	return l.visit(n.Expression)
}

func (l *linter) VisitRange(n *ast.Range) nothing {
	l.checkSuspiciousRange(n)
	return nothing{}
}

// checkSuspiciousRange flags ASCII ranges that silently span category
// boundaries, like [A-z].
func (l *linter) checkSuspiciousRange(n *ast.Range) {
	lo, okLo := charset.EndpointCodePoint(n.Start)
	hi, okHi := charset.EndpointCodePoint(n.End)
	if !okLo || !okHi || lo > hi || lo > 0x7F || hi > 0x7F {
		return
	}
	if asciiCategory(lo) != asciiCategory(hi) {
		l.report(CodeClassSuspiciousRange, n.Pos,
			"split the range at the category boundary",
			"range %c-%c spans characters of different kinds", lo, hi)
	}
}

func asciiCategory(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return 0
	case r >= 'A' && r <= 'Z':
		return 1
	case r >= 'a' && r <= 'z':
		return 2
	}
	return 3
}

// checkClassContents inspects the flat parts of a class for duplicates,
// covered elements and literal pipes.
func (l *linter) checkClassContents(n *ast.CharClass) {
	parts := classParts(n.Expression)
	l.checkRedundantParts(parts)
	l.checkSuspiciousPipe(n, parts)
}

func classParts(expr ast.Node) []ast.Node {
	switch t := expr.(type) {
	case *ast.Sequence:
		return t.Children
	case *ast.Alternation:
		return t.Alternatives
	}
	return []ast.Node{expr}
}

func (l *linter) checkRedundantParts(parts []ast.Node) {
	type coverage struct {
		set  charset.Set
		node ast.Node
	}
	var seen []coverage
	for _, part := range parts {
		var set charset.Set
		switch t := part.(type) {
		case *ast.Literal:
			if len([]rune(t.Value)) != 1 {
				continue
			}
			set = charset.Single([]rune(t.Value)[0])
		case *ast.CharLiteral:
			if t.CodePoint < 0 {
				continue
			}
			set = charset.Single(t.CodePoint)
		case *ast.Range:
			lo, okLo := charset.EndpointCodePoint(t.Start)
			hi, okHi := charset.EndpointCodePoint(t.End)
			if !okLo || !okHi || lo > hi {
				continue
			}
			set = charset.Span(lo, hi)
		default:
			continue
		}
		covered := false
		for _, prev := range seen {
			if set.Subtract(prev.set).IsEmpty() {
				covered = true
				break
			}
		}
		if covered {
			l.report(CodeClassRedundant, part.Span(), "remove the element",
				"class element is already covered by an earlier element")
			continue
		}
		seen = append(seen, coverage{set: set, node: part})
	}
}

// checkSuspiciousPipe flags [a|b|c]-style classes where the pipes are
// almost certainly meant as alternation.
func (l *linter) checkSuspiciousPipe(n *ast.CharClass, parts []ast.Node) {
	pipes, letters := 0, 0
	for _, part := range parts {
		lit, ok := part.(*ast.Literal)
		if !ok {
			continue
		}
		for _, r := range lit.Value {
			switch {
			case r == '|':
				pipes++
			case r < 0x80 && (unicode.IsUpper(r) || unicode.IsLower(r)):
				letters++
			}
		}
	}
	if pipes >= 1 && letters >= 4 {
		l.report(CodeClassSuspiciousPipe, n.Pos,
			"use (a|b|c) for alternation; inside [] the pipe is literal",
			"character class contains literal | between letters")
	}
}
