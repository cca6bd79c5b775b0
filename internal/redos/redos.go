// Package redos profiles a pattern for Regular-expression Denial of Service
// risk. It assigns a severity, explains the finding, and points at the
// vulnerable fragment when one exists.
package redos

import (
	"github.com/samber/lo"

	"github.com/0x4d5352/regaudit/internal/ast"
	"github.com/0x4d5352/regaudit/internal/charset"
	"github.com/0x4d5352/regaudit/internal/flags"
)

// Severity grades the backtracking risk. The ordering is total: a higher
// value always dominates when findings combine.
type Severity int

// Severity levels
const (
	Safe Severity = iota
	Low
	Unknown
	Medium
	High
	Critical
)

func (s Severity) String() string {
	switch s {
	case Safe:
		return "safe"
	case Low:
		return "low"
	case Unknown:
		return "unknown"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	}
	return "invalid"
}

// Report is the profiler output.
type Report struct {
	Severity           Severity
	Recommendations    []string
	VulnerableFragment string
}

// maxBoundedRepetition is the bound above which a counted quantifier is
// considered a slowdown risk on its own.
const maxBoundedRepetition = 1000

// Profile analyzes the pattern. source is the original pattern text and is
// only used to quote the vulnerable fragment; it may be empty.
func Profile(re *ast.Regex, source string) Report {
	p := &profiler{
		Base:     ast.Base[Severity]{Neutral: Safe},
		analyzer: charset.New(flags.Parse(re.Flags)),
		source:   source,
	}
	sev := p.visit(re)
	return Report{
		Severity:           sev,
		Recommendations:    lo.Uniq(p.recommendations),
		VulnerableFragment: p.fragment,
	}
}

type profiler struct {
	ast.Base[Severity]
	analyzer *charset.Analyzer
	source   string

	recommendations []string
	fragment        string

	unboundedQuantifierDepth int
	totalQuantifierDepth     int
	inAtomicGroup            bool
	prev, next               ast.Node
}

func (p *profiler) visit(n ast.Node) Severity { return ast.Visit[Severity](p, n) }

func (p *profiler) recommend(msg string) {
	p.recommendations = append(p.recommendations, msg)
}

func (p *profiler) markFragment(n ast.Node) {
	if p.fragment != "" || p.source == "" {
		return
	}
	pos := n.Span()
	if pos.Start >= 0 && pos.End <= len(p.source) && pos.Start < pos.End {
		p.fragment = p.source[pos.Start:pos.End]
	}
}

func maxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

func (p *profiler) VisitRegex(n *ast.Regex) Severity { return p.visit(n.Pattern) }

func (p *profiler) VisitSequence(n *ast.Sequence) Severity {
	savedPrev, savedNext := p.prev, p.next
	defer func() { p.prev, p.next = savedPrev, savedNext }()
	sev := Safe
	for i, c := range n.Children {
		p.prev, p.next = nil, nil
		if i > 0 {
			p.prev = n.Children[i-1]
		}
		if i+1 < len(n.Children) {
			p.next = n.Children[i+1]
		}
		sev = maxSeverity(sev, p.visit(c))
	}
	return sev
}

func (p *profiler) VisitAlternation(n *ast.Alternation) Severity {
	sev := Safe
	for _, alt := range n.Alternatives {
		sev = maxSeverity(sev, p.visit(alt))
	}
	return sev
}

func (p *profiler) VisitGroup(n *ast.Group) Severity {
	if n.Kind == ast.GroupAtomic {
		return p.visitProtected(n.Child)
	}
	return p.visitChild(n.Child)
}

// visitChild descends into a nested scope. Sibling context belongs to the
// enclosing sequence and must not leak into it.
func (p *profiler) visitChild(n ast.Node) Severity {
	savedPrev, savedNext := p.prev, p.next
	p.prev, p.next = nil, nil
	sev := p.visit(n)
	p.prev, p.next = savedPrev, savedNext
	return sev
}

// visitProtected analyzes a subtree whose matches cannot be backtracked
// into. Whatever it contains, the damage is capped at Low.
func (p *profiler) visitProtected(n ast.Node) Severity {
	saved := p.inAtomicGroup
	p.inAtomicGroup = true
	sev := p.visitChild(n)
	p.inAtomicGroup = saved
	if sev > Low {
		return Low
	}
	return sev
}

func (p *profiler) VisitConditional(n *ast.Conditional) Severity {
	sev := p.visit(n.Condition)
	sev = maxSeverity(sev, p.visit(n.Yes))
	return maxSeverity(sev, p.visit(n.No))
}

func (p *profiler) VisitDefine(n *ast.Define) Severity { return p.visit(n.Content) }

func (p *profiler) VisitSubroutine(n *ast.Subroutine) Severity {
	p.recommend("Recursive subroutine calls cannot be proven to terminate quickly; bound the recursion or avoid it")
	return Medium
}

func (p *profiler) VisitQuantifier(n *ast.Quantifier) Severity {
	b := n.Bounds()
	p.totalQuantifierDepth++
	defer func() { p.totalQuantifierDepth-- }()

	if n.Greediness == ast.Possessive || endsWithControlVerb(n.Child) {
		return p.visitProtected(n.Child)
	}

	if !b.Unbounded || p.inAtomicGroup {
		return p.visitBounded(n, b)
	}
	return p.visitUnbounded(n)
}

func (p *profiler) visitBounded(n *ast.Quantifier, b ast.Bounds) Severity {
	sev := p.visitChild(n.Child)
	if !b.Unbounded && b.Max > maxBoundedRepetition {
		p.recommend("Bounded repetition with a very large maximum behaves like an unbounded one under attack input")
		sev = maxSeverity(sev, Low)
	}
	if p.totalQuantifierDepth > 1 {
		p.recommend("Nested bounded quantifiers multiply the repetition count")
		sev = maxSeverity(sev, Low)
	}
	return sev
}

func (p *profiler) visitUnbounded(n *ast.Quantifier) Severity {
	nested := p.unboundedQuantifierDepth > 0

	p.unboundedQuantifierDepth++
	childSev := p.visitChild(n.Child)
	p.unboundedQuantifierDepth--

	sev := childSev
	if nested {
		if p.hasDisjointNeighbor(n) {
			p.recommend("Nested unbounded quantifiers are separated by a disjoint boundary; backtracking stays linear")
			return maxSeverity(sev, Low)
		}
		p.recommend("Nested unbounded quantifiers detected; make the inner group atomic or possessive")
		p.recommend("Star Height > 1: the same input can be consumed at two repetition levels")
		p.markFragment(n)
		return Critical
	}

	if childSev >= High {
		// An already dangerous body repeated without bound compounds.
		p.markFragment(n)
		return Critical
	}
	if p.overlappingAlternatives(n) {
		p.recommend("Alternation branches inside an unbounded quantifier can match the same text; make them disjoint")
		p.markFragment(n)
		return Critical
	}
	if p.backrefLoop(n.Child) {
		p.recommend("A backreference repeated together with its capturing group forces quadratic re-matching")
		p.markFragment(n)
		return Critical
	}

	if p.next != nil && !charset.Nullable(p.next) && !p.fences(n.Child, p.next, true) {
		p.recommend("An unbounded quantifier can backtrack against what follows it; anchor or possessify it")
		return maxSeverity(sev, Medium)
	}
	return maxSeverity(sev, Low)
}

// hasDisjointNeighbor checks whether a sibling boundary provably fences the
// quantifier off from re-consuming the same input.
func (p *profiler) hasDisjointNeighbor(n *ast.Quantifier) bool {
	if p.next != nil && p.fences(n.Child, p.next, true) {
		return true
	}
	if p.prev != nil && p.fences(n.Child, p.prev, false) {
		return true
	}
	return false
}

// fences proves that sep separates the quantified body from the rest of the
// input: sep always consumes something, and the facing boundary sets are
// disjoint. Zero-width or optional separators fence nothing.
func (p *profiler) fences(body, sep ast.Node, sepAfter bool) bool {
	if charset.Nullable(sep) {
		return false
	}
	var a, b charset.Set
	if sepAfter {
		a, b = p.analyzer.LastChars(body), p.analyzer.FirstChars(sep)
	} else {
		a, b = p.analyzer.LastChars(sep), p.analyzer.FirstChars(body)
	}
	if a.IsUnknown() || b.IsUnknown() || a.IsEmpty() || b.IsEmpty() {
		return false
	}
	return !a.Intersects(b)
}

// overlappingAlternatives reports whether the quantified body is an
// alternation with two branches able to start with the same character.
func (p *profiler) overlappingAlternatives(n *ast.Quantifier) bool {
	alt, ok := unwrapGroups(n.Child).(*ast.Alternation)
	if !ok {
		return false
	}
	for i := 0; i < len(alt.Alternatives); i++ {
		fi := p.analyzer.FirstChars(alt.Alternatives[i])
		if fi.IsUnknown() {
			continue
		}
		for j := i + 1; j < len(alt.Alternatives); j++ {
			fj := p.analyzer.FirstChars(alt.Alternatives[j])
			if fj.IsUnknown() {
				continue
			}
			if fi.Intersects(fj) {
				return true
			}
		}
	}
	return false
}

// backrefLoop reports whether the subtree repeats both a variable-length
// capturing group and a backreference.
func (p *profiler) backrefLoop(n ast.Node) bool {
	hasBackref := containsNode(n, func(c ast.Node) bool {
		_, ok := c.(*ast.Backref)
		return ok
	})
	if !hasBackref {
		return false
	}
	return containsNode(n, func(c ast.Node) bool {
		g, ok := c.(*ast.Group)
		return ok && g.IsCapturing() && variableLength(g.Child)
	})
}

// variableLength approximates whether a subtree can match strings of more
// than one length.
func variableLength(n ast.Node) bool {
	return containsNode(n, func(c ast.Node) bool {
		switch t := c.(type) {
		case *ast.Quantifier:
			b := t.Bounds()
			return b.Unbounded || b.Min != b.Max
		case *ast.Alternation:
			return true
		case *ast.Backref, *ast.Subroutine:
			return true
		}
		return false
	})
}

// endsWithControlVerb reports whether the subtree's final element is a
// backtracking control verb, which fences the repetition like an atomic
// group would.
func endsWithControlVerb(n ast.Node) bool {
	switch t := n.(type) {
	case *ast.PcreVerb:
		switch t.Name() {
		case "COMMIT", "PRUNE", "SKIP":
			return true
		}
	case *ast.Sequence:
		if len(t.Children) > 0 {
			return endsWithControlVerb(t.Children[len(t.Children)-1])
		}
	case *ast.Group:
		return endsWithControlVerb(t.Child)
	}
	return false
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

func containsNode(n ast.Node, pred func(ast.Node) bool) bool {
	if pred(n) {
		return true
	}
	for _, c := range ast.Children(n) {
		if containsNode(c, pred) {
			return true
		}
	}
	return false
}
