package optimize

import (
	"sort"
	"strconv"

	"github.com/0x4d5352/regaudit/internal/ast"
	"github.com/0x4d5352/regaudit/internal/charset"
)

// rewriteCharClass normalizes a bracket expression: single code points are
// sorted, adjacent points coalesce into ranges of three or more, overlapping
// ranges merge, and covered singles disappear. Classes holding set
// operations are left untouched.
func (o *optimizer) rewriteCharClass(n *ast.CharClass) ast.Node {
	if containsNode(n.Expression, func(c ast.Node) bool {
		_, ok := c.(*ast.ClassOperation)
		return ok
	}) {
		return n
	}

	var singles []rune
	var ranges []charset.Interval
	var others []ast.Node
	for _, part := range classParts(n.Expression) {
		switch t := part.(type) {
		case *ast.Literal:
			if t.IsRaw {
				others = append(others, part)
				continue
			}
			for _, r := range t.Value {
				singles = append(singles, r)
			}
		case *ast.CharLiteral:
			if t.CodePoint < 0 {
				others = append(others, part)
				continue
			}
			singles = append(singles, t.CodePoint)
		case *ast.ControlChar:
			singles = append(singles, t.CodePoint)
		case *ast.Range:
			lo, okLo := charset.EndpointCodePoint(t.Start)
			hi, okHi := charset.EndpointCodePoint(t.End)
			if !okLo || !okHi || lo > hi {
				others = append(others, part)
				continue
			}
			ranges = append(ranges, charset.Interval{Lo: lo, Hi: hi})
		default:
			others = append(others, part)
		}
	}

	mergedRanges, keptSingles := o.combineClassSet(singles, ranges)

	if shorthand := o.classShorthand(n, mergedRanges, keptSingles, others); shorthand != nil {
		o.changed = true
		return shorthand
	}

	expr := o.buildClassExpression(mergedRanges, keptSingles, others, n.Pos)
	if nodeHash(expr) == nodeHash(n.Expression) {
		return n
	}
	o.changed = true
	return &ast.CharClass{Expression: expr, IsNegated: n.IsNegated, Pos: n.Pos}
}

// combineClassSet merges explicit ranges, drops singles covered by a range,
// and promotes runs of three or more consecutive singles to ranges
// (category-respecting when the ranges option is set).
func (o *optimizer) combineClassSet(singles []rune, ranges []charset.Interval) ([]charset.Interval, []rune) {
	rangeSet := charset.Empty()
	for _, iv := range ranges {
		rangeSet = rangeSet.Union(charset.Span(iv.Lo, iv.Hi))
	}

	uniq := map[rune]bool{}
	var kept []rune
	for _, r := range singles {
		if uniq[r] || rangeSet.Contains(r) {
			continue
		}
		uniq[r] = true
		kept = append(kept, r)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i] < kept[j] })

	merged := append([]charset.Interval(nil), rangeSet.Intervals()...)
	merged, kept = absorbAdjacent(merged, kept, o.opts.Ranges)

	var out []rune
	for i := 0; i < len(kept); {
		run := 1
		for i+run < len(kept) &&
			kept[i+run] == kept[i]+rune(run) &&
			(!o.opts.Ranges || sameClassCategory(kept[i], kept[i+run])) {
			run++
		}
		if run >= 3 {
			merged = append(merged, charset.Interval{Lo: kept[i], Hi: kept[i+run-1]})
		} else {
			out = append(out, kept[i:i+run]...)
		}
		i += run
	}
	merged = charset.FromIntervals(merged).Intervals()
	return merged, out
}

// absorbAdjacent extends existing ranges by singles that touch their ends,
// so [1-809] collapses all the way to [0-9]. With the ranges option set the
// extension never crosses an ASCII category boundary.
func absorbAdjacent(intervals []charset.Interval, singles []rune, respectCategories bool) ([]charset.Interval, []rune) {
	if len(intervals) == 0 {
		return intervals, singles
	}
	for changed := true; changed; {
		changed = false
		var rest []rune
		for _, r := range singles {
			absorbed := false
			for i := range intervals {
				switch {
				case r == intervals[i].Lo-1 && (!respectCategories || sameClassCategory(r, intervals[i].Lo)):
					intervals[i].Lo = r
					absorbed = true
				case r == intervals[i].Hi+1 && (!respectCategories || sameClassCategory(r, intervals[i].Hi)):
					intervals[i].Hi = r
					absorbed = true
				}
				if absorbed {
					break
				}
			}
			if absorbed {
				changed = true
			} else {
				rest = append(rest, r)
			}
		}
		singles = rest
		intervals = charset.FromIntervals(intervals).Intervals()
	}
	return intervals, singles
}

// sameClassCategory mirrors the ranges option: merged runs must not cross
// ASCII digit/upper/lower/other boundaries.
func sameClassCategory(a, b rune) bool {
	return classCategory(a) == classCategory(b)
}

func classCategory(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return 0
	case r >= 'A' && r <= 'Z':
		return 1
	case r >= 'a' && r <= 'z':
		return 2
	case r <= 0x7F:
		return 3
	}
	return 4
}

// classShorthand rewrites a class equal to [0-9] or [A-Za-z0-9_] into its
// shorthand escape, outside u mode and when the respective option is on.
func (o *optimizer) classShorthand(n *ast.CharClass, ranges []charset.Interval, singles []rune, others []ast.Node) ast.Node {
	if n.IsNegated || o.flags.Unicode || len(others) > 0 {
		return nil
	}
	set := charset.FromIntervals(ranges)
	for _, r := range singles {
		set = set.Union(charset.Single(r))
	}
	if o.opts.OptimizeDigits && setEquals(set, charset.CharTypeSet('d', false)) {
		return &ast.CharType{Value: 'd', Pos: n.Pos}
	}
	if o.opts.OptimizeWord && setEquals(set, charset.CharTypeSet('w', false)) {
		return &ast.CharType{Value: 'w', Pos: n.Pos}
	}
	return nil
}

func setEquals(a, b charset.Set) bool {
	return a.Subtract(b).IsEmpty() && b.Subtract(a).IsEmpty()
}

// buildClassExpression reassembles the normalized parts: character content
// in code point order first, shorthand and other parts after.
func (o *optimizer) buildClassExpression(ranges []charset.Interval, singles []rune, others []ast.Node, pos ast.Position) ast.Node {
	type charPart struct {
		key  rune
		node ast.Node
	}
	var parts []charPart
	for _, iv := range ranges {
		parts = append(parts, charPart{iv.Lo, &ast.Range{
			Start: classChar(iv.Lo, pos),
			End:   classChar(iv.Hi, pos),
			Pos:   pos,
		}})
	}
	for _, r := range singles {
		parts = append(parts, charPart{r, classChar(r, pos)})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].key < parts[j].key })

	out := make([]ast.Node, 0, len(parts)+len(others))
	for _, p := range parts {
		out = append(out, p.node)
	}
	out = append(out, others...)
	switch len(out) {
	case 0:
		return &ast.Literal{Pos: pos}
	case 1:
		return out[0]
	}
	return &ast.Sequence{Children: out, Pos: pos}
}

// classChar renders a code point as the simplest class member node.
func classChar(r rune, pos ast.Position) ast.Node {
	if r >= 0x20 && r <= 0x7E || r > 0xFF {
		return &ast.Literal{Value: string(r), Pos: pos}
	}
	return &ast.CharLiteral{
		CodePoint:    r,
		OriginalRepr: `\x{` + strconv.FormatInt(int64(r), 16) + `}`,
		Kind:         ast.CharKindUnicode,
		Pos:          pos,
	}
}

func classParts(expr ast.Node) []ast.Node {
	switch t := expr.(type) {
	case *ast.Sequence:
		return t.Children
	case *ast.Alternation:
		return t.Alternatives
	case *ast.Literal:
		if t.Value == "" {
			return nil
		}
	}
	return []ast.Node{expr}
}

