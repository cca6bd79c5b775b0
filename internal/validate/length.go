package validate

import "github.com/0x4d5352/regaudit/internal/ast"

// lengthRange is the inductive (min, max) match-length walk used to judge
// lookbehind bodies. Bounded is false when the maximum is unbounded;
// Offender then names the earliest node that made it so.
type lengthRange struct {
	Min      int
	Max      int
	Bounded  bool
	Offender ast.Node
}

func bounded(min, max int) lengthRange { return lengthRange{Min: min, Max: max, Bounded: true} }

func unboundedAt(min int, offender ast.Node) lengthRange {
	return lengthRange{Min: min, Bounded: false, Offender: offender}
}

func matchLength(n ast.Node) lengthRange {
	switch t := n.(type) {
	case *ast.Regex:
		return matchLength(t.Pattern)
	case *ast.Literal:
		l := len([]rune(t.Value))
		return bounded(l, l)
	case *ast.CharLiteral, *ast.CharType, *ast.Dot, *ast.CharClass, *ast.Range,
		*ast.ClassOperation, *ast.Unicode, *ast.UnicodeProp, *ast.UnicodeNamed,
		*ast.ControlChar, *ast.PosixClass:
		return bounded(1, 1)
	case *ast.Anchor, *ast.Assertion, *ast.Keep, *ast.Comment, *ast.Callout,
		*ast.PcreVerb, *ast.Define, *ast.LimitMatch, *ast.VersionCondition:
		return bounded(0, 0)
	case *ast.Sequence:
		total := bounded(0, 0)
		for _, c := range t.Children {
			cr := matchLength(c)
			total.Min += cr.Min
			if total.Bounded && cr.Bounded {
				total.Max += cr.Max
			} else if total.Bounded {
				total.Bounded = false
				total.Offender = cr.Offender
			}
		}
		return total
	case *ast.Group:
		if t.IsLookaround() {
			return bounded(0, 0)
		}
		return matchLength(t.Child)
	case *ast.ScriptRun:
		// The run body is kept as raw text; its length is not tracked.
		return unboundedAt(0, t)
	case *ast.Quantifier:
		cr := matchLength(t.Child)
		b := t.Bounds()
		min := b.Min * cr.Min
		if !cr.Bounded {
			if !b.Unbounded && b.Max == 0 {
				return bounded(0, 0)
			}
			return unboundedAt(min, cr.Offender)
		}
		if b.Unbounded {
			if cr.Max > 0 {
				return unboundedAt(min, t)
			}
			// Repeating a zero-length child adds nothing.
			return bounded(min, 0)
		}
		return bounded(min, b.Max*cr.Max)
	case *ast.Alternation:
		if len(t.Alternatives) == 0 {
			return bounded(0, 0)
		}
		out := matchLength(t.Alternatives[0])
		for _, alt := range t.Alternatives[1:] {
			ar := matchLength(alt)
			if ar.Min < out.Min {
				out.Min = ar.Min
			}
			if out.Bounded && ar.Bounded {
				if ar.Max > out.Max {
					out.Max = ar.Max
				}
			} else if out.Bounded {
				out.Bounded = false
				out.Offender = ar.Offender
			}
		}
		return out
	case *ast.Conditional:
		yr, nr := matchLength(t.Yes), matchLength(t.No)
		out := lengthRange{Min: yr.Min, Bounded: true}
		if nr.Min < out.Min {
			out.Min = nr.Min
		}
		switch {
		case yr.Bounded && nr.Bounded:
			out.Max = yr.Max
			if nr.Max > out.Max {
				out.Max = nr.Max
			}
		case yr.Bounded:
			out.Bounded = false
			out.Offender = nr.Offender
		default:
			out.Bounded = false
			out.Offender = yr.Offender
		}
		return out
	case *ast.Backref, *ast.Subroutine:
		return unboundedAt(0, n)
	}
	return bounded(0, 0)
}
