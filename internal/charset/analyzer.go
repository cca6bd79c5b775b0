package charset

import (
	"strconv"
	"unicode"

	"github.com/0x4d5352/regaudit/internal/ast"
	"github.com/0x4d5352/regaudit/internal/flags"
)

// Analyzer computes FirstChars and LastChars boundary sets. Both are
// overapproximations: whenever a string matched by the subtree starts
// (or ends) with a code point, that code point is in the returned set,
// unless the set is Unknown.
type Analyzer struct {
	flags flags.Flags
}

// New returns an analyzer configured for the pattern's modifier flags.
// The u flag switches \d, \w and \s to their Unicode interpretations.
func New(f flags.Flags) *Analyzer {
	return &Analyzer{flags: f}
}

// FirstChars returns the set of code points a match of n can begin with.
func (a *Analyzer) FirstChars(n ast.Node) Set {
	v := &boundaryVisitor{Base: ast.Base[Set]{Neutral: Unknown()}, flags: a.flags, first: true}
	return ast.Visit[Set](v, n)
}

// LastChars returns the set of code points a match of n can end with.
func (a *Analyzer) LastChars(n ast.Node) Set {
	v := &boundaryVisitor{Base: ast.Base[Set]{Neutral: Unknown()}, flags: a.flags, first: false}
	return ast.Visit[Set](v, n)
}

// boundaryVisitor walks one direction. Unhandled variants fall through to the
// Unknown neutral, which is always sound.
type boundaryVisitor struct {
	ast.Base[Set]
	flags flags.Flags
	first bool
}

func (v *boundaryVisitor) visit(n ast.Node) Set { return ast.Visit[Set](v, n) }

func (v *boundaryVisitor) VisitRegex(n *ast.Regex) Set { return v.visit(n.Pattern) }

func (v *boundaryVisitor) VisitSequence(n *ast.Sequence) Set {
	children := n.Children
	set := Empty()
	if v.first {
		for _, c := range children {
			set = set.Union(v.visit(c))
			if !Nullable(c) {
				return set
			}
		}
	} else {
		for i := len(children) - 1; i >= 0; i-- {
			set = set.Union(v.visit(children[i]))
			if !Nullable(children[i]) {
				return set
			}
		}
	}
	return set
}

func (v *boundaryVisitor) VisitAlternation(n *ast.Alternation) Set {
	set := Empty()
	for _, alt := range n.Alternatives {
		set = set.Union(v.visit(alt))
	}
	return set
}

func (v *boundaryVisitor) VisitGroup(n *ast.Group) Set {
	if n.IsLookaround() {
		return Empty()
	}
	return v.visit(n.Child)
}

func (v *boundaryVisitor) VisitQuantifier(n *ast.Quantifier) Set {
	return v.visit(n.Child)
}

func (v *boundaryVisitor) VisitLiteral(n *ast.Literal) Set {
	if n.Value == "" {
		return Empty()
	}
	runes := []rune(n.Value)
	if v.first {
		return Single(runes[0])
	}
	return Single(runes[len(runes)-1])
}

func (v *boundaryVisitor) VisitCharLiteral(n *ast.CharLiteral) Set {
	if n.CodePoint < 0 {
		return Unknown()
	}
	return Single(n.CodePoint)
}

func (v *boundaryVisitor) VisitCharType(n *ast.CharType) Set {
	return CharTypeSet(n.Value, v.flags.Unicode)
}

// VisitDot returns Unknown regardless of the s flag: the newline contract of
// the dot is deliberately not tracked.
func (v *boundaryVisitor) VisitDot(*ast.Dot) Set { return Unknown() }

func (v *boundaryVisitor) VisitAnchor(*ast.Anchor) Set                     { return Empty() }
func (v *boundaryVisitor) VisitAssertion(*ast.Assertion) Set               { return Empty() }
func (v *boundaryVisitor) VisitKeep(*ast.Keep) Set                         { return Empty() }
func (v *boundaryVisitor) VisitComment(*ast.Comment) Set                   { return Empty() }
func (v *boundaryVisitor) VisitCallout(*ast.Callout) Set                   { return Empty() }
func (v *boundaryVisitor) VisitScriptRun(*ast.ScriptRun) Set               { return Empty() }
func (v *boundaryVisitor) VisitDefine(*ast.Define) Set                     { return Empty() }
func (v *boundaryVisitor) VisitLimitMatch(*ast.LimitMatch) Set             { return Empty() }
func (v *boundaryVisitor) VisitPcreVerb(*ast.PcreVerb) Set                 { return Empty() }
func (v *boundaryVisitor) VisitVersionCondition(*ast.VersionCondition) Set { return Empty() }

func (v *boundaryVisitor) VisitControlChar(n *ast.ControlChar) Set {
	return Single(n.CodePoint)
}

func (v *boundaryVisitor) VisitUnicode(n *ast.Unicode) Set {
	cp, err := strconv.ParseInt(n.Code, 16, 32)
	if err != nil || cp > int64(MaxCodePoint) {
		return Unknown()
	}
	return Single(rune(cp))
}

func (v *boundaryVisitor) VisitUnicodeProp(n *ast.UnicodeProp) Set {
	return PropertySet(n.Prop)
}

func (v *boundaryVisitor) VisitPosixClass(n *ast.PosixClass) Set {
	set := PosixSet(n.Name)
	if n.Negated {
		return set.Complement()
	}
	return set
}

func (v *boundaryVisitor) VisitCharClass(n *ast.CharClass) Set {
	set := v.classParts(n.Expression)
	if n.IsNegated {
		// Complementing is exact when every member is known; a class with
		// an Unknown member stays Unknown.
		return set.Complement()
	}
	return set
}

func (v *boundaryVisitor) classParts(n ast.Node) Set {
	switch t := n.(type) {
	case *ast.Sequence:
		set := Empty()
		for _, c := range t.Children {
			set = set.Union(v.classParts(c))
		}
		return set
	case *ast.Alternation:
		set := Empty()
		for _, c := range t.Alternatives {
			set = set.Union(v.classParts(c))
		}
		return set
	case *ast.Literal:
		set := Empty()
		for _, r := range t.Value {
			set = set.Union(Single(r))
		}
		return set
	case *ast.Range:
		lo, okLo := EndpointCodePoint(t.Start)
		hi, okHi := EndpointCodePoint(t.End)
		if !okLo || !okHi {
			return Unknown()
		}
		return Span(lo, hi)
	case *ast.ClassOperation:
		left, right := v.classParts(t.Left), v.classParts(t.Right)
		if t.Kind == ast.ClassSubtraction {
			return left.Subtract(right)
		}
		return left.Intersect(right)
	default:
		return v.visit(n)
	}
}

func (v *boundaryVisitor) VisitRange(n *ast.Range) Set {
	lo, okLo := EndpointCodePoint(n.Start)
	hi, okHi := EndpointCodePoint(n.End)
	if !okLo || !okHi {
		return Unknown()
	}
	return Span(lo, hi)
}

func (v *boundaryVisitor) VisitClassOperation(n *ast.ClassOperation) Set {
	return v.classParts(n)
}

func (v *boundaryVisitor) VisitConditional(n *ast.Conditional) Set {
	return v.visit(n.Yes).Union(v.visit(n.No))
}

// Backrefs, subroutines, unresolved named escapes: the matched text is not
// statically known.
func (v *boundaryVisitor) VisitBackref(*ast.Backref) Set           { return Unknown() }
func (v *boundaryVisitor) VisitSubroutine(*ast.Subroutine) Set     { return Unknown() }
func (v *boundaryVisitor) VisitUnicodeNamed(*ast.UnicodeNamed) Set { return Unknown() }

// EndpointCodePoint extracts the code point of a range endpoint. The second
// result is false when the node is not a single-character endpoint.
func EndpointCodePoint(n ast.Node) (rune, bool) {
	switch t := n.(type) {
	case *ast.Literal:
		runes := []rune(t.Value)
		if len(runes) != 1 {
			return 0, false
		}
		return runes[0], true
	case *ast.CharLiteral:
		if t.CodePoint < 0 {
			return 0, false
		}
		return t.CodePoint, true
	case *ast.Unicode:
		cp, err := strconv.ParseInt(t.Code, 16, 32)
		if err != nil || cp > int64(MaxCodePoint) {
			return 0, false
		}
		return rune(cp), true
	case *ast.ControlChar:
		return t.CodePoint, true
	}
	return 0, false
}

// Nullable reports whether n can match the empty string. Zero-width
// constructs are nullable; backrefs are treated as nullable because the
// referenced group may have captured nothing.
func Nullable(n ast.Node) bool {
	switch t := n.(type) {
	case *ast.Regex:
		return Nullable(t.Pattern)
	case *ast.Literal:
		return t.Value == ""
	case *ast.Sequence:
		for _, c := range t.Children {
			if !Nullable(c) {
				return false
			}
		}
		return true
	case *ast.Alternation:
		for _, c := range t.Alternatives {
			if Nullable(c) {
				return true
			}
		}
		return false
	case *ast.Group:
		if t.IsLookaround() {
			return true
		}
		return Nullable(t.Child)
	case *ast.Quantifier:
		return t.CanMatchEmpty() || Nullable(t.Child)
	case *ast.Conditional:
		return Nullable(t.Yes) || Nullable(t.No)
	case *ast.Anchor, *ast.Assertion, *ast.Keep, *ast.Comment, *ast.Callout,
		*ast.PcreVerb, *ast.Define, *ast.LimitMatch, *ast.ScriptRun,
		*ast.VersionCondition, *ast.Backref:
		return true
	}
	return false
}

// --- well-known sets ---

var (
	asciiDigit = Span('0', '9')
	asciiWord  = FromIntervals([]Interval{{'0', '9'}, {'A', 'Z'}, {'_', '_'}, {'a', 'z'}})
	asciiSpace = FromIntervals([]Interval{{0x09, 0x0D}, {' ', ' '}})

	horizSpace = FromIntervals([]Interval{
		{0x09, 0x09}, {0x20, 0x20}, {0xA0, 0xA0}, {0x1680, 0x1680},
		{0x2000, 0x200A}, {0x202F, 0x202F}, {0x205F, 0x205F}, {0x3000, 0x3000},
	})
	vertSpace = FromIntervals([]Interval{{0x0A, 0x0D}, {0x85, 0x85}, {0x2028, 0x2029}})
)

// CharTypeSet returns the set for a shorthand class character. Under the
// u flag, d/w/s use their Unicode interpretations.
func CharTypeSet(c byte, unicodeMode bool) Set {
	switch c {
	case 'd':
		if unicodeMode {
			return FromRangeTable(unicode.Nd)
		}
		return asciiDigit
	case 'D':
		return CharTypeSet('d', unicodeMode).Complement()
	case 'w':
		if unicodeMode {
			return FromRangeTable(unicode.L).Union(FromRangeTable(unicode.N)).Union(Single('_'))
		}
		return asciiWord
	case 'W':
		return CharTypeSet('w', unicodeMode).Complement()
	case 's':
		if unicodeMode {
			return FromRangeTable(unicode.White_Space)
		}
		return asciiSpace
	case 'S':
		return CharTypeSet('s', unicodeMode).Complement()
	case 'h':
		return horizSpace
	case 'H':
		return horizSpace.Complement()
	case 'v':
		return vertSpace
	case 'V':
		return vertSpace.Complement()
	case 'R':
		// \R matches a newline sequence; every such sequence both starts and
		// ends with a vertical-space code point.
		return vertSpace
	case 'N':
		return Single('\n').Complement()
	}
	return Unknown()
}

// PosixSet returns the ASCII set for a POSIX class name.
func PosixSet(name string) Set {
	switch name {
	case ast.PosixAlnum:
		return FromIntervals([]Interval{{'0', '9'}, {'A', 'Z'}, {'a', 'z'}})
	case ast.PosixAlpha:
		return FromIntervals([]Interval{{'A', 'Z'}, {'a', 'z'}})
	case ast.PosixAscii:
		return Span(0, 0x7F)
	case ast.PosixBlank:
		return FromIntervals([]Interval{{0x09, 0x09}, {' ', ' '}})
	case ast.PosixCntrl:
		return FromIntervals([]Interval{{0x00, 0x1F}, {0x7F, 0x7F}})
	case ast.PosixDigit:
		return asciiDigit
	case ast.PosixGraph:
		return Span(0x21, 0x7E)
	case ast.PosixLower:
		return Span('a', 'z')
	case ast.PosixPrint:
		return Span(0x20, 0x7E)
	case ast.PosixPunct:
		return FromIntervals([]Interval{{0x21, 0x2F}, {0x3A, 0x40}, {0x5B, 0x60}, {0x7B, 0x7E}})
	case ast.PosixSpace:
		return asciiSpace
	case ast.PosixUpper:
		return Span('A', 'Z')
	case ast.PosixWord:
		return asciiWord
	case ast.PosixXdigit:
		return FromIntervals([]Interval{{'0', '9'}, {'A', 'F'}, {'a', 'f'}})
	}
	return Unknown()
}

// PropertySet resolves a \p{...} property against the Go unicode tables.
// A leading ^ negates. Unrecognized properties yield Unknown.
func PropertySet(prop string) Set {
	negated := false
	if len(prop) > 0 && prop[0] == '^' {
		negated = true
		prop = prop[1:]
	}
	var rt *unicode.RangeTable
	if t, ok := unicode.Categories[prop]; ok {
		rt = t
	} else if t, ok := unicode.Scripts[prop]; ok {
		rt = t
	} else if t, ok := unicode.Properties[prop]; ok {
		rt = t
	}
	if rt == nil {
		return Unknown()
	}
	set := FromRangeTable(rt)
	if negated {
		return set.Complement()
	}
	return set
}
