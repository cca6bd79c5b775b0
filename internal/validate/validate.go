// Package validate checks a parsed pattern for semantic well-formedness:
// references must exist, ranges must be ordered, lookbehinds must be
// bounded. The first violation is returned as a SemanticError.
package validate

import (
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/0x4d5352/regaudit/internal/ast"
	"github.com/0x4d5352/regaudit/internal/charset"
	"github.com/0x4d5352/regaudit/internal/flags"
	"github.com/0x4d5352/regaudit/internal/groups"
)

// DefaultMaxLookbehind mirrors PCRE2's default lookbehind budget.
const DefaultMaxLookbehind = 255

// Options configures a validation run.
type Options struct {
	// MaxLookbehindLength caps the maximum match length of a lookbehind
	// body. A (*LIMIT_LOOKBEHIND=n) verb in the pattern overrides it.
	MaxLookbehindLength int

	// Oracle answers Unicode property support questions. Defaults to the
	// regexp2-backed EngineOracle.
	Oracle PropertyOracle
}

// DefaultOptions returns the standard validator configuration.
func DefaultOptions() Options {
	return Options{MaxLookbehindLength: DefaultMaxLookbehind, Oracle: EngineOracle{}}
}

// acceptedVerbs is the fixed list of recognized verb names (the part before
// ':' or '=').
var acceptedVerbs = map[string]bool{
	"ACCEPT": true, "FAIL": true, "F": true, "MARK": true, "COMMIT": true,
	"PRUNE": true, "SKIP": true, "THEN": true, "UTF": true, "UTF8": true,
	"UTF16": true, "UTF32": true, "UCP": true, "CR": true, "LF": true,
	"CRLF": true, "ANYCRLF": true, "ANY": true, "NUL": true,
	"BSR_ANYCRLF": true, "BSR_UNICODE": true, "NOTEMPTY": true,
	"NOTEMPTY_ATSTART": true, "NO_AUTO_POSSESS": true,
	"NO_DOTSTAR_ANCHOR": true, "NO_JIT": true, "NO_START_OPT": true,
	"LIMIT_DEPTH": true, "LIMIT_HEAP": true, "LIMIT_MATCH": true,
	"LIMIT_LOOKBEHIND": true, "LIMIT_RECURSION": true,
}

// Validate checks the pattern rooted at re. It returns nil or the first
// *SemanticError in document order.
func Validate(re *ast.Regex, opts Options) error {
	if opts.Oracle == nil {
		opts.Oracle = EngineOracle{}
	}
	if opts.MaxLookbehindLength == 0 {
		opts.MaxLookbehindLength = DefaultMaxLookbehind
	}
	v := &validator{
		Base:            ast.Base[error]{},
		opts:            opts,
		flags:           flags.Parse(re.Flags),
		info:            groups.Number(re),
		lookbehindLimit: opts.MaxLookbehindLength,
		seenNames:       map[string]bool{},
	}
	v.jEnabled = v.flags.DupNames
	prescanVerbs(re, v)
	return v.visit(re)
}

type validator struct {
	ast.Base[error]
	opts  Options
	flags flags.Flags
	info  *groups.Info

	quantifierDepth int
	inLookbehind    bool
	captureIndex    int
	lookbehindLimit int
	jEnabled        bool
	seenNames       map[string]bool
	prev, next      ast.Node
}

// prescanVerbs extracts (*LIMIT_LOOKBEHIND=n) before the main walk so the
// budget applies to lookbehinds appearing earlier in the pattern.
func prescanVerbs(n ast.Node, v *validator) {
	if verb, ok := n.(*ast.PcreVerb); ok {
		if rest, found := strings.CutPrefix(verb.Verb, "LIMIT_LOOKBEHIND="); found {
			if limit := cast.ToInt(rest); limit > 0 {
				v.lookbehindLimit = limit
			}
		}
		return
	}
	for _, c := range ast.Children(n) {
		prescanVerbs(c, v)
	}
}

func (v *validator) visit(n ast.Node) error { return ast.Visit[error](v, n) }

func (v *validator) VisitRegex(n *ast.Regex) error { return v.visit(n.Pattern) }

func (v *validator) VisitSequence(n *ast.Sequence) error {
	savedPrev, savedNext := v.prev, v.next
	defer func() { v.prev, v.next = savedPrev, savedNext }()
	for i, c := range n.Children {
		v.prev, v.next = nil, nil
		if i > 0 {
			v.prev = n.Children[i-1]
		}
		if i+1 < len(n.Children) {
			v.next = n.Children[i+1]
		}
		if err := v.visit(c); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) VisitAlternation(n *ast.Alternation) error {
	for _, alt := range n.Alternatives {
		if err := v.visit(alt); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) VisitGroup(n *ast.Group) error {
	if n.IsCapturing() {
		v.captureIndex++
	}
	if n.Kind == ast.GroupNamed {
		if v.seenNames[n.Name] && !v.jEnabled {
			return semErr(CodeGroupDuplicateName, n.Pos,
				"duplicate group name %q", n.Name).
				withHint("enable the J flag to allow duplicate names")
		}
		v.seenNames[n.Name] = true
	}
	if n.Kind == ast.GroupInlineFlags && flagSetContains(n.LocalFlags, 'J') {
		v.jEnabled = true
	}
	if n.IsLookbehind() {
		if err := v.checkLookbehind(n); err != nil {
			return err
		}
		saved := v.inLookbehind
		v.inLookbehind = true
		defer func() { v.inLookbehind = saved }()
	}
	return v.visit(n.Child)
}

// flagSetContains reports whether c appears in the set portion of an inline
// flag string (before any '-').
func flagSetContains(local string, c byte) bool {
	set, _, _ := strings.Cut(local, "-")
	return strings.IndexByte(set, c) >= 0
}

func (v *validator) checkLookbehind(n *ast.Group) error {
	lr := matchLength(n.Child)
	if !lr.Bounded {
		pos := n.Pos
		if lr.Offender != nil {
			pos = lr.Offender.Span()
		}
		return semErr(CodeLookbehindUnbounded, pos,
			"lookbehind body has no maximum length").
			withHint("replace unbounded quantifiers with a counted repetition")
	}
	if lr.Max > v.lookbehindLimit {
		return semErr(CodeLookbehindTooLong, n.Pos,
			"lookbehind may match up to %d characters, limit is %d", lr.Max, v.lookbehindLimit).
			withHint("raise the limit with (*LIMIT_LOOKBEHIND=n)")
	}
	return nil
}

func (v *validator) VisitQuantifier(n *ast.Quantifier) error {
	if strings.HasPrefix(n.Repr, "{") {
		b := n.Bounds()
		if !b.Unbounded && b.Min > b.Max {
			bracePos := ast.Position{Start: n.Child.Span().End, End: n.Pos.End}
			return semErr(CodeQuantifierInvalidRange, bracePos,
				"quantifier range {%d,%d} is out of order", b.Min, b.Max).
				withHint("the minimum must not exceed the maximum")
		}
	}
	v.quantifierDepth++
	defer func() { v.quantifierDepth-- }()
	return v.visit(n.Child)
}

func (v *validator) VisitRange(n *ast.Range) error {
	if err := v.visit(n.Start); err != nil {
		return err
	}
	if err := v.visit(n.End); err != nil {
		return err
	}
	lo, okLo := charset.EndpointCodePoint(n.Start)
	hi, okHi := charset.EndpointCodePoint(n.End)
	if !okLo || !okHi {
		return semErr(CodeRangeInvalidEndpoint, n.Pos,
			"range endpoints must be single characters")
	}
	if lo > hi {
		return semErr(CodeRangeOutOfOrder, n.Pos,
			"range is out of order (U+%04X > U+%04X)", lo, hi).
			withHint("swap the endpoints")
	}
	return nil
}

func (v *validator) VisitBackref(n *ast.Backref) error {
	ref := groups.ParseRef(n.Ref)
	switch ref.Kind {
	case groups.RefNumeric:
		if ref.Number == 0 {
			return semErr(CodeBackrefZero, n.Pos, "backreference to group 0 is not allowed")
		}
		if ref.Number > v.info.MaxGroupNumber {
			return semErr(CodeBackrefMissingGroup, n.Pos,
				"backreference %s refers to group %d, but the pattern has %d",
				n.Ref, ref.Number, v.info.MaxGroupNumber)
		}
	case groups.RefRelative:
		if ref.Number == 0 {
			return semErr(CodeBackrefZero, n.Pos, "backreference to group 0 is not allowed")
		}
		if _, ok := v.info.Resolve(ref.Number, v.captureIndex); !ok {
			return semErr(CodeBackrefRelativeOutOfRange, n.Pos,
				"relative backreference %s does not resolve to a group", n.Ref)
		}
	case groups.RefNamed:
		if !v.info.HasName(ref.Name) {
			return semErr(CodeBackrefMissingName, n.Pos,
				"backreference to unknown group name %q", ref.Name)
		}
	default:
		return semErr(CodeBackrefMissingGroup, n.Pos, "malformed backreference %s", n.Ref)
	}
	return nil
}

func (v *validator) VisitSubroutine(n *ast.Subroutine) error {
	ref := n.Reference
	if ref == "R" || ref == "0" {
		return nil
	}
	numeric := strings.TrimPrefix(ref, "R")
	if num, err := strconv.Atoi(numeric); err == nil {
		switch {
		case strings.HasPrefix(numeric, "+") || strings.HasPrefix(numeric, "-"):
			if _, ok := v.info.Resolve(num, v.captureIndex); !ok {
				return semErr(CodeSubroutineMissingGroup, n.Pos,
					"relative subroutine call %q does not resolve to a group", ref)
			}
		case num < 1 || num > v.info.MaxGroupNumber:
			return semErr(CodeSubroutineMissingGroup, n.Pos,
				"subroutine call to group %d, but the pattern has %d",
				num, v.info.MaxGroupNumber)
		}
		return nil
	}
	if !v.info.HasName(ref) {
		return semErr(CodeSubroutineMissingName, n.Pos,
			"subroutine call to unknown group name %q", ref)
	}
	return nil
}

func (v *validator) VisitUnicode(n *ast.Unicode) error {
	cp, err := strconv.ParseInt(n.Code, 16, 64)
	if err != nil || cp > 0x10FFFF {
		return semErr(CodeUnicodeOutOfRange, n.Pos,
			"code point \\x{%s} is not a valid Unicode scalar value", n.Code).
			withHint("the maximum code point is 10FFFF")
	}
	return nil
}

func (v *validator) VisitCharLiteral(n *ast.CharLiteral) error {
	switch n.Kind {
	case ast.CharKindOctal:
		body := strings.TrimSuffix(strings.TrimPrefix(n.OriginalRepr, `\o{`), "}")
		for i := 0; i < len(body); i++ {
			if body[i] < '0' || body[i] > '7' {
				return semErr(CodeUnicodeInvalidOctal, n.Pos,
					"invalid octal digit %q in %s", body[i], n.OriginalRepr)
			}
		}
		if n.CodePoint < 0 || n.CodePoint > 0xFF {
			return semErr(CodeUnicodeOctalOutOfRange, n.Pos,
				"octal escape %s exceeds \\xFF", n.OriginalRepr)
		}
	case ast.CharKindOctalLegacy:
		if n.CodePoint <= 0 || n.CodePoint > 0xFF {
			return semErr(CodeUnicodeOctalOutOfRange, n.Pos,
				"octal escape %s must be between \\01 and \\0377", n.OriginalRepr)
		}
	case ast.CharKindUnicodeNamed:
		if n.CodePoint < 0 {
			return semErr(CodeUnicodeUnknownNamed, n.Pos,
				"unknown character name in %s", n.OriginalRepr)
		}
	}
	return nil
}

func (v *validator) VisitUnicodeNamed(n *ast.UnicodeNamed) error {
	return semErr(CodeUnicodeUnknownNamed, n.Pos,
		"unresolved character name %q", n.Name).
		withHint(`use the \N{U+hhhh} form`)
}

func (v *validator) VisitUnicodeProp(n *ast.UnicodeProp) error {
	prop := strings.TrimPrefix(n.Prop, "^")
	if !propertySupported(v.opts.Oracle, prop) {
		return semErr(CodeUnicodeUnsupportedProperty, n.Pos,
			"unknown or unsupported Unicode property %q", prop)
	}
	return nil
}

func (v *validator) VisitPosixClass(n *ast.PosixClass) error {
	if n.Negated {
		return semErr(CodePosixNegatedClass, n.Pos,
			"negated POSIX class [:^%s:] is not supported", n.Name)
	}
	if !ast.PosixClassNames[n.Name] {
		return semErr(CodePosixUnknownClass, n.Pos, "unknown POSIX class name %q", n.Name)
	}
	return nil
}

func (v *validator) VisitAssertion(n *ast.Assertion) error {
	if strings.IndexByte("AzZGbB", n.Value) < 0 {
		return semErr(CodeAssertionUnknown, n.Pos, "unknown assertion \\%c", n.Value)
	}
	return nil
}

func (v *validator) VisitKeep(n *ast.Keep) error {
	if v.inLookbehind {
		return semErr(CodeKeepInLookbehind, n.Pos, `\K is not allowed inside a lookbehind`)
	}
	return nil
}

func (v *validator) VisitPcreVerb(n *ast.PcreVerb) error {
	if !acceptedVerbs[n.Name()] {
		return semErr(CodeVerbUnknown, n.Pos, "unknown control verb (*%s)", n.Verb)
	}
	return nil
}

func (v *validator) VisitCallout(n *ast.Callout) error {
	if n.IsString {
		if n.Text == "" {
			return semErr(CodeCalloutInvalidIdentifier, n.Pos, "string callout must not be empty")
		}
		return nil
	}
	if n.Number < 0 || n.Number > 255 {
		return semErr(CodeCalloutInvalidIdentifier, n.Pos,
			"callout number %d is outside [0, 255]", n.Number)
	}
	return nil
}

func (v *validator) VisitControlChar(n *ast.ControlChar) error {
	if n.CodePoint < 0 || n.CodePoint > 0xFF {
		return semErr(CodeControlOutOfRange, n.Pos,
			"control character \\c%c is outside [0, 0xFF]", n.Char)
	}
	return nil
}

func (v *validator) VisitConditional(n *ast.Conditional) error {
	switch cond := n.Condition.(type) {
	case *ast.Backref, *ast.Subroutine, *ast.VersionCondition:
	case *ast.Group:
		if !cond.IsLookaround() {
			return semErr(CodeConditionalInvalid, cond.Pos,
				"conditional condition must be a reference, subroutine or lookaround")
		}
	default:
		return semErr(CodeConditionalInvalid, n.Pos,
			"conditional condition must be a reference, subroutine or lookaround")
	}
	if err := v.visit(n.Condition); err != nil {
		return err
	}
	if err := v.visit(n.Yes); err != nil {
		return err
	}
	return v.visit(n.No)
}

func (v *validator) VisitCharClass(n *ast.CharClass) error {
	return v.visit(n.Expression)
}

func (v *validator) VisitClassOperation(n *ast.ClassOperation) error {
	if err := v.visit(n.Left); err != nil {
		return err
	}
	return v.visit(n.Right)
}

func (v *validator) VisitDefine(n *ast.Define) error {
	return v.visit(n.Content)
}
