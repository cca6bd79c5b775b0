// Package optimize rewrites a pattern AST into an equivalent, smaller tree.
// Every transformation is semantics-preserving: match positions, capture
// numbering and backtracking-sensitive constructs are never changed.
// The rewriter follows the transform discipline of returning the input node
// by identity when nothing changed.
package optimize

import (
	"strconv"
	"strings"

	"github.com/mitchellh/hashstructure"

	"github.com/0x4d5352/regaudit/internal/ast"
	"github.com/0x4d5352/regaudit/internal/charset"
	"github.com/0x4d5352/regaudit/internal/flags"
)

// Options are the optimizer switches.
type Options struct {
	// OptimizeDigits rewrites a class equal to [0-9] into \d outside u mode.
	OptimizeDigits bool

	// OptimizeWord rewrites a class equal to [A-Za-z0-9_] into \w outside
	// u mode.
	OptimizeWord bool

	// Ranges forbids merged ranges from crossing ASCII categories
	// (digits, uppercase, lowercase, other).
	Ranges bool

	// AutoPossessify converts greedy quantifiers to possessive when the
	// quantified child's trailing characters are provably disjoint from
	// what follows.
	AutoPossessify bool

	// AllowAlternationFactorization enables prefix/suffix factoring of
	// purely literal alternations.
	AllowAlternationFactorization bool

	// MinQuantifierCount is the smallest run of equal nodes or characters
	// collapsed into a counted quantifier. Floor is 2.
	MinQuantifierCount int
}

// DefaultOptions returns the standard optimizer configuration.
func DefaultOptions() Options {
	return Options{
		OptimizeDigits:     true,
		OptimizeWord:       true,
		Ranges:             true,
		MinQuantifierCount: 4,
	}
}

// Optimize rewrites the pattern. The input is returned unchanged (by
// identity) when no transformation fired.
func Optimize(re *ast.Regex, opts Options) *ast.Regex {
	if opts.MinQuantifierCount < 2 {
		opts.MinQuantifierCount = 2
	}
	f := flags.Parse(re.Flags)
	o := &optimizer{opts: opts, flags: f, analyzer: charset.New(f)}
	body := o.rewrite(re.Pattern)
	newFlags := o.pruneFlags(re.Flags, body)
	if !o.changed && newFlags == re.Flags {
		return re
	}
	return &ast.Regex{Pattern: body, Flags: newFlags, Delimiter: re.Delimiter, Pos: re.Pos}
}

type optimizer struct {
	opts     Options
	flags    flags.Flags
	analyzer *charset.Analyzer
	changed  bool

	// inQuantifier is true while rewriting the direct child of a
	// quantifier, where group unwrapping must stay conservative.
	inQuantifier bool
}

func (o *optimizer) rewrite(n ast.Node) ast.Node {
	switch t := n.(type) {
	case *ast.Sequence:
		return o.rewriteSequence(t)
	case *ast.Alternation:
		return o.rewriteAlternation(t)
	case *ast.Group:
		return o.rewriteGroup(t)
	case *ast.Quantifier:
		return o.rewriteQuantifier(t)
	case *ast.CharClass:
		return o.rewriteCharClass(t)
	case *ast.Conditional:
		yes, no := o.rewrite(t.Yes), o.rewrite(t.No)
		if yes == t.Yes && no == t.No {
			return t
		}
		return &ast.Conditional{Condition: t.Condition, Yes: yes, No: no, Pos: t.Pos}
	case *ast.Define:
		content := o.rewrite(t.Content)
		if content == t.Content {
			return t
		}
		return &ast.Define{Content: content, Pos: t.Pos}
	case *ast.Literal:
		return o.rewriteLiteral(t)
	}
	return n
}

func (o *optimizer) rewriteSequence(n *ast.Sequence) ast.Node {
	children := make([]ast.Node, 0, len(n.Children))
	dirty := false
	for _, c := range n.Children {
		nc := o.rewrite(c)
		if nc != c {
			dirty = true
		}
		// Inline inner sequences and drop empty literals.
		switch t := nc.(type) {
		case *ast.Sequence:
			children = append(children, t.Children...)
			dirty = true
		case *ast.Literal:
			if t.Value == "" {
				dirty = true
				continue
			}
			children = append(children, nc)
		default:
			children = append(children, nc)
		}
	}
	children, merged := o.mergeLiterals(children)
	children, compacted := o.compactRuns(children, n.Pos)
	children, possessified := o.autoPossessify(children)
	dirty = dirty || merged || compacted || possessified

	switch len(children) {
	case 0:
		o.changed = true
		return &ast.Literal{Pos: n.Pos}
	case 1:
		o.changed = true
		return children[0]
	}
	if !dirty {
		return n
	}
	o.changed = true
	return &ast.Sequence{Children: children, Pos: n.Pos}
}

// mergeLiterals concatenates adjacent Literal nodes of equal rawness.
func (o *optimizer) mergeLiterals(children []ast.Node) ([]ast.Node, bool) {
	out := make([]ast.Node, 0, len(children))
	dirty := false
	for _, c := range children {
		lit, ok := c.(*ast.Literal)
		if !ok {
			out = append(out, c)
			continue
		}
		if len(out) > 0 {
			if prev, ok := out[len(out)-1].(*ast.Literal); ok && prev.IsRaw == lit.IsRaw {
				out[len(out)-1] = &ast.Literal{
					Value: prev.Value + lit.Value,
					IsRaw: prev.IsRaw,
					Pos:   ast.Position{Start: prev.Pos.Start, End: lit.Pos.End},
				}
				dirty = true
				continue
			}
		}
		out = append(out, c)
	}
	return out, dirty
}

// compactRuns collapses runs of equal nodes into counted quantifiers.
// Anything capture-sensitive is left alone.
func (o *optimizer) compactRuns(children []ast.Node, pos ast.Position) ([]ast.Node, bool) {
	if len(children) < o.opts.MinQuantifierCount {
		return children, false
	}
	out := make([]ast.Node, 0, len(children))
	dirty := false
	for i := 0; i < len(children); {
		run := 1
		if h := nodeHash(children[i]); h != 0 && !captureSensitive(children[i]) {
			for i+run < len(children) && nodeHash(children[i+run]) == h {
				run++
			}
		}
		if run >= o.opts.MinQuantifierCount {
			out = append(out, &ast.Quantifier{
				Child: children[i],
				Repr:  "{" + strconv.Itoa(run) + "}",
				Pos:   children[i].Span(),
			})
			dirty = true
		} else {
			out = append(out, children[i:i+run]...)
		}
		i += run
	}
	return out, dirty
}

// autoPossessify upgrades greedy quantifiers whose trailing
// characters cannot collide with the following sibling.
func (o *optimizer) autoPossessify(children []ast.Node) ([]ast.Node, bool) {
	if !o.opts.AutoPossessify {
		return children, false
	}
	out := make([]ast.Node, len(children))
	copy(out, children)
	dirty := false
	for i, c := range out {
		q, ok := c.(*ast.Quantifier)
		if !ok || q.Greediness != ast.Greedy || i+1 >= len(out) {
			continue
		}
		if captureSensitive(q.Child) || charset.Nullable(q.Child) {
			continue
		}
		if !o.boundarySetsDisjoint(q.Child, out[i+1]) {
			continue
		}
		out[i] = &ast.Quantifier{Child: q.Child, Repr: q.Repr, Greediness: ast.Possessive, Pos: q.Pos}
		dirty = true
	}
	return out, dirty
}

func (o *optimizer) rewriteQuantifier(n *ast.Quantifier) ast.Node {
	saved := o.inQuantifier
	o.inQuantifier = true
	child := o.rewrite(n.Child)
	o.inQuantifier = saved

	repr := normalizeRepr(n.Repr)
	switch repr {
	case "{1}":
		o.changed = true
		return child
	case "{0}":
		o.changed = true
		return &ast.Literal{Pos: n.Pos}
	}
	if child == n.Child && repr == n.Repr {
		return n
	}
	o.changed = true
	return &ast.Quantifier{Child: child, Repr: repr, Greediness: n.Greediness, Pos: n.Pos}
}

// normalizeRepr canonicalizes brace quantifiers: {0,}→*, {1,}→+, {0,1}→?,
// {1,1}→{1}, {0,0}→{0}, {n,n}→{n}.
func normalizeRepr(repr string) string {
	if !strings.HasPrefix(repr, "{") {
		return repr
	}
	b := parseReprBounds(repr)
	switch {
	case b.Unbounded && b.Min == 0:
		return "*"
	case b.Unbounded && b.Min == 1:
		return "+"
	case b.Unbounded:
		return "{" + strconv.Itoa(b.Min) + ",}"
	case b.Min == 0 && b.Max == 1:
		return "?"
	case b.Min == b.Max:
		return "{" + strconv.Itoa(b.Min) + "}"
	case b.Min > b.Max:
		// Invalid range; the validator owns the diagnosis.
		return repr
	}
	return "{" + strconv.Itoa(b.Min) + "," + strconv.Itoa(b.Max) + "}"
}

func parseReprBounds(repr string) ast.Bounds {
	q := ast.Quantifier{Repr: repr}
	return q.Bounds()
}

func (o *optimizer) rewriteGroup(n *ast.Group) ast.Node {
	savedQ := o.inQuantifier
	o.inQuantifier = false
	child := o.rewrite(n.Child)
	o.inQuantifier = savedQ

	if n.Kind == ast.GroupNonCapturing && o.unwrappable(child) {
		o.changed = true
		return child
	}
	if child == n.Child {
		return n
	}
	o.changed = true
	return &ast.Group{Child: child, Kind: n.Kind, Name: n.Name, LocalFlags: n.LocalFlags, Pos: n.Pos}
}

// unwrappable reports whether a non-capturing group around child can be
// dropped. Directly under a quantifier only indivisible atoms qualify;
// elsewhere multi-character literals qualify too, but sequences and
// alternations keep their group.
func (o *optimizer) unwrappable(child ast.Node) bool {
	switch t := child.(type) {
	case *ast.Literal:
		if t.IsRaw {
			return false
		}
		if o.inQuantifier {
			return len([]rune(t.Value)) == 1
		}
		return true
	case *ast.CharClass, *ast.CharType, *ast.Dot, *ast.CharLiteral,
		*ast.Unicode, *ast.UnicodeProp, *ast.ControlChar:
		return true
	}
	return false
}

func (o *optimizer) rewriteLiteral(n *ast.Literal) ast.Node {
	if n.IsRaw {
		return n
	}
	parts, ok := o.compactRepeatedChars(n)
	if !ok {
		return n
	}
	o.changed = true
	if len(parts) == 1 {
		return parts[0]
	}
	return &ast.Sequence{Children: parts, Pos: n.Pos}
}

// compactRepeatedChars turns character runs of MinQuantifierCount or more
// inside a literal into counted quantifiers: aaaa → a{4}.
func (o *optimizer) compactRepeatedChars(n *ast.Literal) ([]ast.Node, bool) {
	runes := []rune(n.Value)
	var parts []ast.Node
	compacted := false
	flushStart := 0
	for i := 0; i < len(runes); {
		run := 1
		for i+run < len(runes) && runes[i+run] == runes[i] {
			run++
		}
		if run >= o.opts.MinQuantifierCount {
			if i > flushStart {
				parts = append(parts, &ast.Literal{Value: string(runes[flushStart:i]), Pos: n.Pos})
			}
			parts = append(parts, &ast.Quantifier{
				Child: &ast.Literal{Value: string(runes[i]), Pos: n.Pos},
				Repr:  "{" + strconv.Itoa(run) + "}",
				Pos:   n.Pos,
			})
			flushStart = i + run
			compacted = true
		}
		i += run
	}
	if !compacted {
		return nil, false
	}
	if flushStart < len(runes) {
		parts = append(parts, &ast.Literal{Value: string(runes[flushStart:]), Pos: n.Pos})
	}
	return parts, true
}

// pruneFlags drops the s flag when the rewritten pattern has no dot and the
// m flag when it has no anchors.
func (o *optimizer) pruneFlags(flagStr string, body ast.Node) string {
	out := flagStr
	if flags.Has(out, 's') && !containsNode(body, func(n ast.Node) bool {
		_, ok := n.(*ast.Dot)
		return ok
	}) {
		out = strings.ReplaceAll(out, "s", "")
	}
	if flags.Has(out, 'm') && !containsNode(body, func(n ast.Node) bool {
		_, ok := n.(*ast.Anchor)
		return ok
	}) {
		out = strings.ReplaceAll(out, "m", "")
	}
	return out
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

// captureSensitive reports whether the subtree contains anything whose
// duplication or merging would disturb capture numbering or references.
func captureSensitive(n ast.Node) bool {
	switch t := n.(type) {
	case *ast.Group:
		if t.IsCapturing() {
			return true
		}
	case *ast.Backref, *ast.Subroutine, *ast.Conditional:
		return true
	}
	for _, c := range ast.Children(n) {
		if captureSensitive(c) {
			return true
		}
	}
	return false
}

// nodeHash is the canonical content hash used for structural equality.
// Position fields carry a hash:"ignore" tag, so equal constructs at
// different offsets compare equal. The variant name is mixed in to keep
// field-compatible node types apart.
func nodeHash(n ast.Node) uint64 {
	h, err := hashstructure.Hash(struct {
		Variant string
		Node    ast.Node
	}{n.Type(), n}, nil)
	if err != nil {
		return 0
	}
	return h
}

