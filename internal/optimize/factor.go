package optimize

import (
	"strings"

	"github.com/0x4d5352/regaudit/internal/ast"
)

// rewriteAlternation applies the alternation family of rewrites:
// deduplication, merging of adjacent character classes, conversion of
// single-character branches to a class, and (opt-in) literal factorization.
func (o *optimizer) rewriteAlternation(n *ast.Alternation) ast.Node {
	alts := make([]ast.Node, 0, len(n.Alternatives))
	dirty := false
	for _, alt := range n.Alternatives {
		na := o.rewrite(alt)
		if na != alt {
			dirty = true
		}
		alts = append(alts, na)
	}

	alts, deduped := dedupeBranches(alts)
	alts, mergedClasses := o.mergeClassBranches(alts, n.Pos)
	dirty = dirty || deduped || mergedClasses

	if o.opts.AllowAlternationFactorization && len(alts) > 1 && allPlainLiterals(alts) {
		if factored, ok := o.factorLiterals(alts, n.Pos); ok {
			o.changed = true
			return factored
		}
	}

	if len(alts) == 1 {
		o.changed = true
		return alts[0]
	}
	if !dirty {
		return n
	}
	o.changed = true
	return &ast.Alternation{Alternatives: alts, Pos: n.Pos}
}

// dedupeBranches drops branches whose canonical form repeats an earlier one.
func dedupeBranches(alts []ast.Node) ([]ast.Node, bool) {
	seen := map[uint64]bool{}
	out := make([]ast.Node, 0, len(alts))
	dirty := false
	for _, alt := range alts {
		h := nodeHash(alt)
		if h != 0 && seen[h] {
			dirty = true
			continue
		}
		seen[h] = true
		out = append(out, alt)
	}
	return out, dirty
}

// mergeClassBranches folds runs of class-like branches — [a-z], \d outside
// u mode, single characters — into one character class, which the class
// normalizer then sorts and coalesces.
func (o *optimizer) mergeClassBranches(alts []ast.Node, pos ast.Position) ([]ast.Node, bool) {
	out := make([]ast.Node, 0, len(alts))
	dirty := false
	for i := 0; i < len(alts); {
		run := 0
		for i+run < len(alts) && o.classMergeable(alts[i+run]) {
			run++
		}
		if run < 2 {
			out = append(out, alts[i])
			i++
			continue
		}
		var parts []ast.Node
		for _, branch := range alts[i : i+run] {
			parts = append(parts, o.classContent(branch, pos)...)
		}
		merged := &ast.CharClass{
			Expression: &ast.Sequence{Children: parts, Pos: pos},
			Pos:        pos,
		}
		out = append(out, o.rewriteCharClass(merged))
		dirty = true
		i += run
	}
	return out, dirty
}

func (o *optimizer) classMergeable(n ast.Node) bool {
	switch t := n.(type) {
	case *ast.CharClass:
		if t.IsNegated {
			return false
		}
		for _, part := range classParts(t.Expression) {
			switch p := part.(type) {
			case *ast.Literal:
				if p.IsRaw {
					return false
				}
			case *ast.CharLiteral, *ast.ControlChar, *ast.Range:
			default:
				return false
			}
		}
		return true
	case *ast.Literal:
		return !t.IsRaw && len([]rune(t.Value)) == 1
	case *ast.CharType:
		return t.Value == 'd' && !o.flags.Unicode
	}
	return false
}

// classContent lifts a mergeable branch into class parts; \d becomes the
// explicit [0-9] range.
func (o *optimizer) classContent(n ast.Node, pos ast.Position) []ast.Node {
	switch t := n.(type) {
	case *ast.CharClass:
		return classParts(t.Expression)
	case *ast.Literal:
		return []ast.Node{t}
	case *ast.CharType:
		return []ast.Node{&ast.Range{
			Start: &ast.Literal{Value: "0", Pos: pos},
			End:   &ast.Literal{Value: "9", Pos: pos},
			Pos:   pos,
		}}
	}
	return nil
}

func allPlainLiterals(alts []ast.Node) bool {
	for _, alt := range alts {
		lit, ok := alt.(*ast.Literal)
		if !ok || lit.IsRaw {
			return false
		}
	}
	return true
}

// factorLiterals hoists the longest common prefix (then suffix) out of a
// purely literal alternation: ab|ac → a(?:b|c), ax|bx → (?:a|b)x. A branch
// reduced to nothing makes the inner group optional.
func (o *optimizer) factorLiterals(alts []ast.Node, pos ast.Position) (ast.Node, bool) {
	texts := make([]string, len(alts))
	for i, alt := range alts {
		text, ok := renderLiteralTree(alt)
		if !ok {
			return nil, false
		}
		texts[i] = text
	}

	if prefix := commonPrefix(texts); prefix != "" {
		remainders := make([]string, len(texts))
		for i, t := range texts {
			remainders[i] = t[len(prefix):]
		}
		inner := buildFactoredGroup(remainders, pos)
		head := parseFactoredText(prefix, pos)
		return sequenceOf(append(head, inner), pos), true
	}
	if suffix := commonSuffix(texts); suffix != "" {
		remainders := make([]string, len(texts))
		for i, t := range texts {
			remainders[i] = t[:len(t)-len(suffix)]
		}
		inner := buildFactoredGroup(remainders, pos)
		tail := parseFactoredText(suffix, pos)
		return sequenceOf(append([]ast.Node{inner}, tail...), pos), true
	}
	return nil, false
}

func commonPrefix(texts []string) string {
	prefix := texts[0]
	for _, t := range texts[1:] {
		for !strings.HasPrefix(t, prefix) {
			prefix = trimLastFactorUnit(prefix)
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}

func commonSuffix(texts []string) string {
	suffix := texts[0]
	for _, t := range texts[1:] {
		for !strings.HasSuffix(t, suffix) {
			suffix = trimFirstFactorUnit(suffix)
			if suffix == "" {
				return ""
			}
		}
	}
	return suffix
}

// trimLastFactorUnit shortens a serialized literal by one unit, keeping
// escape pairs together so a prefix never ends inside \d or \. .
func trimLastFactorUnit(s string) string {
	if s == "" {
		return ""
	}
	cut := len(s) - 1
	if cut > 0 && s[cut-1] == '\\' && !escapedBackslashAt(s, cut-1) {
		cut--
	}
	return s[:cut]
}

func trimFirstFactorUnit(s string) string {
	if s == "" {
		return ""
	}
	if s[0] == '\\' && len(s) > 1 {
		return s[2:]
	}
	return s[1:]
}

// escapedBackslashAt reports whether the backslash at i is itself escaped.
func escapedBackslashAt(s string, i int) bool {
	count := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		count++
	}
	return count%2 == 1
}

// buildFactoredGroup wraps the remainder branches in a non-capturing group,
// optional when one branch vanished entirely.
func buildFactoredGroup(remainders []string, pos ast.Position) ast.Node {
	optional := false
	var branches []ast.Node
	seen := map[string]bool{}
	for _, r := range remainders {
		if r == "" {
			optional = true
			continue
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		branches = append(branches, sequenceOf(parseFactoredText(r, pos), pos))
	}

	var inner ast.Node
	switch len(branches) {
	case 0:
		return &ast.Literal{Pos: pos}
	case 1:
		inner = branches[0]
	default:
		inner = &ast.Alternation{Alternatives: branches, Pos: pos}
	}
	group := &ast.Group{Child: inner, Kind: ast.GroupNonCapturing, Pos: pos}
	if optional {
		return &ast.Quantifier{Child: group, Repr: "?", Pos: pos}
	}
	return group
}

func sequenceOf(nodes []ast.Node, pos ast.Position) ast.Node {
	switch len(nodes) {
	case 0:
		return &ast.Literal{Pos: pos}
	case 1:
		return nodes[0]
	}
	return &ast.Sequence{Children: nodes, Pos: pos}
}

// metachars are the characters the literal compiler escapes.
const metachars = `\^$.[]|()?*+{}`

// renderLiteralTree is the compiler side of the factorization round-trip:
// it serializes the subset of nodes factorization produces back into
// pattern text. The inverse is parseFactoredText.
func renderLiteralTree(n ast.Node) (string, bool) {
	switch t := n.(type) {
	case *ast.Literal:
		if t.IsRaw {
			return t.Value, true
		}
		var b strings.Builder
		for _, r := range t.Value {
			if r < 0x80 && strings.ContainsRune(metachars, r) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		return b.String(), true
	case *ast.CharType:
		return `\` + string(t.Value), true
	case *ast.Quantifier:
		child, ok := renderLiteralTree(t.Child)
		if !ok {
			return "", false
		}
		suffix := ""
		switch t.Greediness {
		case ast.Lazy:
			suffix = "?"
		case ast.Possessive:
			suffix = "+"
		}
		return child + t.Repr + suffix, true
	case *ast.Sequence:
		var b strings.Builder
		for _, c := range t.Children {
			s, ok := renderLiteralTree(c)
			if !ok {
				return "", false
			}
			b.WriteString(s)
		}
		return b.String(), true
	}
	return "", false
}

// parseFactoredText is the minimal inverse parser: single characters become
// literals, \X a char type or an escaped literal, and {n,m} tails raw
// literals, so the round-trip reproduces the original text.
func parseFactoredText(s string, pos ast.Position) []ast.Node {
	var nodes []ast.Node
	var plain strings.Builder
	flush := func() {
		if plain.Len() > 0 {
			nodes = append(nodes, &ast.Literal{Value: plain.String(), Pos: pos})
			plain.Reset()
		}
	}
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			next := s[i+1]
			if strings.IndexByte(charTypeChars, next) >= 0 {
				flush()
				nodes = append(nodes, &ast.CharType{Value: next, Pos: pos})
			} else {
				plain.WriteByte(next)
			}
			i += 2
		case c == '{':
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				plain.WriteByte(c)
				i++
				continue
			}
			flush()
			nodes = append(nodes, &ast.Literal{Value: s[i : i+end+1], IsRaw: true, Pos: pos})
			i += end + 1
		default:
			plain.WriteByte(c)
			i++
		}
	}
	flush()
	return nodes
}

const charTypeChars = "dDwWsShHvVRN"

// boundarySetsDisjoint reports that the trailing characters of a cannot
// also start b, so backtracking between them is pointless.
func (o *optimizer) boundarySetsDisjoint(a, b ast.Node) bool {
	last := o.analyzer.LastChars(a)
	first := o.analyzer.FirstChars(b)
	return !last.IsUnknown() && !first.IsUnknown() && !last.Intersects(first)
}
