package groups

import "strconv"

// RefKind classifies a backreference's addressing mode.
type RefKind int

// Reference kinds
const (
	RefNumeric  RefKind = iota // \3, \g3, \g{3}
	RefRelative                // \g{-1}, \g{+2}
	RefNamed                   // \k<name>, \k'name', \k{name}
	RefInvalid
)

// Ref is the decoded form of a backreference's source syntax.
type Ref struct {
	Kind   RefKind
	Number int    // RefNumeric: absolute; RefRelative: signed offset
	Name   string // RefNamed
}

// ParseRef decodes the exact source syntax stored on a Backref node:
// `\1`, `\g2`, `\g{3}`, `\g{-1}`, `\g{+2}`, `\k<name>`, `\k'name'`, `\k{name}`.
func ParseRef(ref string) Ref {
	if len(ref) < 2 || ref[0] != '\\' {
		return Ref{Kind: RefInvalid}
	}
	body := ref[1:]
	switch body[0] {
	case 'k':
		name := stripRefBrackets(body[1:])
		if name == "" {
			return Ref{Kind: RefInvalid}
		}
		return Ref{Kind: RefNamed, Name: name}
	case 'g':
		inner := body[1:]
		if len(inner) > 0 && inner[0] == '{' {
			inner = stripRefBrackets(inner)
		}
		if inner == "" {
			return Ref{Kind: RefInvalid}
		}
		if inner[0] == '+' || inner[0] == '-' {
			n, err := strconv.Atoi(inner)
			if err != nil {
				return Ref{Kind: RefInvalid}
			}
			return Ref{Kind: RefRelative, Number: n}
		}
		if n, err := strconv.Atoi(inner); err == nil {
			return Ref{Kind: RefNumeric, Number: n}
		}
		return Ref{Kind: RefNamed, Name: inner}
	default:
		if n, err := strconv.Atoi(body); err == nil {
			return Ref{Kind: RefNumeric, Number: n}
		}
	}
	return Ref{Kind: RefInvalid}
}

// stripRefBrackets removes one layer of <>, '' or {} quoting.
func stripRefBrackets(s string) string {
	if len(s) < 2 {
		return ""
	}
	switch {
	case s[0] == '<' && s[len(s)-1] == '>',
		s[0] == '\'' && s[len(s)-1] == '\'',
		s[0] == '{' && s[len(s)-1] == '}':
		return s[1 : len(s)-1]
	}
	return s
}

// Resolve maps a relative reference offset to an absolute capture number
// using the encounter-order capture sequence. captureIndex is how many
// capturing groups have been entered at the reference site. The second
// result is false when the offset lands outside the sequence.
func (i *Info) Resolve(offset, captureIndex int) (int, bool) {
	var idx int
	if offset < 0 {
		idx = captureIndex + offset
	} else {
		idx = captureIndex + offset - 1
	}
	if idx < 0 || idx >= len(i.CaptureSequence) {
		return 0, false
	}
	return i.CaptureSequence[idx], true
}
