package charset

import (
	"testing"

	"github.com/0x4d5352/regaudit/internal/ast"
	"github.com/0x4d5352/regaudit/internal/flags"
)

func lit(s string) ast.Node { return &ast.Literal{Value: s} }

func quant(repr string, child ast.Node) ast.Node {
	return &ast.Quantifier{Repr: repr, Child: child}
}

func TestFirstChars(t *testing.T) {
	a := New(flags.Flags{})

	tests := []struct {
		name     string
		node     ast.Node
		contains []rune
		excludes []rune
	}{
		{
			name:     "alternation unions branches",
			node:     &ast.Alternation{Alternatives: []ast.Node{lit("a"), lit("b")}},
			contains: []rune{'a', 'b'},
			excludes: []rune{'c'},
		},
		{
			name: "nullable prefix extends first set",
			node: &ast.Sequence{Children: []ast.Node{
				quant("*", lit("a")),
				lit("b"),
			}},
			contains: []rune{'a', 'b'},
			excludes: []rune{'c'},
		},
		{
			name: "non-nullable prefix stops the scan",
			node: &ast.Sequence{Children: []ast.Node{lit("a"), lit("b")}},
			contains: []rune{'a'},
			excludes: []rune{'b'},
		},
		{
			name:     "char type digit",
			node:     &ast.CharType{Value: 'd'},
			contains: []rune{'0', '9'},
			excludes: []rune{'a'},
		},
		{
			name: "conditional unions arms",
			node: &ast.Conditional{
				Condition: &ast.Backref{Ref: `\1`},
				Yes:       lit("x"),
				No:        lit("y"),
			},
			contains: []rune{'x', 'y'},
			excludes: []rune{'z'},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := a.FirstChars(tt.node)
			if set.IsUnknown() {
				t.Fatalf("FirstChars = unknown")
			}
			for _, r := range tt.contains {
				if !set.Contains(r) {
					t.Errorf("FirstChars should contain %q: %s", r, set)
				}
			}
			for _, r := range tt.excludes {
				if set.Contains(r) {
					t.Errorf("FirstChars should not contain %q: %s", r, set)
				}
			}
		})
	}
}

func TestLastCharsOfLiteral(t *testing.T) {
	a := New(flags.Flags{})
	set := a.LastChars(lit("abc"))
	if !set.Contains('c') || set.Contains('a') {
		t.Errorf("LastChars(abc) = %s", set)
	}
}

// The dot stays Unknown with and without the s flag; callers must not rely
// on any newline interpretation.
func TestDotIsAlwaysUnknown(t *testing.T) {
	plain := New(flags.Flags{})
	dotall := New(flags.Flags{DotAll: true})
	if !plain.FirstChars(&ast.Dot{}).IsUnknown() {
		t.Error("dot should be unknown without s")
	}
	if !dotall.FirstChars(&ast.Dot{}).IsUnknown() {
		t.Error("dot should be unknown with s")
	}
}

func TestZeroWidthNodesAreEmpty(t *testing.T) {
	a := New(flags.Flags{})
	nodes := []ast.Node{
		&ast.Anchor{Value: "^"},
		&ast.Assertion{Value: 'b'},
		&ast.Keep{},
		&ast.Comment{Text: "x"},
		&ast.Callout{},
		&ast.PcreVerb{Verb: "FAIL"},
	}
	for _, n := range nodes {
		if !a.FirstChars(n).IsEmpty() {
			t.Errorf("%s should have empty first set", n.Type())
		}
	}
}

func TestLookaroundIsEmpty(t *testing.T) {
	a := New(flags.Flags{})
	la := &ast.Group{Kind: ast.GroupLookaheadPos, Child: lit("a")}
	if !a.FirstChars(la).IsEmpty() {
		t.Error("lookahead consumes nothing")
	}
}

// A negated class whose members are all known complements exactly; this is
// what lets a+[^a]+ prove its two quantifiers disjoint.
func TestNegatedClassComplement(t *testing.T) {
	a := New(flags.Flags{})
	notA := &ast.CharClass{Expression: lit("a"), IsNegated: true}
	set := a.FirstChars(notA)
	if set.IsUnknown() {
		t.Fatal("known negated class should not be unknown")
	}
	if set.Contains('a') || !set.Contains('b') {
		t.Errorf("negated class set wrong: contains a=%v b=%v", set.Contains('a'), set.Contains('b'))
	}
}

func TestBackrefUnknown(t *testing.T) {
	a := New(flags.Flags{})
	if !a.FirstChars(&ast.Backref{Ref: `\1`}).IsUnknown() {
		t.Error("backref must be unknown")
	}
	if !a.FirstChars(&ast.Subroutine{Reference: "R"}).IsUnknown() {
		t.Error("subroutine must be unknown")
	}
}

func TestUnicodeModeDigits(t *testing.T) {
	ascii := New(flags.Flags{})
	uni := New(flags.Flags{Unicode: true})
	d := &ast.CharType{Value: 'd'}

	// ARABIC-INDIC DIGIT ZERO belongs to Nd but not to ASCII [0-9].
	if ascii.FirstChars(d).Contains(0x0660) {
		t.Error("ascii \\d should not contain U+0660")
	}
	if !uni.FirstChars(d).Contains(0x0660) {
		t.Error("unicode \\d should contain U+0660")
	}
}

func TestEmptyLiteral(t *testing.T) {
	a := New(flags.Flags{})
	if !a.FirstChars(lit("")).IsEmpty() {
		t.Error("empty literal matches nothing to start with")
	}
}

func TestNullable(t *testing.T) {
	tests := []struct {
		name string
		node ast.Node
		want bool
	}{
		{"empty literal", lit(""), true},
		{"literal", lit("a"), false},
		{"star", quant("*", lit("a")), true},
		{"plus", quant("+", lit("a")), false},
		{"lookahead", &ast.Group{Kind: ast.GroupLookaheadPos, Child: lit("a")}, true},
		{"anchor", &ast.Anchor{Value: "^"}, true},
		{"alternation with empty", &ast.Alternation{Alternatives: []ast.Node{lit("a"), lit("")}}, true},
		{"sequence of solid", &ast.Sequence{Children: []ast.Node{lit("a"), lit("b")}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Nullable(tt.node); got != tt.want {
				t.Errorf("Nullable = %v, want %v", got, tt.want)
			}
		})
	}
}
