package optimize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0x4d5352/regaudit/internal/ast"
	"github.com/0x4d5352/regaudit/internal/parser"
	"github.com/0x4d5352/regaudit/internal/printer"
)

func optimizeSource(t *testing.T, source string, opts Options) *ast.Regex {
	t.Helper()
	re, err := parser.Parse(source)
	require.NoError(t, err)
	return Optimize(re, opts)
}

func TestRewrites(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"digit class", `/[0-9]/`, `/\d/`},
		{"word class", `/[A-Za-z0-9_]/`, `/\w/`},
		{"adjacent class merge", `/[a-z]|[0-9]/`, `/[0-9a-z]/`},
		{"digit escape lifts into merge", `/[a-z]|\d/`, `/[0-9a-z]/`},
		{"class normalization sorts", `/[zb0a9c1-8]/`, `/[0-9a-cz]/`},
		{"covered literal dropped", `/[a-zm]/`, `/[a-z]/`},
		{"quantifier star", `/a{0,}/`, `/a*/`},
		{"quantifier plus", `/a{1,}/`, `/a+/`},
		{"quantifier question", `/a{0,1}/`, `/a?/`},
		{"quantifier one unwraps", `/a{1}/`, `/a/`},
		{"quantifier zero vanishes", `/ab{0}c/`, `/ac/`},
		{"group unwrap", `/(?:a)b/`, `/ab/`},
		{"group around class unwraps", `/(?:[ab])+/`, `/[ab]+/`},
		{"repeated literal compaction", `/aaaaab/`, `/a{5}b/`},
		{"run compaction", `/\d\d\d\d/`, `/\d{4}/`},
		{"alternation dedup", `/foo|bar|foo/`, `/foo|bar/`},
		{"single char branches", `/a|b|c/`, `/[a-c]/`},
		{"empty literal dropped", `/a(?:)b/`, `/ab/`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := optimizeSource(t, tt.source, DefaultOptions())
			require.Equal(t, tt.want, printer.Print(got))
		})
	}
}

func TestIdentityWhenUnchanged(t *testing.T) {
	re, err := parser.Parse(`/ab+c/`)
	require.NoError(t, err)
	got := Optimize(re, DefaultOptions())
	require.Same(t, re, got, "unchanged input must come back by identity")
}

func TestIdempotence(t *testing.T) {
	sources := []string{
		`/[0-9]/`,
		`/[a-z]|[0-9]/`,
		`/aaaaab/`,
		`/a{1,}b{0,1}/`,
		`/foo|bar|foo/`,
		`/(?:a)bc/`,
	}
	for _, source := range sources {
		t.Run(source, func(t *testing.T) {
			re, err := parser.Parse(source)
			require.NoError(t, err)
			once := Optimize(re, DefaultOptions())
			twice := Optimize(once, DefaultOptions())
			require.Same(t, once, twice, "second pass must be a fixpoint")
		})
	}
}

func TestCaptureSensitiveRunsKept(t *testing.T) {
	// Runs of capturing groups must never merge into a counted quantifier.
	got := optimizeSource(t, `/(a)(a)(a)(a)/`, DefaultOptions())
	require.Equal(t, `/(a)(a)(a)(a)/`, printer.Print(got))
}

func TestGroupKeptUnderQuantifier(t *testing.T) {
	// (?:abc)* must keep its group: abc* means something else.
	got := optimizeSource(t, `/(?:abc)*/`, DefaultOptions())
	require.Equal(t, `/(?:abc)*/`, printer.Print(got))
}

func TestMinQuantifierCount(t *testing.T) {
	opts := DefaultOptions()
	got := optimizeSource(t, `/aaab/`, opts)
	require.Equal(t, `/aaab/`, printer.Print(got), "runs below the minimum stay literal")

	opts.MinQuantifierCount = 2
	got = optimizeSource(t, `/aaab/`, opts)
	require.Equal(t, `/a{3}b/`, printer.Print(got))
}

func TestDigitsOptionRespectsUnicode(t *testing.T) {
	got := optimizeSource(t, `/[0-9]/u`, DefaultOptions())
	require.Equal(t, `/[0-9]/u`, printer.Print(got), "u mode changes \\d semantics")
}

func TestDigitsOptionOff(t *testing.T) {
	opts := DefaultOptions()
	opts.OptimizeDigits = false
	got := optimizeSource(t, `/[0-9]/`, opts)
	require.Equal(t, `/[0-9]/`, printer.Print(got))
}

func TestRangesOptionBlocksCategoryCrossing(t *testing.T) {
	// 9:; are consecutive code points, but the run crosses from digits
	// into punctuation. A is not adjacent to them and stays single.
	opts := DefaultOptions()
	got := optimizeSource(t, `/[9:;A]/`, opts)
	require.Equal(t, `/[9:;A]/`, printer.Print(got))

	opts.Ranges = false
	got = optimizeSource(t, `/[9:;A]/`, opts)
	require.Equal(t, `/[9-;A]/`, printer.Print(got))
}

func TestUselessFlagRemoval(t *testing.T) {
	got := optimizeSource(t, `/abc/s`, DefaultOptions())
	require.Equal(t, "", got.Flags, "s without a dot is dropped")

	got = optimizeSource(t, `/a.c/s`, DefaultOptions())
	require.Equal(t, "s", got.Flags)

	got = optimizeSource(t, `/abc/m`, DefaultOptions())
	require.Equal(t, "", got.Flags, "m without anchors is dropped")
}

func TestFactorizationPrefix(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowAlternationFactorization = true
	got := optimizeSource(t, `/ab|ac/`, opts)
	require.Equal(t, `/a(?:b|c)/`, printer.Print(got))
}

func TestFactorizationSuffix(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowAlternationFactorization = true
	got := optimizeSource(t, `/ax|bx/`, opts)
	require.Equal(t, `/(?:a|b)x/`, printer.Print(got))
}

func TestFactorizationEmptyBranchBecomesOptional(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowAlternationFactorization = true
	got := optimizeSource(t, `/ab|a/`, opts)
	require.Equal(t, `/a(?:b)?/`, printer.Print(got))
}

func TestFactorizationOffByDefault(t *testing.T) {
	got := optimizeSource(t, `/ab|ac/`, DefaultOptions())
	require.Equal(t, `/ab|ac/`, printer.Print(got))
}

func TestAutoPossessify(t *testing.T) {
	opts := DefaultOptions()
	opts.AutoPossessify = true
	got := optimizeSource(t, `/a+b/`, opts)
	require.Equal(t, `/a++b/`, printer.Print(got))

	// Overlapping boundary sets must stay backtrackable.
	got = optimizeSource(t, `/a+ab/`, opts)
	require.Equal(t, `/a+ab/`, printer.Print(got))
}

func TestAutoPossessifyOffByDefault(t *testing.T) {
	got := optimizeSource(t, `/a+b/`, DefaultOptions())
	require.Equal(t, `/a+b/`, printer.Print(got))
}

func TestPossessiveNeverWeakened(t *testing.T) {
	got := optimizeSource(t, `/a++b/`, DefaultOptions())
	require.Equal(t, `/a++b/`, printer.Print(got))
}

func TestClassOperationsLeftAlone(t *testing.T) {
	got := optimizeSource(t, `/[a-z&&[aeiou]]/`, DefaultOptions())
	require.Equal(t, `/[a-z&&[aeiou]]/`, printer.Print(got))
}

func TestLiteralRoundTrip(t *testing.T) {
	// The factorization compiler and its inverse parser must agree on the
	// subset they exchange.
	tests := []struct {
		name string
		node ast.Node
	}{
		{"plain", &ast.Literal{Value: "abc"}},
		{"metachars", &ast.Literal{Value: "a.b+c"}},
		{"char type", &ast.Sequence{Children: []ast.Node{
			&ast.Literal{Value: "a"},
			&ast.CharType{Value: 'd'},
		}}},
		{"raw quantifier tail", &ast.Sequence{Children: []ast.Node{
			&ast.Literal{Value: "x"},
			&ast.Literal{Value: "{2,3}", IsRaw: true},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, ok := renderLiteralTree(tt.node)
			require.True(t, ok)
			back := parseFactoredText(text, ast.Position{})
			again, ok := renderLiteralTree(&ast.Sequence{Children: back})
			require.True(t, ok)
			require.Equal(t, text, again)
		})
	}
}

func TestPositionsPreserved(t *testing.T) {
	re, err := parser.Parse(`/x[0-9]y/`)
	require.NoError(t, err)
	got := Optimize(re, DefaultOptions())
	seq, ok := got.Pattern.(*ast.Sequence)
	require.True(t, ok)
	// The synthesized \d inherits the class's position.
	d := seq.Children[1]
	require.Equal(t, 2, d.Span().Start)
	require.Equal(t, 7, d.Span().End)
}
