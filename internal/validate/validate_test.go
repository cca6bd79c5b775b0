package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0x4d5352/regaudit/internal/ast"
	"github.com/0x4d5352/regaudit/internal/parser"
)

// allowAll answers yes for every property so tests stay independent of the
// host engine's Unicode tables.
type allowAll struct{}

func (allowAll) IsSupported(string) bool { return true }

type denyAll struct{}

func (denyAll) IsSupported(string) bool { return false }

func mustParse(t *testing.T, source string) *ast.Regex {
	t.Helper()
	re, err := parser.Parse(source)
	require.NoError(t, err)
	return re
}

func validateSource(t *testing.T, source string) error {
	t.Helper()
	opts := DefaultOptions()
	opts.Oracle = allowAll{}
	return Validate(mustParse(t, source), opts)
}

func requireCode(t *testing.T, err error, code string) *SemanticError {
	t.Helper()
	require.Error(t, err)
	sem, ok := err.(*SemanticError)
	require.True(t, ok, "expected *SemanticError, got %T", err)
	require.Equal(t, code, sem.Code)
	return sem
}

func TestValidPatterns(t *testing.T) {
	sources := []string{
		`/abc/`,
		`/a{2,5}/`,
		`/(a)(b)\2/`,
		`/(?<y>a)\k<y>/`,
		`/(a)\g{-1}/`,
		`/(?R)/`,
		`/(?0)/`,
		`/(a)(?1)/`,
		`/(?<x>a)(?&x)/`,
		`/[a-z]/`,
		`/[[:alpha:]]/`,
		`/\x{10FFFF}/`,
		`/\o{17}/`,
		`/\012/`,
		`/\cA/`,
		`/(?<=abc)x/`,
		`/foo\Kbar/`,
		`/(?C12)a/`,
		`/(a)(?(1)b|c)/`,
		`/(?(?=a)b|c)/`,
		`/(?(DEFINE)(?<x>a))/`,
		`/(*FAIL)/`,
		`/(?J)(?<n>a)(?<n>b)/`,
		`/(?<n>a)(?<n>b)/J`,
	}
	for _, source := range sources {
		t.Run(source, func(t *testing.T) {
			require.NoError(t, validateSource(t, source))
		})
	}
}

func TestInvalidQuantifierRange(t *testing.T) {
	err := validateSource(t, `/a{5,2}/`)
	sem := requireCode(t, err, CodeQuantifierInvalidRange)
	// The error points at the opening brace.
	require.Equal(t, 2, sem.Pos.Start)
}

func TestBackrefMissingGroup(t *testing.T) {
	err := validateSource(t, `/(a)(b)\3/`)
	requireCode(t, err, CodeBackrefMissingGroup)
}

func TestBackrefZero(t *testing.T) {
	requireCode(t, validateSource(t, `/(a)\g{0}/`), CodeBackrefZero)
}

func TestBackrefRelativeOutOfRange(t *testing.T) {
	requireCode(t, validateSource(t, `/(a)\g{-2}/`), CodeBackrefRelativeOutOfRange)
}

func TestBackrefMissingName(t *testing.T) {
	requireCode(t, validateSource(t, `/(?<x>a)\k<y>/`), CodeBackrefMissingName)
}

func TestSubroutineMissingGroup(t *testing.T) {
	requireCode(t, validateSource(t, `/(a)(?2)/`), CodeSubroutineMissingGroup)
}

func TestSubroutineMissingName(t *testing.T) {
	requireCode(t, validateSource(t, `/(?<x>a)(?&y)/`), CodeSubroutineMissingName)
}

func TestRangeOutOfOrder(t *testing.T) {
	requireCode(t, validateSource(t, `/[z-a]/`), CodeRangeOutOfOrder)
}

func TestUnicodeOutOfRange(t *testing.T) {
	requireCode(t, validateSource(t, `/\x{110000}/`), CodeUnicodeOutOfRange)
}

func TestOctalValidation(t *testing.T) {
	requireCode(t, validateSource(t, `/\o{19}/`), CodeUnicodeInvalidOctal)
	requireCode(t, validateSource(t, `/\o{400}/`), CodeUnicodeOctalOutOfRange)
}

func TestUnknownNamedEscape(t *testing.T) {
	requireCode(t, validateSource(t, `/\N{SNOWMAN}/`), CodeUnicodeUnknownNamed)
}

func TestUnsupportedProperty(t *testing.T) {
	opts := DefaultOptions()
	opts.Oracle = denyAll{}
	err := Validate(mustParse(t, `/\p{Bogus_Property_Name}/`), opts)
	requireCode(t, err, CodeUnicodeUnsupportedProperty)
}

func TestEngineOracle(t *testing.T) {
	oracle := EngineOracle{}
	require.True(t, oracle.IsSupported("L"))
	require.False(t, oracle.IsSupported("Definitely_Not_A_Property"))
}

func TestPosixClassValidation(t *testing.T) {
	require.NoError(t, validateSource(t, `/[[:word:]]/`))
}

func TestPosixUnknownClass(t *testing.T) {
	requireCode(t, validateSource(t, `/[[:wrod:]]/`), CodePosixUnknownClass)
}

func TestPosixNegatedClass(t *testing.T) {
	requireCode(t, validateSource(t, `/[[:^word:]]/`), CodePosixNegatedClass)
}

func TestLookbehindUnbounded(t *testing.T) {
	err := validateSource(t, `/(?<=a+)x/`)
	sem := requireCode(t, err, CodeLookbehindUnbounded)
	// The offender is the inner quantifier, not the whole lookbehind.
	require.Equal(t, 5, sem.Pos.Start)
}

func TestLookbehindTooLong(t *testing.T) {
	requireCode(t, validateSource(t, `/(?<=a{1,300})x/`), CodeLookbehindTooLong)
}

func TestLookbehindLimitVerb(t *testing.T) {
	// The verb raises the budget for the whole pattern.
	require.NoError(t, validateSource(t, `/(*LIMIT_LOOKBEHIND=500)(?<=a{1,300})x/`))
}

func TestKeepInLookbehind(t *testing.T) {
	requireCode(t, validateSource(t, `/(?<=a\K)x/`), CodeKeepInLookbehind)
}

func TestCalloutIdentifier(t *testing.T) {
	requireCode(t, validateSource(t, `/(?C300)a/`), CodeCalloutInvalidIdentifier)
}

func TestControlCharRange(t *testing.T) {
	require.NoError(t, validateSource(t, `/\cA/`))
}

func TestConditionalInvalidCondition(t *testing.T) {
	re := mustParse(t, `/(a)(?(1)b|c)/`)
	// Swap the condition for a plain literal to simulate a malformed tree.
	cond := findConditional(re.Pattern)
	require.NotNil(t, cond)
	cond.Condition = &ast.Literal{Value: "x"}
	opts := DefaultOptions()
	opts.Oracle = allowAll{}
	requireCode(t, Validate(re, opts), CodeConditionalInvalid)
}

func findConditional(n ast.Node) *ast.Conditional {
	if c, ok := n.(*ast.Conditional); ok {
		return c
	}
	for _, c := range ast.Children(n) {
		if found := findConditional(c); found != nil {
			return found
		}
	}
	return nil
}

func TestDuplicateNames(t *testing.T) {
	requireCode(t, validateSource(t, `/(?<n>a)(?<n>b)/`), CodeGroupDuplicateName)
}

func TestVerbUnknown(t *testing.T) {
	requireCode(t, validateSource(t, `/(*NOPE)/`), CodeVerbUnknown)
}

func TestMatchLength(t *testing.T) {
	tests := []struct {
		source  string
		min     int
		max     int
		bounded bool
	}{
		{`/abc/`, 3, 3, true},
		{`/a{2,5}/`, 2, 5, true},
		{`/a|bc/`, 1, 2, true},
		{`/a*/`, 0, 0, false},
		{`/(?=x)a/`, 1, 1, true},
		{`/(a)\1/`, 1, 0, false},
		{`/a{2,3}b{0,2}/`, 2, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			re := mustParse(t, tt.source)
			lr := matchLength(re.Pattern)
			require.Equal(t, tt.bounded, lr.Bounded)
			require.Equal(t, tt.min, lr.Min)
			if tt.bounded {
				require.Equal(t, tt.max, lr.Max)
			}
		})
	}
}
