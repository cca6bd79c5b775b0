package redos

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0x4d5352/regaudit/internal/ast"
	"github.com/0x4d5352/regaudit/internal/parser"
)

func profileSource(t *testing.T, source string) Report {
	t.Helper()
	re, err := parser.Parse(source)
	require.NoError(t, err)
	return Profile(re, source)
}

func hasRecommendation(rep Report, substr string) bool {
	for _, rec := range rep.Recommendations {
		if strings.Contains(rec, substr) {
			return true
		}
	}
	return false
}

func TestNestedUnboundedIsCritical(t *testing.T) {
	rep := profileSource(t, `/(a+)+$/`)
	require.Equal(t, Critical, rep.Severity)
	require.True(t, hasRecommendation(rep, "Nested unbounded quantifiers"))
	require.True(t, hasRecommendation(rep, "Star Height > 1"))
	require.Equal(t, "a+", rep.VulnerableFragment)
}

func TestDisjointBoundaryDowngrades(t *testing.T) {
	rep := profileSource(t, `/a+[^a]+a/`)
	require.LessOrEqual(t, rep.Severity, Low)
	require.False(t, hasRecommendation(rep, "Star Height"))
}

func TestClassicEmailPattern(t *testing.T) {
	rep := profileSource(t, `/([a-z]+)+@/`)
	require.Equal(t, Critical, rep.Severity)
}

func TestNestedWithSeparatorIsLow(t *testing.T) {
	// The comma fences the inner a+ from re-consuming input.
	rep := profileSource(t, `/(?:a+,)+b/`)
	require.LessOrEqual(t, rep.Severity, Low)
}

func TestOverlappingAlternativesUnderStar(t *testing.T) {
	rep := profileSource(t, `/(?:ab|ac)+/`)
	require.Equal(t, Critical, rep.Severity)
	require.True(t, hasRecommendation(rep, "Alternation branches"))
}

func TestDisjointAlternativesUnderStar(t *testing.T) {
	rep := profileSource(t, `/(?:ab|cd)+x/`)
	require.Less(t, rep.Severity, Critical)
}

func TestBackrefLoop(t *testing.T) {
	rep := profileSource(t, `/(?:(a+)\1)+/`)
	require.Equal(t, Critical, rep.Severity)
}

func TestAtomicGroupCapsSeverity(t *testing.T) {
	rep := profileSource(t, `/(?>(a+)+)$/`)
	require.LessOrEqual(t, rep.Severity, Low)
}

func TestPossessiveQuantifierCapsSeverity(t *testing.T) {
	rep := profileSource(t, `/(?:a+)++$/`)
	require.LessOrEqual(t, rep.Severity, Low)
}

func TestControlVerbCapsSeverity(t *testing.T) {
	rep := profileSource(t, `/(?:a+(*COMMIT))+/`)
	require.LessOrEqual(t, rep.Severity, Low)
}

func TestLargeBoundedRepetition(t *testing.T) {
	rep := profileSource(t, `/a{1,5000}/`)
	require.Equal(t, Low, rep.Severity)
}

func TestNestedBoundedQuantifiers(t *testing.T) {
	rep := profileSource(t, `/(?:a{2,3}){2,3}/`)
	require.Equal(t, Low, rep.Severity)
}

func TestSubroutineIsMedium(t *testing.T) {
	rep := profileSource(t, `/(a(?1)?b)/`)
	require.GreaterOrEqual(t, rep.Severity, Medium)
}

func TestPlainPatternIsSafe(t *testing.T) {
	rep := profileSource(t, `/^abc$/`)
	require.Equal(t, Safe, rep.Severity)
	require.Empty(t, rep.Recommendations)
}

func TestSingleUnboundedAgainstOverlap(t *testing.T) {
	// a+ can trade characters with the following a.
	rep := profileSource(t, `/a+a/`)
	require.Equal(t, Medium, rep.Severity)
}

func TestSeverityOrdering(t *testing.T) {
	require.True(t, Safe < Low && Low < Unknown && Unknown < Medium && Medium < High && High < Critical)
}

func TestSeverityStrings(t *testing.T) {
	for sev, want := range map[Severity]string{
		Safe: "safe", Low: "low", Unknown: "unknown",
		Medium: "medium", High: "high", Critical: "critical",
	} {
		require.Equal(t, want, sev.String())
	}
}

func TestProfileDoesNotMutate(t *testing.T) {
	re, err := parser.Parse(`/(a+)+/`)
	require.NoError(t, err)
	before := countNodes(re)
	Profile(re, `/(a+)+/`)
	require.Equal(t, before, countNodes(re))
}

func countNodes(n ast.Node) int {
	total := 1
	for _, c := range ast.Children(n) {
		total += countNodes(c)
	}
	return total
}
