package lint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0x4d5352/regaudit/internal/parser"
)

func lintSource(t *testing.T, source string) []Issue {
	t.Helper()
	re, err := parser.Parse(source)
	require.NoError(t, err)
	return Lint(re)
}

func codes(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Code
	}
	return out
}

func requireIssue(t *testing.T, issues []Issue, code string) {
	t.Helper()
	require.Contains(t, codes(issues), code)
}

func requireNoIssue(t *testing.T, issues []Issue, code string) {
	t.Helper()
	require.NotContains(t, codes(issues), code)
}

func TestUselessFlags(t *testing.T) {
	issues := lintSource(t, `/abc/ism`)
	requireIssue(t, issues, CodeFlagUselessI)
	requireIssue(t, issues, CodeFlagUselessS)
	requireIssue(t, issues, CodeFlagUselessM)
}

func TestUsefulFlagsStayQuiet(t *testing.T) {
	issues := lintSource(t, `/A.c^x/ism`)
	requireNoIssue(t, issues, CodeFlagUselessI)
	requireNoIssue(t, issues, CodeFlagUselessS)
	requireNoIssue(t, issues, CodeFlagUselessM)
}

func TestBackrefKeepsCaseFlagAlive(t *testing.T) {
	// A backref can re-match cased text, so i is not useless.
	issues := lintSource(t, `/(a)\1/i`)
	requireNoIssue(t, issues, CodeFlagUselessI)
}

func TestInlineFlagRedundant(t *testing.T) {
	requireIssue(t, lintSource(t, `/(?i)abc/i`), CodeFlagRedundant)
	requireIssue(t, lintSource(t, `/(?-s)abc/`), CodeFlagRedundant)
}

func TestInlineFlagOverride(t *testing.T) {
	requireIssue(t, lintSource(t, `/(?-i)abc/i`), CodeFlagOverride)
}

func TestRedundantGroup(t *testing.T) {
	requireIssue(t, lintSource(t, `/(?:a)b/`), CodeGroupRedundant)
	requireNoIssue(t, lintSource(t, `/(?:ab|c)d/`), CodeGroupRedundant)
}

func TestRedundantClassElements(t *testing.T) {
	requireIssue(t, lintSource(t, `/[aab]/`), CodeClassRedundant)
	requireIssue(t, lintSource(t, `/[a-zb]/`), CodeClassRedundant)
	requireNoIssue(t, lintSource(t, `/[abc]/`), CodeClassRedundant)
}

func TestSuspiciousRange(t *testing.T) {
	requireIssue(t, lintSource(t, `/[A-z]/`), CodeClassSuspiciousRange)
	requireNoIssue(t, lintSource(t, `/[a-z]/`), CodeClassSuspiciousRange)
}

func TestSuspiciousPipe(t *testing.T) {
	requireIssue(t, lintSource(t, `/[a|b|c|d]/`), CodeClassSuspiciousPipe)
	requireNoIssue(t, lintSource(t, `/[a|b]/`), CodeClassSuspiciousPipe)
}

func TestDuplicateBranches(t *testing.T) {
	requireIssue(t, lintSource(t, `/foo|bar|foo/`), CodeAltDuplicate)
	requireNoIssue(t, lintSource(t, `/foo|bar/`), CodeAltDuplicate)
}

func TestOverlappingBranchesInUnboundedQuantifier(t *testing.T) {
	requireIssue(t, lintSource(t, `/(?:ab|ac)+/`), CodeAltOverlap)
	requireNoIssue(t, lintSource(t, `/(?:a|b)+/`), CodeAltOverlap)
	// Outside a quantifier, overlap is harmless.
	requireNoIssue(t, lintSource(t, `/ab|ac/`), CodeAltOverlap)
}

func TestNestedQuantifiers(t *testing.T) {
	requireIssue(t, lintSource(t, `/(a+)*/`), CodeQuantifierNested)
	requireIssue(t, lintSource(t, `/(?:a{1,3})+/`), CodeQuantifierNested)
	// A separator with a disjoint alphabet fences the inner quantifier.
	requireNoIssue(t, lintSource(t, `/(?:a+x)*/`), CodeQuantifierNested)
	// A fixed-count inner quantifier cannot vary.
	requireNoIssue(t, lintSource(t, `/(?:a{3})+/`), CodeQuantifierNested)
}

func TestDotStarWrap(t *testing.T) {
	requireIssue(t, lintSource(t, `/(?:a.*)+/`), CodeQuantifierDotStar)
	requireNoIssue(t, lintSource(t, `/a.*/`), CodeQuantifierDotStar)
}

func TestMissingBackref(t *testing.T) {
	requireIssue(t, lintSource(t, `/(a)\9/`), CodeBackrefMissing)
	requireIssue(t, lintSource(t, `/(?<x>a)\k<y>/`), CodeBackrefMissing)
	requireNoIssue(t, lintSource(t, `/(a)\1/`), CodeBackrefMissing)
}

func TestImpossibleAnchors(t *testing.T) {
	requireIssue(t, lintSource(t, `/a^b/`), CodeAnchorImpossible)
	requireIssue(t, lintSource(t, `/a$b/`), CodeAnchorImpossible)
	requireNoIssue(t, lintSource(t, `/^ab$/`), CodeAnchorImpossible)
	// Multiline anchors can match mid-string.
	requireNoIssue(t, lintSource(t, `/a^b/m`), CodeAnchorImpossible)
}

func TestSuspiciousEscapes(t *testing.T) {
	requireIssue(t, lintSource(t, `/\x{110000}/`), CodeEscapeSuspicious)
	requireIssue(t, lintSource(t, `/\N{NOPE}/`), CodeEscapeSuspicious)
	requireNoIssue(t, lintSource(t, `/\x{2603}/`), CodeEscapeSuspicious)
}

func TestIssuesCarryPositions(t *testing.T) {
	issues := lintSource(t, `/[A-z]/`)
	require.NotEmpty(t, issues)
	for _, issue := range issues {
		if issue.Code == CodeClassSuspiciousRange {
			require.NotNil(t, issue.Pos)
			require.Equal(t, 2, issue.Pos.Start)
		}
	}
}

func TestMessages(t *testing.T) {
	issues := lintSource(t, `/abc/s`)
	msgs := Messages(issues)
	require.Len(t, msgs, len(issues))
	require.NotEmpty(t, msgs)
}
