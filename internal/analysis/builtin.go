package analysis

import (
	"fmt"

	"github.com/0x4d5352/regaudit/internal/ast"
	"github.com/0x4d5352/regaudit/internal/lint"
	"github.com/0x4d5352/regaudit/internal/optimize"
	"github.com/0x4d5352/regaudit/internal/printer"
	"github.com/0x4d5352/regaudit/internal/redos"
	"github.com/0x4d5352/regaudit/internal/report"
	"github.com/0x4d5352/regaudit/internal/validate"
)

func init() {
	Register(&validateAnalysis{})
	Register(&lintAnalysis{})
	Register(&optimizeAnalysis{})
	Register(&redosAnalysis{})
}

type validateAnalysis struct{}

func (*validateAnalysis) Name() string { return "validate" }
func (*validateAnalysis) Description() string {
	return "Check the pattern for semantic errors (bad references, ranges, lookbehinds)"
}

func (*validateAnalysis) Run(re *ast.Regex, source string) (report.Section, error) {
	s := report.Section{Title: "validate"}
	err := validate.Validate(re, validate.DefaultOptions())
	if err == nil {
		s.Summary = "pattern is semantically valid"
		return s, nil
	}
	sem, ok := err.(*validate.SemanticError)
	if !ok {
		return s, err
	}
	if sem.Snippet == "" && sem.Pos.Start >= 0 && sem.Pos.End <= len(source) && sem.Pos.Start < sem.Pos.End {
		sem.Snippet = source[sem.Pos.Start:sem.Pos.End]
	}
	pos := sem.Pos
	s.Lines = append(s.Lines, report.Line{
		Level: report.Error,
		Text:  fmt.Sprintf("%s [%s]", sem.Message, sem.Code),
		Pos:   &pos,
		Hint:  sem.Hint,
	})
	return s, nil
}

type lintAnalysis struct{}

func (*lintAnalysis) Name() string        { return "lint" }
func (*lintAnalysis) Description() string { return "Report style and correctness smells" }

func (*lintAnalysis) Run(re *ast.Regex, source string) (report.Section, error) {
	s := report.Section{Title: "lint"}
	issues := lint.Lint(re)
	if len(issues) == 0 {
		s.Summary = "no issues"
		return s, nil
	}
	s.Summary = fmt.Sprintf("%d issue(s)", len(issues))
	for _, issue := range issues {
		s.Lines = append(s.Lines, report.Line{
			Level: report.Warning,
			Text:  fmt.Sprintf("%s [%s]", issue.Message, issue.Code),
			Pos:   issue.Pos,
			Hint:  issue.Hint,
		})
	}
	return s, nil
}

type optimizeAnalysis struct{}

func (*optimizeAnalysis) Name() string        { return "optimize" }
func (*optimizeAnalysis) Description() string { return "Rewrite the pattern into an equivalent, smaller one" }

func (*optimizeAnalysis) Run(re *ast.Regex, source string) (report.Section, error) {
	s := report.Section{Title: "optimize"}
	optimized := optimize.Optimize(re, optimize.DefaultOptions())
	if optimized == re {
		s.Summary = "already minimal"
		return s, nil
	}
	s.Summary = "optimized pattern:"
	s.Verbatim = printer.Print(optimized)
	return s, nil
}

type redosAnalysis struct{}

func (*redosAnalysis) Name() string        { return "redos" }
func (*redosAnalysis) Description() string { return "Profile the pattern for catastrophic backtracking risk" }

func (*redosAnalysis) Run(re *ast.Regex, source string) (report.Section, error) {
	s := report.Section{Title: "redos"}
	rep := redos.Profile(re, source)
	s.Summary = fmt.Sprintf("severity: %s", rep.Severity)
	level := report.Info
	switch {
	case rep.Severity >= redos.Critical:
		level = report.Fatal
	case rep.Severity >= redos.Medium:
		level = report.Error
	case rep.Severity >= redos.Low:
		level = report.Warning
	}
	for _, rec := range rep.Recommendations {
		s.Lines = append(s.Lines, report.Line{Level: level, Text: rec})
	}
	if rep.VulnerableFragment != "" {
		s.Lines = append(s.Lines, report.Line{
			Level: level,
			Text:  fmt.Sprintf("vulnerable fragment: %s", rep.VulnerableFragment),
		})
	}
	return s, nil
}
