package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/0x4d5352/regaudit/internal/ast"
)

func TestRenderSection(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	pos := ast.Position{Start: 2, End: 4}
	r.Render("/ab+c/", Section{
		Title:   "lint",
		Summary: "1 issue(s)",
		Lines: []Line{
			{Level: Warning, Text: "something looks off", Pos: &pos, Hint: "fix it"},
		},
	})
	out := buf.String()
	for _, want := range []string{"lint", "1 issue(s)", "warn:", "something looks off", "hint: fix it", "/ab+c/"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// Caret sits under the offending range.
	if !strings.Contains(out, "  ^^") {
		t.Errorf("expected two-column caret:\n%s", out)
	}
}

func TestRenderVerbatim(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	r.Render("", Section{Title: "optimize", Summary: "optimized pattern:", Verbatim: `/\d/`})
	if !strings.Contains(buf.String(), `/\d/`) {
		t.Errorf("verbatim output missing:\n%s", buf.String())
	}
}

func TestLevelColorRamp(t *testing.T) {
	if levelColor(Info) == levelColor(Fatal) {
		t.Error("severity extremes should differ in color")
	}
}
