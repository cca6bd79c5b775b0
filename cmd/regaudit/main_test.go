package main

import (
	"bytes"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(append([]string{"regaudit"}, args...), nil, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRunAllAnalyses(t *testing.T) {
	stdout, _, err := runCLI(t, "--no-color", `/(a+)+$/`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"validate", "lint", "optimize", "redos", "severity: critical"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestRunSingleAnalysis(t *testing.T) {
	stdout, _, err := runCLI(t, "--no-color", "--analysis", "optimize", `/[0-9]/`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout, `/\d/`) {
		t.Errorf("optimize output missing rewritten pattern:\n%s", stdout)
	}
	if strings.Contains(stdout, "redos") {
		t.Errorf("unselected analysis ran:\n%s", stdout)
	}
}

func TestRunBarePattern(t *testing.T) {
	stdout, _, err := runCLI(t, "--no-color", "--bare", "--flags", "i", "--analysis", "lint", "abc")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout, "regex.lint.flag.useless.i") {
		t.Errorf("expected useless-i lint:\n%s", stdout)
	}
}

func TestRunParseError(t *testing.T) {
	_, stderr, err := runCLI(t, "--no-color", `/(ab/`)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(stderr, "^") {
		t.Errorf("expected position indicator in:\n%s", stderr)
	}
}

func TestRunUnknownAnalysis(t *testing.T) {
	_, _, err := runCLI(t, "--analysis", "nope", `/a/`)
	if err == nil {
		t.Fatal("expected unknown analysis error")
	}
}

func TestRunStdin(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"regaudit", "--no-color", "--analysis", "validate"},
		strings.NewReader("/abc/\n"), &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), "semantically valid") {
		t.Errorf("unexpected output:\n%s", stdout.String())
	}
}

func TestVersionFlag(t *testing.T) {
	stdout, _, err := runCLI(t, "--version")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout, version) {
		t.Errorf("version output missing %q: %s", version, stdout)
	}
}
