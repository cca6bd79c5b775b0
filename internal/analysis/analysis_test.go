package analysis

import (
	"testing"

	"github.com/0x4d5352/regaudit/internal/parser"
)

func TestRegistryHasBuiltins(t *testing.T) {
	for _, name := range []string{"validate", "lint", "optimize", "redos"} {
		a, ok := Get(name)
		if !ok {
			t.Fatalf("analysis %q not registered", name)
		}
		if a.Name() != name || a.Description() == "" {
			t.Errorf("analysis %q metadata incomplete", name)
		}
	}
}

func TestListSorted(t *testing.T) {
	names := List()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("List() not sorted: %v", names)
		}
	}
}

func TestRunAll(t *testing.T) {
	re, err := parser.Parse(`/(a+)+$/`)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range List() {
		a, _ := Get(name)
		section, err := a.Run(re, `/(a+)+$/`)
		if err != nil {
			t.Errorf("%s: %v", name, err)
		}
		if section.Title != name {
			t.Errorf("%s: section title %q", name, section.Title)
		}
	}
}

func TestUnknownAnalysisError(t *testing.T) {
	err := ErrUnknownAnalysis.New("bogus")
	if !ErrUnknownAnalysis.Is(err) {
		t.Error("kind should recognize its own errors")
	}
}
