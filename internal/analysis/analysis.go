// Package analysis defines the interface for pattern analyses and provides
// a registry for discovering the available ones.
package analysis

import (
	"sort"
	"sync"

	"gopkg.in/src-d/go-errors.v1"

	"github.com/0x4d5352/regaudit/internal/ast"
	"github.com/0x4d5352/regaudit/internal/report"
)

// ErrUnknownAnalysis is returned when a requested analysis is not registered.
var ErrUnknownAnalysis = errors.NewKind("unknown analysis: %s")

// Analysis is one tree-walking check runnable from the CLI.
// Implementations are pure: the AST is never mutated.
type Analysis interface {
	// Name returns the analysis identifier used for CLI flag values.
	// It should be lowercase.
	Name() string

	// Description returns a human-readable description of the analysis.
	Description() string

	// Run analyzes the pattern and returns a renderable report.
	// source is the original pattern text, used for position display.
	Run(re *ast.Regex, source string) (report.Section, error)
}

// registry holds all registered analyses.
// It's protected by a mutex for safe concurrent access.
var (
	registry     = make(map[string]Analysis)
	registryLock sync.RWMutex
)

// Register adds an analysis to the registry. It is typically called from
// init() functions in the analysis packages.
func Register(a Analysis) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[a.Name()] = a
}

// Get retrieves an analysis by name.
func Get(name string) (Analysis, bool) {
	registryLock.RLock()
	defer registryLock.RUnlock()
	a, ok := registry[name]
	return a, ok
}

// List returns all registered analysis names in sorted order.
func List() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
