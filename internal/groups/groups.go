// Package groups implements the capture-numbering pre-pass. It assigns
// absolute capture numbers in PCRE source order and records named groups,
// so the validator and linter can resolve references without re-walking.
package groups

import "github.com/0x4d5352/regaudit/internal/ast"

// Info is the result of numbering a pattern's groups.
type Info struct {
	// MaxGroupNumber is the highest capture number assigned. Branch-reset
	// alternatives share numbers, so each alternative slot counts once.
	MaxGroupNumber int

	// Named maps a group name to the capture numbers it refers to. A name
	// maps to several numbers inside branch-reset groups or under the J flag.
	Named map[string][]int

	// CaptureSequence lists capture numbers in encounter order. Relative
	// references (\g{-1}, (?-1)) resolve against it.
	CaptureSequence []int
}

// HasName reports whether name was recorded.
func (i *Info) HasName(name string) bool {
	_, ok := i.Named[name]
	return ok
}

// Number walks the tree in source order and assigns capture numbers.
func Number(root ast.Node) *Info {
	info := &Info{Named: make(map[string][]int)}
	n := numberer{info: info}
	n.walk(root)
	info.MaxGroupNumber = n.counter
	return info
}

type numberer struct {
	info    *Info
	counter int
}

func (n *numberer) walk(node ast.Node) {
	switch t := node.(type) {
	case *ast.Group:
		if t.IsCapturing() {
			n.counter++
			n.info.CaptureSequence = append(n.info.CaptureSequence, n.counter)
			if t.Name != "" {
				n.info.Named[t.Name] = append(n.info.Named[t.Name], n.counter)
			}
		}
		if t.Kind == ast.GroupBranchReset {
			n.walkBranchReset(t.Child)
			return
		}
		n.walk(t.Child)
	default:
		for _, c := range ast.Children(node) {
			n.walk(c)
		}
	}
}

// walkBranchReset numbers (?|...) alternatives. Every alternative restarts
// at the entry counter; the group as a whole advances by the widest one.
func (n *numberer) walkBranchReset(child ast.Node) {
	alt, ok := child.(*ast.Alternation)
	if !ok {
		n.walk(child)
		return
	}
	start := n.counter
	widest := start
	for _, branch := range alt.Alternatives {
		n.counter = start
		n.walk(branch)
		if n.counter > widest {
			widest = n.counter
		}
	}
	n.counter = widest
}
