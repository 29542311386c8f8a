// Package css holds the stylesheet model the CSS and purge tasks operate
// on: a small tree built from tdewolff/parse grammar events, a canonical
// printer, a rule-based linter with auto-fix, and unused selector removal
// driven by markup extracted from page and template sources.
package css

import "strings"

// Kind is the type of a stylesheet node.
type Kind int

const (
	Stylesheet Kind = iota
	Ruleset
	// AtRule is a statement at-rule such as @import or @charset.
	AtRule
	// AtBlock is an at-rule with a block such as @media or @font-face.
	AtBlock
	Declaration
	Comment
)

func (k Kind) String() string {
	switch k {
	case Stylesheet:
		return "stylesheet"
	case Ruleset:
		return "ruleset"
	case AtRule:
		return "at-rule"
	case AtBlock:
		return "at-block"
	case Declaration:
		return "declaration"
	case Comment:
		return "comment"
	default:
		return "unknown"
	}
}

// Node is one stylesheet element. Which fields are meaningful depends on
// Kind.
type Node struct {
	Kind Kind

	// Name is the at-keyword including '@' for AtRule and AtBlock.
	Name    string
	Prelude string

	Selectors []string

	Property  string
	Value     string
	Important bool

	Text string

	Children []*Node
}

// IsCustomProperty reports whether the declaration defines a --variable.
func (n *Node) IsCustomProperty() bool {
	return n.Kind == Declaration && strings.HasPrefix(n.Property, "--")
}

// AtName returns the lower-case at-keyword without '@' and vendor prefix.
func (n *Node) AtName() string {
	name := strings.ToLower(strings.TrimPrefix(n.Name, "@"))
	if strings.HasPrefix(name, "-") {
		if i := strings.Index(name[1:], "-"); i >= 0 {
			name = name[i+2:]
		}
	}
	return name
}

// SelectorString joins the selector list the way it appears in source.
func (n *Node) SelectorString() string {
	return strings.Join(n.Selectors, ", ")
}

// Empty reports whether a block has nothing but comments inside.
func (n *Node) Empty() bool {
	for _, c := range n.Children {
		if c.Kind != Comment {
			return false
		}
	}
	return true
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the children of that node.
func Walk(n *Node, fn func(n, parent *Node) bool) {
	walk(n, nil, fn)
}

func walk(n, parent *Node, fn func(n, parent *Node) bool) {
	if !fn(n, parent) {
		return
	}
	for _, c := range n.Children {
		walk(c, n, fn)
	}
}

// Filter removes the children of n for which keep returns false,
// recursively, children first.
func Filter(n *Node, keep func(n *Node) bool) {
	kept := n.Children[:0]
	for _, c := range n.Children {
		Filter(c, keep)
		if keep(c) {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(n.Children); i++ {
		n.Children[i] = nil
	}
	n.Children = kept
}

// Selectors returns every selector of every ruleset under n.
func Selectors(n *Node) []string {
	var out []string
	Walk(n, func(c, _ *Node) bool {
		if c.Kind == Ruleset {
			out = append(out, c.Selectors...)
		}
		return true
	})
	return out
}
