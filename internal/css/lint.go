package css

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule names follow stylelint's so reports read familiar.
const (
	RuleBlockNoEmpty            = "block-no-empty"
	RuleNoDuplicateProperties   = "declaration-block-no-duplicate-properties"
	RuleColorHexCase            = "color-hex-case"
	RuleColorNoInvalidHex       = "color-no-invalid-hex"
	RuleLengthZeroNoUnit        = "length-zero-no-unit"
	RuleDeclarationNoEmptyValue = "declaration-no-empty-value"
)

// Problem is one lint finding.
type Problem struct {
	Rule    string
	Context string
	Message string
	Fixed   bool
}

func (p Problem) String() string {
	status := "✖"
	if p.Fixed {
		status = "fixed"
	}
	return fmt.Sprintf("%s  %s  %s (%s)", status, p.Context, p.Message, p.Rule)
}

// LintOptions control the lint pass.
type LintOptions struct {
	// Fix corrects fixable problems in place.
	Fix bool
}

// LintResult holds every problem found in one pass.
type LintResult struct {
	Problems []Problem
}

// Remaining returns the problems that were not fixed.
func (r LintResult) Remaining() []Problem {
	var out []Problem
	for _, p := range r.Problems {
		if !p.Fixed {
			out = append(out, p)
		}
	}
	return out
}

var (
	hexPattern     = regexp.MustCompile(`#([0-9A-Za-z]+)\b`)
	urlPattern     = regexp.MustCompile(`(?i)url\([^)]*\)`)
	validHex       = regexp.MustCompile(`^(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	zeroLength     = regexp.MustCompile(`(^|[\s,(])([-+]?0+(?:\.0+)?)(px|em|rem|ex|ch|vw|vh|vmin|vmax|cm|mm|in|pt|pc|q)\b`)
	mathFunctionRe = regexp.MustCompile(`(?i)\b(calc|min|max|clamp)\(`)
)

// Lint checks the stylesheet and, with Fix set, corrects what it can.
func Lint(sheet *Node, opts LintOptions) LintResult {
	var result LintResult
	report := func(rule, context, message string, fixed bool) {
		result.Problems = append(result.Problems, Problem{Rule: rule, Context: context, Message: message, Fixed: fixed})
	}

	Walk(sheet, func(n, _ *Node) bool {
		switch n.Kind {
		case Ruleset, AtBlock:
			lintDuplicates(n, opts, report)
		case Declaration:
			lintDeclaration(n, opts, report)
		}
		return true
	})

	lintEmptyBlocks(sheet, opts, report)

	return result
}

func contextOf(n *Node) string {
	switch n.Kind {
	case Ruleset:
		return n.SelectorString()
	case AtBlock, AtRule:
		return strings.TrimSpace(n.Name + " " + n.Prelude)
	case Declaration:
		return n.Property
	}
	return n.Kind.String()
}

// lintEmptyBlocks removes blocks with no content. Removing a rule can leave
// its parent empty, so parents are checked after their children.
func lintEmptyBlocks(sheet *Node, opts LintOptions, report func(rule, context, message string, fixed bool)) {
	var visit func(n *Node)
	visit = func(n *Node) {
		kept := n.Children[:0]
		for _, c := range n.Children {
			if c.Kind == Ruleset || c.Kind == AtBlock {
				visit(c)
				if c.Empty() {
					report(RuleBlockNoEmpty, contextOf(c), "Unexpected empty block", opts.Fix)
					if opts.Fix {
						continue
					}
				}
			}
			kept = append(kept, c)
		}
		n.Children = kept
	}
	visit(sheet)
}

// lintDuplicates flags a property declared twice in one block. Identical
// duplicates are removable. Consecutive duplicates with different values are
// the usual fallback pattern and are allowed.
func lintDuplicates(block *Node, opts LintOptions, report func(rule, context, message string, fixed bool)) {
	lastIndex := make(map[string]int)
	drop := make(map[int]bool)

	for i, c := range block.Children {
		if c.Kind != Declaration {
			continue
		}
		key := c.Property
		if !c.IsCustomProperty() {
			key = strings.ToLower(key)
		}
		prev, seen := lastIndex[key]
		lastIndex[key] = i
		if !seen {
			continue
		}
		earlier := block.Children[prev]
		switch {
		case earlier.Value == c.Value && earlier.Important == c.Important:
			report(RuleNoDuplicateProperties, contextOf(block), fmt.Sprintf("Unexpected duplicate %q", c.Property), opts.Fix)
			if opts.Fix {
				drop[prev] = true
			}
		case consecutive(block.Children, prev, i):
		default:
			report(RuleNoDuplicateProperties, contextOf(block), fmt.Sprintf("Unexpected duplicate %q", c.Property), false)
		}
	}

	if len(drop) == 0 {
		return
	}
	kept := block.Children[:0]
	for i, c := range block.Children {
		if !drop[i] {
			kept = append(kept, c)
		}
	}
	block.Children = kept
}

func consecutive(children []*Node, a, b int) bool {
	for i := a + 1; i < b; i++ {
		if children[i].Kind == Declaration {
			return false
		}
	}
	return true
}

func lintDeclaration(n *Node, opts LintOptions, report func(rule, context, message string, fixed bool)) {
	if n.IsCustomProperty() {
		return
	}
	ctx := contextOf(n)

	if strings.TrimSpace(n.Value) == "" {
		report(RuleDeclarationNoEmptyValue, ctx, "Unexpected empty value", false)
		return
	}

	scan := urlPattern.ReplaceAllStringFunc(n.Value, func(s string) string { return strings.Repeat(" ", len(s)) })
	for _, m := range hexPattern.FindAllStringSubmatchIndex(scan, -1) {
		hex := n.Value[m[2]:m[3]]
		if !validHex.MatchString(hex) {
			report(RuleColorNoInvalidHex, ctx, fmt.Sprintf("Unexpected invalid hex color \"#%s\"", hex), false)
			continue
		}
		if lower := strings.ToLower(hex); lower != hex {
			report(RuleColorHexCase, ctx, fmt.Sprintf("Expected \"#%s\" to be \"#%s\"", hex, lower), opts.Fix)
			if opts.Fix {
				n.Value = n.Value[:m[2]] + lower + n.Value[m[3]:]
			}
		}
	}

	if mathFunctionRe.MatchString(n.Value) {
		return
	}
	if zeroLength.MatchString(n.Value) {
		report(RuleLengthZeroNoUnit, ctx, "Unexpected unit on zero length", opts.Fix)
		if opts.Fix {
			n.Value = zeroLength.ReplaceAllString(n.Value, "${1}0")
		}
	}
}
