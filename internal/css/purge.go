package css

import (
	"regexp"
	"strings"

	"github.com/tdewolff/parse/v2"
	tcss "github.com/tdewolff/parse/v2/css"
)

// PurgeOptions configure unused rule removal.
type PurgeOptions struct {
	// Safelist names classes or ids kept whether or not markup uses them.
	// A leading '.' or '#' is ignored.
	Safelist []string
	// Variables removes custom properties never reached through var().
	Variables bool
}

// PurgeResult lists what a purge removed.
type PurgeResult struct {
	Selectors []string
	Variables []string
}

// conditional at-rules whose rules are purged like top-level ones
var groupingRules = map[string]bool{
	"media":     true,
	"supports":  true,
	"layer":     true,
	"container": true,
	"document":  true,
	"scope":     true,
}

// Purge removes every selector whose classes, ids or element names do not
// all appear in used. Rulesets left with no selector are dropped, as are
// grouping at-rules left empty. @keyframes, @font-face and other at-rules are
// kept as they are.
func Purge(sheet *Node, used Set, opts PurgeOptions) PurgeResult {
	safe := make(Set, len(opts.Safelist))
	for _, s := range opts.Safelist {
		safe.Add(strings.TrimLeft(s, ".#"))
	}

	var result PurgeResult
	purgeBlock(sheet, used, safe, &result)

	if opts.Variables {
		result.Variables = purgeVariables(sheet)
	}
	return result
}

func purgeBlock(block *Node, used, safe Set, result *PurgeResult) {
	kept := block.Children[:0]
	for _, c := range block.Children {
		switch c.Kind {
		case Ruleset:
			var selectors []string
			for _, sel := range c.Selectors {
				if selectorUsed(sel, used, safe) {
					selectors = append(selectors, sel)
				} else {
					result.Selectors = append(result.Selectors, sel)
				}
			}
			if len(selectors) == 0 {
				continue
			}
			c.Selectors = selectors
		case AtBlock:
			if groupingRules[c.AtName()] {
				purgeBlock(c, used, safe, result)
				if c.Empty() {
					continue
				}
			}
		}
		kept = append(kept, c)
	}
	block.Children = kept
}

// selectorParts holds what a single complex selector requires of markup.
type selectorParts struct {
	classes []string
	ids     []string
	tags    []string
}

func (p selectorParts) empty() bool {
	return len(p.classes) == 0 && len(p.ids) == 0 && len(p.tags) == 0
}

func selectorUsed(sel string, used, safe Set) bool {
	parts := analyzeSelector(sel)
	if parts.empty() {
		return true
	}
	for _, name := range append(parts.classes, parts.ids...) {
		if safe.Has(name) {
			return true
		}
	}
	for _, group := range [][]string{parts.classes, parts.ids, parts.tags} {
		for _, name := range group {
			if !used.Has(name) {
				return false
			}
		}
	}
	return true
}

// analyzeSelector lexes one selector and collects its classes, ids and type
// selectors. Arguments of functional pseudo-classes and attribute selectors
// are ignored.
func analyzeSelector(sel string) selectorParts {
	var parts selectorParts
	lexer := tcss.NewLexer(parse.NewInputString(sel))

	depth, brackets := 0, 0
	afterDot, afterColon := false, false
	for {
		tt, data := lexer.Next()
		if tt == tcss.ErrorToken {
			return parts
		}

		switch tt {
		case tcss.FunctionToken, tcss.LeftParenthesisToken:
			depth++
		case tcss.RightParenthesisToken:
			if depth > 0 {
				depth--
			}
		case tcss.LeftBracketToken:
			brackets++
		case tcss.RightBracketToken:
			if brackets > 0 {
				brackets--
			}
		}
		if depth > 0 || brackets > 0 {
			afterDot, afterColon = false, false
			continue
		}

		switch tt {
		case tcss.DelimToken:
			afterDot = string(data) == "."
			afterColon = false
			continue
		case tcss.ColonToken:
			afterColon = true
			afterDot = false
			continue
		case tcss.HashToken:
			parts.ids = append(parts.ids, unescape(string(data[1:])))
		case tcss.IdentToken:
			switch {
			case afterDot:
				parts.classes = append(parts.classes, unescape(string(data)))
			case afterColon:
			default:
				parts.tags = append(parts.tags, strings.ToLower(string(data)))
			}
		}
		afterDot, afterColon = false, false
	}
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

var varReference = regexp.MustCompile(`var\(\s*(--[A-Za-z0-9_-]+)`)

// purgeVariables drops custom property declarations that no kept
// declaration reaches through var(), following references between custom
// properties transitively.
func purgeVariables(sheet *Node) []string {
	definitions := make(map[string][]string)
	reached := make(map[string]bool)
	var queue []string

	reference := func(value string) {
		for _, m := range varReference.FindAllStringSubmatch(value, -1) {
			if !reached[m[1]] {
				reached[m[1]] = true
				queue = append(queue, m[1])
			}
		}
	}

	Walk(sheet, func(n, _ *Node) bool {
		switch {
		case n.IsCustomProperty():
			definitions[n.Property] = append(definitions[n.Property], n.Value)
		case n.Kind == Declaration:
			reference(n.Value)
		case n.Kind == AtRule || n.Kind == AtBlock:
			reference(n.Prelude)
		}
		return true
	})

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, value := range definitions[name] {
			reference(value)
		}
	}

	var removed []string
	Filter(sheet, func(n *Node) bool {
		if n.IsCustomProperty() && !reached[n.Property] {
			removed = append(removed, n.Property)
			return false
		}
		return true
	})

	// rules that only held custom properties are now empty
	purgeEmpty(sheet)
	return removed
}

func purgeEmpty(block *Node) {
	kept := block.Children[:0]
	for _, c := range block.Children {
		if c.Kind == AtBlock && groupingRules[c.AtName()] {
			purgeEmpty(c)
		}
		if (c.Kind == Ruleset || (c.Kind == AtBlock && groupingRules[c.AtName()])) && c.Empty() {
			continue
		}
		kept = append(kept, c)
	}
	block.Children = kept
}
