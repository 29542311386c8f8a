package css

import (
	"bytes"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Set is the collection of tag names, classes and ids seen in markup.
type Set map[string]struct{}

// Add inserts words into the set.
func (s Set) Add(words ...string) {
	for _, w := range words {
		if w != "" {
			s[w] = struct{}{}
		}
	}
}

// Has reports whether word is in the set.
func (s Set) Has(word string) bool {
	_, ok := s[word]
	return ok
}

// Merge adds every word of other.
func (s Set) Merge(other Set) {
	for w := range other {
		s[w] = struct{}{}
	}
}

// Sorted returns the words in order, mostly for tests and debug logging.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for w := range s {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

var (
	templateAction = regexp.MustCompile(`(?s)\{\{.*?\}\}|\{%.*?%\}|\{#.*?#\}`)
	stringLiteral  = regexp.MustCompile("\"((?:[^\"\\\\]|\\\\.)*)\"|'((?:[^'\\\\]|\\\\.)*)'|`([^`]*)`")
	wordPattern    = regexp.MustCompile(`[A-Za-z0-9_:-]+`)
)

// ExtractMarkup collects the selectors a page or template can match: every
// element name, every class and id, every word of other attribute values,
// plus any word quoted inside a template action.
//
// Template actions are blanked before parsing so a class attribute built
// from an action still yields its literal parts.
func ExtractMarkup(src []byte) (Set, error) {
	words := make(Set)

	for _, action := range templateAction.FindAll(src, -1) {
		for _, m := range stringLiteral.FindAllSubmatch(action, -1) {
			for _, group := range m[1:] {
				words.Add(wordPattern.FindAllString(string(group), -1)...)
			}
		}
	}

	blanked := templateAction.ReplaceAllFunc(src, func(b []byte) []byte {
		return bytes.Repeat([]byte(" "), len(b))
	})

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(blanked))
	if err != nil {
		return nil, err
	}

	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		words.Add(strings.ToLower(goquery.NodeName(sel)))
		for _, attr := range sel.Nodes[0].Attr {
			switch attr.Key {
			case "class", "id":
				words.Add(strings.Fields(attr.Val)...)
			default:
				// scripts often toggle classes named in data-* or aria-* values
				words.Add(wordPattern.FindAllString(attr.Val, -1)...)
			}
		}
	})

	return words, nil
}
