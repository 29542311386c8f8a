package css

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/conneroisu/sitepipe/internal/errors"
)

func mustParse(t *testing.T, src string) *Node {
	t.Helper()
	sheet, err := Parse([]byte(src), "style.css")
	require.NoError(t, err)
	return sheet
}

func TestParseAndFormat(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "single rule",
			src:  "a{color:red}",
			want: "a {\n  color: red;\n}\n",
		},
		{
			name: "selector list",
			src:  "h1,h2 > span{margin:0 auto;font-weight:bold !important}",
			want: "h1,\nh2 > span {\n  margin: 0 auto;\n  font-weight: bold !important;\n}\n",
		},
		{
			name: "media block",
			src:  "@media screen{.nav{display:flex}}p{color:blue}",
			want: "@media screen {\n  .nav {\n    display: flex;\n  }\n}\n\np {\n  color: blue;\n}\n",
		},
		{
			name: "custom property",
			src:  ":root{--brand: #336699}",
			want: ":root {\n  --brand: #336699;\n}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Format(mustParse(t, tt.src))))
		})
	}
}

func TestParseSelectors(t *testing.T) {
	sheet := mustParse(t, "a, .b:not(.c, .d), #e{x:y}")
	require.Len(t, sheet.Children, 1)
	assert.Equal(t, []string{"a", ".b:not(.c, .d)", "#e"}, sheet.Children[0].Selectors)
}

func TestParseError(t *testing.T) {
	_, err := Parse([]byte("a {\n  color red;\n}\n"), "src/css/style.css")
	require.Error(t, err)
	assert.True(t, perrors.IsKind(err, perrors.KindRender))
	assert.Contains(t, err.Error(), "src/css/style.css")
}

func TestLint(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		rules     []string
		remaining int
		want      string
	}{
		{
			name:  "empty block removed",
			src:   "a{}b{color:red}",
			rules: []string{RuleBlockNoEmpty},
			want:  "b {\n  color: red;\n}\n",
		},
		{
			name:  "identical duplicate removed",
			src:   "a{color:red;color:red}",
			rules: []string{RuleNoDuplicateProperties},
			want:  "a {\n  color: red;\n}\n",
		},
		{
			name: "fallback duplicate allowed",
			src:  "a{display:block;display:grid}",
			want: "a {\n  display: block;\n  display: grid;\n}\n",
		},
		{
			name:      "separated duplicate reported",
			src:       "a{color:red;margin:0;color:blue}",
			rules:     []string{RuleNoDuplicateProperties},
			remaining: 1,
			want:      "a {\n  color: red;\n  margin: 0;\n  color: blue;\n}\n",
		},
		{
			name:  "hex lowercased",
			src:   "a{border:1px solid #FFAA00}",
			rules: []string{RuleColorHexCase},
			want:  "a {\n  border: 1px solid #ffaa00;\n}\n",
		},
		{
			name:      "invalid hex reported",
			src:       "a{color:#ggg}",
			rules:     []string{RuleColorNoInvalidHex},
			remaining: 1,
			want:      "a {\n  color: #ggg;\n}\n",
		},
		{
			name: "hex inside url ignored",
			src:  "a{mask:url(icons.svg#Arrow)}",
			want: "a {\n  mask: url(icons.svg#Arrow);\n}\n",
		},
		{
			name:  "zero length unit dropped",
			src:   "a{margin:0px 10px 0em}",
			rules: []string{RuleLengthZeroNoUnit},
			want:  "a {\n  margin: 0 10px 0;\n}\n",
		},
		{
			name: "zero inside calc kept",
			src:  "a{width:calc(100% - 0px)}",
			want: "a {\n  width: calc(100% - 0px);\n}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet := mustParse(t, tt.src)
			result := Lint(sheet, LintOptions{Fix: true})

			var rules []string
			for _, p := range result.Problems {
				rules = append(rules, p.Rule)
			}
			assert.Equal(t, tt.rules, rules)
			assert.Len(t, result.Remaining(), tt.remaining)
			assert.Equal(t, tt.want, string(Format(sheet)))
		})
	}
}

func TestLintWithoutFixLeavesSheet(t *testing.T) {
	sheet := mustParse(t, "a{color:#ABC}b{}")
	result := Lint(sheet, LintOptions{})
	assert.Len(t, result.Remaining(), 2)
	assert.Equal(t, "a {\n  color: #ABC;\n}\n\nb {\n}\n", string(Format(sheet)))
}

func TestLintNestedEmptyBlocks(t *testing.T) {
	sheet := mustParse(t, "@media print{a{}}p{color:red}")
	result := Lint(sheet, LintOptions{Fix: true})
	assert.Len(t, result.Problems, 2)
	assert.Equal(t, "p {\n  color: red;\n}\n", string(Format(sheet)))
}

func TestPurgeRemovesUnusedAndKeepsSafelist(t *testing.T) {
	sheet := mustParse(t, ".unused{color:red}.carousel-dot{display:block}")
	used, err := ExtractMarkup([]byte(`<div class="hero">hi</div>`))
	require.NoError(t, err)

	result := Purge(sheet, used, PurgeOptions{Safelist: []string{"carousel-dot"}})

	assert.Equal(t, []string{".unused"}, result.Selectors)
	out := string(Format(sheet))
	assert.Contains(t, out, ".carousel-dot")
	assert.NotContains(t, out, ".unused")
}

func TestPurgeSelectors(t *testing.T) {
	src := `
html{font-size:16px}
*{box-sizing:border-box}
:root{--x:1}
.hero h1{margin:0}
.hero h2{margin:0}
.nav a:hover, .ghost{color:red}
#main{padding:1rem}
input[type="text"]{border:0}
@media (max-width:600px){.ghost{display:none}}
@keyframes spin{from{opacity:0}to{opacity:1}}
@font-face{font-family:X;src:url(x.woff2)}
`
	sheet := mustParse(t, src)
	used, err := ExtractMarkup([]byte(`<main id="main"><nav class="nav"><a href="/">x</a></nav><section class="hero"><h1>t</h1></section></main>`))
	require.NoError(t, err)

	result := Purge(sheet, used, PurgeOptions{})

	assert.ElementsMatch(t, []string{".hero h2", ".ghost", ".ghost", "input[type=\"text\"]"}, result.Selectors)

	kept := Selectors(sheet)
	assert.Contains(t, kept, "html")
	assert.Contains(t, kept, "*")
	assert.Contains(t, kept, ":root")
	assert.Contains(t, kept, ".hero h1")
	assert.Contains(t, kept, ".nav a:hover")
	assert.Contains(t, kept, "#main")
	assert.Contains(t, kept, "from")

	out := string(Format(sheet))
	assert.NotContains(t, out, "@media")
	assert.Contains(t, out, "@keyframes spin")
	assert.Contains(t, out, "@font-face")
}

func TestPurgeVariables(t *testing.T) {
	src := `:root{--brand:#123456;--accent:var(--brand);--unused:3px;--orphan:var(--unused)}.a{color:var(--accent)}`
	sheet := mustParse(t, src)
	used := make(Set)
	used.Add("a")

	result := Purge(sheet, used, PurgeOptions{Variables: true})

	assert.ElementsMatch(t, []string{"--unused", "--orphan"}, result.Variables)
	out := string(Format(sheet))
	assert.Contains(t, out, "--brand")
	assert.Contains(t, out, "--accent")
	assert.NotContains(t, out, "--unused")
}

func TestPurgeVariablesDropsEmptiedRule(t *testing.T) {
	sheet := mustParse(t, ":root{--gone:1px}p{color:red}")
	used := make(Set)
	used.Add("p")

	Purge(sheet, used, PurgeOptions{Variables: true})
	assert.Equal(t, "p {\n  color: red;\n}\n", string(Format(sheet)))
}

func TestAnalyzeSelector(t *testing.T) {
	tests := []struct {
		sel  string
		want selectorParts
	}{
		{".a.b", selectorParts{classes: []string{"a", "b"}}},
		{"ul > li.item", selectorParts{classes: []string{"item"}, tags: []string{"ul", "li"}}},
		{"#top .x::before", selectorParts{classes: []string{"x"}, ids: []string{"top"}}},
		{"a:not(.hidden)", selectorParts{tags: []string{"a"}}},
		{`.md\:flex`, selectorParts{classes: []string{"md:flex"}}},
		{"[data-open] .menu", selectorParts{classes: []string{"menu"}}},
		{"DIV", selectorParts{tags: []string{"div"}}},
	}

	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			assert.Equal(t, tt.want, analyzeSelector(tt.sel))
		})
	}
}

func TestExtractMarkup(t *testing.T) {
	src := []byte(`{% extends "/templates/layout.html" %}
{% macro Content %}
<section class="gallery {{ if wide }}gallery--wide{{ end }}" id="photos">
  <img class="carousel-item" src="a.jpg">
  <button class="{{ active ? "btn-on" : 'btn-off' }}">Next</button>
</section>
{% end %}`)

	words, err := ExtractMarkup(src)
	require.NoError(t, err)

	for _, w := range []string{"section", "img", "button", "gallery", "gallery--wide", "photos", "carousel-item", "btn-on", "btn-off", "html", "body"} {
		assert.True(t, words.Has(w), "missing %q", w)
	}
	assert.False(t, words.Has("wide"))
}

func TestExtractMarkupAttributeWords(t *testing.T) {
	words, err := ExtractMarkup([]byte(`<button data-toggle="menu-open" aria-controls="nav-drawer">Menu</button>`))
	require.NoError(t, err)

	assert.True(t, words.Has("menu-open"))
	assert.True(t, words.Has("nav-drawer"))
	assert.True(t, words.Has("button"))

	sheet := mustParse(t, ".menu-open{display:block}.nav-drawer{left:0}.closed{display:none}")
	result := Purge(sheet, words, PurgeOptions{})
	assert.Equal(t, []string{".closed"}, result.Selectors)
}

func TestPurgeFunctionalPseudoClassLists(t *testing.T) {
	src := `.hero:not(.big, .unused-x){color:red}
:is(.card, .tile) > p, .gone{margin:0}
.after{color:blue}`
	sheet := mustParse(t, src)
	used, err := ExtractMarkup([]byte(`<section class="hero"><p>x</p></section><div class="after"></div>`))
	require.NoError(t, err)

	result := Purge(sheet, used, PurgeOptions{})
	assert.Equal(t, []string{".gone"}, result.Selectors)

	out := Format(sheet)
	assert.Contains(t, string(out), ".hero:not(.big, .unused-x) {")
	assert.Contains(t, string(out), ":is(.card, .tile) > p {")

	reparsed, err := Parse(out, "out.css")
	require.NoError(t, err)
	assert.Equal(t, []string{".hero:not(.big, .unused-x)", ":is(.card, .tile) > p", ".after"}, Selectors(reparsed))
}

func TestSet(t *testing.T) {
	s := make(Set)
	s.Add("b", "", "a")
	other := make(Set)
	other.Add("c")
	s.Merge(other)
	assert.Equal(t, []string{"a", "b", "c"}, s.Sorted())
}
