package transform

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/conneroisu/sitepipe/internal/errors"
)

func TestParseTargets(t *testing.T) {
	engines, err := ParseTargets([]string{"chrome90", "Safari14.1", " firefox88 "})
	require.NoError(t, err)
	assert.Equal(t, []api.Engine{
		{Name: api.EngineChrome, Version: "90"},
		{Name: api.EngineSafari, Version: "14.1"},
		{Name: api.EngineFirefox, Version: "88"},
	}, engines)

	for _, bad := range []string{"chrome", "netscape4", "90"} {
		_, err := ParseTargets([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestBundleCSSLowersNesting(t *testing.T) {
	engines, err := ParseTargets([]string{"chrome90"})
	require.NoError(t, err)

	entry := filepath.Join(t.TempDir(), "style.css")
	require.NoError(t, os.WriteFile(entry, []byte(".card { color: red; .title { font-weight: bold; } }\n"), 0o644))

	out, err := BundleCSS(entry, engines)
	require.NoError(t, err)

	css := string(out)
	assert.Contains(t, css, ".card .title")
	assert.Contains(t, css, "font-weight: bold")
}

func TestBundleCSSKeepsURLs(t *testing.T) {
	entry := filepath.Join(t.TempDir(), "style.css")
	src := `@font-face {
  font-family: "Icons";
  src: url("../fonts/x.eot?#iefix") format("embedded-opentype"), url(../fonts/x.woff2) format("woff2");
}
.hero { background: url(../images/bg.png?v=2); }
.legacy { background: url("../images/bg.bmp"); }
`
	require.NoError(t, os.WriteFile(entry, []byte(src), 0o644))

	out, err := BundleCSS(entry, nil)
	require.NoError(t, err)

	css := string(out)
	for _, ref := range []string{"../fonts/x.eot?#iefix", "../fonts/x.woff2", "../images/bg.png?v=2", "../images/bg.bmp"} {
		assert.Contains(t, css, ref)
	}
}

func TestBundleCSSInlinesImports(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.css"), []byte(".base { margin: 0; }\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "style.css"),
		[]byte("@import \"./base.css\";\n.hero { background: url(images/hero.png); }\n"), 0o644))

	out, err := BundleCSS(filepath.Join(dir, "style.css"), nil)
	require.NoError(t, err)

	css := string(out)
	assert.Contains(t, css, ".base")
	assert.Contains(t, css, ".hero")
	assert.NotContains(t, css, "@import")
	assert.Contains(t, css, "hero.png")
	assert.NotContains(t, css, "base.css */")
	assert.NotContains(t, css, "style.css */")
}

func TestBundleCSSMissingImport(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "style.css")
	require.NoError(t, os.WriteFile(entry, []byte("@import \"./missing.css\";\n"), 0o644))

	_, err := BundleCSS(entry, nil)
	require.Error(t, err)
	assert.True(t, perrors.IsKind(err, perrors.KindRender))
}

func TestJSTranspile(t *testing.T) {
	out, err := JS([]byte("const add = (a, b) => a + b;\n"), "app.js", "es2015")
	require.NoError(t, err)
	assert.Contains(t, string(out), "add")

	out, err = JS([]byte("let x = a ?? b;\n"), "app.js", "es2019")
	require.NoError(t, err)
	assert.NotContains(t, string(out), "??")

	_, err = JS([]byte("let = ;"), "broken.js", "es2017")
	require.Error(t, err)
	assert.True(t, perrors.IsKind(err, perrors.KindRender))
	assert.Contains(t, err.Error(), "broken.js")

	_, err = JS([]byte("1"), "app.js", "es3")
	assert.Error(t, err)
}

func TestMinifier(t *testing.T) {
	m := NewMinifier()

	css, err := m.Bytes(MediaCSS, []byte(".a {\n  color: #ff0000;\n}\n"))
	require.NoError(t, err)
	assert.Equal(t, ".a{color:red}", string(css))

	html, err := m.Bytes(MediaHTML, []byte("<html>\n  <body>\n    <p class=\"x\">hi</p>\n  </body>\n</html>\n"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(html), `<p class="x">hi</p>`))
}
