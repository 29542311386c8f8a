package assets

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/fileset"
	"github.com/conneroisu/sitepipe/internal/paths"
)

func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, content, 0o644))
	}
}

func slashGlob(parts ...string) string {
	return filepath.ToSlash(filepath.Join(parts...))
}

func TestCopyIsByteIdentical(t *testing.T) {
	root := t.TempDir()
	binary := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff, 0x10, 0x00, '\r', '\n'}
	writeTree(t, root, map[string][]byte{
		"src/images/logo.png":       binary,
		"src/images/icons/next.svg": []byte("<svg/>"),
	})

	out := filepath.Join(root, "public", "images")
	var mu sync.Mutex
	var notified []string
	c := &Copier{Concurrency: 2, OnWrite: func(dest string) {
		mu.Lock()
		notified = append(notified, dest)
		mu.Unlock()
	}}

	res, err := c.Copy(context.Background(), paths.Entry{Source: slashGlob(root, "src/images/**/*"), Dest: out})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(out, "icons", "next.svg"),
		filepath.Join(out, "logo.png"),
	}, res.Written)
	assert.ElementsMatch(t, res.Written, notified)

	got, err := os.ReadFile(filepath.Join(out, "logo.png"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(binary, got))
}

func TestCopyEmptySource(t *testing.T) {
	root := t.TempDir()
	res, err := (&Copier{}).Copy(context.Background(), paths.Entry{
		Source: slashGlob(root, "src/videos/**/*"),
		Dest:   filepath.Join(root, "public", "videos"),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Written)
}

func TestCopyContinuesAfterFailure(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{
		"src/js/a.js":   []byte("a()"),
		"src/js/bad.js": []byte("bad()"),
		"src/js/c.js":   []byte("c()"),
	})

	c := &Copier{Transform: func(f fileset.File, data []byte) ([]byte, error) {
		if strings.HasSuffix(f.Path, "bad.js") {
			return nil, perrors.NewRenderError(f.Path, "cannot transpile", nil)
		}
		return append([]byte("/* t */"), data...), nil
	}}

	out := filepath.Join(root, "public", "js")
	res, err := c.Copy(context.Background(), paths.Entry{Source: slashGlob(root, "src/js/**/*.js"), Dest: out})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.js")
	assert.Len(t, perrors.Split(err), 1)
	assert.Len(t, res.Written, 2)

	got, err := os.ReadFile(filepath.Join(out, "c.js"))
	require.NoError(t, err)
	assert.Equal(t, "/* t */c()", string(got))
	assert.NoFileExists(t, filepath.Join(out, "bad.js"))
}

func TestClean(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "public")
	writeTree(t, out, map[string][]byte{
		"index.html":      nil,
		"img10.png":       nil,
		"img2.png":        nil,
		"js/app.js":       nil,
		"fonts/a/b.woff2": nil,
	})

	removed, err := Clean(out)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(out, "fonts"),
		filepath.Join(out, "fonts", "a"),
		filepath.Join(out, "fonts", "a", "b.woff2"),
		filepath.Join(out, "img2.png"),
		filepath.Join(out, "img10.png"),
		filepath.Join(out, "index.html"),
		filepath.Join(out, "js"),
		filepath.Join(out, "js", "app.js"),
	}, removed)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// second run has nothing left to do
	removed, err = Clean(out)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestCleanMissingDir(t *testing.T) {
	removed, err := Clean(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, removed)
}
