// Package renderer turns page templates into formatted HTML documents.
//
// Pages and partials are scriggo templates read from the source root, so a
// page can extend a layout or render a partial by its absolute path, e.g.
// {% extends "/templates/layout.html" %}. Partials are only ever reached
// through pages and are never written out on their own.
package renderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/open2b/scriggo"

	perrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/transform"
)

// Options tune the rendered output.
type Options struct {
	// Minify runs the formatted document through the HTML minifier.
	Minify bool
}

// PageRenderer renders pages found under one source root.
type PageRenderer struct {
	root     string
	fsys     fs.FS
	minifier *transform.Minifier
}

// NewPageRenderer creates a renderer reading templates from sourceRoot.
func NewPageRenderer(sourceRoot string, opts Options) *PageRenderer {
	r := &PageRenderer{
		root: sourceRoot,
		fsys: os.DirFS(sourceRoot),
	}
	if opts.Minify {
		r.minifier = transform.NewMinifier()
	}
	return r
}

// PageName returns the template name of file relative to the source root in
// the slash form the template file system expects.
func (r *PageRenderer) PageName(file string) (string, error) {
	rel, err := filepath.Rel(r.root, file)
	if err != nil {
		return "", err
	}
	name := filepath.ToSlash(rel)
	if err := validatePageName(name); err != nil {
		return "", err
	}
	return name, nil
}

// Render builds and runs one page and returns the formatted document. name
// is relative to the source root.
func (r *PageRenderer) Render(ctx context.Context, name string) ([]byte, error) {
	if err := validatePageName(name); err != nil {
		return nil, perrors.NewRenderError(name, "invalid page name", err)
	}
	file := filepath.Join(r.root, filepath.FromSlash(name))

	tpl, err := scriggo.BuildTemplate(r.fsys, name, nil)
	if err != nil {
		return nil, r.templateError(file, err)
	}

	var buf bytes.Buffer
	if err := tpl.Run(&buf, nil, &scriggo.RunOptions{Context: ctx}); err != nil {
		return nil, r.templateError(file, err)
	}

	out, err := Format(buf.Bytes())
	if err != nil {
		return nil, perrors.NewRenderError(file, "formatting rendered page", err)
	}

	if r.minifier != nil {
		out, err = r.minifier.Bytes(transform.MediaHTML, out)
		if err != nil {
			return nil, perrors.NewRenderError(file, "minifying rendered page", err)
		}
	}
	return out, nil
}

// scriggo reports build errors as "path:line:column: message".
var locatedError = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*(.*)$`)

func (r *PageRenderer) templateError(file string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return perrors.NewRenderError(file, "template not found", err)
	}

	m := locatedError.FindStringSubmatch(err.Error())
	if m == nil {
		return perrors.NewRenderError(file, "template failed", err)
	}
	line, _ := strconv.Atoi(m[2])
	column, _ := strconv.Atoi(m[3])

	where := file
	if name := strings.TrimPrefix(m[1], "/"); name != "" {
		where = filepath.Join(r.root, filepath.FromSlash(name))
	}
	return perrors.NewRenderError(where, m[4], nil).WithLocation(where, line, column)
}

func validatePageName(name string) error {
	clean := path.Clean(name)
	if name == "" || clean == "." {
		return fmt.Errorf("empty page name")
	}
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("page %s is outside the source root", name)
	}
	return nil
}
