// Package paths holds the static table that maps every asset category to
// the glob its sources are read from and the directory its output lands in.
//
// The table is pure data. Tasks resolve the categories they need when the
// task flow is defined, so a task naming a category the table does not carry
// fails before anything runs.
package paths

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Category names an asset class handled by one task.
type Category string

const (
	HTML      Category = "html"
	Pages     Category = "pages"
	Templates Category = "templates"
	CSS       Category = "css"
	JS        Category = "js"
	Fonts     Category = "fonts"
	Images    Category = "images"
	Videos    Category = "videos"
)

// ErrUnknownCategory is returned when a category is absent from the table.
var ErrUnknownCategory = errors.New("unknown path category")

// Entry is the source glob and destination directory of one category.
// Dest is empty for categories that are only read (pages, templates).
type Entry struct {
	Source string
	Dest   string
}

// Table is an immutable category lookup.
type Table struct {
	entries map[Category]Entry
}

// Default returns the stock layout rooted at the given source and output
// directories.
func Default(source, output string) Table {
	src := func(p string) string { return path.Join(filepath.ToSlash(source), p) }
	dst := func(p string) string { return filepath.Join(output, p) }

	return Table{entries: map[Category]Entry{
		HTML:      {Source: src("pages/**/*.html"), Dest: dst("")},
		Pages:     {Source: src("pages/**/*.html")},
		Templates: {Source: src("templates/**/*.html")},
		CSS:       {Source: src("css/style.css"), Dest: dst("")},
		JS:        {Source: src("js/**/*.js"), Dest: dst("js")},
		Fonts:     {Source: src("fonts/**/*"), Dest: dst("fonts")},
		Images:    {Source: src("images/**/*"), Dest: dst("images")},
		Videos:    {Source: src("videos/**/*"), Dest: dst("videos")},
	}}
}

// New builds a table from explicit entries after validating them.
func New(entries map[Category]Entry) (Table, error) {
	t := Table{entries: make(map[Category]Entry, len(entries))}
	for category, entry := range entries {
		if err := validateEntry(entry); err != nil {
			return Table{}, fmt.Errorf("%s: %w", category, err)
		}
		t.entries[category] = entry
	}
	return t, nil
}

// With returns a copy of the table with one entry replaced.
func (t Table) With(category Category, entry Entry) (Table, error) {
	if err := validateEntry(entry); err != nil {
		return Table{}, fmt.Errorf("%s: %w", category, err)
	}
	next := Table{entries: make(map[Category]Entry, len(t.entries)+1)}
	for k, v := range t.entries {
		next.entries[k] = v
	}
	next.entries[category] = entry
	return next, nil
}

// Resolve looks a category up.
func (t Table) Resolve(category Category) (Entry, error) {
	entry, ok := t.entries[category]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return entry, nil
}

// MustResolve is Resolve for task definitions that cannot continue without
// the entry.
func (t Table) MustResolve(category Category) Entry {
	entry, err := t.Resolve(category)
	if err != nil {
		panic(err)
	}
	return entry
}

// Categories returns the table keys in sorted order.
func (t Table) Categories() []Category {
	out := make([]Category, 0, len(t.entries))
	for c := range t.entries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func validateEntry(entry Entry) error {
	if entry.Source == "" {
		return errors.New("empty source glob")
	}
	if !doublestar.ValidatePattern(filepath.ToSlash(entry.Source)) {
		return fmt.Errorf("invalid source glob %q", entry.Source)
	}
	for _, p := range []string{entry.Source, entry.Dest} {
		if p == "" {
			continue
		}
		if filepath.IsAbs(p) {
			return fmt.Errorf("path %q must be relative", p)
		}
		for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(p)), "/") {
			if part == ".." {
				return fmt.Errorf("path %q contains traversal", p)
			}
		}
	}
	return nil
}
