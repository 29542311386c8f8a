// Package fileset expands source globs into concrete files.
package fileset

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// File is a matched source file. Rel is the path relative to the static
// base of the glob and is what destinations are built from.
type File struct {
	Path string
	Rel  string
}

// Expand returns every regular file matching pattern, sorted by Rel.
// A base directory that does not exist yields no files and no error.
func Expand(pattern string) ([]File, error) {
	base, rest := doublestar.SplitPattern(path.Clean(filepath.ToSlash(pattern)))

	matches, err := doublestar.Glob(os.DirFS(filepath.FromSlash(base)), rest, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("expanding %s: %w", pattern, err)
	}

	files := make([]File, 0, len(matches))
	for _, m := range matches {
		files = append(files, File{
			Path: filepath.Join(filepath.FromSlash(base), filepath.FromSlash(m)),
			Rel:  filepath.FromSlash(m),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}

// ExpandAll expands several patterns, dropping duplicate paths.
func ExpandAll(patterns ...string) ([]File, error) {
	seen := make(map[string]bool)
	var out []File
	for _, p := range patterns {
		files, err := Expand(p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if seen[f.Path] {
				continue
			}
			seen[f.Path] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Match reports whether name is matched by any of the patterns. Both sides
// are compared in slash form.
func Match(name string, patterns ...string) bool {
	name = path.Clean(filepath.ToSlash(name))
	for _, p := range patterns {
		ok, err := doublestar.Match(path.Clean(filepath.ToSlash(p)), name)
		if err == nil && ok {
			return true
		}
	}
	return false
}
