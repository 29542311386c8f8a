package assets

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/maruel/natural"

	perrors "github.com/conneroisu/sitepipe/internal/errors"
)

// Clean removes everything below dir and returns the removed paths in
// natural order. dir itself is kept. A missing dir is not an error.
func Clean(dir string) ([]string, error) {
	var removed []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return filepath.SkipAll
			}
			return err
		}
		if path != dir {
			removed = append(removed, path)
		}
		return nil
	})
	if err != nil {
		return nil, perrors.NewIOError(dir, "listing output", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, perrors.NewIOError(dir, "reading output", err)
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			return nil, perrors.NewIOError(p, "deleting", err)
		}
	}

	sort.Sort(natural.StringSlice(removed))
	return removed, nil
}
