// Package assets copies pass-through files (fonts, images, videos, scripts)
// from their source glob into the output tree.
package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	perrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/fileset"
	"github.com/conneroisu/sitepipe/internal/paths"
)

// DefaultConcurrency bounds the copy pool when none is configured.
const DefaultConcurrency = 8

// Transform rewrites a file's content on its way to the output. It must
// preserve the content's meaning.
type Transform func(file fileset.File, data []byte) ([]byte, error)

// Copier copies every file of a path entry, keeping relative structure.
// The zero value copies bytes unchanged with DefaultConcurrency workers.
type Copier struct {
	Concurrency int
	Transform   Transform
	// OnWrite is called with the destination of every written file. It may
	// be called from several goroutines at once.
	OnWrite func(dest string)
}

// Result lists the destinations written by one copy, sorted.
type Result struct {
	Written []string
}

// Copy expands entry.Source and writes each match under entry.Dest. A file
// that fails does not stop the others; every failure is returned joined.
func (c *Copier) Copy(ctx context.Context, entry paths.Entry) (Result, error) {
	files, err := fileset.Expand(entry.Source)
	if err != nil {
		return Result{}, perrors.NewIOError(entry.Source, "expanding source glob", err)
	}

	workers := c.Concurrency
	if workers <= 0 {
		workers = DefaultConcurrency
	}

	var (
		mu      sync.Mutex
		written []string
		faults  = perrors.NewErrorCollector()
	)

	p := pool.New().WithMaxGoroutines(workers)
	for _, f := range files {
		p.Go(func() {
			if ctx.Err() != nil {
				faults.Add(perrors.NewIOError(f.Path, "copy cancelled", ctx.Err()))
				return
			}
			dest := filepath.Join(entry.Dest, f.Rel)
			if err := c.copyFile(f, dest); err != nil {
				faults.Add(err)
				return
			}
			mu.Lock()
			written = append(written, dest)
			mu.Unlock()
			if c.OnWrite != nil {
				c.OnWrite(dest)
			}
		})
	}
	p.Wait()

	sort.Strings(written)
	return Result{Written: written}, faults.Err()
}

func (c *Copier) copyFile(f fileset.File, dest string) error {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return perrors.NewIOError(f.Path, "reading source", err)
	}
	if c.Transform != nil {
		data, err = c.Transform(f, data)
		if err != nil {
			return err
		}
	}
	if err := WriteFile(dest, data); err != nil {
		return perrors.NewIOError(dest, "writing output", err)
	}
	return nil
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}
