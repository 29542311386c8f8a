package tasks

import (
	"context"
	"path/filepath"

	"github.com/sourcegraph/conc/pool"

	"github.com/conneroisu/sitepipe/internal/assets"
	perrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/fileset"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/paths"
)

// html renders every page. A page that fails to render writes nothing; the
// other pages are still written and the task fails at the end.
func (p *Pipeline) html(ctx context.Context) error {
	entry := p.entries[paths.HTML]
	files, err := fileset.Expand(entry.Source)
	if err != nil {
		return perrors.NewIOError(entry.Source, "expanding page glob", err)
	}

	op := logging.StartOperation(p.logger, HTML)
	faults := perrors.NewErrorCollector()
	workers := pool.New().WithMaxGoroutines(p.concurrency())
	for _, f := range files {
		workers.Go(func() {
			faults.Add(p.renderPage(ctx, f, filepath.Join(entry.Dest, f.Rel)))
		})
	}
	workers.Wait()

	if err := faults.Err(); err != nil {
		return err
	}
	op.End(ctx, "rendered pages", "pages", len(files))
	p.notify().Reload()
	return nil
}

func (p *Pipeline) renderPage(ctx context.Context, f fileset.File, dest string) error {
	name, err := p.pages.PageName(f.Path)
	if err != nil {
		return perrors.NewRenderError(f.Path, "page is outside the source directory", err)
	}
	out, err := p.pages.Render(ctx, name)
	if err != nil {
		return err
	}
	if err := assets.WriteFile(dest, out); err != nil {
		return perrors.NewIOError(dest, "writing page", err)
	}
	return nil
}
