package tasks

import (
	"context"

	"github.com/conneroisu/sitepipe/internal/assets"
	perrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/fileset"
	"github.com/conneroisu/sitepipe/internal/paths"
	"github.com/conneroisu/sitepipe/internal/transform"
)

func (p *Pipeline) clean(ctx context.Context) error {
	deleted, err := assets.Clean(p.cfg.Output)
	for _, path := range deleted {
		p.logger.Info(ctx, "deleted", "path", path)
	}
	if err != nil {
		return perrors.NewIOError(p.cfg.Output, "cleaning output directory", err)
	}
	return nil
}

// copyTask copies one binary category unchanged. Each written file is
// pushed to the browser as a changed asset.
func (p *Pipeline) copyTask(name string, category paths.Category) func(context.Context) error {
	entry := p.entries[category]
	return func(ctx context.Context) error {
		copier := &assets.Copier{
			Concurrency: p.cfg.Build.Concurrency,
			OnWrite:     func(dest string) { p.notify().AssetChanged(dest) },
		}
		res, err := copier.Copy(ctx, entry)
		p.logger.Debug(ctx, "copied", "task", name, "files", len(res.Written))
		return err
	}
}

func (p *Pipeline) scripts(ctx context.Context) error {
	copier := &assets.Copier{Concurrency: p.cfg.Build.Concurrency}
	if p.cfg.JS.Transpile {
		target := p.cfg.JS.Target
		copier.Transform = func(f fileset.File, data []byte) ([]byte, error) {
			return transform.JS(data, f.Path, target)
		}
	}

	res, err := copier.Copy(ctx, p.entries[paths.JS])
	p.logger.Debug(ctx, "copied", "task", JS, "files", len(res.Written))
	if err != nil {
		return err
	}
	p.notify().Reload()
	return nil
}
