package tasks

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	perrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/paths"
	"github.com/conneroisu/sitepipe/internal/server"
	"github.com/conneroisu/sitepipe/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

// WatchBinding ties source globs to the one task they rerun.
type WatchBinding struct {
	Task     string
	Patterns []string
}

// WatchBindings lists the watcher bindings in the order they are made.
func (p *Pipeline) WatchBindings() []WatchBinding {
	source := func(c paths.Category) string { return p.entries[c].Source }
	return []WatchBinding{
		{Task: HTML, Patterns: []string{source(paths.Pages), source(paths.Templates)}},
		{Task: CSS, Patterns: p.cfg.Watch.CSS},
		{Task: JS, Patterns: []string{source(paths.JS)}},
		{Task: Images, Patterns: []string{source(paths.Images)}},
		{Task: Fonts, Patterns: []string{source(paths.Fonts)}},
		{Task: Videos, Patterns: []string{source(paths.Videos)}},
	}
}

// watch serves the output directory and reruns a task whenever one of its
// sources changes, until ctx is done.
func (p *Pipeline) watch(ctx context.Context) error {
	srv := server.New(server.Options{
		Host:       p.cfg.Server.Host,
		Port:       p.cfg.Server.Port,
		Root:       p.cfg.Output,
		SocketPath: p.cfg.Server.SocketPath,
		Logger:     p.logger,
	})
	if err := srv.Start(ctx); err != nil {
		return perrors.NewIOError(p.cfg.Addr(), "starting dev server", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, err, "dev server shutdown")
		}
	}()

	prev := p.setNotifier(srv)
	defer p.setNotifier(prev)

	fw, err := watcher.NewFileWatcher(p.cfg.Watch.Debounce, p.logger)
	if err != nil {
		return perrors.NewIOError(p.cfg.Source, "creating file watcher", err)
	}
	defer fw.Stop()
	fw.AddFilter(outsideDir(p.cfg.Output))

	for _, b := range p.WatchBindings() {
		task := b.Task
		err := fw.Bind(watcher.Binding{
			Name:     task,
			Patterns: b.Patterns,
			Handler: func(ctx context.Context, events []watcher.ChangeEvent) {
				for _, e := range events {
					p.logger.Debug(ctx, "source changed", "task", task, "path", e.Path, "event", e.Type.String())
				}
				p.rerun(ctx, task)
			},
		})
		if err != nil {
			return perrors.NewConfigError("watching "+task+" sources", err)
		}
	}

	if err := fw.Start(ctx); err != nil {
		return perrors.NewIOError(p.cfg.Source, "starting file watcher", err)
	}

	p.logger.Info(ctx, "dev server running", "url", "http://"+srv.Addr())
	<-ctx.Done()
	p.logger.Info(context.Background(), "stopping dev server")
	return nil
}

// outsideDir skips events under dir so writes to the output never trigger a
// rebuild, even when it sits inside a watched source directory.
func outsideDir(dir string) watcher.FileFilter {
	root := filepath.Clean(dir)
	return func(path string) bool {
		rel, err := filepath.Rel(root, filepath.Clean(path))
		return err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
	}
}
