package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepipe/internal/assets"
	"github.com/conneroisu/sitepipe/internal/css"
	perrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/fileset"
	"github.com/conneroisu/sitepipe/internal/paths"
	"github.com/conneroisu/sitepipe/internal/transform"
)

// lintPolicy decides what happens to problems the fix pass leaves behind.
type lintPolicy int

const (
	reportProblems lintPolicy = iota
	failOnProblems
)

func (p *Pipeline) stylesheet(ctx context.Context) error {
	return p.eachStylesheet(ctx, func(f fileset.File, dest string) error {
		sheet, err := p.processStylesheet(ctx, f, reportProblems)
		if err != nil {
			return err
		}
		return p.writeStylesheet(dest, sheet)
	})
}

// purge runs the stylesheet chain with a fatal lint policy, then drops every
// rule no page or template can match.
func (p *Pipeline) purge(ctx context.Context) error {
	used, err := p.collectMarkup()
	if err != nil {
		return err
	}

	return p.eachStylesheet(ctx, func(f fileset.File, dest string) error {
		sheet, err := p.processStylesheet(ctx, f, failOnProblems)
		if err != nil {
			return err
		}

		removed := css.Purge(sheet, used, css.PurgeOptions{
			Safelist:  p.cfg.CSS.Safelist,
			Variables: p.cfg.CSS.Variables,
		})
		for _, sel := range removed.Selectors {
			p.logger.Debug(ctx, "purged selector", "selector", sel)
		}
		for _, v := range removed.Variables {
			p.logger.Debug(ctx, "purged variable", "property", v)
		}
		p.logger.Info(ctx, "purged stylesheet", "file", dest,
			"selectors", len(removed.Selectors), "variables", len(removed.Variables))

		return p.writeStylesheet(dest, sheet)
	})
}

func (p *Pipeline) eachStylesheet(ctx context.Context, fn func(f fileset.File, dest string) error) error {
	entry := p.entries[paths.CSS]
	files, err := fileset.Expand(entry.Source)
	if err != nil {
		return perrors.NewIOError(entry.Source, "expanding stylesheet glob", err)
	}
	if len(files) == 0 {
		p.logger.Warn(ctx, nil, "no stylesheet matched", "glob", entry.Source)
		return nil
	}

	faults := perrors.NewErrorCollector()
	for _, f := range files {
		faults.Add(fn(f, filepath.Join(entry.Dest, f.Rel)))
	}
	return faults.Err()
}

// processStylesheet bundles, parses and lints one entry stylesheet. Fixable
// problems are always fixed.
func (p *Pipeline) processStylesheet(ctx context.Context, f fileset.File, policy lintPolicy) (*css.Node, error) {
	bundled, err := transform.BundleCSS(f.Path, p.engines)
	if err != nil {
		return nil, err
	}

	sheet, err := css.Parse(bundled, f.Path)
	if err != nil {
		return nil, err
	}

	result := css.Lint(sheet, css.LintOptions{Fix: true})
	for _, problem := range result.Problems {
		if problem.Fixed {
			p.logger.Debug(ctx, "lint fixed", "file", f.Path, "rule", problem.Rule, "context", problem.Context)
			continue
		}
		p.logger.Warn(ctx, nil, problem.Message, "file", f.Path, "rule", problem.Rule, "context", problem.Context)
	}

	remaining := result.Remaining()
	if policy == failOnProblems && len(remaining) > 0 {
		lines := make([]string, len(remaining))
		for i, problem := range remaining {
			lines[i] = problem.String()
		}
		return nil, perrors.NewLintError(f.Path,
			fmt.Sprintf("%d lint problem(s) remain:\n%s", len(remaining), strings.Join(lines, "\n")))
	}
	return sheet, nil
}

func (p *Pipeline) writeStylesheet(dest string, sheet *css.Node) error {
	out := css.Format(sheet)
	if p.minifier != nil {
		minified, err := p.minifier.Bytes(transform.MediaCSS, out)
		if err != nil {
			return perrors.NewRenderError(dest, "minifying stylesheet", err)
		}
		out = minified
	}
	if err := assets.WriteFile(dest, out); err != nil {
		return perrors.NewIOError(dest, "writing stylesheet", err)
	}
	p.notify().StyleChanged(dest)
	return nil
}

// collectMarkup gathers the words every page and template can put in the
// document: tag names, classes, ids and literals inside template actions.
func (p *Pipeline) collectMarkup() (css.Set, error) {
	files, err := fileset.ExpandAll(p.entries[paths.Pages].Source, p.entries[paths.Templates].Source)
	if err != nil {
		return nil, perrors.NewIOError(p.cfg.Source, "expanding markup globs", err)
	}

	used := make(css.Set)
	for _, f := range files {
		src, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, perrors.NewIOError(f.Path, "reading markup", err)
		}
		words, err := css.ExtractMarkup(src)
		if err != nil {
			return nil, perrors.NewRenderError(f.Path, "scanning markup", err)
		}
		used.Merge(words)
	}
	return used, nil
}
