// Package tasks defines the pipeline's named tasks and composites on a goyek
// flow and runs them.
//
// Every category a task reads from is resolved when the pipeline is built,
// so a task wired to a missing path entry is an error before anything runs.
// Leaf tasks are independent and idempotent; build and dev are ordered
// dependency lists that stop at the first failure.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/goyek/goyek/v2"

	"github.com/conneroisu/sitepipe/internal/assets"
	"github.com/conneroisu/sitepipe/internal/config"
	perrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/paths"
	"github.com/conneroisu/sitepipe/internal/renderer"
	"github.com/conneroisu/sitepipe/internal/transform"
)

const (
	Clean  = "clean"
	HTML   = "html"
	CSS    = "css"
	JS     = "js"
	Fonts  = "fonts"
	Images = "images"
	Videos = "videos"
	Purge  = "purge"
	Build  = "build"
	Watch  = "watch"
	Dev    = "dev"
)

// ErrUnknownTask is returned by Run for a name no task is defined under.
var ErrUnknownTask = errors.New("unknown task")

// Notifier receives what each task changed in the output directory. The dev
// server implements it during watch; outside watch nothing listens.
type Notifier interface {
	Reload()
	StyleChanged(file string)
	AssetChanged(file string)
	TaskFailed(task string, err error)
}

type nopNotifier struct{}

func (nopNotifier) Reload()                  {}
func (nopNotifier) StyleChanged(string)      {}
func (nopNotifier) AssetChanged(string)      {}
func (nopNotifier) TaskFailed(string, error) {}

// Options adjust a Pipeline beyond its configuration.
type Options struct {
	// Notifier receives notifications outside watch mode.
	Notifier Notifier
}

// Info describes one defined task.
type Info struct {
	Name  string
	Usage string
	Deps  []string
}

// Pipeline owns the task flow of one project.
type Pipeline struct {
	cfg     *config.Config
	logger  logging.Logger
	flow    *goyek.Flow
	metrics *Metrics

	entries  map[paths.Category]paths.Entry
	engines  []api.Engine
	pages    *renderer.PageRenderer
	minifier *transform.Minifier

	notifier Notifier
	notifyMu sync.RWMutex

	// runMu serializes Run; rerunMu serializes watch-triggered runs, which
	// happen while the watch task itself is inside Run.
	runMu   sync.Mutex
	rerunMu sync.Mutex

	failures []error
	failMu   sync.Mutex
}

// New resolves every path category the tasks need and defines the flow.
func New(cfg *config.Config, logger logging.Logger, opts Options) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Nop()
	}

	table, err := cfg.Table()
	if err != nil {
		return nil, perrors.NewConfigError("building path table", err)
	}

	entries := make(map[paths.Category]paths.Entry)
	for _, c := range []paths.Category{
		paths.HTML, paths.Pages, paths.Templates, paths.CSS,
		paths.JS, paths.Fonts, paths.Images, paths.Videos,
	} {
		entry, err := table.Resolve(c)
		if err != nil {
			return nil, perrors.NewConfigError("resolving task paths", err)
		}
		entries[c] = entry
	}

	engines, err := transform.ParseTargets(cfg.CSS.Targets)
	if err != nil {
		return nil, perrors.NewConfigError("css.targets", err)
	}

	p := &Pipeline{
		cfg:      cfg,
		logger:   logger.WithComponent("tasks"),
		flow:     &goyek.Flow{},
		metrics:  NewMetrics(),
		entries:  entries,
		engines:  engines,
		pages:    renderer.NewPageRenderer(cfg.Source, renderer.Options{Minify: cfg.Build.Minify}),
		notifier: opts.Notifier,
	}
	if cfg.Build.Minify {
		p.minifier = transform.NewMinifier()
	}
	if p.notifier == nil {
		p.notifier = nopNotifier{}
	}

	p.flow.SetOutput(&flowOutput{logger: p.logger})
	p.flow.Use(p.observe)
	p.define()

	return p, nil
}

func (p *Pipeline) define() {
	clean := p.task(Clean, "delete everything in the output directory", nil, p.clean)
	fonts := p.task(Fonts, "copy fonts", nil, p.copyTask(Fonts, paths.Fonts))
	images := p.task(Images, "copy images", nil, p.copyTask(Images, paths.Images))
	p.task(Videos, "copy videos", nil, p.copyTask(Videos, paths.Videos))
	js := p.task(JS, "copy scripts", nil, p.scripts)
	html := p.task(HTML, "render pages to HTML", nil, p.html)
	css := p.task(CSS, "transform, lint and format the stylesheet", nil, p.stylesheet)
	purge := p.task(Purge, "build the stylesheet and remove rules no page uses", nil, p.purge)
	watch := p.task(Watch, "serve the output and rerun tasks on change", nil, p.watch)

	p.task(Build, "clean, then produce the complete output", goyek.Deps{clean, fonts, html, js, images, purge}, nil)
	p.task(Dev, "build once without cleaning, then watch", goyek.Deps{fonts, html, css, js, images, watch}, nil)
}

func (p *Pipeline) task(name, usage string, deps goyek.Deps, action func(ctx context.Context) error) *goyek.DefinedTask {
	t := goyek.Task{Name: name, Usage: usage, Deps: deps}
	if action != nil {
		t.Action = func(a *goyek.A) {
			if err := action(a.Context()); err != nil {
				p.fail(name, err)
				a.Error(err)
			}
		}
	}
	return p.flow.Define(t)
}

// observe logs and times every task.
func (p *Pipeline) observe(next goyek.Runner) goyek.Runner {
	return func(in goyek.Input) goyek.Result {
		ctx := in.Context
		p.logger.Debug(ctx, "task started", "task", in.TaskName)

		start := time.Now()
		res := next(in)
		elapsed := time.Since(start)

		p.metrics.Record(in.TaskName, elapsed, res.Status == goyek.StatusFailed)

		switch res.Status {
		case goyek.StatusFailed:
			// a panic is reported as a failure carrying the panic value
			if res.PanicValue != nil {
				p.logger.Error(ctx, fmt.Errorf("%v", res.PanicValue), "task panicked", "task", in.TaskName)
				break
			}
			p.logger.Error(ctx, nil, "task failed", "task", in.TaskName, "duration", elapsed.Round(time.Millisecond).String())
		case goyek.StatusPassed:
			p.logger.Info(ctx, "task finished", "task", in.TaskName, "duration", elapsed.Round(time.Millisecond).String())
		}
		return res
	}
}

func (p *Pipeline) fail(task string, err error) {
	for _, e := range perrors.Split(err) {
		var pe *perrors.PipelineError
		if errors.As(e, &pe) && pe.Task == "" {
			pe.WithTask(task)
		}
		p.logger.Error(context.Background(), e, "fault", "task", task)
	}

	p.failMu.Lock()
	p.failures = append(p.failures, err)
	p.failMu.Unlock()

	p.notify().TaskFailed(task, err)
}

func (p *Pipeline) takeFailures() error {
	p.failMu.Lock()
	defer p.failMu.Unlock()
	err := errors.Join(p.failures...)
	p.failures = nil
	return err
}

// Run executes the named tasks and their dependencies in order. The error is
// the failing task's own error.
func (p *Pipeline) Run(ctx context.Context, names ...string) error {
	for _, name := range names {
		if !p.Has(name) {
			return fmt.Errorf("%w: %q", ErrUnknownTask, name)
		}
	}

	p.runMu.Lock()
	defer p.runMu.Unlock()
	p.takeFailures()

	err := p.flow.Execute(ctx, names)
	if failed := p.takeFailures(); failed != nil {
		return failed
	}
	return err
}

// rerun runs one task without its dependencies on behalf of the watcher.
func (p *Pipeline) rerun(ctx context.Context, name string) {
	p.rerunMu.Lock()
	defer p.rerunMu.Unlock()

	if ctx.Err() != nil {
		return
	}
	// faults were already logged and pushed to the browser
	_ = p.flow.Execute(ctx, []string{name}, goyek.NoDeps())
	p.takeFailures()
}

// Has reports whether a task is defined under name.
func (p *Pipeline) Has(name string) bool {
	for _, t := range p.flow.Tasks() {
		if t.Name() == name {
			return true
		}
	}
	return false
}

// Tasks lists the defined tasks sorted by name.
func (p *Pipeline) Tasks() []Info {
	defined := p.flow.Tasks()
	out := make([]Info, 0, len(defined))
	for _, t := range defined {
		info := Info{Name: t.Name(), Usage: t.Usage()}
		for _, d := range t.Deps() {
			info.Deps = append(info.Deps, d.Name())
		}
		out = append(out, info)
	}
	return out
}

func (p *Pipeline) concurrency() int {
	if p.cfg.Build.Concurrency > 0 {
		return p.cfg.Build.Concurrency
	}
	return assets.DefaultConcurrency
}

// Metrics returns the run history of this pipeline's tasks.
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

func (p *Pipeline) notify() Notifier {
	p.notifyMu.RLock()
	defer p.notifyMu.RUnlock()
	return p.notifier
}

func (p *Pipeline) setNotifier(n Notifier) Notifier {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	prev := p.notifier
	p.notifier = n
	return prev
}

// flowOutput forwards goyek's own task output to the debug log.
type flowOutput struct {
	logger logging.Logger
}

func (w *flowOutput) Write(b []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			w.logger.Debug(context.Background(), line, "source", "goyek")
		}
	}
	return len(b), nil
}
