package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.watcher)
	assert.Len(t, watcher.filters, 2)
	assert.Empty(t, watcher.Bindings())
}

// recorder collects handler calls per binding.
type recorder struct {
	mu    sync.Mutex
	calls map[string][][]ChangeEvent
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[string][][]ChangeEvent)}
}

func (r *recorder) handler(name string) Handler {
	return func(_ context.Context, events []ChangeEvent) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls[name] = append(r.calls[name], events)
	}
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls[name])
}

func (r *recorder) events(name string) []ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ChangeEvent
	for _, c := range r.calls[name] {
		out = append(out, c...)
	}
	return out
}

func setupSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"src/pages", "src/templates", "src/css/base", "src/images"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0o755))
	}
	return root
}

func glob(root, pattern string) string {
	return filepath.ToSlash(filepath.Join(root, filepath.FromSlash(pattern)))
}

func startWatcher(t *testing.T, root string, rec *recorder) *FileWatcher {
	t.Helper()
	w, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	require.NoError(t, w.Bind(Binding{
		Name:     "html",
		Patterns: []string{glob(root, "src/pages/**/*.html"), glob(root, "src/templates/**/*.html")},
		Handler:  rec.handler("html"),
	}))
	require.NoError(t, w.Bind(Binding{
		Name:     "css",
		Patterns: []string{glob(root, "src/css/**/*.css")},
		Handler:  rec.handler("css"),
	}))
	require.NoError(t, w.Bind(Binding{
		Name:     "images",
		Patterns: []string{glob(root, "src/images/**/*")},
		Handler:  rec.handler("images"),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	return w
}

func TestBindingTriggersOnlyItsOwnHandler(t *testing.T) {
	root := setupSite(t)
	rec := newRecorder()
	w := startWatcher(t, root, rec)
	assert.Equal(t, []string{"html", "css", "images"}, w.Bindings())

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "css", "base", "reset.css"), []byte("a{}"), 0o644))

	require.Eventually(t, func() bool { return rec.count("css") > 0 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, rec.count("html"))
	assert.Zero(t, rec.count("images"))

	events := rec.events("css")
	require.NotEmpty(t, events)
	assert.Equal(t, filepath.Join(root, "src", "css", "base", "reset.css"), events[0].Path)
}

func TestTemplateChangeTriggersHTML(t *testing.T) {
	root := setupSite(t)
	rec := newRecorder()
	startWatcher(t, root, rec)

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "templates", "nav.html"), []byte("<nav></nav>"), 0o644))
	require.Eventually(t, func() bool { return rec.count("html") > 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, rec.count("css"))
}

func TestNonMatchingFileIgnored(t *testing.T) {
	root := setupSite(t)
	rec := newRecorder()
	startWatcher(t, root, rec)

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "css", "notes.txt"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, rec.count("css"))
}

func TestRapidWritesAreCoalesced(t *testing.T) {
	root := setupSite(t)
	rec := newRecorder()
	startWatcher(t, root, rec)

	page := filepath.Join(root, "src", "pages", "index.html")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(page, []byte{byte('a' + i)}, 0o644))
	}

	require.Eventually(t, func() bool { return rec.count("html") > 0 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, rec.count("html"))
	assert.Len(t, rec.events("html"), 1)
}

func TestNewDirectoryIsWatched(t *testing.T) {
	root := setupSite(t)
	rec := newRecorder()
	startWatcher(t, root, rec)

	dir := filepath.Join(root, "src", "images", "gallery")
	require.NoError(t, os.Mkdir(dir, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.png"), []byte{1, 2, 3}, 0o644))

	require.Eventually(t, func() bool {
		for _, e := range rec.events("images") {
			if e.Path == filepath.Join(dir, "one.png") {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChmodIsIgnored(t *testing.T) {
	root := setupSite(t)
	rec := newRecorder()
	w := startWatcher(t, root, rec)

	w.handleFsnotifyEvent(fsnotify.Event{Name: filepath.Join(root, "src", "pages", "index.html"), Op: fsnotify.Chmod})
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, rec.count("html"))
}

func TestBindMissingBaseIsNotAnError(t *testing.T) {
	w, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	err = w.Bind(Binding{
		Name:     "videos",
		Patterns: []string{glob(t.TempDir(), "src/videos/**/*")},
		Handler:  func(context.Context, []ChangeEvent) {},
	})
	assert.NoError(t, err)
}

func TestMissingBaseIsWatchedOnceCreated(t *testing.T) {
	root := t.TempDir()
	rec := newRecorder()
	w, err := NewFileWatcher(20*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	require.NoError(t, w.Bind(Binding{
		Name:     "html",
		Patterns: []string{glob(root, "src/templates/**/*.html")},
		Handler:  rec.handler("html"),
	}))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.Mkdir(filepath.Join(root, "src"), 0o755))
	time.Sleep(100 * time.Millisecond)
	dir := filepath.Join(root, "src", "templates")
	require.NoError(t, os.Mkdir(dir, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nav.html"), []byte("<nav></nav>"), 0o644))

	require.Eventually(t, func() bool {
		for _, e := range rec.events("html") {
			if e.Path == filepath.Join(dir, "nav.html") {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMissingBaseCreatedWithFiles(t *testing.T) {
	root := t.TempDir()
	rec := newRecorder()
	w, err := NewFileWatcher(20*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	require.NoError(t, os.Mkdir(filepath.Join(root, "src"), 0o755))
	require.NoError(t, w.Bind(Binding{
		Name:     "videos",
		Patterns: []string{glob(root, "src/videos/**/*")},
		Handler:  rec.handler("videos"),
	}))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))

	// a directory moved into place arrives with its files already inside
	staging := filepath.Join(root, "staging")
	require.NoError(t, os.Mkdir(staging, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "intro.mp4"), []byte{0, 1}, 0o644))
	require.NoError(t, os.Rename(staging, filepath.Join(root, "src", "videos")))

	require.Eventually(t, func() bool { return rec.count("videos") > 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, filepath.Join(root, "src", "videos", "intro.mp4"), rec.events("videos")[0].Path)
}

func TestBindInvalidPattern(t *testing.T) {
	w, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	err = w.Bind(Binding{Name: "bad", Patterns: []string{"src/[", "x"}, Handler: func(context.Context, []ChangeEvent) {}})
	assert.Error(t, err)
	assert.Empty(t, w.Bindings())
}

func TestFilters(t *testing.T) {
	tests := []struct {
		path string
		keep bool
	}{
		{"src/pages/index.html", true},
		{".git/HEAD", false},
		{"site/.git/index", false},
		{"src/css/style.css~", false},
		{"src/css/.style.css.swp", false},
		{"src/js/.#app.js", false},
		{"src/js/4913", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.keep, NoGitFilter(tt.path) && NoEditorTempFilter(tt.path))
		})
	}
}
