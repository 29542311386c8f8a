// Package server is the development server: it serves the output directory,
// injects a live-reload client into every HTML page, and pushes change
// notifications to connected browsers over a websocket.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"

	perrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
)

const (
	// SocketPath is where browsers connect for notifications unless
	// Options.SocketPath says otherwise.
	SocketPath = "/__livereload"
	// ClientPath serves the live-reload client script.
	ClientPath = "/__livereload.js"
)

// Options configure a DevServer.
type Options struct {
	Host string
	Port int
	// Root is the directory served, normally the build output.
	Root string
	// SocketPath overrides where browsers open the live-reload socket.
	SocketPath string
	Logger     logging.Logger
}

// DevServer serves one output directory. Create it with New, then Start
// it; it is not reusable after Shutdown.
type DevServer struct {
	opts   Options
	logger logging.Logger

	httpServer *http.Server
	listener   net.Listener
	serverMu   sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	count      chan chan int

	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	shutdownOnce sync.Once
}

// New creates a dev server. Nothing listens until Start.
func New(opts Options) *DevServer {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.SocketPath == "" {
		opts.SocketPath = SocketPath
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DevServer{
		opts:       opts,
		logger:     opts.Logger.WithComponent("server"),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Handler returns the server's routes.
func (s *DevServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+s.opts.SocketPath, s.handleWebSocket)
	mux.Handle("GET "+ClientPath, gzhttp.GzipHandler(http.HandlerFunc(s.handleClientScript)))
	mux.Handle("GET /", gzhttp.GzipHandler(http.HandlerFunc(s.handleStatic)))
	return s.logRequests(mux)
}

// Start binds the listener and serves in the background. It returns once
// the server accepts connections.
func (s *DevServer) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.opts.Host, fmt.Sprint(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.serverMu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}
	server := s.httpServer
	s.serverMu.Unlock()

	go s.runHub()
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, err, "dev server stopped")
		}
	}()

	s.logger.Info(ctx, "serving", "url", "http://"+ln.Addr().String(), "root", s.opts.Root)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *DevServer) Addr() string {
	s.serverMu.RLock()
	defer s.serverMu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests, disconnects clients and waits for
// in-flight requests until ctx ends.
func (s *DevServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.done)
		s.cancel()

		s.serverMu.RLock()
		server := s.httpServer
		s.serverMu.RUnlock()
		if server != nil {
			err = server.Shutdown(ctx)
		}
		s.logger.Info(ctx, "dev server stopped")
	})
	return err
}

// Reload asks every page to reload.
func (s *DevServer) Reload() {
	s.Broadcast(Message{Type: TypeReload})
}

// StyleChanged reports a rewritten stylesheet in the served tree.
func (s *DevServer) StyleChanged(file string) {
	s.Broadcast(Message{Type: TypeCSS, Path: s.urlPath(file)})
}

// AssetChanged reports one rewritten asset in the served tree.
func (s *DevServer) AssetChanged(file string) {
	s.Broadcast(Message{Type: TypeAsset, Path: s.urlPath(file)})
}

// TaskFailed shows an error overlay on every page.
func (s *DevServer) TaskFailed(task string, err error) {
	s.Broadcast(Message{Type: TypeError, Content: perrors.Overlay(task, err)})
}

// urlPath maps a file under Root to the path it is served at.
func (s *DevServer) urlPath(file string) string {
	rel, err := filepath.Rel(s.opts.Root, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "/" + filepath.ToSlash(filepath.Base(file))
	}
	return "/" + filepath.ToSlash(rel)
}

func (s *DevServer) handleClientScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(clientScript))
}

func (s *DevServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	urlPath := path.Clean("/" + r.URL.Path)
	file := filepath.Join(s.opts.Root, filepath.FromSlash(urlPath))

	info, err := os.Stat(file)
	if err == nil && info.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		file = filepath.Join(file, "index.html")
		_, err = os.Stat(file)
	}
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	if strings.EqualFold(filepath.Ext(file), ".html") {
		s.serveHTML(w, r, file)
		return
	}
	http.ServeFile(w, r, file)
}

func (s *DevServer) serveHTML(w http.ResponseWriter, r *http.Request, file string) {
	page, err := os.ReadFile(file)
	if err != nil {
		http.Error(w, "reading page", http.StatusInternalServerError)
		return
	}
	tag, err := renderSnippet(r.Context(), s.opts.SocketPath)
	if err != nil {
		s.logger.Error(r.Context(), err, "rendering live-reload snippet")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(InjectScript(page, tag))
}

// InjectScript inserts snippet before the last </body>, or appends it when
// the page has none.
func InjectScript(page, snippet []byte) []byte {
	if len(snippet) == 0 {
		return page
	}
	i := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if i < 0 {
		return append(append([]byte{}, page...), snippet...)
	}
	out := make([]byte, 0, len(page)+len(snippet))
	out = append(out, page[:i]...)
	out = append(out, snippet...)
	return append(out, page[i:]...)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the hijacker for websockets.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *DevServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == s.opts.SocketPath {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
