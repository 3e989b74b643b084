// Package surface serves the destination page and drives it over a
// WebSocket. The connected page is the readiness probe and consumer channel
// of the delivery coordinator.
package surface

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linanwx/sharebridge/bus"
	"github.com/linanwx/sharebridge/imagecache"
	"github.com/linanwx/sharebridge/internal/health"
	"github.com/linanwx/sharebridge/internal/runtimecfg"
	"github.com/linanwx/sharebridge/logger"
)

const eventSource = "surface"

//go:embed web/*
var rawPageFS embed.FS

// Options configure a Server.
type Options struct {
	Addr      string
	Bus       *bus.Bus
	Images    *imagecache.Cache      // optional; /shared-image is 404 without it
	Intake    http.Handler           // optional; mounted at POST /intent
	History   *History               // optional; served at /api/deliveries
	Health    func() health.Snapshot // optional; /api/health reports the page only without it
	OnConnect func()                 // a page connected
	OnVisible func()                 // the connected page became visible again
}

// Server hosts the destination page.
type Server struct {
	opts   Options
	mux    *http.ServeMux
	server *http.Server
	wg     sync.WaitGroup
	seq    atomic.Uint64

	mu      sync.RWMutex
	current *wsClient
	boundTo string
}

// New builds a server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = runtimecfg.SurfaceDefaultAddr
	}
	pageFS, err := fs.Sub(rawPageFS, "web")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded page: %w", err)
	}

	s := &Server{opts: opts, mux: http.NewServeMux()}
	s.mux.Handle("GET /ws", http.HandlerFunc(s.handleWS))
	s.mux.Handle("GET /shared-image", http.HandlerFunc(s.handleSharedImage))
	s.mux.Handle("GET /api/deliveries", http.HandlerFunc(s.handleDeliveries))
	s.mux.Handle("GET /api/health", http.HandlerFunc(s.handleHealth))
	s.mux.Handle("GET /metrics", promhttp.Handler())
	if opts.Intake != nil {
		s.mux.Handle("POST /intent", opts.Intake)
	}
	// Client-side routes (/add, /add-shared-screen, ...) all load the page.
	s.mux.Handle("GET /", spaHandler(pageFS))
	return s, nil
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start listens on the configured address.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.opts.Addr,
		Handler: s.mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("surface listen failed on %s: %w", s.opts.Addr, err)
	}

	bindAddr := ln.Addr().String()
	s.mu.Lock()
	s.boundTo = bindAddr
	s.mu.Unlock()
	logger.Info("surface started", "addr", bindAddr, "url", urlHintFromAddr(bindAddr))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if serveErr := s.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("surface server error", "err", serveErr)
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boundTo
}

// Stop disconnects the page and shuts the server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	client := s.current
	s.current = nil
	s.mu.Unlock()
	if client != nil {
		client.close(websocket.StatusGoingAway, "shutdown")
	}

	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), runtimecfg.SurfaceShutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("surface shutdown error", "err", err)
		}
	}
	s.wg.Wait()
	logger.Info("surface stopped")
	return nil
}

// Connected reports whether a page is attached.
func (s *Server) Connected() bool {
	return s.client() != nil
}

func (s *Server) handleSharedImage(w http.ResponseWriter, r *http.Request) {
	if s.opts.Images == nil {
		http.NotFound(w, r)
		return
	}
	entry, err := s.opts.Images.Latest()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(s.opts.Images.Path(entry))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", entry.MIME)
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, entry.Name, entry.SavedAt, f)
}

func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	records := []Record{}
	if s.opts.History != nil {
		records = s.opts.History.List()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"connected":  s.Connected(),
		"deliveries": records,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := health.Collect(health.Options{Page: &health.PageInfo{Connected: s.Connected()}})
	if s.opts.Health != nil {
		snap = s.opts.Health()
	}
	writeJSON(w, http.StatusOK, snap)
}

// spaHandler serves static files and falls back to index.html for unknown paths.
func spaHandler(pageFS fs.FS) http.Handler {
	files := http.FileServer(http.FS(pageFS))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name != "" {
			if _, err := fs.Stat(pageFS, name); err == nil {
				files.ServeHTTP(w, r)
				return
			}
		}
		data, err := fs.ReadFile(pageFS, "index.html")
		if err != nil {
			http.Error(w, "page missing", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(data)
	})
}

func urlHintFromAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}

	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}

	host = strings.TrimSpace(host)
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%s", host, port)
}
