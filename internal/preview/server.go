package preview

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
)

// ServerOptions configures the preview HTTP server.
type ServerOptions struct {
	// Root is the directory served at /.
	Root string
	// Hub enables /livereload and script injection when non-nil.
	Hub *Hub
	// Registry enables /metrics when non-nil.
	Registry *prom.Registry
	Logger   *slog.Logger
}

// Server serves the generated site.
type Server struct {
	router *chi.Mux
	server *http.Server
	opts   ServerOptions
}

// NewServer builds the router for opts.
func NewServer(addr string, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{router: chi.NewRouter(), opts: opts}
	s.setupRoutes()
	// No write timeout: /livereload streams indefinitely.
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	if s.opts.Registry != nil {
		s.router.Handle("/metrics", metrics.HTTPHandler(s.opts.Registry))
	}

	site := http.FileServer(http.Dir(s.opts.Root))
	if hub := s.opts.Hub; hub != nil {
		s.router.Handle("/livereload", hub)
		s.router.Get(ScriptPath, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			_, _ = w.Write([]byte(Script))
		})
		site = injectLiveReload(site)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(s.logRequests)
		r.Handle("/*", site)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.opts.Logger.Debug("Served",
			slog.String("method", r.Method),
			logfields.Path(r.URL.Path),
			slog.Int("status", ww.Status()),
			logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.opts.Logger.Info("Preview server listening", slog.String("url", "http://"+ln.Addr().String()+"/"))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and disconnects live-reload clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.opts.Hub != nil {
		s.opts.Hub.Shutdown()
	}
	return s.server.Shutdown(ctx)
}
