package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/davidgenn/HttpReplayingProxy/pkg/cache"
	"github.com/davidgenn/HttpReplayingProxy/pkg/client"
	"github.com/davidgenn/HttpReplayingProxy/pkg/config"
	"github.com/davidgenn/HttpReplayingProxy/pkg/fingerprint"
	"github.com/davidgenn/HttpReplayingProxy/pkg/logging"
	"github.com/davidgenn/HttpReplayingProxy/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// shutdownTimeout bounds graceful shutdown in ListenAndServe.
const shutdownTimeout = 5 * time.Second

// Option customizes a Server.
type Option func(*options)

type options struct {
	clock cache.Clock
}

// WithClock sets the clock used for entry timestamps and expiry.
func WithClock(clock cache.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// Server hosts the replay handler and the admin endpoints.
type Server struct {
	cfg     *config.Config
	store   *cache.Store
	backend *client.Backend
	handler *Handler
	router  http.Handler
	admin   http.Handler
	logger  zerolog.Logger

	mu        sync.Mutex
	srv       *http.Server
	adminSrv  *http.Server
	addr      net.Addr
	adminAddr net.Addr
	errCh     chan error
}

// New validates cfg, opens the response store (resetting it first when
// configured) and builds the routers. Nothing is listening until Start.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	store, err := cache.Open(cache.Config{
		Dir:            cfg.Cache.Dir,
		TTLSeconds:     cfg.Cache.TTLSeconds,
		MatchHeaders:   cfg.Cache.MatchHeaders,
		ResetAtStartup: cfg.Cache.ResetAtStartup,
		Clock:          o.clock,
	})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	backend, err := client.New(client.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		store:   store,
		backend: backend,
		handler: NewHandler(store, backend),
		logger:  log.With().Str("component", "server").Logger(),
	}
	s.router = s.newRouter()
	s.admin = s.newAdminRouter()
	return s, nil
}

// newRouter routes every path and method to the replay handler.
func (s *Server) newRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logging.NewLogger("http")))
	r.Use(middleware.Recoverer)

	r.Handle("/*", http.HandlerFunc(s.serveReplay))
	return r
}

// newAdminRouter serves health checks and metrics.
func (s *Server) newAdminRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)
	r.Get("/ready", s.readyHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

// ServeHTTP implements http.Handler for the replay router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AdminHandler returns the admin router.
func (s *Server) AdminHandler() http.Handler {
	return s.admin
}

// Store returns the response store.
func (s *Server) Store() *cache.Store {
	return s.store
}

// serveReplay runs the replay handler and maps its errors to status codes.
func (s *Server) serveReplay(w http.ResponseWriter, r *http.Request) {
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

	err := s.handler.ServeReplay(ww, r)
	if err == nil {
		return
	}

	status, outcome := StatusForError(err)
	requestsTotal.WithLabelValues(outcome).Inc()
	s.logger.Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.RequestURI()).
		Int("status_code", status).
		Msg("Request failed")

	// The response is already on its way
	if ww.Status() != 0 {
		return
	}
	http.Error(ww, err.Error(), status)
}

// StatusForError maps a handler error to an HTTP status code and a request
// outcome label.
func StatusForError(err error) (int, string) {
	var unsupported *fingerprint.UnsupportedMethodError
	var backendErr *client.BackendCallError
	var cacheErr *cache.CacheIOError

	switch {
	case errors.As(err, &unsupported):
		return http.StatusNotImplemented, outcomeUnsupportedMethod
	case errors.As(err, &backendErr):
		return http.StatusBadGateway, outcomeBackendError
	case errors.As(err, &cacheErr):
		return http.StatusInternalServerError, outcomeCacheError
	default:
		return http.StatusInternalServerError, outcomeError
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports whether the cache directory is still usable.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	fi, err := os.Stat(s.store.Dir())
	if err != nil || !fi.IsDir() {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "cache directory unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "READY")
}

// Start binds the proxy and admin listeners and serves them in the
// background. It returns once both are accepting connections.
// The admin listener is skipped when MetricsListen is empty.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return fmt.Errorf("server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}

	var adminLn net.Listener
	if s.cfg.MetricsListen != "" {
		adminLn, err = net.Listen("tcp", s.cfg.MetricsListen)
		if err != nil {
			ln.Close()
			return fmt.Errorf("listen %s: %w", s.cfg.MetricsListen, err)
		}
	}

	s.errCh = make(chan error, 2)
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.addr = ln.Addr()
	go s.serve(s.srv, ln)

	if adminLn != nil {
		s.adminSrv = &http.Server{
			Handler:           s.admin,
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.adminAddr = adminLn.Addr()
		go s.serve(s.adminSrv, adminLn)
	}

	s.logger.Info().
		Str("listen", s.addr.String()).
		Str("backend", s.backend.BaseURL()).
		Str("cache_dir", s.store.Dir()).
		Int("entries", s.store.Len()).
		Msg("Replaying proxy started")
	return nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener) {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errCh <- err
	}
}

// Addr returns the proxy listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// AdminAddr returns the admin listener address, or "" when not listening.
func (s *Server) AdminAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adminAddr == nil {
		return ""
	}
	return s.adminAddr.String()
}

// URL returns the base URL clients should send requests to.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	return "http://localhost:" + port
}

// Stop gracefully shuts down both listeners.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, adminSrv := s.srv, s.adminSrv
	s.srv, s.adminSrv = nil, nil
	s.addr, s.adminAddr = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown proxy: %w", err))
	}
	if adminSrv != nil {
		if err := adminSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown admin: %w", err))
		}
	}

	s.logger.Info().Msg("Replaying proxy stopped")
	return errors.Join(errs...)
}

// ListenAndServe starts the server and blocks until ctx is cancelled or a
// listener fails, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	s.mu.Lock()
	errCh := s.errCh
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutCtx)
	case err := <-errCh:
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.Stop(shutCtx)
		return err
	}
}
