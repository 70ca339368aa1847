// Package server provides the HTTP handlers and routing for the exchange rate
// tools server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"exchange-rate-mcp/internal/config"
	"exchange-rate-mcp/internal/limiter"
	"exchange-rate-mcp/internal/metrics"
	"exchange-rate-mcp/internal/rates"
	"exchange-rate-mcp/pkg/protocol"
)

const (
	Name    = "Exchange Rate MCP Server"
	Version = "0.1.0"
)

// RateFetcher looks up rates for a query.
type RateFetcher interface {
	Fetch(ctx context.Context, q rates.Query) (rates.RateSet, error)
}

// Options wires the server. Only Config is required; nil dependencies get
// defaults derived from it.
type Options struct {
	Config  config.Config
	Fetcher RateFetcher
	Cache   *Cache
	Limiter *limiter.Limiter
	Metrics *metrics.Metrics
	Logger  *log.Logger
	Now     func() time.Time
}

// Server contains the configured router and the dependencies of the tools endpoint.
type Server struct {
	cfg     config.Config
	router  *chi.Mux
	fetcher RateFetcher
	cache   *Cache
	limiter *limiter.Limiter
	metrics *metrics.Metrics
	log     *log.Logger
	now     func() time.Time
}

// New constructs a Server with middleware and routes configured.
func New(opts Options) *Server {
	s := &Server{
		cfg:     opts.Config,
		router:  chi.NewRouter(),
		fetcher: opts.Fetcher,
		cache:   opts.Cache,
		limiter: opts.Limiter,
		metrics: opts.Metrics,
		log:     opts.Logger,
		now:     opts.Now,
	}
	if s.log == nil {
		s.log = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.fetcher == nil {
		s.fetcher = newFetcher(s.cfg.Exchange, s.log)
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  s.log.StandardLog(log.StandardLogOptions{ForceLevel: log.InfoLevel}),
		NoColor: true,
	}))
	s.router.Use(middleware.Recoverer)

	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Use(s.rateLimit)
		r.Post("/tools", s.handleTools)
	})

	return s
}

func newFetcher(cfg config.ExchangeConfig, logger *log.Logger) *rates.Client {
	baseURL := rates.SelectURL(cfg.APIKey, cfg.URL)
	if cfg.APIKey != "" {
		logger.Info("using upstream with provided key", "url", baseURL)
	} else {
		logger.Info("using upstream without key", "url", baseURL)
	}
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.Timeout,
	}
	c := rates.New(baseURL, cfg.APIKey, httpClient)
	c.Logger = logger.With("component", "rates")
	return c
}

// Router exposes the root HTTP handler for the server.
func (s *Server) Router() http.Handler { return s.router }

// Run serves on the configured port until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if s.cfg.TLSEnabled() {
			s.log.Info("TLS enabled: using provided certificate and key")
			errCh <- srv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("starting exchange rate server", "addr", srv.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.cfg.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		if err := s.limiter.Allow(r.Context(), clientKey(r)); err != nil {
			status := http.StatusTooManyRequests
			if !errors.Is(err, limiter.ErrRateLimited) {
				s.log.Error("rate limiter failed", "err", err)
				status = http.StatusInternalServerError
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller for rate limiting. RealIP has already
// replaced RemoteAddr from X-Forwarded-For or X-Real-IP, which clients can set
// freely, so the key is only trustworthy behind a proxy that overwrites them.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": Name, "version": Version})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTools always answers 200; failures travel in the envelope. An
// envelope that does not decode is answered with a null id.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	var req protocol.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Warn("invalid request envelope", "err", err)
		resp := errorResponse(nil, internalError(err))
		s.metrics.ObserveRequest(req.Method, codeLabel(resp))
		writeJSON(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusOK, s.Handle(r.Context(), req))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
