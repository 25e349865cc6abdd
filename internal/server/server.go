// Package server exposes the porkchop builder over HTTP and WebSocket.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/latency-space/porkchop/internal/config"
	"github.com/latency-space/porkchop/internal/porkchop"
)

// GridBuilder computes porkchop grids.
type GridBuilder interface {
	Build(ctx context.Context, req porkchop.Request) (*porkchop.Grid, error)
	Stream(ctx context.Context, req porkchop.Request, onRow porkchop.RowFunc) (*porkchop.Grid, error)
}

// Server runs the API listener and the metrics listener.
type Server struct {
	cfg     config.ServerConfig
	builder GridBuilder
	logger  *slog.Logger
	metrics *MetricsCollector
	limiter *IPRateLimiter

	httpServer      *http.Server
	metricsServer   *http.Server
	challengeServer *http.Server
	stopSweep       chan struct{}
	wg              sync.WaitGroup
}

// limiterSweepInterval is how often idle per-IP limiters are dropped.
const limiterSweepInterval = 5 * time.Minute

// NewServer wires the handlers. Limits come from cfg.RateLimit.
func NewServer(cfg config.ServerConfig, builder GridBuilder, metrics *MetricsCollector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		builder: builder,
		logger:  logger,
		metrics: metrics,
		limiter: NewPerMinuteLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst),
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", s.instrument("healthz", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/bodies", s.instrument("bodies", http.HandlerFunc(s.handleBodies)))
	mux.Handle("GET /api/porkchop", s.instrument("porkchop", s.rateLimit("porkchop", http.HandlerFunc(s.handlePorkchop))))
	mux.Handle("POST /api/porkchop", s.instrument("porkchop", s.rateLimit("porkchop", http.HandlerFunc(s.handlePorkchop))))
	mux.Handle("GET /ws/porkchop", s.instrument("ws", s.rateLimit("ws", http.HandlerFunc(s.handleWebSocket))))
	return mux
}

// Start launches the listeners in the background. It returns once the
// listeners are configured; serve errors are logged.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	if s.cfg.TLS.Enabled {
		manager, err := newCertManager(s.cfg.TLS)
		if err != nil {
			return fmt.Errorf("failed to set up TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig(manager)
		s.challengeServer = &http.Server{
			Addr:        s.cfg.TLS.ChallengeAddr,
			Handler:     challengeHandler(manager),
			ReadTimeout: s.cfg.ReadTimeout,
		}
		s.serve("challenge", s.challengeServer.ListenAndServe)
		s.serve("https", func() error { return s.httpServer.ListenAndServeTLS("", "") })
	} else {
		s.serve("http", s.httpServer.ListenAndServe)
	}

	if s.cfg.MetricsAddr != "" && s.metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		s.metricsServer = &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux, ReadTimeout: s.cfg.ReadTimeout}
		s.serve("metrics", s.metricsServer.ListenAndServe)
	}

	if s.limiter != nil {
		s.stopSweep = make(chan struct{})
		s.wg.Add(1)
		go s.sweepLimiters(s.stopSweep, limiterSweepInterval)
	}

	return nil
}

func (s *Server) sweepLimiters(stop <-chan struct{}, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if n := s.limiter.Sweep(now); n > 0 {
				s.logger.Debug("Dropped idle rate limiters", "removed", n, "remaining", s.limiter.Len())
			}
		}
	}
}

func (s *Server) serve(name string, run func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("Starting listener", "listener", name)
		if err := run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Listener failed", "listener", name, "error", err)
		}
	}()
}

// Shutdown stops the listeners, waiting for in-flight requests until ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	for _, srv := range []*http.Server{s.httpServer, s.challengeServer, s.metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
		}
	}

	if s.stopSweep != nil {
		close(s.stopSweep)
		s.stopSweep = nil
	}

	s.wg.Wait()
	return errors.Join(errs...)
}

// rateLimit rejects requests over the client's budget with 429.
func (s *Server) rateLimit(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.limiter.Allow(ip) {
			if s.metrics != nil {
				s.metrics.RecordRateLimited(endpoint)
			}
			s.logger.Info("Rate limit exceeded", "ip", ip, "endpoint", endpoint)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// instrument records request count and latency per endpoint.
func (s *Server) instrument(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if s.metrics != nil {
			s.metrics.RecordRequest(endpoint, rec.status, time.Since(start))
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
