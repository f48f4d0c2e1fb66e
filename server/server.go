// Package server exposes the minimal HTTP front end of a running store:
// a liveness heartbeat and a version endpoint, with graceful shutdown tied
// to a context. Data operations stay on the Go API; the HTTP surface exists
// so operators and clients can probe a running instance.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long an exiting server waits for in-flight
// requests.
const shutdownTimeout = 10 * time.Second

// Logger is a simple interface for logging.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// noopLogger is a default logger that does nothing.
type noopLogger struct{}

func (l *noopLogger) Infof(format string, args ...interface{})  {}
func (l *noopLogger) Warnf(format string, args ...interface{})  {}
func (l *noopLogger) Errorf(format string, args ...interface{}) {}

// Options configure a Server.
type Options struct {
	// Logger receives listen and shutdown output. Defaults to a no-op
	// logger.
	Logger Logger

	// Version is reported by the version endpoint.
	Version string
}

// DefaultOptions are the defaults used by New.
var DefaultOptions = Options{
	Logger:  &noopLogger{},
	Version: "dev",
}

// Server is the HTTP front end. Create one with New and drive it with Run;
// it serves until the context is canceled.
type Server struct {
	cfg     Config
	logger  Logger
	version string
}

// New creates a Server for the given config.
func New(cfg Config, optFns ...func(o *Options)) *Server {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = &noopLogger{}
	}

	return &Server{
		cfg:     cfg,
		logger:  opts.Logger,
		version: opts.Version,
	}
}

// Handler returns the route table. Exposed so tests and embedding callers
// can serve it on their own listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("/api/v2/version", s.handleVersion)

	return mux
}

// Run serves until ctx is canceled, then shuts down gracefully. A clean
// shutdown returns nil; a listen failure or an overrun shutdown deadline
// returns the underlying error.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Infof("listening on http://%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		s.logger.Infof("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]int64{
		"nanosecond heartbeat": time.Now().UnixNano(),
	}

	s.writeJSON(w, response)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.version)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Errorf("failed to encode response: %v", err)
	}
}
