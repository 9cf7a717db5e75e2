package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPath is where the exposition endpoint is mounted.
const DefaultPath = "/metrics"

// ErrServerRunning is returned by Start when the server is already running.
var ErrServerRunning = errors.New("metrics server already running")

// Handler returns the exposition handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Server serves the exposition endpoint and a health probe over HTTP.
type Server struct {
	addr     string
	gatherer prometheus.Gatherer

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a server listening on addr.
func NewServer(addr string, g prometheus.Gatherer) *Server {
	return &Server{addr: addr, gatherer: g}
}

// Start listens and serves until Stop is called. It returns nil after Stop.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return ErrServerRunning
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(DefaultPath, Handler(s.gatherer))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop shuts the server down, waiting for in-flight scrapes until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop metrics server: %w", err)
	}
	return nil
}
