package prometheus

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
)

// Server serves the /metrics endpoint on its own listener so the search
// process stays scrapeable while the engine runs.
type Server struct {
	srv    *http.Server
	logger logging.Logger
}

// NewServer builds the metrics HTTP server for addr (e.g. ":9090").
func NewServer(addr string, metrics *SearchMetrics, log logging.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log,
	}
}

// Start runs the listener in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Metrics server listening", logging.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server failed", logging.Err(err))
		}
	}()
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
