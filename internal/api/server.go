package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/openbuilders/synapse-batch/internal/health"
	"github.com/openbuilders/synapse-batch/internal/queue"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIHandler is a custom handler type that returns data or an error
type APIHandler func(w http.ResponseWriter, r *http.Request) (interface{}, error)

type Publisher interface {
	Publish(queue.QueueName, []byte) error
}

type HealthChecker interface {
	GetHealthStatus() health.HealthStatus
}

type Server struct {
	config     *Config
	publisher  Publisher
	checker    HealthChecker
	httpServer *http.Server
	log        *slog.Logger
}

type Config struct {
	ListenAddr   string
	ListenPort   int
	MetricsPort  int
	ProbesPort   int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	ID           string
}

func NewServer(config *Config, publisher Publisher, checker HealthChecker) *Server {
	return &Server{
		config:    config,
		publisher: publisher,
		checker:   checker,
		log:       slog.With("pod", config.ID, "component", "web-server"),
		httpServer: &http.Server{
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Handler returns the router of the public API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/batch", WithMethod(
		WithJSONResponse(s.BatchHandler),
		http.MethodPost,
	))

	return mux
}

func (s *Server) probesHandler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", WithMethod(
		WithJSONResponse(s.HealthHandler),
		http.MethodGet,
	))

	mux.Handle("/ready", WithMethod(
		WithJSONResponse(s.ReadinessHandler),
		http.MethodGet,
	))

	return mux
}

func (s *Server) StartProbesAndMetrics() {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.log.Info("Serving metrics", "port", s.config.MetricsPort)

		addr := fmt.Sprintf(":%d", s.config.MetricsPort)
		s.log.Error("Prometheus HTTP listener failed", "error",
			http.ListenAndServe(addr, mux))
	}()

	go func() {
		s.log.Info("Serving health probes", "port", s.config.ProbesPort)

		addr := fmt.Sprintf(":%d", s.config.ProbesPort)
		s.log.Error("Health checks HTTP listener failed", "error",
			http.ListenAndServe(addr, s.probesHandler()))
	}()
}

// Start serves the API until ctx is cancelled, then shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	s.StartProbesAndMetrics()

	s.httpServer.Handler = http.TimeoutHandler(s.Handler(), s.config.WriteTimeout, "Timeout")

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp",
		fmt.Sprintf("%s:%d", s.config.ListenAddr, s.config.ListenPort))
	if err != nil {
		return fmt.Errorf("create listener: %w", err)
	}

	errs := make(chan error, 1)
	go func() {
		s.log.Info("Starting server", "port", s.config.ListenPort)
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server forced to shutdown", "error", err)
	}

	s.log.Info("Server exiting")
	return nil
}
