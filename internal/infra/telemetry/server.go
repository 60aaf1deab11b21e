package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"erizoagent/internal/domain"
)

// HealthReport is served on /healthz.
type HealthReport struct {
	Status    string             `json:"status"`
	Purpose   string             `json:"purpose,omitempty"`
	ClusterID string             `json:"clusterId,omitempty"`
	Member    domain.MemberState `json:"member,omitempty"`
}

type HTTPServerOptions struct {
	Addr     string
	Registry prometheus.Gatherer
	Health   func() HealthReport
	Pool     func() domain.PoolSnapshot
	// Listener, when set, is used instead of listening on Addr.
	Listener net.Listener
}

// NewRouter builds the observability routes.
func NewRouter(opts HTTPServerOptions) *mux.Router {
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.DefaultGatherer
	}

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.Handle("/healthz", healthHandler(opts.Health)).Methods(http.MethodGet)
	if opts.Pool != nil {
		router.Handle("/v1/pool", poolHandler(opts.Pool)).Methods(http.MethodGet)
	}
	return router
}

// StartHTTPServer serves observability endpoints until ctx is done.
func StartHTTPServer(ctx context.Context, opts HTTPServerOptions, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Addr == "" && opts.Listener == nil {
		return nil
	}

	server := &http.Server{
		Addr:              opts.Addr,
		Handler:           NewRouter(opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis := opts.Listener
	if lis == nil {
		var err error
		lis, err = net.Listen("tcp", opts.Addr)
		if err != nil {
			return fmt.Errorf("observability server failed to start: %w", err)
		}
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("observability server listening", zap.String("addr", lis.Addr().String()))
		if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("observability server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("observability server shutdown error", zap.Error(err))
			return err
		}
		logger.Info("observability server stopped")
		return nil
	}
}

func healthHandler(source func() HealthReport) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		report := HealthReport{Status: "ok"}
		if source != nil {
			report = source()
		}

		status := http.StatusOK
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	})
}

func poolHandler(source func() domain.PoolSnapshot) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, source())
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
