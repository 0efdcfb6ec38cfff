// Package server assembles the HTTP surface and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rpattn/projectanalysis/internal/logging"
	"github.com/rpattn/projectanalysis/internal/middleware"
)

// ProjectsPrefix is where the project views are mounted.
const ProjectsPrefix = "/projects/"

// NewRouter mounts the project views, a health check and the metrics
// endpoint behind CORS, tracing, request IDs and access logging.
func NewRouter(projects http.Handler, allowedOrigins []string, reg prometheus.Registerer, gatherer prometheus.Gatherer) http.Handler {
	instrument := middleware.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle(ProjectsPrefix, instrument.Instrument("projects", projects))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{Registry: reg}))

	// Setup CORS. Credentialed responses need the caller's origin echoed
	// back, so a wildcard entry is dropped.
	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			logging.Warn().Msg("[SERVER] ignoring wildcard CORS origin, list origins explicitly")
			continue
		}
		origins = append(origins, origin)
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition", middleware.RequestIDHeader},
	})

	handler := middleware.RequestIDMiddleware(middleware.LoggingMiddleware(mux))
	return corsHandler.Handler(otelhttp.NewHandler(handler, "analysis",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	))
}

// Run serves srv until ctx is cancelled, then shuts it down gracefully,
// waiting at most shutdownTimeout for in-flight requests.
func Run(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info().Str("addr", srv.Addr).Msg("[SERVER] listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Info().Msg("[SERVER] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
