package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rpattn/projectanalysis/internal/config"
	"github.com/rpattn/projectanalysis/internal/export"
	"github.com/rpattn/projectanalysis/internal/logging"
	"github.com/rpattn/projectanalysis/internal/projects"
	"github.com/rpattn/projectanalysis/internal/server"
	"github.com/rpattn/projectanalysis/internal/telemetry"
	"github.com/rpattn/projectanalysis/internal/upstream"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "listen address")
	cmd.Flags().String("upstream-url", "", "GraphQL endpoint of the project service")
	cmd.Flags().String("template", "", "xlsx template for the export")
	return cmd
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logging.Warn().Err(err).Msg("[SERVER] tracing shutdown failed")
		}
	}()

	if _, err := os.Stat(cfg.Export.TemplatePath); err != nil {
		logging.Warn().Err(err).Str("template", cfg.Export.TemplatePath).
			Msg("[SERVER] xlsx template not readable, the xlsx view will fail until it is created")
	}

	client := upstream.NewClient(cfg.Upstream.URL, upstream.WithTimeout(cfg.Upstream.Timeout))
	workbook := export.NewWorkbook(cfg.Export.TemplatePath,
		export.WithSheet(cfg.Export.Sheet),
		export.WithFirstRow(cfg.Export.FirstRow),
	)
	handler := projects.NewHTTPHandler(projects.NewService(client), workbook,
		projects.WithFileName(cfg.Export.FileName),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.NewRouter(handler, cfg.Server.AllowedOrigins, prometheus.DefaultRegisterer, prometheus.DefaultGatherer),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	logging.Info().
		Str("upstream", cfg.Upstream.URL).
		Str("views", server.ProjectsPrefix+"{table,flatjson,json,xlsx,pivot}").
		Msg("[SERVER] starting")

	if err := server.Run(ctx, srv, shutdownTimeout); err != nil {
		return err
	}
	logging.Info().Msg("[SERVER] exited")
	return nil
}
