package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"tissuecore/internal/adapters/httpapi"
	"tissuecore/internal/core"
	"tissuecore/internal/notify"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Long:         "Start the HTTP API server",
		SilenceUsage: true,
		RunE:         a.serve,
	}
}

func (a *app) serve(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := a.cfg

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := core.CloseStore(store); err != nil {
			a.logger.Warnw("close store", "error", err)
		}
	}()
	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		return err
	}
	unstorer, err := a.newUnstorer()
	if err != nil {
		return err
	}
	flags, closeFlags, err := a.newFlags(ctx)
	if err != nil {
		return err
	}
	defer closeFlags()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promMetrics := core.NewPrometheusMetricsRecorder()
	registry.MustRegister(promMetrics)

	var svc *core.Service
	notifier := notify.New(cfg.Server.ServiceName, flags,
		func(ctx context.Context) ([]string, error) { return svc.AdminUsernames(ctx) },
		notify.WithLogger(a.logger))
	opts := []core.Option{
		core.WithLogger(a.logger),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{promMetrics, core.NewExpvarMetricsRecorder("tissuecore")}),
		core.WithNotifier(notifier),
		core.WithBlobStore(blobs),
	}
	if unstorer != nil {
		opts = append(opts, core.WithUnstorer(unstorer))
	}
	svc = core.NewService(store, opts...)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(svc, httpapi.Options{
		Logger:      a.logger,
		Gatherer:    registry,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infow("api server starting", "addr", server.Addr, "storage", cfg.Storage.Driver, "blob", cfg.Blob.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Infow("api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shut down server: %w", err)
	}
	return nil
}
