// Command server runs the validation HTTP API: runs are submitted with POST,
// progress streams over /ws and Prometheus metrics are served on /metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"strategy-validation-lab/internal/api"
	"strategy-validation-lab/internal/app"
	"strategy-validation-lab/internal/observability"
	"strategy-validation-lab/internal/params"
	"strategy-validation-lab/internal/progress"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "YAML config file (built-in defaults when empty)")
	basePath := flag.String("base", "", "YAML base strategy configuration (required)")
	flag.Parse()

	if *basePath == "" {
		fmt.Fprintln(os.Stderr, "Error: --base is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, *configPath, *basePath)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(app.ExitCode(err))
}

func run(ctx context.Context, configPath, basePath string) error {
	base, err := params.LoadTree(basePath)
	if err != nil {
		return err
	}

	rt, err := app.Start(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.Logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg, "")

	hubCfg := progress.DefaultHubConfig()
	hub := progress.NewHub(&hubCfg, logger.Named("progress"))
	defer hub.Close()

	engine := app.NewEngine(app.EngineOptions{
		Config:  rt.Config,
		Stores:  rt.Stores,
		Base:    base,
		Logger:  logger,
		Metrics: metrics,
		Hub:     hub,
	})

	gin.SetMode(gin.ReleaseMode)
	srv := api.NewServer(api.Options{Engine: engine, Hub: hub, Gatherer: reg, Logger: logger.Named("api")})
	httpServer := &http.Server{
		Addr:              rt.Config.Server.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("runs did not stop in time", zap.Error(err))
	}
	return nil
}
