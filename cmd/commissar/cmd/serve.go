package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/solatis/commissar/internal/core/api"
	"github.com/solatis/commissar/internal/core/metrics"
	"github.com/solatis/commissar/internal/core/server"
	"github.com/solatis/commissar/internal/core/tracing"
	"github.com/solatis/commissar/internal/enforce"
	"github.com/solatis/commissar/internal/rules"
	"github.com/solatis/commissar/internal/ruleset"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC enforcement service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().String("rules", "", "rule file (default rules.file)")
	serveCmd.Flags().Bool("watch", false, "reload the rule file when it changes")
	serveCmd.Flags().String("metrics-addr", "", "Prometheus listen address, e.g. :9090")
	serveCmd.Flags().String("otlp-endpoint", "", "OTLP/HTTP trace endpoint, e.g. http://localhost:4318")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := slog.Default()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("rules") {
		cfg.Rules.File, _ = cmd.Flags().GetString("rules")
	}
	if cmd.Flags().Changed("watch") {
		cfg.Rules.Watch, _ = cmd.Flags().GetBool("watch")
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = cmd.Flags().GetString("metrics-addr")
	}
	if cmd.Flags().Changed("otlp-endpoint") {
		cfg.Tracing.Endpoint, _ = cmd.Flags().GetString("otlp-endpoint")
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}()

	// Refuse to start with dropped rules; reloads are more lenient
	book, err := ruleset.LoadFile(cfg.Rules.File, logger)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	enforcer, err := enforce.New(book, st, enforce.WithLogger(logger), enforce.WithMetrics(m))
	if err != nil {
		return err
	}

	service, err := api.NewEnforcerService(enforcer, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg.Server, service, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if cfg.Rules.Watch {
		watcher, err := ruleset.NewWatcher(cfg.Rules.File, func(b *rules.RuleBook) {
			if err := enforcer.Swap(b); err != nil {
				logger.Error("Failed to activate reloaded rules", "error", err)
			}
		}, logger)
		if err != nil {
			return err
		}
		defer watcher.Close()
		watcher.OnReload(m.ObserveReload)
		go watcher.Run(ctx)
	}

	errChan := make(chan error, 2)

	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("Metrics listening", "addr", cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	logger.Info("Starting Commissar", "version", Version, "host", cfg.Server.Host, "port", cfg.Server.Port, "rules", book.Len())
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}
	return grpcServer.Shutdown(shutdownCtx)
}
