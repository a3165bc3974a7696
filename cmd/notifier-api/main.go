package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Hibaxbelghith/argus-sub000/internal/api"
	"github.com/Hibaxbelghith/argus-sub000/internal/config"
	"github.com/Hibaxbelghith/argus-sub000/internal/database"
	"github.com/Hibaxbelghith/argus-sub000/internal/store"
	"github.com/Hibaxbelghith/argus-sub000/internal/store/memory"
	"github.com/Hibaxbelghith/argus-sub000/pkg/metrics"
	"github.com/Hibaxbelghith/argus-sub000/pkg/shared"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "notifier-api",
		Short:         "HTTP API for preferences, rules and the notification inbox",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	config.AddAPIFlags(rootCmd)

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	v, err := config.NewViper(cmd, cfgFile)
	if err != nil {
		return err
	}
	cfg, err := config.LoadAPI(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := shared.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	slog.Info("Starting notifier-api service",
		"port", cfg.Port,
		"store", cfg.Storage.Backend,
	)

	st, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = shared.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Warn("Redis unavailable, service metrics disabled", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	collector := metrics.NewCollector(metrics.ServiceNotifierAPI, rdb)
	if err := collector.EnablePrometheus(reg); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	collector.Start(ctx)
	defer collector.Stop()

	var reader api.ServiceMetricsReader
	if rdb != nil {
		reader = metrics.NewReader(rdb)
	}

	h := api.NewHandlers(st, api.WithMetricsReader(reader))
	server := api.NewServer(cfg.Port, h,
		api.WithRequestRecorder(collector),
		api.WithGatherer(reg),
	)

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down HTTP server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error shutting down server", "error", err)
		}
		slog.Info("HTTP server stopped")
	case err := <-serverErrChan:
		return fmt.Errorf("HTTP server error: %w", err)
	}

	slog.Info("Notifier-api stopped")
	return nil
}

func openStore(cfg config.Storage) (store.Store, error) {
	if cfg.Backend == config.StoreMemory {
		slog.Warn("Using in-memory store, state is lost on restart")
		return memory.New(), nil
	}
	slog.Info("Connecting to PostgreSQL database", "dsn", shared.MaskDSN(cfg.PostgresDSN))
	db, err := database.NewDB(cfg.PostgresDSN)
	if err != nil {
		slog.Info("Tip: Start Postgres with 'docker compose up -d postgres' or ensure Postgres is running")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
