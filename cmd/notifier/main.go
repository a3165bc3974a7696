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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Hibaxbelghith/argus-sub000/internal/config"
	"github.com/Hibaxbelghith/argus-sub000/internal/consumer"
	"github.com/Hibaxbelghith/argus-sub000/internal/database"
	internalmetrics "github.com/Hibaxbelghith/argus-sub000/internal/metrics"
	"github.com/Hibaxbelghith/argus-sub000/internal/orchestrator"
	"github.com/Hibaxbelghith/argus-sub000/internal/processor"
	"github.com/Hibaxbelghith/argus-sub000/internal/producer"
	"github.com/Hibaxbelghith/argus-sub000/internal/ratelimit"
	"github.com/Hibaxbelghith/argus-sub000/internal/store"
	"github.com/Hibaxbelghith/argus-sub000/internal/store/memory"
	"github.com/Hibaxbelghith/argus-sub000/pkg/metrics"
	"github.com/Hibaxbelghith/argus-sub000/pkg/shared"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "notifier",
		Short:         "Prioritize alert events and deliver notifications",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	config.AddNotifierFlags(rootCmd)

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
	cfg, err := config.LoadNotifier(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := shared.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	slog.Info("Starting notifier service",
		"kafka_brokers", cfg.KafkaBrokers,
		"alerts_topic", cfg.AlertsTopic,
		"events_topic", cfg.EventsTopic,
		"dead_letter_topic", cfg.DeadLetterTopic,
		"consumer_group_id", cfg.ConsumerGroupID,
		"store", cfg.Storage.Backend,
		"workers", cfg.Workers,
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
			slog.Warn("Redis unavailable, continuing without live updates or shared rate limits", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
			slog.Info("Connected to Redis", "addr", cfg.RedisAddr)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	collector := metrics.NewCollector(metrics.ServiceNotifier, rdb)
	if err := collector.EnablePrometheus(reg); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	collector.Start(ctx)
	defer collector.Stop()
	recorder := internalmetrics.NewCollectorAdapter(collector)

	adapters, err := buildChannels(ctx, cfg.Channels, rdb)
	if err != nil {
		return err
	}

	opts := []orchestrator.Option{
		orchestrator.WithRetry(cfg.Retry),
		orchestrator.WithMetrics(recorder),
	}
	if rdb != nil {
		opts = append(opts, orchestrator.WithLimiter(ratelimit.NewRedisLimiter(rdb)))
	} else {
		opts = append(opts, orchestrator.WithLimiter(ratelimit.NewStoreLimiter(st)))
	}
	if cfg.EventsTopic != "" {
		audit, err := producer.New(cfg.KafkaBrokers, cfg.EventsTopic, cfg.ContentType)
		if err != nil {
			return fmt.Errorf("failed to create delivery event producer: %w", err)
		}
		defer audit.Close()
		opts = append(opts, orchestrator.WithAudit(audit))
	}
	orch := orchestrator.New(st, adapters, opts...)

	slog.Info("Connecting to Kafka consumer", "topic", cfg.AlertsTopic)
	kafkaConsumer, err := consumer.NewConsumer(cfg.KafkaBrokers, cfg.AlertsTopic, cfg.ConsumerGroupID)
	if err != nil {
		slog.Info("Tip: Start Kafka with 'docker compose up -d kafka'")
		return fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	defer kafkaConsumer.Close()

	if cfg.MetricsPort != "" {
		srv := newMetricsServer(cfg.MetricsPort, reg)
		go func() {
			slog.Info("Metrics server listening", "port", cfg.MetricsPort)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	procOpts := []processor.Option{
		processor.WithWorkers(cfg.Workers),
		processor.WithMetrics(recorder),
	}
	if cfg.DeadLetterTopic != "" {
		dlq, err := producer.New(cfg.KafkaBrokers, cfg.DeadLetterTopic, cfg.ContentType)
		if err != nil {
			return fmt.Errorf("failed to create dead-letter producer: %w", err)
		}
		defer dlq.Close()
		procOpts = append(procOpts, processor.WithDeadLetter(dlq))
	}
	proc := processor.New(kafkaConsumer, orch, procOpts...)
	slog.Info("Starting alert processing loop")
	if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("alert processing failed: %w", err)
	}

	slog.Info("Notifier service stopped")
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

func newMetricsServer(port string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
