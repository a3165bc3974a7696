// Package main provides the CLI entry point for the alert-producer, which
// publishes synthetic alert events for load and end-to-end testing.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Hibaxbelghith/argus-sub000/internal/config"
	"github.com/Hibaxbelghith/argus-sub000/internal/generator"
	"github.com/Hibaxbelghith/argus-sub000/internal/producer"
	"github.com/Hibaxbelghith/argus-sub000/pkg/metrics"
	"github.com/Hibaxbelghith/argus-sub000/pkg/shared"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "alert-producer",
		Short:         "Publish synthetic alert events",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	config.AddProducerFlags(rootCmd)

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
	cfg, err := config.LoadProducer(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := shared.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	slog.Info("Starting alert-producer",
		"kafka_brokers", cfg.KafkaBrokers,
		"topic", cfg.Topic,
		"mode", cfg.Mode,
		"rps", cfg.RPS,
		"duration", cfg.Duration,
		"burst_size", cfg.BurstSize,
		"seed", cfg.Seed,
	)

	var pub producer.AlertPublisher
	if cfg.Mock {
		slog.Info("Using mock mode - alerts will be logged but not sent to Kafka")
		pub = producer.NewMock(cfg.Topic)
	} else {
		kp, err := producer.New(cfg.KafkaBrokers, cfg.Topic, cfg.ContentType)
		if err != nil {
			slog.Info("Tip: Start Kafka with 'docker compose up -d kafka' or use --mock")
			return fmt.Errorf("failed to create Kafka producer: %w", err)
		}
		pub = kp
	}
	defer pub.Close()

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
	collector := metrics.NewCollector(metrics.ServiceAlertProducer, rdb)
	collector.Start(ctx)
	defer collector.Stop()

	gen, err := generator.New(cfg)
	if err != nil {
		return err
	}

	if err := generator.NewRunner(gen, pub, collector).Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	slog.Info("Alert-producer stopped")
	return nil
}
