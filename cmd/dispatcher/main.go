package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Vitalis/internal/config/dispatcher"
	"github.com/NordCoder/Vitalis/internal/obs"
	"github.com/NordCoder/Vitalis/internal/obs/retry"
	kafkax "github.com/NordCoder/Vitalis/internal/repository/kafka"
	pg "github.com/NordCoder/Vitalis/internal/repository/postgres"
	"github.com/NordCoder/Vitalis/internal/services/dispatcher"
)

func main() {
	cfgPath := flag.String("config", "config/dispatcher.yaml", "path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting dispatcher",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.JobsTopic),
		zap.String("metrics_addr", cfg.Dispatch.MetricsAddr),
	)

	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	if err := kafkax.EnsureTopic(ctx, cfg.Kafka.Brokers, kafkax.TopicSpec{
		Name:          cfg.Kafka.JobsTopic,
		NumPartitions: cfg.Kafka.Partitions,
	}, l); err != nil {
		l.Warn("topic bootstrap", zap.Error(err))
	}
	producer := kafkax.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.JobsTopic).WithLogger(l)
	defer func() { _ = producer.Close() }()

	ms := obs.BootstrapMetricsServer(cfg.Dispatch.MetricsAddr, l, obs.Check{Name: "postgres", Probe: db.Ping})

	pol := retry.DefaultPublishPolicy("dispatcher_publish", l)
	pol.Attempts = 3
	uc := dispatcher.NewUC(pg.NewJobRepo(db), kafkax.NewJobEventsKafka(producer), cfg.Dispatch.Lease, pol)
	runner := dispatcher.New(l, uc, cfg.Dispatch.Interval, cfg.Dispatch.BatchLimit)

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()
	l.Info("dispatcher started")

	select {
	case <-ctx.Done():
		err = <-errCh
	case err = <-errCh:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		l.Error("runner error", zap.Error(err))
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
