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

	config "github.com/NordCoder/Vitalis/internal/config/delivery-worker"
	"github.com/NordCoder/Vitalis/internal/domain/notification"
	"github.com/NordCoder/Vitalis/internal/failures"
	"github.com/NordCoder/Vitalis/internal/obs"
	"github.com/NordCoder/Vitalis/internal/obs/retry"
	"github.com/NordCoder/Vitalis/internal/outbox"
	"github.com/NordCoder/Vitalis/internal/push"
	"github.com/NordCoder/Vitalis/internal/push/fcm"
	kafkax "github.com/NordCoder/Vitalis/internal/repository/kafka"
	pg "github.com/NordCoder/Vitalis/internal/repository/postgres"
	rds "github.com/NordCoder/Vitalis/internal/repository/redis"
	worker "github.com/NordCoder/Vitalis/internal/services/delivery-worker"
)

func main() {
	cfgPath := flag.String("config", "config/delivery-worker.yaml", "path to config file")
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
	l.Info("starting delivery worker",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("jobs_topic", cfg.Kafka.JobsTopic),
		zap.String("group", cfg.Kafka.GroupID),
		zap.Int("concurrency", cfg.Worker.Concurrency),
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

	gw, err := fcm.New(ctx, cfg.Push.FCM)
	if err != nil {
		l.Fatal("fcm init", zap.Error(err))
	}
	limited := &push.Limited{
		Gateway:  gw,
		Fallback: push.NewLocalLimiter(cfg.Push.RatePerSecond, cfg.Push.Burst),
		Log:      l,
	}
	checks := []obs.Check{{Name: "postgres", Probe: db.Ping}}
	if cfg.Redis.Enable {
		rdb, err := rds.NewClient(ctx, cfg.Redis.Conn())
		if err != nil {
			l.Warn("redis unavailable, limiting per process", zap.Error(err))
		} else {
			defer func() { _ = rdb.Close() }()
			limited.Primary = rds.NewWindowLimiter(rdb, "vitalis:push", cfg.Push.RatePerSecond, cfg.Push.RateWindow)
			checks = append(checks, obs.Check{
				Name:  "redis",
				Probe: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			})
		}
	}

	jobs := pg.NewJobRepo(db)
	sink := failures.NewSink(pg.NewTransactor(db, l), pg.NewFailureRepo(db), pg.NewOutboxRepo(db), l)
	clock := notification.SystemClock{}

	handler := &worker.Handler{
		Tx:            pg.NewTransactor(db, l),
		Notifications: pg.NewNotificationRepo(db),
		Users:         pg.NewUserRepo(db),
		Push:          limited,
		Queue:         jobs,
		Failures:      sink,
		Clock:         clock,
		Log:           l,
	}
	processor := &worker.Processor{
		Jobs:     jobs,
		Delivery: handler,
		Failures: sink,
		Clock:    clock,
		Log:      l,
	}

	sub := kafkax.BootstrapConsumer(ctx, &kafkax.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		GroupID:       cfg.Kafka.GroupID,
		Topic:         cfg.Kafka.JobsTopic,
		Partitions:    cfg.Kafka.Partitions,
		FromBeginning: true,
		Logger:        l,
	}, l)
	defer func() { _ = sub.Close() }()

	if err := kafkax.EnsureTopic(ctx, cfg.Kafka.Brokers, kafkax.TopicSpec{
		Name:          cfg.Kafka.FailuresTopic,
		NumPartitions: cfg.Kafka.Partitions,
	}, l); err != nil {
		l.Warn("topic bootstrap", zap.Error(err))
	}
	failuresProducer := kafkax.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.FailuresTopic).WithLogger(l)
	defer func() { _ = failuresProducer.Close() }()
	relay := outbox.NewOutboxRunner(l, pg.NewOutboxRepo(db),
		outbox.MakeGlobalOutboxHandler(
			kafkax.NewFailureEventsKafka(failuresProducer),
			retry.DefaultPublishPolicy("outbox_delivery_failed", l),
		),
		outbox.Config{
			Workers:       cfg.Outbox.Workers,
			BatchSize:     cfg.Outbox.BatchSize,
			WaitTime:      cfg.Outbox.WaitTime,
			InProgressTTL: cfg.Outbox.InProgressTTL,
		},
	)
	go relay.Run(ctx)

	ms := obs.BootstrapMetricsServer(cfg.Worker.MetricsAddr, l, checks...)

	ctrl := &worker.Controller{
		Log:         l,
		Sub:         sub,
		UC:          processor,
		Concurrency: cfg.Worker.Concurrency,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Run(ctx) }()
	l.Info("delivery worker started")

	select {
	case <-ctx.Done():
		l.Info("draining in-flight deliveries")
		err = <-errCh
	case err = <-errCh:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		l.Error("consumer error", zap.Error(err))
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
