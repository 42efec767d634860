package main

import (
	"net/http"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	config "github.com/NordCoder/Vitalis/internal/config/api-gateway"
	"github.com/NordCoder/Vitalis/internal/domain/notification"
	"github.com/NordCoder/Vitalis/internal/obs"
	pg "github.com/NordCoder/Vitalis/internal/repository/postgres"
	"github.com/NordCoder/Vitalis/internal/scheduling"
	"github.com/NordCoder/Vitalis/internal/services/api-gateway/auth"
	notifsvc "github.com/NordCoder/Vitalis/internal/services/api-gateway/notification"
)

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, db *pg.DB) (*http.Server, error) {
	orch := scheduling.NewOrchestrator(
		pg.NewTransactor(db, logger),
		pg.NewNotificationRepo(db),
		pg.NewUserRepo(db),
		pg.NewJobRepo(db),
		notification.SystemClock{},
		logger,
	)

	api := runtime.NewServeMux()
	if err := notifsvc.NewServer(logger, orch).Register(api); err != nil {
		return nil, err
	}

	root := http.NewServeMux()
	root.Handle("/v1/", auth.Middleware(auth.NewVerifier(cfg.Auth.JWTSecret, nil), api))
	root.Handle("/metrics", promhttp.Handler())
	root.Handle("/healthz", obs.HealthHandler(obs.Check{Name: "postgres", Probe: db.Ping}))

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           otelhttp.NewHandler(root, "api-gateway"),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}, nil
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}
