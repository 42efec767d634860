package main

import (
	"context"

	config "github.com/NordCoder/Vitalis/internal/config/api-gateway"
	"github.com/NordCoder/Vitalis/internal/obs"
	"go.uber.org/zap"
)

func initOTel(ctx context.Context, cfg *config.Config, logger *zap.Logger) (func(context.Context) error, error) {
	closer, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		return nil, err
	}
	logger.Debug("otel ready", zap.Bool("enabled", cfg.OTEL.Enable))
	return closer.Shutdown, nil
}
