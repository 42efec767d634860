// Package push wraps push gateways with process-wide concerns.
package push

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NordCoder/Vitalis/internal/domain/push"
)

var throttled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "push_limiter_errors_total",
	Help: "Sends that proceeded without a limiter token because the limiter failed.",
})

type Limiter interface {
	Wait(ctx context.Context) error
}

// NewLocalLimiter limits a single process to perSecond sends.
func NewLocalLimiter(perSecond, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = perSecond
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Limited applies Primary before each send. When Primary errors for a reason
// other than cancellation, Fallback is used so a limiter outage does not stop
// deliveries.
type Limited struct {
	Gateway  push.Gateway
	Primary  Limiter
	Fallback Limiter
	Log      *zap.Logger
}

var _ push.Gateway = (*Limited)(nil)

func (l *Limited) Send(ctx context.Context, token string, m push.Message) error {
	if err := l.wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", push.ErrDelivery, err)
	}
	return l.Gateway.Send(ctx, token, m)
}

func (l *Limited) wait(ctx context.Context) error {
	if l.Primary == nil {
		return l.waitFallback(ctx)
	}
	err := l.Primary.Wait(ctx)
	if err == nil || ctx.Err() != nil {
		return err
	}
	throttled.Inc()
	if l.Log != nil {
		l.Log.Warn("push limiter unavailable, using local limit", zap.Error(err))
	}
	return l.waitFallback(ctx)
}

func (l *Limited) waitFallback(ctx context.Context) error {
	if l.Fallback == nil {
		return nil
	}
	return l.Fallback.Wait(ctx)
}
