package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NordCoder/Vitalis/internal/domain/kafka"
	"github.com/NordCoder/Vitalis/internal/domain/queue"
	"github.com/NordCoder/Vitalis/internal/obs/retry"
)

type Claimer interface {
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]queue.Job, error)
}

type TickResult struct {
	Claimed int
	Sent    int
	Errors  int
}

// Usecase claims due jobs and announces them. A job whose announcement is
// lost stays active and is claimed again once its lease runs out.
type Usecase struct {
	Jobs    Claimer
	Events  kafka.JobEvents
	Lease   time.Duration
	Publish retry.Policy
}

func NewUC(jobs Claimer, events kafka.JobEvents, lease time.Duration, pol retry.Policy) *Usecase {
	return &Usecase{Jobs: jobs, Events: events, Lease: lease, Publish: pol}
}

func (u *Usecase) Tick(ctx context.Context, limit int) (TickResult, error) {
	if limit <= 0 {
		limit = 100
	}
	lease := u.Lease
	if lease <= 0 {
		lease = time.Minute
	}

	tr := otel.Tracer("dispatcher.uc")
	ctxTick, span := tr.Start(ctx, "dispatcher.tick",
		trace.WithAttributes(attribute.Int("batch.limit", limit)),
	)
	defer span.End()

	due, err := u.Jobs.ClaimDue(ctxTick, limit, lease)
	if err != nil {
		span.RecordError(err)
		return TickResult{Errors: 1}, fmt.Errorf("claim due: %w", err)
	}
	span.SetAttributes(attribute.Int("batch.claimed", len(due)))

	res := TickResult{Claimed: len(due)}
	for _, job := range due {
		pctx, sp := tr.Start(ctxTick, "dispatcher.publish",
			trace.WithAttributes(
				attribute.String("job.id", job.ID.String()),
				attribute.String("notification.id", job.NotificationID.String()),
			),
		)
		err := retry.Do(pctx, func() error { return u.Events.PublishJobDue(pctx, job) }, u.Publish)
		if err != nil {
			res.Errors++
			sp.RecordError(err)
			sp.SetAttributes(attribute.String("publish.status", "error"))
			sp.End()
			continue
		}
		res.Sent++
		sp.SetAttributes(attribute.String("publish.status", "ok"))
		sp.End()
	}

	span.SetAttributes(
		attribute.Int("batch.sent", res.Sent),
		attribute.Int("batch.errors", res.Errors),
	)
	return res, nil
}
