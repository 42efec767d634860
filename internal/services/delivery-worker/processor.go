package delivery_worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Vitalis/internal/domain/failure"
	"github.com/NordCoder/Vitalis/internal/domain/notification"
	"github.com/NordCoder/Vitalis/internal/domain/queue"
	"github.com/NordCoder/Vitalis/internal/obs"
)

var (
	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_worker_jobs_total",
		Help: "Jobs taken off the due topic by result.",
	}, []string{"result"})
	deadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delivery_worker_dead_letters_total",
		Help: "Jobs that ran out of attempts.",
	})
)

type Deliverer interface {
	Deliver(ctx context.Context, job queue.Job) error
}

// Processor settles a claimed job: it runs the delivery and then completes
// the job, re-delays it with backoff, or dead-letters it.
type Processor struct {
	Jobs     queue.Store
	Delivery Deliverer
	Failures failure.Sink
	Clock    notification.Clock
	Log      *zap.Logger
}

func (p *Processor) Process(ctx context.Context, jobID uuid.UUID) error {
	log := obs.WithTrace(ctx, p.Log).With(zap.String("job_id", jobID.String()))

	job, err := p.Jobs.Get(ctx, jobID)
	if errors.Is(err, queue.ErrJobNotFound) {
		jobsProcessed.WithLabelValues("unknown").Inc()
		log.Warn("job not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.State != queue.StateActive {
		jobsProcessed.WithLabelValues("stale").Inc()
		log.Debug("job not active, dropping duplicate", zap.String("state", string(job.State)))
		return nil
	}

	derr := p.Delivery.Deliver(ctx, *job)
	if derr == nil {
		jobsProcessed.WithLabelValues("completed").Inc()
		if err := p.Jobs.Complete(ctx, job.ID); err != nil {
			return fmt.Errorf("complete job: %w", err)
		}
		return nil
	}

	exhausted, err := p.Jobs.Fail(ctx, job.ID, derr.Error())
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if !exhausted {
		jobsProcessed.WithLabelValues("retry").Inc()
		log.Info("job will retry", zap.Int("attempts_made", job.AttemptsMade+1), zap.Int("attempts", job.Attempts))
		return nil
	}

	jobsProcessed.WithLabelValues("dead").Inc()
	deadLettered.Inc()
	log.Error("job exhausted attempts", zap.Int("attempts", job.Attempts), zap.Error(derr))
	return p.Failures.Append(ctx, failure.Record{
		JobID:          job.ID,
		UID:            job.UID,
		NotificationID: job.NotificationID,
		Error:          derr.Error(),
		Attempt:        job.AttemptsMade + 1,
		DeadLetter:     true,
		FailedAt:       p.Clock.Now().UTC(),
	})
}
