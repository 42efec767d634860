package delivery_worker

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/known/structpb"

	kafkax "github.com/NordCoder/Vitalis/internal/repository/kafka"
)

const DefaultConcurrency = 20

type JobProcessor interface {
	Process(ctx context.Context, jobID uuid.UUID) error
}

// Controller feeds due-job events into a bounded pool of processors. The
// offset is committed once a slot takes the job; the job row stays the
// source of truth if the process dies mid-delivery.
type Controller struct {
	Log         *zap.Logger
	Sub         *kafkax.Consumer
	UC          JobProcessor
	Concurrency int
}

func (c *Controller) Run(runCtx context.Context) error {
	limit := c.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	var pool errgroup.Group
	pool.SetLimit(limit)

	handler := kafkax.ProtoHandler(
		func() *structpb.Struct { return &structpb.Struct{} },
		func(ctx context.Context, _ []byte, msg *structpb.Struct) error {
			ev, err := kafkax.DecodeJobDue(msg)
			if err != nil {
				c.Log.Warn("malformed job event, skipping", zap.Error(err))
				return nil
			}
			c.Log.Debug("job due", zap.String("job_id", ev.JobID.String()))
			jobCtx := detach(runCtx, ctx)
			pool.Go(func() error {
				if err := c.UC.Process(jobCtx, ev.JobID); err != nil {
					c.Log.Error("process job", zap.String("job_id", ev.JobID.String()), zap.Error(err))
				}
				return nil
			})
			return nil
		},
	)

	err := c.Sub.Consume(runCtx, handler)
	_ = pool.Wait()
	return err
}

// detach carries the message's trace onto the run context. The consumer span
// has ended by the time a pool slot picks the job up, and a delivery already
// handed to the pool runs to completion on shutdown.
func detach(run, msg context.Context) context.Context {
	return trace.ContextWithSpanContext(context.WithoutCancel(run), trace.SpanContextFromContext(msg))
}
