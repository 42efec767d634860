package kafka

import (
	"context"

	"github.com/NordCoder/Vitalis/internal/domain/failure"
	"github.com/NordCoder/Vitalis/internal/domain/queue"
)

type JobEvents interface {
	PublishJobDue(ctx context.Context, j queue.Job) error
}

type FailureEvents interface {
	PublishDeliveryFailed(ctx context.Context, r failure.Record) error
}
