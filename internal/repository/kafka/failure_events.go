package kafka

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/Vitalis/internal/domain/failure"
	"github.com/NordCoder/Vitalis/internal/domain/kafka"
)

type FailureEventsKafka struct {
	p *Producer
}

func NewFailureEventsKafka(p *Producer) *FailureEventsKafka { return &FailureEventsKafka{p: p} }

var _ kafka.FailureEvents = (*FailureEventsKafka)(nil)

func (e *FailureEventsKafka) PublishDeliveryFailed(ctx context.Context, r failure.Record) error {
	msg, err := structpb.NewStruct(map[string]any{
		"id":              r.ID.String(),
		"job_id":          r.JobID.String(),
		"uid":             r.UID,
		"notification_id": r.NotificationID.String(),
		"error":           r.Error,
		"attempt":         r.Attempt,
		"dead_letter":     r.DeadLetter,
		"failed_at":       r.FailedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return e.p.PublishProto(ctx, KeyFromUUID(r.NotificationID), msg)
}
