package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/Vitalis/internal/domain/kafka"
	"github.com/NordCoder/Vitalis/internal/domain/queue"
)

// JobDue wakes a worker for a claimed job. The job row stays authoritative;
// the event only carries enough to look it up and trace it.
type JobDue struct {
	JobID          uuid.UUID
	NotificationID uuid.UUID
	UID            string
	AttemptsMade   int
	RunAt          time.Time
}

type JobEventsKafka struct {
	p *Producer
}

func NewJobEventsKafka(p *Producer) *JobEventsKafka { return &JobEventsKafka{p: p} }

var _ kafka.JobEvents = (*JobEventsKafka)(nil)

func (e *JobEventsKafka) PublishJobDue(ctx context.Context, j queue.Job) error {
	msg, err := EncodeJobDue(JobDue{
		JobID:          j.ID,
		NotificationID: j.NotificationID,
		UID:            j.UID,
		AttemptsMade:   j.AttemptsMade,
		RunAt:          j.RunAt,
	})
	if err != nil {
		return err
	}
	// Keyed by notification so one reminder's wake-ups stay on one partition.
	return e.p.PublishProto(ctx, KeyFromUUID(j.NotificationID), msg)
}

func EncodeJobDue(ev JobDue) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"job_id":          ev.JobID.String(),
		"notification_id": ev.NotificationID.String(),
		"uid":             ev.UID,
		"attempts_made":   ev.AttemptsMade,
		"run_at":          ev.RunAt.UTC().Format(time.RFC3339Nano),
	})
}

func DecodeJobDue(s *structpb.Struct) (JobDue, error) {
	f := s.GetFields()
	jobID, err := uuid.Parse(f["job_id"].GetStringValue())
	if err != nil {
		return JobDue{}, fmt.Errorf("job_id: %w", err)
	}
	nid, err := uuid.Parse(f["notification_id"].GetStringValue())
	if err != nil {
		return JobDue{}, fmt.Errorf("notification_id: %w", err)
	}
	ev := JobDue{
		JobID:          jobID,
		NotificationID: nid,
		UID:            f["uid"].GetStringValue(),
		AttemptsMade:   int(f["attempts_made"].GetNumberValue()),
	}
	if raw := f["run_at"].GetStringValue(); raw != "" {
		if ev.RunAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return JobDue{}, fmt.Errorf("run_at: %w", err)
		}
	}
	return ev, nil
}
