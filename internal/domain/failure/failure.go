package failure

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is an append-only entry describing one failed delivery attempt.
// DeadLetter marks the record written when the job ran out of attempts.
type Record struct {
	ID             uuid.UUID `json:"id"`
	JobID          uuid.UUID `json:"jobId"`
	UID            string    `json:"uid"`
	NotificationID uuid.UUID `json:"notificationId"`
	Error          string    `json:"error"`
	Attempt        int       `json:"attempt"`
	DeadLetter     bool      `json:"deadLetter"`
	FailedAt       time.Time `json:"failedAt"`
}

type Sink interface {
	Append(ctx context.Context, r Record) error
}

type Repo interface {
	Insert(ctx context.Context, r *Record) error
}
