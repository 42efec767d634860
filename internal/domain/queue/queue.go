package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const JobSendNotification = "sendNotification"

const (
	DefaultAttempts = 3
	DefaultBackoff  = time.Second
)

var ErrJobNotFound = errors.New("job not found")

type State string

const (
	StateDelayed   State = "delayed"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

type Payload struct {
	NotificationID uuid.UUID
	UID            string
}

// Options controls a single job. Backoff is the base of an exponential
// retry delay: Backoff * 2^(attemptsMade-1).
type Options struct {
	Delay    time.Duration
	Attempts int
	Backoff  time.Duration
}

// DefaultOptions returns the retry policy every delivery job uses.
func DefaultOptions(delay time.Duration) Options {
	if delay < 0 {
		delay = 0
	}
	return Options{Delay: delay, Attempts: DefaultAttempts, Backoff: DefaultBackoff}
}

type Job struct {
	ID             uuid.UUID
	Name           string
	NotificationID uuid.UUID
	UID            string
	RunAt          time.Time
	Attempts       int
	AttemptsMade   int
	Backoff        time.Duration
	State          State
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Queue is the producer side used by request handling and the worker.
type Queue interface {
	Enqueue(ctx context.Context, name string, p Payload, opts Options) (uuid.UUID, error)
	// Cancel removes a job that has not been claimed yet. It reports false
	// when the job is already gone or running.
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
}

// Store is the consumer side used by the dispatcher and the worker pool.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Job, error)
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]Job, error)
	Complete(ctx context.Context, id uuid.UUID) error
	// Fail records a failed attempt and re-delays the job, or marks it
	// failed once attempts are exhausted.
	Fail(ctx context.Context, id uuid.UUID, reason string) (exhausted bool, err error)
}
