package delivery_worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Vitalis/internal/domain/failure"
	"github.com/NordCoder/Vitalis/internal/domain/notification"
	"github.com/NordCoder/Vitalis/internal/domain/push"
	"github.com/NordCoder/Vitalis/internal/domain/queue"
	"github.com/NordCoder/Vitalis/internal/domain/user"
	"github.com/NordCoder/Vitalis/internal/obs"
	"github.com/NordCoder/Vitalis/internal/recurrence"
	"github.com/NordCoder/Vitalis/internal/timezone"
)

// errSuperseded marks a delivery whose row moved on to another job while the
// push was in flight.
var errSuperseded = errors.New("notification superseded")

var deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "delivery_worker_deliveries_total",
	Help: "Delivery attempts by outcome.",
}, []string{"outcome"})

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Handler performs one delivery attempt for a fired job. Every step re-reads
// state, so running it twice for the same job is harmless.
type Handler struct {
	Tx            Transactor
	Notifications notification.Repo
	Users         user.Repo
	Push          push.Gateway
	Queue         queue.Queue
	Failures      failure.Sink
	Clock         notification.Clock
	Log           *zap.Logger
}

func (h *Handler) Deliver(ctx context.Context, job queue.Job) error {
	ctx, span := otel.Tracer("delivery.worker").Start(ctx, "delivery.deliver",
		trace.WithAttributes(
			attribute.String("job.id", job.ID.String()),
			attribute.String("notification.id", job.NotificationID.String()),
			attribute.Int("job.attempts_made", job.AttemptsMade),
		),
	)
	defer span.End()

	outcome, err := h.deliver(ctx, job)
	deliveries.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("delivery.outcome", outcome))
	if err == nil {
		return nil
	}

	span.RecordError(err)
	log := obs.WithTrace(ctx, h.Log)
	log.Warn("delivery failed",
		zap.String("job_id", job.ID.String()),
		zap.String("notification_id", job.NotificationID.String()),
		zap.Error(err),
	)
	rec := failure.Record{
		JobID:          job.ID,
		UID:            job.UID,
		NotificationID: job.NotificationID,
		Error:          err.Error(),
		Attempt:        job.AttemptsMade + 1,
		FailedAt:       h.Clock.Now().UTC(),
	}
	if serr := h.Failures.Append(ctx, rec); serr != nil {
		log.Error("failure sink append", zap.Error(serr))
	}
	return err
}

func (h *Handler) deliver(ctx context.Context, job queue.Job) (string, error) {
	log := obs.WithTrace(ctx, h.Log).With(
		zap.String("job_id", job.ID.String()),
		zap.String("notification_id", job.NotificationID.String()),
	)

	n, err := h.Notifications.GetByID(ctx, job.NotificationID)
	if errors.Is(err, notification.ErrNotFound) {
		log.Info("notification gone, skipping")
		return "skipped_missing", nil
	}
	if err != nil {
		return "error", fmt.Errorf("load notification: %w", err)
	}
	if n.Status.Terminal() {
		log.Debug("notification closed, skipping", zap.String("status", string(n.Status)))
		return "skipped_closed", nil
	}
	// Only the row's live job may deliver; a snooze or reschedule replaced
	// this one after it was claimed.
	if n.JobID == nil || *n.JobID != job.ID {
		log.Info("job superseded, skipping")
		return "skipped_stale", nil
	}

	u, err := h.Users.GetByID(ctx, job.UID)
	if errors.Is(err, user.ErrNotFound) {
		log.Info("user gone, skipping")
		return "skipped_no_user", nil
	}
	if err != nil {
		return "error", fmt.Errorf("load user: %w", err)
	}
	if !u.Active() {
		log.Info("user inactive, skipping")
		return "skipped_no_user", nil
	}
	if !u.HasToken() {
		log.Info("user has no push token, skipping")
		return "skipped_no_token", nil
	}

	msg := push.Message{
		Body: n.Message,
		Data: map[string]string{"notificationId": n.ID.String()},
	}
	if err := h.Push.Send(ctx, *u.FCMToken, msg); err != nil {
		if errors.Is(err, push.ErrInvalidToken) {
			if cerr := h.Users.ClearFCMToken(ctx, u.ID); cerr != nil {
				log.Error("clear push token", zap.Error(cerr))
			} else {
				log.Info("push token cleared")
			}
			return "invalid_token", err
		}
		return "push_error", err
	}

	err = h.advance(ctx, n, u)
	if errors.Is(err, errSuperseded) {
		log.Info("notification changed during delivery, leaving it alone")
		return "sent_superseded", nil
	}
	if err != nil {
		return "error", err
	}
	return "sent", nil
}

// advance writes the post-delivery state. The next occurrence and the row
// commit together, and only if the row still points at the delivered job.
func (h *Handler) advance(ctx context.Context, n *notification.Notification, u *user.User) error {
	guard := n.Guard()
	now := h.Clock.Now().UTC()
	n.LastSentAt = &now

	return h.Tx.WithTx(ctx, func(ctx context.Context) error {
		return h.persist(ctx, n, u, guard, now)
	})
}

func (h *Handler) persist(ctx context.Context, n *notification.Notification, u *user.User, guard notification.Guard, now time.Time) error {
	switch {
	case n.Status == notification.StatusSnoozed:
		n.JobID = nil
	case n.Repeat != notification.RepeatNever:
		next, ok := recurrence.Next(now.In(h.location(u)), n.Repeat)
		if !ok {
			n.Status = notification.StatusDone
			n.JobID = nil
			break
		}
		next = next.UTC()
		jobID, err := h.Queue.Enqueue(ctx, queue.JobSendNotification,
			queue.Payload{NotificationID: n.ID, UID: n.Owner},
			queue.DefaultOptions(next.Sub(now)),
		)
		if err != nil {
			return fmt.Errorf("enqueue next occurrence: %w", err)
		}
		n.Status = notification.StatusUnread
		n.ScheduledAt = next
		n.JobID = &jobID
	default:
		n.Status = notification.StatusDone
		n.JobID = nil
	}

	ok, err := h.Notifications.CompareAndSwap(ctx, n, guard)
	if err != nil {
		return fmt.Errorf("persist delivery: %w", err)
	}
	if !ok {
		return errSuperseded
	}
	return nil
}

func (h *Handler) location(u *user.User) *time.Location {
	loc, err := timezone.Load(u.Timezone)
	if err != nil {
		h.Log.Warn("user timezone invalid, using UTC", zap.String("uid", u.ID), zap.String("tz", u.Timezone))
		return time.UTC
	}
	return loc
}
