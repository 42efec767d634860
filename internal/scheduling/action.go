package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NordCoder/Vitalis/internal/domain/notification"
	"github.com/NordCoder/Vitalis/internal/obs"
)

// Action applies done, delete or snooze to a notification the caller owns.
func (o *Orchestrator) Action(ctx context.Context, uid string, id uuid.UUID, raw string) (*notification.Notification, error) {
	if _, err := o.activeUser(ctx, uid); err != nil {
		return nil, err
	}
	n, err := o.owned(ctx, uid, id)
	if err != nil {
		return nil, err
	}
	action, err := notification.ParseAction(raw)
	if err != nil {
		return nil, err
	}

	switch action {
	case notification.ActionDone:
		err = o.markDone(ctx, n)
	case notification.ActionDelete:
		err = o.delete(ctx, n)
	case notification.ActionSnooze:
		err = o.snooze(ctx, n)
	}
	if err != nil {
		return nil, err
	}
	obs.WithTrace(ctx, o.log).Info("notification action",
		zap.String("notification_id", n.ID.String()),
		zap.String("action", string(action)),
		zap.String("status", string(n.Status)),
	)
	return n, nil
}

// markDone leaves any outstanding job alone; the worker skips done rows.
func (o *Orchestrator) markDone(ctx context.Context, n *notification.Notification) error {
	if err := notification.Transition(n.Status, notification.StatusDone); err != nil {
		return err
	}
	n.Status = notification.StatusDone
	return o.notifications.Update(ctx, n)
}

func (o *Orchestrator) delete(ctx context.Context, n *notification.Notification) error {
	if err := notification.Transition(n.Status, notification.StatusDeleted); err != nil {
		return err
	}
	o.cancelJob(ctx, n.JobID)
	n.Status = notification.StatusDeleted
	n.JobID = nil
	return o.notifications.Update(ctx, n)
}

// snooze re-arms a due notification with the next escalation step. The write
// is conditional on the row read here, so of two concurrent snoozes only one
// keeps its job; the loser cancels what it enqueued.
func (o *Orchestrator) snooze(ctx context.Context, n *notification.Notification) error {
	now := o.clock.Now()
	if n.ScheduledAt.After(now) {
		return notification.ErrInvalidSnooze
	}
	guard := n.Guard()

	if n.SnoozeCount >= len(notification.SnoozeEscalation) {
		if err := notification.Transition(n.Status, notification.StatusDone); err != nil {
			return err
		}
		n.Status = notification.StatusDone
		return o.swap(ctx, n, guard)
	}
	if err := notification.Transition(n.Status, notification.StatusSnoozed); err != nil {
		return err
	}

	at := now.Add(time.Duration(notification.SnoozeEscalation[n.SnoozeCount]) * time.Minute).UTC()
	jobID, err := o.enqueue(ctx, n, at)
	if err != nil {
		return err
	}
	prevJob := n.JobID

	n.Status = notification.StatusSnoozed
	n.SnoozeCount++
	n.ScheduledAt = at
	n.JobID = &jobID

	if err := o.swap(ctx, n, guard); err != nil {
		o.cancelJob(ctx, &jobID)
		return err
	}
	// The previous job was already due; drop it if it has not been claimed.
	o.cancelJob(ctx, prevJob)
	return nil
}

func (o *Orchestrator) swap(ctx context.Context, n *notification.Notification, g notification.Guard) error {
	ok, err := o.notifications.CompareAndSwap(ctx, n, g)
	if err != nil {
		return fmt.Errorf("snooze: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: notification changed concurrently", notification.ErrInvalidSnooze)
	}
	return nil
}
