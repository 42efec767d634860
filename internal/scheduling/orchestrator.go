package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/NordCoder/Vitalis/internal/domain/notification"
	"github.com/NordCoder/Vitalis/internal/domain/queue"
	"github.com/NordCoder/Vitalis/internal/domain/user"
	"github.com/NordCoder/Vitalis/internal/obs"
	"github.com/NordCoder/Vitalis/internal/timezone"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Orchestrator owns every request-side mutation of a notification and its
// queue job.
type Orchestrator struct {
	tx            Transactor
	notifications notification.Repo
	users         user.Repo
	queue         queue.Queue
	clock         notification.Clock
	log           *zap.Logger
}

func NewOrchestrator(
	tx Transactor,
	notifications notification.Repo,
	users user.Repo,
	q queue.Queue,
	clock notification.Clock,
	log *zap.Logger,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		tx:            tx,
		notifications: notifications,
		users:         users,
		queue:         q,
		clock:         clock,
		log:           log.With(zap.String("component", "scheduling")),
	}
}

type CreateRequest struct {
	Message string
	Type    notification.Type
	Date    string
	Time    string
	Repeat  notification.Repeat
}

type Patch struct {
	Message *string
	Type    *notification.Type
	Repeat  *notification.Repeat
	Date    *string
	Time    *string
}

func (p Patch) reschedules() bool { return p.Date != nil || p.Time != nil }

// Create persists a new unread notification and arms its first delivery.
func (o *Orchestrator) Create(ctx context.Context, uid string, req CreateRequest) (*notification.Notification, error) {
	ctx, span := otel.Tracer("scheduling").Start(ctx, "scheduling.create")
	defer span.End()

	if err := validate(req.Message, req.Type, req.Repeat); err != nil {
		return nil, err
	}
	u, err := o.activeUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	at, err := o.futureInstant(req.Date, req.Time, u.Timezone)
	if err != nil {
		return nil, err
	}

	n := &notification.Notification{
		ID:          uuid.New(),
		Owner:       uid,
		Message:     strings.TrimSpace(req.Message),
		Type:        req.Type,
		Date:        dateOnly(req.Date),
		Time:        req.Time,
		Repeat:      req.Repeat,
		Status:      notification.StatusUnread,
		ScheduledAt: at,
	}
	// The row and its first job commit together or not at all.
	err = o.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := o.notifications.Create(ctx, n); err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
		jobID, err := o.enqueue(ctx, n, at)
		if err != nil {
			return err
		}
		n.JobID = &jobID
		if err := o.notifications.Update(ctx, n); err != nil {
			return fmt.Errorf("persist job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("notification.id", n.ID.String()))
	obs.WithTrace(ctx, o.log).Info("notification scheduled",
		zap.String("notification_id", n.ID.String()),
		zap.Time("scheduled_at", at),
		zap.String("repeat", string(n.Repeat)),
	)
	return n, nil
}

// CreateSchedule resolves the owner's wall time and enqueues a delivery job
// for notification id. The instant must be strictly in the future.
func (o *Orchestrator) CreateSchedule(ctx context.Context, id uuid.UUID, owner, date, clock, tz string) (time.Time, uuid.UUID, error) {
	at, err := o.futureInstant(date, clock, tz)
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	jobID, err := o.enqueue(ctx, &notification.Notification{ID: id, Owner: owner}, at)
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	return at, jobID, nil
}

// Reschedule moves a notification to a new date and/or time, replacing its job.
func (o *Orchestrator) Reschedule(ctx context.Context, id uuid.UUID, date, clock *string) (*notification.Notification, error) {
	n, err := o.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := o.reschedule(ctx, n, date, clock); err != nil {
		return nil, err
	}
	if err := o.notifications.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("persist reschedule: %w", err)
	}
	return n, nil
}

// Cancel drops the notification's outstanding job if it is still waiting.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) error {
	n, err := o.notifications.GetByID(ctx, id)
	if err != nil {
		return err
	}
	o.cancelJob(ctx, n.JobID)
	return nil
}

func (o *Orchestrator) Update(ctx context.Context, uid string, id uuid.UUID, p Patch) (*notification.Notification, error) {
	n, err := o.owned(ctx, uid, id)
	if err != nil {
		return nil, err
	}

	if p.Message != nil {
		if strings.TrimSpace(*p.Message) == "" {
			return nil, notification.ErrInvalidMessage
		}
		n.Message = strings.TrimSpace(*p.Message)
	}
	if p.Type != nil {
		if !p.Type.Valid() {
			return nil, notification.ErrInvalidType
		}
		n.Type = *p.Type
	}
	if p.Repeat != nil {
		if !p.Repeat.Valid() {
			return nil, notification.ErrInvalidRepeat
		}
		n.Repeat = *p.Repeat
	}
	if p.reschedules() {
		if err := o.reschedule(ctx, n, p.Date, p.Time); err != nil {
			return nil, err
		}
	}

	if err := o.notifications.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("update notification: %w", err)
	}
	return n, nil
}

func (o *Orchestrator) Get(ctx context.Context, uid string, id uuid.UUID) (*notification.Notification, error) {
	return o.owned(ctx, uid, id)
}

// List pages through the caller's notifications, most recently updated first.
func (o *Orchestrator) List(ctx context.Context, uid string, q notification.ListQuery) (*notification.Page, error) {
	if q.Type != nil && !q.Type.Valid() {
		return nil, notification.ErrInvalidType
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultPageSize
	case q.Limit > MaxPageSize:
		q.Limit = MaxPageSize
	}

	rows, err := o.notifications.ListByOwner(ctx, uid, q)
	if err != nil {
		return nil, err
	}
	page := &notification.Page{Items: rows}
	if len(rows) > q.Limit {
		page.Items = rows[:q.Limit]
		page.HasNextPage = true
		last := page.Items[len(page.Items)-1].ID
		page.NextCursor = &last
	}
	if page.Items == nil {
		page.Items = []*notification.Notification{}
	}
	return page, nil
}

func (o *Orchestrator) reschedule(ctx context.Context, n *notification.Notification, date, clock *string) error {
	if n.Status.Terminal() {
		return fmt.Errorf("%w: %s", notification.ErrTerminalState, n.Status)
	}
	u, err := o.activeUser(ctx, n.Owner)
	if err != nil {
		return err
	}

	newDate, newTime := n.Date, n.Time
	if date != nil {
		newDate = dateOnly(*date)
	}
	if clock != nil {
		newTime = *clock
	}
	at, err := o.futureInstant(newDate, newTime, u.Timezone)
	if err != nil {
		return err
	}

	// The old job stays armed until its replacement exists.
	jobID, err := o.enqueue(ctx, n, at)
	if err != nil {
		return err
	}
	o.cancelJob(ctx, n.JobID)

	n.Date, n.Time = newDate, newTime
	n.ScheduledAt = at
	n.JobID = &jobID
	return nil
}

func (o *Orchestrator) futureInstant(date, clock, tz string) (time.Time, error) {
	at, err := timezone.LocalDateTimeToUTC(date, clock, tz)
	if err != nil {
		return time.Time{}, err
	}
	if !at.After(o.clock.Now()) {
		return time.Time{}, notification.ErrPastSchedule
	}
	return at, nil
}

func (o *Orchestrator) enqueue(ctx context.Context, n *notification.Notification, at time.Time) (uuid.UUID, error) {
	delay := at.Sub(o.clock.Now())
	jobID, err := o.queue.Enqueue(ctx, queue.JobSendNotification,
		queue.Payload{NotificationID: n.ID, UID: n.Owner},
		queue.DefaultOptions(delay),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue delivery: %w", err)
	}
	return jobID, nil
}

// cancelJob is best-effort: a job that is gone or already running is left
// to the worker's status check.
func (o *Orchestrator) cancelJob(ctx context.Context, jobID *uuid.UUID) {
	if jobID == nil {
		return
	}
	removed, err := o.queue.Cancel(ctx, *jobID)
	if err != nil {
		obs.WithTrace(ctx, o.log).Warn("cancel job", zap.String("job_id", jobID.String()), zap.Error(err))
		return
	}
	if !removed {
		obs.WithTrace(ctx, o.log).Debug("job already gone", zap.String("job_id", jobID.String()))
	}
}

func (o *Orchestrator) activeUser(ctx context.Context, uid string) (*user.User, error) {
	u, err := o.users.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !u.Active() {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (o *Orchestrator) owned(ctx context.Context, uid string, id uuid.UUID) (*notification.Notification, error) {
	n, err := o.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Owner != uid {
		return nil, notification.ErrForbidden
	}
	return n, nil
}

func validate(msg string, t notification.Type, r notification.Repeat) error {
	var errs []error
	if strings.TrimSpace(msg) == "" {
		errs = append(errs, notification.ErrInvalidMessage)
	}
	if !t.Valid() {
		errs = append(errs, notification.ErrInvalidType)
	}
	if !r.Valid() {
		errs = append(errs, notification.ErrInvalidRepeat)
	}
	return errors.Join(errs...)
}

func dateOnly(date string) string {
	if i := strings.IndexByte(date, 'T'); i >= 0 {
		return date[:i]
	}
	return date
}
