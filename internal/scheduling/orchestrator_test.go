package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Vitalis/internal/domain/notification"
	"github.com/NordCoder/Vitalis/internal/domain/queue"
	"github.com/NordCoder/Vitalis/internal/domain/user"
	"github.com/NordCoder/Vitalis/internal/timezone"
)

const uid = "user-1"

type env struct {
	orch  *Orchestrator
	repo  *memNotifications
	queue *fakeQueue
	clock *fixedClock
	users stubUsers
}

func newEnv(t *testing.T, now string) *env {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, now)
	require.NoError(t, err)

	token := "tok"
	e := &env{
		repo:  newMemNotifications(),
		queue: &fakeQueue{},
		clock: &fixedClock{t: ts},
		users: stubUsers{users: map[string]*user.User{
			uid:        {ID: uid, Timezone: "Asia/Kolkata", FCMToken: &token, Status: user.StatusActive},
			"intruder": {ID: "intruder", Timezone: "UTC", Status: user.StatusActive},
			"inactive": {ID: "inactive", Timezone: "UTC", Status: "disabled"},
		}},
	}
	e.orch = NewOrchestrator(memTx{repo: e.repo, queue: e.queue}, e.repo, e.users, e.queue, e.clock, nil)
	return e
}

func createReq() CreateRequest {
	return CreateRequest{
		Message: "Take vitamin D",
		Type:    notification.TypeMedical,
		Date:    "2025-01-10",
		Time:    "09:00",
		Repeat:  notification.RepeatDaily,
	}
}

func TestCreate_SchedulesInOwnerTimezone(t *testing.T) {
	e := newEnv(t, "2025-01-09T12:00:00Z")

	n, err := e.orch.Create(context.Background(), uid, createReq())
	require.NoError(t, err)

	assert.Equal(t, "2025-01-10T03:30:00Z", n.ScheduledAt.Format(time.RFC3339))
	assert.Equal(t, notification.StatusUnread, n.Status)
	assert.Zero(t, n.SnoozeCount)
	require.NotNil(t, n.JobID)

	job := e.queue.last()
	assert.Equal(t, *n.JobID, job.ID)
	assert.Equal(t, queue.Payload{NotificationID: n.ID, UID: uid}, job.Payload)
	assert.Equal(t, 15*time.Hour+30*time.Minute, job.Opts.Delay)
	assert.Equal(t, 3, job.Opts.Attempts)
	assert.Equal(t, time.Second, job.Opts.Backoff)

	stored := e.repo.get(n.ID)
	assert.Equal(t, n.JobID, stored.JobID)
}

func TestCreate_RejectsPastAndPresent(t *testing.T) {
	e := newEnv(t, "2025-01-10T03:30:00Z")

	_, err := e.orch.Create(context.Background(), uid, createReq())
	assert.ErrorIs(t, err, notification.ErrPastSchedule)
	assert.Empty(t, e.queue.enqueued)
	assert.Empty(t, e.repo.rows)
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv(t, "2025-01-09T12:00:00Z")
	ctx := context.Background()

	req := createReq()
	req.Type = "fitness"
	req.Repeat = "yearly"
	_, err := e.orch.Create(ctx, uid, req)
	assert.ErrorIs(t, err, notification.ErrInvalidType)
	assert.ErrorIs(t, err, notification.ErrInvalidRepeat)

	req = createReq()
	req.Time = "9am"
	_, err = e.orch.Create(ctx, uid, req)
	assert.ErrorIs(t, err, timezone.ErrInvalidTime)

	_, err = e.orch.Create(ctx, "ghost", createReq())
	assert.ErrorIs(t, err, user.ErrNotFound)

	_, err = e.orch.Create(ctx, "inactive", createReq())
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestCreate_InvalidTimezone(t *testing.T) {
	e := newEnv(t, "2025-01-09T12:00:00Z")
	e.users.users[uid].Timezone = "Atlantis/Lost"

	_, err := e.orch.Create(context.Background(), uid, createReq())
	assert.ErrorIs(t, err, timezone.ErrInvalidTimezone)
}

func TestCreate_EnqueueFailure(t *testing.T) {
	e := newEnv(t, "2025-01-09T12:00:00Z")
	e.queue.EnqueueFn = func(queue.Payload, queue.Options) (uuid.UUID, error) {
		return uuid.Nil, errors.New("queue down")
	}

	_, err := e.orch.Create(context.Background(), uid, createReq())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue down")

	page, err := e.orch.List(context.Background(), uid, notification.ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Items, "no row without a job")
}

func TestCreateSchedule(t *testing.T) {
	e := newEnv(t, "2025-03-08T12:00:00Z")
	id := uuid.New()

	at, jobID, err := e.orch.CreateSchedule(context.Background(), id, uid, "2025-03-09", "02:30", "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-09T07:30:00Z", at.Format(time.RFC3339))
	assert.Equal(t, e.queue.last().ID, jobID)
	assert.Equal(t, id, e.queue.last().Payload.NotificationID)

	_, _, err = e.orch.CreateSchedule(context.Background(), id, uid, "2025-03-01", "10:00", "America/New_York")
	assert.ErrorIs(t, err, notification.ErrPastSchedule)
}

func TestReschedule_ReplacesJob(t *testing.T) {
	e := newEnv(t, "2025-01-09T12:00:00Z")
	ctx := context.Background()
	n, err := e.orch.Create(ctx, uid, createReq())
	require.NoError(t, err)
	oldJob := *n.JobID

	newTime := "18:45"
	got, err := e.orch.Reschedule(ctx, n.ID, nil, &newTime)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{oldJob}, e.queue.cancelled)
	assert.Equal(t, "2025-01-10T13:15:00Z", got.ScheduledAt.Format(time.RFC3339))
	assert.Equal(t, "18:45", got.Time)
	assert.Equal(t, "2025-01-10", got.Date)
	require.NotNil(t, got.JobID)
	assert.NotEqual(t, oldJob, *got.JobID)

	stored := e.repo.get(n.ID)
	assert.Equal(t, got.JobID, stored.JobID)
	assert.True(t, got.ScheduledAt.Equal(stored.ScheduledAt))
}

func TestReschedule_PastKeepsOldJob(t *testing.T) {
	e := newEnv(t, "2025-01-09T12:00:00Z")
	ctx := context.Background()
	n, err := e.orch.Create(ctx, uid, createReq())
	require.NoError(t, err)

	yesterday := "2025-01-08"
	_, err = e.orch.Reschedule(ctx, n.ID, &yesterday, nil)
	assert.ErrorIs(t, err, notification.ErrPastSchedule)
	assert.Empty(t, e.queue.cancelled)
	assert.Equal(t, n.JobID, e.repo.get(n.ID).JobID)
}

func TestReschedule_EnqueueFailureKeepsOldJob(t *testing.T) {
	e := newEnv(t, "2025-01-09T12:00:00Z")
	ctx := context.Background()
	n, err := e.orch.Create(ctx, uid, createReq())
	require.NoError(t, err)
	before := e.repo.get(n.ID)

	e.queue.EnqueueFn = func(queue.Payload, queue.Options) (uuid.UUID, error) {
		return uuid.Nil, errors.New("queue down")
	}
	newTime := "18:45"
	_, err = e.orch.Reschedule(ctx, n.ID, nil, &newTime)
	require.Error(t, err)
	_, err = e.orch.Update(ctx, uid, n.ID, Patch{Time: &newTime})
	require.Error(t, err)

	assert.Empty(t, e.queue.cancelled)
	assert.Equal(t, before, e.repo.get(n.ID))
}

func TestReschedule_TerminalRejected(t *testing.T) {
	e := newEnv(t, "2025-01-09T12:00:00Z")
	id := uuid.New()
	e.repo.put(notification.Notification{ID: id, Owner: uid, Status: notification.StatusDone, Date: "2025-01-10", Time: "09:00"})

	newTime := "10:00"
	_, err := e.orch.Reschedule(context.Background(), id, nil, &newTime)
	assert.ErrorIs(t, err, notification.ErrTerminalState)
	assert.Empty(t, e.queue.enqueued)
}

func TestCancel_IsIdempotent(t *testing.T) {
	e := newEnv(t, "2025-01-09T12:00:00Z")
	ctx := context.Background()
	n, err := e.orch.Create(ctx, uid, createReq())
	require.NoError(t, err)

	require.NoError(t, e.orch.Cancel(ctx, n.ID))
	require.NoError(t, e.orch.Cancel(ctx, n.ID))
	assert.Len(t, e.queue.cancelled, 2)

	assert.ErrorIs(t, e.orch.Cancel(ctx, uuid.New()), notification.ErrNotFound)
}

func TestUpdate_PatchesAndReschedules(t *testing.T) {
	e := newEnv(t, "2025-01-09T12:00:00Z")
	ctx := context.Background()
	n, err := e.orch.Create(ctx, uid, createReq())
	require.NoError(t, err)
	jobsBefore := len(e.queue.enqueued)

	msg := "Drink water"
	typ := notification.TypePersonal
	got, err := e.orch.Update(ctx, uid, n.ID, Patch{Message: &msg, Type: &typ})
	require.NoError(t, err)
	assert.Equal(t, "Drink water", got.Message)
	assert.Equal(t, notification.TypePersonal, got.Type)
	assert.Len(t, e.queue.enqueued, jobsBefore, "no reschedule without date or time")

	date := "2025-01-12T00:00:00.000Z"
	got, err = e.orch.Update(ctx, uid, n.ID, Patch{Date: &date})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-12", got.Date)
	assert.Equal(t, "2025-01-12T03:30:00Z", got.ScheduledAt.Format(time.RFC3339))
	assert.Len(t, e.queue.enqueued, jobsBefore+1)
}

func TestUpdate_Ownership(t *testing.T) {
	e := newEnv(t, "2025-01-09T12:00:00Z")
	ctx := context.Background()
	n, err := e.orch.Create(ctx, uid, createReq())
	require.NoError(t, err)

	msg := "mine now"
	_, err = e.orch.Update(ctx, "intruder", n.ID, Patch{Message: &msg})
	assert.ErrorIs(t, err, notification.ErrForbidden)

	empty := " "
	_, err = e.orch.Update(ctx, uid, n.ID, Patch{Message: &empty})
	assert.ErrorIs(t, err, notification.ErrInvalidMessage)
}

func TestGet(t *testing.T) {
	e := newEnv(t, "2025-01-09T12:00:00Z")
	ctx := context.Background()
	n, err := e.orch.Create(ctx, uid, createReq())
	require.NoError(t, err)

	got, err := e.orch.Get(ctx, uid, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)

	_, err = e.orch.Get(ctx, "someone", n.ID)
	assert.ErrorIs(t, err, notification.ErrForbidden)

	_, err = e.orch.Get(ctx, uid, uuid.New())
	assert.ErrorIs(t, err, notification.ErrNotFound)
}

func TestList_Pagination(t *testing.T) {
	e := newEnv(t, "2025-01-09T12:00:00Z")
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		id := uuid.New()
		ids = append(ids, id)
		typ := notification.TypeMedical
		if i%2 == 1 {
			typ = notification.TypePersonal
		}
		e.repo.put(notification.Notification{
			ID: id, Owner: uid, Type: typ, Status: notification.StatusUnread,
			UpdatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	e.repo.put(notification.Notification{ID: uuid.New(), Owner: uid, Status: notification.StatusDeleted, UpdatedAt: base.Add(10 * time.Hour)})
	e.repo.put(notification.Notification{ID: uuid.New(), Owner: "other", Status: notification.StatusUnread, UpdatedAt: base})

	ctx := context.Background()
	page, err := e.orch.List(ctx, uid, notification.ListQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, ids[4], page.Items[0].ID)
	assert.Equal(t, ids[3], page.Items[1].ID)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, ids[3], *page.NextCursor)

	page, err = e.orch.List(ctx, uid, notification.ListQuery{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{ids[2], ids[1]}, []uuid.UUID{page.Items[0].ID, page.Items[1].ID})
	assert.True(t, page.HasNextPage)

	page, err = e.orch.List(ctx, uid, notification.ListQuery{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.False(t, page.HasNextPage)
	assert.Nil(t, page.NextCursor)

	typ := notification.TypePersonal
	page, err = e.orch.List(ctx, uid, notification.ListQuery{Type: &typ})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	missing := uuid.New()
	_, err = e.orch.List(ctx, uid, notification.ListQuery{Cursor: &missing})
	assert.ErrorIs(t, err, notification.ErrInvalidCursor)

	bad := notification.Type("spam")
	_, err = e.orch.List(ctx, uid, notification.ListQuery{Type: &bad})
	assert.ErrorIs(t, err, notification.ErrInvalidType)
}

func TestList_Empty(t *testing.T) {
	e := newEnv(t, "2025-01-09T12:00:00Z")
	page, err := e.orch.List(context.Background(), uid, notification.ListQuery{})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasNextPage)
}
