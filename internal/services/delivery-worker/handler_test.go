package delivery_worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Vitalis/internal/domain/notification"
	"github.com/NordCoder/Vitalis/internal/domain/push"
	"github.com/NordCoder/Vitalis/internal/domain/queue"
	"github.com/NordCoder/Vitalis/internal/domain/user"
	"github.com/NordCoder/Vitalis/internal/scheduling"
)

const owner = "user-1"

// Friday 09:00 in Asia/Kolkata.
var fridayMorning = time.Date(2025, 1, 10, 3, 30, 0, 0, time.UTC)

type harness struct {
	h     *Handler
	repo  *memNotifications
	users *memUsers
	push  *fakePush
	queue *fakeQueue
	sink  *memSink
}

func newHarness() *harness {
	token := "tok-1"
	x := &harness{
		repo: &memNotifications{rows: map[uuid.UUID]notification.Notification{}},
		users: &memUsers{users: map[string]*user.User{
			owner: {ID: owner, Timezone: "Asia/Kolkata", FCMToken: &token, Status: user.StatusActive},
		}},
		push:  &fakePush{},
		queue: &fakeQueue{},
		sink:  &memSink{},
	}
	x.h = &Handler{
		Tx:            memTx{repo: x.repo, queue: x.queue},
		Notifications: x.repo,
		Users:         x.users,
		Push:          x.push,
		Queue:         x.queue,
		Failures:      x.sink,
		Clock:         fixedClock{t: fridayMorning},
		Log:           zap.NewNop(),
	}
	return x
}

func (x *harness) seed(repeat notification.Repeat, status notification.Status) queue.Job {
	id, jobID := uuid.New(), uuid.New()
	x.repo.rows[id] = notification.Notification{
		ID:          id,
		Owner:       owner,
		Message:     "Take vitamins",
		Type:        notification.TypeMedical,
		Repeat:      repeat,
		Status:      status,
		ScheduledAt: fridayMorning,
		JobID:       &jobID,
	}
	return queue.Job{ID: jobID, Name: queue.JobSendNotification, NotificationID: id, UID: owner, Attempts: 3}
}

func TestDeliver_OneShotBecomesDone(t *testing.T) {
	x := newHarness()
	job := x.seed(notification.RepeatNever, notification.StatusUnread)

	require.NoError(t, x.h.Deliver(context.Background(), job))

	require.Len(t, x.push.sent, 1)
	assert.Equal(t, "tok-1", x.push.sent[0].Token)
	assert.Equal(t, "Take vitamins", x.push.sent[0].Msg.Body)
	assert.Equal(t, job.NotificationID.String(), x.push.sent[0].Msg.Data["notificationId"])

	n := x.repo.rows[job.NotificationID]
	assert.Equal(t, notification.StatusDone, n.Status)
	assert.Nil(t, n.JobID)
	require.NotNil(t, n.LastSentAt)
	assert.True(t, fridayMorning.Equal(*n.LastSentAt))
	assert.Empty(t, x.queue.enqueued)
}

func TestDeliver_DailyReschedulesFromNow(t *testing.T) {
	x := newHarness()
	job := x.seed(notification.RepeatDaily, notification.StatusUnread)

	require.NoError(t, x.h.Deliver(context.Background(), job))

	require.Len(t, x.queue.enqueued, 1)
	next := x.queue.enqueued[0]
	assert.Equal(t, 24*time.Hour, next.Opts.Delay)
	assert.Equal(t, queue.DefaultAttempts, next.Opts.Attempts)
	assert.Equal(t, job.NotificationID, next.Payload.NotificationID)

	n := x.repo.rows[job.NotificationID]
	assert.Equal(t, notification.StatusUnread, n.Status)
	assert.True(t, fridayMorning.Add(24*time.Hour).Equal(n.ScheduledAt))
	assert.Equal(t, next.ID, *n.JobID)
}

func TestDeliver_WeekdaysSkipTheWeekendInOwnerZone(t *testing.T) {
	x := newHarness()
	job := x.seed(notification.RepeatWeekdays, notification.StatusUnread)

	require.NoError(t, x.h.Deliver(context.Background(), job))

	n := x.repo.rows[job.NotificationID]
	assert.Equal(t, time.Date(2025, 1, 13, 3, 30, 0, 0, time.UTC), n.ScheduledAt)
}

func TestDeliver_SnoozedOnlyStampsLastSent(t *testing.T) {
	x := newHarness()
	job := x.seed(notification.RepeatDaily, notification.StatusSnoozed)

	require.NoError(t, x.h.Deliver(context.Background(), job))

	n := x.repo.rows[job.NotificationID]
	assert.Equal(t, notification.StatusSnoozed, n.Status)
	assert.Nil(t, n.JobID)
	assert.NotNil(t, n.LastSentAt)
	assert.True(t, fridayMorning.Equal(n.ScheduledAt))
	assert.Empty(t, x.queue.enqueued)
}

func TestDeliver_SkipsWithoutSending(t *testing.T) {
	cases := map[string]func(x *harness) queue.Job{
		"missing notification": func(x *harness) queue.Job {
			return queue.Job{ID: uuid.New(), NotificationID: uuid.New(), UID: owner}
		},
		"done": func(x *harness) queue.Job {
			return x.seed(notification.RepeatDaily, notification.StatusDone)
		},
		"deleted": func(x *harness) queue.Job {
			return x.seed(notification.RepeatNever, notification.StatusDeleted)
		},
		"no token": func(x *harness) queue.Job {
			x.users.users[owner].FCMToken = nil
			return x.seed(notification.RepeatNever, notification.StatusUnread)
		},
		"inactive user": func(x *harness) queue.Job {
			x.users.users[owner].Status = "disabled"
			return x.seed(notification.RepeatNever, notification.StatusUnread)
		},
		"unknown user": func(x *harness) queue.Job {
			delete(x.users.users, owner)
			return x.seed(notification.RepeatNever, notification.StatusUnread)
		},
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			x := newHarness()
			job := setup(x)
			before, had := x.repo.rows[job.NotificationID]

			require.NoError(t, x.h.Deliver(context.Background(), job))

			assert.Empty(t, x.push.sent)
			assert.Empty(t, x.queue.enqueued)
			assert.Empty(t, x.sink.records)
			if had {
				assert.Equal(t, before, x.repo.rows[job.NotificationID])
			}
		})
	}
}

func TestDeliver_InvalidTokenClearedAndRecorded(t *testing.T) {
	x := newHarness()
	x.push.err = push.ErrInvalidToken
	job := x.seed(notification.RepeatNever, notification.StatusUnread)
	job.AttemptsMade = 1

	err := x.h.Deliver(context.Background(), job)
	assert.ErrorIs(t, err, push.ErrInvalidToken)
	assert.Equal(t, []string{owner}, x.users.cleared)

	require.Len(t, x.sink.records, 1)
	rec := x.sink.records[0]
	assert.Equal(t, job.ID, rec.JobID)
	assert.Equal(t, job.NotificationID, rec.NotificationID)
	assert.Equal(t, owner, rec.UID)
	assert.Equal(t, 2, rec.Attempt)
	assert.False(t, rec.DeadLetter)

	assert.Equal(t, notification.StatusUnread, x.repo.rows[job.NotificationID].Status)
}

func TestDeliver_TransientPushErrorKeepsToken(t *testing.T) {
	x := newHarness()
	x.push.err = errors.Join(push.ErrDelivery, errors.New("503"))
	job := x.seed(notification.RepeatNever, notification.StatusUnread)

	err := x.h.Deliver(context.Background(), job)
	assert.ErrorIs(t, err, push.ErrDelivery)
	assert.Empty(t, x.users.cleared)
	assert.Len(t, x.sink.records, 1)
	assert.Nil(t, x.repo.rows[job.NotificationID].LastSentAt)
}

func TestDeliver_BadTimezoneFallsBackToUTC(t *testing.T) {
	x := newHarness()
	x.users.users[owner].Timezone = "Mars/Olympus"
	job := x.seed(notification.RepeatHourly, notification.StatusUnread)

	require.NoError(t, x.h.Deliver(context.Background(), job))
	assert.True(t, fridayMorning.Add(time.Hour).Equal(x.repo.rows[job.NotificationID].ScheduledAt))
}

func TestDeliver_SupersededJobIsSkipped(t *testing.T) {
	cases := map[string]struct {
		repeat notification.Repeat
		status notification.Status
	}{
		"snoozed row": {notification.RepeatNever, notification.StatusSnoozed},
		"daily row":   {notification.RepeatDaily, notification.StatusUnread},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			x := newHarness()
			job := x.seed(tc.repeat, tc.status)
			live := uuid.New()
			row := x.repo.rows[job.NotificationID]
			row.JobID = &live
			x.repo.rows[job.NotificationID] = row

			require.NoError(t, x.h.Deliver(context.Background(), job))

			assert.Empty(t, x.push.sent)
			assert.Empty(t, x.queue.enqueued)
			assert.Equal(t, row, x.repo.rows[job.NotificationID])
			require.NotNil(t, x.repo.rows[job.NotificationID].JobID)
			assert.Equal(t, live, *x.repo.rows[job.NotificationID].JobID)
		})
	}
}

func TestDeliver_TwiceWithSameJobSendsOnce(t *testing.T) {
	t.Run("one-shot", func(t *testing.T) {
		x := newHarness()
		job := x.seed(notification.RepeatNever, notification.StatusUnread)

		require.NoError(t, x.h.Deliver(context.Background(), job))
		require.NoError(t, x.h.Deliver(context.Background(), job))

		assert.Len(t, x.push.sent, 1)
		assert.Empty(t, x.queue.enqueued)
		assert.Equal(t, notification.StatusDone, x.repo.rows[job.NotificationID].Status)
	})
	t.Run("daily", func(t *testing.T) {
		x := newHarness()
		job := x.seed(notification.RepeatDaily, notification.StatusUnread)

		require.NoError(t, x.h.Deliver(context.Background(), job))
		require.NoError(t, x.h.Deliver(context.Background(), job))

		assert.Len(t, x.push.sent, 1)
		require.Len(t, x.queue.enqueued, 1)
		assert.Equal(t, x.queue.enqueued[0].ID, *x.repo.rows[job.NotificationID].JobID)
	})
}

func TestDeliver_AfterDeleteIsSkipped(t *testing.T) {
	x := newHarness()
	job := x.seed(notification.RepeatDaily, notification.StatusUnread)
	orch := scheduling.NewOrchestrator(memTx{repo: x.repo, queue: x.queue},
		x.repo, x.users, x.queue, fixedClock{t: fridayMorning}, nil)

	_, err := orch.Action(context.Background(), owner, job.NotificationID, "delete")
	require.NoError(t, err)
	require.NoError(t, x.h.Deliver(context.Background(), job))

	assert.Empty(t, x.push.sent)
	assert.Empty(t, x.queue.enqueued)
	n := x.repo.rows[job.NotificationID]
	assert.Equal(t, notification.StatusDeleted, n.Status)
	assert.Nil(t, n.LastSentAt)
}

func TestDeliver_RowChangedDuringPushKeepsLiveJob(t *testing.T) {
	x := newHarness()
	job := x.seed(notification.RepeatDaily, notification.StatusUnread)
	live := uuid.New()
	x.push.onSend = func() {
		row := x.repo.rows[job.NotificationID]
		row.Status = notification.StatusSnoozed
		row.SnoozeCount = 1
		row.JobID = &live
		x.repo.rows[job.NotificationID] = row
	}

	require.NoError(t, x.h.Deliver(context.Background(), job))

	assert.Len(t, x.push.sent, 1)
	assert.Empty(t, x.queue.enqueued, "next occurrence rolled back")
	n := x.repo.rows[job.NotificationID]
	assert.Equal(t, notification.StatusSnoozed, n.Status)
	require.NotNil(t, n.JobID)
	assert.Equal(t, live, *n.JobID)
	assert.Nil(t, n.LastSentAt)
}

func TestDeliver_EnqueueFailureLeavesRowUntouched(t *testing.T) {
	x := newHarness()
	x.queue.err = errors.New("queue down")
	job := x.seed(notification.RepeatDaily, notification.StatusUnread)
	before := x.repo.rows[job.NotificationID]

	err := x.h.Deliver(context.Background(), job)
	require.Error(t, err)

	assert.Equal(t, before, x.repo.rows[job.NotificationID])
	assert.Len(t, x.sink.records, 1)
}
