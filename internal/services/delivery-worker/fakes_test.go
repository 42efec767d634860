package delivery_worker

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NordCoder/Vitalis/internal/domain/failure"
	"github.com/NordCoder/Vitalis/internal/domain/notification"
	"github.com/NordCoder/Vitalis/internal/domain/push"
	"github.com/NordCoder/Vitalis/internal/domain/queue"
	"github.com/NordCoder/Vitalis/internal/domain/user"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type memNotifications struct {
	mu   sync.Mutex
	rows map[uuid.UUID]notification.Notification
}

func (m *memNotifications) GetByID(_ context.Context, id uuid.UUID) (*notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.rows[id]
	if !ok {
		return nil, notification.ErrNotFound
	}
	return &n, nil
}

func (m *memNotifications) Update(_ context.Context, n *notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[n.ID] = *n
	return nil
}

func (m *memNotifications) Create(context.Context, *notification.Notification) error { return nil }

func (m *memNotifications) CompareAndSwap(_ context.Context, n *notification.Notification, g notification.Guard) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[n.ID]
	if !ok {
		return false, nil
	}
	sameJob := (cur.JobID == nil && g.JobID == nil) ||
		(cur.JobID != nil && g.JobID != nil && *cur.JobID == *g.JobID)
	if cur.Status != g.Status || cur.SnoozeCount != g.SnoozeCount || !sameJob {
		return false, nil
	}
	m.rows[n.ID] = *n
	return true, nil
}

func (m *memNotifications) ListByOwner(context.Context, string, notification.ListQuery) ([]*notification.Notification, error) {
	return nil, nil
}

type memUsers struct {
	users   map[string]*user.User
	cleared []string
}

func (m *memUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) ClearFCMToken(_ context.Context, id string) error {
	m.cleared = append(m.cleared, id)
	if u, ok := m.users[id]; ok {
		u.FCMToken = nil
	}
	return nil
}

type sent struct {
	Token string
	Msg   push.Message
}

type fakePush struct {
	sent []sent
	err  error

	// onSend runs while the push is in flight.
	onSend func()
}

func (f *fakePush) Send(_ context.Context, token string, m push.Message) error {
	if f.onSend != nil {
		f.onSend()
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{Token: token, Msg: m})
	return nil
}

type enqueued struct {
	ID      uuid.UUID
	Payload queue.Payload
	Opts    queue.Options
}

type fakeQueue struct {
	enqueued []enqueued
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, _ string, p queue.Payload, opts queue.Options) (uuid.UUID, error) {
	if q.err != nil {
		return uuid.Nil, q.err
	}
	id := uuid.New()
	q.enqueued = append(q.enqueued, enqueued{ID: id, Payload: p, Opts: opts})
	return id, nil
}

func (q *fakeQueue) Cancel(context.Context, uuid.UUID) (bool, error) { return true, nil }

// memTx rolls the rows and queued jobs back to their state before fn when
// fn fails.
type memTx struct {
	repo  *memNotifications
	queue *fakeQueue
}

func (t memTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.repo.mu.Lock()
	rows := maps.Clone(t.repo.rows)
	t.repo.mu.Unlock()
	jobs := slices.Clone(t.queue.enqueued)

	if err := fn(ctx); err != nil {
		t.repo.mu.Lock()
		t.repo.rows = rows
		t.repo.mu.Unlock()
		t.queue.enqueued = jobs
		return err
	}
	return nil
}

type memSink struct {
	records []failure.Record
}

func (s *memSink) Append(_ context.Context, r failure.Record) error {
	s.records = append(s.records, r)
	return nil
}

type memJobs struct {
	jobs      map[uuid.UUID]*queue.Job
	completed []uuid.UUID
	failed    []string
}

func (m *memJobs) Get(_ context.Context, id uuid.UUID) (*queue.Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, queue.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobs) ClaimDue(context.Context, int, time.Duration) ([]queue.Job, error) {
	return nil, nil
}

func (m *memJobs) Complete(_ context.Context, id uuid.UUID) error {
	m.completed = append(m.completed, id)
	m.jobs[id].State = queue.StateCompleted
	return nil
}

func (m *memJobs) Fail(_ context.Context, id uuid.UUID, reason string) (bool, error) {
	m.failed = append(m.failed, reason)
	j := m.jobs[id]
	j.AttemptsMade++
	j.LastError = reason
	if j.AttemptsMade >= j.Attempts {
		j.State = queue.StateFailed
		return true, nil
	}
	j.State = queue.StateDelayed
	return false, nil
}

type deliverFunc func(ctx context.Context, job queue.Job) error

func (f deliverFunc) Deliver(ctx context.Context, job queue.Job) error { return f(ctx, job) }
