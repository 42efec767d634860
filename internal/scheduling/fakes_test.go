package scheduling

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NordCoder/Vitalis/internal/domain/notification"
	"github.com/NordCoder/Vitalis/internal/domain/queue"
	"github.com/NordCoder/Vitalis/internal/domain/user"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }
func (c *fixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type memNotifications struct {
	mu   sync.Mutex
	rows map[uuid.UUID]notification.Notification

	// casHook runs before a compare-and-swap is evaluated.
	casHook func()
}

func newMemNotifications() *memNotifications {
	return &memNotifications{rows: map[uuid.UUID]notification.Notification{}}
}

func (m *memNotifications) put(n notification.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[n.ID] = n
}

func (m *memNotifications) get(id uuid.UUID) notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

func (m *memNotifications) Create(_ context.Context, n *notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.CreatedAt, n.UpdatedAt = time.Now(), time.Now()
	m.rows[n.ID] = *n
	return nil
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
	if _, ok := m.rows[n.ID]; !ok {
		return notification.ErrNotFound
	}
	n.UpdatedAt = time.Now()
	m.rows[n.ID] = *n
	return nil
}

func (m *memNotifications) CompareAndSwap(_ context.Context, n *notification.Notification, g notification.Guard) (bool, error) {
	if m.casHook != nil {
		m.casHook()
	}
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

func (m *memNotifications) ListByOwner(_ context.Context, owner string, q notification.ListQuery) ([]*notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*notification.Notification
	for _, n := range m.rows {
		if n.Owner != owner || n.Status == notification.StatusDeleted {
			continue
		}
		if q.Type != nil && n.Type != *q.Type {
			continue
		}
		n := n
		all = append(all, &n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	if q.Cursor != nil {
		idx := -1
		for i, n := range all {
			if n.ID == *q.Cursor {
				idx = i
			}
		}
		if idx < 0 {
			return nil, notification.ErrInvalidCursor
		}
		all = all[idx+1:]
	}
	if len(all) > q.Limit+1 {
		all = all[:q.Limit+1]
	}
	return all, nil
}

type stubUsers struct {
	users map[string]*user.User
}

func (s stubUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (s stubUsers) ClearFCMToken(_ context.Context, id string) error {
	if u, ok := s.users[id]; ok {
		u.FCMToken = nil
	}
	return nil
}

type enqueued struct {
	ID      uuid.UUID
	Payload queue.Payload
	Opts    queue.Options
}

type fakeQueue struct {
	mu        sync.Mutex
	enqueued  []enqueued
	cancelled []uuid.UUID

	EnqueueFn func(queue.Payload, queue.Options) (uuid.UUID, error)
}

func (q *fakeQueue) Enqueue(_ context.Context, name string, p queue.Payload, opts queue.Options) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.EnqueueFn != nil {
		return q.EnqueueFn(p, opts)
	}
	id := uuid.New()
	q.enqueued = append(q.enqueued, enqueued{ID: id, Payload: p, Opts: opts})
	return id, nil
}

func (q *fakeQueue) Cancel(_ context.Context, id uuid.UUID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelled = append(q.cancelled, id)
	return true, nil
}

func (q *fakeQueue) last() enqueued {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueued[len(q.enqueued)-1]
}

// memTx rolls the rows and queued jobs back to their state before fn when
// fn fails, the way a shared Postgres transaction would.
type memTx struct {
	repo  *memNotifications
	queue *fakeQueue
}

func (t memTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.repo.mu.Lock()
	rows := maps.Clone(t.repo.rows)
	t.repo.mu.Unlock()
	t.queue.mu.Lock()
	jobs := slices.Clone(t.queue.enqueued)
	t.queue.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.repo.mu.Lock()
		t.repo.rows = rows
		t.repo.mu.Unlock()
		t.queue.mu.Lock()
		t.queue.enqueued = jobs
		t.queue.mu.Unlock()
		return err
	}
	return nil
}
