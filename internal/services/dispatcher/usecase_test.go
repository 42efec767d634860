package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Vitalis/internal/domain/queue"
	"github.com/NordCoder/Vitalis/internal/obs/retry"
)

type stubClaimer struct {
	batches [][]queue.Job
	lease   time.Duration
	limits  []int
	err     error
}

func (s *stubClaimer) ClaimDue(_ context.Context, limit int, lease time.Duration) ([]queue.Job, error) {
	s.limits = append(s.limits, limit)
	s.lease = lease
	if s.err != nil {
		return nil, s.err
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

type flakyEvents struct {
	published []uuid.UUID
	failFor   map[uuid.UUID]int
}

func (f *flakyEvents) PublishJobDue(_ context.Context, j queue.Job) error {
	if f.failFor[j.ID] > 0 {
		f.failFor[j.ID]--
		return errors.New("leader not available")
	}
	f.published = append(f.published, j.ID)
	return nil
}

func jobs(n int) []queue.Job {
	out := make([]queue.Job, n)
	for i := range out {
		out[i] = queue.Job{ID: uuid.New(), NotificationID: uuid.New(), State: queue.StateActive}
	}
	return out
}

func twice() retry.Policy { return retry.Policy{Attempts: 2, Backoff: retry.ExpoJitter{}} }

func TestTick_PublishesClaimedJobs(t *testing.T) {
	batch := jobs(3)
	claimer := &stubClaimer{batches: [][]queue.Job{batch}}
	events := &flakyEvents{failFor: map[uuid.UUID]int{batch[1].ID: 1}}
	uc := NewUC(claimer, events, 30*time.Second, twice())

	res, err := uc.Tick(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, TickResult{Claimed: 3, Sent: 3}, res)
	assert.ElementsMatch(t, []uuid.UUID{batch[0].ID, batch[1].ID, batch[2].ID}, events.published)
	assert.Equal(t, 30*time.Second, claimer.lease)
}

func TestTick_CountsLostAnnouncements(t *testing.T) {
	batch := jobs(2)
	events := &flakyEvents{failFor: map[uuid.UUID]int{batch[0].ID: 5}}
	uc := NewUC(&stubClaimer{batches: [][]queue.Job{batch}}, events, 0, twice())

	res, err := uc.Tick(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, TickResult{Claimed: 2, Sent: 1, Errors: 1}, res)
}

func TestTick_ClaimError(t *testing.T) {
	uc := NewUC(&stubClaimer{err: errors.New("db down")}, &flakyEvents{}, 0, twice())
	_, err := uc.Tick(context.Background(), 0)
	assert.Error(t, err)
}

func TestRunner_DrainsFullBatches(t *testing.T) {
	claimer := &stubClaimer{batches: [][]queue.Job{jobs(2), jobs(2), jobs(1)}}
	events := &flakyEvents{}
	r := New(zap.NewNop(), NewUC(claimer, events, 0, twice()), time.Hour, 2)

	r.tick(context.Background())
	assert.Len(t, events.published, 5)
	assert.Equal(t, []int{2, 2, 2}, claimer.limits)
}
