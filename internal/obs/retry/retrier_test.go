package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type noWait struct{}

func (noWait) Next(int) time.Duration { return 0 }

func TestDo_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, Policy{Name: "t_success", Attempts: 5, Backoff: noWait{}})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ReportsExhaustion(t *testing.T) {
	boom := errors.New("down")
	var attempts []int
	var exhausted error
	err := Do(context.Background(), func() error { return boom }, Policy{
		Name:      "t_exhaust",
		Attempts:  3,
		Backoff:   noWait{},
		OnAttempt: func(i int, _ error) { attempts = append(attempts, i) },
		OnExhaust: func(err error) { exhausted = err },
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{0, 1, 2}, attempts)
	assert.ErrorIs(t, exhausted, boom)
}

func TestDo_NonRetryableFailsFast(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return context.Canceled
	}, DefaultPublishPolicy("t_cancel", nil))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("retry me")
	}, Policy{Name: "t_ctx", Attempts: 5, Backoff: ExpoJitter{Base: time.Hour}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExpoJitter_Caps(t *testing.T) {
	b := ExpoJitter{Base: time.Second, Max: 5 * time.Second}
	assert.Equal(t, time.Second, b.Next(0))
	assert.Equal(t, 4*time.Second, b.Next(2))
	assert.Equal(t, 5*time.Second, b.Next(10))
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	bad := errors.New("bad payload")
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return Permanent(bad)
	}, Policy{Name: "t_permanent", Attempts: 5, Backoff: noWait{}})

	assert.ErrorIs(t, err, bad)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}
