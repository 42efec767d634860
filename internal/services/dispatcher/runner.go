package dispatcher

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	mClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_jobs_claimed_total", Help: "Due jobs claimed from the job table.",
	})
	mSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_jobs_published_total", Help: "Job-due events published to Kafka.",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_errors_total", Help: "Errors in the dispatcher loop.",
	})
	mLoopDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "dispatcher_loop_duration_seconds", Help: "Dispatcher tick duration.",
		Buckets: prometheus.DefBuckets,
	})
)

type Runner struct {
	Log        *zap.Logger
	UC         *Usecase
	Interval   time.Duration
	BatchLimit int
}

func New(log *zap.Logger, uc *Usecase, interval time.Duration, batch int) *Runner {
	if interval <= 0 {
		interval = time.Second
	}
	return &Runner{Log: log, UC: uc, Interval: interval, BatchLimit: batch}
}

// tick drains the backlog: a full batch means more jobs may be due.
func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	defer func() { mLoopDur.Observe(time.Since(start).Seconds()) }()

	for ctx.Err() == nil {
		res, err := r.UC.Tick(ctx, r.BatchLimit)
		if err != nil {
			mErr.Inc()
			r.Log.Warn("tick error", zap.Error(err))
			return
		}
		mClaimed.Add(float64(res.Claimed))
		mSent.Add(float64(res.Sent))
		mErr.Add(float64(res.Errors))
		if res.Claimed > 0 {
			r.Log.Debug("dispatched batch",
				zap.Int("claimed", res.Claimed), zap.Int("sent", res.Sent), zap.Int("errors", res.Errors))
		}
		if res.Claimed < r.BatchLimit || res.Errors > 0 {
			return
		}
	}
}

func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}
