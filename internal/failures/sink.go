// Package failures records failed deliveries. Each record is stored and
// queued for the failure topic in one transaction.
package failures

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Vitalis/internal/domain/failure"
	"github.com/NordCoder/Vitalis/internal/domain/outbox"
)

var recorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "failure_sink_records_total",
	Help: "Failed deliveries recorded, split by dead-letter flag.",
}, []string{"dead_letter"})

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Sink struct {
	tx     Transactor
	repo   failure.Repo
	outbox outbox.Repository
	log    *zap.Logger
}

var _ failure.Sink = (*Sink)(nil)

func NewSink(tx Transactor, repo failure.Repo, ob outbox.Repository, log *zap.Logger) *Sink {
	return &Sink{tx: tx, repo: repo, outbox: ob, log: log}
}

func (s *Sink) Append(ctx context.Context, r failure.Record) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal failure record: %w", err)
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, &r); err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, "failure:"+r.ID.String(), outbox.KindDeliveryFailed, data)
	})
	if err != nil {
		return fmt.Errorf("append failure record: %w", err)
	}

	recorded.WithLabelValues(fmt.Sprint(r.DeadLetter)).Inc()
	s.log.Debug("failure recorded",
		zap.String("notification_id", r.NotificationID.String()),
		zap.Int("attempt", r.Attempt),
		zap.Bool("dead_letter", r.DeadLetter),
	)
	return nil
}
