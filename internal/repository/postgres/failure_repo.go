package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/Vitalis/internal/domain/failure"
)

var _ failure.Repo = (*FailureRepo)(nil)

type FailureRepo struct{ db *DB }

func NewFailureRepo(db *DB) *FailureRepo { return &FailureRepo{db: db} }

const qFailureInsert = `
INSERT INTO failed_deliveries (id, job_id, uid, notification_id, error, attempt, dead_letter, failed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

func (r *FailureRepo) Insert(ctx context.Context, rec *failure.Record) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	_, err := r.db.execQueryer(ctx).Exec(ctx, qFailureInsert,
		rec.ID, rec.JobID, rec.UID, rec.NotificationID, rec.Error, rec.Attempt, rec.DeadLetter, rec.FailedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert failed delivery: %w", err)
	}
	return nil
}
