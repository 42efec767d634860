package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Vitalis/internal/domain/queue"
)

var (
	_ queue.Queue = (*JobRepo)(nil)
	_ queue.Store = (*JobRepo)(nil)
)

// JobRepo is the delayed job queue. Rows move
// delayed -> active -> completed | delayed (retry) | failed, or
// delayed -> cancelled.
type JobRepo struct{ db *DB }

func NewJobRepo(db *DB) *JobRepo { return &JobRepo{db: db} }

const jobColumns = `id, name, notification_id, uid, run_at, attempts, attempts_made, backoff_ms, state, last_error, created_at, updated_at`

const (
	qJobInsert = `
INSERT INTO jobs (id, name, notification_id, uid, run_at, attempts, backoff_ms, state)
VALUES ($1, $2, $3, $4, now() + make_interval(secs => $5), $6, $7, 'delayed');`

	qJobCancel = `
UPDATE jobs
SET state = 'cancelled', updated_at = now()
WHERE id = $1 AND state = 'delayed';`

	qJobByID = `
SELECT ` + jobColumns + `
FROM jobs
WHERE id = $1;`

	qJobClaim = `
WITH due AS (
   SELECT id
   FROM jobs
   WHERE (state = 'delayed' AND run_at <= now())
      OR (state = 'active' AND updated_at < now() - make_interval(secs => $2))
   ORDER BY run_at
   LIMIT $1
   FOR UPDATE SKIP LOCKED
)
UPDATE jobs j
SET state = 'active', updated_at = now()
FROM due
WHERE j.id = due.id
RETURNING j.id, j.name, j.notification_id, j.uid, j.run_at, j.attempts, j.attempts_made,
          j.backoff_ms, j.state, j.last_error, j.created_at, j.updated_at;`

	qJobComplete = `
UPDATE jobs
SET state = 'completed', updated_at = now()
WHERE id = $1 AND state = 'active';`

	qJobFail = `
UPDATE jobs
SET attempts_made = attempts_made + 1,
    last_error    = $2,
    state         = CASE WHEN attempts_made + 1 >= attempts THEN 'failed' ELSE 'delayed' END,
    run_at        = CASE WHEN attempts_made + 1 >= attempts THEN run_at
                         ELSE now() + make_interval(secs => backoff_ms * power(2, attempts_made) / 1000.0) END,
    updated_at    = now()
WHERE id = $1
RETURNING state;`
)

func (r *JobRepo) Enqueue(ctx context.Context, name string, p queue.Payload, opts queue.Options) (uuid.UUID, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if opts.Attempts <= 0 {
		opts.Attempts = queue.DefaultAttempts
	}
	id := uuid.New()
	_, err := r.db.execQueryer(ctx).Exec(ctx, qJobInsert,
		id, name, p.NotificationID, p.UID, opts.Delay.Seconds(), opts.Attempts, opts.Backoff.Milliseconds(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

func (r *JobRepo) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qJobCancel, id)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *JobRepo) Get(ctx context.Context, id uuid.UUID) (*queue.Job, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	j, err := scanJob(r.db.execQueryer(ctx).QueryRow(ctx, qJobByID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, queue.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// ClaimDue moves up to limit due jobs to active. Active jobs whose lease ran
// out are claimed again so a crashed worker does not strand them.
func (r *JobRepo) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]queue.Job, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qJobClaim, limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	defer rows.Close()

	var out []queue.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func (r *JobRepo) Complete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qJobComplete, id); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

func (r *JobRepo) Fail(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var state string
	err := r.db.execQueryer(ctx).QueryRow(ctx, qJobFail, id, reason).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, queue.ErrJobNotFound
	}
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	return queue.State(state) == queue.StateFailed, nil
}

func scanJob(row pgx.Row) (*queue.Job, error) {
	var (
		j         queue.Job
		backoffMS int64
		state     string
	)
	if err := row.Scan(
		&j.ID, &j.Name, &j.NotificationID, &j.UID, &j.RunAt, &j.Attempts, &j.AttemptsMade,
		&backoffMS, &state, &j.LastError, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	j.Backoff = time.Duration(backoffMS) * time.Millisecond
	j.State = queue.State(state)
	return &j, nil
}
