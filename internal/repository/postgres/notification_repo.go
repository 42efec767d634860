package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Vitalis/internal/domain/notification"
)

var _ notification.Repo = (*NotificationRepoImpl)(nil)

type NotificationRepoImpl struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepoImpl { return &NotificationRepoImpl{db: db} }

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var notifColumns = []string{
	"id", "owner_id", "message", "type", "local_date", "local_time", "repeat", "status",
	"snooze_count", "scheduled_at", "last_sent_at", "job_id", "created_at", "updated_at",
}

const (
	qNotifInsert = `
INSERT INTO notifications (id, owner_id, message, type, local_date, local_time, repeat, status,
                           snooze_count, scheduled_at, last_sent_at, job_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING created_at, updated_at;`

	qNotifByID = `
SELECT id, owner_id, message, type, local_date, local_time, repeat, status,
       snooze_count, scheduled_at, last_sent_at, job_id, created_at, updated_at
FROM notifications
WHERE id = $1;`

	qNotifUpdate = `
UPDATE notifications
SET message      = $2,
    type         = $3,
    local_date   = $4,
    local_time   = $5,
    repeat       = $6,
    status       = $7,
    snooze_count = $8,
    scheduled_at = $9,
    last_sent_at = $10,
    job_id       = $11,
    updated_at   = now()
WHERE id = $1
RETURNING updated_at;`

	qNotifSwap = `
UPDATE notifications
SET message      = $2,
    type         = $3,
    local_date   = $4,
    local_time   = $5,
    repeat       = $6,
    status       = $7,
    snooze_count = $8,
    scheduled_at = $9,
    last_sent_at = $10,
    job_id       = $11,
    updated_at   = now()
WHERE id = $1
  AND status = $12
  AND snooze_count = $13
  AND job_id IS NOT DISTINCT FROM $14::uuid
RETURNING updated_at;`

	qNotifCursor = `
SELECT updated_at FROM notifications WHERE id = $1 AND owner_id = $2;`
)

func (r *NotificationRepoImpl) Create(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).QueryRow(ctx, qNotifInsert,
		n.ID, n.Owner, n.Message, string(n.Type), n.Date, n.Time, string(n.Repeat), string(n.Status),
		n.SnoozeCount, n.ScheduledAt.UTC(), n.LastSentAt, n.JobID,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert notification %s: %w", n.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepoImpl) GetByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	n, err := scanNotification(r.db.execQueryer(ctx).QueryRow(ctx, qNotifByID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notification.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (r *NotificationRepoImpl) Update(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).QueryRow(ctx, qNotifUpdate, updateArgs(n)...).Scan(&n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return notification.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}

// CompareAndSwap writes n only if the stored row still matches g.
func (r *NotificationRepoImpl) CompareAndSwap(ctx context.Context, n *notification.Notification, g notification.Guard) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	args := append(updateArgs(n), string(g.Status), g.SnoozeCount, g.JobID)
	err := r.db.execQueryer(ctx).QueryRow(ctx, qNotifSwap, args...).Scan(&n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("swap notification: %w", err)
	}
	return true, nil
}

// ListByOwner returns up to q.Limit+1 rows, newest update first, so the
// caller can tell whether another page exists.
func (r *NotificationRepoImpl) ListByOwner(ctx context.Context, owner string, q notification.ListQuery) ([]*notification.Notification, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)

	b := psql.Select(notifColumns...).
		From("notifications").
		Where(sq.Eq{"owner_id": owner}).
		Where(sq.NotEq{"status": string(notification.StatusDeleted)})
	if q.Type != nil {
		b = b.Where(sq.Eq{"type": string(*q.Type)})
	}
	if q.Cursor != nil {
		var at time.Time
		err := eq.QueryRow(ctx, qNotifCursor, *q.Cursor, owner).Scan(&at)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notification.ErrInvalidCursor
		}
		if err != nil {
			return nil, fmt.Errorf("resolve cursor: %w", err)
		}
		b = b.Where(sq.Expr("(updated_at, id) < (?, ?)", at, *q.Cursor))
	}
	b = b.OrderBy("updated_at DESC", "id DESC").Limit(uint64(q.Limit + 1))

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := eq.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*notification.Notification, 0, q.Limit+1)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func updateArgs(n *notification.Notification) []any {
	return []any{
		n.ID, n.Message, string(n.Type), n.Date, n.Time, string(n.Repeat), string(n.Status),
		n.SnoozeCount, n.ScheduledAt.UTC(), n.LastSentAt, n.JobID,
	}
}

func scanNotification(row pgx.Row) (*notification.Notification, error) {
	var (
		n                   notification.Notification
		typ, repeat, status string
	)
	if err := row.Scan(
		&n.ID, &n.Owner, &n.Message, &typ, &n.Date, &n.Time, &repeat, &status,
		&n.SnoozeCount, &n.ScheduledAt, &n.LastSentAt, &n.JobID, &n.CreatedAt, &n.UpdatedAt,
	); err != nil {
		return nil, err
	}
	n.Type = notification.Type(typ)
	n.Repeat = notification.Repeat(repeat)
	n.Status = notification.Status(status)
	n.ScheduledAt = n.ScheduledAt.UTC()
	return &n, nil
}
