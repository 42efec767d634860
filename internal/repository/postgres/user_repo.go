package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Vitalis/internal/domain/user"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const (
	qUserByID = `
SELECT id, timezone, fcm_token, status
FROM users
WHERE id = $1;`

	qUserClearToken = `
UPDATE users
SET fcm_token  = NULL,
    updated_at = now()
WHERE id = $1;`
)

func (r *UserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	err := r.db.execQueryer(ctx).QueryRow(ctx, qUserByID, id).Scan(&u.ID, &u.Timezone, &u.FCMToken, &u.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) ClearFCMToken(ctx context.Context, id string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qUserClearToken, id); err != nil {
		return fmt.Errorf("clear fcm token: %w", err)
	}
	return nil
}
