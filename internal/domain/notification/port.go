package notification

import (
	"context"

	"github.com/google/uuid"
)

type Repo interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	Update(ctx context.Context, n *Notification) error
	// CompareAndSwap writes n only if the stored row still matches g.
	CompareAndSwap(ctx context.Context, n *Notification, g Guard) (bool, error)
	// ListByOwner returns up to q.Limit+1 rows so callers can detect a next page.
	ListByOwner(ctx context.Context, owner string, q ListQuery) ([]*Notification, error)
}
