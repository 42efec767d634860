package user

import "context"

type Repo interface {
	GetByID(ctx context.Context, id string) (*User, error)
	ClearFCMToken(ctx context.Context, id string) error
}
