package push

import (
	"context"
	"errors"
)

var (
	// ErrInvalidToken means the device token is permanently unusable.
	ErrInvalidToken = errors.New("push token invalid or unregistered")
	ErrDelivery     = errors.New("push delivery failed")
)

type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

type Gateway interface {
	Send(ctx context.Context, token string, m Message) error
}
