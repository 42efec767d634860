// Package fcm sends push messages through the Firebase Cloud Messaging v1 API.
package fcm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	fcmapi "google.golang.org/api/fcm/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/NordCoder/Vitalis/internal/domain/push"
)

type Config struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	// Endpoint overrides the API base URL; used against emulators.
	Endpoint string `mapstructure:"endpoint"`
}

type Gateway struct {
	svc    *fcmapi.Service
	parent string
}

var _ push.Gateway = (*Gateway)(nil)

func New(ctx context.Context, cfg Config, extra ...option.ClientOption) (*Gateway, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("fcm: project id is required")
	}
	opts := make([]option.ClientOption, 0, len(extra)+2)
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, extra...)

	svc, err := fcmapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("fcm service: %w", err)
	}
	return &Gateway{svc: svc, parent: "projects/" + cfg.ProjectID}, nil
}

func (g *Gateway) Send(ctx context.Context, token string, m push.Message) error {
	req := &fcmapi.SendMessageRequest{
		Message: &fcmapi.Message{
			Token: token,
			Notification: &fcmapi.Notification{
				Title: m.Title,
				Body:  m.Body,
			},
			Data: m.Data,
		},
	}
	_, err := g.svc.Projects.Messages.Send(g.parent, req).Context(ctx).Do()
	return classify(err)
}

// classify maps API errors onto the push error set. Unregistered or
// malformed tokens are permanent; everything else is worth retrying.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: %s", push.ErrInvalidToken, apiErr.Message)
		case apiErr.Code == http.StatusBadRequest && mentionsToken(apiErr):
			return fmt.Errorf("%w: %s", push.ErrInvalidToken, apiErr.Message)
		}
		return fmt.Errorf("%w: fcm %d: %s", push.ErrDelivery, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("%w: %v", push.ErrDelivery, err)
}

func mentionsToken(e *googleapi.Error) bool {
	if strings.Contains(strings.ToLower(e.Message), "registration token") {
		return true
	}
	for _, item := range e.Errors {
		if strings.EqualFold(item.Reason, "UNREGISTERED") {
			return true
		}
	}
	return false
}
