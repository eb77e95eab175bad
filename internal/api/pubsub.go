package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/quesgenie/internal/domain"
)

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PublishSessionChanged tells the owner's clients and every client watching
// the session that the aggregate must be refetched.
func (a *API) PublishSessionChanged(ctx context.Context, e domain.EventSessionChanged) error {
	channels := []string{
		a.UserChannel(e.UserID),
		a.SessionChannel(e.SessionID),
	}

	var eg errgroup.Group
	for _, ch := range channels {
		eg.Go(func() error {
			return a.publishNotification(ctx, ch, e.Name(), e)
		})
	}

	return eg.Wait()
}

func (a *API) UserChannel(userID string) string {
	return fmt.Sprintf("%s:user:%s", a.prefix, userID)
}

func (a *API) SessionChannel(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", a.prefix, sessionID)
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}
