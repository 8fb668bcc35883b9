package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/util"
)

// DefaultRetry is the pause before reconnecting a dropped feed channel.
const DefaultRetry = 5 * time.Second

// Endpoint resolves the notification push channel.
type Endpoint interface {
	NotificationsURL() string
	AuthHeader() http.Header
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Follower keeps the notification push channel open for the lifetime of
// a session.
type Follower struct {
	endpoint Endpoint
	dialer   *websocket.Dialer
	retry    time.Duration

	// OnError, if set, receives every transport failure before a retry.
	OnError func(error)
}

// NewFollower creates a follower. A zero retry uses DefaultRetry.
func NewFollower(endpoint Endpoint, retry time.Duration) *Follower {
	if retry <= 0 {
		retry = DefaultRetry
	}
	return &Follower{
		endpoint: endpoint,
		dialer:   websocket.DefaultDialer,
		retry:    retry,
	}
}

// Run delivers each pushed notification to handle until ctx is done,
// reconnecting after failures.
func (f *Follower) Run(ctx context.Context, handle func(model.Notification)) error {
	for {
		err := f.once(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			util.Warn("notifications: %v", err)
			if f.OnError != nil {
				f.OnError(err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.retry):
		}
	}
}

func (f *Follower) once(ctx context.Context, handle func(model.Notification)) error {
	conn, resp, err := f.dialer.DialContext(ctx, f.endpoint.NotificationsURL(), f.endpoint.AuthHeader())
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial: %w: %w", api.ErrTransport, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	util.Debug("notifications: connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w: %w", api.ErrTransport, err)
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			util.Debug("notifications: skipping malformed message: %v", err)
			continue
		}
		if env.Type != "notification" {
			continue
		}
		var n model.Notification
		if err := json.Unmarshal(env.Data, &n); err != nil {
			util.Debug("notifications: skipping malformed notification: %v", err)
			continue
		}
		handle(n)
	}
}
