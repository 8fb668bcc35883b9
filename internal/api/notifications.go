package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/user/sawlah/internal/model"
)

// NotificationPage is one fetch of the notification feed.
type NotificationPage struct {
	Notifications []model.Notification `json:"notifications"`
	Unread        int                  `json:"unread"`
}

// Notifications fetches the newest notifications.
func (c *Client) Notifications(ctx context.Context, limit int, unreadOnly bool) (*NotificationPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if unreadOnly {
		q.Set("unread_only", "true")
	}
	path := "/api/notifications"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page NotificationPage
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// MarkRead marks one notification read.
func (c *Client) MarkRead(ctx context.Context, id model.ID) error {
	return c.post(ctx, "/api/notifications/"+escape(id.String())+"/read", nil, nil)
}

// MarkAllRead marks the whole feed read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.post(ctx, "/api/notifications/read-all", nil, nil)
}

// NotificationsURL is the push channel of new notifications.
func (c *Client) NotificationsURL() string {
	return c.WebSocketURL("/ws/notifications")
}

// TaskOutputURL is the push channel of a task's output.
func (c *Client) TaskOutputURL(taskID string) string {
	return c.WebSocketURL("/api/tools/ws/" + escape(taskID))
}
