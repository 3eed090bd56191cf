package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"ms-checkin/internal/events"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
)

const DefaultPollInterval = 5 * time.Second

type Client struct {
	BaseURL      string
	Token        string
	HTTP         *http.Client
	Dialer       *websocket.Dialer
	PollInterval time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
	Logger       *logger.Logger
}

func NewClient(baseURL string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HTTP:         &http.Client{Timeout: 10 * time.Second},
		Dialer:       websocket.DefaultDialer,
		PollInterval: DefaultPollInterval,
		MinBackoff:   500 * time.Millisecond,
		MaxBackoff:   30 * time.Second,
		Logger:       log,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.ErrNotFound
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, env.Error)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) ListUnread(ctx context.Context, eventID int64) ([]models.Notification, error) {
	var list []models.Notification
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/realtime/notifications/%d", eventID), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) MarkRead(ctx context.Context, notificationID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/realtime/notifications/%d/mark-read", notificationID), nil)
}

// Acknowledge marks the notification read and hides it from feed. An id the
// server no longer knows is hidden as well.
func (c *Client) Acknowledge(ctx context.Context, feed *Feed, notificationID int64) error {
	if err := c.MarkRead(ctx, notificationID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	feed.Acknowledge(notificationID)
	return nil
}

func (c *Client) streamURL(eventID int64) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + fmt.Sprintf("/realtime/ws/%d", eventID)
	if c.Token != "" {
		u.RawQuery = url.Values{"access_token": {c.Token}}.Encode()
	}
	return u.String(), nil
}

// streamOnce reads one websocket session until it fails or ctx ends. It
// reports whether the connected frame was received.
func (c *Client) streamOnce(ctx context.Context, eventID int64, handle func(events.Message)) (bool, error) {
	target, err := c.streamURL(eventID)
	if err != nil {
		return false, err
	}
	conn, _, err := c.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	connected := false
	for {
		var msg events.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return connected, ctx.Err()
			}
			return connected, err
		}
		if msg.Type == events.TypeConnected {
			connected = true
			c.Logger.Info("VIEWER", fmt.Sprintf("[event %d] connected as session %s", eventID, msg.SessionID))
		}
		handle(msg)
	}
}

// Stream keeps a websocket session open, reconnecting with exponential
// backoff, and hands every frame to handle. It returns when ctx ends.
func (c *Client) Stream(ctx context.Context, eventID int64, handle func(events.Message)) error {
	backoff := c.MinBackoff
	for {
		connected, err := c.streamOnce(ctx, eventID, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = c.MinBackoff
		}
		c.Logger.Warn("VIEWER", fmt.Sprintf("[event %d] stream lost: %v; retrying in %s", eventID, err, backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > c.MaxBackoff {
			backoff = c.MaxBackoff
		}
	}
}

// Run feeds pushed frames and periodic list_unread results into feed until
// ctx ends. onChange, if set, is called after every change to feed.
func (c *Client) Run(ctx context.Context, eventID int64, feed *Feed, onChange func()) error {
	notify := func() {
		if onChange != nil {
			onChange()
		}
	}

	poll := func() {
		list, err := c.ListUnread(ctx, eventID)
		if err != nil {
			if ctx.Err() == nil {
				c.Logger.Warn("VIEWER", fmt.Sprintf("[event %d] poll failed: %v", eventID, err))
			}
			return
		}
		if feed.Reconcile(list) > 0 {
			notify()
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- c.Stream(ctx, eventID, func(msg events.Message) {
			feed.Push(msg)
			notify()
		})
	}()

	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	poll()
	for {
		select {
		case <-ticker.C:
			poll()
		case err := <-done:
			return err
		}
	}
}
