package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

// Event is one real-time notification.
type Event struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Subscribe streams events from the WebSocket endpoint to handle until ctx is
// cancelled, reconnecting with exponential backoff whenever the connection
// drops. Events published while disconnected are not replayed.
func (c *Client) Subscribe(ctx context.Context, handle func(Event)) error {
	wsURL, err := c.websocketURL()
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.reconnectInterval
	b.MaxInterval = 30 * time.Second

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusUnauthorized {
				return struct{}{}, backoff.Permanent(fmt.Errorf("subscribe: %w", &APIError{StatusCode: resp.StatusCode, Message: "unauthorized"}))
			}
			return struct{}{}, err
		}
		b.Reset()
		return struct{}{}, c.readEvents(ctx, conn, handle)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
	)

	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Client) readEvents(ctx context.Context, conn *websocket.Conn, handle func(Event)) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()
	defer conn.Close()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}

		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			continue
		}
		// the greeting frame carries no event id
		if event.ID == "" {
			continue
		}
		handle(event)
	}
}

func (c *Client) websocketURL() (string, error) {
	u, err := url.Parse(c.baseURL + "/api/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("unsupported base url scheme " + strings.ToLower(u.Scheme))
	}
	q := u.Query()
	q.Set("access_token", c.token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
