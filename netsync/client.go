package netsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/duskfall/game"
)

// Sink receives decoded sync events. game.Simulation implements it; its
// QueueSync is safe to call from the client's read goroutine.
type Sink interface {
	QueueSync(e game.SyncEvent)
}

// Client is one peer connection to a Hub.
type Client struct {
	conn         *websocket.Conn
	sink         Sink
	writeTimeout time.Duration
	mu           sync.Mutex
}

// Dial connects to the hub at rawURL as peer id.
func Dial(ctx context.Context, rawURL, id string, sink Sink, writeTimeout time.Duration) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("id", id)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	return &Client{conn: conn, sink: sink, writeTimeout: writeTimeout}, nil
}

// Run reads frames and feeds their events to the sink until the
// connection drops or ctx is done.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read relay: %w", err)
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			slog.Debug("discarding malformed frame", "error", err)
			continue
		}
		for _, e := range env.Events {
			c.sink.QueueSync(e)
		}
	}
}

// Send publishes events to every other peer.
func (c *Client) Send(events []game.SyncEvent) error {
	if len(events) == 0 {
		return nil
	}
	data, err := json.Marshal(Envelope{Events: events})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write relay: %w", err)
	}
	return nil
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}
