// Package client subscribes to a treewatch server.
//
// Example usage:
//
//	c, err := client.Dial(ctx, "ws://localhost:8080/", logger.Default())
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	if err := c.Subscribe(notify.Create | notify.Delete); err != nil {
//	    return err
//	}
//	for {
//	    ev, err := c.Next(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(ev)
//	}
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0xmhha/treewatch/pkg/logger"
	"github.com/0xmhha/treewatch/pkg/notify"
)

const writeTimeout = 10 * time.Second

var (
	// ErrDial is returned when the server cannot be reached.
	ErrDial = errors.New("failed to connect")

	// ErrClosed is returned by Next once the server closed the session.
	ErrClosed = errors.New("connection closed")
)

// Client is one subscriber session. Next must not be called concurrently.
type Client struct {
	conn   *websocket.Conn
	logger logger.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Dial opens a session at url (ws:// or wss://).
func Dial(ctx context.Context, url string, log logger.Logger) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close() // nolint:errcheck
	}
	if err != nil {
		return nil, fmt.Errorf("%w to %s: %w", ErrDial, url, err)
	}

	log = log.Named("client").With("url", url)
	log.Debug("connected")

	return &Client{conn: conn, logger: log}, nil
}

// Subscribe replaces the session's mask.
func (c *Client) Subscribe(mask notify.Mask) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, notify.SubscribeMessage(mask)); err != nil {
		return fmt.Errorf("failed to send subscribe command: %w", err)
	}

	c.logger.Debug("subscribed", "mask", mask)
	return nil
}

// Next blocks until the next event arrives, ctx is done or the session
// ends. After ctx is done the client is no longer usable.
func (c *Client) Next(ctx context.Context) (notify.Event, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now()) // nolint:errcheck
	})
	defer stop()

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return notify.Event{}, ctxErr
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return notify.Event{}, ErrClosed
			}
			return notify.Event{}, fmt.Errorf("failed to read event: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ev, err := notify.Decode(data)
		if err != nil {
			c.logger.Warn("skipping undecodable message", "error", err)
			continue
		}
		return ev, nil
	}
}

// Close ends the session. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, // nolint:errcheck
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
