package client

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/treewatch/pkg/logger"
	"github.com/0xmhha/treewatch/pkg/notify"
)

// echoServer answers every subscribe command with one event carrying the
// requested mask, then sends a binary frame and an undecodable text frame
// that the client must skip.
func echoServer(t *testing.T) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			cmd, err := notify.ParseCommand(data)
			if err != nil || cmd.Kind != notify.CommandSubscribe {
				continue
			}

			msg, _ := notify.Event{Path: ".", Name: "echo", Mask: cmd.Mask}.Encode()
			_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0})
			_ = conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
			_ = conn.WriteMessage(websocket.TextMessage, msg)
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSubscribeAndNext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, echoServer(t), logger.Noop())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Subscribe(notify.Create|notify.Delete))

	ev, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, notify.Event{Path: ".", Name: "echo", Mask: notify.Create | notify.Delete}, ev)
}

func TestNextHonoursContext(t *testing.T) {
	c, err := Dial(context.Background(), echoServer(t), logger.Noop())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = c.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), "ws://"+addr+"/", logger.Noop())
	assert.ErrorIs(t, err, ErrDial)
}

func TestCloseIdempotent(t *testing.T) {
	c, err := Dial(context.Background(), echoServer(t), logger.Noop())
	require.NoError(t, err)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
