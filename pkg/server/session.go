package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0xmhha/treewatch/pkg/hub"
	"github.com/0xmhha/treewatch/pkg/logger"
	"github.com/0xmhha/treewatch/pkg/notify"
)

// session is one WebSocket subscriber. It implements hub.Conn.
type session struct {
	conn         *websocket.Conn
	hub          *hub.Hub
	writeTimeout time.Duration
	logger       logger.Logger

	closeOnce sync.Once
	closeErr  error
}

func newSession(conn *websocket.Conn, h *hub.Hub, cfg Config, log logger.Logger) *session {
	conn.SetReadLimit(cfg.MaxMessageSize)
	return &session{
		conn:         conn,
		hub:          h,
		writeTimeout: cfg.WriteTimeout,
		logger:       log.With("remote_addr", conn.RemoteAddr().String()),
	}
}

// Send implements hub.Conn.
func (s *session) Send(msg []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

// Close implements hub.Conn. It is safe to call more than once.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(s.writeTimeout)
		_ = s.conn.WriteControl(websocket.CloseMessage, // nolint:errcheck
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// run reads commands until the connection ends, then leaves the hub and
// closes the connection.
func (s *session) run() {
	s.hub.Join(s)
	s.logger.Debug("session started")

	defer func() {
		s.hub.Leave(s)
		if err := s.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Debug("failed to close session", "error", err)
		}
	}()

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if isCleanClose(err) {
				s.logger.Debug("session closed")
			} else {
				s.logger.Error("session read failed", "error", err)
			}
			return
		}

		if msgType != websocket.TextMessage {
			s.logger.Debug("ignoring non-text frame", "type", msgType)
			continue
		}
		s.handleCommand(data)
	}
}

func (s *session) handleCommand(data []byte) {
	cmd, err := notify.ParseCommand(data)
	if err != nil {
		s.logger.Warn("ignoring malformed command", "error", err)
		return
	}

	switch cmd.Kind {
	case notify.CommandSubscribe:
		if err := s.hub.Subscribe(s, cmd.Mask); err != nil {
			s.logger.Debug("subscribe after leaving", "error", err)
		}
	default:
		s.logger.Debug("ignoring command", "message", string(data))
	}
}

func isCleanClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) ||
		errors.Is(err, net.ErrClosed)
}
