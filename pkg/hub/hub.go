package hub

import (
	"sync"
	"sync/atomic"

	"github.com/0xmhha/treewatch/pkg/logger"
	"github.com/0xmhha/treewatch/pkg/notify"
)

type subscriber struct {
	conn Conn
	mask notify.Mask
	out  *outbox
}

// Hub routes messages to subscribers by mask.
//
// Hub implements notify.Sender. All methods are safe for concurrent use.
type Hub struct {
	mu          sync.Mutex
	subscribers map[Conn]*subscriber
	closed      bool

	drains sync.WaitGroup
	logger logger.Logger

	delivered atomic.Uint64
	failed    atomic.Uint64
}

// New creates an empty hub.
func New(log logger.Logger) *Hub {
	return &Hub{
		subscribers: make(map[Conn]*subscriber),
		logger:      log.Named("hub"),
	}
}

// Join registers c with an empty mask; it receives nothing until it
// subscribes. Joining a closed hub closes c.
func (h *Hub) Join(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		if err := c.Close(); err != nil {
			h.logger.Debug("failed to close connection", "error", err)
		}
		return
	}
	if _, ok := h.subscribers[c]; ok {
		return
	}

	h.subscribers[c] = &subscriber{conn: c, out: &outbox{}}
	h.logger.Debug("subscriber joined", "subscribers", len(h.subscribers))
}

// Leave deregisters c. Messages still queued for it are dropped; a send
// already in flight completes. Leave does not close c.
func (h *Hub) Leave(c Conn) {
	h.mu.Lock()
	s, ok := h.subscribers[c]
	delete(h.subscribers, c)
	remaining := len(h.subscribers)
	h.mu.Unlock()

	if !ok {
		return
	}

	if queued := s.out.len(); queued > 0 {
		h.logger.Debug("dropping undelivered messages", "count", queued)
	}
	s.out.close()
	h.logger.Debug("subscriber left", "subscribers", remaining)
}

// Subscribe replaces the mask of c.
func (h *Hub) Subscribe(c Conn, mask notify.Mask) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.subscribers[c]
	if !ok {
		return ErrUnknownSubscriber
	}
	s.mask = mask

	h.logger.Info("subscribing for mask", "mask", mask)
	return nil
}

// Send enqueues msg for every subscriber whose mask intersects mask. It
// never waits for delivery.
func (h *Hub) Send(msg []byte, mask notify.Mask) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	for _, s := range h.subscribers {
		if !s.mask.Intersects(mask) {
			h.logger.Trace("message filtered out", "subscriber_mask", s.mask, "mask", mask)
			continue
		}
		if s.out.push(msg) {
			h.drains.Add(1)
			go h.drain(s)
		}
	}
}

// Count returns the number of subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Delivered returns the number of messages handed to connections without
// error.
func (h *Hub) Delivered() uint64 {
	return h.delivered.Load()
}

// Failed returns the number of failed deliveries.
func (h *Hub) Failed() uint64 {
	return h.failed.Load()
}

// Close removes and closes every subscriber, then waits for in-flight
// sends to finish. Later Join calls close their connection immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subscribers
	h.subscribers = make(map[Conn]*subscriber)
	h.mu.Unlock()

	h.logger.Info("closing subscribers", "count", len(subs))
	for c, s := range subs {
		s.out.close()
		if err := c.Close(); err != nil {
			h.logger.Debug("failed to close connection", "error", err)
		}
	}

	h.drains.Wait()
}

// drain delivers the outbox head by head until it is empty. push starts
// exactly one drain per transition from empty to non-empty.
func (h *Hub) drain(s *subscriber) {
	defer h.drains.Done()

	for {
		msg, ok := s.out.head()
		if !ok {
			return
		}

		if err := s.conn.Send(msg); err != nil {
			h.failed.Add(1)
			h.logger.Error("failed to deliver message, dropping subscriber", "error", err)
			h.Leave(s.conn)
			if closeErr := s.conn.Close(); closeErr != nil {
				h.logger.Debug("failed to close connection", "error", closeErr)
			}
			return
		}
		h.delivered.Add(1)

		if !s.out.pop() {
			return
		}
	}
}
