package hub

import "sync"

// outbox is a subscriber's FIFO of undelivered messages.
type outbox struct {
	mu     sync.Mutex
	queue  [][]byte
	closed bool
}

// push appends msg and reports whether the caller must start a drain,
// which is the case when the outbox was empty.
func (o *outbox) push(msg []byte) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	o.queue = append(o.queue, msg)
	return len(o.queue) == 1
}

// head returns the oldest message without removing it.
func (o *outbox) head() ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || len(o.queue) == 0 {
		return nil, false
	}
	return o.queue[0], true
}

// pop removes the delivered head and reports whether more messages wait.
func (o *outbox) pop() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || len(o.queue) == 0 {
		return false
	}
	o.queue[0] = nil
	o.queue = o.queue[1:]
	return len(o.queue) > 0
}

// close drops queued messages. A send already in flight completes.
func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	o.queue = nil
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}
