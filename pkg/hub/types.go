// Package hub fans published events out to connected subscribers.
//
// Every subscriber carries a category mask, zero when it joins, and a
// private ordered outbox. Publishing appends the message to the outbox of
// every subscriber whose mask intersects the event's mask. Each outbox has
// at most one send in flight; a slow subscriber delays only itself.
//
// Example usage:
//
//	h := hub.New(logger.Default())
//	h.Join(conn)
//	_ = h.Subscribe(conn, notify.Create|notify.Delete)
//	h.Send(msg, notify.Create)
package hub

// Conn is the transport side of one subscriber.
type Conn interface {
	// Send delivers one message. The hub never calls Send concurrently
	// for the same Conn.
	Send(msg []byte) error

	// Close releases the connection.
	Close() error
}
