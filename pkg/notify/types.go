// Package notify holds the vocabulary shared by the event source, the watch
// tree, the broadcast hub and the transport: category masks, raw and
// subtree-relative events, the published wire format, subscriber commands,
// and the producer/consumer abstractions that connect them.
package notify

import "context"

// Handle identifies one directory watch registered with an event source.
type Handle int

// NoHandle marks events that are not bound to any watch, such as a queue
// overflow.
const NoHandle Handle = -1

// RawEvent is one record delivered by an event source, in delivery order.
type RawEvent struct {
	// Handle is the watch the event was reported on.
	Handle Handle

	// Mask holds the event categories.
	Mask Mask

	// Cookie pairs the MovedFrom and MovedTo halves of a rename.
	// Zero for every other event.
	Cookie uint32

	// Name is the affected entry inside the watched directory.
	// Empty when the event concerns the directory itself.
	Name string
}

// Event is a change reported relative to the root of a watched tree.
type Event struct {
	// Path is the directory relative to the root ("." for the root itself,
	// empty for overflow).
	Path string `json:"path"`

	// Name is the affected entry within Path, empty for the directory itself.
	Name string `json:"name"`

	// Mask holds the event categories.
	Mask Mask `json:"mask"`

	// Cookie pairs the two halves of a rename.
	Cookie uint32 `json:"cookie"`
}

// Sink receives produced events. A provider calls it from a single
// goroutine.
type Sink func(Event)

// Provider produces events for a sink until ctx is done or the provider is
// exhausted.
type Provider interface {
	Run(ctx context.Context, sink Sink) error
}

// Sender accepts encoded messages together with their routing mask.
type Sender interface {
	Send(msg []byte, mask Mask)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(msg []byte, mask Mask)

// Send implements Sender.
func (f SenderFunc) Send(msg []byte, mask Mask) {
	f(msg, mask)
}
