package notify

import (
	"encoding/json"
	"fmt"
)

// Encode renders the event in its published wire format: a JSON object
// followed by a newline.
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses one published message. Trailing whitespace is allowed.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return e, nil
}

// String returns a compact human-readable form for logs.
func (e Event) String() string {
	return fmt.Sprintf("{path: %q, name: %q, mask: %s, cookie: %d}",
		e.Path, e.Name, e.Mask, e.Cookie)
}

// String returns a compact human-readable form for logs.
func (e RawEvent) String() string {
	return fmt.Sprintf("{wd: %d, mask: %s, cookie: %d, name: %q}",
		e.Handle, e.Mask, e.Cookie, e.Name)
}
