package notify

import "errors"

var (
	// ErrUnknownCategory is returned by ParseMask for an unrecognized name.
	ErrUnknownCategory = errors.New("unknown event category")

	// ErrMalformedCommand is returned when a subscriber message is not a
	// JSON object or carries fields of the wrong type.
	ErrMalformedCommand = errors.New("malformed command")
)
