package hub

import "errors"

// ErrUnknownSubscriber is returned by Subscribe for a connection that has
// not joined or has already left.
var ErrUnknownSubscriber = errors.New("unknown subscriber")
