package exception

import "errors"

// Store errors
var (
	ErrUnknownMessage = errors.New("store: unknown message")
	ErrInvalidMessage = errors.New("store: invalid message payload")
	ErrNilDatabase    = errors.New("store: nil database")
)
