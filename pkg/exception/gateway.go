package exception

import "errors"

// Gateway errors
var (
	// ErrNotConnected is returned when a frame is sent while the transport is not open.
	ErrNotConnected = errors.New("gateway: not connected")

	// ErrInvalidOption is returned by NewClient when the option cannot drive a client.
	ErrInvalidOption = errors.New("gateway: invalid option")

	// ErrNoEndpoint is returned when neither the API base nor the origin yields a gateway URL.
	ErrNoEndpoint = errors.New("gateway: no endpoint")

	ErrMalformedFrame = errors.New("gateway: malformed frame")
	ErrMissingType    = errors.New("gateway: frame without type")
)
