package gateway

import "time"

// ConnectionState is the lifecycle state of the gateway connection.
type ConnectionState uint8

const (
	// StateDisconnected means no transport is alive and no reconnect is pending.
	StateDisconnected ConnectionState = iota
	// StateConnecting means a transport has been opened and is waiting for the handshake.
	StateConnecting
	// StateConnected means the transport is open and heartbeats are running.
	StateConnected
	// StateReconnecting means a reconnect is scheduled after an abnormal closure.
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// CloseCode is a WebSocket close code.
type CloseCode uint16

const (
	// CloseNormal indicates an intentional closure; it suppresses reconnection.
	CloseNormal CloseCode = 1000
	// CloseAbnormal is reported when the connection dropped without a close frame.
	CloseAbnormal CloseCode = 1006
)

// TransportEventKind tags a TransportEvent.
type TransportEventKind uint8

const (
	TransportOpened TransportEventKind = iota + 1
	TransportMessage
	TransportError
	TransportClosed
)

func (k TransportEventKind) String() string {
	switch k {
	case TransportOpened:
		return "opened"
	case TransportMessage:
		return "message"
	case TransportError:
		return "error"
	case TransportClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TransportEvent is one callback from a transport.
type TransportEvent struct {
	Kind TransportEventKind
	// Payload is set for TransportMessage.
	Payload []byte
	// Code and Reason are set for TransportClosed.
	Code   CloseCode
	Reason string
	// Err is set for TransportError.
	Err error
}

// Backoff defines reconnect backoff behavior.
type Backoff struct {
	// Base is the delay before the first retry.
	Base time.Duration
	// Max caps the delay. Zero leaves it uncapped.
	Max time.Duration
	// Factor multiplies the delay for each retry attempt.
	Factor float64
	// Jitter adds randomization as a fraction of the delay (0-1).
	Jitter float64
}

// Dropped frame reasons reported to the Observer.
const (
	DropMalformed = "malformed"
	DropUnknown   = "unknown"
)
