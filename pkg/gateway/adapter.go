package gateway

import (
	"encoding/json"
	"time"
)

// Transport is one duplex connection to the gateway.
type Transport interface {
	// Send writes a text frame. It returns exception.ErrNotConnected when the transport is not open.
	Send(payload []byte) error
	Close(code CloseCode, reason string) error
	Ready() bool
}

// TransportHandler receives the callbacks of a single transport, in order, from one goroutine.
type TransportHandler func(TransportEvent)

// Dialer opens transports.
// Open returns immediately and must not invoke handler before it returns.
type Dialer interface {
	Open(endpoint string, handler TransportHandler) Transport
}

// Clock schedules the heartbeat and reconnect timers.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancelable scheduled callback.
type Timer interface {
	Stop() bool
}

// MessageStore receives message mutations from the gateway.
type MessageStore interface {
	OnMessageCreate(payload json.RawMessage) error
	OnMessageUpdate(payload json.RawMessage) error
	OnMessageDelete(payload json.RawMessage) error
}

// Notifier surfaces user-facing notifications.
type Notifier interface {
	NotifyMessage(authorID, content string)
	NotifyIncomingCall()
}

// Observer receives metrics from the client. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveState(state ConnectionState)
	ObserveFrame(kind EventKind)
	ObserveDropped(reason string)
	ObserveReconnect(attempt int, delay time.Duration)
	ObserveHeartbeat()
}

type noopObserver struct{}

func (noopObserver) ObserveState(ConnectionState) {}
func (noopObserver) ObserveFrame(EventKind) {}
func (noopObserver) ObserveDropped(string) {}
func (noopObserver) ObserveReconnect(int, time.Duration) {}
func (noopObserver) ObserveHeartbeat() {}

type systemClock struct{}

// SystemClock schedules callbacks with time.AfterFunc.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
