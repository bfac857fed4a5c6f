package gateway

import (
	"time"

	"github.com/yanun0323/errors"

	"hearth/pkg/exception"
)

const (
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultRESTPrefix           = "/api"
	DefaultGatewayPath          = "/gateway"
	DefaultTokenParam           = "token"
)

// Option defines the client runtime configuration.
type Option struct {
	// APIBase is the configured REST base, e.g. https://hearth.chat/api.
	APIBase string
	// Origin is used when APIBase is not an http(s) URL, e.g. https://app.hearth.chat.
	Origin      string
	RESTPrefix  string
	GatewayPath string
	TokenParam  string

	HeartbeatInterval    time.Duration
	Backoff              Backoff
	MaxReconnectAttempts int

	Dialer   Dialer
	Clock    Clock
	Handlers Handlers
	Observer Observer
}

func (opt *Option) normalize() error {
	if opt.Handlers.Store == nil {
		return errors.Wrap(exception.ErrInvalidOption, "nil message store")
	}
	if opt.HeartbeatInterval < 0 {
		return errors.Wrap(exception.ErrInvalidOption, "negative heartbeat interval").
			With("heartbeatInterval", opt.HeartbeatInterval)
	}
	if opt.MaxReconnectAttempts < 0 {
		return errors.Wrap(exception.ErrInvalidOption, "negative max reconnect attempts").
			With("maxReconnectAttempts", opt.MaxReconnectAttempts)
	}
	if opt.Backoff.Base < 0 || opt.Backoff.Max < 0 {
		return errors.Wrap(exception.ErrInvalidOption, "negative backoff").
			With("backoff", opt.Backoff)
	}

	if opt.RESTPrefix == "" {
		opt.RESTPrefix = DefaultRESTPrefix
	}
	if opt.GatewayPath == "" {
		opt.GatewayPath = DefaultGatewayPath
	}
	if opt.TokenParam == "" {
		opt.TokenParam = DefaultTokenParam
	}
	if opt.HeartbeatInterval == 0 {
		opt.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opt.MaxReconnectAttempts == 0 {
		opt.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if opt.Backoff.isZero() {
		opt.Backoff = DefaultBackoff()
	}
	if opt.Dialer == nil {
		opt.Dialer = NewDialer(DialerOption{})
	}
	if opt.Clock == nil {
		opt.Clock = SystemClock()
	}
	if opt.Observer == nil {
		opt.Observer = noopObserver{}
	}
	return nil
}
