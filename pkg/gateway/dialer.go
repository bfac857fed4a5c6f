package gateway

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"

	"hearth/pkg/exception"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultReadLimit        = 1 << 20
)

// DialerOption configures the websocket dialer.
type DialerOption struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// ReadLimit bounds a single inbound message in bytes.
	ReadLimit int64
	Header    http.Header
}

type dialer struct {
	opt    DialerOption
	dialer *websocket.Dialer
}

// NewDialer returns a Dialer backed by gorilla/websocket.
func NewDialer(opt DialerOption) Dialer {
	if opt.HandshakeTimeout <= 0 {
		opt.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opt.WriteTimeout <= 0 {
		opt.WriteTimeout = DefaultWriteTimeout
	}
	if opt.ReadLimit <= 0 {
		opt.ReadLimit = DefaultReadLimit
	}
	return &dialer{
		opt: opt,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opt.HandshakeTimeout,
		},
	}
}

func (d *dialer) Open(endpoint string, handler TransportHandler) Transport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &wsTransport{
		id:      uuid.NewString(),
		opt:     d.opt,
		handler: handler,
		cancel:  cancel,
	}
	go t.run(ctx, d.dialer, endpoint)
	return t
}

type wsTransport struct {
	id      string
	opt     DialerOption
	handler TransportHandler
	cancel  context.CancelFunc

	mu          sync.Mutex
	conn        *websocket.Conn
	localCode   CloseCode
	localReason string

	writeMu   sync.Mutex
	ready     atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

func (t *wsTransport) Ready() bool {
	return t.ready.Load()
}

func (t *wsTransport) Send(payload []byte) error {
	if t.closed.Load() {
		return exception.ErrWebSocketConnectionClose
	}
	if !t.ready.Load() {
		return exception.ErrNotConnected
	}
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(t.opt.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.Wrap(err, "write message").With("transport", t.id)
	}
	return nil
}

func (t *wsTransport) Close(code CloseCode, reason string) error {
	t.mu.Lock()
	if !t.closed.CompareAndSwap(false, true) {
		t.mu.Unlock()
		return nil
	}
	t.ready.Store(false)
	t.localCode = code
	t.localReason = reason
	conn := t.conn
	t.mu.Unlock()
	t.cancel()
	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(t.opt.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(int(code), reason), deadline)
	return conn.Close()
}

func (t *wsTransport) run(ctx context.Context, d *websocket.Dialer, endpoint string) {
	conn, _, err := d.DialContext(ctx, endpoint, t.opt.Header)
	if err != nil {
		if t.closed.Load() {
			t.emitClosed(t.closeStatus(err))
			return
		}
		t.emit(TransportEvent{Kind: TransportError, Err: errors.Wrap(err, "dial gateway").With("transport", t.id)})
		t.emitClosed(CloseAbnormal, "dial failed")
		return
	}
	conn.SetReadLimit(t.opt.ReadLimit)

	t.mu.Lock()
	if t.closed.Load() {
		code, reason := t.localCode, t.localReason
		t.mu.Unlock()
		_ = conn.Close()
		t.emitClosed(code, reason)
		return
	}
	t.conn = conn
	t.mu.Unlock()

	t.ready.Store(true)
	t.emit(TransportEvent{Kind: TransportOpened})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.ready.Store(false)
			code, reason := t.closeStatus(err)
			if code == CloseAbnormal && !t.closed.Load() {
				t.emit(TransportEvent{Kind: TransportError, Err: errors.Wrap(err, "read message").With("transport", t.id)})
			}
			_ = conn.Close()
			t.emitClosed(code, reason)
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		t.emit(TransportEvent{Kind: TransportMessage, Payload: data})
	}
}

func (t *wsTransport) closeStatus(err error) (CloseCode, string) {
	if t.closed.Load() {
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.localCode, t.localReason
	}
	if ce, ok := err.(*websocket.CloseError); ok {
		return CloseCode(ce.Code), ce.Text
	}
	return CloseAbnormal, err.Error()
}

func (t *wsTransport) emit(ev TransportEvent) {
	if t.handler != nil {
		t.handler(ev)
	}
}

func (t *wsTransport) emitClosed(code CloseCode, reason string) {
	t.closeOnce.Do(func() {
		t.emit(TransportEvent{Kind: TransportClosed, Code: code, Reason: reason})
	})
}
