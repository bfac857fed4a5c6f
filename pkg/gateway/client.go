package gateway

import (
	"net/url"
	"sync"

	"github.com/yanun0323/logs"

	"hearth/pkg/exception"
)

type eventKind uint8

const (
	eventOpened eventKind = iota + 1
	eventMessage
	eventError
	eventClosed
	eventHeartbeat
	eventReconnect
)

// event is the single input type of the state machine. gen is the transport generation for
// transport events and the timer id for timer events.
type event struct {
	kind    eventKind
	gen     uint64
	payload []byte
	code    CloseCode
	reason  string
	err     error
}

func transportEvent(gen uint64, te TransportEvent) event {
	ev := event{
		gen:     gen,
		payload: te.Payload,
		code:    te.Code,
		reason:  te.Reason,
		err:     te.Err,
	}
	switch te.Kind {
	case TransportOpened:
		ev.kind = eventOpened
	case TransportMessage:
		ev.kind = eventMessage
	case TransportError:
		ev.kind = eventError
	case TransportClosed:
		ev.kind = eventClosed
	}
	return ev
}

// Client owns one gateway connection: it reconnects with backoff, keeps the session alive
// with heartbeats and routes inbound events through a Dispatcher.
//
// Connect and Disconnect return immediately; outcomes are observed through Signal.
type Client struct {
	opt        Option
	endpoint   *url.URL
	dispatcher *Dispatcher
	signal     *Signal

	mu          sync.Mutex
	token       string
	transport   Transport
	generation  uint64
	sequence    int64
	hasSequence bool
	attempts    int
	timerID     uint64
	heartbeat   Timer
	heartbeatID uint64
	reconnect   Timer
	reconnectID uint64
}

// NewClient validates opt and builds a disconnected client.
func NewClient(opt Option) (*Client, error) {
	if err := opt.normalize(); err != nil {
		return nil, err
	}
	endpoint, err := ResolveEndpoint(opt.APIBase, opt.Origin, opt.RESTPrefix, opt.GatewayPath)
	if err != nil {
		return nil, err
	}
	return &Client{
		opt:        opt,
		endpoint:   endpoint,
		dispatcher: NewDispatcher(opt.Handlers, opt.Observer),
		signal:     newSignal(),
	}, nil
}

// Endpoint returns the resolved gateway URL without credentials.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// Signal exposes the connection state to observers.
func (c *Client) Signal() *Signal {
	return c.signal
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return c.signal.Get()
}

// Sequence returns the last sequence number seen on the current transport.
func (c *Client) Sequence() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sequence, c.hasSequence
}

// Connect opens a transport authenticated with token.
// It is a no-op while connecting or connected. A pending reconnect is replaced by an
// immediate attempt with a fresh retry budget.
func (c *Client) Connect(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.signal.Get() {
	case StateConnecting, StateConnected:
		logs.Debugf("gateway: connect ignored, already %s", c.signal.Get())
		return
	case StateReconnecting:
		c.cancelReconnect()
	}
	c.token = token
	c.attempts = 0
	c.open()
}

// Disconnect closes the transport with the normal closure code and stops all timers.
// It can be called in any state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelReconnect()
	c.stopHeartbeat()
	c.release(CloseNormal, "client disconnect")
	c.setState(StateDisconnected)
}

// Send writes ev when the transport is open. Otherwise the frame is dropped and
// exception.ErrNotConnected is returned.
func (c *Client) Send(ev Event) error {
	payload, err := ev.Encode()
	if err != nil {
		return err
	}
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()
	if transport == nil || !transport.Ready() {
		return exception.ErrNotConnected
	}
	return transport.Send(payload)
}

// handle is the single entry point for transport callbacks and timers.
func (c *Client) handle(ev event) {
	if ev.kind == eventMessage {
		c.onMessage(ev)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev.kind {
	case eventOpened:
		c.onOpened(ev)
	case eventError:
		c.onError(ev)
	case eventClosed:
		c.onClosed(ev)
	case eventHeartbeat:
		c.onHeartbeat(ev)
	case eventReconnect:
		c.onReconnect(ev)
	}
}

func (c *Client) open() {
	c.setState(StateConnecting)
	c.sequence = 0
	c.hasSequence = false
	c.generation++
	gen := c.generation
	c.transport = c.opt.Dialer.Open(withToken(c.endpoint, c.opt.TokenParam, c.token), func(te TransportEvent) {
		c.handle(transportEvent(gen, te))
	})
}

func (c *Client) current(gen uint64) bool {
	return c.transport != nil && gen == c.generation
}

func (c *Client) onOpened(ev event) {
	if !c.current(ev.gen) {
		return
	}
	c.attempts = 0
	c.setState(StateConnected)
	c.startHeartbeat()
}

// onMessage decodes outside the lock and dispatches after releasing it, so handlers may call Send.
func (c *Client) onMessage(ev event) {
	frame, err := DecodeEvent(ev.payload)

	c.mu.Lock()
	if !c.current(ev.gen) {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.mu.Unlock()
		logs.Warnf("gateway: drop frame, err: %+v", err)
		c.opt.Observer.ObserveDropped(DropMalformed)
		return
	}
	if s := frame.Sequence; s != nil && (!c.hasSequence || *s > c.sequence) {
		c.sequence = *s
		c.hasSequence = true
	}
	c.mu.Unlock()

	c.dispatcher.Dispatch(frame)
}

func (c *Client) onError(ev event) {
	if !c.current(ev.gen) {
		return
	}
	logs.Warnf("gateway: transport error, err: %+v", ev.err)
}

func (c *Client) onClosed(ev event) {
	if !c.current(ev.gen) {
		return
	}
	c.stopHeartbeat()
	c.transport = nil
	if ev.code == CloseNormal {
		logs.Infof("gateway: closed normally (%s)", ev.reason)
		c.setState(StateDisconnected)
		return
	}
	logs.Warnf("gateway: closed abnormally, code: %d, reason: %s", ev.code, ev.reason)
	c.scheduleReconnect()
}

func (c *Client) scheduleReconnect() {
	if c.attempts >= c.opt.MaxReconnectAttempts {
		logs.Errorf("gateway: giving up after %d reconnect attempts", c.attempts)
		c.setState(StateDisconnected)
		return
	}
	c.setState(StateReconnecting)
	c.attempts++
	delay := c.opt.Backoff.Next(c.attempts)
	c.opt.Observer.ObserveReconnect(c.attempts, delay)
	logs.Infof("gateway: reconnect attempt %d in %s", c.attempts, delay)

	id := c.nextTimerID()
	c.reconnectID = id
	c.reconnect = c.opt.Clock.AfterFunc(delay, func() {
		c.handle(event{kind: eventReconnect, gen: id})
	})
}

func (c *Client) onReconnect(ev event) {
	if ev.gen != c.reconnectID || c.signal.Get() != StateReconnecting {
		return
	}
	c.reconnect = nil
	c.reconnectID = 0
	c.open()
}

func (c *Client) cancelReconnect() {
	if c.reconnect != nil {
		c.reconnect.Stop()
	}
	c.reconnect = nil
	c.reconnectID = 0
}

func (c *Client) startHeartbeat() {
	c.stopHeartbeat()
	id := c.nextTimerID()
	c.heartbeatID = id
	c.heartbeat = c.opt.Clock.AfterFunc(c.opt.HeartbeatInterval, func() {
		c.handle(event{kind: eventHeartbeat, gen: id})
	})
}

func (c *Client) stopHeartbeat() {
	if c.heartbeat != nil {
		c.heartbeat.Stop()
	}
	c.heartbeat = nil
	c.heartbeatID = 0
}

func (c *Client) onHeartbeat(ev event) {
	if ev.gen != c.heartbeatID || c.transport == nil || c.signal.Get() != StateConnected {
		return
	}
	payload, err := heartbeatEvent(c.sequence, c.hasSequence).Encode()
	if err == nil {
		err = c.transport.Send(payload)
	}
	if err != nil {
		logs.Warnf("gateway: send heartbeat, err: %+v", err)
	} else {
		c.opt.Observer.ObserveHeartbeat()
	}
	c.startHeartbeat()
}

// release closes and forgets the transport; later callbacks from it are ignored.
func (c *Client) release(code CloseCode, reason string) {
	if c.transport == nil {
		return
	}
	transport := c.transport
	c.transport = nil
	c.generation++
	if err := transport.Close(code, reason); err != nil {
		logs.Warnf("gateway: close transport, err: %+v", err)
	}
}

func (c *Client) setState(state ConnectionState) {
	prev, changed := c.signal.set(state)
	if !changed {
		return
	}
	logs.Infof("gateway: %s -> %s", prev, state)
	c.opt.Observer.ObserveState(state)
}

func (c *Client) nextTimerID() uint64 {
	c.timerID++
	return c.timerID
}
