package gateway

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"hearth/pkg/exception"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock fires timers synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
	delays []time.Duration
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	c.delays = append(c.delays, d)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()
	for {
		c.mu.Lock()
		next := c.nextDue(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.fired = true
		c.mu.Unlock()
		next.f()
	}
}

func (c *fakeClock) nextDue(target time.Duration) *fakeTimer {
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= target {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	return due[0]
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *fakeClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

type fakeTransport struct {
	endpoint string
	handler  TransportHandler
	ready    bool
	sent     [][]byte
	closes   []CloseCode
}

func (t *fakeTransport) Send(payload []byte) error {
	if !t.ready {
		return exception.ErrNotConnected
	}
	t.sent = append(t.sent, append([]byte(nil), payload...))
	return nil
}

func (t *fakeTransport) Close(code CloseCode, reason string) error {
	t.ready = false
	t.closes = append(t.closes, code)
	return nil
}

func (t *fakeTransport) Ready() bool {
	return t.ready
}

func (t *fakeTransport) open() {
	t.ready = true
	t.handler(TransportEvent{Kind: TransportOpened})
}

func (t *fakeTransport) deliver(payload string) {
	t.handler(TransportEvent{Kind: TransportMessage, Payload: []byte(payload)})
}

func (t *fakeTransport) drop(code CloseCode) {
	t.ready = false
	t.handler(TransportEvent{Kind: TransportClosed, Code: code})
}

func (t *fakeTransport) sentEvents() []Event {
	events := make([]Event, 0, len(t.sent))
	for _, payload := range t.sent {
		ev, err := DecodeEvent(payload)
		if err != nil {
			panic(err)
		}
		events = append(events, ev)
	}
	return events
}

type fakeDialer struct {
	opened []*fakeTransport
}

func (d *fakeDialer) Open(endpoint string, handler TransportHandler) Transport {
	t := &fakeTransport{endpoint: endpoint, handler: handler}
	d.opened = append(d.opened, t)
	return t
}

func (d *fakeDialer) last() *fakeTransport {
	return d.opened[len(d.opened)-1]
}

type storeCall struct {
	op      string
	payload string
}

type fakeStore struct {
	calls []storeCall
	err   error
}

func (s *fakeStore) OnMessageCreate(payload json.RawMessage) error {
	s.calls = append(s.calls, storeCall{op: "create", payload: string(payload)})
	return s.err
}

func (s *fakeStore) OnMessageUpdate(payload json.RawMessage) error {
	s.calls = append(s.calls, storeCall{op: "update", payload: string(payload)})
	return s.err
}

func (s *fakeStore) OnMessageDelete(payload json.RawMessage) error {
	s.calls = append(s.calls, storeCall{op: "delete", payload: string(payload)})
	return s.err
}

type fakeNotifier struct {
	messages [][2]string
	calls    int
}

func (n *fakeNotifier) NotifyMessage(authorID, content string) {
	n.messages = append(n.messages, [2]string{authorID, content})
}

func (n *fakeNotifier) NotifyIncomingCall() {
	n.calls++
}

type countingObserver struct {
	mu         sync.Mutex
	states     []ConnectionState
	frames     map[EventKind]int
	dropped    map[string]int
	reconnects []time.Duration
	heartbeats int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		frames:  make(map[EventKind]int),
		dropped: make(map[string]int),
	}
}

func (o *countingObserver) ObserveState(state ConnectionState) {
	o.mu.Lock()
	o.states = append(o.states, state)
	o.mu.Unlock()
}

func (o *countingObserver) ObserveFrame(kind EventKind) {
	o.mu.Lock()
	o.frames[kind]++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveDropped(reason string) {
	o.mu.Lock()
	o.dropped[reason]++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveReconnect(attempt int, delay time.Duration) {
	o.mu.Lock()
	o.reconnects = append(o.reconnects, delay)
	o.mu.Unlock()
}

func (o *countingObserver) ObserveHeartbeat() {
	o.mu.Lock()
	o.heartbeats++
	o.mu.Unlock()
}
