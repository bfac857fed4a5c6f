package gateway

import (
	"encoding/json"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"
)

// Handlers are the collaborators events are routed to.
type Handlers struct {
	Store MessageStore
	// Notifier is optional.
	Notifier Notifier
	// OnTyping and OnPresence are optional; without them the events are only logged.
	OnTyping   func(payload json.RawMessage)
	OnPresence func(payload json.RawMessage)
}

type route func(ev Event)

// Dispatcher routes decoded events to their handlers by kind.
type Dispatcher struct {
	handlers Handlers
	routes   map[EventKind]route
	observer Observer
}

// NewDispatcher builds the routing table. A nil observer is allowed.
func NewDispatcher(handlers Handlers, observer Observer) *Dispatcher {
	if observer == nil {
		observer = noopObserver{}
	}
	d := &Dispatcher{
		handlers: handlers,
		observer: observer,
	}
	d.routes = map[EventKind]route{
		KindReady:            d.onReady,
		KindMessageCreate:    d.onMessageCreate,
		KindMessageUpdate:    d.onMessageUpdate,
		KindMessageDelete:    d.onMessageDelete,
		KindTypingStart:      d.onTyping,
		KindPresenceUpdate:   d.onPresence,
		KindVoiceStateUpdate: d.onCall,
		KindCallCreate:       d.onCall,
		KindCallRing:         d.onCall,
		KindReserved:         func(Event) {},
	}
	return d
}

// Dispatch routes ev and returns its kind. Unknown kinds are logged and dropped.
func (d *Dispatcher) Dispatch(ev Event) EventKind {
	kind := ev.Kind()
	fn, ok := d.routes[kind]
	if !ok {
		logs.Warnf("gateway: unknown event type %q, dropped", ev.Type)
		d.observer.ObserveDropped(DropUnknown)
		return KindUnknown
	}
	d.observer.ObserveFrame(kind)
	fn(ev)
	return kind
}

func (d *Dispatcher) onReady(ev Event) {
	logs.Infof("gateway: session ready")
}

type messageSummary struct {
	AuthorID string `json:"author_id"`
	Author   *struct {
		ID string `json:"id"`
	} `json:"author"`
	Content string `json:"content"`
}

func (s messageSummary) author() string {
	if s.AuthorID != "" {
		return s.AuthorID
	}
	if s.Author != nil {
		return s.Author.ID
	}
	return ""
}

func (d *Dispatcher) onMessageCreate(ev Event) {
	d.store(ev, d.handlers.Store.OnMessageCreate)

	if d.handlers.Notifier == nil {
		return
	}
	var summary messageSummary
	if err := sonic.Unmarshal(ev.Data, &summary); err != nil {
		return
	}
	if author := summary.author(); author != "" && summary.Content != "" {
		d.handlers.Notifier.NotifyMessage(author, summary.Content)
	}
}

func (d *Dispatcher) onMessageUpdate(ev Event) {
	d.store(ev, d.handlers.Store.OnMessageUpdate)
}

func (d *Dispatcher) onMessageDelete(ev Event) {
	d.store(ev, d.handlers.Store.OnMessageDelete)
}

func (d *Dispatcher) store(ev Event, apply func(json.RawMessage) error) {
	if err := apply(ev.Data); err != nil {
		logs.Errorf("gateway: message store rejected %s, err: %+v", ev.Type, err)
	}
}

func (d *Dispatcher) onTyping(ev Event) {
	if d.handlers.OnTyping == nil {
		logs.Debugf("gateway: typing start %s", ev.Data)
		return
	}
	d.handlers.OnTyping(ev.Data)
}

func (d *Dispatcher) onPresence(ev Event) {
	if d.handlers.OnPresence == nil {
		logs.Debugf("gateway: presence update %s", ev.Data)
		return
	}
	d.handlers.OnPresence(ev.Data)
}

func (d *Dispatcher) onCall(ev Event) {
	if d.handlers.Notifier == nil {
		return
	}
	d.handlers.Notifier.NotifyIncomingCall()
}
