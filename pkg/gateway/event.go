package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"hearth/pkg/exception"
)

// Event types on the wire.
const (
	TypeReady            = "READY"
	TypeHeartbeat        = "HEARTBEAT"
	TypeMessageCreate    = "MESSAGE_CREATE"
	TypeMessageUpdate    = "MESSAGE_UPDATE"
	TypeMessageDelete    = "MESSAGE_DELETE"
	TypeTypingStart      = "TYPING_START"
	TypePresenceUpdate   = "PRESENCE_UPDATE"
	TypeVoiceStateUpdate = "VOICE_STATE_UPDATE"
	TypeCallCreate       = "CALL_CREATE"
	TypeCallRing         = "CALL_RING"
)

// Event is one gateway frame: {"t": type, "d": payload, "s": sequence}.
type Event struct {
	Type string          `json:"t"`
	Data json.RawMessage `json:"d,omitempty"`
	// Sequence is only present on server-originated frames.
	Sequence *int64 `json:"s,omitempty"`
}

// DecodeEvent parses a text frame. Frames that are not JSON objects or carry no type are rejected.
func DecodeEvent(payload []byte) (Event, error) {
	var ev Event
	if err := sonic.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", exception.ErrMalformedFrame, err)
	}
	if ev.Type == "" {
		return Event{}, exception.ErrMissingType
	}
	return ev, nil
}

// Encode marshals the event into a text frame.
func (e Event) Encode() ([]byte, error) {
	if e.Type == "" {
		return nil, exception.ErrMissingType
	}
	return sonic.Marshal(e)
}

// Kind classifies the event type.
func (e Event) Kind() EventKind {
	return ParseKind(e.Type)
}

func heartbeatEvent(seq int64, ok bool) Event {
	data := json.RawMessage("null")
	if ok {
		data = json.RawMessage(strconv.FormatInt(seq, 10))
	}
	return Event{Type: TypeHeartbeat, Data: data}
}

// EventKind is the closed set of inbound event kinds the client knows how to route.
type EventKind uint8

const (
	KindUnknown EventKind = iota
	KindReady
	KindMessageCreate
	KindMessageUpdate
	KindMessageDelete
	KindTypingStart
	KindPresenceUpdate
	KindVoiceStateUpdate
	KindCallCreate
	KindCallRing
	// KindReserved covers SERVER_*, CHANNEL_* and MEMBER_* events.
	KindReserved
)

var kindByType = map[string]EventKind{
	TypeReady:            KindReady,
	TypeMessageCreate:    KindMessageCreate,
	TypeMessageUpdate:    KindMessageUpdate,
	TypeMessageDelete:    KindMessageDelete,
	TypeTypingStart:      KindTypingStart,
	TypePresenceUpdate:   KindPresenceUpdate,
	TypeVoiceStateUpdate: KindVoiceStateUpdate,
	TypeCallCreate:       KindCallCreate,
	TypeCallRing:         KindCallRing,
}

var reservedPrefixes = []string{"SERVER_", "CHANNEL_", "MEMBER_"}

// ParseKind maps a wire type to its kind. Unrecognized types map to KindUnknown.
func ParseKind(t string) EventKind {
	if kind, ok := kindByType[t]; ok {
		return kind
	}
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(t, prefix) && len(t) > len(prefix) {
			return KindReserved
		}
	}
	return KindUnknown
}

func (k EventKind) String() string {
	switch k {
	case KindReady:
		return TypeReady
	case KindMessageCreate:
		return TypeMessageCreate
	case KindMessageUpdate:
		return TypeMessageUpdate
	case KindMessageDelete:
		return TypeMessageDelete
	case KindTypingStart:
		return TypeTypingStart
	case KindPresenceUpdate:
		return TypePresenceUpdate
	case KindVoiceStateUpdate:
		return TypeVoiceStateUpdate
	case KindCallCreate:
		return TypeCallCreate
	case KindCallRing:
		return TypeCallRing
	case KindReserved:
		return "RESERVED"
	default:
		return "UNKNOWN"
	}
}
