package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"hearth/pkg/exception"
)

// MemoryStore keeps messages in memory, ordered per channel by arrival.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string]Message
	channels map[string][]string
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string]Message),
		channels: make(map[string][]string),
		now:      time.Now,
	}
}

// OnMessageCreate stores the message. A redelivered id replaces the stored copy in place.
func (s *MemoryStore) OnMessageCreate(payload json.RawMessage) error {
	msg, err := decodeMessage(payload, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.messages[msg.ID]; ok && prev.ChannelID != msg.ChannelID {
		s.unlink(prev)
		s.channels[msg.ChannelID] = append(s.channels[msg.ChannelID], msg.ID)
	} else if !ok {
		s.channels[msg.ChannelID] = append(s.channels[msg.ChannelID], msg.ID)
	}
	s.messages[msg.ID] = msg
	return nil
}

func (s *MemoryStore) OnMessageUpdate(payload json.RawMessage) error {
	e, err := decodeEdit(payload, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[e.id]
	if !ok {
		return errors.Wrap(exception.ErrUnknownMessage, "update").With("id", e.id)
	}
	e.apply(&msg)
	s.messages[e.id] = msg
	return nil
}

func (s *MemoryStore) OnMessageDelete(payload json.RawMessage) error {
	id, err := decodeID(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return errors.Wrap(exception.ErrUnknownMessage, "delete").With("id", id)
	}
	delete(s.messages, id)
	s.unlink(msg)
	return nil
}

// Messages returns a copy of the channel's messages in arrival order.
func (s *MemoryStore) Messages(channelID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.channels[channelID]
	out := make([]Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.messages[id])
	}
	return out
}

func (s *MemoryStore) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	return msg, ok
}

// Len returns the number of stored messages.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *MemoryStore) unlink(msg Message) {
	ids := s.channels[msg.ChannelID]
	for i, id := range ids {
		if id == msg.ID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.channels, msg.ChannelID)
		return
	}
	s.channels[msg.ChannelID] = ids
}
