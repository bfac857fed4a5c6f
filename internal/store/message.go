package store

import (
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"hearth/pkg/exception"
)

// Message is a chat message as carried by MESSAGE_* gateway events.
type Message struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	ChannelID string     `json:"channel_id" gorm:"index"`
	AuthorID  string     `json:"author_id"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
}

type wireAuthor struct {
	ID string `json:"id"`
}

type wireMessage struct {
	ID        string      `json:"id"`
	ChannelID string      `json:"channel_id"`
	AuthorID  string      `json:"author_id"`
	Author    *wireAuthor `json:"author"`
	Content   *string     `json:"content"`
	CreatedAt *time.Time  `json:"created_at"`
	EditedAt  *time.Time  `json:"edited_at"`
}

func decodeWire(payload json.RawMessage) (wireMessage, error) {
	var w wireMessage
	if err := sonic.Unmarshal(payload, &w); err != nil {
		return wireMessage{}, errors.Wrap(exception.ErrInvalidMessage, "decode payload").With("err", err.Error())
	}
	if w.ID == "" {
		return wireMessage{}, errors.Wrap(exception.ErrInvalidMessage, "missing id")
	}
	return w, nil
}

// decodeMessage builds a Message from a MESSAGE_CREATE payload. A missing creation time is
// filled with now.
func decodeMessage(payload json.RawMessage, now time.Time) (Message, error) {
	w, err := decodeWire(payload)
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		ID:        w.ID,
		ChannelID: w.ChannelID,
		AuthorID:  w.AuthorID,
		CreatedAt: now,
		EditedAt:  w.EditedAt,
	}
	if msg.AuthorID == "" && w.Author != nil {
		msg.AuthorID = w.Author.ID
	}
	if w.Content != nil {
		msg.Content = *w.Content
	}
	if w.CreatedAt != nil && !w.CreatedAt.IsZero() {
		msg.CreatedAt = *w.CreatedAt
	}
	return msg, nil
}

// edit is the mutable part of a MESSAGE_UPDATE payload.
type edit struct {
	id       string
	content  *string
	editedAt time.Time
}

func decodeEdit(payload json.RawMessage, now time.Time) (edit, error) {
	w, err := decodeWire(payload)
	if err != nil {
		return edit{}, err
	}
	e := edit{id: w.ID, content: w.Content, editedAt: now}
	if w.EditedAt != nil && !w.EditedAt.IsZero() {
		e.editedAt = *w.EditedAt
	}
	return e, nil
}

func (e edit) apply(msg *Message) {
	if e.content != nil {
		msg.Content = *e.content
	}
	at := e.editedAt
	msg.EditedAt = &at
}

func decodeID(payload json.RawMessage) (string, error) {
	w, err := decodeWire(payload)
	if err != nil {
		return "", err
	}
	return w.ID, nil
}
