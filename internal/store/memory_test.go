package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"hearth/pkg/exception"
	"hearth/pkg/gateway"
)

var _ gateway.MessageStore = (*MemoryStore)(nil)
var _ gateway.MessageStore = (*GormStore)(nil)

func newTestMemoryStore() *MemoryStore {
	s := NewMemoryStore()
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func mustApply(t *testing.T, fn func(json.RawMessage) error, payload string) {
	t.Helper()
	if err := fn(json.RawMessage(payload)); err != nil {
		t.Fatalf("apply %s: %+v", payload, err)
	}
}

func TestMemoryStoreCreate(t *testing.T) {
	s := newTestMemoryStore()
	mustApply(t, s.OnMessageCreate, `{"id":"m1","channel_id":"c1","author_id":"u1","content":"hi","created_at":"2024-04-30T08:00:00Z"}`)
	mustApply(t, s.OnMessageCreate, `{"id":"m2","channel_id":"c1","author":{"id":"u2"},"content":"yo"}`)
	mustApply(t, s.OnMessageCreate, `{"id":"m3","channel_id":"c2","author_id":"u1","content":"elsewhere"}`)

	got := s.Messages("c1")
	if len(got) != 2 {
		t.Fatalf("messages mismatch: %+v", got)
	}
	if got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("order mismatch: %s, %s", got[0].ID, got[1].ID)
	}
	if got[1].AuthorID != "u2" {
		t.Fatalf("nested author not decoded: %q", got[1].AuthorID)
	}
	if !got[0].CreatedAt.Equal(time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("created at mismatch: %s", got[0].CreatedAt)
	}
	if !got[1].CreatedAt.Equal(s.now()) {
		t.Fatalf("missing created at not defaulted: %s", got[1].CreatedAt)
	}
	if s.Len() != 3 {
		t.Fatalf("len mismatch: %d", s.Len())
	}
}

func TestMemoryStoreRedeliveredCreate(t *testing.T) {
	s := newTestMemoryStore()
	mustApply(t, s.OnMessageCreate, `{"id":"m1","channel_id":"c1","content":"first"}`)
	mustApply(t, s.OnMessageCreate, `{"id":"m2","channel_id":"c1","content":"second"}`)
	mustApply(t, s.OnMessageCreate, `{"id":"m1","channel_id":"c1","content":"again"}`)

	got := s.Messages("c1")
	if len(got) != 2 || got[0].ID != "m1" || got[0].Content != "again" {
		t.Fatalf("redelivery mismatch: %+v", got)
	}
}

func TestMemoryStoreUpdate(t *testing.T) {
	s := newTestMemoryStore()
	mustApply(t, s.OnMessageCreate, `{"id":"m1","channel_id":"c1","content":"hi"}`)
	mustApply(t, s.OnMessageUpdate, `{"id":"m1","content":"hello"}`)

	msg, ok := s.Get("m1")
	if !ok {
		t.Fatal("message missing")
	}
	if msg.Content != "hello" {
		t.Fatalf("content mismatch: %q", msg.Content)
	}
	if msg.EditedAt == nil || !msg.EditedAt.Equal(s.now()) {
		t.Fatalf("edited at mismatch: %v", msg.EditedAt)
	}

	mustApply(t, s.OnMessageUpdate, `{"id":"m1","edited_at":"2024-05-02T00:00:00Z"}`)
	msg, _ = s.Get("m1")
	if msg.Content != "hello" {
		t.Fatalf("content changed without content field: %q", msg.Content)
	}
	if !msg.EditedAt.Equal(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("edited at mismatch: %v", msg.EditedAt)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := newTestMemoryStore()
	mustApply(t, s.OnMessageCreate, `{"id":"m1","channel_id":"c1","content":"a"}`)
	mustApply(t, s.OnMessageCreate, `{"id":"m2","channel_id":"c1","content":"b"}`)
	mustApply(t, s.OnMessageDelete, `{"id":"m1","channel_id":"c1"}`)

	got := s.Messages("c1")
	if len(got) != 1 || got[0].ID != "m2" {
		t.Fatalf("delete mismatch: %+v", got)
	}
	if _, ok := s.Get("m1"); ok {
		t.Fatal("deleted message still readable")
	}

	mustApply(t, s.OnMessageDelete, `{"id":"m2"}`)
	if got := s.Messages("c1"); len(got) != 0 {
		t.Fatalf("channel not empty: %+v", got)
	}
}

func TestMemoryStoreErrors(t *testing.T) {
	s := newTestMemoryStore()
	cases := []struct {
		name    string
		apply   func(json.RawMessage) error
		payload string
		want    error
	}{
		{"update unknown", s.OnMessageUpdate, `{"id":"nope","content":"x"}`, exception.ErrUnknownMessage},
		{"delete unknown", s.OnMessageDelete, `{"id":"nope"}`, exception.ErrUnknownMessage},
		{"create without id", s.OnMessageCreate, `{"content":"x"}`, exception.ErrInvalidMessage},
		{"create not json", s.OnMessageCreate, `hello`, exception.ErrInvalidMessage},
		{"update without id", s.OnMessageUpdate, `{}`, exception.ErrInvalidMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.apply(json.RawMessage(tc.payload))
			if !errors.Is(err, tc.want) {
				t.Fatalf("error mismatch: got %+v, want %v", err, tc.want)
			}
		})
	}
	if s.Len() != 0 {
		t.Fatalf("rejected payloads were stored: %d", s.Len())
	}
}
