package main

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hearth/internal/notify"
	"hearth/internal/store"
	"hearth/pkg/gateway"
)

type countingSink struct {
	messages chan string
}

func (s countingSink) ShowMessage(author, preview string) {
	select {
	case s.messages <- preview:
	default:
	}
}

func (countingSink) ShowIncomingCall() {}

func (countingSink) SetBadge(uint32) {}

func TestClientAgainstDevServer(t *testing.T) {
	opt := serverOption{
		Path:      gateway.DefaultGatewayPath,
		Token:     "t1",
		Interval:  20 * time.Millisecond,
		DropAfter: 2,
	}
	server := httptest.NewServer(newHandler(opt))
	defer server.Close()

	sink := countingSink{messages: make(chan string, 16)}
	messages := store.NewMemoryStore()
	client, err := gateway.NewClient(gateway.Option{
		APIBase:     server.URL + "/api",
		GatewayPath: opt.Path,
		Backoff:     gateway.Backoff{Base: 10 * time.Millisecond, Factor: 2},
		Handlers: gateway.Handlers{
			Store:    messages,
			Notifier: notify.New(sink),
		},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(client.Endpoint(), "ws://"))

	client.Connect("t1")
	defer client.Disconnect()

	// Two messages per session; the third one arrives only after a reconnect.
	for i := 0; i < 3; i++ {
		select {
		case <-sink.messages:
		case <-time.After(5 * time.Second):
			t.Fatalf("message %d not delivered", i+1)
		}
	}
	assert.GreaterOrEqual(t, messages.Len(), 3)
	assert.NotEmpty(t, messages.Messages("general"))

	client.Disconnect()
	assert.Equal(t, gateway.StateDisconnected, client.State())
}
