package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalSubscribe(t *testing.T) {
	s := newSignal()
	ch, cancel := s.Subscribe()
	assert.Equal(t, StateDisconnected, <-ch)

	_, changed := s.set(StateConnecting)
	require.True(t, changed)
	assert.Equal(t, StateConnecting, <-ch)

	_, changed = s.set(StateConnecting)
	assert.False(t, changed)

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestSignalSlowReaderSeesLatest(t *testing.T) {
	s := newSignal()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.set(StateConnecting)
	s.set(StateConnected)
	s.set(StateReconnecting)

	assert.Equal(t, StateReconnecting, <-ch)
	assert.Equal(t, StateReconnecting, s.Get())
	select {
	case st := <-ch:
		t.Fatalf("unexpected state %s", st)
	default:
	}
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "unknown", ConnectionState(42).String())
}
