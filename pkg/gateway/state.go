package gateway

import "sync"

// Signal holds the current ConnectionState. Only the client writes it.
type Signal struct {
	mu     sync.Mutex
	state  ConnectionState
	nextID uint64
	subs   map[uint64]chan ConnectionState
}

func newSignal() *Signal {
	return &Signal{
		state: StateDisconnected,
		subs:  make(map[uint64]chan ConnectionState),
	}
}

// Get returns the current state.
func (s *Signal) Get() ConnectionState {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	return state
}

// Subscribe returns a channel that first yields the current state and then every change.
// A slow reader only misses intermediate states; the latest one is always kept.
// The returned func unsubscribes and closes the channel.
func (s *Signal) Subscribe() (<-chan ConnectionState, func()) {
	ch := make(chan ConnectionState, 1)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.state
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Signal) set(state ConnectionState) (prev ConnectionState, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.state
	if prev == state {
		return prev, false
	}
	s.state = state
	for _, ch := range s.subs {
		publishLatest(ch, state)
	}
	return prev, true
}

// publishLatest never blocks: a full slot is replaced by the newer state.
func publishLatest(ch chan ConnectionState, state ConnectionState) {
	for {
		select {
		case ch <- state:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
