package notify

import (
	"sync"

	"github.com/yanun0323/logs"
)

const previewRunes = 100

// Sink is the platform surface notifications end up on.
type Sink interface {
	ShowMessage(author, preview string)
	ShowIncomingCall()
	SetBadge(count uint32)
}

// Notifier decides which gateway events become user-visible notifications.
// It keeps the unread badge count even while muted.
type Notifier struct {
	sink Sink

	mu     sync.Mutex
	self   string
	muted  bool
	focus  bool
	unread uint32
}

func New(sink Sink) *Notifier {
	if sink == nil {
		sink = LogSink{}
	}
	return &Notifier{sink: sink}
}

// SetSelf sets the current user; their own messages never notify.
func (n *Notifier) SetSelf(userID string) {
	n.mu.Lock()
	n.self = userID
	n.mu.Unlock()
}

func (n *Notifier) SetMuted(muted bool) {
	n.mu.Lock()
	n.muted = muted
	n.mu.Unlock()
}

// ToggleMute flips the mute flag and returns the new value.
func (n *Notifier) ToggleMute() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.muted = !n.muted
	return n.muted
}

func (n *Notifier) Muted() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.muted
}

// SetFocusMode suppresses message popups. Calls still ring.
func (n *Notifier) SetFocusMode(on bool) {
	n.mu.Lock()
	n.focus = on
	n.mu.Unlock()
}

func (n *Notifier) ToggleFocusMode() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.focus = !n.focus
	return n.focus
}

func (n *Notifier) FocusMode() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.focus
}

func (n *Notifier) Unread() uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unread
}

// ResetUnread clears the badge, e.g. when the window gains focus.
func (n *Notifier) ResetUnread() {
	n.mu.Lock()
	n.unread = 0
	n.mu.Unlock()
	n.sink.SetBadge(0)
}

func (n *Notifier) NotifyMessage(authorID, content string) {
	n.mu.Lock()
	if authorID == n.self && n.self != "" {
		n.mu.Unlock()
		return
	}
	n.unread++
	count := n.unread
	show := !n.muted && !n.focus
	n.mu.Unlock()

	n.sink.SetBadge(count)
	if show {
		n.sink.ShowMessage(authorID, preview(content))
	}
}

func (n *Notifier) NotifyIncomingCall() {
	if n.Muted() {
		logs.Debugf("notify: incoming call while muted")
		return
	}
	n.sink.ShowIncomingCall()
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes])
}

// LogSink writes notifications to the log.
type LogSink struct{}

func (LogSink) ShowMessage(author, preview string) {
	logs.Infof("notify: message from %s: %s", author, preview)
}

func (LogSink) ShowIncomingCall() {
	logs.Infof("notify: incoming call")
}

func (LogSink) SetBadge(count uint32) {
	logs.Debugf("notify: unread %d", count)
}
