package channel

import (
	"sync"
	"time"

	"stompgofer/internal/message"
)

// Notifications receives the personal notifications of a user
type Notifications struct {
	ps PubSub
}

// NewNotifications creates a notification adapter over ps
func NewNotifications(ps PubSub) *Notifications {
	return &Notifications{ps: ps}
}

// Subscribe delivers notifications addressed to userEmail to fn
func (n *Notifications) Subscribe(userEmail string, fn func(message.Notification)) string {
	return subscribeTyped(n.ps, message.NotificationTopic(userEmail), fn)
}

// Unsubscribe removes a subscription made with Subscribe
func (n *Notifications) Unsubscribe(id string) {
	n.ps.Unsubscribe(id)
}

// Inbox collects notifications. Bursts of the same notification, identified by
// sender, text and timestamp, are stored once.
type Inbox struct {
	mu    sync.RWMutex
	items []message.Notification
	dedup *Deduplicator
	now   func() time.Time
}

// NewInbox creates an inbox remembering up to window notification keys
func NewInbox(window int) (*Inbox, error) {
	dedup, err := NewDeduplicator(window)
	if err != nil {
		return nil, err
	}
	return &Inbox{dedup: dedup, now: time.Now}, nil
}

// Add stores n unless it duplicates a recent one. A missing timestamp is set to the
// receive time. Returns whether n was stored.
func (b *Inbox) Add(n message.Notification) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dedup.IsDuplicate(notificationKey(n)) {
		return false
	}
	if n.Timestamp == "" {
		n.Timestamp = b.now().UTC().Format(isoTimestamp)
	}
	b.items = append(b.items, n)
	return true
}

// Items returns a copy of the stored notifications in arrival order
func (b *Inbox) Items() []message.Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]message.Notification(nil), b.items...)
}

// Len returns the number of stored notifications
func (b *Inbox) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Clear empties the inbox and its duplicate window
func (b *Inbox) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
	b.dedup.Clear()
}

// notificationKey is computed before the timestamp is filled so timestamp-less
// repeats collapse as well
func notificationKey(n message.Notification) string {
	return n.SenderEmail + "\x00" + n.Message + "\x00" + n.Timestamp
}
