// Package channel provides typed adapters over the real-time client for chat,
// notifications and location sharing, plus consumer-side stores.
package channel

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"stompgofer/internal/message"
	"stompgofer/internal/realtime"
)

// PubSub is the part of realtime.Client the adapters use
type PubSub interface {
	Subscribe(topic string, handler realtime.Handler) string
	Unsubscribe(id string)
	Publish(destination string, body any) error
}

// subscribeTyped registers fn for payloads of type T on topic. Frames carrying another
// payload type are ignored.
func subscribeTyped[T message.Payload](ps PubSub, topic string, fn func(T)) string {
	return ps.Subscribe(topic, func(in realtime.Inbound) {
		if v, ok := in.Payload.(T); ok {
			fn(v)
		}
	})
}

// Deduplicator remembers recently seen keys in a bounded window
type Deduplicator struct {
	cache *lru.Cache[string, struct{}]
}

// NewDeduplicator creates a Deduplicator holding at most size keys
func NewDeduplicator(size int) (*Deduplicator, error) {
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &Deduplicator{cache: cache}, nil
}

// IsDuplicate reports whether key was seen before and records it otherwise.
// An empty key is never a duplicate.
func (d *Deduplicator) IsDuplicate(key string) bool {
	if key == "" {
		return false
	}
	if d.cache.Contains(key) {
		return true
	}
	d.cache.Add(key, struct{}{})
	return false
}

// Clear forgets every key
func (d *Deduplicator) Clear() {
	d.cache.Purge()
}

// Len returns the number of remembered keys
func (d *Deduplicator) Len() int {
	return d.cache.Len()
}
