package realtime

import (
	"cmp"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stompgofer/internal/message"
	"stompgofer/internal/transport"
)

// Inbound is a parsed frame delivered to handlers
type Inbound struct {
	Topic   string
	Payload message.Payload
	Frame   transport.Message
}

// Handler consumes inbound messages for a topic. Handlers run on the dispatch goroutine
// and must not block.
type Handler func(in Inbound)

// subscription is one logical (topic, handler) pair
type subscription struct {
	id      string
	topic   string
	seq     uint64
	handler Handler
}

// topicEntry holds the handlers of one topic and its transport-level subscription
type topicEntry struct {
	transportID string
	subs        []*subscription
}

// Registry maps topics to ordered handler lists. It holds at most one transport
// subscription per topic; fan-out to handlers happens locally.
// Subscriptions requested while no session is attached are kept pending and replayed
// when one is attached.
type Registry struct {
	mu sync.Mutex

	session transport.Session
	// topic -> entry (only while a session is attached)
	active map[string]*topicEntry
	// transport subscription id -> topic
	byTransportID map[string]string
	pending       []*subscription
	// subscription id -> subscription, pending or active
	index map[string]*subscription
	seq   uint64

	newTransportID func() string
	logger         zerolog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		active:        make(map[string]*topicEntry),
		byTransportID: make(map[string]string),
		index:         make(map[string]*subscription),
		newTransportID: func() string {
			return "sub-" + uuid.NewString()
		},
		logger: logger.With().Str("component", "subscription-registry").Logger(),
	}
}

// Subscribe registers handler for topic and returns its subscription id.
// Without an attached session the subscription is queued and replayed on connect.
func (r *Registry) Subscribe(topic string, handler Handler) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	sub := &subscription{
		id:      topic + "#" + strconv.FormatUint(r.seq, 10),
		topic:   topic,
		seq:     r.seq,
		handler: handler,
	}
	r.index[sub.id] = sub

	if r.session == nil {
		r.pending = append(r.pending, sub)
		r.logger.Debug().Str("topic", topic).Str("id", sub.id).Msg("subscription pending")
		return sub.id
	}
	r.activateLocked(sub)
	return sub.id
}

// Unsubscribe removes a subscription. Removing the last handler of a topic releases
// the transport subscription. Unknown ids are ignored.
func (r *Registry) Unsubscribe(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.index[id]
	if !ok {
		return
	}
	delete(r.index, id)

	if i := slices.Index(r.pending, sub); i >= 0 {
		r.pending = slices.Delete(r.pending, i, i+1)
		r.logger.Debug().Str("id", id).Msg("pending subscription removed")
		return
	}

	entry, ok := r.active[sub.topic]
	if !ok {
		return
	}
	if i := slices.Index(entry.subs, sub); i >= 0 {
		entry.subs = slices.Delete(entry.subs, i, i+1)
	}
	if len(entry.subs) > 0 {
		r.logger.Debug().Str("topic", sub.topic).Str("id", id).Int("remaining", len(entry.subs)).Msg("handler removed")
		return
	}

	delete(r.active, sub.topic)
	delete(r.byTransportID, entry.transportID)
	if r.session != nil {
		if err := r.session.Unsubscribe(entry.transportID); err != nil {
			r.logger.Warn().Err(err).Str("topic", sub.topic).Msg("failed to release transport subscription")
		}
	}
	r.logger.Info().Str("topic", sub.topic).Msg("closed subscription (no more handlers)")
}

// ReplayPending activates every pending subscription against the attached session.
// Calling it again is a no-op; a topic is never subscribed twice at the transport level.
func (r *Registry) ReplayPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replayLocked()
}

// Attach binds the registry to a freshly connected session and replays pending subscriptions
func (r *Registry) Attach(s transport.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = s
	r.replayLocked()
}

// Detach unbinds the session after an involuntary disconnect. Active subscriptions
// become pending again, in registration order, so they survive the reconnect.
func (r *Registry) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.session = nil
	for _, entry := range r.active {
		r.pending = append(r.pending, entry.subs...)
	}
	slices.SortFunc(r.pending, func(a, b *subscription) int {
		return cmp.Compare(a.seq, b.seq)
	})
	r.active = make(map[string]*topicEntry)
	r.byTransportID = make(map[string]string)
}

// Clear releases every transport subscription and forgets all subscriptions, pending included
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		for topic, entry := range r.active {
			if err := r.session.Unsubscribe(entry.transportID); err != nil {
				r.logger.Debug().Err(err).Str("topic", topic).Msg("unsubscribe on clear failed")
			}
		}
	}
	n := len(r.index)
	r.session = nil
	r.active = make(map[string]*topicEntry)
	r.byTransportID = make(map[string]string)
	r.pending = nil
	r.index = make(map[string]*subscription)
	r.logger.Info().Int("subscriptions", n).Msg("subscription registry cleared")
}

// Handlers returns the handlers of an active topic in registration order
func (r *Registry) Handlers(topic string) []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.active[topic]
	if !ok {
		return nil
	}
	return handlersOf(entry)
}

// TopicFor returns the topic bound to a transport subscription id
func (r *Registry) TopicFor(transportID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	topic, ok := r.byTransportID[transportID]
	return topic, ok
}

// resolve finds the topic of an inbound frame, preferring the subscription header
func (r *Registry) resolve(transportID, destination string) (string, []Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	topic := destination
	if t, ok := r.byTransportID[transportID]; ok {
		topic = t
	}
	entry, ok := r.active[topic]
	if !ok {
		return topic, nil
	}
	return topic, handlersOf(entry)
}

// TopicCount returns the number of topics with a transport subscription
func (r *Registry) TopicCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// PendingCount returns the number of subscriptions waiting for a connection
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Registry) replayLocked() {
	if r.session == nil || len(r.pending) == 0 {
		return
	}
	pending := r.pending
	r.pending = nil
	for _, sub := range pending {
		r.activateLocked(sub)
	}
	r.logger.Info().Int("replayed", len(pending)-len(r.pending)).Int("topics", len(r.active)).Msg("pending subscriptions replayed")
}

// activateLocked attaches sub to its topic, creating the transport subscription if the
// topic is new. On transport failure the subscription stays pending.
func (r *Registry) activateLocked(sub *subscription) {
	entry, ok := r.active[sub.topic]
	if !ok {
		transportID := r.newTransportID()
		if err := r.session.Subscribe(sub.topic, transportID); err != nil {
			r.logger.Warn().Err(err).Str("topic", sub.topic).Msg("failed to subscribe, keeping pending")
			r.pending = append(r.pending, sub)
			return
		}
		entry = &topicEntry{transportID: transportID}
		r.active[sub.topic] = entry
		r.byTransportID[transportID] = sub.topic
		r.logger.Info().Str("topic", sub.topic).Msg("created new subscription")
	}
	entry.subs = append(entry.subs, sub)
}

func handlersOf(entry *topicEntry) []Handler {
	handlers := make([]Handler, len(entry.subs))
	for i, sub := range entry.subs {
		handlers[i] = sub.handler
	}
	return handlers
}
