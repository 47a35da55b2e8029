package channel

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stompgofer/internal/message"
)

// isoTimestamp matches JavaScript's Date.toISOString
const isoTimestamp = "2006-01-02T15:04:05.000Z07:00"

// Location shares positions inside a chat room
type Location struct {
	ps     PubSub
	now    func() time.Time
	logger zerolog.Logger
}

// NewLocation creates a location adapter over ps
func NewLocation(ps PubSub, logger zerolog.Logger) *Location {
	return &Location{
		ps:     ps,
		now:    time.Now,
		logger: logger.With().Str("component", "location").Logger(),
	}
}

// Subscribe delivers location updates of a room to fn. Updates sent by selfEmail are
// dropped; an empty selfEmail delivers everything.
func (l *Location) Subscribe(chatroomID int64, selfEmail string, fn func(message.LocationUpdate)) string {
	return subscribeTyped(l.ps, message.LocationTopic(chatroomID), func(u message.LocationUpdate) {
		if selfEmail != "" && strings.EqualFold(u.Email, selfEmail) {
			return
		}
		fn(u)
	})
}

// Unsubscribe removes a subscription made with Subscribe
func (l *Location) Unsubscribe(id string) {
	l.ps.Unsubscribe(id)
}

// Send publishes the position of email in a room, stamped with the current time
func (l *Location) Send(chatroomID int64, email string, lat, lng float64) error {
	return l.SendUpdate(message.LocationUpdate{
		ChatroomID: chatroomID,
		Email:      email,
		Latitude:   lat,
		Longitude:  lng,
	})
}

// SendUpdate publishes u, setting its timestamp to the current time
func (l *Location) SendUpdate(u message.LocationUpdate) error {
	u.Timestamp = l.now().UTC().Format(isoTimestamp)
	if err := u.Validate(); err != nil {
		l.logger.Warn().Err(err).Int64("chatroomId", u.ChatroomID).Msg("location update rejected")
		return err
	}
	return l.ps.Publish(message.LocationDestination(u.ChatroomID), u)
}

// LocationBoard keeps the latest update per participant
type LocationBoard struct {
	mu     sync.RWMutex
	latest map[string]message.LocationUpdate
}

// NewLocationBoard creates an empty board
func NewLocationBoard() *LocationBoard {
	return &LocationBoard{latest: make(map[string]message.LocationUpdate)}
}

// Update records u as the latest position of its sender. Updates without an email
// are ignored.
func (b *LocationBoard) Update(u message.LocationUpdate) {
	if u.Email == "" {
		return
	}
	b.mu.Lock()
	b.latest[u.Email] = u
	b.mu.Unlock()
}

// Get returns the latest update of email
func (b *LocationBoard) Get(email string) (message.LocationUpdate, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	u, ok := b.latest[email]
	return u, ok
}

// Remove forgets email
func (b *LocationBoard) Remove(email string) {
	b.mu.Lock()
	delete(b.latest, email)
	b.mu.Unlock()
}

// All returns the latest updates ordered by email
func (b *LocationBoard) All() []message.LocationUpdate {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]message.LocationUpdate, 0, len(b.latest))
	for _, u := range b.latest {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b message.LocationUpdate) int {
		return strings.Compare(a.Email, b.Email)
	})
	return out
}
