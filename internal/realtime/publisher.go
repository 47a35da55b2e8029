package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"stompgofer/internal/stomp"
	"stompgofer/internal/transport"
)

// sessionSource yields the session while connected
type sessionSource interface {
	connectedSession() (transport.Session, bool)
}

// Publisher sends JSON bodies to destinations. It is best-effort: nothing is queued
// while disconnected.
type Publisher struct {
	source sessionSource
	logger zerolog.Logger
}

// NewPublisher creates a publisher writing to the manager's current session
func NewPublisher(m *Manager, logger zerolog.Logger) *Publisher {
	return &Publisher{
		source: m,
		logger: logger.With().Str("component", "publisher").Logger(),
	}
}

// Publish encodes body as JSON and sends it to destination.
// While disconnected it logs, writes nothing and returns ErrNotConnected.
func (p *Publisher) Publish(destination string, body any) error {
	s, ok := p.source.connectedSession()
	if !ok {
		p.logger.Error().Str("destination", destination).Msg("publish while disconnected, message dropped")
		return ErrNotConnected
	}

	data, err := json.Marshal(body)
	if err != nil {
		p.logger.Error().Err(err).Str("destination", destination).Msg("failed to encode message")
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := s.Send(destination, stomp.ContentTypeJSON, data); err != nil {
		p.logger.Error().Err(err).Str("destination", destination).Msg("publish failed")
		return err
	}
	p.logger.Debug().Str("destination", destination).Int("len", len(data)).Msg("published")
	return nil
}
