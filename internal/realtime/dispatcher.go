package realtime

import (
	"time"

	"github.com/rs/zerolog"

	"stompgofer/internal/message"
	"stompgofer/internal/transport"
)

// DefaultSlowHandlerThreshold is how long a handler may run before it is reported as slow
const DefaultSlowHandlerThreshold = time.Second

// Dispatcher parses inbound frames and fans them out to the registry's handlers
type Dispatcher struct {
	registry      *Registry
	slowThreshold time.Duration
	logger        zerolog.Logger
}

// NewDispatcher creates a dispatcher over registry
func NewDispatcher(registry *Registry, slowThreshold time.Duration, logger zerolog.Logger) *Dispatcher {
	if slowThreshold <= 0 {
		slowThreshold = DefaultSlowHandlerThreshold
	}
	return &Dispatcher{
		registry:      registry,
		slowThreshold: slowThreshold,
		logger:        logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch delivers one frame. A body that does not parse is logged and dropped;
// a panicking handler does not stop the remaining handlers.
func (d *Dispatcher) Dispatch(msg transport.Message) {
	topic, handlers := d.registry.resolve(msg.SubscriptionID, msg.Destination)
	if len(handlers) == 0 {
		d.logger.Debug().Str("destination", msg.Destination).Str("subscription", msg.SubscriptionID).Msg("message, no handler")
		return
	}

	payload, err := message.Parse(topic, msg.Body)
	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("topic", topic).
			Str("kind", message.KindOf(topic).String()).
			Int("len", len(msg.Body)).
			Msg("message parse error")
		return
	}

	in := Inbound{Topic: topic, Payload: payload, Frame: msg}
	for i, h := range handlers {
		d.invoke(i, h, in)
	}
}

func (d *Dispatcher) invoke(index int, h Handler, in Inbound) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Str("topic", in.Topic).Int("handler", index).Msg("subscription handler panic")
		}
	}()
	start := time.Now()
	h(in)
	if dur := time.Since(start); dur > d.slowThreshold {
		d.logger.Warn().Str("topic", in.Topic).Int("handler", index).Dur("handlerDuration", dur).Msg("subscription handler slow")
	}
}
