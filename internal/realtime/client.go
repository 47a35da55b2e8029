package realtime

import (
	"time"

	"github.com/rs/zerolog"

	"stompgofer/internal/transport"
)

// Config configures a Client
type Config struct {
	ManagerConfig
	SlowHandlerThreshold time.Duration
}

// Client is the consumer-facing real-time API: one shared session with a subscription
// registry, dispatcher and publisher. Construct one per process and pass it to the
// channel adapters; tests construct isolated instances.
type Client struct {
	manager    *Manager
	registry   *Registry
	dispatcher *Dispatcher
	publisher  *Publisher
}

// New wires a Client over dialer
func New(cfg Config, dialer transport.Dialer, logger zerolog.Logger) *Client {
	registry := NewRegistry(logger)
	dispatcher := NewDispatcher(registry, cfg.SlowHandlerThreshold, logger)
	manager := NewManager(cfg.ManagerConfig, dialer, registry, dispatcher, logger)
	return &Client{
		manager:    manager,
		registry:   registry,
		dispatcher: dispatcher,
		publisher:  NewPublisher(manager, logger),
	}
}

// Connect starts connecting; see Manager.Connect
func (c *Client) Connect(token string) { c.manager.Connect(token) }

// Disconnect tears the session down and drops all subscriptions
func (c *Client) Disconnect() { c.manager.Disconnect() }

// IsConnected reports whether the session is connected
func (c *Client) IsConnected() bool { return c.manager.IsConnected() }

// State returns the connection state
func (c *Client) State() State { return c.manager.State() }

// OnStateChange registers a state listener
func (c *Client) OnStateChange(fn func(StateChange)) { c.manager.OnStateChange(fn) }

// Subscribe registers handler for topic and returns the subscription id
func (c *Client) Subscribe(topic string, handler Handler) string {
	return c.registry.Subscribe(topic, handler)
}

// Unsubscribe removes a subscription by id
func (c *Client) Unsubscribe(id string) { c.registry.Unsubscribe(id) }

// Publish sends body as JSON to destination; see Publisher.Publish
func (c *Client) Publish(destination string, body any) error {
	return c.publisher.Publish(destination, body)
}

// Registry exposes the subscription registry for inspection
func (c *Client) Registry() *Registry { return c.registry }
