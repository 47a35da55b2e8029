package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stompgofer/internal/transport"
)

// Default values
const (
	DefaultReconnectBaseDelay   = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultConnectTimeout       = 30 * time.Second
)

// ManagerConfig configures connection lifecycle and retry policy
type ManagerConfig struct {
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
	ConnectTimeout       time.Duration
	// AfterFunc schedules reconnects; nil means time.AfterFunc
	AfterFunc AfterFunc
}

func (c *ManagerConfig) applyDefaults() {
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.AfterFunc == nil {
		c.AfterFunc = defaultAfterFunc
	}
}

// Manager is the connection state machine: Disconnected → Connecting → Connected,
// back to Disconnected on any close or error, with exponential reconnect backoff.
type Manager struct {
	cfg        ManagerConfig
	dialer     transport.Dialer
	registry   *Registry
	dispatcher *Dispatcher
	logger     zerolog.Logger

	mu       sync.Mutex
	state    State
	session  transport.Session
	token    string
	attempts int
	retry    Timer
	// gen identifies the current dial attempt; events from older sessions are ignored
	gen uint64

	listenersMu sync.RWMutex
	listeners   []func(StateChange)
}

// NewManager creates a manager in the Disconnected state
func NewManager(cfg ManagerConfig, dialer transport.Dialer, registry *Registry, dispatcher *Dispatcher, logger zerolog.Logger) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:        cfg,
		dialer:     dialer,
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "connection").Logger(),
	}
}

// Connect starts connecting with token (empty for anonymous). It is a no-op while
// Connecting or Connected. An explicit call resets the reconnect counter and replaces
// any scheduled retry.
func (m *Manager) Connect(token string) {
	m.mu.Lock()
	if m.state != StateDisconnected {
		state := m.state
		m.mu.Unlock()
		m.logger.Debug().Str("state", state.String()).Msg("connect ignored, already active")
		return
	}
	m.token = token
	m.attempts = 0
	m.stopRetryLocked()
	gen, change := m.beginLocked()
	m.mu.Unlock()

	m.notify(change)
	go m.dial(gen, token)
}

// Disconnect closes the session, cancels pending retries and empties the registry.
// Subscriptions do not survive an explicit disconnect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	m.stopRetryLocked()
	s := m.session
	m.session = nil
	from := m.state
	m.state = StateDisconnected
	m.registry.Clear()
	m.mu.Unlock()

	if s != nil {
		if err := s.Close(); err != nil {
			m.logger.Warn().Err(err).Msg("session close failed")
		}
	}
	m.logger.Info().Msg("disconnected")
	if from != StateDisconnected {
		m.notify(StateChange{From: from, To: StateDisconnected})
	}
}

// IsConnected reports whether the session is connected
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// State returns the current connection state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of reconnect attempts since the last successful connect
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// OnStateChange registers fn for every state transition. Listeners are called
// synchronously and must not block.
func (m *Manager) OnStateChange(fn func(StateChange)) {
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, fn)
	m.listenersMu.Unlock()
}

func (m *Manager) connectedSession() (transport.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.session == nil {
		return nil, false
	}
	return m.session, true
}

// beginLocked moves to Connecting under a new generation
func (m *Manager) beginLocked() (uint64, StateChange) {
	m.gen++
	change := StateChange{From: m.state, To: StateConnecting}
	m.state = StateConnecting
	return m.gen, change
}

func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func (m *Manager) dial(gen uint64, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()

	s, err := m.dialer.Dial(ctx, token, &sessionEvents{m: m, gen: gen})
	if err != nil {
		m.handleClose(gen, fmt.Errorf("dial failed: %w", err))
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		s.Close()
		return
	}
	if m.session == nil {
		m.session = s
	}
	m.mu.Unlock()
}

func (m *Manager) handleOpen(gen uint64, s transport.Session) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.session = s
	from := m.state
	m.state = StateConnected
	m.attempts = 0
	m.registry.Attach(s)
	m.mu.Unlock()

	m.logger.Info().Msg("connected")
	m.notify(StateChange{From: from, To: StateConnected})
}

func (m *Manager) handleClose(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.session = nil
	from := m.state
	m.state = StateDisconnected
	m.registry.Detach()

	if m.attempts >= m.cfg.MaxReconnectAttempts {
		attempts := m.attempts
		m.mu.Unlock()
		m.logger.Error().Err(cause).Int("attempts", attempts).Msg("max reconnect attempts exceeded, giving up until next connect")
		m.notify(StateChange{From: from, To: StateDisconnected, Err: ErrReconnectExhausted})
		return
	}

	m.attempts++
	attempt := m.attempts
	delay := ReconnectDelay(m.cfg.ReconnectBaseDelay, attempt)
	retryGen := m.gen
	m.retry = m.cfg.AfterFunc(delay, func() { m.reconnect(retryGen) })
	m.mu.Unlock()

	m.logger.Warn().
		Err(cause).
		Int("attempt", attempt).
		Int("maxAttempts", m.cfg.MaxReconnectAttempts).
		Dur("nextRetry", delay).
		Msg("connection lost, reconnect scheduled")
	m.notify(StateChange{From: from, To: StateDisconnected, Err: cause})
}

func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.retry = nil
	token := m.token
	attempt := m.attempts
	dialGen, change := m.beginLocked()
	m.mu.Unlock()

	m.logger.Info().Int("attempt", attempt).Msg("reconnection attempt")
	m.notify(change)
	m.dial(dialGen, token)
}

func (m *Manager) handleMessage(gen uint64, msg transport.Message) {
	m.mu.Lock()
	current := gen == m.gen
	m.mu.Unlock()
	if !current {
		return
	}
	m.dispatcher.Dispatch(msg)
}

func (m *Manager) notify(change StateChange) {
	m.listenersMu.RLock()
	listeners := append([]func(StateChange){}, m.listeners...)
	m.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(change)
	}
}

// sessionEvents binds session callbacks to the dial attempt that created the session
type sessionEvents struct {
	m   *Manager
	gen uint64
}

func (e *sessionEvents) OnOpen(s transport.Session) { e.m.handleOpen(e.gen, s) }

func (e *sessionEvents) OnMessage(msg transport.Message) { e.m.handleMessage(e.gen, msg) }

func (e *sessionEvents) OnClose(err error) { e.m.handleClose(e.gen, err) }
