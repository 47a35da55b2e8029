package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"stompgofer/internal/stomp"
)

// WSDialer opens STOMP sessions over gorilla WebSocket connections
type WSDialer struct {
	opts   Options
	logger zerolog.Logger
}

// NewWSDialer creates a dialer for the broker at opts.URL
func NewWSDialer(opts Options, logger zerolog.Logger) *WSDialer {
	opts.applyDefaults()
	if opts.Host == "" {
		if u, err := url.Parse(opts.URL); err == nil {
			opts.Host = u.Hostname()
		}
	}
	return &WSDialer{
		opts:   opts,
		logger: logger.With().Str("component", "transport").Logger(),
	}
}

// Dial connects the WebSocket and writes the CONNECT frame with the bearer token, if any
func (d *WSDialer) Dial(ctx context.Context, token string, events Events) (Session, error) {
	d.logger.Info().Str("url", d.opts.URL).Bool("authenticated", token != "").Msg("WebSocket connecting")
	dialer := websocket.Dialer{
		HandshakeTimeout: d.opts.HandshakeTimeout,
		Subprotocols:     stomp.Subprotocols,
	}
	conn, _, err := dialer.DialContext(ctx, d.opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect WebSocket: %w", err)
	}

	s := newWSSession(conn, d.opts, events, d.logger)
	connect := stomp.NewConnect(d.opts.Host, token, d.opts.HeartbeatOutgoing, d.opts.HeartbeatIncoming)
	if err := s.write(connect); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send CONNECT: %w", err)
	}
	// CONNECTED must arrive within the handshake timeout
	conn.SetReadDeadline(time.Now().Add(d.opts.HandshakeTimeout))

	go s.dispatchWorker()
	go s.readLoop()
	return s, nil
}

// wsSession owns a single WebSocket connection carrying one STOMP session
type wsSession struct {
	conn   *websocket.Conn
	opts   Options
	events Events
	logger zerolog.Logger

	writeMu sync.Mutex

	// readWindow is the allowed silence on the connection in ns; 0 disables the deadline
	readWindow atomic.Int64
	connected  atomic.Bool
	closed     atomic.Bool

	eventChan chan Message

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newWSSession(conn *websocket.Conn, opts Options, events Events, logger zerolog.Logger) *wsSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &wsSession{
		conn:      conn,
		opts:      opts,
		events:    events,
		logger:    logger,
		eventChan: make(chan Message, opts.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Subscribe sends SUBSCRIBE for destination under the given transport-level id
func (s *wsSession) Subscribe(destination, id string) error {
	if err := s.write(stomp.NewSubscribe(destination, id)); err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", destination, err)
	}
	s.logger.Debug().Str("destination", destination).Str("id", id).Msg("subscribed")
	return nil
}

// Unsubscribe sends UNSUBSCRIBE for a transport-level id
func (s *wsSession) Unsubscribe(id string) error {
	if err := s.write(stomp.NewUnsubscribe(id)); err != nil {
		return fmt.Errorf("failed to unsubscribe %s: %w", id, err)
	}
	s.logger.Debug().Str("id", id).Msg("unsubscribed")
	return nil
}

// Send writes a SEND frame
func (s *wsSession) Send(destination, contentType string, body []byte) error {
	if err := s.write(stomp.NewSend(destination, contentType, body)); err != nil {
		return fmt.Errorf("failed to send to %s: %w", destination, err)
	}
	return nil
}

// Close sends DISCONNECT and closes the connection without reporting OnClose
func (s *wsSession) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.connected.Load() {
		if err := s.write(stomp.NewDisconnect("")); err != nil {
			s.logger.Debug().Err(err).Msg("DISCONNECT write failed")
		}
	}
	s.teardown()
	s.logger.Info().Msg("WebSocket disconnected")
	return nil
}

func (s *wsSession) write(f *frame.Frame) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}
	data, err := stomp.Encode(f)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSession) teardown() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.conn.Close()
	})
}

// fail tears the session down and reports err unless Close was called first
func (s *wsSession) fail(err error) {
	if s.ctx.Err() != nil {
		return
	}
	s.teardown()
	if s.closed.Swap(true) {
		return
	}
	s.logger.Warn().Err(err).Msg("WebSocket connection lost")
	s.events.OnClose(err)
}

func (s *wsSession) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				err = ErrHeartbeatTimeout
			}
			s.fail(err)
			return
		}
		if window := time.Duration(s.readWindow.Load()); window > 0 {
			s.conn.SetReadDeadline(time.Now().Add(window))
		}

		frames, err := stomp.Decode(data)
		if err != nil {
			s.logger.Warn().Err(err).Int("len", len(data)).Msg("ws frame parse error")
		}
		for _, f := range frames {
			if !s.handleFrame(f) {
				return
			}
		}
	}
}

// handleFrame returns false once the session has ended
func (s *wsSession) handleFrame(f *frame.Frame) bool {
	switch f.Command {
	case frame.CONNECTED:
		s.onConnected(f)
	case frame.MESSAGE:
		msg := Message{
			Destination:    f.Header.Get(frame.Destination),
			SubscriptionID: f.Header.Get(frame.Subscription),
			MessageID:      f.Header.Get(frame.MessageId),
			ContentType:    f.Header.Get(frame.ContentType),
			Body:           f.Body,
		}
		select {
		case <-s.ctx.Done():
			return false
		case s.eventChan <- msg:
		default:
			s.logger.Warn().Str("destination", msg.Destination).Msg("event queue full, dropping message")
		}
	case frame.ERROR:
		s.fail(fmt.Errorf("%w: %s", ErrBrokerError, stomp.ErrorText(f)))
		return false
	case frame.RECEIPT:
		s.logger.Debug().Str("receipt", f.Header.Get(frame.ReceiptId)).Msg("receipt")
	default:
		s.logger.Debug().Str("command", f.Command).Msg("ignoring frame")
	}
	return true
}

func (s *wsSession) onConnected(f *frame.Frame) {
	outgoing, incoming, err := stomp.NegotiateHeartBeat(s.opts.HeartbeatOutgoing, s.opts.HeartbeatIncoming, f.Header.Get(frame.HeartBeat))
	if err != nil {
		s.logger.Warn().Err(err).Msg("heart-beat negotiation failed, heart-beats disabled")
	}
	if incoming > 0 {
		window := incoming * heartbeatTolerance
		s.readWindow.Store(int64(window))
		s.conn.SetReadDeadline(time.Now().Add(window))
	} else {
		s.conn.SetReadDeadline(time.Time{})
	}
	if outgoing > 0 {
		go s.pingLoop(outgoing)
	}
	s.connected.Store(true)
	s.logger.Info().
		Str("version", f.Header.Get(frame.Version)).
		Dur("heartbeatOut", outgoing).
		Dur("heartbeatIn", incoming).
		Msg("STOMP session connected")
	s.events.OnOpen(s)
}

func (s *wsSession) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.write(nil); err != nil {
				s.logger.Debug().Err(err).Msg("heart-beat write failed")
				s.fail(err)
				return
			}
		}
	}
}

func (s *wsSession) dispatchWorker() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.eventChan:
			s.events.OnMessage(msg)
		}
	}
}
