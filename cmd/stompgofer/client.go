package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stompgofer/internal/config"
	"stompgofer/internal/realtime"
	"stompgofer/internal/transport"
)

// newClient builds a real-time client from cfg
func newClient(cfg *config.Config, logger zerolog.Logger) *realtime.Client {
	dialer := transport.NewWSDialer(transport.Options{
		URL:               cfg.BrokerURL,
		Host:              cfg.Host,
		HeartbeatOutgoing: cfg.GetHeartbeatOutgoingDuration(),
		HeartbeatIncoming: cfg.GetHeartbeatIncomingDuration(),
		HandshakeTimeout:  cfg.GetHandshakeTimeoutDuration(),
		WriteTimeout:      cfg.GetWriteTimeoutDuration(),
		QueueSize:         cfg.MessageQueueSize,
	}, logger)

	return realtime.New(realtime.Config{
		ManagerConfig: realtime.ManagerConfig{
			ReconnectBaseDelay:   cfg.GetReconnectBaseDelayDuration(),
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
			ConnectTimeout:       cfg.GetConnectTimeoutDuration(),
		},
		SlowHandlerThreshold: cfg.GetSlowHandlerThresholdDuration(),
	}, dialer, logger)
}

// connectBudget is the longest a connect can take before the retries run out: one
// connect timeout per dial plus every scheduled reconnect delay
func connectBudget(cfg *config.Config) time.Duration {
	budget := cfg.GetConnectTimeoutDuration()
	for attempt := 1; attempt <= cfg.MaxReconnectAttempts; attempt++ {
		budget = saturatingAdd(budget, realtime.ReconnectDelay(cfg.GetReconnectBaseDelayDuration(), attempt))
		budget = saturatingAdd(budget, cfg.GetConnectTimeoutDuration())
	}
	return budget
}

func saturatingAdd(a, b time.Duration) time.Duration {
	if a > realtime.MaxReconnectDelay-b {
		return realtime.MaxReconnectDelay
	}
	return a + b
}

// connectAndWait connects c and blocks until it is connected, the reconnect budget is
// spent or ctx is done
func connectAndWait(ctx context.Context, c *realtime.Client, token string) error {
	done := make(chan error, 1)
	c.OnStateChange(func(ch realtime.StateChange) {
		var result error
		switch {
		case ch.To == realtime.StateConnected:
		case errors.Is(ch.Err, realtime.ErrReconnectExhausted):
			result = ch.Err
		default:
			return
		}
		select {
		case done <- result:
		default:
		}
	})

	c.Connect(token)
	if c.IsConnected() {
		return nil
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for connection: %w", ctx.Err())
	}
}
