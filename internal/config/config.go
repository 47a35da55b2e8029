package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

// Load reads the configuration file (JSON, or TOML for a .toml extension), applies
// STOMPGOFER_* environment overrides, fills defaults and validates the result.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.BrokerURL == "" {
		cfg.BrokerURL = DefaultBrokerURL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.HeartbeatOutgoing == 0 {
		cfg.HeartbeatOutgoing = DefaultHeartbeatOutgoing
	}
	if cfg.HeartbeatIncoming == 0 {
		cfg.HeartbeatIncoming = DefaultHeartbeatIncoming
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.MessageQueueSize == 0 {
		cfg.MessageQueueSize = DefaultMessageQueueSize
	}
	if cfg.SlowHandlerThreshold == 0 {
		cfg.SlowHandlerThreshold = DefaultSlowHandlerThreshold
	}
	if cfg.DedupCacheSize == 0 {
		cfg.DedupCacheSize = DefaultDedupCacheSize
	}
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	u, err := url.Parse(cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("brokerUrl: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("brokerUrl must use ws or wss scheme, got '%s'", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("brokerUrl must include a host")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	if cfg.HeartbeatOutgoing < 0 {
		return fmt.Errorf("heartbeatOutgoing must be non-negative")
	}

	if cfg.HeartbeatIncoming < 0 {
		return fmt.Errorf("heartbeatIncoming must be non-negative")
	}

	if cfg.HandshakeTimeout < 0 || cfg.WriteTimeout < 0 || cfg.ConnectTimeout < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}

	if cfg.ReconnectBaseDelay < 0 {
		return fmt.Errorf("reconnectBaseDelay must be non-negative")
	}

	if cfg.MaxReconnectAttempts < 0 || cfg.MaxReconnectAttempts > MaxReconnectAttemptsLimit {
		return fmt.Errorf("maxReconnectAttempts must be between 0 and %d", MaxReconnectAttemptsLimit)
	}

	if cfg.MessageQueueSize < 0 {
		return fmt.Errorf("messageQueueSize must be non-negative")
	}

	if cfg.DedupCacheSize < 0 {
		return fmt.Errorf("dedupCacheSize must be non-negative")
	}

	return nil
}
