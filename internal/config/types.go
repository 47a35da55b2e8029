package config

import "time"

// Config represents the main configuration structure
type Config struct {
	BrokerURL            string `json:"brokerUrl" toml:"brokerUrl" env:"BROKER_URL"`
	Host                 string `json:"host" toml:"host" env:"HOST"` // STOMP host header, defaults to the broker hostname
	Token                string `json:"token" toml:"token" env:"TOKEN"`
	UserEmail            string `json:"userEmail" toml:"userEmail" env:"USER_EMAIL"`
	LogLevel             string `json:"logLevel" toml:"logLevel" env:"LOG_LEVEL"`
	HeartbeatOutgoing    int    `json:"heartbeatOutgoing" toml:"heartbeatOutgoing" env:"HEARTBEAT_OUTGOING"`          // ms
	HeartbeatIncoming    int    `json:"heartbeatIncoming" toml:"heartbeatIncoming" env:"HEARTBEAT_INCOMING"`          // ms
	HandshakeTimeout     int    `json:"handshakeTimeout" toml:"handshakeTimeout" env:"HANDSHAKE_TIMEOUT"`             // ms
	WriteTimeout         int    `json:"writeTimeout" toml:"writeTimeout" env:"WRITE_TIMEOUT"`                         // ms
	ConnectTimeout       int    `json:"connectTimeout" toml:"connectTimeout" env:"CONNECT_TIMEOUT"`                   // ms
	ReconnectBaseDelay   int    `json:"reconnectBaseDelay" toml:"reconnectBaseDelay" env:"RECONNECT_BASE_DELAY"`      // ms - first retry delay, doubled per attempt
	MaxReconnectAttempts int    `json:"maxReconnectAttempts" toml:"maxReconnectAttempts" env:"MAX_RECONNECT_ATTEMPTS"`
	MessageQueueSize     int    `json:"messageQueueSize" toml:"messageQueueSize" env:"MESSAGE_QUEUE_SIZE"`
	SlowHandlerThreshold int    `json:"slowHandlerThreshold" toml:"slowHandlerThreshold" env:"SLOW_HANDLER_THRESHOLD"` // ms
	DedupCacheSize       int    `json:"dedupCacheSize" toml:"dedupCacheSize" env:"DEDUP_CACHE_SIZE"`
}

// EnvPrefix prefixes every environment override
const EnvPrefix = "STOMPGOFER_"

// Default values
const (
	DefaultBrokerURL            = "ws://localhost:8080/ws"
	DefaultLogLevel             = "info"
	DefaultHeartbeatOutgoing    = 10000 // ms
	DefaultHeartbeatIncoming    = 10000 // ms
	DefaultHandshakeTimeout     = 10000 // ms
	DefaultWriteTimeout         = 10000 // ms
	DefaultConnectTimeout       = 30000 // ms
	DefaultReconnectBaseDelay   = 3000  // ms
	DefaultMaxReconnectAttempts = 5
	MaxReconnectAttemptsLimit   = 30
	DefaultMessageQueueSize     = 1024
	DefaultSlowHandlerThreshold = 1000 // ms
	DefaultDedupCacheSize       = 1000
)

// GetHeartbeatOutgoingDuration returns the outgoing heart-beat interval as time.Duration
func (c *Config) GetHeartbeatOutgoingDuration() time.Duration {
	return time.Duration(c.HeartbeatOutgoing) * time.Millisecond
}

// GetHeartbeatIncomingDuration returns the incoming heart-beat interval as time.Duration
func (c *Config) GetHeartbeatIncomingDuration() time.Duration {
	return time.Duration(c.HeartbeatIncoming) * time.Millisecond
}

// GetHandshakeTimeoutDuration returns handshake timeout as time.Duration
func (c *Config) GetHandshakeTimeoutDuration() time.Duration {
	return time.Duration(c.HandshakeTimeout) * time.Millisecond
}

// GetWriteTimeoutDuration returns write timeout as time.Duration
func (c *Config) GetWriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Millisecond
}

// GetConnectTimeoutDuration returns connect timeout as time.Duration
func (c *Config) GetConnectTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Millisecond
}

// GetReconnectBaseDelayDuration returns the base reconnect delay as time.Duration
func (c *Config) GetReconnectBaseDelayDuration() time.Duration {
	return time.Duration(c.ReconnectBaseDelay) * time.Millisecond
}

// GetSlowHandlerThresholdDuration returns slow handler threshold as time.Duration
func (c *Config) GetSlowHandlerThresholdDuration() time.Duration {
	return time.Duration(c.SlowHandlerThreshold) * time.Millisecond
}
