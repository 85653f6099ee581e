package config

import "time"

// Broker modes.
const (
	BrokerLocal = "local"
	BrokerRedis = "redis"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// MaxMessageBytes caps a single inbound websocket frame.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	// OutboundBuffer is the per-connection queue of events waiting to be written.
	OutboundBuffer     int           `mapstructure:"outbound_buffer" yaml:"outbound_buffer"`
	PersistTimeout     time.Duration `mapstructure:"persist_timeout" yaml:"persist_timeout"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	MaxRoomLength      int           `mapstructure:"max_room_length" yaml:"max_room_length"`
	HistoryLimit       int           `mapstructure:"history_limit" yaml:"history_limit"`

	Broker BrokerConfig `mapstructure:"broker" yaml:"broker"`
}

// BrokerConfig selects how broadcasts reach group members.
type BrokerConfig struct {
	Mode          string `mapstructure:"mode" yaml:"mode"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	ChannelPrefix string `mapstructure:"channel_prefix" yaml:"channel_prefix"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		DatabasePath:       "rentchat.db",
		LogLevel:           "info",
		MaxMessageBytes:    64 << 10,
		OutboundBuffer:     64,
		PersistTimeout:     5 * time.Second,
		RateLimitPerMinute: 120,
		MaxRoomLength:      100,
		HistoryLimit:       50,
		Broker: BrokerConfig{
			Mode:          BrokerLocal,
			RedisAddr:     "localhost:6379",
			ChannelPrefix: "rentchat:",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Broker.Mode != "" {
		c.Broker.Mode = other.Broker.Mode
	}
	if other.Broker.RedisAddr != "" {
		c.Broker.RedisAddr = other.Broker.RedisAddr
	}
}
