package config

import "time"

// Config holds server configuration values. The reliable channel is
// websocket over ListenAddr; the unreliable channel is a UDP socket on
// UDPAddr. Both must bind for the server to start.
type Config struct {
	ListenAddr        string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	UDPAddr           string        `mapstructure:"udp_addr" yaml:"udp_addr"`
	DatabasePath      string        `mapstructure:"db_path" yaml:"db_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	TokenSecret       string        `mapstructure:"token_secret" yaml:"token_secret"`
	TokenTTL          time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ListenAddr:        ":8080",
		UDPAddr:           ":8081",
		DatabasePath:      "scenesync.db",
		LogLevel:          "info",
		TokenSecret:       "change-me",
		TokenTTL:          time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}
