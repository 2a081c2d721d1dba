package main

import (
	"github.com/larkmail/lark/db"
	"github.com/larkmail/lark/logger"
)

// Config is the full server configuration, loaded from TOML and overridable
// by command-line flags.
type Config struct {
	Hostname string            `toml:"hostname"`
	Logging  logger.Config     `toml:"logging"`
	Database db.DatabaseConfig `toml:"database"`
	Servers  ServersConfig     `toml:"servers"`
	Relay    RelayConfig       `toml:"relay"`
}

// ServersConfig groups the listeners.
type ServersConfig struct {
	Debug   bool                `toml:"debug"`
	JMAP    JMAPServerConfig    `toml:"jmap"`
	LMTP    LMTPServerConfig    `toml:"lmtp"`
	Metrics MetricsServerConfig `toml:"metrics"`
}

// JMAPServerConfig configures the JMAP HTTP endpoint.
type JMAPServerConfig struct {
	Start          bool   `toml:"start"`
	Addr           string `toml:"addr"`
	DefaultAccount string `toml:"default_account"`
	TLS            bool   `toml:"tls"`
	TLSCertFile    string `toml:"tls_cert_file"`
	TLSKeyFile     string `toml:"tls_key_file"`
}

// LMTPServerConfig configures the inbound LMTP listener.
type LMTPServerConfig struct {
	Start          bool   `toml:"start"`
	Addr           string `toml:"addr"`
	MaxMessageSize int64  `toml:"max_message_size"`
}

// MetricsServerConfig configures the Prometheus scrape endpoint.
type MetricsServerConfig struct {
	Start bool   `toml:"start"`
	Addr  string `toml:"addr"`
}

// RelayConfig configures outbound submission of vacation auto-replies.
type RelayConfig struct {
	Addr string `toml:"addr"`
}

func newDefaultConfig() Config {
	return Config{
		Hostname: "localhost",
		Logging: logger.Config{
			Output: "stderr",
			Format: "console",
			Level:  "info",
		},
		Database: db.DatabaseConfig{
			Host: "localhost",
			Port: "5432",
			User: "lark",
			Name: "lark",
		},
		Servers: ServersConfig{
			JMAP:    JMAPServerConfig{Start: true, Addr: ":8080"},
			LMTP:    LMTPServerConfig{Start: true, Addr: ":24"},
			Metrics: MetricsServerConfig{Start: false, Addr: ":9090"},
		},
		Relay: RelayConfig{Addr: "localhost:25"},
	}
}
