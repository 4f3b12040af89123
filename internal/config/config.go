// Package config handles server configuration loading and validation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// DefaultNodeURI is the operator node's canonical peering address, sent to
// users as the remediation target when a peer connection cannot be
// established.
const DefaultNodeURI = "0331f80652fb840239df8dc99205792bba2e559a05469915804c08420230e23c7c@lightningpowerusers.com:9735"

// Config is the top-level server configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Node      NodeConfig      `json:"node"`
	Storage   StorageConfig   `json:"storage"`
	Session   SessionConfig   `json:"session"`
	Logging   LoggingConfig   `json:"logging"`
	RateLimit RateLimitConfig `json:"rate_limit,omitempty"`
}

// ServerConfig defines the WebSocket listener settings.
type ServerConfig struct {
	Addr           string   `json:"addr"`                      // e.g. ":8765"
	TLSCert        string   `json:"tls_cert,omitempty"`
	TLSKey         string   `json:"tls_key,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"` // WebSocket origin check; default any
}

// NodeConfig defines how the server reaches the operator's Lightning node.
type NodeConfig struct {
	RESTURL      string `json:"rest_url"`      // e.g. "https://127.0.0.1:8080"
	TLSCertPath  string `json:"tls_cert_path,omitempty"`
	MacaroonPath string `json:"macaroon_path"`
	URI          string `json:"uri,omitempty"` // canonical pubkey@host:port shown to users
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Driver string `json:"driver"` // "sqlite" (default) or "postgres"
	DSN    string `json:"dsn"`    // e.g. "lpu.db" or ":memory:"
}

// SessionConfig defines workflow timeouts and frame limits.
type SessionConfig struct {
	ConnectTimeout  Duration `json:"connect_timeout,omitempty"` // peer connect RPC; default 3s
	InvoiceTimeout  Duration `json:"invoice_timeout,omitempty"` // invoice create/lookup RPC; default 10s
	MaxMessageBytes int64    `json:"max_message_bytes,omitempty"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"` // "json" or "text"
}

// RateLimitConfig bounds inbound frames per client connection.
type RateLimitConfig struct {
	MessagesPerSecond float64 `json:"messages_per_second,omitempty"` // default 10
	Burst             int     `json:"burst,omitempty"`               // default 20
}

// Duration is a JSON-friendly time.Duration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		dur, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		d.Duration = dur
	case float64:
		d.Duration = time.Duration(val) * time.Second
	default:
		return fmt.Errorf("invalid duration: %v", v)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Node.RESTURL == "" {
		return fmt.Errorf("node.rest_url is required")
	}
	if c.Node.MacaroonPath == "" {
		return fmt.Errorf("node.macaroon_path is required")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("server.tls_cert and server.tls_key must be set together")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8765"
	}
	if c.Node.URI == "" {
		c.Node.URI = DefaultNodeURI
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.DSN == "" {
		c.Storage.DSN = "lpu.db"
	}
	if c.Session.ConnectTimeout.Duration == 0 {
		c.Session.ConnectTimeout.Duration = 3 * time.Second
	}
	if c.Session.InvoiceTimeout.Duration == 0 {
		c.Session.InvoiceTimeout.Duration = 10 * time.Second
	}
	if c.Session.MaxMessageBytes == 0 {
		c.Session.MaxMessageBytes = 64 * 1024 // 64KB
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.RateLimit.MessagesPerSecond == 0 {
		c.RateLimit.MessagesPerSecond = 10
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
}
