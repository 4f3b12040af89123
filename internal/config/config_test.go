package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	configJSON := `{
		"server": {
			"addr": ":9000",
			"allowed_origins": ["https://lightningpowerusers.com"]
		},
		"node": {
			"rest_url": "https://127.0.0.1:8080",
			"tls_cert_path": "/lnd/tls.cert",
			"macaroon_path": "/lnd/admin.macaroon",
			"uri": "02aa@example.com:9735"
		},
		"storage": {
			"driver": "sqlite",
			"dsn": "test.db"
		},
		"session": {
			"connect_timeout": "5s",
			"invoice_timeout": 15,
			"max_message_bytes": 32768
		},
		"logging": {
			"level": "debug",
			"format": "text"
		},
		"rate_limit": {
			"messages_per_second": 20,
			"burst": 40
		}
	}`

	path := writeTempConfig(t, configJSON)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr: got %q, want %q", cfg.Server.Addr, ":9000")
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://lightningpowerusers.com" {
		t.Errorf("Server.AllowedOrigins: got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Node.RESTURL != "https://127.0.0.1:8080" {
		t.Errorf("Node.RESTURL: got %q", cfg.Node.RESTURL)
	}
	if cfg.Node.URI != "02aa@example.com:9735" {
		t.Errorf("Node.URI: got %q", cfg.Node.URI)
	}
	if cfg.Session.ConnectTimeout.Duration != 5*time.Second {
		t.Errorf("Session.ConnectTimeout: got %v", cfg.Session.ConnectTimeout.Duration)
	}
	// Bare numbers are seconds.
	if cfg.Session.InvoiceTimeout.Duration != 15*time.Second {
		t.Errorf("Session.InvoiceTimeout: got %v", cfg.Session.InvoiceTimeout.Duration)
	}
	if cfg.Session.MaxMessageBytes != 32768 {
		t.Errorf("Session.MaxMessageBytes: got %d", cfg.Session.MaxMessageBytes)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging: got %+v", cfg.Logging)
	}
	if cfg.RateLimit.MessagesPerSecond != 20 || cfg.RateLimit.Burst != 40 {
		t.Errorf("RateLimit: got %+v", cfg.RateLimit)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, `{
		"node": {
			"rest_url": "https://127.0.0.1:8080",
			"macaroon_path": "/lnd/admin.macaroon"
		}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":8765" {
		t.Errorf("default Addr: got %q", cfg.Server.Addr)
	}
	if cfg.Node.URI != DefaultNodeURI {
		t.Errorf("default Node.URI: got %q", cfg.Node.URI)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN != "lpu.db" {
		t.Errorf("default Storage: got %+v", cfg.Storage)
	}
	if cfg.Session.ConnectTimeout.Duration != 3*time.Second {
		t.Errorf("default ConnectTimeout: got %v", cfg.Session.ConnectTimeout.Duration)
	}
	if cfg.Session.InvoiceTimeout.Duration != 10*time.Second {
		t.Errorf("default InvoiceTimeout: got %v", cfg.Session.InvoiceTimeout.Duration)
	}
	if cfg.Session.MaxMessageBytes != 64*1024 {
		t.Errorf("default MaxMessageBytes: got %d", cfg.Session.MaxMessageBytes)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default Logging: got %+v", cfg.Logging)
	}
	if cfg.RateLimit.MessagesPerSecond != 10 || cfg.RateLimit.Burst != 20 {
		t.Errorf("default RateLimit: got %+v", cfg.RateLimit)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"missing rest_url", `{"node": {"macaroon_path": "/m"}}`},
		{"missing macaroon_path", `{"node": {"rest_url": "https://h:8080"}}`},
		{
			"tls cert without key",
			`{"server": {"tls_cert": "/c.pem"}, "node": {"rest_url": "https://h:8080", "macaroon_path": "/m"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempConfig(t, tt.json)
			if _, err := Load(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
