// Package config loads and validates the ingestion service's YAML
// configuration, following the same struct-of-sub-configs and
// LoadConfig/Validate shape the rest of the stack uses for its own
// service config.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level ServiceConfig.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Queue   QueueConfig   `yaml:"queue"`
	Auth    AuthConfig    `yaml:"auth"`
	Output  OutputConfig  `yaml:"output"`
	Keys    KeysConfig    `yaml:"keys"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	GeoIP   GeoIPConfig   `yaml:"geoip"`
	MCP     MCPConfig     `yaml:"mcp"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen             string `yaml:"listen"`
	MaxUploadBytes     int64  `yaml:"max_upload_bytes"`
	RequestTimeoutSecs int    `yaml:"request_timeout_seconds"`
	TLSCertPath        string `yaml:"tls_cert_path"`
	TLSKeyPath         string `yaml:"tls_key_path"`
}

// TLSEnabled reports whether both halves of a cert/key pair are
// configured. The listener runs plain HTTP until both are set.
func (c ServerConfig) TLSEnabled() bool {
	return c.TLSCertPath != "" && c.TLSKeyPath != ""
}

// QueueConfig controls the job queue and worker pool.
type QueueConfig struct {
	Workers        int `yaml:"workers"`
	Capacity       int `yaml:"capacity"`
	JobTimeoutSecs int `yaml:"job_timeout_seconds"`
	JobTTLSeconds  int `yaml:"job_ttl_seconds"`
}

// AuthConfig controls ingestion-endpoint authentication.
type AuthConfig struct {
	Tokens     []string `yaml:"tokens"`      // accepted Bearer / X-API-Key values
	AdminToken string   `yaml:"admin_token"` // gates POST /api/v1/admin/keys
}

// OutputConfig controls where decoded artifacts are written.
type OutputConfig struct {
	Root           string `yaml:"root"`
	HookScriptPath string `yaml:"hook_script_path"`
}

// KeysConfig seeds the KeyTable at startup.
type KeysConfig struct {
	Specs []string `yaml:"key_specs"` // "KEYID:HEX" entries
}

// MQTTConfig controls the optional job-event publisher.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
	TLS         MQTTTLSConfig `yaml:"tls"`
}

// MQTTTLSConfig controls TLS for the MQTT connection.
type MQTTTLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// GeoIPConfig controls optional uploader-IP geolocation.
type GeoIPConfig struct {
	DatabasePath string   `yaml:"database_path"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// MCPConfig controls the optional Model Context Protocol query server.
type MCPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Transport string `yaml:"transport"` // "stdio" or "http"
	Listen    string `yaml:"listen"`    // used when transport == "http"
}

// LoggingConfig controls service-wide logging.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// Load reads and parses filename, then applies defaults and validates
// the result.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 64 << 20 // 64 MiB
	}
	if c.Server.RequestTimeoutSecs == 0 {
		c.Server.RequestTimeoutSecs = 30
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 4
	}
	if c.Queue.Capacity == 0 {
		c.Queue.Capacity = 64
	}
	if c.Queue.JobTimeoutSecs == 0 {
		c.Queue.JobTimeoutSecs = 60
	}
	if c.Output.Root == "" {
		c.Output.Root = "./output"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "p25ingest"
	}
	if c.MCP.Transport == "" {
		c.MCP.Transport = "stdio"
	}
}

// Validate checks required fields and sane ranges, mirroring the
// teacher's terse field-by-field Validate style.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("config: server.listen is required")
	}
	if c.Queue.Workers < 1 {
		return fmt.Errorf("config: queue.workers must be at least 1")
	}
	if c.Queue.Capacity < 1 {
		return fmt.Errorf("config: queue.capacity must be at least 1")
	}
	if (c.Server.TLSCertPath == "") != (c.Server.TLSKeyPath == "") {
		return fmt.Errorf("config: server.tls_cert_path and server.tls_key_path must be set together")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("config: mqtt.broker is required when mqtt.enabled is true")
	}
	if c.MCP.Enabled && c.MCP.Transport == "http" && c.MCP.Listen == "" {
		return fmt.Errorf("config: mcp.listen is required when mcp.transport is http")
	}
	return nil
}

// RequestTimeout returns the configured request timeout as a
// time.Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSecs) * time.Second
}

// JobTimeout returns the configured per-job processing timeout. Zero
// disables the timeout.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Queue.JobTimeoutSecs) * time.Second
}

// JobTTL returns the configured tracker retention TTL. Zero means
// retain indefinitely.
func (c *Config) JobTTL() time.Duration {
	return time.Duration(c.Queue.JobTTLSeconds) * time.Second
}
