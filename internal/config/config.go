// Package config loads the server configuration from an optional YAML file,
// environment variables and built-in defaults.
package config

import "time"

// Config is the complete process configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	TLS     TLSConfig     `yaml:"tls"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Daemon  DaemonConfig  `yaml:"daemon"`
}

// ServerConfig configures the listener and the reactor.
type ServerConfig struct {
	// ListenAddress is the host:port to bind. Empty picks the mode default:
	// ":5443" in the foreground, ":443" as a daemon.
	ListenAddress   string        `yaml:"listen_address"`
	Backlog         int           `yaml:"backlog"`
	EventCapacity   int           `yaml:"event_capacity"`
	Vectored        bool          `yaml:"vectored"`
	MaxBatch        int           `yaml:"max_batch"`
	MaxRequestBytes int           `yaml:"max_request_bytes"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
}

// TLSConfig names the TLS material.
type TLSConfig struct {
	CertFile     string   `yaml:"cert_file"`
	KeyFile      string   `yaml:"key_file"`
	OCSPFile     string   `yaml:"ocsp_file"`
	MinVersion   string   `yaml:"min_version"`
	CipherSuites []string `yaml:"cipher_suites"`
	// KeyLogFile receives NSS key log lines. Set from SSLKEYLOGFILE.
	KeyLogFile string `yaml:"key_log_file"`
	// Watch reloads the material when the files change.
	Watch bool `yaml:"watch"`
}

// HTTPConfig configures the file server.
type HTTPConfig struct {
	DocumentRoot string `yaml:"document_root"`
	Index        string `yaml:"index"`
	MaxFileSize  int64  `yaml:"max_file_size"`
}

// LogConfig configures zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // console, json or auto
	// File switches output to a rotating file. Daemon mode defaults it to ./log.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig configures the prometheus endpoint. An empty ListenAddress disables it.
type MetricsConfig struct {
	ListenAddress string `yaml:"listen_address"`
	Path          string `yaml:"path"`
}

// DaemonConfig configures --daemon mode.
type DaemonConfig struct {
	WorkingDirectory string `yaml:"working_directory"`
	PIDFile          string `yaml:"pid_file"`
	LogFile          string `yaml:"log_file"`
	// User and Group are the identities to drop to once the listener is bound.
	// Empty keeps the current identity.
	User  string `yaml:"user"`
	Group string `yaml:"group"`
}

// ListenAddress returns the configured address, or the mode default.
func (c *Config) ListenAddress(daemon bool) string {
	if c.Server.ListenAddress != "" {
		return c.Server.ListenAddress
	}
	if daemon {
		return DefaultDaemonAddress
	}
	return DefaultListenAddress
}
