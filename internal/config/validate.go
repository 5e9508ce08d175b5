package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
)

// FieldError is a validation failure of one configuration field.
type FieldError struct {
	Field   string // dotted yaml path, e.g. "tls.cert_file"
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "configuration validation failed: " + e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:", len(e.Errors))
	for _, err := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Validate checks cfg and reports every problem at once.
func Validate(cfg *Config) error {
	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	s := cfg.Server
	if s.ListenAddress != "" {
		if _, _, err := net.SplitHostPort(s.ListenAddress); err != nil {
			add("server.listen_address", "invalid address %q: %v", s.ListenAddress, err)
		}
	}
	if s.Backlog <= 0 {
		add("server.backlog", "must be positive")
	}
	if s.EventCapacity <= 0 {
		add("server.event_capacity", "must be positive")
	}
	if s.MaxBatch <= 0 {
		add("server.max_batch", "must be positive")
	}
	if s.MaxRequestBytes <= 0 {
		add("server.max_request_bytes", "must be positive")
	}
	if s.IdleTimeout < 0 {
		add("server.idle_timeout", "must not be negative")
	}
	if s.IdleTimeout > 0 && s.SweepInterval <= 0 {
		add("server.sweep_interval", "must be positive when idle_timeout is set")
	}

	if cfg.TLS.CertFile == "" {
		add("tls.cert_file", "is required")
	}
	if cfg.TLS.KeyFile == "" {
		add("tls.key_file", "is required")
	}
	switch cfg.TLS.MinVersion {
	case "", "1.2", "1.3":
	default:
		add("tls.min_version", "must be 1.2 or 1.3, got %q", cfg.TLS.MinVersion)
	}

	if cfg.HTTP.DocumentRoot == "" {
		add("http.document_root", "is required")
	}
	if cfg.HTTP.MaxFileSize < 0 {
		add("http.max_file_size", "must not be negative")
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		add("log.level", "unknown level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "console", "json", "auto":
	default:
		add("log.format", "must be console, json or auto, got %q", cfg.Log.Format)
	}

	if cfg.Metrics.ListenAddress != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.ListenAddress); err != nil {
			add("metrics.listen_address", "invalid address %q: %v", cfg.Metrics.ListenAddress, err)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			add("metrics.path", "must start with /")
		}
	}

	if cfg.Daemon.PIDFile == "" {
		add("daemon.pid_file", "is required")
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
