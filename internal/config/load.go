package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MINIHTTPS_"

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path yields the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv is Load followed by ApplyEnv and a second validation.
// Environment variables take precedence over the file.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("after environment overrides: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from MINIHTTPS_* variables and SSLKEYLOGFILE.
func ApplyEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	str("TLS_CERT_FILE", &cfg.TLS.CertFile)
	str("TLS_KEY_FILE", &cfg.TLS.KeyFile)
	str("TLS_OCSP_FILE", &cfg.TLS.OCSPFile)
	str("TLS_MIN_VERSION", &cfg.TLS.MinVersion)
	str("DOCUMENT_ROOT", &cfg.HTTP.DocumentRoot)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("LOG_FILE", &cfg.Log.File)
	str("METRICS_LISTEN_ADDRESS", &cfg.Metrics.ListenAddress)
	str("DAEMON_USER", &cfg.Daemon.User)
	str("DAEMON_GROUP", &cfg.Daemon.Group)
	str("DAEMON_PID_FILE", &cfg.Daemon.PIDFile)

	if v, ok := os.LookupEnv("SSLKEYLOGFILE"); ok {
		cfg.TLS.KeyLogFile = v
	}

	if v, ok := os.LookupEnv(EnvPrefix + "IDLE_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sIDLE_TIMEOUT: %w", EnvPrefix, err)
		}
		cfg.Server.IdleTimeout = d
	}
	if v, ok := os.LookupEnv(EnvPrefix + "MAX_REQUEST_BYTES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_REQUEST_BYTES: %w", EnvPrefix, err)
		}
		cfg.Server.MaxRequestBytes = n
	}
	if v, ok := os.LookupEnv(EnvPrefix + "VECTORED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sVECTORED: %w", EnvPrefix, err)
		}
		cfg.Server.Vectored = b
	}
	return nil
}
