package config

import "time"

const (
	DefaultListenAddress = ":5443"
	DefaultDaemonAddress = ":443"
)

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Backlog:         1024,
			EventCapacity:   256,
			Vectored:        true,
			MaxBatch:        64,
			MaxRequestBytes: 64 << 10,
			IdleTimeout:     0,
			SweepInterval:   time.Second,
		},
		TLS: TLSConfig{
			CertFile:   "cert/certificate.pem",
			KeyFile:    "cert/key.pem",
			MinVersion: "1.2",
		},
		HTTP: HTTPConfig{
			DocumentRoot: "public_html",
			Index:        "/index.html",
			MaxFileSize:  8 << 20,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
		Daemon: DaemonConfig{
			WorkingDirectory: ".",
			PIDFile:          "./pidfile",
			LogFile:          "./log",
		},
	}
}
