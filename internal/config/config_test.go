package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NunoDasNeves/mini-https-server/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "cert/certificate.pem", cfg.TLS.CertFile)
	assert.Equal(t, "cert/key.pem", cfg.TLS.KeyFile)
	assert.Equal(t, "public_html", cfg.HTTP.DocumentRoot)
	assert.Equal(t, "./pidfile", cfg.Daemon.PIDFile)
	assert.Equal(t, "./log", cfg.Daemon.LogFile)
	assert.True(t, cfg.Server.Vectored)
	assert.Zero(t, cfg.Server.IdleTimeout)
	assert.Equal(t, ":5443", cfg.ListenAddress(false))
	assert.Equal(t, ":443", cfg.ListenAddress(true))
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "127.0.0.1:8443"
  vectored: false
  idle_timeout: 30s
tls:
  cert_file: /etc/ssl/site.pem
  cipher_suites: [TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256]
http:
  document_root: /srv/www
log:
  level: debug
  format: json
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8443", cfg.ListenAddress(true))
	assert.False(t, cfg.Server.Vectored)
	assert.Equal(t, 30*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, "/etc/ssl/site.pem", cfg.TLS.CertFile)
	assert.Equal(t, "cert/key.pem", cfg.TLS.KeyFile, "unset fields keep their default")
	assert.Equal(t, []string{"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256"}, cfg.TLS.CipherSuites)
	assert.Equal(t, "/srv/www", cfg.HTTP.DocumentRoot)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 1024, cfg.Server.Backlog)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = config.Load(writeConfig(t, "server: [not, a, map]"))
	assert.ErrorContains(t, err, "failed to parse")

	_, err = config.Load(writeConfig(t, "log:\n  level: loud\n  format: xml\n"))
	var verr config.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 2)
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "log.format")
}

func TestValidate(t *testing.T) {
	cfg := config.Defaults()
	require.NoError(t, config.Validate(cfg))

	cfg.Server.ListenAddress = "no-port"
	cfg.Server.Backlog = 0
	cfg.Server.IdleTimeout = time.Second
	cfg.Server.SweepInterval = 0
	cfg.TLS.CertFile = ""
	cfg.TLS.MinVersion = "1.0"
	cfg.HTTP.DocumentRoot = ""
	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Path = "metrics"

	var verr config.ValidationError
	require.ErrorAs(t, config.Validate(cfg), &verr)
	fields := make([]string, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{
		"server.listen_address",
		"server.backlog",
		"server.sweep_interval",
		"tls.cert_file",
		"tls.min_version",
		"http.document_root",
		"metrics.path",
	}, fields)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MINIHTTPS_LISTEN_ADDRESS", ":9443")
	t.Setenv("MINIHTTPS_DOCUMENT_ROOT", "/var/www")
	t.Setenv("MINIHTTPS_IDLE_TIMEOUT", "1m")
	t.Setenv("MINIHTTPS_VECTORED", "false")
	t.Setenv("MINIHTTPS_MAX_REQUEST_BYTES", "4096")
	t.Setenv("SSLKEYLOGFILE", "/tmp/keys.log")

	cfg, err := config.LoadWithEnv("")
	require.NoError(t, err)
	assert.Equal(t, ":9443", cfg.ListenAddress(false))
	assert.Equal(t, "/var/www", cfg.HTTP.DocumentRoot)
	assert.Equal(t, time.Minute, cfg.Server.IdleTimeout)
	assert.False(t, cfg.Server.Vectored)
	assert.Equal(t, 4096, cfg.Server.MaxRequestBytes)
	assert.Equal(t, "/tmp/keys.log", cfg.TLS.KeyLogFile)
}

func TestApplyEnv_BadValues(t *testing.T) {
	t.Setenv("MINIHTTPS_IDLE_TIMEOUT", "soon")
	assert.Error(t, config.ApplyEnv(config.Defaults()))

	t.Setenv("MINIHTTPS_IDLE_TIMEOUT", "-1s")
	_, err := config.LoadWithEnv("")
	assert.ErrorContains(t, err, "server.idle_timeout")
}
