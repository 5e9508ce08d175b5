package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NunoDasNeves/mini-https-server/internal/testcert"
)

func execute(ctx context.Context, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func writeConfig(t *testing.T, certFile, keyFile, root string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf(`server:
  listen_address: "127.0.0.1:0"
tls:
  cert_file: %q
  key_file: %q
http:
  document_root: %q
log:
  level: error
  format: json
`, certFile, keyFile, root)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRootCmd_Version(t *testing.T) {
	out, err := execute(context.Background(), "--version")
	require.NoError(t, err)
	assert.Equal(t, "mini-https-server, version: "+Version+"\n", out)
}

func TestRootCmd_RejectsArguments(t *testing.T) {
	_, err := execute(context.Background(), "serve")
	assert.Error(t, err)

	_, err = execute(context.Background(), "--no-such-flag")
	assert.Error(t, err)
}

func TestRootCmd_MissingCertificateFailsStartup(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, filepath.Join(dir, "missing.pem"), filepath.Join(dir, "missing-key.pem"), dir)

	_, err := execute(context.Background(), "--config", cfg)
	assert.ErrorContains(t, err, "load TLS material")
}

func TestRootCmd_BadConfigFailsStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not, a, map]\n"), 0o600))

	_, err := execute(context.Background(), "--config", path)
	assert.Error(t, err)
}

func TestRootCmd_ServesUntilCancelled(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("the reactor needs epoll")
	}
	dir := t.TempDir()
	certFile, keyFile := testcert.New(t, testcert.Options{}).WriteFiles(t, dir)
	cfg := writeConfig(t, certFile, keyFile, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := execute(ctx, "--config", cfg)
	assert.NoError(t, err)
}

func TestInDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/srv", "log"), inDir("/srv", "./log"))
	assert.Equal(t, "/var/log/x", inDir("/srv", "/var/log/x"))
	assert.Equal(t, "log", inDir("", "log"))
	assert.Equal(t, "", inDir("/srv", ""))
}
