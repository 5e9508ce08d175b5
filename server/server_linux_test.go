//go:build linux

package server_test

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NunoDasNeves/mini-https-server/internal/fileserver"
	"github.com/NunoDasNeves/mini-https-server/internal/testcert"
	"github.com/NunoDasNeves/mini-https-server/server"
)

type liveServer struct {
	srv    *server.Server
	addr   string
	client *tls.Config
}

func startServer(t *testing.T, cfg *server.Config) *liveServer {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("hello"), 0o644))

	pair := testcert.New(t, testcert.Options{})
	if cfg == nil {
		cfg = server.DefaultConfig()
	}
	cfg.ListenAddr = "127.0.0.1:0"

	ln, err := server.Listen(cfg)
	require.NoError(t, err)
	srv, err := server.New(cfg, ln, server.StaticTLS{Config: pair.ServerConfig()}, fileserver.New(root))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
		assert.NoError(t, srv.Close())
	})
	return &liveServer{srv: srv, addr: ln.Addr(), client: pair.ClientConfig()}
}

func (s *liveServer) roundTrip(t *testing.T, request string) string {
	t.Helper()
	conn, err := tls.Dial("tcp", s.addr, s.client)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte(request))
	require.NoError(t, err)
	reply, err := io.ReadAll(conn)
	require.NoError(t, err, "server ends the stream with close_notify")
	return string(reply)
}

func TestServer_EndToEnd(t *testing.T) {
	for _, vectored := range []bool{true, false} {
		cfg := server.DefaultConfig()
		cfg.Vectored = vectored
		live := startServer(t, cfg)

		cases := []struct {
			name    string
			request string
			want    string
		}{
			{"ok", "GET /index.html HTTP/1.1\r\n\r\n", "HTTP/1.1 200 OK\r\nConnection: close\r\n\r\nhello"},
			{"root", "GET / HTTP/1.1\r\n\r\n", "HTTP/1.1 200 OK\r\nConnection: close\r\n\r\nhello"},
			{"missing", "GET /missing.html HTTP/1.1\r\n\r\n", "HTTP/1.1 404 Not Found\r\nConnection: close\r\n\r\n404 - Not found!"},
			{"post", "POST / HTTP/1.1\r\n\r\n", "HTTP/1.1 400 User Error\r\nConnection: close\r\n\r\n"},
			{"short", "GET /\r\n\r\n", "HTTP/1.1 400 User Error\r\nConnection: close\r\n\r\n"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				assert.Equal(t, tc.want, live.roundTrip(t, tc.request))
			})
		}
		require.Eventually(t, func() bool { return live.srv.Len() == 0 }, 2*time.Second, 10*time.Millisecond,
			"no connection stays open after its response")
	}
}

func TestServer_ConcurrentClients(t *testing.T) {
	live := startServer(t, nil)

	const clients = 20
	results := make(chan string, clients)
	for i := 0; i < clients; i++ {
		go func() {
			conn, err := tls.Dial("tcp", live.addr, live.client)
			if err != nil {
				results <- err.Error()
				return
			}
			defer conn.Close()
			_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
			if _, err := conn.Write([]byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
				results <- err.Error()
				return
			}
			reply, _ := io.ReadAll(conn)
			results <- string(reply)
		}()
	}
	for i := 0; i < clients; i++ {
		assert.Equal(t, "HTTP/1.1 200 OK\r\nConnection: close\r\n\r\nhello", <-results)
	}
	require.Eventually(t, func() bool { return live.srv.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_PlaintextClientIsDropped(t *testing.T) {
	live := startServer(t, nil)

	conn, err := net.Dial("tcp", live.addr)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	reply, _ := io.ReadAll(conn)
	assert.NotContains(t, string(reply), "HTTP/1.1 200")
	require.Eventually(t, func() bool { return live.srv.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_AbandonedHandshakeIsReaped(t *testing.T) {
	live := startServer(t, nil)

	conn, err := net.Dial("tcp", live.addr)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return live.srv.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return live.srv.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_IdleTimeout(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.IdleTimeout = 100 * time.Millisecond
	cfg.SweepInterval = 20 * time.Millisecond
	live := startServer(t, cfg)

	conn, err := net.Dial("tcp", live.addr)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return live.srv.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return live.srv.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}
