package fileserver_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NunoDasNeves/mini-https-server/internal/fileserver"
)

func docRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "a b.txt"), []byte("spaced"), 0o644))
	return root
}

func TestHandle_WireFormat(t *testing.T) {
	h := fileserver.New(docRoot(t))

	cases := []struct {
		name    string
		request string
		want    string
	}{
		{"index", "GET /index.html HTTP/1.1\r\n\r\n", "HTTP/1.1 200 OK\r\nConnection: close\r\n\r\nhello"},
		{"root maps to index", "GET / HTTP/1.1\r\nHost: x\r\n\r\n", "HTTP/1.1 200 OK\r\nConnection: close\r\n\r\nhello"},
		{"missing", "GET /missing.html HTTP/1.1\r\n\r\n", "HTTP/1.1 404 Not Found\r\nConnection: close\r\n\r\n404 - Not found!"},
		{"post", "POST / HTTP/1.1\r\n\r\n", "HTTP/1.1 400 User Error\r\nConnection: close\r\n\r\n"},
		{"two tokens", "GET /\r\n\r\n", "HTTP/1.1 400 User Error\r\nConnection: close\r\n\r\n"},
		{"one token", "GET", "HTTP/1.1 400 User Error\r\nConnection: close\r\n\r\n"},
		{"directory", "GET /sub HTTP/1.1\r\n\r\n", "HTTP/1.1 404 Not Found\r\nConnection: close\r\n\r\n404 - Not found!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, string(h.Handle([]byte(tc.request))))
		})
	}
}

func TestServe_DecodesAndDropsQuery(t *testing.T) {
	h := fileserver.New(docRoot(t))

	r := h.Serve([]byte("GET /sub/a%20b.txt?x=1 HTTP/1.1\r\n\r\n"))
	assert.Equal(t, 200, r.Status)
	assert.Equal(t, "spaced", string(r.Body))

	r = h.Serve([]byte("GET /index.html?v=2 HTTP/1.1\r\n\r\n"))
	assert.Equal(t, 200, r.Status)
}

func TestServe_RejectsTraversal(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "public_html")
	require.NoError(t, os.Mkdir(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret"), []byte("nope"), 0o644))
	h := fileserver.New(root)

	for _, target := range []string{
		"/../secret",
		"/sub/../../secret",
		"/%2e%2e/secret",
		"/..%2fsecret",
		"/..%5csecret",
		"/index.html%00",
		"/%zz",
	} {
		t.Run(target, func(t *testing.T) {
			r := h.Serve([]byte("GET " + target + " HTTP/1.1\r\n\r\n"))
			assert.Equal(t, 400, r.Status)
			assert.Empty(t, r.Body)
		})
	}
}

func TestServe_FileSizeLimit(t *testing.T) {
	root := docRoot(t)
	h := fileserver.New(root, fileserver.WithMaxFileSize(3))
	assert.Equal(t, 500, h.Serve([]byte("GET / HTTP/1.1")).Status)

	h = fileserver.New(root, fileserver.WithMaxFileSize(0))
	assert.Equal(t, 200, h.Serve([]byte("GET / HTTP/1.1")).Status)
}

func TestWithIndex(t *testing.T) {
	root := docRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "home.htm"), []byte("home"), 0o644))
	h := fileserver.New(root, fileserver.WithIndex("home.htm"))

	r := h.Serve([]byte("GET / HTTP/1.1"))
	assert.Equal(t, "home", string(r.Body))
	assert.Equal(t, root, h.Root())
}

func TestStatusText(t *testing.T) {
	for code, want := range map[int]string{
		200: "OK",
		301: "Redirect",
		400: "User Error",
		403: "Forbidden",
		404: "Not Found",
		500: "Server Error",
		418: "Error",
	} {
		assert.Equal(t, want, fileserver.StatusText(code))
	}
	assert.Equal(t, "HTTP/1.1 403 Forbidden\r\nConnection: close\r\n\r\n", string(fileserver.Response{Status: 403}.Bytes()))
}
