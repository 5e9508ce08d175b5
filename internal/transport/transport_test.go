package transport_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NunoDasNeves/mini-https-server/internal/transport"
)

// shortWriter accepts at most limit bytes per Write.
type shortWriter struct {
	buf   bytes.Buffer
	limit int
	err   error
	calls int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	w.calls++
	if w.err != nil {
		return 0, w.err
	}
	if w.limit > 0 && len(p) > w.limit {
		p = p[:w.limit]
	}
	return w.buf.Write(p)
}

func TestSequential_WritesAllBuffersInOrder(t *testing.T) {
	w := &shortWriter{}
	n, err := transport.Sequential{W: w}.Writev([][]byte{[]byte("ab"), nil, []byte("cd"), []byte("e")})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "abcde", w.buf.String())
	assert.Equal(t, 3, w.calls, "empty buffers are skipped")
}

func TestSequential_StopsAtShortWrite(t *testing.T) {
	w := &shortWriter{limit: 3}
	n, err := transport.Sequential{W: w}.Writev([][]byte{[]byte("ab"), []byte("cdef"), []byte("gh")})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "abcde", w.buf.String())
	assert.Equal(t, 2, w.calls)
}

func TestSequential_ReportsProgressBeforeError(t *testing.T) {
	boom := errors.New("boom")
	w := &failAfter{okCalls: 1, err: boom}
	n, err := transport.Sequential{W: w}.Writev([][]byte{[]byte("ab"), []byte("cd")})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, n)
}

type failAfter struct {
	okCalls int
	err     error
}

func (w *failAfter) Write(p []byte) (int, error) {
	if w.okCalls == 0 {
		return 0, w.err
	}
	w.okCalls--
	return len(p), nil
}
