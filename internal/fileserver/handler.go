// File: internal/fileserver/handler.go
// License: Apache-2.0
//
// Package fileserver answers single HTTP/1.1 GET requests with the contents
// of files under a document root.

package fileserver

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/NunoDasNeves/mini-https-server/api"
)

const (
	// DefaultIndex is served for the target "/".
	DefaultIndex = "/index.html"
	// DefaultMaxFileSize bounds the files served; bigger ones get a 500.
	DefaultMaxFileSize = 8 << 20
)

// Handler serves files below a document root. It implements api.RequestHandler.
type Handler struct {
	root        string
	index       string
	maxFileSize int64
	log         zerolog.Logger
}

var _ api.RequestHandler = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithMaxFileSize overrides DefaultMaxFileSize. Zero or negative disables the bound.
func WithMaxFileSize(n int64) Option {
	return func(h *Handler) { h.maxFileSize = n }
}

// WithIndex overrides the file served for "/".
func WithIndex(path string) Option {
	return func(h *Handler) {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		h.index = path
	}
}

// New returns a Handler serving files below root.
func New(root string, opts ...Option) *Handler {
	h := &Handler{
		root:        root,
		index:       DefaultIndex,
		maxFileSize: DefaultMaxFileSize,
		log:         zerolog.Nop(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Root returns the document root.
func (h *Handler) Root() string { return h.root }

// Handle implements api.RequestHandler.
func (h *Handler) Handle(request []byte) []byte {
	return h.Serve(request).Bytes()
}

// Serve parses the request line and builds the response.
//
// The request is split on single spaces: fewer than three tokens, or a
// method other than GET, is a 400. The target is resolved below the root
// after the query string is dropped and percent escapes are decoded.
func (h *Handler) Serve(request []byte) Response {
	tokens := strings.SplitN(string(request), " ", 3)
	if len(tokens) < 3 || tokens[0] != "GET" {
		return Response{Status: 400}
	}

	target := tokens[1]
	if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}
	if target == "/" {
		target = h.index
	}
	path, err := url.PathUnescape(target)
	if err != nil || !safePath(path) {
		h.log.Warn().Str("target", tokens[1]).Msg("rejected request target")
		return Response{Status: 400}
	}

	h.log.Info().Msgf("GET %s", path)

	file := filepath.Join(h.root, filepath.FromSlash(path))
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		return notFound()
	}
	if h.maxFileSize > 0 && info.Size() > h.maxFileSize {
		h.log.Error().Str("file", file).Int64("size", info.Size()).Msg("file exceeds the size limit")
		return Response{Status: 500}
	}
	body, err := os.ReadFile(file)
	if err != nil {
		return notFound()
	}
	return Response{Status: 200, Body: body}
}

func notFound() Response {
	return Response{Status: 404, Body: []byte(NotFoundBody)}
}

// safePath rejects parent-directory segments and bytes that could smuggle one past the check.
func safePath(p string) bool {
	if strings.ContainsAny(p, "\x00\\") {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}
