// File: internal/certs/doc.go
// License: Apache-2.0

// Package certs loads the server's TLS material from PEM files, validates it
// and keeps the immutable *tls.Config handed to new sessions current when the
// files are replaced on disk.
package certs
