package certs

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Material names the files a server TLS configuration is built from.
type Material struct {
	CertFile     string
	KeyFile      string
	OCSPFile     string    // optional DER OCSP response to staple
	MinVersion   string    // "1.2" (default) or "1.3"
	CipherSuites []string  // crypto/tls suite names; empty keeps the defaults
	KeyLog       io.Writer // optional NSS key log sink for debugging captures
}

// Build loads and validates the material and returns an immutable server configuration.
func (m Material) Build(log zerolog.Logger) (*tls.Config, error) {
	chain, err := LoadCertificates(m.CertFile)
	if err != nil {
		return nil, err
	}
	key, err := LoadPrivateKey(m.KeyFile)
	if err != nil {
		return nil, err
	}
	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return nil, fmt.Errorf("%s: parse leaf certificate: %w", m.CertFile, err)
	}
	if !matchesKey(leaf, key) {
		return nil, fmt.Errorf("%s: %w", m.KeyFile, ErrKeyMismatch)
	}

	var issuer *x509.Certificate
	if len(chain) > 1 {
		if issuer, err = x509.ParseCertificate(chain[1]); err != nil {
			return nil, fmt.Errorf("%s: parse issuer certificate: %w", m.CertFile, err)
		}
	}
	staple, err := LoadOCSP(m.OCSPFile, leaf, issuer, log)
	if err != nil {
		return nil, err
	}

	cert := tls.Certificate{
		Certificate: chain,
		PrivateKey:  key,
		OCSPStaple:  staple,
		Leaf:        leaf,
	}
	if err := ValidateCertificate(&cert); err != nil {
		return nil, fmt.Errorf("certificate validation failed: %w", err)
	}
	days, warning := CheckCertificateExpiration(leaf, time.Now())
	if warning != "" {
		log.Warn().Str("subject", leaf.Subject.CommonName).Int("expires_in_days", days).Msg(warning)
	} else {
		log.Info().
			Str("subject", leaf.Subject.CommonName).
			Str("issuer", leaf.Issuer.CommonName).
			Int("expires_in_days", days).
			Msg("certificate loaded")
	}

	minVersion, err := ParseVersion(m.MinVersion)
	if err != nil {
		return nil, err
	}
	suites, err := ParseCipherSuites(m.CipherSuites)
	if err != nil {
		return nil, err
	}

	// #nosec G402 - MinVersion is validated, TLS 1.0/1.1 are rejected
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
		CipherSuites: suites,
		KeyLogWriter: m.KeyLog,
	}, nil
}

// ParseVersion maps "1.2" or "1.3" to a crypto/tls version. Empty means 1.2.
func ParseVersion(v string) (uint16, error) {
	switch v {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported tls min version %q", v)
	}
}

// ParseCipherSuites resolves crypto/tls cipher suite names. Insecure suites
// are refused. A nil result keeps the crypto/tls defaults.
func ParseCipherSuites(names []string) ([]uint16, error) {
	if len(names) == 0 {
		return nil, nil
	}
	known := make(map[string]uint16)
	for _, s := range tls.CipherSuites() {
		known[s.Name] = s.ID
	}
	ids := make([]uint16, 0, len(names))
	for _, name := range names {
		id, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unknown or insecure cipher suite %q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
