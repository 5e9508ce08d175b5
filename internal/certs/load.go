// File: internal/certs/load.go
// License: Apache-2.0
//
// PEM loaders for the server certificate chain, its private key and an
// optional stapled OCSP response.

package certs

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ocsp"
)

var (
	ErrNoCertificates = errors.New("no certificates found")
	ErrNoPrivateKey   = errors.New("no private key found")
	ErrKeyMismatch    = errors.New("private key does not match certificate")
)

// LoadCertificates returns the DER bytes of every CERTIFICATE block in path,
// leaf first as they appear in the file.
func LoadCertificates(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificates: %w", err)
	}
	var chain [][]byte
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			chain = append(chain, block.Bytes)
		}
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoCertificates)
	}
	return chain, nil
}

// LoadPrivateKey returns the first private key in path. PKCS#8 keys win over
// PKCS#1 RSA keys, which win over SEC 1 EC keys. Encrypted keys are not supported.
func LoadPrivateKey(path string) (crypto.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	var pkcs8, rsa, ec []*pem.Block
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		switch block.Type {
		case "PRIVATE KEY":
			pkcs8 = append(pkcs8, block)
		case "RSA PRIVATE KEY":
			rsa = append(rsa, block)
		case "EC PRIVATE KEY":
			ec = append(ec, block)
		}
	}

	switch {
	case len(pkcs8) > 0:
		key, err := x509.ParsePKCS8PrivateKey(pkcs8[0].Bytes)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid pkcs8 private key (encrypted keys not supported): %w", path, err)
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("%s: unsupported pkcs8 key type %T", path, key)
		}
		return signer, nil
	case len(rsa) > 0:
		key, err := x509.ParsePKCS1PrivateKey(rsa[0].Bytes)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid rsa private key: %w", path, err)
		}
		return key, nil
	case len(ec) > 0:
		key, err := x509.ParseECPrivateKey(ec[0].Bytes)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid ec private key: %w", path, err)
		}
		return key, nil
	}
	return nil, fmt.Errorf("%s: %w", path, ErrNoPrivateKey)
}

// LoadOCSP reads a DER OCSP response to staple. An empty path means no
// staple. A response that does not parse or is stale is still stapled; the
// problem is only logged, since clients treat a bad staple as absent.
func LoadOCSP(path string, leaf, issuer *x509.Certificate, log zerolog.Logger) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ocsp response: %w", err)
	}

	resp, err := ocsp.ParseResponseForCert(raw, leaf, issuer)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("ocsp response does not parse")
		return raw, nil
	}
	if resp.Status != ocsp.Good {
		log.Warn().Str("file", path).Int("status", resp.Status).Msg("ocsp response does not report good status")
	}
	if !resp.NextUpdate.IsZero() && time.Now().After(resp.NextUpdate) {
		log.Warn().Str("file", path).Time("next_update", resp.NextUpdate).Msg("ocsp response is stale")
	}
	return raw, nil
}

// matchesKey reports whether key is the private half of leaf's public key.
func matchesKey(leaf *x509.Certificate, key crypto.Signer) bool {
	pub, ok := leaf.PublicKey.(interface{ Equal(crypto.PublicKey) bool })
	return ok && pub.Equal(key.Public())
}
