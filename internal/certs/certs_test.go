package certs_test

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/tls"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ocsp"

	"github.com/NunoDasNeves/mini-https-server/internal/certs"
	"github.com/NunoDasNeves/mini-https-server/internal/testcert"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func TestLoadCertificates(t *testing.T) {
	dir := t.TempDir()
	a := testcert.New(t, testcert.Options{})
	b := testcert.New(t, testcert.Options{})

	chain, err := certs.LoadCertificates(writeFile(t, dir, "chain.pem", append(append([]byte{}, a.CertPEM...), b.CertPEM...)))
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, a.Leaf.Raw, chain[0])

	_, err = certs.LoadCertificates(writeFile(t, dir, "empty.pem", a.KeyPEM))
	assert.ErrorIs(t, err, certs.ErrNoCertificates)

	_, err = certs.LoadCertificates(filepath.Join(dir, "missing.pem"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadPrivateKey_Formats(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		opts testcert.Options
		want any
	}{
		{"ec pkcs8", testcert.Options{}, &ecdsa.PrivateKey{}},
		{"ec sec1", testcert.Options{Format: testcert.SEC1}, &ecdsa.PrivateKey{}},
		{"rsa pkcs8", testcert.Options{RSA: true}, &rsa.PrivateKey{}},
		{"rsa pkcs1", testcert.Options{RSA: true, Format: testcert.PKCS1}, &rsa.PrivateKey{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pair := testcert.New(t, tc.opts)
			key, err := certs.LoadPrivateKey(writeFile(t, dir, "key.pem", pair.KeyPEM))
			require.NoError(t, err)
			assert.IsType(t, tc.want, key)
			assert.True(t, key.Public().(interface{ Equal(crypto.PublicKey) bool }).Equal(pair.Leaf.PublicKey))
		})
	}
}

func TestLoadPrivateKey_PrefersPKCS8(t *testing.T) {
	dir := t.TempDir()
	rsaPair := testcert.New(t, testcert.Options{RSA: true, Format: testcert.PKCS1})
	ecPair := testcert.New(t, testcert.Options{})

	both := append(append([]byte{}, rsaPair.KeyPEM...), ecPair.KeyPEM...)
	key, err := certs.LoadPrivateKey(writeFile(t, dir, "both.pem", both))
	require.NoError(t, err)
	assert.IsType(t, &ecdsa.PrivateKey{}, key)

	_, err = certs.LoadPrivateKey(writeFile(t, dir, "nokey.pem", ecPair.CertPEM))
	assert.ErrorIs(t, err, certs.ErrNoPrivateKey)
}

func TestCheckCertificateExpiration(t *testing.T) {
	pair := testcert.New(t, testcert.Options{NotAfter: time.Now().Add(10 * 24 * time.Hour)})
	days, warning := certs.CheckCertificateExpiration(pair.Leaf, time.Now())
	assert.InDelta(t, 9, days, 1)
	assert.Contains(t, warning, "certificate expires in")

	pair = testcert.New(t, testcert.Options{})
	_, warning = certs.CheckCertificateExpiration(pair.Leaf, time.Now())
	assert.Empty(t, warning)
}

func TestValidateX509Certificate(t *testing.T) {
	pair := testcert.New(t, testcert.Options{})
	assert.NoError(t, certs.ValidateX509Certificate(pair.Leaf, time.Now()))
	assert.Error(t, certs.ValidateX509Certificate(pair.Leaf, pair.Leaf.NotAfter.Add(time.Minute)))
	assert.Error(t, certs.ValidateX509Certificate(pair.Leaf, pair.Leaf.NotBefore.Add(-time.Minute)))
	assert.Error(t, certs.ValidateCertificate(nil))
	assert.Error(t, certs.ValidateCertificate(&tls.Certificate{}))
}

func TestMaterialBuild(t *testing.T) {
	pair := testcert.New(t, testcert.Options{})
	certFile, keyFile := pair.WriteFiles(t, t.TempDir())

	cfg, err := certs.Material{CertFile: certFile, KeyFile: keyFile}.Build(zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Nil(t, cfg.CipherSuites)
	assert.Equal(t, pair.Leaf.Raw, cfg.Certificates[0].Leaf.Raw)

	cfg, err = certs.Material{
		CertFile:     certFile,
		KeyFile:      keyFile,
		MinVersion:   "1.3",
		CipherSuites: []string{"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256"},
	}.Build(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
	assert.Equal(t, []uint16{tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256}, cfg.CipherSuites)
}

func TestMaterialBuild_Rejects(t *testing.T) {
	dir := t.TempDir()
	pair := testcert.New(t, testcert.Options{})
	other := testcert.New(t, testcert.Options{})
	expired := testcert.New(t, testcert.Options{
		NotBefore: time.Now().Add(-48 * time.Hour),
		NotAfter:  time.Now().Add(-24 * time.Hour),
	})

	certFile := writeFile(t, dir, "cert.pem", pair.CertPEM)
	otherKey := writeFile(t, dir, "other.pem", other.KeyPEM)
	_, err := certs.Material{CertFile: certFile, KeyFile: otherKey}.Build(zerolog.Nop())
	assert.ErrorIs(t, err, certs.ErrKeyMismatch)

	expCert := writeFile(t, dir, "expcert.pem", expired.CertPEM)
	expKey := writeFile(t, dir, "expkey.pem", expired.KeyPEM)
	_, err = certs.Material{CertFile: expCert, KeyFile: expKey}.Build(zerolog.Nop())
	assert.ErrorContains(t, err, "expired")

	keyFile := writeFile(t, dir, "key.pem", pair.KeyPEM)
	_, err = certs.Material{CertFile: certFile, KeyFile: keyFile, MinVersion: "1.0"}.Build(zerolog.Nop())
	assert.Error(t, err)
	_, err = certs.Material{CertFile: certFile, KeyFile: keyFile, CipherSuites: []string{"TLS_NOPE"}}.Build(zerolog.Nop())
	assert.Error(t, err)
}

func TestMaterialBuild_StaplesOCSP(t *testing.T) {
	dir := t.TempDir()
	pair := testcert.New(t, testcert.Options{})
	certFile, keyFile := pair.WriteFiles(t, dir)

	der, err := ocsp.CreateResponse(pair.Leaf, pair.Leaf, ocsp.Response{
		Status:       ocsp.Good,
		SerialNumber: new(big.Int).Set(pair.Leaf.SerialNumber),
		ThisUpdate:   time.Now().Add(-time.Hour),
		NextUpdate:   time.Now().Add(time.Hour),
	}, pair.Cert.PrivateKey.(crypto.Signer))
	require.NoError(t, err)
	ocspFile := writeFile(t, dir, "ocsp.der", der)

	cfg, err := certs.Material{CertFile: certFile, KeyFile: keyFile, OCSPFile: ocspFile}.Build(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, der, cfg.Certificates[0].OCSPStaple)

	// Garbage is stapled anyway and only logged.
	junk := writeFile(t, dir, "junk.der", []byte("not ocsp"))
	cfg, err = certs.Material{CertFile: certFile, KeyFile: keyFile, OCSPFile: junk}.Build(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []byte("not ocsp"), cfg.Certificates[0].OCSPStaple)

	_, err = certs.Material{CertFile: certFile, KeyFile: keyFile, OCSPFile: filepath.Join(dir, "none")}.Build(zerolog.Nop())
	assert.Error(t, err)
}

func TestStore_ReloadKeepsPreviousOnFailure(t *testing.T) {
	dir := t.TempDir()
	first := testcert.New(t, testcert.Options{})
	certFile, keyFile := first.WriteFiles(t, dir)

	store, err := certs.NewStore(certs.Material{CertFile: certFile, KeyFile: keyFile}, zerolog.Nop())
	require.NoError(t, err)
	initial := store.Current()
	require.NotNil(t, initial)
	assert.Zero(t, store.Reloads())

	require.NoError(t, os.WriteFile(keyFile, []byte("garbage"), 0o600))
	assert.Error(t, store.Reload())
	assert.Same(t, initial, store.Current())

	second := testcert.New(t, testcert.Options{})
	second.WriteFiles(t, dir)
	require.NoError(t, store.Reload())
	assert.Equal(t, second.Leaf.Raw, store.Current().Certificates[0].Leaf.Raw)
	assert.Equal(t, uint64(1), store.Reloads())
	assert.Equal(t, first.Leaf.Raw, initial.Certificates[0].Leaf.Raw, "old configuration is untouched")
}

func TestNewStore_FailsOnMissingMaterial(t *testing.T) {
	dir := t.TempDir()
	_, err := certs.NewStore(certs.Material{
		CertFile: filepath.Join(dir, "certificate.pem"),
		KeyFile:  filepath.Join(dir, "key.pem"),
	}, zerolog.Nop())
	assert.Error(t, err)
}

func TestStore_WatchPicksUpRenewal(t *testing.T) {
	dir := t.TempDir()
	first := testcert.New(t, testcert.Options{})
	certFile, keyFile := first.WriteFiles(t, dir)

	store, err := certs.NewStore(certs.Material{CertFile: certFile, KeyFile: keyFile}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()

	renewed := testcert.New(t, testcert.Options{})
	require.Eventually(t, func() bool {
		renewed.WriteFiles(t, dir)
		return string(store.Current().Certificates[0].Leaf.Raw) == string(renewed.Leaf.Raw)
	}, 5*time.Second, 300*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
