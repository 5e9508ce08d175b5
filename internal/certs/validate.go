package certs

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"
)

// ExpiryWarning is how close to NotAfter a certificate gets a warning.
const ExpiryWarning = 30 * 24 * time.Hour

// ValidateCertificate checks the leaf of cert is currently within its validity window.
func ValidateCertificate(cert *tls.Certificate) error {
	if cert == nil {
		return fmt.Errorf("certificate is nil")
	}
	if len(cert.Certificate) == 0 {
		return fmt.Errorf("certificate chain is empty")
	}
	leaf := cert.Leaf
	if leaf == nil {
		var err error
		if leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return fmt.Errorf("failed to parse certificate: %w", err)
		}
	}
	return ValidateX509Certificate(leaf, time.Now())
}

// ValidateX509Certificate checks cert is valid at now.
func ValidateX509Certificate(cert *x509.Certificate, now time.Time) error {
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("certificate is not yet valid (valid from %s)", cert.NotBefore.Format(time.RFC3339))
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("certificate expired on %s", cert.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// CheckCertificateExpiration returns the whole days left before cert expires
// and a warning when fewer than 30 remain.
func CheckCertificateExpiration(cert *x509.Certificate, now time.Time) (daysUntilExpiry int, warning string) {
	left := cert.NotAfter.Sub(now)
	daysUntilExpiry = int(left.Hours() / 24)
	if left < ExpiryWarning {
		warning = fmt.Sprintf("certificate expires in %d days (on %s)",
			daysUntilExpiry, cert.NotAfter.Format("2006-01-02"))
	}
	return daysUntilExpiry, warning
}
