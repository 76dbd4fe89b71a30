package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"
)

// ValidateCertificate rejects a certificate that is not yet valid or
// has expired; loaded once at commit time so a bad cert fails the
// config reload rather than a live handshake.
func ValidateCertificate(cert *tls.Certificate) error {
	if cert == nil || len(cert.Certificate) == 0 {
		return fmt.Errorf("certificate chain is empty")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("parse certificate: %w", err)
	}
	return validateX509(leaf)
}

func validateX509(cert *x509.Certificate) error {
	now := time.Now()
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("certificate not valid until %s", cert.NotBefore.Format(time.RFC3339))
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("certificate expired on %s", cert.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// NeedsRenewal reports whether cert expires within threshold, the
// signal the Background Service polls to trigger ACME renewal (spec
// §6.2: "≤30 days").
func NeedsRenewal(cert *tls.Certificate, threshold time.Duration) (bool, error) {
	if cert == nil || len(cert.Certificate) == 0 {
		return false, fmt.Errorf("certificate chain is empty")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return false, fmt.Errorf("parse certificate: %w", err)
	}
	return time.Until(leaf.NotAfter) <= threshold, nil
}
