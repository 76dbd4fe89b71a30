// Package tls resolves the certificate chain and private key to present
// for a given SNI hostname (spec §6.2): `Lookup(sni) -> (chain, key)`.
// A custom-file implementation loads from configured PEM paths; an
// ACME-backed implementation serves whatever a persisted cache directory
// holds, with renewal scheduling driven by the Background Service.
package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nylon-dev/nylon/pkg/config"
)

// Provider resolves the certificate to present for one TLS handshake.
type Provider interface {
	Lookup(sni string) (*tls.Certificate, error)
}

// ErrNoCertificate means no configured TLS entry claims the requested
// domain and no wildcard entry exists to fall back to.
var ErrNoCertificate = fmt.Errorf("tls: no certificate for requested name")

// CustomProvider serves certificates loaded once from the PEM files
// named by each mode: "custom" config.TLSEntry, keyed by every domain
// the entry claims.
type CustomProvider struct {
	mu    sync.RWMutex
	certs map[string]*tls.Certificate
}

// NewCustomProvider loads every mode: "custom" entry in entries. Entries
// with any other mode are skipped; the caller composes this with an
// ACME-backed Provider for those.
func NewCustomProvider(entries map[string]config.TLSEntry) (*CustomProvider, error) {
	p := &CustomProvider{certs: make(map[string]*tls.Certificate)}
	for name, entry := range entries {
		if entry.Mode != "custom" {
			continue
		}
		cert, err := loadKeyPair(entry)
		if err != nil {
			return nil, fmt.Errorf("tls: entry %q: %w", name, err)
		}
		for _, domain := range entry.Domains {
			p.certs[strings.ToLower(domain)] = cert
		}
	}
	return p, nil
}

func loadKeyPair(entry config.TLSEntry) (*tls.Certificate, error) {
	if entry.CertFile == "" || entry.KeyFile == "" {
		return nil, fmt.Errorf("cert_file and key_file are required for mode \"custom\"")
	}
	cert, err := tls.LoadX509KeyPair(entry.CertFile, entry.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	if err := ValidateCertificate(&cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// Lookup implements Provider. A wildcard entry ("*") is tried only if
// no literal domain match exists.
func (p *CustomProvider) Lookup(sni string) (*tls.Certificate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if cert, ok := p.certs[strings.ToLower(sni)]; ok {
		return cert, nil
	}
	if cert, ok := p.certs["*"]; ok {
		return cert, nil
	}
	return nil, ErrNoCertificate
}

// Reload atomically replaces the served certificate set, used when an
// external file watcher detects a changed PEM pair (spec §4.3's
// reload-on-change note for custom-mode certificates).
func (p *CustomProvider) Reload(entries map[string]config.TLSEntry) error {
	fresh, err := NewCustomProvider(entries)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.certs = fresh.certs
	p.mu.Unlock()
	return nil
}

// CompositeProvider dispatches Lookup across any number of backing
// Providers in order, returning the first non-ErrNoCertificate result.
// This is how a single config.Config with both mode: "custom" and
// mode: "acme" TLS entries is served through one tls.Config.GetCertificate.
type CompositeProvider struct {
	providers []Provider
}

// NewCompositeProvider builds the Provider NewServer's TLS listener
// consumes: a CustomProvider over every mode: "custom" entry plus, only
// when at least one mode: "acme" entry exists, an ACMEProvider rooted at
// storageDir.
func NewCompositeProvider(storageDir string, entries map[string]config.TLSEntry) (Provider, error) {
	custom, err := NewCustomProvider(entries)
	if err != nil {
		return nil, err
	}

	hasACME := false
	for _, entry := range entries {
		if entry.Mode == "acme" {
			hasACME = true
			break
		}
	}
	if !hasACME {
		return custom, nil
	}

	acme, err := NewACMEProvider(storageDir, entries)
	if err != nil {
		return nil, err
	}
	return &CompositeProvider{providers: []Provider{custom, acme}}, nil
}

// Lookup implements Provider.
func (c *CompositeProvider) Lookup(sni string) (*tls.Certificate, error) {
	for _, p := range c.providers {
		cert, err := p.Lookup(sni)
		if err == nil {
			return cert, nil
		}
		if !errors.Is(err, ErrNoCertificate) {
			return nil, err
		}
	}
	return nil, ErrNoCertificate
}

// GetCertificateFunc adapts a Provider to the crypto/tls.Config
// GetCertificate hook.
func GetCertificateFunc(p Provider) func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	return func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
		return p.Lookup(hello.ServerName)
	}
}
