package tls

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nylon-dev/nylon/pkg/config"
)

// ACMEProvider serves certificates for mode: "acme" config.TLSEntry
// domains from a persisted cache directory. It does not speak the ACME
// protocol itself (spec.md §1 keeps that external); an external issuance
// agent writes <storage_dir>/<domain>/{cert,key}.pem, and this provider
// only loads and serves whatever is already on disk, the same "lookup
// interface keyed by SNI" CustomProvider implements for file-backed
// certs. NeedsRenewal/CheckRenewals give the Background Service (C12) a
// polling signal; TriggerRenewal deposits a sentinel file the external
// agent watches for, rather than Nylon issuing the renewal itself.
type ACMEProvider struct {
	storageDir string

	mu      sync.RWMutex
	certs   map[string]*tls.Certificate
	domains map[string]string // domain -> owning entry name, for TriggerRenewal
}

// NewACMEProvider loads every mode: "acme" entry's domains from
// storageDir. A domain whose cert/key pair has not yet been deposited by
// the external issuance agent is skipped, not an error — Lookup returns
// ErrNoCertificate for it until the agent catches up.
func NewACMEProvider(storageDir string, entries map[string]config.TLSEntry) (*ACMEProvider, error) {
	if storageDir == "" {
		return nil, fmt.Errorf("tls: acme_storage_dir is required for mode \"acme\" entries")
	}

	p := &ACMEProvider{
		storageDir: storageDir,
		certs:      make(map[string]*tls.Certificate),
		domains:    make(map[string]string),
	}
	if err := p.load(entries); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ACMEProvider) load(entries map[string]config.TLSEntry) error {
	certs := make(map[string]*tls.Certificate)
	domains := make(map[string]string)

	for name, entry := range entries {
		if entry.Mode != "acme" {
			continue
		}
		for _, domain := range entry.Domains {
			domain = strings.ToLower(domain)
			domains[domain] = name

			certPath, keyPath := p.certPaths(domain)
			if _, err := os.Stat(certPath); err != nil {
				continue // not yet issued by the external agent
			}
			cert, err := tls.LoadX509KeyPair(certPath, keyPath)
			if err != nil {
				return fmt.Errorf("tls: acme entry %q domain %q: %w", name, domain, err)
			}
			if err := ValidateCertificate(&cert); err != nil {
				return fmt.Errorf("tls: acme entry %q domain %q: %w", name, domain, err)
			}
			certs[domain] = &cert
		}
	}

	p.mu.Lock()
	p.certs = certs
	p.domains = domains
	p.mu.Unlock()
	return nil
}

func (p *ACMEProvider) certPaths(domain string) (certPath, keyPath string) {
	dir := filepath.Join(p.storageDir, domain)
	return filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem")
}

// Lookup implements Provider.
func (p *ACMEProvider) Lookup(sni string) (*tls.Certificate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if cert, ok := p.certs[strings.ToLower(sni)]; ok {
		return cert, nil
	}
	return nil, ErrNoCertificate
}

// Reload rescans the storage directory, picking up certificates an
// external issuance agent deposited since the last load.
func (p *ACMEProvider) Reload(entries map[string]config.TLSEntry) error {
	return p.load(entries)
}

// CheckRenewals returns the domains whose currently-loaded certificate
// expires within threshold, or has no certificate loaded at all. The
// Background Service calls this on its cron schedule.
func (p *ACMEProvider) CheckRenewals(threshold time.Duration) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var due []string
	for domain := range p.domains {
		cert, ok := p.certs[domain]
		if !ok {
			due = append(due, domain)
			continue
		}
		needs, err := NeedsRenewal(cert, threshold)
		if err != nil || needs {
			due = append(due, domain)
		}
	}
	return due
}

// TriggerRenewal deposits a sentinel file for the external issuance
// agent to notice, rather than Nylon performing the ACME exchange
// itself. The agent is expected to remove the sentinel once it has
// written a fresh cert/key pair and Reload has picked it up.
func (p *ACMEProvider) TriggerRenewal(domain string) error {
	dir := filepath.Join(p.storageDir, strings.ToLower(domain))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("tls: create acme storage dir for %q: %w", domain, err)
	}
	sentinel := filepath.Join(dir, ".renew")
	return os.WriteFile(sentinel, []byte(time.Now().UTC().Format(time.RFC3339)), 0o644)
}
