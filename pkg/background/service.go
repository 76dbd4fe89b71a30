// Package background runs the process-lifetime periodic work spec §4.3
// and §6.2 describe as living outside any single request: per-pool
// health-check tickers, a cron-scheduled certificate-renewal sweep, and
// plugin shutdown() invocation when the process drains.
//
// Grounded on the teacher's pkg/providers/health.go ticker-loop shape for
// the health-check side (already adapted once into
// pkg/loadbalancer/health.go, which this package merely starts and stops
// for every pool at the Shared Store's current snapshot) and on
// github.com/robfig/cron/v3 for the renewal sweep, the standard
// cron-expression scheduler across the example pack.
package background

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nylon-dev/nylon/pkg/store"
)

// DefaultRenewalThreshold matches spec §6.2's "≤30 days" certificate
// renewal window.
const DefaultRenewalThreshold = 30 * 24 * time.Hour

// DefaultRenewalSchedule runs the renewal sweep once an hour; frequent
// enough that a 30-day window is never missed by more than an hour.
const DefaultRenewalSchedule = "@hourly"

// poolHealthStarter is the subset of *loadbalancer.Pool (reached here
// through store.Pool's concrete StoreAdapter) this service needs: start
// and stop the pool's own jittered health-check ticker. Kept narrow so
// this package does not import pkg/loadbalancer directly.
type poolHealthStarter interface {
	StartHealthChecks(ctx context.Context, client *http.Client)
	StopHealthChecks()
}

// RenewalChecker is the subset of *tls.ACMEProvider the renewal sweep
// needs. A Service with no RenewalChecker configured still runs health
// checks and plugin drain; the renewal sweep is simply a no-op.
type RenewalChecker interface {
	CheckRenewals(threshold time.Duration) []string
	TriggerRenewal(domain string) error
}

// Service owns the process's periodic work and the orderly shutdown
// sequence spec §3 assigns to it: stop ticking, then drain every plugin
// instance the Shared Store is holding.
type Service struct {
	store            *store.Store
	renewal          RenewalChecker
	renewalThreshold time.Duration
	renewalSchedule  string
	httpClient       *http.Client

	mu      sync.Mutex
	cron    *cron.Cron
	started []poolHealthStarter
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithRenewalChecker attaches the ACME-backed provider whose
// CheckRenewals/TriggerRenewal the cron sweep drives. Without this
// option the renewal sweep is a no-op.
func WithRenewalChecker(r RenewalChecker) Option {
	return func(s *Service) { s.renewal = r }
}

// WithRenewalThreshold overrides DefaultRenewalThreshold.
func WithRenewalThreshold(d time.Duration) Option {
	return func(s *Service) { s.renewalThreshold = d }
}

// WithRenewalSchedule overrides DefaultRenewalSchedule with any
// robfig/cron/v3 expression.
func WithRenewalSchedule(expr string) Option {
	return func(s *Service) { s.renewalSchedule = expr }
}

// WithHTTPClient overrides the client used for backend health checks.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// New builds a Service over st. Call Start to begin ticking.
func New(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:            st,
		renewalThreshold: DefaultRenewalThreshold,
		renewalSchedule:  DefaultRenewalSchedule,
		httpClient:       http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches a health-check ticker for every backend pool in the
// store's current snapshot and, if a RenewalChecker is configured, a
// cron-scheduled certificate-renewal sweep. ctx governs the health-check
// tickers' own lifetime; cron jobs are stopped independently by Stop.
func (s *Service) Start(ctx context.Context) error {
	snap := s.store.Current()
	if snap == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, p := range snap.Pools {
		starter, ok := p.(poolHealthStarter)
		if !ok {
			continue
		}
		starter.StartHealthChecks(ctx, s.httpClient)
		s.started = append(s.started, starter)
		slog.Info("background: started health checks", "pool", name)
	}

	if s.renewal != nil {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(s.renewalSchedule, s.runRenewalSweep); err != nil {
			return err
		}
		s.cron.Start()
		slog.Info("background: renewal sweep scheduled", "schedule", s.renewalSchedule)
	}

	return nil
}

// runRenewalSweep is the cron job body: check every configured acme
// domain and fire TriggerRenewal for whichever are due. Issuing the
// actual certificate stays the external agent's job (spec.md §1); this
// only deposits the sentinel the agent watches for.
func (s *Service) runRenewalSweep() {
	due := s.renewal.CheckRenewals(s.renewalThreshold)
	for _, domain := range due {
		if err := s.renewal.TriggerRenewal(domain); err != nil {
			slog.Error("background: failed to trigger certificate renewal", "domain", domain, "error", err)
			continue
		}
		slog.Info("background: certificate renewal triggered", "domain", domain)
	}
}

// Stop halts every health-check ticker and the renewal cron, then drains
// the Shared Store — calling shutdown() on every committed plugin
// instance (spec §3) — and returns any shutdown errors encountered.
func (s *Service) Stop(ctx context.Context) []error {
	s.mu.Lock()
	cronScheduler := s.cron
	started := s.started
	s.cron = nil
	s.started = nil
	s.mu.Unlock()

	if cronScheduler != nil {
		<-cronScheduler.Stop().Done()
	}
	for _, starter := range started {
		starter.StopHealthChecks()
	}

	return s.store.Drain(ctx)
}
