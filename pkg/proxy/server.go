package proxy

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nylon-dev/nylon/pkg/config"
	"github.com/nylon-dev/nylon/pkg/pipeline"
	"github.com/nylon-dev/nylon/pkg/plugin/session"
	"github.com/nylon-dev/nylon/pkg/proxy/middleware"
	"github.com/nylon-dev/nylon/pkg/proxy/types"
	"github.com/nylon-dev/nylon/pkg/route"
	"github.com/nylon-dev/nylon/pkg/static"
	"github.com/nylon-dev/nylon/pkg/store"
	"github.com/nylon-dev/nylon/pkg/telemetry/health"
	"github.com/nylon-dev/nylon/pkg/telemetry/logging"
	"github.com/nylon-dev/nylon/pkg/telemetry/tracing"
	"github.com/nylon-dev/nylon/pkg/template"
	tlsprovider "github.com/nylon-dev/nylon/pkg/tls"
	"github.com/nylon-dev/nylon/pkg/websocket"
)

// tls13CipherSuites matches the teacher's explicit TLS 1.3 suite list.
// crypto/tls does not apply Config.CipherSuites to TLS 1.3, so this list
// records the suites in use rather than restricting them.
var tls13CipherSuites = []uint16{
	tls.TLS_AES_128_GCM_SHA256,
	tls.TLS_AES_256_GCM_SHA384,
	tls.TLS_CHACHA20_POLY1305_SHA256,
}

// Metrics is the narrow surface Server needs from the metrics surface
// (spec §6.3's requests_total/request_duration_ms); implemented by
// pkg/telemetry/metrics.Collector. Kept as a small consumer-defined
// interface so this package does not import pkg/telemetry/metrics
// directly, matching the pattern pkg/plugin/messaging and
// pkg/loadbalancer use for the same reason.
type Metrics interface {
	RecordRequest(route, status string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordRequest(string, string, time.Duration) {}

// Server owns one listener per config.Listener entry, all sharing the
// same request-dispatch handler (spec §6.1's listeners block: http,
// https, metrics bind addresses).
type Server struct {
	store       *store.Store
	health      *health.Checker
	rooms       *websocket.Rooms
	upgrader    *websocket.Upgrader
	tlsProvider tlsprovider.Provider
	metrics     Metrics
	logger      *logging.Logger

	version, commit, buildTime string

	mu      sync.Mutex
	servers []*http.Server

	shutdownOnce sync.Once
}

// NewServer wires the Shared Store, the health checker, and the
// WebSocket room registry into one dispatcher. tlsProvider may be nil
// if no listener uses https.
func NewServer(st *store.Store, checker *health.Checker, rooms *websocket.Rooms, tlsProvider tlsprovider.Provider, version, commit, buildTime string) *Server {
	registerHealthChecks(checker, st)
	logger, err := logging.New(logging.Config{Level: "info", Format: "json", RedactPII: true})
	if err != nil {
		// Level/Format above are fixed valid literals; New only errors on
		// an unrecognized one, so this branch cannot be reached in practice.
		logger = nil
	}
	return &Server{
		store:       st,
		health:      checker,
		rooms:       rooms,
		upgrader:    websocket.NewUpgrader(4096, 4096),
		tlsProvider: tlsProvider,
		metrics:     noopMetrics{},
		logger:      logger,
		version:     version,
		commit:      commit,
		buildTime:   buildTime,
	}
}

// SetMetrics attaches the metrics surface dispatch reports through.
// Optional: a Server built via NewServer reports to a noop sink until
// this is called.
func (s *Server) SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	s.metrics = m
}

// SetLogger replaces the request logger, e.g. to point RedactPatterns
// at operator-supplied secret formats or change the output format.
func (s *Server) SetLogger(l *logging.Logger) {
	s.logger = l
}

// Start launches one serving goroutine per configured listener and
// returns without waiting for the binds to complete. Bind and serve
// errors are logged, not returned, matching the teacher's
// detached-goroutine serve pattern; Start itself errors only when no
// configuration is committed or an https listener has no TLS provider.
func (s *Server) Start(ctx context.Context) error {
	snap := s.store.Current()
	if snap == nil || snap.Config == nil {
		return fmt.Errorf("proxy: no configuration committed")
	}
	cfg := snap.Config

	handler := s.buildHandler()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range cfg.Listeners {
		srv := &http.Server{
			Addr:              l.Address,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout(cfg),
		}

		switch l.Protocol {
		case "https":
			if s.tlsProvider == nil {
				return fmt.Errorf("proxy: listener %s requires https but no TLS provider is configured", l.Address)
			}
			srv.TLSConfig = &tls.Config{
				MinVersion:   tls.VersionTLS13,
				CipherSuites: tls13CipherSuites,
				GetCertificate: tlsprovider.GetCertificateFunc(s.tlsProvider),
			}
			s.listenAndServe(srv, true)
		case "metrics":
			srv.Handler = promhttp.Handler()
			s.listenAndServe(srv, false)
		default:
			s.listenAndServe(srv, false)
		}

		s.servers = append(s.servers, srv)
	}

	return nil
}

func readHeaderTimeout(cfg *config.Config) time.Duration {
	if cfg.Runtime.ReadHeaderTimeout > 0 {
		return cfg.Runtime.ReadHeaderTimeout
	}
	return 10 * time.Second
}

func (s *Server) listenAndServe(srv *http.Server, withTLS bool) {
	go func() {
		var err error
		if withTLS {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("listener stopped", "addr", srv.Addr, "error", err)
		}
	}()
}

// Shutdown drains every listener, bounded by ctx's deadline (spec
// §5's graceful shutdown).
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		servers := append([]*http.Server(nil), s.servers...)
		s.mu.Unlock()

		var wg sync.WaitGroup
		errs := make([]error, len(servers))
		for i, srv := range servers {
			wg.Add(1)
			go func(i int, srv *http.Server) {
				defer wg.Done()
				errs[i] = srv.Shutdown(ctx)
			}(i, srv)
		}
		wg.Wait()
		err = errors.Join(errs...)
	})
	return err
}

// buildHandler assembles the ambient middleware chain around the
// route-dispatch mux, outermost to innermost: Recovery, Logging,
// RequestID, CORS, Timeout.
func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()
	health.HTTPMiddleware(mux, s.health, s.version, s.commit, s.buildTime)
	mux.HandleFunc("/", s.dispatch)

	cors := middleware.DefaultCORSConfig()
	chain := middleware.TimeoutMiddleware(30 * time.Second)(mux)
	chain = middleware.CORSMiddleware(cors)(chain)
	chain = middleware.RequestIDMiddleware(chain)
	chain = middleware.LoggingMiddleware(chain)
	chain = middleware.RecoveryMiddleware(chain)
	return chain
}

// dispatch is the core request-handling entry point: match, run
// middleware, dispatch to a service, stream the result back (spec
// §4.7's full request lifecycle).
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r = r.WithContext(tracing.Extract(r.Context(), r.Header))
	snap := s.store.Current()
	if snap == nil {
		writeError(w, types.NewServiceUnavailableError("no configuration committed"))
		return
	}
	cfg := snap.Config

	headerValue := ""
	if cfg.HeaderSelector != "" {
		headerValue = r.Header.Get(cfg.HeaderSelector)
	}

	result, err := snap.Routes.Match(r.Host, headerValue, r.URL.Path, r.Method)
	if err != nil {
		writeError(w, HandleError(&RouteError{Path: r.URL.Path, Err: err}))
		return
	}

	routeCfg := &cfg.Routes[result.RouteIndex]
	reqView := newRequestView(r, result.Params)
	scope := buildScope(r, result.Params)

	steps, svc, err := s.openSteps(r.Context(), snap, cfg, routeCfg, result, scope, reqView)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to open middleware steps", "error", err)
		writeError(w, types.NewServerError("failed to prepare the request pipeline"))
		return
	}
	defer pipeline.CloseSteps(r.Context(), steps)

	outcome := pipeline.RunRequestFilter(r.Context(), steps)

	if outcome.Upgraded {
		s.serveWebSocketUpgrade(w, r, outcome.UpgradedAt.Handler)
		pipeline.RunLogging(r.Context(), steps)
		return
	}

	if outcome.Terminated {
		snapMut := outcome.TerminatedAt.Handler.Mutation().Snapshot()
		n, _ := ApplyMutation(w, snapMut, nil)
		s.runResponsePhases(r.Context(), steps, nil)
		pipeline.RunLogging(r.Context(), steps)
		s.logRequest(r, result, routeCfg, http.StatusOK, n, start)
		return
	}

	rv, status, err := s.dispatchService(r, svc, result)
	if err != nil {
		writeError(w, HandleError(err))
		pipeline.RunLogging(r.Context(), steps)
		s.metrics.RecordRequest(strings.Join(routeCfg.Matcher.Values, ","), "error", time.Since(start))
		return
	}

	respFilterOutcome := s.runResponsePhases(r.Context(), steps, rv)
	finalSnap := session.Snapshot{}
	if respFilterOutcome.Terminated {
		finalSnap = respFilterOutcome.TerminatedAt.Handler.Mutation().Snapshot()
	}

	n, err := ApplyMutation(w, finalSnap, rv)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed writing response", "error", err)
	}
	if rv != nil {
		rv.recordByteCount(n)
	}

	pipeline.RunLogging(r.Context(), steps)
	s.logRequest(r, result, routeCfg, status, n, start)
}

// runResponsePhases runs ResponseFilter and, when the response carries
// a body, ResponseBodyFilter over the opened steps. A termination in
// ResponseFilter does not skip ResponseBodyFilter; the returned outcome
// is ResponseFilter's if it terminated, otherwise ResponseBodyFilter's.
func (s *Server) runResponsePhases(ctx context.Context, steps []*pipeline.Step, rv *responseView) pipeline.Outcome {
	outcome := pipeline.RunResponseFilter(ctx, steps)
	if rv != nil {
		if body := pipeline.RunResponseBodyFilter(ctx, steps); !outcome.Terminated {
			outcome = body
		}
	}
	return outcome
}

// openSteps expands the matched route+path middleware, appends a
// synthetic step for a plugin-kind service (spec §4.3: the entire
// response is produced by a plugin), and opens sessions for all of
// them against the committed snapshot's transports.
func (s *Server) openSteps(ctx context.Context, snap *store.Snapshot, cfg *config.Config, routeCfg *config.RouteConfig, result *route.Result, scope *template.Scope, reqView session.RequestView) ([]*pipeline.Step, *config.ServiceConfig, error) {
	svcCfg, ok := cfg.Services[result.Service]
	if !ok {
		return nil, nil, fmt.Errorf("proxy: route names unknown service %q", result.Service)
	}

	effective := pipeline.EffectiveMiddleware(cfg, routeCfg, result.Path)
	if svcCfg.Kind == "plugin" && svcCfg.Plugin != nil {
		effective = append(effective, config.MiddlewareStep{
			PluginName:    svcCfg.Plugin.PluginName,
			EntryPoint:    svcCfg.Plugin.EntryPoint,
			StaticPayload: svcCfg.Plugin.StaticPayload,
		})
	}

	resolver := newTransportResolver(snap)
	steps, err := pipeline.OpenSteps(ctx, resolver, effective, scope, reqView)
	if err != nil {
		return nil, nil, err
	}
	return steps, &svcCfg, nil
}

// dispatchService runs the matched service's own dispatch: a
// load-balanced HTTP upstream, or a static file. A plugin-kind
// service never reaches here: it is expected to have already
// terminated during RequestFilter via the synthetic step openSteps
// appended.
func (s *Server) dispatchService(r *http.Request, svc *config.ServiceConfig, result *route.Result) (*responseView, int, error) {
	switch svc.Kind {
	case "http":
		return s.forwardHTTP(r, result)
	case "static":
		return s.serveStatic(r, svc, result)
	case "plugin":
		return nil, 0, fmt.Errorf("proxy: plugin service %q did not terminate the request", svc.Name)
	default:
		return nil, 0, fmt.Errorf("proxy: unknown service kind %q", svc.Kind)
	}
}

func (s *Server) forwardHTTP(r *http.Request, result *route.Result) (*responseView, int, error) {
	snap := s.store.Current()
	pool, ok := snap.Pools[result.Service]
	if !ok {
		return nil, 0, &UpstreamError{Service: result.Service, Err: errNoHealthyEndpoint}
	}

	clientIP := (&requestView{r: r}).ClientIP()
	ep, err := pool.Select(clientIP)
	if err != nil {
		return nil, 0, &UpstreamError{Service: result.Service, Err: errNoHealthyEndpoint}
	}

	upstreamURL := "http://" + ep.Addr() + result.RewrittenPath
	if r.URL.RawQuery != "" {
		upstreamURL += "?" + r.URL.RawQuery
	}

	upReq, err := http.NewRequestWithContext(r.Context(), r.Method, upstreamURL, r.Body)
	if err != nil {
		return nil, 0, &UpstreamError{Service: result.Service, Err: err}
	}
	upReq.Header = r.Header.Clone()

	start := time.Now()
	resp, err := http.DefaultClient.Do(upReq)
	if err != nil {
		cause := err
		if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
			cause = errTimeout
		}
		return nil, 0, &UpstreamError{Service: result.Service, Err: cause}
	}

	return newUpstreamResponseView(resp, time.Since(start)), resp.StatusCode, nil
}

func (s *Server) serveStatic(r *http.Request, svc *config.ServiceConfig, result *route.Result) (*responseView, int, error) {
	if svc.Static == nil {
		return nil, 0, fmt.Errorf("proxy: static service %q missing configuration", svc.Name)
	}
	start := time.Now()
	rec := httptest.NewRecorder()
	static.Serve(rec, r, svc.Static, staticRelativePath(result))
	resp := rec.Result()
	return newUpstreamResponseView(resp, time.Since(start)), resp.StatusCode, nil
}

// staticRelativePath derives the path handed to pkg/static from the
// route match: a single captured path parameter (the common
// `{*path}`-style catch-all) takes priority; otherwise the rewritten
// request path, relative, is used.
func staticRelativePath(result *route.Result) string {
	if len(result.Params) == 1 {
		for _, v := range result.Params {
			return v
		}
	}
	return strings.TrimPrefix(result.RewrittenPath, "/")
}

func (s *Server) serveWebSocketUpgrade(w http.ResponseWriter, r *http.Request, h *session.Handler) {
	if err := websocket.Upgrade(r.Context(), s.upgrader, w, r, h, s.rooms); err != nil {
		slog.ErrorContext(r.Context(), "websocket upgrade failed", "error", err)
	}
}

func buildScope(r *http.Request, params map[string]string) *template.Scope {
	cookies := map[string]string{}
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}
	return &template.Scope{
		Method:   r.Method,
		Path:     r.URL.Path,
		Scheme:   schemeOf(r),
		TLS:      r.TLS != nil,
		Host:     r.Host,
		ClientIP: (&requestView{r: r}).ClientIP(),
		Headers:  r.Header,
		Query:    r.URL.Query(),
		Cookies:  cookies,
		Params:   params,
	}
}

func schemeOf(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func writeError(w http.ResponseWriter, errResp *types.ErrorResponse) {
	if err := WriteErrorResponse(w, errResp); err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}

func (s *Server) logRequest(r *http.Request, result *route.Result, routeCfg *config.RouteConfig, status int, bytes int64, start time.Time) {
	requestID := middleware.GetRequestID(r.Context())
	route := strings.Join(routeCfg.Matcher.Values, ",")
	meta := ExtractResponseMetadata(requestID, route, result.Service, status, bytes, time.Since(start))

	if s.logger != nil {
		ctx := logging.WithRequestID(r.Context(), meta.RequestID)
		ctx = logging.WithRoute(ctx, meta.Route)
		ctx = logging.WithService(ctx, meta.Service)
		ctx = logging.WithClientIP(ctx, r.RemoteAddr)
		s.logger.InfoContext(ctx, "request completed",
			"status", meta.StatusCode,
			"bytes", meta.BytesWritten,
			"duration_ms", meta.Duration.Milliseconds(),
		)
	}
	s.metrics.RecordRequest(route, strconv.Itoa(status), meta.Duration)
}
