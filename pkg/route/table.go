package route

import (
	"errors"
	"net"
	"strings"

	"github.com/nylon-dev/nylon/pkg/config"
)

// ErrNoMatch means no route's host/header matcher accepted the request.
var ErrNoMatch = errors.New("route: no route matched")

// ErrMethodNotAllowed means a path pattern matched but the request method
// is not in the path's configured method set (spec §4.1: 405, not 404).
var ErrMethodNotAllowed = errors.New("route: method not allowed for matched path")

// Result is the output of a successful two-stage match (spec §3
// "Runtime entities" / §4.1 "Output of a successful match").
type Result struct {
	RouteIndex int
	Path       *config.PathConfig
	Params     map[string]string
	Service    string
	// RewrittenPath is the path to forward upstream: equal to the
	// original request path unless the matched path declares a rewrite.
	RewrittenPath string
}

type routeEntry struct {
	index  int
	cfg    *config.RouteConfig
	tree   *node
	hostSplit []string // lowercased '|'-split host literals, "*" meaning any
}

// Table is the compiled form of a committed configuration's Routes list,
// ready to match requests. Build once per commit via Build; Match is safe
// for concurrent use by many requests against one Table.
type Table struct {
	headerSelector string
	hostRoutes     []routeEntry
	headerRoutes   []routeEntry
}

// Build compiles a Table from configuration. Routes are partitioned into
// host and header buckets by matcher kind, each route's path patterns
// compiled into one radix tree (spec §4.1 stage 2).
func Build(cfg *config.Config) *Table {
	t := &Table{headerSelector: cfg.HeaderSelector}

	for i := range cfg.Routes {
		rc := &cfg.Routes[i]
		tree := newNode()
		for pi := range rc.Paths {
			for _, pattern := range rc.Paths[pi].Patterns {
				tree.insert(pattern, pi)
			}
		}

		entry := routeEntry{index: i, cfg: rc, tree: tree}

		switch rc.Matcher.Kind {
		case "header":
			t.headerRoutes = append(t.headerRoutes, entry)
		default: // "host" and unset both bucket as host routes
			entry.hostSplit = lowerAll(rc.Matcher.Values)
			t.hostRoutes = append(t.hostRoutes, entry)
		}
	}

	return t
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

// Match runs the two-stage match for one request. host is the raw Host
// header (port stripped internally); headerValue is the value of the
// configured header-selector header, if any; path and method come from
// the request line.
func (t *Table) Match(host, headerValue, path, method string) (*Result, error) {
	host = stripPort(strings.ToLower(host))

	if entry, ok := selectHostRoute(t.hostRoutes, host); ok {
		return matchPath(entry, path, method)
	}

	if t.headerSelector != "" {
		if entry, ok := selectHeaderRoute(t.headerRoutes, headerValue); ok {
			return matchPath(entry, path, method)
		}
	}

	return nil, ErrNoMatch
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// selectHostRoute finds the first declared host route whose value list
// contains the request host, with literal matches preferred over a "*"
// wildcard entry regardless of declaration order (spec §4.1: "a host
// literal of * ... is lowest priority").
func selectHostRoute(routes []routeEntry, host string) (routeEntry, bool) {
	var wildcard *routeEntry
	for i := range routes {
		for _, v := range routes[i].hostSplit {
			if v == "*" {
				if wildcard == nil {
					wildcard = &routes[i]
				}
				continue
			}
			if v == host {
				return routes[i], true
			}
		}
	}
	if wildcard != nil {
		return *wildcard, true
	}
	return routeEntry{}, false
}

func selectHeaderRoute(routes []routeEntry, headerValue string) (routeEntry, bool) {
	for i := range routes {
		for _, v := range routes[i].cfg.Matcher.Values {
			if v == headerValue {
				return routes[i], true
			}
		}
	}
	return routeEntry{}, false
}

func matchPath(entry routeEntry, path, method string) (*Result, error) {
	segments := splitPath(path)
	pe, params, ok := entry.tree.match(segments)
	if !ok {
		return nil, ErrNoMatch
	}

	pathCfg := &entry.cfg.Paths[pe.pathIndex]
	if len(pathCfg.Methods) > 0 && !containsMethod(pathCfg.Methods, method) {
		return nil, ErrMethodNotAllowed
	}

	rewritten := path
	if pathCfg.Rewrite != "" {
		rewritten = rewrite(pathCfg.Rewrite, pe.pattern, params)
	}

	return &Result{
		RouteIndex:    entry.index,
		Path:          pathCfg,
		Params:        params,
		Service:       pathCfg.Service,
		RewrittenPath: rewritten,
	}, nil
}

func containsMethod(methods []string, method string) bool {
	for _, m := range methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// rewrite implements spec §4.1's path rewrite semantics: the literal
// prefix matched by the pattern is replaced by prefix; a catch-all
// capture, if the pattern has one, is preserved verbatim after it.
func rewrite(prefix, pattern string, params map[string]string) string {
	segments := splitPath(pattern)
	for _, seg := range segments {
		if strings.HasPrefix(seg, "{*") && strings.HasSuffix(seg, "}") {
			name := seg[2 : len(seg)-1]
			suffix := params[name]
			if suffix == "" {
				return prefix
			}
			return strings.TrimSuffix(prefix, "/") + "/" + suffix
		}
	}
	return prefix
}
