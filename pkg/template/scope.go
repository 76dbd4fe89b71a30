package template

import "net/http"

// Scope is the read-only set of values a template expression may consult,
// captured once per request at middleware-invocation time (spec §4.2).
// Nothing in Scope is mutated during evaluation.
type Scope struct {
	Method   string
	Path     string
	Scheme   string
	TLS      bool
	Host     string
	ClientIP string
	Headers  http.Header
	Query    map[string][]string
	Cookies  map[string]string
	Params   map[string]string
}

func (s *Scope) header(name string) string {
	if s.Headers == nil {
		return ""
	}
	return s.Headers.Get(name)
}

func (s *Scope) query(name string) (string, bool) {
	vs, ok := s.Query[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func (s *Scope) cookie(name string) (string, bool) {
	v, ok := s.Cookies[name]
	return v, ok
}

func (s *Scope) param(name string) (string, bool) {
	v, ok := s.Params[name]
	return v, ok
}

func (s *Scope) request(field string) (string, bool) {
	switch field {
	case "client_ip":
		return s.ClientIP, true
	case "host":
		return s.Host, true
	case "method":
		return s.Method, true
	case "path":
		return s.Path, true
	case "scheme":
		return s.Scheme, true
	case "tls":
		if s.TLS {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}
