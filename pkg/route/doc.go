// Package route implements the Route Matcher (C3): a two-stage match
// evaluated on every request — route selection by host or header bucket,
// then per-route path matching against a radix tree of literal, single-
// segment capture (`{name}`), and catch-all (`{*name}`) patterns.
//
// There is no teacher equivalent: the teacher routes requests by LLM
// provider/model name, never by HTTP path. This package is grounded on
// the teacher's general "deterministic-precedence selector" style seen in
// pkg/routing/selector.go — a pure function from request to decision, no
// hidden state, no caching of the decision — adapted here to a radix tree
// instead of a strategy list.
package route
