// Package template implements the Template Evaluator (C4): a recursive-
// descent parser/evaluator for strings containing `${func(a1, a2, ...)}`
// expressions, evaluated once per request at middleware-invocation time
// against a read-only request scope (spec §4.2).
//
// New package grounded on the teacher's pkg/proxy/metadata.go for what a
// "request scope" contains (method, path, query, client IP, headers) —
// the function catalogue itself and the parsing grammar have no teacher
// analogue, since the teacher never evaluates user-authored template
// strings.
package template
