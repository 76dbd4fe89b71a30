package template

import (
	"fmt"
	"strings"
)

// Evaluate expands every `${func(...)}` expression in input against scope
// and returns the resulting string. An unknown function name or malformed
// bracketing returns an error; callers implement spec §4.2's
// on_error:continue policy by catching that error and using the original
// template text (or a static fallback) instead of failing the request.
func Evaluate(input string, scope *Scope) (string, error) {
	var out strings.Builder
	rest := input

	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		out.WriteString(rest[:start])

		body := rest[start+2:]
		p := &parser{src: body}
		p.skipSpace()
		c, err := p.parseCall()
		if err != nil {
			return "", fmt.Errorf("template: %w", err)
		}
		if !p.consume('}') {
			return "", fmt.Errorf("template: expected '}' closing expression, got %q", p.remainder())
		}

		val, err := evalCall(scope, c)
		if err != nil {
			return "", err
		}
		out.WriteString(val)

		rest = body[p.pos:]
	}
}

func evalCall(scope *Scope, c *call) (string, error) {
	f, ok := catalogue[c.name]
	if !ok {
		return "", fmt.Errorf("template: unknown function %q", c.name)
	}

	args := make([]string, len(c.args))
	for i, a := range c.args {
		if a.literal != nil {
			args[i] = *a.literal
			continue
		}
		v, err := evalCall(scope, a.call)
		if err != nil {
			return "", err
		}
		args[i] = v
	}

	return f(scope, args)
}
