package pipeline

import "github.com/nylon-dev/nylon/pkg/config"

// ExpandMiddleware inlines group references into a flat step list, in
// declaration order, per spec §4.7 step 1: "each expanded by inlining
// any group reference in declaration order; deduplication is not
// performed (declaring a plugin twice runs it twice)."
//
// A group step (GroupRef set) is replaced by that group's own steps,
// recursively, so a group may itself reference other groups. Cyclic
// group references are cut at the first repeat of a name to avoid an
// infinite expansion; config.Validate does not check for group cycles,
// so this cut is the only guard against them.
func ExpandMiddleware(cfg *config.Config, steps []config.MiddlewareStep) []config.MiddlewareStep {
	return expand(cfg, steps, map[string]bool{})
}

func expand(cfg *config.Config, steps []config.MiddlewareStep, seen map[string]bool) []config.MiddlewareStep {
	out := make([]config.MiddlewareStep, 0, len(steps))
	for _, step := range steps {
		if step.GroupRef == "" {
			out = append(out, step)
			continue
		}
		if seen[step.GroupRef] {
			continue
		}
		group, ok := cfg.MiddlewareGroups[step.GroupRef]
		if !ok {
			continue
		}
		seen[step.GroupRef] = true
		out = append(out, expand(cfg, group.Steps, seen)...)
		delete(seen, step.GroupRef)
	}
	return out
}

// EffectiveMiddleware computes "route-level middleware ++ path-level
// middleware" (spec §4.7 step 1) for one matched path, fully expanded.
func EffectiveMiddleware(cfg *config.Config, route *config.RouteConfig, path *config.PathConfig) []config.MiddlewareStep {
	combined := make([]config.MiddlewareStep, 0, len(route.Middleware)+len(path.Middleware))
	combined = append(combined, route.Middleware...)
	combined = append(combined, path.Middleware...)
	return ExpandMiddleware(cfg, combined)
}
