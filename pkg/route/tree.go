package route

import "strings"

// patternEntry is what a radix tree leaf resolves to: which Path entry (by
// index into the owning route's Paths slice) and which literal pattern
// string matched, needed later to compute rewrite output.
type patternEntry struct {
	pathIndex int
	pattern   string
}

type paramEdge struct {
	name  string
	child *node
}

type catchallEdge struct {
	name  string
	entry *patternEntry
}

// node is one segment position in a route's radix tree. Children are
// tried in precedence order at match time: literal, then param (in
// declaration order), then catchall (in declaration order) — spec §4.1.
type node struct {
	literalChildren  map[string]*node
	paramChildren    []paramEdge
	catchallChildren []catchallEdge
	entry            *patternEntry
}

func newNode() *node {
	return &node{literalChildren: map[string]*node{}}
}

// splitPath normalizes a request or pattern path into non-empty segments.
// "/" and "" both yield zero segments.
func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// insert adds one pattern string into the tree, associating it with
// pathIndex. Patterns are inserted in declaration order (route paths in
// order, patterns within a path in order), which is what makes the
// paramChildren/catchallChildren slice order double as the tie-break
// order spec §4.1 requires.
func (n *node) insert(pattern string, pathIndex int) {
	segments := splitPath(pattern)
	cur := n
	for i, seg := range segments {
		switch {
		case strings.HasPrefix(seg, "{*") && strings.HasSuffix(seg, "}"):
			name := seg[2 : len(seg)-1]
			cur.catchallChildren = append(cur.catchallChildren, catchallEdge{
				name:  name,
				entry: &patternEntry{pathIndex: pathIndex, pattern: pattern},
			})
			return
		case strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"):
			name := seg[1 : len(seg)-1]
			child := cur.findOrCreateParam(name)
			cur = child
		default:
			child, ok := cur.literalChildren[seg]
			if !ok {
				child = newNode()
				cur.literalChildren[seg] = child
			}
			cur = child
		}
		if i == len(segments)-1 {
			cur.entry = &patternEntry{pathIndex: pathIndex, pattern: pattern}
		}
	}
	if len(segments) == 0 {
		cur.entry = &patternEntry{pathIndex: pathIndex, pattern: pattern}
	}
}

func (n *node) findOrCreateParam(name string) *node {
	for _, e := range n.paramChildren {
		if e.name == name {
			return e.child
		}
	}
	child := newNode()
	n.paramChildren = append(n.paramChildren, paramEdge{name: name, child: child})
	return child
}

// match walks segments against the tree, exploring literal children
// before param children before catchall children at every level, which
// realizes the literal > capture > catchall precedence: a literal branch
// is explored to exhaustion (including everything beneath it) before a
// sibling param branch is even tried.
func (n *node) match(segments []string) (*patternEntry, map[string]string, bool) {
	if len(segments) == 0 {
		if n.entry != nil {
			return n.entry, map[string]string{}, true
		}
		return nil, nil, false
	}

	seg, rest := segments[0], segments[1:]

	if child, ok := n.literalChildren[seg]; ok {
		if entry, params, ok := child.match(rest); ok {
			return entry, params, true
		}
	}

	for _, e := range n.paramChildren {
		if entry, params, ok := e.child.match(rest); ok {
			params[e.name] = seg
			return entry, params, true
		}
	}

	for _, e := range n.catchallChildren {
		params := map[string]string{e.name: strings.Join(segments, "/")}
		return e.entry, params, true
	}

	return nil, nil, false
}
