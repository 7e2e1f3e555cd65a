package adapter

import (
	"context"
	"strings"

	"github.com/tmajors/dapbridge/internal/engine"
)

// completer resolves property-path completion candidates against live
// scope and object state. Resolution is frame-scoped: the same text can
// yield different candidates under a different frame, because the access
// path is looked up through that frame's scope chain.
type completer struct {
	eng Engine
}

// complete returns candidate labels for the expression text up to column
// (1-based), evaluated against the given frame. Everything before the last
// property-access separator is resolved as an access path; everything
// after it filters the final value's members. A resolution failure at any
// step degrades to an empty candidate list, never an error.
func (c *completer) complete(ctx context.Context, frame *frameRecord, text string, column int) []string {
	if column > 0 && column-1 < len(text) {
		text = text[:column-1]
	}

	basePath, prefix := splitAccessPath(text)
	if basePath == "" {
		return c.scopeCandidates(ctx, frame, prefix)
	}

	val, ok := c.resolvePath(ctx, frame, basePath)
	if !ok {
		return nil
	}
	members, err := c.eng.Members(ctx, val)
	if err != nil {
		return nil
	}
	return filterLabels(members, prefix)
}

// splitAccessPath splits at the last property-access separator.
func splitAccessPath(text string) (base, prefix string) {
	if i := strings.LastIndexByte(text, '.'); i >= 0 {
		return text[:i], text[i+1:]
	}
	return "", text
}

// scopeCandidates returns the union of all bindings visible in the frame's
// scope chain, innermost first so locals shadow outer bindings of the same
// name.
func (c *completer) scopeCandidates(ctx context.Context, frame *frameRecord, prefix string) []string {
	var labels []string
	seen := make(map[string]bool)
	for _, scope := range frame.frame.ScopeChain {
		members, err := c.eng.Members(ctx, scope.Object)
		if err != nil {
			continue
		}
		for _, m := range members {
			if seen[m.Name] || !strings.HasPrefix(m.Name, prefix) {
				continue
			}
			seen[m.Name] = true
			labels = append(labels, m.Name)
		}
	}
	return labels
}

// resolvePath walks the dotted access path step by step. The first segment
// is looked up through the frame's scope chain (first match wins); each
// further segment must name a member of the value reached so far.
func (c *completer) resolvePath(ctx context.Context, frame *frameRecord, path string) (engine.Value, bool) {
	segments := strings.Split(path, ".")

	current, ok := c.lookupBinding(ctx, frame, segments[0])
	if !ok {
		return engine.Value{}, false
	}
	for _, seg := range segments[1:] {
		members, err := c.eng.Members(ctx, current)
		if err != nil {
			return engine.Value{}, false
		}
		next, ok := findMember(members, seg)
		if !ok {
			return engine.Value{}, false
		}
		current = next
	}
	return current, true
}

func (c *completer) lookupBinding(ctx context.Context, frame *frameRecord, name string) (engine.Value, bool) {
	for _, scope := range frame.frame.ScopeChain {
		members, err := c.eng.Members(ctx, scope.Object)
		if err != nil {
			continue
		}
		if v, ok := findMember(members, name); ok {
			return v, true
		}
	}
	return engine.Value{}, false
}

func findMember(members []engine.Property, name string) (engine.Value, bool) {
	for _, m := range members {
		if m.Name == name {
			return m.Value, true
		}
	}
	return engine.Value{}, false
}

// filterLabels keeps member names matching the prefix, in enumeration
// order, collapsing duplicates by label.
func filterLabels(members []engine.Property, prefix string) []string {
	var labels []string
	seen := make(map[string]bool)
	for _, m := range members {
		if seen[m.Name] || !strings.HasPrefix(m.Name, prefix) {
			continue
		}
		seen[m.Name] = true
		labels = append(labels, m.Name)
	}
	return labels
}
