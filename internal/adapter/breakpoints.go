package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-dap"

	"github.com/tmajors/dapbridge/internal/source"
	"github.com/tmajors/dapbridge/pkg/types"
)

type hitOp int

const (
	hitEq hitOp = iota
	hitMod
	hitGT
	hitGE
	hitLT
	hitLE
)

// hitCondition gates whether a reach of a breakpoint's location actually
// pauses execution, based on the breakpoint's cumulative hit counter.
type hitCondition struct {
	op      hitOp
	operand int
}

// parseHitCondition parses the hit-condition grammar: =N, %N, >N, >=N,
// <N, <=N with a positive integer N. An empty string means "no hit
// condition". Anything else is a parse error; the caller installs such a
// breakpoint as inert rather than rejecting it.
func parseHitCondition(s string) (*hitCondition, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var op hitOp
	var rest string
	switch {
	case strings.HasPrefix(s, ">="):
		op, rest = hitGE, s[2:]
	case strings.HasPrefix(s, "<="):
		op, rest = hitLE, s[2:]
	case strings.HasPrefix(s, "="):
		op, rest = hitEq, s[1:]
	case strings.HasPrefix(s, "%"):
		op, rest = hitMod, s[1:]
	case strings.HasPrefix(s, ">"):
		op, rest = hitGT, s[1:]
	case strings.HasPrefix(s, "<"):
		op, rest = hitLT, s[1:]
	default:
		return nil, fmt.Errorf("hit condition %q: missing operator", s)
	}

	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return nil, fmt.Errorf("hit condition %q: %w", s, err)
	}
	if n <= 0 {
		return nil, fmt.Errorf("hit condition %q: operand must be a positive integer", s)
	}
	return &hitCondition{op: op, operand: n}, nil
}

// met reports whether the condition permits a pause at the given count.
func (c *hitCondition) met(count int) bool {
	switch c.op {
	case hitEq:
		return count == c.operand
	case hitMod:
		return count%c.operand == 0
	case hitGT:
		return count > c.operand
	case hitGE:
		return count >= c.operand
	case hitLT:
		return count < c.operand
	case hitLE:
		return count <= c.operand
	default:
		return false
	}
}

// sourceBreakpoint is one requested breakpoint and its engine-side state.
// An inert breakpoint is installed in name only: it is reported to the
// editor as unverified and never installed engine-side, so it can never
// cause a pause.
type sourceBreakpoint struct {
	id        int
	engineID  string
	requested types.Location
	condition string
	hitCond   *hitCondition
	verified  bool
	inert     bool
	resolved  types.Location
	hitCount  int
}

// breakpointManager owns the set of source breakpoints. The breakpoint
// list for a path is replaced wholesale on every setBreakpoints call;
// breakpoints are never diffed or merged across calls, and replacement
// discards the path's hit counters.
type breakpointManager struct {
	mu         sync.Mutex
	nextID     int
	byPath     map[string][]*sourceBreakpoint
	byEngineID map[string]*sourceBreakpoint
	mapper     source.Mapper
	log        *slog.Logger
}

func newBreakpointManager(mapper source.Mapper, log *slog.Logger) *breakpointManager {
	return &breakpointManager{
		byPath:     make(map[string][]*sourceBreakpoint),
		byEngineID: make(map[string]*sourceBreakpoint),
		mapper:     mapper,
		log:        log,
	}
}

// Set replaces the breakpoint set for path and returns one response entry
// per requested breakpoint, in request order. Resolution failures degrade
// to verified=false; they never fail the request.
func (m *breakpointManager) Set(ctx context.Context, eng Engine, path string, reqs []dap.SourceBreakpoint) []dap.Breakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, old := range m.byPath[path] {
		if old.engineID != "" {
			if err := eng.RemoveBreakpoint(ctx, old.engineID); err != nil {
				m.log.Warn("failed to remove engine breakpoint", "id", old.engineID, "err", err)
			}
			delete(m.byEngineID, old.engineID)
		}
	}
	delete(m.byPath, path)

	results := make([]dap.Breakpoint, len(reqs))
	bps := make([]*sourceBreakpoint, 0, len(reqs))
	for i, req := range reqs {
		m.nextID++
		bp := &sourceBreakpoint{
			id:        m.nextID,
			requested: types.Location{Path: path, Line: req.Line, Column: req.Column},
			condition: req.Condition,
		}
		bps = append(bps, bp)

		cond, err := parseHitCondition(req.HitCondition)
		if err != nil {
			m.log.Debug("unparseable hit condition, installing inert breakpoint",
				"path", path, "line", req.Line, "hitCondition", req.HitCondition, "err", err)
			bp.inert = true
			results[i] = m.response(bp)
			continue
		}
		bp.hitCond = cond

		m.resolve(ctx, eng, bp)
		results[i] = m.response(bp)
	}
	m.byPath[path] = bps
	return results
}

// resolve maps the requested location into the engine and installs the
// breakpoint there. Either step failing leaves the breakpoint unverified.
func (m *breakpointManager) resolve(ctx context.Context, eng Engine, bp *sourceBreakpoint) {
	runtimeLoc, err := m.mapper.ToRuntime(bp.requested)
	if err != nil {
		m.log.Debug("breakpoint location does not map to the runtime",
			"path", bp.requested.Path, "line", bp.requested.Line, "err", err)
		return
	}

	engineID, actual, err := eng.SetBreakpoint(ctx, runtimeLoc)
	if err != nil {
		m.log.Debug("engine rejected breakpoint",
			"path", bp.requested.Path, "line", bp.requested.Line, "err", err)
		return
	}

	resolved, err := m.mapper.ToSource(actual)
	if err != nil {
		// Installed but unreportable; drop it rather than lie about
		// the location.
		if rmErr := eng.RemoveBreakpoint(ctx, engineID); rmErr != nil {
			m.log.Warn("failed to remove unmappable breakpoint", "id", engineID, "err", rmErr)
		}
		return
	}

	bp.engineID = engineID
	bp.resolved = resolved
	bp.verified = true
	m.byEngineID[engineID] = bp
}

func (m *breakpointManager) response(bp *sourceBreakpoint) dap.Breakpoint {
	out := dap.Breakpoint{
		Id:       bp.id,
		Verified: bp.verified,
	}
	if bp.verified {
		out.Line = bp.resolved.Line
		out.Column = bp.resolved.Column
		out.Source = &dap.Source{Path: bp.resolved.Path}
	} else {
		out.Line = bp.requested.Line
	}
	return out
}

// OnHit records one engine-reported reach of the given breakpoints and
// decides whether the reach pauses execution. Hit counters increment on
// every reach, before and regardless of condition evaluation. A plain
// condition expression is evaluated in the hit frame; evaluation failures
// count as "do not pause" so a broken condition cannot wedge the session.
func (m *breakpointManager) OnHit(ctx context.Context, eng Engine, engineIDs []string, callFrameID string) (bool, *sourceBreakpoint) {
	m.mu.Lock()
	hit := make([]*sourceBreakpoint, 0, len(engineIDs))
	for _, id := range engineIDs {
		bp, ok := m.byEngineID[id]
		if !ok {
			continue
		}
		bp.hitCount++
		hit = append(hit, bp)
	}
	m.mu.Unlock()

	for _, bp := range hit {
		if bp.inert {
			continue
		}
		if bp.condition != "" {
			val, evalErr, err := eng.Evaluate(ctx, callFrameID, bp.condition)
			if err != nil || evalErr != nil {
				m.log.Debug("breakpoint condition failed to evaluate",
					"path", bp.requested.Path, "line", bp.requested.Line,
					"condition", bp.condition)
				continue
			}
			if !isTruthy(val) {
				continue
			}
		}
		if bp.hitCond != nil && !bp.hitCond.met(bp.hitCount) {
			continue
		}
		return true, bp
	}
	return false, nil
}

// Snapshot returns the current response entries for a path, in install
// order. Re-querying without intervening hits returns exactly what Set
// returned.
func (m *breakpointManager) Snapshot(path string) []dap.Breakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	bps := m.byPath[path]
	out := make([]dap.Breakpoint, len(bps))
	for i, bp := range bps {
		out[i] = m.response(bp)
	}
	return out
}

// Paths lists every path with installed breakpoints.
func (m *breakpointManager) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.byPath))
	for p := range m.byPath {
		paths = append(paths, p)
	}
	return paths
}
