package beta

import "github.com/solverkit/betareduce/pkg/expr"

// mark is the three-state visitation status the full/bounded/chain reducer
// keeps per node, per scope: absent (not yet seen), seen, expanded, or
// done. It lives entirely in scope-local tables, never on the node itself —
// only the partial reducer is allowed to mutate a node's mark field
// directly.
type mark uint8

const (
	markSeen mark = iota
	markExpanded
	markDone
)

// Scope is the per-outer-lambda memoization context: a pair of tables keyed
// by node identity, owned exclusively by the scope and released in full
// when the scope closes. Memoized results are valid only for the bindings
// active while the scope's lambda is open, so the tables are discarded
// entirely at close rather than shadowed by an outer table.
type Scope struct {
	g          *expr.Graph
	headLambda expr.Ref
	marks      map[uint32]mark
	results    map[uint32]expr.Ref // parameterized node id -> rebuilt node, owns +1 refcount
}

func newScope(g *expr.Graph, headLambda expr.Ref) *Scope {
	return &Scope{
		g:          g,
		headLambda: headLambda,
		marks:      make(map[uint32]mark),
		results:    make(map[uint32]expr.Ref),
	}
}

func (s *Scope) markOf(n expr.Ref) (mark, bool) {
	m, ok := s.marks[n.Identity()]
	return m, ok
}

func (s *Scope) setMark(n expr.Ref, m mark) {
	s.marks[n.Identity()] = m
}

// storeResult records the rebuilt form of a parameterized node under this
// scope's currently active bindings. The scope takes its own reference;
// close releases it.
func (s *Scope) storeResult(n, result expr.Ref) {
	s.results[n.Identity()] = s.g.Copy(result)
}

func (s *Scope) lookupResult(n expr.Ref) (expr.Ref, bool) {
	r, ok := s.results[n.Identity()]
	return r, ok
}

// close releases every value this scope memoized and discards both tables.
func (s *Scope) close() {
	for _, r := range s.results {
		s.g.Release(r)
	}
	s.marks = nil
	s.results = nil
}

// scopeStack is the stack of active (suspended, since only the top is
// "current") scopes a traversal maintains. The element at depth d
// corresponds to the lambda opened at depth d.
type scopeStack struct {
	frames []*Scope
}

func (ss *scopeStack) push(s *Scope) { ss.frames = append(ss.frames, s) }

func (ss *scopeStack) top() *Scope {
	if len(ss.frames) == 0 {
		return nil
	}
	return ss.frames[len(ss.frames)-1]
}
func (ss *scopeStack) pop() *Scope {
	n := len(ss.frames)
	s := ss.frames[n-1]
	ss.frames = ss.frames[:n-1]
	return s
}
func (ss *scopeStack) depth() int { return len(ss.frames) }
