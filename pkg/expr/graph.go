package expr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Graph owns the hash-cons table and refcounts for a family of Nodes. All
// Refs produced by one Graph are meaningless against another.
//
// A Graph is not safe for concurrent use. The engine in pkg/beta assumes
// exclusive ownership of a single Graph for the duration of one call.
type Graph struct {
	nodes   []*Node // index 0 is unused so the zero id/Ref means "absent"
	consTab map[string]id

	// rewriteLevel controls how aggressively the constructors rewrite.
	// The partial reducer pins it to 1 for the duration of one call and
	// restores it on every exit path, including panics, via defer.
	rewriteLevel int

	nextParam int
}

// NewGraph creates an empty graph with one fresh placeholder at index 0.
func NewGraph() *Graph {
	g := &Graph{
		nodes:        []*Node{nil}, // id 0 reserved as "no node"
		consTab:      make(map[string]id),
		rewriteLevel: 3,
	}
	return g
}

// RewriteLevel returns the graph's current rewrite aggressiveness. Only
// consulted by the rewriting constructors to decide whether to fold
// constants beyond trivial identities.
func (g *Graph) RewriteLevel() int { return g.rewriteLevel }

// SetRewriteLevel pins the rewrite level, returning the previous value so
// callers can restore it with defer. Used only by the partial reducer.
func (g *Graph) SetRewriteLevel(level int) (previous int) {
	previous = g.rewriteLevel
	g.rewriteLevel = level
	return previous
}

func (g *Graph) node(r Ref) *Node {
	if r.IsNil() {
		panic(errors.New("expr: nil Ref dereferenced"))
	}
	n := g.nodes[r.idx]
	if n == nil {
		panic(errors.New("expr: dangling Ref dereferenced"))
	}
	return n
}

// fingerprint computes the hash-cons key for a candidate node shape. Two
// structurally identical shapes (kind, children, width/bounds) always
// produce the same node.
func fingerprint(n *Node) string {
	var b strings.Builder
	b.WriteString(n.kind.String())
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(n.width))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(n.upper))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(n.lower))
	b.WriteByte('|')
	b.WriteString(n.bits)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(n.paramSeq))
	for _, c := range n.children[:n.arity] {
		b.WriteByte('|')
		if c.inverted {
			b.WriteByte('~')
		}
		b.WriteString(strconv.FormatUint(uint64(c.idx), 10))
	}
	return b.String()
}

// intern inserts a fully-constructed node shape into the hash-cons table,
// returning the existing Ref if an identical shape is already present.
// Every call that reaches here returns a Ref owning exactly one new
// refcount on the returned node.
func (g *Graph) intern(n *Node) Ref {
	key := fingerprint(n)
	if existing, ok := g.consTab[key]; ok {
		g.nodes[existing].refcount++
		return Ref{idx: existing}
	}

	for _, c := range n.children[:n.arity] {
		g.nodes[c.idx].refcount++
	}

	n.id = id(len(g.nodes))
	n.refcount = 1
	g.nodes = append(g.nodes, n)
	g.consTab[key] = n.id
	return Ref{idx: n.id}
}

// Copy returns a new reference to the same node, incrementing its refcount.
// Nodes are shared, never deep-copied.
func (g *Graph) Copy(r Ref) Ref {
	g.node(r) // validate
	g.nodes[r.idx].refcount++
	return r
}

// Release drops one reference to r. When a node's refcount reaches zero its
// children are released in turn and the node is evicted from the hash-cons
// table. Releasing NilRef is a no-op.
func (g *Graph) Release(r Ref) {
	if r.IsNil() {
		return
	}
	n := g.node(r)
	n.refcount--
	if n.refcount > 0 {
		return
	}
	if n.refcount < 0 {
		panic(errors.New("expr: refcount underflow on release"))
	}
	key := fingerprint(n)
	delete(g.consTab, key)
	g.nodes[n.id] = nil
	for _, c := range n.children[:n.arity] {
		g.Release(c)
	}
}

// Refcount reports the current reference count of the node r points to.
func (g *Graph) Refcount(r Ref) int { return g.node(r).refcount }

// Kind, Arity, Width, Children and the flag accessors below let the beta
// engine inspect node shape without reaching into Graph internals.

func (g *Graph) Kind(r Ref) Kind { return g.node(r).kind }
func (g *Graph) Arity(r Ref) int { return g.node(r).arity }
func (g *Graph) Width(r Ref) int { return g.node(r).width }
func (g *Graph) SliceBounds(r Ref) (upper, lower int) {
	n := g.node(r)
	return n.upper, n.lower
}

// Child returns child i of r, composing the parent's inversion bit onto
// neither side: children are stored plain and the parent's own inversion is
// carried solely by the Ref the caller already holds to the parent.
func (g *Graph) Child(r Ref, i int) Ref { return g.node(r).children[i] }

func (g *Graph) Parameterized(r Ref) bool { return len(g.node(r).freeParams) > 0 }

// FreeParams returns the parameters free in r's subtree, sorted by node id
// so repeated calls for the same node produce a stable order — the partial
// reducer's memo key hashes this list's current bindings and needs the
// order deterministic.
func (g *Graph) FreeParams(r Ref) []Ref {
	n := g.node(r)
	out := make([]Ref, 0, len(n.freeParams))
	for pid := range n.freeParams {
		out = append(out, Ref{idx: pid})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].idx < out[j].idx })
	return out
}

func (g *Graph) LambdaBelow(r Ref) bool { return g.node(r).lambdaBelow }
func (g *Graph) Chain(r Ref) bool       { return g.node(r).chain }

// Nested reports whether r (a lambda) is a non-head member of a lambda
// chain, i.e. it is itself the body of an enclosing lambda. Set
// automatically by MkLambda, never by the caller, since it is a structural
// property of how r was built rather than a fact discovered by traversal.
func (g *Graph) Nested(r Ref) bool { return g.node(r).nested }

func (g *Graph) Constraint(r Ref) bool { return g.node(r).constraint }
func (g *Graph) Tseitin(r Ref) bool    { return g.node(r).tseitin }

// MarkTseitin flags r as having been given a Tseitin CNF variable by the
// SAT encoding layer. The beta engine never reads this flag, but the SAT
// layer depends on it surviving untouched across reductions.
func (g *Graph) MarkTseitin(r Ref) { g.node(r).tseitin = true }

// MarkConstraint flags r (a top-level apply) as a constraint. The reducer
// must not let the simplifier rewrite a constraint apply away; it only
// chases the forwarding chain for such roots.
func (g *Graph) MarkConstraint(r Ref) { g.node(r).constraint = true }

// MarkChain flags r (a lambda) as a participant in a reducible lambda
// chain, consulted only by chain-mode reduction.
func (g *Graph) MarkChain(r Ref) { g.node(r).chain = true }

// BetaMark and SetBetaMark expose the single mutable per-node byte the
// partial reducer uses for its fast-path visitation marks. The
// full/bounded/chain reducer must never call SetBetaMark; its marks live in
// scope-local tables.
func (g *Graph) BetaMark(r Ref) uint8       { return g.node(r).betaMark }
func (g *Graph) SetBetaMark(r Ref, m uint8) { g.node(r).betaMark = m }

// Simplify follows r's forwarding pointer (if any) to its canonical
// representative, composing inversion bits along the way. A node with no
// forwarding pointer simplifies to itself.
func (g *Graph) Simplify(r Ref) Ref {
	n := g.node(r)
	if n.simplified.IsNil() {
		return r
	}
	target := n.simplified
	if r.inverted {
		target = target.Not()
	}
	return g.Simplify(target)
}

// ChaseForwarded is identical to Simplify but is the name the beta engine
// calls when it specifically means "resolve a forwarding chain" — for
// constraint applies, where a rewriting simplification would be unsound.
func (g *Graph) ChaseForwarded(r Ref) Ref { return g.Simplify(r) }

// forward installs a forwarding pointer from `from` to `to`, used by the
// rewriting constructors when a cheap peephole rewrite recognizes that a
// freshly built node is equivalent to an existing, simpler one.
func (g *Graph) forward(from, to Ref) {
	g.node(from).simplified = to
}

// String renders r using the current graph for structural debugging. Kept
// deliberately terse; richer dumps live in debug.go via go-spew.
func (g *Graph) String(r Ref) string {
	if r.IsNil() {
		return "<nil>"
	}
	n := g.node(r)
	prefix := ""
	if r.inverted {
		prefix = "~"
	}
	switch n.arity {
	case 0:
		return fmt.Sprintf("%s%s", prefix, n.kind)
	default:
		parts := make([]string, n.arity)
		for i := 0; i < n.arity; i++ {
			parts[i] = g.String(n.children[i])
		}
		return fmt.Sprintf("%s%s(%s)", prefix, n.kind, strings.Join(parts, ","))
	}
}
