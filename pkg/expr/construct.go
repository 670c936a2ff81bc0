package expr

import "github.com/pkg/errors"

// The constructors below are the graph's rewriting constructors. Every one
// except MkFreshParam hash-conses through Graph.intern and, at rewrite
// level > 1, applies one cheap peephole before insertion so the result
// stays simplified.

func leaf(kind Kind, width int) *Node {
	return &Node{kind: kind, width: width}
}

// newLeaf creates an uninterpreted variable. Each call gets its own
// sequence number, so two variables never hash-cons to the same node.
func (g *Graph) newLeaf(kind Kind, width int) Ref {
	g.nextParam++
	n := leaf(kind, width)
	n.paramSeq = g.nextParam
	return g.intern(n)
}

// NewConst creates a bit-vector constant node of the given width. The
// concrete value is opaque to the beta engine; only EvaluateToConst (in
// eval.go) interprets it.
func (g *Graph) NewConst(width int, bits string) Ref {
	if len(bits) != width {
		panic(errors.Errorf("expr: const width mismatch: width=%d len(bits)=%d", width, len(bits)))
	}
	n := leaf(KindBVConst, width)
	n.bits = bits
	return g.intern(n)
}

// NewBVVar creates an uninterpreted bit-vector variable of the given width.
func (g *Graph) NewBVVar(width int) Ref { return g.newLeaf(KindBVVar, width) }

// NewArrayVar creates an uninterpreted array variable with the given
// element width (index width is not modeled; this engine never inspects
// array indices, only array identity).
func (g *Graph) NewArrayVar(elementWidth int) Ref { return g.newLeaf(KindArrayVar, elementWidth) }

// MkFreshParam allocates a new parameter node of the given width. Distinct
// calls always produce distinct nodes: parameters are never hash-cons
// shared across different binding sites.
func (g *Graph) MkFreshParam(width int) Ref {
	g.nextParam++
	n := leaf(KindParam, width)
	n.paramSeq = g.nextParam
	n.id = id(len(g.nodes))
	n.refcount = 1
	n.freeParams = map[id]struct{}{n.id: {}}
	g.nodes = append(g.nodes, n)
	return Ref{idx: n.id}
}

// combineFlags unions the free-parameter sets and lambdaBelow bits of dst's
// children into dst. Called by every composite constructor; MkLambda
// additionally removes its own bound parameter afterward.
func combineFlags(dst *Node, children []Ref, g *Graph) {
	for _, c := range children {
		cn := g.node(c)
		for p := range cn.freeParams {
			if dst.freeParams == nil {
				dst.freeParams = make(map[id]struct{}, len(cn.freeParams))
			}
			dst.freeParams[p] = struct{}{}
		}
		if cn.lambdaBelow {
			dst.lambdaBelow = true
		}
	}
}

// foldShape evaluates a not-yet-interned candidate node whose operands are
// fully concrete, returning the equivalent constant instead of allocating
// the composite. Disabled at rewrite level <= 1 so structural rebuilds stay
// structural.
func (g *Graph) foldShape(n *Node) (Ref, bool) {
	if g.rewriteLevel <= 1 || n.width > 64 {
		return NilRef, false
	}
	c := &evalCtx{g: g}
	var bits string
	var ok bool
	switch n.kind {
	case KindAnd:
		bits, ok = c.evalBinary(n, bitAnd)
	case KindAdd:
		bits, ok = c.evalBinary(n, bitAdd)
	case KindMul:
		bits, ok = c.evalBinary(n, bitMul)
	case KindUdiv:
		bits, ok = c.evalBinary(n, bitUdiv)
	case KindUrem:
		bits, ok = c.evalBinary(n, bitUrem)
	case KindUlt:
		bits, ok = c.evalCompare(n, func(a, b uint64) bool { return a < b })
	case KindEq:
		bits, ok = c.evalEq(n)
	case KindSll:
		bits, ok = c.evalShift(n, true)
	case KindSrl:
		bits, ok = c.evalShift(n, false)
	case KindConcat:
		bits, ok = c.evalConcat(n)
	case KindSlice:
		bits, ok = c.evalSlice(n)
	default:
		return NilRef, false
	}
	if !ok {
		return NilRef, false
	}
	return g.NewConst(n.width, bits), true
}

func (g *Graph) mk2(kind Kind, width int, a, b Ref) Ref {
	n := &Node{kind: kind, width: width, arity: 2, children: [3]Ref{a, b}}
	combineFlags(n, n.children[:2], g)
	if c, ok := g.foldShape(n); ok {
		return c
	}
	return g.intern(n)
}

// MkSlice extracts bits [upper:lower] (inclusive) of a.
func (g *Graph) MkSlice(a Ref, upper, lower int) Ref {
	if upper < lower || lower < 0 {
		panic(errors.New("expr: invalid slice bounds"))
	}
	n := &Node{kind: KindSlice, width: upper - lower + 1, arity: 1, children: [3]Ref{a}, upper: upper, lower: lower}
	combineFlags(n, n.children[:1], g)
	if c, ok := g.foldShape(n); ok {
		return c
	}
	r := g.intern(n)
	if g.rewriteLevel > 1 && upper-lower+1 == g.Width(a) && upper == g.Width(a)-1 && lower == 0 {
		g.forward(r, a)
	}
	return r
}

// MkAnd builds a bitwise AND of two equal-width bit-vectors.
func (g *Graph) MkAnd(a, b Ref) Ref {
	requireSameWidth(g, a, b)
	r := g.mk2(KindAnd, g.Width(a), a, b)
	if g.rewriteLevel > 1 && a == b {
		g.forward(r, a)
	}
	return r
}

// MkEq builds a single-bit equality test between two same-width bit-vector
// or array operands.
func (g *Graph) MkEq(a, b Ref) Ref {
	r := g.mk2(KindEq, 1, a, b)
	if g.rewriteLevel > 1 && a == b {
		g.forward(r, g.NewConst(1, "1"))
	}
	return r
}

// MkAdd builds bit-vector addition.
func (g *Graph) MkAdd(a, b Ref) Ref {
	requireSameWidth(g, a, b)
	return g.mk2(KindAdd, g.Width(a), a, b)
}

// MkMul builds bit-vector multiplication.
func (g *Graph) MkMul(a, b Ref) Ref {
	requireSameWidth(g, a, b)
	return g.mk2(KindMul, g.Width(a), a, b)
}

// MkUlt builds an unsigned less-than comparison, producing a single bit.
func (g *Graph) MkUlt(a, b Ref) Ref {
	requireSameWidth(g, a, b)
	return g.mk2(KindUlt, 1, a, b)
}

// MkSll builds a logical shift-left of a by b.
func (g *Graph) MkSll(a, b Ref) Ref {
	requireSameWidth(g, a, b)
	return g.mk2(KindSll, g.Width(a), a, b)
}

// MkSrl builds a logical shift-right of a by b.
func (g *Graph) MkSrl(a, b Ref) Ref {
	requireSameWidth(g, a, b)
	return g.mk2(KindSrl, g.Width(a), a, b)
}

// MkUdiv builds unsigned division.
func (g *Graph) MkUdiv(a, b Ref) Ref {
	requireSameWidth(g, a, b)
	return g.mk2(KindUdiv, g.Width(a), a, b)
}

// MkUrem builds unsigned remainder.
func (g *Graph) MkUrem(a, b Ref) Ref {
	requireSameWidth(g, a, b)
	return g.mk2(KindUrem, g.Width(a), a, b)
}

// MkConcat builds bit-vector concatenation, a as the high bits.
func (g *Graph) MkConcat(a, b Ref) Ref {
	return g.mk2(KindConcat, g.Width(a)+g.Width(b), a, b)
}

// MkArgs packages 1-3 argument nodes, in forward positional order, into a
// single args node.
func (g *Graph) MkArgs(args ...Ref) Ref {
	if len(args) < 1 || len(args) > 3 {
		panic(errors.Errorf("expr: args arity must be 1..3, got %d", len(args)))
	}
	n := &Node{kind: KindArgs, arity: len(args)}
	copy(n.children[:], args)
	combineFlags(n, n.children[:n.arity], g)
	return g.intern(n)
}

// MkApply builds an application of fn (a lambda or a function-typed value)
// to argsNode (an args node built by MkArgs).
func (g *Graph) MkApply(fn, argsNode Ref) Ref {
	if g.Kind(argsNode) != KindArgs {
		panic(errors.New("expr: MkApply requires an args node as its second operand"))
	}
	return g.mk2(KindApply, g.Width(fn), fn, argsNode)
}

// MkLambda builds a lambda abstraction over param with the given body. The
// result is lambdaBelow by definition, and parameterized only if the body
// refers to some *other* free parameter besides the one it binds here —
// param's own occurrences are removed from the free set.
func (g *Graph) MkLambda(param, body Ref) Ref {
	if g.Kind(param) != KindParam {
		panic(errors.New("expr: MkLambda requires a parameter as its first operand"))
	}
	n := &Node{kind: KindLambda, width: g.Width(body), arity: 2, children: [3]Ref{param, body}}
	combineFlags(n, n.children[:2], g)
	delete(n.freeParams, param.idx)
	n.lambdaBelow = true

	// A lambda chain is detected structurally, at construction time: if the
	// body is itself a lambda, both ends are chain participants and the
	// body is the non-head (nested) member. Nesting is a property of how
	// the lambda was built, not of where a traversal reaches it from.
	if bodyNode := g.node(body); bodyNode.kind == KindLambda {
		n.chain = true
		bodyNode.chain = true
		bodyNode.nested = true
	}
	return g.intern(n)
}

// MkIte builds a conditional: for bit-vector operands, cond must have
// width 1 and thenBranch/elseBranch must share a width; for array operands
// the same shape applies over array nodes. The kind is picked from the
// branches: KindArrayCond when either branch is an array variable,
// KindBVCond otherwise.
func (g *Graph) MkIte(cond, thenBranch, elseBranch Ref) Ref {
	if g.Width(cond) != 1 {
		panic(errors.New("expr: MkIte condition must be a single bit"))
	}
	if g.rewriteLevel > 1 {
		if bits, ok := g.EvaluateToConst(cond, nil); ok {
			if bits == "1" {
				return g.Copy(thenBranch)
			}
			return g.Copy(elseBranch)
		}
	}
	kind := KindBVCond
	if g.Kind(thenBranch) == KindArrayVar || g.Kind(elseBranch) == KindArrayVar {
		kind = KindArrayCond
	}
	n := &Node{kind: kind, width: g.Width(thenBranch), arity: 3, children: [3]Ref{cond, thenBranch, elseBranch}}
	combineFlags(n, n.children[:3], g)
	r := g.intern(n)
	if g.rewriteLevel > 1 && thenBranch == elseBranch {
		g.forward(r, thenBranch)
	}
	return r
}

func requireSameWidth(g *Graph, a, b Ref) {
	if g.Width(a) != g.Width(b) {
		panic(errors.Errorf("expr: width mismatch: %d vs %d", g.Width(a), g.Width(b)))
	}
}
