package beta

import (
	"github.com/pkg/errors"
	"github.com/solverkit/betareduce/pkg/expr"
)

// workItem is one entry of the iterative worklist: a child reference still
// carrying its own inversion bit, paired with the node it was reached from.
// isRoot marks the very first item pushed for a call, the only one eligible
// for the constraint-apply simplification exception.
type workItem struct {
	node   expr.Ref
	parent expr.Ref
	isRoot bool
}

// Reducer runs the full/bounded/chain traversal. One Reducer is reused
// across calls on the same graph; its worklists are reset at the start of
// every Reduce so allocations amortize across calls.
type Reducer struct {
	g        *expr.Graph
	bindings *Bindings
	cache    *Cache

	mode  Mode
	bound int

	base   *Scope
	scopes scopeStack

	work     []workItem
	argStack []expr.Ref
}

// NewReducer builds a reducer over g, sharing bindings and cache with the
// rest of the engine — both outlive any single Reduce call.
func NewReducer(g *expr.Graph, bindings *Bindings, cache *Cache) *Reducer {
	return &Reducer{g: g, bindings: bindings, cache: cache}
}

// Reduce runs one full/bounded/chain traversal of root and returns the
// single rebuilt node the caller now owns. bound is ignored outside
// ModeBounded.
func (r *Reducer) Reduce(mode Mode, bound int, root expr.Ref) expr.Ref {
	if mode == ModeBounded && bound < 1 {
		panic(errors.New("beta: bounded mode requires bound >= 1"))
	}
	r.mode = mode
	r.bound = bound
	r.work = r.work[:0]
	r.argStack = r.argStack[:0]
	r.base = newScope(r.g, expr.NilRef)
	r.scopes.frames = nil

	r.work = append(r.work, workItem{node: root, parent: expr.NilRef, isRoot: true})

	for len(r.work) > 0 {
		item := r.work[len(r.work)-1]
		r.work = r.work[:len(r.work)-1]
		r.step(item)
	}

	r.base.close()
	if r.scopes.depth() != 0 {
		panic(errors.New("beta: scope stack not empty on return"))
	}
	if len(r.argStack) != 1 {
		panic(errors.Errorf("beta: post-traversal invariant violated: arg_stack has %d entries, want 1", len(r.argStack)))
	}
	result := r.argStack[0]
	r.argStack = r.argStack[:0]
	return result
}

// currentScope returns the innermost active scope: the top of the real
// (lambda-opened) scope stack, or the ambient base scope if none is open.
func (r *Reducer) currentScope() *Scope {
	if s := r.scopes.top(); s != nil {
		return s
	}
	return r.base
}

func (r *Reducer) isApplyParent(parent expr.Ref) bool {
	return !parent.IsNil() && r.g.Kind(parent.Strip()) == expr.KindApply
}

func (r *Reducer) step(item workItem) {
	raw := item.node
	var n expr.Ref
	strippedRaw := raw.Strip()
	if item.isRoot && r.g.Kind(strippedRaw) == expr.KindApply && r.g.Constraint(strippedRaw) {
		n = r.g.ChaseForwarded(raw)
	} else {
		n = r.g.Simplify(raw)
	}
	N := n.Strip()

	scope := r.currentScope()
	m, present := scope.markOf(N)
	if !present {
		r.firstTouch(N, n, item.parent, item.isRoot)
		return
	}
	switch m {
	case markExpanded:
		r.postOrder(N, n, item.parent)
	case markDone:
		r.revisit(N, n, scope)
	default:
		panic(errors.Errorf("beta: node %s popped with unexpected mark %d", r.g.String(N), m))
	}
}

// firstTouch handles a node seen for the first time in the current scope.
func (r *Reducer) firstTouch(N, n, parent expr.Ref, isRoot bool) {
	// Open a new scope for a non-parameterized lambda that either stands
	// alone or is the head of a nested chain.
	if r.g.Kind(N) == expr.KindLambda && !r.g.Parameterized(N) && (!r.g.Chain(N) || !r.g.Nested(N)) {
		r.scopes.push(newScope(r.g, N))
	}
	scope := r.currentScope()

	scope.setMark(N, markSeen)
	arity := r.g.Arity(N)
	se := make([]expr.Ref, arity)
	for i := 0; i < arity; i++ {
		se[i] = r.g.Simplify(r.g.Child(N, i))
	}

	// Early exits: the bounded cut, the chain-mode skip, and subtrees that
	// mention no lambda and no parameter (reduction cannot change them).
	if r.mode == ModeBounded && r.g.Kind(N) == expr.KindLambda && r.scopes.depth() >= r.bound {
		r.emit(N, n, r.g.Copy(N))
		return
	}
	if r.mode == ModeChain {
		isLambda := r.g.Kind(N) == expr.KindLambda
		if (isLambda && !r.g.Chain(N)) || (!isLambda && !r.g.Parameterized(N)) {
			r.emit(N, n, r.g.Copy(N))
			return
		}
	}
	if !r.g.LambdaBelow(N) && !r.g.Parameterized(N) {
		r.emit(N, n, r.g.Copy(N))
		return
	}

	// Parameter substitution: an unbound parameter stands for itself.
	if r.g.Kind(N) == expr.KindParam {
		if bound, ok := r.bindings.Current(N); ok {
			r.emit(N, n, r.g.Copy(bound))
		} else {
			r.emit(N, n, r.g.Copy(N))
		}
		return
	}

	// A lambda reached through an apply binds itself to the args node the
	// traversal has already produced on the arg stack. A nested chain
	// member's parameter was bound when the head was touched.
	if r.g.Kind(N) == expr.KindLambda {
		param := r.g.Child(N, 0)
		_, alreadyBound := r.bindings.Current(param)
		if r.isApplyParent(parent) && len(r.argStack) > 0 && !alreadyBound {
			argsNode := r.argStack[len(r.argStack)-1]
			if r.mode == ModeFull {
				if cached, ok := r.cache.Lookup(N, argsNode); ok {
					r.emit(N, n, r.g.Copy(cached))
					return
				}
			}
			r.bindings.AssignArgs(N, argsNode)
		}
	}

	// Promote to expanded and push this node's frame, then its children in
	// ascending order: the highest-indexed child lands on top of the stack
	// and is processed first, so an apply's args child is fully reduced
	// before its function child binds against it.
	scope.setMark(N, markExpanded)
	r.work = append(r.work, workItem{node: N, parent: parent, isRoot: isRoot})
	for i := 0; i < arity; i++ {
		r.work = append(r.work, workItem{node: se[i], parent: N, isRoot: false})
	}
}

// postOrder is the "mark = expanded" branch: all children have produced
// results on arg_stack, so N can be rebuilt.
func (r *Reducer) postOrder(N, n, parent expr.Ref) {
	arity := r.g.Arity(N)
	e := make([]expr.Ref, arity)
	for i := arity - 1; i >= 0; i-- {
		last := len(r.argStack) - 1
		e[i] = r.argStack[last]
		r.argStack = r.argStack[:last]
	}
	// Children were pushed in ascending order, so child arity-1 was
	// processed first and its result sits deepest: e[i] holds the result of
	// child[arity-1-i]. Every rebuild below compensates for the reversal.

	var result expr.Ref
	switch r.g.Kind(N) {
	case expr.KindBVConst, expr.KindBVVar, expr.KindArrayVar, expr.KindParam:
		result = r.g.Copy(N)
	case expr.KindSlice:
		upper, lower := r.g.SliceBounds(N)
		result = r.g.MkSlice(e[0], upper, lower)
	case expr.KindAnd:
		result = r.g.MkAnd(e[1], e[0])
	case expr.KindEq:
		result = r.g.MkEq(e[1], e[0])
	case expr.KindAdd:
		result = r.g.MkAdd(e[1], e[0])
	case expr.KindMul:
		result = r.g.MkMul(e[1], e[0])
	case expr.KindUlt:
		result = r.g.MkUlt(e[1], e[0])
	case expr.KindSll:
		result = r.g.MkSll(e[1], e[0])
	case expr.KindSrl:
		result = r.g.MkSrl(e[1], e[0])
	case expr.KindUdiv:
		result = r.g.MkUdiv(e[1], e[0])
	case expr.KindUrem:
		result = r.g.MkUrem(e[1], e[0])
	case expr.KindConcat:
		result = r.g.MkConcat(e[1], e[0])
	case expr.KindArgs:
		switch arity {
		case 1:
			result = r.g.MkArgs(e[0])
		case 2:
			result = r.g.MkArgs(e[1], e[0])
		case 3:
			result = r.g.MkArgs(e[2], e[1], e[0])
		default:
			panic(errors.Errorf("beta: args node with impossible arity %d", arity))
		}
	case expr.KindApply:
		fnResult, argsResult := e[1], e[0]
		if r.g.Kind(fnResult.Strip()) != expr.KindLambda {
			result = r.g.Copy(fnResult)
		} else {
			result = r.g.MkApply(fnResult, argsResult)
		}
		if r.mode == ModeFull {
			origFn := r.g.Child(N, 0)
			if r.g.Kind(origFn.Strip()) == expr.KindLambda && !r.g.Parameterized(origFn.Strip()) {
				r.cache.Store(r.g.Simplify(origFn), r.g.Simplify(argsResult), result)
			}
		}
	case expr.KindLambda:
		// Either nothing changed (the parameter was unbound and the body
		// reduced to itself while still mentioning it, so the lambda
		// survives), or the body collapsed to a term and the lambda wrapper
		// is dropped.
		origParam, origBody := r.g.Child(N, 0), r.g.Child(N, 1)
		paramResult, bodyResult := e[1], e[0]
		if paramResult == origParam && bodyResult == origBody && r.g.Parameterized(origBody) {
			result = r.g.Copy(N)
		} else {
			result = r.g.Copy(bodyResult)
		}
	case expr.KindBVCond, expr.KindArrayCond:
		result = r.g.MkIte(e[2], e[1], e[0])
	default:
		panic(errors.Errorf("beta: unhandled kind %s at rebuild", r.g.Kind(N)))
	}

	for _, c := range e {
		r.g.Release(c)
	}

	r.emit(N, n, result)
}

// revisit is "mark = done": N was already fully processed in the currently
// active scope, so reuse its memoized or cloned result rather than redoing
// the work (this is what keeps DAGs from blowing up exponentially).
func (r *Reducer) revisit(N, n expr.Ref, scope *Scope) {
	var result expr.Ref
	if r.g.Parameterized(N) {
		stored, ok := scope.lookupResult(N)
		if !ok {
			panic(errors.Errorf("beta: node %s marked done but missing from scope results", r.g.String(N)))
		}
		result = r.g.Copy(stored)
	} else {
		result = r.g.Copy(N)
	}
	r.pushArgStack(n, result)
}

// emit finishes a node: promote to done, memoize in the current scope,
// close the scope if N was its head, unassign the chain starting at N if N
// is a non-nested lambda whose parameter is currently bound (whoever bound
// it), then push the inversion-corrected result.
func (r *Reducer) emit(N, n, result expr.Ref) {
	scope := r.currentScope()
	scope.setMark(N, markDone)

	if r.g.Parameterized(N) {
		scope.storeResult(N, result)
	}

	if top := r.scopes.top(); top != nil && top.headLambda == N {
		r.scopes.pop()
		top.close()
	}

	if r.g.Kind(N) == expr.KindLambda && !r.g.Nested(N) {
		param := r.g.Child(N, 0)
		if _, bound := r.bindings.Current(param); bound {
			r.bindings.Unassign(N)
		}
	}

	r.pushArgStack(n, result)
}

// pushArgStack re-applies n's inversion bit (relative to the canonical node
// the processing above worked with) to result before making it visible to
// the caller's frame.
func (r *Reducer) pushArgStack(n, result expr.Ref) {
	if n.Inverted() {
		result = result.Not()
	}
	r.argStack = append(r.argStack, result)
}
