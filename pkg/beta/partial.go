package beta

import (
	"github.com/pkg/errors"
	"github.com/solverkit/betareduce/pkg/expr"
)

// partialWorkItem mirrors workItem but for the single-path reducer, which
// tracks its mark on the node itself rather than in a scope table.
type partialWorkItem struct {
	node   expr.Ref
	parent expr.Ref
}

type partialMemoKey struct {
	node     uint32
	snapshot string
}

type partialEntry struct {
	result expr.Ref
	origin expr.Ref
}

// partialReducer evaluates an expression down a single concrete path. One
// is built per call to Partial or PartialCollect and discarded afterward;
// unlike Reducer it owns no state worth reusing across calls, since its
// memo is keyed by bindings that are specific to one invocation.
type partialReducer struct {
	g        *expr.Graph
	bindings *Bindings
	sel1     *SelectorTable
	sel2     *SelectorTable

	work        []partialWorkItem
	argStack    []expr.Ref
	originStack []expr.Ref

	memo    map[partialMemoKey]partialEntry
	visited map[uint32]struct{}
}

func newPartialReducer(g *expr.Graph, bindings *Bindings, sel1, sel2 *SelectorTable) *partialReducer {
	return &partialReducer{
		g:        g,
		bindings: bindings,
		sel1:     sel1,
		sel2:     sel2,
		memo:     make(map[partialMemoKey]partialEntry),
		visited:  make(map[uint32]struct{}),
	}
}

func (p *partialReducer) isApplyParent(parent expr.Ref) bool {
	return !parent.IsNil() && p.g.Kind(parent.Strip()) == expr.KindApply
}

// run drives the traversal and returns the rebuilt node plus the
// parameterized subterm responsible for it, if any.
func (p *partialReducer) run(root expr.Ref) (result, origin expr.Ref) {
	strippedRoot := root.Strip()
	if !p.g.Parameterized(strippedRoot) && p.g.Kind(strippedRoot) != expr.KindLambda {
		return p.g.Copy(root), expr.NilRef
	}

	prevLevel := p.g.SetRewriteLevel(1)
	defer p.g.SetRewriteLevel(prevLevel)

	exp := root
	if p.g.Kind(strippedRoot) == expr.KindLambda {
		// Partial reduction never preserves an un-applied lambda wrapper:
		// by precondition its parameter is already bound by the caller, so
		// only the body carries meaning.
		exp = p.g.Child(strippedRoot, 1)
	}

	p.work = append(p.work, partialWorkItem{node: exp, parent: expr.NilRef})
	for len(p.work) > 0 {
		item := p.work[len(p.work)-1]
		p.work = p.work[:len(p.work)-1]
		p.step(item)
	}

	if len(p.argStack) != 1 {
		panic(errors.Errorf("beta: partial reduction left %d entries on arg_stack, want 1", len(p.argStack)))
	}
	result = p.argStack[0]
	origin = p.originStack[0]
	p.argStack, p.originStack = nil, nil

	if origin.IsNil() || !p.g.Parameterized(origin.Strip()) {
		origin = expr.NilRef
	}
	p.cleanup()
	return result, origin
}

func (p *partialReducer) cleanup() {
	for _, entry := range p.memo {
		p.g.Release(entry.result)
	}
	for rawID := range p.visited {
		p.g.SetBetaMark(expr.RefFromIdentity(rawID), 0)
	}
	p.memo = nil
	p.visited = nil
}

func (p *partialReducer) step(item partialWorkItem) {
	N := item.node.Strip()
	switch p.g.BetaMark(N) {
	case 0:
		p.touchFresh(item.node, N, item.parent)
	case 1:
		p.rebuild(item.node, N, item.parent)
	case 2:
		p.revisit(item.node, N, item.parent)
	default:
		panic(errors.Errorf("beta: node %s has invalid beta_mark", p.g.String(N)))
	}
}

func (p *partialReducer) touchFresh(cur, N, parent expr.Ref) {
	p.visited[N.Identity()] = struct{}{}

	if !p.g.Parameterized(N) {
		p.pushResultWithOrigin(cur, p.g.Copy(cur), N)
		return
	}

	if p.g.Kind(N) == expr.KindParam {
		bound, ok := p.bindings.Current(N)
		if !ok {
			panic(errors.Errorf("beta: partial reduction reached unbound parameter %s", p.g.String(N)))
		}
		val := bound
		if cur.Inverted() {
			val = val.Not()
		}
		p.pushResultWithOrigin(cur, p.g.Copy(val), N)
		return
	}

	if p.g.Kind(N) == expr.KindBVCond {
		condRef := p.g.Child(N, 0)
		if bit, ok := p.g.EvaluateToConst(condRef, p.bindings.Current); ok {
			var branch expr.Ref
			if bit == "1" {
				branch = p.g.Child(N, 1)
				if p.sel1 != nil {
					p.sel1.record(condRef)
				}
			} else {
				branch = p.g.Child(N, 2)
				if p.sel2 != nil {
					p.sel2.record(condRef)
				}
			}
			p.work = append(p.work, partialWorkItem{node: branch, parent: N})
			return
		}
		// Undetermined: fall through to the generic rebuild path below,
		// treating this ITE like any other ternary node.
	}

	if p.g.Kind(N) == expr.KindLambda {
		param := p.g.Child(N, 0)
		_, alreadyBound := p.bindings.Current(param)
		if p.isApplyParent(parent) && len(p.argStack) > 0 && !alreadyBound {
			argsNode := p.argStack[len(p.argStack)-1]
			p.bindings.AssignArgs(N, argsNode)
		}
	}

	p.g.SetBetaMark(N, 1)
	arity := p.g.Arity(N)
	p.work = append(p.work, partialWorkItem{node: cur, parent: parent})
	for i := 0; i < arity; i++ {
		p.work = append(p.work, partialWorkItem{node: p.g.Child(N, i), parent: N})
	}
}

func (p *partialReducer) rebuild(cur, N, parent expr.Ref) {
	arity := p.g.Arity(N)
	e := make([]expr.Ref, arity)
	eOrigin := make([]expr.Ref, arity)
	for i := arity - 1; i >= 0; i-- {
		last := len(p.argStack) - 1
		e[i] = p.argStack[last]
		eOrigin[i] = p.originStack[last]
		p.argStack = p.argStack[:last]
		p.originStack = p.originStack[:last]
	}
	// e[i] holds the result of child[arity-1-i]; the rebuilds below
	// compensate, the same way the full reducer's do.

	var result, origin expr.Ref
	origin = N // default: this node itself is the responsible origin

	switch p.g.Kind(N) {
	case expr.KindSlice:
		upper, lower := p.g.SliceBounds(N)
		result = p.g.MkSlice(e[0], upper, lower)
	case expr.KindAnd:
		result = p.g.MkAnd(e[1], e[0])
	case expr.KindEq:
		result = p.g.MkEq(e[1], e[0])
	case expr.KindAdd:
		result = p.g.MkAdd(e[1], e[0])
	case expr.KindMul:
		result = p.g.MkMul(e[1], e[0])
	case expr.KindUlt:
		result = p.g.MkUlt(e[1], e[0])
	case expr.KindSll:
		result = p.g.MkSll(e[1], e[0])
	case expr.KindSrl:
		result = p.g.MkSrl(e[1], e[0])
	case expr.KindUdiv:
		result = p.g.MkUdiv(e[1], e[0])
	case expr.KindUrem:
		result = p.g.MkUrem(e[1], e[0])
	case expr.KindConcat:
		result = p.g.MkConcat(e[1], e[0])
	case expr.KindArgs:
		switch arity {
		case 1:
			result = p.g.MkArgs(e[0])
		case 2:
			result = p.g.MkArgs(e[1], e[0])
		case 3:
			result = p.g.MkArgs(e[2], e[1], e[0])
		default:
			panic(errors.Errorf("beta: args node with impossible arity %d", arity))
		}
	case expr.KindApply:
		fnResult, argsResult := e[1], e[0]
		if p.g.Kind(fnResult.Strip()) != expr.KindLambda {
			// The function position has already reduced to a plain value;
			// pass it through untouched, including whichever subterm was
			// actually responsible for it being parameterized.
			result = p.g.Copy(fnResult)
			origin = eOrigin[1]
		} else {
			result = p.g.MkApply(fnResult, argsResult)
		}
	case expr.KindLambda:
		// Partial reduction never keeps a lambda wrapper: it always emits
		// the reduced body, carrying the body's own origin forward.
		result = p.g.Copy(e[0])
		origin = eOrigin[0]
	case expr.KindBVCond, expr.KindArrayCond:
		result = p.g.MkIte(e[2], e[1], e[0])
	default:
		panic(errors.Errorf("beta: unhandled kind %s at partial rebuild", p.g.Kind(N)))
	}

	for _, c := range e {
		p.g.Release(c)
	}

	key := partialMemoKey{node: N.Identity(), snapshot: p.bindings.Snapshot(p.g.FreeParams(N))}
	p.memo[key] = partialEntry{result: p.g.Copy(result), origin: origin}

	if p.g.Kind(N) == expr.KindLambda {
		param := p.g.Child(N, 0)
		if _, bound := p.bindings.Current(param); bound {
			p.bindings.Unassign(N)
		}
	}

	p.g.SetBetaMark(N, 2)
	p.pushResultWithOrigin(cur, result, origin)
}

func (p *partialReducer) revisit(cur, N, parent expr.Ref) {
	key := partialMemoKey{node: N.Identity(), snapshot: p.bindings.Snapshot(p.g.FreeParams(N))}
	entry, ok := p.memo[key]
	if !ok {
		// Bindings moved on since this node was last memoized: start over.
		p.g.SetBetaMark(N, 0)
		p.work = append(p.work, partialWorkItem{node: cur, parent: parent})
		return
	}
	p.pushResultWithOrigin(cur, p.g.Copy(entry.result), entry.origin)
}

func (p *partialReducer) pushResultWithOrigin(cur, result, origin expr.Ref) {
	if cur.Inverted() {
		result = result.Not()
	}
	p.argStack = append(p.argStack, result)
	p.originStack = append(p.originStack, origin)
}
