package beta

import (
	"github.com/pkg/errors"
	"github.com/solverkit/betareduce/pkg/expr"
)

// Engine bundles the shared, cross-call state (parameter bindings and the
// result cache) that every entry point in this file needs.
type Engine struct {
	g        *expr.Graph
	bindings *Bindings
	cache    *Cache
	reducer  *Reducer
}

// NewEngine creates the convenience façade over g. cache belongs to the
// enclosing solver and may be shared across many Engines backed by the same
// graph; pass a fresh NewCache(g) if the caller has none yet.
func NewEngine(g *expr.Graph, cache *Cache) *Engine {
	bindings := NewBindings(g)
	return &Engine{
		g:        g,
		bindings: bindings,
		cache:    cache,
		reducer:  NewReducer(g, bindings, cache),
	}
}

// Bindings exposes the engine's parameter binding stack, so a caller driving
// partial reduction can assign arguments before invoking Partial.
func (e *Engine) Bindings() *Bindings { return e.bindings }

// Cache exposes the engine's cross-call cache.
func (e *Engine) Cache() *Cache { return e.cache }

// Full reduces root completely: every reachable lambda application is
// expanded and the cross-call cache is consulted and populated.
func (e *Engine) Full(root expr.Ref) expr.Ref {
	return e.reducer.Reduce(ModeFull, 0, root)
}

// Chains reduces only lambda chains, leaving unrelated subterms untouched;
// used to merge a chain of lambdas into a single equivalent lambda or term.
func (e *Engine) Chains(root expr.Ref) expr.Ref {
	return e.reducer.Reduce(ModeChain, 0, root)
}

// Bounded reduces root but stops expanding lambdas once the scope depth
// reaches bound, cloning deeper lambdas as-is. bound must be positive.
func (e *Engine) Bounded(root expr.Ref, bound int) expr.Ref {
	if bound < 1 {
		panic(errors.New("beta: Bounded requires bound >= 1"))
	}
	return e.reducer.Reduce(ModeBounded, bound, root)
}

// ApplyAndReduce binds args down the lambda chain rooted at lambdaHead,
// invokes full reduction on lambdaHead, then unassigns everything it bound,
// in reverse. This differs from the auto-binding the reducer performs when
// it encounters an apply node: here the arguments are supplied directly by
// the caller rather than discovered from an enclosing apply.
func (e *Engine) ApplyAndReduce(lambdaHead expr.Ref, args []expr.Ref) expr.Ref {
	level := lambdaHead
	bound := make([]expr.Ref, 0, len(args))
	for _, arg := range args {
		e.bindings.Assign(level, arg)
		bound = append(bound, level)
		level = e.g.Child(level.Strip(), 1)
	}

	result := e.reducer.Reduce(ModeFull, 0, lambdaHead)

	for i := len(bound) - 1; i >= 0; i-- {
		e.bindings.Unassign(bound[i])
	}
	return result
}

// Partial reduces root down the single path selected by the current
// parameter bindings, evaluating conditionals concretely, without
// populating any selector table. The second return value is the
// parameterized origin of the result, or expr.NilRef if that origin is not
// parameterized.
func (e *Engine) Partial(root expr.Ref) (expr.Ref, expr.Ref) {
	return newPartialReducer(e.g, e.bindings, nil, nil).run(root)
}

// PartialCollect runs partial reduction while recording, for every
// evaluated conditional, which branch was taken: sel1 receives the
// condition when it evaluated true, sel2 when false. Both tables are
// caller-owned.
func (e *Engine) PartialCollect(root expr.Ref, sel1, sel2 *SelectorTable) expr.Ref {
	result, _ := newPartialReducer(e.g, e.bindings, sel1, sel2).run(root)
	return result
}
