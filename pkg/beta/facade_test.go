package beta

import (
	"testing"

	"github.com/solverkit/betareduce/pkg/expr"
	"github.com/stretchr/testify/require"
)

func TestApplyAndReduce_NestedChain(t *testing.T) {
	g := expr.NewGraph()
	e := NewEngine(g, NewCache(g))

	p := g.MkFreshParam(3)
	q := g.MkFreshParam(3)
	head := g.MkLambda(p, g.MkLambda(q, g.MkAdd(p, q)))
	c1 := g.NewConst(3, "001")
	c2 := g.NewConst(3, "010")

	got := e.ApplyAndReduce(head, []expr.Ref{c1, c2})
	require.Equal(t, g.NewConst(3, "011"), got)

	require.Equal(t, 0, e.Bindings().Depth(p))
	require.Equal(t, 0, e.Bindings().Depth(q))
}

func TestApplyAndReduce_SingleLambda(t *testing.T) {
	g := expr.NewGraph()
	e := NewEngine(g, NewCache(g))

	p := g.MkFreshParam(8)
	lam := g.MkLambda(p, p)
	five := g.NewConst(8, "00000101")

	require.Equal(t, five, e.ApplyAndReduce(lam, []expr.Ref{five}))
	require.Equal(t, 0, e.Bindings().Depth(p))
}

func TestApplyAndReduce_PartialArgumentListDropsInnerLambda(t *testing.T) {
	g := expr.NewGraph()
	e := NewEngine(g, NewCache(g))

	// Binding only the outer level: the inner lambda's parameter stays
	// free, its body rebuilds to add(c1, q), and since the body changed the
	// lambda wrapper is dropped in favor of the rebuilt body.
	p := g.MkFreshParam(3)
	q := g.MkFreshParam(3)
	inner := g.MkLambda(q, g.MkAdd(p, q))
	head := g.MkLambda(p, inner)
	c1 := g.NewConst(3, "001")

	got := e.ApplyAndReduce(head, []expr.Ref{c1})
	require.Equal(t, g.MkAdd(c1, q), got)

	require.Equal(t, 0, e.Bindings().Depth(p))
	require.Equal(t, 0, e.Bindings().Depth(q))
}
