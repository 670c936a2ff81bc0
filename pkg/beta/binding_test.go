package beta

import (
	"testing"

	"github.com/solverkit/betareduce/pkg/expr"
	"github.com/stretchr/testify/require"
)

func TestBindings_AssignCurrentUnassign(t *testing.T) {
	g := expr.NewGraph()
	b := NewBindings(g)
	p := g.MkFreshParam(8)
	lam := g.MkLambda(p, p)
	arg := g.NewConst(8, "00000101")

	_, ok := b.Current(p)
	require.False(t, ok)

	b.Assign(lam, arg)
	cur, ok := b.Current(p)
	require.True(t, ok)
	require.Equal(t, arg, cur)

	b.Unassign(lam)
	_, ok = b.Current(p)
	require.False(t, ok)
}

func TestBindings_StackSupportsRecursiveReentry(t *testing.T) {
	g := expr.NewGraph()
	b := NewBindings(g)
	p := g.MkFreshParam(4)
	lam := g.MkLambda(p, p)
	a1 := g.NewConst(4, "0001")
	a2 := g.NewConst(4, "0010")

	b.Assign(lam, a1)
	b.Assign(lam, a2)
	require.Equal(t, 2, b.Depth(p))

	cur, _ := b.Current(p)
	require.Equal(t, a2, cur, "the most recent binding must shadow the outer one")

	b.Unassign(lam)
	cur, _ = b.Current(p)
	require.Equal(t, a1, cur, "popping must reveal the outer binding, not clear it")
}

func TestBindings_WidthMismatchPanics(t *testing.T) {
	g := expr.NewGraph()
	b := NewBindings(g)
	p := g.MkFreshParam(8)
	lam := g.MkLambda(p, p)
	wrongWidth := g.NewConst(4, "0001")

	require.Panics(t, func() { b.Assign(lam, wrongWidth) })
}

func TestBindings_AssignArgsZipsChain(t *testing.T) {
	g := expr.NewGraph()
	b := NewBindings(g)
	p := g.MkFreshParam(3)
	q := g.MkFreshParam(3)
	inner := g.MkLambda(q, g.MkAdd(p, q))
	head := g.MkLambda(p, inner)

	c1 := g.NewConst(3, "001")
	c2 := g.NewConst(3, "010")
	args := g.MkArgs(c1, c2)

	b.AssignArgs(head, args)
	curP, ok := b.Current(p)
	require.True(t, ok)
	require.Equal(t, c1, curP)
	curQ, ok := b.Current(q)
	require.True(t, ok)
	require.Equal(t, c2, curQ)
}

func TestBindings_UnassignStopsAtNonLambdaOrEmptyStack(t *testing.T) {
	g := expr.NewGraph()
	b := NewBindings(g)
	p := g.MkFreshParam(3)
	lam := g.MkLambda(p, p)

	// Unassign with nothing bound must not panic.
	require.NotPanics(t, func() { b.Unassign(lam) })
}
