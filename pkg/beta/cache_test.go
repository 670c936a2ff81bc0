package beta

import (
	"testing"

	"github.com/solverkit/betareduce/pkg/expr"
	"github.com/stretchr/testify/require"
)

func TestCache_LookupMiss(t *testing.T) {
	g := expr.NewGraph()
	c := NewCache(g)
	p := g.MkFreshParam(8)
	lam := g.MkLambda(p, p)
	args := g.MkArgs(g.NewConst(8, "00000001"))

	_, ok := c.Lookup(lam, args)
	require.False(t, ok)
}

func TestCache_StoreThenLookup(t *testing.T) {
	g := expr.NewGraph()
	c := NewCache(g)
	p := g.MkFreshParam(8)
	lam := g.MkLambda(p, p)
	args := g.MkArgs(g.NewConst(8, "00000101"))
	result := g.NewConst(8, "00000101")

	c.Store(lam, args, result)
	require.Equal(t, 1, c.Len())

	got, ok := c.Lookup(lam, args)
	require.True(t, ok)
	require.Equal(t, result, got)
}

func TestCache_RepeatedStoreOfSameResultIsANoOp(t *testing.T) {
	g := expr.NewGraph()
	c := NewCache(g)
	p := g.MkFreshParam(8)
	lam := g.MkLambda(p, p)
	args := g.MkArgs(g.NewConst(8, "00000101"))
	result := g.NewConst(8, "00000101")

	c.Store(lam, args, result)
	require.NotPanics(t, func() { c.Store(lam, args, result) })
	require.Equal(t, 1, c.Len())
}

func TestCache_ConflictingStorePanics(t *testing.T) {
	g := expr.NewGraph()
	c := NewCache(g)
	p := g.MkFreshParam(8)
	lam := g.MkLambda(p, p)
	args := g.MkArgs(g.NewConst(8, "00000101"))
	result1 := g.NewConst(8, "00000101")
	result2 := g.NewConst(8, "11111111")

	c.Store(lam, args, result1)
	require.Panics(t, func() { c.Store(lam, args, result2) },
		"a second store under the same key must assert hash-cons identity with the first")
}
