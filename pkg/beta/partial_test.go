package beta

import (
	"testing"

	"github.com/solverkit/betareduce/pkg/expr"
	"github.com/stretchr/testify/require"
)

// partialFixture is the common setup for the partial-reduction tests: a
// single-bit selector parameter s and a 4-bit data parameter d, each owned
// by a lambda so the test can assign bindings through the engine, plus an
// uninterpreted variable w that keeps rebuilt branches from folding away.
type partialFixture struct {
	g    *expr.Graph
	e    *Engine
	s    expr.Ref // 1-bit parameter
	lamS expr.Ref
	d    expr.Ref // 4-bit parameter
	lamD expr.Ref
	w    expr.Ref // free 4-bit variable
}

func newPartialFixture(t *testing.T) *partialFixture {
	t.Helper()
	g := expr.NewGraph()
	f := &partialFixture{g: g, e: NewEngine(g, NewCache(g))}
	f.s = g.MkFreshParam(1)
	f.lamS = g.MkLambda(f.s, f.s)
	f.d = g.MkFreshParam(4)
	f.lamD = g.MkLambda(f.d, f.d)
	f.w = g.NewBVVar(4)
	return f
}

func (f *partialFixture) bind(sBit string, dVal string) {
	f.e.Bindings().Assign(f.lamS, f.g.NewConst(1, sBit))
	f.e.Bindings().Assign(f.lamD, f.g.NewConst(4, dVal))
}

func TestPartial_SelectsTrueBranchOfDeterminedIte(t *testing.T) {
	f := newPartialFixture(t)
	g := f.g
	f.bind("1", "0101")

	thenB := g.MkAdd(f.d, f.w)
	elseB := g.MkMul(f.d, f.w)
	root := g.MkIte(f.s, thenB, elseB)

	got, origin := f.e.Partial(root)
	five := g.NewConst(4, "0101")
	require.Equal(t, g.MkAdd(five, f.w), got, "only the chosen branch may contribute to the result")
	require.Equal(t, thenB, origin)
}

func TestPartialCollect_RecordsSelectorPerBranch(t *testing.T) {
	f := newPartialFixture(t)
	g := f.g

	thenB := g.MkAdd(f.d, f.w)
	elseB := g.MkMul(f.d, f.w)
	root := g.MkIte(f.s, thenB, elseB)
	five := g.NewConst(4, "0101")

	f.bind("1", "0101")
	sel1 := NewSelectorTable(g)
	sel2 := NewSelectorTable(g)
	got := f.e.PartialCollect(root, sel1, sel2)
	require.Equal(t, g.MkAdd(five, f.w), got)
	require.Equal(t, 1, sel1.Len())
	require.True(t, sel1.Contains(f.s))
	require.Equal(t, 0, sel2.Len())

	f.e.Bindings().Unassign(f.lamS)
	f.e.Bindings().Assign(f.lamS, g.NewConst(1, "0"))
	sel1b := NewSelectorTable(g)
	sel2b := NewSelectorTable(g)
	got = f.e.PartialCollect(root, sel1b, sel2b)
	require.Equal(t, g.MkMul(five, f.w), got)
	require.Equal(t, 0, sel1b.Len())
	require.True(t, sel2b.Contains(f.s))

	sel1.Release()
	sel2.Release()
	sel1b.Release()
	sel2b.Release()
}

func TestPartial_UndeterminedConditionRebuildsBothBranches(t *testing.T) {
	f := newPartialFixture(t)
	g := f.g
	f.bind("1", "0101")
	five := g.NewConst(4, "0101")

	// ult(d, w) mentions the free variable w, so the condition cannot be
	// evaluated and the conditional is rebuilt structurally.
	cond := g.MkUlt(f.d, f.w)
	root := g.MkIte(cond, g.MkAdd(f.d, f.w), g.MkMul(f.d, f.w))

	sel1 := NewSelectorTable(g)
	sel2 := NewSelectorTable(g)
	got := f.e.PartialCollect(root, sel1, sel2)

	want := g.MkIte(g.MkUlt(five, f.w), g.MkAdd(five, f.w), g.MkMul(five, f.w))
	require.Equal(t, want, got)
	require.Equal(t, 0, sel1.Len())
	require.Equal(t, 0, sel2.Len())
}

func TestPartial_SharedSubtermServedFromMemo(t *testing.T) {
	f := newPartialFixture(t)
	g := f.g
	f.bind("1", "0101")
	five := g.NewConst(4, "0101")

	x := g.MkMul(f.d, f.w)
	root := g.MkAdd(x, x)

	got, origin := f.e.Partial(root)
	m := g.MkMul(five, f.w)
	require.Equal(t, g.MkAdd(m, m), got)
	require.Equal(t, root, origin)
}

func TestPartial_SharedIteRecordsSelectorOnce(t *testing.T) {
	f := newPartialFixture(t)
	g := f.g
	f.bind("1", "0101")

	ite := g.MkIte(f.s, g.MkAdd(f.d, f.w), g.MkMul(f.d, f.w))
	root := g.MkAdd(ite, ite)

	sel1 := NewSelectorTable(g)
	sel2 := NewSelectorTable(g)
	g.Release(f.e.PartialCollect(root, sel1, sel2))
	require.Equal(t, 1, sel1.Len(), "a condition decided twice is still one selector entry")
	require.Equal(t, 0, sel2.Len())
}

func TestPartial_ResetsBetaMarksOnReturn(t *testing.T) {
	f := newPartialFixture(t)
	g := f.g
	f.bind("1", "0101")

	x := g.MkMul(f.d, f.w)
	root := g.MkAdd(x, x)
	g.Release(mustPartial(t, f.e, root))

	require.EqualValues(t, 0, g.BetaMark(root))
	require.EqualValues(t, 0, g.BetaMark(x))
	require.EqualValues(t, 0, g.BetaMark(f.d))
}

func TestPartial_RestoresRewriteLevel(t *testing.T) {
	f := newPartialFixture(t)
	g := f.g
	f.bind("1", "0101")

	before := g.RewriteLevel()
	g.Release(mustPartial(t, f.e, g.MkMul(f.d, f.w)))
	require.Equal(t, before, g.RewriteLevel())
}

func TestPartial_NonParameterizedInputReturnedUnchanged(t *testing.T) {
	f := newPartialFixture(t)
	g := f.g

	c := g.NewConst(4, "1100")
	got, origin := f.e.Partial(c)
	require.Equal(t, c, got)
	require.Equal(t, expr.NilRef, origin)
}

func TestPartial_UnwrapsLambdaRoot(t *testing.T) {
	f := newPartialFixture(t)
	g := f.g
	f.bind("1", "0101")

	got, origin := f.e.Partial(f.lamD)
	require.Equal(t, g.NewConst(4, "0101"), got,
		"a lambda root stands for its body under the caller's binding")
	require.Equal(t, f.d, origin)
}

func TestPartial_UnboundParameterPanics(t *testing.T) {
	f := newPartialFixture(t)

	require.Panics(t, func() { f.e.Partial(f.d) },
		"partial reduction requires the caller to bind every reached parameter first")
}

func mustPartial(t *testing.T, e *Engine, root expr.Ref) expr.Ref {
	t.Helper()
	got, _ := e.Partial(root)
	return got
}
