package beta

import (
	"github.com/pkg/errors"
	"github.com/solverkit/betareduce/pkg/expr"
)

// Bindings holds, per parameter, a stack of currently-assigned argument
// nodes. A stack, not a single slot: partial reduction can re-enter a
// lambda while a caller containing that same lambda is still on the way
// down, and the inner binding must shadow (not clobber) the outer one.
//
// Bindings is scoped to one Graph; Refs from a different Graph are
// meaningless here.
type Bindings struct {
	g      *expr.Graph
	stacks map[uint32][]expr.Ref
}

// NewBindings creates an empty binding stack set over g.
func NewBindings(g *expr.Graph) *Bindings {
	return &Bindings{g: g, stacks: make(map[uint32][]expr.Ref)}
}

// Assign pushes arg onto the binding stack of lambda's parameter (child 0
// of lambda, stripped of inversion). A width mismatch between arg and the
// parameter is a contract violation and panics.
func (b *Bindings) Assign(lambda, arg expr.Ref) {
	param := b.g.Child(lambda.Strip(), 0)
	if b.g.Width(param) != b.g.Width(arg) {
		panic(errors.Errorf("beta: width mismatch on assign: param width=%d arg width=%d", b.g.Width(param), b.g.Width(arg)))
	}
	key := param.Identity()
	b.stacks[key] = append(b.stacks[key], arg)
}

// AssignArgs zips the lambda chain starting at lambdaHead with the
// positional arguments packed into argsNode and Assigns each in turn.
func (b *Bindings) AssignArgs(lambdaHead, argsNode expr.Ref) {
	n := b.g.Arity(argsNode.Strip())
	level := lambdaHead
	for i := 0; i < n; i++ {
		b.Assign(level, b.g.Child(argsNode.Strip(), i))
		level = b.g.Child(level.Strip(), 1)
	}
}

// Unassign walks the chain starting at lambdaHead, popping one binding per
// level, stopping as soon as a level's binding stack is already empty or
// the level is no longer a lambda.
func (b *Bindings) Unassign(lambdaHead expr.Ref) {
	level := lambdaHead
	for {
		stripped := level.Strip()
		if b.g.Kind(stripped) != expr.KindLambda {
			return
		}
		param := b.g.Child(stripped, 0)
		key := param.Identity()
		stack := b.stacks[key]
		if len(stack) == 0 {
			return
		}
		b.stacks[key] = stack[:len(stack)-1]
		level = b.g.Child(stripped, 1)
	}
}

// Current returns the top of param's binding stack, or (zero, false) if
// param is currently unbound.
func (b *Bindings) Current(param expr.Ref) (expr.Ref, bool) {
	stack := b.stacks[param.Identity()]
	if len(stack) == 0 {
		return expr.NilRef, false
	}
	return stack[len(stack)-1], true
}

// Depth returns the number of active bindings for param. Outside a
// reduction call every parameter's depth must be back to what it was on
// entry; tests lean on this.
func (b *Bindings) Depth(param expr.Ref) int {
	return len(b.stacks[param.Identity()])
}

// Snapshot captures the current top binding (or its absence) for every
// parameter in params, canonicalized to a compact string usable as part of
// a memo key. Two binding states produce the same snapshot iff every listed
// parameter resolves identically under both.
func (b *Bindings) Snapshot(params []expr.Ref) string {
	buf := make([]byte, 0, 10*len(params))
	for _, p := range params {
		id := p.Identity()
		buf = append(buf, byte(id), byte(id>>8), byte(id>>16), byte(id>>24))
		if cur, ok := b.Current(p); ok {
			cid := cur.Identity()
			buf = append(buf, 1, byte(cid), byte(cid>>8), byte(cid>>16), byte(cid>>24))
			if cur.Inverted() {
				buf[len(buf)-5] = 2
			}
		} else {
			buf = append(buf, 0, 0, 0, 0, 0)
		}
	}
	return string(buf)
}
