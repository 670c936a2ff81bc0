package expr

import "strings"

// Bit-vector widths beyond 64 are out of scope for this evaluator; the
// beta engine's own traversal never inspects concrete values, and the
// partial reducer evaluates only conditions, which are width 1.

// evalCtx threads the graph and an optional parameter resolver through the
// recursive evaluator. The resolver lets EvaluateToConst answer "what is
// this parameterized condition concretely, under the caller's current
// bindings" without this package depending on pkg/beta: the partial
// reducer passes its Bindings.Current method in.
type evalCtx struct {
	g       *Graph
	resolve func(Ref) (Ref, bool)
}

// EvaluateToConst concretely evaluates a bit-vector node to its constant
// bit string, MSB first. resolve, if non-nil, is consulted for every
// parameter node encountered; pass nil to evaluate only genuinely closed
// terms. Returns ("", false) when the node is not decidable — not closed
// (and unresolvable), or mentions an uninterpreted variable. An
// undetermined result is not an error; callers fall back to rebuilding the
// node structurally.
func (g *Graph) EvaluateToConst(r Ref, resolve func(Ref) (Ref, bool)) (string, bool) {
	return (&evalCtx{g: g, resolve: resolve}).eval(r)
}

func (c *evalCtx) eval(r Ref) (string, bool) {
	n := c.g.node(r)

	var bits string
	var ok bool
	switch n.kind {
	case KindBVConst:
		bits, ok = n.bits, true
	case KindParam:
		if c.resolve == nil {
			return "", false
		}
		bound, present := c.resolve(r.Strip())
		if !present {
			return "", false
		}
		if r.inverted {
			bound = bound.Not()
		}
		return c.eval(bound)
	case KindAnd:
		bits, ok = c.evalBinary(n, bitAnd)
	case KindAdd:
		bits, ok = c.evalBinary(n, bitAdd)
	case KindMul:
		bits, ok = c.evalBinary(n, bitMul)
	case KindUlt:
		bits, ok = c.evalCompare(n, func(a, b uint64) bool { return a < b })
	case KindEq:
		bits, ok = c.evalEq(n)
	case KindSll:
		bits, ok = c.evalShift(n, true)
	case KindSrl:
		bits, ok = c.evalShift(n, false)
	case KindUdiv:
		bits, ok = c.evalBinary(n, bitUdiv)
	case KindUrem:
		bits, ok = c.evalBinary(n, bitUrem)
	case KindConcat:
		bits, ok = c.evalConcat(n)
	case KindSlice:
		bits, ok = c.evalSlice(n)
	case KindBVCond:
		bits, ok = c.evalIte(n)
	default:
		// bit-vector/array variables, args, apply, lambda: never decidable.
		return "", false
	}
	if r.inverted && ok {
		bits = invertBits(bits)
	}
	return bits, ok
}

func invertBits(bits string) string {
	out := make([]byte, len(bits))
	for i := range bits {
		if bits[i] == '1' {
			out[i] = '0'
		} else {
			out[i] = '1'
		}
	}
	return string(out)
}

func bitsToUint(bits string) uint64 {
	var v uint64
	for i := 0; i < len(bits); i++ {
		v <<= 1
		if bits[i] == '1' {
			v |= 1
		}
	}
	return v
}

func uintToBits(v uint64, width int) string {
	var b strings.Builder
	for i := width - 1; i >= 0; i-- {
		if v&(1<<uint(i)) != 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func (c *evalCtx) evalBinary(n *Node, op func(a, b uint64, width int) uint64) (string, bool) {
	a, ok := c.eval(n.children[0])
	if !ok {
		return "", false
	}
	b, ok := c.eval(n.children[1])
	if !ok {
		return "", false
	}
	return uintToBits(op(bitsToUint(a), bitsToUint(b), n.width), n.width), true
}

func (c *evalCtx) evalCompare(n *Node, cmp func(a, b uint64) bool) (string, bool) {
	a, ok := c.eval(n.children[0])
	if !ok {
		return "", false
	}
	b, ok := c.eval(n.children[1])
	if !ok {
		return "", false
	}
	if cmp(bitsToUint(a), bitsToUint(b)) {
		return "1", true
	}
	return "0", true
}

func (c *evalCtx) evalEq(n *Node) (string, bool) {
	a, ok := c.eval(n.children[0])
	if !ok {
		return "", false
	}
	b, ok := c.eval(n.children[1])
	if !ok {
		return "", false
	}
	if a == b {
		return "1", true
	}
	return "0", true
}

func (c *evalCtx) evalShift(n *Node, left bool) (string, bool) {
	a, ok := c.eval(n.children[0])
	if !ok {
		return "", false
	}
	b, ok := c.eval(n.children[1])
	if !ok {
		return "", false
	}
	shift := bitsToUint(b)
	v := bitsToUint(a)
	if shift >= uint64(n.width) {
		return uintToBits(0, n.width), true
	}
	if left {
		return uintToBits(v<<shift, n.width), true
	}
	return uintToBits(v>>shift, n.width), true
}

func (c *evalCtx) evalConcat(n *Node) (string, bool) {
	a, ok := c.eval(n.children[0])
	if !ok {
		return "", false
	}
	b, ok := c.eval(n.children[1])
	if !ok {
		return "", false
	}
	return a + b, true
}

func (c *evalCtx) evalSlice(n *Node) (string, bool) {
	a, ok := c.eval(n.children[0])
	if !ok {
		return "", false
	}
	full := len(a)
	// bits are MSB-first strings; index i from the left corresponds to bit
	// position (full-1-i) counting from the LSB.
	hi := full - 1 - n.upper
	lo := full - 1 - n.lower
	return a[hi : lo+1], true
}

func (c *evalCtx) evalIte(n *Node) (string, bool) {
	cond, ok := c.eval(n.children[0])
	if !ok {
		return "", false
	}
	if cond == "1" {
		return c.eval(n.children[1])
	}
	return c.eval(n.children[2])
}

func bitAnd(a, b uint64, _ int) uint64 { return a & b }
func bitAdd(a, b uint64, width int) uint64 {
	mask := widthMask(width)
	return (a + b) & mask
}
func bitMul(a, b uint64, width int) uint64 { return (a * b) & widthMask(width) }
func bitUdiv(a, b uint64, width int) uint64 {
	if b == 0 {
		return widthMask(width)
	}
	return a / b
}
func bitUrem(a, b uint64, width int) uint64 {
	if b == 0 {
		return a
	}
	return a % b
}

func widthMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}
