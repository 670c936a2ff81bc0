// Package beta implements the beta-reduction engine for the expression DAG
// in github.com/solverkit/betareduce/pkg/expr: full, bounded and
// chain-restricted reduction of lambda applications, a single-path partial
// reducer that evaluates conditionals concretely, and the convenience
// façade external callers use.
//
// The engine traverses the DAG iteratively, never recursively — lambda
// bodies can be thousands of nodes deep, so all traversal state lives on
// explicit heap-allocated worklists.
package beta

// Mode selects which of the three interior reduction strategies Reducer
// runs. Partial reduction is not a Mode; it is a separate algorithm with
// its own entry points (Partial, PartialCollect).
type Mode uint8

const (
	// ModeFull expands every lambda application it encounters and
	// populates the cross-call cache on each completed apply whose
	// function is a non-parameterized lambda.
	ModeFull Mode = iota
	// ModeBounded expands lambdas only while scope depth stays below a
	// caller-supplied bound, cloning the lambda as-is once the bound is
	// reached.
	ModeBounded
	// ModeChain expands only lambdas marked as chain participants and
	// parameterized interior nodes, cloning everything else untouched.
	ModeChain
)

func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeBounded:
		return "bounded"
	case ModeChain:
		return "chain"
	default:
		return "unknown"
	}
}
