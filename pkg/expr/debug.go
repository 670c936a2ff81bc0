package expr

import "github.com/davecgh/go-spew/spew"

// debugConfig matches the dump style stretchr/testify's own require.Equal
// failure messages use internally, tuned for terser output: methods are
// irrelevant for Node dumps and pointer addresses only add noise to a test
// failure diff.
var debugConfig = &spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump renders the node r points to, for use in test failure output and ad
// hoc debugging. Unlike Graph.String (a terse s-expression rendering used by
// production code paths), Dump exposes every field including flags and
// refcounts; children appear as Ref values and are not expanded.
func (g *Graph) Dump(r Ref) string {
	if r.IsNil() {
		return "<nil-ref>"
	}
	return debugConfig.Sdump(g.node(r))
}
