package beta

import "github.com/solverkit/betareduce/pkg/expr"

// SelectorTable is a caller-owned collection table populated by
// PartialCollect: one entry per distinct conditional that partial reduction
// decided concretely, first write wins. The engine runs one call at a time
// over one graph, so the condition node's own identity is a sufficient key.
type SelectorTable struct {
	g       *expr.Graph
	entries map[uint32]expr.Ref
}

// NewSelectorTable creates an empty table over g.
func NewSelectorTable(g *expr.Graph) *SelectorTable {
	return &SelectorTable{g: g, entries: make(map[uint32]expr.Ref)}
}

func (t *SelectorTable) record(cond expr.Ref) {
	key := cond.Strip().Identity()
	if _, ok := t.entries[key]; ok {
		return
	}
	t.entries[key] = t.g.Copy(cond)
}

// Contains reports whether cond was ever recorded in this table.
func (t *SelectorTable) Contains(cond expr.Ref) bool {
	_, ok := t.entries[cond.Strip().Identity()]
	return ok
}

// Len reports the number of distinct conditions recorded.
func (t *SelectorTable) Len() int { return len(t.entries) }

// Release drops every reference this table owns.
func (t *SelectorTable) Release() {
	for k, r := range t.entries {
		t.g.Release(r)
		delete(t.entries, k)
	}
}
