package route

import "fmt"

const none = -1

// node is a trie node. Children and the terminal route are indices into the
// table's arenas so the whole trie lives in two slices.
type node struct {
	child [2]int32
	route int32
}

// Table is an immutable longest-prefix-match table. It is safe for
// concurrent readers once built.
type Table struct {
	nodes  []node
	routes []Route
}

// Build constructs a table from entries in the order given. When several
// entries share the same prefix and mask the first one wins, so lookups are
// deterministic for a fixed input.
func Build(entries []Route) (*Table, error) {
	t := &Table{
		nodes:  make([]node, 1, len(entries)+1),
		routes: make([]Route, 0, len(entries)),
	}
	t.nodes[0] = newNode()

	for i, r := range entries {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		t.routes = append(t.routes, r)
		t.insert(r, int32(i))
	}
	return t, nil
}

func newNode() node {
	return node{child: [2]int32{none, none}, route: none}
}

func (t *Table) insert(r Route, idx int32) {
	cur := int32(0)
	for depth := 0; depth < r.PrefixLen(); depth++ {
		bit := (r.Prefix >> (31 - depth)) & 1
		next := t.nodes[cur].child[bit]
		if next == none {
			t.nodes = append(t.nodes, newNode())
			next = int32(len(t.nodes) - 1)
			t.nodes[cur].child[bit] = next
		}
		cur = next
	}
	if t.nodes[cur].route == none {
		t.nodes[cur].route = idx
	}
}

// Lookup returns the most specific route containing dst.
func (t *Table) Lookup(dst uint32) (Route, bool) {
	best := t.nodes[0].route
	cur := int32(0)
	for depth := 0; depth < 32; depth++ {
		cur = t.nodes[cur].child[(dst>>(31-depth))&1]
		if cur == none {
			break
		}
		if r := t.nodes[cur].route; r != none {
			best = r
		}
	}
	if best == none {
		return Route{}, false
	}
	return t.routes[best], true
}

// Len returns the number of entries the table was built from.
func (t *Table) Len() int {
	return len(t.routes)
}

// Routes returns a copy of the entries in insertion order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}
