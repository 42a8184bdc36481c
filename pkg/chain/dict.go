package chain

// Dict indexes a fetched node set by id so walks never go back to the
// store per hop.
type Dict[ID comparable, N Node[ID]] struct {
	nodes map[ID]N
	order []ID
	heads []ID
}

// NewDict builds a Dict in one pass. Two nodes with the same id are
// corruption.
func NewDict[ID comparable, N Node[ID]](nodes []N) (*Dict[ID, N], error) {
	d := &Dict[ID, N]{
		nodes: make(map[ID]N, len(nodes)),
		order: make([]ID, 0, len(nodes)),
	}
	for _, n := range nodes {
		if err := d.Add(n); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Add inserts n.
func (d *Dict[ID, N]) Add(n N) error {
	id := n.Key()
	if _, dup := d.nodes[id]; dup {
		return corrupt(id, "node loaded twice")
	}
	d.nodes[id] = n
	d.order = append(d.order, id)
	if n.Head() {
		d.heads = append(d.heads, id)
	}
	return nil
}

func (d *Dict[ID, N]) Get(id ID) (N, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

func (d *Dict[ID, N]) Len() int { return len(d.nodes) }

// Nodes returns the nodes in the order they were added.
func (d *Dict[ID, N]) Nodes() []N {
	out := make([]N, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.nodes[id])
	}
	return out
}

// Heads returns the ids of nodes flagged as head.
func (d *Dict[ID, N]) Heads() []ID {
	return append([]ID(nil), d.heads...)
}

// Head returns the single head. An empty Dict yields ErrNotFound; zero
// heads over a non-empty set, or more than one, is corruption.
func (d *Dict[ID, N]) Head() (ID, error) {
	var zero ID
	switch {
	case len(d.nodes) == 0:
		return zero, ErrNotFound
	case len(d.heads) == 0:
		return zero, corrupt(nil, "no head among %d nodes", len(d.nodes))
	case len(d.heads) > 1:
		return zero, corrupt(d.heads[1], "%d nodes flagged as head", len(d.heads))
	}
	return d.heads[0], nil
}
