package chain

// Stop tells Walk where to end. The zero value walks to the tail.
type Stop[ID comparable, N any] struct {
	// EndID is the last node to return. If the tail comes first the walk
	// is corrupt.
	EndID *ID
	// Before ends the walk at the first node it accepts, excluding it.
	Before func(N) bool
}

// BeforePage stops a paged walk at the first node on or after page end.
// A nil end never stops.
func BeforePage[N interface{ Page() int }](end *int) func(N) bool {
	if end == nil {
		return nil
	}
	limit := *end
	return func(n N) bool { return n.Page() >= limit }
}

// Walk follows next pointers from start through d. A pointer to a node
// missing from d, a revisited node, or an unmet EndID is corruption.
func Walk[ID comparable, N Node[ID]](d *Dict[ID, N], start ID, stop Stop[ID, N]) ([]N, error) {
	cur, ok := d.Get(start)
	if !ok {
		return nil, corrupt(start, "walk start is not loaded")
	}

	seen := make(map[ID]struct{}, d.Len())
	var out []N
	for {
		id := cur.Key()
		seen[id] = struct{}{}

		if stop.Before != nil && stop.Before(cur) {
			return out, nil
		}
		out = append(out, cur)
		if stop.EndID != nil && id == *stop.EndID {
			return out, nil
		}

		next, ok := cur.Next()
		if !ok {
			if stop.EndID != nil {
				return nil, corrupt(*stop.EndID, "end node not reachable from %v", start)
			}
			return out, nil
		}
		if _, loop := seen[next]; loop {
			return nil, corrupt(id, "cycle back to %v", next)
		}
		if cur, ok = d.Get(next); !ok {
			return nil, corrupt(id, "next %v does not exist", next)
		}
	}
}

// WalkAll walks the whole chain held by d from its head and checks that
// every loaded node was reached. An empty Dict is an empty chain.
func WalkAll[ID comparable, N Node[ID]](d *Dict[ID, N]) ([]N, error) {
	if d.Len() == 0 {
		return nil, nil
	}
	head, err := d.Head()
	if err != nil {
		return nil, err
	}
	out, err := Walk(d, head, Stop[ID, N]{})
	if err != nil {
		return nil, err
	}
	if len(out) != d.Len() {
		return nil, corrupt(head, "walk reached %d of %d nodes", len(out), d.Len())
	}
	return out, nil
}
