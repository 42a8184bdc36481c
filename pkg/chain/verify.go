package chain

import "fmt"

// Finding is one invariant violation found by Verify.
type Finding struct {
	Node   string `json:"node,omitempty"`
	Reason string `json:"reason"`
}

func (f Finding) Corruption() *CorruptionError {
	return &CorruptionError{Node: f.Node, Reason: f.Reason}
}

// Verify checks every chain invariant over the full node set of one
// parent and returns all violations instead of stopping at the first.
// If page is non-nil, pages must not decrease along the walk.
func Verify[ID comparable, N Node[ID]](nodes []N, page func(N) int) []Finding {
	var out []Finding
	add := func(node any, format string, args ...any) {
		f := Finding{Reason: fmt.Sprintf(format, args...)}
		if node != nil {
			f.Node = fmt.Sprint(node)
		}
		out = append(out, f)
	}

	byID := make(map[ID]N, len(nodes))
	preds := make(map[ID]int, len(nodes))
	var heads []ID
	for _, n := range nodes {
		id := n.Key()
		if _, dup := byID[id]; dup {
			add(id, "duplicate node")
			continue
		}
		byID[id] = n
		if n.Head() {
			heads = append(heads, id)
		}
	}
	if len(byID) == 0 {
		return nil
	}

	for _, n := range byID {
		next, ok := n.Next()
		if !ok {
			continue
		}
		if _, exists := byID[next]; !exists {
			add(n.Key(), "next %v does not exist", next)
			continue
		}
		preds[next]++
		if preds[next] == 2 {
			add(next, "more than one predecessor")
		}
	}

	switch len(heads) {
	case 0:
		add(nil, "no head among %d nodes", len(byID))
		return out
	case 1:
	default:
		for _, h := range heads[1:] {
			add(h, "extra head (first head is %v)", heads[0])
		}
	}

	seen := make(map[ID]struct{}, len(byID))
	cur := byID[heads[0]]
	for {
		id := cur.Key()
		seen[id] = struct{}{}
		next, ok := cur.Next()
		if !ok {
			break
		}
		n, exists := byID[next]
		if !exists {
			break
		}
		if _, loop := seen[next]; loop {
			add(id, "cycle back to %v", next)
			break
		}
		if page != nil && page(n) < page(cur) {
			add(next, "page %d follows page %d", page(n), page(cur))
		}
		cur = n
	}

	if len(seen) != len(byID) {
		add(heads[0], "walk reached %d of %d nodes", len(seen), len(byID))
	}
	return out
}
