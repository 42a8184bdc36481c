// Package chain implements singly-linked lists whose nodes live in an
// external store, one record per node.
//
// A chain belongs to a parent. Each node names its successor with a next
// id and the entry point carries a head flag. Nothing else orders the
// nodes, so every read goes through the same three steps: load a bounded
// node set into a [Dict], pick a start id, and [Walk] the pointers. Any
// observed break in the structure is reported as a [CorruptionError].
//
// Paged chains additionally carry a page number that is non-decreasing
// along the walk. [Resolver] uses it as a secondary index to find where a
// page window starts, then confirms the answer against the real chain.
//
// [Mutator] inserts and deletes nodes over a [LinkStore]. It orders its
// writes so that a new node is persisted before anything points at it.
// There is no locking: concurrent mutations of the same chain can race.
package chain

// Node is one element of a stored chain.
type Node[ID comparable] interface {
	Key() ID
	// Next returns the successor id, or false at the tail.
	Next() (ID, bool)
	Head() bool
}

// PagedNode is a node carrying a page ordering hint.
type PagedNode[ID comparable] interface {
	Node[ID]
	Page() int
}

// Linker is a node that can produce a copy of itself with new link fields.
type Linker[ID comparable, N any] interface {
	Node[ID]
	Relink(next *ID, head bool) N
}

// PagedLinker combines PagedNode and Linker.
type PagedLinker[ID comparable, N any] interface {
	Linker[ID, N]
	Page() int
}

func nextPtr[ID comparable](n Node[ID]) *ID {
	next, ok := n.Next()
	if !ok {
		return nil
	}
	return &next
}
