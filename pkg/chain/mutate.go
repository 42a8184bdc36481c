package chain

import (
	"context"
	"fmt"
)

// LinkStore is the write side of a chain store. Counts returned by the
// write methods are matched records; zero is not an error at this level.
type LinkStore[P any, ID comparable, N Linker[ID, N]] interface {
	Head(ctx context.Context, parent P) (N, bool, error)
	Tail(ctx context.Context, parent P) (N, bool, error)
	Get(ctx context.Context, parent P, id ID) (N, bool, error)
	// Predecessors returns every node of parent whose next is id.
	Predecessors(ctx context.Context, parent P, id ID) ([]N, error)
	Insert(ctx context.Context, n N) error
	SetNext(ctx context.Context, parent P, id ID, next *ID) (int, error)
	SetHead(ctx context.Context, parent P, id ID, head bool) (int, error)
	Remove(ctx context.Context, parent P, id ID) (int, error)
}

// Mutator inserts and deletes chain nodes. Each write is a single store
// operation; there is no transaction across them.
type Mutator[P any, ID comparable, N Linker[ID, N]] struct {
	Store LinkStore[P, ID, N]
	// OnRemove runs after a node record is deleted, for dependents such
	// as child chains or stored artifacts.
	OnRemove func(ctx context.Context, parent P, n N) error
}

// InsertAfter links n after pred, or makes it the new head when pred is
// nil. The new node is written before any existing node is repointed.
func (m *Mutator[P, ID, N]) InsertAfter(ctx context.Context, parent P, pred *ID, n N) (N, error) {
	if pred == nil {
		return m.insertHead(ctx, parent, n)
	}

	var zero N
	p, ok, err := m.Store.Get(ctx, parent, *pred)
	if err != nil {
		return zero, fmt.Errorf("failed to get predecessor: %w", err)
	}
	if !ok {
		return zero, fmt.Errorf("predecessor %v: %w", *pred, ErrNotFound)
	}

	n = n.Relink(nextPtr[ID](p), false)
	if err := m.Store.Insert(ctx, n); err != nil {
		return zero, fmt.Errorf("failed to insert node: %w", err)
	}
	key := n.Key()
	matched, err := m.Store.SetNext(ctx, parent, p.Key(), &key)
	if err != nil {
		return zero, fmt.Errorf("failed to repoint predecessor: %w", err)
	}
	if matched == 0 {
		return zero, &PartialWriteError{Parent: fmt.Sprint(parent), Node: fmt.Sprint(key), Step: "repoint predecessor"}
	}
	return n, nil
}

func (m *Mutator[P, ID, N]) insertHead(ctx context.Context, parent P, n N) (N, error) {
	var zero N
	old, hasHead, err := m.Store.Head(ctx, parent)
	if err != nil {
		return zero, fmt.Errorf("failed to get head: %w", err)
	}

	var next *ID
	if hasHead {
		k := old.Key()
		next = &k
	}
	n = n.Relink(next, true)
	if err := m.Store.Insert(ctx, n); err != nil {
		return zero, fmt.Errorf("failed to insert node: %w", err)
	}
	if !hasHead {
		return n, nil
	}

	matched, err := m.Store.SetHead(ctx, parent, old.Key(), false)
	if err != nil {
		return zero, fmt.Errorf("failed to clear old head: %w", err)
	}
	if matched == 0 {
		return zero, &PartialWriteError{Parent: fmt.Sprint(parent), Node: fmt.Sprint(old.Key()), Step: "clear old head"}
	}
	return n, nil
}

// Append links n after the current tail, or as head of an empty chain.
func (m *Mutator[P, ID, N]) Append(ctx context.Context, parent P, n N) (N, error) {
	var zero N
	tail, ok, err := m.Store.Tail(ctx, parent)
	if err != nil {
		return zero, fmt.Errorf("failed to get tail: %w", err)
	}
	if ok {
		k := tail.Key()
		return m.InsertAfter(ctx, parent, &k, n)
	}

	head, ok, err := m.Store.Head(ctx, parent)
	if err != nil {
		return zero, fmt.Errorf("failed to get head: %w", err)
	}
	if ok {
		return zero, Annotate(corrupt(head.Key(), "chain has a head but no tail"), parent)
	}
	return m.insertHead(ctx, parent, n)
}

// Delete unlinks and removes node id. It returns false if the node does
// not exist. OnRemove errors are returned after the node is gone.
func (m *Mutator[P, ID, N]) Delete(ctx context.Context, parent P, id ID) (bool, error) {
	n, ok, err := m.unlink(ctx, parent, id)
	if err != nil || !ok {
		return ok, err
	}

	removed, err := m.Store.Remove(ctx, parent, id)
	if err != nil {
		return false, fmt.Errorf("failed to remove node: %w", err)
	}
	if removed == 0 {
		return false, &PartialWriteError{Parent: fmt.Sprint(parent), Node: fmt.Sprint(id), Step: "remove record"}
	}

	if m.OnRemove != nil {
		if err := m.OnRemove(ctx, parent, n); err != nil {
			return true, fmt.Errorf("failed to remove dependents of %v: %w", id, err)
		}
	}
	return true, nil
}

// Move relinks node id after pred, or to the head when pred is nil. The
// record itself is kept; only link fields change. A missing pred is
// ErrNotFound and leaves the chain untouched.
func (m *Mutator[P, ID, N]) Move(ctx context.Context, parent P, id ID, pred *ID) (N, error) {
	var zero N
	if pred != nil && *pred == id {
		return zero, &ValidationError{Field: "pred", Reason: "node cannot follow itself"}
	}
	if pred != nil {
		_, ok, err := m.Store.Get(ctx, parent, *pred)
		if err != nil {
			return zero, fmt.Errorf("failed to get predecessor: %w", err)
		}
		if !ok {
			return zero, fmt.Errorf("predecessor %v: %w", *pred, ErrNotFound)
		}
	}

	n, ok, err := m.unlink(ctx, parent, id)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, fmt.Errorf("node %v: %w", id, ErrNotFound)
	}

	// The record stays in place, so it is detached first and relinked by
	// field writes rather than an insert.
	if err := m.setLinks(ctx, parent, id, nil, false); err != nil {
		return zero, err
	}
	if pred == nil {
		old, hasHead, err := m.Store.Head(ctx, parent)
		if err != nil {
			return zero, fmt.Errorf("failed to get head: %w", err)
		}
		var next *ID
		if hasHead && old.Key() != id {
			k := old.Key()
			next = &k
		}
		if err := m.setLinks(ctx, parent, id, next, true); err != nil {
			return zero, err
		}
		if next != nil {
			if err := m.setHead(ctx, parent, *next, false); err != nil {
				return zero, err
			}
		}
		return n.Relink(next, true), nil
	}

	p, ok, err := m.Store.Get(ctx, parent, *pred)
	if err != nil {
		return zero, fmt.Errorf("failed to get predecessor: %w", err)
	}
	if !ok {
		return zero, &PartialWriteError{Parent: fmt.Sprint(parent), Node: fmt.Sprint(id), Step: "find new predecessor"}
	}
	next := nextPtr[ID](p)
	if err := m.setLinks(ctx, parent, id, next, false); err != nil {
		return zero, err
	}
	matched, err := m.Store.SetNext(ctx, parent, *pred, &id)
	if err != nil {
		return zero, fmt.Errorf("failed to repoint predecessor: %w", err)
	}
	if matched == 0 {
		return zero, &PartialWriteError{Parent: fmt.Sprint(parent), Node: fmt.Sprint(*pred), Step: "repoint predecessor"}
	}
	return n.Relink(next, false), nil
}

// unlink takes node id out of the chain without deleting its record.
func (m *Mutator[P, ID, N]) unlink(ctx context.Context, parent P, id ID) (N, bool, error) {
	var zero N
	n, ok, err := m.Store.Get(ctx, parent, id)
	if err != nil {
		return zero, false, fmt.Errorf("failed to get node: %w", err)
	}
	if !ok {
		return zero, false, nil
	}

	preds, err := m.Store.Predecessors(ctx, parent, id)
	if err != nil {
		return zero, false, fmt.Errorf("failed to find predecessor: %w", err)
	}
	switch {
	case len(preds) > 1:
		return zero, false, Annotate(corrupt(id, "%d nodes point at it", len(preds)), parent)
	case len(preds) == 1 && n.Head():
		return zero, false, Annotate(corrupt(id, "head has predecessor %v", preds[0].Key()), parent)
	case len(preds) == 0 && !n.Head():
		return zero, false, Annotate(corrupt(id, "node is neither head nor pointed at"), parent)
	}

	next := nextPtr[ID](n)
	if len(preds) == 1 {
		matched, err := m.Store.SetNext(ctx, parent, preds[0].Key(), next)
		if err != nil {
			return zero, false, fmt.Errorf("failed to relink predecessor: %w", err)
		}
		if matched == 0 {
			return zero, false, &PartialWriteError{Parent: fmt.Sprint(parent), Node: fmt.Sprint(preds[0].Key()), Step: "relink predecessor"}
		}
	} else if next != nil {
		if err := m.setHead(ctx, parent, *next, true); err != nil {
			return zero, false, err
		}
	}
	return n, true, nil
}

func (m *Mutator[P, ID, N]) setHead(ctx context.Context, parent P, id ID, head bool) error {
	matched, err := m.Store.SetHead(ctx, parent, id, head)
	if err != nil {
		return fmt.Errorf("failed to set head flag: %w", err)
	}
	if matched == 0 {
		step := "clear head flag"
		if head {
			step = "promote successor"
		}
		return &PartialWriteError{Parent: fmt.Sprint(parent), Node: fmt.Sprint(id), Step: step}
	}
	return nil
}

func (m *Mutator[P, ID, N]) setLinks(ctx context.Context, parent P, id ID, next *ID, head bool) error {
	matched, err := m.Store.SetNext(ctx, parent, id, next)
	if err != nil {
		return fmt.Errorf("failed to set next: %w", err)
	}
	if matched == 0 {
		return &PartialWriteError{Parent: fmt.Sprint(parent), Node: fmt.Sprint(id), Step: "set next"}
	}
	return m.setHead(ctx, parent, id, head)
}
