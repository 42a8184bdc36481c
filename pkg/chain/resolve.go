package chain

import (
	"context"
	"fmt"
)

// PagedSource is the read side of a paged chain store.
type PagedSource[P any, ID comparable, N PagedNode[ID]] interface {
	// Head returns the node flagged as head, or false if there is none.
	Head(ctx context.Context, parent P) (N, bool, error)
	// FirstAtOrAfter returns the lowest-page node with page >= start and,
	// if end is set, page < end.
	FirstAtOrAfter(ctx context.Context, parent P, start int, end *int) (N, bool, error)
	// UpToPage returns every node with page <= page.
	UpToPage(ctx context.Context, parent P, page int) ([]N, error)
}

// Resolver finds where a walk over a page window starts.
type Resolver[P any, ID comparable, N PagedNode[ID]] struct {
	Source PagedSource[P, ID, N]
}

// Resolve returns the id of the first node of the [start, end) window.
// Without a start, or with start 0, that is the head, and a missing head
// is ErrNotFound. Otherwise the page index gives an estimate which is
// confirmed by walking the real chain from its head; the two must land on
// the same page. An empty window returns false.
func (r *Resolver[P, ID, N]) Resolve(ctx context.Context, parent P, start, end *int) (ID, bool, error) {
	var zero ID

	head, ok, err := r.Source.Head(ctx, parent)
	if err != nil {
		return zero, false, fmt.Errorf("failed to get head: %w", err)
	}
	if start == nil || *start == 0 {
		if !ok {
			return zero, false, ErrNotFound
		}
		return head.Key(), true, nil
	}

	found, ok2, err := r.Source.FirstAtOrAfter(ctx, parent, *start, end)
	if err != nil {
		return zero, false, fmt.Errorf("failed to query page index: %w", err)
	}
	if !ok2 {
		return zero, false, nil
	}
	if !ok {
		return zero, false, Annotate(corrupt(found.Key(), "page %d indexed but chain has no head", found.Page()), parent)
	}

	id, err := r.walkToPage(ctx, parent, head, *start, found.Page())
	if err != nil {
		return zero, false, Annotate(err, parent)
	}
	return id, true, nil
}

// walkToPage follows the chain from head over nodes on pages <= limit and
// returns the first one on or after page start. Its page must equal limit.
func (r *Resolver[P, ID, N]) walkToPage(ctx context.Context, parent P, head N, start, limit int) (ID, error) {
	var zero ID

	cur := head
	if cur.Page() < start {
		nodes, err := r.Source.UpToPage(ctx, parent, limit)
		if err != nil {
			return zero, fmt.Errorf("failed to load pages up to %d: %w", limit, err)
		}
		d, err := NewDict[ID](nodes)
		if err != nil {
			return zero, err
		}
		steps := 0
		for cur.Page() < start {
			next, ok := cur.Next()
			if !ok {
				return zero, corrupt(cur.Key(), "tail reached before page %d", start)
			}
			n, ok := d.Get(next)
			if !ok {
				return zero, corrupt(cur.Key(), "next %v is not on a page <= %d", next, limit)
			}
			if steps++; steps > d.Len() {
				return zero, corrupt(cur.Key(), "cycle before page %d", start)
			}
			cur = n
		}
	}

	if cur.Page() != limit {
		return zero, corrupt(cur.Key(), "walk reached page %d but page index gives %d", cur.Page(), limit)
	}
	return cur.Key(), nil
}
