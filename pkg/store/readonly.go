package store

import (
	"context"
	"errors"

	"github.com/readalong/chainstore/pkg/models"
)

// ErrReadOnly is returned by every write on a store in read-only mode.
var ErrReadOnly = errors.New("operation denied: store is in read-only mode")

// ReadOnlyStore wraps a Store and rejects writes while isReadOnly reports
// true. Reads always pass through.
//
// Inspection commands open their store through this wrapper so that a
// verify or dump run cannot modify a chain, even by accident. The flag is
// a function so a long-running caller can switch modes without reopening
// the store.
type ReadOnlyStore struct {
	Store
	isReadOnly func() bool
}

// NewReadOnlyStore creates a read-only wrapper for s.
func NewReadOnlyStore(s Store, isReadOnly func() bool) Store {
	return &ReadOnlyStore{
		Store:      s,
		isReadOnly: isReadOnly,
	}
}

// ReadOnly wraps s so that every write fails.
func ReadOnly(s Store) Store {
	return NewReadOnlyStore(s, func() bool { return true })
}

// Unwrap returns the underlying store
func (r *ReadOnlyStore) Unwrap() Store {
	return r.Store
}

func (r *ReadOnlyStore) checkReadOnly() error {
	if r.isReadOnly() {
		return ErrReadOnly
	}
	return nil
}

func (r *ReadOnlyStore) InsertBlock(ctx context.Context, block *models.Block) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.InsertBlock(ctx, block)
}

func (r *ReadOnlyStore) InsertBlocks(ctx context.Context, blocks []*models.Block) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.InsertBlocks(ctx, blocks)
}

func (r *ReadOnlyStore) UpdateBlock(ctx context.Context, id models.BlockID, itemID models.ItemID, patch models.Patch) (int, error) {
	if err := r.checkReadOnly(); err != nil {
		return 0, err
	}
	return r.Store.UpdateBlock(ctx, id, itemID, patch)
}

func (r *ReadOnlyStore) DeleteBlock(ctx context.Context, id models.BlockID, itemID models.ItemID) (int, error) {
	if err := r.checkReadOnly(); err != nil {
		return 0, err
	}
	return r.Store.DeleteBlock(ctx, id, itemID)
}

func (r *ReadOnlyStore) DeleteItemBlocks(ctx context.Context, itemID models.ItemID) (int, error) {
	if err := r.checkReadOnly(); err != nil {
		return 0, err
	}
	return r.Store.DeleteItemBlocks(ctx, itemID)
}

func (r *ReadOnlyStore) InsertSpan(ctx context.Context, span *models.Span) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.InsertSpan(ctx, span)
}

func (r *ReadOnlyStore) InsertSpans(ctx context.Context, spans []*models.Span) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.InsertSpans(ctx, spans)
}

func (r *ReadOnlyStore) UpdateSpan(ctx context.Context, id models.SpanID, blockID models.BlockID, patch models.Patch) (int, error) {
	if err := r.checkReadOnly(); err != nil {
		return 0, err
	}
	return r.Store.UpdateSpan(ctx, id, blockID, patch)
}

func (r *ReadOnlyStore) DeleteSpan(ctx context.Context, id models.SpanID, blockID models.BlockID) (int, error) {
	if err := r.checkReadOnly(); err != nil {
		return 0, err
	}
	return r.Store.DeleteSpan(ctx, id, blockID)
}

func (r *ReadOnlyStore) DeleteBlockSpans(ctx context.Context, blockID models.BlockID) (int, error) {
	if err := r.checkReadOnly(); err != nil {
		return 0, err
	}
	return r.Store.DeleteBlockSpans(ctx, blockID)
}

func (r *ReadOnlyStore) Migrate(ctx context.Context) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.Migrate(ctx)
}
