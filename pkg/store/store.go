// Package store defines the persistence interface for block and span
// chain nodes.
//
// Every record is addressed by its own id or by its parent id. There is no
// way to ask a store for "the k-th node" of a chain; ordering lives in the
// records' next_id fields and is reconstructed by package chain.
//
// Implementations:
//   - [github.com/readalong/chainstore/pkg/store/badgerstore] embeds Badger and keeps
//     its own secondary index keys.
//   - [github.com/readalong/chainstore/pkg/store/surrealdb] speaks SurrealQL over a
//     WebSocket connection.
//   - [github.com/readalong/chainstore/pkg/store/postgres] maps records to tables
//     with GORM.
//
// All implementations share these conventions:
//   - Get returns (nil, nil) for a missing record.
//   - Update and Delete methods return the number of matched records and
//     do not fail when it is zero, so callers decide what "not found"
//     means for them.
//   - Updates are conditioned on the parent id as well as the record id,
//     so one item's chain can never be modified through another's.
package store

import (
	"context"

	"github.com/readalong/chainstore/pkg/models"
)

// BlockFilter narrows FindBlocks. Zero fields do not filter.
type BlockFilter struct {
	PageGTE *int
	PageLT  *int
	PageLTE *int

	HeadOnly bool
	TailOnly bool
	// NextID selects blocks whose next_id equals it.
	NextID *models.BlockID

	// SortByPage orders results by page number ascending.
	SortByPage bool
	Limit      int
}

// Match reports whether b passes every set condition of f.
func (f BlockFilter) Match(b *models.Block) bool {
	switch {
	case f.PageGTE != nil && b.PageNb < *f.PageGTE:
		return false
	case f.PageLT != nil && b.PageNb >= *f.PageLT:
		return false
	case f.PageLTE != nil && b.PageNb > *f.PageLTE:
		return false
	case f.HeadOnly && !b.Head():
		return false
	case f.TailOnly && b.NextID != nil:
		return false
	case f.NextID != nil && (b.NextID == nil || *b.NextID != *f.NextID):
		return false
	}
	return true
}

// SpanFilter narrows FindSpans.
type SpanFilter struct {
	HeadOnly bool
	TailOnly bool
	NextID   *models.SpanID
	Limit    int
}

// Match reports whether s passes every set condition of f.
func (f SpanFilter) Match(s *models.Span) bool {
	switch {
	case f.HeadOnly && !s.Head():
		return false
	case f.TailOnly && s.NextID != nil:
		return false
	case f.NextID != nil && (s.NextID == nil || *s.NextID != *f.NextID):
		return false
	}
	return true
}

// BlockStore persists blocks.
type BlockStore interface {
	GetBlock(ctx context.Context, id models.BlockID) (*models.Block, error)
	// GetBlocks skips ids that do not exist. Order is not guaranteed.
	GetBlocks(ctx context.Context, ids []models.BlockID) ([]*models.Block, error)
	FindBlocks(ctx context.Context, itemID models.ItemID, filter BlockFilter) ([]*models.Block, error)
	InsertBlock(ctx context.Context, block *models.Block) error
	InsertBlocks(ctx context.Context, blocks []*models.Block) error
	UpdateBlock(ctx context.Context, id models.BlockID, itemID models.ItemID, patch models.Patch) (int, error)
	DeleteBlock(ctx context.Context, id models.BlockID, itemID models.ItemID) (int, error)
	DeleteItemBlocks(ctx context.Context, itemID models.ItemID) (int, error)
}

// SpanStore persists spans.
type SpanStore interface {
	GetSpan(ctx context.Context, id models.SpanID) (*models.Span, error)
	FindSpans(ctx context.Context, blockID models.BlockID, filter SpanFilter) ([]*models.Span, error)
	// SpansOf returns every span of the given blocks in one round trip.
	SpansOf(ctx context.Context, blockIDs []models.BlockID) ([]*models.Span, error)
	InsertSpan(ctx context.Context, span *models.Span) error
	InsertSpans(ctx context.Context, spans []*models.Span) error
	UpdateSpan(ctx context.Context, id models.SpanID, blockID models.BlockID, patch models.Patch) (int, error)
	DeleteSpan(ctx context.Context, id models.SpanID, blockID models.BlockID) (int, error)
	DeleteBlockSpans(ctx context.Context, blockID models.BlockID) (int, error)
}

// Store is a complete chain node store.
type Store interface {
	BlockStore
	SpanStore

	// Migrate prepares tables and indexes. It is idempotent.
	Migrate(ctx context.Context) error
	Close() error
}
