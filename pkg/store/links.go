package store

import (
	"context"

	"github.com/readalong/chainstore/pkg/chain"
	"github.com/readalong/chainstore/pkg/models"
)

var (
	_ chain.LinkStore[models.ItemID, models.BlockID, models.Block]   = BlockLinks{}
	_ chain.PagedSource[models.ItemID, models.BlockID, models.Block] = BlockLinks{}
	_ chain.LinkStore[models.BlockID, models.SpanID, models.Span]    = SpanLinks{}
)

// BlockLinks exposes the block chains of a BlockStore to package chain.
type BlockLinks struct {
	Blocks BlockStore
}

func (l BlockLinks) Head(ctx context.Context, item models.ItemID) (models.Block, bool, error) {
	blocks, err := l.Blocks.FindBlocks(ctx, item, BlockFilter{HeadOnly: true, Limit: 2})
	if err != nil {
		return models.Block{}, false, err
	}
	return single(item, blocks, "head")
}

func (l BlockLinks) Tail(ctx context.Context, item models.ItemID) (models.Block, bool, error) {
	blocks, err := l.Blocks.FindBlocks(ctx, item, BlockFilter{TailOnly: true, Limit: 2})
	if err != nil {
		return models.Block{}, false, err
	}
	return single(item, blocks, "tail")
}

// Get only returns blocks that belong to item.
func (l BlockLinks) Get(ctx context.Context, item models.ItemID, id models.BlockID) (models.Block, bool, error) {
	b, err := l.Blocks.GetBlock(ctx, id)
	if err != nil || b == nil || b.ItemID != item {
		return models.Block{}, false, err
	}
	return *b, true, nil
}

func (l BlockLinks) Predecessors(ctx context.Context, item models.ItemID, id models.BlockID) ([]models.Block, error) {
	blocks, err := l.Blocks.FindBlocks(ctx, item, BlockFilter{NextID: &id})
	if err != nil {
		return nil, err
	}
	return values(blocks), nil
}

func (l BlockLinks) Insert(ctx context.Context, b models.Block) error {
	return l.Blocks.InsertBlock(ctx, &b)
}

func (l BlockLinks) SetNext(ctx context.Context, item models.ItemID, id models.BlockID, next *models.BlockID) (int, error) {
	return l.Blocks.UpdateBlock(ctx, id, item, models.Patch{models.FieldNextID: blockRef(next)})
}

func (l BlockLinks) SetHead(ctx context.Context, item models.ItemID, id models.BlockID, head bool) (int, error) {
	return l.Blocks.UpdateBlock(ctx, id, item, models.Patch{models.FieldIsHead: models.TriOf(head).Compact(models.DefaultIsHead)})
}

func (l BlockLinks) Remove(ctx context.Context, item models.ItemID, id models.BlockID) (int, error) {
	return l.Blocks.DeleteBlock(ctx, id, item)
}

func (l BlockLinks) FirstAtOrAfter(ctx context.Context, item models.ItemID, start int, end *int) (models.Block, bool, error) {
	blocks, err := l.Blocks.FindBlocks(ctx, item, BlockFilter{
		PageGTE:    &start,
		PageLT:     end,
		SortByPage: true,
		Limit:      1,
	})
	if err != nil || len(blocks) == 0 {
		return models.Block{}, false, err
	}
	return *blocks[0], true, nil
}

func (l BlockLinks) UpToPage(ctx context.Context, item models.ItemID, page int) ([]models.Block, error) {
	blocks, err := l.Blocks.FindBlocks(ctx, item, BlockFilter{PageLTE: &page})
	if err != nil {
		return nil, err
	}
	return values(blocks), nil
}

// SpanLinks exposes the span chains of a SpanStore to package chain.
type SpanLinks struct {
	Spans SpanStore
}

func (l SpanLinks) Head(ctx context.Context, block models.BlockID) (models.Span, bool, error) {
	spans, err := l.Spans.FindSpans(ctx, block, SpanFilter{HeadOnly: true, Limit: 2})
	if err != nil {
		return models.Span{}, false, err
	}
	return single(block, spans, "head")
}

func (l SpanLinks) Tail(ctx context.Context, block models.BlockID) (models.Span, bool, error) {
	spans, err := l.Spans.FindSpans(ctx, block, SpanFilter{TailOnly: true, Limit: 2})
	if err != nil {
		return models.Span{}, false, err
	}
	return single(block, spans, "tail")
}

func (l SpanLinks) Get(ctx context.Context, block models.BlockID, id models.SpanID) (models.Span, bool, error) {
	s, err := l.Spans.GetSpan(ctx, id)
	if err != nil || s == nil || s.BlockID != block {
		return models.Span{}, false, err
	}
	return *s, true, nil
}

func (l SpanLinks) Predecessors(ctx context.Context, block models.BlockID, id models.SpanID) ([]models.Span, error) {
	spans, err := l.Spans.FindSpans(ctx, block, SpanFilter{NextID: &id})
	if err != nil {
		return nil, err
	}
	return values(spans), nil
}

func (l SpanLinks) Insert(ctx context.Context, s models.Span) error {
	return l.Spans.InsertSpan(ctx, &s)
}

func (l SpanLinks) SetNext(ctx context.Context, block models.BlockID, id models.SpanID, next *models.SpanID) (int, error) {
	var ref any
	if next != nil {
		ref = *next
	}
	return l.Spans.UpdateSpan(ctx, id, block, models.Patch{models.FieldNextID: ref})
}

func (l SpanLinks) SetHead(ctx context.Context, block models.BlockID, id models.SpanID, head bool) (int, error) {
	return l.Spans.UpdateSpan(ctx, id, block, models.Patch{models.FieldIsHead: models.TriOf(head).Compact(models.DefaultIsHead)})
}

func (l SpanLinks) Remove(ctx context.Context, block models.BlockID, id models.SpanID) (int, error) {
	return l.Spans.DeleteSpan(ctx, id, block)
}

// blockRef keeps a nil pointer from reaching the store as a typed nil.
func blockRef(id *models.BlockID) any {
	if id == nil {
		return nil
	}
	return *id
}

func single[P any, T any](parent P, found []*T, what string) (T, bool, error) {
	var zero T
	switch len(found) {
	case 0:
		return zero, false, nil
	case 1:
		return *found[0], true, nil
	}
	return zero, false, chain.Annotate(&chain.CorruptionError{Reason: "more than one " + what}, parent)
}

func values[T any](ptrs []*T) []T {
	out := make([]T, 0, len(ptrs))
	for _, p := range ptrs {
		out = append(out, *p)
	}
	return out
}
