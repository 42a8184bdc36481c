package document

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/readalong/chainstore/pkg/chain"
	"github.com/readalong/chainstore/pkg/models"
	"github.com/readalong/chainstore/pkg/store"
)

// ItemBlocks returns the blocks of item on pages [start, end) in chain
// order. A nil start begins at the head; a nil end runs to the tail. An
// item without blocks is ErrNotFound when start is nil or 0, and an empty
// window otherwise.
func (s *Service) ItemBlocks(ctx context.Context, item models.ItemID, start, end *int) (_ []BlockOut, err error) {
	defer func() { err = s.observe("item_blocks", err) }()
	return s.itemBlocks(ctx, item, start, end)
}

func (s *Service) itemBlocks(ctx context.Context, item models.ItemID, start, end *int) ([]BlockOut, error) {
	if start != nil && *start < 0 {
		return nil, &chain.ValidationError{Field: "start", Reason: "page must not be negative"}
	}
	if end != nil && *end < 0 {
		return nil, &chain.ValidationError{Field: "end", Reason: "page must not be negative"}
	}
	if start != nil && end != nil && *end <= *start {
		return nil, nil
	}

	var (
		startID models.BlockID
		found   bool
		window  []*models.Block
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r := &blockResolver{Source: s.links}
		var err error
		startID, found, err = r.Resolve(gctx, item, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		window, err = s.window(gctx, item, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	spans, err := s.store.SpansOf(ctx, idsOf(window))
	if err != nil {
		return nil, fmt.Errorf("failed to load spans: %w", err)
	}
	d, err := NewBlockDict(item, window, spans)
	if err != nil {
		return nil, err
	}
	blocks, err := chain.Walk(d.Blocks, startID, chain.Stop[models.BlockID, models.Block]{
		Before: chain.BeforePage[models.Block](end),
	})
	if err != nil {
		return nil, chain.Annotate(err, item)
	}
	return d.Out(blocks)
}

// window loads every block a walk over [start, end) can visit: pages from
// start up to and including the first page at or after end, where the walk
// stops.
func (s *Service) window(ctx context.Context, item models.ItemID, start, end *int) ([]*models.Block, error) {
	f := store.BlockFilter{PageGTE: start}
	if end != nil {
		boundary, ok, err := s.links.FirstAtOrAfter(ctx, item, *end, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to find window end: %w", err)
		}
		if ok {
			f.PageLTE = &boundary.PageNb
		}
	}
	blocks, err := s.store.FindBlocks(ctx, item, f)
	if err != nil {
		return nil, fmt.Errorf("failed to load window: %w", err)
	}
	return blocks, nil
}

// BlockIDsInRange returns the ids from startID to endID inclusive, in chain
// order. A nil startID means the head and a nil endID the tail.
func (s *Service) BlockIDsInRange(ctx context.Context, item models.ItemID, startID, endID *models.BlockID) (_ []models.BlockID, err error) {
	defer func() { err = s.observe("block_ids_in_range", err) }()

	var first models.Block
	if startID == nil {
		head, ok, err := s.links.Head(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("failed to get head: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("item %s has no blocks: %w", item, chain.ErrNotFound)
		}
		first = head
	} else {
		b, err := s.itemBlock(ctx, item, *startID)
		if err != nil {
			return nil, err
		}
		first = *b
	}

	f := store.BlockFilter{PageGTE: &first.PageNb}
	if endID != nil {
		last, err := s.itemBlock(ctx, item, *endID)
		if err != nil {
			return nil, err
		}
		if last.PageNb < first.PageNb {
			return nil, &chain.ValidationError{Field: "end", Reason: fmt.Sprintf("page %d precedes start page %d", last.PageNb, first.PageNb)}
		}
		f.PageLTE = &last.PageNb
	}

	blocks, err := s.store.FindBlocks(ctx, item, f)
	if err != nil {
		return nil, fmt.Errorf("failed to load range: %w", err)
	}
	d, err := chain.NewDict[models.BlockID](deref(blocks))
	if err != nil {
		return nil, chain.Annotate(err, item)
	}
	walked, err := chain.Walk(d, first.ID, chain.Stop[models.BlockID, models.Block]{EndID: endID})
	if err != nil {
		return nil, chain.Annotate(err, item)
	}
	ids := make([]models.BlockID, 0, len(walked))
	for _, b := range walked {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

// GetBlock returns one block of item with its spans.
func (s *Service) GetBlock(ctx context.Context, item models.ItemID, id models.BlockID) (_ *BlockOut, err error) {
	defer func() { err = s.observe("get_block", err) }()

	b, err := s.itemBlock(ctx, item, id)
	if err != nil {
		return nil, err
	}
	return s.blockOut(ctx, b)
}

func (s *Service) blockOut(ctx context.Context, b *models.Block) (*BlockOut, error) {
	spans, err := s.store.FindSpans(ctx, b.ID, store.SpanFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load spans: %w", err)
	}
	d, err := NewBlockDict(b.ItemID, []*models.Block{b}, spans)
	if err != nil {
		return nil, err
	}
	out, err := d.Out([]models.Block{*b})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// GetBlocks returns the listed blocks of item in the order given. Every id
// must exist and belong to item.
func (s *Service) GetBlocks(ctx context.Context, item models.ItemID, ids []models.BlockID) (_ []BlockOut, err error) {
	defer func() { err = s.observe("get_blocks", err) }()

	if len(ids) == 0 {
		return nil, nil
	}
	blocks, err := s.store.GetBlocks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get blocks: %w", err)
	}
	byID := make(map[models.BlockID]models.Block, len(blocks))
	var mine []*models.Block
	for _, b := range blocks {
		if b.ItemID != item {
			continue
		}
		if _, dup := byID[b.ID]; !dup {
			mine = append(mine, b)
		}
		byID[b.ID] = *b
	}

	ordered := make([]models.Block, 0, len(ids))
	for _, id := range ids {
		b, ok := byID[id]
		if !ok {
			return nil, notFound("block", id)
		}
		ordered = append(ordered, b)
	}

	spans, err := s.store.SpansOf(ctx, idsOf(mine))
	if err != nil {
		return nil, fmt.Errorf("failed to load spans: %w", err)
	}
	d, err := NewBlockDict(item, mine, spans)
	if err != nil {
		return nil, err
	}
	return d.Out(ordered)
}

// BlockSelection narrows a block id query to a list of ids or to an
// inclusive range. Exactly one of IDs and Range may be set.
type BlockSelection struct {
	IDs   []models.BlockID
	Range *BlockRange
}

// BlockRange runs from Start to End inclusive. A nil Start means the head
// and a nil End the tail.
type BlockRange struct {
	Start *models.BlockID `json:"start_id,omitempty" yaml:"start_id,omitempty"`
	End   *models.BlockID `json:"end_id,omitempty" yaml:"end_id,omitempty"`
}

// ReadBlockIDs returns, in chain order, the blocks of item that are read
// aloud. A non-nil sel limits the result to the selected blocks; an empty
// id list selects nothing. With onlyMissingAudio it skips blocks whose
// audio is complete.
func (s *Service) ReadBlockIDs(ctx context.Context, item models.ItemID, sel *BlockSelection, onlyMissingAudio bool) (_ []models.BlockID, err error) {
	defer func() { err = s.observe("read_block_ids", err) }()

	if sel != nil && sel.IDs != nil && sel.Range != nil {
		return nil, &chain.ValidationError{Field: "block_ids", Reason: "give either block ids or a range, not both"}
	}
	blocks, err := s.itemChain(ctx, item)
	if err != nil {
		return nil, err
	}
	blocks, err = selectBlocks(item, blocks, sel)
	if err != nil {
		return nil, err
	}

	var ids []models.BlockID
	for _, b := range blocks {
		if !b.IsRead() {
			continue
		}
		if onlyMissingAudio && b.AudioStatus == models.AudioCompleted {
			continue
		}
		ids = append(ids, b.ID)
	}
	return ids, nil
}

// selectBlocks filters a walked chain by sel, keeping chain order.
func selectBlocks(item models.ItemID, blocks []models.Block, sel *BlockSelection) ([]models.Block, error) {
	switch {
	case sel == nil:
		return blocks, nil
	case sel.Range != nil:
		from, to := 0, len(blocks)-1
		pos := make(map[models.BlockID]int, len(blocks))
		for i, b := range blocks {
			pos[b.ID] = i
		}
		if id := sel.Range.Start; id != nil {
			i, ok := pos[*id]
			if !ok {
				return nil, notFound("block", *id)
			}
			from = i
		}
		if id := sel.Range.End; id != nil {
			i, ok := pos[*id]
			if !ok {
				return nil, notFound("block", *id)
			}
			to = i
		}
		if len(blocks) == 0 {
			return nil, nil
		}
		if to < from {
			return nil, &chain.ValidationError{Field: "end", Reason: fmt.Sprintf("block %s precedes the start of the range in item %s", blocks[to].ID, item)}
		}
		return blocks[from : to+1], nil
	}

	want := make(map[models.BlockID]bool, len(sel.IDs))
	for _, id := range sel.IDs {
		want[id] = true
	}
	var out []models.Block
	for _, b := range blocks {
		if want[b.ID] {
			out = append(out, b)
		}
	}
	return out, nil
}

// itemChain loads and walks the whole block chain of item.
func (s *Service) itemChain(ctx context.Context, item models.ItemID) ([]models.Block, error) {
	blocks, err := s.store.FindBlocks(ctx, item, store.BlockFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load blocks: %w", err)
	}
	d, err := chain.NewDict[models.BlockID](deref(blocks))
	if err != nil {
		return nil, chain.Annotate(err, item)
	}
	walked, err := chain.WalkAll(d)
	if err != nil {
		return nil, chain.Annotate(err, item)
	}
	return walked, nil
}

// itemBlock gets a block and checks that it belongs to item.
func (s *Service) itemBlock(ctx context.Context, item models.ItemID, id models.BlockID) (*models.Block, error) {
	b, err := s.store.GetBlock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	if b == nil || b.ItemID != item {
		return nil, notFound("block", id)
	}
	return b, nil
}
