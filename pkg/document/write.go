package document

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/readalong/chainstore/pkg/artifact"
	"github.com/readalong/chainstore/pkg/chain"
	"github.com/readalong/chainstore/pkg/models"
	"github.com/readalong/chainstore/pkg/store"
)

// audioUpdateParallelism bounds concurrent writes in SetAudioStatus.
const audioUpdateParallelism = 8

// Position says where InsertBlock links a new block. The zero value
// inserts at the head.
type Position struct {
	// After is the block the new one follows.
	After *models.BlockID
	// AtEnd appends after the current tail. It takes precedence over After.
	AtEnd bool
}

// InsertBlock stores in as a new block of item on page. Its spans are
// written first, then the block is linked at pos. The page must fit
// between the neighbours' pages.
func (s *Service) InsertBlock(ctx context.Context, item models.ItemID, pos Position, page int, in models.BlockIn) (_ models.BlockID, err error) {
	defer func() { err = s.observe("insert_block", err) }()

	if err := validateBlockIn(page, in); err != nil {
		return models.BlockID{}, err
	}

	var pred *models.Block
	switch {
	case pos.AtEnd:
		tail, ok, err := s.links.Tail(ctx, item)
		if err != nil {
			return models.BlockID{}, fmt.Errorf("failed to get tail: %w", err)
		}
		if ok {
			pred = &tail
		}
	case pos.After != nil:
		if pred, err = s.itemBlock(ctx, item, *pos.After); err != nil {
			return models.BlockID{}, err
		}
	}
	if err := s.checkPagePosition(ctx, item, pred, nil, page); err != nil {
		return models.BlockID{}, err
	}

	block := in.NewBlock(models.NewBlockID(), item, page)
	if err := s.store.InsertSpans(ctx, spanChain(block, in.Spans)); err != nil {
		return models.BlockID{}, fmt.Errorf("failed to insert spans: %w", err)
	}

	m := s.blockMutator()
	if pos.AtEnd {
		_, err = m.Append(ctx, item, block)
	} else {
		var after *models.BlockID
		if pred != nil {
			after = &pred.ID
		}
		_, err = m.InsertAfter(ctx, item, after, block)
	}
	if err != nil {
		if !chain.IsPartialWrite(err) {
			s.dropSpans(ctx, block.ID)
		}
		return models.BlockID{}, err
	}
	return block.ID, nil
}

// dropSpans removes the spans of a block whose insert failed before the
// block was stored.
func (s *Service) dropSpans(ctx context.Context, block models.BlockID) {
	if _, err := s.store.DeleteBlockSpans(ctx, block); err != nil {
		s.log.Warn().Err(err).Str("block", block.String()).Msg("failed to remove spans of unlinked block")
	}
}

// checkPagePosition checks that page fits between pred and the block that
// will follow it. A nil pred means the head position. skip is left out
// when finding the successor, for moves.
func (s *Service) checkPagePosition(ctx context.Context, item models.ItemID, pred *models.Block, skip *models.Block, page int) error {
	var next *models.BlockID
	if pred != nil {
		if pred.PageNb > page {
			return &chain.ValidationError{Field: models.FieldPageNb, Reason: fmt.Sprintf("page %d precedes previous block's page %d", page, pred.PageNb)}
		}
		next = pred.NextID
	} else {
		head, ok, err := s.links.Head(ctx, item)
		if err != nil {
			return fmt.Errorf("failed to get head: %w", err)
		}
		if ok {
			next = &head.ID
		}
	}
	if next != nil && skip != nil && *next == skip.ID {
		next = skip.NextID
	}
	if next == nil {
		return nil
	}

	succ, err := s.itemBlock(ctx, item, *next)
	if errors.Is(err, chain.ErrNotFound) {
		return chain.Annotate(&chain.CorruptionError{Node: next.String(), Reason: "next block does not exist"}, item)
	}
	if err != nil {
		return err
	}
	if succ.PageNb < page {
		return &chain.ValidationError{Field: models.FieldPageNb, Reason: fmt.Sprintf("page %d follows next block's page %d", page, succ.PageNb)}
	}
	return nil
}

// DeleteBlock unlinks and removes a block with its spans and audio. It
// returns false if the block does not exist.
func (s *Service) DeleteBlock(ctx context.Context, item models.ItemID, id models.BlockID) (_ bool, err error) {
	defer func() { err = s.observe("delete_block", err) }()
	return s.blockMutator().Delete(ctx, item, id)
}

// ReplaceBlock swaps the payload and spans of a block in place. Its audio
// is discarded. Blocks that are not read aloud cannot be replaced.
func (s *Service) ReplaceBlock(ctx context.Context, item models.ItemID, id models.BlockID, in models.BlockIn) (_ *BlockOut, err error) {
	defer func() { err = s.observe("replace_block", err) }()

	old, err := s.itemBlock(ctx, item, id)
	if err != nil {
		return nil, err
	}
	if !old.IsRead() {
		return nil, &chain.ValidationError{Field: models.FieldRead, Reason: "block is not read; set read before replacing it"}
	}
	if err := validateBlockIn(old.PageNb, in); err != nil {
		return nil, err
	}

	if _, err := s.store.DeleteBlockSpans(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete old spans: %w", err)
	}
	if err := s.store.InsertSpans(ctx, spanChain(*old, in.Spans)); err != nil {
		return nil, fmt.Errorf("failed to insert spans: %w", err)
	}

	patch := models.Patch{
		models.FieldRead:        in.Read,
		models.FieldSizeClass:   in.SizeClass,
		models.FieldAudioStatus: nil,
		models.FieldAudioPath:   nil,
	}
	matched, err := s.store.UpdateBlock(ctx, id, item, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update block: %w", err)
	}
	if matched == 0 {
		return nil, &chain.PartialWriteError{Parent: item.String(), Node: id.String(), Step: "update payload"}
	}
	s.removeArtifacts(ctx, artifact.BlockPrefix(item, id))

	b, err := s.itemBlock(ctx, item, id)
	if err != nil {
		return nil, err
	}
	return s.blockOut(ctx, b)
}

// UpdateBlock patches payload fields of a block. Link fields are rejected.
func (s *Service) UpdateBlock(ctx context.Context, item models.ItemID, id models.BlockID, patch models.Patch) (err error) {
	defer func() { err = s.observe("update_block", err) }()

	canon, err := models.NormalizeBlockPatch(patch)
	if err != nil {
		return err
	}
	matched, err := s.store.UpdateBlock(ctx, id, item, canon)
	if err != nil {
		return fmt.Errorf("failed to update block: %w", err)
	}
	if matched == 0 {
		return notFound("block", id)
	}
	return nil
}

// UpdateSpan patches payload fields of a span of a block of item. Link
// fields are rejected, and so is a patch that leaves the span invalid for
// its type.
func (s *Service) UpdateSpan(ctx context.Context, item models.ItemID, block models.BlockID, id models.SpanID, patch models.Patch) (err error) {
	defer func() { err = s.observe("update_span", err) }()

	canon, err := models.NormalizeSpanPatch(patch)
	if err != nil {
		return err
	}
	if _, err := s.itemBlock(ctx, item, block); err != nil {
		return err
	}
	sp, err := s.store.GetSpan(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get span: %w", err)
	}
	if sp == nil || sp.BlockID != block {
		return notFound("span", id)
	}
	merged := *sp
	if err := merged.Apply(canon); err != nil {
		return err
	}
	if err := merged.Validate(); err != nil {
		return err
	}

	matched, err := s.store.UpdateSpan(ctx, id, block, canon)
	if err != nil {
		return fmt.Errorf("failed to update span: %w", err)
	}
	if matched == 0 {
		return notFound("span", id)
	}
	return nil
}

// MoveBlock relinks a block after pred, or to the head when pred is nil,
// optionally changing its page. The page must fit between the new
// neighbours.
func (s *Service) MoveBlock(ctx context.Context, item models.ItemID, id models.BlockID, pred *models.BlockID, page *int) (err error) {
	defer func() { err = s.observe("move_block", err) }()

	b, err := s.itemBlock(ctx, item, id)
	if err != nil {
		return err
	}
	newPage := b.PageNb
	if page != nil {
		if *page < 0 {
			return &chain.ValidationError{Field: models.FieldPageNb, Reason: "page must not be negative"}
		}
		newPage = *page
	}
	if pred != nil && *pred == id {
		return &chain.ValidationError{Field: "pred", Reason: "block cannot follow itself"}
	}

	var p *models.Block
	if pred != nil {
		if p, err = s.itemBlock(ctx, item, *pred); err != nil {
			return err
		}
	}
	if err := s.checkPagePosition(ctx, item, p, b, newPage); err != nil {
		return err
	}

	if _, err := s.blockMutator().Move(ctx, item, id, pred); err != nil {
		return err
	}
	if newPage != b.PageNb {
		matched, err := s.store.UpdateBlock(ctx, id, item, models.Patch{models.FieldPageNb: newPage})
		if err != nil {
			return fmt.Errorf("failed to set page: %w", err)
		}
		if matched == 0 {
			return &chain.PartialWriteError{Parent: item.String(), Node: id.String(), Step: "set page"}
		}
	}
	return nil
}

// SetAudioStatus sets the audio status of the listed blocks of item and
// returns how many matched.
func (s *Service) SetAudioStatus(ctx context.Context, item models.ItemID, ids []models.BlockID, status models.AudioStatus) (int, error) {
	if !status.Valid() {
		return 0, &chain.ValidationError{Field: models.FieldAudioStatus, Reason: fmt.Sprintf("invalid audio status %q", status)}
	}

	matched := make([]int, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(audioUpdateParallelism)
	for i, id := range ids {
		g.Go(func() error {
			n, err := s.store.UpdateBlock(gctx, id, item, models.Patch{models.FieldAudioStatus: status})
			if err != nil {
				return fmt.Errorf("failed to set audio status of %s: %w", id, err)
			}
			matched[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range matched {
		total += n
	}
	return total, nil
}

// DeleteBlockAudio clears the audio status and path of a block and removes
// its audio files. It returns false if item has no such block.
func (s *Service) DeleteBlockAudio(ctx context.Context, item models.ItemID, id models.BlockID) (_ bool, err error) {
	defer func() { err = s.observe("delete_block_audio", err) }()

	matched, err := s.store.UpdateBlock(ctx, id, item, models.Patch{
		models.FieldAudioStatus: nil,
		models.FieldAudioPath:   nil,
	})
	if err != nil {
		return false, fmt.Errorf("failed to clear audio: %w", err)
	}
	if matched == 0 {
		return false, nil
	}
	s.removeArtifacts(ctx, artifact.BlockPrefix(item, id))
	return true, nil
}

// DeleteItem removes every block and span of item and its artifacts. It
// returns the number of blocks deleted, or ErrNotFound if there were none.
func (s *Service) DeleteItem(ctx context.Context, item models.ItemID) (int, error) {
	blocks, err := s.store.FindBlocks(ctx, item, store.BlockFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to load blocks: %w", err)
	}
	if len(blocks) == 0 {
		return 0, notFound("item", item)
	}
	for _, b := range blocks {
		if _, err := s.store.DeleteBlockSpans(ctx, b.ID); err != nil {
			return 0, fmt.Errorf("failed to delete spans of %s: %w", b.ID, err)
		}
	}
	n, err := s.store.DeleteItemBlocks(ctx, item)
	if err != nil {
		return 0, fmt.Errorf("failed to delete blocks: %w", err)
	}
	s.removeArtifacts(ctx, artifact.ItemPrefix(item))
	s.log.Info().Str("item", item.String()).Int("blocks", n).Msg("item deleted")
	return n, nil
}

// InsertSpan links a new span into the span chain of block after pred,
// or at its head when pred is nil.
func (s *Service) InsertSpan(ctx context.Context, item models.ItemID, block models.BlockID, pred *models.SpanID, in models.SpanIn) (_ models.SpanID, err error) {
	defer func() { err = s.observe("insert_span", err) }()

	b, err := s.itemBlock(ctx, item, block)
	if err != nil {
		return models.SpanID{}, err
	}
	if err := validateBlockIn(b.PageNb, models.BlockIn{SizeClass: b.SizeClass, Spans: []models.SpanIn{in}}); err != nil {
		return models.SpanID{}, err
	}
	sp, err := s.spanMutator().InsertAfter(ctx, block, pred, in.NewSpan(models.NewSpanID(), block, b.Read))
	if err != nil {
		return models.SpanID{}, chain.Annotate(err, block)
	}
	return sp.ID, nil
}

// DeleteSpan unlinks and removes a span. It returns false if the span
// does not exist. The last span of a block cannot be deleted; delete the
// block instead.
func (s *Service) DeleteSpan(ctx context.Context, item models.ItemID, block models.BlockID, id models.SpanID) (_ bool, err error) {
	defer func() { err = s.observe("delete_span", err) }()

	if _, err := s.itemBlock(ctx, item, block); err != nil {
		return false, err
	}
	spans, err := s.store.FindSpans(ctx, block, store.SpanFilter{Limit: 2})
	if err != nil {
		return false, fmt.Errorf("failed to load spans: %w", err)
	}
	if len(spans) == 1 && spans[0].ID == id {
		return false, &chain.ValidationError{Field: "spans", Reason: "block would have no spans"}
	}
	return s.spanMutator().Delete(ctx, block, id)
}

// spanChain builds the linked span records for a new or replaced block.
func spanChain(block models.Block, in []models.SpanIn) []*models.Span {
	ids := make([]models.SpanID, len(in))
	for i := range in {
		ids[i] = models.NewSpanID()
	}
	spans := make([]*models.Span, len(in))
	for i, sp := range in {
		var next *models.SpanID
		if i+1 < len(in) {
			next = &ids[i+1]
		}
		rec := sp.NewSpan(ids[i], block.ID, block.Read).Relink(next, i == 0)
		spans[i] = &rec
	}
	return spans
}

func validateBlockIn(page int, in models.BlockIn) error {
	if page < 0 {
		return &chain.ValidationError{Field: models.FieldPageNb, Reason: "page must not be negative"}
	}
	if !in.SizeClass.Valid() {
		return &chain.ValidationError{Field: models.FieldSizeClass, Reason: fmt.Sprintf("invalid size class %q", in.SizeClass)}
	}
	if len(in.Spans) == 0 {
		return &chain.ValidationError{Field: "spans", Reason: "block has no spans"}
	}
	for i, sp := range in.Spans {
		switch sp.Type {
		case models.SpanText:
		case models.SpanPause:
			if sp.Pause == nil || *sp.Pause < 0 {
				return &chain.ValidationError{Field: "spans", Reason: fmt.Sprintf("span %d: pause needs a non-negative duration", i)}
			}
		default:
			return &chain.ValidationError{Field: "spans", Reason: fmt.Sprintf("span %d: invalid type %d", i, sp.Type)}
		}
	}
	return nil
}
