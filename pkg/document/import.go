package document

import (
	"context"
	"fmt"

	"github.com/readalong/chainstore/pkg/chain"
	"github.com/readalong/chainstore/pkg/models"
	"github.com/readalong/chainstore/pkg/store"
)

// ImportResult summarizes an ImportPages call.
type ImportResult struct {
	Head   models.BlockID `json:"head" yaml:"head"`
	Blocks int            `json:"blocks" yaml:"blocks"`
	Spans  int            `json:"spans" yaml:"spans"`
}

// ImportPages stores the complete content of a new item. Blocks are
// chained in supplied order across pages, and every block gets its own
// span chain. Spans are written before blocks so that no stored block
// ever lacks its spans.
func (s *Service) ImportPages(ctx context.Context, item models.ItemID, pages []models.PageIn) (_ ImportResult, err error) {
	defer func() { err = s.observe("import_pages", err) }()

	blocks, spans, err := buildChains(item, pages)
	if err != nil {
		return ImportResult{}, err
	}
	if len(blocks) == 0 {
		return ImportResult{}, &chain.ValidationError{Field: "pages", Reason: "no blocks to import"}
	}

	existing, err := s.store.FindBlocks(ctx, item, store.BlockFilter{Limit: 1})
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to check item: %w", err)
	}
	if len(existing) > 0 {
		return ImportResult{}, &chain.ValidationError{Field: "item_id", Reason: "item already has blocks"}
	}

	if err := s.store.InsertSpans(ctx, spans); err != nil {
		return ImportResult{}, fmt.Errorf("failed to insert spans: %w", err)
	}
	if err := s.store.InsertBlocks(ctx, blocks); err != nil {
		for _, b := range blocks {
			s.dropSpans(ctx, b.ID)
		}
		return ImportResult{}, fmt.Errorf("failed to insert blocks: %w", err)
	}

	s.log.Info().
		Str("item", item.String()).
		Int("pages", len(pages)).
		Int("blocks", len(blocks)).
		Int("spans", len(spans)).
		Msg("item imported")
	return ImportResult{Head: blocks[0].ID, Blocks: len(blocks), Spans: len(spans)}, nil
}

// buildChains assigns ids and links for pages. Pages must be
// non-negative and non-decreasing.
func buildChains(item models.ItemID, pages []models.PageIn) ([]*models.Block, []*models.Span, error) {
	var (
		blocks []*models.Block
		spans  []*models.Span
	)
	last := -1
	for _, page := range pages {
		if page.Page < last {
			return nil, nil, &chain.ValidationError{Field: models.FieldPageNb, Reason: fmt.Sprintf("page %d follows page %d", page.Page, last)}
		}
		last = page.Page
		for i, in := range page.Blocks {
			if err := validateBlockIn(page.Page, in); err != nil {
				return nil, nil, fmt.Errorf("page %d block %d: %w", page.Page, i, err)
			}
			b := in.NewBlock(models.NewBlockID(), item, page.Page)
			blocks = append(blocks, &b)
			spans = append(spans, spanChain(b, in.Spans)...)
		}
	}

	for i, b := range blocks {
		var next *models.BlockID
		if i+1 < len(blocks) {
			next = &blocks[i+1].ID
		}
		*b = b.Relink(next, i == 0)
	}
	return blocks, spans, nil
}

// ExportPages returns the content of item in the form ImportPages takes.
// Consecutive blocks on the same page share one PageIn. Ids, audio and
// link fields are not part of the export.
func (s *Service) ExportPages(ctx context.Context, item models.ItemID) (_ []models.PageIn, err error) {
	defer func() { err = s.observe("export_pages", err) }()

	blocks, err := s.itemBlocks(ctx, item, nil, nil)
	if err != nil {
		return nil, err
	}
	var pages []models.PageIn
	for _, b := range blocks {
		if n := len(pages); n == 0 || pages[n-1].Page != b.PageNb {
			pages = append(pages, models.PageIn{Page: b.PageNb})
		}
		in := models.BlockIn{
			SizeClass: b.SizeClass,
			Read:      models.TriOf(b.Read).Compact(models.DefaultRead),
			Spans:     make([]models.SpanIn, 0, len(b.Spans)),
		}
		for _, sp := range b.Spans {
			in.Spans = append(in.Spans, models.SpanIn{
				Type:  sp.Type,
				Text:  sp.Text,
				Pause: sp.Pause,
				Read:  models.TriOf(sp.Read).Compact(models.DefaultRead),
			})
		}
		pages[len(pages)-1].Blocks = append(pages[len(pages)-1].Blocks, in)
	}
	return pages, nil
}
