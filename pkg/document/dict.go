package document

import (
	"fmt"

	"github.com/readalong/chainstore/pkg/chain"
	"github.com/readalong/chainstore/pkg/models"
)

// SpanOut is a span as returned to callers, with defaults resolved.
type SpanOut struct {
	ID    models.SpanID   `json:"id" yaml:"id"`
	Type  models.SpanType `json:"type" yaml:"type"`
	Text  string          `json:"text,omitempty" yaml:"text,omitempty"`
	Pause *int            `json:"pause,omitempty" yaml:"pause,omitempty"`
	Read  bool            `json:"read" yaml:"read"`
}

// BlockOut is a block with its spans in chain order.
type BlockOut struct {
	ID          models.BlockID     `json:"id" yaml:"id"`
	PageNb      int                `json:"page_nb" yaml:"page_nb"`
	SizeClass   models.SizeClass   `json:"size_class,omitempty" yaml:"size_class,omitempty"`
	Read        bool               `json:"read" yaml:"read"`
	AudioStatus models.AudioStatus `json:"audio_status,omitempty" yaml:"audio_status,omitempty"`
	AudioPath   string             `json:"audio_path,omitempty" yaml:"audio_path,omitempty"`
	Spans       []SpanOut          `json:"spans" yaml:"spans"`
}

func spanOut(sp models.Span) SpanOut {
	return SpanOut{
		ID:    sp.ID,
		Type:  sp.Type,
		Text:  sp.Text,
		Pause: sp.Pause,
		Read:  sp.IsRead(),
	}
}

func blockOut(b models.Block, spans []models.Span) BlockOut {
	out := BlockOut{
		ID:          b.ID,
		PageNb:      b.PageNb,
		SizeClass:   b.SizeClass,
		Read:        b.IsRead(),
		AudioStatus: b.AudioStatus,
		AudioPath:   b.AudioPath,
		Spans:       make([]SpanOut, 0, len(spans)),
	}
	for _, sp := range spans {
		out.Spans = append(out.Spans, spanOut(sp))
	}
	return out
}

// BlockDict holds a fetched set of blocks and the span chains of each.
type BlockDict struct {
	Blocks *chain.Dict[models.BlockID, models.Block]
	spans  map[models.BlockID]*chain.Dict[models.SpanID, models.Span]
}

// NewBlockDict indexes blocks and spans in one pass. A span whose block is
// not among blocks is corruption of that span's chain.
func NewBlockDict(item models.ItemID, blocks []*models.Block, spans []*models.Span) (*BlockDict, error) {
	bd, err := chain.NewDict[models.BlockID](deref(blocks))
	if err != nil {
		return nil, chain.Annotate(err, item)
	}
	d := &BlockDict{
		Blocks: bd,
		spans:  make(map[models.BlockID]*chain.Dict[models.SpanID, models.Span], bd.Len()),
	}
	for _, sp := range spans {
		if _, ok := bd.Get(sp.BlockID); !ok {
			return nil, &chain.CorruptionError{Parent: sp.BlockID.String(), Node: sp.ID.String(), Reason: "span of a block outside the window"}
		}
		sd, ok := d.spans[sp.BlockID]
		if !ok {
			sd, _ = chain.NewDict[models.SpanID]([]models.Span(nil))
			d.spans[sp.BlockID] = sd
		}
		if err := sd.Add(*sp); err != nil {
			return nil, chain.Annotate(err, sp.BlockID)
		}
	}
	return d, nil
}

// SpanChain returns the spans of block in chain order. A block without
// spans yields none.
func (d *BlockDict) SpanChain(block models.BlockID) ([]models.Span, error) {
	sd, ok := d.spans[block]
	if !ok {
		return nil, nil
	}
	spans, err := chain.WalkAll(sd)
	if err != nil {
		return nil, chain.Annotate(err, block)
	}
	return spans, nil
}

// Out converts walked blocks to their output form.
func (d *BlockDict) Out(blocks []models.Block) ([]BlockOut, error) {
	out := make([]BlockOut, 0, len(blocks))
	for _, b := range blocks {
		spans, err := d.SpanChain(b.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, blockOut(b, spans))
	}
	return out, nil
}

func deref[T any](ptrs []*T) []T {
	out := make([]T, 0, len(ptrs))
	for _, p := range ptrs {
		out = append(out, *p)
	}
	return out
}

func idsOf(blocks []*models.Block) []models.BlockID {
	ids := make([]models.BlockID, 0, len(blocks))
	for _, b := range blocks {
		ids = append(ids, b.ID)
	}
	return ids
}

func notFound(what string, id fmt.Stringer) error {
	return fmt.Errorf("%s %s: %w", what, id, chain.ErrNotFound)
}
