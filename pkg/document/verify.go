package document

import (
	"context"
	"fmt"

	"github.com/readalong/chainstore/pkg/chain"
	"github.com/readalong/chainstore/pkg/models"
	"github.com/readalong/chainstore/pkg/store"
)

// Chain names used in findings.
const (
	ChainBlocks = "blocks"
	ChainSpans  = "spans"
)

// Finding is one broken invariant found by VerifyItem.
type Finding struct {
	Chain  string `json:"chain" yaml:"chain"`
	Parent string `json:"parent" yaml:"parent"`
	Node   string `json:"node,omitempty" yaml:"node,omitempty"`
	Reason string `json:"reason" yaml:"reason"`
}

func (f Finding) String() string {
	if f.Node == "" {
		return fmt.Sprintf("%s %s: %s", f.Chain, f.Parent, f.Reason)
	}
	return fmt.Sprintf("%s %s node %s: %s", f.Chain, f.Parent, f.Node, f.Reason)
}

// Report is the result of VerifyItem.
type Report struct {
	Item     models.ItemID `json:"item" yaml:"item"`
	Blocks   int           `json:"blocks" yaml:"blocks"`
	Spans    int           `json:"spans" yaml:"spans"`
	Findings []Finding     `json:"findings,omitempty" yaml:"findings,omitempty"`
}

// OK reports whether no invariant is broken.
func (r Report) OK() bool { return len(r.Findings) == 0 }

// VerifyItem checks the block chain of item and the span chain of every
// block. It reports what is broken and changes nothing.
func (s *Service) VerifyItem(ctx context.Context, item models.ItemID) (Report, error) {
	blocks, err := s.store.FindBlocks(ctx, item, store.BlockFilter{})
	if err != nil {
		return Report{}, fmt.Errorf("failed to load blocks: %w", err)
	}
	if len(blocks) == 0 {
		return Report{}, notFound("item", item)
	}
	spans, err := s.store.SpansOf(ctx, idsOf(blocks))
	if err != nil {
		return Report{}, fmt.Errorf("failed to load spans: %w", err)
	}

	report := Report{Item: item, Blocks: len(blocks), Spans: len(spans)}
	for _, f := range chain.Verify[models.BlockID](deref(blocks), models.Block.Page) {
		report.Findings = append(report.Findings, Finding{
			Chain:  ChainBlocks,
			Parent: item.String(),
			Node:   f.Node,
			Reason: f.Reason,
		})
	}

	byBlock := make(map[models.BlockID][]models.Span, len(blocks))
	for _, b := range blocks {
		byBlock[b.ID] = nil
	}
	for _, sp := range spans {
		byBlock[sp.BlockID] = append(byBlock[sp.BlockID], *sp)
	}
	for _, b := range blocks {
		chainSpans := byBlock[b.ID]
		if len(chainSpans) == 0 {
			report.Findings = append(report.Findings, Finding{
				Chain:  ChainSpans,
				Parent: b.ID.String(),
				Reason: "block has no spans",
			})
			continue
		}
		for _, f := range chain.Verify[models.SpanID](chainSpans, nil) {
			report.Findings = append(report.Findings, Finding{
				Chain:  ChainSpans,
				Parent: b.ID.String(),
				Node:   f.Node,
				Reason: f.Reason,
			})
		}
	}

	if !report.OK() {
		s.log.Warn().Str("item", item.String()).Int("findings", len(report.Findings)).Msg("item chains are inconsistent")
	}
	return report, nil
}
