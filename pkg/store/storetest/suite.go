// Package storetest holds the behaviour every store.Store implementation
// must share. Backends run it from their own tests:
//
//	func TestBadgerStore(t *testing.T) {
//		suite.Run(t, &storetest.Suite{Open: openInMemory})
//	}
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/readalong/chainstore/pkg/chain"
	"github.com/readalong/chainstore/pkg/models"
	"github.com/readalong/chainstore/pkg/store"
)

// Suite runs the shared store tests. Every test uses fresh item ids, so
// Open may return a store that already holds data.
type Suite struct {
	suite.Suite

	Open  func(t *testing.T) store.Store
	Store store.Store
}

func (s *Suite) SetupTest() {
	s.Store = s.Open(s.T())
	s.Require().NoError(s.Store.Migrate(context.Background()))
}

func (s *Suite) TearDownTest() {
	if s.Store != nil {
		s.Require().NoError(s.Store.Close())
	}
}

func intp(v int) *int { return &v }

// chainOf stores blocks on the given pages as one linked chain.
func (s *Suite) chainOf(item models.ItemID, pages ...int) []*models.Block {
	blocks := make([]*models.Block, len(pages))
	for i, p := range pages {
		blocks[i] = &models.Block{ID: models.NewBlockID(), ItemID: item, PageNb: p}
	}
	for i, b := range blocks {
		var next *models.BlockID
		if i+1 < len(blocks) {
			next = &blocks[i+1].ID
		}
		*b = b.Relink(next, i == 0)
	}
	s.Require().NoError(s.Store.InsertBlocks(context.Background(), blocks))
	return blocks
}

func blockIDs(blocks []*models.Block) []models.BlockID {
	out := make([]models.BlockID, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.ID)
	}
	return out
}

func (s *Suite) TestGetMissing() {
	ctx := context.Background()

	b, err := s.Store.GetBlock(ctx, models.NewBlockID())
	s.Require().NoError(err)
	s.Nil(b)

	sp, err := s.Store.GetSpan(ctx, models.NewSpanID())
	s.Require().NoError(err)
	s.Nil(sp)
}

func (s *Suite) TestInsertAndGetBlock() {
	ctx := context.Background()
	next := models.NewBlockID()
	in := models.Block{
		ID:          models.NewBlockID(),
		ItemID:      models.NewItemID(),
		PageNb:      7,
		Read:        models.TriFalse,
		SizeClass:   models.SizeH2,
		AudioStatus: models.AudioCompleted,
		AudioPath:   "a/b.wav",
	}.Relink(&next, true)

	s.Require().NoError(s.Store.InsertBlock(ctx, &in))

	got, err := s.Store.GetBlock(ctx, in.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(in, *got)
}

func (s *Suite) TestGetBlocksSkipsMissing() {
	ctx := context.Background()
	blocks := s.chainOf(models.NewItemID(), 0, 1)

	got, err := s.Store.GetBlocks(ctx, []models.BlockID{blocks[1].ID, models.NewBlockID(), blocks[0].ID})
	s.Require().NoError(err)
	s.ElementsMatch(blockIDs(blocks), blockIDs(got))
}

func (s *Suite) TestFindBlocks() {
	ctx := context.Background()
	item := models.NewItemID()
	blocks := s.chainOf(item, 0, 0, 1, 2, 4)
	s.chainOf(models.NewItemID(), 0, 1, 2)

	tests := []struct {
		name   string
		filter store.BlockFilter
		want   []*models.Block
	}{
		{name: "all", filter: store.BlockFilter{}, want: blocks},
		{name: "page at or after", filter: store.BlockFilter{PageGTE: intp(1), SortByPage: true, Limit: 1}, want: blocks[2:3]},
		{name: "page gap", filter: store.BlockFilter{PageGTE: intp(3), SortByPage: true, Limit: 1}, want: blocks[4:5]},
		{name: "window", filter: store.BlockFilter{PageGTE: intp(1), PageLT: intp(4)}, want: blocks[2:4]},
		{name: "up to page", filter: store.BlockFilter{PageLTE: intp(1)}, want: blocks[:3]},
		{name: "head", filter: store.BlockFilter{HeadOnly: true}, want: blocks[:1]},
		{name: "tail", filter: store.BlockFilter{TailOnly: true}, want: blocks[4:]},
		{name: "predecessor", filter: store.BlockFilter{NextID: &blocks[3].ID}, want: blocks[2:3]},
		{name: "empty window", filter: store.BlockFilter{PageGTE: intp(5)}, want: nil},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			got, err := s.Store.FindBlocks(ctx, item, tt.filter)
			s.Require().NoError(err)
			s.ElementsMatch(blockIDs(tt.want), blockIDs(got))
		})
	}

	sorted, err := s.Store.FindBlocks(ctx, item, store.BlockFilter{SortByPage: true})
	s.Require().NoError(err)
	for i := 1; i < len(sorted); i++ {
		s.LessOrEqual(sorted[i-1].PageNb, sorted[i].PageNb)
	}
}

func (s *Suite) TestUpdateBlockIsConditioned() {
	ctx := context.Background()
	item := models.NewItemID()
	blocks := s.chainOf(item, 0, 1)

	n, err := s.Store.UpdateBlock(ctx, blocks[0].ID, models.NewItemID(), models.Patch{models.FieldAudioPath: "x"})
	s.Require().NoError(err)
	s.Equal(0, n)

	n, err = s.Store.UpdateBlock(ctx, models.NewBlockID(), item, models.Patch{models.FieldAudioPath: "x"})
	s.Require().NoError(err)
	s.Equal(0, n)

	n, err = s.Store.UpdateBlock(ctx, blocks[0].ID, item, models.Patch{
		models.FieldNextID:      nil,
		models.FieldIsHead:      models.TriUnset,
		models.FieldAudioStatus: models.AudioInProgress,
	})
	s.Require().NoError(err)
	s.Equal(1, n)

	got, err := s.Store.GetBlock(ctx, blocks[0].ID)
	s.Require().NoError(err)
	s.Nil(got.NextID)
	s.False(got.Head())
	s.Equal(models.AudioInProgress, got.AudioStatus)

	heads, err := s.Store.FindBlocks(ctx, item, store.BlockFilter{HeadOnly: true})
	s.Require().NoError(err)
	s.Empty(heads)

	tails, err := s.Store.FindBlocks(ctx, item, store.BlockFilter{TailOnly: true})
	s.Require().NoError(err)
	s.Len(tails, 2)
}

func (s *Suite) TestDeleteBlock() {
	ctx := context.Background()
	item := models.NewItemID()
	blocks := s.chainOf(item, 0, 1)

	n, err := s.Store.DeleteBlock(ctx, blocks[1].ID, models.NewItemID())
	s.Require().NoError(err)
	s.Equal(0, n)

	n, err = s.Store.DeleteBlock(ctx, blocks[1].ID, item)
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.Store.DeleteBlock(ctx, blocks[1].ID, item)
	s.Require().NoError(err)
	s.Equal(0, n)

	preds, err := s.Store.FindBlocks(ctx, item, store.BlockFilter{NextID: &blocks[1].ID})
	s.Require().NoError(err)
	s.Len(preds, 1)
}

func (s *Suite) TestDeleteItemBlocks() {
	ctx := context.Background()
	item, other := models.NewItemID(), models.NewItemID()
	s.chainOf(item, 0, 1, 2)
	kept := s.chainOf(other, 0)

	n, err := s.Store.DeleteItemBlocks(ctx, item)
	s.Require().NoError(err)
	s.Equal(3, n)

	left, err := s.Store.FindBlocks(ctx, item, store.BlockFilter{})
	s.Require().NoError(err)
	s.Empty(left)

	got, err := s.Store.GetBlock(ctx, kept[0].ID)
	s.Require().NoError(err)
	s.NotNil(got)
}

func (s *Suite) TestSpans() {
	ctx := context.Background()
	b1, b2 := models.NewBlockID(), models.NewBlockID()
	pause := 250
	s2 := &models.Span{ID: models.NewSpanID(), BlockID: b1, Type: models.SpanPause, Pause: &pause}
	s1 := &models.Span{ID: models.NewSpanID(), BlockID: b1, Text: "one", IsHead: models.TriTrue, NextID: &s2.ID}
	s3 := &models.Span{ID: models.NewSpanID(), BlockID: b2, Text: "two", IsHead: models.TriTrue, Read: models.TriFalse}
	s.Require().NoError(s.Store.InsertSpans(ctx, []*models.Span{s1, s2}))
	s.Require().NoError(s.Store.InsertSpan(ctx, s3))

	got, err := s.Store.GetSpan(ctx, s2.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(*s2, *got)

	heads, err := s.Store.FindSpans(ctx, b1, store.SpanFilter{HeadOnly: true})
	s.Require().NoError(err)
	s.Require().Len(heads, 1)
	s.Equal(s1.ID, heads[0].ID)

	preds, err := s.Store.FindSpans(ctx, b1, store.SpanFilter{NextID: &s2.ID})
	s.Require().NoError(err)
	s.Require().Len(preds, 1)
	s.Equal(s1.ID, preds[0].ID)

	all, err := s.Store.SpansOf(ctx, []models.BlockID{b1, b2})
	s.Require().NoError(err)
	s.Len(all, 3)

	n, err := s.Store.UpdateSpan(ctx, s3.ID, b1, models.Patch{models.FieldText: "moved"})
	s.Require().NoError(err)
	s.Equal(0, n)

	n, err = s.Store.UpdateSpan(ctx, s3.ID, b2, models.Patch{models.FieldRead: models.TriUnset, models.FieldText: "changed"})
	s.Require().NoError(err)
	s.Equal(1, n)
	got, err = s.Store.GetSpan(ctx, s3.ID)
	s.Require().NoError(err)
	s.True(got.IsRead())
	s.Equal("changed", got.Text)

	n, err = s.Store.DeleteSpan(ctx, s1.ID, b2)
	s.Require().NoError(err)
	s.Equal(0, n)

	n, err = s.Store.DeleteBlockSpans(ctx, b1)
	s.Require().NoError(err)
	s.Equal(2, n)

	left, err := s.Store.SpansOf(ctx, []models.BlockID{b1, b2})
	s.Require().NoError(err)
	s.Len(left, 1)
}

// TestMutatorOverStore drives the chain mutator through the store
// adapters, which exercises every link write a backend has to support.
func (s *Suite) TestMutatorOverStore() {
	ctx := context.Background()
	item := models.NewItemID()
	links := store.BlockLinks{Blocks: s.Store}
	m := &chain.Mutator[models.ItemID, models.BlockID, models.Block]{Store: links}

	var ids []models.BlockID
	for _, p := range []int{0, 0, 1, 2} {
		b, err := m.Append(ctx, item, models.Block{ID: models.NewBlockID(), ItemID: item, PageNb: p})
		s.Require().NoError(err)
		ids = append(ids, b.ID)
	}

	r := &chain.Resolver[models.ItemID, models.BlockID, models.Block]{Source: links}
	start, ok, err := r.Resolve(ctx, item, intp(1), intp(2))
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(ids[2], start)

	found, err := m.Delete(ctx, item, ids[1])
	s.Require().NoError(err)
	s.True(found)

	found, err = m.Delete(ctx, item, ids[0])
	s.Require().NoError(err)
	s.True(found)

	all, err := s.Store.FindBlocks(ctx, item, store.BlockFilter{})
	s.Require().NoError(err)
	d, err := chain.NewDict[models.BlockID](values(all))
	s.Require().NoError(err)
	walked, err := chain.WalkAll(d)
	s.Require().NoError(err)
	s.Equal([]models.BlockID{ids[2], ids[3]}, keys(walked))
}

func values(blocks []*models.Block) []models.Block {
	out := make([]models.Block, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, *b)
	}
	return out
}

func keys(blocks []models.Block) []models.BlockID {
	out := make([]models.BlockID, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.ID)
	}
	return out
}
