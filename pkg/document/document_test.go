package document_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/readalong/chainstore/pkg/artifact"
	"github.com/readalong/chainstore/pkg/chain"
	"github.com/readalong/chainstore/pkg/document"
	"github.com/readalong/chainstore/pkg/models"
	"github.com/readalong/chainstore/pkg/store"
	"github.com/readalong/chainstore/pkg/store/badgerstore"
)

type DocumentTestSuite struct {
	suite.Suite

	ctx      context.Context
	store    store.Store
	svc      *document.Service
	artifact string
	item     models.ItemID
}

func TestDocumentTestSuite(t *testing.T) {
	suite.Run(t, new(DocumentTestSuite))
}

func (s *DocumentTestSuite) SetupTest() {
	st, err := badgerstore.Open(badgerstore.Options{InMemory: true})
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.store = st
	s.artifact = s.T().TempDir()
	s.svc = document.New(st, artifact.Local{Root: s.artifact}, nil)
	s.item = models.NewItemID()
}

func (s *DocumentTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func intp(v int) *int { return &v }

func text(words ...string) models.BlockIn {
	in := models.BlockIn{SizeClass: models.SizeBody}
	for _, w := range words {
		in.Spans = append(in.Spans, models.SpanIn{Type: models.SpanText, Text: w})
	}
	return in
}

// importPages imports one single-span block per page number and returns
// the block ids in order.
func (s *DocumentTestSuite) importPages(pages ...int) []models.BlockID {
	var in []models.PageIn
	for i, p := range pages {
		if n := len(in); n > 0 && in[n-1].Page == p {
			in[n-1].Blocks = append(in[n-1].Blocks, text(string(rune('A'+i))))
			continue
		}
		in = append(in, models.PageIn{Page: p, Blocks: []models.BlockIn{text(string(rune('A' + i)))}})
	}
	res, err := s.svc.ImportPages(s.ctx, s.item, in)
	s.Require().NoError(err)
	s.Require().Equal(len(pages), res.Blocks)

	ids, err := s.svc.BlockIDsInRange(s.ctx, s.item, nil, nil)
	s.Require().NoError(err)
	s.Require().Len(ids, len(pages))
	s.Require().Equal(res.Head, ids[0])
	return ids
}

func (s *DocumentTestSuite) chainIDs() []models.BlockID {
	ids, err := s.svc.BlockIDsInRange(s.ctx, s.item, nil, nil)
	s.Require().NoError(err)
	return ids
}

func texts(blocks []document.BlockOut) []string {
	var out []string
	for _, b := range blocks {
		for _, sp := range b.Spans {
			out = append(out, sp.Text)
		}
	}
	return out
}

func (s *DocumentTestSuite) requireCorruption(err error) *chain.CorruptionError {
	var c *chain.CorruptionError
	s.Require().ErrorAs(err, &c)
	return c
}

func (s *DocumentTestSuite) requireValidation(err error) *chain.ValidationError {
	var v *chain.ValidationError
	s.Require().ErrorAs(err, &v)
	return v
}

func (s *DocumentTestSuite) TestImportAndReadAll() {
	res, err := s.svc.ImportPages(s.ctx, s.item, []models.PageIn{
		{Page: 0, Blocks: []models.BlockIn{text("Once", "upon"), text("a time")}},
		{Page: 1, Blocks: []models.BlockIn{{
			Read: models.TriFalse,
			Spans: []models.SpanIn{
				{Type: models.SpanText, Text: "page 2"},
				{Type: models.SpanPause, Pause: intp(500)},
			},
		}}},
	})
	s.Require().NoError(err)
	s.Equal(3, res.Blocks)
	s.Equal(5, res.Spans)

	blocks, err := s.svc.ItemBlocks(s.ctx, s.item, nil, nil)
	s.Require().NoError(err)
	s.Require().Len(blocks, 3)
	s.Equal(res.Head, blocks[0].ID)
	s.Equal([]string{"Once", "upon", "a time", "page 2", ""}, texts(blocks))
	s.Equal([]int{0, 0, 1}, []int{blocks[0].PageNb, blocks[1].PageNb, blocks[2].PageNb})

	unread := blocks[2]
	s.False(unread.Read)
	s.False(unread.Spans[0].Read)
	s.Equal(models.SpanPause, unread.Spans[1].Type)
	s.Equal(500, *unread.Spans[1].Pause)
	s.True(blocks[0].Spans[0].Read)

	report, err := s.svc.VerifyItem(s.ctx, s.item)
	s.Require().NoError(err)
	s.True(report.OK(), "findings: %v", report.Findings)
	s.Equal(3, report.Blocks)
	s.Equal(5, report.Spans)
}

func (s *DocumentTestSuite) TestScenario() {
	var ids []models.BlockID
	for i, page := range []int{0, 0, 1, 2} {
		id, err := s.svc.InsertBlock(s.ctx, s.item, document.Position{AtEnd: true}, page, text(string(rune('A'+i))))
		s.Require().NoError(err)
		ids = append(ids, id)
	}

	blocks, err := s.svc.ItemBlocks(s.ctx, s.item, intp(1), intp(2))
	s.Require().NoError(err)
	s.Equal([]string{"C"}, texts(blocks))

	blocks, err = s.svc.ItemBlocks(s.ctx, s.item, nil, nil)
	s.Require().NoError(err)
	s.Equal([]string{"A", "B", "C", "D"}, texts(blocks))

	ok, err := s.svc.DeleteBlock(s.ctx, s.item, ids[1])
	s.Require().NoError(err)
	s.True(ok)
	blocks, err = s.svc.ItemBlocks(s.ctx, s.item, nil, nil)
	s.Require().NoError(err)
	s.Equal([]string{"A", "C", "D"}, texts(blocks))

	a, err := s.store.GetBlock(s.ctx, ids[0])
	s.Require().NoError(err)
	s.Require().NotNil(a.NextID)
	s.Equal(ids[2], *a.NextID)
}

func (s *DocumentTestSuite) TestWindow() {
	ids := s.importPages(0, 0, 1, 2, 2, 4)

	cases := []struct {
		name       string
		start, end *int
		want       []models.BlockID
	}{
		{"all", nil, nil, ids},
		{"from zero", intp(0), nil, ids},
		{"up to page 2", nil, intp(2), ids[:3]},
		{"middle", intp(1), intp(3), ids[2:5]},
		{"start in a gap", intp(3), nil, ids[5:]},
		{"single page", intp(2), intp(3), ids[3:5]},
		{"after tail", intp(5), nil, nil},
		{"gap only", intp(3), intp(4), nil},
		{"end before start", intp(2), intp(1), nil},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			blocks, err := s.svc.ItemBlocks(s.ctx, s.item, tc.start, tc.end)
			s.Require().NoError(err)
			var got []models.BlockID
			for _, b := range blocks {
				got = append(got, b.ID)
			}
			s.Equal(tc.want, got)
		})
	}
}

func (s *DocumentTestSuite) TestItemBlocksValidation() {
	_, err := s.svc.ItemBlocks(s.ctx, s.item, intp(-1), nil)
	s.Equal("start", s.requireValidation(err).Field)

	_, err = s.svc.ItemBlocks(s.ctx, s.item, nil, intp(-2))
	s.Equal("end", s.requireValidation(err).Field)
}

func (s *DocumentTestSuite) TestEmptyItem() {
	_, err := s.svc.ItemBlocks(s.ctx, s.item, nil, nil)
	s.Require().ErrorIs(err, chain.ErrNotFound)

	blocks, err := s.svc.ItemBlocks(s.ctx, s.item, intp(3), nil)
	s.Require().NoError(err)
	s.Empty(blocks)

	_, err = s.svc.BlockIDsInRange(s.ctx, s.item, nil, nil)
	s.Require().ErrorIs(err, chain.ErrNotFound)

	_, err = s.svc.DeleteItem(s.ctx, s.item)
	s.Require().ErrorIs(err, chain.ErrNotFound)
}

func (s *DocumentTestSuite) TestBlockIDsInRange() {
	ids := s.importPages(0, 0, 1, 1, 3)

	got, err := s.svc.BlockIDsInRange(s.ctx, s.item, &ids[0], &ids[1])
	s.Require().NoError(err)
	s.Equal(ids[:2], got)

	got, err = s.svc.BlockIDsInRange(s.ctx, s.item, &ids[1], &ids[3])
	s.Require().NoError(err)
	s.Equal(ids[1:4], got)

	got, err = s.svc.BlockIDsInRange(s.ctx, s.item, &ids[2], nil)
	s.Require().NoError(err)
	s.Equal(ids[2:], got)

	_, err = s.svc.BlockIDsInRange(s.ctx, s.item, &ids[4], &ids[0])
	s.requireValidation(err)

	other := models.NewBlockID()
	_, err = s.svc.BlockIDsInRange(s.ctx, s.item, &other, nil)
	s.Require().ErrorIs(err, chain.ErrNotFound)
}

func (s *DocumentTestSuite) TestGetBlocks() {
	ids := s.importPages(0, 1, 2)

	one, err := s.svc.GetBlock(s.ctx, s.item, ids[1])
	s.Require().NoError(err)
	s.Equal("B", one.Spans[0].Text)

	_, err = s.svc.GetBlock(s.ctx, models.NewItemID(), ids[1])
	s.Require().ErrorIs(err, chain.ErrNotFound)

	blocks, err := s.svc.GetBlocks(s.ctx, s.item, []models.BlockID{ids[2], ids[0]})
	s.Require().NoError(err)
	s.Equal([]string{"C", "A"}, texts(blocks))

	_, err = s.svc.GetBlocks(s.ctx, s.item, []models.BlockID{ids[0], models.NewBlockID()})
	s.Require().ErrorIs(err, chain.ErrNotFound)
}

func (s *DocumentTestSuite) TestInsertBlock() {
	ids := s.importPages(0, 2)

	tail, err := s.svc.InsertBlock(s.ctx, s.item, document.Position{AtEnd: true}, 3, text("tail"))
	s.Require().NoError(err)
	mid, err := s.svc.InsertBlock(s.ctx, s.item, document.Position{After: &ids[0]}, 1, text("mid"))
	s.Require().NoError(err)
	head, err := s.svc.InsertBlock(s.ctx, s.item, document.Position{}, 0, text("head"))
	s.Require().NoError(err)

	s.Equal([]models.BlockID{head, ids[0], mid, ids[1], tail}, s.chainIDs())

	blocks, err := s.svc.ItemBlocks(s.ctx, s.item, nil, nil)
	s.Require().NoError(err)
	s.Equal([]string{"head", "A", "mid", "B", "tail"}, texts(blocks))
}

func (s *DocumentTestSuite) TestInsertBlockIntoEmptyItem() {
	id, err := s.svc.InsertBlock(s.ctx, s.item, document.Position{AtEnd: true}, 0, text("only"))
	s.Require().NoError(err)
	s.Equal([]models.BlockID{id}, s.chainIDs())
}

func (s *DocumentTestSuite) TestInsertBlockRejects() {
	ids := s.importPages(1, 2)

	_, err := s.svc.InsertBlock(s.ctx, s.item, document.Position{After: &ids[0]}, 5, text("late"))
	s.Equal(models.FieldPageNb, s.requireValidation(err).Field)

	_, err = s.svc.InsertBlock(s.ctx, s.item, document.Position{After: &ids[1]}, 0, text("early"))
	s.Equal(models.FieldPageNb, s.requireValidation(err).Field)

	_, err = s.svc.InsertBlock(s.ctx, s.item, document.Position{}, 2, text("head"))
	s.Equal(models.FieldPageNb, s.requireValidation(err).Field)

	_, err = s.svc.InsertBlock(s.ctx, s.item, document.Position{AtEnd: true}, 3, models.BlockIn{})
	s.Equal("spans", s.requireValidation(err).Field)

	_, err = s.svc.InsertBlock(s.ctx, s.item, document.Position{AtEnd: true}, 3, models.BlockIn{
		Spans: []models.SpanIn{{Type: models.SpanPause}},
	})
	s.Equal("spans", s.requireValidation(err).Field)

	missing := models.NewBlockID()
	_, err = s.svc.InsertBlock(s.ctx, s.item, document.Position{After: &missing}, 3, text("x"))
	s.Require().ErrorIs(err, chain.ErrNotFound)

	s.Equal(ids, s.chainIDs())
}

func (s *DocumentTestSuite) TestDeleteBlock() {
	ids := s.importPages(0, 1, 2)
	dir := filepath.Join(s.artifact, artifact.BlockPrefix(s.item, ids[0]))
	s.Require().NoError(os.MkdirAll(dir, 0o755))
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "audio.mp3"), []byte("x"), 0o644))

	ok, err := s.svc.DeleteBlock(s.ctx, s.item, ids[0])
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(ids[1:], s.chainIDs())
	s.NoDirExists(dir)

	spans, err := s.store.FindSpans(s.ctx, ids[0], store.SpanFilter{})
	s.Require().NoError(err)
	s.Empty(spans)

	ok, err = s.svc.DeleteBlock(s.ctx, s.item, ids[2])
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(ids[1:2], s.chainIDs())

	ok, err = s.svc.DeleteBlock(s.ctx, s.item, ids[2])
	s.Require().NoError(err)
	s.False(ok)

	report, err := s.svc.VerifyItem(s.ctx, s.item)
	s.Require().NoError(err)
	s.True(report.OK(), "findings: %v", report.Findings)
}

func (s *DocumentTestSuite) TestReplaceBlock() {
	ids := s.importPages(0, 1, 2)
	s.Require().NoError(s.svc.UpdateBlock(s.ctx, s.item, ids[1], models.Patch{
		models.FieldAudioStatus: "completed",
		models.FieldAudioPath:   "b.mp3",
	}))

	out, err := s.svc.ReplaceBlock(s.ctx, s.item, ids[1], text("new", "words"))
	s.Require().NoError(err)
	s.Equal(ids[1], out.ID)
	s.Equal(1, out.PageNb)
	s.Empty(out.AudioStatus)
	s.Empty(out.AudioPath)
	s.Equal([]string{"new", "words"}, texts([]document.BlockOut{*out}))

	s.Equal(ids, s.chainIDs())
	report, err := s.svc.VerifyItem(s.ctx, s.item)
	s.Require().NoError(err)
	s.True(report.OK(), "findings: %v", report.Findings)
	s.Equal(4, report.Spans)
}

func (s *DocumentTestSuite) TestReplaceUnreadBlock() {
	ids := s.importPages(0)
	s.Require().NoError(s.svc.UpdateBlock(s.ctx, s.item, ids[0], models.Patch{models.FieldRead: false}))

	_, err := s.svc.ReplaceBlock(s.ctx, s.item, ids[0], text("x"))
	s.Equal(models.FieldRead, s.requireValidation(err).Field)
}

func (s *DocumentTestSuite) TestUpdateBlock() {
	ids := s.importPages(0)

	for _, field := range []string{models.FieldNextID, models.FieldIsHead, models.FieldItemID, models.FieldID, "color"} {
		err := s.svc.UpdateBlock(s.ctx, s.item, ids[0], models.Patch{field: nil})
		s.Equal(field, s.requireValidation(err).Field)
	}
	err := s.svc.UpdateBlock(s.ctx, s.item, ids[0], models.Patch{models.FieldSizeClass: "huge"})
	s.requireValidation(err)

	err = s.svc.UpdateBlock(s.ctx, s.item, models.NewBlockID(), models.Patch{models.FieldRead: false})
	s.Require().ErrorIs(err, chain.ErrNotFound)
	err = s.svc.UpdateBlock(s.ctx, models.NewItemID(), ids[0], models.Patch{models.FieldRead: false})
	s.Require().ErrorIs(err, chain.ErrNotFound)

	s.Require().NoError(s.svc.UpdateBlock(s.ctx, s.item, ids[0], models.Patch{models.FieldSizeClass: "h1"}))
	out, err := s.svc.GetBlock(s.ctx, s.item, ids[0])
	s.Require().NoError(err)
	s.Equal(models.SizeH1, out.SizeClass)
}

func (s *DocumentTestSuite) TestSpans() {
	ids := s.importPages(0)
	out, err := s.svc.GetBlock(s.ctx, s.item, ids[0])
	s.Require().NoError(err)
	first := out.Spans[0].ID

	err = s.svc.UpdateSpan(s.ctx, s.item, ids[0], first, models.Patch{models.FieldNextID: nil})
	s.Equal(models.FieldNextID, s.requireValidation(err).Field)
	s.Require().NoError(s.svc.UpdateSpan(s.ctx, s.item, ids[0], first, models.Patch{models.FieldText: "edited"}))
	err = s.svc.UpdateSpan(s.ctx, s.item, models.NewBlockID(), first, models.Patch{models.FieldText: "x"})
	s.Require().ErrorIs(err, chain.ErrNotFound)
	err = s.svc.UpdateSpan(s.ctx, models.NewItemID(), ids[0], first, models.Patch{models.FieldText: "x"})
	s.Require().ErrorIs(err, chain.ErrNotFound)
	err = s.svc.UpdateSpan(s.ctx, s.item, ids[0], first, models.Patch{models.FieldType: models.SpanPause})
	s.Equal(models.FieldPause, s.requireValidation(err).Field)

	_, err = s.svc.DeleteSpan(s.ctx, s.item, ids[0], first)
	s.requireValidation(err)

	second, err := s.svc.InsertSpan(s.ctx, s.item, ids[0], &first, models.SpanIn{Type: models.SpanText, Text: "more"})
	s.Require().NoError(err)
	lead, err := s.svc.InsertSpan(s.ctx, s.item, ids[0], nil, models.SpanIn{Type: models.SpanPause, Pause: intp(200)})
	s.Require().NoError(err)

	out, err = s.svc.GetBlock(s.ctx, s.item, ids[0])
	s.Require().NoError(err)
	s.Require().Len(out.Spans, 3)
	s.Equal([]models.SpanID{lead, first, second}, []models.SpanID{out.Spans[0].ID, out.Spans[1].ID, out.Spans[2].ID})
	s.Equal("edited", out.Spans[1].Text)

	err = s.svc.UpdateSpan(s.ctx, s.item, ids[0], lead, models.Patch{models.FieldPause: nil})
	s.Equal(models.FieldPause, s.requireValidation(err).Field)
	s.Require().NoError(s.svc.UpdateSpan(s.ctx, s.item, ids[0], lead, models.Patch{models.FieldPause: 500}))

	ok, err := s.svc.DeleteSpan(s.ctx, s.item, ids[0], first)
	s.Require().NoError(err)
	s.True(ok)
	out, err = s.svc.GetBlock(s.ctx, s.item, ids[0])
	s.Require().NoError(err)
	s.Equal([]string{"", "more"}, texts([]document.BlockOut{*out}))
}

func (s *DocumentTestSuite) TestMoveBlock() {
	ids := s.importPages(0, 1, 2)

	s.Require().NoError(s.svc.MoveBlock(s.ctx, s.item, ids[2], &ids[0], intp(1)))
	s.Equal([]models.BlockID{ids[0], ids[2], ids[1]}, s.chainIDs())

	s.Require().NoError(s.svc.MoveBlock(s.ctx, s.item, ids[1], nil, intp(0)))
	s.Equal([]models.BlockID{ids[1], ids[0], ids[2]}, s.chainIDs())

	err := s.svc.MoveBlock(s.ctx, s.item, ids[1], &ids[2], intp(0))
	s.Equal(models.FieldPageNb, s.requireValidation(err).Field)
	err = s.svc.MoveBlock(s.ctx, s.item, ids[1], &ids[1], nil)
	s.requireValidation(err)
	s.Equal([]models.BlockID{ids[1], ids[0], ids[2]}, s.chainIDs())

	blocks, err := s.svc.ItemBlocks(s.ctx, s.item, intp(1), nil)
	s.Require().NoError(err)
	s.Require().Len(blocks, 1)
	s.Equal(ids[2], blocks[0].ID)

	report, err := s.svc.VerifyItem(s.ctx, s.item)
	s.Require().NoError(err)
	s.True(report.OK(), "findings: %v", report.Findings)
}

func (s *DocumentTestSuite) TestAudio() {
	ids := s.importPages(0, 0, 1, 1)
	s.Require().NoError(s.svc.UpdateBlock(s.ctx, s.item, ids[3], models.Patch{models.FieldRead: false}))

	read, err := s.svc.ReadBlockIDs(s.ctx, s.item, nil, false)
	s.Require().NoError(err)
	s.Equal(ids[:3], read)

	n, err := s.svc.SetAudioStatus(s.ctx, s.item, []models.BlockID{ids[0], ids[1], models.NewBlockID()}, models.AudioCompleted)
	s.Require().NoError(err)
	s.Equal(2, n)

	missing, err := s.svc.ReadBlockIDs(s.ctx, s.item, nil, true)
	s.Require().NoError(err)
	s.Equal(ids[2:3], missing)

	_, err = s.svc.SetAudioStatus(s.ctx, s.item, ids, models.AudioStatus("queued"))
	s.requireValidation(err)
}

func (s *DocumentTestSuite) TestReadBlockIDsSelection() {
	ids := s.importPages(0, 0, 1, 1, 2)
	s.Require().NoError(s.svc.UpdateBlock(s.ctx, s.item, ids[2], models.Patch{models.FieldRead: false}))
	_, err := s.svc.SetAudioStatus(s.ctx, s.item, ids[3:4], models.AudioCompleted)
	s.Require().NoError(err)

	tests := []struct {
		name        string
		sel         *document.BlockSelection
		onlyMissing bool
		want        []models.BlockID
	}{
		{name: "ids in chain order", sel: &document.BlockSelection{IDs: []models.BlockID{ids[4], ids[0], ids[2]}}, want: []models.BlockID{ids[0], ids[4]}},
		{name: "empty id list", sel: &document.BlockSelection{IDs: []models.BlockID{}}},
		{name: "unknown id", sel: &document.BlockSelection{IDs: []models.BlockID{models.NewBlockID()}}},
		{name: "range", sel: &document.BlockSelection{Range: &document.BlockRange{Start: &ids[1], End: &ids[3]}}, want: []models.BlockID{ids[1], ids[3]}},
		{name: "open range", sel: &document.BlockSelection{Range: &document.BlockRange{Start: &ids[3]}}, want: []models.BlockID{ids[3], ids[4]}},
		{name: "range missing audio", sel: &document.BlockSelection{Range: &document.BlockRange{End: &ids[3]}}, onlyMissing: true, want: []models.BlockID{ids[0], ids[1]}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			got, err := s.svc.ReadBlockIDs(s.ctx, s.item, tt.sel, tt.onlyMissing)
			s.Require().NoError(err)
			s.Equal(tt.want, got)
		})
	}

	_, err = s.svc.ReadBlockIDs(s.ctx, s.item, &document.BlockSelection{Range: &document.BlockRange{Start: &ids[3], End: &ids[1]}}, false)
	s.requireValidation(err)
	_, err = s.svc.ReadBlockIDs(s.ctx, s.item, &document.BlockSelection{IDs: ids, Range: &document.BlockRange{}}, false)
	s.requireValidation(err)
	ghost := models.NewBlockID()
	_, err = s.svc.ReadBlockIDs(s.ctx, s.item, &document.BlockSelection{Range: &document.BlockRange{Start: &ghost}}, false)
	s.Require().ErrorIs(err, chain.ErrNotFound)
}

func (s *DocumentTestSuite) TestDeleteBlockAudio() {
	ids := s.importPages(0, 1)
	s.Require().NoError(s.svc.UpdateBlock(s.ctx, s.item, ids[0], models.Patch{
		models.FieldAudioStatus: models.AudioCompleted,
		models.FieldAudioPath:   "audio/0.mp3",
	}))
	dir := filepath.Join(s.artifact, artifact.BlockPrefix(s.item, ids[0]))
	s.Require().NoError(os.MkdirAll(dir, 0o755))
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "0.mp3"), []byte("x"), 0o644))
	kept := filepath.Join(s.artifact, artifact.BlockPrefix(s.item, ids[1]))
	s.Require().NoError(os.MkdirAll(kept, 0o755))

	ok, err := s.svc.DeleteBlockAudio(s.ctx, s.item, ids[0])
	s.Require().NoError(err)
	s.True(ok)
	s.NoDirExists(dir)
	s.DirExists(kept)

	out, err := s.svc.GetBlock(s.ctx, s.item, ids[0])
	s.Require().NoError(err)
	s.Empty(out.AudioStatus)
	s.Empty(out.AudioPath)
	s.Equal(ids, s.chainIDs())

	ok, err = s.svc.DeleteBlockAudio(s.ctx, s.item, models.NewBlockID())
	s.Require().NoError(err)
	s.False(ok)
	ok, err = s.svc.DeleteBlockAudio(s.ctx, models.NewItemID(), ids[1])
	s.Require().NoError(err)
	s.False(ok)
	s.DirExists(kept)
}

func (s *DocumentTestSuite) TestDeleteItem() {
	ids := s.importPages(0, 1)
	dir := filepath.Join(s.artifact, artifact.ItemPrefix(s.item))
	s.Require().NoError(os.MkdirAll(filepath.Join(dir, ids[1].String()), 0o755))

	n, err := s.svc.DeleteItem(s.ctx, s.item)
	s.Require().NoError(err)
	s.Equal(2, n)
	s.NoDirExists(dir)

	for _, id := range ids {
		spans, err := s.store.FindSpans(s.ctx, id, store.SpanFilter{})
		s.Require().NoError(err)
		s.Empty(spans)
	}
	_, err = s.svc.ItemBlocks(s.ctx, s.item, nil, nil)
	s.Require().ErrorIs(err, chain.ErrNotFound)
}

func (s *DocumentTestSuite) TestImportRejects() {
	_, err := s.svc.ImportPages(s.ctx, s.item, nil)
	s.requireValidation(err)

	_, err = s.svc.ImportPages(s.ctx, s.item, []models.PageIn{
		{Page: 2, Blocks: []models.BlockIn{text("a")}},
		{Page: 1, Blocks: []models.BlockIn{text("b")}},
	})
	s.Equal(models.FieldPageNb, s.requireValidation(err).Field)

	_, err = s.svc.ImportPages(s.ctx, s.item, []models.PageIn{
		{Page: 0, Blocks: []models.BlockIn{text("a"), {}}},
	})
	s.Equal("spans", s.requireValidation(err).Field)

	s.importPages(0)
	_, err = s.svc.ImportPages(s.ctx, s.item, []models.PageIn{{Page: 0, Blocks: []models.BlockIn{text("again")}}})
	s.Equal("item_id", s.requireValidation(err).Field)
}

func (s *DocumentTestSuite) TestBrokenNextIsCorruption() {
	ids := s.importPages(0, 1, 2)
	ghost := models.NewBlockID()
	_, err := s.store.UpdateBlock(s.ctx, ids[2], s.item, models.Patch{models.FieldNextID: ghost})
	s.Require().NoError(err)

	_, err = s.svc.ItemBlocks(s.ctx, s.item, nil, nil)
	c := s.requireCorruption(err)
	s.Equal(s.item.String(), c.Parent)
	s.Equal(ids[2].String(), c.Node)

	_, err = s.svc.ReadBlockIDs(s.ctx, s.item, nil, false)
	s.requireCorruption(err)

	report, err := s.svc.VerifyItem(s.ctx, s.item)
	s.Require().NoError(err)
	s.False(report.OK())
	found := false
	for _, f := range report.Findings {
		if f.Chain == document.ChainBlocks && f.Node == ids[2].String() {
			found = true
		}
	}
	s.True(found, "findings: %v", report.Findings)
}

func (s *DocumentTestSuite) TestDuplicateHeadIsCorruption() {
	ids := s.importPages(0, 1)
	_, err := s.store.UpdateBlock(s.ctx, ids[1], s.item, models.Patch{models.FieldIsHead: true})
	s.Require().NoError(err)

	_, err = s.svc.ItemBlocks(s.ctx, s.item, nil, nil)
	s.requireCorruption(err)

	_, err = s.svc.InsertBlock(s.ctx, s.item, document.Position{}, 0, text("x"))
	s.requireCorruption(err)

	report, err := s.svc.VerifyItem(s.ctx, s.item)
	s.Require().NoError(err)
	s.False(report.OK())
}

func (s *DocumentTestSuite) TestOrphanSpanIsCorruption() {
	ids := s.importPages(0)
	out, err := s.svc.GetBlock(s.ctx, s.item, ids[0])
	s.Require().NoError(err)
	_, err = s.store.UpdateSpan(s.ctx, out.Spans[0].ID, ids[0], models.Patch{models.FieldIsHead: false})
	s.Require().NoError(err)

	_, err = s.svc.ItemBlocks(s.ctx, s.item, nil, nil)
	c := s.requireCorruption(err)
	s.Equal(ids[0].String(), c.Parent)

	report, err := s.svc.VerifyItem(s.ctx, s.item)
	s.Require().NoError(err)
	s.Require().Len(report.Findings, 1)
	s.Equal(document.ChainSpans, report.Findings[0].Chain)
}

func (s *DocumentTestSuite) TestExportPages() {
	in := []models.PageIn{
		{Page: 0, Blocks: []models.BlockIn{text("a", "b"), {Read: models.TriFalse, SizeClass: models.SizeH2, Spans: []models.SpanIn{{Type: models.SpanText, Text: "title", Read: models.TriFalse}}}}},
		{Page: 3, Blocks: []models.BlockIn{{Spans: []models.SpanIn{{Type: models.SpanPause, Pause: intp(750)}}}}},
	}
	_, err := s.svc.ImportPages(s.ctx, s.item, in)
	s.Require().NoError(err)

	out, err := s.svc.ExportPages(s.ctx, s.item)
	s.Require().NoError(err)
	s.Equal(in, out)

	copied := models.NewItemID()
	_, err = s.svc.ImportPages(s.ctx, copied, out)
	s.Require().NoError(err)
	again, err := s.svc.ExportPages(s.ctx, copied)
	s.Require().NoError(err)
	s.Equal(in, again)
}

func (s *DocumentTestSuite) TestReadOnlyStore() {
	ids := s.importPages(0)
	ro := document.New(store.ReadOnly(s.store), nil, nil)

	blocks, err := ro.ItemBlocks(s.ctx, s.item, nil, nil)
	s.Require().NoError(err)
	s.Len(blocks, 1)

	_, err = ro.DeleteBlock(s.ctx, s.item, ids[0])
	s.True(errors.Is(err, store.ErrReadOnly))
}

func TestFindingString(t *testing.T) {
	f := document.Finding{Chain: document.ChainSpans, Parent: "b", Node: "s", Reason: "cycle"}
	require.Equal(t, "spans b node s: cycle", f.String())
	f.Node = ""
	require.Equal(t, "spans b: cycle", f.String())
}
