// Package badgerstore implements [github.com/readalong/chainstore/pkg/store.Store]
// on an embedded Badger database.
//
// Records are CBOR-encoded under their own id. Badger has no secondary
// indexes, so the store writes its own: one key per lookup the chain code
// needs (by page, head, tail, predecessor), kept in the same transaction
// as the record they describe. See keys.go for the layout.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/readalong/chainstore/pkg/models"
	"github.com/readalong/chainstore/pkg/store"
)

var _ store.Store = (*Store)(nil)

// Options configures Open.
type Options struct {
	// Dir holds the database files. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	// Logger receives store warnings and Badger's own log output.
	// Nil discards both.
	Logger *zerolog.Logger
}

// Store is a Badger-backed chain node store.
type Store struct {
	db  *badger.DB
	log zerolog.Logger
}

// Open opens or creates the database described by opts.
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("store", "badger").Logger()
	}
	bopts = bopts.WithLogger(badgerLogger{log: log})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Migrate is a no-op: the key layout needs no setup.
func (s *Store) Migrate(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetBlock(ctx context.Context, id models.BlockID) (*models.Block, error) {
	var b *models.Block
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		b, err = getBlock(txn, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	return b, nil
}

func (s *Store) GetBlocks(ctx context.Context, ids []models.BlockID) ([]*models.Block, error) {
	var out []*models.Block
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			b, err := getBlock(txn, id)
			if err != nil {
				return err
			}
			if b != nil {
				out = append(out, b)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get blocks: %w", err)
	}
	return out, nil
}

func (s *Store) FindBlocks(ctx context.Context, itemID models.ItemID, f store.BlockFilter) ([]*models.Block, error) {
	var out []*models.Block
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = s.findBlocks(txn, itemID, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find blocks: %w", err)
	}
	return out, nil
}

func (s *Store) findBlocks(txn *badger.Txn, itemID models.ItemID, f store.BlockFilter) ([]*models.Block, error) {
	item := itemID.String()

	// The page index is already in page order; the others are not.
	byPage := false
	var scan, seek []byte
	switch {
	case f.HeadOnly:
		scan = prefix(prefixBlockHead + item)
	case f.TailOnly:
		scan = prefix(prefixBlockTail + item)
	case f.NextID != nil:
		scan = prefix(prefixBlockPred+item, f.NextID.String())
	default:
		byPage = true
		scan = prefix(prefixBlockPage + item)
		if f.PageGTE != nil && *f.PageGTE > 0 {
			seek = prefix(prefixBlockPage+item, pageSegment(*f.PageGTE))
		}
	}

	var out []*models.Block
	err := iterateKeys(txn, scan, seek, func(k []byte) (bool, error) {
		if byPage {
			page, err := pageOf(k)
			if err != nil {
				return false, err
			}
			if (f.PageLT != nil && page >= *f.PageLT) || (f.PageLTE != nil && page > *f.PageLTE) {
				return false, nil
			}
		}
		u, err := lastSegment(k)
		if err != nil {
			return false, err
		}
		b, err := getBlock(txn, models.NewBlockIDFromUUID(u))
		if err != nil {
			return false, err
		}
		if b == nil {
			s.log.Warn().Str("key", string(k)).Msg("index entry without block record")
			return true, nil
		}
		if !f.Match(b) {
			return true, nil
		}
		out = append(out, b)
		sorted := byPage || !f.SortByPage
		return !(sorted && f.Limit > 0 && len(out) >= f.Limit), nil
	})
	if err != nil {
		return nil, err
	}

	if f.SortByPage && !byPage {
		sort.SliceStable(out, func(i, j int) bool { return out[i].PageNb < out[j].PageNb })
		if f.Limit > 0 && len(out) > f.Limit {
			out = out[:f.Limit]
		}
	}
	return out, nil
}

func (s *Store) InsertBlock(ctx context.Context, block *models.Block) error {
	if err := checkPage(block); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := getBlock(txn, block.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("block %s already exists", block.ID)
		}
		return putRecord(txn, blockKey(block.ID), block, blockIndexKeys(block))
	})
	if err != nil {
		return fmt.Errorf("failed to insert block: %w", err)
	}
	return nil
}

// InsertBlocks writes through a WriteBatch, so it does not check for
// existing ids. Callers assign fresh ids.
func (s *Store) InsertBlocks(ctx context.Context, blocks []*models.Block) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, b := range blocks {
		if err := checkPage(b); err != nil {
			return err
		}
		value, err := cbor.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to encode block: %w", err)
		}
		if err := wb.Set(blockKey(b.ID), value); err != nil {
			return fmt.Errorf("failed to insert blocks: %w", err)
		}
		for _, k := range blockIndexKeys(b) {
			if err := wb.Set(k, nil); err != nil {
				return fmt.Errorf("failed to insert blocks: %w", err)
			}
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to insert blocks: %w", err)
	}
	return nil
}

func (s *Store) UpdateBlock(ctx context.Context, id models.BlockID, itemID models.ItemID, patch models.Patch) (int, error) {
	matched := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		b, err := getBlock(txn, id)
		if err != nil || b == nil || b.ItemID != itemID {
			return err
		}
		old := blockIndexKeys(b)
		if err := b.Apply(patch); err != nil {
			return err
		}
		if err := checkPage(b); err != nil {
			return err
		}
		if err := deleteKeys(txn, old); err != nil {
			return err
		}
		matched = 1
		return putRecord(txn, blockKey(id), b, blockIndexKeys(b))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to update block: %w", err)
	}
	return matched, nil
}

func (s *Store) DeleteBlock(ctx context.Context, id models.BlockID, itemID models.ItemID) (int, error) {
	deleted := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		b, err := getBlock(txn, id)
		if err != nil || b == nil || b.ItemID != itemID {
			return err
		}
		deleted = 1
		return deleteKeys(txn, append(blockIndexKeys(b), blockKey(id)))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete block: %w", err)
	}
	return deleted, nil
}

func (s *Store) DeleteItemBlocks(ctx context.Context, itemID models.ItemID) (int, error) {
	var keys [][]byte
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		blocks, err := s.findBlocks(txn, itemID, store.BlockFilter{})
		if err != nil {
			return err
		}
		for _, b := range blocks {
			keys = append(keys, blockKey(b.ID))
			keys = append(keys, blockIndexKeys(b)...)
		}
		count = len(blocks)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list item blocks: %w", err)
	}
	if err := s.deleteBatch(keys); err != nil {
		return 0, fmt.Errorf("failed to delete item blocks: %w", err)
	}
	return count, nil
}

func (s *Store) GetSpan(ctx context.Context, id models.SpanID) (*models.Span, error) {
	var sp *models.Span
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		sp, err = getSpan(txn, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get span: %w", err)
	}
	return sp, nil
}

func (s *Store) FindSpans(ctx context.Context, blockID models.BlockID, f store.SpanFilter) ([]*models.Span, error) {
	var out []*models.Span
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = s.findSpans(txn, blockID, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find spans: %w", err)
	}
	return out, nil
}

func (s *Store) findSpans(txn *badger.Txn, blockID models.BlockID, f store.SpanFilter) ([]*models.Span, error) {
	block := blockID.String()
	var scan []byte
	switch {
	case f.HeadOnly:
		scan = prefix(prefixSpanHead + block)
	case f.TailOnly:
		scan = prefix(prefixSpanTail + block)
	case f.NextID != nil:
		scan = prefix(prefixSpanPred+block, f.NextID.String())
	default:
		scan = prefix(prefixSpanBlock + block)
	}

	var out []*models.Span
	err := iterateKeys(txn, scan, nil, func(k []byte) (bool, error) {
		u, err := lastSegment(k)
		if err != nil {
			return false, err
		}
		sp, err := getSpan(txn, models.NewSpanIDFromUUID(u))
		if err != nil {
			return false, err
		}
		if sp == nil {
			s.log.Warn().Str("key", string(k)).Msg("index entry without span record")
			return true, nil
		}
		if f.Match(sp) {
			out = append(out, sp)
		}
		return f.Limit == 0 || len(out) < f.Limit, nil
	})
	return out, err
}

func (s *Store) SpansOf(ctx context.Context, blockIDs []models.BlockID) ([]*models.Span, error) {
	var out []*models.Span
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range blockIDs {
			spans, err := s.findSpans(txn, id, store.SpanFilter{})
			if err != nil {
				return err
			}
			out = append(out, spans...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get spans: %w", err)
	}
	return out, nil
}

func (s *Store) InsertSpan(ctx context.Context, span *models.Span) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := getSpan(txn, span.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("span %s already exists", span.ID)
		}
		return putRecord(txn, spanKey(span.ID), span, spanIndexKeys(span))
	})
	if err != nil {
		return fmt.Errorf("failed to insert span: %w", err)
	}
	return nil
}

func (s *Store) InsertSpans(ctx context.Context, spans []*models.Span) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, sp := range spans {
		value, err := cbor.Marshal(sp)
		if err != nil {
			return fmt.Errorf("failed to encode span: %w", err)
		}
		if err := wb.Set(spanKey(sp.ID), value); err != nil {
			return fmt.Errorf("failed to insert spans: %w", err)
		}
		for _, k := range spanIndexKeys(sp) {
			if err := wb.Set(k, nil); err != nil {
				return fmt.Errorf("failed to insert spans: %w", err)
			}
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to insert spans: %w", err)
	}
	return nil
}

func (s *Store) UpdateSpan(ctx context.Context, id models.SpanID, blockID models.BlockID, patch models.Patch) (int, error) {
	matched := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		sp, err := getSpan(txn, id)
		if err != nil || sp == nil || sp.BlockID != blockID {
			return err
		}
		old := spanIndexKeys(sp)
		if err := sp.Apply(patch); err != nil {
			return err
		}
		if err := deleteKeys(txn, old); err != nil {
			return err
		}
		matched = 1
		return putRecord(txn, spanKey(id), sp, spanIndexKeys(sp))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to update span: %w", err)
	}
	return matched, nil
}

func (s *Store) DeleteSpan(ctx context.Context, id models.SpanID, blockID models.BlockID) (int, error) {
	deleted := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		sp, err := getSpan(txn, id)
		if err != nil || sp == nil || sp.BlockID != blockID {
			return err
		}
		deleted = 1
		return deleteKeys(txn, append(spanIndexKeys(sp), spanKey(id)))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete span: %w", err)
	}
	return deleted, nil
}

func (s *Store) DeleteBlockSpans(ctx context.Context, blockID models.BlockID) (int, error) {
	var keys [][]byte
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		spans, err := s.findSpans(txn, blockID, store.SpanFilter{})
		if err != nil {
			return err
		}
		for _, sp := range spans {
			keys = append(keys, spanKey(sp.ID))
			keys = append(keys, spanIndexKeys(sp)...)
		}
		count = len(spans)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list block spans: %w", err)
	}
	if err := s.deleteBatch(keys); err != nil {
		return 0, fmt.Errorf("failed to delete block spans: %w", err)
	}
	return count, nil
}

func (s *Store) deleteBatch(keys [][]byte) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func getBlock(txn *badger.Txn, id models.BlockID) (*models.Block, error) {
	var b models.Block
	found, err := getRecord(txn, blockKey(id), &b)
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

func getSpan(txn *badger.Txn, id models.SpanID) (*models.Span, error) {
	var sp models.Span
	found, err := getRecord(txn, spanKey(id), &sp)
	if err != nil || !found {
		return nil, err
	}
	return &sp, nil
}

func getRecord(txn *badger.Txn, k []byte, v any) (bool, error) {
	item, err := txn.Get(k)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, v)
	})
	if err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", k, err)
	}
	return true, nil
}

func putRecord(txn *badger.Txn, k []byte, v any, index [][]byte) error {
	value, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", k, err)
	}
	if err := txn.Set(k, value); err != nil {
		return err
	}
	for _, ik := range index {
		if err := txn.Set(ik, nil); err != nil {
			return err
		}
	}
	return nil
}

func deleteKeys(txn *badger.Txn, keys [][]byte) error {
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// iterateKeys calls fn for each key under scan, starting at seek if set,
// until fn returns false.
func iterateKeys(txn *badger.Txn, scan, seek []byte, fn func(k []byte) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = scan
	it := txn.NewIterator(opts)
	defer it.Close()

	if seek == nil {
		seek = scan
	}
	for it.Seek(seek); it.ValidForPrefix(scan); it.Next() {
		more, err := fn(it.Item().KeyCopy(nil))
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func checkPage(b *models.Block) error {
	if b.PageNb < 0 || int64(b.PageNb) > maxIndexedPageNb {
		return fmt.Errorf("page %d of block %s is outside the indexable range", b.PageNb, b.ID)
	}
	return nil
}
