// Package postgres implements [github.com/readalong/chainstore/pkg/store.Store]
// on PostgreSQL with GORM.
//
// Blocks and spans map to the blocks and spans tables described by the
// gorm tags on [models.Block] and [models.Span]. Compacted tri-state
// fields are nullable booleans; absent links are NULL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/readalong/chainstore/pkg/models"
	"github.com/readalong/chainstore/pkg/store"
)

var _ store.Store = (*Store)(nil)

const insertBatchSize = 500

// Store is a PostgreSQL-backed chain node store.
type Store struct {
	db *gorm.DB
}

// Open connects to the database named by dsn. A nil log discards GORM's
// own logging.
func Open(dsn string, log *zerolog.Logger) (*Store, error) {
	l := zerolog.Nop()
	if log != nil {
		l = log.With().Str("store", "postgres").Logger()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(l),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate creates or extends the blocks and spans tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&models.Block{}, &models.Span{})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) GetBlock(ctx context.Context, id models.BlockID) (*models.Block, error) {
	var block models.Block
	err := s.db.WithContext(ctx).First(&block, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	return &block, nil
}

func (s *Store) GetBlocks(ctx context.Context, ids []models.BlockID) ([]*models.Block, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}
	var blocks []*models.Block
	if err := s.db.WithContext(ctx).Where("id IN ?", keys).Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("failed to get blocks: %w", err)
	}
	return blocks, nil
}

func (s *Store) FindBlocks(ctx context.Context, itemID models.ItemID, f store.BlockFilter) ([]*models.Block, error) {
	q := s.db.WithContext(ctx).Where("item_id = ?", itemID)
	if f.PageGTE != nil {
		q = q.Where("page_nb >= ?", *f.PageGTE)
	}
	if f.PageLT != nil {
		q = q.Where("page_nb < ?", *f.PageLT)
	}
	if f.PageLTE != nil {
		q = q.Where("page_nb <= ?", *f.PageLTE)
	}
	if f.HeadOnly {
		q = q.Where("is_head = ?", true)
	}
	if f.TailOnly {
		q = q.Where("next_id IS NULL")
	}
	if f.NextID != nil {
		q = q.Where("next_id = ?", *f.NextID)
	}
	if f.SortByPage {
		q = q.Order("page_nb")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var blocks []*models.Block
	if err := q.Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("failed to find blocks: %w", err)
	}
	return blocks, nil
}

func (s *Store) InsertBlock(ctx context.Context, block *models.Block) error {
	return s.db.WithContext(ctx).Create(block).Error
}

func (s *Store) InsertBlocks(ctx context.Context, blocks []*models.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(blocks, insertBatchSize).Error
}

func (s *Store) UpdateBlock(ctx context.Context, id models.BlockID, itemID models.ItemID, patch models.Patch) (int, error) {
	canon, err := models.CanonicalBlockPatch(patch)
	if err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Model(&models.Block{}).
		Where("id = ? AND item_id = ?", id, itemID).
		Updates(map[string]any(canon))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update block: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *Store) DeleteBlock(ctx context.Context, id models.BlockID, itemID models.ItemID) (int, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND item_id = ?", id, itemID).Delete(&models.Block{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete block: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *Store) DeleteItemBlocks(ctx context.Context, itemID models.ItemID) (int, error) {
	res := s.db.WithContext(ctx).Where("item_id = ?", itemID).Delete(&models.Block{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete item blocks: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *Store) GetSpan(ctx context.Context, id models.SpanID) (*models.Span, error) {
	var span models.Span
	err := s.db.WithContext(ctx).First(&span, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get span: %w", err)
	}
	return &span, nil
}

func (s *Store) FindSpans(ctx context.Context, blockID models.BlockID, f store.SpanFilter) ([]*models.Span, error) {
	q := s.db.WithContext(ctx).Where("block_id = ?", blockID)
	if f.HeadOnly {
		q = q.Where("is_head = ?", true)
	}
	if f.TailOnly {
		q = q.Where("next_id IS NULL")
	}
	if f.NextID != nil {
		q = q.Where("next_id = ?", *f.NextID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var spans []*models.Span
	if err := q.Find(&spans).Error; err != nil {
		return nil, fmt.Errorf("failed to find spans: %w", err)
	}
	return spans, nil
}

func (s *Store) SpansOf(ctx context.Context, blockIDs []models.BlockID) ([]*models.Span, error) {
	if len(blockIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(blockIDs))
	for _, id := range blockIDs {
		keys = append(keys, id.String())
	}
	var spans []*models.Span
	if err := s.db.WithContext(ctx).Where("block_id IN ?", keys).Find(&spans).Error; err != nil {
		return nil, fmt.Errorf("failed to get spans: %w", err)
	}
	return spans, nil
}

func (s *Store) InsertSpan(ctx context.Context, span *models.Span) error {
	return s.db.WithContext(ctx).Create(span).Error
}

func (s *Store) InsertSpans(ctx context.Context, spans []*models.Span) error {
	if len(spans) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(spans, insertBatchSize).Error
}

func (s *Store) UpdateSpan(ctx context.Context, id models.SpanID, blockID models.BlockID, patch models.Patch) (int, error) {
	canon, err := models.CanonicalSpanPatch(patch)
	if err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Model(&models.Span{}).
		Where("id = ? AND block_id = ?", id, blockID).
		Updates(map[string]any(canon))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update span: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *Store) DeleteSpan(ctx context.Context, id models.SpanID, blockID models.BlockID) (int, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND block_id = ?", id, blockID).Delete(&models.Span{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete span: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *Store) DeleteBlockSpans(ctx context.Context, blockID models.BlockID) (int, error) {
	res := s.db.WithContext(ctx).Where("block_id = ?", blockID).Delete(&models.Span{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete block spans: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
