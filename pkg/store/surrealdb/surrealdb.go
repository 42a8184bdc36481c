// Package surrealdb implements [github.com/readalong/chainstore/pkg/store.Store]
// on SurrealDB using parameterized SurrealQL.
//
// Records carry typed ids that encode as SurrealDB record ids (blocks:⟨uuid⟩,
// items:⟨uuid⟩, ...), so foreign keys such as item_id and next_id are real
// record links and can be compared directly against record id parameters.
// The connection uses the surrealcbor codec for that reason; the default
// codec does not honour the ids' MarshalCBOR methods.
//
// Requires SurrealDB 2.x: Migrate uses DEFINE INDEX IF NOT EXISTS and
// updates never create records.
package surrealdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/readalong/chainstore/pkg/models"
	"github.com/readalong/chainstore/pkg/store"
)

var _ store.Store = (*Store)(nil)

// Options describes how to reach the database.
type Options struct {
	URL       string
	Namespace string
	Database  string
	// Username and Password sign in as a root or namespace user. Both
	// empty skips sign-in.
	Username string
	Password string
	Logger   *zerolog.Logger
}

// Store is a SurrealDB-backed chain node store.
type Store struct {
	db  *surrealdb.DB
	log zerolog.Logger
}

// Open connects, signs in and selects the namespace and database.
func Open(ctx context.Context, opts Options) (*Store, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme %q: want ws or wss", u.Scheme)
	}

	db, err := surrealdb.FromConnection(ctx, gorillaws.New(conf))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if opts.Username != "" && opts.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": opts.Username,
			"pass": opts.Password,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, opts.Namespace, opts.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("store", "surrealdb").Str("ns", opts.Namespace).Str("db", opts.Database).Logger()
	}
	log.Debug().Str("url", u.Redacted()).Msg("connected")

	return &Store{db: db, log: log}, nil
}

const migration = `
DEFINE INDEX IF NOT EXISTS blocks_item_page ON blocks FIELDS item_id, page_nb;
DEFINE INDEX IF NOT EXISTS blocks_next ON blocks FIELDS next_id;
DEFINE INDEX IF NOT EXISTS spans_block ON spans FIELDS block_id;
DEFINE INDEX IF NOT EXISTS spans_next ON spans FIELDS next_id;
`

// Migrate defines the lookup indexes. Tables are created on first write.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, s.db, migration, nil); err != nil {
		return fmt.Errorf("failed to define indexes: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

// handleNotFound reports errors that only mean the record is missing as nil.
func handleNotFound(err error) error {
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "Expected a single or multiple results but got 0") ||
			strings.Contains(msg, "cannot unmarshal array into Go value") {
			return nil
		}
	}
	return err
}

// rows returns the first statement's result of a Query call.
func rows[T any](res *[]surrealdb.QueryResult[[]T]) []T {
	if res == nil || len(*res) == 0 {
		return nil
	}
	return (*res)[0].Result
}

// matched is the shape of RETURN id / RETURN BEFORE rows when only the
// count matters.
type matched struct {
	ID any `json:"id"`
}

func (s *Store) count(ctx context.Context, sql string, vars map[string]any) (int, error) {
	res, err := surrealdb.Query[[]matched](ctx, s.db, sql, vars)
	if err != nil {
		return 0, err
	}
	return len(rows(res)), nil
}

func (s *Store) GetBlock(ctx context.Context, id models.BlockID) (*models.Block, error) {
	b, err := surrealdb.Select[models.Block](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	if b != nil && b.ID.IsZero() {
		return nil, nil
	}
	return b, nil
}

func (s *Store) GetBlocks(ctx context.Context, ids []models.BlockID) ([]*models.Block, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rids := make([]any, 0, len(ids))
	for _, id := range ids {
		rids = append(rids, id.RecordID())
	}
	res, err := surrealdb.Query[[]*models.Block](ctx, s.db, "SELECT * FROM $ids", map[string]any{"ids": rids})
	if err != nil {
		return nil, fmt.Errorf("failed to get blocks: %w", err)
	}
	return rows(res), nil
}

func (s *Store) FindBlocks(ctx context.Context, itemID models.ItemID, f store.BlockFilter) ([]*models.Block, error) {
	where := []string{"item_id = $item"}
	vars := map[string]any{"item": itemID.RecordID()}
	if f.PageGTE != nil {
		where = append(where, "page_nb >= $page_gte")
		vars["page_gte"] = *f.PageGTE
	}
	if f.PageLT != nil {
		where = append(where, "page_nb < $page_lt")
		vars["page_lt"] = *f.PageLT
	}
	if f.PageLTE != nil {
		where = append(where, "page_nb <= $page_lte")
		vars["page_lte"] = *f.PageLTE
	}
	where = append(where, linkConditions(f.HeadOnly, f.TailOnly, f.NextID != nil)...)
	if f.NextID != nil {
		vars["next"] = f.NextID.RecordID()
	}

	sql := "SELECT * FROM blocks WHERE " + strings.Join(where, " AND ")
	if f.SortByPage {
		sql += " ORDER BY page_nb ASC"
	}
	if f.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	res, err := surrealdb.Query[[]*models.Block](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to find blocks: %w", err)
	}
	return rows(res), nil
}

// linkConditions are the WHERE clauses shared by block and span lookups.
// A compacted is_head or next_id may be absent (NONE) or NULL.
func linkConditions(head, tail, next bool) []string {
	var where []string
	if head {
		where = append(where, "is_head = true")
	}
	if tail {
		where = append(where, "(next_id = NONE OR next_id = NULL)")
	}
	if next {
		where = append(where, "next_id = $next")
	}
	return where
}

func (s *Store) InsertBlock(ctx context.Context, block *models.Block) error {
	if _, err := surrealdb.Create[models.Block](ctx, s.db, models.TableBlocks, block); err != nil {
		return fmt.Errorf("failed to create block: %w", err)
	}
	return nil
}

func (s *Store) InsertBlocks(ctx context.Context, blocks []*models.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	if _, err := surrealdb.Query[any](ctx, s.db, "INSERT INTO blocks $blocks", map[string]any{"blocks": blocks}); err != nil {
		return fmt.Errorf("failed to insert blocks: %w", err)
	}
	return nil
}

func (s *Store) UpdateBlock(ctx context.Context, id models.BlockID, itemID models.ItemID, patch models.Patch) (int, error) {
	canon, err := models.CanonicalBlockPatch(patch)
	if err != nil {
		return 0, err
	}
	n, err := s.count(ctx, "UPDATE blocks MERGE $patch WHERE id = $id AND item_id = $item RETURN id", map[string]any{
		"patch": map[string]any(canon),
		"id":    id.RecordID(),
		"item":  itemID.RecordID(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to update block: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteBlock(ctx context.Context, id models.BlockID, itemID models.ItemID) (int, error) {
	n, err := s.count(ctx, "DELETE blocks WHERE id = $id AND item_id = $item RETURN BEFORE", map[string]any{
		"id":   id.RecordID(),
		"item": itemID.RecordID(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete block: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteItemBlocks(ctx context.Context, itemID models.ItemID) (int, error) {
	n, err := s.count(ctx, "DELETE blocks WHERE item_id = $item RETURN BEFORE", map[string]any{
		"item": itemID.RecordID(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete item blocks: %w", err)
	}
	return n, nil
}

func (s *Store) GetSpan(ctx context.Context, id models.SpanID) (*models.Span, error) {
	sp, err := surrealdb.Select[models.Span](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get span: %w", err)
	}
	if sp != nil && sp.ID.IsZero() {
		return nil, nil
	}
	return sp, nil
}

func (s *Store) FindSpans(ctx context.Context, blockID models.BlockID, f store.SpanFilter) ([]*models.Span, error) {
	where := append([]string{"block_id = $block"}, linkConditions(f.HeadOnly, f.TailOnly, f.NextID != nil)...)
	vars := map[string]any{"block": blockID.RecordID()}
	if f.NextID != nil {
		vars["next"] = f.NextID.RecordID()
	}

	sql := "SELECT * FROM spans WHERE " + strings.Join(where, " AND ")
	if f.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	res, err := surrealdb.Query[[]*models.Span](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to find spans: %w", err)
	}
	return rows(res), nil
}

func (s *Store) SpansOf(ctx context.Context, blockIDs []models.BlockID) ([]*models.Span, error) {
	if len(blockIDs) == 0 {
		return nil, nil
	}
	rids := make([]any, 0, len(blockIDs))
	for _, id := range blockIDs {
		rids = append(rids, id.RecordID())
	}
	res, err := surrealdb.Query[[]*models.Span](ctx, s.db, "SELECT * FROM spans WHERE block_id IN $blocks", map[string]any{"blocks": rids})
	if err != nil {
		return nil, fmt.Errorf("failed to get spans: %w", err)
	}
	return rows(res), nil
}

func (s *Store) InsertSpan(ctx context.Context, span *models.Span) error {
	if _, err := surrealdb.Create[models.Span](ctx, s.db, models.TableSpans, span); err != nil {
		return fmt.Errorf("failed to create span: %w", err)
	}
	return nil
}

func (s *Store) InsertSpans(ctx context.Context, spans []*models.Span) error {
	if len(spans) == 0 {
		return nil
	}
	if _, err := surrealdb.Query[any](ctx, s.db, "INSERT INTO spans $spans", map[string]any{"spans": spans}); err != nil {
		return fmt.Errorf("failed to insert spans: %w", err)
	}
	return nil
}

func (s *Store) UpdateSpan(ctx context.Context, id models.SpanID, blockID models.BlockID, patch models.Patch) (int, error) {
	canon, err := models.CanonicalSpanPatch(patch)
	if err != nil {
		return 0, err
	}
	n, err := s.count(ctx, "UPDATE spans MERGE $patch WHERE id = $id AND block_id = $block RETURN id", map[string]any{
		"patch": map[string]any(canon),
		"id":    id.RecordID(),
		"block": blockID.RecordID(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to update span: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteSpan(ctx context.Context, id models.SpanID, blockID models.BlockID) (int, error) {
	n, err := s.count(ctx, "DELETE spans WHERE id = $id AND block_id = $block RETURN BEFORE", map[string]any{
		"id":    id.RecordID(),
		"block": blockID.RecordID(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete span: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteBlockSpans(ctx context.Context, blockID models.BlockID) (int, error) {
	n, err := s.count(ctx, "DELETE spans WHERE block_id = $block RETURN BEFORE", map[string]any{
		"block": blockID.RecordID(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete block spans: %w", err)
	}
	return n, nil
}
