package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Table names double as the record id table in SurrealDB and the
// table name in relational backends.
const (
	TableItems  = "items"
	TableBlocks = "blocks"
	TableSpans  = "spans"
)

// recordIDTag is the CBOR tag SurrealDB uses for record ids.
const recordIDTag = 8

// ItemID identifies the document that owns a block chain.
type ItemID struct {
	uuid uuid.UUID
}

func NewItemID() ItemID {
	return ItemID{uuid: uuid.New()}
}

func NewItemIDFromUUID(id uuid.UUID) ItemID {
	return ItemID{uuid: id}
}

func ParseItemID(s string) (ItemID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ItemID{}, fmt.Errorf("invalid item ID: %w", err)
	}
	return ItemID{uuid: id}, nil
}

func (i ItemID) UUID() uuid.UUID { return i.uuid }
func (i ItemID) String() string  { return i.uuid.String() }
func (i ItemID) IsZero() bool    { return i.uuid == uuid.Nil }

func (i ItemID) RecordID() surrealdb_models.RecordID {
	return recordID(TableItems, i.uuid)
}

func (i ItemID) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.uuid.String())
}

func (i *ItemID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &i.uuid)
}

func (i ItemID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(TableItems, i.uuid)
}

func (i *ItemID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, TableItems, &i.uuid)
}

func (i ItemID) Value() (driver.Value, error) {
	if i.IsZero() {
		return nil, nil
	}
	return i.uuid.String(), nil
}

func (i *ItemID) Scan(value any) error {
	return scanUUID(value, &i.uuid)
}

func (ItemID) GormDataType() string { return "uuid" }

// BlockID identifies a block. Blocks are chained per item.
type BlockID struct {
	uuid uuid.UUID
}

func NewBlockID() BlockID {
	return BlockID{uuid: uuid.New()}
}

func NewBlockIDFromUUID(id uuid.UUID) BlockID {
	return BlockID{uuid: id}
}

func ParseBlockID(s string) (BlockID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return BlockID{}, fmt.Errorf("invalid block ID: %w", err)
	}
	return BlockID{uuid: id}, nil
}

func (b BlockID) UUID() uuid.UUID { return b.uuid }
func (b BlockID) String() string  { return b.uuid.String() }
func (b BlockID) IsZero() bool    { return b.uuid == uuid.Nil }

// Ptr returns a pointer to a copy of b.
func (b BlockID) Ptr() *BlockID { return &b }

func (b BlockID) RecordID() surrealdb_models.RecordID {
	return recordID(TableBlocks, b.uuid)
}

func (b BlockID) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.uuid.String())
}

func (b *BlockID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &b.uuid)
}

func (b BlockID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(TableBlocks, b.uuid)
}

func (b *BlockID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, TableBlocks, &b.uuid)
}

func (b BlockID) Value() (driver.Value, error) {
	if b.IsZero() {
		return nil, nil
	}
	return b.uuid.String(), nil
}

func (b *BlockID) Scan(value any) error {
	return scanUUID(value, &b.uuid)
}

func (BlockID) GormDataType() string { return "uuid" }

// SpanID identifies a span. Spans are chained per block.
type SpanID struct {
	uuid uuid.UUID
}

func NewSpanID() SpanID {
	return SpanID{uuid: uuid.New()}
}

func NewSpanIDFromUUID(id uuid.UUID) SpanID {
	return SpanID{uuid: id}
}

func ParseSpanID(s string) (SpanID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return SpanID{}, fmt.Errorf("invalid span ID: %w", err)
	}
	return SpanID{uuid: id}, nil
}

func (s SpanID) UUID() uuid.UUID { return s.uuid }
func (s SpanID) String() string  { return s.uuid.String() }
func (s SpanID) IsZero() bool    { return s.uuid == uuid.Nil }

// Ptr returns a pointer to a copy of s.
func (s SpanID) Ptr() *SpanID { return &s }

func (s SpanID) RecordID() surrealdb_models.RecordID {
	return recordID(TableSpans, s.uuid)
}

func (s SpanID) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.uuid.String())
}

func (s *SpanID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &s.uuid)
}

func (s SpanID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(TableSpans, s.uuid)
}

func (s *SpanID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, TableSpans, &s.uuid)
}

func (s SpanID) Value() (driver.Value, error) {
	if s.IsZero() {
		return nil, nil
	}
	return s.uuid.String(), nil
}

func (s *SpanID) Scan(value any) error {
	return scanUUID(value, &s.uuid)
}

func (SpanID) GormDataType() string { return "uuid" }

func recordID(table string, id uuid.UUID) surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: table,
		ID:    id.String(),
	}
}

func unmarshalJSONID(data []byte, target *uuid.UUID) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*target = id
	return nil
}

func scanUUID(value any, target *uuid.UUID) error {
	if value == nil {
		*target = uuid.Nil
		return nil
	}

	switch v := value.(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*target = id
	case []byte:
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return err
		}
		*target = id
	default:
		return fmt.Errorf("cannot scan type %T into UUID", value)
	}
	return nil
}

func marshalCBORID(table string, id uuid.UUID) ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  recordIDTag,
		Content: []any{table, id.String()},
	})
}

// unmarshalCBORID decodes a record id encoded as tag 8 over [table, id].
func unmarshalCBORID(data []byte, expectedTable string, target *uuid.UUID) error {
	if len(data) == 0 {
		return fmt.Errorf("empty CBOR data")
	}

	if majorType := data[0] >> 5; majorType != 6 {
		return fmt.Errorf("expected CBOR tag for RecordID, got major type %d", majorType)
	}

	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR tag: %w", err)
	}
	if tag.Number != recordIDTag {
		return fmt.Errorf("expected RecordID tag (%d), got %d", recordIDTag, tag.Number)
	}

	arr, ok := tag.Content.([]any)
	if !ok || len(arr) != 2 {
		return fmt.Errorf("invalid RecordID format: expected [table, id] array")
	}
	table, ok := arr[0].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: table name must be string")
	}
	if table != expectedTable {
		return fmt.Errorf("expected table %s, got %s", expectedTable, table)
	}
	idStr, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: ID must be string")
	}

	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("invalid UUID in RecordID: %w", err)
	}
	*target = parsed
	return nil
}
