package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Tri is a three-valued flag. Unset means "the field's default", which
// differs per field: IsHead defaults to false and Read defaults to true.
// Writers store the compacted form so a field equal to its default is
// never persisted.
type Tri uint8

const (
	TriUnset Tri = iota
	TriTrue
	TriFalse
)

// TriOf returns the explicit flag for b.
func TriOf(b bool) Tri {
	if b {
		return TriTrue
	}
	return TriFalse
}

// Or resolves t against the field default.
func (t Tri) Or(def bool) bool {
	switch t {
	case TriTrue:
		return true
	case TriFalse:
		return false
	default:
		return def
	}
}

// Compact returns TriUnset when t resolves to def.
func (t Tri) Compact(def bool) Tri {
	if t.Or(def) == def {
		return TriUnset
	}
	return t
}

func (t Tri) IsSet() bool { return t != TriUnset }

func (t Tri) String() string {
	switch t {
	case TriTrue:
		return "true"
	case TriFalse:
		return "false"
	default:
		return "unset"
	}
}

func (t Tri) MarshalJSON() ([]byte, error) {
	switch t {
	case TriTrue:
		return []byte("true"), nil
	case TriFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (t *Tri) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("invalid flag: %w", err)
	}
	if b == nil {
		*t = TriUnset
		return nil
	}
	*t = TriOf(*b)
	return nil
}

func (t Tri) MarshalCBOR() ([]byte, error) {
	switch t {
	case TriTrue:
		return cbor.Marshal(true)
	case TriFalse:
		return cbor.Marshal(false)
	default:
		return cbor.Marshal(nil)
	}
}

func (t *Tri) UnmarshalCBOR(data []byte) error {
	var b *bool
	if err := cbor.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("invalid flag: %w", err)
	}
	if b == nil {
		*t = TriUnset
		return nil
	}
	*t = TriOf(*b)
	return nil
}

func (t Tri) Value() (driver.Value, error) {
	switch t {
	case TriTrue:
		return true, nil
	case TriFalse:
		return false, nil
	default:
		return nil, nil
	}
}

func (t *Tri) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*t = TriUnset
	case bool:
		*t = TriOf(v)
	case int64:
		*t = TriOf(v != 0)
	default:
		return fmt.Errorf("cannot scan type %T into Tri", value)
	}
	return nil
}

func (Tri) GormDataType() string { return "boolean" }

func (t Tri) MarshalYAML() (any, error) {
	if t == TriUnset {
		return nil, nil
	}
	return t.Or(false), nil
}

func (t *Tri) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!null" {
		*t = TriUnset
		return nil
	}
	var b bool
	if err := value.Decode(&b); err != nil {
		return fmt.Errorf("invalid flag: %w", err)
	}
	*t = TriOf(b)
	return nil
}
