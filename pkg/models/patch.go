package models

import (
	"fmt"

	"github.com/readalong/chainstore/pkg/chain"
)

// Patch is a partial update keyed by persisted field name. A nil value
// clears the field.
type Patch map[string]any

// Keys returns the patch keys.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	return keys
}

// Fields a caller may patch directly. Link fields are written only by
// chain operations.
var (
	blockPayloadFields = map[string]bool{
		FieldRead:        true,
		FieldSizeClass:   true,
		FieldAudioStatus: true,
		FieldAudioPath:   true,
	}
	spanPayloadFields = map[string]bool{
		FieldType:  true,
		FieldText:  true,
		FieldPause: true,
		FieldRead:  true,
	}
	linkFields = map[string]bool{
		FieldID:      true,
		FieldItemID:  true,
		FieldBlockID: true,
		FieldNextID:  true,
		FieldIsHead:  true,
		FieldPageNb:  true,
	}
)

// NormalizeBlockPatch validates a caller-supplied block patch and converts
// its values to the canonical types the stores expect.
func NormalizeBlockPatch(p Patch) (Patch, error) {
	if len(p) == 0 {
		return nil, &chain.ValidationError{Reason: "empty patch"}
	}
	out := make(Patch, len(p))
	for k, v := range p {
		if !blockPayloadFields[k] {
			return nil, rejectField(k)
		}
		canon, err := canonicalBlockValue(k, v)
		if err != nil {
			return nil, err
		}
		out[k] = canon
	}
	return out, nil
}

// NormalizeSpanPatch is NormalizeBlockPatch for spans. A type change must
// carry the field the new type needs.
func NormalizeSpanPatch(p Patch) (Patch, error) {
	if len(p) == 0 {
		return nil, &chain.ValidationError{Reason: "empty patch"}
	}
	out := make(Patch, len(p))
	for k, v := range p {
		if !spanPayloadFields[k] {
			return nil, rejectField(k)
		}
		canon, err := canonicalSpanValue(k, v)
		if err != nil {
			return nil, err
		}
		out[k] = canon
	}
	if err := checkSpanPatch(out); err != nil {
		return nil, err
	}
	return out, nil
}

func checkSpanPatch(p Patch) error {
	pause, _ := p[FieldPause].(*int)
	if pause != nil && *pause < 0 {
		return &chain.ValidationError{Field: FieldPause, Reason: "pause must not be negative"}
	}
	t, ok := p[FieldType].(SpanType)
	if !ok {
		return nil
	}
	switch t {
	case SpanText:
		if _, ok := p[FieldText]; !ok {
			return &chain.ValidationError{Field: FieldText, Reason: "changing type to text needs text"}
		}
	case SpanPause:
		if pause == nil {
			return &chain.ValidationError{Field: FieldPause, Reason: "changing type to pause needs a pause"}
		}
	}
	return nil
}

// CanonicalBlockPatch converts every value of p, link fields included, to
// its canonical type. Stores call it before encoding a patch for their
// backend.
func CanonicalBlockPatch(p Patch) (Patch, error) {
	return canonical(p, canonicalBlockValue)
}

// CanonicalSpanPatch is CanonicalBlockPatch for spans.
func CanonicalSpanPatch(p Patch) (Patch, error) {
	return canonical(p, canonicalSpanValue)
}

func canonical(p Patch, conv func(k string, v any) (any, error)) (Patch, error) {
	out := make(Patch, len(p))
	for k, v := range p {
		canon, err := conv(k, v)
		if err != nil {
			return nil, err
		}
		out[k] = canon
	}
	return out, nil
}

func rejectField(k string) error {
	if linkFields[k] {
		return &chain.ValidationError{Field: k, Reason: "field is managed by chain operations"}
	}
	return &chain.ValidationError{Field: k, Reason: "unknown field"}
}

func canonicalBlockValue(k string, v any) (any, error) {
	switch k {
	case FieldNextID:
		return asBlockID(k, v)
	case FieldIsHead:
		return asTri(k, v, DefaultIsHead)
	case FieldRead:
		return asTri(k, v, DefaultRead)
	case FieldPageNb:
		return asInt(k, v)
	case FieldSizeClass:
		s, err := asString(k, v)
		if err != nil {
			return nil, err
		}
		if !SizeClass(s).Valid() {
			return nil, &chain.ValidationError{Field: k, Reason: fmt.Sprintf("invalid size class %q", s)}
		}
		return SizeClass(s), nil
	case FieldAudioStatus:
		s, err := asString(k, v)
		if err != nil {
			return nil, err
		}
		if !AudioStatus(s).Valid() {
			return nil, &chain.ValidationError{Field: k, Reason: fmt.Sprintf("invalid audio status %q", s)}
		}
		return AudioStatus(s), nil
	case FieldAudioPath:
		return asString(k, v)
	}
	return nil, rejectField(k)
}

func canonicalSpanValue(k string, v any) (any, error) {
	switch k {
	case FieldNextID:
		return asSpanID(k, v)
	case FieldIsHead:
		return asTri(k, v, DefaultIsHead)
	case FieldRead:
		return asTri(k, v, DefaultRead)
	case FieldType:
		n, err := asInt(k, v)
		if err != nil {
			return nil, err
		}
		t := SpanType(n)
		if t != SpanText && t != SpanPause {
			return nil, &chain.ValidationError{Field: k, Reason: fmt.Sprintf("invalid span type %d", n)}
		}
		return t, nil
	case FieldText:
		return asString(k, v)
	case FieldPause:
		switch x := v.(type) {
		case nil:
			return nil, nil
		case *int:
			if x == nil {
				return nil, nil
			}
			n := *x
			return &n, nil
		}
		n, err := asInt(k, v)
		if err != nil {
			return nil, err
		}
		return &n, nil
	}
	return nil, rejectField(k)
}

func asTri(k string, v any, def bool) (Tri, error) {
	switch x := v.(type) {
	case nil:
		return TriUnset, nil
	case Tri:
		return x.Compact(def), nil
	case bool:
		return TriOf(x).Compact(def), nil
	}
	return TriUnset, typeError(k, v)
}

func asInt(k string, v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case SpanType:
		return int(x), nil
	case float64:
		if x != float64(int(x)) {
			return 0, typeError(k, v)
		}
		return int(x), nil
	}
	return 0, typeError(k, v)
}

func asString(k string, v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case SizeClass:
		return string(x), nil
	case AudioStatus:
		return string(x), nil
	}
	return "", typeError(k, v)
}

func asBlockID(k string, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case BlockID:
		return x, nil
	case *BlockID:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	case string:
		id, err := ParseBlockID(x)
		if err != nil {
			return nil, &chain.ValidationError{Field: k, Reason: err.Error()}
		}
		return id, nil
	}
	return nil, typeError(k, v)
}

func asSpanID(k string, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case SpanID:
		return x, nil
	case *SpanID:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	case string:
		id, err := ParseSpanID(x)
		if err != nil {
			return nil, &chain.ValidationError{Field: k, Reason: err.Error()}
		}
		return id, nil
	}
	return nil, typeError(k, v)
}

func typeError(k string, v any) error {
	return &chain.ValidationError{Field: k, Reason: fmt.Sprintf("unsupported value type %T", v)}
}
