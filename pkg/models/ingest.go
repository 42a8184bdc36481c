package models

// PageIn is one page of ingested content, as supplied by the parsing
// pipeline. Blocks and spans appear in reading order.
type PageIn struct {
	Page   int       `json:"page" yaml:"page"`
	Blocks []BlockIn `json:"blocks" yaml:"blocks"`
}

// BlockIn is the payload of a block to insert. Link fields are assigned
// by the chain operations.
type BlockIn struct {
	SizeClass SizeClass `json:"size_class,omitempty" yaml:"size_class,omitempty"`
	Read      Tri       `json:"read,omitempty" yaml:"read,omitempty"`
	Spans     []SpanIn  `json:"spans" yaml:"spans"`
}

// SpanIn is the payload of a span to insert. Pause is in milliseconds.
type SpanIn struct {
	Type  SpanType `json:"type" yaml:"type"`
	Text  string   `json:"text,omitempty" yaml:"text,omitempty"`
	Pause *int     `json:"pause,omitempty" yaml:"pause,omitempty"`
	Read  Tri      `json:"read,omitempty" yaml:"read,omitempty"`
}

// NewBlock builds the block record for b without link fields.
func (b BlockIn) NewBlock(id BlockID, item ItemID, page int) Block {
	return Block{
		ID:        id,
		ItemID:    item,
		PageNb:    page,
		Read:      b.Read.Compact(DefaultRead),
		SizeClass: b.SizeClass,
	}
}

// NewSpan builds the span record for s without link fields. A span of an
// unread block is itself unread.
func (s SpanIn) NewSpan(id SpanID, block BlockID, blockRead Tri) Span {
	read := TriUnset
	if !blockRead.Or(DefaultRead) || !s.Read.Or(DefaultRead) {
		read = TriFalse
	}
	span := Span{
		ID:      id,
		BlockID: block,
		Type:    s.Type,
		Read:    read,
	}
	if s.Type == SpanPause {
		span.Pause = s.Pause
	} else {
		span.Text = s.Text
	}
	return span
}
