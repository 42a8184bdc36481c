package models

import (
	"fmt"

	"github.com/readalong/chainstore/pkg/chain"
)

// Span is a sentence or pause inside a block. Spans of a block form one
// chain ordered by NextID.
type Span struct {
	ID      SpanID   `gorm:"type:uuid;primaryKey" json:"id"`
	BlockID BlockID  `gorm:"type:uuid;not null;index" json:"block_id"`
	NextID  *SpanID  `gorm:"type:uuid;index" json:"next_id,omitempty"`
	IsHead  Tri      `gorm:"type:boolean" json:"is_head,omitempty"`
	Type    SpanType `gorm:"not null;default:0" json:"type"`
	Text    string   `json:"text,omitempty"`
	Pause   *int     `json:"pause,omitempty"`
	Read    Tri      `gorm:"type:boolean" json:"read,omitempty"`
}

func (Span) TableName() string { return TableSpans }

func (s Span) Key() SpanID { return s.ID }

func (s Span) Next() (SpanID, bool) {
	if s.NextID == nil {
		return SpanID{}, false
	}
	return *s.NextID, true
}

func (s Span) Head() bool { return s.IsHead.Or(DefaultIsHead) }

// Relink returns a copy of s with new link fields.
func (s Span) Relink(next *SpanID, head bool) Span {
	if next != nil {
		n := *next
		s.NextID = &n
	} else {
		s.NextID = nil
	}
	s.IsHead = TriOf(head).Compact(DefaultIsHead)
	return s
}

func (s Span) IsRead() bool { return s.Read.Or(DefaultRead) }

// Validate checks that the payload fits the span type.
func (s Span) Validate() error {
	switch s.Type {
	case SpanText:
		return nil
	case SpanPause:
		if s.Pause == nil || *s.Pause < 0 {
			return &chain.ValidationError{Field: FieldPause, Reason: "pause needs a non-negative duration"}
		}
		return nil
	}
	return &chain.ValidationError{Field: FieldType, Reason: fmt.Sprintf("invalid span type %d", s.Type)}
}

// Apply sets the patched fields on s.
func (s *Span) Apply(p Patch) error {
	for k, v := range p {
		canon, err := canonicalSpanValue(k, v)
		if err != nil {
			return err
		}
		switch k {
		case FieldNextID:
			if id, ok := canon.(SpanID); ok {
				s.NextID = &id
			} else {
				s.NextID = nil
			}
		case FieldIsHead:
			s.IsHead = canon.(Tri)
		case FieldRead:
			s.Read = canon.(Tri)
		case FieldType:
			s.Type = canon.(SpanType)
		case FieldText:
			s.Text = canon.(string)
		case FieldPause:
			if n, ok := canon.(*int); ok {
				s.Pause = n
			} else {
				s.Pause = nil
			}
		}
	}
	return nil
}
