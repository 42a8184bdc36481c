package models

import "fmt"

// SpanType tells a text span from an inline pause.
type SpanType int

const (
	SpanText SpanType = iota
	SpanPause
)

func (t SpanType) String() string {
	switch t {
	case SpanText:
		return "text"
	case SpanPause:
		return "pause"
	default:
		return fmt.Sprintf("SpanType(%d)", int(t))
	}
}

// SizeClass is the font size of a block relative to the body text.
type SizeClass string

const (
	SizeSmall SizeClass = "small"
	SizeBody  SizeClass = "body"
	SizeH3    SizeClass = "h3"
	SizeH2    SizeClass = "h2"
	SizeH1    SizeClass = "h1"
)

func (c SizeClass) Valid() bool {
	switch c {
	case "", SizeSmall, SizeBody, SizeH3, SizeH2, SizeH1:
		return true
	}
	return false
}

// AudioStatus tracks synthesis of a block's audio. Empty means none was
// requested.
type AudioStatus string

const (
	AudioInProgress AudioStatus = "in progress"
	AudioCompleted  AudioStatus = "completed"
	AudioFailed     AudioStatus = "failed"
)

func (s AudioStatus) Valid() bool {
	switch s {
	case "", AudioInProgress, AudioCompleted, AudioFailed:
		return true
	}
	return false
}

// Persisted field names. Patches are keyed by these.
const (
	FieldID          = "id"
	FieldItemID      = "item_id"
	FieldBlockID     = "block_id"
	FieldNextID      = "next_id"
	FieldIsHead      = "is_head"
	FieldPageNb      = "page_nb"
	FieldRead        = "read"
	FieldSizeClass   = "size_class"
	FieldAudioStatus = "audio_status"
	FieldAudioPath   = "audio_path"
	FieldType        = "type"
	FieldText        = "text"
	FieldPause       = "pause"
)

// Default values of the tri-state fields.
const (
	DefaultIsHead = false
	DefaultRead   = true
)
