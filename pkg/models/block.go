package models

// Block is a paragraph-level node. Blocks of an item form one chain
// ordered by NextID; PageNb is a non-authoritative hint that is
// non-decreasing along a well-formed chain.
type Block struct {
	ID          BlockID     `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID      ItemID      `gorm:"type:uuid;not null;index:idx_blocks_item_page,priority:1" json:"item_id"`
	NextID      *BlockID    `gorm:"type:uuid;index" json:"next_id,omitempty"`
	PageNb      int         `gorm:"not null;index:idx_blocks_item_page,priority:2" json:"page_nb"`
	IsHead      Tri         `gorm:"type:boolean" json:"is_head,omitempty"`
	Read        Tri         `gorm:"type:boolean" json:"read,omitempty"`
	SizeClass   SizeClass   `json:"size_class,omitempty"`
	AudioStatus AudioStatus `json:"audio_status,omitempty"`
	AudioPath   string      `json:"audio_path,omitempty"`
}

func (Block) TableName() string { return TableBlocks }

func (b Block) Key() BlockID { return b.ID }

func (b Block) Next() (BlockID, bool) {
	if b.NextID == nil {
		return BlockID{}, false
	}
	return *b.NextID, true
}

func (b Block) Head() bool { return b.IsHead.Or(DefaultIsHead) }

func (b Block) Page() int { return b.PageNb }

// Relink returns a copy of b with new link fields.
func (b Block) Relink(next *BlockID, head bool) Block {
	if next != nil {
		n := *next
		b.NextID = &n
	} else {
		b.NextID = nil
	}
	b.IsHead = TriOf(head).Compact(DefaultIsHead)
	return b
}

// IsRead reports whether the block is meant to be read aloud.
func (b Block) IsRead() bool { return b.Read.Or(DefaultRead) }

// Apply sets the patched fields on b. Link fields are accepted here
// because stores apply chain writes through the same path.
func (b *Block) Apply(p Patch) error {
	for k, v := range p {
		canon, err := canonicalBlockValue(k, v)
		if err != nil {
			return err
		}
		switch k {
		case FieldNextID:
			if id, ok := canon.(BlockID); ok {
				b.NextID = &id
			} else {
				b.NextID = nil
			}
		case FieldIsHead:
			b.IsHead = canon.(Tri)
		case FieldRead:
			b.Read = canon.(Tri)
		case FieldPageNb:
			b.PageNb = canon.(int)
		case FieldSizeClass:
			b.SizeClass = canon.(SizeClass)
		case FieldAudioStatus:
			b.AudioStatus = canon.(AudioStatus)
		case FieldAudioPath:
			b.AudioPath = canon.(string)
		}
	}
	return nil
}
