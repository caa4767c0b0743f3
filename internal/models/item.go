package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Item is the canonical stored form of an inspected skin.
// Identity is (defindex, paintindex, paintwear, paintseed); floatid is a second unique key.
type Item struct {
	ID         uint64      `json:"-" gorm:"primaryKey"`
	DefIndex   int         `json:"defindex" gorm:"column:defindex;not null;uniqueIndex:idx_items_identity,priority:1;index:idx_items_rank,priority:1"`
	PaintIndex int         `json:"paintindex" gorm:"column:paintindex;not null;uniqueIndex:idx_items_identity,priority:2;index:idx_items_rank,priority:2"`
	PaintWear  int32       `json:"paintwear" gorm:"column:paintwear;not null;uniqueIndex:idx_items_identity,priority:3;index:idx_items_rank,priority:5"` // encoded float32 bits
	PaintSeed  int         `json:"paintseed" gorm:"column:paintseed;not null;uniqueIndex:idx_items_identity,priority:4"`
	FloatID    int64       `json:"floatid" gorm:"column:floatid;not null;uniqueIndex:idx_items_floatid"`
	AssetID    int64       `json:"a" gorm:"column:assetid;not null;index:idx_items_assetid"`
	MSID       int64       `json:"ms" gorm:"column:msid"` // owner steam id or market id, whichever is non-zero
	DID        int64       `json:"d" gorm:"column:did"`
	StatTrak   bool        `json:"stattrak" gorm:"column:stattrak;not null;default:false;index:idx_items_rank,priority:3"`
	Souvenir   bool        `json:"souvenir" gorm:"column:souvenir;not null;default:false;index:idx_items_rank,priority:4"`
	Props      ItemProps   `json:"props" gorm:"embedded;embeddedPrefix:prop_"`
	Stickers   StickerList `json:"stickers" gorm:"column:stickers;type:text"`
	Price      *int64      `json:"price" gorm:"column:price"`
	UpdatedAt  time.Time   `json:"updated_at" gorm:"column:updated_at"`
}

func (Item) TableName() string { return "items" }

// ItemProps groups the small enum-like attributes of an item.
type ItemProps struct {
	Origin  int `json:"origin" gorm:"column:origin"`
	Quality int `json:"quality" gorm:"column:quality"`
	Rarity  int `json:"rarity" gorm:"column:rarity"`
}

// Sticker is the compact stored form of an applied sticker.
type Sticker struct {
	Slot           int      `json:"s"`
	StickerID      int      `json:"i"`
	Wear           *float64 `json:"w,omitempty"`
	Rotation       *float64 `json:"r,omitempty"`
	OffsetX        *float64 `json:"x,omitempty"`
	OffsetY        *float64 `json:"y,omitempty"`
	Name           string   `json:"n,omitempty"`
	DuplicateCount int      `json:"d,omitempty"`
}

// StickerList is stored as a JSON text column. An empty list is written as NULL.
type StickerList []Sticker

func (l StickerList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]Sticker(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StickerList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported sticker column type %T", value)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*l = nil
		return nil
	}
	var out []Sticker
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode stickers: %w", err)
	}
	*l = out
	return nil
}
