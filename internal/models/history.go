package models

import "time"

// HistoryEntry is an append-only audit row written when an item is seen with
// an owner steam id or a price.
type HistoryEntry struct {
	ID        uint64    `json:"-" gorm:"primaryKey"`
	FloatID   int64     `json:"floatid" gorm:"column:floatid;not null;index"`
	AssetID   int64     `json:"a" gorm:"column:assetid;not null;index"`
	SteamID   *int64    `json:"steamid" gorm:"column:steamid"`
	Price     *int64    `json:"price" gorm:"column:price"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;index"`
}

func (HistoryEntry) TableName() string { return "history" }
