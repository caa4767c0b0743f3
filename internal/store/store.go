package store

import (
	"context"

	"csgo-floatdb/internal/models"
)

// BulkResult reports how the rows of a bulk upsert landed.
type BulkResult struct {
	Inserted int64
	Updated  int64
	Rejected int64 // refused one by one; the rest of the batch is still written
}

// PeerFilter selects items that share a template and variant.
type PeerFilter struct {
	DefIndex   int
	PaintIndex int
	StatTrak   bool
	Souvenir   bool
}

type Direction int

const (
	Below Direction = iota // strictly lower encoded wear
	Above                  // strictly higher encoded wear
)

// Store is what the ingest pipeline and lookups need from persistence.
// Lookups that miss return a nil item and a nil error.
type Store interface {
	FindItemByAsset(ctx context.Context, assetID int64) (*models.Item, error)
	FindItemsByAssets(ctx context.Context, assetIDs []int64) ([]models.Item, error)
	// CountPeers counts at most limit peers on one side of wear; limit <= 0 counts all.
	CountPeers(ctx context.Context, f PeerFilter, wear int32, dir Direction, limit int) (int64, error)
	BulkUpsertItems(ctx context.Context, items []*models.Item) (BulkResult, error)
	SetItemPrice(ctx context.Context, floatID int64, price int64) error
	InsertHistory(ctx context.Context, entry *models.HistoryEntry) error
	ListHistory(ctx context.Context, assetID int64) ([]models.HistoryEntry, error)
}
