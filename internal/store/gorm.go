package store

import (
	"context"
	"fmt"
	"strings"

	"csgo-floatdb/internal/logger"
	"csgo-floatdb/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertChunk keeps each INSERT below the bind-variable limits of every supported driver.
const upsertChunk = 500

// existsChunk bounds the OR chain of one identity lookup; sqlite caps expression depth at 1000.
const existsChunk = 100

var identityColumns = []clause.Column{
	{Name: "defindex"},
	{Name: "paintindex"},
	{Name: "paintwear"},
	{Name: "paintseed"},
}

// every non-identity column is replaced on conflict
var replaceColumns = []string{
	"floatid", "assetid", "msid", "did", "stattrak", "souvenir",
	"prop_origin", "prop_quality", "prop_rarity", "stickers", "price", "updated_at",
}

type GormStore struct {
	db  *gorm.DB
	log *logrus.Entry
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, log: logger.WithComponent("store")}
}

func (s *GormStore) FindItemByAsset(ctx context.Context, assetID int64) (*models.Item, error) {
	var items []models.Item
	if err := s.db.WithContext(ctx).
		Where("assetid = ?", assetID).
		Order("updated_at DESC").
		Limit(1).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("find item by asset %d: %w", assetID, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (s *GormStore) FindItemsByAssets(ctx context.Context, assetIDs []int64) ([]models.Item, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}
	var items []models.Item
	if err := s.db.WithContext(ctx).Where("assetid IN ?", assetIDs).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("find items by asset: %w", err)
	}
	return items, nil
}

func (s *GormStore) CountPeers(ctx context.Context, f PeerFilter, wear int32, dir Direction, limit int) (int64, error) {
	op := "paintwear < ?"
	if dir == Above {
		op = "paintwear > ?"
	}
	peers := s.db.WithContext(ctx).Model(&models.Item{}).
		Where("defindex = ? AND paintindex = ? AND stattrak = ? AND souvenir = ?", f.DefIndex, f.PaintIndex, f.StatTrak, f.Souvenir).
		Where(op, wear)

	var n int64
	if limit <= 0 {
		if err := peers.Count(&n).Error; err != nil {
			return 0, fmt.Errorf("count peers: %w", err)
		}
		return n, nil
	}

	bounded := peers.Select("1").Limit(limit)
	if err := s.db.WithContext(ctx).Table("(?) AS peers", bounded).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count peers: %w", err)
	}
	return n, nil
}

// BulkUpsertItems writes the batch with INSERT ... ON CONFLICT on the item identity.
// Chunks run outside any enclosing transaction so every row stands on its own: rows whose
// floatid belongs to another identity are rejected up front, and a chunk that still fails
// is retried row by row. An error is returned only when no row could be written.
func (s *GormStore) BulkUpsertItems(ctx context.Context, items []*models.Item) (BulkResult, error) {
	var res BulkResult
	if len(items) == 0 {
		return res, nil
	}

	accepted, err := s.rejectFloatIDClashes(ctx, items)
	if err != nil {
		return res, err
	}
	res.Rejected = int64(len(items) - len(accepted))

	db := s.db.WithContext(ctx).Session(&gorm.Session{SkipDefaultTransaction: true})
	var lastErr error
	for start := 0; start < len(accepted); start += upsertChunk {
		chunk := accepted[start:min(start+upsertChunk, len(accepted))]

		existing, err := s.countExisting(ctx, chunk)
		if err != nil {
			return res, err
		}
		if err := upsert(db, chunk); err == nil {
			res.Inserted += int64(len(chunk)) - existing
			res.Updated += existing
			continue
		}

		for _, it := range chunk {
			existed, err := s.countExisting(ctx, []*models.Item{it})
			if err != nil {
				return res, err
			}
			if err := upsert(db, []*models.Item{it}); err != nil {
				lastErr = err
				res.Rejected++
				s.log.WithError(err).WithFields(logger.Fields{
					"floatid": it.FloatID,
					"assetid": it.AssetID,
				}).Warn("item rejected by store")
				continue
			}
			if existed > 0 {
				res.Updated++
			} else {
				res.Inserted++
			}
		}
	}

	if lastErr != nil && res.Inserted+res.Updated == 0 {
		return res, fmt.Errorf("bulk upsert %d items: %w", len(items), lastErr)
	}
	return res, nil
}

func upsert(db *gorm.DB, items []*models.Item) error {
	return db.Clauses(clause.OnConflict{
		Columns:   identityColumns,
		DoUpdates: clause.AssignmentColumns(replaceColumns),
	}).Create(items).Error
}

type identity struct {
	defIndex, paintIndex int
	paintWear            int32
	paintSeed            int
}

func identityOf(it *models.Item) identity {
	return identity{it.DefIndex, it.PaintIndex, it.PaintWear, it.PaintSeed}
}

// rejectFloatIDClashes drops rows whose floatid is already held by a different identity,
// in the table or earlier in the batch. floatid is outside the conflict target, so such a
// row would fail its statement (and on MySQL would update the row holding the floatid).
func (s *GormStore) rejectFloatIDClashes(ctx context.Context, items []*models.Item) ([]*models.Item, error) {
	owners := make(map[int64]identity, len(items))
	for start := 0; start < len(items); start += upsertChunk {
		chunk := items[start:min(start+upsertChunk, len(items))]
		ids := make([]int64, 0, len(chunk))
		for _, it := range chunk {
			ids = append(ids, it.FloatID)
		}
		var held []models.Item
		if err := s.db.WithContext(ctx).
			Select("floatid", "defindex", "paintindex", "paintwear", "paintseed").
			Where("floatid IN ?", ids).
			Find(&held).Error; err != nil {
			return nil, fmt.Errorf("look up floatid owners: %w", err)
		}
		for i := range held {
			owners[held[i].FloatID] = identityOf(&held[i])
		}
	}

	kept := make([]*models.Item, 0, len(items))
	for _, it := range items {
		id := identityOf(it)
		if owner, ok := owners[it.FloatID]; ok && owner != id {
			s.log.WithFields(logger.Fields{
				"floatid": it.FloatID,
				"assetid": it.AssetID,
			}).Warn("floatid held by another item, row rejected")
			continue
		}
		owners[it.FloatID] = id
		kept = append(kept, it)
	}
	return kept, nil
}

func (s *GormStore) countExisting(ctx context.Context, items []*models.Item) (int64, error) {
	var total int64
	for start := 0; start < len(items); start += existsChunk {
		end := min(start+existsChunk, len(items))
		conds := make([]string, 0, end-start)
		args := make([]interface{}, 0, 4*(end-start))
		for _, it := range items[start:end] {
			conds = append(conds, "(defindex = ? AND paintindex = ? AND paintwear = ? AND paintseed = ?)")
			args = append(args, it.DefIndex, it.PaintIndex, it.PaintWear, it.PaintSeed)
		}
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Item{}).
			Where(strings.Join(conds, " OR "), args...).
			Count(&n).Error; err != nil {
			return 0, fmt.Errorf("count existing items: %w", err)
		}
		total += n
	}
	return total, nil
}

func (s *GormStore) SetItemPrice(ctx context.Context, floatID int64, price int64) error {
	if err := s.db.WithContext(ctx).Model(&models.Item{}).
		Where("floatid = ?", floatID).
		UpdateColumn("price", price).Error; err != nil {
		return fmt.Errorf("set price for floatid %d: %w", floatID, err)
	}
	return nil
}

func (s *GormStore) InsertHistory(ctx context.Context, entry *models.HistoryEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (s *GormStore) ListHistory(ctx context.Context, assetID int64) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	if err := s.db.WithContext(ctx).
		Where("assetid = ?", assetID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list history for asset %d: %w", assetID, err)
	}
	return entries, nil
}
