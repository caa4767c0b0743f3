package floatdb

import (
	"context"
	"fmt"
	"time"

	"csgo-floatdb/internal/codec"
	"csgo-floatdb/internal/logger"
	"csgo-floatdb/internal/metrics"
	"csgo-floatdb/internal/models"
	"csgo-floatdb/internal/store"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Mode              Mode
	FlushInterval     time.Duration
	ZeroFloatDefIndex int
	RankLimit         int
}

func DefaultConfig() Config {
	return Config{
		Mode:              ModeBuffered,
		FlushInterval:     DefaultFlushInterval,
		ZeroFloatDefIndex: codec.DefaultZeroFloatDefIndex,
		RankLimit:         DefaultRankLimit,
	}
}

// LookupRequest asks for one item by asset id.
type LookupRequest struct {
	A string `json:"a"`
}

// HistoryRecord is the external form of a history entry.
type HistoryRecord struct {
	FloatID   string    `json:"floatid"`
	AssetID   string    `json:"a"`
	SteamID   string    `json:"steamid,omitempty"`
	Price     *int64    `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// Service wires the ingest pipeline and the lookups together.
type Service struct {
	store     store.Store
	queue     *IngestQueue
	persister *Persister
	history   *HistoryRecorder
	ranks     *RankQuery
	log       *logrus.Entry
}

func NewService(st store.Store, cfg Config, m *metrics.Metrics) *Service {
	if m == nil {
		m = metrics.Nop()
	}
	history := NewHistoryRecorder(st, m)
	persister := NewPersister(st, history, codec.Options{ZeroFloatDefIndex: cfg.ZeroFloatDefIndex}, m)
	return &Service{
		store:     st,
		queue:     NewIngestQueue(persister, cfg.Mode, cfg.FlushInterval, m),
		persister: persister,
		history:   history,
		ranks:     NewRankQuery(st, cfg.RankLimit),
		log:       logger.WithComponent("floatdb"),
	}
}

func (s *Service) Start(ctx context.Context) { s.queue.Start(ctx) }

func (s *Service) Stop() { s.queue.Stop() }

// Flush pushes any buffered observations to the store now.
func (s *Service) Flush(ctx context.Context) error { return s.queue.Flush(ctx) }

// InsertItemData queues or immediately persists an observation, depending on mode.
func (s *Service) InsertItemData(ctx context.Context, item codec.RawItem, price *int64) error {
	return s.queue.Add(ctx, item, price)
}

// UpdateItemPrice records a price for an already stored item. Unknown assets are ignored.
func (s *Service) UpdateItemPrice(ctx context.Context, assetID string, price int64) error {
	asset, err := codec.ParseID(assetID)
	if err != nil {
		return err
	}
	item, err := s.store.FindItemByAsset(ctx, asset)
	if err != nil || item == nil {
		return err
	}

	if err := s.history.Record(ctx, item.FloatID, item.AssetID, nil, &price); err != nil {
		s.log.WithError(err).WithField("floatid", item.FloatID).Warn("history write failed")
	}
	return s.store.SetItemPrice(ctx, item.FloatID, price)
}

func (s *Service) GetItemRank(ctx context.Context, assetID string) (Rank, error) {
	asset, err := codec.ParseID(assetID)
	if err != nil {
		return Rank{}, err
	}
	return s.ranks.Rank(ctx, asset)
}

// GetItemData resolves a batch of lookups in request order. Misses are left out.
func (s *Service) GetItemData(ctx context.Context, reqs []LookupRequest) ([]codec.ExternalItem, error) {
	ids := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		id, err := codec.ParseID(r.A)
		if err != nil {
			return nil, fmt.Errorf("lookup: %w", err)
		}
		ids = append(ids, id)
	}

	items, err := s.store.FindItemsByAssets(ctx, ids)
	if err != nil {
		return nil, err
	}

	byAsset := make(map[int64]*models.Item, len(items))
	for i := range items {
		it := &items[i]
		if prev, ok := byAsset[it.AssetID]; ok && prev.UpdatedAt.After(it.UpdatedAt) {
			continue
		}
		byAsset[it.AssetID] = it
	}

	out := make([]codec.ExternalItem, 0, len(ids))
	for _, id := range ids {
		if it, ok := byAsset[id]; ok {
			out = append(out, codec.Denormalize(it))
		}
	}
	return out, nil
}

// GetItemHistory returns the audit trail for an asset, newest first.
func (s *Service) GetItemHistory(ctx context.Context, assetID string) ([]HistoryRecord, error) {
	asset, err := codec.ParseID(assetID)
	if err != nil {
		return nil, err
	}
	entries, err := s.history.History(ctx, asset)
	if err != nil {
		return nil, err
	}

	out := make([]HistoryRecord, 0, len(entries))
	for _, e := range entries {
		rec := HistoryRecord{
			FloatID:   codec.FormatID(e.FloatID),
			AssetID:   codec.FormatID(e.AssetID),
			Price:     e.Price,
			CreatedAt: e.CreatedAt,
		}
		if e.SteamID != nil {
			rec.SteamID = codec.FormatID(*e.SteamID)
		}
		out = append(out, rec)
	}
	return out, nil
}
