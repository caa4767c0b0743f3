package floatdb

import (
	"context"
	"time"

	"csgo-floatdb/internal/metrics"
	"csgo-floatdb/internal/models"
	"csgo-floatdb/internal/store"
)

// HistoryRecorder appends audit entries. It never reads before writing.
type HistoryRecorder struct {
	store   store.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewHistoryRecorder(st store.Store, m *metrics.Metrics) *HistoryRecorder {
	return &HistoryRecorder{store: st, metrics: m, now: time.Now}
}

// Record appends one entry. steamID and price may be nil.
func (h *HistoryRecorder) Record(ctx context.Context, floatID, assetID int64, steamID, price *int64) error {
	err := h.store.InsertHistory(ctx, &models.HistoryEntry{
		FloatID:   floatID,
		AssetID:   assetID,
		SteamID:   steamID,
		Price:     price,
		CreatedAt: h.now(),
	})
	if err != nil {
		h.metrics.HistoryWrites.WithLabelValues("error").Inc()
		return err
	}
	h.metrics.HistoryWrites.WithLabelValues("ok").Inc()
	return nil
}

// History returns every entry recorded for an asset, newest first.
func (h *HistoryRecorder) History(ctx context.Context, assetID int64) ([]models.HistoryEntry, error) {
	return h.store.ListHistory(ctx, assetID)
}
