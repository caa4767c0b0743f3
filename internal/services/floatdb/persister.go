package floatdb

import (
	"context"
	"sync"
	"time"

	"csgo-floatdb/internal/codec"
	"csgo-floatdb/internal/logger"
	"csgo-floatdb/internal/metrics"
	"csgo-floatdb/internal/models"
	"csgo-floatdb/internal/services/steam"
	"csgo-floatdb/internal/store"

	"github.com/sirupsen/logrus"
)

// Result summarizes one persisted batch.
type Result struct {
	Received       int
	Skipped        int
	Invalid        int
	Duplicates     int
	HistoryWritten int
	Inserted       int64
	Updated        int64
	Rejected       int64
}

// Persister is the single write path into the items table. Calls are serialized so
// two batches from the same process never upsert overlapping identities concurrently.
type Persister struct {
	mu      sync.Mutex
	store   store.Store
	history *HistoryRecorder
	opts    codec.Options
	metrics *metrics.Metrics
	now     func() time.Time
	log     *logrus.Entry
}

func NewPersister(st store.Store, history *HistoryRecorder, opts codec.Options, m *metrics.Metrics) *Persister {
	return &Persister{
		store:   st,
		history: history,
		opts:    opts,
		metrics: m,
		now:     time.Now,
		log:     logger.WithComponent("persister"),
	}
}

// Persist normalizes, deduplicates, records history and bulk-upserts one batch.
// Rows the store refuses one by one are counted in Rejected and do not fail the batch.
// A failed upsert is logged and returned; the batch is not retried.
func (p *Persister) Persist(ctx context.Context, batch []Pending) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := Result{Received: len(batch)}
	p.metrics.Received.Add(float64(len(batch)))

	normalized := make([]Normalized, 0, len(batch))
	for _, obs := range batch {
		item, skip, err := codec.Normalize(obs.Item, p.opts)
		if err != nil {
			res.Invalid++
			p.log.WithError(err).WithField("a", obs.Item.A).Warn("dropping malformed observation")
			continue
		}
		if skip {
			res.Skipped++
			continue
		}
		normalized = append(normalized, Normalized{Raw: obs.Item, Item: item, Price: obs.Price})
	}
	p.metrics.Skipped.Add(float64(res.Skipped))
	p.metrics.Invalid.Add(float64(res.Invalid))

	kept, dropped := Deduplicate(normalized)
	res.Duplicates = dropped
	p.metrics.Duplicates.Add(float64(dropped))

	now := p.now()
	items := make([]*models.Item, 0, len(kept))
	for _, n := range kept {
		n.Item.Price = n.Price
		n.Item.UpdatedAt = now

		if steamID, ok := historySteamID(n.Raw.S); ok || n.Price != nil {
			if err := p.history.Record(ctx, n.Item.FloatID, n.Item.AssetID, steamID, n.Price); err != nil {
				p.log.WithError(err).WithField("floatid", n.Item.FloatID).Warn("history write failed")
			} else {
				res.HistoryWritten++
			}
		}
		items = append(items, n.Item)
	}

	if len(items) == 0 {
		return res, nil
	}

	bulk, err := p.store.BulkUpsertItems(ctx, items)
	res.Inserted, res.Updated, res.Rejected = bulk.Inserted, bulk.Updated, bulk.Rejected
	p.metrics.Upserted.WithLabelValues("inserted").Add(float64(bulk.Inserted))
	p.metrics.Upserted.WithLabelValues("updated").Add(float64(bulk.Updated))
	p.metrics.Upserted.WithLabelValues("rejected").Add(float64(bulk.Rejected))
	if err != nil {
		p.metrics.Flushes.WithLabelValues("error").Inc()
		p.log.WithError(err).WithField("batch_size", len(items)).Error("bulk upsert failed, batch not retried")
		return res, err
	}
	p.metrics.Flushes.WithLabelValues("ok").Inc()
	if bulk.Rejected > 0 {
		p.log.WithFields(logger.Fields{"batch_size": len(items), "rejected": bulk.Rejected}).Warn("store rejected part of the batch")
	}

	p.log.WithFields(logger.Fields{
		"received":   res.Received,
		"inserted":   res.Inserted,
		"updated":    res.Updated,
		"rejected":   res.Rejected,
		"skipped":    res.Skipped,
		"duplicates": res.Duplicates,
	}).Debug("batch persisted")
	return res, nil
}

// historySteamID returns the signed owner id when s looks like a steam account.
func historySteamID(s string) (*int64, bool) {
	if !steam.IsSteamID64(s) {
		return nil, false
	}
	id, err := codec.ParseID(s)
	if err != nil {
		return nil, false
	}
	return &id, true
}
