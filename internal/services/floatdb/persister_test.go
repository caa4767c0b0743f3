package floatdb

import (
	"context"
	"errors"
	"math"
	"testing"

	"csgo-floatdb/internal/codec"
	"csgo-floatdb/internal/metrics"
	"csgo-floatdb/internal/models"
	"csgo-floatdb/internal/store"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newPersister(st store.Store) *Persister {
	m := metrics.Nop()
	return NewPersister(st, NewHistoryRecorder(st, m), codec.DefaultOptions(), m)
}

func TestDeduplicateFirstWins(t *testing.T) {
	batch := make([]Normalized, 0, 3)
	for i, p := range []int64{100, 200, 300} {
		raw := rawItem("1", 0.24)
		if i == 2 {
			raw.PaintSeed = 4
		}
		item, _, err := codec.Normalize(raw, codec.DefaultOptions())
		require.NoError(t, err)
		batch = append(batch, Normalized{Raw: raw, Item: item, Price: price(p)})
	}

	kept, dropped := Deduplicate(batch)
	assert.Equal(t, 1, dropped)
	require.Len(t, kept, 2)
	assert.Equal(t, int64(100), *kept[0].Price)
	assert.Equal(t, int64(300), *kept[1].Price)
}

func TestPersistConcreteScenario(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	st := store.NewGormStore(db)
	p := newPersister(st)

	raw := codec.RawItem{
		DefIndex:   7,
		PaintIndex: 12,
		PaintSeed:  3,
		FloatValue: 0.24,
		A:          "18446744073709551615",
		S:          "0",
		Stickers:   []codec.RawSticker{},
	}
	res, err := p.Persist(ctx, []Pending{{Item: raw}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Inserted)
	assert.Zero(t, res.HistoryWritten)

	var row models.Item
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, int32(math.Float32bits(0.24)), row.PaintWear)
	assert.Equal(t, int64(-1), row.AssetID)
	assert.Nil(t, row.Stickers)

	var nullStickers, history int64
	require.NoError(t, db.Model(&models.Item{}).Where("stickers IS NULL").Count(&nullStickers).Error)
	require.NoError(t, db.Model(&models.HistoryEntry{}).Count(&history).Error)
	assert.Equal(t, int64(1), nullStickers)
	assert.Zero(t, history)
}

func TestPersistDeduplicatesWithinBatch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p := newPersister(store.NewGormStore(db))

	first := rawItem("11", 0.31)
	second := rawItem("11", 0.31)
	res, err := p.Persist(ctx, []Pending{
		{Item: first, Price: price(500)},
		{Item: second, Price: price(900)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, int64(1), res.Inserted)
	assert.Equal(t, 1, res.HistoryWritten)

	var rows []models.Item
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Price)
	assert.Equal(t, int64(500), *rows[0].Price)
}

func TestPersistAcrossBatchesUpserts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p := newPersister(store.NewGormStore(db))

	raw := rawItem("11", 0.31)
	_, err := p.Persist(ctx, []Pending{{Item: raw}})
	require.NoError(t, err)

	raw.S = ownerSteamID
	res, err := p.Persist(ctx, []Pending{{Item: raw, Price: price(42)}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Updated)
	assert.Zero(t, res.Inserted)

	var rows []models.Item
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, ownerSteamID, codec.FormatID(rows[0].MSID))
	assert.Equal(t, int64(42), *rows[0].Price)
}

func TestPersistSkipsPlaceholders(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p := newPersister(store.NewGormStore(db))

	zero := rawItem("1", 0)
	exempt := rawItem("2", 0)
	exempt.DefIndex = codec.DefaultZeroFloatDefIndex
	malformed := rawItem("x", 0.2)

	res, err := p.Persist(ctx, []Pending{{Item: zero}, {Item: exempt}, {Item: malformed}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Invalid)
	assert.Equal(t, int64(1), res.Inserted)
}

func TestPersistHistoryRules(t *testing.T) {
	tests := []struct {
		name        string
		owner       string
		price       *int64
		wantHistory bool
		wantSteamID bool
	}{
		{"no owner no price", "0", nil, false, false},
		{"owner only", ownerSteamID, nil, true, true},
		{"price only", "0", price(150), true, false},
		{"owner and price", ownerSteamID, price(150), true, true},
		{"invalid owner format", "12345", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			p := newPersister(store.NewGormStore(db))

			raw := rawItem("77", 0.5)
			raw.S = tt.owner
			_, err := p.Persist(context.Background(), []Pending{{Item: raw, Price: tt.price}})
			require.NoError(t, err)

			var entries []models.HistoryEntry
			require.NoError(t, db.Find(&entries).Error)
			if !tt.wantHistory {
				assert.Empty(t, entries)
				return
			}
			require.Len(t, entries, 1)
			assert.Equal(t, int64(77), entries[0].FloatID)
			assert.Equal(t, int64(77), entries[0].AssetID)
			assert.Equal(t, tt.price, entries[0].Price)
			if tt.wantSteamID {
				require.NotNil(t, entries[0].SteamID)
				assert.Equal(t, ownerSteamID, codec.FormatID(*entries[0].SteamID))
			} else {
				assert.Nil(t, entries[0].SteamID)
			}
		})
	}
}

func TestPersistWritesHistoryBeforeUpsert(t *testing.T) {
	m := &mockStore{}
	m.On("InsertHistory", mock.Anything, mock.Anything).Return(nil)
	m.On("BulkUpsertItems", mock.Anything, mock.Anything).Return(store.BulkResult{Inserted: 2}, nil)

	a := rawItem("1", 0.1)
	a.S = ownerSteamID
	b := rawItem("2", 0.2)
	_, err := newPersister(m).Persist(context.Background(), []Pending{{Item: a}, {Item: b, Price: price(3)}})
	require.NoError(t, err)

	assert.Equal(t, []string{"InsertHistory", "InsertHistory", "BulkUpsertItems"}, callOrder(m))
	m.AssertNumberOfCalls(t, "BulkUpsertItems", 1)
	items := m.Calls[2].Arguments.Get(1).([]*models.Item)
	assert.Len(t, items, 2)
}

func TestPersistUpsertFailureKeepsHistory(t *testing.T) {
	boom := errors.New("store down")
	m := &mockStore{}
	m.On("InsertHistory", mock.Anything, mock.Anything).Return(nil)
	m.On("BulkUpsertItems", mock.Anything, mock.Anything).Return(store.BulkResult{}, boom)

	res, err := newPersister(m).Persist(context.Background(), []Pending{{Item: rawItem("1", 0.1), Price: price(3)}})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, res.HistoryWritten)
	m.AssertNumberOfCalls(t, "BulkUpsertItems", 1)
}

func TestPersistHistoryFailureDoesNotBlockUpsert(t *testing.T) {
	m := &mockStore{}
	m.On("InsertHistory", mock.Anything, mock.Anything).Return(errors.New("history table locked"))
	m.On("BulkUpsertItems", mock.Anything, mock.Anything).Return(store.BulkResult{Inserted: 1}, nil)

	res, err := newPersister(m).Persist(context.Background(), []Pending{{Item: rawItem("1", 0.1), Price: price(3)}})
	require.NoError(t, err)
	assert.Zero(t, res.HistoryWritten)
	assert.Equal(t, int64(1), res.Inserted)
}

func TestPersistEmptyBatchSkipsStore(t *testing.T) {
	m := &mockStore{}
	res, err := newPersister(m).Persist(context.Background(), []Pending{{Item: rawItem("1", 0)}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	m.AssertNotCalled(t, "BulkUpsertItems", mock.Anything, mock.Anything)
}

func TestPersistKeepsBatchWhenOneFloatIDClashes(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p := newPersister(store.NewGormStore(db))

	_, err := p.Persist(ctx, []Pending{{Item: rawItem("100", 0.2)}})
	require.NoError(t, err)

	reinspected := rawItem("100", 0.2)
	reinspected.PaintSeed = 99
	res, err := p.Persist(ctx, []Pending{{Item: reinspected}, {Item: rawItem("200", 0.3)}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Inserted)
	assert.Equal(t, int64(1), res.Rejected)

	var n int64
	require.NoError(t, db.Model(&models.Item{}).Where("assetid = ?", 200).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestPersistCountsInvalidSeparately(t *testing.T) {
	m := metrics.Nop()
	st := store.NewGormStore(newTestDB(t))
	p := NewPersister(st, NewHistoryRecorder(st, m), codec.DefaultOptions(), m)

	_, err := p.Persist(context.Background(), []Pending{
		{Item: rawItem("1", 0)},
		{Item: rawItem("not-an-id", 0.2)},
		{Item: rawItem("3", 0.2)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Skipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invalid))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Upserted.WithLabelValues("inserted")))
}
