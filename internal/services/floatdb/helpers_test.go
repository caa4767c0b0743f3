package floatdb

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"csgo-floatdb/internal/codec"
	"csgo-floatdb/internal/database"
	"csgo-floatdb/internal/models"
	"csgo-floatdb/internal/store"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const ownerSteamID = "76561198084749846"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Initialize(database.DriverSQLite, fmt.Sprintf("file:floatdb_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	return db
}

func rawItem(asset string, wear float64) codec.RawItem {
	return codec.RawItem{
		DefIndex:   7,
		PaintIndex: 12,
		PaintSeed:  3,
		FloatValue: wear,
		A:          asset,
		S:          "0",
		M:          "0",
		D:          "0",
		Quality:    4,
		Origin:     8,
		Rarity:     3,
	}
}

func price(v int64) *int64 { return &v }

// -- Mocks --

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindItemByAsset(ctx context.Context, assetID int64) (*models.Item, error) {
	args := m.Called(ctx, assetID)
	res := args.Get(0)
	if res == nil {
		return nil, args.Error(1)
	}
	return res.(*models.Item), args.Error(1)
}

func (m *mockStore) FindItemsByAssets(ctx context.Context, assetIDs []int64) ([]models.Item, error) {
	args := m.Called(ctx, assetIDs)
	return args.Get(0).([]models.Item), args.Error(1)
}

func (m *mockStore) CountPeers(ctx context.Context, f store.PeerFilter, wear int32, dir store.Direction, limit int) (int64, error) {
	args := m.Called(ctx, f, wear, dir, limit)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) BulkUpsertItems(ctx context.Context, items []*models.Item) (store.BulkResult, error) {
	args := m.Called(ctx, items)
	return args.Get(0).(store.BulkResult), args.Error(1)
}

func (m *mockStore) SetItemPrice(ctx context.Context, floatID int64, price int64) error {
	args := m.Called(ctx, floatID, price)
	return args.Error(0)
}

func (m *mockStore) InsertHistory(ctx context.Context, entry *models.HistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockStore) ListHistory(ctx context.Context, assetID int64) ([]models.HistoryEntry, error) {
	args := m.Called(ctx, assetID)
	return args.Get(0).([]models.HistoryEntry), args.Error(1)
}

func callOrder(m *mockStore) []string {
	out := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		out = append(out, c.Method)
	}
	return out
}
