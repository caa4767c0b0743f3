package export

import (
	"bytes"
	"testing"
	"time"

	"csgo-floatdb/internal/services/floatdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteHistoryXLSX(t *testing.T) {
	p := int64(1250)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []floatdb.HistoryRecord{
		{FloatID: "31", AssetID: "31", SteamID: "76561198084749846", Price: &p, CreatedAt: at},
		{FloatID: "31", AssetID: "31", CreatedAt: at.Add(-time.Hour)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteHistoryXLSX(&buf, "31", records))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(historySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Asset", "Float ID", "Steam ID", "Price", "Recorded At"}, rows[0])
	assert.Equal(t, []string{"31", "31", "76561198084749846", "1250", "2024-03-01T12:00:00Z"}, rows[1])
	assert.Equal(t, "2024-03-01T11:00:00Z", rows[2][4])
	assert.Empty(t, rows[2][2])
	assert.Empty(t, rows[2][3])
}

func TestWriteHistoryXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHistoryXLSX(&buf, "1", nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(historySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
