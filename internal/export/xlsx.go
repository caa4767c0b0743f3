// Package export renders item history as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"csgo-floatdb/internal/services/floatdb"

	"github.com/xuri/excelize/v2"
)

const historySheet = "History"

var historyHeader = []interface{}{"Asset", "Float ID", "Steam ID", "Price", "Recorded At"}

// WriteHistoryXLSX writes one row per history record, in the order given, under a header row.
func WriteHistoryXLSX(w io.Writer, asset string, records []floatdb.HistoryRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(historySheet, "A1", &historyHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(historySheet, "A1", "E1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(historySheet, "A", "E", 22); err != nil {
		return err
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		var price interface{}
		if r.Price != nil {
			price = *r.Price
		}
		row := []interface{}{r.AssetID, r.FloatID, r.SteamID, price, r.CreatedAt.UTC().Format(time.RFC3339)}
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return fmt.Errorf("history row %d for %s: %w", i, asset, err)
		}
	}

	return f.Write(w)
}
