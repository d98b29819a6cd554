package storage

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"bid-analytics/models"
)

const sheetName = "Bids"

// EncodeXLSX writes records as a single-sheet workbook with a header row.
// Numeric columns are stored as numbers.
func EncodeXLSX(w io.Writer, records []models.ProcessedRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("xlsx: write header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("xlsx: cell name: %w", err)
		}
		row := []any{
			r.UserName, r.PowerCompany, r.BidDate, r.BidPrice,
			r.ID, r.BidDateFormatted, r.BidPriceFormatted, r.Quarter, r.Month, r.Year,
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("xlsx: write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx: write workbook: %w", err)
	}
	return nil
}
