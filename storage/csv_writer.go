package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"bid-analytics/models"
)

// Columns is the processed record field order used by every tabular export.
var Columns = []string{
	"user_name", "power_company", "bid_date", "bid_price",
	"id", "bid_date_formatted", "bid_price_formatted", "quarter", "month", "year",
}

// Row renders a record in Columns order.
func Row(r models.ProcessedRecord) []string {
	return []string{
		r.UserName,
		r.PowerCompany,
		r.BidDate,
		strconv.FormatFloat(r.BidPrice, 'f', -1, 64),
		strconv.Itoa(r.ID),
		r.BidDateFormatted,
		r.BidPriceFormatted,
		r.Quarter,
		strconv.Itoa(r.Month),
		strconv.Itoa(r.Year),
	}
}

// EncodeCSV writes a header row followed by one row per record. Fields
// containing commas, quotes or newlines are quoted and inner quotes doubled.
func EncodeCSV(w io.Writer, records []models.ProcessedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(Row(r)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

var _ DatasetWriter = (*CSVWriter)(nil)

// CSVWriter writes processed datasets to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu   sync.Mutex
	path string
}

// NewCSVWriter prepares a writer for path. Intermediate directories are
// created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVWriter{path: path}, nil
}

// Write replaces the file contents with records.
func (c *CSVWriter) Write(records []models.ProcessedRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", c.path, err)
	}
	if err := EncodeCSV(f, records); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Path returns the target file.
func (c *CSVWriter) Path() string { return c.path }

// Close is a no-op; each Write opens and closes the file.
func (c *CSVWriter) Close() error { return nil }
