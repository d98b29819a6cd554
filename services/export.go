package services

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"

	"bid-analytics/models"
	"bid-analytics/storage"
)

// Supported export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Export renders records in format and returns the result as a string.
func Export(format string, records []models.ProcessedRecord) (string, error) {
	var buf bytes.Buffer
	if err := ExportTo(&buf, format, records); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ExportTo streams records in format to w.
func ExportTo(w io.Writer, format string, records []models.ProcessedRecord) error {
	if records == nil {
		records = []models.ProcessedRecord{}
	}
	switch strings.ToLower(format) {
	case FormatJSON:
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("export: marshal json: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatCSV:
		return storage.EncodeCSV(w, records)
	case FormatXLSX:
		return storage.EncodeXLSX(w, records)
	default:
		return &models.UnsupportedFormatError{Format: format}
	}
}

// ContentType returns the MIME type for an export format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
