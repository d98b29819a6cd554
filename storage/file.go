package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"bid-analytics/models"
)

// WriteFile writes data to path, creating intermediate directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("storage: create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("storage: write %q: %w", path, err)
	}
	return nil
}

// EncodeFunc renders records to w.
type EncodeFunc func(w io.Writer, records []models.ProcessedRecord) error

var _ DatasetWriter = (*FileWriter)(nil)

// FileWriter writes datasets to a file through an encoder. The file is only
// touched once encoding has succeeded.
type FileWriter struct {
	path   string
	encode EncodeFunc
}

// NewFileWriter creates a FileWriter for path.
func NewFileWriter(path string, encode EncodeFunc) *FileWriter {
	return &FileWriter{path: path, encode: encode}
}

// Write replaces the file contents with the encoded records.
func (f *FileWriter) Write(records []models.ProcessedRecord) error {
	var buf bytes.Buffer
	if err := f.encode(&buf, records); err != nil {
		return err
	}
	return WriteFile(f.path, buf.Bytes())
}

// Close is a no-op.
func (f *FileWriter) Close() error { return nil }
