package storage

import "bid-analytics/models"

// SnapshotStore is the interface any persistent backend for processed
// datasets must satisfy.
type SnapshotStore interface {
	Write(sourceID string, records []models.ProcessedRecord) error
	FetchAll(sourceID string) ([]models.ProcessedRecord, error)
	Close() error
}

// DatasetWriter persists a processed dataset to a file-like target.
type DatasetWriter interface {
	Write(records []models.ProcessedRecord) error
	Close() error
}
