package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"bid-analytics/models"
)

const insertColumns = 12

var _ SnapshotStore = (*PostgresWriter)(nil)

// PostgresWriter persists processed dataset snapshots to PostgreSQL, one
// snapshot per source.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS bids (
			source_id           TEXT          NOT NULL,
			id                  INTEGER       NOT NULL,
			user_name           TEXT          NOT NULL,
			power_company       TEXT          NOT NULL,
			bid_date            TEXT          NOT NULL,
			bid_time            TIMESTAMPTZ   NOT NULL,
			bid_price           NUMERIC(6,3)  NOT NULL,
			bid_date_formatted  TEXT          NOT NULL,
			bid_price_formatted TEXT          NOT NULL,
			quarter             VARCHAR(2)    NOT NULL,
			month               SMALLINT      NOT NULL,
			year                SMALLINT      NOT NULL,
			stored_at           TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			PRIMARY KEY (source_id, id)
		);

		CREATE INDEX IF NOT EXISTS idx_bids_bid_time      ON bids(bid_time);
		CREATE INDEX IF NOT EXISTS idx_bids_power_company ON bids(power_company);
	`)
	return err
}

// Write replaces the stored snapshot of sourceID with records inside one
// transaction.
func (pw *PostgresWriter) Write(sourceID string, records []models.ProcessedRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM bids WHERE source_id = $1", sourceID); err != nil {
		return fmt.Errorf("postgres: clear %s: %w", sourceID, err)
	}

	const batchSize = 50
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))
		query, args := buildInsert(sourceID, records[i:end])
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("postgres: insert batch at %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func buildInsert(sourceID string, batch []models.ProcessedRecord) (string, []any) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*insertColumns)

	for idx, r := range batch {
		base := idx * insertColumns
		placeholders := make([]string, insertColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			sourceID, r.ID, r.UserName, r.PowerCompany, r.BidDate, r.BidTime, r.BidPrice,
			r.BidDateFormatted, r.BidPriceFormatted, r.Quarter, r.Month, r.Year)
	}

	query := fmt.Sprintf(`
		INSERT INTO bids (source_id, id, user_name, power_company, bid_date, bid_time, bid_price,
			bid_date_formatted, bid_price_formatted, quarter, month, year)
		VALUES %s
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchAll retrieves the stored snapshot of sourceID in id order. It is the
// fallback when a fresh load fails.
func (pw *PostgresWriter) FetchAll(sourceID string) ([]models.ProcessedRecord, error) {
	rows, err := pw.db.Query(`
		SELECT id, user_name, power_company, bid_date, bid_time, bid_price,
			bid_date_formatted, bid_price_formatted, quarter, month, year
		FROM bids
		WHERE source_id = $1
		ORDER BY id
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var records []models.ProcessedRecord
	for rows.Next() {
		var r models.ProcessedRecord
		if err := rows.Scan(
			&r.ID, &r.UserName, &r.PowerCompany, &r.BidDate, &r.BidTime, &r.BidPrice,
			&r.BidDateFormatted, &r.BidPriceFormatted, &r.Quarter, &r.Month, &r.Year,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		r.BidTime = r.BidTime.UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}
