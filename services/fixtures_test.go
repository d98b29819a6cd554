package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bid-analytics/models"
	"bid-analytics/utils"
)

var testNow = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestValidator() *Validator { return NewValidator(fixedClock) }

func newTestProcessor() *Processor { return NewProcessor(utils.NewNopLogger(), "") }

func rawBid(user, company, date string, price any) map[string]any {
	return map[string]any{
		FieldUserName:     user,
		FieldPowerCompany: company,
		FieldBidDate:      date,
		FieldBidPrice:     price,
	}
}

// processedBids validates and processes one record per (date, price) pair.
func processedBids(t *testing.T, dates []string, prices []float64) []models.ProcessedRecord {
	t.Helper()
	require.Equal(t, len(dates), len(prices))

	v := newTestValidator()
	validated := make([]models.ValidatedRecord, 0, len(dates))
	for i := range dates {
		rec, err := v.ValidateRecord(rawBid(fmt.Sprintf("user%d", i), "Grid Co", dates[i], prices[i]))
		require.NoError(t, err)
		validated = append(validated, rec)
	}
	out, err := newTestProcessor().Process(validated)
	require.NoError(t, err)
	return out
}

// rawRecord builds a processed record directly, bypassing range checks.
func rawRecord(date string, price float64) models.ProcessedRecord {
	t, _ := ParseBidDate(date)
	return models.ProcessedRecord{
		ValidatedRecord: models.ValidatedRecord{
			UserName:     "u",
			PowerCompany: "c",
			BidDate:      date,
			BidPrice:     price,
			BidTime:      t,
		},
	}
}
