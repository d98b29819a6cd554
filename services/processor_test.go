package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bid-analytics/models"
	"bid-analytics/utils"
)

func TestProcessSortsByDateStably(t *testing.T) {
	v := newTestValidator()
	var validated []models.ValidatedRecord
	for _, raw := range []map[string]any{
		rawBid("carol", "Grid Co", "2023-06-01", 0.6),
		rawBid("alice", "Grid Co", "2023-01-01", 0.4),
		rawBid("bob", "Grid Co", "2023-03-01", 0.5),
		rawBid("dave", "Grid Co", "2023-01-01", 0.7),
	} {
		rec, err := v.ValidateRecord(raw)
		require.NoError(t, err)
		validated = append(validated, rec)
	}

	out, err := newTestProcessor().Process(validated)
	require.NoError(t, err)

	var users []string
	var ids []int
	for _, r := range out {
		users = append(users, r.UserName)
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"alice", "dave", "bob", "carol"}, users)
	assert.Equal(t, []int{1, 2, 3, 4}, ids)

	assert.Equal(t, "carol", validated[0].UserName, "input must not be reordered")
}

func TestProcessCleansFields(t *testing.T) {
	p := newTestProcessor()
	in := []models.ValidatedRecord{{
		UserName:     "Alice \t  Smith",
		PowerCompany: "North   Grid\nPower",
		BidDate:      "2023-04-05",
		BidPrice:     0.12345,
		BidTime:      time.Date(2023, 4, 5, 0, 0, 0, 0, time.UTC),
	}}

	out, err := p.Process(in)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, "Alice Smith", out[0].UserName)
	assert.Equal(t, "North Grid Power", out[0].PowerCompany)
	assert.Equal(t, 0.123, out[0].BidPrice)
	assert.Equal(t, 0.12345, in[0].BidPrice, "input must not be modified")
}

func TestRoundPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.4504, 0.45},
		{0.4505, 0.451},
		{0.1235, 0.124},
		{1.9999, 2.0},
		{0.5, 0.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundPrice(tt.in), "RoundPrice(%v)", tt.in)
	}
}

func TestProcessEnrichment(t *testing.T) {
	tests := []struct {
		date        string
		wantQuarter string
		wantMonth   int
		wantFmt     string
	}{
		{"2023-01-15", "Q1", 1, "2023/01/15"},
		{"2023-03-31", "Q1", 3, "2023/03/31"},
		{"2023-04-01", "Q2", 4, "2023/04/01"},
		{"2022-09-30T23:00:00Z", "Q3", 9, "2022/09/30"},
		{"2021-12-24", "Q4", 12, "2021/12/24"},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			out := processedBids(t, []string{tt.date}, []float64{0.45})
			require.Len(t, out, 1)
			r := out[0]
			assert.Equal(t, 1, r.ID)
			assert.Equal(t, tt.wantQuarter, r.Quarter)
			assert.Equal(t, tt.wantMonth, r.Month)
			assert.Equal(t, r.BidTime.Year(), r.Year)
			assert.Equal(t, tt.wantFmt, r.BidDateFormatted)
			assert.Equal(t, "0.450 元/kWh", r.BidPriceFormatted)
			assert.Equal(t, tt.date, r.BidDate)
		})
	}
}

func TestProcessCustomUnit(t *testing.T) {
	p := NewProcessor(utils.NewNopLogger(), "USD/kWh")
	out, err := p.Process([]models.ValidatedRecord{{
		UserName: "a", PowerCompany: "b", BidDate: "2023-01-01", BidPrice: 1.2,
		BidTime: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}})
	require.NoError(t, err)
	assert.Equal(t, "1.200 USD/kWh", out[0].BidPriceFormatted)
}

func TestProcessIsIdempotent(t *testing.T) {
	first := processedBids(t,
		[]string{"2023-05-01", "2021-02-01", "2022-11-30", "2022-11-30"},
		[]float64{0.5, 0.4567, 1.1, 0.9})

	second, err := newTestProcessor().Reprocess(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestProcessKeepsDateOffset(t *testing.T) {
	out := processedBids(t, []string{"2023-03-31T20:00:00-05:00"}, []float64{0.5})

	require.Len(t, out, 1)
	assert.Equal(t, "2023/03/31", out[0].BidDateFormatted)
	assert.Equal(t, 3, out[0].Month)
	assert.Equal(t, "Q1", out[0].Quarter)
	assert.Equal(t, 2023, out[0].Year)
}

func TestReprocessRestoresOffsetAndUnit(t *testing.T) {
	stored := processedBids(t, []string{"2023-12-31T23:30:00+08:00"}, []float64{0.5})
	stored[0].BidTime = stored[0].BidTime.UTC()

	out, err := NewProcessor(utils.NewNopLogger(), "USD/MWh").Reprocess(stored)
	require.NoError(t, err)
	assert.Equal(t, "2023/12/31", out[0].BidDateFormatted)
	assert.Equal(t, "Q4", out[0].Quarter)
	assert.Equal(t, "0.500 USD/MWh", out[0].BidPriceFormatted)
}

func TestProcessRejectsUnparsedDate(t *testing.T) {
	_, err := newTestProcessor().Process([]models.ValidatedRecord{{
		UserName: "a", PowerCompany: "b", BidDate: "2023-01-01", BidPrice: 0.5,
	}})
	var pe *models.ProcessingError
	assert.ErrorAs(t, err, &pe)
}

func TestProcessEmpty(t *testing.T) {
	out, err := newTestProcessor().Process(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNormaliseText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  a  b  ", "a b"},
		{"a　b", "a b"},
		{"", ""},
		{"single", "single"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normaliseText(tt.in))
	}
}
