package services

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"bid-analytics/models"
	"bid-analytics/utils"
)

// DefaultPriceUnit is appended to formatted prices when none is configured.
const DefaultPriceUnit = "元/kWh"

const priceDecimals = 3

// Processor sorts, cleans and enriches validated bids.
type Processor struct {
	logger    *utils.Logger
	priceUnit string
}

// NewProcessor creates a Processor. An empty unit uses DefaultPriceUnit.
func NewProcessor(logger *utils.Logger, priceUnit string) *Processor {
	if priceUnit == "" {
		priceUnit = DefaultPriceUnit
	}
	return &Processor{logger: logger, priceUnit: priceUnit}
}

// Process returns a new, date-ordered slice of enriched records. The input
// is never modified. Ties keep their input order.
func (p *Processor) Process(validated []models.ValidatedRecord) (out []models.ProcessedRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &models.ProcessingError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	sorted := slices.Clone(validated)
	slices.SortStableFunc(sorted, func(a, b models.ValidatedRecord) int {
		return a.BidTime.Compare(b.BidTime)
	})

	out = make([]models.ProcessedRecord, 0, len(sorted))
	for i, rec := range sorted {
		if rec.BidTime.IsZero() {
			return nil, &models.ProcessingError{Err: fmt.Errorf("record %d has no parsed bid date", i)}
		}
		out = append(out, p.enrich(p.clean(rec), i+1))
	}

	p.logger.Debug("[processor] Processed %d records", len(out))
	return out, nil
}

// Reprocess runs Process over records that were already enriched, dropping
// the derived fields first. BidTime is re-read from BidDate so records that
// went through storage keep the offset they were written with.
func (p *Processor) Reprocess(records []models.ProcessedRecord) ([]models.ProcessedRecord, error) {
	validated := make([]models.ValidatedRecord, len(records))
	for i, r := range records {
		validated[i] = r.ValidatedRecord
		if t, ok := ParseBidDate(r.BidDate); ok {
			validated[i].BidTime = t
		}
	}
	return p.Process(validated)
}

func (p *Processor) clean(rec models.ValidatedRecord) models.ValidatedRecord {
	rec.UserName = normaliseText(rec.UserName)
	rec.PowerCompany = normaliseText(rec.PowerCompany)
	rec.BidPrice = RoundPrice(rec.BidPrice)
	return rec
}

func (p *Processor) enrich(rec models.ValidatedRecord, id int) models.ProcessedRecord {
	t := rec.BidTime
	month := int(t.Month())
	return models.ProcessedRecord{
		ValidatedRecord:   rec,
		ID:                id,
		BidDateFormatted:  t.Format("2006/01/02"),
		BidPriceFormatted: FormatPrice(rec.BidPrice, p.priceUnit),
		Quarter:           fmt.Sprintf("Q%d", (month+2)/3),
		Month:             month,
		Year:              t.Year(),
	}
}

// RoundPrice rounds to three decimals, halves away from zero.
func RoundPrice(price float64) float64 {
	f, _ := decimal.NewFromFloat(price).Round(priceDecimals).Float64()
	return f
}

// FormatPrice renders a price with three decimals followed by unit.
func FormatPrice(price float64, unit string) string {
	s := decimal.NewFromFloat(price).StringFixed(priceDecimals)
	if unit == "" {
		return s
	}
	return s + " " + unit
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
