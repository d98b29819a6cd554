package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"bid-analytics/models"
)

const (
	FieldUserName     = "user_name"
	FieldPowerCompany = "power_company"
	FieldBidDate      = "bid_date"
	FieldBidPrice     = "bid_price"

	MinBidPrice = 0.1
	MaxBidPrice = 2.0

	// MaxRejectedRatio is the share of invalid records a dataset may carry.
	// Anything strictly above it fails the whole load.
	MaxRejectedRatio = 0.2
)

// MinBidTime is the earliest accepted bid date.
var MinBidTime = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

var requiredFields = []string{FieldUserName, FieldPowerCompany, FieldBidDate, FieldBidPrice}

// dateLayouts are tried in order. Layouts without an offset are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// Validator checks raw bid records against the schema and domain ranges.
type Validator struct {
	now func() time.Time
}

// NewValidator creates a Validator. A nil clock means time.Now.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// ValidateRecord turns one raw record into a ValidatedRecord or returns the
// first rule it breaks. Fields are checked in a fixed order.
func (v *Validator) ValidateRecord(raw models.RawRecord) (models.ValidatedRecord, error) {
	var rec models.ValidatedRecord

	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			return rec, &models.MissingFieldError{Field: field}
		}
	}

	userName, err := requireString(raw, FieldUserName)
	if err != nil {
		return rec, err
	}
	company, err := requireString(raw, FieldPowerCompany)
	if err != nil {
		return rec, err
	}

	bidDate, bidTime, err := v.requireDate(raw, FieldBidDate)
	if err != nil {
		return rec, err
	}

	price, ok := coerceNumber(raw[FieldBidPrice])
	if !ok {
		return rec, &models.InvalidNumberError{Field: FieldBidPrice}
	}
	if price < MinBidPrice || price > MaxBidPrice {
		return rec, &models.OutOfRangeError{
			Field: FieldBidPrice,
			Value: price,
			Min:   strconv.FormatFloat(MinBidPrice, 'f', -1, 64),
			Max:   strconv.FormatFloat(MaxBidPrice, 'f', -1, 64),
		}
	}

	return models.ValidatedRecord{
		UserName:     userName,
		PowerCompany: company,
		BidDate:      bidDate,
		BidPrice:     price,
		BidTime:      bidTime,
	}, nil
}

// ValidateDataset resolves the payload shape, validates every record and
// applies the quality gate. Rejections under the gate are returned in the
// report and the accepted records proceed.
func (v *Validator) ValidateDataset(decoded any) ([]models.ValidatedRecord, models.ValidationReport, error) {
	var report models.ValidationReport

	items, err := resolveShape(decoded)
	if err != nil {
		return nil, report, err
	}
	if len(items) == 0 {
		return nil, report, models.ErrEmptyDataset
	}

	report.Total = len(items)
	accepted := make([]models.ValidatedRecord, 0, len(items))
	for i, item := range items {
		// A non-object has none of the required keys.
		raw, _ := item.(map[string]any)
		rec, err := v.ValidateRecord(raw)
		if err != nil {
			report.Rejected = append(report.Rejected, models.RecordRejection{Index: i, Err: err})
			continue
		}
		accepted = append(accepted, rec)
	}
	report.Accepted = len(accepted)

	if float64(len(report.Rejected))/float64(report.Total) > MaxRejectedRatio {
		return nil, report, &models.DataQualityError{Rejected: len(report.Rejected), Total: report.Total}
	}
	if len(accepted) == 0 {
		return nil, report, models.ErrNoValidRecords
	}
	return accepted, report, nil
}

// DecodeDataset parses raw bytes and validates the result.
func (v *Validator) DecodeDataset(data []byte) ([]models.ValidatedRecord, models.ValidationReport, error) {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, models.ValidationReport{}, &models.MalformedDatasetError{Reason: "invalid JSON", Err: err}
	}
	return v.ValidateDataset(decoded)
}

type datasetShape int

const (
	shapeUnknown datasetShape = iota
	shapeArray
	shapeEnvelope
)

func classifyShape(decoded any) datasetShape {
	switch d := decoded.(type) {
	case []any:
		return shapeArray
	case map[string]any:
		if _, ok := d["data"].([]any); ok {
			return shapeEnvelope
		}
	}
	return shapeUnknown
}

func resolveShape(decoded any) ([]any, error) {
	if decoded == nil {
		return nil, models.ErrEmptyDataset
	}
	switch classifyShape(decoded) {
	case shapeArray:
		return decoded.([]any), nil
	case shapeEnvelope:
		return decoded.(map[string]any)["data"].([]any), nil
	default:
		return nil, &models.MalformedDatasetError{Reason: fmt.Sprintf("expected array or {\"data\": [...]}, got %T", decoded)}
	}
}

func requireString(raw models.RawRecord, field string) (string, error) {
	s, ok := raw[field].(string)
	if !ok {
		return "", &models.InvalidStringError{Field: field}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &models.InvalidStringError{Field: field}
	}
	return s, nil
}

func (v *Validator) requireDate(raw models.RawRecord, field string) (string, time.Time, error) {
	s, ok := raw[field].(string)
	if !ok {
		return "", time.Time{}, &models.InvalidDateError{Field: field}
	}
	t, ok := ParseBidDate(s)
	if !ok {
		return "", time.Time{}, &models.InvalidDateError{Field: field}
	}
	now := v.now()
	if t.Before(MinBidTime) || t.After(now) {
		return "", time.Time{}, &models.OutOfRangeError{
			Field: field,
			Value: s,
			Min:   MinBidTime.Format("2006-01-02"),
			Max:   now.UTC().Format(time.RFC3339),
		}
	}
	return s, t, nil
}

// ParseBidDate parses an ISO-8601 style date. Surrounding whitespace is
// ignored for parsing only.
func ParseBidDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// coerceNumber converts a decoded JSON value the way a permissive numeric
// cast does: blank strings and null are zero, booleans are 0/1.
func coerceNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case bool:
		if n {
			f = 1
		}
	case nil:
		f = 0
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
