package models

import "time"

// RawRecord is one undecoded bid object as it arrived in the payload.
// Nothing about its keys or value types is guaranteed.
type RawRecord = map[string]any

// ValidatedRecord is a bid that passed field presence, type and range checks.
type ValidatedRecord struct {
	UserName     string  `json:"user_name"`
	PowerCompany string  `json:"power_company"`
	BidDate      string  `json:"bid_date"`
	BidPrice     float64 `json:"bid_price"`

	// BidTime is the parsed form of BidDate. BidDate keeps the original text.
	BidTime time.Time `json:"-"`
}

// ProcessedRecord is a ValidatedRecord enriched with display and grouping
// fields. Every derived field is a function of BidDate/BidPrice.
type ProcessedRecord struct {
	ValidatedRecord

	ID                int    `json:"id"`
	BidDateFormatted  string `json:"bid_date_formatted"`
	BidPriceFormatted string `json:"bid_price_formatted"`
	Quarter           string `json:"quarter"`
	Month             int    `json:"month"`
	Year              int    `json:"year"`
}

// Summary holds aggregate statistics over a processed dataset.
type Summary struct {
	TotalRecords      int     `json:"total_records"`
	MinPrice          float64 `json:"min_price"`
	MaxPrice          float64 `json:"max_price"`
	MeanPrice         float64 `json:"mean_price"`
	MedianPrice       float64 `json:"median_price"`
	EarliestDate      string  `json:"earliest_date"`
	LatestDate        string  `json:"latest_date"`
	DistinctUsers     int     `json:"distinct_users"`
	DistinctCompanies int     `json:"distinct_companies"`
}

// TrendLine is the two-point segment of a least-squares fit of price over
// ordinal position.
type TrendLine struct {
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	StartValue float64 `json:"start_value"`
	EndValue   float64 `json:"end_value"`
	Slope      float64 `json:"slope"`
	Intercept  float64 `json:"intercept"`
}

// Filter is a conjunction of optional predicates. A nil bound or an empty
// substring is not applied.
type Filter struct {
	StartDate    *time.Time
	EndDate      *time.Time
	MinPrice     *float64
	MaxPrice     *float64
	UserName     string
	PowerCompany string
}

// Breakdown is a labelled record count, used for quarter and company groupings.
type Breakdown struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// RecordRejection ties a validation failure to the position of the raw record.
type RecordRejection struct {
	Index int
	Err   error
}

// ValidationReport describes one dataset validation pass.
type ValidationReport struct {
	Total    int
	Accepted int
	Rejected []RecordRejection
}

// CacheInfo lists what a loader currently has cached.
type CacheInfo struct {
	Count int      `json:"count"`
	Keys  []string `json:"keys"`
}
