package services

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"bid-analytics/models"
)

// DefaultLatestCount is used by Latest when no positive count is given.
const DefaultLatestCount = 10

// Latest returns up to n records, newest first. n <= 0 means DefaultLatestCount.
func Latest(records []models.ProcessedRecord, n int) []models.ProcessedRecord {
	if n <= 0 {
		n = DefaultLatestCount
	}
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b models.ProcessedRecord) int {
		return b.BidTime.Compare(a.BidTime)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		return []models.ProcessedRecord{}
	}
	return sorted
}

// Filter keeps records matching every predicate set in f. Name and company
// predicates are case-insensitive substring matches.
func Filter(records []models.ProcessedRecord, f models.Filter) []models.ProcessedRecord {
	f.UserName = strings.ToLower(f.UserName)
	f.PowerCompany = strings.ToLower(f.PowerCompany)
	out := make([]models.ProcessedRecord, 0, len(records))
	for _, r := range records {
		if matches(r, f) {
			out = append(out, r)
		}
	}
	return out
}

// matches expects the substring predicates already lower-cased.
func matches(r models.ProcessedRecord, f models.Filter) bool {
	if f.StartDate != nil && r.BidTime.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && r.BidTime.After(*f.EndDate) {
		return false
	}
	if f.MinPrice != nil && r.BidPrice < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && r.BidPrice > *f.MaxPrice {
		return false
	}
	if f.UserName != "" && !strings.Contains(strings.ToLower(r.UserName), f.UserName) {
		return false
	}
	if f.PowerCompany != "" && !strings.Contains(strings.ToLower(r.PowerCompany), f.PowerCompany) {
		return false
	}
	return true
}

// Summarize computes aggregate statistics. It returns nil for an empty dataset.
func Summarize(records []models.ProcessedRecord) *models.Summary {
	if len(records) == 0 {
		return nil
	}

	s := &models.Summary{
		TotalRecords: len(records),
		MinPrice:     records[0].BidPrice,
		MaxPrice:     records[0].BidPrice,
	}

	prices := make([]float64, 0, len(records))
	users := make(map[string]struct{})
	companies := make(map[string]struct{})
	earliest, latest := records[0], records[0]
	var total float64

	for _, r := range records {
		prices = append(prices, r.BidPrice)
		total += r.BidPrice
		s.MinPrice = min(s.MinPrice, r.BidPrice)
		s.MaxPrice = max(s.MaxPrice, r.BidPrice)
		users[r.UserName] = struct{}{}
		companies[r.PowerCompany] = struct{}{}
		if r.BidTime.Before(earliest.BidTime) {
			earliest = r
		}
		if r.BidTime.After(latest.BidTime) {
			latest = r
		}
	}

	s.MeanPrice = total / float64(len(records))
	s.MedianPrice = median(prices)
	s.EarliestDate = earliest.BidDate
	s.LatestDate = latest.BidDate
	s.DistinctUsers = len(users)
	s.DistinctCompanies = len(companies)
	return s
}

func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// GroupByQuarter counts records per year and quarter, in chronological order.
func GroupByQuarter(records []models.ProcessedRecord) []models.Breakdown {
	type key struct {
		year    int
		quarter string
	}
	counts := make(map[key]int)
	for _, r := range records {
		counts[key{r.Year, r.Quarter}]++
	}

	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b key) int {
		if c := cmp.Compare(a.year, b.year); c != 0 {
			return c
		}
		return cmp.Compare(a.quarter, b.quarter)
	})

	out := make([]models.Breakdown, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.Breakdown{Label: formatQuarter(k.year, k.quarter), Count: counts[k]})
	}
	return out
}

// GroupByCompany counts records per power company, largest first.
func GroupByCompany(records []models.ProcessedRecord) []models.Breakdown {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.PowerCompany]++
	}
	out := make([]models.Breakdown, 0, len(counts))
	for company, n := range counts {
		out = append(out, models.Breakdown{Label: company, Count: n})
	}
	slices.SortFunc(out, func(a, b models.Breakdown) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Label, b.Label)
	})
	return out
}

func formatQuarter(year int, quarter string) string {
	return fmt.Sprintf("%d-%s", year, quarter)
}
