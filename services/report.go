package services

import (
	"fmt"
	"io"
	"strings"

	"bid-analytics/models"
)

// Report bundles everything the console printer shows.
type Report struct {
	Summary   *models.Summary
	Trend     *models.TrendLine
	Quarters  []models.Breakdown
	Companies []models.Breakdown
	Latest    []models.ProcessedRecord
	PriceUnit string
}

// BuildReport computes a Report over a processed dataset.
func BuildReport(records []models.ProcessedRecord, priceUnit string, latestN int) *Report {
	return &Report{
		Summary:   Summarize(records),
		Trend:     Trend(records),
		Quarters:  GroupByQuarter(records),
		Companies: GroupByCompany(records),
		Latest:    Latest(records, latestN),
		PriceUnit: priceUnit,
	}
}

// Print writes a human-readable report to w.
func (r *Report) Print(w io.Writer) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  ⚡ ELECTRICITY BID INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	if r.Summary == nil {
		fmt.Fprintf(w, "  No bid data available\n")
		fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
		return
	}
	s := r.Summary

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total bids        : \033[1m%d\033[0m\n", s.TotalRecords)
	fmt.Fprintf(w, "  Distinct bidders  : \033[1m%d\033[0m\n", s.DistinctUsers)
	fmt.Fprintf(w, "  Distinct companies: \033[1m%d\033[0m\n", s.DistinctCompanies)
	fmt.Fprintf(w, "  Date range        : %s → %s\n", s.EarliestDate, s.LatestDate)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Mean price   : \033[1;32m%s\033[0m\n", FormatPrice(s.MeanPrice, r.PriceUnit))
	fmt.Fprintf(w, "  Median price : \033[1;32m%s\033[0m\n", FormatPrice(s.MedianPrice, r.PriceUnit))
	fmt.Fprintf(w, "  Minimum price: \033[1;32m%s\033[0m\n", FormatPrice(s.MinPrice, r.PriceUnit))
	fmt.Fprintf(w, "  Maximum price: \033[1;32m%s\033[0m\n", FormatPrice(s.MaxPrice, r.PriceUnit))
	fmt.Fprintln(w)

	if r.Trend != nil {
		fmt.Fprintf(w, "\033[1;33m  Trend\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		direction := "flat"
		switch {
		case r.Trend.Slope > 0:
			direction = "rising"
		case r.Trend.Slope < 0:
			direction = "falling"
		}
		fmt.Fprintf(w, "  %s %.4f → %s %.4f (%s, %+.5f per bid)\n",
			r.Trend.StartDate, r.Trend.StartValue, r.Trend.EndDate, r.Trend.EndValue, direction, r.Trend.Slope)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  Latest Bids\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for i, b := range r.Latest {
		fmt.Fprintf(w, "  \033[1m%d.\033[0m %-10s %-16s %-14s %s\n",
			i+1, b.BidDateFormatted, truncate(b.UserName, 16), truncate(b.PowerCompany, 14), b.BidPriceFormatted)
	}
	fmt.Fprintln(w)

	printBreakdown(w, "Bids by Quarter", thin, r.Quarters)
	printBreakdown(w, "Bids by Company", thin, r.Companies)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func printBreakdown(w io.Writer, title, thin string, rows []models.Breakdown) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(rows) == 0 {
		fmt.Fprintf(w, "  No data\n\n")
		return
	}
	for _, b := range rows {
		bar := strings.Repeat("█", min(b.Count, 30))
		fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(b.Label, 28), bar, b.Count)
	}
	fmt.Fprintln(w)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
