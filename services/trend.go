package services

import "bid-analytics/models"

// Trend fits an ordinary least-squares line of price over ordinal position
// and returns its value at the first and last positions. Records are
// expected in ascending date order. A single record yields a flat segment;
// an empty dataset yields nil.
func Trend(records []models.ProcessedRecord) *models.TrendLine {
	n := len(records)
	if n == 0 {
		return nil
	}

	first, last := records[0], records[n-1]
	if n == 1 {
		return &models.TrendLine{
			StartDate:  first.BidDate,
			EndDate:    last.BidDate,
			StartValue: first.BidPrice,
			EndValue:   first.BidPrice,
			Intercept:  first.BidPrice,
		}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, r := range records {
		x := float64(i)
		sumX += x
		sumY += r.BidPrice
		sumXY += x * r.BidPrice
		sumXX += x * x
	}

	fn := float64(n)
	slope := (fn*sumXY - sumX*sumY) / (fn*sumXX - sumX*sumX)
	intercept := (sumY - slope*sumX) / fn

	return &models.TrendLine{
		StartDate:  first.BidDate,
		EndDate:    last.BidDate,
		StartValue: intercept,
		EndValue:   slope*float64(n-1) + intercept,
		Slope:      slope,
		Intercept:  intercept,
	}
}

// ColorPositions maps each record's position to [0, 1] for a temporal
// gradient. A single record maps to 0.
func ColorPositions(records []models.ProcessedRecord) []float64 {
	out := make([]float64, len(records))
	if len(records) <= 1 {
		return out
	}
	last := float64(len(records) - 1)
	for i := range records {
		out[i] = float64(i) / last
	}
	return out
}
