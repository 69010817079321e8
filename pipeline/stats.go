package pipeline

import (
	"math"
	"slices"

	"github.com/aluiziolira/go-car-prices/models"
	"github.com/shopspring/decimal"
)

// minOutlierSamples is the smallest sequence the IQR filter applies to.
const minOutlierSamples = 4

// RemoveOutliers drops values outside [Q1-1.5*IQR, Q3+1.5*IQR], keeping the
// survivors in input order. Quartiles are read at floor(n*0.25) and
// floor(n*0.75) of the sorted values. Shorter sequences are returned as a
// copy.
func RemoveOutliers(values []float64) []float64 {
	if len(values) < minOutlierSamples {
		return slices.Clone(values)
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	n := len(sorted)
	q1 := sorted[n/4]
	q3 := sorted[n*3/4]
	iqr := q3 - q1
	low, high := q1-1.5*iqr, q3+1.5*iqr

	kept := make([]float64, 0, n)
	for _, v := range values {
		if v >= low && v <= high {
			kept = append(kept, v)
		}
	}
	return kept
}

// ComputeStatistics summarizes values. It returns nil for an empty sequence.
func ComputeStatistics(values []float64) *models.PriceStatistics {
	if len(values) == 0 {
		return nil
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	n := len(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var squares float64
	for _, v := range sorted {
		d := v - mean
		squares += d * d
	}

	return &models.PriceStatistics{
		Count:  n,
		Mean:   round2(mean),
		Median: round2(median),
		Min:    sorted[0],
		Max:    sorted[n-1],
		StdDev: round2(math.Sqrt(squares / float64(n))),
	}
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
