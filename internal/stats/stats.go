// Package stats implements the robust statistics behind a valuation: outlier
// rejection and a confidence label derived from sample dispersion.
package stats

import (
	"math"
	"slices"

	"github.com/carlead/valuation-cli/internal/model"
)

const (
	// madScale converts a MAD into a standard-deviation estimate for
	// normally distributed data (Iglewicz and Hoaglin).
	madScale = 0.6745
	// maxModifiedZ is the retention cutoff for the modified z-score.
	maxModifiedZ = 3.5
	// maxSigma is the cutoff of the fallback filter used when MAD is zero.
	maxSigma = 3.0
	// minOutlierSamples is the smallest sample the filter will judge.
	minOutlierSamples = 3
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += float64(x)
	}
	return sum / float64(len(xs))
}

// Median returns the median without modifying xs.
func Median(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	return medianSorted(toFloat(sorted))
}

// StdDev returns the population standard deviation.
func StdDev(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := Mean(xs)
	var sq float64
	for _, x := range xs {
		d := float64(x) - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}

// RemoveOutliers drops mispriced samples using the modified z-score around
// the median. When the median absolute deviation is zero the z-score is
// undefined, so a 3-sigma filter around the mean is used instead. Fewer than
// three samples are returned unchanged; otherwise the result is sorted
// ascending.
func RemoveOutliers(prices []int) []int {
	if len(prices) < minOutlierSamples {
		return prices
	}

	sorted := slices.Clone(prices)
	slices.Sort(sorted)

	median := medianSorted(toFloat(sorted))
	deviations := make([]float64, len(sorted))
	for i, p := range sorted {
		deviations[i] = math.Abs(float64(p) - median)
	}
	slices.Sort(deviations)
	mad := medianSorted(deviations)

	kept := make([]int, 0, len(sorted))
	if mad == 0 {
		mean := Mean(sorted)
		sd := StdDev(sorted)
		for _, p := range sorted {
			if math.Abs(float64(p)-mean) <= maxSigma*sd {
				kept = append(kept, p)
			}
		}
		return kept
	}

	for _, p := range sorted {
		z := madScale * (float64(p) - median) / mad
		if math.Abs(z) <= maxModifiedZ {
			kept = append(kept, p)
		}
	}
	return kept
}

// Confidence labels a valuation. The coefficient of variation is measured
// against marketValue; the cutoffs are strict.
//
//	high:   n >= 5 and cv < 0.15
//	medium: n >= 3 and cv < 0.25
//	low:    anything else with at least one price
func Confidence(prices []int, marketValue int) model.Confidence {
	if len(prices) == 0 {
		return model.ConfidenceNone
	}
	if marketValue <= 0 {
		return model.ConfidenceLow
	}

	cv := StdDev(prices) / float64(marketValue)
	switch {
	case len(prices) >= 5 && cv < 0.15:
		return model.ConfidenceHigh
	case len(prices) >= 3 && cv < 0.25:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func medianSorted(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return xs[n/2]
	}
	return (xs[n/2-1] + xs[n/2]) / 2
}

func toFloat(xs []int) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}
