package risk

import "math"

// MinHistorySamples is the smallest sample the comparator will judge against
const MinHistorySamples = 11

// HistorySampleSize caps the population fetched for comparison
const HistorySampleSize = 100

// Anomaly cutoffs: either tail at 5% or beyond two standard deviations
const (
	anomalyUpperPercentile = 95.0
	anomalyLowerPercentile = 5.0
	anomalyZScore          = 2.0
)

// NeutralComparison is returned when the sample is too small or unusable
func NeutralComparison(sampleSize int) HistoricalComparison {
	return HistoricalComparison{Percentile: 50, SampleSize: sampleSize}
}

// Compare ranks score within sample. It never fails; bad input yields the neutral result.
func Compare(score float64, sample []float64) HistoricalComparison {
	n := len(sample)
	if n < MinHistorySamples || math.IsNaN(score) || math.IsInf(score, 0) {
		return NeutralComparison(n)
	}

	var below, equal int
	var sum float64
	for _, v := range sample {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NeutralComparison(n)
		}
		sum += v
		switch {
		case v < score:
			below++
		case v == score:
			equal++
		}
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range sample {
		d := v - mean
		sq += d * d
	}
	stdDev := math.Sqrt(sq / float64(n))

	percentile := (float64(below) + 0.5*float64(equal)) / float64(n) * 100
	z := 0.0
	if stdDev > 0 {
		z = (score - mean) / stdDev
	}

	return HistoricalComparison{
		Percentile: round2(percentile),
		ZScore:     round2(z),
		Mean:       round2(mean),
		StdDev:     round2(stdDev),
		SampleSize: n,
		Sufficient: true,
		IsAnomaly:  percentile >= anomalyUpperPercentile || percentile <= anomalyLowerPercentile || math.Abs(z) > anomalyZScore,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
