package weather

import "math"

// PercentBelowThreshold returns the share (0-100) of non-missing values
// strictly below threshold. NaN marks a missing value. With no
// non-missing values the result is NaN.
func PercentBelowThreshold(values []float64, threshold float64) float64 {
	var below, present int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		present++
		if v < threshold {
			below++
		}
	}
	if present == 0 {
		return math.NaN()
	}
	return float64(below) * 100 / float64(present)
}
