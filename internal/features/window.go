package features

import "math"

// LagAt returns the value exactly k periods before index t on a dense grid
// column, or def when t-k precedes the start of the entity's history.
func LagAt(column []float64, t, k int, def float64) float64 {
	idx := t - k
	if idx < 0 || idx >= len(column) {
		return def
	}
	return column[idx]
}

// Lag returns the whole column shifted by k periods, filling the leading
// positions with def.
func Lag(column []float64, k int, def float64) []float64 {
	out := make([]float64, len(column))
	for t := range column {
		out[t] = LagAt(column, t, k, def)
	}
	return out
}

// MovingAverageAt returns the trailing mean of up to w periods ending at and
// including index t. Short histories degrade gracefully: at the very first
// period the window is 1, and it never reaches past the grid start.
func MovingAverageAt(column []float64, t, w int) float64 {
	if t < 0 || t >= len(column) || w <= 0 {
		return 0
	}
	start := t - w + 1
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for i := start; i <= t; i++ {
		sum += column[i]
	}
	return sum / float64(t-start+1)
}

// MovingAverage computes the trailing mean for every grid position.
func MovingAverage(column []float64, w int) []float64 {
	out := make([]float64, len(column))
	for t := range column {
		out[t] = MovingAverageAt(column, t, w)
	}
	return out
}

// Mean returns the arithmetic mean of the column, 0 for an empty column.
func Mean(column []float64) float64 {
	if len(column) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range column {
		sum += v
	}
	return sum / float64(len(column))
}

// StdDev returns the sample standard deviation of the column. Degenerate
// series (fewer than two points, or zero variance) yield 0, never NaN.
func StdDev(column []float64) float64 {
	if len(column) < 2 {
		return 0
	}
	mean := Mean(column)
	sumSq := 0.0
	for _, v := range column {
		d := v - mean
		sumSq += d * d
	}
	variance := sumSq / float64(len(column)-1)
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}
