package metrics

import "math"

// Mean computes the arithmetic mean of a float64 slice.
// Returns 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance computes the population variance of a float64 slice.
// Returns 0 for empty input.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return sumSq / float64(len(values))
}

// StdDev computes the population standard deviation.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// MinMax returns the smallest and largest value. Returns (0, 0) for empty input.
func MinMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Bin is one equal-width histogram bin.
type Bin struct {
	Lower float64
	Upper float64
	Count int
}

// Histogram splits [lo, hi] into n equal-width bins and counts the values
// that fall inside. Bins are half-open except the last, which includes hi.
// Values outside [lo, hi] are ignored. A degenerate range (lo == hi) yields a
// single bin.
func Histogram(values []float64, lo, hi float64, n int) []Bin {
	if n <= 0 || hi < lo {
		return nil
	}
	if hi == lo {
		n = 1
	}
	width := (hi - lo) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lower = lo + float64(i)*width
		bins[i].Upper = lo + float64(i+1)*width
	}
	bins[n-1].Upper = hi

	for _, v := range values {
		if v < lo || v > hi {
			continue
		}
		idx := n - 1
		if width > 0 {
			idx = int((v - lo) / width)
			if idx >= n {
				idx = n - 1
			}
		}
		bins[idx].Count++
	}
	return bins
}
