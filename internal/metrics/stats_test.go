package metrics

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		expect float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5.0}, 5.0},
		{"multiple", []float64{1, 2, 3, 4, 5}, 3.0},
		{"all_same", []float64{7, 7, 7}, 7.0},
		{"negative", []float64{-2, 0, 2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Mean(tt.input)
			if !approxEqual(got, tt.expect) {
				t.Errorf("Mean(%v) = %f, want %f", tt.input, got, tt.expect)
			}
		})
	}
}

func TestVariance(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		expect float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5.0}, 0},
		{"uniform", []float64{3, 3, 3}, 0},
		{"simple", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 4.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Variance(tt.input)
			if !approxEqual(got, tt.expect) {
				t.Errorf("Variance(%v) = %f, want %f", tt.input, got, tt.expect)
			}
		})
	}
}

func TestStdDev(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		expect float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5.0}, 0},
		{"simple", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StdDev(tt.input)
			if !approxEqual(got, tt.expect) {
				t.Errorf("StdDev(%v) = %f, want %f", tt.input, got, tt.expect)
			}
		})
	}
}

func TestMinMax(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		wantLo float64
		wantHi float64
	}{
		{"empty", nil, 0, 0},
		{"single", []float64{5.0}, 5.0, 5.0},
		{"mixed", []float64{3, -1, 8, 2}, -1, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := MinMax(tt.input)
			if !approxEqual(lo, tt.wantLo) || !approxEqual(hi, tt.wantHi) {
				t.Errorf("MinMax(%v) = (%f, %f), want (%f, %f)", tt.input, lo, hi, tt.wantLo, tt.wantHi)
			}
		})
	}
}

func TestHistogram(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		lo, hi     float64
		n          int
		wantCounts []int
	}{
		{"ratings one to five", []float64{1, 2, 2, 3, 5, 5}, 1, 5, 4, []int{1, 2, 1, 2}},
		{"upper bound lands in last bin", []float64{10}, 0, 10, 5, []int{0, 0, 0, 0, 1}},
		{"out of range ignored", []float64{-1, 0, 11}, 0, 10, 2, []int{1, 0}},
		{"degenerate range", []float64{3, 3, 3}, 3, 3, 5, []int{3}},
		{"no bins", []float64{1}, 0, 1, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bins := Histogram(tt.values, tt.lo, tt.hi, tt.n)
			if len(bins) != len(tt.wantCounts) {
				t.Fatalf("Histogram returned %d bins, want %d", len(bins), len(tt.wantCounts))
			}
			for i, b := range bins {
				if b.Count != tt.wantCounts[i] {
					t.Errorf("bin %d [%f, %f) count = %d, want %d", i, b.Lower, b.Upper, b.Count, tt.wantCounts[i])
				}
			}
		})
	}
}
