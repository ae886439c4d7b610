package statistics

import (
	"math"
	"math/rand"
	"sort"
)

// ConfidenceInterval holds the result of a bootstrap confidence interval computation.
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Mean            float64 `json:"mean"`
	ConfidenceLevel float64 `json:"confidence_level"`
	NumBootstraps   int     `json:"num_bootstraps"`
}

// DefaultBootstrapIterations is the number of bootstrap resamples.
const DefaultBootstrapIterations = 2000

// DefaultSeed keeps aggregation reproducible for identical inputs.
const DefaultSeed int64 = 20240501

// MeanCI computes a percentile bootstrap interval for the mean of values at
// confidenceLevel, e.g. 0.95. Fewer than 2 values yield a degenerate interval
// at the mean.
func MeanCI(values []float64, confidenceLevel float64, seed int64) ConfidenceInterval {
	return bootstrap(values, confidenceLevel, seed, DefaultBootstrapIterations)
}

// ProportionCI computes a bootstrap interval for a success proportion of
// successes out of n trials. n == 0 yields the zero interval.
func ProportionCI(successes, n int, confidenceLevel float64, seed int64) ConfidenceInterval {
	if n <= 0 {
		return ConfidenceInterval{ConfidenceLevel: confidenceLevel}
	}
	scores := make([]float64, n)
	for i := 0; i < successes && i < n; i++ {
		scores[i] = 1
	}
	return bootstrap(scores, confidenceLevel, seed, DefaultBootstrapIterations)
}

func bootstrap(scores []float64, confidenceLevel float64, seed int64, iters int) ConfidenceInterval {
	n := len(scores)
	if n < 2 {
		m := mean(scores)
		return ConfidenceInterval{
			Lower:           m,
			Upper:           m,
			Mean:            m,
			ConfidenceLevel: confidenceLevel,
		}
	}

	rng := rand.New(rand.NewSource(seed))
	m := mean(scores)

	// Resample with replacement, keep the mean of each resample
	bootMeans := make([]float64, iters)
	sample := make([]float64, n)
	for i := 0; i < iters; i++ {
		for j := 0; j < n; j++ {
			sample[j] = scores[rng.Intn(n)]
		}
		bootMeans[i] = mean(sample)
	}

	sort.Float64s(bootMeans)

	// Percentile method
	alpha := 1.0 - confidenceLevel
	loIdx := int(math.Floor(alpha / 2.0 * float64(iters)))
	hiIdx := int(math.Floor((1.0 - alpha/2.0) * float64(iters)))
	if hiIdx >= iters {
		hiIdx = iters - 1
	}

	return ConfidenceInterval{
		Lower:           bootMeans[loIdx],
		Upper:           bootMeans[hiIdx],
		Mean:            m,
		ConfidenceLevel: confidenceLevel,
		NumBootstraps:   iters,
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
