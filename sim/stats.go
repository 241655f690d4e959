package sim

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Small statistics helpers shared across the engine. All of them tolerate
// short inputs: callers decide what "not enough data" means.

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func quantile(p float64, xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

func minMax(xs []float64) (lo, hi float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

// iqrFilter drops values outside [Q1 - 1.5*IQR, Q3 + 1.5*IQR]. Inputs with
// fewer than minSamples values pass through untouched; if filtering would
// leave fewer than two values, the original slice is returned.
func iqrFilter(xs []float64, minSamples int) []float64 {
	if len(xs) < minSamples {
		return xs
	}
	q1 := quantile(0.25, xs)
	q3 := quantile(0.75, xs)
	iqr := q3 - q1
	lo := q1 - 1.5*iqr
	hi := q3 + 1.5*iqr
	kept := make([]float64, 0, len(xs))
	for _, x := range xs {
		if x >= lo && x <= hi {
			kept = append(kept, x)
		}
	}
	if len(kept) < 2 {
		return xs
	}
	return kept
}

// linearFit returns intercept and slope of the least-squares line y = a + b*x.
func linearFit(xs, ys []float64) (alpha, beta float64) {
	return stat.LinearRegression(xs, ys, nil, false)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clamp01(x float64) float64 {
	return clamp(x, 0, 1)
}

// powInt is math.Pow with a fast path for the common exponent 1.
func powInt(base, exp float64) float64 {
	if exp == 1 {
		return base
	}
	return math.Pow(base, exp)
}
