package analysis

import "math"

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// slope is the least-squares slope of xs over their indices 0..n-1.
func slope(xs []float64) float64 {
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	// Index mean is (n-1)/2; index variance is (n^2-1)/12.
	mi := (n - 1) / 2
	mx := mean(xs)
	var cov float64
	for i, x := range xs {
		cov += (float64(i) - mi) * (x - mx)
	}
	varI := n * (n*n - 1) / 12
	if varI == 0 {
		return 0
	}
	return cov / varI
}
