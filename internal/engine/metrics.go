package engine

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// computeMetrics summarizes a per-trial loss vector. The quantiles use
// linear interpolation over the sorted sample; std_dev is the population
// standard deviation.
func computeMetrics(losses []float64) Metrics {
	if len(losses) == 0 {
		return Metrics{}
	}
	sorted := append([]float64(nil), losses...)
	sort.Float64s(sorted)

	return Metrics{
		EAL:    stat.Mean(sorted, nil),
		VaR95:  stat.Quantile(0.95, stat.LinInterp, sorted, nil),
		VaR99:  stat.Quantile(0.99, stat.LinInterp, sorted, nil),
		VaR999: stat.Quantile(0.999, stat.LinInterp, sorted, nil),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		StdDev: stat.PopStdDev(sorted, nil),
	}
}

// histogram buckets losses into a fixed number of equal-width bins and
// returns the bin edges (len bins+1) alongside the counts. A degenerate
// sample (min==max) gets a unit-width bin centred on the value.
func histogram(losses []float64, bins int) ([]float64, []int) {
	if len(losses) == 0 || bins <= 0 {
		return nil, nil
	}
	lo, hi := losses[0], losses[0]
	for _, v := range losses {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	width := (hi - lo) / float64(bins)
	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi

	counts := make([]int, bins)
	for _, v := range losses {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1 // the max lands in the last (closed) bin
		}
		if idx < 0 {
			idx = 0
		}
		counts[idx]++
	}
	return edges, counts
}

// buildDistribution assembles the exported distribution, truncating the raw
// sample export at limit entries.
func buildDistribution(losses []float64, limit int) Distribution {
	edges, counts := histogram(losses, histogramBins)
	raw := losses
	if len(raw) > limit {
		raw = raw[:limit]
	}
	return Distribution{
		Bins:        edges,
		Frequencies: counts,
		RawData:     append([]float64(nil), raw...),
	}
}
