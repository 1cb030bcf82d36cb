package count

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// FrameStats summarizes how many detections each frame carried. Purely
// informational; counting logic never depends on it.
type FrameStats struct {
	Frames       int     `json:"frames"`
	MeanPerFrame float64 `json:"mean_per_frame"`
	MaxPerFrame  int     `json:"max_per_frame"`
	P50PerFrame  float64 `json:"p50_per_frame"`
	P85PerFrame  float64 `json:"p85_per_frame"`
}

func computeFrameStats(frameCounts []int) FrameStats {
	fs := FrameStats{Frames: len(frameCounts)}
	if len(frameCounts) == 0 {
		return fs
	}

	values := make([]float64, len(frameCounts))
	for i, n := range frameCounts {
		values[i] = float64(n)
		if n > fs.MaxPerFrame {
			fs.MaxPerFrame = n
		}
	}
	fs.MeanPerFrame = stat.Mean(values, nil)

	sort.Float64s(values)
	fs.P50PerFrame = stat.Quantile(0.50, stat.Empirical, values, nil)
	fs.P85PerFrame = stat.Quantile(0.85, stat.Empirical, values, nil)
	return fs
}
