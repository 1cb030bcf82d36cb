package count

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryGolden(t *testing.T) {
	r := &Result{
		VideoSource:                  "/videos/flock.mp4",
		UniqueEntities:               2,
		TotalDetections:              3,
		TrackIDs:                     []int64{1, 2},
		DetectionsByClass:            map[string]int{"bird": 3},
		UniqueEntitiesByPrimaryClass: map[string]int{"bird": 2},
	}

	want := strings.Join([]string{
		"Bird Count Summary",
		"==================================================",
		"Video: /videos/flock.mp4",
		"Unique entities detected: 2",
		"Total detections across all frames: 3",
		"Total detections by class:",
		"  - bird: 3",
		"Unique entities by primary class:",
		"  - bird: 2",
		"Track IDs: 1, 2",
		"",
	}, "\n")

	if diff := cmp.Diff(want, Summary("Bird", r, nil)); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestSummaryGoldenWithComparison(t *testing.T) {
	r := &Result{
		VideoSource:                  "/videos/herd.mp4",
		UniqueEntities:               3,
		TotalDetections:              150,
		TrackIDs:                     []int64{2, 5, 9},
		DetectionsByClass:            map[string]int{"cow": 100, "sheep": 50},
		UniqueEntitiesByPrimaryClass: map[string]int{"cow": 2, "sheep": 1},
	}
	prior := PriorRun{Label: "a1b2c3", Result: &Result{
		VideoSource:                  "/videos/herd.mp4",
		UniqueEntities:               3,
		TotalDetections:              120,
		UniqueEntitiesByPrimaryClass: map[string]int{"cow": 3},
	}}

	got := Summary("Livestock", r, Compare(r, []PriorRun{prior}))

	want := strings.Join([]string{
		"Livestock Count Summary",
		"==================================================",
		"Video: /videos/herd.mp4",
		"Unique entities detected: 3",
		"Total detections across all frames: 150",
		"Total detections by class:",
		"  - cow: 100",
		"  - sheep: 50",
		"Unique entities by primary class:",
		"  - cow: 2",
		"  - sheep: 1",
		"==================================================",
		"Comparison with Previous Runs",
		"==================================================",
		"Unique entities comparison:",
		"  Current: 3",
		"  a1b2c3: 3 (no change)",
		"Total detections comparison:",
		"  Current: 150",
		"  a1b2c3: 120 (+30)",
		"Primary class comparison:",
		"  cow:",
		"    Current: 2",
		"    a1b2c3: 3 (-1)",
		"  sheep:",
		"    Current: 1",
		"    a1b2c3: 0 (+1)",
		"Track IDs: 2, 5, 9",
		"",
	}, "\n")

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestSummaryEmptyResult(t *testing.T) {
	got := Summary("Bird", NewAggregator("none.mp4").Finalize(), nil)

	assert.Contains(t, got, "Unique entities detected: 0")
	assert.Contains(t, got, "Track IDs: \n")
	assert.NotContains(t, got, "Comparison with Previous Runs")
}

func TestSummaryClassOrderingDeterministic(t *testing.T) {
	// Descending count, then name: ties never depend on map order.
	r := &Result{
		VideoSource:                  "v.mp4",
		DetectionsByClass:            map[string]int{"sheep": 4, "cow": 4, "horse": 9},
		UniqueEntitiesByPrimaryClass: map[string]int{},
	}

	got := Summary("Livestock", r, nil)
	horse := strings.Index(got, "- horse: 9")
	cow := strings.Index(got, "- cow: 4")
	sheep := strings.Index(got, "- sheep: 4")
	require.True(t, horse >= 0 && cow >= 0 && sheep >= 0)
	assert.Less(t, horse, cow)
	assert.Less(t, cow, sheep)
}
