package report

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/animal.report/internal/count"
	"github.com/banshee-data/animal.report/internal/fsutil"
)

func testResult() *count.Result {
	return &count.Result{
		VideoSource:                  "/videos/pasture.mp4",
		UniqueEntities:               2,
		TotalDetections:              5,
		TrackIDs:                     []int64{3, 9},
		DetectionsByClass:            map[string]int{"cow": 3, "sheep": 2},
		UniqueEntitiesByPrimaryClass: map[string]int{"cow": 1, "sheep": 1},
		TrackClassAssignments: map[int64]count.ClassAssignment{
			3: {PrimaryClass: "cow", AllClasses: map[string]int{"cow": 3}},
			9: {PrimaryClass: "sheep", AllClasses: map[string]int{"sheep": 2}},
		},
		FrameCounts: []int{1, 2, 2},
	}
}

func TestWriterWritesAllArtifacts(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	w := NewWriter(mfs)

	result := testResult()
	summary := "Livestock Count Summary\n"

	err := w.Write("/results/run1", result, nil, summary)
	require.NoError(t, err)

	text, err := mfs.ReadFile(filepath.Join("/results/run1", SummaryTextFile))
	require.NoError(t, err)
	assert.Equal(t, summary, string(text))

	data, err := mfs.ReadFile(filepath.Join("/results/run1", SummaryJSONFile))
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, result.VideoSource, doc.Result.VideoSource)
	assert.Equal(t, result.UniqueEntities, doc.Result.UniqueEntities)
	assert.Equal(t, result.DetectionsByClass, doc.Result.DetectionsByClass)
	assert.Nil(t, doc.Comparison)
}

func TestWriterIncludesComparison(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	w := NewWriter(mfs)

	result := testResult()
	prior := &count.Result{
		VideoSource:     result.VideoSource,
		UniqueEntities:  1,
		TotalDetections: 2,
	}
	comparison := count.Compare(result, []count.PriorRun{{Label: "Previous run", Result: prior}})
	require.NotNil(t, comparison)

	err := w.Write("/results/run2", result, comparison, "summary\n")
	require.NoError(t, err)

	data, err := mfs.ReadFile(filepath.Join("/results/run2", SummaryJSONFile))
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.NotNil(t, doc.Comparison)
	require.Len(t, doc.Comparison.UniqueEntities, 1)
	assert.Equal(t, 1, doc.Comparison.UniqueEntities[0].Delta)
}

func TestWriterRendersFramePlot(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	w := NewWriter(mfs)

	err := w.Write("/results/run3", testResult(), nil, "summary\n")
	require.NoError(t, err)

	png, err := mfs.ReadFile(filepath.Join("/results/run3", FramePlotFile))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")), "expected PNG magic header")
}

func TestWriterSkipsPlotWithoutFrames(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	w := NewWriter(mfs)

	result := testResult()
	result.FrameCounts = nil

	err := w.Write("/results/run4", result, nil, "summary\n")
	require.NoError(t, err)

	assert.True(t, mfs.Exists(filepath.Join("/results/run4", SummaryTextFile)))
	assert.False(t, mfs.Exists(filepath.Join("/results/run4", FramePlotFile)))
}
