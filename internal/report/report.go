// Package report writes the per-run artifact files into an analysis
// run's output directory: a machine-readable JSON document, the plain
// text summary, and a detections-per-frame chart.
package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/animal.report/internal/count"
	"github.com/banshee-data/animal.report/internal/fsutil"
)

// Artifact filenames written into the run output directory.
const (
	SummaryJSONFile = "count_summary.json"
	SummaryTextFile = "count_summary.txt"
	FramePlotFile   = "detections_per_frame.png"
)

// Document is the JSON artifact persisted alongside the engine output.
type Document struct {
	Result     *count.Result     `json:"result"`
	Comparison *count.Comparison `json:"comparison,omitempty"`
}

// Writer persists run artifacts through a FileSystem so tests can run
// against an in-memory filesystem.
type Writer struct {
	fs fsutil.FileSystem
}

// NewWriter returns a Writer backed by the given filesystem.
func NewWriter(fs fsutil.FileSystem) *Writer {
	return &Writer{fs: fs}
}

// Write stores all artifacts for a finished run in outDir. The text
// summary is written exactly as rendered; the JSON document carries the
// full aggregation result plus the comparison when prior runs existed.
func (w *Writer) Write(outDir string, result *count.Result, comparison *count.Comparison, summary string) error {
	if err := w.fs.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outDir, err)
	}

	doc := Document{Result: result, Comparison: comparison}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal count summary: %w", err)
	}

	jsonPath := filepath.Join(outDir, SummaryJSONFile)
	if err := w.fs.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", jsonPath, err)
	}

	textPath := filepath.Join(outDir, SummaryTextFile)
	if err := w.fs.WriteFile(textPath, []byte(summary), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", textPath, err)
	}

	if err := w.writeFramePlot(outDir, result); err != nil {
		return err
	}

	return nil
}
