package report

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/animal.report/internal/count"
)

// writeFramePlot renders the detections-per-frame series as a PNG line
// chart. Runs with no frames produce no plot file.
func (w *Writer) writeFramePlot(outDir string, result *count.Result) error {
	if len(result.FrameCounts) == 0 {
		return nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Detections Per Frame: %s", filepath.Base(result.VideoSource))
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Detections"

	pts := make(plotter.XYs, 0, len(result.FrameCounts))
	for i, n := range result.FrameCounts {
		pts = append(pts, plotter.XY{X: float64(i), Y: float64(n)})
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to build frame plot line: %w", err)
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("detections", line)

	// Render through an io.WriterTo so the plot goes through the same
	// FileSystem as the other artifacts.
	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render frame plot: %w", err)
	}

	plotPath := filepath.Join(outDir, FramePlotFile)
	f, err := w.fs.Create(plotPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", plotPath, err)
	}

	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", plotPath, err)
	}

	return f.Close()
}
