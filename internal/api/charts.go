package api

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/animal.report/internal/db"
	"github.com/banshee-data/animal.report/internal/httputil"
)

// renderClassChart renders a bar chart (HTML) of per-class unique-entity
// counts for one run and every prior run of the same video source.
func (s *Server) renderClassChart(w http.ResponseWriter, rec *db.Record) {
	priors, err := s.store.PriorRuns(rec.VideoSource, rec.ResultID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load prior runs: %v", err))
		return
	}

	runs := append(priors, rec)

	// Union of classes across all runs keeps the x-axis stable.
	classSet := make(map[string]bool)
	for _, run := range runs {
		for class := range run.UniqueEntitiesByPrimaryClass {
			classSet[class] = true
		}
	}
	classes := make([]string, 0, len(classSet))
	for class := range classSet {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Unique Entities by Primary Class",
			Subtitle: rec.VideoSource,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	bar.SetXAxis(classes)
	for _, run := range runs {
		y := make([]opts.BarData, len(classes))
		for i, class := range classes {
			y[i] = opts.BarData{Value: run.UniqueEntitiesByPrimaryClass[class]}
		}
		label := run.CreatedAt.Format("2006-01-02 15:04:05")
		if run.ResultID == rec.ResultID {
			label = "current"
		}
		bar.AddSeries(label, y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	}

	page := components.NewPage()
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
