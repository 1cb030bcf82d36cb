package count

import (
	"fmt"
	"sort"
	"strings"
)

const summaryRule = "=================================================="

// Summary renders the human-readable text report for one aggregation
// result. domain is the display name of the class set ("Bird",
// "Livestock"). cmp may be nil when no prior runs exist; the comparison
// section is omitted entirely in that case. The output structure is
// stable and treated as a golden format by tests.
func Summary(domain string, r *Result, cmp *Comparison) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s Count Summary\n", domain)
	fmt.Fprintf(&b, "%s\n", summaryRule)
	fmt.Fprintf(&b, "Video: %s\n", r.VideoSource)
	fmt.Fprintf(&b, "Unique entities detected: %d\n", r.UniqueEntities)
	fmt.Fprintf(&b, "Total detections across all frames: %d\n", r.TotalDetections)

	fmt.Fprintf(&b, "Total detections by class:\n")
	for _, cc := range sortClassCounts(r.DetectionsByClass) {
		fmt.Fprintf(&b, "  - %s: %d\n", cc.class, cc.count)
	}

	fmt.Fprintf(&b, "Unique entities by primary class:\n")
	for _, cc := range sortClassCounts(r.UniqueEntitiesByPrimaryClass) {
		fmt.Fprintf(&b, "  - %s: %d\n", cc.class, cc.count)
	}

	if cmp != nil {
		writeComparison(&b, cmp)
	}

	ids := make([]string, len(r.TrackIDs))
	for i, id := range r.TrackIDs {
		ids[i] = fmt.Sprintf("%d", id)
	}
	fmt.Fprintf(&b, "Track IDs: %s\n", strings.Join(ids, ", "))

	return b.String()
}

func writeComparison(b *strings.Builder, cmp *Comparison) {
	fmt.Fprintf(b, "%s\n", summaryRule)
	fmt.Fprintf(b, "Comparison with Previous Runs\n")
	fmt.Fprintf(b, "%s\n", summaryRule)

	if len(cmp.UniqueEntities) > 0 {
		fmt.Fprintf(b, "Unique entities comparison:\n")
		fmt.Fprintf(b, "  Current: %d\n", cmp.UniqueEntities[0].Current)
		for _, d := range cmp.UniqueEntities {
			fmt.Fprintf(b, "  %s: %d (%s)\n", d.Label, d.Prior, FormatDelta(d.Delta))
		}
	}

	if len(cmp.TotalDetections) > 0 {
		fmt.Fprintf(b, "Total detections comparison:\n")
		fmt.Fprintf(b, "  Current: %d\n", cmp.TotalDetections[0].Current)
		for _, d := range cmp.TotalDetections {
			fmt.Fprintf(b, "  %s: %d (%s)\n", d.Label, d.Prior, FormatDelta(d.Delta))
		}
	}

	if len(cmp.Classes) > 0 {
		fmt.Fprintf(b, "Primary class comparison:\n")
		for _, cd := range cmp.Classes {
			fmt.Fprintf(b, "  %s:\n", cd.Class)
			fmt.Fprintf(b, "    Current: %d\n", cd.Current)
			for _, d := range cd.Priors {
				fmt.Fprintf(b, "    %s: %d (%s)\n", d.Label, d.Prior, FormatDelta(d.Delta))
			}
		}
	}
}

type classCount struct {
	class string
	count int
}

// sortClassCounts orders a class breakdown by descending count, ties by
// name, so summary output is deterministic.
func sortClassCounts(m map[string]int) []classCount {
	out := make([]classCount, 0, len(m))
	for class, n := range m {
		out = append(out, classCount{class: class, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].class < out[j].class
	})
	return out
}
