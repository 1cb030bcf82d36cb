package count

import (
	"fmt"
	"sort"
)

// PriorRun pairs a previously persisted result with the label identifying
// the run that produced it. Prior runs are read-only inputs to comparison.
type PriorRun struct {
	Label  string
	Result *Result
}

// Delta is one current-vs-prior measurement for a single prior run.
type Delta struct {
	Label   string `json:"label"`
	Current int    `json:"current"`
	Prior   int    `json:"prior"`
	Delta   int    `json:"delta"`
}

// ClassDeltas compares the unique-entity count of one primary class across
// the current run and every prior run.
type ClassDeltas struct {
	Class   string  `json:"class"`
	Current int     `json:"current"`
	Priors  []Delta `json:"priors"`
}

// Comparison is the run-over-run delta report for one video. Derived, not
// persisted.
type Comparison struct {
	UniqueEntities  []Delta       `json:"unique_entities"`
	TotalDetections []Delta       `json:"total_detections"`
	Classes         []ClassDeltas `json:"classes"`
}

// Compare pairs the current result against each prior run, producing
// signed deltas. The caller is responsible for filtering priors to the
// same video source (plain string equality; no path normalization is
// performed, so two spellings of the same file are distinct videos) and
// for supplying them in presentation order. Returns nil when there is
// nothing to compare against.
func Compare(current *Result, priors []PriorRun) *Comparison {
	if len(priors) == 0 {
		return nil
	}

	cmp := &Comparison{}
	for _, p := range priors {
		cmp.UniqueEntities = append(cmp.UniqueEntities, Delta{
			Label:   p.Label,
			Current: current.UniqueEntities,
			Prior:   p.Result.UniqueEntities,
			Delta:   current.UniqueEntities - p.Result.UniqueEntities,
		})
		cmp.TotalDetections = append(cmp.TotalDetections, Delta{
			Label:   p.Label,
			Current: current.TotalDetections,
			Prior:   p.Result.TotalDetections,
			Delta:   current.TotalDetections - p.Result.TotalDetections,
		})
	}

	classes := make(map[string]bool)
	for class := range current.UniqueEntitiesByPrimaryClass {
		classes[class] = true
	}
	for _, p := range priors {
		for class := range p.Result.UniqueEntitiesByPrimaryClass {
			classes[class] = true
		}
	}
	sorted := make([]string, 0, len(classes))
	for class := range classes {
		sorted = append(sorted, class)
	}
	sort.Strings(sorted)

	for _, class := range sorted {
		cd := ClassDeltas{
			Class:   class,
			Current: current.UniqueEntitiesByPrimaryClass[class],
		}
		for _, p := range priors {
			prior := p.Result.UniqueEntitiesByPrimaryClass[class]
			cd.Priors = append(cd.Priors, Delta{
				Label:   p.Label,
				Current: cd.Current,
				Prior:   prior,
				Delta:   cd.Current - prior,
			})
		}
		cmp.Classes = append(cmp.Classes, cd)
	}

	return cmp
}

// FormatDelta renders a signed delta for display. Zero is "no change"
// rather than "+0".
func FormatDelta(delta int) string {
	if delta == 0 {
		return "no change"
	}
	return fmt.Sprintf("%+d", delta)
}
