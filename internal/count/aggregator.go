package count

import (
	"fmt"
	"sort"
)

// trackRecord accumulates per-class occurrence counts for one track.
// classOrder preserves first-seen order so primary-class ties resolve
// deterministically rather than by map iteration order.
type trackRecord struct {
	classCounts map[string]int
	classOrder  []string
}

func (tr *trackRecord) observe(class string) {
	if _, seen := tr.classCounts[class]; !seen {
		tr.classOrder = append(tr.classOrder, class)
	}
	tr.classCounts[class]++
}

// primaryClass returns the most frequent class for this track. Ties break
// to whichever class was observed first.
func (tr *trackRecord) primaryClass() string {
	best := ""
	bestCount := 0
	for _, class := range tr.classOrder {
		if tr.classCounts[class] > bestCount {
			best = class
			bestCount = tr.classCounts[class]
		}
	}
	return best
}

// Aggregator converts an ordered, finite sequence of per-frame detection
// batches into one Result. It is single-pass and synchronous: feed frames
// with AddFrame in arrival order, then call Finalize exactly once. An
// Aggregator must not be shared between goroutines or reused for a second
// video.
type Aggregator struct {
	source          string
	totalDetections int
	classCounts     map[string]int
	tracks          map[int64]*trackRecord
	frameCounts     []int
	finalized       bool
}

// NewAggregator creates an aggregator for a single video run. videoSource
// is carried through to the result verbatim; the aggregator never
// inspects or normalizes it.
func NewAggregator(videoSource string) *Aggregator {
	return &Aggregator{
		source:      videoSource,
		classCounts: make(map[string]int),
		tracks:      make(map[int64]*trackRecord),
	}
}

// AddFrame consumes the detections of the next frame. A frame may be
// empty. Detections without a track identifier increment the detection
// total but are excluded from unique-entity accounting; detections
// without a class label are excluded from class accounting. The only
// error condition is malformed input shape: a negative track identifier.
func (a *Aggregator) AddFrame(dets []Detection) error {
	if a.finalized {
		return fmt.Errorf("aggregator already finalized")
	}
	for _, d := range dets {
		if d.HasTrack && d.TrackID < 0 {
			return &ErrMalformedDetection{TrackID: d.TrackID}
		}
	}

	a.frameCounts = append(a.frameCounts, len(dets))
	for _, d := range dets {
		a.totalDetections++
		if !d.HasTrack {
			continue
		}
		tr := a.tracks[d.TrackID]
		if tr == nil {
			tr = &trackRecord{classCounts: make(map[string]int)}
			a.tracks[d.TrackID] = tr
		}
		if d.Class != "" {
			a.classCounts[d.Class]++
			tr.observe(d.Class)
		}
	}
	return nil
}

// Finalize ends the frame stream and produces the result. Subsequent
// AddFrame calls fail; calling Finalize again returns the same values.
// Empty input yields a zero-valued result, never an error.
func (a *Aggregator) Finalize() *Result {
	a.finalized = true

	trackIDs := make([]int64, 0, len(a.tracks))
	for id := range a.tracks {
		trackIDs = append(trackIDs, id)
	}
	sort.Slice(trackIDs, func(i, j int) bool { return trackIDs[i] < trackIDs[j] })

	assignments := make(map[int64]ClassAssignment, len(a.tracks))
	primaryCounts := make(map[string]int)
	for _, id := range trackIDs {
		tr := a.tracks[id]
		primary := tr.primaryClass()
		all := make(map[string]int, len(tr.classCounts))
		for class, n := range tr.classCounts {
			all[class] = n
		}
		assignments[id] = ClassAssignment{PrimaryClass: primary, AllClasses: all}
		if primary != "" {
			primaryCounts[primary]++
		}
	}

	byClass := make(map[string]int, len(a.classCounts))
	for class, n := range a.classCounts {
		byClass[class] = n
	}

	frameCounts := make([]int, len(a.frameCounts))
	copy(frameCounts, a.frameCounts)

	return &Result{
		VideoSource:                  a.source,
		UniqueEntities:               len(trackIDs),
		TotalDetections:              a.totalDetections,
		TrackIDs:                     trackIDs,
		DetectionsByClass:            byClass,
		UniqueEntitiesByPrimaryClass: primaryCounts,
		TrackClassAssignments:        assignments,
		FrameStats:                   computeFrameStats(frameCounts),
		FrameCounts:                  frameCounts,
	}
}
