// Package count implements the tracking-to-count aggregation core: it
// consumes the per-frame detection stream produced by an external
// detection/tracking engine and reduces it to deduplicated entity counts,
// per-class breakdowns, and run-over-run comparisons.
//
// The package is pure computation. It performs no I/O, holds no external
// state, and one Aggregator instance handles exactly one video run.
package count

import "fmt"

// Detection is a single per-frame observation from the detection engine:
// a class label and, when the engine managed to associate the box with a
// tracked entity, a track identifier.
type Detection struct {
	// Class is the detected class label (e.g. "bird", "cow"). May be empty
	// when the engine reports a box without a classification; such
	// detections count toward totals but not toward class breakdowns.
	Class string

	// TrackID identifies the physical entity this detection belongs to.
	// Only meaningful when HasTrack is true. Track identifiers are assigned
	// by the engine and are intended to be stable across frames, but
	// entities may lose and re-acquire IDs due to model error.
	TrackID int64

	// HasTrack reports whether the engine assigned a track identifier.
	// Untracked detections contribute to total-detection counts only.
	HasTrack bool

	// Confidence is the engine's detection confidence. Informational; it
	// never influences counting.
	Confidence float64
}

// ClassAssignment is the per-track classification outcome: the primary
// class (most frequent label, first-seen tie-break) and the full per-class
// occurrence counts observed for that track.
type ClassAssignment struct {
	PrimaryClass string         `json:"primary_class"`
	AllClasses   map[string]int `json:"all_classes"`
}

// Result is the immutable outcome of one aggregation pass over one video.
type Result struct {
	VideoSource     string `json:"video_source"`
	UniqueEntities  int    `json:"unique_entities"`
	TotalDetections int    `json:"total_detections"`

	// TrackIDs is the ascending-sorted set of distinct track identifiers.
	TrackIDs []int64 `json:"track_ids"`

	// DetectionsByClass counts every class-carrying detection, so one
	// animal classified differently across frames appears under several
	// classes here.
	DetectionsByClass map[string]int `json:"detections_by_class"`

	// UniqueEntitiesByPrimaryClass counts each tracked entity exactly once,
	// under its primary class.
	UniqueEntitiesByPrimaryClass map[string]int `json:"unique_entities_by_primary_class"`

	TrackClassAssignments map[int64]ClassAssignment `json:"track_class_assignments"`

	FrameStats FrameStats `json:"frame_stats"`

	// FrameCounts holds the raw detection count of every frame in arrival
	// order. Used for plotting; excluded from the persisted record.
	FrameCounts []int `json:"-"`
}

// ErrMalformedDetection reports an input-shape violation (currently only a
// negative track identifier). Empty or sparse data is never an error.
type ErrMalformedDetection struct {
	TrackID int64
}

func (e *ErrMalformedDetection) Error() string {
	return fmt.Sprintf("malformed detection: negative track id %d", e.TrackID)
}
