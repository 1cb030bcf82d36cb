package detect

import (
	"context"
	"errors"

	"github.com/banshee-data/animal.report/internal/count"
)

var (
	// ErrSourceUnavailable means the engine cannot produce a stream for
	// the given video handle: missing file, unreadable format, or the
	// engine process failing to start.
	ErrSourceUnavailable = errors.New("detection source unavailable")

	// ErrAggregationIncomplete means the engine's frame stream terminated
	// abnormally before the end-of-stream record.
	ErrAggregationIncomplete = errors.New("detection stream ended before completion")
)

// Engine produces per-frame detection streams for video files. One
// Analyze call corresponds to one full pass of the engine over one video.
type Engine interface {
	Analyze(ctx context.Context, videoPath string, detType DetectionType) (Stream, error)
}

// Stream yields the per-frame detection batches of a single video, in
// frame order, consumed exactly once.
//
// The engine reports its artifact directory (annotated video etc.)
// directly through OutputDir once the stream completes; consumers never
// scan the filesystem for recently modified folders.
type Stream interface {
	// Next returns the detections of the next frame, possibly an empty
	// slice. It returns io.EOF after the final frame of a complete
	// stream, or an error wrapping ErrAggregationIncomplete if the
	// stream ends abnormally.
	Next() ([]count.Detection, error)

	// OutputDir returns the engine's artifact directory for this run.
	// Valid once Next has returned io.EOF; empty before that.
	OutputDir() string

	// Close releases the underlying engine resources. Safe to call at
	// any point, including mid-stream after an error.
	Close() error
}
